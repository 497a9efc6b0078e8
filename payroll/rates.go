package payroll

// =============================================================================
// RATE RESOLUTION
// =============================================================================

// ResolveRate finds the rate for payItemID in force on entryDate.
//
// Well-formed rate tables have non-overlapping windows per pay item. When
// windows overlap, the latest EffectiveFrom wins; remaining ties go to the
// later EffectiveTo (open-ended counts as latest), then the smaller ID.
// Input order never decides.
func ResolveRate(rates []Rate, payItemID PayItemID, entryDate string) (Rate, bool) {
	var (
		best  Rate
		found bool
	)
	for _, r := range rates {
		if r.PayItemID != payItemID || !r.Covers(entryDate) {
			continue
		}
		if !found || preferred(r, best) {
			best = r
			found = true
		}
	}
	return best, found
}

// preferred reports whether a should be chosen over b.
func preferred(a, b Rate) bool {
	if a.EffectiveFrom != b.EffectiveFrom {
		return a.EffectiveFrom > b.EffectiveFrom
	}
	switch {
	case a.EffectiveTo == nil && b.EffectiveTo != nil:
		return true
	case a.EffectiveTo != nil && b.EffectiveTo == nil:
		return false
	case a.EffectiveTo != nil && b.EffectiveTo != nil && *a.EffectiveTo != *b.EffectiveTo:
		return *a.EffectiveTo > *b.EffectiveTo
	}
	return a.ID < b.ID
}

// catalog indexes pay items and rates for repeated lookups in one run.
type catalog struct {
	items map[PayItemID]PayItem
	rates map[PayItemID][]Rate
}

func newCatalog(payItems []PayItem, rates []Rate) catalog {
	c := catalog{
		items: make(map[PayItemID]PayItem, len(payItems)),
		rates: make(map[PayItemID][]Rate),
	}
	for _, item := range payItems {
		// first occurrence wins, matching a linear scan of the catalog
		if _, exists := c.items[item.ID]; !exists {
			c.items[item.ID] = item
		}
	}
	for _, r := range rates {
		c.rates[r.PayItemID] = append(c.rates[r.PayItemID], r)
	}
	return c
}

func (c catalog) payItem(id PayItemID) (PayItem, bool) {
	item, ok := c.items[id]
	return item, ok
}

func (c catalog) rate(id PayItemID, date string) (Rate, bool) {
	return ResolveRate(c.rates[id], id, date)
}

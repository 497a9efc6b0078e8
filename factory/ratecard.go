/*
Package factory provides JSON to Go rate-card conversion.

PURPOSE:
  Converts a JSON rate card (pay items with their dated rate versions)
  into payroll.PayItem and payroll.Rate values ready for the store. Rate
  changes arrive as data from the office, so prices never need a code change.

JSON SCHEMA:
  {
    "pay_items": [
      {
        "code": "DRILL-LF",
        "description": "Directional drilling",
        "unit": "LF",
        "category": "drilling",
        "rates": [
          {"amount": "0.85", "effective_from": "2025-01-01", "effective_to": "2025-02-28"},
          {"amount": "0.95", "effective_from": "2025-03-01"}
        ]
      }
    ]
  }

DEFAULTS:
  - pay item id: its code
  - rate id:     "<code>@<effective_from>"
  - active:      true

VALIDATION:
  Every problem in the card is reported at once. Windows of the same pay
  item that intersect are accepted but returned as warnings; the engine
  resolves them by latest start, which is rarely what the author meant.

USAGE:
  card, err := factory.NewRateCardFactory().Parse(data)
  if err != nil {
      return err
  }
  store.ImportCatalog(ctx, card.PayItems, card.Rates)

SEE ALSO:
  - payroll/rates.go:       How overlapping windows are resolved
  - store/sqlite/sqlite.go: ImportCatalog
*/
package factory

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/piecework-payroll/payroll"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RateCardJSON is the JSON representation of a rate card.
type RateCardJSON struct {
	PayItems []PayItemJSON `json:"pay_items"`
}

// PayItemJSON is one catalog row with its rate history.
type PayItemJSON struct {
	ID          string     `json:"id,omitempty"`
	Code        string     `json:"code"`
	Description string     `json:"description"`
	Unit        string     `json:"unit"`
	Category    string     `json:"category,omitempty"`
	Active      *bool      `json:"active,omitempty"` // default true
	Rates       []RateJSON `json:"rates"`
}

// RateJSON is one rate version. Amount accepts a JSON string or number.
type RateJSON struct {
	ID            string          `json:"id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	EffectiveFrom string          `json:"effective_from"`
	EffectiveTo   *string         `json:"effective_to,omitempty"`
	Notes         string          `json:"notes,omitempty"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrInvalidRateCard is wrapped by every validation failure.
var ErrInvalidRateCard = errors.New("invalid rate card")

// RateCardError lists every problem found in a rate card.
type RateCardError struct {
	Problems []string
}

func (e *RateCardError) Error() string {
	return fmt.Sprintf("invalid rate card: %s", strings.Join(e.Problems, "; "))
}

func (e *RateCardError) Unwrap() error { return ErrInvalidRateCard }

// =============================================================================
// RATE CARD FACTORY
// =============================================================================

// RateCard is a parsed, validated rate card.
type RateCard struct {
	PayItems []payroll.PayItem
	Rates    []payroll.Rate
	Warnings []string
}

// RateCardFactory converts JSON rate cards to catalog values.
type RateCardFactory struct{}

// NewRateCardFactory creates a new rate-card factory.
func NewRateCardFactory() *RateCardFactory {
	return &RateCardFactory{}
}

// Parse parses and validates a JSON rate card.
func (f *RateCardFactory) Parse(data []byte) (*RateCard, error) {
	var rc RateCardJSON
	if err := json.Unmarshal(data, &rc); err != nil {
		return nil, fmt.Errorf("failed to parse rate card JSON: %w", err)
	}
	return f.FromJSON(rc)
}

// FromJSON validates rc and converts it.
func (f *RateCardFactory) FromJSON(rc RateCardJSON) (*RateCard, error) {
	var problems []string
	card := &RateCard{
		PayItems: []payroll.PayItem{},
		Rates:    []payroll.Rate{},
		Warnings: []string{},
	}

	if len(rc.PayItems) == 0 {
		return nil, &RateCardError{Problems: []string{"no pay items"}}
	}

	codes := make(map[string]bool)
	rateIDs := make(map[payroll.RateID]bool)
	for i, pj := range rc.PayItems {
		where := fmt.Sprintf("pay_items[%d]", i)
		if pj.Code != "" {
			where = pj.Code
		}

		switch {
		case pj.Code == "":
			problems = append(problems, where+": code is required")
		case codes[pj.Code]:
			problems = append(problems, where+": duplicate code")
		}
		codes[pj.Code] = true
		if pj.Description == "" {
			problems = append(problems, where+": description is required")
		}
		if pj.Unit == "" {
			problems = append(problems, where+": unit is required")
		}

		item := payroll.PayItem{
			ID:          payroll.PayItemID(pj.ID),
			Code:        pj.Code,
			Description: pj.Description,
			Unit:        pj.Unit,
			Category:    pj.Category,
			Active:      pj.Active == nil || *pj.Active,
		}
		if item.ID == "" {
			item.ID = payroll.PayItemID(pj.Code)
		}
		card.PayItems = append(card.PayItems, item)

		var itemRates []payroll.Rate
		for j, rj := range pj.Rates {
			rate, errs := parseRate(item, rj)
			if len(errs) == 0 && rateIDs[rate.ID] {
				// a repeated ID would overwrite the earlier version on import
				errs = append(errs, fmt.Sprintf("duplicate rate id %s", rate.ID))
			}
			for _, e := range errs {
				problems = append(problems, fmt.Sprintf("%s rates[%d]: %s", where, j, e))
			}
			if len(errs) == 0 {
				rateIDs[rate.ID] = true
				itemRates = append(itemRates, rate)
			}
		}
		card.Rates = append(card.Rates, itemRates...)
		card.Warnings = append(card.Warnings, overlapWarnings(pj.Code, itemRates)...)
	}

	if len(problems) > 0 {
		return nil, &RateCardError{Problems: problems}
	}
	return card, nil
}

func parseRate(item payroll.PayItem, rj RateJSON) (payroll.Rate, []string) {
	var errs []string

	if !payroll.ValidDate(rj.EffectiveFrom) {
		errs = append(errs, fmt.Sprintf("invalid effective_from %q", rj.EffectiveFrom))
	}
	if rj.EffectiveTo != nil {
		switch {
		case !payroll.ValidDate(*rj.EffectiveTo):
			errs = append(errs, fmt.Sprintf("invalid effective_to %q", *rj.EffectiveTo))
		case *rj.EffectiveTo < rj.EffectiveFrom:
			errs = append(errs, fmt.Sprintf("effective_to %s is before effective_from %s", *rj.EffectiveTo, rj.EffectiveFrom))
		}
	}
	if rj.Amount.IsNegative() {
		errs = append(errs, fmt.Sprintf("negative amount %s", rj.Amount))
	}

	rate := payroll.Rate{
		ID:            payroll.RateID(rj.ID),
		PayItemID:     item.ID,
		Amount:        rj.Amount,
		EffectiveFrom: rj.EffectiveFrom,
		EffectiveTo:   rj.EffectiveTo,
		Notes:         rj.Notes,
	}
	if rate.ID == "" {
		rate.ID = payroll.RateID(item.Code + "@" + rj.EffectiveFrom)
	}
	return rate, errs
}

// overlapWarnings reports every pair of intersecting windows.
func overlapWarnings(code string, rates []payroll.Rate) []string {
	sorted := append([]payroll.Rate(nil), rates...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].EffectiveFrom != sorted[j].EffectiveFrom {
			return sorted[i].EffectiveFrom < sorted[j].EffectiveFrom
		}
		return sorted[i].ID < sorted[j].ID
	})

	var warnings []string
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			a, b := sorted[i], sorted[j]
			// sorted by start: b never begins before a
			if a.EffectiveTo != nil && *a.EffectiveTo < b.EffectiveFrom {
				continue
			}
			warnings = append(warnings, fmt.Sprintf("%s: rate windows %s and %s overlap",
				code, window(a), window(b)))
		}
	}
	return warnings
}

func window(r payroll.Rate) string {
	to := "open"
	if r.EffectiveTo != nil {
		to = *r.EffectiveTo
	}
	return fmt.Sprintf("[%s, %s]", r.EffectiveFrom, to)
}

// =============================================================================
// EXPORT
// =============================================================================

// ToJSON converts catalog values back to a rate card. Rates whose pay item is
// not in items are dropped.
func (f *RateCardFactory) ToJSON(items []payroll.PayItem, rates []payroll.Rate) RateCardJSON {
	byItem := make(map[payroll.PayItemID][]RateJSON)
	for _, r := range rates {
		byItem[r.PayItemID] = append(byItem[r.PayItemID], RateJSON{
			ID:            string(r.ID),
			Amount:        r.Amount,
			EffectiveFrom: r.EffectiveFrom,
			EffectiveTo:   r.EffectiveTo,
			Notes:         r.Notes,
		})
	}

	rc := RateCardJSON{PayItems: []PayItemJSON{}}
	for _, item := range items {
		active := item.Active
		itemRates := byItem[item.ID]
		sort.SliceStable(itemRates, func(i, j int) bool {
			return itemRates[i].EffectiveFrom < itemRates[j].EffectiveFrom
		})
		if itemRates == nil {
			itemRates = []RateJSON{}
		}
		rc.PayItems = append(rc.PayItems, PayItemJSON{
			ID:          string(item.ID),
			Code:        item.Code,
			Description: item.Description,
			Unit:        item.Unit,
			Category:    item.Category,
			Active:      &active,
			Rates:       itemRates,
		})
	}
	return rc
}

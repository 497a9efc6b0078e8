package payroll

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// WeeklyOTThreshold is the fixed weekly standard; hours above it are overtime.
var WeeklyOTThreshold = decimal.NewFromInt(40)

const centPlaces = 2

func roundCents(d decimal.Decimal) decimal.Decimal { return d.Round(centPlaces) }

// =============================================================================
// INPUTS
// =============================================================================

// WorkerInput is everything needed to pay one worker. Entries are expected to
// be that worker's entries within Period; PayItems and Rates are the full
// catalog and rate table.
type WorkerInput struct {
	Worker            Worker
	TimeEntries       []TimeEntry
	ProductionEntries []ProductionEntry
	PayItems          []PayItem
	Rates             []Rate
	Period            Period
}

// BatchInput is everything needed to pay a crew for one period.
type BatchInput struct {
	Workers           []Worker
	TimeEntries       []TimeEntry
	ProductionEntries []ProductionEntry
	PayItems          []PayItem
	Rates             []Rate
	Period            Period
}

// =============================================================================
// CALCULATOR
// =============================================================================

// Calculator computes payroll results. The zero value is ready to use and
// skips unpriceable production silently; set ReportSkipped to get a
// Diagnostics entry for each one.
type Calculator struct {
	ReportSkipped bool
}

// CalculateWorker computes one worker's result:
//
//	regular_hours = MIN(total_hours, 40)
//	ot_hours      = MAX(total_hours - 40, 0)
//	piece         = SUM(quantity × rate in force on entry date)
//	hourly        = regular_hours × base_rate
//	ot_premium    = ot_hours × base_rate × (ot_multiplier - 1)
//	base          = MAX(piece, hourly) if min guarantee, else piece
//	total_pay     = base + ot_premium
//
// Only approved and locked entries count. Production entries whose pay item
// or rate cannot be found earn nothing.
func (c *Calculator) CalculateWorker(in WorkerInput) Result {
	return c.calculateWorker(in.Worker, in.TimeEntries, in.ProductionEntries, newCatalog(in.PayItems, in.Rates), in.Period)
}

// Calculate computes results for every active worker, in worker order.
// Inactive workers produce no result.
func (c *Calculator) Calculate(in BatchInput) []Result {
	cat := newCatalog(in.PayItems, in.Rates)

	timeByWorker := make(map[WorkerID][]TimeEntry)
	for _, e := range in.TimeEntries {
		if in.Period.Contains(e.EntryDate) {
			timeByWorker[e.WorkerID] = append(timeByWorker[e.WorkerID], e)
		}
	}
	prodByWorker := make(map[WorkerID][]ProductionEntry)
	for _, e := range in.ProductionEntries {
		if in.Period.Contains(e.EntryDate) {
			prodByWorker[e.WorkerID] = append(prodByWorker[e.WorkerID], e)
		}
	}

	results := make([]Result, 0, len(in.Workers))
	for _, w := range in.Workers {
		if !w.Active {
			continue
		}
		results = append(results, c.calculateWorker(w, timeByWorker[w.ID], prodByWorker[w.ID], cat, in.Period))
	}
	return results
}

func (c *Calculator) calculateWorker(
	worker Worker,
	timeEntries []TimeEntry,
	productionEntries []ProductionEntry,
	cat catalog,
	period Period,
) Result {
	// 1. Hours from payable time entries
	totalHours := decimal.Zero
	for _, e := range timeEntries {
		if e.Status.Payable() {
			totalHours = totalHours.Add(e.TotalHours)
		}
	}

	// 2. Split at the weekly threshold
	regularHours := decimal.Min(totalHours, WeeklyOTThreshold)
	otHours := decimal.Max(totalHours.Sub(WeeklyOTThreshold), decimal.Zero)

	// 3. Piece earnings, carried at full precision
	pieceEarnings := decimal.Zero
	lineItems := []ProductionLineItem{}
	var diagnostics []Diagnostic

	for _, e := range productionEntries {
		if !e.Status.Payable() {
			continue
		}

		item, ok := cat.payItem(e.PayItemID)
		if !ok {
			if c.ReportSkipped {
				diagnostics = append(diagnostics, Diagnostic{
					Code:      DiagPayItemNotFound,
					EntryID:   e.ID,
					PayItemID: e.PayItemID,
					EntryDate: e.EntryDate,
					Message:   fmt.Sprintf("production entry %s: pay item %s not in catalog", e.ID, e.PayItemID),
				})
			}
			continue
		}

		rate, ok := cat.rate(e.PayItemID, e.EntryDate)
		if !ok {
			if c.ReportSkipped {
				diagnostics = append(diagnostics, Diagnostic{
					Code:      DiagRateNotFound,
					EntryID:   e.ID,
					PayItemID: e.PayItemID,
					EntryDate: e.EntryDate,
					Message:   fmt.Sprintf("production entry %s: no rate for %s on %s", e.ID, item.Code, e.EntryDate),
				})
			}
			continue
		}

		earnings := e.Quantity.Mul(rate.Amount)
		pieceEarnings = pieceEarnings.Add(earnings)

		lineItems = append(lineItems, ProductionLineItem{
			EntryID:     e.ID,
			EntryDate:   e.EntryDate,
			PayItemCode: item.Code,
			Description: item.Description,
			Unit:        item.Unit,
			Quantity:    e.Quantity,
			Rate:        rate.Amount,
			RateID:      rate.ID,
			Earnings:    roundCents(earnings),
		})
	}

	// 4. Straight-time earnings
	hourlyEarnings := regularHours.Mul(worker.BaseHourlyRate)

	// 5. Overtime premium (zero when the multiplier is 1)
	otPremium := otHours.Mul(worker.BaseHourlyRate).Mul(worker.OTMultiplier.Sub(decimal.NewFromInt(1)))

	// 6. Minimum hourly guarantee
	guaranteedBase := pieceEarnings
	minGuaranteeApplied := decimal.Zero
	if worker.MinHourlyGuarantee && hourlyEarnings.GreaterThan(pieceEarnings) {
		guaranteedBase = hourlyEarnings
		minGuaranteeApplied = hourlyEarnings.Sub(pieceEarnings)
	}

	// 7. Total
	totalPay := guaranteedBase.Add(otPremium)

	return Result{
		WorkerID:     worker.ID,
		WorkerName:   worker.FullName,
		EmployeeType: worker.EmployeeType,
		PeriodStart:  period.Start,
		PeriodEnd:    period.End,

		TotalHours:   roundCents(totalHours),
		RegularHours: roundCents(regularHours),
		OTHours:      roundCents(otHours),

		PieceEarnings:       roundCents(pieceEarnings),
		HourlyEarnings:      roundCents(hourlyEarnings),
		OTPremium:           roundCents(otPremium),
		MinGuaranteeApplied: roundCents(minGuaranteeApplied),

		TotalPay:      roundCents(totalPay),
		PaymentMethod: paymentMethod(worker, pieceEarnings, otHours, minGuaranteeApplied),

		BaseHourlyRate:  worker.BaseHourlyRate,
		OTMultiplier:    worker.OTMultiplier,
		ProductionItems: lineItems,
		Diagnostics:     diagnostics,
	}
}

// paymentMethod labels a result. First match wins.
func paymentMethod(worker Worker, piece, otHours, minGuarantee decimal.Decimal) PaymentMethod {
	if worker.PieceRateEnabled && piece.IsPositive() {
		switch {
		case otHours.IsPositive():
			return MethodPieceRateOT
		case minGuarantee.IsPositive():
			return MethodPieceRateMinGuarantee
		default:
			return MethodPieceRate
		}
	}
	if otHours.IsPositive() {
		return MethodHourlyOT
	}
	return MethodHourlyOnly
}

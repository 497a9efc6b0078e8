package payroll

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SUMMARY
// =============================================================================

// Summary aggregates a result set.
type Summary struct {
	TotalPayroll       decimal.Decimal
	TotalHours         decimal.Decimal
	TotalWorkers       int
	AvgHourlyRate      decimal.Decimal // TotalPayroll / TotalHours, 0 without hours
	TotalOTHours       decimal.Decimal
	TotalPieceEarnings decimal.Decimal
	TotalOTPremium     decimal.Decimal
}

// TotalPayroll sums TotalPay across results.
func TotalPayroll(results []Result) decimal.Decimal {
	total := decimal.Zero
	for _, r := range results {
		total = total.Add(r.TotalPay)
	}
	return roundCents(total)
}

// Summarize reduces a result set to period totals.
func Summarize(results []Result) Summary {
	s := Summary{
		TotalPayroll:       TotalPayroll(results),
		TotalHours:         decimal.Zero,
		TotalWorkers:       len(results),
		AvgHourlyRate:      decimal.Zero,
		TotalOTHours:       decimal.Zero,
		TotalPieceEarnings: decimal.Zero,
		TotalOTPremium:     decimal.Zero,
	}
	for _, r := range results {
		s.TotalHours = s.TotalHours.Add(r.TotalHours)
		s.TotalOTHours = s.TotalOTHours.Add(r.OTHours)
		s.TotalPieceEarnings = s.TotalPieceEarnings.Add(r.PieceEarnings)
		s.TotalOTPremium = s.TotalOTPremium.Add(r.OTPremium)
	}
	if s.TotalHours.IsPositive() {
		s.AvgHourlyRate = s.TotalPayroll.Div(s.TotalHours)
	}

	s.TotalHours = roundCents(s.TotalHours)
	s.TotalOTHours = roundCents(s.TotalOTHours)
	s.TotalPieceEarnings = roundCents(s.TotalPieceEarnings)
	s.TotalOTPremium = roundCents(s.TotalOTPremium)
	s.AvgHourlyRate = roundCents(s.AvgHourlyRate)
	return s
}

// =============================================================================
// VALIDATION
// =============================================================================

// MismatchTolerance is the largest accepted gap between expected and actual totals.
var MismatchTolerance = decimal.NewFromFloat(0.01)

// Validation is a structural verdict over a result set.
type Validation struct {
	Valid  bool
	Errors []string
}

// Validate flags negative pay or hours, and compares the payroll total to
// expectedTotal when one is given. Every problem is reported.
func Validate(results []Result, expectedTotal *decimal.Decimal) Validation {
	errs := []string{}

	for _, r := range results {
		if r.TotalPay.IsNegative() {
			errs = append(errs, fmt.Sprintf("Worker %s: negative total pay (%s)", r.WorkerName, r.TotalPay.StringFixed(centPlaces)))
		}
		if r.TotalHours.IsNegative() {
			errs = append(errs, fmt.Sprintf("Worker %s: negative hours (%s)", r.WorkerName, r.TotalHours.StringFixed(centPlaces)))
		}
	}

	if expectedTotal != nil {
		actual := TotalPayroll(results)
		diff := actual.Sub(*expectedTotal).Abs()
		if diff.GreaterThan(MismatchTolerance) {
			errs = append(errs, fmt.Sprintf("Total mismatch: expected $%s, got $%s (diff: $%s)",
				expectedTotal.StringFixed(centPlaces), actual.StringFixed(centPlaces), diff.StringFixed(centPlaces)))
		}
	}

	return Validation{Valid: len(errs) == 0, Errors: errs}
}

package payroll_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/warp/piecework-payroll/payroll"
)

func result(name, pay, hours, ot, piece, premium string) payroll.Result {
	return payroll.Result{
		WorkerName:    name,
		TotalPay:      dec(pay),
		TotalHours:    dec(hours),
		OTHours:       dec(ot),
		PieceEarnings: dec(piece),
		OTPremium:     dec(premium),
	}
}

func TestSummarize(t *testing.T) {
	results := []payroll.Result{
		result("A", "792", "48", "8", "0", "72"),
		result("B", "720", "40", "0", "85", "0"),
	}

	s := payroll.Summarize(results)

	assert.Equal(t, 2, s.TotalWorkers)
	assertMoney(t, "1512.00", s.TotalPayroll, "payroll")
	assertMoney(t, "88.00", s.TotalHours, "hours")
	assertMoney(t, "8.00", s.TotalOTHours, "ot hours")
	assertMoney(t, "85.00", s.TotalPieceEarnings, "piece")
	assertMoney(t, "72.00", s.TotalOTPremium, "premium")
	// 1512 / 88 = 17.1818...
	assertMoney(t, "17.18", s.AvgHourlyRate, "avg rate")
}

func TestSummarize_ZeroHoursHasZeroAverage(t *testing.T) {
	s := payroll.Summarize([]payroll.Result{result("Piece only", "85", "0", "0", "85", "0")})
	assert.True(t, s.AvgHourlyRate.IsZero())

	s = payroll.Summarize(nil)
	assert.Equal(t, 0, s.TotalWorkers)
	assert.True(t, s.AvgHourlyRate.IsZero())
	assert.True(t, s.TotalPayroll.IsZero())
}

func TestValidate_CleanResults(t *testing.T) {
	results := []payroll.Result{result("A", "792", "48", "8", "0", "72")}

	v := payroll.Validate(results, nil)
	assert.True(t, v.Valid)
	assert.Empty(t, v.Errors)

	expected := dec("792.01")
	v = payroll.Validate(results, &expected)
	assert.True(t, v.Valid, "one cent is within tolerance")
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	results := []payroll.Result{
		result("Broken", "-5", "-1", "0", "0", "0"),
		result("Fine", "100", "5", "0", "0", "0"),
	}
	expected := decimal.NewFromInt(200)

	v := payroll.Validate(results, &expected)

	assert.False(t, v.Valid)
	assert.Len(t, v.Errors, 3)
	assert.Contains(t, v.Errors[0], "Broken")
	assert.Contains(t, v.Errors[0], "negative total pay")
	assert.Contains(t, v.Errors[1], "negative hours")
	assert.Equal(t, "Total mismatch: expected $200.00, got $95.00 (diff: $105.00)", v.Errors[2])
}

func TestCalculatedResultsNeverFailValidation(t *testing.T) {
	worker := w2Worker("18")
	worker.MinHourlyGuarantee = true
	results := (&payroll.Calculator{}).Calculate(payroll.BatchInput{
		Workers:     []payroll.Worker{worker},
		TimeEntries: fiveDays("10"),
		PayItems:    []payroll.PayItem{drilling},
		Rates:       drillingRates,
		Period:      week,
	})

	total := payroll.TotalPayroll(results)
	v := payroll.Validate(results, &total)
	assert.True(t, v.Valid, v.Errors)
}

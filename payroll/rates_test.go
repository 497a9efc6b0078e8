package payroll_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/piecework-payroll/payroll"
)

func TestResolveRate_WindowBoundsInclusive(t *testing.T) {
	rates := []payroll.Rate{
		{ID: "r-1", PayItemID: "pi", Amount: dec("1.00"), EffectiveFrom: "2025-01-01", EffectiveTo: strPtr("2025-01-31")},
		{ID: "r-2", PayItemID: "pi", Amount: dec("1.10"), EffectiveFrom: "2025-02-01"},
		{ID: "r-x", PayItemID: "other", Amount: dec("9.99"), EffectiveFrom: "2024-01-01"},
	}

	cases := []struct {
		date   string
		wantID payroll.RateID
		found  bool
	}{
		{"2024-12-31", "", false},
		{"2025-01-01", "r-1", true},
		{"2025-01-31", "r-1", true},
		{"2025-02-01", "r-2", true},
		{"2031-07-04", "r-2", true},
	}
	for _, tc := range cases {
		r, ok := payroll.ResolveRate(rates, "pi", tc.date)
		assert.Equal(t, tc.found, ok, tc.date)
		assert.Equal(t, tc.wantID, r.ID, tc.date)
	}
}

func TestResolveRate_OverlapPrefersLatestStart(t *testing.T) {
	// GIVEN: two open-ended windows that overlap from March on
	rates := []payroll.Rate{
		{ID: "r-new", PayItemID: "pi", Amount: dec("0.95"), EffectiveFrom: "2025-03-01"},
		{ID: "r-old", PayItemID: "pi", Amount: dec("0.85"), EffectiveFrom: "2025-01-01"},
	}

	r, ok := payroll.ResolveRate(rates, "pi", "2025-03-15")
	require.True(t, ok)
	assert.Equal(t, payroll.RateID("r-new"), r.ID)

	r, ok = payroll.ResolveRate(rates, "pi", "2025-02-15")
	require.True(t, ok)
	assert.Equal(t, payroll.RateID("r-old"), r.ID)
}

func TestResolveRate_TiesIgnoreInputOrder(t *testing.T) {
	a := payroll.Rate{ID: "r-a", PayItemID: "pi", Amount: dec("1"), EffectiveFrom: "2025-01-01", EffectiveTo: strPtr("2025-12-31")}
	b := payroll.Rate{ID: "r-b", PayItemID: "pi", Amount: dec("2"), EffectiveFrom: "2025-01-01"}
	c := payroll.Rate{ID: "r-c", PayItemID: "pi", Amount: dec("3"), EffectiveFrom: "2025-01-01"}

	// open-ended beats a closed window with the same start
	for _, rates := range [][]payroll.Rate{{a, b}, {b, a}} {
		r, _ := payroll.ResolveRate(rates, "pi", "2025-06-01")
		assert.Equal(t, payroll.RateID("r-b"), r.ID)
	}

	// full tie falls back to the smaller ID
	for _, rates := range [][]payroll.Rate{{b, c}, {c, b}} {
		r, _ := payroll.ResolveRate(rates, "pi", "2025-06-01")
		assert.Equal(t, payroll.RateID("r-b"), r.ID)
	}
}

func TestPeriod(t *testing.T) {
	p, err := payroll.ParsePeriod("2025-03-03", "2025-03-09")
	require.NoError(t, err)
	assert.True(t, p.Contains("2025-03-03"))
	assert.True(t, p.Contains("2025-03-09"))
	assert.False(t, p.Contains("2025-03-10"))
	assert.Equal(t, "[2025-03-03, 2025-03-09]", p.String())

	_, err = payroll.ParsePeriod("2025-03-09", "2025-03-03")
	assert.ErrorIs(t, err, payroll.ErrInvalidPeriod)

	_, err = payroll.ParsePeriod("3/3/2025", "2025-03-09")
	assert.ErrorIs(t, err, payroll.ErrInvalidDate)

	assert.False(t, payroll.ValidDate("2025-02-30"))
	assert.False(t, payroll.ValidDate("2025-3-1"))
	assert.True(t, payroll.ValidDate("2024-02-29"))
}

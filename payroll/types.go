/*
Package payroll provides the piece-rate payroll calculation engine.

PURPOSE:
  Given a worker's approved or locked entries for a pay period, the
  worker's pay configuration, the pay-item catalog and the versioned rate
  table, produce one deterministic Result. The engine performs no I/O and
  keeps no reference to its inputs after returning.

KEY CONCEPTS IN THIS FILE (types.go):
  - Worker:          pay configuration (base rate, OT multiplier, guarantee)
  - TimeEntry:       hours worked on a date
  - ProductionEntry: units of a pay item completed on a date
  - PayItem / Rate:  catalog row and its time-versioned price
  - Result:          per-worker output with an itemized production ledger

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal everywhere, rounded to cents only on output
  2. Determinism: identical inputs give identical results
  3. Defensive input: status is re-checked here, never trusted from callers

SEE ALSO:
  - calculator.go: The pay algorithm
  - rates.go:      Rate resolution by entry date
  - summary.go:    Aggregation and validation over a result set
*/
package payroll

import (
	"github.com/shopspring/decimal"
	"github.com/warp/piecework-payroll/approval"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type WorkerID string
type PayItemID string
type RateID string
type EntryID string

// =============================================================================
// WORKER
// =============================================================================

type EmployeeType string

const (
	EmployeeW2   EmployeeType = "W2"
	Employee1099 EmployeeType = "1099"
)

func (t EmployeeType) Valid() bool { return t == EmployeeW2 || t == Employee1099 }

// Worker is the pay configuration used for one calculation run.
//
// An OTMultiplier of 1 expresses "no overtime premium" (typical for 1099).
type Worker struct {
	ID                 WorkerID
	Code               string
	FullName           string
	EmployeeType       EmployeeType
	BaseHourlyRate     decimal.Decimal
	OTMultiplier       decimal.Decimal
	MinHourlyGuarantee bool
	PieceRateEnabled   bool // affects PaymentMethod labeling only
	Crew               string
	Active             bool
}

// =============================================================================
// WORK ENTRIES
// =============================================================================

type TimeEntry struct {
	ID         EntryID
	WorkerID   WorkerID
	EntryDate  string // YYYY-MM-DD
	TotalHours decimal.Decimal
	Status     approval.Status
}

type ProductionEntry struct {
	ID        EntryID
	WorkerID  WorkerID
	EntryDate string // YYYY-MM-DD
	PayItemID PayItemID
	Quantity  decimal.Decimal
	Status    approval.Status
}

// =============================================================================
// CATALOG
// =============================================================================

type PayItem struct {
	ID          PayItemID
	Code        string
	Description string
	Unit        string
	Category    string
	Active      bool
}

// Rate is the price of a pay item over [EffectiveFrom, EffectiveTo].
// A nil EffectiveTo is open-ended.
type Rate struct {
	ID            RateID
	PayItemID     PayItemID
	Amount        decimal.Decimal
	EffectiveFrom string
	EffectiveTo   *string
	Notes         string
}

// Covers reports whether the rate applies on date.
func (r Rate) Covers(date string) bool {
	return r.EffectiveFrom <= date && (r.EffectiveTo == nil || *r.EffectiveTo >= date)
}

// =============================================================================
// RESULT
// =============================================================================

type PaymentMethod string

const (
	MethodPieceRateOT           PaymentMethod = "Piece Rate + OT"
	MethodPieceRateMinGuarantee PaymentMethod = "Piece Rate + Min Guarantee"
	MethodPieceRate             PaymentMethod = "Piece Rate"
	MethodHourlyOT              PaymentMethod = "Hourly + OT"
	MethodHourlyOnly            PaymentMethod = "Hourly Only"
)

// ProductionLineItem records one priced production entry, with the exact
// rate that was applied.
type ProductionLineItem struct {
	EntryID     EntryID
	EntryDate   string
	PayItemCode string
	Description string
	Unit        string
	Quantity    decimal.Decimal
	Rate        decimal.Decimal
	RateID      RateID
	Earnings    decimal.Decimal
}

// Result is one worker's pay for one period. Currency and hour fields are
// rounded to two decimal places.
type Result struct {
	WorkerID     WorkerID
	WorkerName   string
	EmployeeType EmployeeType
	PeriodStart  string
	PeriodEnd    string

	TotalHours   decimal.Decimal
	RegularHours decimal.Decimal
	OTHours      decimal.Decimal

	PieceEarnings       decimal.Decimal
	HourlyEarnings      decimal.Decimal
	OTPremium           decimal.Decimal
	MinGuaranteeApplied decimal.Decimal

	TotalPay      decimal.Decimal
	PaymentMethod PaymentMethod

	BaseHourlyRate  decimal.Decimal
	OTMultiplier    decimal.Decimal
	ProductionItems []ProductionLineItem

	// Diagnostics lists production entries left out of earnings.
	// Populated only when Calculator.ReportSkipped is set.
	Diagnostics []Diagnostic
}

// =============================================================================
// DIAGNOSTICS
// =============================================================================

type DiagnosticCode string

const (
	DiagPayItemNotFound DiagnosticCode = "pay_item_not_found"
	DiagRateNotFound    DiagnosticCode = "rate_not_found"
)

// Diagnostic explains why a production entry earned nothing.
type Diagnostic struct {
	Code      DiagnosticCode
	EntryID   EntryID
	PayItemID PayItemID
	EntryDate string
	Message   string
}

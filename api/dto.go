/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Money, hours and
  quantities travel as decimal strings: responses are fixed at two places,
  requests accept any decimal string.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

SEE ALSO:
  - handlers.go: Uses these types
  - factory/ratecard.go: RateCardJSON type
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/piecework-payroll/approval"
	"github.com/warp/piecework-payroll/payroll"
	"github.com/warp/piecework-payroll/store/sqlite"
)

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func timestamp(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// =============================================================================
// WORKERS
// =============================================================================

type WorkerDTO struct {
	ID                 string `json:"id"`
	Code               string `json:"worker_code"`
	FullName           string `json:"full_name"`
	EmployeeType       string `json:"employee_type"`
	BaseHourlyRate     string `json:"base_hourly_rate"`
	OTMultiplier       string `json:"ot_multiplier"`
	MinHourlyGuarantee bool   `json:"min_hourly_guarantee"`
	PieceRateEnabled   bool   `json:"piece_rate_enabled"`
	Crew               string `json:"crew,omitempty"`
	Active             bool   `json:"active"`
}

func toWorkerDTO(w payroll.Worker) WorkerDTO {
	return WorkerDTO{
		ID:                 string(w.ID),
		Code:               w.Code,
		FullName:           w.FullName,
		EmployeeType:       string(w.EmployeeType),
		BaseHourlyRate:     money(w.BaseHourlyRate),
		OTMultiplier:       w.OTMultiplier.String(),
		MinHourlyGuarantee: w.MinHourlyGuarantee,
		PieceRateEnabled:   w.PieceRateEnabled,
		Crew:               w.Crew,
		Active:             w.Active,
	}
}

// CreateWorkerRequest creates or replaces a worker. OTMultiplier defaults to
// 1.5 for W2 and 1 for 1099 workers; Active defaults to true.
type CreateWorkerRequest struct {
	ID                 string           `json:"id,omitempty"`
	Code               string           `json:"worker_code"`
	FullName           string           `json:"full_name"`
	EmployeeType       string           `json:"employee_type"`
	BaseHourlyRate     decimal.Decimal  `json:"base_hourly_rate"`
	OTMultiplier       *decimal.Decimal `json:"ot_multiplier,omitempty"`
	MinHourlyGuarantee bool             `json:"min_hourly_guarantee"`
	PieceRateEnabled   bool             `json:"piece_rate_enabled"`
	Crew               string           `json:"crew,omitempty"`
	Active             *bool            `json:"active,omitempty"`
}

// =============================================================================
// CATALOG
// =============================================================================

type PayItemDTO struct {
	ID          string `json:"id"`
	Code        string `json:"item_code"`
	Description string `json:"description"`
	Unit        string `json:"unit"`
	Category    string `json:"category,omitempty"`
	Active      bool   `json:"active"`
}

func toPayItemDTO(p payroll.PayItem) PayItemDTO {
	return PayItemDTO{
		ID:          string(p.ID),
		Code:        p.Code,
		Description: p.Description,
		Unit:        p.Unit,
		Category:    p.Category,
		Active:      p.Active,
	}
}

type CreatePayItemRequest struct {
	ID          string `json:"id,omitempty"`
	Code        string `json:"item_code"`
	Description string `json:"description"`
	Unit        string `json:"unit"`
	Category    string `json:"category,omitempty"`
	Active      *bool  `json:"active,omitempty"`
}

// RateDTO keeps the rate's exact precision.
type RateDTO struct {
	ID            string  `json:"id"`
	PayItemID     string  `json:"pay_item_id"`
	Amount        string  `json:"rate_amount"`
	EffectiveFrom string  `json:"effective_from"`
	EffectiveTo   *string `json:"effective_to"`
	Notes         string  `json:"context_notes,omitempty"`
}

func toRateDTO(r payroll.Rate) RateDTO {
	return RateDTO{
		ID:            string(r.ID),
		PayItemID:     string(r.PayItemID),
		Amount:        r.Amount.String(),
		EffectiveFrom: r.EffectiveFrom,
		EffectiveTo:   r.EffectiveTo,
		Notes:         r.Notes,
	}
}

type CreateRateRequest struct {
	ID            string          `json:"id,omitempty"`
	PayItemID     string          `json:"pay_item_id"`
	Amount        decimal.Decimal `json:"rate_amount"`
	EffectiveFrom string          `json:"effective_from"`
	EffectiveTo   *string         `json:"effective_to,omitempty"`
	Notes         string          `json:"context_notes,omitempty"`
}

// ImportRateCardResponse reports what an import wrote.
type ImportRateCardResponse struct {
	PayItems int      `json:"pay_items"`
	Rates    int      `json:"rates"`
	Warnings []string `json:"warnings"`
}

// =============================================================================
// ENTRIES
// =============================================================================

// EntryDTO covers both entry kinds. Hours is set for time entries; PayItemID
// and Quantity for production entries.
type EntryDTO struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	WorkerID    string `json:"worker_id"`
	EntryDate   string `json:"entry_date"`
	Hours       string `json:"total_hours,omitempty"`
	PayItemID   string `json:"pay_item_id,omitempty"`
	Quantity    string `json:"quantity,omitempty"`
	Status      string `json:"status"`
	StatusLabel string `json:"status_label"`
	Notes       string `json:"notes,omitempty"`
	SubmittedBy string `json:"submitted_by,omitempty"`
	ApprovedBy  string `json:"approved_by,omitempty"`
	ApprovedAt  string `json:"approved_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

func toTimeEntryDTO(e sqlite.TimeEntry) EntryDTO {
	dto := entryMetaDTO(approval.KindTime, e.EntryMeta, e.Status)
	dto.ID = string(e.ID)
	dto.WorkerID = string(e.WorkerID)
	dto.EntryDate = e.EntryDate
	dto.Hours = e.TotalHours.String()
	return dto
}

func toProductionEntryDTO(e sqlite.ProductionEntry) EntryDTO {
	dto := entryMetaDTO(approval.KindProduction, e.EntryMeta, e.Status)
	dto.ID = string(e.ID)
	dto.WorkerID = string(e.WorkerID)
	dto.EntryDate = e.EntryDate
	dto.PayItemID = string(e.PayItemID)
	dto.Quantity = e.Quantity.String()
	return dto
}

func entryMetaDTO(kind approval.EntryKind, m sqlite.EntryMeta, status approval.Status) EntryDTO {
	return EntryDTO{
		Kind:        string(kind),
		Status:      string(status),
		StatusLabel: status.Label(),
		Notes:       m.Notes,
		SubmittedBy: m.SubmittedBy,
		ApprovedBy:  m.ApprovedBy,
		ApprovedAt:  timestamp(m.ApprovedAt),
		UpdatedAt:   timestamp(&m.UpdatedAt),
	}
}

// EntryRequest creates or edits an entry. New entries are always pending.
type EntryRequest struct {
	ID        string           `json:"id,omitempty"`
	WorkerID  string           `json:"worker_id"`
	EntryDate string           `json:"entry_date"`
	Hours     *decimal.Decimal `json:"total_hours,omitempty"`
	PayItemID string           `json:"pay_item_id,omitempty"`
	Quantity  *decimal.Decimal `json:"quantity,omitempty"`
	Notes     string           `json:"notes,omitempty"`
}

type ActionDTO struct {
	To              string `json:"to"`
	Label           string `json:"label"`
	RequiresComment bool   `json:"requires_comment"`
}

type TransitionRequest struct {
	To      string `json:"to"`
	Comment string `json:"comment,omitempty"`
}

type TransitionResponse struct {
	Entry        EntryDTO        `json:"entry"`
	Warnings     []string        `json:"warnings"`
	Notification NotificationDTO `json:"notification"`
}

type NotificationDTO struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type BatchApproveRequest struct {
	IDs     []string `json:"ids"`
	Comment string   `json:"comment,omitempty"`
}

type BatchApproveResponse struct {
	Approved []string          `json:"approved"`
	Rejected []string          `json:"rejected"`
	Errors   map[string]string `json:"errors"`
}

// =============================================================================
// PAYROLL
// =============================================================================

type CalculateRequest struct {
	PeriodStart   string           `json:"period_start"`
	PeriodEnd     string           `json:"period_end"`
	ExpectedTotal *decimal.Decimal `json:"expected_total,omitempty"`
}

type LineItemDTO struct {
	EntryID     string `json:"entry_id"`
	EntryDate   string `json:"entry_date"`
	PayItemCode string `json:"pay_item_code"`
	Description string `json:"description"`
	Unit        string `json:"unit"`
	Quantity    string `json:"quantity"`
	Rate        string `json:"rate"`
	RateID      string `json:"rate_id"`
	Earnings    string `json:"earnings"`
}

type DiagnosticDTO struct {
	Code      string `json:"code"`
	EntryID   string `json:"entry_id"`
	PayItemID string `json:"pay_item_id"`
	EntryDate string `json:"entry_date"`
	Message   string `json:"message"`
}

type ResultDTO struct {
	WorkerID            string          `json:"worker_id"`
	WorkerName          string          `json:"worker_name"`
	EmployeeType        string          `json:"employee_type"`
	PeriodStart         string          `json:"period_start"`
	PeriodEnd           string          `json:"period_end"`
	TotalHours          string          `json:"total_hours"`
	RegularHours        string          `json:"regular_hours"`
	OTHours             string          `json:"ot_hours"`
	PieceEarnings       string          `json:"piece_earnings"`
	HourlyEarnings      string          `json:"hourly_earnings"`
	OTPremium           string          `json:"ot_premium"`
	MinGuaranteeApplied string          `json:"min_guarantee_applied"`
	TotalPay            string          `json:"total_pay"`
	PaymentMethod       string          `json:"payment_method"`
	BaseHourlyRate      string          `json:"base_hourly_rate"`
	OTMultiplier        string          `json:"ot_multiplier"`
	ProductionItems     []LineItemDTO   `json:"production_items"`
	Diagnostics         []DiagnosticDTO `json:"diagnostics,omitempty"`
}

func toResultDTO(r payroll.Result) ResultDTO {
	dto := ResultDTO{
		WorkerID:            string(r.WorkerID),
		WorkerName:          r.WorkerName,
		EmployeeType:        string(r.EmployeeType),
		PeriodStart:         r.PeriodStart,
		PeriodEnd:           r.PeriodEnd,
		TotalHours:          money(r.TotalHours),
		RegularHours:        money(r.RegularHours),
		OTHours:             money(r.OTHours),
		PieceEarnings:       money(r.PieceEarnings),
		HourlyEarnings:      money(r.HourlyEarnings),
		OTPremium:           money(r.OTPremium),
		MinGuaranteeApplied: money(r.MinGuaranteeApplied),
		TotalPay:            money(r.TotalPay),
		PaymentMethod:       string(r.PaymentMethod),
		BaseHourlyRate:      money(r.BaseHourlyRate),
		OTMultiplier:        r.OTMultiplier.String(),
		ProductionItems:     make([]LineItemDTO, len(r.ProductionItems)),
	}
	for i, li := range r.ProductionItems {
		dto.ProductionItems[i] = LineItemDTO{
			EntryID:     string(li.EntryID),
			EntryDate:   li.EntryDate,
			PayItemCode: li.PayItemCode,
			Description: li.Description,
			Unit:        li.Unit,
			Quantity:    li.Quantity.String(),
			Rate:        li.Rate.String(),
			RateID:      string(li.RateID),
			Earnings:    money(li.Earnings),
		}
	}
	for _, d := range r.Diagnostics {
		dto.Diagnostics = append(dto.Diagnostics, DiagnosticDTO{
			Code:      string(d.Code),
			EntryID:   string(d.EntryID),
			PayItemID: string(d.PayItemID),
			EntryDate: d.EntryDate,
			Message:   d.Message,
		})
	}
	return dto
}

type SummaryDTO struct {
	TotalPayroll       string `json:"total_payroll"`
	TotalHours         string `json:"total_hours"`
	TotalWorkers       int    `json:"total_workers"`
	AvgHourlyRate      string `json:"avg_hourly_rate"`
	TotalOTHours       string `json:"total_ot_hours"`
	TotalPieceEarnings string `json:"total_piece_earnings"`
	TotalOTPremium     string `json:"total_ot_premium"`
}

func toSummaryDTO(s payroll.Summary) SummaryDTO {
	return SummaryDTO{
		TotalPayroll:       money(s.TotalPayroll),
		TotalHours:         money(s.TotalHours),
		TotalWorkers:       s.TotalWorkers,
		AvgHourlyRate:      money(s.AvgHourlyRate),
		TotalOTHours:       money(s.TotalOTHours),
		TotalPieceEarnings: money(s.TotalPieceEarnings),
		TotalOTPremium:     money(s.TotalOTPremium),
	}
}

type ValidationDTO struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// PayrollRunDTO is a stored run. Results is omitted in listings.
type PayrollRunDTO struct {
	ID           string        `json:"id"`
	PeriodStart  string        `json:"period_start"`
	PeriodEnd    string        `json:"period_end"`
	Summary      SummaryDTO    `json:"summary"`
	Validation   ValidationDTO `json:"validation"`
	Results      []ResultDTO   `json:"results,omitempty"`
	CalculatedBy string        `json:"calculated_by,omitempty"`
	CalculatedAt string        `json:"calculated_at"`
}

func toPayrollRunDTO(run sqlite.PayrollRun) PayrollRunDTO {
	dto := PayrollRunDTO{
		ID:          run.ID,
		PeriodStart: run.Period.Start,
		PeriodEnd:   run.Period.End,
		Summary:     toSummaryDTO(run.Summary),
		Validation: ValidationDTO{
			Valid:  run.Validation.Valid,
			Errors: run.Validation.Errors,
		},
		CalculatedBy: run.CalculatedBy,
		CalculatedAt: timestamp(&run.CalculatedAt),
	}
	if dto.Validation.Errors == nil {
		dto.Validation.Errors = []string{}
	}
	for _, r := range run.Results {
		dto.Results = append(dto.Results, toResultDTO(r))
	}
	return dto
}

type LockRequest struct {
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
}

type LockResponse struct {
	Locked            int      `json:"locked"`
	TimeEntries       int      `json:"time_entries"`
	ProductionEntries int      `json:"production_entries"`
	Warnings          []string `json:"warnings"`
}

// =============================================================================
// PAY PERIODS AND AUDIT
// =============================================================================

type PayPeriodDTO struct {
	ID           string  `json:"id"`
	StartDate    string  `json:"start_date"`
	EndDate      string  `json:"end_date"`
	Status       string  `json:"status"`
	TotalPayroll *string `json:"total_payroll,omitempty"`
	ExportedAt   string  `json:"exported_at,omitempty"`
	ExportedBy   string  `json:"exported_by,omitempty"`
}

func toPayPeriodDTO(p sqlite.PayPeriod) PayPeriodDTO {
	dto := PayPeriodDTO{
		ID:         p.ID,
		StartDate:  p.Period.Start,
		EndDate:    p.Period.End,
		Status:     string(p.Status),
		ExportedAt: timestamp(p.ExportedAt),
		ExportedBy: p.ExportedBy,
	}
	if p.TotalPayroll != nil {
		total := money(*p.TotalPayroll)
		dto.TotalPayroll = &total
	}
	return dto
}

type CreatePayPeriodRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type MarkExportedRequest struct {
	TotalPayroll decimal.Decimal `json:"total_payroll"`
}

type AuditDTO struct {
	ID         string `json:"id"`
	ActorID    string `json:"actor_id,omitempty"`
	ActorName  string `json:"actor_name,omitempty"`
	Action     string `json:"action"`
	EntityType string `json:"entity_type,omitempty"`
	EntityID   string `json:"entity_id,omitempty"`
	OldStatus  string `json:"old_status,omitempty"`
	NewStatus  string `json:"new_status,omitempty"`
	Message    string `json:"message"`
	CreatedAt  string `json:"created_at"`
}

func toAuditDTO(e sqlite.AuditEntry) AuditDTO {
	return AuditDTO{
		ID:         e.ID,
		ActorID:    e.ActorID,
		ActorName:  e.ActorName,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		OldStatus:  e.OldStatus,
		NewStatus:  e.NewStatus,
		Message:    e.Message,
		CreatedAt:  timestamp(&e.CreatedAt),
	}
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/warp/piecework-payroll/approval"
	"github.com/warp/piecework-payroll/payroll"
	"github.com/warp/piecework-payroll/store/sqlite"
)

// =============================================================================
// PAYROLL RUNS
// =============================================================================

// payableStatuses are the statuses the engine counts. Loading only these keeps
// the run small; the engine filters again regardless.
var payableStatuses = []approval.Status{approval.StatusApproved, approval.StatusLocked}

// RunPayroll calculates payroll for period from the stored records, saves the
// run and audits it. Used by the calculate endpoint and the scheduler.
func (h *Handler) RunPayroll(ctx context.Context, period payroll.Period, expected *decimal.Decimal, actor sqlite.Actor) (*sqlite.PayrollRun, error) {
	workers, err := h.Store.ListWorkers(ctx)
	if err != nil {
		return nil, err
	}
	items, err := h.Store.ListPayItems(ctx)
	if err != nil {
		return nil, err
	}
	rates, err := h.Store.ListRates(ctx)
	if err != nil {
		return nil, err
	}

	filter := sqlite.EntryFilter{Period: &period, Statuses: payableStatuses}
	timeRows, err := h.Store.ListTimeEntries(ctx, filter)
	if err != nil {
		return nil, err
	}
	prodRows, err := h.Store.ListProductionEntries(ctx, filter)
	if err != nil {
		return nil, err
	}

	in := payroll.BatchInput{
		Workers:           workers,
		TimeEntries:       make([]payroll.TimeEntry, len(timeRows)),
		ProductionEntries: make([]payroll.ProductionEntry, len(prodRows)),
		PayItems:          items,
		Rates:             rates,
		Period:            period,
	}
	for i, e := range timeRows {
		in.TimeEntries[i] = e.TimeEntry
	}
	for i, e := range prodRows {
		in.ProductionEntries[i] = e.ProductionEntry
	}

	results := h.Calculator.Calculate(in)
	run := &sqlite.PayrollRun{
		ID:           newID(),
		Period:       period,
		Results:      results,
		Summary:      payroll.Summarize(results),
		Validation:   payroll.Validate(results, expected),
		CalculatedBy: actor.ID,
		CalculatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := h.Store.SavePayrollRun(ctx, *run); err != nil {
		return nil, err
	}

	err = h.Store.AppendAudit(ctx, sqlite.AuditEntry{
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		Action:     sqlite.ActionCalculate,
		EntityType: "payroll_run",
		EntityID:   run.ID,
		Message: fmt.Sprintf("Calculated payroll for %s: %d workers, total %s",
			period, run.Summary.TotalWorkers, run.Summary.TotalPayroll.StringFixed(2)),
	})
	if err != nil {
		h.Logger.Error("audit append failed", slog.Any("error", err))
	}

	h.Logger.Info("payroll calculated",
		slog.String("run_id", run.ID),
		slog.String("period", period.String()),
		slog.Int("workers", run.Summary.TotalWorkers),
		slog.String("total", run.Summary.TotalPayroll.StringFixed(2)),
		slog.Bool("valid", run.Validation.Valid),
	)
	return run, nil
}

// Calculate runs payroll for the requested period and returns the stored run.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	period, err := payroll.ParsePeriod(req.PeriodStart, req.PeriodEnd)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	actor, _ := ActorFrom(r.Context())
	run, err := h.RunPayroll(r.Context(), period, req.ExpectedTotal, actor.store())
	if err != nil {
		writeStoreError(w, "Failed to calculate payroll", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPayrollRunDTO(*run))
}

// ListRuns returns stored runs newest first, without per-worker results.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Store.ListPayrollRuns(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payroll runs", err)
		return
	}

	dtos := make([]PayrollRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toPayrollRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRun returns one run with its results.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.Store.GetPayrollRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, "Payroll run not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toPayrollRunDTO(*run))
}

// =============================================================================
// PERIOD LOCK
// =============================================================================

// LockPeriod locks every approved entry in the period. Owner only.
func (h *Handler) LockPeriod(w http.ResponseWriter, r *http.Request) {
	var req LockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	period, err := payroll.ParsePeriod(req.PeriodStart, req.PeriodEnd)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	count, err := h.Store.CountEntries(r.Context(), period, approval.StatusApproved)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count entries", err)
		return
	}

	actor, _ := ActorFrom(r.Context())
	verdict := h.Machine.Lock(count, actor.Role)
	if !verdict.OK {
		writeError(w, statusFor(verdict.Err), verdict.Message, verdict.Err)
		return
	}

	result, err := h.Store.LockPeriod(r.Context(), period, actor.store())
	if err != nil {
		writeStoreError(w, "Failed to lock period", err)
		return
	}

	h.Logger.Info("period locked",
		slog.String("period", period.String()),
		slog.Int("time_entries", result.TimeEntries),
		slog.Int("production_entries", result.ProductionEntries),
		slog.String("actor", actor.ID),
	)

	warnings := verdict.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	writeJSON(w, http.StatusOK, LockResponse{
		Locked:            result.Total(),
		TimeEntries:       result.TimeEntries,
		ProductionEntries: result.ProductionEntries,
		Warnings:          warnings,
	})
}

// =============================================================================
// PAY PERIODS
// =============================================================================

func (h *Handler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := h.Store.ListPayPeriods(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list pay periods", err)
		return
	}

	dtos := make([]PayPeriodDTO, len(periods))
	for i, p := range periods {
		dtos[i] = toPayPeriodDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePeriod opens a pay period. Bounds must be unique.
func (h *Handler) CreatePeriod(w http.ResponseWriter, r *http.Request) {
	var req CreatePayPeriodRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	period, err := payroll.ParsePeriod(req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	p := sqlite.PayPeriod{ID: newID(), Period: period, Status: sqlite.PeriodOpen}
	if err := h.Store.CreatePayPeriod(r.Context(), p); err != nil {
		writeStoreError(w, "Failed to create pay period", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPayPeriodDTO(p))
}

// MarkExported records that a closed period was handed to the payroll
// provider, with the total that was sent.
func (h *Handler) MarkExported(w http.ResponseWriter, r *http.Request) {
	var req MarkExportedRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.TotalPayroll.IsNegative() {
		writeError(w, http.StatusBadRequest, "total_payroll must be zero or more", nil)
		return
	}

	id := chi.URLParam(r, "id")
	actor, _ := ActorFrom(r.Context())
	if err := h.Store.MarkPeriodExported(r.Context(), id, req.TotalPayroll, actor.store()); err != nil {
		writeStoreError(w, "Failed to mark period exported", err)
		return
	}

	p, err := h.Store.GetPayPeriod(r.Context(), id)
	if err != nil {
		writeStoreError(w, "Failed to load pay period", err)
		return
	}
	writeJSON(w, http.StatusOK, toPayPeriodDTO(*p))
}

// =============================================================================
// AUDIT
// =============================================================================

// ListAudit returns audit rows oldest first, filtered by ?entity_type=,
// ?entity_id= and ?limit=.
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := sqlite.AuditFilter{
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		filter.Limit = n
	}

	entries, err := h.Store.ListAudit(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list audit log", err)
		return
	}

	dtos := make([]AuditDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toAuditDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

/*
handlers.go - HTTP API handlers for the payroll system

PURPOSE:
  Exposes the payroll engine and the approval workflow via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to
  domain logic. Records are loaded from the store and handed to the
  engine as plain values; the engine never sees the store.

ENDPOINTS:
  Workers:
    GET    /api/workers                        List workers
    POST   /api/workers                        Create or replace a worker
    GET    /api/workers/{id}                   Get worker details

  Catalog:
    GET    /api/pay-items                      List pay items
    POST   /api/pay-items                      Create or replace a pay item
    POST   /api/pay-items/import               Import a JSON rate card
    GET    /api/pay-items/export               Export the catalog as a rate card
    GET    /api/rates                          List rates (?pay_item_id=&date=)
    POST   /api/rates                          Create or replace a rate version

  Entries (kind = time | production):
    GET    /api/entries/{kind}                 List (?start=&end=&worker_id=&status=)
    POST   /api/entries/{kind}                 Submit a pending entry
    PUT    /api/entries/{kind}/{id}            Edit (CanEdit)
    DELETE /api/entries/{kind}/{id}            Delete (CanDelete)
    GET    /api/entries/{kind}/{id}/actions    Buttons for the caller's role
    POST   /api/entries/{kind}/{id}/transition Change status
    POST   /api/entries/{kind}/batch-approve   Approve many

  Payroll:
    POST   /api/payroll/calculate              Calculate and store a run
    GET    /api/payroll/runs                   List runs
    GET    /api/payroll/runs/{id}              Run with results
    POST   /api/payroll/lock                   Lock approved entries of a period

  Periods, audit, scenarios:
    GET    /api/periods                        List pay periods
    POST   /api/periods                        Open a pay period
    POST   /api/periods/{id}/exported          Record the exported total
    GET    /api/audit                          Audit log
    GET    /api/scenarios                      List demo scenarios
    POST   /api/scenarios/load                 Load a demo scenario

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store:      Database access
  - Calculator: Pay engine (diagnostics on or off)
  - Machine:    Approval rules
  - RateCards:  JSON rate-card conversion

ERROR HANDLING:
  Errors are returned as JSON {"error", "details"}:
  - 400: Validation errors, invalid input
  - 401: Missing or invalid token
  - 403: Role not allowed
  - 404: Resource not found
  - 409: Illegal transition, locked entry, concurrent change
  - 422: Rejection without a comment
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - entries.go: Entry and approval handlers
  - payroll.go: Calculation, lock, periods, audit
  - server.go: Router setup and middleware
*/
package api

import (
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/piecework-payroll/approval"
	"github.com/warp/piecework-payroll/factory"
	"github.com/warp/piecework-payroll/payroll"
	"github.com/warp/piecework-payroll/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      *sqlite.Store
	Calculator *payroll.Calculator
	Machine    *approval.Machine
	RateCards  *factory.RateCardFactory
	Logger     *slog.Logger

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{
		Store:      store,
		Calculator: &payroll.Calculator{},
		Machine:    approval.NewMachine(),
		RateCards:  factory.NewRateCardFactory(),
		Logger:     logger,
	}
}

func newID() string { return uuid.NewString() }

// =============================================================================
// WORKER HANDLERS
// =============================================================================

// ListWorkers returns all workers.
func (h *Handler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := h.Store.ListWorkers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list workers", err)
		return
	}

	dtos := make([]WorkerDTO, len(workers))
	for i, wk := range workers {
		dtos[i] = toWorkerDTO(wk)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetWorker returns a worker by ID.
func (h *Handler) GetWorker(w http.ResponseWriter, r *http.Request) {
	worker, err := h.Store.GetWorker(r.Context(), payroll.WorkerID(chi.URLParam(r, "id")))
	if err != nil {
		writeStoreError(w, "Worker not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkerDTO(*worker))
}

// CreateWorker creates or replaces a worker.
func (h *Handler) CreateWorker(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	worker := payroll.Worker{
		ID:                 payroll.WorkerID(req.ID),
		Code:               req.Code,
		FullName:           req.FullName,
		EmployeeType:       payroll.EmployeeType(req.EmployeeType),
		BaseHourlyRate:     req.BaseHourlyRate,
		MinHourlyGuarantee: req.MinHourlyGuarantee,
		PieceRateEnabled:   req.PieceRateEnabled,
		Crew:               req.Crew,
		Active:             req.Active == nil || *req.Active,
	}
	if worker.ID == "" {
		worker.ID = payroll.WorkerID(newID())
	}
	switch {
	case req.OTMultiplier != nil:
		worker.OTMultiplier = *req.OTMultiplier
	case worker.EmployeeType == payroll.Employee1099:
		worker.OTMultiplier = decimal.NewFromInt(1)
	default:
		worker.OTMultiplier = decimal.RequireFromString("1.5")
	}

	switch {
	case worker.Code == "" || worker.FullName == "":
		writeError(w, http.StatusBadRequest, "worker_code and full_name are required", nil)
		return
	case !worker.EmployeeType.Valid():
		writeError(w, http.StatusBadRequest, "employee_type must be W2 or 1099", nil)
		return
	case worker.BaseHourlyRate.IsNegative():
		writeError(w, http.StatusBadRequest, "base_hourly_rate must not be negative", nil)
		return
	case worker.OTMultiplier.LessThan(decimal.NewFromInt(1)):
		writeError(w, http.StatusBadRequest, "ot_multiplier must be at least 1", nil)
		return
	}

	if err := h.Store.SaveWorker(r.Context(), worker); err != nil {
		writeStoreError(w, "Failed to save worker", err)
		return
	}
	writeJSON(w, http.StatusCreated, toWorkerDTO(worker))
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

// ListPayItems returns the pay-item catalog.
func (h *Handler) ListPayItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.Store.ListPayItems(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list pay items", err)
		return
	}

	dtos := make([]PayItemDTO, len(items))
	for i, item := range items {
		dtos[i] = toPayItemDTO(item)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePayItem creates or replaces a pay item.
func (h *Handler) CreatePayItem(w http.ResponseWriter, r *http.Request) {
	var req CreatePayItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Code == "" || req.Description == "" || req.Unit == "" {
		writeError(w, http.StatusBadRequest, "item_code, description and unit are required", nil)
		return
	}

	item := payroll.PayItem{
		ID:          payroll.PayItemID(req.ID),
		Code:        req.Code,
		Description: req.Description,
		Unit:        req.Unit,
		Category:    req.Category,
		Active:      req.Active == nil || *req.Active,
	}
	if item.ID == "" {
		item.ID = payroll.PayItemID(req.Code)
	}

	if err := h.Store.SavePayItem(r.Context(), item); err != nil {
		writeStoreError(w, "Failed to save pay item", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPayItemDTO(item))
}

// ImportRateCard loads a JSON rate card in one transaction.
func (h *Handler) ImportRateCard(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	card, err := h.RateCards.Parse(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rate card", err)
		return
	}

	if err := h.Store.ImportCatalog(r.Context(), card.PayItems, card.Rates); err != nil {
		writeStoreError(w, "Failed to import rate card", err)
		return
	}

	actor, _ := ActorFrom(r.Context())
	err = h.Store.AppendAudit(r.Context(), sqlite.AuditEntry{
		ActorID:   actor.ID,
		ActorName: actor.Name,
		Action:    sqlite.ActionImport,
		Message:   "Imported rate card",
	})
	if err != nil {
		h.Logger.Error("audit append failed", slog.Any("error", err))
	}

	for _, warning := range card.Warnings {
		h.Logger.Warn("rate card overlap", slog.String("warning", warning))
	}
	writeJSON(w, http.StatusCreated, ImportRateCardResponse{
		PayItems: len(card.PayItems),
		Rates:    len(card.Rates),
		Warnings: card.Warnings,
	})
}

// ExportRateCard returns the catalog in rate-card form.
func (h *Handler) ExportRateCard(w http.ResponseWriter, r *http.Request) {
	items, err := h.Store.ListPayItems(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list pay items", err)
		return
	}
	rates, err := h.Store.ListRates(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rates", err)
		return
	}
	writeJSON(w, http.StatusOK, h.RateCards.ToJSON(items, rates))
}

// ListRates returns rate versions. With pay_item_id and date it returns only
// the rate the engine would apply on that date.
func (h *Handler) ListRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.Store.ListRates(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rates", err)
		return
	}

	payItemID := payroll.PayItemID(r.URL.Query().Get("pay_item_id"))
	date := r.URL.Query().Get("date")

	if date != "" {
		if payItemID == "" || !payroll.ValidDate(date) {
			writeError(w, http.StatusBadRequest, "date lookup needs pay_item_id and a YYYY-MM-DD date", nil)
			return
		}
		rate, ok := payroll.ResolveRate(rates, payItemID, date)
		if !ok {
			writeError(w, http.StatusNotFound, "No rate in force on that date", nil)
			return
		}
		writeJSON(w, http.StatusOK, toRateDTO(rate))
		return
	}

	dtos := []RateDTO{}
	for _, rate := range rates {
		if payItemID == "" || rate.PayItemID == payItemID {
			dtos = append(dtos, toRateDTO(rate))
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateRate creates or replaces a rate version.
func (h *Handler) CreateRate(w http.ResponseWriter, r *http.Request) {
	var req CreateRateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	switch {
	case req.PayItemID == "":
		writeError(w, http.StatusBadRequest, "pay_item_id is required", nil)
		return
	case !payroll.ValidDate(req.EffectiveFrom):
		writeError(w, http.StatusBadRequest, "Invalid effective_from date (use YYYY-MM-DD)", nil)
		return
	case req.EffectiveTo != nil && (!payroll.ValidDate(*req.EffectiveTo) || *req.EffectiveTo < req.EffectiveFrom):
		writeError(w, http.StatusBadRequest, "Invalid effective_to date", nil)
		return
	case req.Amount.IsNegative():
		writeError(w, http.StatusBadRequest, "rate_amount must not be negative", nil)
		return
	}

	rate := payroll.Rate{
		ID:            payroll.RateID(req.ID),
		PayItemID:     payroll.PayItemID(req.PayItemID),
		Amount:        req.Amount,
		EffectiveFrom: req.EffectiveFrom,
		EffectiveTo:   req.EffectiveTo,
		Notes:         req.Notes,
	}
	if rate.ID == "" {
		rate.ID = payroll.RateID(newID())
	}

	if err := h.Store.SaveRate(r.Context(), rate); err != nil {
		writeStoreError(w, "Failed to save rate", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRateDTO(rate))
}

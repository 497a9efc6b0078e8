/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for demos and manual testing. Each scenario creates a rate card,
	workers and entries that demonstrate one part of the pay rules or the
	approval workflow.

AVAILABLE SCENARIOS:

	pay-examples:    Hourly only, hourly + OT, minimum guarantee top-up
	rate-change:     Piece rate that changes in the middle of the week
	approval-queue:  Entries in every status, one locked week, one open week

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Import the demo rate card via the rate-card factory
 3. Create workers
 4. Add time and production entries with their statuses
 5. Optionally open pay periods

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "pay-examples"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Worker and catalog handlers
  - factory/ratecard.go: Rate card JSON definitions
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/piecework-payroll/approval"
	"github.com/warp/piecework-payroll/payroll"
	"github.com/warp/piecework-payroll/store/sqlite"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "pay-examples",
		Name:        "Pay Examples",
		Description: "Week of 2025-03-03: 40h hourly ($720), 48h with overtime ($792), min guarantee over 100 splices ($720)",
	},
	{
		ID:          "rate-change",
		Name:        "Mid-Week Rate Change",
		Description: "Drop installs priced at $45 through 2025-03-05 and $50 from 2025-03-06",
	},
	{
		ID:          "approval-queue",
		Name:        "Approval Queue",
		Description: "Pending, approved, rejected and locked entries across a locked week and an open week",
	},
}

// demoWeek is the pay period every scenario is built around.
var demoWeek = payroll.Period{Start: "2025-03-03", End: "2025-03-09"}

// demoRateCard is imported through the rate-card factory so scenarios
// exercise the same path as POST /api/pay-items/import.
const demoRateCard = `{
  "pay_items": [
    {
      "code": "FIBER-SPLICE",
      "description": "Fiber splice",
      "unit": "splice",
      "category": "fiber",
      "rates": [{"amount": "0.85", "effective_from": "2025-01-01"}]
    },
    {
      "code": "DROP-INSTALL",
      "description": "Aerial drop install",
      "unit": "drop",
      "category": "install",
      "rates": [
        {"amount": "45.00", "effective_from": "2025-01-01", "effective_to": "2025-03-05"},
        {"amount": "50.00", "effective_from": "2025-03-06", "notes": "Q1 contract amendment"}
      ]
    },
    {
      "code": "POLE-CLIMB",
      "description": "Pole climb",
      "unit": "climb",
      "category": "aerial",
      "rates": [{"amount": "12.50", "effective_from": "2025-01-01"}]
    }
  ]
}`

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var load func(context.Context) error
	switch req.ScenarioID {
	case "pay-examples":
		load = h.loadPayExamplesScenario
	case "rate-change":
		load = h.loadRateChangeScenario
	case "approval-queue":
		load = h.loadApprovalQueueScenario
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario: %s", req.ScenarioID), nil)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	if err := load(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	h.currentScenario = req.ScenarioID

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadPayExamplesScenario(ctx context.Context) error {
	if err := h.seedCatalog(ctx); err != nil {
		return err
	}

	// Ava: 5 x 8h at $18 = $720 with no production, so the guarantee carries the base.
	ava := demoWorker("w-ava", "EMP-001", "Ava Chen", payroll.EmployeeW2, "18.00", "1.5", true, false)
	// Ben: 6 x 8h = 40 regular + 8 OT, premium 8 x 18 x 0.5 = $72, total $792.
	ben := demoWorker("w-ben", "EMP-002", "Ben Ortiz", payroll.EmployeeW2, "18.00", "1.5", true, false)
	// Cam: 100 splices x $0.85 = $85 piece vs $720 hourly, topped up by $635.
	cam := demoWorker("w-cam", "EMP-003", "Cam Reyes", payroll.EmployeeW2, "18.00", "1.5", true, true)
	for _, w := range []payroll.Worker{ava, ben, cam} {
		if err := h.Store.SaveWorker(ctx, w); err != nil {
			return err
		}
	}

	if err := h.seedHours(ctx, ava.ID, weekDays(5), "8", approval.StatusApproved); err != nil {
		return err
	}
	if err := h.seedHours(ctx, ben.ID, weekDays(6), "8", approval.StatusApproved); err != nil {
		return err
	}
	if err := h.seedHours(ctx, cam.ID, weekDays(5), "8", approval.StatusApproved); err != nil {
		return err
	}
	return h.seedProduction(ctx, "p-cam-1", cam.ID, "2025-03-05", "FIBER-SPLICE", "100", approval.StatusApproved)
}

func (h *Handler) loadRateChangeScenario(ctx context.Context) error {
	if err := h.seedCatalog(ctx); err != nil {
		return err
	}

	// Dee is a 1099 installer paid on piece only: 4 drops at $45 before the
	// change and 4 at $50 after it, $380 total.
	dee := demoWorker("w-dee", "SUB-001", "Dee Park", payroll.Employee1099, "20.00", "1", false, true)
	if err := h.Store.SaveWorker(ctx, dee); err != nil {
		return err
	}
	if err := h.seedHours(ctx, dee.ID, weekDays(4), "7.5", approval.StatusApproved); err != nil {
		return err
	}
	if err := h.seedProduction(ctx, "p-dee-1", dee.ID, "2025-03-04", "DROP-INSTALL", "4", approval.StatusApproved); err != nil {
		return err
	}
	if err := h.seedProduction(ctx, "p-dee-2", dee.ID, "2025-03-06", "DROP-INSTALL", "4", approval.StatusApproved); err != nil {
		return err
	}
	// Pending work is visible in the queue but does not pay yet.
	return h.seedProduction(ctx, "p-dee-3", dee.ID, "2025-03-07", "DROP-INSTALL", "2", approval.StatusPending)
}

func (h *Handler) loadApprovalQueueScenario(ctx context.Context) error {
	if err := h.seedCatalog(ctx); err != nil {
		return err
	}

	ava := demoWorker("w-ava", "EMP-001", "Ava Chen", payroll.EmployeeW2, "18.00", "1.5", true, false)
	eli := demoWorker("w-eli", "EMP-004", "Eli Brooks", payroll.EmployeeW2, "22.00", "1.5", true, true)
	for _, w := range []payroll.Worker{ava, eli} {
		if err := h.Store.SaveWorker(ctx, w); err != nil {
			return err
		}
	}

	// Previous week: approved, then locked below.
	prev := payroll.Period{Start: "2025-02-24", End: "2025-03-02"}
	if err := h.Store.CreatePayPeriod(ctx, sqlite.PayPeriod{ID: "pp-2025-02-24", Period: prev}); err != nil {
		return err
	}
	if err := h.seedHours(ctx, ava.ID, []string{"2025-02-24", "2025-02-25"}, "8", approval.StatusApproved); err != nil {
		return err
	}
	if _, err := h.Store.LockPeriod(ctx, prev, SchedulerActor); err != nil {
		return err
	}

	// Current week: one entry in each open status.
	if err := h.Store.CreatePayPeriod(ctx, sqlite.PayPeriod{ID: "pp-2025-03-03", Period: demoWeek}); err != nil {
		return err
	}
	if err := h.seedHours(ctx, ava.ID, []string{"2025-03-03"}, "8", approval.StatusApproved); err != nil {
		return err
	}
	if err := h.seedHours(ctx, ava.ID, []string{"2025-03-04"}, "9", approval.StatusPending); err != nil {
		return err
	}
	if err := h.seedHours(ctx, eli.ID, []string{"2025-03-03"}, "10", approval.StatusPending); err != nil {
		return err
	}
	if err := h.seedHours(ctx, eli.ID, []string{"2025-03-04"}, "14", approval.StatusRejected); err != nil {
		return err
	}
	if err := h.seedProduction(ctx, "p-eli-1", eli.ID, "2025-03-03", "POLE-CLIMB", "6", approval.StatusPending); err != nil {
		return err
	}
	return h.seedProduction(ctx, "p-eli-2", eli.ID, "2025-03-04", "POLE-CLIMB", "9", approval.StatusRejected)
}

// =============================================================================
// SEED HELPERS
// =============================================================================

func (h *Handler) seedCatalog(ctx context.Context) error {
	card, err := h.RateCards.Parse([]byte(demoRateCard))
	if err != nil {
		return err
	}
	return h.Store.ImportCatalog(ctx, card.PayItems, card.Rates)
}

func demoWorker(id, code, name string, kind payroll.EmployeeType, rate, ot string, guarantee, piece bool) payroll.Worker {
	return payroll.Worker{
		ID:                 payroll.WorkerID(id),
		Code:               code,
		FullName:           name,
		EmployeeType:       kind,
		BaseHourlyRate:     decimal.RequireFromString(rate),
		OTMultiplier:       decimal.RequireFromString(ot),
		MinHourlyGuarantee: guarantee,
		PieceRateEnabled:   piece,
		Crew:               "North",
		Active:             true,
	}
}

// weekDays returns the first n dates of demoWeek.
func weekDays(n int) []string {
	days := []string{"2025-03-03", "2025-03-04", "2025-03-05", "2025-03-06", "2025-03-07", "2025-03-08", "2025-03-09"}
	return days[:n]
}

func (h *Handler) seedHours(ctx context.Context, worker payroll.WorkerID, dates []string, hours string, status approval.Status) error {
	for _, d := range dates {
		err := h.Store.SaveTimeEntry(ctx, sqlite.TimeEntry{
			TimeEntry: payroll.TimeEntry{
				ID:         payroll.EntryID(fmt.Sprintf("t-%s-%s", worker, d)),
				WorkerID:   worker,
				EntryDate:  d,
				TotalHours: decimal.RequireFromString(hours),
				Status:     status,
			},
			EntryMeta: sqlite.EntryMeta{SubmittedBy: "sup-demo"},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) seedProduction(ctx context.Context, id string, worker payroll.WorkerID, date, item, qty string, status approval.Status) error {
	return h.Store.SaveProductionEntry(ctx, sqlite.ProductionEntry{
		ProductionEntry: payroll.ProductionEntry{
			ID:        payroll.EntryID(id),
			WorkerID:  worker,
			EntryDate: date,
			PayItemID: payroll.PayItemID(item),
			Quantity:  decimal.RequireFromString(qty),
			Status:    status,
		},
		EntryMeta: sqlite.EntryMeta{SubmittedBy: "sup-demo"},
	})
}

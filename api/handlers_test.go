/*
handlers_test.go - HTTP tests for the payroll API

Tests for:
- Authentication and role gates
- Worker and catalog endpoints, rate-card import
- Entry submission, editing and deletion rules
- Status transitions and batch approval
- Payroll calculation, period lock and export bookkeeping
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/piecework-payroll/approval"
	"github.com/warp/piecework-payroll/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var (
	owner      = Actor{ID: "u-owner", Name: "Dana Owner", Role: approval.RoleOwner}
	manager    = Actor{ID: "u-manager", Name: "Mo Manager", Role: approval.RoleManager}
	supervisor = Actor{ID: "u-super", Name: "Sam Supervisor", Role: approval.RoleSupervisor}
	foreman    = Actor{ID: "u-foreman", Name: "Fay Foreman", Role: approval.RoleSupervisor}
)

type testServer struct {
	t      *testing.T
	h      *Handler
	ta     *jwtauth.JWTAuth
	router http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := NewHandler(store, nil)
	ta := NewTokenAuth("test-secret")
	return &testServer{
		t:      t,
		h:      h,
		ta:     ta,
		router: NewRouter(h, RouterOptions{TokenAuth: ta, AllowedOrigins: []string{"http://localhost:3000"}}),
	}
}

// do sends a request as actor. A zero actor sends no token.
func (s *testServer) do(method, path string, actor Actor, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(s.t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor.ID != "" {
		token, err := IssueToken(s.ta, actor, time.Hour)
		require.NoError(s.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// loadScenario loads a demo scenario as the owner.
func (s *testServer) loadScenario(id string) {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/scenarios/load", owner, LoadScenarioRequest{ScenarioID: id})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
}

// submitHours creates a pending time entry as actor and returns it.
func (s *testServer) submitHours(actor Actor, id, worker, date, hours string) EntryDTO {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/entries/time", actor,
		`{"id":"`+id+`","worker_id":"`+worker+`","entry_date":"`+date+`","total_hours":"`+hours+`"}`)
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[EntryDTO](s.t, rec)
}

func (s *testServer) transition(actor Actor, kind, id, to, comment string) *httptest.ResponseRecorder {
	s.t.Helper()
	return s.do(http.MethodPost, "/api/entries/"+kind+"/"+id+"/transition", actor,
		TransitionRequest{To: to, Comment: comment})
}

// =============================================================================
// AUTHENTICATION
// =============================================================================

func TestAuth_TokenRequired(t *testing.T) {
	s := newTestServer(t)

	// GIVEN: No token
	// WHEN: Calling an API route
	rec := s.do(http.MethodGet, "/api/workers", Actor{}, nil)

	// THEN: 401
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// AND: The heartbeat needs no token
	rec = s.do(http.MethodGet, "/health", Actor{}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuth_UnknownRoleRejected(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/workers", Actor{ID: "u-x", Role: "janitor"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_WrongSecretRejected(t *testing.T) {
	s := newTestServer(t)

	token, err := IssueToken(NewTokenAuth("other-secret"), owner, time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/workers", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole_SupervisorCannotManageCatalog(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/workers", supervisor, CreateWorkerRequest{
		Code: "EMP-9", FullName: "Nope", EmployeeType: "W2",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, "/api/scenarios/load", manager, LoadScenarioRequest{ScenarioID: "pay-examples"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// =============================================================================
// WORKERS AND CATALOG
// =============================================================================

func TestCreateWorker_DefaultsOvertimeByType(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/workers", manager,
		`{"id":"w-1","worker_code":"EMP-1","full_name":"Ava Chen","employee_type":"W2","base_hourly_rate":"18"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "1.5", decode[WorkerDTO](t, rec).OTMultiplier)

	rec = s.do(http.MethodPost, "/api/workers", manager,
		`{"id":"w-2","worker_code":"SUB-1","full_name":"Dee Park","employee_type":"1099","base_hourly_rate":"20"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "1", decode[WorkerDTO](t, rec).OTMultiplier)

	rec = s.do(http.MethodPost, "/api/workers", manager,
		`{"worker_code":"EMP-2","full_name":"Bad","employee_type":"W2","base_hourly_rate":"18","ot_multiplier":"0.5"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/workers/w-404", supervisor, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImportRateCard(t *testing.T) {
	s := newTestServer(t)

	// GIVEN: A rate card with a mid-year price change
	card := `{"pay_items":[{"code":"DRILL-LF","description":"Directional drilling","unit":"LF","rates":[
		{"amount":"0.85","effective_from":"2025-01-01","effective_to":"2025-06-30"},
		{"amount":"0.90","effective_from":"2025-07-01"}]}]}`

	// WHEN: Importing it
	rec := s.do(http.MethodPost, "/api/pay-items/import", manager, card)

	// THEN: Both rates are stored
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[ImportRateCardResponse](t, rec)
	assert.Equal(t, 1, resp.PayItems)
	assert.Equal(t, 2, resp.Rates)
	assert.Empty(t, resp.Warnings)

	// AND: Date lookup resolves the version in force
	rec = s.do(http.MethodGet, "/api/rates?pay_item_id=DRILL-LF&date=2025-07-15", supervisor, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "0.9", decode[RateDTO](t, rec).Amount)

	rec = s.do(http.MethodGet, "/api/rates?pay_item_id=DRILL-LF&date=2024-12-31", supervisor, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// AND: The export contains the same history
	rec = s.do(http.MethodGet, "/api/pay-items/export", supervisor, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"effective_from":"2025-07-01"`)
}

func TestImportRateCard_InvalidCardIs400(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/pay-items/import", owner,
		`{"pay_items":[{"code":"","unit":"LF","rates":[{"amount":"-1","effective_from":"nope"}]}]}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	items := decode[[]PayItemDTO](t, s.do(http.MethodGet, "/api/pay-items", owner, nil))
	assert.Empty(t, items)
}

// =============================================================================
// ENTRIES
// =============================================================================

func TestCreateEntry_ValidatesInput(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario("pay-examples")

	tests := []struct {
		name string
		body string
		code int
	}{
		{"unknown worker", `{"worker_id":"w-nobody","entry_date":"2025-03-03","total_hours":"8"}`, http.StatusBadRequest},
		{"bad date", `{"worker_id":"w-ava","entry_date":"03/03/2025","total_hours":"8"}`, http.StatusBadRequest},
		{"negative hours", `{"worker_id":"w-ava","entry_date":"2025-03-03","total_hours":"-1"}`, http.StatusBadRequest},
		{"missing hours", `{"worker_id":"w-ava","entry_date":"2025-03-03"}`, http.StatusBadRequest},
		{"unknown field", `{"worker_id":"w-ava","entry_date":"2025-03-03","total_hours":"8","hourz":1}`, http.StatusBadRequest},
		{"duplicate id", `{"id":"t-w-ava-2025-03-03","worker_id":"w-ava","entry_date":"2025-03-03","total_hours":"8"}`, http.StatusConflict},
		{"ok", `{"worker_id":"w-ava","entry_date":"2025-03-10","total_hours":"7.25"}`, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/api/entries/time", supervisor, tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}

	rec := s.do(http.MethodPost, "/api/entries/production", supervisor,
		`{"worker_id":"w-cam","entry_date":"2025-03-10","pay_item_id":"NOPE","quantity":"3"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/entries/mileage", supervisor, `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateEntry_StartsPending(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario("pay-examples")

	entry := s.submitHours(supervisor, "t-new", "w-ava", "2025-03-10", "8")

	assert.Equal(t, "pending", entry.Status)
	assert.Equal(t, "Pending Approval", entry.StatusLabel)
	assert.Equal(t, supervisor.ID, entry.SubmittedBy)
	assert.Equal(t, "8", entry.Hours)
}

func TestUpdateEntry_Permissions(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario("pay-examples")
	s.submitHours(supervisor, "t-new", "w-ava", "2025-03-10", "8")
	edit := `{"worker_id":"w-ava","entry_date":"2025-03-10","total_hours":"9"}`

	// Another supervisor may not edit someone else's pending entry
	rec := s.do(http.MethodPut, "/api/entries/time/t-new", foreman, edit)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// The submitter may, and the status stays pending
	rec = s.do(http.MethodPut, "/api/entries/time/t-new", supervisor, edit)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[EntryDTO](t, rec)
	assert.Equal(t, "9", updated.Hours)
	assert.Equal(t, "pending", updated.Status)
	assert.Equal(t, supervisor.ID, updated.SubmittedBy)

	// Approved entries are editable by the owner only
	require.Equal(t, http.StatusOK, s.transition(manager, "time", "t-new", "approved", "").Code)
	rec = s.do(http.MethodPut, "/api/entries/time/t-new", supervisor, edit)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(http.MethodPut, "/api/entries/time/t-new", manager, edit)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(http.MethodPut, "/api/entries/time/t-new", owner, edit)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "approved", decode[EntryDTO](t, rec).Status)
}

func TestListEntries_Filters(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario("approval-queue")

	pending := decode[[]EntryDTO](t, s.do(http.MethodGet,
		"/api/entries/time?start=2025-03-03&end=2025-03-09&status=pending", manager, nil))
	assert.Len(t, pending, 2)

	ava := decode[[]EntryDTO](t, s.do(http.MethodGet, "/api/entries/time?worker_id=w-ava", manager, nil))
	assert.Len(t, ava, 4)

	rec := s.do(http.MethodGet, "/api/entries/time?status=maybe", manager, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/entries/time?start=2025-03-09&end=2025-03-03", manager, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// TRANSITIONS
// =============================================================================

func TestTransition_StatusCodes(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario("pay-examples")
	s.submitHours(supervisor, "t-new", "w-ava", "2025-03-10", "8")

	// Supervisors cannot approve
	rec := s.transition(supervisor, "time", "t-new", "approved", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Rejection needs a comment
	rec = s.transition(manager, "time", "t-new", "rejected", "  ")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// pending -> locked is not a transition
	rec = s.transition(owner, "time", "t-new", "locked", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Unknown status
	rec = s.transition(owner, "time", "t-new", "archived", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown entry
	rec = s.transition(owner, "time", "t-404", "approved", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTransition_ApproveNotifiesAndAudits(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario("pay-examples")
	s.submitHours(supervisor, "t-new", "w-ava", "2025-03-10", "8")

	// WHEN: A manager approves
	rec := s.transition(manager, "time", "t-new", "approved", "Looks right")

	// THEN: The entry is approved, stamped and announced
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[TransitionResponse](t, rec)
	assert.Equal(t, "approved", resp.Entry.Status)
	assert.Equal(t, manager.ID, resp.Entry.ApprovedBy)
	assert.NotEmpty(t, resp.Entry.ApprovedAt)
	assert.Equal(t, "Timesheet Approved - Ava Chen - 2025-03-10", resp.Notification.Subject)
	assert.Contains(t, resp.Notification.Body, "Comments: Looks right")
	assert.Empty(t, resp.Warnings)

	// AND: The audit log records the change
	audit := decode[[]AuditDTO](t, s.do(http.MethodGet, "/api/audit?entity_type=time&entity_id=t-new", owner, nil))
	require.Len(t, audit, 1)
	assert.Equal(t, "Status changed from 'pending' to 'approved' by Mo Manager - Comments: Looks right", audit[0].Message)
	assert.Equal(t, manager.ID, audit[0].ActorID)
}

func TestTransition_RejectAndResubmit(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario("pay-examples")
	s.submitHours(supervisor, "t-new", "w-ava", "2025-03-10", "14")

	rec := s.transition(manager, "time", "t-new", "rejected", "14h is not plausible")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[TransitionResponse](t, rec)
	assert.Equal(t, "Timesheet Rejected - Ava Chen - 2025-03-10", resp.Notification.Subject)
	assert.Contains(t, resp.Notification.Body, "Reason: 14h is not plausible")

	// Supervisors see the resubmit action only
	actions := decode[[]ActionDTO](t, s.do(http.MethodGet, "/api/entries/time/t-new/actions", supervisor, nil))
	require.Len(t, actions, 1)
	assert.Equal(t, "pending", actions[0].To)

	rec = s.transition(supervisor, "time", "t-new", "pending", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetActions_ByRole(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario("pay-examples")
	s.submitHours(supervisor, "t-new", "w-ava", "2025-03-10", "8")

	actions := decode[[]ActionDTO](t, s.do(http.MethodGet, "/api/entries/time/t-new/actions", manager, nil))
	require.Len(t, actions, 2)
	assert.Equal(t, "approved", actions[0].To)
	assert.Equal(t, "rejected", actions[1].To)
	assert.True(t, actions[1].RequiresComment)

	actions = decode[[]ActionDTO](t, s.do(http.MethodGet, "/api/entries/time/t-new/actions", supervisor, nil))
	assert.Empty(t, actions)
}

func TestBatchApprove_PartialSuccess(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario("approval-queue")

	// GIVEN: Two pending, one rejected and one unknown entry
	ids := []string{"t-w-ava-2025-03-04", "t-w-eli-2025-03-03", "t-w-eli-2025-03-04", "t-missing"}

	// WHEN: A manager batch-approves them
	rec := s.do(http.MethodPost, "/api/entries/time/batch-approve", manager, BatchApproveRequest{IDs: ids})

	// THEN: Only the pending entries are approved
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[BatchApproveResponse](t, rec)
	assert.ElementsMatch(t, []string{"t-w-ava-2025-03-04", "t-w-eli-2025-03-03"}, resp.Approved)
	assert.ElementsMatch(t, []string{"t-w-eli-2025-03-04", "t-missing"}, resp.Rejected)
	assert.Contains(t, resp.Errors, "t-missing")
	assert.Contains(t, resp.Errors, "t-w-eli-2025-03-04")

	approved := decode[[]EntryDTO](t, s.do(http.MethodGet,
		"/api/entries/time?start=2025-03-03&end=2025-03-09&status=approved", manager, nil))
	assert.Len(t, approved, 3)
}

func TestBatchApprove_DuplicateIDs(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario("approval-queue")

	// GIVEN: A pending entry listed twice next to another pending entry
	ids := []string{"t-w-ava-2025-03-04", "t-w-ava-2025-03-04", "t-w-eli-2025-03-03", "t-missing", "t-missing"}

	// WHEN: A manager batch-approves them
	rec := s.do(http.MethodPost, "/api/entries/time/batch-approve", manager, BatchApproveRequest{IDs: ids})

	// THEN: Each entry is reported once and both pending entries are approved
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[BatchApproveResponse](t, rec)
	assert.ElementsMatch(t, []string{"t-w-ava-2025-03-04", "t-w-eli-2025-03-03"}, resp.Approved)
	assert.Equal(t, []string{"t-missing"}, resp.Rejected)

	approved := decode[[]EntryDTO](t, s.do(http.MethodGet,
		"/api/entries/time?start=2025-03-03&end=2025-03-09&status=approved", manager, nil))
	assert.Len(t, approved, 3)

	// AND: One audit row per approval
	audit := decode[[]AuditDTO](t, s.do(http.MethodGet,
		"/api/audit?entity_type=time&entity_id=t-w-ava-2025-03-04", manager, nil))
	assert.Len(t, audit, 1)
}

func TestBatchApprove_SupervisorApprovesNothing(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario("approval-queue")

	rec := s.do(http.MethodPost, "/api/entries/time/batch-approve", supervisor,
		BatchApproveRequest{IDs: []string{"t-w-ava-2025-03-04"}})

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[BatchApproveResponse](t, rec)
	assert.Empty(t, resp.Approved)
	assert.Equal(t, []string{"t-w-ava-2025-03-04"}, resp.Rejected)
}

// =============================================================================
// LOCK AND DELETE
// =============================================================================

func TestLockPeriod(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario("approval-queue")
	lock := LockRequest{PeriodStart: "2025-03-03", PeriodEnd: "2025-03-09"}

	// Managers cannot lock
	rec := s.do(http.MethodPost, "/api/payroll/lock", manager, lock)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// WHEN: The owner locks the week
	rec = s.do(http.MethodPost, "/api/payroll/lock", owner, lock)

	// THEN: Only the approved entry is locked
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[LockResponse](t, rec)
	assert.Equal(t, 1, resp.Locked)
	assert.Equal(t, 1, resp.TimeEntries)
	assert.Equal(t, 0, resp.ProductionEntries)
	assert.Equal(t, []string{"Locking 1 entries. These entries will become read-only."}, resp.Warnings)

	// AND: Locked entries can no longer change, even for the owner
	rec = s.transition(owner, "time", "t-w-ava-2025-03-03", "pending", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = s.do(http.MethodDelete, "/api/entries/time/t-w-ava-2025-03-03", owner, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = s.do(http.MethodPut, "/api/entries/time/t-w-ava-2025-03-03", owner,
		`{"worker_id":"w-ava","entry_date":"2025-03-03","total_hours":"1"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// AND: The pay period is closed
	periods := decode[[]PayPeriodDTO](t, s.do(http.MethodGet, "/api/periods", owner, nil))
	for _, p := range periods {
		assert.Equal(t, "closed", p.Status, p.ID)
	}
}

func TestDeleteEntry_OwnerOnly(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario("approval-queue")

	rec := s.do(http.MethodDelete, "/api/entries/production/p-eli-1", manager, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodDelete, "/api/entries/production/p-eli-1", owner, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodDelete, "/api/entries/production/p-eli-1", owner, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	audit := decode[[]AuditDTO](t, s.do(http.MethodGet, "/api/audit?entity_id=p-eli-1", owner, nil))
	require.Len(t, audit, 1)
	assert.Equal(t, sqlite.ActionDelete, audit[0].Action)
}

// =============================================================================
// PAYROLL
// =============================================================================

func TestCalculate_PayExamples(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario("pay-examples")

	// WHEN: Calculating the demo week
	rec := s.do(http.MethodPost, "/api/payroll/calculate", manager, CalculateRequest{
		PeriodStart: "2025-03-03", PeriodEnd: "2025-03-09",
	})

	// THEN: Each worker is paid per the rules
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	run := decode[PayrollRunDTO](t, rec)
	require.Len(t, run.Results, 3)

	byWorker := map[string]ResultDTO{}
	for _, r := range run.Results {
		byWorker[r.WorkerID] = r
	}

	ava := byWorker["w-ava"]
	assert.Equal(t, "720.00", ava.HourlyEarnings)
	assert.Equal(t, "720.00", ava.TotalPay)
	assert.Equal(t, "Hourly Only", ava.PaymentMethod)

	ben := byWorker["w-ben"]
	assert.Equal(t, "8.00", ben.OTHours)
	assert.Equal(t, "72.00", ben.OTPremium)
	assert.Equal(t, "792.00", ben.TotalPay)
	assert.Equal(t, "Hourly + OT", ben.PaymentMethod)

	cam := byWorker["w-cam"]
	assert.Equal(t, "85.00", cam.PieceEarnings)
	assert.Equal(t, "635.00", cam.MinGuaranteeApplied)
	assert.Equal(t, "720.00", cam.TotalPay)
	assert.Equal(t, "Piece Rate + Min Guarantee", cam.PaymentMethod)
	require.Len(t, cam.ProductionItems, 1)
	assert.Equal(t, "0.85", cam.ProductionItems[0].Rate)

	assert.Equal(t, "2232.00", run.Summary.TotalPayroll)
	assert.Equal(t, 3, run.Summary.TotalWorkers)
	assert.True(t, run.Validation.Valid)
	assert.Equal(t, manager.ID, run.CalculatedBy)

	// AND: The run is stored
	stored := decode[PayrollRunDTO](t, s.do(http.MethodGet, "/api/payroll/runs/"+run.ID, supervisor, nil))
	assert.Len(t, stored.Results, 3)
	runs := decode[[]PayrollRunDTO](t, s.do(http.MethodGet, "/api/payroll/runs", supervisor, nil))
	require.Len(t, runs, 1)
	assert.Empty(t, runs[0].Results)
}

func TestCalculate_ExpectedTotalMismatch(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario("pay-examples")

	rec := s.do(http.MethodPost, "/api/payroll/calculate", owner,
		`{"period_start":"2025-03-03","period_end":"2025-03-09","expected_total":"2000"}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	run := decode[PayrollRunDTO](t, rec)
	assert.False(t, run.Validation.Valid)
	assert.NotEmpty(t, run.Validation.Errors)
}

func TestCalculate_RateChangeMidWeek(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario("rate-change")

	rec := s.do(http.MethodPost, "/api/payroll/calculate", owner, CalculateRequest{
		PeriodStart: "2025-03-03", PeriodEnd: "2025-03-09",
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	run := decode[PayrollRunDTO](t, rec)
	require.Len(t, run.Results, 1)
	dee := run.Results[0]

	// 4 x 45 before the change, 4 x 50 after; the pending entry is ignored
	require.Len(t, dee.ProductionItems, 2)
	assert.Equal(t, "45", dee.ProductionItems[0].Rate)
	assert.Equal(t, "50", dee.ProductionItems[1].Rate)
	assert.Equal(t, "380.00", dee.PieceEarnings)
	assert.Equal(t, "380.00", dee.TotalPay)
	assert.Equal(t, "Piece Rate", dee.PaymentMethod)
}

func TestCalculate_Validation(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/payroll/calculate", owner,
		CalculateRequest{PeriodStart: "2025-03-09", PeriodEnd: "2025-03-03"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/payroll/calculate", supervisor,
		CalculateRequest{PeriodStart: "2025-03-03", PeriodEnd: "2025-03-09"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// =============================================================================
// PAY PERIODS
// =============================================================================

func TestPayPeriod_ExportBookkeeping(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario("pay-examples")

	rec := s.do(http.MethodPost, "/api/periods", manager, CreatePayPeriodRequest{StartDate: "2025-03-03", EndDate: "2025-03-09"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	period := decode[PayPeriodDTO](t, rec)
	assert.Equal(t, "open", period.Status)

	rec = s.do(http.MethodPost, "/api/periods", manager, CreatePayPeriodRequest{StartDate: "2025-03-03", EndDate: "2025-03-09"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Open periods cannot be exported
	rec = s.do(http.MethodPost, "/api/periods/"+period.ID+"/exported", owner, `{"total_payroll":"2232.00"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/api/payroll/lock", owner, LockRequest{PeriodStart: "2025-03-03", PeriodEnd: "2025-03-09"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/api/periods/"+period.ID+"/exported", owner, `{"total_payroll":"2232.00"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	exported := decode[PayPeriodDTO](t, rec)
	assert.Equal(t, "exported", exported.Status)
	require.NotNil(t, exported.TotalPayroll)
	assert.Equal(t, "2232.00", *exported.TotalPayroll)
	assert.Equal(t, owner.ID, exported.ExportedBy)
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestScenarios_ListAndLoad(t *testing.T) {
	s := newTestServer(t)

	list := decode[[]ScenarioDTO](t, s.do(http.MethodGet, "/api/scenarios", supervisor, nil))
	assert.Len(t, list, 3)

	rec := s.do(http.MethodGet, "/api/scenarios/current", supervisor, nil)
	assert.Equal(t, "null\n", rec.Body.String())

	for _, sc := range list {
		s.loadScenario(sc.ID)
		current := decode[ScenarioDTO](t, s.do(http.MethodGet, "/api/scenarios/current", supervisor, nil))
		assert.Equal(t, sc.ID, current.ID)
	}

	rec = s.do(http.MethodPost, "/api/scenarios/load", owner, LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScenarios_LoadReplacesData(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	s.loadScenario("pay-examples")
	s.loadScenario("rate-change")

	workers, err := s.h.Store.ListWorkers(ctx)
	require.NoError(t, err)
	require.Len(t, workers, 1)
	assert.Equal(t, "Dee Park", workers[0].FullName)
}

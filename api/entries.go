package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/warp/piecework-payroll/approval"
	"github.com/warp/piecework-payroll/payroll"
	"github.com/warp/piecework-payroll/store/sqlite"
)

// =============================================================================
// ENTRY LOOKUP
// =============================================================================

func entryKind(r *http.Request) (approval.EntryKind, error) {
	kind := approval.EntryKind(chi.URLParam(r, "kind"))
	if !kind.Valid() {
		return "", fmt.Errorf("unknown entry kind %q (use time or production)", kind)
	}
	return kind, nil
}

// getEntry loads one entry of either kind as a DTO.
func (h *Handler) getEntry(ctx context.Context, kind approval.EntryKind, id payroll.EntryID) (EntryDTO, error) {
	if kind == approval.KindTime {
		e, err := h.Store.GetTimeEntry(ctx, id)
		if err != nil {
			return EntryDTO{}, err
		}
		return toTimeEntryDTO(*e), nil
	}
	e, err := h.Store.GetProductionEntry(ctx, id)
	if err != nil {
		return EntryDTO{}, err
	}
	return toProductionEntryDTO(*e), nil
}

// =============================================================================
// ENTRY HANDLERS
// =============================================================================

// ListEntries returns entries of one kind, optionally filtered by
// ?start=&end= (both required together), ?worker_id= and ?status=.
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	kind, err := entryKind(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "Unknown entry kind", err)
		return
	}

	q := r.URL.Query()
	filter := sqlite.EntryFilter{WorkerID: payroll.WorkerID(q.Get("worker_id"))}
	if q.Get("start") != "" || q.Get("end") != "" {
		period, err := payroll.ParsePeriod(q.Get("start"), q.Get("end"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid period", err)
			return
		}
		filter.Period = &period
	}
	if status := q.Get("status"); status != "" {
		for _, s := range strings.Split(status, ",") {
			st := approval.Status(s)
			if !st.Valid() {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown status: %s", s), nil)
				return
			}
			filter.Statuses = append(filter.Statuses, st)
		}
	}

	dtos := []EntryDTO{}
	if kind == approval.KindTime {
		entries, err := h.Store.ListTimeEntries(r.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list entries", err)
			return
		}
		for _, e := range entries {
			dtos = append(dtos, toTimeEntryDTO(e))
		}
	} else {
		entries, err := h.Store.ListProductionEntries(r.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list entries", err)
			return
		}
		for _, e := range entries {
			dtos = append(dtos, toProductionEntryDTO(e))
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateEntry submits a new pending entry.
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	kind, err := entryKind(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "Unknown entry kind", err)
		return
	}

	var req EntryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		req.ID = newID()
	} else if _, err := h.Store.EntryStatus(r.Context(), kind, payroll.EntryID(req.ID)); err == nil {
		writeError(w, http.StatusConflict, "Entry already exists", sqlite.ErrDuplicate)
		return
	}

	actor, _ := ActorFrom(r.Context())
	meta := sqlite.EntryMeta{Notes: req.Notes, SubmittedBy: actor.ID}
	if err := h.saveEntry(r.Context(), kind, req, approval.StatusPending, meta); err != nil {
		writeStoreError(w, "Failed to save entry", err)
		return
	}

	dto, err := h.getEntry(r.Context(), kind, payroll.EntryID(req.ID))
	if err != nil {
		writeStoreError(w, "Failed to load entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, dto)
}

// UpdateEntry edits an entry the caller may edit. Status is unchanged.
func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	kind, err := entryKind(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "Unknown entry kind", err)
		return
	}
	id := payroll.EntryID(chi.URLParam(r, "id"))

	var req EntryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	current, err := h.getEntry(r.Context(), kind, id)
	if err != nil {
		writeStoreError(w, "Entry not found", err)
		return
	}

	actor, _ := ActorFrom(r.Context())
	status := approval.Status(current.Status)
	if !approval.CanEdit(status, actor.Role, current.SubmittedBy == actor.ID) {
		if status == approval.StatusLocked {
			writeError(w, http.StatusConflict, "Entry is locked", approval.ErrEntryLocked)
			return
		}
		writeError(w, http.StatusForbidden, fmt.Sprintf("Role '%s' cannot edit a %s entry", actor.Role, status), nil)
		return
	}

	req.ID = string(id)
	meta := sqlite.EntryMeta{Notes: req.Notes, SubmittedBy: current.SubmittedBy}
	if err := h.saveEntry(r.Context(), kind, req, status, meta); err != nil {
		writeStoreError(w, "Failed to save entry", err)
		return
	}

	dto, err := h.getEntry(r.Context(), kind, id)
	if err != nil {
		writeStoreError(w, "Failed to load entry", err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// saveEntry validates req and writes it with the given status.
func (h *Handler) saveEntry(ctx context.Context, kind approval.EntryKind, req EntryRequest, status approval.Status, meta sqlite.EntryMeta) error {
	if req.WorkerID == "" {
		return fmt.Errorf("worker_id is required: %w", sqlite.ErrInvalidReference)
	}
	if !payroll.ValidDate(req.EntryDate) {
		return fmt.Errorf("entry_date %q: %w", req.EntryDate, payroll.ErrInvalidDate)
	}

	if kind == approval.KindTime {
		if req.Hours == nil || req.Hours.IsNegative() {
			return badRequest("total_hours must be zero or more")
		}
		return h.Store.SaveTimeEntry(ctx, sqlite.TimeEntry{
			TimeEntry: payroll.TimeEntry{
				ID:         payroll.EntryID(req.ID),
				WorkerID:   payroll.WorkerID(req.WorkerID),
				EntryDate:  req.EntryDate,
				TotalHours: *req.Hours,
				Status:     status,
			},
			EntryMeta: meta,
		})
	}

	if req.PayItemID == "" {
		return badRequest("pay_item_id is required")
	}
	if req.Quantity == nil || req.Quantity.IsNegative() {
		return badRequest("quantity must be zero or more")
	}
	return h.Store.SaveProductionEntry(ctx, sqlite.ProductionEntry{
		ProductionEntry: payroll.ProductionEntry{
			ID:        payroll.EntryID(req.ID),
			WorkerID:  payroll.WorkerID(req.WorkerID),
			EntryDate: req.EntryDate,
			PayItemID: payroll.PayItemID(req.PayItemID),
			Quantity:  *req.Quantity,
			Status:    status,
		},
		EntryMeta: meta,
	})
}

// DeleteEntry removes an entry. Only owners may delete, and never a locked entry.
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	kind, err := entryKind(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "Unknown entry kind", err)
		return
	}
	id := payroll.EntryID(chi.URLParam(r, "id"))

	status, err := h.Store.EntryStatus(r.Context(), kind, id)
	if err != nil {
		writeStoreError(w, "Entry not found", err)
		return
	}

	actor, _ := ActorFrom(r.Context())
	if !approval.CanDelete(status, actor.Role) {
		if status == approval.StatusLocked {
			writeError(w, http.StatusConflict, "Entry is locked", approval.ErrEntryLocked)
			return
		}
		writeError(w, http.StatusForbidden, "Only owners can delete entries", nil)
		return
	}

	if err := h.Store.DeleteEntry(r.Context(), kind, id); err != nil {
		writeStoreError(w, "Failed to delete entry", err)
		return
	}

	err = h.Store.AppendAudit(r.Context(), sqlite.AuditEntry{
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		Action:     sqlite.ActionDelete,
		EntityType: string(kind),
		EntityID:   string(id),
		OldStatus:  string(status),
		Message:    fmt.Sprintf("%s deleted by %s", kind.Label(), actor.Name),
	})
	if err != nil {
		h.Logger.Error("audit append failed", slog.Any("error", err))
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// APPROVAL HANDLERS
// =============================================================================

// GetActions lists the status changes the caller may make.
func (h *Handler) GetActions(w http.ResponseWriter, r *http.Request) {
	kind, err := entryKind(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "Unknown entry kind", err)
		return
	}

	status, err := h.Store.EntryStatus(r.Context(), kind, payroll.EntryID(chi.URLParam(r, "id")))
	if err != nil {
		writeStoreError(w, "Entry not found", err)
		return
	}

	actor, _ := ActorFrom(r.Context())
	actions := h.Machine.AvailableActions(status, actor.Role)
	dtos := make([]ActionDTO, len(actions))
	for i, a := range actions {
		dtos[i] = ActionDTO{To: string(a.To), Label: a.Label, RequiresComment: a.RequiresComment}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// TransitionEntry moves one entry to a new status.
func (h *Handler) TransitionEntry(w http.ResponseWriter, r *http.Request) {
	kind, err := entryKind(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "Unknown entry kind", err)
		return
	}
	id := payroll.EntryID(chi.URLParam(r, "id"))

	var req TransitionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	to := approval.Status(req.To)
	if !to.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown status: %s", req.To), nil)
		return
	}

	current, err := h.getEntry(r.Context(), kind, id)
	if err != nil {
		writeStoreError(w, "Entry not found", err)
		return
	}
	from := approval.Status(current.Status)

	actor, _ := ActorFrom(r.Context())
	verdict := h.Machine.Validate(approval.Request{From: from, To: to, Role: actor.Role, Comment: req.Comment})
	if !verdict.OK {
		writeError(w, statusFor(verdict.Err), verdict.Message, verdict.Err)
		return
	}

	err = h.Store.TransitionEntries(r.Context(), kind, actor.store(), []sqlite.StatusChange{{
		ID:      id,
		From:    from,
		To:      to,
		Message: approval.AuditMessage(from, to, actor.Name, req.Comment),
	}})
	if err != nil {
		writeStoreError(w, "Failed to change status", err)
		return
	}

	updated, err := h.getEntry(r.Context(), kind, id)
	if err != nil {
		writeStoreError(w, "Failed to load entry", err)
		return
	}

	workerName := updated.WorkerID
	if worker, err := h.Store.GetWorker(r.Context(), payroll.WorkerID(updated.WorkerID)); err == nil {
		workerName = worker.FullName
	}
	note := approval.Notify(approval.NotificationDetails{
		Kind:       kind,
		From:       from,
		To:         to,
		WorkerName: workerName,
		Date:       updated.EntryDate,
		ActorName:  actor.Name,
		Comment:    req.Comment,
	})

	h.Logger.Info("entry status changed",
		slog.String("kind", string(kind)),
		slog.String("entry_id", string(id)),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
		slog.String("actor", actor.ID),
	)

	warnings := verdict.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	writeJSON(w, http.StatusOK, TransitionResponse{
		Entry:        updated,
		Warnings:     warnings,
		Notification: NotificationDTO{Subject: note.Subject, Body: note.Body},
	})
}

// BatchApprove approves every listed entry the caller may approve. Entries
// that cannot be approved are reported, not fatal. The approvals themselves
// are applied in one transaction.
func (h *Handler) BatchApprove(w http.ResponseWriter, r *http.Request) {
	kind, err := entryKind(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "Unknown entry kind", err)
		return
	}

	var req BatchApproveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids must not be empty", nil)
		return
	}

	resp := BatchApproveResponse{Approved: []string{}, Rejected: []string{}, Errors: map[string]string{}}
	refs := make([]approval.EntryRef, 0, len(req.IDs))
	statuses := make(map[string]approval.Status, len(req.IDs))
	seen := make(map[string]bool, len(req.IDs))
	for _, id := range req.IDs {
		// each ID is handled once; a repeat would fail the batch's status check
		if seen[id] {
			continue
		}
		seen[id] = true

		status, err := h.Store.EntryStatus(r.Context(), kind, payroll.EntryID(id))
		if err != nil {
			if !errors.Is(err, sqlite.ErrNotFound) {
				writeError(w, http.StatusInternalServerError, "Failed to load entries", err)
				return
			}
			resp.Rejected = append(resp.Rejected, id)
			resp.Errors[id] = "entry not found"
			continue
		}
		refs = append(refs, approval.EntryRef{ID: id, Status: status})
		statuses[id] = status
	}

	actor, _ := ActorFrom(r.Context())
	batch := h.Machine.BatchApprove(refs, actor.Role)
	resp.Rejected = append(resp.Rejected, batch.InvalidIDs...)
	for id, reason := range batch.Errors {
		resp.Errors[id] = reason
	}

	changes := make([]sqlite.StatusChange, len(batch.ValidIDs))
	for i, id := range batch.ValidIDs {
		from := statuses[id]
		changes[i] = sqlite.StatusChange{
			ID:      payroll.EntryID(id),
			From:    from,
			To:      approval.StatusApproved,
			Message: approval.AuditMessage(from, approval.StatusApproved, actor.Name, req.Comment),
		}
	}
	if len(changes) > 0 {
		if err := h.Store.TransitionEntries(r.Context(), kind, actor.store(), changes); err != nil {
			writeStoreError(w, "Failed to approve entries", err)
			return
		}
	}
	resp.Approved = append(resp.Approved, batch.ValidIDs...)

	h.Logger.Info("batch approval",
		slog.String("kind", string(kind)),
		slog.Int("approved", len(resp.Approved)),
		slog.Int("rejected", len(resp.Rejected)),
		slog.String("actor", actor.ID),
	)
	writeJSON(w, http.StatusOK, resp)
}

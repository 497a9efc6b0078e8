package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/warp/piecework-payroll/approval"
	"github.com/warp/piecework-payroll/payroll"
)

// =============================================================================
// ENTRY RECORDS
// =============================================================================

// EntryMeta is the workflow bookkeeping stored next to every entry.
type EntryMeta struct {
	Notes       string
	SubmittedBy string
	ApprovedBy  string
	ApprovedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TimeEntry is a stored time entry.
type TimeEntry struct {
	payroll.TimeEntry
	EntryMeta
}

// ProductionEntry is a stored production entry.
type ProductionEntry struct {
	payroll.ProductionEntry
	EntryMeta
}

// EntryFilter narrows entry listings. Zero fields match everything.
type EntryFilter struct {
	Period   *payroll.Period
	WorkerID payroll.WorkerID
	Statuses []approval.Status
}

// Actor identifies who performed a write, for audit rows.
type Actor struct {
	ID   string
	Name string
}

func entryTable(kind approval.EntryKind) (string, error) {
	switch kind {
	case approval.KindTime:
		return "time_entries", nil
	case approval.KindProduction:
		return "production_entries", nil
	}
	return "", fmt.Errorf("unknown entry kind %q", kind)
}

// checkSaved maps an upsert that matched an entry in another status to
// ErrConcurrentModification.
func checkSaved(op string, res sql.Result, err error) error {
	if err != nil {
		return wrapWriteError(op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: entry status changed: %w", op, ErrConcurrentModification)
	}
	return nil
}

// where builds the WHERE clause for f.
func (f EntryFilter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Period != nil {
		conds = append(conds, "entry_date BETWEEN ? AND ?")
		args = append(args, f.Period.Start, f.Period.End)
	}
	if f.WorkerID != "" {
		conds = append(conds, "worker_id = ?")
		args = append(args, f.WorkerID)
	}
	if len(f.Statuses) > 0 {
		marks, statusArgsList := statusArgs(f.Statuses)
		conds = append(conds, "status IN ("+marks+")")
		args = append(args, statusArgsList...)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// =============================================================================
// TIME ENTRIES
// =============================================================================

// SaveTimeEntry inserts or updates a time entry. New entries default to
// pending. Updates never change status: e.Status must match the stored status
// or ErrConcurrentModification is returned. Use TransitionEntries to move an
// entry between statuses.
func (s *Store) SaveTimeEntry(ctx context.Context, e TimeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.Status == "" {
		e.Status = approval.StatusPending
	}
	ts := now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO time_entries (id, worker_id, entry_date, total_hours, status, notes,
			submitted_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			worker_id = excluded.worker_id,
			entry_date = excluded.entry_date,
			total_hours = excluded.total_hours,
			notes = excluded.notes,
			updated_at = excluded.updated_at
		WHERE time_entries.status = excluded.status
	`, e.ID, e.WorkerID, e.EntryDate, e.TotalHours.String(), e.Status,
		nullString(e.Notes), nullString(e.SubmittedBy), ts, ts)
	return checkSaved("save time entry", res, err)
}

const timeEntryColumns = `id, worker_id, entry_date, total_hours, status, notes,
	submitted_by, approved_by, approved_at, created_at, updated_at`

// GetTimeEntry retrieves a time entry by ID.
func (s *Store) GetTimeEntry(ctx context.Context, id payroll.EntryID) (*TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+timeEntryColumns+" FROM time_entries WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	e, err := scanTimeEntry(rows)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListTimeEntries returns time entries matching f, ordered by date then worker.
func (s *Store) ListTimeEntries(ctx context.Context, f EntryFilter) ([]TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := f.where()
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+timeEntryColumns+" FROM time_entries"+where+" ORDER BY entry_date, worker_id, id", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query time entries: %w", err)
	}
	defer rows.Close()

	entries := []TimeEntry{}
	for rows.Next() {
		e, err := scanTimeEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanTimeEntry(rows *sql.Rows) (TimeEntry, error) {
	var (
		e     TimeEntry
		hours string
		meta  metaColumns
	)
	err := rows.Scan(&e.ID, &e.WorkerID, &e.EntryDate, &hours, &e.Status,
		&meta.notes, &meta.submittedBy, &meta.approvedBy, &meta.approvedAt, &meta.createdAt, &meta.updatedAt)
	if err != nil {
		return e, fmt.Errorf("failed to scan time entry: %w", err)
	}
	e.TotalHours = parseDecimal(hours)
	e.EntryMeta = meta.meta()
	return e, nil
}

// =============================================================================
// PRODUCTION ENTRIES
// =============================================================================

// SaveProductionEntry inserts or updates a production entry, with the same
// status rules as SaveTimeEntry.
func (s *Store) SaveProductionEntry(ctx context.Context, e ProductionEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.Status == "" {
		e.Status = approval.StatusPending
	}
	ts := now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO production_entries (id, worker_id, entry_date, pay_item_id, quantity, status,
			notes, submitted_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			worker_id = excluded.worker_id,
			entry_date = excluded.entry_date,
			pay_item_id = excluded.pay_item_id,
			quantity = excluded.quantity,
			notes = excluded.notes,
			updated_at = excluded.updated_at
		WHERE production_entries.status = excluded.status
	`, e.ID, e.WorkerID, e.EntryDate, e.PayItemID, e.Quantity.String(), e.Status,
		nullString(e.Notes), nullString(e.SubmittedBy), ts, ts)
	return checkSaved("save production entry", res, err)
}

const productionEntryColumns = `id, worker_id, entry_date, pay_item_id, quantity, status, notes,
	submitted_by, approved_by, approved_at, created_at, updated_at`

// GetProductionEntry retrieves a production entry by ID.
func (s *Store) GetProductionEntry(ctx context.Context, id payroll.EntryID) (*ProductionEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+productionEntryColumns+" FROM production_entries WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	e, err := scanProductionEntry(rows)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListProductionEntries returns production entries matching f, ordered by
// date then worker.
func (s *Store) ListProductionEntries(ctx context.Context, f EntryFilter) ([]ProductionEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := f.where()
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+productionEntryColumns+" FROM production_entries"+where+" ORDER BY entry_date, worker_id, id", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query production entries: %w", err)
	}
	defer rows.Close()

	entries := []ProductionEntry{}
	for rows.Next() {
		e, err := scanProductionEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanProductionEntry(rows *sql.Rows) (ProductionEntry, error) {
	var (
		e   ProductionEntry
		qty string
		m   metaColumns
	)
	err := rows.Scan(&e.ID, &e.WorkerID, &e.EntryDate, &e.PayItemID, &qty, &e.Status,
		&m.notes, &m.submittedBy, &m.approvedBy, &m.approvedAt, &m.createdAt, &m.updatedAt)
	if err != nil {
		return e, fmt.Errorf("failed to scan production entry: %w", err)
	}
	e.Quantity = parseDecimal(qty)
	e.EntryMeta = m.meta()
	return e, nil
}

type metaColumns struct {
	notes, submittedBy, approvedBy, approvedAt sql.NullString
	createdAt, updatedAt                       string
}

func (m metaColumns) meta() EntryMeta {
	meta := EntryMeta{
		Notes:       m.notes.String,
		SubmittedBy: m.submittedBy.String,
		ApprovedBy:  m.approvedBy.String,
		ApprovedAt:  parseTime(m.approvedAt),
	}
	if t := parseTime(sql.NullString{String: m.createdAt, Valid: true}); t != nil {
		meta.CreatedAt = *t
	}
	if t := parseTime(sql.NullString{String: m.updatedAt, Valid: true}); t != nil {
		meta.UpdatedAt = *t
	}
	return meta
}

// =============================================================================
// SHARED ENTRY OPERATIONS
// =============================================================================

// EntryStatus returns the stored status of an entry.
func (s *Store) EntryStatus(ctx context.Context, kind approval.EntryKind, id payroll.EntryID) (approval.Status, error) {
	table, err := entryTable(kind)
	if err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return entryStatus(ctx, s.db, table, id)
}

func entryStatus(ctx context.Context, db querier, table string, id payroll.EntryID) (approval.Status, error) {
	var status string
	err := db.QueryRowContext(ctx, "SELECT status FROM "+table+" WHERE id = ?", id).Scan(&status)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return approval.Status(status), nil
}

// DeleteEntry removes an entry. Locked entries are never deleted.
func (s *Store) DeleteEntry(ctx context.Context, kind approval.EntryKind, id payroll.EntryID) error {
	table, err := entryTable(kind)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM "+table+" WHERE id = ? AND status != ?", id, approval.StatusLocked)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := entryStatus(ctx, s.db, table, id); err != nil {
			return err
		}
		return approval.ErrEntryLocked
	}
	return nil
}

// StatusChange is one compare-and-set status update.
type StatusChange struct {
	ID      payroll.EntryID
	From    approval.Status
	To      approval.Status
	Message string // audit message
}

// TransitionEntries applies status changes atomically, writing one audit row
// per change. If any entry's stored status differs from its From, nothing is
// applied and ErrConcurrentModification is returned.
func (s *Store) TransitionEntries(ctx context.Context, kind approval.EntryKind, actor Actor, changes []StatusChange) error {
	table, err := entryTable(kind)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ts := now()
	for _, c := range changes {
		var approvedBy, approvedAt sql.NullString
		if c.To == approval.StatusApproved {
			approvedBy = nullString(actor.ID)
			approvedAt = nullString(ts)
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE `+table+` SET
				status = ?,
				approved_by = COALESCE(?, approved_by),
				approved_at = COALESCE(?, approved_at),
				updated_at = ?
			WHERE id = ? AND status = ?
		`, c.To, approvedBy, approvedAt, ts, c.ID, c.From)
		if err != nil {
			return fmt.Errorf("failed to update entry %s: %w", c.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			if _, err := entryStatus(ctx, tx, table, c.ID); err != nil {
				return fmt.Errorf("entry %s: %w", c.ID, err)
			}
			return fmt.Errorf("entry %s: %w", c.ID, ErrConcurrentModification)
		}

		err = appendAudit(ctx, tx, AuditEntry{
			ActorID:    actor.ID,
			ActorName:  actor.Name,
			Action:     ActionStatusChange,
			EntityType: string(kind),
			EntityID:   string(c.ID),
			OldStatus:  string(c.From),
			NewStatus:  string(c.To),
			Message:    c.Message,
		}, ts)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// CountEntries counts entries of both kinds in period with the given status.
func (s *Store) CountEntries(ctx context.Context, period payroll.Period, status approval.Status) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM time_entries WHERE status = ? AND entry_date BETWEEN ? AND ?) +
			(SELECT COUNT(*) FROM production_entries WHERE status = ? AND entry_date BETWEEN ? AND ?)
	`, status, period.Start, period.End, status, period.Start, period.End).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return n, nil
}

// LockResult reports how many entries a period lock touched.
type LockResult struct {
	TimeEntries       int
	ProductionEntries int
}

// Total returns the number of entries locked.
func (r LockResult) Total() int { return r.TimeEntries + r.ProductionEntries }

// LockPeriod moves every approved entry dated inside period to locked, marks
// a matching pay period closed and records one audit row. Runs in a single
// transaction.
func (s *Store) LockPeriod(ctx context.Context, period payroll.Period, actor Actor) (LockResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result LockResult

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ts := now()
	lock := func(table string) (int, error) {
		res, err := tx.ExecContext(ctx, `
			UPDATE `+table+` SET status = ?, updated_at = ?
			WHERE status = ? AND entry_date BETWEEN ? AND ?
		`, approval.StatusLocked, ts, approval.StatusApproved, period.Start, period.End)
		if err != nil {
			return 0, fmt.Errorf("failed to lock %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		return int(n), err
	}

	if result.TimeEntries, err = lock("time_entries"); err != nil {
		return result, err
	}
	if result.ProductionEntries, err = lock("production_entries"); err != nil {
		return result, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE pay_periods SET status = ?
		WHERE start_date = ? AND end_date = ? AND status = ?
	`, PeriodClosed, period.Start, period.End, PeriodOpen)
	if err != nil {
		return result, fmt.Errorf("failed to close pay period: %w", err)
	}

	err = appendAudit(ctx, tx, AuditEntry{
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		Action:     ActionLockPeriod,
		EntityType: "pay_period",
		EntityID:   period.String(),
		OldStatus:  string(approval.StatusApproved),
		NewStatus:  string(approval.StatusLocked),
		Message: fmt.Sprintf("Locked %d entries (%d time, %d production) for period %s by %s",
			result.Total(), result.TimeEntries, result.ProductionEntries, period, actor.Name),
	}, ts)
	if err != nil {
		return result, err
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("failed to commit lock: %w", err)
	}
	return result, nil
}

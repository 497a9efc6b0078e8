package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Audit actions.
const (
	ActionStatusChange = "status_change"
	ActionLockPeriod   = "lock_period"
	ActionCalculate    = "calculate_payroll"
	ActionDelete       = "delete_entry"
	ActionImport       = "import_rate_card"
)

// AuditEntry is one append-only audit row.
type AuditEntry struct {
	ID         string
	ActorID    string
	ActorName  string
	Action     string
	EntityType string
	EntityID   string
	OldStatus  string
	NewStatus  string
	Message    string
	CreatedAt  time.Time
}

// AuditFilter narrows ListAudit. Zero fields match everything.
type AuditFilter struct {
	EntityType string
	EntityID   string
	Limit      int
}

// AppendAudit records an audit row outside any status change.
func (s *Store) AppendAudit(ctx context.Context, e AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendAudit(ctx, s.db, e, now())
}

func appendAudit(ctx context.Context, db execer, e AuditEntry, ts string) error {
	if e.ID == "" {
		e.ID = newID()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_id, actor_name, action, entity_type, entity_id,
			old_status, new_status, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, nullString(e.ActorID), nullString(e.ActorName), e.Action,
		nullString(e.EntityType), nullString(e.EntityID),
		nullString(e.OldStatus), nullString(e.NewStatus), e.Message, ts)
	if err != nil {
		return fmt.Errorf("failed to append audit: %w", err)
	}
	return nil
}

// ListAudit returns audit rows oldest first.
func (s *Store) ListAudit(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, actor_id, actor_name, action, entity_type, entity_id,
		old_status, new_status, message, created_at FROM audit_logs WHERE 1 = 1`
	var args []any
	if f.EntityType != "" {
		query += " AND entity_type = ?"
		args = append(args, f.EntityType)
	}
	if f.EntityID != "" {
		query += " AND entity_id = ?"
		args = append(args, f.EntityID)
	}
	query += " ORDER BY created_at, rowid"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	entries := []AuditEntry{}
	for rows.Next() {
		var (
			e                              AuditEntry
			actorID, actorName, etype, eid sql.NullString
			oldStatus, newStatus           sql.NullString
			createdAt                      string
		)
		err := rows.Scan(&e.ID, &actorID, &actorName, &e.Action, &etype, &eid,
			&oldStatus, &newStatus, &e.Message, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		e.ActorID = actorID.String
		e.ActorName = actorName.String
		e.EntityType = etype.String
		e.EntityID = eid.String
		e.OldStatus = oldStatus.String
		e.NewStatus = newStatus.String
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

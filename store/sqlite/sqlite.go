/*
Package sqlite provides SQLite-backed persistence for the payroll system.

PURPOSE:
  Stores everything the calculation engine and the approval workflow read
  or produce: workers, the pay-item catalog, rate versions, time and
  production entries, pay periods, payroll runs and the audit log. The
  engine itself never touches this package; the API layer loads records
  here and hands plain values to payroll and approval.

KEY TABLES:
  workers:            Pay configuration per worker
  pay_items:          Piece-rate catalog
  rates:              Time-versioned price per pay item
  time_entries:       Hours per worker per day, with approval status
  production_entries: Units per worker per day, with approval status
  pay_periods:        open → closed → exported
  payroll_runs:       One calculation run (summary + validation)
  payroll_results:    Per-worker results of a run
  audit_logs:         Append-only record of who changed what

STATUS CHANGES:
  Entry status is only changed through TransitionEntries and LockPeriod.
  Both compare the stored status with the caller's expected "from" status
  inside a SQL transaction, so a late approval racing a payroll lock
  surfaces as ErrConcurrentModification instead of a silent overwrite.

DECIMALS:
  Money, hours and quantities are stored as TEXT (decimal string form) to
  avoid float drift.

CONCURRENCY:
  Uses sync.RWMutex around the handle; SQLite runs in WAL mode.

USAGE:
  store, err := sqlite.New("./data/payroll.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - payroll/types.go:  Record shapes
  - approval/status.go: Entry statuses
  - api/handlers.go:   Main consumer
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/piecework-payroll/approval"
	"github.com/warp/piecework-payroll/payroll"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConcurrentModification is returned when an entry's status changed
	// between read and write.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrDuplicate is returned on unique constraint violations.
	ErrDuplicate = errors.New("duplicate record")

	// ErrInvalidReference is returned when a row points at a missing parent.
	ErrInvalidReference = errors.New("referenced record does not exist")
)

// Store implements persistence using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// each :memory: connection is its own database
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS workers (
		id TEXT PRIMARY KEY,
		worker_code TEXT NOT NULL UNIQUE,
		full_name TEXT NOT NULL,
		employee_type TEXT NOT NULL CHECK (employee_type IN ('W2', '1099')),
		base_hourly_rate TEXT NOT NULL,
		ot_multiplier TEXT NOT NULL,
		min_hourly_guarantee INTEGER NOT NULL DEFAULT 0,
		piece_rate_enabled INTEGER NOT NULL DEFAULT 0,
		crew TEXT,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS pay_items (
		id TEXT PRIMARY KEY,
		item_code TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL,
		unit TEXT NOT NULL,
		category TEXT,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS rates (
		id TEXT PRIMARY KEY,
		pay_item_id TEXT NOT NULL REFERENCES pay_items(id),
		rate_amount TEXT NOT NULL,
		effective_from TEXT NOT NULL,
		effective_to TEXT,
		context_notes TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rates_pay_item
		ON rates(pay_item_id, effective_from);

	CREATE TABLE IF NOT EXISTS time_entries (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL REFERENCES workers(id),
		entry_date TEXT NOT NULL,
		total_hours TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		notes TEXT,
		submitted_by TEXT,
		approved_by TEXT,
		approved_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_time_entries_date
		ON time_entries(entry_date, worker_id);
	CREATE INDEX IF NOT EXISTS idx_time_entries_status
		ON time_entries(status);

	CREATE TABLE IF NOT EXISTS production_entries (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL REFERENCES workers(id),
		entry_date TEXT NOT NULL,
		pay_item_id TEXT NOT NULL REFERENCES pay_items(id),
		quantity TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		notes TEXT,
		submitted_by TEXT,
		approved_by TEXT,
		approved_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_production_entries_date
		ON production_entries(entry_date, worker_id);
	CREATE INDEX IF NOT EXISTS idx_production_entries_status
		ON production_entries(status);

	CREATE TABLE IF NOT EXISTS pay_periods (
		id TEXT PRIMARY KEY,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'open',
		total_payroll TEXT,
		exported_at TEXT,
		exported_by TEXT,
		created_at TEXT NOT NULL,
		UNIQUE (start_date, end_date)
	);

	CREATE TABLE IF NOT EXISTS payroll_runs (
		id TEXT PRIMARY KEY,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		total_payroll TEXT NOT NULL,
		summary_json TEXT NOT NULL,
		validation_json TEXT NOT NULL,
		calculated_by TEXT,
		calculated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS payroll_results (
		run_id TEXT NOT NULL REFERENCES payroll_runs(id),
		position INTEGER NOT NULL,
		worker_id TEXT NOT NULL,
		total_pay TEXT NOT NULL,
		result_json TEXT NOT NULL,
		PRIMARY KEY (run_id, position)
	);

	-- Append-only
	CREATE TABLE IF NOT EXISTS audit_logs (
		id TEXT PRIMARY KEY,
		actor_id TEXT,
		actor_name TEXT,
		action TEXT NOT NULL,
		entity_type TEXT,
		entity_id TEXT,
		old_status TEXT,
		new_status TEXT,
		message TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_entity
		ON audit_logs(entity_type, entity_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Reset clears all data. Used by demo scenarios.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"payroll_results", "payroll_runs", "audit_logs", "pay_periods",
		"production_entries", "time_entries", "rates", "pay_items", "workers",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// WORKERS
// =============================================================================

// SaveWorker inserts or updates a worker.
func (s *Store) SaveWorker(ctx context.Context, w payroll.Worker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO workers (id, worker_code, full_name, employee_type, base_hourly_rate,
			ot_multiplier, min_hourly_guarantee, piece_rate_enabled, crew, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			worker_code = excluded.worker_code,
			full_name = excluded.full_name,
			employee_type = excluded.employee_type,
			base_hourly_rate = excluded.base_hourly_rate,
			ot_multiplier = excluded.ot_multiplier,
			min_hourly_guarantee = excluded.min_hourly_guarantee,
			piece_rate_enabled = excluded.piece_rate_enabled,
			crew = excluded.crew,
			active = excluded.active
	`

	_, err := s.db.ExecContext(ctx, query,
		w.ID, w.Code, w.FullName, w.EmployeeType,
		w.BaseHourlyRate.String(), w.OTMultiplier.String(),
		w.MinHourlyGuarantee, w.PieceRateEnabled,
		nullString(w.Crew), w.Active,
		now(),
	)
	return wrapWriteError("save worker", err)
}

const workerColumns = `id, worker_code, full_name, employee_type, base_hourly_rate, ot_multiplier,
	min_hourly_guarantee, piece_rate_enabled, crew, active`

// GetWorker retrieves a worker by ID.
func (s *Store) GetWorker(ctx context.Context, id payroll.WorkerID) (*payroll.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+workerColumns+" FROM workers WHERE id = ?", id)
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
	w, err := scanWorker(rows)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// ListWorkers returns workers ordered by name. Inactive workers are included;
// the engine skips them.
func (s *Store) ListWorkers(ctx context.Context) ([]payroll.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+workerColumns+" FROM workers ORDER BY full_name, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query workers: %w", err)
	}
	defer rows.Close()

	workers := []payroll.Worker{}
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, err
		}
		workers = append(workers, w)
	}
	return workers, rows.Err()
}

func scanWorker(rows *sql.Rows) (payroll.Worker, error) {
	var (
		w            payroll.Worker
		baseRate, ot string
		crew         sql.NullString
	)
	err := rows.Scan(&w.ID, &w.Code, &w.FullName, &w.EmployeeType, &baseRate, &ot,
		&w.MinHourlyGuarantee, &w.PieceRateEnabled, &crew, &w.Active)
	if err != nil {
		return w, fmt.Errorf("failed to scan worker: %w", err)
	}
	w.BaseHourlyRate = parseDecimal(baseRate)
	w.OTMultiplier = parseDecimal(ot)
	w.Crew = crew.String
	return w, nil
}

// =============================================================================
// PAY ITEMS AND RATES
// =============================================================================

// SavePayItem inserts or updates a catalog row.
func (s *Store) SavePayItem(ctx context.Context, item payroll.PayItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return wrapWriteError("save pay item", savePayItem(ctx, s.db, item))
}

func savePayItem(ctx context.Context, db execer, item payroll.PayItem) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO pay_items (id, item_code, description, unit, category, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			item_code = excluded.item_code,
			description = excluded.description,
			unit = excluded.unit,
			category = excluded.category,
			active = excluded.active
	`, item.ID, item.Code, item.Description, item.Unit, nullString(item.Category), item.Active, now())
	return err
}

// ListPayItems returns the catalog ordered by code.
func (s *Store) ListPayItems(ctx context.Context) ([]payroll.PayItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, item_code, description, unit, category, active FROM pay_items ORDER BY item_code")
	if err != nil {
		return nil, fmt.Errorf("failed to query pay items: %w", err)
	}
	defer rows.Close()

	items := []payroll.PayItem{}
	for rows.Next() {
		var (
			item     payroll.PayItem
			category sql.NullString
		)
		if err := rows.Scan(&item.ID, &item.Code, &item.Description, &item.Unit, &category, &item.Active); err != nil {
			return nil, fmt.Errorf("failed to scan pay item: %w", err)
		}
		item.Category = category.String
		items = append(items, item)
	}
	return items, rows.Err()
}

// SaveRate inserts or updates a rate version.
func (s *Store) SaveRate(ctx context.Context, r payroll.Rate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return wrapWriteError("save rate", saveRate(ctx, s.db, r))
}

func saveRate(ctx context.Context, db execer, r payroll.Rate) error {
	var to sql.NullString
	if r.EffectiveTo != nil {
		to = sql.NullString{String: *r.EffectiveTo, Valid: true}
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO rates (id, pay_item_id, rate_amount, effective_from, effective_to, context_notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			pay_item_id = excluded.pay_item_id,
			rate_amount = excluded.rate_amount,
			effective_from = excluded.effective_from,
			effective_to = excluded.effective_to,
			context_notes = excluded.context_notes
	`, r.ID, r.PayItemID, r.Amount.String(), r.EffectiveFrom, to, nullString(r.Notes), now())
	return err
}

// ListRates returns every rate version, ordered by pay item then start date.
// The engine does its own date lookup, so nothing is filtered here.
func (s *Store) ListRates(ctx context.Context) ([]payroll.Rate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pay_item_id, rate_amount, effective_from, effective_to, context_notes
		FROM rates ORDER BY pay_item_id, effective_from, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rates: %w", err)
	}
	defer rows.Close()

	rates := []payroll.Rate{}
	for rows.Next() {
		var (
			r      payroll.Rate
			amount string
			to     sql.NullString
			notes  sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.PayItemID, &amount, &r.EffectiveFrom, &to, &notes); err != nil {
			return nil, fmt.Errorf("failed to scan rate: %w", err)
		}
		r.Amount = parseDecimal(amount)
		if to.Valid {
			v := to.String
			r.EffectiveTo = &v
		}
		r.Notes = notes.String
		rates = append(rates, r)
	}
	return rates, rows.Err()
}

// ImportCatalog saves pay items and rates in one transaction.
func (s *Store) ImportCatalog(ctx context.Context, items []payroll.PayItem, rates []payroll.Rate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, item := range items {
		if err := savePayItem(ctx, tx, item); err != nil {
			return wrapWriteError("import pay item "+item.Code, err)
		}
	}
	for _, r := range rates {
		if err := saveRate(ctx, tx, r); err != nil {
			return wrapWriteError("import rate "+string(r.ID), err)
		}
	}
	return tx.Commit()
}

// =============================================================================
// HELPERS
// =============================================================================

func now() string { return time.Now().UTC().Format(time.RFC3339) }

func newID() string { return uuid.NewString() }

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

func wrapWriteError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case isUniqueConstraintError(err):
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	case isForeignKeyError(err):
		return fmt.Errorf("%s: %w", op, ErrInvalidReference)
	default:
		return fmt.Errorf("failed to %s: %w", op, err)
	}
}

// statusArgs renders statuses for an IN clause.
func statusArgs(statuses []approval.Status) (string, []any) {
	marks := make([]string, len(statuses))
	args := make([]any, len(statuses))
	for i, st := range statuses {
		marks[i] = "?"
		args[i] = string(st)
	}
	return strings.Join(marks, ", "), args
}

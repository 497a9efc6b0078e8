package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/piecework-payroll/payroll"
)

// =============================================================================
// PAY PERIODS
// =============================================================================

type PeriodStatus string

const (
	PeriodOpen     PeriodStatus = "open"
	PeriodClosed   PeriodStatus = "closed"
	PeriodExported PeriodStatus = "exported"
)

// PayPeriod is a bookkeeping row for a payroll window.
type PayPeriod struct {
	ID           string
	Period       payroll.Period
	Status       PeriodStatus
	TotalPayroll *decimal.Decimal
	ExportedAt   *time.Time
	ExportedBy   string
}

// CreatePayPeriod inserts an open pay period. Reusing the bounds of an
// existing period returns ErrDuplicate.
func (s *Store) CreatePayPeriod(ctx context.Context, p PayPeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.Status == "" {
		p.Status = PeriodOpen
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pay_periods (id, start_date, end_date, status, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, p.ID, p.Period.Start, p.Period.End, p.Status, now())
	return wrapWriteError("create pay period", err)
}

const payPeriodColumns = "id, start_date, end_date, status, total_payroll, exported_at, exported_by"

// GetPayPeriod retrieves a pay period by ID.
func (s *Store) GetPayPeriod(ctx context.Context, id string) (*PayPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+payPeriodColumns+" FROM pay_periods WHERE id = ?", id)
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
	p, err := scanPayPeriod(rows)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPayPeriods returns pay periods, most recent first.
func (s *Store) ListPayPeriods(ctx context.Context) ([]PayPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+payPeriodColumns+" FROM pay_periods ORDER BY start_date DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query pay periods: %w", err)
	}
	defer rows.Close()

	periods := []PayPeriod{}
	for rows.Next() {
		p, err := scanPayPeriod(rows)
		if err != nil {
			return nil, err
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

// MarkPeriodExported records the exported total of a closed period.
func (s *Store) MarkPeriodExported(ctx context.Context, id string, total decimal.Decimal, actor Actor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE pay_periods SET status = ?, total_payroll = ?, exported_at = ?, exported_by = ?
		WHERE id = ? AND status = ?
	`, PeriodExported, total.String(), now(), nullString(actor.ID), id, PeriodClosed)
	if err != nil {
		return fmt.Errorf("failed to export pay period: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var status string
		err := s.db.QueryRowContext(ctx, "SELECT status FROM pay_periods WHERE id = ?", id).Scan(&status)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return fmt.Errorf("pay period is %s, not closed: %w", status, ErrConcurrentModification)
	}
	return nil
}

func scanPayPeriod(rows *sql.Rows) (PayPeriod, error) {
	var (
		p                     PayPeriod
		total, at, exportedBy sql.NullString
	)
	if err := rows.Scan(&p.ID, &p.Period.Start, &p.Period.End, &p.Status, &total, &at, &exportedBy); err != nil {
		return p, fmt.Errorf("failed to scan pay period: %w", err)
	}
	if total.Valid {
		d := parseDecimal(total.String)
		p.TotalPayroll = &d
	}
	p.ExportedAt = parseTime(at)
	p.ExportedBy = exportedBy.String
	return p, nil
}

// =============================================================================
// PAYROLL RUNS
// =============================================================================

// PayrollRun is one stored calculation with its results.
type PayrollRun struct {
	ID           string
	Period       payroll.Period
	Results      []payroll.Result
	Summary      payroll.Summary
	Validation   payroll.Validation
	CalculatedBy string
	CalculatedAt time.Time
}

// SavePayrollRun stores a run and its per-worker results in one transaction.
func (s *Store) SavePayrollRun(ctx context.Context, run PayrollRun) error {
	summary, err := json.Marshal(run.Summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	validation, err := json.Marshal(run.Validation)
	if err != nil {
		return fmt.Errorf("failed to encode validation: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	calculatedAt := run.CalculatedAt
	if calculatedAt.IsZero() {
		calculatedAt = time.Now().UTC()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO payroll_runs (id, period_start, period_end, total_payroll, summary_json,
			validation_json, calculated_by, calculated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Period.Start, run.Period.End, run.Summary.TotalPayroll.String(),
		string(summary), string(validation), nullString(run.CalculatedBy), calculatedAt.Format(time.RFC3339))
	if err != nil {
		return wrapWriteError("save payroll run", err)
	}

	for i, r := range run.Results {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to encode result for %s: %w", r.WorkerID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO payroll_results (run_id, position, worker_id, total_pay, result_json)
			VALUES (?, ?, ?, ?, ?)
		`, run.ID, i, r.WorkerID, r.TotalPay.String(), string(data))
		if err != nil {
			return fmt.Errorf("failed to save result for %s: %w", r.WorkerID, err)
		}
	}

	return tx.Commit()
}

// GetPayrollRun retrieves a run with its results in original order.
func (s *Store) GetPayrollRun(ctx context.Context, id string) (*PayrollRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, runSelect+" WHERE id = ?", id)
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
	run, err := scanRun(rows)
	if err != nil {
		return nil, err
	}
	rows.Close()

	resultRows, err := s.db.QueryContext(ctx,
		"SELECT result_json FROM payroll_results WHERE run_id = ? ORDER BY position", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer resultRows.Close()

	run.Results = []payroll.Result{}
	for resultRows.Next() {
		var data string
		if err := resultRows.Scan(&data); err != nil {
			return nil, err
		}
		var r payroll.Result
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("failed to decode result: %w", err)
		}
		run.Results = append(run.Results, r)
	}
	return &run, resultRows.Err()
}

// ListPayrollRuns returns runs without their results, newest first.
func (s *Store) ListPayrollRuns(ctx context.Context) ([]PayrollRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, runSelect+" ORDER BY calculated_at DESC, rowid DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query payroll runs: %w", err)
	}
	defer rows.Close()

	runs := []PayrollRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

const runSelect = `SELECT id, period_start, period_end, summary_json, validation_json,
	calculated_by, calculated_at FROM payroll_runs`

func scanRun(rows *sql.Rows) (PayrollRun, error) {
	var (
		run                 PayrollRun
		summary, validation string
		calculatedBy        sql.NullString
		calculatedAt        string
	)
	err := rows.Scan(&run.ID, &run.Period.Start, &run.Period.End, &summary, &validation,
		&calculatedBy, &calculatedAt)
	if err != nil {
		return run, fmt.Errorf("failed to scan payroll run: %w", err)
	}
	if err := json.Unmarshal([]byte(summary), &run.Summary); err != nil {
		return run, fmt.Errorf("failed to decode summary: %w", err)
	}
	if err := json.Unmarshal([]byte(validation), &run.Validation); err != nil {
		return run, fmt.Errorf("failed to decode validation: %w", err)
	}
	run.CalculatedBy = calculatedBy.String
	run.CalculatedAt, _ = time.Parse(time.RFC3339, calculatedAt)
	return run, nil
}

// HasPayrollRun reports whether any run was stored for exactly period.
func (s *Store) HasPayrollRun(ctx context.Context, period payroll.Period) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM payroll_runs WHERE period_start = ? AND period_end = ?",
		period.Start, period.End).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check payroll runs: %w", err)
	}
	return n > 0, nil
}

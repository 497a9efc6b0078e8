/*
scheduler.go - Automated payroll calculation scheduler

PURPOSE:
  Periodically looks for open pay periods whose end date has passed and
  calculates a payroll run for each one, so the owner finds draft numbers
  waiting when they sit down to review and lock.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Detects open pay periods ending before today
  - Skips periods that already have a stored run (manual or automatic)
  - Runs are recorded and audited exactly like manual calculations,
    with the scheduler as the actor

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewPayrollScheduler(handler, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - payroll.go: RunPayroll, shared with POST /api/payroll/calculate
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/piecework-payroll/store/sqlite"
)

// SchedulerActor is recorded as the author of automatic runs.
var SchedulerActor = sqlite.Actor{ID: "system", Name: "Payroll Scheduler"}

// PayrollScheduler calculates payroll for ended, open pay periods.
type PayrollScheduler struct {
	Handler       *Handler
	Logger        *slog.Logger
	CheckInterval time.Duration
	Enabled       bool

	// Now returns the current time. Replaced in tests.
	Now func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewPayrollScheduler creates a new scheduler.
func NewPayrollScheduler(handler *Handler, logger *slog.Logger) *PayrollScheduler {
	if logger == nil {
		logger = handler.Logger
	}
	return &PayrollScheduler{
		Handler:       handler,
		Logger:        logger.With(slog.String("component", "scheduler")),
		CheckInterval: time.Hour,
		Enabled:       true,
		Now:           time.Now,
	}
}

// Start begins the scheduler.
func (ps *PayrollScheduler) Start() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if !ps.Enabled {
		ps.Logger.Info("scheduler disabled, not starting")
		return
	}
	if ps.ticker != nil {
		return
	}

	ps.ticker = time.NewTicker(ps.CheckInterval)
	ps.stop = make(chan struct{})
	ps.wg.Add(1)

	go ps.run()

	ps.Logger.Info("scheduler started", slog.Duration("interval", ps.CheckInterval))
}

// Stop stops the scheduler and waits for an in-flight check to finish.
func (ps *PayrollScheduler) Stop() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.ticker == nil {
		return
	}
	ps.ticker.Stop()
	close(ps.stop)
	ps.wg.Wait()
	ps.ticker = nil
	ps.Logger.Info("scheduler stopped")
}

func (ps *PayrollScheduler) run() {
	defer ps.wg.Done()

	// Run immediately on start
	ps.checkAndProcess(context.Background())

	for {
		select {
		case <-ps.ticker.C:
			ps.checkAndProcess(context.Background())
		case <-ps.stop:
			return
		}
	}
}

// SchedulerReport counts what one check did.
type SchedulerReport struct {
	Calculated int
	Skipped    int
	Failed     int
}

func (ps *PayrollScheduler) checkAndProcess(ctx context.Context) SchedulerReport {
	var report SchedulerReport
	today := ps.Now().UTC().Format("2006-01-02")

	periods, err := ps.Handler.Store.ListPayPeriods(ctx)
	if err != nil {
		ps.Logger.Error("failed to list pay periods", slog.Any("error", err))
		return report
	}

	for _, p := range periods {
		// ISO dates order lexically.
		if p.Status != sqlite.PeriodOpen || p.Period.End >= today {
			continue
		}

		done, err := ps.Handler.Store.HasPayrollRun(ctx, p.Period)
		if err != nil {
			ps.Logger.Error("failed to check payroll runs",
				slog.String("period", p.Period.String()), slog.Any("error", err))
			report.Failed++
			continue
		}
		if done {
			report.Skipped++
			continue
		}

		if _, err := ps.Handler.RunPayroll(ctx, p.Period, nil, SchedulerActor); err != nil {
			ps.Logger.Error("automatic payroll run failed",
				slog.String("period", p.Period.String()), slog.Any("error", err))
			report.Failed++
			continue
		}
		report.Calculated++
	}

	if report.Calculated > 0 || report.Failed > 0 {
		ps.Logger.Info("scheduler check complete",
			slog.Int("calculated", report.Calculated),
			slog.Int("skipped", report.Skipped),
			slog.Int("failed", report.Failed),
		)
	}
	return report
}

// RunNow triggers an immediate check.
func (ps *PayrollScheduler) RunNow(ctx context.Context) SchedulerReport {
	return ps.checkAndProcess(ctx)
}

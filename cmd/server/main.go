/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the piecework payroll server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, then flags)
  2. Initialize SQLite store
  3. Create API handler with dependencies
  4. Configure HTTP router
  5. Start the payroll scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides APP_PORT)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for in-memory database

ENVIRONMENT:
  APP_PORT, APP_ENV, LOG_LEVEL, DB_PATH, JWT_SECRET, CORS_ORIGINS,
  PAYROLL_DIAGNOSTICS, PAYROLL_SCHEDULE_INTERVAL. See config/config.go.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  # Run with file database
  ./server -db="./data/payroll.db"

  # Run with in-memory database and a dev token printed at startup
  APP_ENV=development JWT_SECRET=dev ./server -db=":memory:"

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/httplog/v3"
	"github.com/warp/piecework-payroll/api"
	"github.com/warp/piecework-payroll/approval"
	"github.com/warp/piecework-payroll/config"
	"github.com/warp/piecework-payroll/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Flags
	port := flag.Int("port", cfg.App.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.Database.Path, "SQLite database path")
	flag.Parse()

	level, _ := cfg.SlogLevel()
	logFormat := httplog.SchemaECS.Concise(!cfg.IsProduction())
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "piecework-payroll"),
		slog.String("env", cfg.App.Env),
	)
	slog.SetDefault(logger)

	// Initialize store
	if *dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(*dbPath), 0o755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	store, err := sqlite.New(*dbPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	// Initialize handler
	handler := api.NewHandler(store, logger)
	handler.Calculator.ReportSkipped = cfg.Payroll.Diagnostics

	secret := cfg.JWT.Secret
	if secret == "" {
		secret = "dev-secret"
		logger.Warn("JWT_SECRET not set, using an insecure development secret")
	}
	tokenAuth := api.NewTokenAuth(secret)
	if !cfg.IsProduction() {
		token, err := api.IssueToken(tokenAuth, api.Actor{ID: "dev-owner", Name: "Dev Owner", Role: approval.RoleOwner}, 24*time.Hour)
		if err == nil {
			logger.Info("development owner token", slog.String("token", token))
		}
	}

	router := api.NewRouter(handler, api.RouterOptions{
		Logger:         logger,
		TokenAuth:      tokenAuth,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})

	scheduler := api.NewPayrollScheduler(handler, logger)
	scheduler.Enabled = cfg.Payroll.ScheduleInterval > 0
	if scheduler.Enabled {
		scheduler.CheckInterval = cfg.Payroll.ScheduleInterval
	}
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.Int("port", *port), slog.String("db", *dbPath))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

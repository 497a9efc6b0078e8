/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. CORS:          Cross-origin requests for the frontend
  2. RequestLogger: Structured request logs (httplog, ECS schema)
  3. RequestID:     Unique ID per request for tracing
  4. CleanPath:     Collapse double slashes before routing
  5. Recoverer:     Panic recovery (500 instead of crash)
  6. Heartbeat:     GET /health for load balancers, no auth

AUTHENTICATION:
  Everything under /api requires a bearer JWT (jwtauth.Verifier +
  RequireActor). Role gates on top of that:
  - owner, manager:  worker and catalog writes, payroll calculation
  - owner:           period lock, export bookkeeping, scenario loading
  Per-entry transitions are gated by the approval machine, not here, so
  that the caller gets the machine's message.

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Token verification and role middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"io"
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
	"github.com/warp/piecework-payroll/approval"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	// Logger receives request logs. It should be built with the ECS
	// ReplaceAttr so field names match the schema.
	Logger         *slog.Logger
	TokenAuth      *jwtauth.JWTAuth
	AllowedOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelInfo,
		Schema: httplog.SchemaECS,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.CleanPath)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/health"))

	ownerOrManager := RequireRole(approval.RoleOwner, approval.RoleManager)
	ownerOnly := RequireRole(approval.RoleOwner)

	r.Route("/api", func(r chi.Router) {
		r.Use(jwtauth.Verifier(opts.TokenAuth))
		r.Use(RequireActor)

		// Worker routes
		r.Route("/workers", func(r chi.Router) {
			r.Get("/", h.ListWorkers)
			r.Get("/{id}", h.GetWorker)
			r.With(ownerOrManager).Post("/", h.CreateWorker)
		})

		// Catalog routes
		r.Route("/pay-items", func(r chi.Router) {
			r.Get("/", h.ListPayItems)
			r.Get("/export", h.ExportRateCard)
			r.Group(func(r chi.Router) {
				r.Use(ownerOrManager)
				r.Post("/", h.CreatePayItem)
				r.Post("/import", h.ImportRateCard)
			})
		})
		r.Route("/rates", func(r chi.Router) {
			r.Get("/", h.ListRates)
			r.With(ownerOrManager).Post("/", h.CreateRate)
		})

		// Entry and approval routes
		r.Route("/entries/{kind}", func(r chi.Router) {
			r.Get("/", h.ListEntries)
			r.Post("/", h.CreateEntry)
			r.Post("/batch-approve", h.BatchApprove)
			r.Put("/{id}", h.UpdateEntry)
			r.Delete("/{id}", h.DeleteEntry)
			r.Get("/{id}/actions", h.GetActions)
			r.Post("/{id}/transition", h.TransitionEntry)
		})

		// Payroll routes
		r.Route("/payroll", func(r chi.Router) {
			r.Get("/runs", h.ListRuns)
			r.Get("/runs/{id}", h.GetRun)
			r.With(ownerOrManager).Post("/calculate", h.Calculate)
			r.Post("/lock", h.LockPeriod)
		})

		// Pay period routes
		r.Route("/periods", func(r chi.Router) {
			r.Get("/", h.ListPeriods)
			r.With(ownerOrManager).Post("/", h.CreatePeriod)
			r.With(ownerOnly).Post("/{id}/exported", h.MarkExported)
		})

		r.Get("/audit", h.ListAudit)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.With(ownerOnly).Post("/load", h.LoadScenario)
		})
	})

	return r
}

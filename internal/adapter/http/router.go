package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/coopledger/internal/adapter/http/handler"
	"github.com/iho/coopledger/internal/adapter/http/middleware"
	"github.com/iho/coopledger/internal/infrastructure/metrics"
	"github.com/iho/coopledger/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	RecordHandler    *handler.RecordHandler
	LedgerHandler    *handler.LedgerHandler
	LoanHandler      *handler.LoanHandler
	MaturityHandler  *handler.MaturityHandler
	ReportHandler    *handler.ReportHandler
	HealthHandler    *handler.HealthHandler
	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	RateLimiter      *middleware.RateLimiter
	Metrics          *metrics.Metrics
	// MetricsHandler serves /metrics. Defaults to promhttp.Handler().
	MetricsHandler http.Handler
	Logger         zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)

	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Actor)

		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			idempotencyMiddleware := middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL, cfg.Logger)
			r.Use(idempotencyMiddleware.Wrap)
		}

		// Records
		r.Route("/records", func(r chi.Router) {
			r.Post("/", cfg.RecordHandler.Ingest)
			r.Get("/{id}", cfg.RecordHandler.Get)
		})

		// Members
		r.Route("/members/{id}", func(r chi.Router) {
			r.Get("/records", cfg.RecordHandler.ListByMember)
			r.Get("/ledger", cfg.LedgerHandler.Member)
			r.Get("/loans", cfg.LoanHandler.ListByMember)
			r.Get("/loan-limit", cfg.LoanHandler.Limit)
			r.Get("/summary", cfg.ReportHandler.Summary)
			r.Get("/maturity", cfg.MaturityHandler.Get)
			r.Post("/maturity/recompute", cfg.MaturityHandler.Recompute)
			r.Post("/maturity/override", cfg.MaturityHandler.Override)
			r.Post("/maturity/claim", cfg.MaturityHandler.Claim)
		})

		// Loans
		r.Route("/loans", func(r chi.Router) {
			r.Post("/", cfg.LoanHandler.Create)
			r.Get("/{id}", cfg.LoanHandler.Get)
			r.Post("/{id}/disburse", cfg.LoanHandler.Disburse)
			r.Post("/{id}/reject", cfg.LoanHandler.Reject)
			r.Post("/{id}/installments", cfg.LoanHandler.RecordInstallment)
		})

		// Tenants
		r.Route("/tenants/{id}", func(r chi.Router) {
			r.Get("/ledger", cfg.LedgerHandler.Tenant)
			r.Get("/ledger/reconcile", cfg.LedgerHandler.Reconcile)
			r.Post("/maturity/recompute", cfg.MaturityHandler.RecomputeTenant)
			r.Get("/reports/maturity", cfg.MaturityHandler.Report)
			r.Get("/reports/defaulters", cfg.ReportHandler.Defaulters)
		})
	})

	return r
}

package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/iho/shopledger/internal/adapter/http/handler"
	"github.com/iho/shopledger/internal/adapter/http/middleware"
	"github.com/iho/shopledger/internal/domain"
	"github.com/iho/shopledger/internal/infrastructure/auth"
	"github.com/iho/shopledger/internal/infrastructure/metrics"
	"github.com/iho/shopledger/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	ShopHandler            *handler.PartyHandler
	CustomerHandler        *handler.PartyHandler
	LoanHandler            *handler.EntryHandler
	PaymentHandler         *handler.EntryHandler
	ShopReconciliation     *handler.ReconciliationHandler
	CustomerReconciliation *handler.ReconciliationHandler
	AuditHandler           *handler.AuditHandler
	HealthHandler          *handler.HealthHandler
	IdempotencyStore       usecase.IdempotencyStore
	IdempotencyTTL         time.Duration
	RateLimiter            *middleware.RateLimiter
	JWTManager             *auth.JWTManager // nil disables authentication
	DefaultActor           string           // used when JWTManager is nil
	Logger                 zerolog.Logger
	Metrics                *metrics.Metrics
	MetricsHandler         http.Handler
	CORSAllowedOrigins     []string
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestContext)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery)

	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", middleware.IdempotencyKeyHeader, middleware.RequestIDHeader},
			ExposedHeaders: []string{handler.AuditStatusHeader, middleware.RequestIDHeader, "X-Idempotency-Replay"},
			MaxAge:         300,
		}))
	}

	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.JWTManager != nil {
			r.Use(middleware.AuthMiddleware(cfg.JWTManager))
		} else {
			r.Use(middleware.StaticActor(cfg.DefaultActor))
		}

		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			idempotencyMiddleware := middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore).WithTTL(cfg.IdempotencyTTL)
			r.Use(idempotencyMiddleware.Wrap)
		}

		r.Route("/shops", partyRoutes(cfg.ShopHandler, cfg.ShopReconciliation))
		r.Route("/customers", partyRoutes(cfg.CustomerHandler, cfg.CustomerReconciliation))
		r.Route("/loans", entryRoutes(cfg.LoanHandler))
		r.Route("/payments", entryRoutes(cfg.PaymentHandler))

		r.Get("/audits", cfg.AuditHandler.List)
	})

	return r
}

func partyRoutes(h *handler.PartyHandler, recon *handler.ReconciliationHandler) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/reconciliation", recon.Report)
		r.Get("/{id}", h.Get)
		r.Get("/{id}/entries", h.ListEntries)
		r.Get("/{id}/reconciliation", recon.Party)

		r.With(middleware.RequireRole(domain.RoleOperator)).Post("/", h.Create)
		r.With(middleware.RequireRole(domain.RoleOperator)).Put("/{id}", h.Update)
		r.With(middleware.RequireRole(domain.RoleAdmin)).Delete("/{id}", h.Delete)
	}
}

func entryRoutes(h *handler.EntryHandler) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)

		r.With(middleware.RequireRole(domain.RoleOperator)).Post("/", h.Create)
		r.With(middleware.RequireRole(domain.RoleOperator)).Put("/{id}", h.Update)
		r.With(middleware.RequireRole(domain.RoleAdmin)).Delete("/{id}", h.Delete)
	}
}

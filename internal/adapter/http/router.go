package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/cashdesk/internal/adapter/http/handler"
	"github.com/iho/cashdesk/internal/adapter/http/middleware"
	"github.com/iho/cashdesk/internal/adapter/ws"
	"github.com/iho/cashdesk/internal/domain"
	"github.com/iho/cashdesk/internal/infrastructure/auth"
	"github.com/iho/cashdesk/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	TransactionHandler *handler.TransactionHandler
	PartyHandler       *handler.PartyHandler
	HealthHandler      *handler.HealthHandler
	WSHandler          *ws.Handler
	JWTManager         *auth.JWTManager
	IdempotencyStore   usecase.IdempotencyStore
	RateLimiter        *middleware.RateLimiter
	Logger             zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Metrics)
	r.Use(middleware.Recovery)

	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// Realtime endpoint; authenticates itself from the token query param
	// before upgrading.
	r.Get("/ws", cfg.WSHandler.HandleWebSocket)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(cfg.JWTManager))

		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			idempotencyMiddleware := middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore)
			r.Use(idempotencyMiddleware.Wrap)
		}

		// Transactions
		r.Route("/transactions", func(r chi.Router) {
			r.Get("/pending", cfg.TransactionHandler.MyPending)
			r.Get("/history", cfg.TransactionHandler.History)
			r.With(middleware.RequireRole(domain.RoleCashier)).
				Get("/needing-verification", cfg.TransactionHandler.NeedingVerification)
			r.Get("/reference/{reference}", cfg.TransactionHandler.GetByReference)
			r.Get("/{id}", cfg.TransactionHandler.Get)
		})

		// Admin surface
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(domain.RoleAdmin))

			r.Route("/transactions", func(r chi.Router) {
				r.Get("/open-for-review", cfg.TransactionHandler.OpenForReview)
				r.Post("/{id}/resume", cfg.TransactionHandler.Resume)
				r.Post("/{id}/revert", cfg.TransactionHandler.Revert)
				r.Get("/{id}/audit", cfg.TransactionHandler.AuditTrail)
			})

			r.Route("/parties", func(r chi.Router) {
				r.Post("/", cfg.PartyHandler.Create)
				r.Get("/{id}", cfg.PartyHandler.Get)
			})
		})
	})

	return r
}

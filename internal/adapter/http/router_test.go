package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/iho/cashdesk/internal/adapter/http/handler"
	apimiddleware "github.com/iho/cashdesk/internal/adapter/http/middleware"
	"github.com/iho/cashdesk/internal/adapter/ws"
	"github.com/iho/cashdesk/internal/domain"
	"github.com/iho/cashdesk/internal/infrastructure/auth"
	"github.com/iho/cashdesk/internal/realtime"
	"github.com/iho/cashdesk/internal/usecase"
	"github.com/iho/cashdesk/internal/usecase/mocks"
)

func TestNewRouter_HealthEndpointAvailable(t *testing.T) {
	router := NewRouter(newRouterConfig(t))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected /health to return 200, got %d", rec.Code)
	}
}

func TestNewRouter_RateLimiterBlocksExcessRequests(t *testing.T) {
	rl := apimiddleware.NewRateLimiter(1, 1)
	router := NewRouter(newRouterConfig(t, func(cfg *RouterConfig) {
		cfg.RateLimiter = rl
	}))

	req1 := httptest.NewRequest(http.MethodGet, "/health", nil)
	req1.RemoteAddr = "1.2.3.4:1234"
	rec1 := httptest.NewRecorder()
	router.ServeHTTP(rec1, req1)
	if rec1.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", rec1.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/health", nil)
	req2.RemoteAddr = "1.2.3.4:1234"
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be throttled, got %d", rec2.Code)
	}
}

func TestNewRouter_RejectsMissingToken(t *testing.T) {
	router := NewRouter(newRouterConfig(t))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions/pending", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected unauthenticated request to return 401, got %d", rec.Code)
	}
}

func TestNewRouter_IdempotencyMiddlewareInvokesStore(t *testing.T) {
	store := &stubIdempotencyStore{}
	var jwt *auth.JWTManager
	router := NewRouter(newRouterConfig(t, func(cfg *RouterConfig) {
		cfg.IdempotencyStore = store
		jwt = cfg.JWTManager
	}))

	admin := &domain.Party{ID: "admin-1", Name: "Ops", Role: domain.RoleAdmin, Active: true}
	token, err := jwt.Generate(admin)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	body := `{"name":"Counter A","role":"cashier","balance":1000}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/parties/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(apimiddleware.IdempotencyKeyHeader, "key-123")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected party creation to succeed, got %d: %s", rec.Code, rec.Body.String())
	}
	if !store.checkCalled {
		t.Fatalf("expected idempotency store to be used")
	}
}

func TestNewRouter_RegistersKeyRoutes(t *testing.T) {
	router := NewRouter(newRouterConfig(t))

	chiRoutes, ok := router.(chi.Router)
	if !ok {
		t.Fatal("router does not implement chi.Routes")
	}

	seen := map[string]bool{}
	if err := chi.Walk(chiRoutes, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		seen[method+" "+route] = true
		return nil
	}); err != nil {
		t.Fatalf("walk failed: %v", err)
	}

	expected := []string{
		"GET /health",
		"GET /ready",
		"GET /ws",
		"GET /api/v1/transactions/pending",
		"GET /api/v1/transactions/history",
		"GET /api/v1/transactions/needing-verification",
		"GET /api/v1/transactions/reference/{reference}",
		"GET /api/v1/transactions/{id}",
		"GET /api/v1/admin/transactions/open-for-review",
		"POST /api/v1/admin/transactions/{id}/resume",
		"POST /api/v1/admin/transactions/{id}/revert",
		"GET /api/v1/admin/transactions/{id}/audit",
		"POST /api/v1/admin/parties/",
		"GET /api/v1/admin/parties/{id}",
	}

	for _, route := range expected {
		if !seen[route] {
			t.Fatalf("expected route %s to be registered", route)
		}
	}
}

func newRouterConfig(t *testing.T, opts ...func(*RouterConfig)) RouterConfig {
	t.Helper()

	zl := zerolog.Nop()

	parties := mocks.NewMockPartyRepository()
	audits := mocks.NewMockAuditRepository()
	idGen := mocks.NewMockIDGenerator()

	registry := realtime.NewRegistry()
	rtRouter := realtime.NewRouter(registry, zl)

	coordinator := usecase.NewCoordinator(usecase.CoordinatorDeps{
		TxManager:     mocks.NewMockTransactionManager(),
		Transactions:  mocks.NewMockTransactionRepository(),
		Parties:       parties,
		Audits:        audits,
		Notifications: mocks.NewMockNotificationRepository(),
		Router:        rtRouter,
		Guard:         usecase.NewProcessingGuard(mocks.NewMockRetrier()),
		IDGen:         idGen,
		Logger:        zl,
	}, usecase.CoordinatorConfig{
		MinDepositAmount:    100,
		MinWithdrawalAmount: 100,
	})
	coordinator.SetScheduler(mocks.NewMockTimeoutScheduler())

	recovery := realtime.NewRecovery(rtRouter, coordinator, audits, idGen, realtime.RecoveryConfig{
		PlayerGrace:  time.Minute,
		CashierGrace: time.Minute,
	}, zl)
	t.Cleanup(recovery.Stop)

	jwt := auth.NewJWTManager("router-test-secret", time.Hour)

	cfg := RouterConfig{
		TransactionHandler: handler.NewTransactionHandler(coordinator, audits),
		PartyHandler:       handler.NewPartyHandler(parties, idGen),
		HealthHandler:      handler.NewHealthHandler(nil, nil),
		WSHandler:          ws.NewHandler(coordinator, registry, rtRouter, recovery, jwt, zl),
		JWTManager:         jwt,
		Logger:             zl,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}

type stubIdempotencyStore struct {
	checkCalled bool
}

func (s *stubIdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	s.checkCalled = true
	return false, nil, nil
}

func (s *stubIdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	return nil
}

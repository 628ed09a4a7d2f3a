package integration

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/cashdesk/internal/adapter/repository/postgres"
	"github.com/iho/cashdesk/internal/domain"
	"github.com/iho/cashdesk/internal/realtime"
	"github.com/iho/cashdesk/internal/scheduler"
	"github.com/iho/cashdesk/internal/usecase"
	"github.com/iho/cashdesk/tests/testutil"
)

// engine wires the coordination stack against a real database, the same way
// the server binary does.
type engine struct {
	coordinator   *usecase.Coordinator
	registry      *realtime.Registry
	router        *realtime.Router
	transactions  *postgres.TransactionRepository
	parties       *postgres.PartyRepository
	audits        *postgres.AuditRepository
	notifications *postgres.NotificationRepository
	timeouts      *scheduler.Scheduler
	idGen         *postgres.ULIDGenerator
}

func newEngine(t *testing.T, db *testutil.TestDB) *engine {
	t.Helper()

	zl := zerolog.Nop()

	txManager := postgres.NewTxManager(db.Pool)
	transactionRepo := postgres.NewTransactionRepository(db.Pool)
	partyRepo := postgres.NewPartyRepository(db.Pool)
	auditRepo := postgres.NewAuditRepository(db.Pool)
	notificationRepo := postgres.NewNotificationRepository(db.Pool)
	idGen := postgres.NewULIDGenerator()

	registry := realtime.NewRegistry()
	router := realtime.NewRouter(registry, zl)

	guard := usecase.NewProcessingGuard(postgres.NewRetrier())

	coordinator := usecase.NewCoordinator(usecase.CoordinatorDeps{
		TxManager:     txManager,
		Transactions:  transactionRepo,
		Parties:       partyRepo,
		Audits:        auditRepo,
		Notifications: notificationRepo,
		Router:        router,
		Guard:         guard,
		IDGen:         idGen,
		Logger:        zl,
	}, usecase.CoordinatorConfig{
		MinDepositAmount:    100,
		MinWithdrawalAmount: 100,
		CommissionPercent:   0,
	})

	// Budgets long enough that no timer fires during a test run.
	timeouts := scheduler.New(coordinator, scheduler.Config{
		PendingTimeout:    time.Hour,
		InProgressTimeout: time.Hour,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	coordinator.SetScheduler(timeouts)
	t.Cleanup(timeouts.Stop)

	return &engine{
		coordinator:   coordinator,
		registry:      registry,
		router:        router,
		transactions:  transactionRepo,
		parties:       partyRepo,
		audits:        auditRepo,
		notifications: notificationRepo,
		timeouts:      timeouts,
		idGen:         idGen,
	}
}

// testConn is a live connection stand-in that records delivered events.
type testConn struct {
	id       string
	identity string
	role     domain.Role

	mu     sync.Mutex
	events []string
}

func (c *testConn) ID() string        { return c.id }
func (c *testConn) Identity() string  { return c.identity }
func (c *testConn) Role() domain.Role { return c.role }
func (c *testConn) Close()            {}

func (c *testConn) Send(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)

	return nil
}

func (c *testConn) received(event string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0

	for _, e := range c.events {
		if e == event {
			count++
		}
	}

	return count
}

// connect registers a live connection for the party, as the websocket
// handler does after a successful upgrade.
func (e *engine) connect(party *domain.Party) *testConn {
	conn := &testConn{
		id:       testutil.GenerateID(),
		identity: party.ID,
		role:     party.Role,
	}

	e.registry.Register(conn)
	e.router.Connected(conn)

	return conn
}

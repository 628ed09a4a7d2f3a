package usecase_test

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/cashdesk/internal/domain"
	"github.com/iho/cashdesk/internal/usecase"
	"github.com/iho/cashdesk/internal/usecase/mocks"
)

// coordinatorMocks bundles the collaborators behind a test coordinator.
type coordinatorMocks struct {
	transactions  *mocks.MockTransactionRepository
	parties       *mocks.MockPartyRepository
	audits        *mocks.MockAuditRepository
	notifications *mocks.MockNotificationRepository
	router        *mocks.MockChannelRouter
	scheduler     *mocks.MockTimeoutScheduler
	txManager     *mocks.MockTransactionManager
	cache         *mocks.MockCache
}

func newTestCoordinator() (*usecase.Coordinator, *coordinatorMocks) {
	return newTestCoordinatorWithCommission(0)
}

func newTestCoordinatorWithCommission(commissionPercent float64) (*usecase.Coordinator, *coordinatorMocks) {
	m := &coordinatorMocks{
		transactions:  mocks.NewMockTransactionRepository(),
		parties:       mocks.NewMockPartyRepository(),
		audits:        mocks.NewMockAuditRepository(),
		notifications: mocks.NewMockNotificationRepository(),
		router:        mocks.NewMockChannelRouter(),
		scheduler:     mocks.NewMockTimeoutScheduler(),
		txManager:     mocks.NewMockTransactionManager(),
		cache:         mocks.NewMockCache(),
	}

	c := usecase.NewCoordinator(usecase.CoordinatorDeps{
		TxManager:     m.txManager,
		Transactions:  m.transactions,
		Parties:       m.parties,
		Audits:        m.audits,
		Notifications: m.notifications,
		Router:        m.router,
		Scheduler:     m.scheduler,
		Guard:         usecase.NewProcessingGuard(mocks.NewMockRetrier()),
		IDGen:         mocks.NewMockIDGenerator(),
		Cache:         m.cache,
		Logger:        zerolog.Nop(),
	}, usecase.CoordinatorConfig{
		MinDepositAmount:    100,
		MinWithdrawalAmount: 500,
		CommissionPercent:   commissionPercent,
	})

	return c, m
}

func seedPlayer(m *coordinatorMocks, id string, balance int64) {
	m.parties.Put(&domain.Party{
		ID:      id,
		Name:    "Player " + id,
		Role:    domain.RolePlayer,
		Balance: balance,
		Active:  true,
	})
}

func seedCashier(m *coordinatorMocks, id string, balance int64) {
	m.parties.Put(&domain.Party{
		ID:      id,
		Name:    "Cashier " + id,
		Role:    domain.RoleCashier,
		Balance: balance,
		Active:  true,
	})
}

func seedTransaction(m *coordinatorMocks, txn *domain.Transaction) *domain.Transaction {
	if txn.Direction == "" {
		switch txn.Category {
		case domain.CategoryWithdrawal:
			txn.Direction = domain.DirectionDebit
		default:
			txn.Direction = domain.DirectionCredit
		}
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
		txn.UpdatedAt = txn.CreatedAt
	}
	m.transactions.Put(txn)
	return txn
}

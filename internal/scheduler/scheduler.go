package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/iho/cashdesk/internal/domain"
	"github.com/iho/cashdesk/internal/infrastructure/metrics"
)

// Canceller is the scheduler's firing target. The transaction coordinator
// satisfies it; CancelForTimeout re-validates persisted state before acting.
type Canceller interface {
	CancelForTimeout(ctx context.Context, txID string) error
}

// Lister pages through persisted transactions for startup recovery.
type Lister interface {
	ListByStates(ctx context.Context, states []domain.State, limit, offset int) ([]*domain.Transaction, error)
}

// Config holds the per-state timeout budgets. in_progress gets a larger
// budget than pending because a cashier has already committed attention.
type Config struct {
	PendingTimeout    time.Duration
	InProgressTimeout time.Duration
}

// Scheduler keeps exactly one live timer per cancelable transaction, keyed
// by transaction id. There is no polling sweep; timers are cancelled and
// rescheduled on every state transition. The timer map is process-local and
// rebuilt from the store on startup.
type Scheduler struct {
	canceller Canceller
	cfg       Config
	logger    *slog.Logger
	metrics   *metrics.Metrics

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// New creates a Scheduler.
func New(canceller Canceller, cfg Config, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		canceller: canceller,
		cfg:       cfg,
		logger:    logger,
		timers:    make(map[string]*time.Timer),
	}
}

// SetMetrics attaches the active-timer gauge.
func (s *Scheduler) SetMetrics(m *metrics.Metrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m
}

// caller must hold s.mu
func (s *Scheduler) updateGauge() {
	if s.metrics != nil {
		s.metrics.ActiveTimers.Set(float64(len(s.timers)))
	}
}

// Schedule replaces any live timer for the transaction with a fresh one for
// the state's budget. A non-cancelable state just drops the timer.
func (s *Scheduler) Schedule(txID string, state domain.State) {
	budget := s.budgetFor(state)
	if budget <= 0 {
		s.Cancel(txID)
		return
	}
	s.scheduleAfter(txID, budget)
}

// Cancel stops and removes the transaction's timer, if any.
func (s *Scheduler) Cancel(txID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[txID]; ok {
		t.Stop()
		delete(s.timers, txID)
		s.updateGauge()
	}
}

// ActiveTimers returns the number of live timers.
func (s *Scheduler) ActiveTimers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every live timer. Used on shutdown.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.updateGauge()
}

// Recover rebuilds timers from the store after a restart. Transactions whose
// budget already elapsed are cancelled immediately; the rest get a timer for
// the remaining duration. Timers need no durable store of their own.
func (s *Scheduler) Recover(ctx context.Context, lister Lister) error {
	const pageSize = 200

	states := []domain.State{domain.StatePending, domain.StatePendingAssignment, domain.StateInProgress}
	now := time.Now().UTC()
	recovered, expired := 0, 0

	for offset := 0; ; offset += pageSize {
		page, err := lister.ListByStates(ctx, states, pageSize, offset)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			break
		}

		for _, txn := range page {
			budget := s.budgetFor(txn.State)
			if budget <= 0 {
				continue
			}

			elapsed := now.Sub(s.anchorFor(txn))
			remaining := budget - elapsed
			if remaining <= 0 {
				expired++
				s.fire(txn.ID)
				continue
			}

			recovered++
			s.scheduleAfter(txn.ID, remaining)
		}

		if len(page) < pageSize {
			break
		}
	}

	s.logger.Info("timeout scheduler recovered",
		slog.Int("rescheduled", recovered),
		slog.Int("expired_on_start", expired))

	return nil
}

func (s *Scheduler) scheduleAfter(txID string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[txID]; ok {
		t.Stop()
	}
	s.timers[txID] = time.AfterFunc(d, func() {
		s.fire(txID)
	})
	s.updateGauge()
}

func (s *Scheduler) fire(txID string) {
	s.mu.Lock()
	delete(s.timers, txID)
	s.updateGauge()
	s.mu.Unlock()

	if err := s.canceller.CancelForTimeout(context.Background(), txID); err != nil {
		s.logger.Error("timeout cancellation failed",
			slog.String("transaction_id", txID),
			slog.String("error", err.Error()))
	}
}

func (s *Scheduler) budgetFor(state domain.State) time.Duration {
	switch state {
	case domain.StatePending, domain.StatePendingAssignment:
		return s.cfg.PendingTimeout
	case domain.StateInProgress:
		return s.cfg.InProgressTimeout
	default:
		return 0
	}
}

// anchorFor picks the timestamp the budget counts from.
func (s *Scheduler) anchorFor(txn *domain.Transaction) time.Time {
	if txn.State == domain.StateInProgress && txn.AssignedAt != nil {
		return *txn.AssignedAt
	}
	return txn.CreatedAt
}

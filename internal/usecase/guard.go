package usecase

import (
	"context"
	"sync"

	"github.com/iho/cashdesk/internal/domain"
	"github.com/iho/cashdesk/internal/infrastructure/metrics"
)

// ProcessingGuard serializes mutating work per transaction id. A second
// caller for an id already in flight is rejected immediately with ErrBusy
// rather than queued, so concurrent verification attempts cannot race on the
// same balance update. Conflict-class failures inside the operation are
// retried through the injected Retrier.
type ProcessingGuard struct {
	mu       sync.Mutex
	inflight map[string]struct{}
	retrier  Retrier
	metrics  *metrics.Metrics
}

// NewProcessingGuard creates a ProcessingGuard.
func NewProcessingGuard(retrier Retrier) *ProcessingGuard {
	return &ProcessingGuard{
		inflight: make(map[string]struct{}),
		retrier:  retrier,
	}
}

// SetMetrics attaches the busy-rejection counter.
func (g *ProcessingGuard) SetMetrics(m *metrics.Metrics) {
	g.metrics = m
}

// Do runs operation while holding the single-flight slot for txID. The slot
// is held for the operation's entire duration and released on every exit
// path.
func (g *ProcessingGuard) Do(ctx context.Context, txID string, operation func() error) error {
	if !g.acquire(txID) {
		if g.metrics != nil {
			g.metrics.GuardRejections.Inc()
		}
		return domain.ErrBusy
	}
	defer g.release(txID)

	if g.retrier == nil {
		return operation()
	}
	return g.retrier.Retry(ctx, operation)
}

// InFlight reports whether txID currently holds the slot.
func (g *ProcessingGuard) InFlight(txID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.inflight[txID]
	return ok
}

func (g *ProcessingGuard) acquire(txID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.inflight[txID]; ok {
		return false
	}
	g.inflight[txID] = struct{}{}
	return true
}

func (g *ProcessingGuard) release(txID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inflight, txID)
}

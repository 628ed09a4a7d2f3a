package usecase

import (
	"context"
	"encoding/json"

	"github.com/iho/cashdesk/internal/domain"
)

// Read-only queries consumed by the CRUD layer, the WS handlers, and
// reconnection recovery. None of them take the processing guard.

// pendingStates are the states a player sees as "still open".
var pendingStates = []domain.State{
	domain.StatePending,
	domain.StatePendingAssignment,
	domain.StateInProgress,
	domain.StateReported,
}

// GetTransaction returns the current persisted state of one transaction.
func (c *Coordinator) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	return c.transactions.GetByID(ctx, id)
}

// GetByReference resolves a transaction by its human-readable reference.
// Terminal transactions are served from the cache once seen; Resume and
// Revert invalidate the entry when they reopen or compensate one.
func (c *Coordinator) GetByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	if err := domain.ValidateReference(reference); err != nil {
		return nil, err
	}

	key := referenceCacheKey(reference)
	if c.cache != nil {
		if raw, err := c.cache.Get(ctx, key); err == nil && len(raw) > 0 {
			var txn domain.Transaction
			if json.Unmarshal(raw, &txn) == nil {
				return &txn, nil
			}
		}
	}

	txn, err := c.transactions.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	if c.cache != nil && txn.State.IsTerminal() {
		if raw, err := json.Marshal(txn); err == nil {
			_ = c.cache.Set(ctx, key, raw, referenceCacheTTL)
		}
	}

	return txn, nil
}

func referenceCacheKey(reference string) string {
	return "reference:" + reference
}

// dropCachedReference removes a stale cache entry after a terminal
// transaction changes again.
func (c *Coordinator) dropCachedReference(ctx context.Context, reference string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Delete(ctx, referenceCacheKey(reference)); err != nil {
		c.logger.Warn().Err(err).Str("reference", reference).Msg("cache invalidation failed")
	}
}

// MyPending lists a player's open transactions.
func (c *Coordinator) MyPending(ctx context.Context, playerID string, limit, offset int) ([]*domain.Transaction, error) {
	limit, offset = clampList(limit, offset)

	all, err := c.transactions.ListByParticipantAndStates(ctx, playerID, pendingStates)
	if err != nil {
		return nil, err
	}
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// NeedingVerification lists the reported transactions waiting on a specific
// cashier. Reported requests carry no auto-cancel timer, so this queue is
// how verification latency stays visible.
func (c *Coordinator) NeedingVerification(ctx context.Context, cashierID string, limit, offset int) ([]*domain.Transaction, error) {
	limit, offset = clampList(limit, offset)
	return c.transactions.ListByCashierAndStates(ctx, cashierID, []domain.State{domain.StateReported}, limit, offset)
}

// OpenForReview lists everything parked in admin review.
func (c *Coordinator) OpenForReview(ctx context.Context, limit, offset int) ([]*domain.Transaction, error) {
	limit, offset = clampList(limit, offset)
	return c.transactions.ListByStates(ctx, []domain.State{domain.StateRequiresAdminReview}, limit, offset)
}

// History lists a player's transactions, newest first.
func (c *Coordinator) History(ctx context.Context, playerID string, limit, offset int) ([]*domain.Transaction, error) {
	limit, offset = clampList(limit, offset)
	return c.transactions.ListByPlayer(ctx, playerID, limit, offset)
}

// ActiveForParticipant returns the non-terminal transactions an identity is
// party to. Used by the recovery coordinator to rebuild channel membership.
func (c *Coordinator) ActiveForParticipant(ctx context.Context, identity string) ([]*domain.Transaction, error) {
	return c.transactions.ListByParticipantAndStates(ctx, identity, pendingStates)
}

func clampList(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

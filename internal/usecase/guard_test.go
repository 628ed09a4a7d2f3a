package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/iho/cashdesk/internal/domain"
	"github.com/iho/cashdesk/internal/usecase"
	"github.com/iho/cashdesk/internal/usecase/mocks"
)

func TestProcessingGuard_SerializesPerID(t *testing.T) {
	g := usecase.NewProcessingGuard(nil)

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- g.Do(context.Background(), "tx-1", func() error {
			close(entered)
			<-release
			return nil
		})
	}()

	<-entered
	if !g.InFlight("tx-1") {
		t.Error("expected tx-1 to hold the slot")
	}

	// Same id is rejected immediately, not queued.
	if err := g.Do(context.Background(), "tx-1", func() error { return nil }); !errors.Is(err, domain.ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}

	// A different id runs in parallel.
	if err := g.Do(context.Background(), "tx-2", func() error { return nil }); err != nil {
		t.Errorf("expected tx-2 to run, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if g.InFlight("tx-1") {
		t.Error("expected the slot to be released")
	}
}

func TestProcessingGuard_ReleasesOnError(t *testing.T) {
	g := usecase.NewProcessingGuard(nil)
	boom := errors.New("boom")

	if err := g.Do(context.Background(), "tx-1", func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected the operation error, got %v", err)
	}
	if g.InFlight("tx-1") {
		t.Error("expected the slot released after a failure")
	}
	if err := g.Do(context.Background(), "tx-1", func() error { return nil }); err != nil {
		t.Errorf("expected the id to be reusable, got %v", err)
	}
}

func TestProcessingGuard_RetriesThroughRetrier(t *testing.T) {
	g := usecase.NewProcessingGuard(mocks.NewMockRetrier())

	attempts := 0
	err := g.Do(context.Background(), "tx-1", func() error {
		attempts++
		if attempts < 3 {
			return domain.ErrWriteConflict
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected the retry to succeed, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestProcessingGuard_HoldsSlotAcrossRetries(t *testing.T) {
	g := usecase.NewProcessingGuard(mocks.NewMockRetrier())

	var wg sync.WaitGroup
	busy := 0
	var mu sync.Mutex

	attempts := 0
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = g.Do(context.Background(), "tx-1", func() error {
			attempts++
			// Contend from another goroutine mid-retry.
			var contender sync.WaitGroup
			contender.Add(1)
			go func() {
				defer contender.Done()
				if err := g.Do(context.Background(), "tx-1", func() error { return nil }); errors.Is(err, domain.ErrBusy) {
					mu.Lock()
					busy++
					mu.Unlock()
				}
			}()
			contender.Wait()
			if attempts < 2 {
				return domain.ErrWriteConflict
			}
			return nil
		})
	}()
	wg.Wait()

	if busy != 2 {
		t.Errorf("expected every contender to see the slot held, got %d of 2", busy)
	}
}

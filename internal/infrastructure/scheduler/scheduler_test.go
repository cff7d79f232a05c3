package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/creditledger/internal/domain"
	"github.com/iho/creditledger/internal/usecase"
)

type stubReconciler struct {
	calls   atomic.Int32
	inputs  chan usecase.ReconcileBulkInput
	block   chan struct{}
	err     error
	doPanic bool
}

func (s *stubReconciler) ReconcileBulk(ctx context.Context, input usecase.ReconcileBulkInput) (*domain.BulkReconciliationResult, error) {
	s.calls.Add(1)
	if s.inputs != nil {
		s.inputs <- input
	}
	if s.block != nil {
		<-s.block
	}
	if s.doPanic {
		panic("boom")
	}
	if s.err != nil {
		return nil, s.err
	}
	return &domain.BulkReconciliationResult{RunID: "run-1", ProcessedCount: 3}, nil
}

func newTestScheduler(r BulkReconciler, interval time.Duration) *Scheduler {
	return New(Config{
		Reconciler: r,
		Logger:     zerolog.Nop(),
		Interval:   interval,
		BatchSize:  50,
	})
}

func TestRunOnceReconcilesEveryone(t *testing.T) {
	r := &stubReconciler{inputs: make(chan usecase.ReconcileBulkInput, 1)}
	s := newTestScheduler(r, time.Hour)

	result, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if result.ProcessedCount != 3 {
		t.Fatalf("expected 3 processed, got %d", result.ProcessedCount)
	}

	input := <-r.inputs
	if !input.All || input.BatchSize != 50 || len(input.UserIDs) != 0 {
		t.Fatalf("unexpected input: %+v", input)
	}
}

func TestRunOnceRecoversPanic(t *testing.T) {
	s := newTestScheduler(&stubReconciler{doPanic: true}, time.Hour)

	if _, err := s.RunOnce(context.Background()); err == nil {
		t.Fatalf("expected error from panicking run")
	}

	// The guard is released after a panic.
	if s.running.Load() {
		t.Fatalf("expected running flag to be cleared")
	}
}

func TestRunOncePropagatesError(t *testing.T) {
	runErr := errors.New("listing users failed")
	s := newTestScheduler(&stubReconciler{err: runErr}, time.Hour)

	if _, err := s.RunOnce(context.Background()); !errors.Is(err, runErr) {
		t.Fatalf("expected run error, got %v", err)
	}
}

func TestRunOnceDoesNotOverlap(t *testing.T) {
	r := &stubReconciler{block: make(chan struct{}), inputs: make(chan usecase.ReconcileBulkInput, 1)}
	s := newTestScheduler(r, time.Hour)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.RunOnce(context.Background())
	}()
	<-r.inputs

	if _, err := s.RunOnce(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}

	close(r.block)
	<-done

	if got := r.calls.Load(); got != 1 {
		t.Fatalf("expected 1 call, got %d", got)
	}
}

func TestStartStopsOnContextCancellation(t *testing.T) {
	r := &stubReconciler{}
	s := New(Config{
		Reconciler: r,
		Logger:     zerolog.Nop(),
		Interval:   5 * time.Millisecond,
		RunOnStart: true,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()

	if err := s.Start(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	if r.calls.Load() < 2 {
		t.Fatalf("expected at least 2 runs, got %d", r.calls.Load())
	}
}

package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestShardedLocker_MutualExclusion(t *testing.T) {
	l := NewShardedLocker()

	var counter int64
	var wg sync.WaitGroup
	const n = 100

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "user-1")
			if err != nil {
				t.Errorf("lock failed: %v", err)
				return
			}
			defer unlock()
			v := atomic.LoadInt64(&counter)
			atomic.StoreInt64(&counter, v+1)
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt64(&counter); got != n {
		t.Fatalf("expected %d, got %d", n, got)
	}
}

func TestShardedLocker_ContextCancelled(t *testing.T) {
	l := NewShardedLocker()

	unlock, err := l.Lock(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := l.Lock(ctx, "user-1"); err != context.DeadlineExceeded {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestShardedLocker_DoubleUnlockIsSafe(t *testing.T) {
	l := NewShardedLocker()

	unlock, err := l.Lock(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	unlock()
	unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	unlock, err = l.Lock(ctx, "user-1")
	if err != nil {
		t.Fatalf("expected lock to be free, got %v", err)
	}
	unlock()
}

func TestMemoryTracker(t *testing.T) {
	tr := NewMemoryTracker()
	ctx := context.Background()

	last, err := tr.LastReconciled(ctx, "user-1")
	if err != nil || last != nil {
		t.Fatalf("expected nil for unknown user, got %v, %v", last, err)
	}

	at := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	if err := tr.MarkReconciled(ctx, "user-1", at); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	last, err = tr.LastReconciled(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if last == nil || !last.Equal(at) {
		t.Fatalf("expected %v, got %v", at, last)
	}
}

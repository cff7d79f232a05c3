package usecase

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const lockShards = 256

// ShardedLocker is an in-process UserLocker backed by a fixed pool of
// channel mutexes. Users hashing to the same shard share a lock.
type ShardedLocker struct {
	shards [lockShards]chan struct{}
}

// NewShardedLocker creates a ShardedLocker with every shard unlocked.
func NewShardedLocker() *ShardedLocker {
	l := &ShardedLocker{}
	for i := range l.shards {
		l.shards[i] = make(chan struct{}, 1)
		l.shards[i] <- struct{}{}
	}
	return l
}

// Lock acquires the user's shard or returns ctx.Err() if ctx ends first.
func (l *ShardedLocker) Lock(ctx context.Context, userID string) (func(), error) {
	shard := l.shards[shardIndex(userID)]

	select {
	case <-shard:
		var once sync.Once
		return func() { once.Do(func() { shard <- struct{}{} }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func shardIndex(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % lockShards
}

// MemoryTracker is an in-process ReconcileTracker.
type MemoryTracker struct {
	mu   sync.RWMutex
	last map[string]time.Time
}

// NewMemoryTracker creates an empty MemoryTracker.
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{last: make(map[string]time.Time)}
}

// LastReconciled returns nil when userID was never reconciled.
func (t *MemoryTracker) LastReconciled(_ context.Context, userID string) (*time.Time, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	at, ok := t.last[userID]
	if !ok {
		return nil, nil
	}
	return &at, nil
}

// MarkReconciled records at as the user's last reconciliation time.
func (t *MemoryTracker) MarkReconciled(_ context.Context, userID string, at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.last[userID] = at
	return nil
}

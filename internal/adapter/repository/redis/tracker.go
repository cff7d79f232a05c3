package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReconcileTracker implements usecase.ReconcileTracker. Keys expire after
// ttl, which must exceed the minimum reconcile interval.
type ReconcileTracker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewReconcileTracker creates a new ReconcileTracker.
func NewReconcileTracker(client *redis.Client, ttl time.Duration) *ReconcileTracker {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ReconcileTracker{
		client: client,
		prefix: "reconcile:last:",
		ttl:    ttl,
	}
}

// LastReconciled returns nil when no reconciliation is on record.
func (t *ReconcileTracker) LastReconciled(ctx context.Context, userID string) (*time.Time, error) {
	val, err := t.client.Get(ctx, t.prefix+userID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	at, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return nil, fmt.Errorf("corrupt reconcile timestamp for %s: %w", userID, err)
	}

	return &at, nil
}

// MarkReconciled stores at as the user's last reconciliation instant.
func (t *ReconcileTracker) MarkReconciled(ctx context.Context, userID string, at time.Time) error {
	return t.client.Set(ctx, t.prefix+userID, at.UTC().Format(time.RFC3339Nano), t.ttl).Err()
}

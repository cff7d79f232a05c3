package redis

import (
	"context"
	"testing"
	"time"
)

func TestReconcileTrackerRoundTrip(t *testing.T) {
	client, mr := newTestRedisClient(t)

	tracker := NewReconcileTracker(client, time.Hour)
	ctx := context.Background()

	last, err := tracker.LastReconciled(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if last != nil {
		t.Fatalf("expected nil, got %v", last)
	}

	at := time.Date(2026, 3, 15, 12, 0, 0, 123456789, time.UTC)
	if err := tracker.MarkReconciled(ctx, "user-1", at); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	last, err = tracker.LastReconciled(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if last == nil || !last.Equal(at) {
		t.Fatalf("expected %v, got %v", at, last)
	}

	requireTTL(t, mr, lastReconciledKey("user-1"), time.Hour)
}

func TestReconcileTrackerExpires(t *testing.T) {
	client, mr := newTestRedisClient(t)

	tracker := NewReconcileTracker(client, time.Minute)
	ctx := context.Background()

	if err := tracker.MarkReconciled(ctx, "user-1", time.Now()); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	last, err := tracker.LastReconciled(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if last != nil {
		t.Fatalf("expected expired entry, got %v", last)
	}
}

func TestReconcileTrackerCorruptValue(t *testing.T) {
	client, mr := newTestRedisClient(t)

	if err := mr.Set(lastReconciledKey("user-1"), "yesterday"); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	tracker := NewReconcileTracker(client, time.Minute)
	if _, err := tracker.LastReconciled(context.Background(), "user-1"); err == nil {
		t.Fatalf("expected parse error")
	}
}

package redis

import (
	"context"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestNewClientWithConfig(t *testing.T) {
	s := miniredis.RunT(t)

	client, err := NewClientWithConfig(context.Background(), ClientConfig{
		URL:         "redis://" + s.Addr() + "/2",
		PoolSize:    7,
		DialTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("expected client, got error: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	opts := client.Options()
	if opts.DB != 2 {
		t.Fatalf("expected db 2 from URL, got %d", opts.DB)
	}
	if opts.PoolSize != 7 {
		t.Fatalf("expected pool size 7, got %d", opts.PoolSize)
	}
	if opts.DialTimeout != 2*time.Second {
		t.Fatalf("expected dial timeout 2s, got %v", opts.DialTimeout)
	}

	if err := client.Set(context.Background(), "reconcile:last:user-1", "x", time.Minute).Err(); err != nil {
		t.Fatalf("set failed: %v", err)
	}
}

func TestNewClientWithConfigErrors(t *testing.T) {
	down := miniredis.RunT(t)
	downURL := "redis://" + down.Addr()
	down.Close()

	tests := []struct {
		name    string
		url     string
		wantErr string
	}{
		{"malformed url", "://bad-url", "parse redis URL"},
		{"unsupported scheme", "http://localhost:6379", "parse redis URL"},
		{"server down", downURL, "ping redis"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClientWithConfig(context.Background(), ClientConfig{URL: tt.url, DialTimeout: time.Second})
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected %q error, got %v", tt.wantErr, err)
			}
		})
	}
}

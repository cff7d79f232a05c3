package redis

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
)

// ErrLockLost is returned when an unlock finds the lock owned by someone else.
var ErrLockLost = errors.New("redis lock lost")

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// UserLocker implements usecase.UserLocker with SET NX leases, so cache
// writes for a user are serialized across every server instance.
type UserLocker struct {
	client        *redis.Client
	prefix        string
	ttl           time.Duration
	retryInterval time.Duration
}

// NewUserLocker creates a UserLocker whose leases expire after ttl.
func NewUserLocker(client *redis.Client, ttl time.Duration) *UserLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &UserLocker{
		client:        client,
		prefix:        "reconcile:lock:",
		ttl:           ttl,
		retryInterval: 50 * time.Millisecond,
	}
}

// Lock polls until the lease is acquired or ctx ends.
func (l *UserLocker) Lock(ctx context.Context, userID string) (func(), error) {
	key := l.prefix + userID
	token := ulid.Make().String()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() { _ = l.release(key, token) }, nil
		}

		timer := time.NewTimer(l.retryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *UserLocker) release(key, token string) error {
	// The caller's context may already be done when it unlocks.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	n, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockLost
	}
	return nil
}

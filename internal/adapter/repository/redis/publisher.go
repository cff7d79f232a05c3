package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/iho/creditledger/internal/domain"
)

// DefaultInconsistencyChannel is the pub/sub channel notification consumers subscribe to.
const DefaultInconsistencyChannel = "credits:inconsistencies"

// InconsistencyPublisher implements usecase.InconsistencyPublisher over Redis pub/sub.
type InconsistencyPublisher struct {
	client  *redis.Client
	channel string
}

// NewInconsistencyPublisher creates a new InconsistencyPublisher.
func NewInconsistencyPublisher(client *redis.Client, channel string) *InconsistencyPublisher {
	if channel == "" {
		channel = DefaultInconsistencyChannel
	}
	return &InconsistencyPublisher{client: client, channel: channel}
}

// Publish sends event as JSON.
func (p *InconsistencyPublisher) Publish(ctx context.Context, event domain.InconsistencyEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return p.client.Publish(ctx, p.channel, payload).Err()
}

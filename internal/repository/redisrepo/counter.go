package redisrepo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/medflow/scheduler-api/internal/repository"
)

// counterTTL keeps stale window counters from accumulating. The TTL is
// well past any plausible window length; expiry never races an active
// window.
const counterTTL = 48 * time.Hour

type queueCounter struct {
	client *redis.Client
}

// NewQueueCounter returns a QueueCounter backed by a Redis INCR per
// (location, window) key. INCR is atomic, so two concurrent check-ins
// can never receive the same number.
func NewQueueCounter(client *redis.Client) repository.QueueCounter {
	return &queueCounter{client: client}
}

func counterKey(locationID uuid.UUID, window string) string {
	return fmt.Sprintf("queue:counter:%s:%s", locationID, window)
}

func (c *queueCounter) Next(ctx context.Context, locationID uuid.UUID, window string) (int64, error) {
	key := counterKey(locationID, window)

	n, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment queue counter: %w", err)
	}
	// First assignment for a window sets the expiry.
	if n == 1 {
		if err := c.client.Expire(ctx, key, counterTTL).Err(); err != nil {
			return 0, fmt.Errorf("failed to set counter expiry: %w", err)
		}
	}
	return n, nil
}

func (c *queueCounter) Reset(ctx context.Context, locationID uuid.UUID, window string) error {
	if err := c.client.Del(ctx, counterKey(locationID, window)).Err(); err != nil {
		return fmt.Errorf("failed to reset queue counter: %w", err)
	}
	return nil
}

package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/medflow/scheduler-api/internal/repository"
)

type queueCounter struct {
	mu       sync.Mutex
	counters map[string]int64
}

// NewQueueCounter returns an in-process QueueCounter. Suitable for
// single-instance deployments and tests; multi-instance deployments
// use the Redis-backed counter.
func NewQueueCounter() repository.QueueCounter {
	return &queueCounter{counters: make(map[string]int64)}
}

func (c *queueCounter) key(locationID uuid.UUID, window string) string {
	return fmt.Sprintf("%s:%s", locationID, window)
}

func (c *queueCounter) Next(_ context.Context, locationID uuid.UUID, window string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := c.key(locationID, window)
	c.counters[key]++
	return c.counters[key], nil
}

func (c *queueCounter) Reset(_ context.Context, locationID uuid.UUID, window string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.counters, c.key(locationID, window))
	return nil
}

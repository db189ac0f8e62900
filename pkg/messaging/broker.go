package messaging

import (
	"context"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Message is the wire envelope published on a channel. Type mirrors the
// channel name so subscribers fanning in from multiple channels can
// still dispatch on payload alone.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

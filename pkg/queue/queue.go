package queue

import (
	"context"
	"errors"
)

// MessageQueue message queue interface
type MessageQueue interface {
	// Publish publishes a message to a topic without blocking. When the
	// topic buffer is full it fails immediately with ErrQueueFull.
	Publish(ctx context.Context, topic string, message []byte) error
	// Consume blocks until a message is available on the topic or the
	// context is cancelled.
	Consume(ctx context.Context, topic string) ([]byte, error)
	// Close closes the queue
	Close() error
}

// Common errors
var (
	ErrQueueClosed = errors.New("queue is closed")
	ErrQueueFull   = errors.New("queue is full")
)

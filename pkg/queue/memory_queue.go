package queue

import (
	"context"
	"sync"
)

// MemoryQueue bounded in-memory queue implementation. Each topic is a fixed
// capacity FIFO; the capacity bounds how many admitted tasks may be awaiting
// durable fulfillment at any moment.
type MemoryQueue struct {
	capacity int
	topics   map[string]chan []byte
	mu       sync.RWMutex
	closed   bool
}

// NewMemoryQueue creates a memory queue whose topics hold at most capacity
// messages each.
func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &MemoryQueue{
		capacity: capacity,
		topics:   make(map[string]chan []byte),
	}
}

func (q *MemoryQueue) topic(name string) (chan []byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	ch, ok := q.topics[name]
	if !ok {
		ch = make(chan []byte, q.capacity)
		q.topics[name] = ch
	}
	return ch, nil
}

// Publish enqueues a message. It never blocks: a full topic fails fast with
// ErrQueueFull so the caller keeps its latency guarantee.
func (q *MemoryQueue) Publish(ctx context.Context, topic string, message []byte) error {
	ch, err := q.topic(topic)
	if err != nil {
		return err
	}

	// The send must stay under the read lock: Close closes topic channels
	// under the write lock, and a send racing that close would panic.
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case ch <- message:
		return nil
	default:
		return ErrQueueFull
	}
}

// Consume blocks until a message arrives or the context is cancelled.
func (q *MemoryQueue) Consume(ctx context.Context, topic string) ([]byte, error) {
	ch, err := q.topic(topic)
	if err != nil {
		return nil, err
	}

	select {
	case message, ok := <-ch:
		if !ok {
			return nil, ErrQueueClosed
		}
		return message, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len reports the number of messages waiting on a topic.
func (q *MemoryQueue) Len(topic string) int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if ch, ok := q.topics[topic]; ok {
		return len(ch)
	}
	return 0
}

// Close closes the queue and all topic channels.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true

	for _, ch := range q.topics {
		close(ch)
	}
	return nil
}

// Package channel defines the interfaces for the keyed message channel the
// botworker protocol runs over. The abstraction keeps the protocol code
// independent of a specific broker (Redis in production, in-memory in tests
// and brokerless runs).
package channel

import (
	"context"
	"time"
)

// Channel is a set of durable FIFO queues addressed by string keys.
type Channel interface {
	// Push appends payload to the tail of the queue named by key.
	Push(ctx context.Context, key string, payload []byte) error

	// BlockPop pops one payload from the head of the first non-empty queue
	// among keys, blocking up to timeout. A timeout is not an error: the
	// returned ok is false and callers are expected to retry or diagnose.
	BlockPop(ctx context.Context, keys []string, timeout time.Duration) (key string, payload []byte, ok bool, err error)

	// DeleteMatching removes every queue whose key matches the glob pattern
	// and returns the number of queues removed.
	DeleteMatching(ctx context.Context, pattern string) (int, error)

	// Close releases any client connections and resources.
	Close() error
}

// Broadcaster delivers one-way notifications to every listener of a group.
// Deliveries are fire-and-forget; there is no acknowledgement.
type Broadcaster interface {
	Broadcast(ctx context.Context, group string, payload []byte) error
}

// GroupMessage is one delivery received from a broadcast group.
type GroupMessage struct {
	Group   string
	Payload []byte
}

// Subscriber receives broadcasts for every group matching a glob pattern.
type Subscriber interface {
	// SubscribePattern returns a stream of matching deliveries and a stop
	// function releasing the subscription. The stream closes on stop or when
	// ctx finishes.
	SubscribePattern(ctx context.Context, pattern string) (<-chan GroupMessage, func() error, error)
}

// NoOp is a channel that accepts everything and holds nothing. It is useful
// for running the service with the bot subsystem disabled.
type NoOp struct{}

// Push for NoOp does nothing and returns nil.
func (NoOp) Push(_ context.Context, _ string, _ []byte) error { return nil }

// BlockPop for NoOp waits out the timeout and reports no message.
func (NoOp) BlockPop(ctx context.Context, _ []string, timeout time.Duration) (string, []byte, bool, error) {
	select {
	case <-ctx.Done():
		return "", nil, false, ctx.Err()
	case <-time.After(timeout):
		return "", nil, false, nil
	}
}

// DeleteMatching for NoOp does nothing.
func (NoOp) DeleteMatching(_ context.Context, _ string) (int, error) { return 0, nil }

// Close for NoOp does nothing and returns nil.
func (NoOp) Close() error { return nil }

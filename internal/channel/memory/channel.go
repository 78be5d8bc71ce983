// Package memory provides a keyed in-process channel for tests and
// brokerless runs.
package memory

import (
	"context"
	"errors"
	"path"
	"sync"
	"time"

	"github.com/JakeFAU/browserbot-relay/internal/channel"
)

// Channel is an in-memory set of keyed FIFO queues. It is safe for
// concurrent use and mirrors the blocking-pop semantics of the Redis-backed
// channel closely enough that protocol tests need no broker.
type Channel struct {
	mu     sync.Mutex
	queues map[string][][]byte
	// wake is closed and replaced on every push so that all blocked poppers
	// re-scan their keys.
	wake        chan struct{}
	groups      map[string][][]byte
	subscribers []*subscription
	closed      bool
}

type subscription struct {
	pattern string
	out     chan channel.GroupMessage
	done    chan struct{}
	once    sync.Once
}

func (s *subscription) stop() error {
	s.once.Do(func() {
		close(s.done)
		close(s.out)
	})
	return nil
}

// New constructs an empty Channel.
func New() *Channel {
	return &Channel{
		queues: make(map[string][][]byte),
		wake:   make(chan struct{}),
		groups: make(map[string][][]byte),
	}
}

// Push appends payload to the tail of the queue named by key.
func (c *Channel) Push(_ context.Context, key string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("channel closed")
	}
	c.queues[key] = append(c.queues[key], append([]byte(nil), payload...))
	close(c.wake)
	c.wake = make(chan struct{})
	return nil
}

// BlockPop pops from the head of the first non-empty queue among keys,
// blocking up to timeout. Keys are checked in the order given, so earlier
// keys win when several have messages.
func (c *Channel) BlockPop(ctx context.Context, keys []string, timeout time.Duration) (string, []byte, bool, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return "", nil, false, errors.New("channel closed")
		}
		for _, key := range keys {
			q := c.queues[key]
			if len(q) == 0 {
				continue
			}
			payload := q[0]
			if len(q) == 1 {
				delete(c.queues, key)
			} else {
				c.queues[key] = q[1:]
			}
			c.mu.Unlock()
			return key, payload, true, nil
		}
		wake := c.wake
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return "", nil, false, ctx.Err()
		case <-deadline.C:
			return "", nil, false, nil
		case <-wake:
		}
	}
}

// DeleteMatching removes every queue whose key matches the glob pattern.
func (c *Channel) DeleteMatching(_ context.Context, pattern string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key := range c.queues {
		match, err := path.Match(pattern, key)
		if err != nil {
			return removed, err
		}
		if match {
			delete(c.queues, key)
			removed++
		}
	}
	return removed, nil
}

// Broadcast records the payload under the group name and delivers it to
// every subscriber whose pattern matches. Tests read the record back with
// GroupMessages.
func (c *Channel) Broadcast(_ context.Context, group string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("channel closed")
	}
	body := append([]byte(nil), payload...)
	c.groups[group] = append(c.groups[group], body)
	for _, sub := range c.subscribers {
		match, err := path.Match(sub.pattern, group)
		if err != nil || !match {
			continue
		}
		// Non-blocking: a subscriber that stopped draining loses messages
		// rather than wedging broadcasters.
		select {
		case sub.out <- channel.GroupMessage{Group: group, Payload: body}:
		case <-sub.done:
		default:
		}
	}
	return nil
}

// SubscribePattern streams broadcasts for every group matching the glob
// pattern.
func (c *Channel) SubscribePattern(_ context.Context, pattern string) (<-chan channel.GroupMessage, func() error, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, nil, err
	}
	sub := &subscription{
		pattern: pattern,
		out:     make(chan channel.GroupMessage, 16),
		done:    make(chan struct{}),
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, nil, errors.New("channel closed")
	}
	c.subscribers = append(c.subscribers, sub)
	return sub.out, sub.stop, nil
}

// Close marks the channel closed; subsequent operations fail.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.wake)
	c.wake = make(chan struct{})
	return nil
}

// Len reports the queued message count for a key.
func (c *Channel) Len(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queues[key])
}

// Keys returns the keys that currently hold at least one message.
func (c *Channel) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.queues))
	for key := range c.queues {
		keys = append(keys, key)
	}
	return keys
}

// GroupMessages returns the payloads broadcast to a group, in order.
func (c *Channel) GroupMessages(group string) [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := make([][]byte, len(c.groups[group]))
	copy(msgs, c.groups[group])
	return msgs
}

// Package redis implements the message channel on Redis lists.
//
// Each channel key is a Redis list: Push is RPUSH, BlockPop is BLPOP across
// the listen keys, and DeleteMatching walks SCAN with a glob pattern. The
// completion broadcast uses plain PUBLISH, one Redis pub/sub channel per
// session group.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JakeFAU/browserbot-relay/internal/channel"
)

// Config captures the parameters required to connect to Redis.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Channel is a Redis-backed channel.Channel and channel.Broadcaster.
type Channel struct {
	client *redis.Client
}

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, cfg Config) (*Channel, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		closeErr := client.Close()
		if closeErr != nil {
			return nil, fmt.Errorf("ping redis: %w (close client: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Channel{client: client}, nil
}

// NewWithClient wraps an existing client (primarily for testing).
func NewWithClient(client *redis.Client) (*Channel, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &Channel{client: client}, nil
}

// Push appends payload to the tail of the list named by key.
func (c *Channel) Push(ctx context.Context, key string, payload []byte) error {
	if err := c.client.RPush(ctx, key, payload).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", key, err)
	}
	return nil
}

// BlockPop pops from the head of the first non-empty list among keys,
// blocking up to timeout. Redis reports a timeout as redis.Nil, which is
// translated to ok=false rather than an error.
func (c *Channel) BlockPop(ctx context.Context, keys []string, timeout time.Duration) (string, []byte, bool, error) {
	result, err := c.client.BLPop(ctx, timeout, keys...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil, false, nil
		}
		return "", nil, false, fmt.Errorf("blpop: %w", err)
	}
	// BLPOP returns [key, value].
	if len(result) != 2 {
		return "", nil, false, fmt.Errorf("blpop: unexpected reply of %d elements", len(result))
	}
	return result[0], []byte(result[1]), true, nil
}

// DeleteMatching removes every key matching the glob pattern via SCAN+DEL.
func (c *Channel) DeleteMatching(ctx context.Context, pattern string) (int, error) {
	removed := 0
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return removed, fmt.Errorf("scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			deleted, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("del: %w", err)
			}
			removed += int(deleted)
		}
		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}

// Broadcast publishes payload to the pub/sub channel named by group.
func (c *Channel) Broadcast(ctx context.Context, group string, payload []byte) error {
	if err := c.client.Publish(ctx, group, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", group, err)
	}
	return nil
}

// SubscribePattern streams broadcasts for every group matching the glob
// pattern, via Redis PSUBSCRIBE.
func (c *Channel) SubscribePattern(ctx context.Context, pattern string) (<-chan channel.GroupMessage, func() error, error) {
	sub := c.client.PSubscribe(ctx, pattern)
	// Force the subscription onto the wire before we report success.
	if _, err := sub.Receive(ctx); err != nil {
		closeErr := sub.Close()
		if closeErr != nil {
			return nil, nil, fmt.Errorf("psubscribe %s: %w (close: %v)", pattern, err, closeErr)
		}
		return nil, nil, fmt.Errorf("psubscribe %s: %w", pattern, err)
	}

	out := make(chan channel.GroupMessage)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			select {
			case out <- channel.GroupMessage{Group: msg.Channel, Payload: []byte(msg.Payload)}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, sub.Close, nil
}

// Close releases the underlying client.
func (c *Channel) Close() error {
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}
	return nil
}

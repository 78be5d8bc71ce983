// Package notify carries completion messages to listeners outside the
// message channel's own pub/sub, and provides the relay that bridges the
// two.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/browserbot-relay/internal/channel"
)

// Relay forwards completion broadcasts from a subscription source (the
// Redis-backed channel in production) to another broadcaster (the Pub/Sub
// notifier), so listeners that cannot reach the broker still learn when a
// client finishes. Forwarding is best effort: a failed delivery is logged
// and the relay keeps going.
type Relay struct {
	src     channel.Subscriber
	dst     channel.Broadcaster
	pattern string
	logger  *zap.Logger
}

// NewRelay constructs a Relay forwarding every group matching pattern.
func NewRelay(src channel.Subscriber, dst channel.Broadcaster, pattern string, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{
		src:     src,
		dst:     dst,
		pattern: pattern,
		logger:  logger,
	}
}

// Run subscribes and forwards until the context finishes or the source
// stream closes.
func (r *Relay) Run(ctx context.Context) error {
	msgs, stop, err := r.src.SubscribePattern(ctx, r.pattern)
	if err != nil {
		return err
	}
	defer func() {
		if stopErr := stop(); stopErr != nil {
			r.logger.Warn("stop subscription failed", zap.Error(stopErr))
		}
	}()

	r.logger.Info("completion relay started", zap.String("pattern", r.pattern))
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			if err := r.dst.Broadcast(ctx, msg.Group, msg.Payload); err != nil {
				r.logger.Warn("forward completion failed",
					zap.String("group", msg.Group),
					zap.Error(err),
				)
			}
		}
	}
}

// Package pubsub implements the completion broadcaster on Google Cloud
// Pub/Sub, for deployments where the listener for "this client finished"
// events lives outside the Redis deployment.
package pubsub

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.opentelemetry.io/otel"
)

// groupAttribute carries the session group name on each message, since all
// groups share one topic.
const groupAttribute = "group"

// Notifier publishes completion messages to a Pub/Sub topic.
type Notifier struct {
	topic *pubsub.Topic
}

// New creates a Notifier for the provided topic.
func New(topic *pubsub.Topic) *Notifier {
	return &Notifier{topic: topic}
}

// Broadcast publishes the payload with the group name as an attribute and
// the current trace context injected.
func (n *Notifier) Broadcast(ctx context.Context, group string, payload []byte) error {
	if n.topic == nil {
		return fmt.Errorf("pubsub topic is not configured")
	}
	msg := &pubsub.Message{
		Data:       payload,
		Attributes: map[string]string{groupAttribute: group},
	}
	otel.GetTextMapPropagator().Inject(ctx, &pubsubCarrier{attrs: msg.Attributes})

	result := n.topic.Publish(ctx, msg)
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// pubsubCarrier implements propagation.TextMapCarrier for Pub/Sub attributes.
type pubsubCarrier struct {
	attrs map[string]string
}

func (c *pubsubCarrier) Get(key string) string {
	return c.attrs[key]
}

func (c *pubsubCarrier) Set(key, value string) {
	c.attrs[key] = value
}

func (c *pubsubCarrier) Keys() []string {
	keys := make([]string, 0, len(c.attrs))
	for k := range c.attrs {
		keys = append(keys, k)
	}
	return keys
}

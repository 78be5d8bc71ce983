// Package memory records completion broadcasts in-memory for tests.
package memory

import (
	"context"
	"sync"
)

// Message is one recorded broadcast.
type Message struct {
	Group   string
	Payload []byte
}

// Notifier records every broadcast it receives.
type Notifier struct {
	mu       sync.Mutex
	messages []Message
}

// New creates an empty recording notifier.
func New() *Notifier {
	return &Notifier{}
}

// Broadcast records the message.
func (n *Notifier) Broadcast(_ context.Context, group string, payload []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, Message{
		Group:   group,
		Payload: append([]byte(nil), payload...),
	})
	return nil
}

// Messages returns the broadcasts recorded so far.
func (n *Notifier) Messages() []Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Message, len(n.messages))
	copy(out, n.messages)
	return out
}

// Package memory stores participants in-memory for development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/browserbot-relay/internal/participant"
)

// Store holds participant records in a map.
type Store struct {
	mu           sync.RWMutex
	participants map[string]participant.Participant
}

// NewStore creates an empty in-memory participant store.
func NewStore() *Store {
	return &Store{participants: make(map[string]participant.Participant)}
}

// Add registers a participant, overwriting any existing record with the code.
func (s *Store) Add(p participant.Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participants[p.Code] = p
}

// Get returns the participant with the given code, or participant.ErrNotFound.
func (s *Store) Get(_ context.Context, code string) (participant.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[code]
	if !ok {
		return participant.Participant{}, participant.ErrNotFound
	}
	return p, nil
}

// Package memory keeps archived pages in-memory for development.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/JakeFAU/browserbot-relay/internal/archive"
)

// Store holds archived pages in a map keyed by object path.
type Store struct {
	prefix string

	mu    sync.RWMutex
	pages map[string][]byte
}

// NewStore creates an empty in-memory page archive.
func NewStore(prefix string) *Store {
	return &Store{
		prefix: prefix,
		pages:  make(map[string][]byte),
	}
}

// PutPage records the page content and returns a pseudo URI.
func (s *Store) PutPage(_ context.Context, participantCode, pagePath string, html []byte) (string, error) {
	path := archive.ObjectPath(s.prefix, participantCode, pagePath, time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[path] = append([]byte(nil), html...)
	return fmt.Sprintf("memory://%s", path), nil
}

// Count reports the number of archived pages for a participant.
func (s *Store) Count(participantCode string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for path := range s.pages {
		if strings.Contains(path, "/"+participantCode+"/") || strings.HasPrefix(path, participantCode+"/") {
			n++
		}
	}
	return n
}

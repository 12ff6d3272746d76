// Package sessionstore persists the auth collaborator's current session.
package sessionstore

import (
	"context"
	"sync"

	"agribid-backend/internal/domain"
)

type memoryStore struct {
	mu      sync.RWMutex
	session *domain.Session
}

// NewMemoryStore keeps the session in process memory. The HTTP server uses
// one per request.
func NewMemoryStore(initial *domain.Session) domain.SessionStore {
	return &memoryStore{session: clone(initial)}
}

func (s *memoryStore) Load(ctx context.Context) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.session), nil
}

func (s *memoryStore) Save(ctx context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = clone(session)
	return nil
}

func (s *memoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	return nil
}

func clone(s *domain.Session) *domain.Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.Identity.EmailConfirmedAt != nil {
		t := *s.Identity.EmailConfirmedAt
		c.Identity.EmailConfirmedAt = &t
	}
	return &c
}

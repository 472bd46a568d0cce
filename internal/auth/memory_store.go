package auth

import (
	"context"
	"sync"
	"time"
)

// MemorySessionStore keeps session state in-memory. It is safe for concurrent
// use and primarily intended for development or single-instance deployments.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]memoryRecord
	now      func() time.Time
}

type memoryRecord struct {
	session   Session
	expiresAt time.Time
}

// NewMemorySessionStore constructs an in-memory store implementation.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]memoryRecord),
		now:      time.Now,
	}
}

// Save records the session under the provided token for the duration of ttl.
func (s *MemorySessionStore) Save(_ context.Context, token string, session Session, ttl time.Duration) error {
	s.mu.Lock()
	s.sessions[token] = memoryRecord{session: session, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

// Get retrieves the session for the provided token. Expired entries behave
// exactly like absent ones and are dropped lazily.
func (s *MemorySessionStore) Get(_ context.Context, token string) (Session, bool, error) {
	s.mu.RLock()
	record, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok {
		return Session{}, false, nil
	}
	if s.now().After(record.expiresAt) {
		s.mu.Lock()
		delete(s.sessions, token)
		s.mu.Unlock()
		return Session{}, false, nil
	}
	return record.session, true, nil
}

// Ping always reports success for the in-memory session store.
func (s *MemorySessionStore) Ping(context.Context) error {
	return nil
}

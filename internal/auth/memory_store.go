package auth

import (
	"context"
	"sync"
	"time"
)

// MemorySessionStore is an in-memory SessionStore for development and tests.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session // by ID
	byHash   map[string]string   // token hash -> ID
}

// NewMemorySessionStore creates an empty in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*Session),
		byHash:   make(map[string]string),
	}
}

func (m *MemorySessionStore) Create(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *s
	m.sessions[s.ID] = &cp
	m.byHash[s.TokenHash] = s.ID
	return nil
}

func (m *MemorySessionStore) GetByTokenHash(_ context.Context, hash string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byHash[hash]
	if !ok {
		return nil, ErrInvalidSession
	}
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrInvalidSession
	}
	cp := *s
	return &cp, nil
}

func (m *MemorySessionStore) Touch(_ context.Context, id string, lastSeen time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		s.LastSeen = lastSeen
	}
	return nil
}

func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		delete(m.byHash, s.TokenHash)
		delete(m.sessions, id)
	}
	return nil
}

func (m *MemorySessionStore) DeleteByUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.byHash, s.TokenHash)
			delete(m.sessions, id)
		}
	}
	return nil
}

func (m *MemorySessionStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, s := range m.sessions {
		if now.After(s.ExpiresAt) {
			delete(m.byHash, s.TokenHash)
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

var _ SessionStore = (*MemorySessionStore)(nil)

package renewal

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store for development and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	requests map[string]*Request
}

// NewMemoryStore creates an empty in-memory renewal store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{requests: make(map[string]*Request)}
}

func (m *MemoryStore) Create(_ context.Context, r *Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *r
	m.requests[r.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) FindPending(_ context.Context, userID string) (*Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.requests {
		if r.UserID == userID && r.Status == StatusPending {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrRequestNotFound
}

func (m *MemoryStore) ListByUser(_ context.Context, userID string, limit int) ([]*Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Request
	for _, r := range m.requests {
		if r.UserID == userID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) ListPending(_ context.Context, tenantID string) ([]*Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Request
	for _, r := range m.requests {
		if r.Status != StatusPending {
			continue
		}
		if tenantID != "" && r.TenantID != tenantID {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.Before(out[j].RequestedAt) })
	return out, nil
}

func (m *MemoryStore) Update(_ context.Context, r *Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.requests[r.ID]; !ok {
		return ErrRequestNotFound
	}
	cp := *r
	m.requests[r.ID] = &cp
	return nil
}

var _ Store = (*MemoryStore)(nil)

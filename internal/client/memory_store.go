package client

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gestororion/orion/internal/identity"
)

// MemoryStore is an in-memory Store for development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewMemoryStore creates an empty in-memory client store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{clients: make(map[string]*Client)}
}

func (m *MemoryStore) Create(_ context.Context, c *Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *c
	m.clients[c.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, scope identity.Scope, id string) (*Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.clients[id]
	if !ok || !scope.Matches(c.TenantID, c.OwnerID, c.LegacyResellerID) {
		return nil, ErrClientNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) List(_ context.Context, scope identity.Scope, f Filter) ([]*Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Client
	for _, c := range m.clients {
		if !scope.Matches(c.TenantID, c.OwnerID, c.LegacyResellerID) {
			continue
		}
		if !matchesFilter(c, f) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) Count(_ context.Context, scope identity.Scope) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, c := range m.clients {
		if scope.Matches(c.TenantID, c.OwnerID, c.LegacyResellerID) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) CountActiveOwned(_ context.Context, tenantID string, ownerIDs []string, now time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	owned := make(map[string]bool, len(ownerIDs))
	for _, id := range ownerIDs {
		owned[id] = true
	}

	n := 0
	for _, c := range m.clients {
		if c.TenantID != tenantID || !owned[c.OwnerID] {
			continue
		}
		if c.Status == StatusInactive || c.Overdue(now) {
			continue
		}
		n++
	}
	return n, nil
}

func (m *MemoryStore) Update(_ context.Context, scope identity.Scope, c *Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.clients[c.ID]
	if !ok || !scope.Matches(cur.TenantID, cur.OwnerID, cur.LegacyResellerID) {
		return ErrClientNotFound
	}
	cp := *c
	m.clients[c.ID] = &cp
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, scope identity.Scope, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.clients[id]
	if !ok || !scope.Matches(cur.TenantID, cur.OwnerID, cur.LegacyResellerID) {
		return ErrClientNotFound
	}
	delete(m.clients, id)
	return nil
}

func (m *MemoryStore) ListOverdueActive(_ context.Context, now time.Time) ([]*Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Client
	for _, c := range m.clients {
		if c.Status == StatusActive && c.Overdue(now) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out, nil
}

func matchesFilter(c *Client, f Filter) bool {
	if f.Server != "" && c.Server != f.Server {
		return false
	}
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.DueFrom != nil && c.DueDate.Before(*f.DueFrom) {
		return false
	}
	if f.DueTo != nil && !c.DueDate.Before(*f.DueTo) {
		return false
	}
	return true
}

var _ Store = (*MemoryStore)(nil)

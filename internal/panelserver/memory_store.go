package panelserver

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store for development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	servers map[string]*Server
}

// NewMemoryStore creates an empty in-memory server registry.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{servers: make(map[string]*Server)}
}

func (m *MemoryStore) Create(_ context.Context, s *Server) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, cur := range m.servers {
		if cur.TenantID == s.TenantID && cur.Name == s.Name {
			return ErrNameTaken
		}
	}
	cp := *s
	m.servers[s.ID] = &cp
	return nil
}

func (m *MemoryStore) List(_ context.Context, tenantID string) ([]*Server, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Server
	for _, s := range m.servers {
		if s.TenantID == tenantID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) Delete(_ context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.servers[id]
	if !ok || cur.TenantID != tenantID {
		return ErrServerNotFound
	}
	delete(m.servers, id)
	return nil
}

var _ Store = (*MemoryStore)(nil)

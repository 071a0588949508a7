package audit

import (
	"context"
	"sync"

	"github.com/gestororion/orion/internal/pagination"
)

// MemoryStore is an in-memory audit Store for development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []*Entry
}

// NewMemoryStore creates an empty in-memory audit store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Append(_ context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *e
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *MemoryStore) List(_ context.Context, tenantID string, before *pagination.Cursor, limit int) ([]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Entry
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if tenantID != "" && e.TenantID != tenantID {
			continue
		}
		if before != nil && !beforeCursor(e, before) {
			continue
		}
		cp := *e
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// beforeCursor reports whether e sorts after the cursor position in the
// (created_at DESC, id DESC) order, i.e. belongs to a later page.
func beforeCursor(e *Entry, c *pagination.Cursor) bool {
	if e.CreatedAt.Before(c.CreatedAt) {
		return true
	}
	return e.CreatedAt.Equal(c.CreatedAt) && e.ID < c.ID
}

var _ Store = (*MemoryStore)(nil)

package user

import (
	"context"
	"sort"
	"sync"

	"github.com/gestororion/orion/internal/identity"
)

// MemoryStore is an in-memory user store for demo/development.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*User // by ID
}

// NewMemoryStore creates a new in-memory user store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]*User)}
}

func (m *MemoryStore) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, other := range m.users {
		if other.Username == u.Username {
			return ErrUsernameTaken
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryStore) GetByUsername(_ context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *MemoryStore) GetByResetToken(_ context.Context, token string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if token == "" {
		return nil, ErrUserNotFound
	}
	for _, u := range m.users {
		if u.ResetToken == token {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *MemoryStore) FindMaster(_ context.Context) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Role == identity.RoleMaster {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *MemoryStore) FindTenantAdmin(_ context.Context, tenantID string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Role == identity.RoleAdmin && u.TenantID == tenantID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *MemoryStore) List(_ context.Context, f Filter) ([]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*User
	for _, u := range m.users {
		if f.TenantID != "" && u.TenantID != f.TenantID {
			continue
		}
		if f.CreatedBy != "" && u.CreatedBy != f.CreatedBy {
			continue
		}
		if f.Role != "" && string(u.Role) != f.Role {
			continue
		}
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) Update(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[u.ID]; !ok {
		return ErrUserNotFound
	}
	for _, other := range m.users {
		if other.ID != u.ID && other.Username == u.Username {
			return ErrUsernameTaken
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *MemoryStore) PersonalIDs(_ context.Context, createdBy string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for _, u := range m.users {
		if u.Role == identity.RolePersonal && u.CreatedBy == createdBy {
			ids = append(ids, u.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

var _ Store = (*MemoryStore)(nil)

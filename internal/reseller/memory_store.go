package reseller

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gestororion/orion/internal/identity"
)

// MemoryStore is an in-memory Store for development and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	resellers map[string]*Reseller
}

// NewMemoryStore creates an empty in-memory reseller store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{resellers: make(map[string]*Reseller)}
}

func clone(r *Reseller) *Reseller {
	cp := *r
	cp.Servers = append([]ServerRow(nil), r.Servers...)
	return &cp
}

func inScope(s identity.Scope, r *Reseller) bool {
	return s.Matches(r.TenantID, r.OwnerID, r.ID)
}

func (m *MemoryStore) Create(_ context.Context, r *Reseller) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resellers[r.ID] = clone(r)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, scope identity.Scope, id string) (*Reseller, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.resellers[id]
	if !ok || !inScope(scope, r) {
		return nil, ErrResellerNotFound
	}
	return clone(r), nil
}

func (m *MemoryStore) List(_ context.Context, scope identity.Scope) ([]*Reseller, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Reseller
	for _, r := range m.resellers {
		if inScope(scope, r) {
			out = append(out, clone(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) Count(_ context.Context, scope identity.Scope) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, r := range m.resellers {
		if inScope(scope, r) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Update(_ context.Context, scope identity.Scope, r *Reseller) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.resellers[r.ID]
	if !ok || !inScope(scope, cur) {
		return ErrResellerNotFound
	}
	m.resellers[r.ID] = clone(r)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, scope identity.Scope, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.resellers[id]
	if !ok || !inScope(scope, cur) {
		return ErrResellerNotFound
	}
	delete(m.resellers, id)
	return nil
}

func (m *MemoryStore) ListSettlingOn(_ context.Context, day time.Time) ([]*Reseller, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	y, mo, d := day.Date()
	var out []*Reseller
	for _, r := range m.resellers {
		for _, row := range r.Servers {
			if row.SettleDate == nil {
				continue
			}
			sy, smo, sd := row.SettleDate.Date()
			if sy == y && smo == mo && sd == d {
				out = append(out, clone(r))
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) ListPaymentResetDue(_ context.Context, now time.Time) ([]*Reseller, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var out []*Reseller
	for _, r := range m.resellers {
		if r.PaymentStatus != PaymentPaid {
			continue
		}
		latest := latestSettle(r)
		if latest != nil && latest.Before(today) {
			out = append(out, clone(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) ListExpiredPlans(_ context.Context, now time.Time) ([]*Reseller, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Reseller
	for _, r := range m.resellers {
		if r.PlanExpired(now) {
			out = append(out, clone(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func latestSettle(r *Reseller) *time.Time {
	var latest *time.Time
	for i := range r.Servers {
		sd := r.Servers[i].SettleDate
		if sd == nil {
			continue
		}
		if latest == nil || sd.After(*latest) {
			latest = sd
		}
	}
	return latest
}

var _ Store = (*MemoryStore)(nil)

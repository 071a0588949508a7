package reseller

import (
	"context"
	"time"

	"github.com/gestororion/orion/internal/identity"
	"github.com/gestororion/orion/internal/idgen"
	"github.com/gestororion/orion/internal/validation"
)

// Service provides reseller business logic on top of the scoped store.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a new reseller service.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// WithNow overrides the clock (for testing).
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateParams collects the fields for a new reseller.
type CreateParams struct {
	Name          string
	Phone         string
	Notes         string
	Type          string
	PlanActive    bool
	PlanExpiresAt *time.Time
	PlanValue     float64
	Servers       []ServerRow
}

// Create registers a reseller owned by the caller.
func (s *Service) Create(ctx context.Context, caller identity.Identity, p CreateParams) (*Reseller, error) {
	if caller.TenantID == "" {
		return nil, identity.ErrTenantNotIdentified
	}
	if p.Type == "" {
		p.Type = TypePrepaid
	}

	now := s.now()
	r := &Reseller{
		ID:            idgen.WithPrefix("rsl_"),
		TenantID:      caller.TenantID,
		OwnerID:       caller.UserID,
		Name:          validation.SanitizeString(p.Name, 200),
		Phone:         validation.SanitizeString(p.Phone, 40),
		Notes:         validation.SanitizeString(p.Notes, 1000),
		Type:          p.Type,
		Status:        StatusActive,
		PaymentStatus: PaymentPending,
		PlanActive:    p.PlanActive,
		PlanExpiresAt: p.PlanExpiresAt,
		PlanValue:     p.PlanValue,
		Servers:       p.Servers,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Get loads a reseller inside the caller's scope.
func (s *Service) Get(ctx context.Context, scope identity.Scope, id string) (*Reseller, error) {
	return s.store.Get(ctx, scope, id)
}

// List returns the resellers in scope, newest first.
func (s *Service) List(ctx context.Context, scope identity.Scope) ([]*Reseller, error) {
	return s.store.List(ctx, scope)
}

// UpdateParams carries the editable fields; nil means unchanged. Servers,
// when non-nil, replaces the whole server-row set.
type UpdateParams struct {
	Name          *string
	Phone         *string
	Notes         *string
	Type          *string
	PlanActive    *bool
	PlanExpiresAt *time.Time
	ClearPlan     bool
	PlanValue     *float64
	Servers       []ServerRow
}

// Update edits a reseller in scope.
func (s *Service) Update(ctx context.Context, scope identity.Scope, id string, p UpdateParams) (*Reseller, error) {
	r, err := s.store.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if p.Name != nil {
		r.Name = validation.SanitizeString(*p.Name, 200)
	}
	if p.Phone != nil {
		r.Phone = validation.SanitizeString(*p.Phone, 40)
	}
	if p.Notes != nil {
		r.Notes = validation.SanitizeString(*p.Notes, 1000)
	}
	if p.Type != nil {
		r.Type = *p.Type
	}
	if p.PlanActive != nil {
		r.PlanActive = *p.PlanActive
	}
	if p.ClearPlan {
		r.PlanActive = false
		r.PlanExpiresAt = nil
	} else if p.PlanExpiresAt != nil {
		r.PlanExpiresAt = p.PlanExpiresAt
	}
	if p.PlanValue != nil {
		r.PlanValue = *p.PlanValue
	}
	if p.Servers != nil {
		r.Servers = p.Servers
	}
	r.UpdatedAt = s.now()

	if err := s.store.Update(ctx, scope, r); err != nil {
		return nil, err
	}
	return r, nil
}

// ToggleStatus flips ATIVO/INATIVO.
func (s *Service) ToggleStatus(ctx context.Context, scope identity.Scope, id string) (*Reseller, error) {
	r, err := s.store.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if r.Status == StatusActive {
		r.Status = StatusInactive
	} else {
		r.Status = StatusActive
	}
	r.UpdatedAt = s.now()

	if err := s.store.Update(ctx, scope, r); err != nil {
		return nil, err
	}
	return r, nil
}

// SetPaymentStatus records a settlement as paid or re-opens it.
func (s *Service) SetPaymentStatus(ctx context.Context, scope identity.Scope, id, status string) (*Reseller, error) {
	r, err := s.store.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	r.PaymentStatus = status
	r.UpdatedAt = s.now()

	if err := s.store.Update(ctx, scope, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Delete removes a reseller in scope.
func (s *Service) Delete(ctx context.Context, scope identity.Scope, id string) error {
	return s.store.Delete(ctx, scope, id)
}

// SettlementsDue lists in-scope resellers with a server row settling within
// the next given number of days.
func (s *Service) SettlementsDue(ctx context.Context, scope identity.Scope, days int) ([]*Reseller, error) {
	all, err := s.store.List(ctx, scope)
	if err != nil {
		return nil, err
	}

	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	limit := today.AddDate(0, 0, days)
	var out []*Reseller
	for _, r := range all {
		for _, row := range r.Servers {
			if row.SettleDate == nil {
				continue
			}
			if !row.SettleDate.Before(today) && row.SettleDate.Before(limit) {
				out = append(out, r)
				break
			}
		}
	}
	return out, nil
}

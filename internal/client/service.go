package client

import (
	"context"
	"time"

	"github.com/gestororion/orion/internal/identity"
	"github.com/gestororion/orion/internal/idgen"
	"github.com/gestororion/orion/internal/validation"
)

// Service provides client business logic on top of the scoped store.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a new client service.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// WithNow overrides the clock (for testing).
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateParams collects the fields for a new client.
type CreateParams struct {
	Name      string
	Phone     string
	Username  string
	Password  string
	Server    string
	Device    string
	Notes     string
	PlanType  int
	PlanValue float64
	Cost      float64
	StartDate time.Time
}

// Create registers a client owned by the caller. The due date is derived,
// never provided: start plus the plan length in days.
func (s *Service) Create(ctx context.Context, caller identity.Identity, p CreateParams) (*Client, error) {
	if caller.TenantID == "" {
		return nil, identity.ErrTenantNotIdentified
	}
	if p.PlanType <= 0 {
		return nil, ErrInvalidPlan
	}

	now := s.now()
	start := p.StartDate
	if start.IsZero() {
		start = now
	}

	c := &Client{
		ID:        idgen.WithPrefix("cli_"),
		TenantID:  caller.TenantID,
		OwnerID:   caller.UserID,
		Name:      validation.SanitizeString(p.Name, 200),
		Phone:     validation.SanitizeString(p.Phone, 40),
		Username:  validation.SanitizeString(p.Username, 100),
		Password:  p.Password,
		Server:    validation.SanitizeString(p.Server, 100),
		Device:    validation.SanitizeString(p.Device, 100),
		Notes:     validation.SanitizeString(p.Notes, 1000),
		PlanType:  p.PlanType,
		PlanValue: p.PlanValue,
		Cost:      p.Cost,
		StartDate: start,
		DueDate:   start.AddDate(0, 0, p.PlanType),
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Get loads a client inside the caller's scope.
func (s *Service) Get(ctx context.Context, scope identity.Scope, id string) (*Client, error) {
	return s.store.Get(ctx, scope, id)
}

// List returns the clients in scope, newest first.
func (s *Service) List(ctx context.Context, scope identity.Scope, f Filter) ([]*Client, error) {
	return s.store.List(ctx, scope, f)
}

// UpdateParams carries the editable fields; nil means unchanged.
type UpdateParams struct {
	Name      *string
	Phone     *string
	Username  *string
	Password  *string
	Server    *string
	Device    *string
	Notes     *string
	PlanValue *float64
	Cost      *float64
}

// Update edits a client in scope. Plan length and dates move only through
// Renew, so the derived-due-date invariant cannot be broken by an edit.
func (s *Service) Update(ctx context.Context, scope identity.Scope, id string, p UpdateParams) (*Client, error) {
	c, err := s.store.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if p.Name != nil {
		c.Name = validation.SanitizeString(*p.Name, 200)
	}
	if p.Phone != nil {
		c.Phone = validation.SanitizeString(*p.Phone, 40)
	}
	if p.Username != nil {
		c.Username = validation.SanitizeString(*p.Username, 100)
	}
	if p.Password != nil {
		c.Password = *p.Password
	}
	if p.Server != nil {
		c.Server = validation.SanitizeString(*p.Server, 100)
	}
	if p.Device != nil {
		c.Device = validation.SanitizeString(*p.Device, 100)
	}
	if p.Notes != nil {
		c.Notes = validation.SanitizeString(*p.Notes, 1000)
	}
	if p.PlanValue != nil {
		c.PlanValue = *p.PlanValue
	}
	if p.Cost != nil {
		c.Cost = *p.Cost
	}
	c.UpdatedAt = s.now()

	if err := s.store.Update(ctx, scope, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Renew extends the subscription by planType days counted from the current
// due date when it is still in the future, otherwise from now. A lapsed
// client never gets credit for the gap.
func (s *Service) Renew(ctx context.Context, scope identity.Scope, id string, planType int, planValue *float64) (*Client, error) {
	if planType <= 0 {
		return nil, ErrInvalidPlan
	}
	c, err := s.store.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	base := c.DueDate
	if base.Before(now) {
		base = now
	}
	c.PlanType = planType
	if planValue != nil {
		c.PlanValue = *planValue
	}
	c.DueDate = base.AddDate(0, 0, planType)
	c.Status = StatusActive
	c.UpdatedAt = now

	if err := s.store.Update(ctx, scope, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ToggleStatus flips ATIVO/INATIVO independently of the dates.
func (s *Service) ToggleStatus(ctx context.Context, scope identity.Scope, id string) (*Client, error) {
	c, err := s.store.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if c.Status == StatusActive {
		c.Status = StatusInactive
	} else {
		c.Status = StatusActive
	}
	c.UpdatedAt = s.now()

	if err := s.store.Update(ctx, scope, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes a client in scope.
func (s *Service) Delete(ctx context.Context, scope identity.Scope, id string) error {
	return s.store.Delete(ctx, scope, id)
}

// Expiring lists in-scope clients whose due date falls within the next
// given number of days. Feeds the renewal-reminder screen.
func (s *Service) Expiring(ctx context.Context, scope identity.Scope, days int) ([]*Client, error) {
	now := s.now()
	to := now.AddDate(0, 0, days)
	return s.store.List(ctx, scope, Filter{DueFrom: &now, DueTo: &to, Status: StatusActive})
}

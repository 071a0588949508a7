package tenant

import (
	"context"
	"time"

	"github.com/gestororion/orion/internal/identity"
	"github.com/gestororion/orion/internal/idgen"
	"github.com/gestororion/orion/internal/user"
	"github.com/gestororion/orion/internal/validation"
)

// LicenseInvalidator drops the cached license decision for a tenant.
// Every write to license fields must call it.
type LicenseInvalidator interface {
	Invalidate(tenantID string)
}

type noopInvalidator struct{}

func (noopInvalidator) Invalidate(string) {}

// Service provides tenant lifecycle business logic.
type Service struct {
	store    Store
	users    *user.Service
	licenses LicenseInvalidator
	now      func() time.Time
}

// NewService creates a new tenant service.
func NewService(store Store, users *user.Service, licenses LicenseInvalidator) *Service {
	if licenses == nil {
		licenses = noopInvalidator{}
	}
	return &Service{store: store, users: users, licenses: licenses, now: time.Now}
}

// WithNow overrides the clock (for testing).
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateParams collects what the master provides to open a tenant.
type CreateParams struct {
	Name              string
	Slug              string
	Plan              Plan
	LicenseExpiration *time.Time
	BrandName         string
	PrimaryColor      string
	LogoURL           string
	AdminUsername     string
	AdminPassword     string
}

// Create opens a new tenant together with its admin account.
func (s *Service) Create(ctx context.Context, p CreateParams) (*Tenant, *user.User, error) {
	p.Slug = validation.NormalizeSlug(p.Slug)
	if !validation.IsValidSlug(p.Slug) {
		return nil, nil, ErrInvalidSlug
	}
	if p.Plan == "" {
		p.Plan = PlanBasico
	}
	if p.BrandName == "" {
		p.BrandName = p.Name
	}
	if p.PrimaryColor == "" {
		p.PrimaryColor = DefaultPrimaryColor
	}

	now := s.now()
	t := &Tenant{
		ID:                idgen.WithPrefix("ten_"),
		Name:              validation.SanitizeString(p.Name, 200),
		Slug:              p.Slug,
		BrandName:         validation.SanitizeString(p.BrandName, 200),
		PrimaryColor:      p.PrimaryColor,
		LogoURL:           p.LogoURL,
		Plan:              p.Plan,
		LicenseExpiration: p.LicenseExpiration,
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, nil, err
	}

	admin, err := s.users.Create(ctx, user.CreateParams{
		Username: p.AdminUsername,
		Password: p.AdminPassword,
		Role:     identity.RoleAdmin,
		TenantID: t.ID,
	})
	if err != nil {
		return nil, nil, err
	}
	return t, admin, nil
}

// Get loads a tenant by id.
func (s *Service) Get(ctx context.Context, id string) (*Tenant, error) {
	return s.store.Get(ctx, id)
}

// List returns all tenants, newest first. Master only.
func (s *Service) List(ctx context.Context) ([]*Tenant, error) {
	return s.store.List(ctx)
}

// UpdateParams carries the master-editable fields; nil means unchanged.
type UpdateParams struct {
	Name              *string
	Plan              *Plan
	LicenseExpiration *time.Time
	ClearLicense      bool
	IsActive          *bool
	BrandName         *string
	PrimaryColor      *string
	LogoURL           *string
}

// Update applies master-level changes and invalidates the license cache.
func (s *Service) Update(ctx context.Context, id string, p UpdateParams) (*Tenant, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Name != nil {
		t.Name = validation.SanitizeString(*p.Name, 200)
	}
	if p.Plan != nil && ValidPlan(*p.Plan) {
		t.Plan = *p.Plan
	}
	if p.ClearLicense {
		t.LicenseExpiration = nil
	} else if p.LicenseExpiration != nil {
		t.LicenseExpiration = p.LicenseExpiration
	}
	if p.IsActive != nil {
		t.IsActive = *p.IsActive
	}
	if p.BrandName != nil {
		t.BrandName = validation.SanitizeString(*p.BrandName, 200)
	}
	if p.PrimaryColor != nil {
		t.PrimaryColor = *p.PrimaryColor
	}
	if p.LogoURL != nil {
		t.LogoURL = *p.LogoURL
	}
	t.UpdatedAt = s.now()

	if err := s.store.Update(ctx, t); err != nil {
		return nil, err
	}
	s.licenses.Invalidate(t.ID)
	return t, nil
}

// Deactivate soft-deletes a tenant. Its data stays; its traffic is gated.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	t.IsActive = false
	t.UpdatedAt = s.now()
	if err := s.store.Update(ctx, t); err != nil {
		return err
	}
	s.licenses.Invalidate(t.ID)
	return nil
}

// UpdateBranding lets a tenant admin change presentation fields only.
// Plan, license and active flag are out of reach here.
func (s *Service) UpdateBranding(ctx context.Context, tenantID string, brandName, primaryColor, logoURL *string) (*Tenant, error) {
	if tenantID == "" {
		return nil, identity.ErrTenantNotIdentified
	}
	t, err := s.store.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if brandName != nil {
		t.BrandName = validation.SanitizeString(*brandName, 200)
	}
	if primaryColor != nil {
		t.PrimaryColor = *primaryColor
	}
	if logoURL != nil {
		t.LogoURL = *logoURL
	}
	t.UpdatedAt = s.now()
	if err := s.store.Update(ctx, t); err != nil {
		return nil, err
	}
	s.licenses.Invalidate(t.ID)
	return t, nil
}

// LicenseStatus is the caller-facing license summary.
type LicenseStatus struct {
	Valid        bool       `json:"valid"`
	Reason       string     `json:"reason,omitempty"`
	DaysLeft     *int       `json:"daysLeft,omitempty"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
	Plan         Plan       `json:"plan,omitempty"`
	BrandName    string     `json:"brandName,omitempty"`
	PrimaryColor string     `json:"primaryColor,omitempty"`
	Warning      bool       `json:"warning"`
}

// Status computes the license summary a tenant dashboard shows.
func (s *Service) Status(ctx context.Context, tenantID string) (*LicenseStatus, error) {
	t, err := s.store.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !t.IsActive {
		return &LicenseStatus{Valid: false, Reason: "license inactive"}, nil
	}
	st := &LicenseStatus{
		Valid:        true,
		Plan:         t.Plan,
		BrandName:    t.BrandName,
		PrimaryColor: t.PrimaryColor,
	}
	if t.LicenseExpiration == nil {
		return st, nil
	}
	days := t.DaysLeftAt(s.now())
	st.DaysLeft = &days
	st.ExpiresAt = t.LicenseExpiration
	st.Valid = days > 0
	st.Warning = days > 0 && days <= 7
	return st, nil
}

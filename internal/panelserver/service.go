package panelserver

import (
	"context"
	"time"

	"github.com/gestororion/orion/internal/idgen"
	"github.com/gestororion/orion/internal/validation"
)

// Service provides the server registry logic on top of the store.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a new server registry service.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// WithNow overrides the clock (for testing).
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// List returns the tenant's registered servers, alphabetical.
func (s *Service) List(ctx context.Context, tenantID string) ([]*Server, error) {
	return s.store.List(ctx, tenantID)
}

// Create registers a server name for the tenant.
func (s *Service) Create(ctx context.Context, tenantID, name string) (*Server, error) {
	name = validation.SanitizeString(name, 120)
	if name == "" {
		return nil, ErrNameRequired
	}

	srv := &Server{
		ID:        idgen.WithPrefix("srv_"),
		TenantID:  tenantID,
		Name:      name,
		CreatedAt: s.now(),
	}
	if err := s.store.Create(ctx, srv); err != nil {
		return nil, err
	}
	return srv, nil
}

// Delete removes a server from the tenant's registry. Clients keep their
// server field as plain text, so removal never cascades.
func (s *Service) Delete(ctx context.Context, tenantID, id string) error {
	return s.store.Delete(ctx, tenantID, id)
}

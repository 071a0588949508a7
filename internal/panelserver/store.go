package panelserver

import "context"

// Store persists the per-tenant server registry. All operations are
// pinned to a tenant; an id belonging to another tenant behaves like a
// missing one.
type Store interface {
	// Create inserts a server, failing with ErrNameTaken when the tenant
	// already registered the name.
	Create(ctx context.Context, s *Server) error
	List(ctx context.Context, tenantID string) ([]*Server, error)
	Delete(ctx context.Context, tenantID, id string) error
}

package client

import (
	"context"
	"time"

	"github.com/gestororion/orion/internal/identity"
)

// Filter narrows client listings beyond the identity scope.
type Filter struct {
	Server string
	Status string
	// DueFrom/DueTo, when set, keep only rows whose due date falls in
	// the window. Used for period reports.
	DueFrom *time.Time
	DueTo   *time.Time
}

// Store persists clients. Every method that touches existing rows takes the
// caller's scope and applies it inside the query, so an out-of-scope id
// behaves exactly like a missing one.
type Store interface {
	Create(ctx context.Context, c *Client) error
	Get(ctx context.Context, scope identity.Scope, id string) (*Client, error)
	List(ctx context.Context, scope identity.Scope, f Filter) ([]*Client, error)
	Count(ctx context.Context, scope identity.Scope) (int, error)
	// CountActiveOwned counts non-INATIVO, non-overdue clients owned by
	// any of the given accounts. Feeds metered billing previews.
	CountActiveOwned(ctx context.Context, tenantID string, ownerIDs []string, now time.Time) (int, error)
	Update(ctx context.Context, scope identity.Scope, c *Client) error
	Delete(ctx context.Context, scope identity.Scope, id string) error
	// ListOverdueActive returns ATIVO rows across all tenants whose due
	// date has passed. Sweep only; no scope.
	ListOverdueActive(ctx context.Context, now time.Time) ([]*Client, error)
}

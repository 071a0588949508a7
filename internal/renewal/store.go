package renewal

import "context"

// HistoryLimit caps the per-user request history shown on the panel.
const HistoryLimit = 5

// Store persists renewal requests.
type Store interface {
	Create(ctx context.Context, r *Request) error
	Get(ctx context.Context, id string) (*Request, error)
	// FindPending returns the user's in-flight request, if any.
	FindPending(ctx context.Context, userID string) (*Request, error)
	// ListByUser returns the user's requests, newest first, capped.
	ListByUser(ctx context.Context, userID string, limit int) ([]*Request, error)
	// ListPending returns open requests oldest first, optionally
	// narrowed to one tenant.
	ListPending(ctx context.Context, tenantID string) ([]*Request, error)
	Update(ctx context.Context, r *Request) error
}

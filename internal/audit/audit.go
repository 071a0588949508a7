// Package audit keeps the append-only action log of the panel.
//
// Writes are best effort: a failed audit insert is logged and swallowed,
// it never fails the action that triggered it.
package audit

import (
	"context"
	"time"

	"github.com/gestororion/orion/internal/identity"
	"github.com/gestororion/orion/internal/idgen"
	"github.com/gestororion/orion/internal/logging"
	"github.com/gestororion/orion/internal/pagination"
)

// Action names recorded in the log.
const (
	ActionLogin          = "login"
	ActionClientCreate   = "client.create"
	ActionClientDelete   = "client.delete"
	ActionClientRenew    = "client.renew"
	ActionResellerCreate = "reseller.create"
	ActionResellerDelete = "reseller.delete"
	ActionServerCreate   = "server.create"
	ActionServerDelete   = "server.delete"
	ActionUserCreate     = "user.create"
	ActionUserDelete     = "user.delete"
	ActionTenantCreate   = "tenant.create"
	ActionTenantUpdate   = "tenant.update"
	ActionRenewalRequest = "renewal.request"
	ActionRenewalApprove = "renewal.approve"
	ActionRenewalReject  = "renewal.reject"
	ActionSweep          = "sweep.run"
)

// Entry is one immutable audit record.
type Entry struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId,omitempty"`
	ActorID   string    `json:"actorId,omitempty"`
	ActorRole string    `json:"actorRole,omitempty"`
	Action    string    `json:"action"`
	TargetID  string    `json:"targetId,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists audit entries.
type Store interface {
	Append(ctx context.Context, e *Entry) error
	// List returns entries newest first, optionally narrowed to a tenant,
	// capped at limit. A non-nil before cursor resumes strictly after the
	// (created_at, id) position of a previous page.
	List(ctx context.Context, tenantID string, before *pagination.Cursor, limit int) ([]*Entry, error)
}

// Recorder writes audit entries without ever surfacing a failure.
type Recorder struct {
	store Store
	now   func() time.Time
}

// NewRecorder creates an audit recorder.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

// Record appends an entry attributed to the given caller.
func (r *Recorder) Record(ctx context.Context, caller identity.Identity, action, targetID, detail string) {
	e := &Entry{
		ID:        idgen.WithPrefix("aud_"),
		TenantID:  caller.TenantID,
		ActorID:   caller.UserID,
		ActorRole: string(caller.Role),
		Action:    action,
		TargetID:  targetID,
		Detail:    detail,
		CreatedAt: r.now(),
	}
	if err := r.store.Append(ctx, e); err != nil {
		logging.FromContext(ctx).Warn("audit append failed",
			"action", action, "target_id", targetID, "error", err)
	}
}

// RecordSystem appends an entry with no caller, e.g. from a sweep.
func (r *Recorder) RecordSystem(ctx context.Context, action, detail string) {
	r.Record(ctx, identity.Identity{}, action, "", detail)
}

// DefaultPageSize caps one page of the audit trail.
const DefaultPageSize = 100

// List exposes one page of the log, newest first. cursor is the opaque
// token of a previous page ("" for the first); the returned token is
// empty on the last page.
func (r *Recorder) List(ctx context.Context, tenantID, cursor string, limit int) ([]*Entry, string, error) {
	if limit <= 0 || limit > DefaultPageSize {
		limit = DefaultPageSize
	}
	before, err := pagination.Decode(cursor)
	if err != nil {
		return nil, "", err
	}

	// Fetch one extra row to learn whether another page exists.
	entries, err := r.store.List(ctx, tenantID, before, limit+1)
	if err != nil {
		return nil, "", err
	}
	entries, next, _ := pagination.ComputePage(entries, limit, func(e *Entry) (time.Time, string) {
		return e.CreatedAt, e.ID
	})
	return entries, next, nil
}

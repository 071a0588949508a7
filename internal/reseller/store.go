package reseller

import (
	"context"
	"time"

	"github.com/gestororion/orion/internal/identity"
)

// Store persists resellers with their server rows. Scope rules match the
// client store: an out-of-scope id behaves like a missing one. A reseller
// row is matched against the scope's legacy tag by its own id, which is how
// a personal account keeps reaching the legacy reseller it grew out of.
type Store interface {
	Create(ctx context.Context, r *Reseller) error
	Get(ctx context.Context, scope identity.Scope, id string) (*Reseller, error)
	List(ctx context.Context, scope identity.Scope) ([]*Reseller, error)
	Count(ctx context.Context, scope identity.Scope) (int, error)
	// Update replaces the record including the full server-row set.
	Update(ctx context.Context, scope identity.Scope, r *Reseller) error
	Delete(ctx context.Context, scope identity.Scope, id string) error

	// Sweep helpers, unscoped.

	// ListSettlingOn returns resellers with a server row whose settle
	// date falls on the given calendar day.
	ListSettlingOn(ctx context.Context, day time.Time) ([]*Reseller, error)
	// ListPaymentResetDue returns PAGO resellers whose latest settle
	// date lies before the given day.
	ListPaymentResetDue(ctx context.Context, now time.Time) ([]*Reseller, error)
	// ListExpiredPlans returns resellers whose manager plan lapsed.
	ListExpiredPlans(ctx context.Context, now time.Time) ([]*Reseller, error)
}

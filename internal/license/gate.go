// Package license enforces the SaaS license between authentication and
// the tenant's business routes.
//
// Every request of a non-master caller passes the gate. Tenant records are
// cached for a short TTL so the hot path stays off the database; tenant
// writes invalidate the cache entry.
package license

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gestororion/orion/internal/identity"
	"github.com/gestororion/orion/internal/logging"
	"github.com/gestororion/orion/internal/tenant"
	"github.com/gestororion/orion/internal/user"
)

// Errors
var (
	ErrLicenseInactive = errors.New("license: tenant deactivated")
	ErrLicenseExpired  = errors.New("license: tenant license expired")
	ErrPanelExpired    = errors.New("license: panel access expired")
)

// DefaultCacheTTL bounds how stale a cached license decision may be.
const DefaultCacheTTL = time.Minute

type cacheEntry struct {
	tenant    *tenant.Tenant
	fetchedAt time.Time
}

// Gate answers "may this caller use the panel right now".
type Gate struct {
	tenants tenant.Store
	ttl     time.Duration
	now     func() time.Time

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// NewGate creates a license gate over the tenant store.
func NewGate(tenants tenant.Store, ttl time.Duration) *Gate {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Gate{
		tenants: tenants,
		ttl:     ttl,
		now:     time.Now,
		cache:   make(map[string]cacheEntry),
	}
}

// WithNow overrides the clock (for testing).
func (g *Gate) WithNow(now func() time.Time) *Gate {
	g.now = now
	return g
}

// Check validates the caller's license chain. The master account is exempt;
// for everyone else both the tenant license and the caller's own panel
// window must be open. A store failure fails open so a database blip does
// not lock every subscriber out of the panel.
func (g *Gate) Check(ctx context.Context, u *user.User) error {
	if u == nil {
		return nil
	}
	if u.Role == identity.RoleMaster {
		return nil
	}

	now := g.now()
	if u.TenantID != "" {
		t, err := g.lookup(ctx, u.TenantID)
		if err != nil {
			if errors.Is(err, tenant.ErrTenantNotFound) {
				return ErrLicenseInactive
			}
			logging.FromContext(ctx).Warn("license lookup failed, failing open",
				"tenant_id", u.TenantID, "error", err)
			return nil
		}
		if !t.IsActive {
			return ErrLicenseInactive
		}
		if !t.LicenseValidAt(now) {
			return ErrLicenseExpired
		}
	}

	if u.PanelStateAt(now) == user.PanelExpired {
		return ErrPanelExpired
	}
	return nil
}

// Invalidate drops the cached record for a tenant. Call it after any write
// that can change the license decision.
func (g *Gate) Invalidate(tenantID string) {
	g.mu.Lock()
	delete(g.cache, tenantID)
	g.mu.Unlock()
}

func (g *Gate) lookup(ctx context.Context, tenantID string) (*tenant.Tenant, error) {
	now := g.now()

	g.mu.RLock()
	e, ok := g.cache[tenantID]
	g.mu.RUnlock()
	if ok && now.Sub(e.fetchedAt) < g.ttl {
		return e.tenant, nil
	}

	t, err := g.tenants.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	g.cache[tenantID] = cacheEntry{tenant: t, fetchedAt: now}
	g.mu.Unlock()
	return t, nil
}

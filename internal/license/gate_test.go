package license

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestororion/orion/internal/identity"
	"github.com/gestororion/orion/internal/tenant"
	"github.com/gestororion/orion/internal/user"
)

type countingStore struct {
	tenant.Store
	gets int
	fail error
}

func (c *countingStore) Get(ctx context.Context, id string) (*tenant.Tenant, error) {
	c.gets++
	if c.fail != nil {
		return nil, c.fail
	}
	return c.Store.Get(ctx, id)
}

func seedTenant(t *testing.T, store tenant.Store, exp *time.Time, active bool) *tenant.Tenant {
	t.Helper()
	tn := &tenant.Tenant{
		ID: "ten_1", Name: "Alpha", Slug: "alpha",
		Plan: tenant.PlanBasico, LicenseExpiration: exp, IsActive: active,
	}
	require.NoError(t, store.Create(context.Background(), tn))
	return tn
}

func adminOf(tenantID string) *user.User {
	return &user.User{ID: "usr_1", TenantID: tenantID, Role: identity.RoleAdmin}
}

func TestCheckMasterExempt(t *testing.T) {
	store := &countingStore{Store: tenant.NewMemoryStore(), fail: errors.New("db down")}
	g := NewGate(store, time.Minute)

	err := g.Check(context.Background(), &user.User{ID: "usr_m", Role: identity.RoleMaster})
	assert.NoError(t, err)
	assert.Zero(t, store.gets)
}

func TestCheckLicenseStates(t *testing.T) {
	now := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	mem := tenant.NewMemoryStore()
	exp := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	seedTenant(t, mem, &exp, true)

	g := NewGate(mem, time.Minute).WithNow(func() time.Time { return now })
	assert.NoError(t, g.Check(context.Background(), adminOf("ten_1")))

	// Past the expiry day the gate closes.
	now = time.Date(2026, 3, 11, 0, 30, 0, 0, time.UTC)
	g.Invalidate("ten_1")
	assert.ErrorIs(t, g.Check(context.Background(), adminOf("ten_1")), ErrLicenseExpired)
}

func TestCheckDeactivatedTenant(t *testing.T) {
	mem := tenant.NewMemoryStore()
	seedTenant(t, mem, nil, false)

	g := NewGate(mem, time.Minute)
	assert.ErrorIs(t, g.Check(context.Background(), adminOf("ten_1")), ErrLicenseInactive)
}

func TestCheckUnknownTenant(t *testing.T) {
	g := NewGate(tenant.NewMemoryStore(), time.Minute)
	assert.ErrorIs(t, g.Check(context.Background(), adminOf("ten_missing")), ErrLicenseInactive)
}

func TestCheckPanelExpiry(t *testing.T) {
	now := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	mem := tenant.NewMemoryStore()
	seedTenant(t, mem, nil, true)
	g := NewGate(mem, time.Minute).WithNow(func() time.Time { return now })

	past := now.AddDate(0, 0, -1)
	u := adminOf("ten_1")
	u.PanelExpiry = &past
	assert.ErrorIs(t, g.Check(context.Background(), u), ErrPanelExpired)

	// The expiry day itself still passes.
	today := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	u.PanelExpiry = &today
	assert.NoError(t, g.Check(context.Background(), u))
}

func TestCacheTTLAndInvalidate(t *testing.T) {
	now := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	store := &countingStore{Store: tenant.NewMemoryStore()}
	seedTenant(t, store.Store, nil, true)

	g := NewGate(store, time.Minute).WithNow(func() time.Time { return now })

	require.NoError(t, g.Check(context.Background(), adminOf("ten_1")))
	require.NoError(t, g.Check(context.Background(), adminOf("ten_1")))
	assert.Equal(t, 1, store.gets, "second check should hit the cache")

	// TTL elapses, next check reloads.
	now = now.Add(2 * time.Minute)
	require.NoError(t, g.Check(context.Background(), adminOf("ten_1")))
	assert.Equal(t, 2, store.gets)

	// Invalidation forces a reload even inside the TTL.
	g.Invalidate("ten_1")
	require.NoError(t, g.Check(context.Background(), adminOf("ten_1")))
	assert.Equal(t, 3, store.gets)
}

func TestCheckFailsOpenOnStoreError(t *testing.T) {
	store := &countingStore{Store: tenant.NewMemoryStore(), fail: errors.New("db down")}
	g := NewGate(store, time.Minute)

	assert.NoError(t, g.Check(context.Background(), adminOf("ten_1")))
}

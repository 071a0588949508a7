package reseller

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestororion/orion/internal/identity"
)

var owner = identity.Identity{UserID: "usr_a", Role: identity.RoleAdmin, TenantID: "ten_1"}

func ownerScope() identity.Scope {
	return identity.Scope{TenantID: "ten_1", OwnerIDs: []string{"usr_a"}}
}

func newService(now time.Time) *Service {
	return NewService(NewMemoryStore()).WithNow(func() time.Time { return now })
}

func TestCreateDefaults(t *testing.T) {
	svc := newService(time.Now())

	r, err := svc.Create(context.Background(), owner, CreateParams{
		Name: "Revenda Sul",
		Servers: []ServerRow{
			{Server: "SRV1", ActiveCount: 100, PricePerActive: 5, CostPerActive: 3},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, TypePrepaid, r.Type)
	assert.Equal(t, StatusActive, r.Status)
	assert.Equal(t, PaymentPending, r.PaymentStatus)
	assert.Equal(t, "usr_a", r.OwnerID)
	require.Len(t, r.Servers, 1)
	assert.Equal(t, 500.0, r.Servers[0].Revenue())
	assert.Equal(t, 300.0, r.Servers[0].Cost())
}

func TestUpdateReplacesServerRows(t *testing.T) {
	svc := newService(time.Now())
	ctx := context.Background()

	r, err := svc.Create(ctx, owner, CreateParams{
		Name: "Revenda Sul",
		Servers: []ServerRow{
			{Server: "SRV1", ActiveCount: 100, PricePerActive: 5},
			{Server: "SRV2", ActiveCount: 50, PricePerActive: 4},
		},
	})
	require.NoError(t, err)

	got, err := svc.Update(ctx, ownerScope(), r.ID, UpdateParams{
		Servers: []ServerRow{{Server: "SRV3", ActiveCount: 10, PricePerActive: 6}},
	})
	require.NoError(t, err)
	require.Len(t, got.Servers, 1, "server rows are replaced wholesale")
	assert.Equal(t, "SRV3", got.Servers[0].Server)

	// A nil servers field leaves the rows alone.
	name := "Revenda Sul 2"
	got, err = svc.Update(ctx, ownerScope(), r.ID, UpdateParams{Name: &name})
	require.NoError(t, err)
	assert.Len(t, got.Servers, 1)
}

func TestScopeOnWrites(t *testing.T) {
	svc := newService(time.Now())
	ctx := context.Background()

	r, err := svc.Create(ctx, owner, CreateParams{Name: "Revenda Sul"})
	require.NoError(t, err)

	other := identity.Scope{TenantID: "ten_1", OwnerIDs: []string{"usr_b"}}
	_, err = svc.Get(ctx, other, r.ID)
	assert.ErrorIs(t, err, ErrResellerNotFound)
	_, err = svc.ToggleStatus(ctx, other, r.ID)
	assert.ErrorIs(t, err, ErrResellerNotFound)
	err = svc.Delete(ctx, other, r.ID)
	assert.ErrorIs(t, err, ErrResellerNotFound)
}

func TestLegacySelfMatch(t *testing.T) {
	svc := newService(time.Now())
	ctx := context.Background()

	legacy := &Reseller{
		ID: "rsl_old", TenantID: "ten_1", Name: "Old",
		Type: TypePrepaid, Status: StatusActive, PaymentStatus: PaymentPending,
	}
	require.NoError(t, svc.store.Create(ctx, legacy))

	// The personal grown out of this reseller reaches it by its tag.
	tagged := identity.Scope{TenantID: "ten_1", OwnerIDs: []string{"usr_p"}, LegacyResellerID: "rsl_old"}
	got, err := svc.Get(ctx, tagged, "rsl_old")
	require.NoError(t, err)
	assert.Equal(t, "Old", got.Name)

	// Anyone else in the tenant does not.
	_, err = svc.Get(ctx, ownerScope(), "rsl_old")
	assert.ErrorIs(t, err, ErrResellerNotFound)
}

func TestPaymentStatusRoundTrip(t *testing.T) {
	svc := newService(time.Now())
	ctx := context.Background()

	r, err := svc.Create(ctx, owner, CreateParams{Name: "Revenda Sul"})
	require.NoError(t, err)

	got, err := svc.SetPaymentStatus(ctx, ownerScope(), r.ID, PaymentPaid)
	require.NoError(t, err)
	assert.Equal(t, PaymentPaid, got.PaymentStatus)
}

func TestSettlementsDueWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := newService(now)
	ctx := context.Background()

	soon := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	far := time.Date(2026, 4, 20, 0, 0, 0, 0, time.UTC)
	_, err := svc.Create(ctx, owner, CreateParams{
		Name:    "Due soon",
		Servers: []ServerRow{{Server: "SRV1", SettleDate: &soon}},
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, owner, CreateParams{
		Name:    "Due later",
		Servers: []ServerRow{{Server: "SRV1", SettleDate: &far}},
	})
	require.NoError(t, err)

	due, err := svc.SettlementsDue(ctx, ownerScope(), 7)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "Due soon", due[0].Name)
}

func TestSweepListings(t *testing.T) {
	now := time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC)
	svc := newService(now)
	ctx := context.Background()

	yesterday := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	r, err := svc.Create(ctx, owner, CreateParams{
		Name:    "Paid last cycle",
		Servers: []ServerRow{{Server: "SRV1", SettleDate: &yesterday}},
	})
	require.NoError(t, err)
	_, err = svc.SetPaymentStatus(ctx, ownerScope(), r.ID, PaymentPaid)
	require.NoError(t, err)

	expired := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err = svc.Create(ctx, owner, CreateParams{
		Name: "Plan lapsed", PlanActive: true, PlanExpiresAt: &expired,
	})
	require.NoError(t, err)

	resets, err := svc.store.ListPaymentResetDue(ctx, now)
	require.NoError(t, err)
	require.Len(t, resets, 1)
	assert.Equal(t, "Paid last cycle", resets[0].Name)

	lapsed, err := svc.store.ListExpiredPlans(ctx, now)
	require.NoError(t, err)
	require.Len(t, lapsed, 1)
	assert.Equal(t, "Plan lapsed", lapsed[0].Name)

	settling, err := svc.store.ListSettlingOn(ctx, yesterday)
	require.NoError(t, err)
	assert.Len(t, settling, 1)
}

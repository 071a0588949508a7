package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestororion/orion/internal/identity"
)

var (
	p1 = identity.Identity{UserID: "usr_p1", Role: identity.RolePersonal, TenantID: "ten_1"}
	p2 = identity.Identity{UserID: "usr_p2", Role: identity.RolePersonal, TenantID: "ten_1"}
)

func scopeOf(id identity.Identity) identity.Scope {
	return identity.Scope{TenantID: id.TenantID, OwnerIDs: []string{id.UserID}}
}

func newService(now time.Time) *Service {
	svc := NewService(NewMemoryStore())
	return svc.WithNow(func() time.Time { return now })
}

func TestCreateDerivesDueDate(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := newService(now)

	c, err := svc.Create(context.Background(), p1, CreateParams{
		Name: "Jose", PlanType: 30, PlanValue: 35,
	})
	require.NoError(t, err)
	assert.Equal(t, now, c.StartDate)
	assert.Equal(t, now.AddDate(0, 0, 30), c.DueDate)
	assert.Equal(t, StatusActive, c.Status)
	assert.Equal(t, "ten_1", c.TenantID)
	assert.Equal(t, "usr_p1", c.OwnerID)

	start := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)
	c, err = svc.Create(context.Background(), p1, CreateParams{
		Name: "Maria", PlanType: 90, StartDate: start,
	})
	require.NoError(t, err)
	assert.Equal(t, start.AddDate(0, 0, 90), c.DueDate)
}

func TestCreateRejectsBadPlan(t *testing.T) {
	svc := newService(time.Now())

	_, err := svc.Create(context.Background(), p1, CreateParams{Name: "X", PlanType: 0})
	assert.ErrorIs(t, err, ErrInvalidPlan)

	_, err = svc.Create(context.Background(), identity.Identity{UserID: "u", Role: identity.RolePersonal}, CreateParams{Name: "X", PlanType: 30})
	assert.ErrorIs(t, err, identity.ErrTenantNotIdentified)
}

func TestRenewExtendsFromFutureDueDate(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := newService(now)

	c, err := svc.Create(context.Background(), p1, CreateParams{Name: "Jose", PlanType: 10})
	require.NoError(t, err)
	due := c.DueDate // now + 10d

	got, err := svc.Renew(context.Background(), scopeOf(p1), c.ID, 90, nil)
	require.NoError(t, err)
	assert.Equal(t, due.AddDate(0, 0, 90), got.DueDate, "stacking keeps the remaining days")
	assert.Equal(t, 90, got.PlanType)
}

func TestRenewLapsedStartsFromNow(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := newService(now)

	start := now.AddDate(0, 0, -60)
	c, err := svc.Create(context.Background(), p1, CreateParams{
		Name: "Jose", PlanType: 30, StartDate: start,
	})
	require.NoError(t, err)
	require.True(t, c.DueDate.Before(now))

	got, err := svc.Renew(context.Background(), scopeOf(p1), c.ID, 90, nil)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, 90), got.DueDate, "no credit for the lapsed gap")
	assert.Equal(t, StatusActive, got.Status)
}

func TestPersonalIsolation(t *testing.T) {
	svc := newService(time.Now())
	ctx := context.Background()

	c1, err := svc.Create(ctx, p1, CreateParams{Name: "DoP1", PlanType: 30})
	require.NoError(t, err)
	_, err = svc.Create(ctx, p2, CreateParams{Name: "DoP2", PlanType: 30})
	require.NoError(t, err)

	list, err := svc.List(ctx, scopeOf(p2), Filter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "DoP2", list[0].Name)

	// A sibling's record reads as missing on every verb, never forbidden.
	_, err = svc.Get(ctx, scopeOf(p2), c1.ID)
	assert.ErrorIs(t, err, ErrClientNotFound)
	_, err = svc.ToggleStatus(ctx, scopeOf(p2), c1.ID)
	assert.ErrorIs(t, err, ErrClientNotFound)
	err = svc.Delete(ctx, scopeOf(p2), c1.ID)
	assert.ErrorIs(t, err, ErrClientNotFound)
}

func TestLegacyRowsVisibility(t *testing.T) {
	svc := newService(time.Now())
	ctx := context.Background()

	legacy := &Client{
		ID: "cli_legacy", TenantID: "ten_1", LegacyResellerID: "rsl_9",
		Name: "Old", PlanType: 30, Status: StatusActive,
		StartDate: time.Now(), DueDate: time.Now().AddDate(0, 0, 30),
	}
	require.NoError(t, svc.store.Create(ctx, legacy))

	// Master sees legacy rows.
	master := identity.Scope{IncludeLegacy: true}
	list, err := svc.List(ctx, master, Filter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	// A personal only reaches them through its legacy reseller tag.
	_, err = svc.Get(ctx, scopeOf(p1), "cli_legacy")
	assert.ErrorIs(t, err, ErrClientNotFound)

	tagged := identity.Scope{TenantID: "ten_1", OwnerIDs: []string{"usr_p1"}, LegacyResellerID: "rsl_9"}
	got, err := svc.Get(ctx, tagged, "cli_legacy")
	require.NoError(t, err)
	assert.Equal(t, "Old", got.Name)
}

func TestToggleStatusIgnoresDates(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := newService(now)

	c, err := svc.Create(context.Background(), p1, CreateParams{Name: "Jose", PlanType: 30})
	require.NoError(t, err)

	got, err := svc.ToggleStatus(context.Background(), scopeOf(p1), c.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInactive, got.Status)
	assert.Equal(t, c.DueDate, got.DueDate)

	got, err = svc.ToggleStatus(context.Background(), scopeOf(p1), c.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, got.Status)
}

func TestExpiringWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := newService(now)
	ctx := context.Background()

	mk := func(name string, days int) {
		_, err := svc.Create(ctx, p1, CreateParams{
			Name: name, PlanType: days,
		})
		require.NoError(t, err)
	}
	mk("soon", 3)
	mk("later", 30)

	list, err := svc.Expiring(ctx, scopeOf(p1), 7)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "soon", list[0].Name)
}

func TestOverdueSweepListing(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := newService(now)
	ctx := context.Background()

	_, err := svc.Create(ctx, p1, CreateParams{
		Name: "lapsed", PlanType: 30, StartDate: now.AddDate(0, 0, -60),
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, p1, CreateParams{Name: "current", PlanType: 30})
	require.NoError(t, err)

	overdue, err := svc.store.ListOverdueActive(ctx, now)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, "lapsed", overdue[0].Name)
}

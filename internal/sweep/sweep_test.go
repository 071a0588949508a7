package sweep

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestororion/orion/internal/audit"
	"github.com/gestororion/orion/internal/client"
	"github.com/gestororion/orion/internal/identity"
	"github.com/gestororion/orion/internal/reseller"
)

var testNow = time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)

type sessionSweepFunc func(ctx context.Context) (int, error)

func (f sessionSweepFunc) Sweep(ctx context.Context) (int, error) { return f(ctx) }

type testEnv struct {
	sweeper   *Sweeper
	clients   *client.MemoryStore
	resellers *reseller.MemoryStore
	audits    *audit.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clients := client.NewMemoryStore()
	resellers := reseller.NewMemoryStore()
	audits := audit.NewMemoryStore()
	noop := sessionSweepFunc(func(context.Context) (int, error) { return 0, nil })
	sw := New(clients, resellers, noop, audit.NewRecorder(audits)).
		WithNow(func() time.Time { return testNow })
	return &testEnv{sweeper: sw, clients: clients, resellers: resellers, audits: audits}
}

func (e *testEnv) seedClient(t *testing.T, id string, due time.Time, status string) {
	t.Helper()
	require.NoError(t, e.clients.Create(context.Background(), &client.Client{
		ID: id, TenantID: "ten_1", OwnerID: "usr_1",
		Status: status, DueDate: due, CreatedAt: testNow,
	}))
}

func TestExpireOverdueClients(t *testing.T) {
	env := newTestEnv(t)
	env.seedClient(t, "cli_past", testNow.AddDate(0, 0, -1), client.StatusActive)
	env.seedClient(t, "cli_today", testNow, client.StatusActive)
	env.seedClient(t, "cli_future", testNow.AddDate(0, 0, 5), client.StatusActive)
	env.seedClient(t, "cli_off", testNow.AddDate(0, 0, -10), client.StatusInactive)

	n, err := env.sweeper.ExpireOverdueClients(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	scope := identity.Scope{IncludeLegacy: true}
	got, err := env.clients.Get(context.Background(), scope, "cli_past")
	require.NoError(t, err)
	assert.Equal(t, client.StatusInactive, got.Status)

	// The due day itself still counts as paid-up.
	got, err = env.clients.Get(context.Background(), scope, "cli_today")
	require.NoError(t, err)
	assert.Equal(t, client.StatusActive, got.Status)

	entries, err := env.audits.List(context.Background(), "", nil, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionSweep, entries[0].Action)
}

func TestExpireOverdueClients_NoopWhenClean(t *testing.T) {
	env := newTestEnv(t)
	env.seedClient(t, "cli_ok", testNow.AddDate(0, 0, 3), client.StatusActive)

	n, err := env.sweeper.ExpireOverdueClients(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	entries, err := env.audits.List(context.Background(), "", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSettlementAlerts(t *testing.T) {
	env := newTestEnv(t)
	today := testNow
	tomorrow := testNow.AddDate(0, 0, 1)
	require.NoError(t, env.resellers.Create(context.Background(), &reseller.Reseller{
		ID: "rsl_1", TenantID: "ten_1", Name: "Norte",
		Servers: []reseller.ServerRow{{Server: "SRV1", SettleDate: &today}},
	}))
	require.NoError(t, env.resellers.Create(context.Background(), &reseller.Reseller{
		ID: "rsl_2", TenantID: "ten_1", Name: "Sul",
		Servers: []reseller.ServerRow{{Server: "SRV1", SettleDate: &tomorrow}},
	}))

	n, err := env.sweeper.SettlementAlerts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	entries, err := env.audits.List(context.Background(), "", nil, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Detail, "rsl_1")
}

func TestResetLapsedPayments(t *testing.T) {
	env := newTestEnv(t)
	past := testNow.AddDate(0, 0, -3)
	future := testNow.AddDate(0, 0, 3)
	require.NoError(t, env.resellers.Create(context.Background(), &reseller.Reseller{
		ID: "rsl_lapsed", TenantID: "ten_1", PaymentStatus: reseller.PaymentPaid,
		Servers: []reseller.ServerRow{{Server: "SRV1", SettleDate: &past}},
	}))
	require.NoError(t, env.resellers.Create(context.Background(), &reseller.Reseller{
		ID: "rsl_current", TenantID: "ten_1", PaymentStatus: reseller.PaymentPaid,
		Servers: []reseller.ServerRow{{Server: "SRV1", SettleDate: &future}},
	}))

	n, err := env.sweeper.ResetLapsedPayments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	scope := identity.Scope{IncludeLegacy: true}
	got, err := env.resellers.Get(context.Background(), scope, "rsl_lapsed")
	require.NoError(t, err)
	assert.Equal(t, reseller.PaymentPending, got.PaymentStatus)

	got, err = env.resellers.Get(context.Background(), scope, "rsl_current")
	require.NoError(t, err)
	assert.Equal(t, reseller.PaymentPaid, got.PaymentStatus)
}

func TestExpireResellerPlans(t *testing.T) {
	env := newTestEnv(t)
	past := testNow.AddDate(0, 0, -2)
	today := testNow
	require.NoError(t, env.resellers.Create(context.Background(), &reseller.Reseller{
		ID: "rsl_gone", TenantID: "ten_1", PlanActive: true, PlanExpiresAt: &past,
	}))
	// Expiry day counts in full.
	require.NoError(t, env.resellers.Create(context.Background(), &reseller.Reseller{
		ID: "rsl_today", TenantID: "ten_1", PlanActive: true, PlanExpiresAt: &today,
	}))

	n, err := env.sweeper.ExpireResellerPlans(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	scope := identity.Scope{IncludeLegacy: true}
	got, err := env.resellers.Get(context.Background(), scope, "rsl_gone")
	require.NoError(t, err)
	assert.False(t, got.PlanActive)

	got, err = env.resellers.Get(context.Background(), scope, "rsl_today")
	require.NoError(t, err)
	assert.True(t, got.PlanActive)
}

func TestPruneSessions_Delegates(t *testing.T) {
	clients := client.NewMemoryStore()
	resellers := reseller.NewMemoryStore()
	audits := audit.NewRecorder(audit.NewMemoryStore())
	called := false
	sw := New(clients, resellers, sessionSweepFunc(func(context.Context) (int, error) {
		called = true
		return 4, nil
	}), audits)

	n, err := sw.PruneSessions(context.Background())
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, 4, n)
}

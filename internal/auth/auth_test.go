package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestororion/orion/internal/identity"
	"github.com/gestororion/orion/internal/user"
)

func newTestManager(t *testing.T) (*Manager, *user.Service) {
	t.Helper()
	users := user.NewService(user.NewMemoryStore())
	return NewManager(NewMemorySessionStore(), users, time.Hour), users
}

func seedUser(t *testing.T, users *user.Service, username, password string) *user.User {
	t.Helper()
	u, err := users.Create(context.Background(), user.CreateParams{
		Username: username,
		Password: password,
		Role:     identity.RoleAdmin,
		TenantID: "ten_1",
	})
	require.NoError(t, err)
	return u
}

func TestLoginAndResolve(t *testing.T) {
	mgr, users := newTestManager(t)
	seeded := seedUser(t, users, "admin", "secret")

	token, u, err := mgr.Login(context.Background(), "admin", "secret")
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, u.ID)
	assert.Contains(t, token, "ost_")

	got, sess, err := mgr.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, got.ID)
	assert.Equal(t, seeded.ID, sess.UserID)

	// Bearer prefix is tolerated.
	got, _, err = mgr.Resolve(context.Background(), "Bearer "+token)
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, got.ID)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	mgr, users := newTestManager(t)
	seedUser(t, users, "admin", "secret")

	_, _, err := mgr.Login(context.Background(), "admin", "wrong")
	assert.ErrorIs(t, err, ErrBadCredentials)

	_, _, err = mgr.Login(context.Background(), "nobody", "secret")
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestResolveRejectsGarbage(t *testing.T) {
	mgr, _ := newTestManager(t)

	_, _, err := mgr.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoToken)

	_, _, err = mgr.Resolve(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidSession)

	_, _, err = mgr.Resolve(context.Background(), "ost_deadbeef")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestSessionExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	users := user.NewService(user.NewMemoryStore())
	mgr := NewManager(NewMemorySessionStore(), users, time.Hour).
		WithNow(func() time.Time { return now })
	seedUser(t, users, "admin", "secret")

	token, _, err := mgr.Login(context.Background(), "admin", "secret")
	require.NoError(t, err)

	_, _, err = mgr.Resolve(context.Background(), token)
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, _, err = mgr.Resolve(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestLogoutRevokes(t *testing.T) {
	mgr, users := newTestManager(t)
	seedUser(t, users, "admin", "secret")

	token, _, err := mgr.Login(context.Background(), "admin", "secret")
	require.NoError(t, err)

	require.NoError(t, mgr.Logout(context.Background(), token))

	_, _, err = mgr.Resolve(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidSession)

	// Logging out twice is harmless.
	assert.NoError(t, mgr.Logout(context.Background(), token))
}

func TestRevokeUserDropsAllSessions(t *testing.T) {
	mgr, users := newTestManager(t)
	u := seedUser(t, users, "admin", "secret")

	t1, _, err := mgr.Login(context.Background(), "admin", "secret")
	require.NoError(t, err)
	t2, _, err := mgr.Login(context.Background(), "admin", "secret")
	require.NoError(t, err)

	require.NoError(t, mgr.RevokeUser(context.Background(), u.ID))

	_, _, err = mgr.Resolve(context.Background(), t1)
	assert.ErrorIs(t, err, ErrInvalidSession)
	_, _, err = mgr.Resolve(context.Background(), t2)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestSweepDropsExpiredOnly(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	users := user.NewService(user.NewMemoryStore())
	mgr := NewManager(NewMemorySessionStore(), users, time.Hour).
		WithNow(func() time.Time { return now })
	seedUser(t, users, "admin", "secret")

	stale, _, err := mgr.Login(context.Background(), "admin", "secret")
	require.NoError(t, err)

	now = now.Add(30 * time.Minute)
	fresh, _, err := mgr.Login(context.Background(), "admin", "secret")
	require.NoError(t, err)

	now = now.Add(45 * time.Minute)
	n, err := mgr.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, _, err = mgr.Resolve(context.Background(), stale)
	assert.ErrorIs(t, err, ErrInvalidSession)
	_, _, err = mgr.Resolve(context.Background(), fresh)
	assert.NoError(t, err)
}

package tenant

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestororion/orion/internal/identity"
	"github.com/gestororion/orion/internal/user"
)

type fakeInvalidator struct {
	calls []string
}

func (f *fakeInvalidator) Invalidate(tenantID string) {
	f.calls = append(f.calls, tenantID)
}

func newTestService(t *testing.T) (*Service, *fakeInvalidator) {
	t.Helper()
	inv := &fakeInvalidator{}
	users := user.NewService(user.NewMemoryStore())
	return NewService(NewMemoryStore(), users, inv), inv
}

func TestCreateProvisionsAdmin(t *testing.T) {
	svc, _ := newTestService(t)

	tn, admin, err := svc.Create(context.Background(), CreateParams{
		Name:          "Revenda Alpha",
		Slug:          "Revenda-Alpha",
		AdminUsername: "alpha-admin",
		AdminPassword: "s3cret-pass",
	})
	require.NoError(t, err)

	assert.Equal(t, "revenda-alpha", tn.Slug)
	assert.Equal(t, PlanBasico, tn.Plan)
	assert.True(t, tn.IsActive)
	assert.Equal(t, identity.RoleAdmin, admin.Role)
	assert.Equal(t, tn.ID, admin.TenantID)
}

func TestCreateDuplicateSlug(t *testing.T) {
	svc, _ := newTestService(t)

	_, _, err := svc.Create(context.Background(), CreateParams{
		Name: "A", Slug: "alpha", AdminUsername: "admin-a", AdminPassword: "s3cret-pass",
	})
	require.NoError(t, err)

	_, _, err = svc.Create(context.Background(), CreateParams{
		Name: "B", Slug: "alpha", AdminUsername: "admin-b", AdminPassword: "s3cret-pass",
	})
	assert.ErrorIs(t, err, ErrSlugTaken)
}

func TestCreateRejectsMalformedSlug(t *testing.T) {
	svc, _ := newTestService(t)

	for _, slug := range []string{"", "a", "-alpha", "alpha_", "revenda alpha!"} {
		_, _, err := svc.Create(context.Background(), CreateParams{
			Name: "A", Slug: slug, AdminUsername: "admin-a", AdminPassword: "s3cret-pass",
		})
		assert.ErrorIs(t, err, ErrInvalidSlug, "slug %q", slug)
		assert.NotErrorIs(t, err, ErrSlugTaken, "slug %q", slug)
	}
}

func TestUpdateInvalidatesLicenseCache(t *testing.T) {
	svc, inv := newTestService(t)

	tn, _, err := svc.Create(context.Background(), CreateParams{
		Name: "A", Slug: "alpha", AdminUsername: "admin-a", AdminPassword: "s3cret-pass",
	})
	require.NoError(t, err)
	require.Empty(t, inv.calls)

	exp := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	_, err = svc.Update(context.Background(), tn.ID, UpdateParams{LicenseExpiration: &exp})
	require.NoError(t, err)
	assert.Equal(t, []string{tn.ID}, inv.calls)

	require.NoError(t, svc.Deactivate(context.Background(), tn.ID))
	assert.Equal(t, []string{tn.ID, tn.ID}, inv.calls)
}

func TestDeactivateGatesStatus(t *testing.T) {
	svc, _ := newTestService(t)

	tn, _, err := svc.Create(context.Background(), CreateParams{
		Name: "A", Slug: "alpha", AdminUsername: "admin-a", AdminPassword: "s3cret-pass",
	})
	require.NoError(t, err)

	st, err := svc.Status(context.Background(), tn.ID)
	require.NoError(t, err)
	assert.True(t, st.Valid)
	assert.Nil(t, st.DaysLeft)

	require.NoError(t, svc.Deactivate(context.Background(), tn.ID))

	st, err = svc.Status(context.Background(), tn.ID)
	require.NoError(t, err)
	assert.False(t, st.Valid)
}

func TestStatusWarningWindow(t *testing.T) {
	svc, _ := newTestService(t)
	now := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return now })

	exp := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	tn, _, err := svc.Create(context.Background(), CreateParams{
		Name: "A", Slug: "alpha", LicenseExpiration: &exp,
		AdminUsername: "admin-a", AdminPassword: "s3cret-pass",
	})
	require.NoError(t, err)

	st, err := svc.Status(context.Background(), tn.ID)
	require.NoError(t, err)
	assert.True(t, st.Valid)
	assert.True(t, st.Warning)
	require.NotNil(t, st.DaysLeft)
	assert.Equal(t, 6, *st.DaysLeft)

	// Past the window the status flips but the tenant record survives.
	now = time.Date(2026, 3, 12, 12, 0, 0, 0, time.UTC)
	st, err = svc.Status(context.Background(), tn.ID)
	require.NoError(t, err)
	assert.False(t, st.Valid)
	assert.False(t, st.Warning)
}

func TestBrandingUpdate(t *testing.T) {
	svc, inv := newTestService(t)

	tn, _, err := svc.Create(context.Background(), CreateParams{
		Name: "A", Slug: "alpha", AdminUsername: "admin-a", AdminPassword: "s3cret-pass",
	})
	require.NoError(t, err)

	name := "Painel Alpha"
	color := "#123456"
	got, err := svc.UpdateBranding(context.Background(), tn.ID, &name, &color, nil)
	require.NoError(t, err)
	assert.Equal(t, "Painel Alpha", got.BrandName)
	assert.Equal(t, "#123456", got.PrimaryColor)
	assert.NotEmpty(t, inv.calls)

	_, err = svc.UpdateBranding(context.Background(), "", &name, nil, nil)
	assert.ErrorIs(t, err, identity.ErrTenantNotIdentified)
}

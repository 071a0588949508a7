package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDirectory struct {
	byCreator map[string][]string
}

func (f *fakeDirectory) PersonalIDs(_ context.Context, createdBy string) ([]string, error) {
	return f.byCreator[createdBy], nil
}

func newResolver() *Resolver {
	return NewResolver(&fakeDirectory{byCreator: map[string][]string{
		"usr_admin": {"usr_p1", "usr_p2"},
	}})
}

func TestResolve_Master(t *testing.T) {
	r := newResolver()

	sc, err := r.Resolve(context.Background(), Identity{UserID: "usr_m", Role: RoleMaster}, "")
	require.NoError(t, err)
	assert.Empty(t, sc.TenantID)
	assert.Nil(t, sc.OwnerIDs)
	assert.True(t, sc.IncludeLegacy)

	// Master may narrow to one tenant explicitly.
	sc, err = r.Resolve(context.Background(), Identity{UserID: "usr_m", Role: RoleMaster}, "ten_1")
	require.NoError(t, err)
	assert.Equal(t, "ten_1", sc.TenantID)
	assert.True(t, sc.Matches("ten_1", "", ""), "master sees legacy rows")
	assert.False(t, sc.Matches("ten_2", "usr_p1", ""))
}

func TestResolve_Admin(t *testing.T) {
	r := newResolver()

	sc, err := r.Resolve(context.Background(), Identity{
		UserID: "usr_admin", Role: RoleAdmin, TenantID: "ten_1",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, "ten_1", sc.TenantID)
	assert.ElementsMatch(t, []string{"usr_admin", "usr_p1", "usr_p2"}, sc.OwnerIDs)

	// Own rows and rows of created personals are visible.
	assert.True(t, sc.Matches("ten_1", "usr_admin", ""))
	assert.True(t, sc.Matches("ten_1", "usr_p1", ""))
	// Another admin's personal is not, even in the same tenant.
	assert.False(t, sc.Matches("ten_1", "usr_other", ""))
	// Legacy rows are master-only.
	assert.False(t, sc.Matches("ten_1", "", ""))
}

func TestResolve_Personal_StrictSilo(t *testing.T) {
	r := newResolver()

	sc1, err := r.Resolve(context.Background(), Identity{
		UserID: "usr_p1", Role: RolePersonal, TenantID: "ten_1",
	}, "")
	require.NoError(t, err)
	sc2, err := r.Resolve(context.Background(), Identity{
		UserID: "usr_p2", Role: RolePersonal, TenantID: "ten_1",
	}, "")
	require.NoError(t, err)

	// P1's scope never admits a row owned by P2, and vice versa.
	assert.True(t, sc1.Matches("ten_1", "usr_p1", ""))
	assert.False(t, sc1.Matches("ten_1", "usr_p2", ""))
	assert.False(t, sc2.Matches("ten_1", "usr_p1", ""))

	// Explicit tenant override is ignored for non-master callers.
	sc, err := r.Resolve(context.Background(), Identity{
		UserID: "usr_p1", Role: RolePersonal, TenantID: "ten_1",
	}, "ten_2")
	require.NoError(t, err)
	assert.Equal(t, "ten_1", sc.TenantID)
}

func TestResolve_Personal_LegacyResellerMatch(t *testing.T) {
	r := newResolver()

	sc, err := r.Resolve(context.Background(), Identity{
		UserID: "usr_p1", Role: RolePersonal, TenantID: "ten_1", LegacyResellerID: "rsl_9",
	}, "")
	require.NoError(t, err)

	assert.True(t, sc.Matches("ten_1", "", "rsl_9"), "legacy rows with matching reseller tag are visible")
	assert.False(t, sc.Matches("ten_1", "", "rsl_other"))
	assert.False(t, sc.Matches("ten_1", "", ""))
}

func TestResolve_MissingTenant(t *testing.T) {
	r := newResolver()

	_, err := r.Resolve(context.Background(), Identity{UserID: "usr_a", Role: RoleAdmin}, "")
	assert.ErrorIs(t, err, ErrTenantNotIdentified)

	_, err = r.Resolve(context.Background(), Identity{UserID: "usr_p", Role: RolePersonal}, "")
	assert.ErrorIs(t, err, ErrTenantNotIdentified)
}

func TestResolve_UnknownRole(t *testing.T) {
	r := newResolver()

	_, err := r.Resolve(context.Background(), Identity{UserID: "usr_x", Role: Role("reseller")}, "")
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleMaster.Valid())
	assert.True(t, RoleAdmin.Valid())
	assert.True(t, RolePersonal.Valid())
	assert.False(t, Role("reseller").Valid())
}

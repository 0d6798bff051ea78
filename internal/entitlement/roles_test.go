package entitlement

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleet-server/fleet-server-pro/internal/models"
	"github.com/fleet-server/fleet-server-pro/internal/storage"
)

func TestCreateRoleFirstBecomesDefault(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	engine := NewEngine(store, nil)

	sub := &models.SubscriptionType{Name: "Basic", IsActive: true}
	require.NoError(t, store.CreateSubscriptionType(ctx, sub))
	company := &models.Company{Name: "Fresh Co", SubscriptionTypeID: sub.ID, Status: models.CompanyStatusActive}
	require.NoError(t, store.CreateCompany(ctx, company))

	first := &models.Role{CompanyID: &company.ID, Name: "Dispatcher", Type: models.RoleTypeCustom}
	require.NoError(t, engine.CreateRole(ctx, first))
	assert.True(t, first.IsDefault)

	second := &models.Role{CompanyID: &company.ID, Name: "Driver", Type: models.RoleTypeCustom}
	require.NoError(t, engine.CreateRole(ctx, second))
	assert.False(t, second.IsDefault)
}

func TestCreateRoleConcurrentSingleDefault(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	engine := NewEngine(store, nil)

	sub := &models.SubscriptionType{Name: "Basic", IsActive: true}
	require.NoError(t, store.CreateSubscriptionType(ctx, sub))
	company := &models.Company{Name: "Fresh Co", SubscriptionTypeID: sub.ID, Status: models.CompanyStatusActive}
	require.NoError(t, store.CreateCompany(ctx, company))

	// Racing first-role creations must not produce two defaults
	const racers = 10
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			role := &models.Role{CompanyID: &company.ID, Name: "Dispatcher", Type: models.RoleTypeCustom}
			assert.NoError(t, engine.CreateRole(ctx, role))
		}()
	}
	wg.Wait()

	roles, err := store.ListRoles(ctx, &company.ID)
	require.NoError(t, err)
	require.Len(t, roles, racers)

	defaults := 0
	for _, r := range roles {
		if r.IsDefault {
			defaults++
		}
	}
	assert.Equal(t, 1, defaults)
}

func TestCreateRoleRejectsSystem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	system := &models.Role{CompanyID: &f.company.ID, Name: "Sneaky", IsSystem: true}
	assert.ErrorIs(t, f.engine.CreateRole(ctx, system), ErrForbidden)

	orphan := &models.Role{Name: "No Company"}
	assert.ErrorIs(t, f.engine.CreateRole(ctx, orphan), ErrForbidden)
}

func TestUpdateRoleSystemImmutable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.EnsureSystemRoles(ctx))

	admin, err := f.store.GetSystemRoleByType(ctx, models.RoleTypeSystemAdmin)
	require.NoError(t, err)

	admin.Name = "Renamed"
	assert.ErrorIs(t, f.engine.UpdateRole(ctx, admin), ErrForbidden)
	assert.ErrorIs(t, f.engine.DeleteRole(ctx, admin.ID), ErrForbidden)
}

func TestDeleteRoleInUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.AssignUserRole(ctx, f.user.ID, &f.role.ID))
	assert.ErrorIs(t, f.engine.DeleteRole(ctx, f.role.ID), ErrInUse)

	// Freeing the last user unlocks deletion
	require.NoError(t, f.engine.AssignUserRole(ctx, f.user.ID, nil))
	assert.NoError(t, f.engine.DeleteRole(ctx, f.role.ID))
}

func TestSetDefaultRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	second := &models.Role{CompanyID: &f.company.ID, Name: "Driver", Type: models.RoleTypeCustom}
	require.NoError(t, f.engine.CreateRole(ctx, second))

	require.NoError(t, f.engine.SetDefaultRole(ctx, f.company.ID, second.ID))

	got, err := f.store.GetDefaultRole(ctx, f.company.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	// The previous default was cleared
	prev, err := f.store.GetRole(ctx, f.role.ID)
	require.NoError(t, err)
	assert.False(t, prev.IsDefault)
}

func TestSetDefaultRoleChecks(t *testing.T) {
	f := newFixture(t)
	other := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.EnsureSystemRoles(ctx))
	admin, err := f.store.GetSystemRoleByType(ctx, models.RoleTypeSystemAdmin)
	require.NoError(t, err)

	assert.ErrorIs(t, f.engine.SetDefaultRole(ctx, f.company.ID, admin.ID), ErrForbidden)
	assert.ErrorIs(t, f.engine.SetDefaultRole(ctx, f.company.ID, uuid.New()), ErrNotFound)

	// Roles of another company are invisible here
	foreign := &models.Role{CompanyID: &other.company.ID, Name: "Foreign", Type: models.RoleTypeCustom}
	require.NoError(t, f.store.CreateRole(ctx, foreign))
	assert.ErrorIs(t, f.engine.SetDefaultRole(ctx, f.company.ID, foreign.ID), ErrNotFound)
}

func TestSetDefaultRoleConcurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	roles := make([]*models.Role, 8)
	for i := range roles {
		r := &models.Role{CompanyID: &f.company.ID, Name: "Shift", Type: models.RoleTypeCustom}
		require.NoError(t, f.engine.CreateRole(ctx, r))
		roles[i] = r
	}

	// Concurrent flips may conflict past the retry budget, but the
	// invariant holds: exactly one default at the end.
	var wg sync.WaitGroup
	for _, r := range roles {
		wg.Add(1)
		go func(r *models.Role) {
			defer wg.Done()
			err := f.engine.SetDefaultRole(ctx, f.company.ID, r.ID)
			if err != nil {
				assert.ErrorIs(t, err, ErrConflict)
			}
		}(r)
	}
	wg.Wait()

	all, err := f.store.ListRoles(ctx, &f.company.ID)
	require.NoError(t, err)
	defaults := 0
	for _, r := range all {
		if r.IsDefault {
			defaults++
		}
	}
	assert.Equal(t, 1, defaults)
}

func TestEnsureSystemRolesIdempotent(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	engine := NewEngine(store, nil)

	require.NoError(t, engine.EnsureSystemRoles(ctx))
	require.NoError(t, engine.EnsureSystemRoles(ctx))

	roles, err := store.ListRoles(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, roles, 3)

	admin, err := store.GetSystemRoleByType(ctx, models.RoleTypeSystemAdmin)
	require.NoError(t, err)
	assert.True(t, admin.IsSystem)
	assert.True(t, admin.Permissions.Allows("anything"))

	employee, err := store.GetSystemRoleByType(ctx, models.RoleTypeEmployee)
	require.NoError(t, err)
	assert.True(t, employee.Permissions.Allows("dashboard"))
	assert.False(t, employee.Permissions.Allows("roles"))
}

package storage

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleet-server/fleet-server-pro/internal/models"
)

func newTestCompany(t *testing.T, s *MemoryStore) *models.Company {
	t.Helper()
	company := &models.Company{
		Name:               "Acme Logistics",
		SubscriptionTypeID: uuid.New(),
		Status:             models.CompanyStatusActive,
	}
	require.NoError(t, s.CreateCompany(context.Background(), company))
	return company
}

func TestIncrementCompanyCounterIf(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	company := newTestCompany(t, store)

	// Fill up to the limit exactly
	assert.NoError(t, store.IncrementCompanyCounterIf(ctx, company.ID, models.ResourceVehicles, 3, 3))

	// One more trips the guard
	err := store.IncrementCompanyCounterIf(ctx, company.ID, models.ResourceVehicles, 1, 3)
	assert.Equal(t, ErrLimitReached, err)

	got, err := store.GetCompany(ctx, company.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.CurrentVehicles)

	// Unknown company trips the same guard
	err = store.IncrementCompanyCounterIf(ctx, uuid.New(), models.ResourceVehicles, 1, 3)
	assert.Equal(t, ErrLimitReached, err)
}

func TestIncrementCompanyCounterIfConcurrent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	company := newTestCompany(t, store)

	const workers = 50
	const limit = 10

	var wg sync.WaitGroup
	successes := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if store.IncrementCompanyCounterIf(ctx, company.ID, models.ResourceUsers, 1, limit) == nil {
				successes <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(successes)

	assert.Equal(t, limit, len(successes))

	got, err := store.GetCompany(ctx, company.ID)
	require.NoError(t, err)
	assert.Equal(t, limit, got.CurrentUsers)
}

func TestDecrementCompanyCounterFloor(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	company := newTestCompany(t, store)

	require.NoError(t, store.IncrementCompanyCounterIf(ctx, company.ID, models.ResourceGeofences, 2, 5))
	require.NoError(t, store.DecrementCompanyCounter(ctx, company.ID, models.ResourceGeofences, 2))

	got, err := store.GetCompany(ctx, company.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.CurrentGeofences)

	// Releases never push a counter below zero
	require.NoError(t, store.DecrementCompanyCounter(ctx, company.ID, models.ResourceGeofences, 2))
	got, err = store.GetCompany(ctx, company.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.CurrentGeofences)
}

func TestIncrementCampaignEnrollment(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	max := 2
	campaign := &models.Campaign{
		Name:             "Summer Promo",
		Status:           models.CampaignStatusActive,
		MaxSubscriptions: &max,
	}
	require.NoError(t, store.CreateCampaign(ctx, campaign))

	assert.NoError(t, store.IncrementCampaignEnrollment(ctx, campaign.ID))
	assert.NoError(t, store.IncrementCampaignEnrollment(ctx, campaign.ID))
	assert.Equal(t, ErrLimitReached, store.IncrementCampaignEnrollment(ctx, campaign.ID))

	// A freed slot is reusable
	require.NoError(t, store.DecrementCampaignEnrollment(ctx, campaign.ID))
	assert.NoError(t, store.IncrementCampaignEnrollment(ctx, campaign.ID))

	got, err := store.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentSubscriptions)
}

func TestIncrementCampaignEnrollmentInactive(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	campaign := &models.Campaign{Name: "Drafted", Status: models.CampaignStatusDraft}
	require.NoError(t, store.CreateCampaign(ctx, campaign))

	// The guard rejects any non-active status regardless of capacity
	assert.Equal(t, ErrLimitReached, store.IncrementCampaignEnrollment(ctx, campaign.ID))
}

func TestClaimCompanyCampaign(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	company := newTestCompany(t, store)

	first := uuid.New()
	second := uuid.New()

	assert.NoError(t, store.ClaimCompanyCampaign(ctx, company.ID, first))

	// A held claim rejects any further claim, same campaign or not
	assert.ErrorIs(t, store.ClaimCompanyCampaign(ctx, company.ID, first), ErrConflict)
	assert.ErrorIs(t, store.ClaimCompanyCampaign(ctx, company.ID, second), ErrConflict)

	assert.ErrorIs(t, store.ClaimCompanyCampaign(ctx, uuid.New(), first), ErrNotFound)

	got, err := store.GetCompany(ctx, company.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CampaignID)
	assert.Equal(t, first, *got.CampaignID)
}

func TestClearCompanyCampaign(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	company := newTestCompany(t, store)

	campaignID := uuid.New()
	require.NoError(t, store.ClaimCompanyCampaign(ctx, company.ID, campaignID))

	// Only the held campaign clears
	assert.ErrorIs(t, store.ClearCompanyCampaign(ctx, company.ID, uuid.New()), ErrNotFound)
	assert.NoError(t, store.ClearCompanyCampaign(ctx, company.ID, campaignID))

	// Second clear finds nothing to release
	assert.ErrorIs(t, store.ClearCompanyCampaign(ctx, company.ID, campaignID), ErrNotFound)

	got, err := store.GetCompany(ctx, company.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CampaignID)
}

func TestCreateRoleDemotesSecondDefault(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	company := newTestCompany(t, store)

	first := &models.Role{CompanyID: &company.ID, Name: "Dispatcher", Type: models.RoleTypeCustom, IsDefault: true}
	require.NoError(t, store.CreateRole(ctx, first))
	assert.True(t, first.IsDefault)

	// The flag only sticks for the first default per company
	second := &models.Role{CompanyID: &company.ID, Name: "Driver", Type: models.RoleTypeCustom, IsDefault: true}
	require.NoError(t, store.CreateRole(ctx, second))
	assert.False(t, second.IsDefault)

	got, err := store.GetDefaultRole(ctx, company.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
}

func TestSetDefaultRoleVersionGuard(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	company := newTestCompany(t, store)

	roleA := &models.Role{CompanyID: &company.ID, Name: "Dispatcher", Type: models.RoleTypeCustom, IsDefault: true}
	roleB := &models.Role{CompanyID: &company.ID, Name: "Driver", Type: models.RoleTypeCustom}
	require.NoError(t, store.CreateRole(ctx, roleA))
	require.NoError(t, store.CreateRole(ctx, roleB))

	// Stale version loses
	assert.Equal(t, ErrConflict, store.SetDefaultRole(ctx, company.ID, roleB.ID, company.Version+1))

	require.NoError(t, store.SetDefaultRole(ctx, company.ID, roleB.ID, company.Version))

	// The flip is atomic: exactly one default afterwards
	roles, err := store.ListRoles(ctx, &company.ID)
	require.NoError(t, err)
	defaults := 0
	for _, r := range roles {
		if r.IsDefault {
			defaults++
			assert.Equal(t, roleB.ID, r.ID)
		}
	}
	assert.Equal(t, 1, defaults)

	// The version moved on, replaying the old flip conflicts
	assert.Equal(t, ErrConflict, store.SetDefaultRole(ctx, company.ID, roleA.ID, company.Version))
}

func TestSetDefaultRoleForeignRole(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	company := newTestCompany(t, store)
	other := newTestCompany(t, store)

	foreign := &models.Role{CompanyID: &other.ID, Name: "Foreign", Type: models.RoleTypeCustom}
	require.NoError(t, store.CreateRole(ctx, foreign))

	assert.Equal(t, ErrNotFound, store.SetDefaultRole(ctx, company.ID, foreign.ID, company.Version))
}

func TestPruneVehicleFromUsers(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	company := newTestCompany(t, store)

	keep := uuid.New()
	gone := uuid.New()

	user := &models.User{
		CompanyID:          company.ID,
		Email:              "driver@acme.test",
		AssignedVehicleIDs: models.UUIDList{keep, gone},
		IsActive:           true,
	}
	require.NoError(t, store.CreateUser(ctx, user))

	require.NoError(t, store.PruneVehicleFromUsers(ctx, company.ID, gone))

	got, err := store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UUIDList{keep}, got.AssignedVehicleIDs)
}

func TestGetUserByEmail(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	company := newTestCompany(t, store)

	user := &models.User{CompanyID: company.ID, Email: "Ops@Acme.Test", IsActive: true}
	require.NoError(t, store.CreateUser(ctx, user))

	got, err := store.GetUserByEmail(ctx, "ops@acme.test")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = store.GetUserByEmail(ctx, "nobody@acme.test")
	assert.Equal(t, ErrNotFound, err)
}

package entitlement

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleet-server/fleet-server-pro/internal/models"
	"github.com/fleet-server/fleet-server-pro/internal/storage"
)

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

// fixture is a memory-backed engine with one company on a basic plan and
// one user with the company default role.
type fixture struct {
	store   *storage.MemoryStore
	engine  *Engine
	sub     *models.SubscriptionType
	company *models.Company
	role    *models.Role
	user    *models.User
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemoryStore()
	engine := NewEngine(store, nil, opts...)

	sub := &models.SubscriptionType{
		Name: "Basic",
		Limits: models.Limits{
			MaxVehicles:          10,
			MaxUsers:             5,
			MaxGPSDevices:        10,
			MaxGeofences:         3,
			HistoryRetentionDays: 30,
		},
		Features: models.FeatureSet{GPSTracking: true, RealTimeAlerts: true},
		IsActive: true,
	}
	require.NoError(t, store.CreateSubscriptionType(ctx, sub))

	company := &models.Company{
		Name:               "Acme Logistics",
		SubscriptionTypeID: sub.ID,
		Status:             models.CompanyStatusActive,
	}
	require.NoError(t, engine.CreateCompany(ctx, company))

	role := &models.Role{
		CompanyID:   &company.ID,
		Name:        "Dispatcher",
		Type:        models.RoleTypeCustom,
		Permissions: models.Explicit("dashboard", "vehicles", models.FeatureGPSTracking, models.FeatureAdvancedReports),
	}
	require.NoError(t, engine.CreateRole(ctx, role))

	user := &models.User{
		CompanyID: company.ID,
		Email:     "dispatcher@acme.test",
		IsActive:  true,
	}
	require.NoError(t, engine.AddUser(ctx, user))

	return &fixture{store: store, engine: engine, sub: sub, company: company, role: role, user: user}
}

// enrollActive puts the company into an active campaign with the given rights
func (f *fixture) enrollActive(t *testing.T, rights models.AccessRights) *models.Campaign {
	t.Helper()
	ctx := context.Background()
	campaign := &models.Campaign{
		Name:         "Promo",
		Status:       models.CampaignStatusActive,
		AccessRights: rights,
	}
	require.NoError(t, f.store.CreateCampaign(ctx, campaign))
	require.NoError(t, f.engine.EnrollCampaign(ctx, f.company.ID, campaign.ID))
	return campaign
}

func TestResolveBaseline(t *testing.T) {
	f := newFixture(t)

	got, err := f.engine.Resolve(context.Background(), f.company.ID, f.user.ID)
	require.NoError(t, err)

	assert.Equal(t, f.sub.Limits, got.Limits)
	assert.Equal(t, f.sub.Features, got.Features)
	assert.True(t, got.Permissions.Allows("dashboard"))
	assert.False(t, got.Permissions.Allows("reports"))
	assert.Empty(t, got.VehicleScope)
}

func TestResolveIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.engine.Resolve(ctx, f.company.ID, f.user.ID)
	require.NoError(t, err)
	second, err := f.engine.Resolve(ctx, f.company.ID, f.user.ID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestResolveCampaignOverride(t *testing.T) {
	f := newFixture(t)

	// Override raises vehicles 10 -> 50 and enables a feature; the omitted
	// fields inherit from the subscription.
	f.enrollActive(t, models.AccessRights{
		MaxVehicles:     intPtr(50),
		AdvancedReports: boolPtr(true),
	})

	got, err := f.engine.Resolve(context.Background(), f.company.ID, f.user.ID)
	require.NoError(t, err)

	assert.Equal(t, 50, got.Limits.MaxVehicles)
	assert.Equal(t, 5, got.Limits.MaxUsers)
	assert.True(t, got.Features.AdvancedReports)
	assert.True(t, got.Features.GPSTracking)
}

func TestResolveIgnoresUnusableCampaign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	campaign := f.enrollActive(t, models.AccessRights{MaxVehicles: intPtr(50)})

	// Pause the campaign after enrollment: the override stops applying
	// without touching the enrollment itself.
	require.NoError(t, f.engine.TransitionCampaign(ctx, campaign.ID, models.CampaignStatusPaused))

	got, err := f.engine.Resolve(ctx, f.company.ID, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Limits.MaxVehicles)

	company, err := f.store.GetCompany(ctx, f.company.ID)
	require.NoError(t, err)
	require.NotNil(t, company.CampaignID)
	assert.Equal(t, campaign.ID, *company.CampaignID)
}

func TestResolveExpiredCampaignByClock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	end := time.Now().Add(time.Hour)
	campaign := &models.Campaign{
		Name:         "Short promo",
		Status:       models.CampaignStatusActive,
		EndDate:      &end,
		AccessRights: models.AccessRights{MaxVehicles: intPtr(50)},
	}
	require.NoError(t, f.store.CreateCampaign(ctx, campaign))
	require.NoError(t, f.engine.EnrollCampaign(ctx, f.company.ID, campaign.ID))

	got, err := f.engine.Resolve(ctx, f.company.ID, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, got.Limits.MaxVehicles)

	// Move the engine clock past the end date: expiry is derived on read
	f.engine.now = func() time.Time { return end.Add(time.Minute) }

	got, err = f.engine.Resolve(ctx, f.company.ID, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Limits.MaxVehicles)
}

func TestResolveExplicitRoleBeatsDefault(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reports := &models.Role{
		CompanyID:   &f.company.ID,
		Name:        "Analyst",
		Type:        models.RoleTypeCustom,
		Permissions: models.Explicit("reports"),
	}
	require.NoError(t, f.engine.CreateRole(ctx, reports))
	require.NoError(t, f.engine.AssignUserRole(ctx, f.user.ID, &reports.ID))

	got, err := f.engine.Resolve(ctx, f.company.ID, f.user.ID)
	require.NoError(t, err)
	assert.True(t, got.Permissions.Allows("reports"))
	assert.False(t, got.Permissions.Allows("dashboard"))
}

func TestResolveConfigurationError(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	engine := NewEngine(store, nil)

	sub := &models.SubscriptionType{Name: "Basic", Limits: models.Limits{MaxUsers: 5}, IsActive: true}
	require.NoError(t, store.CreateSubscriptionType(ctx, sub))

	company := &models.Company{Name: "No Roles Inc", SubscriptionTypeID: sub.ID, Status: models.CompanyStatusActive}
	require.NoError(t, store.CreateCompany(ctx, company))

	// Created straight through the store: no default role exists
	user := &models.User{CompanyID: company.ID, Email: "lost@acme.test", IsActive: true}
	require.NoError(t, store.CreateUser(ctx, user))

	_, err := engine.Resolve(ctx, company.ID, user.ID)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestResolveUserFromOtherCompany(t *testing.T) {
	f := newFixture(t)
	other := newFixture(t)

	_, err := f.engine.Resolve(context.Background(), f.company.ID, other.user.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Resolve(ctx, uuid.New(), f.user.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.engine.Resolve(ctx, f.company.ID, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCanUseFeatureNeedsBothLayers(t *testing.T) {
	f := newFixture(t)

	got, err := f.engine.Resolve(context.Background(), f.company.ID, f.user.ID)
	require.NoError(t, err)

	// Feature enabled and role grants it
	assert.True(t, got.CanUse(models.FeatureGPSTracking))
	// Role grants it but the subscription does not enable it
	assert.False(t, got.CanUse(models.FeatureAdvancedReports))
	// Subscription enables it but the role does not grant it
	assert.False(t, got.CanUse(models.FeatureRealTimeAlerts))
	// Plain page key needs only the role
	assert.True(t, got.CanUse("dashboard"))
	assert.False(t, got.CanUse("reports"))
}

func TestResolveVehicleScopeIntersection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v1 := &models.Vehicle{CompanyID: f.company.ID, PlateNumber: "AB-101", Status: "active"}
	v2 := &models.Vehicle{CompanyID: f.company.ID, PlateNumber: "AB-102", Status: "active"}
	require.NoError(t, f.engine.AddVehicle(ctx, v1))
	require.NoError(t, f.engine.AddVehicle(ctx, v2))

	require.NoError(t, f.engine.AssignVehicleScope(ctx, f.user.ID, models.UUIDList{v1.ID, v2.ID}))

	got, err := f.engine.Resolve(ctx, f.company.ID, f.user.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{v1.ID, v2.ID}, got.VehicleScope)

	// Deleting a vehicle prunes it from the scope
	require.NoError(t, f.engine.RemoveVehicle(ctx, v2.ID))

	got, err = f.engine.Resolve(ctx, f.company.ID, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{v1.ID}, got.VehicleScope)
}

func TestAssignVehicleScopeRejectsForeignVehicle(t *testing.T) {
	f := newFixture(t)
	other := newFixture(t)
	ctx := context.Background()

	foreign := &models.Vehicle{CompanyID: other.company.ID, PlateNumber: "ZZ-999", Status: "active"}
	require.NoError(t, other.engine.AddVehicle(ctx, foreign))

	err := f.engine.AssignVehicleScope(ctx, f.user.ID, models.UUIDList{foreign.ID})
	assert.ErrorIs(t, err, ErrNotFound)
}

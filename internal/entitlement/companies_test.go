package entitlement

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleet-server/fleet-server-pro/internal/models"
)

func TestCreateCompanyRejectsInactivePlan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	retired := &models.SubscriptionType{Name: "Retired", IsActive: false}
	require.NoError(t, f.store.CreateSubscriptionType(ctx, retired))

	company := &models.Company{Name: "Latecomer", SubscriptionTypeID: retired.ID, Status: models.CompanyStatusActive}
	assert.ErrorIs(t, f.engine.CreateCompany(ctx, company), ErrNotActive)
}

func TestDisabledPlanStillResolves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Disable the plan the company is already on
	f.sub.IsActive = false
	require.NoError(t, f.store.UpdateSubscriptionType(ctx, f.sub))

	// Existing assignments keep resolving against the disabled plan
	got, err := f.engine.Resolve(ctx, f.company.ID, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, f.sub.Limits, got.Limits)

	// Only new assignments reject it
	other := &models.Company{Name: "New Co", SubscriptionTypeID: f.sub.ID, Status: models.CompanyStatusActive}
	assert.ErrorIs(t, f.engine.CreateCompany(ctx, other), ErrNotActive)
	assert.ErrorIs(t, f.engine.AssignSubscription(ctx, f.company.ID, f.sub.ID), ErrNotActive)
}

func TestAssignSubscriptionKeepsCounters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Fill vehicles to the Basic limit of 10
	require.NoError(t, f.engine.CheckAndReserveCapacity(ctx, f.company.ID, models.ResourceVehicles, 10))

	smaller := &models.SubscriptionType{
		Name:     "Lite",
		Limits:   models.Limits{MaxVehicles: 3, MaxUsers: 2},
		IsActive: true,
	}
	require.NoError(t, f.store.CreateSubscriptionType(ctx, smaller))

	// Downgrade succeeds even though the company is now over the new limit
	require.NoError(t, f.engine.AssignSubscription(ctx, f.company.ID, smaller.ID))

	company, err := f.store.GetCompany(ctx, f.company.ID)
	require.NoError(t, err)
	assert.Equal(t, smaller.ID, company.SubscriptionTypeID)
	assert.Equal(t, 10, company.CurrentVehicles)

	// New reservations are checked against the new limit
	err = f.engine.CheckAndReserveCapacity(ctx, f.company.ID, models.ResourceVehicles, 1)
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	// Releasing still works below the floor of the new limit
	require.NoError(t, f.engine.ReleaseCapacity(ctx, f.company.ID, models.ResourceVehicles, 8))
	assert.NoError(t, f.engine.CheckAndReserveCapacity(ctx, f.company.ID, models.ResourceVehicles, 1))
}

package entitlement

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleet-server/fleet-server-pro/internal/models"
	"github.com/fleet-server/fleet-server-pro/internal/storage"
)

func newActiveCampaign(t *testing.T, store *storage.MemoryStore, max *int) *models.Campaign {
	t.Helper()
	campaign := &models.Campaign{
		Name:             "Fleet Promo",
		Status:           models.CampaignStatusActive,
		MaxSubscriptions: max,
	}
	require.NoError(t, store.CreateCampaign(context.Background(), campaign))
	return campaign
}

func TestEnrollCampaign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	campaign := newActiveCampaign(t, f.store, nil)

	require.NoError(t, f.engine.EnrollCampaign(ctx, f.company.ID, campaign.ID))

	company, err := f.store.GetCompany(ctx, f.company.ID)
	require.NoError(t, err)
	require.NotNil(t, company.CampaignID)
	assert.Equal(t, campaign.ID, *company.CampaignID)

	got, err := f.store.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentSubscriptions)
}

func TestEnrollCampaignAlreadyEnrolled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := newActiveCampaign(t, f.store, nil)
	second := newActiveCampaign(t, f.store, nil)

	require.NoError(t, f.engine.EnrollCampaign(ctx, f.company.ID, first.ID))

	// One campaign at a time, even the same one again
	assert.ErrorIs(t, f.engine.EnrollCampaign(ctx, f.company.ID, second.ID), ErrAlreadyEnrolled)
	assert.ErrorIs(t, f.engine.EnrollCampaign(ctx, f.company.ID, first.ID), ErrAlreadyEnrolled)

	got, err := f.store.GetCampaign(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentSubscriptions)
}

func TestEnrollCampaignNotUsable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name     string
		campaign models.Campaign
	}{
		{"draft", models.Campaign{Name: "Draft", Status: models.CampaignStatusDraft}},
		{"paused", models.Campaign{Name: "Paused", Status: models.CampaignStatusPaused}},
		{"ended", models.Campaign{Name: "Ended", Status: models.CampaignStatusEnded}},
		{"not started", models.Campaign{Name: "Future", Status: models.CampaignStatusActive, StartDate: &future}},
		{"expired", models.Campaign{Name: "Past", Status: models.CampaignStatusActive, EndDate: &past}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.campaign
			require.NoError(t, f.store.CreateCampaign(ctx, &c))
			assert.ErrorIs(t, f.engine.EnrollCampaign(ctx, f.company.ID, c.ID), ErrNotActive)
		})
	}
}

func TestEnrollCampaignWrongTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other := &models.SubscriptionType{Name: "Premium", IsActive: true}
	require.NoError(t, f.store.CreateSubscriptionType(ctx, other))

	campaign := &models.Campaign{
		Name:                     "Premium only",
		Status:                   models.CampaignStatusActive,
		TargetSubscriptionTypeID: &other.ID,
	}
	require.NoError(t, f.store.CreateCampaign(ctx, campaign))

	assert.ErrorIs(t, f.engine.EnrollCampaign(ctx, f.company.ID, campaign.ID), ErrNotActive)

	// After switching to the targeted plan the enrollment goes through
	require.NoError(t, f.engine.AssignSubscription(ctx, f.company.ID, other.ID))
	assert.NoError(t, f.engine.EnrollCampaign(ctx, f.company.ID, campaign.ID))
}

func TestEnrollCampaignFull(t *testing.T) {
	f := newFixture(t)
	second := newFixture(t)
	third := newFixture(t)
	ctx := context.Background()

	max := 2
	campaign := newActiveCampaign(t, f.store, &max)
	// All three companies live in f's store for a shared campaign
	require.NoError(t, f.store.CreateCompany(ctx, second.company))
	require.NoError(t, f.store.CreateCompany(ctx, third.company))
	require.NoError(t, f.store.CreateSubscriptionType(ctx, second.sub))
	require.NoError(t, f.store.CreateSubscriptionType(ctx, third.sub))

	require.NoError(t, f.engine.EnrollCampaign(ctx, f.company.ID, campaign.ID))
	require.NoError(t, f.engine.EnrollCampaign(ctx, second.company.ID, campaign.ID))

	assert.ErrorIs(t, f.engine.EnrollCampaign(ctx, third.company.ID, campaign.ID), ErrCapacityExceeded)

	// Enrolled companies are never evicted by a full campaign; freeing one
	// slot lets the third company in.
	require.NoError(t, f.engine.UnenrollCampaign(ctx, f.company.ID))
	assert.NoError(t, f.engine.EnrollCampaign(ctx, third.company.ID, campaign.ID))

	got, err := f.store.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentSubscriptions)
}

func TestEnrollCampaignConcurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	max := 5
	campaign := newActiveCampaign(t, f.store, &max)

	// 20 companies race for 5 slots
	const racers = 20
	companies := make([]*models.Company, racers)
	for i := range companies {
		c := &models.Company{Name: "Racer", SubscriptionTypeID: f.sub.ID, Status: models.CompanyStatusActive}
		require.NoError(t, f.store.CreateCompany(ctx, c))
		companies[i] = c
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for _, c := range companies {
		wg.Add(1)
		go func(c *models.Company) {
			defer wg.Done()
			if f.engine.EnrollCampaign(ctx, c.ID, campaign.ID) == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}(c)
	}
	wg.Wait()

	assert.Equal(t, max, successes)

	got, err := f.store.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, max, got.CurrentSubscriptions)
}

func TestEnrollCampaignConcurrentSameCompany(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	campaign := newActiveCampaign(t, f.store, nil)

	// One company enrolling many times in parallel holds exactly one slot
	const racers = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := f.engine.EnrollCampaign(ctx, f.company.ID, campaign.ID)
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, ErrAlreadyEnrolled)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)

	got, err := f.store.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentSubscriptions)
}

func TestUnenrollCampaignConcurrentSameCompany(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	campaign := newActiveCampaign(t, f.store, nil)

	other := &models.Company{Name: "Other", SubscriptionTypeID: f.sub.ID, Status: models.CompanyStatusActive}
	require.NoError(t, f.store.CreateCompany(ctx, other))

	require.NoError(t, f.engine.EnrollCampaign(ctx, f.company.ID, campaign.ID))
	require.NoError(t, f.engine.EnrollCampaign(ctx, other.ID, campaign.ID))

	// Parallel unenrolls of one company free its slot exactly once
	const racers = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := f.engine.UnenrollCampaign(ctx, f.company.ID)
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, ErrNotFound)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)

	got, err := f.store.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentSubscriptions)
}

func TestUnenrollCampaign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	campaign := newActiveCampaign(t, f.store, nil)

	require.NoError(t, f.engine.EnrollCampaign(ctx, f.company.ID, campaign.ID))
	require.NoError(t, f.engine.UnenrollCampaign(ctx, f.company.ID))

	company, err := f.store.GetCompany(ctx, f.company.ID)
	require.NoError(t, err)
	assert.Nil(t, company.CampaignID)

	got, err := f.store.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.CurrentSubscriptions)

	// Not enrolled anymore
	assert.ErrorIs(t, f.engine.UnenrollCampaign(ctx, f.company.ID), ErrNotFound)
}

func TestTransitionCampaign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	campaign := &models.Campaign{Name: "Lifecycle", Status: models.CampaignStatusDraft}
	require.NoError(t, f.store.CreateCampaign(ctx, campaign))

	require.NoError(t, f.engine.TransitionCampaign(ctx, campaign.ID, models.CampaignStatusActive))
	require.NoError(t, f.engine.TransitionCampaign(ctx, campaign.ID, models.CampaignStatusPaused))
	require.NoError(t, f.engine.TransitionCampaign(ctx, campaign.ID, models.CampaignStatusActive))
	require.NoError(t, f.engine.TransitionCampaign(ctx, campaign.ID, models.CampaignStatusEnded))

	// Ended is terminal
	assert.ErrorIs(t, f.engine.TransitionCampaign(ctx, campaign.ID, models.CampaignStatusActive), ErrNotActive)

	got, err := f.store.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusEnded, got.Status)
}

func TestTransitionCampaignInvalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	campaign := &models.Campaign{Name: "Lifecycle", Status: models.CampaignStatusDraft}
	require.NoError(t, f.store.CreateCampaign(ctx, campaign))

	// Draft cannot pause, and unknown statuses are rejected outright
	assert.ErrorIs(t, f.engine.TransitionCampaign(ctx, campaign.ID, models.CampaignStatusPaused), ErrNotActive)
	assert.ErrorIs(t, f.engine.TransitionCampaign(ctx, campaign.ID, models.CampaignStatus("archived")), ErrNotActive)
}

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func TestCampaignWithinWindow(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	start := now.Add(-24 * time.Hour)
	end := now.Add(24 * time.Hour)

	tests := []struct {
		name     string
		campaign Campaign
		want     bool
	}{
		{"no bounds", Campaign{}, true},
		{"inside both bounds", Campaign{StartDate: &start, EndDate: &end}, true},
		{"before start", Campaign{StartDate: &end}, false},
		{"after end", Campaign{EndDate: &start}, false},
		{"only start passed", Campaign{StartDate: &start}, true},
		{"only end ahead", Campaign{EndDate: &end}, true},
		{"exactly at start", Campaign{StartDate: &now}, true},
		{"exactly at end", Campaign{EndDate: &now}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.campaign.WithinWindow(now))
		})
	}
}

func TestCampaignIsCurrentlyUsable(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)

	active := Campaign{Status: CampaignStatusActive}
	assert.True(t, active.IsCurrentlyUsable(now))

	// Status alone is not enough, the window must also match
	expired := Campaign{Status: CampaignStatusActive, EndDate: &past}
	assert.False(t, expired.IsCurrentlyUsable(now))
	// Expiry is derived, the stored status does not change
	assert.Equal(t, CampaignStatusActive, expired.Status)

	for _, status := range []CampaignStatus{CampaignStatusDraft, CampaignStatusPaused, CampaignStatusEnded} {
		c := Campaign{Status: status}
		assert.False(t, c.IsCurrentlyUsable(now), string(status))
	}
}

func TestCampaignTransitions(t *testing.T) {
	allowed := map[CampaignStatus][]CampaignStatus{
		CampaignStatusDraft:  {CampaignStatusActive, CampaignStatusEnded},
		CampaignStatusActive: {CampaignStatusPaused, CampaignStatusEnded},
		CampaignStatusPaused: {CampaignStatusActive, CampaignStatusEnded},
		CampaignStatusEnded:  {},
	}

	all := []CampaignStatus{CampaignStatusDraft, CampaignStatusActive, CampaignStatusPaused, CampaignStatusEnded}
	for from, nexts := range allowed {
		ok := make(map[CampaignStatus]bool)
		for _, n := range nexts {
			ok[n] = true
		}
		c := Campaign{Status: from}
		for _, to := range all {
			assert.Equal(t, ok[to], c.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestCampaignHasCapacity(t *testing.T) {
	unlimited := Campaign{CurrentSubscriptions: 1000}
	assert.True(t, unlimited.HasCapacity())

	full := Campaign{MaxSubscriptions: intPtr(2), CurrentSubscriptions: 2}
	assert.False(t, full.HasCapacity())

	open := Campaign{MaxSubscriptions: intPtr(2), CurrentSubscriptions: 1}
	assert.True(t, open.HasCapacity())
}

func TestAccessRightsOverlay(t *testing.T) {
	base := Limits{MaxVehicles: 10, MaxUsers: 5, MaxGPSDevices: 10, MaxGeofences: 3, HistoryRetentionDays: 30}
	features := FeatureSet{GPSTracking: true}

	// Only the set fields override, everything else inherits
	rights := AccessRights{
		MaxVehicles:     intPtr(50),
		AdvancedReports: boolPtr(true),
	}

	gotLimits := rights.ApplyToLimits(base)
	assert.Equal(t, 50, gotLimits.MaxVehicles)
	assert.Equal(t, 5, gotLimits.MaxUsers)
	assert.Equal(t, 30, gotLimits.HistoryRetentionDays)

	gotFeatures := rights.ApplyToFeatures(features)
	assert.True(t, gotFeatures.AdvancedReports)
	assert.True(t, gotFeatures.GPSTracking)
	assert.False(t, gotFeatures.FuelAnalysis)

	// An empty override changes nothing
	assert.Equal(t, base, AccessRights{}.ApplyToLimits(base))
	assert.Equal(t, features, AccessRights{}.ApplyToFeatures(features))

	// Overrides can also lower a limit or disable a feature
	reduced := AccessRights{MaxVehicles: intPtr(2), GPSTracking: boolPtr(false)}
	assert.Equal(t, 2, reduced.ApplyToLimits(base).MaxVehicles)
	assert.False(t, reduced.ApplyToFeatures(features).GPSTracking)
}

package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// CampaignStatus represents campaign lifecycle states
type CampaignStatus string

const (
	CampaignStatusDraft  CampaignStatus = "draft"
	CampaignStatusActive CampaignStatus = "active"
	CampaignStatusPaused CampaignStatus = "paused"
	CampaignStatusEnded  CampaignStatus = "ended"
)

// Valid reports whether the status is a known lifecycle state
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusActive, CampaignStatusPaused, CampaignStatusEnded:
		return true
	}
	return false
}

// AccessRights is a partial override of a subscription's limits and features.
// Nil fields inherit from the subscription; set fields replace it field by
// field, never as a whole-object swap.
type AccessRights struct {
	MaxVehicles          *int `json:"maxVehicles,omitempty"`
	MaxUsers             *int `json:"maxUsers,omitempty"`
	MaxGPSDevices        *int `json:"maxGpsDevices,omitempty"`
	MaxGeofences         *int `json:"maxGeofences,omitempty"`
	HistoryRetentionDays *int `json:"historyRetentionDays,omitempty"`

	GPSTracking     *bool `json:"gpsTracking,omitempty"`
	GPSInstallation *bool `json:"gpsInstallation,omitempty"`
	RealTimeAlerts  *bool `json:"realTimeAlerts,omitempty"`
	HistoryPlayback *bool `json:"historyPlayback,omitempty"`
	AdvancedReports *bool `json:"advancedReports,omitempty"`
	FuelAnalysis    *bool `json:"fuelAnalysis,omitempty"`
	DrivingBehavior *bool `json:"drivingBehavior,omitempty"`
	APIAccess       *bool `json:"apiAccess,omitempty"`
}

// ApplyToLimits overlays the set numeric fields onto l
func (a AccessRights) ApplyToLimits(l Limits) Limits {
	if a.MaxVehicles != nil {
		l.MaxVehicles = *a.MaxVehicles
	}
	if a.MaxUsers != nil {
		l.MaxUsers = *a.MaxUsers
	}
	if a.MaxGPSDevices != nil {
		l.MaxGPSDevices = *a.MaxGPSDevices
	}
	if a.MaxGeofences != nil {
		l.MaxGeofences = *a.MaxGeofences
	}
	if a.HistoryRetentionDays != nil {
		l.HistoryRetentionDays = *a.HistoryRetentionDays
	}
	return l
}

// ApplyToFeatures overlays the set feature flags onto f
func (a AccessRights) ApplyToFeatures(f FeatureSet) FeatureSet {
	if a.GPSTracking != nil {
		f.GPSTracking = *a.GPSTracking
	}
	if a.GPSInstallation != nil {
		f.GPSInstallation = *a.GPSInstallation
	}
	if a.RealTimeAlerts != nil {
		f.RealTimeAlerts = *a.RealTimeAlerts
	}
	if a.HistoryPlayback != nil {
		f.HistoryPlayback = *a.HistoryPlayback
	}
	if a.AdvancedReports != nil {
		f.AdvancedReports = *a.AdvancedReports
	}
	if a.FuelAnalysis != nil {
		f.FuelAnalysis = *a.FuelAnalysis
	}
	if a.DrivingBehavior != nil {
		f.DrivingBehavior = *a.DrivingBehavior
	}
	if a.APIAccess != nil {
		f.APIAccess = *a.APIAccess
	}
	return f
}

// Value implements driver.Valuer interface
func (a AccessRights) Value() (driver.Value, error) {
	return json.Marshal(a)
}

// Scan implements sql.Scanner interface
func (a *AccessRights) Scan(value interface{}) error {
	if value == nil {
		*a = AccessRights{}
		return nil
	}

	switch data := value.(type) {
	case []byte:
		return json.Unmarshal(data, a)
	case string:
		return json.Unmarshal([]byte(data), a)
	default:
		return json.Unmarshal([]byte(data.(string)), a)
	}
}

// Campaign represents a time-bounded, capacity-limited entitlement override
// offered to companies on a subscription
type Campaign struct {
	BaseModel

	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`

	Status CampaignStatus `json:"status" db:"status"`

	StartDate *time.Time `json:"startDate,omitempty" db:"start_date"`
	EndDate   *time.Time `json:"endDate,omitempty" db:"end_date"`

	DiscountPercentage float64 `json:"discountPercentage" db:"discount_percentage"`

	// MaxSubscriptions nil means unlimited enrollment capacity
	MaxSubscriptions     *int `json:"maxSubscriptions,omitempty" db:"max_subscriptions"`
	CurrentSubscriptions int  `json:"currentSubscriptions" db:"current_subscriptions"`

	// TargetSubscriptionTypeID nil means any subscription qualifies
	TargetSubscriptionTypeID *uuid.UUID `json:"targetSubscriptionTypeId,omitempty" db:"target_subscription_type_id"`

	AccessRights AccessRights `json:"accessRights" db:"access_rights"`
}

// WithinWindow reports whether now falls inside [StartDate, EndDate].
// Missing bounds mean unbounded on that side; both bounds are inclusive.
func (c *Campaign) WithinWindow(now time.Time) bool {
	if c.StartDate != nil && now.Before(*c.StartDate) {
		return false
	}
	if c.EndDate != nil && now.After(*c.EndDate) {
		return false
	}
	return true
}

// IsCurrentlyUsable reports whether the campaign currently applies. Expiry by
// date is derived here on read and never mutates Status, so historical
// records stay accurate.
func (c *Campaign) IsCurrentlyUsable(now time.Time) bool {
	return c.Status == CampaignStatusActive && c.WithinWindow(now)
}

// HasCapacity reports whether a new enrollment would fit. The authoritative
// check is the conditional increment in storage; this is for display only.
func (c *Campaign) HasCapacity() bool {
	return c.MaxSubscriptions == nil || c.CurrentSubscriptions < *c.MaxSubscriptions
}

// CanTransitionTo reports whether the explicit administrative transition from
// the current status to next is allowed
func (c *Campaign) CanTransitionTo(next CampaignStatus) bool {
	switch c.Status {
	case CampaignStatusDraft:
		return next == CampaignStatusActive || next == CampaignStatusEnded
	case CampaignStatusActive:
		return next == CampaignStatusPaused || next == CampaignStatusEnded
	case CampaignStatusPaused:
		return next == CampaignStatusActive || next == CampaignStatusEnded
	case CampaignStatusEnded:
		return false
	}
	return false
}

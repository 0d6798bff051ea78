package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Feature keys known to the platform. Roles may grant additional page keys;
// these are the ones that must also be enabled at the subscription level.
const (
	FeatureGPSTracking     = "gpsTracking"
	FeatureGPSInstallation = "gpsInstallation"
	FeatureRealTimeAlerts  = "realTimeAlerts"
	FeatureHistoryPlayback = "historyPlayback"
	FeatureAdvancedReports = "advancedReports"
	FeatureFuelAnalysis    = "fuelAnalysis"
	FeatureDrivingBehavior = "drivingBehavior"
	FeatureAPIAccess       = "apiAccess"
)

// FeatureKeys lists every subscription-level feature key
var FeatureKeys = []string{
	FeatureGPSTracking,
	FeatureGPSInstallation,
	FeatureRealTimeAlerts,
	FeatureHistoryPlayback,
	FeatureAdvancedReports,
	FeatureFuelAnalysis,
	FeatureDrivingBehavior,
	FeatureAPIAccess,
}

// IsFeatureKey reports whether key names a subscription-level feature
func IsFeatureKey(key string) bool {
	for _, k := range FeatureKeys {
		if k == key {
			return true
		}
	}
	return false
}

// FeatureSet holds the feature flags of a subscription type
type FeatureSet struct {
	GPSTracking     bool `json:"gpsTracking"`
	GPSInstallation bool `json:"gpsInstallation"`
	RealTimeAlerts  bool `json:"realTimeAlerts"`
	HistoryPlayback bool `json:"historyPlayback"`
	AdvancedReports bool `json:"advancedReports"`
	FuelAnalysis    bool `json:"fuelAnalysis"`
	DrivingBehavior bool `json:"drivingBehavior"`
	APIAccess       bool `json:"apiAccess"`
}

// Enabled reports whether the named feature flag is on
func (f FeatureSet) Enabled(key string) bool {
	switch key {
	case FeatureGPSTracking:
		return f.GPSTracking
	case FeatureGPSInstallation:
		return f.GPSInstallation
	case FeatureRealTimeAlerts:
		return f.RealTimeAlerts
	case FeatureHistoryPlayback:
		return f.HistoryPlayback
	case FeatureAdvancedReports:
		return f.AdvancedReports
	case FeatureFuelAnalysis:
		return f.FuelAnalysis
	case FeatureDrivingBehavior:
		return f.DrivingBehavior
	case FeatureAPIAccess:
		return f.APIAccess
	}
	return false
}

// Value implements driver.Valuer interface
func (f FeatureSet) Value() (driver.Value, error) {
	return json.Marshal(f)
}

// Scan implements sql.Scanner interface
func (f *FeatureSet) Scan(value interface{}) error {
	if value == nil {
		*f = FeatureSet{}
		return nil
	}

	switch data := value.(type) {
	case []byte:
		return json.Unmarshal(data, f)
	case string:
		return json.Unmarshal([]byte(data), f)
	default:
		return json.Unmarshal([]byte(data.(string)), f)
	}
}

// Limits holds the numeric resource limits of a subscription type
type Limits struct {
	MaxVehicles          int `json:"maxVehicles"`
	MaxUsers             int `json:"maxUsers"`
	MaxGPSDevices        int `json:"maxGpsDevices"`
	MaxGeofences         int `json:"maxGeofences"`
	HistoryRetentionDays int `json:"historyRetentionDays"`
}

// ForResource returns the limit that applies to the given resource kind
func (l Limits) ForResource(kind ResourceKind) int {
	switch kind {
	case ResourceVehicles:
		return l.MaxVehicles
	case ResourceUsers:
		return l.MaxUsers
	case ResourceGPSDevices:
		return l.MaxGPSDevices
	case ResourceGeofences:
		return l.MaxGeofences
	}
	return 0
}

// ResourceKind identifies a counted per-company resource
type ResourceKind string

const (
	ResourceVehicles   ResourceKind = "vehicles"
	ResourceUsers      ResourceKind = "users"
	ResourceGPSDevices ResourceKind = "gps_devices"
	ResourceGeofences  ResourceKind = "geofences"
)

// Valid reports whether the resource kind is known
func (k ResourceKind) Valid() bool {
	switch k {
	case ResourceVehicles, ResourceUsers, ResourceGPSDevices, ResourceGeofences:
		return true
	}
	return false
}

// SubscriptionType represents a sellable plan with limits and feature flags.
// IsActive gates new assignments only: companies already on a plan keep
// resolving against it even after the plan is disabled.
type SubscriptionType struct {
	BaseModel

	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`

	Limits   Limits     `json:"limits" db:"limits"`
	Features FeatureSet `json:"features" db:"features"`

	IsActive bool `json:"isActive" db:"is_active"`
}

// Company represents a fleet-operating customer
type Company struct {
	BaseModel

	Name string `json:"name" db:"name"`

	SubscriptionTypeID uuid.UUID  `json:"subscriptionTypeId" db:"subscription_type_id"`
	CampaignID         *uuid.UUID `json:"campaignId,omitempty" db:"campaign_id"`

	CurrentVehicles   int `json:"currentVehicles" db:"current_vehicles"`
	CurrentUsers      int `json:"currentUsers" db:"current_users"`
	CurrentGPSDevices int `json:"currentGpsDevices" db:"current_gps_devices"`
	CurrentGeofences  int `json:"currentGeofences" db:"current_geofences"`

	Status CompanyStatus `json:"status" db:"status"`

	// Version guards concurrent company-scoped flips such as the default
	// role change. Bumped on every conditional update.
	Version int64 `json:"version" db:"version"`
}

// CompanyStatus represents company account status
type CompanyStatus string

const (
	CompanyStatusActive    CompanyStatus = "active"
	CompanyStatusSuspended CompanyStatus = "suspended"
)

// CounterFor returns the current count for the given resource kind
func (c *Company) CounterFor(kind ResourceKind) int {
	switch kind {
	case ResourceVehicles:
		return c.CurrentVehicles
	case ResourceUsers:
		return c.CurrentUsers
	case ResourceGPSDevices:
		return c.CurrentGPSDevices
	case ResourceGeofences:
		return c.CurrentGeofences
	}
	return 0
}

// Vehicle represents a tracked vehicle owned by a company
type Vehicle struct {
	BaseModel

	CompanyID uuid.UUID `json:"companyId" db:"company_id"`

	PlateNumber string `json:"plateNumber" db:"plate_number"`
	Make        string `json:"make" db:"make"`
	Model       string `json:"model" db:"model"`
	Year        int    `json:"year" db:"year"`

	HasGPSDevice bool `json:"hasGpsDevice" db:"has_gps_device"`

	Status string `json:"status" db:"status"`

	// LastSeenAt is set by the tracking pipeline, not by this server
	LastSeenAt *time.Time `json:"lastSeenAt,omitempty" db:"last_seen_at"`
}

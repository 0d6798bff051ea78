package models

import (
	"time"

	"github.com/google/uuid"
)

// EventLog represents an event log entry
type EventLog struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	CompanyID  *uuid.UUID `json:"companyId,omitempty" db:"company_id"`
	UserID     *uuid.UUID `json:"userId,omitempty" db:"user_id"`
	CampaignID *uuid.UUID `json:"campaignId,omitempty" db:"campaign_id"`

	Type        EventType  `json:"type" db:"type"`
	Level       EventLevel `json:"level" db:"level"`
	Description string     `json:"description" db:"description"`

	Details Variables `json:"details,omitempty" db:"details"`
}

// EventType represents event types
type EventType string

const (
	// Campaign events
	EventTypeCampaignEnrolled   EventType = "CAMPAIGN_ENROLLED"
	EventTypeCampaignUnenrolled EventType = "CAMPAIGN_UNENROLLED"
	EventTypeCampaignTransition EventType = "CAMPAIGN_TRANSITION"

	// Capacity events
	EventTypeCapacityReserved EventType = "CAPACITY_RESERVED"
	EventTypeCapacityDenied   EventType = "CAPACITY_DENIED"

	// Role events
	EventTypeDefaultRoleChanged EventType = "DEFAULT_ROLE_CHANGED"

	// Subscription events
	EventTypeSubscriptionAssigned EventType = "SUBSCRIPTION_ASSIGNED"
)

// EventLevel represents event severity levels
type EventLevel string

const (
	EventLevelInfo    EventLevel = "INFO"
	EventLevelWarning EventLevel = "WARNING"
	EventLevelError   EventLevel = "ERROR"
)

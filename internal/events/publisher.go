package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Subjects follow fleet.company.<company_id>.<event>
const (
	subjectCampaignEnrolled   = "fleet.company.%s.campaign.enrolled"
	subjectCampaignUnenrolled = "fleet.company.%s.campaign.unenrolled"
	subjectCapacityDenied     = "fleet.company.%s.capacity.denied"
	subjectDefaultRoleChanged = "fleet.company.%s.role.default_changed"
)

// Publisher publishes engine events to NATS. A nil Publisher (or one built
// from a nil connection) is valid and drops everything, so the engine can run
// without a broker.
type Publisher struct {
	nc *nats.Conn
}

// NewPublisher creates a new publisher
func NewPublisher(nc *nats.Conn) *Publisher {
	return &Publisher{nc: nc}
}

func (p *Publisher) publish(subject string, payload interface{}) {
	if p == nil || p.nc == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("subject", subject).Msg("Failed to marshal event")
		return
	}

	if err := p.nc.Publish(subject, data); err != nil {
		log.Error().Err(err).Str("subject", subject).Msg("Failed to publish event")
	}
}

// CampaignEnrolled publishes a campaign enrollment event
func (p *Publisher) CampaignEnrolled(companyID, campaignID uuid.UUID) {
	p.publish(fmt.Sprintf(subjectCampaignEnrolled, companyID), map[string]interface{}{
		"companyId":  companyID,
		"campaignId": campaignID,
		"time":       time.Now().UTC(),
	})
}

// CampaignUnenrolled publishes a campaign unenrollment event
func (p *Publisher) CampaignUnenrolled(companyID, campaignID uuid.UUID) {
	p.publish(fmt.Sprintf(subjectCampaignUnenrolled, companyID), map[string]interface{}{
		"companyId":  companyID,
		"campaignId": campaignID,
		"time":       time.Now().UTC(),
	})
}

// CapacityDenied publishes a capacity denial event
func (p *Publisher) CapacityDenied(companyID uuid.UUID, resource string, limit int) {
	p.publish(fmt.Sprintf(subjectCapacityDenied, companyID), map[string]interface{}{
		"companyId": companyID,
		"resource":  resource,
		"limit":     limit,
		"time":      time.Now().UTC(),
	})
}

// DefaultRoleChanged publishes a default role change event
func (p *Publisher) DefaultRoleChanged(companyID, roleID uuid.UUID) {
	p.publish(fmt.Sprintf(subjectDefaultRoleChanged, companyID), map[string]interface{}{
		"companyId": companyID,
		"roleId":    roleID,
		"time":      time.Now().UTC(),
	})
}

package entitlement

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fleet-server/fleet-server-pro/internal/models"
	"github.com/fleet-server/fleet-server-pro/internal/storage"
)

// EnrollCampaign enrolls a company into a campaign. The capacity check and
// the counter increment are one conditional statement in storage, so two
// companies racing for the last slot get exactly one success.
func (e *Engine) EnrollCampaign(ctx context.Context, companyID, campaignID uuid.UUID) error {
	company, err := e.store.GetCompany(ctx, companyID)
	if err != nil {
		return wrapStoreErr("enroll company", err)
	}
	if company.CampaignID != nil {
		return ErrAlreadyEnrolled
	}

	campaign, err := e.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return wrapStoreErr("enroll campaign", err)
	}
	if !campaign.IsCurrentlyUsable(e.now()) {
		return ErrNotActive
	}
	if campaign.TargetSubscriptionTypeID != nil && *campaign.TargetSubscriptionTypeID != company.SubscriptionTypeID {
		return ErrNotActive
	}

	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return wrapStoreErr("enroll", err)
	}
	defer tx.Rollback()

	// Claim the company side first; its guard makes two enrolls racing for
	// the same company resolve to exactly one claim, so one company can
	// never consume two slots.
	if err := tx.ClaimCompanyCampaign(ctx, companyID, campaignID); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return ErrAlreadyEnrolled
		}
		return wrapStoreErr("enroll", err)
	}

	if err := tx.IncrementCampaignEnrollment(ctx, campaignID); err != nil {
		// Release the claim explicitly; the memory store has no rollback
		if clearErr := tx.ClearCompanyCampaign(ctx, companyID, campaignID); clearErr != nil && !errors.Is(clearErr, storage.ErrNotFound) {
			log.Warn().Err(clearErr).Str("company_id", companyID.String()).Msg("Failed to release campaign claim")
		}
		if errors.Is(err, storage.ErrLimitReached) {
			// The guard also trips when the campaign went inactive between
			// the read above and the update; classify by re-reading.
			fresh, readErr := e.store.GetCampaign(ctx, campaignID)
			if readErr == nil && !fresh.IsCurrentlyUsable(e.now()) {
				return ErrNotActive
			}
			return ErrCapacityExceeded
		}
		return wrapStoreErr("enroll", err)
	}

	if err := tx.Commit(); err != nil {
		return wrapStoreErr("enroll", err)
	}

	e.events.CampaignEnrolled(companyID, campaignID)
	e.logEvent(ctx, &models.EventLog{
		CompanyID:   &companyID,
		CampaignID:  &campaignID,
		Type:        models.EventTypeCampaignEnrolled,
		Level:       models.EventLevelInfo,
		Description: "company enrolled in campaign",
	})

	return nil
}

// UnenrollCampaign removes the company from its campaign and frees the slot.
// Capacity exhaustion never evicts enrolled companies; this is the only way
// out besides the campaign ending.
func (e *Engine) UnenrollCampaign(ctx context.Context, companyID uuid.UUID) error {
	company, err := e.store.GetCompany(ctx, companyID)
	if err != nil {
		return wrapStoreErr("unenroll company", err)
	}
	if company.CampaignID == nil {
		return ErrNotFound
	}
	campaignID := *company.CampaignID

	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return wrapStoreErr("unenroll", err)
	}
	defer tx.Rollback()

	// The conditional clear makes concurrent unenrolls of the same company
	// resolve to exactly one winner, so the slot is freed once, not twice
	if err := tx.ClearCompanyCampaign(ctx, companyID, campaignID); err != nil {
		return wrapStoreErr("unenroll", err)
	}
	if err := tx.DecrementCampaignEnrollment(ctx, campaignID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return wrapStoreErr("unenroll", err)
	}

	if err := tx.Commit(); err != nil {
		return wrapStoreErr("unenroll", err)
	}

	e.events.CampaignUnenrolled(companyID, campaignID)
	e.logEvent(ctx, &models.EventLog{
		CompanyID:   &companyID,
		CampaignID:  &campaignID,
		Type:        models.EventTypeCampaignUnenrolled,
		Level:       models.EventLevelInfo,
		Description: "company unenrolled from campaign",
	})

	return nil
}

// TransitionCampaign applies an explicit administrative status transition.
// Date-window expiry is never a transition; it is derived on read so
// historical records stay accurate.
func (e *Engine) TransitionCampaign(ctx context.Context, campaignID uuid.UUID, next models.CampaignStatus) error {
	if !next.Valid() {
		return ErrNotActive
	}

	campaign, err := e.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return wrapStoreErr("transition campaign", err)
	}
	if !campaign.CanTransitionTo(next) {
		return ErrNotActive
	}

	prev := campaign.Status
	campaign.Status = next
	if err := e.store.UpdateCampaign(ctx, campaign); err != nil {
		return wrapStoreErr("transition campaign", err)
	}

	e.logEvent(ctx, &models.EventLog{
		CampaignID:  &campaignID,
		Type:        models.EventTypeCampaignTransition,
		Level:       models.EventLevelInfo,
		Description: "campaign status changed",
		Details: models.Variables{
			"from": string(prev),
			"to":   string(next),
		},
	})

	return nil
}

package entitlement

import (
	"context"

	"github.com/google/uuid"

	"github.com/fleet-server/fleet-server-pro/internal/models"
)

// CreateCompany creates a company on a subscription type. Inactive types are
// rejected for new assignments only; companies already on a disabled type
// keep resolving against it.
func (e *Engine) CreateCompany(ctx context.Context, company *models.Company) error {
	sub, err := e.store.GetSubscriptionType(ctx, company.SubscriptionTypeID)
	if err != nil {
		return wrapStoreErr("create company", err)
	}
	if !sub.IsActive {
		return ErrNotActive
	}

	return wrapStoreErr("create company", e.store.CreateCompany(ctx, company))
}

// AssignSubscription moves a company to another subscription type. The same
// active-only rule applies as at creation. Existing counters are untouched:
// the guard enforces the new limits on the next mutation attempt, it never
// evicts resources already in use.
func (e *Engine) AssignSubscription(ctx context.Context, companyID, subscriptionTypeID uuid.UUID) error {
	sub, err := e.store.GetSubscriptionType(ctx, subscriptionTypeID)
	if err != nil {
		return wrapStoreErr("assign subscription", err)
	}
	if !sub.IsActive {
		return ErrNotActive
	}

	company, err := e.store.GetCompany(ctx, companyID)
	if err != nil {
		return wrapStoreErr("assign subscription", err)
	}

	company.SubscriptionTypeID = subscriptionTypeID
	if err := e.store.UpdateCompany(ctx, company); err != nil {
		return wrapStoreErr("assign subscription", err)
	}

	e.logEvent(ctx, &models.EventLog{
		CompanyID:   &companyID,
		Type:        models.EventTypeSubscriptionAssigned,
		Level:       models.EventLevelInfo,
		Description: "subscription assigned",
		Details:     models.Variables{"subscriptionTypeId": subscriptionTypeID.String()},
	})

	return nil
}

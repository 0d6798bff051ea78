package entitlement

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/fleet-server/fleet-server-pro/internal/models"
	"github.com/fleet-server/fleet-server-pro/internal/storage"
)

// EffectiveEntitlement is the merged authorization result for one user of
// one company: subscription limits and features after the campaign override,
// the acting role's permissions, and the live vehicle scope.
type EffectiveEntitlement struct {
	CompanyID uuid.UUID `json:"companyId"`
	UserID    uuid.UUID `json:"userId"`

	Limits   models.Limits     `json:"limits"`
	Features models.FeatureSet `json:"features"`

	Permissions models.PermissionSet `json:"permissions"`

	VehicleScope []uuid.UUID `json:"vehicleScope"`
}

// CanUse decides the final allow for a page/feature key. Feature keys need
// both layers: the entitlement must enable the feature and the role must
// grant the matching permission. Plain page keys need only the role.
func (e *EffectiveEntitlement) CanUse(key string) bool {
	if models.IsFeatureKey(key) && !e.Features.Enabled(key) {
		return false
	}
	return e.Permissions.Allows(key)
}

// Resolve computes the effective entitlement for a user. All reads happen
// inside one storage transaction so a concurrent mutation can never produce
// a result mixing pre- and post-mutation state.
func (e *Engine) Resolve(ctx context.Context, companyID, userID uuid.UUID) (*EffectiveEntitlement, error) {
	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return nil, wrapStoreErr("resolve", err)
	}
	defer tx.Rollback()

	company, err := tx.GetCompany(ctx, companyID)
	if err != nil {
		return nil, wrapStoreErr("resolve company", err)
	}

	limits, features, err := e.companyEntitlement(ctx, tx, company)
	if err != nil {
		return nil, err
	}

	user, err := tx.GetUser(ctx, userID)
	if err != nil {
		return nil, wrapStoreErr("resolve user", err)
	}
	if user.CompanyID != companyID {
		return nil, ErrNotFound
	}

	role, err := e.actingRole(ctx, tx, user)
	if err != nil {
		return nil, err
	}

	vehicleIDs, err := tx.ListVehicleIDs(ctx, companyID)
	if err != nil {
		return nil, wrapStoreErr("resolve vehicles", err)
	}

	return &EffectiveEntitlement{
		CompanyID:    companyID,
		UserID:       userID,
		Limits:       limits,
		Features:     features,
		Permissions:  role.Permissions,
		VehicleScope: intersectScope(user.AssignedVehicleIDs, vehicleIDs),
	}, nil
}

// companyEntitlement merges the subscription with the campaign override.
// Catalog snapshot semantics: a disabled subscription type still resolves
// for companies already assigned to it.
func (e *Engine) companyEntitlement(ctx context.Context, tx storage.Store, company *models.Company) (models.Limits, models.FeatureSet, error) {
	sub, err := tx.GetSubscriptionType(ctx, company.SubscriptionTypeID)
	if err != nil {
		return models.Limits{}, models.FeatureSet{}, wrapStoreErr("resolve subscription", err)
	}

	limits := sub.Limits
	features := sub.Features

	if company.CampaignID != nil {
		campaign, err := tx.GetCampaign(ctx, *company.CampaignID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			// Dangling enrollment: fall back to plain subscription terms
		case err != nil:
			return models.Limits{}, models.FeatureSet{}, wrapStoreErr("resolve campaign", err)
		case campaign.IsCurrentlyUsable(e.now()):
			limits = campaign.AccessRights.ApplyToLimits(limits)
			features = campaign.AccessRights.ApplyToFeatures(features)
		}
	}

	return limits, features, nil
}

// actingRole resolves the user's explicit role, falling back to the
// company's default role. No resolvable role is a configuration error:
// never silently grant or deny.
func (e *Engine) actingRole(ctx context.Context, tx storage.Store, user *models.User) (*models.Role, error) {
	if user.RoleID != nil {
		role, err := tx.GetRole(ctx, *user.RoleID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrConfiguration
		}
		if err != nil {
			return nil, wrapStoreErr("resolve role", err)
		}
		return role, nil
	}

	role, err := tx.GetDefaultRole(ctx, user.CompanyID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrConfiguration
	}
	if err != nil {
		return nil, wrapStoreErr("resolve default role", err)
	}
	return role, nil
}

// intersectScope keeps only assigned ids that still exist in the company
// vehicle set, preserving assignment order
func intersectScope(assigned models.UUIDList, current []uuid.UUID) []uuid.UUID {
	live := make(map[uuid.UUID]struct{}, len(current))
	for _, id := range current {
		live[id] = struct{}{}
	}

	scope := make([]uuid.UUID, 0, len(assigned))
	for _, id := range assigned {
		if _, ok := live[id]; ok {
			scope = append(scope, id)
		}
	}
	return scope
}

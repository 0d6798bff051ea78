package entitlement

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fleet-server/fleet-server-pro/internal/models"
	"github.com/fleet-server/fleet-server-pro/internal/storage"
)

// CreateRole creates a company role. System roles are seeded, never created
// through this path.
func (e *Engine) CreateRole(ctx context.Context, role *models.Role) error {
	if role.IsSystem || role.CompanyID == nil {
		return ErrForbidden
	}
	if !role.Type.Valid() {
		role.Type = models.RoleTypeCustom
	}

	if _, err := e.store.GetCompany(ctx, *role.CompanyID); err != nil {
		return wrapStoreErr("create role", err)
	}

	// The first role of a company becomes the default so users without an
	// explicit role always resolve. This read only expresses intent; the
	// store demotes the flag atomically if another default got in first.
	_, err := e.store.GetDefaultRole(ctx, *role.CompanyID)
	if errors.Is(err, storage.ErrNotFound) {
		role.IsDefault = true
	} else if err != nil {
		return wrapStoreErr("create role", err)
	}

	return wrapStoreErr("create role", e.store.CreateRole(ctx, role))
}

// UpdateRole updates a company role. System roles are immutable.
func (e *Engine) UpdateRole(ctx context.Context, role *models.Role) error {
	existing, err := e.store.GetRole(ctx, role.ID)
	if err != nil {
		return wrapStoreErr("update role", err)
	}
	if existing.IsSystem {
		return ErrForbidden
	}

	return wrapStoreErr("update role", e.store.UpdateRole(ctx, role))
}

// DeleteRole deletes a company role. System roles are immutable; roles with
// assigned users are protected.
func (e *Engine) DeleteRole(ctx context.Context, roleID uuid.UUID) error {
	role, err := e.store.GetRole(ctx, roleID)
	if err != nil {
		return wrapStoreErr("delete role", err)
	}
	if role.IsSystem {
		return ErrForbidden
	}
	if role.UsersCount > 0 {
		return ErrInUse
	}

	return wrapStoreErr("delete role", e.store.DeleteRole(ctx, roleID))
}

// SetDefaultRole makes roleID the single default role of the company. The
// flip is one version-guarded transaction in storage; lost races are retried
// here with bounded attempts before a Conflict surfaces.
func (e *Engine) SetDefaultRole(ctx context.Context, companyID, roleID uuid.UUID) error {
	role, err := e.store.GetRole(ctx, roleID)
	if err != nil {
		return wrapStoreErr("default role", err)
	}
	if role.IsSystem {
		return ErrForbidden
	}
	if role.CompanyID == nil || *role.CompanyID != companyID {
		return ErrNotFound
	}

	var lastErr error
	for attempt := 0; attempt < e.retries; attempt++ {
		company, err := e.store.GetCompany(ctx, companyID)
		if err != nil {
			return wrapStoreErr("default role", err)
		}

		err = e.store.SetDefaultRole(ctx, companyID, roleID, company.Version)
		if err == nil {
			e.events.DefaultRoleChanged(companyID, roleID)
			e.logEvent(ctx, &models.EventLog{
				CompanyID:   &companyID,
				Type:        models.EventTypeDefaultRoleChanged,
				Level:       models.EventLevelInfo,
				Description: "default role changed",
				Details:     models.Variables{"roleId": roleID.String()},
			})
			return nil
		}
		if !errors.Is(err, storage.ErrConflict) {
			return wrapStoreErr("default role", err)
		}

		lastErr = err
		log.Debug().Int("attempt", attempt+1).Str("company_id", companyID.String()).Msg("Default role flip lost race, retrying")
	}

	return wrapStoreErr("default role", lastErr)
}

// systemRoleSeeds are created once at startup and never touched again
var systemRoleSeeds = []models.Role{
	{
		Name:        "System Administrator",
		Type:        models.RoleTypeSystemAdmin,
		Permissions: models.Wildcard(),
	},
	{
		Name: "Company Administrator",
		Type: models.RoleTypeCompanyAdmin,
		Permissions: models.Explicit(
			"dashboard", "vehicles", "users", "roles", "geofences", "reports",
			models.FeatureGPSTracking, models.FeatureRealTimeAlerts,
			models.FeatureHistoryPlayback, models.FeatureAdvancedReports,
			models.FeatureFuelAnalysis, models.FeatureDrivingBehavior,
		),
	},
	{
		Name: "Employee",
		Type: models.RoleTypeEmployee,
		Permissions: models.Explicit(
			"dashboard", "vehicles", models.FeatureGPSTracking,
		),
	},
}

// EnsureSystemRoles seeds the immutable system roles if missing
func (e *Engine) EnsureSystemRoles(ctx context.Context) error {
	for _, seed := range systemRoleSeeds {
		_, err := e.store.GetSystemRoleByType(ctx, seed.Type)
		if err == nil {
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return wrapStoreErr("seed roles", err)
		}

		role := seed
		role.IsSystem = true
		if err := e.store.CreateRole(ctx, &role); err != nil {
			return wrapStoreErr("seed roles", err)
		}
		log.Info().Str("type", string(role.Type)).Msg("Seeded system role")
	}
	return nil
}

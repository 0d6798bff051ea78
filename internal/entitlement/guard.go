package entitlement

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fleet-server/fleet-server-pro/internal/models"
	"github.com/fleet-server/fleet-server-pro/internal/storage"
)

// CheckAndReserveCapacity reserves delta units of a counted resource for the
// company. The limit is re-resolved live on every call, so a campaign
// override or subscription change takes effect on the next attempt without
// any cache invalidation. A negative delta releases capacity.
func (e *Engine) CheckAndReserveCapacity(ctx context.Context, companyID uuid.UUID, kind models.ResourceKind, delta int) error {
	if !kind.Valid() {
		return ErrNotFound
	}
	if delta == 0 {
		return nil
	}
	if delta < 0 {
		return wrapStoreErr("release capacity", e.store.DecrementCompanyCounter(ctx, companyID, kind, -delta))
	}

	limit, err := e.liveLimit(ctx, companyID, kind)
	if err != nil {
		return err
	}

	err = e.store.IncrementCompanyCounterIf(ctx, companyID, kind, delta, limit)
	if errors.Is(err, storage.ErrLimitReached) {
		// The guard clause can also fail because the company row is gone
		if _, getErr := e.store.GetCompany(ctx, companyID); errors.Is(getErr, storage.ErrNotFound) {
			return ErrNotFound
		}

		e.events.CapacityDenied(companyID, string(kind), limit)
		e.logEvent(ctx, &models.EventLog{
			CompanyID:   &companyID,
			Type:        models.EventTypeCapacityDenied,
			Level:       models.EventLevelWarning,
			Description: "capacity limit reached",
			Details: models.Variables{
				"resource": string(kind),
				"delta":    delta,
				"limit":    limit,
			},
		})
		return ErrCapacityExceeded
	}
	if err != nil {
		return wrapStoreErr("reserve capacity", err)
	}

	return nil
}

// ReleaseCapacity returns delta units of a counted resource
func (e *Engine) ReleaseCapacity(ctx context.Context, companyID uuid.UUID, kind models.ResourceKind, delta int) error {
	if !kind.Valid() || delta <= 0 {
		return nil
	}
	return wrapStoreErr("release capacity", e.store.DecrementCompanyCounter(ctx, companyID, kind, delta))
}

// liveLimit resolves the current effective limit for one resource kind,
// company-level only (no role involved in numeric limits)
func (e *Engine) liveLimit(ctx context.Context, companyID uuid.UUID, kind models.ResourceKind) (int, error) {
	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return 0, wrapStoreErr("resolve limit", err)
	}
	defer tx.Rollback()

	company, err := tx.GetCompany(ctx, companyID)
	if err != nil {
		return 0, wrapStoreErr("resolve limit", err)
	}

	limits, _, err := e.companyEntitlement(ctx, tx, company)
	if err != nil {
		return 0, err
	}

	return limits.ForResource(kind), nil
}

// AddVehicle registers a vehicle under the capacity guard. The reservation
// and the insert run in one transaction so a failed insert releases the slot.
func (e *Engine) AddVehicle(ctx context.Context, v *models.Vehicle) error {
	limit, err := e.liveLimit(ctx, v.CompanyID, models.ResourceVehicles)
	if err != nil {
		return err
	}

	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return wrapStoreErr("add vehicle", err)
	}
	defer tx.Rollback()

	if err := tx.IncrementCompanyCounterIf(ctx, v.CompanyID, models.ResourceVehicles, 1, limit); err != nil {
		if errors.Is(err, storage.ErrLimitReached) {
			e.events.CapacityDenied(v.CompanyID, string(models.ResourceVehicles), limit)
			e.logEvent(ctx, &models.EventLog{
				CompanyID:   &v.CompanyID,
				Type:        models.EventTypeCapacityDenied,
				Level:       models.EventLevelWarning,
				Description: "vehicle limit reached",
				Details:     models.Variables{"limit": limit},
			})
			return ErrCapacityExceeded
		}
		return wrapStoreErr("add vehicle", err)
	}

	if err := tx.CreateVehicle(ctx, v); err != nil {
		return wrapStoreErr("add vehicle", err)
	}

	return wrapStoreErr("add vehicle", tx.Commit())
}

// RemoveVehicle deletes a vehicle, releases its capacity slot and eagerly
// prunes it from every user's assigned scope, all in one transaction, so
// stale ids never accumulate.
func (e *Engine) RemoveVehicle(ctx context.Context, vehicleID uuid.UUID) error {
	vehicle, err := e.store.GetVehicle(ctx, vehicleID)
	if err != nil {
		return wrapStoreErr("remove vehicle", err)
	}

	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return wrapStoreErr("remove vehicle", err)
	}
	defer tx.Rollback()

	if err := tx.DeleteVehicle(ctx, vehicleID); err != nil {
		return wrapStoreErr("remove vehicle", err)
	}
	if err := tx.DecrementCompanyCounter(ctx, vehicle.CompanyID, models.ResourceVehicles, 1); err != nil {
		return wrapStoreErr("remove vehicle", err)
	}
	if err := tx.PruneVehicleFromUsers(ctx, vehicle.CompanyID, vehicleID); err != nil {
		return wrapStoreErr("remove vehicle", err)
	}

	return wrapStoreErr("remove vehicle", tx.Commit())
}

// AddUser creates a user under the capacity guard. The assigned vehicle
// scope must be a subset of the company's current vehicles.
func (e *Engine) AddUser(ctx context.Context, user *models.User) error {
	if user.RoleID != nil {
		role, err := e.store.GetRole(ctx, *user.RoleID)
		if err != nil {
			return wrapStoreErr("add user role", err)
		}
		if role.CompanyID != nil && *role.CompanyID != user.CompanyID {
			return ErrNotFound
		}
	}

	if err := e.validateVehicleScope(ctx, user.CompanyID, user.AssignedVehicleIDs); err != nil {
		return err
	}

	limit, err := e.liveLimit(ctx, user.CompanyID, models.ResourceUsers)
	if err != nil {
		return err
	}

	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return wrapStoreErr("add user", err)
	}
	defer tx.Rollback()

	if err := tx.IncrementCompanyCounterIf(ctx, user.CompanyID, models.ResourceUsers, 1, limit); err != nil {
		if errors.Is(err, storage.ErrLimitReached) {
			e.events.CapacityDenied(user.CompanyID, string(models.ResourceUsers), limit)
			return ErrCapacityExceeded
		}
		return wrapStoreErr("add user", err)
	}

	if err := tx.CreateUser(ctx, user); err != nil {
		return wrapStoreErr("add user", err)
	}

	if user.RoleID != nil {
		if err := tx.AdjustRoleUsersCount(ctx, *user.RoleID, 1); err != nil {
			return wrapStoreErr("add user", err)
		}
	}

	return wrapStoreErr("add user", tx.Commit())
}

// RemoveUser deletes a user and releases the slot
func (e *Engine) RemoveUser(ctx context.Context, userID uuid.UUID) error {
	user, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return wrapStoreErr("remove user", err)
	}

	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return wrapStoreErr("remove user", err)
	}
	defer tx.Rollback()

	if err := tx.DeleteUser(ctx, userID); err != nil {
		return wrapStoreErr("remove user", err)
	}
	if err := tx.DecrementCompanyCounter(ctx, user.CompanyID, models.ResourceUsers, 1); err != nil {
		return wrapStoreErr("remove user", err)
	}
	if user.RoleID != nil {
		if err := tx.AdjustRoleUsersCount(ctx, *user.RoleID, -1); err != nil {
			return wrapStoreErr("remove user", err)
		}
	}

	return wrapStoreErr("remove user", tx.Commit())
}

// AssignUserRole changes a user's explicit role, keeping role user counts in step
func (e *Engine) AssignUserRole(ctx context.Context, userID uuid.UUID, roleID *uuid.UUID) error {
	user, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return wrapStoreErr("assign role", err)
	}

	if roleID != nil {
		role, err := e.store.GetRole(ctx, *roleID)
		if err != nil {
			return wrapStoreErr("assign role", err)
		}
		if role.CompanyID != nil && *role.CompanyID != user.CompanyID {
			return ErrNotFound
		}
	}

	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return wrapStoreErr("assign role", err)
	}
	defer tx.Rollback()

	if user.RoleID != nil {
		if err := tx.AdjustRoleUsersCount(ctx, *user.RoleID, -1); err != nil {
			return wrapStoreErr("assign role", err)
		}
	}
	user.RoleID = roleID
	if err := tx.UpdateUser(ctx, user); err != nil {
		return wrapStoreErr("assign role", err)
	}
	if roleID != nil {
		if err := tx.AdjustRoleUsersCount(ctx, *roleID, 1); err != nil {
			return wrapStoreErr("assign role", err)
		}
	}

	return wrapStoreErr("assign role", tx.Commit())
}

// AssignVehicleScope replaces a user's assigned vehicle set after validating
// it against the company's current vehicles
func (e *Engine) AssignVehicleScope(ctx context.Context, userID uuid.UUID, vehicleIDs models.UUIDList) error {
	user, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return wrapStoreErr("assign scope", err)
	}

	if err := e.validateVehicleScope(ctx, user.CompanyID, vehicleIDs); err != nil {
		return err
	}

	user.AssignedVehicleIDs = vehicleIDs
	return wrapStoreErr("assign scope", e.store.UpdateUser(ctx, user))
}

func (e *Engine) validateVehicleScope(ctx context.Context, companyID uuid.UUID, vehicleIDs models.UUIDList) error {
	if len(vehicleIDs) == 0 {
		return nil
	}

	current, err := e.store.ListVehicleIDs(ctx, companyID)
	if err != nil {
		return wrapStoreErr("validate scope", err)
	}

	live := make(map[uuid.UUID]struct{}, len(current))
	for _, id := range current {
		live[id] = struct{}{}
	}
	for _, id := range vehicleIDs {
		if _, ok := live[id]; !ok {
			log.Debug().Str("vehicle_id", id.String()).Msg("Scope references unknown vehicle")
			return ErrNotFound
		}
	}
	return nil
}

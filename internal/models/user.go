package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a company user
type User struct {
	BaseModel

	CompanyID uuid.UUID `json:"companyId" db:"company_id"`

	Email     string `json:"email" db:"email"`
	FirstName string `json:"firstName" db:"first_name"`
	LastName  string `json:"lastName" db:"last_name"`

	PasswordHash string `json:"-" db:"password_hash"`

	// RoleID nil falls back to the company's default role at resolve time
	RoleID *uuid.UUID `json:"roleId,omitempty" db:"role_id"`

	// AssignedVehicleIDs are weak references into the company vehicle set.
	// They are pruned on vehicle deletion and intersected with the live set
	// at resolve time, never trusted as valid on their own.
	AssignedVehicleIDs UUIDList `json:"assignedVehicleIds" db:"assigned_vehicle_ids"`

	IsActive    bool       `json:"isActive" db:"is_active"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty" db:"last_login_at"`
}

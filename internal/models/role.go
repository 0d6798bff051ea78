package models

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/google/uuid"
)

// RoleType classifies roles
type RoleType string

const (
	RoleTypeSystemAdmin  RoleType = "system_admin"
	RoleTypeCompanyAdmin RoleType = "company_admin"
	RoleTypeEmployee     RoleType = "employee"
	RoleTypeCustom       RoleType = "custom"
)

// Valid reports whether the role type is known
func (t RoleType) Valid() bool {
	switch t {
	case RoleTypeSystemAdmin, RoleTypeCompanyAdmin, RoleTypeEmployee, RoleTypeCustom:
		return true
	}
	return false
}

// PermissionSet is either the wildcard, granting every current and future
// page/feature key, or an explicit grant map where absent keys are denied.
type PermissionSet struct {
	All    bool            `json:"all,omitempty"`
	Grants map[string]bool `json:"grants,omitempty"`
}

// Wildcard returns the permission set granting everything
func Wildcard() PermissionSet {
	return PermissionSet{All: true}
}

// Explicit returns a permission set granting exactly the given keys
func Explicit(keys ...string) PermissionSet {
	grants := make(map[string]bool, len(keys))
	for _, k := range keys {
		grants[k] = true
	}
	return PermissionSet{Grants: grants}
}

// Allows reports whether the set grants the given key
func (p PermissionSet) Allows(key string) bool {
	if p.All {
		return true
	}
	return p.Grants[key]
}

// Value implements driver.Valuer interface
func (p PermissionSet) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements sql.Scanner interface
func (p *PermissionSet) Scan(value interface{}) error {
	if value == nil {
		*p = PermissionSet{}
		return nil
	}

	switch data := value.(type) {
	case []byte:
		return json.Unmarshal(data, p)
	case string:
		return json.Unmarshal([]byte(data), p)
	default:
		return json.Unmarshal([]byte(data.(string)), p)
	}
}

// Role represents a named permission set. CompanyID is nil for system roles,
// which are seeded once and never edited or deleted.
type Role struct {
	BaseModel

	CompanyID *uuid.UUID `json:"companyId,omitempty" db:"company_id"`

	Name        string   `json:"name" db:"name"`
	Description string   `json:"description" db:"description"`
	Type        RoleType `json:"type" db:"type"`

	IsSystem  bool `json:"isSystem" db:"is_system"`
	IsDefault bool `json:"isDefault" db:"is_default"`

	Permissions PermissionSet `json:"permissions" db:"permissions"`

	UsersCount int `json:"usersCount" db:"users_count"`
}

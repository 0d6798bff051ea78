package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/fleet-server/fleet-server-pro/internal/models"
)

// Common errors
var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrInvalidData  = errors.New("invalid data")

	// ErrLimitReached is returned by conditional increments whose guard
	// failed: the counter is already at its limit.
	ErrLimitReached = errors.New("limit reached")

	// ErrConflict is returned when a version-guarded update lost against a
	// concurrent writer.
	ErrConflict = errors.New("conflict")
)

// Store defines the storage interface
type Store interface {
	// Transaction support
	BeginTx(ctx context.Context) (Store, error)
	Commit() error
	Rollback() error

	// Subscription type methods
	CreateSubscriptionType(ctx context.Context, st *models.SubscriptionType) error
	GetSubscriptionType(ctx context.Context, id uuid.UUID) (*models.SubscriptionType, error)
	UpdateSubscriptionType(ctx context.Context, st *models.SubscriptionType) error
	ListSubscriptionTypes(ctx context.Context, activeOnly bool, limit, offset int) ([]*models.SubscriptionType, int64, error)

	// Campaign methods
	CreateCampaign(ctx context.Context, c *models.Campaign) error
	GetCampaign(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	UpdateCampaign(ctx context.Context, c *models.Campaign) error
	ListCampaigns(ctx context.Context, limit, offset int) ([]*models.Campaign, int64, error)

	// IncrementCampaignEnrollment atomically increments the enrollment
	// counter if the campaign is active and below capacity. Returns
	// ErrLimitReached when the guard fails.
	IncrementCampaignEnrollment(ctx context.Context, id uuid.UUID) error
	DecrementCampaignEnrollment(ctx context.Context, id uuid.UUID) error

	// Company methods
	CreateCompany(ctx context.Context, c *models.Company) error
	GetCompany(ctx context.Context, id uuid.UUID) (*models.Company, error)
	UpdateCompany(ctx context.Context, c *models.Company) error
	ListCompanies(ctx context.Context, limit, offset int) ([]*models.Company, int64, error)

	// ClaimCompanyCampaign records the enrollment only if the company has no
	// campaign yet; the guard lives in the statement so concurrent enrolls of
	// the same company cannot both pass. Returns ErrConflict when a campaign
	// is already set, ErrNotFound when the company does not exist.
	ClaimCompanyCampaign(ctx context.Context, companyID, campaignID uuid.UUID) error

	// ClearCompanyCampaign clears the enrollment only if the company still
	// holds campaignID. Returns ErrNotFound otherwise, so of two concurrent
	// unenrolls exactly one proceeds to the counter decrement.
	ClearCompanyCampaign(ctx context.Context, companyID, campaignID uuid.UUID) error

	// IncrementCompanyCounterIf atomically adds delta to the company counter
	// of the given kind only if the result stays within limit. Returns
	// ErrLimitReached when the guard fails.
	IncrementCompanyCounterIf(ctx context.Context, companyID uuid.UUID, kind models.ResourceKind, delta, limit int) error
	DecrementCompanyCounter(ctx context.Context, companyID uuid.UUID, kind models.ResourceKind, delta int) error

	// Role methods
	CreateRole(ctx context.Context, role *models.Role) error
	GetRole(ctx context.Context, id uuid.UUID) (*models.Role, error)
	UpdateRole(ctx context.Context, role *models.Role) error
	DeleteRole(ctx context.Context, id uuid.UUID) error
	ListRoles(ctx context.Context, companyID *uuid.UUID) ([]*models.Role, error)
	GetDefaultRole(ctx context.Context, companyID uuid.UUID) (*models.Role, error)
	GetSystemRoleByType(ctx context.Context, roleType models.RoleType) (*models.Role, error)

	// SetDefaultRole clears the default flag on every role of the company
	// and sets it on roleID, guarded by the company version. Returns
	// ErrConflict when expectedVersion is stale.
	SetDefaultRole(ctx context.Context, companyID, roleID uuid.UUID, expectedVersion int64) error

	// User methods
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
	ListUsers(ctx context.Context, companyID uuid.UUID, limit, offset int) ([]*models.User, int64, error)
	AdjustRoleUsersCount(ctx context.Context, roleID uuid.UUID, delta int) error

	// PruneVehicleFromUsers removes the vehicle id from the assigned set of
	// every user of the company.
	PruneVehicleFromUsers(ctx context.Context, companyID, vehicleID uuid.UUID) error

	// Vehicle methods
	CreateVehicle(ctx context.Context, v *models.Vehicle) error
	GetVehicle(ctx context.Context, id uuid.UUID) (*models.Vehicle, error)
	DeleteVehicle(ctx context.Context, id uuid.UUID) error
	ListVehicles(ctx context.Context, companyID uuid.UUID, limit, offset int) ([]*models.Vehicle, int64, error)
	ListVehicleIDs(ctx context.Context, companyID uuid.UUID) ([]uuid.UUID, error)

	// Event log methods
	CreateEventLog(ctx context.Context, event *models.EventLog) error
	ListEventLogs(ctx context.Context, filters EventLogFilters, limit, offset int) ([]*models.EventLog, int64, error)

	// Close the store
	Close() error
}

// EventLogFilters represents filters for event logs
type EventLogFilters struct {
	CompanyID  *uuid.UUID
	CampaignID *uuid.UUID
	Type       *models.EventType
	Level      *models.EventLevel
	StartTime  *time.Time
	EndTime    *time.Time
}

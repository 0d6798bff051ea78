package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fleet-server/fleet-server-pro/internal/models"
)

// counterColumns maps resource kinds to company counter columns. Kinds are
// validated before use; this never sees caller-supplied strings directly.
var counterColumns = map[models.ResourceKind]string{
	models.ResourceVehicles:   "current_vehicles",
	models.ResourceUsers:      "current_users",
	models.ResourceGPSDevices: "current_gps_devices",
	models.ResourceGeofences:  "current_geofences",
}

// ========== Company methods ==========

// CreateCompany creates a new company
func (s *PostgresStore) CreateCompany(ctx context.Context, c *models.Company) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = models.CompanyStatusActive
	}

	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	c.Version = 1

	query := `
		INSERT INTO companies (
			id, created_at, updated_at, name, subscription_type_id, campaign_id,
			current_vehicles, current_users, current_gps_devices, current_geofences,
			status, version
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)`

	_, err := s.getDB().ExecContext(ctx, query,
		c.ID, c.CreatedAt, c.UpdatedAt, c.Name, c.SubscriptionTypeID, c.CampaignID,
		c.CurrentVehicles, c.CurrentUsers, c.CurrentGPSDevices, c.CurrentGeofences,
		c.Status, c.Version,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetCompany gets a company by ID
func (s *PostgresStore) GetCompany(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	query := `
		SELECT id, created_at, updated_at, name, subscription_type_id, campaign_id,
		       current_vehicles, current_users, current_gps_devices, current_geofences,
		       status, version
		FROM companies
		WHERE id = $1`

	c := &models.Company{}
	err := s.getDB().QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.CreatedAt, &c.UpdatedAt, &c.Name, &c.SubscriptionTypeID, &c.CampaignID,
		&c.CurrentVehicles, &c.CurrentUsers, &c.CurrentGPSDevices, &c.CurrentGeofences,
		&c.Status, &c.Version,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return c, err
}

// UpdateCompany updates a company. Counters and the enrolled campaign are
// excluded: those move only through their dedicated conditional operations.
func (s *PostgresStore) UpdateCompany(ctx context.Context, c *models.Company) error {
	c.UpdatedAt = time.Now()

	query := `
		UPDATE companies SET
			updated_at = $2, name = $3, subscription_type_id = $4, status = $5
		WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query,
		c.ID, c.UpdatedAt, c.Name, c.SubscriptionTypeID, c.Status,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// ListCompanies lists companies
func (s *PostgresStore) ListCompanies(ctx context.Context, limit, offset int) ([]*models.Company, int64, error) {
	var total int64
	if err := s.getDB().QueryRowContext(ctx, "SELECT COUNT(*) FROM companies").Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, created_at, updated_at, name, subscription_type_id, campaign_id,
		       current_vehicles, current_users, current_gps_devices, current_geofences,
		       status, version
		FROM companies
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := s.getDB().QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var companies []*models.Company
	for rows.Next() {
		c := &models.Company{}
		err := rows.Scan(
			&c.ID, &c.CreatedAt, &c.UpdatedAt, &c.Name, &c.SubscriptionTypeID, &c.CampaignID,
			&c.CurrentVehicles, &c.CurrentUsers, &c.CurrentGPSDevices, &c.CurrentGeofences,
			&c.Status, &c.Version,
		)
		if err != nil {
			return nil, 0, err
		}
		companies = append(companies, c)
	}

	return companies, total, rows.Err()
}

// ClaimCompanyCampaign records the enrolled campaign. The IS NULL guard is
// part of the statement, so two enrolls racing for the same company cannot
// both claim it.
func (s *PostgresStore) ClaimCompanyCampaign(ctx context.Context, companyID, campaignID uuid.UUID) error {
	query := `
		UPDATE companies SET
			campaign_id = $2,
			updated_at = $3
		WHERE id = $1 AND campaign_id IS NULL`

	result, err := s.getDB().ExecContext(ctx, query, companyID, campaignID, time.Now())
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		// Distinguish a missing company from an already-set campaign
		var exists bool
		err := s.getDB().QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM companies WHERE id = $1)`, companyID).Scan(&exists)
		if err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrConflict
	}

	return nil
}

// ClearCompanyCampaign clears the enrolled campaign only if it still matches
func (s *PostgresStore) ClearCompanyCampaign(ctx context.Context, companyID, campaignID uuid.UUID) error {
	query := `
		UPDATE companies SET
			campaign_id = NULL,
			updated_at = $3
		WHERE id = $1 AND campaign_id = $2`

	result, err := s.getDB().ExecContext(ctx, query, companyID, campaignID, time.Now())
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// IncrementCompanyCounterIf performs the atomic increment-if-below-limit on a
// company resource counter. The limit lives in the WHERE clause so the check
// and the write are one statement.
func (s *PostgresStore) IncrementCompanyCounterIf(ctx context.Context, companyID uuid.UUID, kind models.ResourceKind, delta, limit int) error {
	col, ok := counterColumns[kind]
	if !ok {
		return ErrInvalidData
	}

	query := fmt.Sprintf(`
		UPDATE companies SET
			%s = %s + $2,
			updated_at = $4
		WHERE id = $1 AND %s + $2 <= $3`, col, col, col)

	result, err := s.getDB().ExecContext(ctx, query, companyID, delta, limit, time.Now())
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrLimitReached
	}

	return nil
}

// DecrementCompanyCounter decrements a company resource counter, floored at zero
func (s *PostgresStore) DecrementCompanyCounter(ctx context.Context, companyID uuid.UUID, kind models.ResourceKind, delta int) error {
	col, ok := counterColumns[kind]
	if !ok {
		return ErrInvalidData
	}

	query := fmt.Sprintf(`
		UPDATE companies SET
			%s = GREATEST(%s - $2, 0),
			updated_at = $3
		WHERE id = $1`, col, col)

	result, err := s.getDB().ExecContext(ctx, query, companyID, delta, time.Now())
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

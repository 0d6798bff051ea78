package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fleet-server/fleet-server-pro/internal/models"
)

// ========== Vehicle methods ==========

// CreateVehicle creates a new vehicle
func (s *PostgresStore) CreateVehicle(ctx context.Context, v *models.Vehicle) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.Status == "" {
		v.Status = "active"
	}

	now := time.Now()
	v.CreatedAt = now
	v.UpdatedAt = now

	query := `
		INSERT INTO vehicles (
			id, created_at, updated_at, company_id, plate_number, make,
			model, year, has_gps_device, status, last_seen_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)`

	_, err := s.getDB().ExecContext(ctx, query,
		v.ID, v.CreatedAt, v.UpdatedAt, v.CompanyID, v.PlateNumber, v.Make,
		v.Model, v.Year, v.HasGPSDevice, v.Status, v.LastSeenAt,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetVehicle gets a vehicle by ID
func (s *PostgresStore) GetVehicle(ctx context.Context, id uuid.UUID) (*models.Vehicle, error) {
	query := `
		SELECT id, created_at, updated_at, company_id, plate_number, make,
		       model, year, has_gps_device, status, last_seen_at
		FROM vehicles
		WHERE id = $1`

	v := &models.Vehicle{}
	err := s.getDB().QueryRowContext(ctx, query, id).Scan(
		&v.ID, &v.CreatedAt, &v.UpdatedAt, &v.CompanyID, &v.PlateNumber, &v.Make,
		&v.Model, &v.Year, &v.HasGPSDevice, &v.Status, &v.LastSeenAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return v, err
}

// DeleteVehicle deletes a vehicle
func (s *PostgresStore) DeleteVehicle(ctx context.Context, id uuid.UUID) error {
	result, err := s.getDB().ExecContext(ctx, "DELETE FROM vehicles WHERE id = $1", id)
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

// ListVehicles lists vehicles of a company
func (s *PostgresStore) ListVehicles(ctx context.Context, companyID uuid.UUID, limit, offset int) ([]*models.Vehicle, int64, error) {
	var total int64
	if err := s.getDB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM vehicles WHERE company_id = $1", companyID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, created_at, updated_at, company_id, plate_number, make,
		       model, year, has_gps_device, status, last_seen_at
		FROM vehicles
		WHERE company_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := s.getDB().QueryContext(ctx, query, companyID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var vehicles []*models.Vehicle
	for rows.Next() {
		v := &models.Vehicle{}
		err := rows.Scan(
			&v.ID, &v.CreatedAt, &v.UpdatedAt, &v.CompanyID, &v.PlateNumber, &v.Make,
			&v.Model, &v.Year, &v.HasGPSDevice, &v.Status, &v.LastSeenAt,
		)
		if err != nil {
			return nil, 0, err
		}
		vehicles = append(vehicles, v)
	}

	return vehicles, total, rows.Err()
}

// ListVehicleIDs lists just the vehicle ids of a company, for scope intersection
func (s *PostgresStore) ListVehicleIDs(ctx context.Context, companyID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.getDB().QueryContext(ctx,
		"SELECT id FROM vehicles WHERE company_id = $1", companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

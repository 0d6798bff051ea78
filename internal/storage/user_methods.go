package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fleet-server/fleet-server-pro/internal/models"
)

// ========== User methods ==========

const userColumns = `id, created_at, updated_at, company_id, email, first_name,
       last_name, password_hash, role_id, assigned_vehicle_ids, is_active, last_login_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID, &user.CreatedAt, &user.UpdatedAt, &user.CompanyID, &user.Email,
		&user.FirstName, &user.LastName, &user.PasswordHash, &user.RoleID,
		&user.AssignedVehicleIDs, &user.IsActive, &user.LastLoginAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return user, err
}

// CreateUser creates a new user
func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `
		INSERT INTO users (
			id, created_at, updated_at, company_id, email, first_name,
			last_name, password_hash, role_id, assigned_vehicle_ids,
			is_active, last_login_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)`

	_, err := s.getDB().ExecContext(ctx, query,
		user.ID, user.CreatedAt, user.UpdatedAt, user.CompanyID, user.Email,
		user.FirstName, user.LastName, user.PasswordHash, user.RoleID,
		user.AssignedVehicleIDs, user.IsActive, user.LastLoginAt,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetUser gets a user by ID
func (s *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(s.getDB().QueryRowContext(ctx, query, id))
}

// GetUserByEmail gets a user by email
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(s.getDB().QueryRowContext(ctx, query, email))
}

// UpdateUser updates a user
func (s *PostgresStore) UpdateUser(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now()

	query := `
		UPDATE users SET
			updated_at = $2, email = $3, first_name = $4, last_name = $5,
			role_id = $6, assigned_vehicle_ids = $7, is_active = $8,
			last_login_at = $9
		WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query,
		user.ID, user.UpdatedAt, user.Email, user.FirstName, user.LastName,
		user.RoleID, user.AssignedVehicleIDs, user.IsActive, user.LastLoginAt,
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

// DeleteUser deletes a user
func (s *PostgresStore) DeleteUser(ctx context.Context, id uuid.UUID) error {
	result, err := s.getDB().ExecContext(ctx, "DELETE FROM users WHERE id = $1", id)
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

// ListUsers lists users of a company
func (s *PostgresStore) ListUsers(ctx context.Context, companyID uuid.UUID, limit, offset int) ([]*models.User, int64, error) {
	var total int64
	if err := s.getDB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE company_id = $1", companyID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + userColumns + `
		FROM users
		WHERE company_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := s.getDB().QueryContext(ctx, query, companyID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}

	return users, total, rows.Err()
}

// PruneVehicleFromUsers removes the vehicle from every user's assigned set.
// The JSON array rewrite happens in SQL so the prune rides inside the same
// transaction that deletes the vehicle.
func (s *PostgresStore) PruneVehicleFromUsers(ctx context.Context, companyID, vehicleID uuid.UUID) error {
	query := `
		UPDATE users SET
			assigned_vehicle_ids = (
				SELECT COALESCE(jsonb_agg(elem), '[]'::jsonb)
				FROM jsonb_array_elements(assigned_vehicle_ids) AS elem
				WHERE elem != to_jsonb($2::text)
			),
			updated_at = $3
		WHERE company_id = $1
		  AND assigned_vehicle_ids @> to_jsonb(ARRAY[$2::text])`

	_, err := s.getDB().ExecContext(ctx, query, companyID, vehicleID.String(), time.Now())
	return err
}

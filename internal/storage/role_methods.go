package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fleet-server/fleet-server-pro/internal/models"
)

// ========== Role methods ==========

const roleColumns = `id, created_at, updated_at, company_id, name, description,
       type, is_system, is_default, permissions, users_count`

func scanRole(row interface{ Scan(...interface{}) error }) (*models.Role, error) {
	role := &models.Role{}
	err := row.Scan(
		&role.ID, &role.CreatedAt, &role.UpdatedAt, &role.CompanyID, &role.Name,
		&role.Description, &role.Type, &role.IsSystem, &role.IsDefault,
		&role.Permissions, &role.UsersCount,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return role, err
}

// CreateRole creates a new role
func (s *PostgresStore) CreateRole(ctx context.Context, role *models.Role) error {
	if role.ID == uuid.Nil {
		role.ID = uuid.New()
	}

	now := time.Now()
	role.CreatedAt = now
	role.UpdatedAt = now

	// The default flag only sticks when the company has no default yet. The
	// guard is inside the INSERT, so concurrent first-role creations cannot
	// both come out default.
	query := `
		INSERT INTO roles (
			id, created_at, updated_at, company_id, name, description,
			type, is_system, is_default, permissions, users_count
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8,
			$9 AND NOT EXISTS (SELECT 1 FROM roles r WHERE r.company_id = $4 AND r.is_default),
			$10, $11
		)
		RETURNING is_default`

	err := s.getDB().QueryRowContext(ctx, query,
		role.ID, role.CreatedAt, role.UpdatedAt, role.CompanyID, role.Name,
		role.Description, role.Type, role.IsSystem, role.IsDefault,
		role.Permissions, role.UsersCount,
	).Scan(&role.IsDefault)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetRole gets a role by ID
func (s *PostgresStore) GetRole(ctx context.Context, id uuid.UUID) (*models.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE id = $1`
	return scanRole(s.getDB().QueryRowContext(ctx, query, id))
}

// UpdateRole updates a role. The default flag and users count are excluded:
// the flag moves only through SetDefaultRole and the count through
// AdjustRoleUsersCount.
func (s *PostgresStore) UpdateRole(ctx context.Context, role *models.Role) error {
	role.UpdatedAt = time.Now()

	query := `
		UPDATE roles SET
			updated_at = $2, name = $3, description = $4, type = $5,
			permissions = $6
		WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query,
		role.ID, role.UpdatedAt, role.Name, role.Description, role.Type,
		role.Permissions,
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

// DeleteRole deletes a role
func (s *PostgresStore) DeleteRole(ctx context.Context, id uuid.UUID) error {
	result, err := s.getDB().ExecContext(ctx, "DELETE FROM roles WHERE id = $1", id)
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

// ListRoles lists roles. A nil companyID returns system roles.
func (s *PostgresStore) ListRoles(ctx context.Context, companyID *uuid.UUID) ([]*models.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE company_id IS NULL ORDER BY created_at`
	args := []interface{}{}
	if companyID != nil {
		query = `SELECT ` + roleColumns + ` FROM roles WHERE company_id = $1 ORDER BY created_at`
		args = append(args, *companyID)
	}

	rows, err := s.getDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []*models.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}

	return roles, rows.Err()
}

// GetDefaultRole gets the company's default role
func (s *PostgresStore) GetDefaultRole(ctx context.Context, companyID uuid.UUID) (*models.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE company_id = $1 AND is_default`
	return scanRole(s.getDB().QueryRowContext(ctx, query, companyID))
}

// GetSystemRoleByType gets a seeded system role by role type
func (s *PostgresStore) GetSystemRoleByType(ctx context.Context, roleType models.RoleType) (*models.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE company_id IS NULL AND is_system AND type = $1`
	return scanRole(s.getDB().QueryRowContext(ctx, query, roleType))
}

// SetDefaultRole flips the single default role of a company in one
// transaction. The company version acts as the compare-and-swap guard: a
// stale expectedVersion means another flip won the race.
func (s *PostgresStore) SetDefaultRole(ctx context.Context, companyID, roleID uuid.UUID, expectedVersion int64) error {
	txStore, err := s.BeginTx(ctx)
	if err != nil {
		return err
	}
	tx := txStore.(*PostgresStore)
	defer tx.Rollback()

	result, err := tx.getDB().ExecContext(ctx,
		`UPDATE companies SET version = version + 1, updated_at = $3 WHERE id = $1 AND version = $2`,
		companyID, expectedVersion, time.Now())
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		// Distinguish a missing company from a lost race
		var exists bool
		err := tx.getDB().QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM companies WHERE id = $1)`, companyID).Scan(&exists)
		if err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrConflict
	}

	if _, err := tx.getDB().ExecContext(ctx,
		`UPDATE roles SET is_default = false, updated_at = $2 WHERE company_id = $1 AND is_default`,
		companyID, time.Now()); err != nil {
		return err
	}

	result, err = tx.getDB().ExecContext(ctx,
		`UPDATE roles SET is_default = true, updated_at = $3 WHERE id = $1 AND company_id = $2`,
		roleID, companyID, time.Now())
	if err != nil {
		return err
	}
	rows, err = result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

// AdjustRoleUsersCount adjusts the denormalized users count on a role
func (s *PostgresStore) AdjustRoleUsersCount(ctx context.Context, roleID uuid.UUID, delta int) error {
	query := `
		UPDATE roles SET
			users_count = GREATEST(users_count + $2, 0),
			updated_at = $3
		WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query, roleID, delta, time.Now())
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

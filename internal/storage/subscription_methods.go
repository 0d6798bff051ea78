package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fleet-server/fleet-server-pro/internal/models"
)

// ========== Subscription type methods ==========

// CreateSubscriptionType creates a new subscription type
func (s *PostgresStore) CreateSubscriptionType(ctx context.Context, st *models.SubscriptionType) error {
	if st.ID == uuid.Nil {
		st.ID = uuid.New()
	}

	now := time.Now()
	st.CreatedAt = now
	st.UpdatedAt = now

	query := `
		INSERT INTO subscription_types (
			id, created_at, updated_at, name, description, limits, features, is_active
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)`

	_, err := s.getDB().ExecContext(ctx, query,
		st.ID, st.CreatedAt, st.UpdatedAt, st.Name, st.Description,
		st.Limits, st.Features, st.IsActive,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetSubscriptionType gets a subscription type by ID
func (s *PostgresStore) GetSubscriptionType(ctx context.Context, id uuid.UUID) (*models.SubscriptionType, error) {
	query := `
		SELECT id, created_at, updated_at, name, description, limits, features, is_active
		FROM subscription_types
		WHERE id = $1`

	st := &models.SubscriptionType{}
	err := s.getDB().QueryRowContext(ctx, query, id).Scan(
		&st.ID, &st.CreatedAt, &st.UpdatedAt, &st.Name, &st.Description,
		&st.Limits, &st.Features, &st.IsActive,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return st, err
}

// UpdateSubscriptionType updates a subscription type
func (s *PostgresStore) UpdateSubscriptionType(ctx context.Context, st *models.SubscriptionType) error {
	st.UpdatedAt = time.Now()

	query := `
		UPDATE subscription_types SET
			updated_at = $2, name = $3, description = $4, limits = $5,
			features = $6, is_active = $7
		WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query,
		st.ID, st.UpdatedAt, st.Name, st.Description, st.Limits,
		st.Features, st.IsActive,
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

// ListSubscriptionTypes lists subscription types
func (s *PostgresStore) ListSubscriptionTypes(ctx context.Context, activeOnly bool, limit, offset int) ([]*models.SubscriptionType, int64, error) {
	where := ""
	if activeOnly {
		where = "WHERE is_active"
	}

	var total int64
	countQuery := "SELECT COUNT(*) FROM subscription_types " + where
	if err := s.getDB().QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, created_at, updated_at, name, description, limits, features, is_active
		FROM subscription_types ` + where + `
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := s.getDB().QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var types []*models.SubscriptionType
	for rows.Next() {
		st := &models.SubscriptionType{}
		err := rows.Scan(
			&st.ID, &st.CreatedAt, &st.UpdatedAt, &st.Name, &st.Description,
			&st.Limits, &st.Features, &st.IsActive,
		)
		if err != nil {
			return nil, 0, err
		}
		types = append(types, st)
	}

	return types, total, rows.Err()
}

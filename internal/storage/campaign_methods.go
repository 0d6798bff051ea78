package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fleet-server/fleet-server-pro/internal/models"
)

// ========== Campaign methods ==========

// CreateCampaign creates a new campaign
func (s *PostgresStore) CreateCampaign(ctx context.Context, c *models.Campaign) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = models.CampaignStatusDraft
	}

	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now

	query := `
		INSERT INTO campaigns (
			id, created_at, updated_at, name, description, status,
			start_date, end_date, discount_percentage, max_subscriptions,
			current_subscriptions, target_subscription_type_id, access_rights
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)`

	_, err := s.getDB().ExecContext(ctx, query,
		c.ID, c.CreatedAt, c.UpdatedAt, c.Name, c.Description, c.Status,
		c.StartDate, c.EndDate, c.DiscountPercentage, c.MaxSubscriptions,
		c.CurrentSubscriptions, c.TargetSubscriptionTypeID, c.AccessRights,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetCampaign gets a campaign by ID
func (s *PostgresStore) GetCampaign(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	query := `
		SELECT id, created_at, updated_at, name, description, status,
		       start_date, end_date, discount_percentage, max_subscriptions,
		       current_subscriptions, target_subscription_type_id, access_rights
		FROM campaigns
		WHERE id = $1`

	c := &models.Campaign{}
	err := s.getDB().QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.CreatedAt, &c.UpdatedAt, &c.Name, &c.Description, &c.Status,
		&c.StartDate, &c.EndDate, &c.DiscountPercentage, &c.MaxSubscriptions,
		&c.CurrentSubscriptions, &c.TargetSubscriptionTypeID, &c.AccessRights,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return c, err
}

// UpdateCampaign updates a campaign. The enrollment counter is excluded on
// purpose: it only moves through the conditional increment/decrement below.
func (s *PostgresStore) UpdateCampaign(ctx context.Context, c *models.Campaign) error {
	c.UpdatedAt = time.Now()

	query := `
		UPDATE campaigns SET
			updated_at = $2, name = $3, description = $4, status = $5,
			start_date = $6, end_date = $7, discount_percentage = $8,
			max_subscriptions = $9, target_subscription_type_id = $10,
			access_rights = $11
		WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query,
		c.ID, c.UpdatedAt, c.Name, c.Description, c.Status,
		c.StartDate, c.EndDate, c.DiscountPercentage,
		c.MaxSubscriptions, c.TargetSubscriptionTypeID, c.AccessRights,
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

// ListCampaigns lists campaigns
func (s *PostgresStore) ListCampaigns(ctx context.Context, limit, offset int) ([]*models.Campaign, int64, error) {
	var total int64
	if err := s.getDB().QueryRowContext(ctx, "SELECT COUNT(*) FROM campaigns").Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, created_at, updated_at, name, description, status,
		       start_date, end_date, discount_percentage, max_subscriptions,
		       current_subscriptions, target_subscription_type_id, access_rights
		FROM campaigns
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := s.getDB().QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var campaigns []*models.Campaign
	for rows.Next() {
		c := &models.Campaign{}
		err := rows.Scan(
			&c.ID, &c.CreatedAt, &c.UpdatedAt, &c.Name, &c.Description, &c.Status,
			&c.StartDate, &c.EndDate, &c.DiscountPercentage, &c.MaxSubscriptions,
			&c.CurrentSubscriptions, &c.TargetSubscriptionTypeID, &c.AccessRights,
		)
		if err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}

	return campaigns, total, rows.Err()
}

// IncrementCampaignEnrollment increments the enrollment counter with the
// capacity and status guard inside the UPDATE, so two racing enrollments for
// the last slot can never both pass.
func (s *PostgresStore) IncrementCampaignEnrollment(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE campaigns SET
			current_subscriptions = current_subscriptions + 1,
			updated_at = $2
		WHERE id = $1
		  AND status = 'active'
		  AND (max_subscriptions IS NULL OR current_subscriptions < max_subscriptions)`

	result, err := s.getDB().ExecContext(ctx, query, id, time.Now())
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

// DecrementCampaignEnrollment decrements the enrollment counter, floored at zero
func (s *PostgresStore) DecrementCampaignEnrollment(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE campaigns SET
			current_subscriptions = current_subscriptions - 1,
			updated_at = $2
		WHERE id = $1 AND current_subscriptions > 0`

	result, err := s.getDB().ExecContext(ctx, query, id, time.Now())
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

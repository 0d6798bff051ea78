package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fleet-server/fleet-server-pro/internal/models"
)

// ========== Event log methods ==========

// CreateEventLog creates an event log entry
func (s *PostgresStore) CreateEventLog(ctx context.Context, event *models.EventLog) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO event_logs (
			id, created_at, company_id, user_id, campaign_id,
			type, level, description, details
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)`

	_, err := s.getDB().ExecContext(ctx, query,
		event.ID, event.CreatedAt, event.CompanyID, event.UserID, event.CampaignID,
		event.Type, event.Level, event.Description, event.Details,
	)

	return err
}

// ListEventLogs lists event logs with filters
func (s *PostgresStore) ListEventLogs(ctx context.Context, filters EventLogFilters, limit, offset int) ([]*models.EventLog, int64, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	argn := 0

	addArg := func(clause string, v interface{}) {
		argn++
		where += fmt.Sprintf(" AND %s $%d", clause, argn)
		args = append(args, v)
	}

	if filters.CompanyID != nil {
		addArg("company_id =", *filters.CompanyID)
	}
	if filters.CampaignID != nil {
		addArg("campaign_id =", *filters.CampaignID)
	}
	if filters.Type != nil {
		addArg("type =", *filters.Type)
	}
	if filters.Level != nil {
		addArg("level =", *filters.Level)
	}
	if filters.StartTime != nil {
		addArg("created_at >=", *filters.StartTime)
	}
	if filters.EndTime != nil {
		addArg("created_at <=", *filters.EndTime)
	}

	var total int64
	countQuery := "SELECT COUNT(*) FROM event_logs " + where
	if err := s.getDB().QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT id, created_at, company_id, user_id, campaign_id,
		       type, level, description, details
		FROM event_logs %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, where, argn+1, argn+2)
	args = append(args, limit, offset)

	rows, err := s.getDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var events []*models.EventLog
	for rows.Next() {
		event := &models.EventLog{}
		err := rows.Scan(
			&event.ID, &event.CreatedAt, &event.CompanyID, &event.UserID,
			&event.CampaignID, &event.Type, &event.Level, &event.Description,
			&event.Details,
		)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, event)
	}

	return events, total, rows.Err()
}

package campaign

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PostgresStore persists campaigns with database/sql (pgx stdlib).
//
// Schema expectations:
//
//	campaigns(campaign_id PK, status, total_leads, completed_calls,
//	      successful_calls, max_concurrent_calls,
//	      delay_between_calls_seconds, created_at, updated_at)
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

func (s *PostgresStore) CreateCampaign(ctx context.Context, c Campaign) error {
	if c.CampaignID == "" || c.TotalLeads <= 0 {
		return ErrInvalidArgument
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO campaigns (
			campaign_id, status, total_leads, completed_calls, successful_calls,
			max_concurrent_calls, delay_between_calls_seconds, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		c.CampaignID, string(c.Status), c.TotalLeads, c.CompletedCalls, c.SuccessfulCalls,
		c.MaxConcurrentCalls, c.DelayBetweenCallsSeconds, c.CreatedAt, c.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) GetCampaign(ctx context.Context, campaignID string) (Campaign, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT campaign_id, status, total_leads, completed_calls, successful_calls,
		       max_concurrent_calls, delay_between_calls_seconds, created_at, updated_at
		FROM campaigns WHERE campaign_id = $1`, campaignID)
	return scanCampaign(row)
}

// RecordResult is a single guarded UPDATE so concurrent completion
// callbacks cannot lose increments. The WHERE clause enforces
// completed_calls < total_leads; the row that reaches total_leads is
// the only one for which completedNow is true.
func (s *PostgresStore) RecordResult(ctx context.Context, campaignID string, success bool, at time.Time) (Campaign, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE campaigns SET
			completed_calls = completed_calls + 1,
			successful_calls = successful_calls + CASE WHEN $2 THEN 1 ELSE 0 END,
			status = CASE WHEN completed_calls + 1 >= total_leads THEN 'completed' ELSE status END,
			updated_at = $3
		WHERE campaign_id = $1 AND completed_calls < total_leads
		RETURNING campaign_id, status, total_leads, completed_calls, successful_calls,
		          max_concurrent_calls, delay_between_calls_seconds, created_at, updated_at`,
		campaignID, success, at)

	c, err := scanCampaign(row)
	if errors.Is(err, ErrNotFound) {
		// Either the campaign does not exist or the counter is already
		// saturated; distinguish for the caller.
		if _, getErr := s.GetCampaign(ctx, campaignID); getErr != nil {
			return Campaign{}, false, getErr
		}
		return Campaign{}, false, ErrInvalidArgument
	}
	if err != nil {
		return Campaign{}, false, err
	}
	return c, c.CompletedCalls == c.TotalLeads, nil
}

type campaignScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row campaignScanner) (Campaign, error) {
	var c Campaign
	var status string
	err := row.Scan(
		&c.CampaignID, &status, &c.TotalLeads, &c.CompletedCalls, &c.SuccessfulCalls,
		&c.MaxConcurrentCalls, &c.DelayBetweenCallsSeconds, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Campaign{}, ErrNotFound
	}
	if err != nil {
		return Campaign{}, err
	}
	c.Status = CampaignStatus(status)
	return c, nil
}

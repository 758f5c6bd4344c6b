package calls

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"callpilot/pkg/utils"
)

// PostgresStore persists calls and interactions with database/sql (pgx stdlib).
//
// Schema expectations:
//
//	calls(call_id PK, lead_id, campaign_id, from_number, to_number, status,
//	      outcome, transport_session_id, scheduled_at, started_at, ended_at,
//	      duration_seconds, recording_url, recording_duration_seconds,
//	      created_at, updated_at)
//	interactions(id PK, call_id, speaker, content, sentiment, confidence,
//	      created_at) -- INSERT-only
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

func (s *PostgresStore) CreateCall(ctx context.Context, c Call) error {
	if c.CallID == "" {
		return ErrInvalidArgument
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calls (
			call_id, lead_id, campaign_id, from_number, to_number,
			status, outcome, transport_session_id,
			scheduled_at, started_at, ended_at, duration_seconds,
			recording_url, recording_duration_seconds, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		c.CallID, c.LeadID, c.CampaignID, c.From, c.To,
		string(c.Status), string(c.Outcome), c.TransportSessionID,
		nullTime(c.ScheduledAt), nullTime(c.StartedAt), nullTime(c.EndedAt), c.DurationSeconds,
		c.RecordingURL, c.RecordingDurationSeconds, c.CreatedAt, c.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) GetCall(ctx context.Context, callID string) (Call, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT call_id, lead_id, campaign_id, from_number, to_number,
		       status, outcome, transport_session_id,
		       scheduled_at, started_at, ended_at, duration_seconds,
		       recording_url, recording_duration_seconds, created_at, updated_at
		FROM calls WHERE call_id = $1`, callID)
	return scanCall(row)
}

func (s *PostgresStore) UpdateCall(ctx context.Context, c Call) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE calls SET
			status = $2, outcome = $3, transport_session_id = $4,
			started_at = $5, ended_at = $6, duration_seconds = $7,
			recording_url = $8, recording_duration_seconds = $9, updated_at = $10
		WHERE call_id = $1`,
		c.CallID, string(c.Status), string(c.Outcome), c.TransportSessionID,
		nullTime(c.StartedAt), nullTime(c.EndedAt), c.DurationSeconds,
		c.RecordingURL, c.RecordingDurationSeconds, c.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendInteraction inserts the turn and touches the parent call's
// updated_at in one transaction so transcript readers see a consistent
// ordering cursor.
func (s *PostgresStore) AppendInteraction(ctx context.Context, in Interaction) error {
	if in.CallID == "" || in.Speaker == "" {
		return ErrInvalidArgument
	}
	return utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO interactions (id, call_id, speaker, content, sentiment, confidence, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			in.ID, in.CallID, string(in.Speaker), in.Content, in.Sentiment, in.Confidence, in.Timestamp,
		); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE calls SET updated_at = $2 WHERE call_id = $1`, in.CallID, in.Timestamp)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *PostgresStore) ListInteractions(ctx context.Context, callID string) ([]Interaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, call_id, speaker, content, sentiment, confidence, created_at
		FROM interactions WHERE call_id = $1 ORDER BY created_at, id`, callID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Interaction
	for rows.Next() {
		var in Interaction
		var speaker string
		if err := rows.Scan(&in.ID, &in.CallID, &speaker, &in.Content, &in.Sentiment, &in.Confidence, &in.Timestamp); err != nil {
			return nil, err
		}
		in.Speaker = Speaker(speaker)
		out = append(out, in)
	}
	return out, rows.Err()
}

type callScanner interface {
	Scan(dest ...any) error
}

func scanCall(row callScanner) (Call, error) {
	var c Call
	var status, outcome string
	var scheduledAt, startedAt, endedAt sql.NullTime
	err := row.Scan(
		&c.CallID, &c.LeadID, &c.CampaignID, &c.From, &c.To,
		&status, &outcome, &c.TransportSessionID,
		&scheduledAt, &startedAt, &endedAt, &c.DurationSeconds,
		&c.RecordingURL, &c.RecordingDurationSeconds, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Call{}, ErrNotFound
	}
	if err != nil {
		return Call{}, err
	}
	c.Status = CallStatus(status)
	c.Outcome = CallOutcome(outcome)
	c.ScheduledAt = scheduledAt.Time
	c.StartedAt = startedAt.Time
	c.EndedAt = endedAt.Time
	return c, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

package leads

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresStore persists leads with database/sql (pgx stdlib).
//
// Schema expectations:
//
//	leads(lead_id PK, phone, name, company, notes, created_at)
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

func (s *PostgresStore) CreateLead(ctx context.Context, l Lead) error {
	if l.LeadID == "" || l.Phone == "" {
		return ErrInvalidArgument
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leads (lead_id, phone, name, company, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		l.LeadID, l.Phone, l.Name, l.Company, l.Notes, l.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetLead(ctx context.Context, leadID string) (Lead, error) {
	var l Lead
	err := s.db.QueryRowContext(ctx, `
		SELECT lead_id, phone, name, company, notes, created_at
		FROM leads WHERE lead_id = $1`, leadID).
		Scan(&l.LeadID, &l.Phone, &l.Name, &l.Company, &l.Notes, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	if err != nil {
		return Lead{}, err
	}
	return l, nil
}

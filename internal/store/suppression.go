package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/calebfife/tandem/internal/model"
)

type SuppressionStore struct {
	db *sql.DB
}

func NewSuppressionStore(db *sql.DB) *SuppressionStore {
	return &SuppressionStore{db: db}
}

func scanSuppression(scanner interface{ Scan(...any) error }) (*model.EmailSuppression, error) {
	var sup model.EmailSuppression
	var bouncedAt, complainedAt, optedOutAt sql.NullTime

	err := scanner.Scan(
		&sup.ID, &sup.Email, &sup.UnsubscribeToken,
		&bouncedAt, &complainedAt, &optedOutAt, &sup.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if bouncedAt.Valid {
		sup.BouncedAt = &bouncedAt.Time
	}
	if complainedAt.Valid {
		sup.ComplainedAt = &complainedAt.Time
	}
	if optedOutAt.Valid {
		sup.OptedOutAt = &optedOutAt.Time
	}
	return &sup, nil
}

const suppressionCols = `id, email, unsubscribe_token, bounced_at, complained_at, opted_out_at, created_at`

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Ensure returns the suppression row for an address, creating an empty one
// (with a fresh unsubscribe token) if it does not exist. The token is stable
// for the lifetime of the row.
func (s *SuppressionStore) Ensure(email string) (*model.EmailSuppression, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("empty email")
	}

	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO email_suppressions (email, unsubscribe_token) VALUES (?, ?)`,
		email, uuid.NewString(),
	)
	if err != nil {
		return nil, fmt.Errorf("ensure suppression row: %w", err)
	}
	return s.GetByEmail(email)
}

func (s *SuppressionStore) GetByEmail(email string) (*model.EmailSuppression, error) {
	row := s.db.QueryRow(
		`SELECT `+suppressionCols+` FROM email_suppressions WHERE email = ?`,
		normalizeEmail(email),
	)
	sup, err := scanSuppression(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get suppression by email: %w", err)
	}
	return sup, nil
}

func (s *SuppressionStore) GetByToken(token string) (*model.EmailSuppression, error) {
	row := s.db.QueryRow(
		`SELECT `+suppressionCols+` FROM email_suppressions WHERE unsubscribe_token = ?`,
		token,
	)
	sup, err := scanSuppression(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get suppression by token: %w", err)
	}
	return sup, nil
}

// MarkBounced sets the bounce timestamp for an address. The timestamp is
// written only once; a repeat bounce does not move it.
func (s *SuppressionStore) MarkBounced(email string, at time.Time) error {
	return s.mark(email, "bounced_at", at)
}

// MarkComplained sets the complaint timestamp for an address.
func (s *SuppressionStore) MarkComplained(email string, at time.Time) error {
	return s.mark(email, "complained_at", at)
}

func (s *SuppressionStore) mark(email, column string, at time.Time) error {
	sup, err := s.Ensure(email)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`UPDATE email_suppressions SET `+column+` = ? WHERE id = ? AND `+column+` IS NULL`,
		at.UTC(), sup.ID,
	)
	if err != nil {
		return fmt.Errorf("mark %s: %w", column, err)
	}
	return nil
}

// OptOut sets the opt-out timestamp for the row owning the token. Returns
// false if the row was already opted out; the stored timestamp is never
// overwritten.
func (s *SuppressionStore) OptOut(id int64, at time.Time) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE email_suppressions SET opted_out_at = ? WHERE id = ? AND opted_out_at IS NULL`,
		at.UTC(), id,
	)
	if err != nil {
		return false, fmt.Errorf("opt out: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

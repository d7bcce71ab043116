package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/calebfife/tandem/internal/model"
)

type ProposalStore struct {
	db *sql.DB
}

func NewProposalStore(db *sql.DB) *ProposalStore {
	return &ProposalStore{db: db}
}

func scanProposal(scanner interface{ Scan(...any) error }) (*model.SessionSettingsProposal, error) {
	var p model.SessionSettingsProposal
	var settingsJSON string
	var resolvedAt sql.NullTime

	err := scanner.Scan(&p.ID, &p.CoupleID, &p.ProposedBy, &settingsJSON, &p.Status, &p.CreatedAt, &resolvedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(settingsJSON), &p.Settings); err != nil {
		return nil, fmt.Errorf("decode proposal settings: %w", err)
	}
	if resolvedAt.Valid {
		p.ResolvedAt = &resolvedAt.Time
	}
	return &p, nil
}

const proposalCols = `id, couple_id, proposed_by, settings, status, created_at, resolved_at`

// CreatePending inserts a new pending proposal. The partial unique index on
// (couple_id) WHERE status='pending' guarantees at most one pending row per
// couple; a violation surfaces as an insert error.
func (s *ProposalStore) CreatePending(coupleID, proposedBy int64, patch model.SettingsPatch) (*model.SessionSettingsProposal, error) {
	settingsJSON, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("encode proposal settings: %w", err)
	}

	id := uuid.NewString()
	_, err = s.db.Exec(
		`INSERT INTO session_settings_proposals (id, couple_id, proposed_by, settings, status) VALUES (?, ?, ?, ?, ?)`,
		id, coupleID, proposedBy, string(settingsJSON), model.ProposalPending,
	)
	if err != nil {
		return nil, fmt.Errorf("insert proposal: %w", err)
	}
	return s.GetByID(id)
}

func (s *ProposalStore) GetByID(id string) (*model.SessionSettingsProposal, error) {
	row := s.db.QueryRow(`SELECT `+proposalCols+` FROM session_settings_proposals WHERE id = ?`, id)
	p, err := scanProposal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get proposal: %w", err)
	}
	return p, nil
}

// GetPending returns the couple's pending proposal, or nil if none exists.
func (s *ProposalStore) GetPending(coupleID int64) (*model.SessionSettingsProposal, error) {
	row := s.db.QueryRow(
		`SELECT `+proposalCols+` FROM session_settings_proposals WHERE couple_id = ? AND status = ?`,
		coupleID, model.ProposalPending,
	)
	p, err := scanProposal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pending proposal: %w", err)
	}
	return p, nil
}

// Resolve moves a pending proposal to a terminal status. It returns false if
// the proposal was not pending (already resolved or nonexistent), which makes
// resolution a one-way, race-safe transition.
func (s *ProposalStore) Resolve(id, status string) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE session_settings_proposals SET status = ?, resolved_at = ? WHERE id = ? AND status = ?`,
		status, time.Now().UTC(), id, model.ProposalPending,
	)
	if err != nil {
		return false, fmt.Errorf("resolve proposal: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

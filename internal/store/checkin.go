package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/calebfife/tandem/internal/model"
)

type CheckInStore struct {
	db *sql.DB
}

func NewCheckInStore(db *sql.DB) *CheckInStore {
	return &CheckInStore{db: db}
}

func scanCheckIn(scanner interface{ Scan(...any) error }) (*model.CheckIn, error) {
	var c model.CheckIn
	var private int

	err := scanner.Scan(
		&c.ID, &c.CoupleID, &c.PartnerID, &c.Mood, &c.Gratitude,
		&c.Note, &private, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Private = private != 0
	return &c, nil
}

const checkInCols = `id, couple_id, partner_id, mood, gratitude, note, private, created_at, updated_at`

func (s *CheckInStore) Create(coupleID, partnerID int64, mood int, gratitude, note string, private bool) (*model.CheckIn, error) {
	var p int
	if private {
		p = 1
	}
	result, err := s.db.Exec(
		`INSERT INTO checkins (couple_id, partner_id, mood, gratitude, note, private) VALUES (?, ?, ?, ?, ?, ?)`,
		coupleID, partnerID, mood, gratitude, note, p,
	)
	if err != nil {
		return nil, fmt.Errorf("insert checkin: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *CheckInStore) GetByID(id int64) (*model.CheckIn, error) {
	row := s.db.QueryRow(`SELECT `+checkInCols+` FROM checkins WHERE id = ?`, id)
	c, err := scanCheckIn(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get checkin: %w", err)
	}
	return c, nil
}

func (s *CheckInStore) ListByCouple(coupleID int64) ([]model.CheckIn, error) {
	rows, err := s.db.Query(
		`SELECT `+checkInCols+` FROM checkins WHERE couple_id = ? ORDER BY created_at DESC, id DESC`,
		coupleID,
	)
	if err != nil {
		return nil, fmt.Errorf("list checkins: %w", err)
	}
	defer rows.Close()

	var checkins []model.CheckIn
	for rows.Next() {
		c, err := scanCheckIn(rows)
		if err != nil {
			return nil, fmt.Errorf("scan checkin: %w", err)
		}
		checkins = append(checkins, *c)
	}
	return checkins, rows.Err()
}

func (s *CheckInStore) Update(id int64, mood int, gratitude, note string, private bool) (*model.CheckIn, error) {
	var p int
	if private {
		p = 1
	}
	_, err := s.db.Exec(
		`UPDATE checkins SET mood = ?, gratitude = ?, note = ?, private = ?, updated_at = ? WHERE id = ?`,
		mood, gratitude, note, p, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update checkin: %w", err)
	}
	return s.GetByID(id)
}

func (s *CheckInStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM checkins WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete checkin: %w", err)
	}
	return nil
}

package store

import (
	"database/sql"
	"fmt"

	"github.com/calebfife/tandem/internal/model"
)

type BookendStore struct {
	db *sql.DB
}

func NewBookendStore(db *sql.DB) *BookendStore {
	return &BookendStore{db: db}
}

func scanBookend(scanner interface{ Scan(...any) error }) (*model.Bookend, error) {
	var b model.Bookend
	err := scanner.Scan(&b.ID, &b.CoupleID, &b.PartnerID, &b.Kind, &b.Body, &b.Day, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

const bookendCols = `id, couple_id, partner_id, kind, body, day, created_at`

func (s *BookendStore) Create(coupleID, partnerID int64, kind, body, day string) (*model.Bookend, error) {
	result, err := s.db.Exec(
		`INSERT INTO bookends (couple_id, partner_id, kind, body, day) VALUES (?, ?, ?, ?, ?)`,
		coupleID, partnerID, kind, body, day,
	)
	if err != nil {
		return nil, fmt.Errorf("insert bookend: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *BookendStore) GetByID(id int64) (*model.Bookend, error) {
	row := s.db.QueryRow(`SELECT `+bookendCols+` FROM bookends WHERE id = ?`, id)
	b, err := scanBookend(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get bookend: %w", err)
	}
	return b, nil
}

func (s *BookendStore) ListByCouple(coupleID int64) ([]model.Bookend, error) {
	rows, err := s.db.Query(
		`SELECT `+bookendCols+` FROM bookends WHERE couple_id = ? ORDER BY day DESC, id DESC`,
		coupleID,
	)
	if err != nil {
		return nil, fmt.Errorf("list bookends: %w", err)
	}
	defer rows.Close()

	var bookends []model.Bookend
	for rows.Next() {
		b, err := scanBookend(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bookend: %w", err)
		}
		bookends = append(bookends, *b)
	}
	return bookends, rows.Err()
}

func (s *BookendStore) Update(id int64, body string) (*model.Bookend, error) {
	_, err := s.db.Exec(`UPDATE bookends SET body = ? WHERE id = ?`, body, id)
	if err != nil {
		return nil, fmt.Errorf("update bookend: %w", err)
	}
	return s.GetByID(id)
}

func (s *BookendStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM bookends WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete bookend: %w", err)
	}
	return nil
}

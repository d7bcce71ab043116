package store

import (
	"database/sql"
	"fmt"

	"github.com/calebfife/tandem/internal/model"
)

type CoupleStore struct {
	db *sql.DB
}

func NewCoupleStore(db *sql.DB) *CoupleStore {
	return &CoupleStore{db: db}
}

// Create inserts a couple and its default session settings row.
func (s *CoupleStore) Create(name string) (*model.Couple, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`INSERT INTO couples (name) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("insert couple: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if _, err := tx.Exec(`INSERT INTO session_settings (couple_id) VALUES (?)`, id); err != nil {
		return nil, fmt.Errorf("insert default settings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

func (s *CoupleStore) GetByID(id int64) (*model.Couple, error) {
	var c model.Couple
	err := s.db.QueryRow(`SELECT id, name, created_at FROM couples WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get couple: %w", err)
	}
	return &c, nil
}

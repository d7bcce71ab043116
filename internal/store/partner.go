package store

import (
	"database/sql"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/calebfife/tandem/internal/model"
)

type PartnerStore struct {
	db *sql.DB
}

func NewPartnerStore(db *sql.DB) *PartnerStore {
	return &PartnerStore{db: db}
}

func scanPartner(scanner interface{ Scan(...any) error }) (*model.Partner, error) {
	var p model.Partner
	var pinHash sql.NullString

	err := scanner.Scan(&p.ID, &p.CoupleID, &p.Name, &p.Email, &p.AvatarEmoji, &pinHash, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.HasPIN = pinHash.Valid && pinHash.String != ""
	return &p, nil
}

const partnerCols = `id, couple_id, name, email, avatar_emoji, pin_hash, created_at`

// Create adds a partner to a couple. A couple holds at most two partners.
func (s *PartnerStore) Create(coupleID int64, name, email, avatarEmoji string) (*model.Partner, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM partners WHERE couple_id = ?`, coupleID).Scan(&count); err != nil {
		return nil, fmt.Errorf("count partners: %w", err)
	}
	if count >= 2 {
		return nil, fmt.Errorf("couple %d already has two partners", coupleID)
	}

	result, err := s.db.Exec(
		`INSERT INTO partners (couple_id, name, email, avatar_emoji) VALUES (?, ?, ?, ?)`,
		coupleID, name, email, avatarEmoji,
	)
	if err != nil {
		return nil, fmt.Errorf("insert partner: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *PartnerStore) GetByID(id int64) (*model.Partner, error) {
	row := s.db.QueryRow(`SELECT `+partnerCols+` FROM partners WHERE id = ?`, id)
	p, err := scanPartner(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get partner: %w", err)
	}
	return p, nil
}

func (s *PartnerStore) ListByCouple(coupleID int64) ([]model.Partner, error) {
	rows, err := s.db.Query(`SELECT `+partnerCols+` FROM partners WHERE couple_id = ? ORDER BY id`, coupleID)
	if err != nil {
		return nil, fmt.Errorf("list partners: %w", err)
	}
	defer rows.Close()

	var partners []model.Partner
	for rows.Next() {
		p, err := scanPartner(rows)
		if err != nil {
			return nil, fmt.Errorf("scan partner: %w", err)
		}
		partners = append(partners, *p)
	}
	return partners, rows.Err()
}

// SetPIN stores a bcrypt hash of the partner's PIN.
func (s *PartnerStore) SetPIN(id int64, pin string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash pin: %w", err)
	}
	_, err = s.db.Exec(`UPDATE partners SET pin_hash = ? WHERE id = ?`, string(hash), id)
	if err != nil {
		return fmt.Errorf("set pin: %w", err)
	}
	return nil
}

// VerifyPIN checks a PIN against the stored hash. A partner with no PIN set
// never verifies.
func (s *PartnerStore) VerifyPIN(id int64, pin string) (bool, error) {
	var pinHash sql.NullString
	err := s.db.QueryRow(`SELECT pin_hash FROM partners WHERE id = ?`, id).Scan(&pinHash)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get pin hash: %w", err)
	}
	if !pinHash.Valid || pinHash.String == "" {
		return false, nil
	}
	return bcrypt.CompareHashAndPassword([]byte(pinHash.String), []byte(pin)) == nil, nil
}

// ClearPIN removes the partner's PIN.
func (s *PartnerStore) ClearPIN(id int64) error {
	_, err := s.db.Exec(`UPDATE partners SET pin_hash = NULL WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("clear pin: %w", err)
	}
	return nil
}

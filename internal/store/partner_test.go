package store

import (
	"testing"

	"github.com/calebfife/tandem/internal/database"
)

func setupPartnerTestDB(t *testing.T) (*PartnerStore, int64) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	couple, err := NewCoupleStore(db).Create("Testers")
	if err != nil {
		t.Fatalf("create couple: %v", err)
	}
	return NewPartnerStore(db), couple.ID
}

func TestCoupleHoldsAtMostTwoPartners(t *testing.T) {
	store, coupleID := setupPartnerTestDB(t)

	if _, err := store.Create(coupleID, "Alex", "alex@example.com", ""); err != nil {
		t.Fatalf("first partner: %v", err)
	}
	if _, err := store.Create(coupleID, "Blake", "blake@example.com", ""); err != nil {
		t.Fatalf("second partner: %v", err)
	}
	if _, err := store.Create(coupleID, "Casey", "casey@example.com", ""); err == nil {
		t.Fatal("third partner should be rejected")
	}

	partners, err := store.ListByCouple(coupleID)
	if err != nil {
		t.Fatalf("list partners: %v", err)
	}
	if len(partners) != 2 {
		t.Fatalf("got %d partners, want 2", len(partners))
	}
}

func TestPartnerPINLifecycle(t *testing.T) {
	store, coupleID := setupPartnerTestDB(t)

	p, err := store.Create(coupleID, "Alex", "alex@example.com", "")
	if err != nil {
		t.Fatalf("create partner: %v", err)
	}
	if p.HasPIN {
		t.Error("new partner should have no PIN")
	}

	if err := store.SetPIN(p.ID, "1234"); err != nil {
		t.Fatalf("set pin: %v", err)
	}

	valid, err := store.VerifyPIN(p.ID, "1234")
	if err != nil {
		t.Fatalf("verify pin: %v", err)
	}
	if !valid {
		t.Error("correct PIN rejected")
	}

	valid, err = store.VerifyPIN(p.ID, "9999")
	if err != nil {
		t.Fatalf("verify wrong pin: %v", err)
	}
	if valid {
		t.Error("wrong PIN accepted")
	}

	if err := store.ClearPIN(p.ID); err != nil {
		t.Fatalf("clear pin: %v", err)
	}
	got, err := store.GetByID(p.ID)
	if err != nil {
		t.Fatalf("get partner: %v", err)
	}
	if got.HasPIN {
		t.Error("PIN still set after clear")
	}
}

func TestPartnerEmailUnique(t *testing.T) {
	store, coupleID := setupPartnerTestDB(t)

	if _, err := store.Create(coupleID, "Alex", "alex@example.com", ""); err != nil {
		t.Fatalf("create partner: %v", err)
	}
	if _, err := store.Create(coupleID, "Alex Again", "alex@example.com", ""); err == nil {
		t.Fatal("duplicate email should be rejected")
	}
}

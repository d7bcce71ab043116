package store

import (
	"testing"

	"github.com/calebfife/tandem/internal/database"
	"github.com/calebfife/tandem/internal/model"
)

func setupProposalTestDB(t *testing.T) (*ProposalStore, int64, int64, int64) {
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
	ps := NewPartnerStore(db)
	a, err := ps.Create(couple.ID, "Alex", "alex@example.com", "")
	if err != nil {
		t.Fatalf("create partner a: %v", err)
	}
	b, err := ps.Create(couple.ID, "Blake", "blake@example.com", "")
	if err != nil {
		t.Fatalf("create partner b: %v", err)
	}
	return NewProposalStore(db), couple.ID, a.ID, b.ID
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestCreatePendingProposal(t *testing.T) {
	store, coupleID, partnerA, _ := setupProposalTestDB(t)

	patch := model.SettingsPatch{Frequency: strPtr("daily"), DurationMinutes: intPtr(45)}
	p, err := store.CreatePending(coupleID, partnerA, patch)
	if err != nil {
		t.Fatalf("create pending: %v", err)
	}
	if p.Status != model.ProposalPending {
		t.Errorf("status = %q, want %q", p.Status, model.ProposalPending)
	}
	if p.ProposedBy != partnerA {
		t.Errorf("proposed_by = %d, want %d", p.ProposedBy, partnerA)
	}
	if p.Settings.Frequency == nil || *p.Settings.Frequency != "daily" {
		t.Errorf("settings.frequency not round-tripped: %+v", p.Settings)
	}

	pending, err := store.GetPending(coupleID)
	if err != nil {
		t.Fatalf("get pending: %v", err)
	}
	if pending == nil || pending.ID != p.ID {
		t.Fatalf("get pending returned %+v, want id %s", pending, p.ID)
	}
}

func TestSinglePendingProposalPerCouple(t *testing.T) {
	store, coupleID, partnerA, partnerB := setupProposalTestDB(t)

	if _, err := store.CreatePending(coupleID, partnerA, model.SettingsPatch{Frequency: strPtr("daily")}); err != nil {
		t.Fatalf("first proposal: %v", err)
	}

	// Second pending insert must fail, from either partner.
	if _, err := store.CreatePending(coupleID, partnerB, model.SettingsPatch{Frequency: strPtr("monthly")}); err == nil {
		t.Fatal("expected second pending proposal to fail")
	}
	if _, err := store.CreatePending(coupleID, partnerA, model.SettingsPatch{Frequency: strPtr("monthly")}); err == nil {
		t.Fatal("expected second pending proposal from proposer to fail")
	}
}

func TestResolveProposalOnce(t *testing.T) {
	store, coupleID, partnerA, _ := setupProposalTestDB(t)

	p, err := store.CreatePending(coupleID, partnerA, model.SettingsPatch{Frequency: strPtr("daily")})
	if err != nil {
		t.Fatalf("create pending: %v", err)
	}

	ok, err := store.Resolve(p.ID, model.ProposalAccepted)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !ok {
		t.Fatal("first resolve should succeed")
	}

	resolved, err := store.GetByID(p.ID)
	if err != nil {
		t.Fatalf("get resolved: %v", err)
	}
	if resolved.Status != model.ProposalAccepted {
		t.Errorf("status = %q, want %q", resolved.Status, model.ProposalAccepted)
	}
	if resolved.ResolvedAt == nil {
		t.Error("resolved_at not set")
	}

	// A terminal proposal cannot be resolved again, even to the other outcome.
	ok, err = store.Resolve(p.ID, model.ProposalDeclined)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if ok {
		t.Fatal("second resolve should report no rows")
	}
	again, _ := store.GetByID(p.ID)
	if again.Status != model.ProposalAccepted {
		t.Errorf("status changed to %q after failed resolve", again.Status)
	}
}

func TestResolveUnknownProposal(t *testing.T) {
	store, _, _, _ := setupProposalTestDB(t)

	ok, err := store.Resolve("00000000-0000-0000-0000-000000000000", model.ProposalAccepted)
	if err != nil {
		t.Fatalf("resolve unknown: %v", err)
	}
	if ok {
		t.Fatal("resolving an unknown proposal should report no rows")
	}
}

func TestPendingClearedAfterResolution(t *testing.T) {
	store, coupleID, partnerA, _ := setupProposalTestDB(t)

	p, err := store.CreatePending(coupleID, partnerA, model.SettingsPatch{Frequency: strPtr("daily")})
	if err != nil {
		t.Fatalf("create pending: %v", err)
	}
	if _, err := store.Resolve(p.ID, model.ProposalDeclined); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	pending, err := store.GetPending(coupleID)
	if err != nil {
		t.Fatalf("get pending: %v", err)
	}
	if pending != nil {
		t.Fatalf("pending = %+v, want nil", pending)
	}

	// A new proposal may now be created.
	if _, err := store.CreatePending(coupleID, partnerA, model.SettingsPatch{Frequency: strPtr("monthly")}); err != nil {
		t.Fatalf("proposal after resolution: %v", err)
	}
}

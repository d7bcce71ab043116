package store

import (
	"testing"
	"time"

	"github.com/calebfife/tandem/internal/database"
)

func setupSuppressionTestDB(t *testing.T) *SuppressionStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSuppressionStore(db)
}

func TestEnsureIsIdempotent(t *testing.T) {
	store := setupSuppressionTestDB(t)

	first, err := store.Ensure("Alex@Example.com")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if first.Email != "alex@example.com" {
		t.Errorf("email = %q, want normalized %q", first.Email, "alex@example.com")
	}
	if first.UnsubscribeToken == "" {
		t.Fatal("no unsubscribe token assigned")
	}
	if first.Suppressed() {
		t.Error("fresh row should not be suppressed")
	}

	second, err := store.Ensure("  alex@example.com ")
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("second ensure created a new row: %d vs %d", second.ID, first.ID)
	}
	if second.UnsubscribeToken != first.UnsubscribeToken {
		t.Error("unsubscribe token changed between ensures")
	}
}

func TestMarkBouncedOnce(t *testing.T) {
	store := setupSuppressionTestDB(t)

	t1 := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	if err := store.MarkBounced("alex@example.com", t1); err != nil {
		t.Fatalf("mark bounced: %v", err)
	}

	sup, err := store.GetByEmail("alex@example.com")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sup.BouncedAt == nil || !sup.BouncedAt.Equal(t1) {
		t.Fatalf("bounced_at = %v, want %v", sup.BouncedAt, t1)
	}
	if !sup.Suppressed() {
		t.Error("bounced address should be suppressed")
	}

	// A later bounce must not move the timestamp.
	if err := store.MarkBounced("alex@example.com", t1.Add(time.Hour)); err != nil {
		t.Fatalf("mark bounced again: %v", err)
	}
	sup, _ = store.GetByEmail("alex@example.com")
	if !sup.BouncedAt.Equal(t1) {
		t.Errorf("bounced_at moved to %v", sup.BouncedAt)
	}
}

func TestMarkComplained(t *testing.T) {
	store := setupSuppressionTestDB(t)

	at := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	if err := store.MarkComplained("blake@example.com", at); err != nil {
		t.Fatalf("mark complained: %v", err)
	}
	sup, err := store.GetByEmail("blake@example.com")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sup.ComplainedAt == nil {
		t.Fatal("complained_at not set")
	}
	if sup.BouncedAt != nil {
		t.Error("bounced_at set by complaint")
	}
}

func TestOptOutRedeemedOnce(t *testing.T) {
	store := setupSuppressionTestDB(t)

	sup, err := store.Ensure("alex@example.com")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}

	t1 := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	applied, err := store.OptOut(sup.ID, t1)
	if err != nil {
		t.Fatalf("opt out: %v", err)
	}
	if !applied {
		t.Fatal("first opt-out should apply")
	}

	applied, err = store.OptOut(sup.ID, t1.Add(time.Hour))
	if err != nil {
		t.Fatalf("second opt out: %v", err)
	}
	if applied {
		t.Fatal("second opt-out should be a no-op")
	}

	got, err := store.GetByToken(sup.UnsubscribeToken)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got.OptedOutAt == nil || !got.OptedOutAt.Equal(t1) {
		t.Errorf("opted_out_at = %v, want original %v", got.OptedOutAt, t1)
	}
}

func TestGetByTokenUnknown(t *testing.T) {
	store := setupSuppressionTestDB(t)

	sup, err := store.GetByToken("no-such-token")
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if sup != nil {
		t.Fatalf("got %+v, want nil", sup)
	}
}

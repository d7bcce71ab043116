package negotiation

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/calebfife/tandem/internal/database"
	"github.com/calebfife/tandem/internal/feed"
	"github.com/calebfife/tandem/internal/model"
	"github.com/calebfife/tandem/internal/store"
)

func setupNegotiator(t *testing.T) (*Negotiator, *store.SettingsStore, *feed.Feed, int64, int64, int64) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	couple, err := store.NewCoupleStore(db).Create("Testers")
	if err != nil {
		t.Fatalf("create couple: %v", err)
	}
	ps := store.NewPartnerStore(db)
	a, err := ps.Create(couple.ID, "Alex", "alex@example.com", "")
	if err != nil {
		t.Fatalf("create partner a: %v", err)
	}
	b, err := ps.Create(couple.ID, "Blake", "blake@example.com", "")
	if err != nil {
		t.Fatalf("create partner b: %v", err)
	}

	f := feed.New()
	settings := store.NewSettingsStore(db)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	n := New(store.NewProposalStore(db), settings, f, logger)
	return n, settings, f, couple.ID, a.ID, b.ID
}

func strPtr(s string) *string { return &s }

func TestProposeAndAccept(t *testing.T) {
	n, settings, _, coupleID, alex, blake := setupNegotiator(t)

	p, err := n.Propose(coupleID, alex, model.SettingsPatch{Frequency: strPtr("daily")})
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if p.Status != model.ProposalPending {
		t.Fatalf("status = %q, want pending", p.Status)
	}

	resolved, err := n.Respond(p.ID, blake, true)
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if resolved.Status != model.ProposalAccepted {
		t.Errorf("status = %q, want accepted", resolved.Status)
	}

	// Accepting applies the patch to the live settings.
	live, err := settings.GetByCouple(coupleID)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if live.Frequency != "daily" {
		t.Errorf("frequency = %q, want daily", live.Frequency)
	}
}

func TestDeclineLeavesSettingsUntouched(t *testing.T) {
	n, settings, _, coupleID, alex, blake := setupNegotiator(t)

	p, err := n.Propose(coupleID, alex, model.SettingsPatch{Frequency: strPtr("daily")})
	if err != nil {
		t.Fatalf("propose: %v", err)
	}

	resolved, err := n.Respond(p.ID, blake, false)
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if resolved.Status != model.ProposalDeclined {
		t.Errorf("status = %q, want declined", resolved.Status)
	}

	live, err := settings.GetByCouple(coupleID)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if live.Frequency != "weekly" {
		t.Errorf("frequency = %q, want default weekly", live.Frequency)
	}
}

func TestProposeWhilePending(t *testing.T) {
	n, _, _, coupleID, alex, blake := setupNegotiator(t)

	if _, err := n.Propose(coupleID, alex, model.SettingsPatch{Frequency: strPtr("daily")}); err != nil {
		t.Fatalf("propose: %v", err)
	}

	// Both the other partner and the original proposer are blocked.
	if _, err := n.Propose(coupleID, blake, model.SettingsPatch{Frequency: strPtr("monthly")}); !errors.Is(err, ErrProposalPending) {
		t.Fatalf("err = %v, want ErrProposalPending", err)
	}
	if _, err := n.Propose(coupleID, alex, model.SettingsPatch{Frequency: strPtr("monthly")}); !errors.Is(err, ErrProposalPending) {
		t.Fatalf("err = %v, want ErrProposalPending", err)
	}

	pending, err := n.Pending(coupleID)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if pending == nil || pending.Settings.Frequency == nil || *pending.Settings.Frequency != "daily" {
		t.Fatalf("original proposal lost: %+v", pending)
	}
}

func TestEmptyProposalRejected(t *testing.T) {
	n, _, _, coupleID, alex, _ := setupNegotiator(t)

	if _, err := n.Propose(coupleID, alex, model.SettingsPatch{}); !errors.Is(err, ErrEmptyProposal) {
		t.Fatalf("err = %v, want ErrEmptyProposal", err)
	}
}

func TestProposerCannotRespond(t *testing.T) {
	n, _, _, coupleID, alex, _ := setupNegotiator(t)

	p, err := n.Propose(coupleID, alex, model.SettingsPatch{Frequency: strPtr("daily")})
	if err != nil {
		t.Fatalf("propose: %v", err)
	}

	if _, err := n.Respond(p.ID, alex, true); !errors.Is(err, ErrSelfResponse) {
		t.Fatalf("err = %v, want ErrSelfResponse", err)
	}

	// Proposal stays pending for the other partner.
	pending, err := n.Pending(coupleID)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if pending == nil || pending.ID != p.ID {
		t.Fatal("proposal no longer pending after rejected self-response")
	}
}

func TestRespondToResolvedProposal(t *testing.T) {
	n, settings, _, coupleID, alex, blake := setupNegotiator(t)

	p, err := n.Propose(coupleID, alex, model.SettingsPatch{Frequency: strPtr("daily")})
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, err := n.Respond(p.ID, blake, false); err != nil {
		t.Fatalf("first respond: %v", err)
	}

	// The second response fails and flips nothing.
	if _, err := n.Respond(p.ID, blake, true); !errors.Is(err, ErrNotPending) {
		t.Fatalf("err = %v, want ErrNotPending", err)
	}
	live, _ := settings.GetByCouple(coupleID)
	if live.Frequency != "weekly" {
		t.Errorf("declined patch applied: frequency = %q", live.Frequency)
	}
}

func TestRespondToUnknownProposal(t *testing.T) {
	n, _, _, _, _, blake := setupNegotiator(t)

	if _, err := n.Respond("00000000-0000-0000-0000-000000000000", blake, true); !errors.Is(err, ErrNotPending) {
		t.Fatalf("err = %v, want ErrNotPending", err)
	}
}

func TestAcceptPublishesSettingsUpdate(t *testing.T) {
	n, _, f, coupleID, alex, blake := setupNegotiator(t)

	updates := make(chan any, 4)
	sub := f.Subscribe(CollectionSettings, coupleID, feed.Callbacks{
		OnUpdate: func(rec any) { updates <- rec },
	})
	defer sub.Unsubscribe()

	p, err := n.Propose(coupleID, alex, model.SettingsPatch{Frequency: strPtr("daily")})
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, err := n.Respond(p.ID, blake, true); err != nil {
		t.Fatalf("respond: %v", err)
	}

	select {
	case rec := <-updates:
		ss, ok := rec.(model.SessionSettings)
		if !ok {
			t.Fatalf("settings event record has type %T", rec)
		}
		if ss.Frequency != "daily" {
			t.Errorf("published frequency = %q, want daily", ss.Frequency)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no settings update published after accept")
	}
}

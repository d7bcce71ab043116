package scheduler

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/calebfife/tandem/internal/database"
	"github.com/calebfife/tandem/internal/model"
	"github.com/calebfife/tandem/internal/store"
)

type sentEmail struct {
	To    string
	Title string
	Token string
}

// fakeEmailSender records deliveries and fails any reminder whose title is in
// failTitles.
type fakeEmailSender struct {
	mu         sync.Mutex
	sent       []sentEmail
	failTitles map[string]bool
}

func newFakeEmailSender() *fakeEmailSender {
	return &fakeEmailSender{failTitles: make(map[string]bool)}
}

func (f *fakeEmailSender) SendReminder(to, title, message, unsubscribeToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTitles[title] {
		return fmt.Errorf("smtp rejected %q", title)
	}
	f.sent = append(f.sent, sentEmail{To: to, Title: title, Token: unsubscribeToken})
	return nil
}

func (f *fakeEmailSender) sentTitles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, s := range f.sent {
		out[i] = s.Title
	}
	return out
}

type schedFixture struct {
	sched     *Scheduler
	reminders *store.ReminderStore
	supps     *store.SuppressionStore
	email     *fakeEmailSender
	coupleID  int64
	partnerID int64
	now       time.Time
}

func setupScheduler(t *testing.T) *schedFixture {
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
	partners := store.NewPartnerStore(db)
	partner, err := partners.Create(couple.ID, "Alex", "alex@example.com", "")
	if err != nil {
		t.Fatalf("create partner: %v", err)
	}

	reminders := store.NewReminderStore(db)
	supps := store.NewSuppressionStore(db)
	email := newFakeEmailSender()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sched := New(reminders, partners, supps, store.NewPushStore(db), email, nil, time.Minute, logger)
	now := time.Date(2026, 9, 1, 19, 0, 0, 0, time.UTC)
	sched.SetNow(func() time.Time { return now })

	return &schedFixture{
		sched:     sched,
		reminders: reminders,
		supps:     supps,
		email:     email,
		coupleID:  couple.ID,
		partnerID: partner.ID,
		now:       now,
	}
}

func (fx *schedFixture) createReminder(t *testing.T, title, frequency string, due time.Time) *model.Reminder {
	t.Helper()
	r, err := fx.reminders.Create(fx.coupleID, fx.partnerID, title, "msg", frequency, "", due, model.ChannelEmail)
	if err != nil {
		t.Fatalf("create reminder %q: %v", title, err)
	}
	return r
}

func TestOnceReminderConsumedBySuccessfulAttempt(t *testing.T) {
	fx := setupScheduler(t)
	r := fx.createReminder(t, "anniversary", model.FreqOnce, fx.now.Add(-time.Hour))

	result := fx.sched.Run()
	if result.Sent != 1 || result.Failed != 0 {
		t.Fatalf("result = %+v, want 1 sent", result)
	}

	got, _ := fx.reminders.GetByID(r.ID)
	if got.IsActive {
		t.Error("once-reminder still active after attempt")
	}

	// The next run must not pick it up again.
	result = fx.sched.Run()
	if result.Sent != 0 {
		t.Fatalf("second run sent %d, want 0", result.Sent)
	}
}

func TestOnceReminderConsumedByFailedAttempt(t *testing.T) {
	fx := setupScheduler(t)
	fx.email.failTitles["anniversary"] = true
	r := fx.createReminder(t, "anniversary", model.FreqOnce, fx.now.Add(-time.Hour))

	result := fx.sched.Run()
	if result.Failed != 1 || result.Sent != 0 {
		t.Fatalf("result = %+v, want 1 failed", result)
	}
	if len(result.Errors) != 1 || result.Errors[0].ReminderID != r.ID {
		t.Fatalf("errors = %+v, want entry for reminder %d", result.Errors, r.ID)
	}

	// The attempt consumes the reminder even though delivery failed.
	got, _ := fx.reminders.GetByID(r.ID)
	if got.IsActive {
		t.Error("once-reminder still active after failed attempt")
	}

	result = fx.sched.Run()
	if result.Failed != 0 {
		t.Fatalf("second run failed %d, want 0", result.Failed)
	}
}

func TestBatchFailureIsolation(t *testing.T) {
	fx := setupScheduler(t)
	fx.email.failTitles["broken"] = true

	fx.createReminder(t, "first", model.FreqOnce, fx.now.Add(-3*time.Hour))
	broken := fx.createReminder(t, "broken", model.FreqOnce, fx.now.Add(-2*time.Hour))
	fx.createReminder(t, "last", model.FreqOnce, fx.now.Add(-time.Hour))

	result := fx.sched.Run()
	if result.Sent != 2 {
		t.Errorf("sent = %d, want 2", result.Sent)
	}
	if result.Failed != 1 {
		t.Errorf("failed = %d, want 1", result.Failed)
	}
	if len(result.Errors) != 1 || result.Errors[0].ReminderID != broken.ID {
		t.Fatalf("errors = %+v, want only reminder %d", result.Errors, broken.ID)
	}

	titles := fx.email.sentTitles()
	if len(titles) != 2 || titles[0] != "first" || titles[1] != "last" {
		t.Errorf("delivered %v, want [first last]", titles)
	}
}

func TestWeeklyReminderSurvivesFailedAttempt(t *testing.T) {
	fx := setupScheduler(t)
	fx.email.failTitles["date night"] = true
	r := fx.createReminder(t, "date night", model.FreqWeekly, fx.now.Add(-time.Hour))

	result := fx.sched.Run()
	if result.Failed != 1 {
		t.Fatalf("result = %+v, want 1 failed", result)
	}

	got, _ := fx.reminders.GetByID(r.ID)
	if !got.IsActive {
		t.Fatal("weekly reminder deactivated by failed attempt")
	}
	wantNext := r.ScheduledFor.AddDate(0, 0, 7)
	if !got.ScheduledFor.Equal(wantNext) {
		t.Errorf("scheduled_for = %v, want %v", got.ScheduledFor, wantNext)
	}

	// Not re-selected until the next occurrence.
	result = fx.sched.Run()
	if result.Failed+result.Sent != 0 {
		t.Fatalf("re-selected before next occurrence: %+v", result)
	}

	// One week on, it is due again and delivery now succeeds.
	delete(fx.email.failTitles, "date night")
	fx.sched.SetNow(func() time.Time { return fx.now.AddDate(0, 0, 7) })
	result = fx.sched.Run()
	if result.Sent != 1 {
		t.Fatalf("next week result = %+v, want 1 sent", result)
	}
}

func TestCustomScheduleAdvances(t *testing.T) {
	fx := setupScheduler(t)
	r, err := fx.reminders.Create(fx.coupleID, fx.partnerID, "stretch", "msg",
		model.FreqCustom, "FREQ=DAILY;INTERVAL=2", fx.now.Add(-time.Hour), model.ChannelEmail)
	if err != nil {
		t.Fatalf("create custom reminder: %v", err)
	}

	result := fx.sched.Run()
	if result.Sent != 1 {
		t.Fatalf("result = %+v, want 1 sent", result)
	}

	got, _ := fx.reminders.GetByID(r.ID)
	if !got.IsActive {
		t.Fatal("custom reminder deactivated")
	}
	wantNext := r.ScheduledFor.AddDate(0, 0, 2)
	if !got.ScheduledFor.Equal(wantNext) {
		t.Errorf("scheduled_for = %v, want %v", got.ScheduledFor, wantNext)
	}
}

func TestInvalidCustomScheduleDeactivates(t *testing.T) {
	fx := setupScheduler(t)
	r, err := fx.reminders.Create(fx.coupleID, fx.partnerID, "bad", "msg",
		model.FreqCustom, "FREQ=FORTNIGHTLY", fx.now.Add(-time.Hour), model.ChannelEmail)
	if err != nil {
		t.Fatalf("create custom reminder: %v", err)
	}

	fx.sched.Run()

	got, _ := fx.reminders.GetByID(r.ID)
	if got.IsActive {
		t.Error("reminder with unparseable schedule left active")
	}
}

func TestUnresolvedRecipient(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	couple, err := store.NewCoupleStore(db).Create("Testers")
	if err != nil {
		t.Fatalf("create couple: %v", err)
	}
	partners := store.NewPartnerStore(db)
	// A partner without an email address cannot receive email reminders.
	partner, err := partners.Create(couple.ID, "Alex", "", "")
	if err != nil {
		t.Fatalf("create partner: %v", err)
	}

	reminders := store.NewReminderStore(db)
	email := newFakeEmailSender()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sched := New(reminders, partners, store.NewSuppressionStore(db), store.NewPushStore(db), email, nil, time.Minute, logger)
	now := time.Date(2026, 9, 1, 19, 0, 0, 0, time.UTC)
	sched.SetNow(func() time.Time { return now })

	r, err := reminders.Create(couple.ID, partner.ID, "orphan", "msg", model.FreqOnce, "", now.Add(-time.Hour), model.ChannelEmail)
	if err != nil {
		t.Fatalf("create reminder: %v", err)
	}

	result := sched.Run()
	if result.Unresolved != 1 {
		t.Errorf("unresolved = %d, want 1", result.Unresolved)
	}
	if result.Sent != 0 || result.Failed != 0 || len(result.Errors) != 0 {
		t.Errorf("result = %+v, want only an unresolved count", result)
	}

	got, _ := reminders.GetByID(r.ID)
	if got.IsActive {
		t.Error("once-reminder still active after unresolved attempt")
	}
}

func TestSuppressedRecipientSkipped(t *testing.T) {
	fx := setupScheduler(t)
	if err := fx.supps.MarkBounced("alex@example.com", fx.now.Add(-24*time.Hour)); err != nil {
		t.Fatalf("mark bounced: %v", err)
	}

	r := fx.createReminder(t, "anniversary", model.FreqOnce, fx.now.Add(-time.Hour))

	result := fx.sched.Run()
	if result.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", result.Skipped)
	}
	if result.Sent != 0 || result.Failed != 0 {
		t.Errorf("result = %+v, want no sends or failures", result)
	}
	if len(fx.email.sentTitles()) != 0 {
		t.Error("email delivered to suppressed address")
	}

	// The attempt still consumes the once-reminder.
	got, _ := fx.reminders.GetByID(r.ID)
	if got.IsActive {
		t.Error("once-reminder still active after suppressed attempt")
	}
}

func TestUnsubscribeTokenReachesSender(t *testing.T) {
	fx := setupScheduler(t)
	fx.createReminder(t, "anniversary", model.FreqOnce, fx.now.Add(-time.Hour))

	result := fx.sched.Run()
	if result.Sent != 1 {
		t.Fatalf("result = %+v, want 1 sent", result)
	}

	sup, err := fx.supps.GetByEmail("alex@example.com")
	if err != nil || sup == nil {
		t.Fatalf("suppression row missing: %v", err)
	}
	fx.email.mu.Lock()
	defer fx.email.mu.Unlock()
	if fx.email.sent[0].Token != sup.UnsubscribeToken {
		t.Error("email carried a different unsubscribe token than the stored one")
	}
}

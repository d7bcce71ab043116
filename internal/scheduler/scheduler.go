// Package scheduler delivers due reminders. It is driven externally (an
// authenticated job trigger or the internal ticker); each run selects the due
// batch once, attempts every delivery independently, and consumes one-time
// reminders by the attempt rather than the outcome so an occurrence is never
// attempted twice.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/calebfife/tandem/internal/model"
	"github.com/calebfife/tandem/internal/push"
	"github.com/calebfife/tandem/internal/recurrence"
	"github.com/calebfife/tandem/internal/store"
)

// EmailSender delivers a single reminder email.
type EmailSender interface {
	SendReminder(to, title, message, unsubscribeToken string) error
}

// PushSender delivers a single web push notification.
type PushSender interface {
	Send(sub *model.PushSubscription, payload push.Payload) error
}

// ReminderError records one failed delivery inside a run.
type ReminderError struct {
	ReminderID int64  `json:"reminder_id"`
	Message    string `json:"message"`
}

// Result summarizes one scheduler run. Unresolved counts reminders whose
// recipient could not be resolved; Skipped counts recipients suppressed by
// delivery feedback. Neither is a failure: no delivery was attempted.
type Result struct {
	Sent       int             `json:"sent"`
	Failed     int             `json:"failed"`
	Unresolved int             `json:"unresolved"`
	Skipped    int             `json:"skipped"`
	Errors     []ReminderError `json:"errors,omitempty"`
}

// Scheduler periodically processes due reminders.
type Scheduler struct {
	mu           sync.RWMutex
	reminders    *store.ReminderStore
	partners     *store.PartnerStore
	suppressions *store.SuppressionStore
	pushSubs     *store.PushStore
	email        EmailSender
	push         PushSender
	interval     time.Duration
	now          func() time.Time
	logger       *slog.Logger
	cancel       context.CancelFunc
	done         chan struct{}
}

// New creates a reminder scheduler. push may be nil when no VAPID keys are
// configured; in-app deliveries are then skipped.
func New(reminders *store.ReminderStore, partners *store.PartnerStore, suppressions *store.SuppressionStore, pushSubs *store.PushStore, email EmailSender, pushSender PushSender, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		reminders:    reminders,
		partners:     partners,
		suppressions: suppressions,
		pushSubs:     pushSubs,
		email:        email,
		push:         pushSender,
		interval:     interval,
		now:          func() time.Time { return time.Now().UTC() },
		logger:       logger,
	}
}

// SetNow overrides the scheduler's clock. Used in tests.
func (s *Scheduler) SetNow(now func() time.Time) {
	s.now = now
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				result := s.Run()
				if result.Sent+result.Failed+result.Unresolved+result.Skipped > 0 {
					s.logger.Info("reminder run",
						"sent", result.Sent, "failed", result.Failed,
						"unresolved", result.Unresolved, "skipped", result.Skipped)
				}
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Run processes one batch of due reminders. One reminder's failure never
// aborts the rest of the batch; failures are aggregated into the result.
func (s *Scheduler) Run() Result {
	now := s.now()
	var result Result

	due, err := s.reminders.ListDue(now, model.ChannelEmail, model.ChannelBoth, model.ChannelInApp)
	if err != nil {
		s.logger.Error("list due reminders", "error", err)
		result.Errors = append(result.Errors, ReminderError{Message: fmt.Sprintf("list due reminders: %v", err)})
		return result
	}
	if len(due) == 0 {
		return result
	}

	for _, r := range due {
		s.process(r, &result)
	}

	// Deactivation is keyed on due-set membership, not delivery outcome: a
	// once-reminder is consumed by the attempt. Recurring reminders advance
	// to their next occurrence so they are not re-selected immediately.
	for _, r := range due {
		if !r.Recurring() {
			if err := s.reminders.Deactivate(r.ID); err != nil {
				s.logger.Error("deactivate reminder", "reminder_id", r.ID, "error", err)
			}
			continue
		}
		s.advance(r, now)
	}

	return result
}

func (s *Scheduler) process(r model.Reminder, result *Result) {
	partner, err := s.partners.GetByID(r.CreatedBy)
	if err != nil || partner == nil {
		s.logger.Warn("reminder recipient unresolved", "reminder_id", r.ID, "partner_id", r.CreatedBy)
		result.Unresolved++
		return
	}

	wantEmail := r.NotificationChannel == model.ChannelEmail || r.NotificationChannel == model.ChannelBoth
	wantPush := r.NotificationChannel == model.ChannelInApp || r.NotificationChannel == model.ChannelBoth

	if wantEmail {
		s.sendEmail(r, partner, result)
	}
	if wantPush {
		s.sendPush(r, partner, result, !wantEmail)
	}
}

func (s *Scheduler) sendEmail(r model.Reminder, partner *model.Partner, result *Result) {
	if partner.Email == "" {
		s.logger.Warn("reminder recipient has no email", "reminder_id", r.ID, "partner_id", partner.ID)
		result.Unresolved++
		return
	}

	sup, err := s.suppressions.Ensure(partner.Email)
	if err != nil {
		result.Failed++
		result.Errors = append(result.Errors, ReminderError{ReminderID: r.ID, Message: fmt.Sprintf("suppression lookup: %v", err)})
		return
	}
	if sup.Suppressed() {
		s.logger.Info("reminder recipient suppressed", "reminder_id", r.ID)
		result.Skipped++
		return
	}

	if err := s.email.SendReminder(partner.Email, r.Title, r.Message, sup.UnsubscribeToken); err != nil {
		s.logger.Error("send reminder email", "reminder_id", r.ID, "error", err)
		result.Failed++
		result.Errors = append(result.Errors, ReminderError{ReminderID: r.ID, Message: err.Error()})
		return
	}
	result.Sent++
}

// sendPush delivers the in-app notification to every registered device.
// When the reminder is push-only (counted == true) the outcome feeds the run
// counters; alongside email it is best-effort.
func (s *Scheduler) sendPush(r model.Reminder, partner *model.Partner, result *Result, counted bool) {
	if s.push == nil {
		if counted {
			result.Unresolved++
		}
		return
	}

	subs, err := s.pushSubs.ListByPartner(partner.ID)
	if err != nil || len(subs) == 0 {
		if counted {
			s.logger.Warn("reminder recipient has no devices", "reminder_id", r.ID, "partner_id", partner.ID)
			result.Unresolved++
		}
		return
	}

	payload := push.Payload{
		Title: r.Title,
		Body:  r.Message,
		URL:   "/reminders",
		Tag:   fmt.Sprintf("reminder-%d", r.ID),
	}

	var delivered int
	var lastErr error
	for i := range subs {
		if err := s.push.Send(&subs[i], payload); err != nil {
			if errors.Is(err, push.ErrExpired) {
				s.pushSubs.DeleteByEndpoint(subs[i].Endpoint)
				continue
			}
			s.logger.Error("send reminder push", "reminder_id", r.ID, "error", err)
			lastErr = err
			continue
		}
		delivered++
	}

	if !counted {
		return
	}
	if delivered > 0 {
		result.Sent++
		return
	}
	result.Failed++
	msg := "no device accepted the notification"
	if lastErr != nil {
		msg = lastErr.Error()
	}
	result.Errors = append(result.Errors, ReminderError{ReminderID: r.ID, Message: msg})
}

// advance moves a recurring reminder past now. A custom schedule that cannot
// be parsed, or that has run out of occurrences, deactivates the reminder so
// it is not re-selected on every subsequent run.
func (s *Scheduler) advance(r model.Reminder, now time.Time) {
	var next time.Time

	switch r.Frequency {
	case model.FreqDaily:
		next = stepPast(r.ScheduledFor, now, func(t time.Time) time.Time { return t.AddDate(0, 0, 1) })
	case model.FreqWeekly:
		next = stepPast(r.ScheduledFor, now, func(t time.Time) time.Time { return t.AddDate(0, 0, 7) })
	case model.FreqMonthly:
		next = stepPast(r.ScheduledFor, now, func(t time.Time) time.Time { return t.AddDate(0, 1, 0) })
	case model.FreqCustom:
		rule, err := recurrence.Parse(r.CustomSchedule)
		if err != nil {
			s.logger.Error("invalid custom schedule", "reminder_id", r.ID, "error", err)
			if err := s.reminders.Deactivate(r.ID); err != nil {
				s.logger.Error("deactivate reminder", "reminder_id", r.ID, "error", err)
			}
			return
		}
		next = rule.Next(r.ScheduledFor, now)
	}

	if next.IsZero() {
		if err := s.reminders.Deactivate(r.ID); err != nil {
			s.logger.Error("deactivate reminder", "reminder_id", r.ID, "error", err)
		}
		return
	}

	if err := s.reminders.AdvanceSchedule(r.ID, next); err != nil {
		s.logger.Error("advance reminder", "reminder_id", r.ID, "error", err)
	}
}

func stepPast(from, now time.Time, step func(time.Time) time.Time) time.Time {
	next := step(from)
	for i := 0; !next.After(now) && i < 10000; i++ {
		next = step(next)
	}
	return next
}

package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/calebfife/tandem/internal/feed"
	"github.com/calebfife/tandem/internal/model"
	"github.com/calebfife/tandem/internal/recurrence"
	"github.com/calebfife/tandem/internal/store"
)

type ReminderHandler struct {
	store  *store.ReminderStore
	feed   *feed.Feed
	logger *slog.Logger
}

func NewReminderHandler(s *store.ReminderStore, f *feed.Feed, logger *slog.Logger) *ReminderHandler {
	return &ReminderHandler{store: s, feed: f, logger: logger}
}

func (h *ReminderHandler) publish(coupleID int64, kind string, record any) {
	if h.feed != nil {
		h.feed.Publish(coupleID, feed.Event{Kind: kind, Collection: feed.CollectionReminders, Record: record})
	}
}

type reminderRequest struct {
	CoupleID            int64     `json:"couple_id"`
	CreatedBy           int64     `json:"created_by"`
	Title               string    `json:"title"`
	Message             string    `json:"message"`
	Frequency           string    `json:"frequency"`
	CustomSchedule      string    `json:"custom_schedule"`
	ScheduledFor        time.Time `json:"scheduled_for"`
	NotificationChannel string    `json:"notification_channel"`
}

func (req *reminderRequest) validate() string {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return "title is required"
	}
	switch req.Frequency {
	case model.FreqOnce, model.FreqDaily, model.FreqWeekly, model.FreqMonthly:
	case model.FreqCustom:
		if _, err := recurrence.Parse(req.CustomSchedule); err != nil {
			return "invalid custom_schedule"
		}
	default:
		return "invalid frequency"
	}
	if req.NotificationChannel == "" {
		req.NotificationChannel = model.ChannelInApp
	}
	switch req.NotificationChannel {
	case model.ChannelInApp, model.ChannelEmail, model.ChannelBoth, model.ChannelNone:
	default:
		return "invalid notification_channel"
	}
	if req.ScheduledFor.IsZero() {
		return "scheduled_for is required"
	}
	return ""
}

// Create handles POST /api/reminders
func (h *ReminderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req reminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	if req.CoupleID <= 0 || req.CreatedBy <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "couple_id and created_by are required"})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	reminder, err := h.store.Create(req.CoupleID, req.CreatedBy, req.Title, req.Message,
		req.Frequency, req.CustomSchedule, req.ScheduledFor, req.NotificationChannel)
	if err != nil {
		h.logger.Error("create reminder", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create reminder"})
		return
	}

	h.publish(reminder.CoupleID, feed.KindInsert, reminder)

	writeJSON(w, http.StatusCreated, reminder)
}

// List handles GET /api/reminders?couple_id=N
func (h *ReminderHandler) List(w http.ResponseWriter, r *http.Request) {
	coupleID, err := coupleIDQuery(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "couple_id is required"})
		return
	}

	reminders, err := h.store.ListByCouple(coupleID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list reminders"})
		return
	}
	if reminders == nil {
		reminders = []model.Reminder{}
	}
	writeJSON(w, http.StatusOK, reminders)
}

// Update handles PUT /api/reminders/{id}
func (h *ReminderHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.store.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get reminder"})
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "reminder not found"})
		return
	}

	var req reminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	reminder, err := h.store.Update(id, req.Title, req.Message, req.Frequency,
		req.CustomSchedule, req.ScheduledFor, req.NotificationChannel)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update reminder"})
		return
	}

	h.publish(reminder.CoupleID, feed.KindUpdate, reminder)

	writeJSON(w, http.StatusOK, reminder)
}

// Snooze handles POST /api/reminders/{id}/snooze
func (h *ReminderHandler) Snooze(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.store.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get reminder"})
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "reminder not found"})
		return
	}

	var req struct {
		Until time.Time `json:"until"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Until.IsZero() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "until is required"})
		return
	}

	reminder, err := h.store.Snooze(id, req.Until)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to snooze reminder"})
		return
	}

	h.publish(reminder.CoupleID, feed.KindUpdate, reminder)

	writeJSON(w, http.StatusOK, reminder)
}

// Delete handles DELETE /api/reminders/{id}
func (h *ReminderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.store.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get reminder"})
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "reminder not found"})
		return
	}

	if err := h.store.Delete(id); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete reminder"})
		return
	}

	h.publish(existing.CoupleID, feed.KindDelete, existing)

	w.WriteHeader(http.StatusNoContent)
}

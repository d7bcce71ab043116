package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/calebfife/tandem/internal/feed"
	"github.com/calebfife/tandem/internal/model"
	"github.com/calebfife/tandem/internal/store"
)

type CheckInHandler struct {
	store  *store.CheckInStore
	feed   *feed.Feed
	logger *slog.Logger
}

func NewCheckInHandler(s *store.CheckInStore, f *feed.Feed, logger *slog.Logger) *CheckInHandler {
	return &CheckInHandler{store: s, feed: f, logger: logger}
}

func (h *CheckInHandler) publish(coupleID int64, kind string, record any) {
	if h.feed != nil {
		h.feed.Publish(coupleID, feed.Event{Kind: kind, Collection: feed.CollectionCheckIns, Record: record})
	}
}

type checkInRequest struct {
	CoupleID  int64  `json:"couple_id"`
	PartnerID int64  `json:"partner_id"`
	Mood      int    `json:"mood"`
	Gratitude string `json:"gratitude"`
	Note      string `json:"note"`
	Private   bool   `json:"private"`
}

// Create handles POST /api/checkins
func (h *CheckInHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req checkInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	if req.CoupleID <= 0 || req.PartnerID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "couple_id and partner_id are required"})
		return
	}
	if req.Mood < 1 || req.Mood > 5 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "mood must be between 1 and 5"})
		return
	}

	checkin, err := h.store.Create(req.CoupleID, req.PartnerID, req.Mood, req.Gratitude, req.Note, req.Private)
	if err != nil {
		h.logger.Error("create checkin", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create check-in"})
		return
	}

	h.publish(checkin.CoupleID, feed.KindInsert, checkin)

	writeJSON(w, http.StatusCreated, checkin)
}

// List handles GET /api/checkins?couple_id=N
func (h *CheckInHandler) List(w http.ResponseWriter, r *http.Request) {
	coupleID, err := coupleIDQuery(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "couple_id is required"})
		return
	}

	checkins, err := h.store.ListByCouple(coupleID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list check-ins"})
		return
	}
	if checkins == nil {
		checkins = []model.CheckIn{}
	}
	writeJSON(w, http.StatusOK, checkins)
}

// Update handles PUT /api/checkins/{id}
func (h *CheckInHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.store.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get check-in"})
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "check-in not found"})
		return
	}

	var req checkInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.Mood < 1 || req.Mood > 5 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "mood must be between 1 and 5"})
		return
	}

	checkin, err := h.store.Update(id, req.Mood, req.Gratitude, req.Note, req.Private)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update check-in"})
		return
	}

	h.publish(checkin.CoupleID, feed.KindUpdate, checkin)

	writeJSON(w, http.StatusOK, checkin)
}

// Delete handles DELETE /api/checkins/{id}
func (h *CheckInHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.store.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get check-in"})
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "check-in not found"})
		return
	}

	if err := h.store.Delete(id); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete check-in"})
		return
	}

	h.publish(existing.CoupleID, feed.KindDelete, existing)

	w.WriteHeader(http.StatusNoContent)
}

func coupleIDQuery(q url.Values) (int64, error) {
	return strconv.ParseInt(q.Get("couple_id"), 10, 64)
}

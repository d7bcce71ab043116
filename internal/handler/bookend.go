package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/calebfife/tandem/internal/feed"
	"github.com/calebfife/tandem/internal/model"
	"github.com/calebfife/tandem/internal/store"
)

type BookendHandler struct {
	store  *store.BookendStore
	feed   *feed.Feed
	logger *slog.Logger
}

func NewBookendHandler(s *store.BookendStore, f *feed.Feed, logger *slog.Logger) *BookendHandler {
	return &BookendHandler{store: s, feed: f, logger: logger}
}

func (h *BookendHandler) publish(coupleID int64, kind string, record any) {
	if h.feed != nil {
		h.feed.Publish(coupleID, feed.Event{Kind: kind, Collection: feed.CollectionBookends, Record: record})
	}
}

type bookendRequest struct {
	CoupleID  int64  `json:"couple_id"`
	PartnerID int64  `json:"partner_id"`
	Kind      string `json:"kind"`
	Body      string `json:"body"`
	Day       string `json:"day"`
}

// Create handles POST /api/bookends
func (h *BookendHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req bookendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	if req.CoupleID <= 0 || req.PartnerID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "couple_id and partner_id are required"})
		return
	}
	if req.Kind != "morning" && req.Kind != "evening" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "kind must be morning or evening"})
		return
	}
	req.Body = strings.TrimSpace(req.Body)
	if req.Body == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body is required"})
		return
	}
	if req.Day == "" {
		req.Day = time.Now().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", req.Day); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "day must be YYYY-MM-DD"})
		return
	}

	bookend, err := h.store.Create(req.CoupleID, req.PartnerID, req.Kind, req.Body, req.Day)
	if err != nil {
		h.logger.Error("create bookend", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create bookend"})
		return
	}

	h.publish(bookend.CoupleID, feed.KindInsert, bookend)

	writeJSON(w, http.StatusCreated, bookend)
}

// List handles GET /api/bookends?couple_id=N
func (h *BookendHandler) List(w http.ResponseWriter, r *http.Request) {
	coupleID, err := coupleIDQuery(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "couple_id is required"})
		return
	}

	bookends, err := h.store.ListByCouple(coupleID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list bookends"})
		return
	}
	if bookends == nil {
		bookends = []model.Bookend{}
	}
	writeJSON(w, http.StatusOK, bookends)
}

// Update handles PUT /api/bookends/{id}
func (h *BookendHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.store.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get bookend"})
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "bookend not found"})
		return
	}

	var req bookendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	req.Body = strings.TrimSpace(req.Body)
	if req.Body == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body is required"})
		return
	}

	bookend, err := h.store.Update(id, req.Body)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update bookend"})
		return
	}

	h.publish(bookend.CoupleID, feed.KindUpdate, bookend)

	writeJSON(w, http.StatusOK, bookend)
}

// Delete handles DELETE /api/bookends/{id}
func (h *BookendHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.store.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get bookend"})
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "bookend not found"})
		return
	}

	if err := h.store.Delete(id); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete bookend"})
		return
	}

	h.publish(existing.CoupleID, feed.KindDelete, existing)

	w.WriteHeader(http.StatusNoContent)
}

package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/calebfife/tandem/internal/model"
	"github.com/calebfife/tandem/internal/store"
)

type CoupleHandler struct {
	coupleStore  *store.CoupleStore
	partnerStore *store.PartnerStore
	logger       *slog.Logger
}

func NewCoupleHandler(cs *store.CoupleStore, ps *store.PartnerStore, logger *slog.Logger) *CoupleHandler {
	return &CoupleHandler{coupleStore: cs, partnerStore: ps, logger: logger}
}

// Create handles POST /api/couples
func (h *CoupleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	couple, err := h.coupleStore.Create(req.Name)
	if err != nil {
		h.logger.Error("create couple", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create couple"})
		return
	}

	writeJSON(w, http.StatusCreated, couple)
}

// Get handles GET /api/couples/{id}
func (h *CoupleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	couple, err := h.coupleStore.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get couple"})
		return
	}
	if couple == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "couple not found"})
		return
	}

	partners, err := h.partnerStore.ListByCouple(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list partners"})
		return
	}
	if partners == nil {
		partners = []model.Partner{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"couple":   couple,
		"partners": partners,
	})
}

package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/calebfife/tandem/internal/model"
	"github.com/calebfife/tandem/internal/store"
)

type PartnerHandler struct {
	partnerStore *store.PartnerStore
	coupleStore  *store.CoupleStore
	logger       *slog.Logger
}

func NewPartnerHandler(ps *store.PartnerStore, cs *store.CoupleStore, logger *slog.Logger) *PartnerHandler {
	return &PartnerHandler{partnerStore: ps, coupleStore: cs, logger: logger}
}

type partnerRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	AvatarEmoji string `json:"avatar_emoji"`
}

// Create handles POST /api/couples/{id}/partners
func (h *PartnerHandler) Create(w http.ResponseWriter, r *http.Request) {
	coupleID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	couple, err := h.coupleStore.GetByID(coupleID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get couple"})
		return
	}
	if couple == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "couple not found"})
		return
	}

	var req partnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name and email are required"})
		return
	}
	if req.AvatarEmoji == "" {
		req.AvatarEmoji = "💙"
	}

	partner, err := h.partnerStore.Create(coupleID, req.Name, req.Email, req.AvatarEmoji)
	if err != nil {
		if strings.Contains(err.Error(), "two partners") {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "couple already has two partners"})
			return
		}
		h.logger.Error("create partner", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create partner"})
		return
	}

	writeJSON(w, http.StatusCreated, partner)
}

// List handles GET /api/couples/{id}/partners
func (h *PartnerHandler) List(w http.ResponseWriter, r *http.Request) {
	coupleID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	partners, err := h.partnerStore.ListByCouple(coupleID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list partners"})
		return
	}
	if partners == nil {
		partners = []model.Partner{}
	}
	writeJSON(w, http.StatusOK, partners)
}

// SetPIN handles PUT /api/partners/{id}/pin. An action of "clear" removes
// the PIN; otherwise the pin field must be exactly 4 digits.
func (h *PartnerHandler) SetPIN(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req struct {
		PIN    string `json:"pin"`
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	if req.Action == "clear" {
		if err := h.partnerStore.ClearPIN(id); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to clear PIN"})
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if len(req.PIN) != 4 || !isDigits(req.PIN) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "PIN must be exactly 4 digits"})
		return
	}

	if err := h.partnerStore.SetPIN(id, req.PIN); err != nil {
		h.logger.Error("set partner pin", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to set PIN"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// VerifyPIN handles POST /api/partners/{id}/pin/verify
func (h *PartnerHandler) VerifyPIN(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req struct {
		PIN string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	valid, err := h.partnerStore.VerifyPIN(id, req.PIN)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to verify PIN"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

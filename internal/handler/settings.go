package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/calebfife/tandem/internal/model"
	"github.com/calebfife/tandem/internal/negotiation"
	"github.com/calebfife/tandem/internal/store"
)

type SettingsHandler struct {
	settings   *store.SettingsStore
	negotiator *negotiation.Negotiator
	logger     *slog.Logger
}

func NewSettingsHandler(ss *store.SettingsStore, n *negotiation.Negotiator, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{settings: ss, negotiator: n, logger: logger}
}

// Get handles GET /api/couples/{id}/settings
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	coupleID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	settings, err := h.settings.GetByCouple(coupleID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get settings"})
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

type proposeRequest struct {
	PartnerID int64               `json:"partner_id"`
	Settings  model.SettingsPatch `json:"settings"`
}

// Propose handles POST /api/couples/{id}/proposals. While a proposal is
// pending, further proposals from either partner are rejected.
func (h *SettingsHandler) Propose(w http.ResponseWriter, r *http.Request) {
	coupleID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req proposeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.PartnerID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "partner_id is required"})
		return
	}

	proposal, err := h.negotiator.Propose(coupleID, req.PartnerID, req.Settings)
	switch {
	case errors.Is(err, negotiation.ErrEmptyProposal):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "proposal contains no changes"})
		return
	case errors.Is(err, negotiation.ErrProposalPending):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "a proposal is already pending"})
		return
	case err != nil:
		h.logger.Error("propose settings", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create proposal"})
		return
	}

	writeJSON(w, http.StatusCreated, proposal)
}

// Pending handles GET /api/couples/{id}/proposals/pending
func (h *SettingsHandler) Pending(w http.ResponseWriter, r *http.Request) {
	coupleID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	proposal, err := h.negotiator.Pending(coupleID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get pending proposal"})
		return
	}
	if proposal == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no pending proposal"})
		return
	}
	writeJSON(w, http.StatusOK, proposal)
}

type respondRequest struct {
	PartnerID int64 `json:"partner_id"`
	Accept    bool  `json:"accept"`
}

// Respond handles POST /api/proposals/{id}/respond. Only the non-proposing
// partner may resolve, and a proposal resolves at most once.
func (h *SettingsHandler) Respond(w http.ResponseWriter, r *http.Request) {
	proposalID := r.PathValue("id")
	if proposalID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req respondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.PartnerID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "partner_id is required"})
		return
	}

	proposal, err := h.negotiator.Respond(proposalID, req.PartnerID, req.Accept)
	switch {
	case errors.Is(err, negotiation.ErrNotPending):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "proposal is not pending"})
		return
	case errors.Is(err, negotiation.ErrSelfResponse):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "cannot respond to your own proposal"})
		return
	case err != nil:
		h.logger.Error("respond to proposal", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to resolve proposal"})
		return
	}

	writeJSON(w, http.StatusOK, proposal)
}

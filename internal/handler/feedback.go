package handler

import (
	"encoding/json"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/calebfife/tandem/internal/email"
	"github.com/calebfife/tandem/internal/store"
)

// maxWebhookBody caps the raw payload read for signature verification.
const maxWebhookBody = 1 << 20

// Feedback event types accepted from the email provider.
const (
	eventBounce    = "bounce"
	eventComplaint = "complaint"
)

type FeedbackHandler struct {
	suppressions  *store.SuppressionStore
	webhookSecret string
	now           func() time.Time
	logger        *slog.Logger
}

func NewFeedbackHandler(ss *store.SuppressionStore, webhookSecret string, logger *slog.Logger) *FeedbackHandler {
	return &FeedbackHandler{
		suppressions:  ss,
		webhookSecret: webhookSecret,
		now:           time.Now,
		logger:        logger,
	}
}

// SetNow overrides the clock. Test hook.
func (h *FeedbackHandler) SetNow(now func() time.Time) {
	h.now = now
}

type feedbackEvent struct {
	Type       string   `json:"type"`
	Recipients []string `json:"recipients"`
}

// Webhook handles POST /webhooks/email-events. The signature covers the raw
// request body; a payload that fails verification is rejected before any
// parsing and leaves no trace.
func (h *FeedbackHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read body"})
		return
	}

	timestamp := r.Header.Get(email.TimestampHeader)
	token := r.Header.Get(email.TokenHeader)
	signature := r.Header.Get(email.SignatureHeader)

	if !email.VerifySignature(h.webhookSecret, timestamp, token, signature, body) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
		return
	}

	var event feedbackEvent
	if err := json.Unmarshal(body, &event); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	var mark func(email string, at time.Time) error
	switch event.Type {
	case eventBounce:
		mark = h.suppressions.MarkBounced
	case eventComplaint:
		mark = h.suppressions.MarkComplained
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown event type"})
		return
	}

	now := h.now()
	recorded := 0
	for _, addr := range event.Recipients {
		if addr == "" {
			continue
		}
		if _, err := h.suppressions.Ensure(addr); err != nil {
			h.logger.Error("ensure suppression", "email", addr, "error", err)
			continue
		}
		if err := mark(addr, now); err != nil {
			h.logger.Error("record suppression", "email", addr, "type", event.Type, "error", err)
			continue
		}
		recorded++
	}

	writeJSON(w, http.StatusOK, map[string]int{"recorded": recorded})
}

var unsubscribeTmpl = template.Must(template.New("unsubscribe").Parse(`<!DOCTYPE html>
<html>
<head><title>Tandem</title></head>
<body>
<h1>{{.Heading}}</h1>
<p>{{.Message}}</p>
</body>
</html>
`))

type unsubscribePage struct {
	Heading string
	Message string
}

// Unsubscribe handles GET /unsubscribe/{token}. Redeeming a token records an
// opt-out; redeeming it again reports success without touching the original
// opt-out timestamp.
func (h *FeedbackHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	if uuid.Validate(token) != nil {
		h.renderUnsubscribe(w, http.StatusNotFound, unsubscribePage{
			Heading: "Invalid link",
			Message: "This unsubscribe link is not valid.",
		})
		return
	}

	sup, err := h.suppressions.GetByToken(token)
	if err != nil {
		h.logger.Error("lookup unsubscribe token", "error", err)
		h.renderUnsubscribe(w, http.StatusInternalServerError, unsubscribePage{
			Heading: "Something went wrong",
			Message: "Please try again later.",
		})
		return
	}
	if sup == nil {
		h.renderUnsubscribe(w, http.StatusNotFound, unsubscribePage{
			Heading: "Invalid link",
			Message: "This unsubscribe link is not valid.",
		})
		return
	}

	applied, err := h.suppressions.OptOut(sup.ID, h.now())
	if err != nil {
		h.logger.Error("record opt-out", "error", err)
		h.renderUnsubscribe(w, http.StatusInternalServerError, unsubscribePage{
			Heading: "Something went wrong",
			Message: "Please try again later.",
		})
		return
	}

	if !applied {
		h.renderUnsubscribe(w, http.StatusOK, unsubscribePage{
			Heading: "Already unsubscribed",
			Message: "You were already unsubscribed from reminder emails.",
		})
		return
	}

	h.renderUnsubscribe(w, http.StatusOK, unsubscribePage{
		Heading: "Unsubscribed",
		Message: "You will no longer receive reminder emails.",
	})
}

func (h *FeedbackHandler) renderUnsubscribe(w http.ResponseWriter, status int, page unsubscribePage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := unsubscribeTmpl.Execute(w, page); err != nil {
		h.logger.Error("render unsubscribe page", "error", err)
	}
}

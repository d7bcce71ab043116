package websocket

import (
	"log/slog"
	"net/http"
	"strconv"

	ws "github.com/coder/websocket"
)

// HandleWebSocket returns an HTTP handler that upgrades connections to
// WebSocket and joins them to the couple room named by the couple_id query
// parameter.
func HandleWebSocket(hub *Hub, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		coupleID, err := strconv.ParseInt(r.URL.Query().Get("couple_id"), 10, 64)
		if err != nil || coupleID <= 0 {
			http.Error(w, "couple_id is required", http.StatusBadRequest)
			return
		}

		conn, err := ws.Accept(w, r, nil)
		if err != nil {
			logger.Error("websocket accept", "error", err)
			return
		}

		client := NewClient(hub, conn, coupleID)
		client.Run(r.Context())
	}
}

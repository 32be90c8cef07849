package events

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// TokenValidator resolves a session token to its session id.
type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

type Handler struct {
	hub            *Hub
	auth           TokenValidator
	originPatterns []string
}

// NewHandler accepts allowed origins as full URLs ("http://localhost:5173")
// and converts them to the host patterns websocket.Accept expects.
func NewHandler(hub *Hub, auth TokenValidator, allowedOrigins []string) *Handler {
	patterns := make([]string, 0, len(allowedOrigins))
	for _, o := range allowedOrigins {
		o = strings.TrimSpace(o)
		o = strings.TrimPrefix(o, "https://")
		o = strings.TrimPrefix(o, "http://")
		if o != "" {
			patterns = append(patterns, o)
		}
	}
	return &Handler{hub: hub, auth: auth, originPatterns: patterns}
}

// ServeWS handles GET /ws?token=...&mode=watch. mode is optional. Browsers cannot set headers on websocket
// requests, so the session token travels in the query string.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	sessionID, err := h.auth.ValidateToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		return
	}

	client := NewClient(h.hub, conn, sessionID, uuid.New().String())
	client.watchOnly = r.URL.Query().Get("mode") == "watch"
	h.hub.Register(client)

	client.Serve(r.Context())
}

package websocket

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler upgrades GET /programs/{id}/notifications requests and attaches
// the resulting connection to the Hub as a client scoped to that program.
type Handler struct {
	hub  *Hub
	auth Authenticator
}

// NewHandler builds a notification-socket handler. auth may be
// AnonymousAuth{} when no agent identity is required.
func NewHandler(hub *Hub, auth Authenticator) *Handler {
	return &Handler{hub: hub, auth: auth}
}

// Upgrade handles the upgrade for programID, identified by the caller from
// the request path (the {id} path segment).
func (h *Handler) Upgrade(w http.ResponseWriter, r *http.Request, programID string) {
	agentID, _ := h.auth.Authenticate(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Str("remote_addr", r.RemoteAddr).Msg("notification socket upgrade failed")
		return
	}

	clientID := uuid.New().String()
	client := NewClient(clientID, programID, agentID, h.hub, conn)

	log.Info().Str("client_id", clientID).Str("program_id", programID).Str("agent_id", agentID).Msg("notification client connected")

	h.hub.register <- client
	go client.writePump()
	go client.readPump()
}

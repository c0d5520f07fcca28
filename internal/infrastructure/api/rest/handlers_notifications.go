package rest

import (
	"net/http"

	"lmlang/internal/infrastructure/websocket"
)

// handleNotifications implements GET /programs/{id}/notifications: upgrades
// to a server-push websocket of flush reports and contract violations for
// one program (SPEC_FULL.md §4.6/§6, A4). The program need not already be
// loaded in memory; a watcher may connect before the first mutation.
func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeError(w, http.StatusNotImplemented, "not_implemented", "notifications are not enabled on this server")
		return
	}
	programID := r.PathValue("id")
	auth := websocket.Authenticator(websocket.AnonymousAuth{})
	if s.registry != nil {
		auth = websocket.NewRegistryAuth(s.registry)
	}
	websocket.NewHandler(s.hub, auth).Upgrade(w, r, programID)
}

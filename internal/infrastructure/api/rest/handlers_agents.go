package rest

import (
	"net/http"

	derr "lmlang/internal/domain/errors"
)

type registerAgentRequest struct {
	ID             string         `json:"id"`
	DisplayName    string         `json:"display_name"`
	ProviderConfig map[string]any `json:"provider_config,omitempty"`
}

type registerAgentResponse struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

// handleRegisterAgent implements POST /agents/register (spec.md §4.9): a
// process-wide route, not scoped under any one program, since the
// concurrency registry and its lock table span every program.
func (s *Server) handleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		writeAppError(w, &derr.BadRequest{Message: "no concurrency registry configured"})
		return
	}
	var req registerAgentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	token, err := s.registry.Register(r.Context(), req.ID, req.DisplayName, req.ProviderConfig)
	if err != nil {
		writeAppError(w, derr.NewInternal(err))
		return
	}
	writeJSON(w, http.StatusCreated, registerAgentResponse{ID: req.ID, Token: token})
}

// handleListAgents implements GET /agents.
func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, s.registry.Agents())
}

// handleDeregisterAgent implements DELETE /agents/{agent_id}.
func (s *Server) handleDeregisterAgent(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		writeAppError(w, &derr.BadRequest{Message: "no concurrency registry configured"})
		return
	}
	id := r.PathValue("agent_id")
	if err := s.registry.Deregister(r.Context(), id); err != nil {
		writeAppError(w, derr.NewInternal(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deregistered"})
}

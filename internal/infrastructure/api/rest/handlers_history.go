package rest

import (
	"net/http"
	"time"

	derr "lmlang/internal/domain/errors"
)

// handleUndo implements POST /programs/{id}/undo.
func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	programID := r.PathValue("id")
	p, err := s.getProgram(r.Context(), programID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	resp, err := p.mutSvc.Undo(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	p.refreshQuery()
	if err := s.persist(r.Context(), programID, p); err != nil {
		writeAppError(w, derr.NewInternal(err))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRedo implements POST /programs/{id}/redo.
func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	programID := r.PathValue("id")
	p, err := s.getProgram(r.Context(), programID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	resp, err := p.mutSvc.Redo(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	p.refreshQuery()
	if err := s.persist(r.Context(), programID, p); err != nil {
		writeAppError(w, derr.NewInternal(err))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleHistory implements GET /programs/{id}/history.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	p, err := s.getProgram(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p.mutSvc.History())
}

type createCheckpointRequest struct {
	Name string `json:"name"`
}

// handleCreateCheckpoint implements POST /programs/{id}/checkpoints: names
// and persists a full snapshot of the program's current state.
func (s *Server) handleCreateCheckpoint(w http.ResponseWriter, r *http.Request) {
	programID := r.PathValue("id")
	p, err := s.getProgram(r.Context(), programID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	var req createCheckpointRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	if req.Name == "" {
		writeAppError(w, &derr.BadRequest{Message: "checkpoint name must not be empty"})
		return
	}
	cp := p.mutSvc.Checkpoint(req.Name)
	if err := s.store.SaveCheckpoint(r.Context(), cp); err != nil {
		writeAppError(w, derr.NewInternal(err))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"name": cp.Name, "created_at": time.Unix(0, cp.CreatedAt).UTC()})
}

// handleRestoreCheckpoint implements
// POST /programs/{id}/checkpoints/{name}/restore.
func (s *Server) handleRestoreCheckpoint(w http.ResponseWriter, r *http.Request) {
	programID := r.PathValue("id")
	p, err := s.getProgram(r.Context(), programID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	name := r.PathValue("name")
	cp, err := s.store.LoadCheckpoint(r.Context(), programID, name)
	if err != nil {
		writeAppError(w, &derr.NotFound{Kind: "checkpoint", ID: name})
		return
	}
	if err := p.mutSvc.RestoreCheckpoint(r.Context(), cp); err != nil {
		writeAppError(w, err)
		return
	}
	p.refreshQuery()
	if err := s.persist(r.Context(), programID, p); err != nil {
		writeAppError(w, derr.NewInternal(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "restored"})
}

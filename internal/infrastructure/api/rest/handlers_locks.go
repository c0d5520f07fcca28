package rest

import (
	"net/http"

	"lmlang/internal/domain"
	derr "lmlang/internal/domain/errors"
)

// handleLocks implements GET /programs/{id}/locks: a point-in-time view of
// the global structure lock and every held function lock (spec.md §4.9).
// The lock table itself is process-wide, not per-program; the path's
// program id is accepted for route symmetry but does not filter the view,
// since a function id already uniquely determines its owning program in
// this deployment's intended single-registry-per-process topology.
func (s *Server) handleLocks(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		writeJSON(w, http.StatusOK, map[string]any{"structure_holder": "", "function_locks": map[string]string{}})
		return
	}
	snap := s.registry.Locks()
	writeJSON(w, http.StatusOK, snap)
}

type lockRequest struct {
	FunctionID *domain.FunctionId `json:"function_id,omitempty"`
	Structure  bool               `json:"structure,omitempty"`
}

// handleLockAcquire implements POST /programs/{id}/locks/acquire: acquires
// either a single function's body-write lock or the global structure lock
// (spec.md §4.9), depending on which field the body sets.
func (s *Server) handleLockAcquire(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		writeAppError(w, &derr.BadRequest{Message: "no concurrency registry configured"})
		return
	}
	agentID, hasAgent, err := resolveAgent(s.registry, r)
	if err != nil || !hasAgent {
		writeAppError(w, &derr.BadRequest{Message: "locks require a registered agent identity"})
		return
	}

	var req lockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, err)
		return
	}

	if req.Structure {
		if conflict := s.registry.AcquireStructureLock(agentID); conflict != nil {
			writeAppError(w, conflict)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "acquired", "kind": "structure"})
		return
	}
	if req.FunctionID == nil {
		writeAppError(w, &derr.BadRequest{Message: "function_id or structure must be set"})
		return
	}
	if conflict := s.registry.AcquireFunctionLock(*req.FunctionID, agentID); conflict != nil {
		writeAppError(w, conflict)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "acquired", "kind": "function"})
}

// handleLockRelease implements POST /programs/{id}/locks/release.
func (s *Server) handleLockRelease(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		writeAppError(w, &derr.BadRequest{Message: "no concurrency registry configured"})
		return
	}
	agentID, hasAgent, err := resolveAgent(s.registry, r)
	if err != nil || !hasAgent {
		writeAppError(w, &derr.BadRequest{Message: "locks require a registered agent identity"})
		return
	}

	var req lockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, err)
		return
	}

	if req.Structure {
		s.registry.ReleaseStructureLock(agentID)
	} else if req.FunctionID != nil {
		s.registry.ReleaseFunctionLock(*req.FunctionID, agentID)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "released"})
}

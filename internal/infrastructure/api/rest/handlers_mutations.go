package rest

import (
	"encoding/hex"
	"net/http"

	"lmlang/internal/application/mutation"
	"lmlang/internal/domain"
	derr "lmlang/internal/domain/errors"
	"lmlang/internal/hashing"
	"lmlang/internal/typecheck"
)

type proposeRequest struct {
	Mutations      []mutation.EditCommand `json:"mutations"`
	DryRun         bool                   `json:"dry_run"`
	ExpectedHashes map[string]string      `json:"expected_hashes,omitempty"` // function id -> hex-encoded hash
}

func decodeExpectedHashes(raw map[string]string) (map[domain.FunctionId]hashing.Hash, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[domain.FunctionId]hashing.Hash, len(raw))
	for fidStr, hexHash := range raw {
		fid, err := parseUint64(fidStr)
		if err != nil {
			return nil, &derr.BadRequest{Message: "invalid function id in expected_hashes: " + fidStr}
		}
		b, err := hex.DecodeString(hexHash)
		if err != nil || len(b) != len(hashing.Hash{}) {
			return nil, &derr.BadRequest{Message: "invalid hash in expected_hashes for function " + fidStr}
		}
		var h hashing.Hash
		copy(h[:], b)
		out[domain.FunctionId(fid)] = h
	}
	return out, nil
}

// handlePropose implements POST /programs/{id}/mutations, the single public
// entry point through which every change to a program flows.
func (s *Server) handlePropose(w http.ResponseWriter, r *http.Request) {
	programID := r.PathValue("id")
	p, err := s.getProgram(r.Context(), programID)
	if err != nil {
		writeAppError(w, err)
		return
	}

	var req proposeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	expected, err := decodeExpectedHashes(req.ExpectedHashes)
	if err != nil {
		writeAppError(w, err)
		return
	}

	agentID, hasAgent, err := resolveAgent(s.registry, r)
	if err != nil {
		writeAppError(w, err)
		return
	}

	resp, err := p.mutSvc.Propose(r.Context(), mutation.ProposeEditRequest{
		Mutations:      req.Mutations,
		DryRun:         req.DryRun,
		AgentID:        agentID,
		HasAgent:       hasAgent,
		ExpectedHashes: expected,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	if resp.Conflict != nil {
		writeAppError(w, resp.Conflict)
		return
	}

	if resp.Committed && !req.DryRun {
		p.refreshQuery()
		if err := s.persist(r.Context(), programID, p); err != nil {
			writeAppError(w, derr.NewInternal(err))
			return
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

type verifyResponse struct {
	Diagnostics []derr.Diagnostic `json:"diagnostics"`
}

// handleVerify implements POST /programs/{id}/verify: runs the typechecker
// over every function named in the body, or every function in the program
// when none are named (spec.md §4.3).
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	p, err := s.getProgram(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAppError(w, err)
		return
	}

	var req struct {
		FunctionIDs []domain.FunctionId `json:"function_ids,omitempty"`
	}
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeAppError(w, err)
			return
		}
	}

	g := p.mutSvc.Graph()
	targets := req.FunctionIDs
	if len(targets) == 0 {
		for fid := range g.Functions {
			targets = append(targets, fid)
		}
	}

	var diags []derr.Diagnostic
	for _, fid := range targets {
		diags = append(diags, typecheck.ValidateGraph(g, fid)...)
	}
	writeJSON(w, http.StatusOK, verifyResponse{Diagnostics: diags})
}

// handleFlush implements POST /programs/{id}/verify/flush: drains the
// propagation queue on demand. Commits only enqueue events; this route is
// the only one that flushes them.
func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	programID := r.PathValue("id")
	p, err := s.getProgram(r.Context(), programID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	report := s.flush(r.Context(), programID, p)
	if err := s.persist(r.Context(), programID, p); err != nil {
		writeAppError(w, derr.NewInternal(err))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

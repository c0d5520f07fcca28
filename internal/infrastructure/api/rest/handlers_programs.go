package rest

import (
	"net/http"
	"strconv"

	"lmlang/internal/domain"
	derr "lmlang/internal/domain/errors"
	"lmlang/internal/query"
	"lmlang/internal/utils"
)

type createProgramRequest struct {
	Name string `json:"name"`
}

type createProgramResponse struct {
	ProgramID string `json:"program_id"`
}

// handleCreateProgram implements POST /programs: allocate a fresh program
// id in the store and register its services so the first query against it
// doesn't pay a LoadProgram round trip.
func (s *Server) handleCreateProgram(w http.ResponseWriter, r *http.Request) {
	var req createProgramRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, err)
		return
	}

	id, err := s.store.CreateProgram(r.Context(), req.Name)
	if err != nil {
		writeAppError(w, derr.NewInternal(err))
		return
	}

	g := domain.NewProgramGraph(id)
	p := newProgram(g)
	if s.registry != nil {
		p.mutSvc.WithLocks(s.registry)
	}

	if err := s.persist(r.Context(), id, p); err != nil {
		writeAppError(w, derr.NewInternal(err))
		return
	}

	s.mu.Lock()
	s.programs[id] = p
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, createProgramResponse{ProgramID: id})
}

func (s *Server) handleProgramOverview(w http.ResponseWriter, r *http.Request) {
	p, err := s.getProgram(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p.querySvc.ProgramOverview())
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	p, err := s.getProgram(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	nodeID, err := parseUint64(r.PathValue("node_id"))
	if err != nil {
		writeAppError(w, &derr.BadRequest{Message: "invalid node_id"})
		return
	}
	view, qErr := p.querySvc.GetNode(domain.NodeId(nodeID), detailLevel(r))
	if qErr != nil {
		writeAppError(w, qErr)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleGetFunctionContext(w http.ResponseWriter, r *http.Request) {
	p, err := s.getProgram(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	fid, err := parseUint64(r.PathValue("fid"))
	if err != nil {
		writeAppError(w, &derr.BadRequest{Message: "invalid fid"})
		return
	}
	view, qErr := p.querySvc.GetFunctionContext(domain.FunctionId(fid), detailLevel(r))
	if qErr != nil {
		writeAppError(w, qErr)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type neighborhoodRequest struct {
	Root   domain.NodeId     `json:"root"`
	Hops   int               `json:"hops"`
	Detail query.DetailLevel `json:"detail,omitempty"`
}

func (s *Server) handleNeighborhood(w http.ResponseWriter, r *http.Request) {
	p, err := s.getProgram(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	var req neighborhoodRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	detail := utils.DefaultValue(req.Detail, query.DetailStandard)
	view, qErr := p.querySvc.GetNeighborhood(req.Root, req.Hops, detail)
	if qErr != nil {
		writeAppError(w, qErr)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type searchRequest struct {
	Filter string            `json:"filter"`
	Detail query.DetailLevel `json:"detail,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	p, err := s.getProgram(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	detail := utils.DefaultValue(req.Detail, query.DetailStandard)
	views, qErr := p.querySvc.SearchNodes(req.Filter, detail)
	if qErr != nil {
		writeAppError(w, qErr)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleSemantic(w http.ResponseWriter, r *http.Request) {
	p, err := s.getProgram(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	includeEmbeddings := r.URL.Query().Get("include_embeddings") == "true"
	writeJSON(w, http.StatusOK, p.querySvc.Semantic(includeEmbeddings))
}

func detailLevel(r *http.Request) query.DetailLevel {
	switch query.DetailLevel(r.URL.Query().Get("detail")) {
	case query.DetailSummary:
		return query.DetailSummary
	case query.DetailFull:
		return query.DetailFull
	default:
		return query.DetailStandard
	}
}

func parseUint64(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

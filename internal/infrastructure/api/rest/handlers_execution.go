package rest

import (
	"net/http"

	"lmlang/internal/application/contract"
	"lmlang/internal/domain"
	derr "lmlang/internal/domain/errors"
	"lmlang/internal/infrastructure/websocket"
	"lmlang/internal/interpreter"
)

type simulateRequest struct {
	FunctionID domain.FunctionId   `json:"function_id"`
	Args       []interpreter.Value `json:"args"`
	StepBudget int                 `json:"step_budget,omitempty"`
	TraceCap   int                 `json:"trace_cap,omitempty"`
}

type simulateResponse struct {
	Status interpreter.Status       `json:"status"`
	Value  interpreter.Value        `json:"value,omitempty"`
	Error  string                   `json:"error,omitempty"`
	Trace  []interpreter.TraceEntry `json:"trace"`
	Steps  int                      `json:"steps"`
}

// handleSimulate implements POST /programs/{id}/simulate: runs one
// interpreter call to completion, violation, failure, or step exhaustion
// (spec.md §4.2).
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	programID := r.PathValue("id")
	p, err := s.getProgram(r.Context(), programID)
	if err != nil {
		writeAppError(w, err)
		return
	}

	var req simulateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, err)
		return
	}

	it, err := interpreter.New(p.mutSvc.Graph(), req.FunctionID, req.Args, interpreter.Options{
		StepBudget: req.StepBudget,
		TraceCap:   req.TraceCap,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	result := it.Run()

	resp := simulateResponse{Status: result.Status, Value: result.Value, Trace: result.Trace, Steps: result.Steps}
	if result.Err != nil {
		resp.Error = result.Err.Error()
	}
	if result.Status == interpreter.StatusContractViolation && result.Violation != nil {
		if s.hub != nil {
			websocket.PublishContractViolation(s.hub, programID, uint64(req.FunctionID), *result.Violation, "simulate")
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type propertyTestRequest struct {
	FunctionID  domain.FunctionId     `json:"function_id"`
	Seeds       [][]interpreter.Value `json:"seeds,omitempty"`
	RandomCount int                   `json:"random_count,omitempty"`
	RandomSeed  uint64                `json:"random_seed,omitempty"`
}

type failureView struct {
	Source   string              `json:"source"`
	Index    int                 `json:"index"`
	Input    []interpreter.Value `json:"input"`
	Status   interpreter.Status  `json:"status"`
	Contract *derr.ContractInfo  `json:"contract,omitempty"`
	Err      string              `json:"error,omitempty"`
}

type propertyTestResponse struct {
	FunctionID domain.FunctionId `json:"function_id"`
	SeedRuns   int               `json:"seed_runs"`
	RandomRuns int               `json:"random_runs"`
	Failures   []failureView     `json:"failures"`
}

// handlePropertyTest implements POST /programs/{id}/property-test
// (spec.md §4.7). Failure.Err is a plain error interface with no exported
// fields on its concrete type, so it is flattened to a string here rather
// than left to default JSON encoding, which would marshal it as "{}".
func (s *Server) handlePropertyTest(w http.ResponseWriter, r *http.Request) {
	programID := r.PathValue("id")
	p, err := s.getProgram(r.Context(), programID)
	if err != nil {
		writeAppError(w, err)
		return
	}

	var req propertyTestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, err)
		return
	}

	report, err := s.runPropertyTest(p.mutSvc.Graph(), contract.Request{
		FunctionID:  req.FunctionID,
		Seeds:       req.Seeds,
		RandomCount: req.RandomCount,
		RandomSeed:  req.RandomSeed,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}

	resp := propertyTestResponse{FunctionID: report.FunctionID, SeedRuns: report.SeedRuns, RandomRuns: report.RandomRuns}
	for _, f := range report.Failures {
		fv := failureView{Source: f.Source, Index: f.Index, Input: f.Input, Status: f.Status, Contract: f.Contract}
		if f.Err != nil {
			fv.Err = f.Err.Error()
		}
		resp.Failures = append(resp.Failures, fv)
		if f.Contract != nil && s.hub != nil {
			websocket.PublishContractViolation(s.hub, programID, uint64(req.FunctionID), *f.Contract, "property_test")
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCompile implements POST /programs/{id}/compile as a stub: lowering
// a verified function graph to LLVM IR is explicitly out of scope, handled
// by an external collaborator process that consumes this service's query
// projections instead of living inside it.
func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotImplemented, "not_implemented", "LLVM lowering is an external collaborator, not part of this service")
}

// Package rest implements the HTTP surface: one route per operation across
// the mutation service, query projections, interpreter, contract tester,
// propagation engine, concurrency registry, and storage adapter, plus the
// additive health check and notification socket upgrade. Built around
// net/http.ServeMux's Go 1.22+ method-and-path routing patterns.
package rest

import (
	"context"
	"net/http"
	"sync"
	"time"

	"lmlang/internal/application/contract"
	"lmlang/internal/application/mutation"
	"lmlang/internal/application/propagation"
	"lmlang/internal/concurrency"
	"lmlang/internal/domain"
	derr "lmlang/internal/domain/errors"
	"lmlang/internal/infrastructure/embedding"
	"lmlang/internal/infrastructure/websocket"
	"lmlang/internal/query"
)

// program bundles every per-ProgramGraph service so a single request
// handler can reach mutation, query, and propagation without re-deriving
// them from the graph each time.
type program struct {
	mu sync.Mutex // serializes flush/commit interleaving for this program

	graph    *domain.ProgramGraph
	mutSvc   *mutation.Service
	engine   *propagation.Engine
	querySvc *query.Service
}

// ServerConfig configures cross-cutting HTTP concerns.
type ServerConfig struct {
	EnableCORS bool
}

// Server is the root http.Handler, holding one GraphStore-backed instance
// per active program id plus the process-wide concurrency registry and
// notification hub (both span every program, matching the route table's
// program-scoped locks/mutations routes alongside program-agnostic
// /agents routes).
type Server struct {
	store     domain.GraphStore
	registry  *concurrency.Registry
	hub       *websocket.Hub
	refresher embedding.Provider
	cfg       ServerConfig

	mux *http.ServeMux

	mu       sync.RWMutex
	programs map[string]*program
}

// NewServer wires a Server. refresher may be nil, in which case embeddings
// are left dirty indefinitely (never an error, spec.md §9).
func NewServer(store domain.GraphStore, registry *concurrency.Registry, hub *websocket.Hub, refresher embedding.Provider, cfg ServerConfig) *Server {
	s := &Server{
		store:     store,
		registry:  registry,
		hub:       hub,
		refresher: refresher,
		cfg:       cfg,
		mux:       http.NewServeMux(),
		programs:  make(map[string]*program),
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	handler := http.Handler(s.mux)
	handler = recoveryMiddleware(handler)
	handler = loggingMiddleware(handler)
	if s.cfg.EnableCORS {
		handler = corsMiddleware(handler)
	}
	handler.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)

	s.mux.HandleFunc("POST /programs", s.handleCreateProgram)
	s.mux.HandleFunc("GET /programs/{id}", s.handleProgramOverview)
	s.mux.HandleFunc("POST /programs/{id}/mutations", s.handlePropose)
	s.mux.HandleFunc("GET /programs/{id}/nodes/{node_id}", s.handleGetNode)
	s.mux.HandleFunc("GET /programs/{id}/functions/{fid}", s.handleGetFunctionContext)
	s.mux.HandleFunc("POST /programs/{id}/neighborhood", s.handleNeighborhood)
	s.mux.HandleFunc("POST /programs/{id}/search", s.handleSearch)
	s.mux.HandleFunc("GET /programs/{id}/semantic", s.handleSemantic)

	s.mux.HandleFunc("POST /programs/{id}/verify", s.handleVerify)
	s.mux.HandleFunc("POST /programs/{id}/verify/flush", s.handleFlush)

	s.mux.HandleFunc("POST /programs/{id}/simulate", s.handleSimulate)
	s.mux.HandleFunc("POST /programs/{id}/property-test", s.handlePropertyTest)
	s.mux.HandleFunc("POST /programs/{id}/compile", s.handleCompile)

	s.mux.HandleFunc("POST /programs/{id}/undo", s.handleUndo)
	s.mux.HandleFunc("POST /programs/{id}/redo", s.handleRedo)
	s.mux.HandleFunc("POST /programs/{id}/checkpoints", s.handleCreateCheckpoint)
	s.mux.HandleFunc("POST /programs/{id}/checkpoints/{name}/restore", s.handleRestoreCheckpoint)
	s.mux.HandleFunc("GET /programs/{id}/history", s.handleHistory)

	s.mux.HandleFunc("GET /programs/{id}/locks", s.handleLocks)
	s.mux.HandleFunc("POST /programs/{id}/locks/acquire", s.handleLockAcquire)
	s.mux.HandleFunc("POST /programs/{id}/locks/release", s.handleLockRelease)

	s.mux.HandleFunc("GET /agents", s.handleListAgents)
	s.mux.HandleFunc("POST /agents/register", s.handleRegisterAgent)
	s.mux.HandleFunc("DELETE /agents/{agent_id}", s.handleDeregisterAgent)

	s.mux.HandleFunc("GET /programs/{id}/notifications", s.handleNotifications)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getProgram returns the in-memory bundle for programID, loading it from
// the store on first access — lazily, since the store is the durable
// source of truth and the in-memory map is only a cache of live services.
func (s *Server) getProgram(ctx context.Context, id string) (*program, error) {
	s.mu.RLock()
	p, ok := s.programs[id]
	s.mu.RUnlock()
	if ok {
		return p, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.programs[id]; ok {
		return p, nil
	}

	dp, err := s.store.LoadProgram(ctx, id)
	if err != nil {
		return nil, &derr.NotFound{Kind: "program", ID: id}
	}
	g := domain.Recompose(dp)
	p = newProgram(g)
	if s.registry != nil {
		p.mutSvc.WithLocks(s.registry)
	}
	s.programs[id] = p
	return p, nil
}

func newProgram(g *domain.ProgramGraph) *program {
	return &program{
		graph:    g,
		mutSvc:   mutation.NewService(g),
		engine:   propagation.NewEngine(),
		querySvc: query.NewService(g),
	}
}

// refreshQuery rebuilds p.graph and p.querySvc from the mutation service's
// current graph pointer. Propose/Undo/Redo/RestoreCheckpoint all swap
// mutSvc's graph to a fresh clone on success (mutation.Service.commit's
// s.g = work), so p.querySvc — built once over the old pointer — would
// otherwise keep serving pre-mutation reads for the life of the cached
// program. Call this after every such swap, before the response is written.
func (p *program) refreshQuery() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.graph = p.mutSvc.Graph()
	p.querySvc = query.NewService(p.graph)
}

// flush drains p's propagation queue and, if the server has a notification
// hub, publishes the resulting report. Locking p.mu keeps a flush from
// interleaving with a concurrent commit against the same graph pointer.
func (s *Server) flush(ctx context.Context, programID string, p *program) propagation.FlushReport {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s.refresher != nil {
		p.engine.WithEmbeddingRefresher(s.refresher)
	}
	report := p.engine.Flush(ctx, p.mutSvc.Graph())
	if s.hub != nil {
		websocket.PublishFlushReport(s.hub, programID, report)
	}
	return report
}

func (s *Server) runPropertyTest(g *domain.ProgramGraph, req contract.Request) (contract.Report, error) {
	return contract.Run(g, req)
}

// persist saves programID's current graph to the store, called after every
// commit so the durable backend never lags the in-memory working copy by
// more than one request.
func (s *Server) persist(ctx context.Context, programID string, p *program) error {
	return s.store.SaveProgram(ctx, programID, domain.Decompose(p.mutSvc.Graph()))
}

const defaultRequestTimeout = 30 * time.Second

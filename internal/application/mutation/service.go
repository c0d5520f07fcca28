package mutation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"lmlang/internal/domain"
	derr "lmlang/internal/domain/errors"
	"lmlang/internal/hashing"
	"lmlang/internal/typecheck"
)

// tracer spans every commit and checkpoint restore with function ids and
// mutation counts. With no TracerProvider registered, otel.Tracer returns a
// no-op tracer, so this package never requires tracing infrastructure to be
// configured to function.
var tracer = otel.Tracer("lmlang/internal/application/mutation")

// ProposeEditRequest is the single public entry point's input (spec.md
// §4.4). Every request, whether it carries one mutation or many, takes the
// same path: apply them all to a clone, validate, and commit all or none.
type ProposeEditRequest struct {
	Mutations      []EditCommand
	DryRun         bool
	AgentID        string
	HasAgent       bool
	ExpectedHashes map[domain.FunctionId]hashing.Hash // optimistic concurrency, spec.md §4.9
}

// ProposeEditResponse reports the outcome of a propose call.
type ProposeEditResponse struct {
	Committed   bool
	Created     []CreatedEntity
	Diagnostics []derr.Diagnostic
	FailedIndex int // index of the failing mutation within the batch, -1 if none
	Conflict    *derr.ConflictWithDetails
}

// Service owns a single ProgramGraph and is the sole path through which it
// is mutated: every commit appends to an append-only edit log and clears
// the redo tail, giving undo/redo and named checkpoints a single source of
// truth (spec.md §4.4/§4.5).
type Service struct {
	mu sync.Mutex

	g     *domain.ProgramGraph
	seq   int64
	log   []domain.EditLogEntry
	redo  []domain.EditLogEntry // popped-by-undo entries available to Redo, cleared by any new commit
	locks LockChecker
}

// LockChecker is the concurrency registry's write-gating surface (spec.md
// §4.9): satisfied by *concurrency.Registry without this package importing
// it directly, since mutation only needs to ask "is this write allowed",
// never to manage the lock table itself.
type LockChecker interface {
	CheckFunctionWrite(fid domain.FunctionId, agentID string, hasAgent bool) *derr.ConflictWithDetails
	CheckStructureWrite(agentID string, hasAgent bool) *derr.ConflictWithDetails
}

// NewService wraps an existing program graph for mutation.
func NewService(g *domain.ProgramGraph) *Service {
	return &Service{g: g}
}

// WithLocks attaches a concurrency registry so Propose enforces body-write
// and structure locks. Optional: a Service with no registry applies the
// non-agent (single-writer) path to every request.
func (s *Service) WithLocks(locks LockChecker) *Service {
	s.locks = locks
	return s
}

// Graph returns the live graph, for read-only use by query/interpreter
// callers. Mutating it directly instead of through Propose bypasses the
// edit log and is the caller's mistake to avoid.
func (s *Service) Graph() *domain.ProgramGraph { return s.g }

// Propose validates, optionally commits, and logs a mutation batch.
func (s *Service) Propose(ctx context.Context, req ProposeEditRequest) (ProposeEditResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(req.Mutations) == 0 {
		return ProposeEditResponse{}, &derr.BadRequest{Message: "propose: no mutations supplied"}
	}

	if conflict := s.checkExpectedHashes(req.ExpectedHashes); conflict != nil {
		return ProposeEditResponse{Conflict: conflict}, nil
	}

	if conflict := s.checkLocks(req); conflict != nil {
		return ProposeEditResponse{Conflict: conflict}, nil
	}

	work := cloneGraph(s.g)
	created := make([]CreatedEntity, 0, len(req.Mutations))
	inverses := make([]EditCommand, 0, len(req.Mutations))
	var allDiags []derr.Diagnostic

	for i, cmd := range req.Mutations {
		entity, inverse, diags, err := applyOne(work, cmd)
		allDiags = append(allDiags, diags...)
		if err != nil {
			return ProposeEditResponse{
				Committed:   false,
				Diagnostics: allDiags,
				FailedIndex: i,
			}, nil
		}
		created = append(created, entity)
		inverses = append(inverses, inverse)
	}

	for _, fid := range AffectedFunctions(req.Mutations) {
		graphDiags := typecheck.ValidateGraph(work, fid)
		allDiags = append(allDiags, graphDiags...)
		if len(typecheck.Errors(graphDiags)) > 0 {
			return ProposeEditResponse{
				Committed:   false,
				Diagnostics: allDiags,
				FailedIndex: -1,
			}, nil
		}
	}

	if req.DryRun {
		return ProposeEditResponse{Committed: false, Created: created, Diagnostics: allDiags, FailedIndex: -1}, nil
	}

	s.commit(ctx, work, req.Mutations, inverses, req.AgentID, req.HasAgent)
	return ProposeEditResponse{Committed: true, Created: created, Diagnostics: allDiags, FailedIndex: -1}, nil
}

func (s *Service) checkExpectedHashes(expected map[domain.FunctionId]hashing.Hash) *derr.ConflictWithDetails {
	if len(expected) == 0 {
		return nil
	}
	h := hashing.New(s.g)
	for fid, want := range expected {
		got, ok := h.HashFunction(fid)
		if !ok || got != want {
			return &derr.ConflictWithDetails{
				ConflictKind: "hash_mismatch",
				FunctionID:   fmt.Sprint(fid),
				ExpectedHash: want.String(),
				ActualHash:   got.String(),
			}
		}
	}
	return nil
}

// checkLocks enforces the structure lock for any structural mutation in the
// batch and the per-function body-write lock for every function the batch
// touches (spec.md §4.9). A Service with no attached registry always
// applies the non-agent path.
func (s *Service) checkLocks(req ProposeEditRequest) *derr.ConflictWithDetails {
	if s.locks == nil {
		return nil
	}
	for _, cmd := range req.Mutations {
		if cmd.IsStructural() {
			if c := s.locks.CheckStructureWrite(req.AgentID, req.HasAgent); c != nil {
				return c
			}
			break
		}
	}
	for _, fid := range AffectedFunctions(req.Mutations) {
		if c := s.locks.CheckFunctionWrite(fid, req.AgentID, req.HasAgent); c != nil {
			return c
		}
	}
	return nil
}

// cloneGraph produces an independent working copy via the same
// Decompose/Recompose round-trip storage uses, so a rejected batch never
// touches the live graph (spec.md §4.4's "clone the affected subgraph" —
// implemented as a full-program clone since ProgramGraph's row-oriented
// representation makes a partial clone no cheaper to reason about
// correctly than a full one).
func cloneGraph(g *domain.ProgramGraph) *domain.ProgramGraph {
	return domain.Recompose(domain.Decompose(g))
}

func (s *Service) commit(ctx context.Context, work *domain.ProgramGraph, forward, inverse []EditCommand, agentID string, hasAgent bool) {
	affected := AffectedFunctions(forward)
	fids := make([]int64, len(affected))
	for i, fid := range affected {
		fids[i] = int64(fid)
	}
	_, span := tracer.Start(ctx, "mutation.commit", trace.WithAttributes(
		attribute.Int("mutation.count", len(forward)),
		attribute.Int64Slice("mutation.function_ids", fids),
	))
	defer span.End()

	s.g = work
	s.seq++
	fwdJSON, _ := json.Marshal(forward)
	invJSON, _ := json.Marshal(inverse)
	entry := domain.EditLogEntry{
		UUID:      uuid.New().String(),
		Seq:       s.seq,
		Timestamp: time.Now().UnixNano(),
		AgentID:   agentID,
		HasAgent:  hasAgent,
		Kind:      "mutation",
		Forward:   fwdJSON,
		Inverse:   invJSON,
	}
	s.log = append(s.log, entry)
	s.redo = nil // any new commit clears the redo tail (spec.md §4.5)
	enqueuePropagationEvents(work, forward)
}

// enqueuePropagationEvents appends one propagation event per mutation in a
// just-committed batch (spec.md §4.6 "every successful mutation appends
// one or more events synchronously"). The event carries enough payload for
// the propagation engine's downward transform to act without re-deriving
// it from the command itself.
func enqueuePropagationEvents(g *domain.ProgramGraph, forward []EditCommand) {
	for _, cmd := range forward {
		switch cmd.Kind {
		case AddFunction:
			g.Queue.Enqueue(domain.Event{
				OriginLayer: domain.OriginSemantic,
				Kind:        domain.EventFunctionAdded,
				FunctionID:  cmd.FunctionID,
				Attribute:   "signature",
			})
		case ModifyOp:
			g.Queue.Enqueue(domain.Event{
				OriginLayer: domain.OriginCompute,
				Kind:        domain.EventBodyEdited,
				FunctionID:  cmd.Owner,
				Attribute:   "body",
			})
		case AddNode, RemoveNode, AddDataEdge, RemoveDataEdge, AddControlEdge, RemoveControlEdge:
			fid := cmd.Owner
			if fid == 0 {
				if e, ok := g.GetFlowEdge(cmd.EdgeID); ok {
					if n, ok := g.GetComputeNode(e.Target); ok {
						fid = n.Owner
					}
				}
			}
			g.Queue.Enqueue(domain.Event{
				OriginLayer: domain.OriginCompute,
				Kind:        domain.EventBodyEdited,
				FunctionID:  fid,
				Attribute:   "body",
			})
		case AddContract:
			g.Queue.Enqueue(domain.Event{
				OriginLayer: domain.OriginSemantic,
				Kind:        domain.EventContractAdded,
				FunctionID:  cmd.ContractOwner,
				Attribute:   "contract",
				Payload: map[string]any{
					"condition_node": uint64(cmd.ConditionNode),
					"insert_before":  uint64(cmd.InsertBefore),
					"contract_kind":  string(cmd.ContractKind),
				},
			})
			// AttachEmbedding commits an already-computed vector directly; it
			// leaves the embedding fresh rather than invalidating it, so it
			// enqueues nothing. Invalidation instead follows from a BodyEdited
			// flush that finds a previously-attached embedding now stale (see
			// the propagation engine's EmbeddingInvalidated follow-up).
		}
	}
}

// Undo pops the most recent log entry and re-applies its inverse.
func (s *Service) Undo(ctx context.Context) (ProposeEditResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.log) == 0 {
		return ProposeEditResponse{}, &derr.BadRequest{Message: "undo: edit log is empty"}
	}
	last := s.log[len(s.log)-1]
	var inverse []EditCommand
	if err := json.Unmarshal(last.Inverse, &inverse); err != nil {
		return ProposeEditResponse{}, derr.NewInternal(err)
	}

	work := cloneGraph(s.g)
	created := make([]CreatedEntity, 0, len(inverse))
	for _, cmd := range inverse {
		entity, _, _, err := applyOne(work, cmd)
		if err != nil {
			return ProposeEditResponse{}, derr.NewInternal(err)
		}
		created = append(created, entity)
	}

	s.g = work
	s.log = s.log[:len(s.log)-1]
	s.redo = append(s.redo, last)
	return ProposeEditResponse{Committed: true, Created: created, FailedIndex: -1}, nil
}

// Redo re-applies the most recently undone entry's forward mutations.
func (s *Service) Redo(ctx context.Context) (ProposeEditResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.redo) == 0 {
		return ProposeEditResponse{}, &derr.BadRequest{Message: "redo: nothing to redo"}
	}
	entry := s.redo[len(s.redo)-1]
	var forward []EditCommand
	if err := json.Unmarshal(entry.Forward, &forward); err != nil {
		return ProposeEditResponse{}, derr.NewInternal(err)
	}

	work := cloneGraph(s.g)
	created := make([]CreatedEntity, 0, len(forward))
	for _, cmd := range forward {
		entity, _, _, err := applyOne(work, cmd)
		if err != nil {
			return ProposeEditResponse{}, derr.NewInternal(err)
		}
		created = append(created, entity)
	}

	s.g = work
	s.redo = s.redo[:len(s.redo)-1]
	s.seq++
	entry.Seq = s.seq
	s.log = append(s.log, entry)
	return ProposeEditResponse{Committed: true, Created: created, FailedIndex: -1}, nil
}

// History returns the append-only edit log in commit order.
func (s *Service) History() []domain.EditLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.EditLogEntry, len(s.log))
	copy(out, s.log)
	return out
}

// Checkpoint captures the current graph as a named, restorable snapshot.
func (s *Service) Checkpoint(name string) domain.Checkpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, _ := json.Marshal(domain.Decompose(s.g))
	return domain.Checkpoint{
		Name:      name,
		ProgramID: s.g.ProgramID,
		Snapshot:  snap,
		CreatedAt: time.Now().UnixNano(),
	}
}

// RestoreCheckpoint replaces the live graph with cp's snapshot and appends
// a "checkpoint_restore" entry to the edit log, clearing redo.
func (s *Service) RestoreCheckpoint(ctx context.Context, cp domain.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, span := tracer.Start(ctx, "mutation.restore_checkpoint", trace.WithAttributes(
		attribute.String("checkpoint.program_id", cp.ProgramID),
		attribute.String("checkpoint.name", cp.Name),
	))
	defer span.End()

	var dp domain.DecomposedProgram
	if err := json.Unmarshal(cp.Snapshot, &dp); err != nil {
		span.RecordError(err)
		return derr.NewInternal(err)
	}
	span.SetAttributes(attribute.Int("mutation.count", len(dp.Functions)))
	s.g = domain.Recompose(dp)
	s.seq++
	s.log = append(s.log, domain.EditLogEntry{
		UUID:      uuid.New().String(),
		Seq:       s.seq,
		Timestamp: time.Now().UnixNano(),
		Kind:      "checkpoint_restore",
		Forward:   cp.Snapshot,
	})
	s.redo = nil
	return nil
}

// Package storage implements the Storage Adapter Contract (spec.md §4.8,
// C10): two backends — an in-memory store and a durable Postgres-backed
// store — both satisfying domain.GraphStore and passing the same contract
// test suite (contract_test.go).
package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"lmlang/internal/domain"
)

// MemoryStore is a sync.RWMutex-guarded in-memory domain.GraphStore, keyed
// on program id.
type MemoryStore struct {
	mu sync.RWMutex

	programs map[string]domain.DecomposedProgram
	edits    map[string][]domain.EditLogEntry
	checkpts map[string]map[string]domain.Checkpoint
	agents   map[string]domain.AgentConfig
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		programs: make(map[string]domain.DecomposedProgram),
		edits:    make(map[string][]domain.EditLogEntry),
		checkpts: make(map[string]map[string]domain.Checkpoint),
		agents:   make(map[string]domain.AgentConfig),
	}
}

func (s *MemoryStore) CreateProgram(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New().String()
	s.programs[id] = domain.Decompose(domain.NewProgramGraph(id))
	return id, nil
}

func (s *MemoryStore) SaveProgram(ctx context.Context, id string, program domain.DecomposedProgram) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.programs[id]; !ok {
		return &notFoundErr{kind: "program", id: id}
	}
	s.programs[id] = program
	return nil
}

func (s *MemoryStore) LoadProgram(ctx context.Context, id string) (domain.DecomposedProgram, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.programs[id]
	if !ok {
		return domain.DecomposedProgram{}, &notFoundErr{kind: "program", id: id}
	}
	return p, nil
}

func (s *MemoryStore) DeleteProgram(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.programs, id)
	delete(s.edits, id)
	delete(s.checkpts, id)
	return nil
}

func (s *MemoryStore) ListPrograms(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.programs))
	for id := range s.programs {
		out = append(out, id)
	}
	return out, nil
}

func (s *MemoryStore) RecordEdit(ctx context.Context, programID string, entry domain.EditLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edits[programID] = append(s.edits[programID], entry)
	return nil
}

func (s *MemoryStore) ListEdits(ctx context.Context, programID string) ([]domain.EditLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.EditLogEntry, len(s.edits[programID]))
	copy(out, s.edits[programID])
	return out, nil
}

func (s *MemoryStore) ClearRedoMarksAfter(ctx context.Context, programID string, seq int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.edits[programID]
	kept := entries[:0:0]
	for _, e := range entries {
		if e.Seq <= seq {
			kept = append(kept, e)
		}
	}
	s.edits[programID] = kept
	return nil
}

func (s *MemoryStore) SaveCheckpoint(ctx context.Context, cp domain.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkpts[cp.ProgramID] == nil {
		s.checkpts[cp.ProgramID] = make(map[string]domain.Checkpoint)
	}
	s.checkpts[cp.ProgramID][cp.Name] = cp
	return nil
}

func (s *MemoryStore) LoadCheckpoint(ctx context.Context, programID, name string) (domain.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.checkpts[programID][name]
	if !ok {
		return domain.Checkpoint{}, &notFoundErr{kind: "checkpoint", id: name}
	}
	return cp, nil
}

func (s *MemoryStore) ListCheckpoints(ctx context.Context, programID string) ([]domain.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Checkpoint, 0, len(s.checkpts[programID]))
	for _, cp := range s.checkpts[programID] {
		out = append(out, cp)
	}
	return out, nil
}

func (s *MemoryStore) DeleteCheckpoint(ctx context.Context, programID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.checkpts[programID], name)
	return nil
}

func (s *MemoryStore) SaveAgentConfig(ctx context.Context, cfg domain.AgentConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[cfg.ID] = cfg
	return nil
}

func (s *MemoryStore) LoadAgentConfig(ctx context.Context, id string) (domain.AgentConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.agents[id]
	if !ok {
		return domain.AgentConfig{}, &notFoundErr{kind: "agent", id: id}
	}
	return cfg, nil
}

func (s *MemoryStore) ListAgentConfigs(ctx context.Context) ([]domain.AgentConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AgentConfig, 0, len(s.agents))
	for _, cfg := range s.agents {
		out = append(out, cfg)
	}
	return out, nil
}

func (s *MemoryStore) DeleteAgentConfig(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.agents, id)
	return nil
}

type notFoundErr struct{ kind, id string }

func (e *notFoundErr) Error() string { return fmt.Sprintf("%s not found: %s", e.kind, e.id) }

var _ domain.GraphStore = (*MemoryStore)(nil)

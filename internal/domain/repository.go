package domain

import "context"

// DecomposedProgram is the flattened, row-oriented view of a ProgramGraph
// produced by Decompose and consumed by Recompose (spec.md §4.8). Every
// slice preserves ids so that a roundtrip is lossless, including semantic
// embeddings.
type DecomposedProgram struct {
	ProgramID string

	Types     map[TypeId]LmType
	Modules   []ModuleDef
	Functions []FunctionDef

	ComputeNodes []ComputeNodeRow
	FlowEdges    []FlowEdgeRow

	SemanticNodes []SemanticNodeRow
	SemanticEdges []SemanticEdgeRow

	HighWatermarks Watermarks
}

// Watermarks records, per id space, the next id the generator would issue
// (one past the highest id issued so far), so a recomposed graph continues
// minting fresh ids from there.
type Watermarks struct {
	Node     uint64
	Function uint64
	Module   uint64
	Type     uint64
}

// ComputeNodeRow is the row form of a ComputeNode.
type ComputeNodeRow struct {
	ID      NodeId
	Owner   FunctionId
	Op      ComputeNodeOp
	Retired bool
}

// FlowEdgeRow is the row form of a FlowEdge, with an explicit id.
type FlowEdgeRow struct {
	ID      uint64
	Edge    FlowEdge
	Retired bool
}

// SemanticNodeRow is the row form of a SemanticNode.
type SemanticNodeRow struct {
	Node    SemanticNode
	Retired bool
}

// SemanticEdgeRow is the row form of a SemanticEdge, with an explicit id.
type SemanticEdgeRow struct {
	ID      uint64
	Edge    SemanticEdge
	Retired bool
}

// EditLogEntry is a single persisted mutation-history record (spec.md §4.4).
type EditLogEntry struct {
	UUID      string
	Seq       int64
	Timestamp int64 // unix nanos, supplied by the caller (mutation service), never generated by storage
	AgentID   string
	HasAgent  bool
	Kind      string // "mutation" | "checkpoint_restore"
	Forward   []byte // canonical JSON of the applied EditCommand(s)
	Inverse   []byte // canonical JSON of the derived inverse EditCommand(s)
}

// Checkpoint is a named, full-program snapshot.
type Checkpoint struct {
	Name      string
	ProgramID string
	Snapshot  []byte // canonical JSON of a DecomposedProgram
	CreatedAt int64
}

// AgentConfig is the externally-persisted record for a registered agent
// (spec.md §6 "agent_configs" table).
type AgentConfig struct {
	ID             string
	DisplayName    string
	ProviderConfig map[string]any
	TokenHash      string
}

// GraphStore is the storage-adapter contract (spec.md §4.8). Two backends —
// an in-memory store and a durable SQL-like store — implement it and must
// pass the same contract test suite.
type GraphStore interface {
	CreateProgram(ctx context.Context, name string) (string, error)
	SaveProgram(ctx context.Context, id string, program DecomposedProgram) error
	LoadProgram(ctx context.Context, id string) (DecomposedProgram, error)
	DeleteProgram(ctx context.Context, id string) error
	ListPrograms(ctx context.Context) ([]string, error)

	// History
	RecordEdit(ctx context.Context, programID string, entry EditLogEntry) error
	ListEdits(ctx context.Context, programID string) ([]EditLogEntry, error)
	ClearRedoMarksAfter(ctx context.Context, programID string, seq int64) error

	// Checkpoints
	SaveCheckpoint(ctx context.Context, cp Checkpoint) error
	LoadCheckpoint(ctx context.Context, programID, name string) (Checkpoint, error)
	ListCheckpoints(ctx context.Context, programID string) ([]Checkpoint, error)
	DeleteCheckpoint(ctx context.Context, programID, name string) error

	// Agents (external agent_configs table, spec.md §6)
	SaveAgentConfig(ctx context.Context, cfg AgentConfig) error
	LoadAgentConfig(ctx context.Context, id string) (AgentConfig, error)
	ListAgentConfigs(ctx context.Context) ([]AgentConfig, error)
	DeleteAgentConfig(ctx context.Context, id string) error
}

// Decompose flattens a ProgramGraph into row sequences preserving ids.
func Decompose(g *ProgramGraph) DecomposedProgram {
	dp := DecomposedProgram{
		ProgramID: g.ProgramID,
		Types:     g.Types.Snapshot(),
		HighWatermarks: Watermarks{
			Node:     g.nodeGen.peek(),
			Function: g.fnGen.peek(),
			Module:   g.modGen.peek(),
			Type:     g.Types.gen.peek(),
		},
	}
	for _, m := range g.Modules {
		dp.Modules = append(dp.Modules, *m)
	}
	for _, f := range g.Functions {
		dp.Functions = append(dp.Functions, *f)
	}
	for id, n := range g.compute.nodes {
		dp.ComputeNodes = append(dp.ComputeNodes, ComputeNodeRow{ID: NodeId(id), Owner: n.Owner, Op: n.Op, Retired: g.compute.removed[id]})
	}
	for id, e := range g.compute.edges {
		dp.FlowEdges = append(dp.FlowEdges, FlowEdgeRow{ID: id, Edge: e, Retired: g.compute.edgeRm[id]})
	}
	for id, n := range g.semantic.nodes {
		_ = id
		dp.SemanticNodes = append(dp.SemanticNodes, SemanticNodeRow{Node: n, Retired: g.semantic.removed[uint64(n.Idx)]})
	}
	for id, e := range g.semantic.edges {
		dp.SemanticEdges = append(dp.SemanticEdges, SemanticEdgeRow{ID: id, Edge: e, Retired: g.semantic.edgeRm[id]})
	}
	return dp
}

// Recompose is Decompose's left-inverse: it rebuilds a ProgramGraph from a
// DecomposedProgram, including retired (tombstoned) entries and embeddings.
func Recompose(dp DecomposedProgram) *ProgramGraph {
	g := &ProgramGraph{
		ProgramID:             dp.ProgramID,
		compute:               newStableGraph[ComputeNode, FlowEdge](),
		semantic:              newStableGraph[SemanticNode, SemanticEdge](),
		ModuleSemanticNodes:   make(map[ModuleId]SemNodeIdx),
		FunctionSemanticNodes: make(map[FunctionId]SemNodeIdx),
		Types:                 NewTypeRegistry(),
		Functions:             make(map[FunctionId]*FunctionDef),
		Modules:               make(map[ModuleId]*ModuleDef),
		Queue:                 NewEventQueue(),
	}
	g.Types.restoreFrom(dp.Types, dp.HighWatermarks.Type)

	for i := range dp.Modules {
		m := dp.Modules[i]
		mc := m
		g.Modules[m.ID] = &mc
	}
	for i := range dp.Functions {
		f := dp.Functions[i]
		fc := f
		g.Functions[f.ID] = &fc
	}
	for _, row := range dp.ComputeNodes {
		g.compute.nodes[uint64(row.ID)] = ComputeNode{ID: row.ID, Owner: row.Owner, Op: row.Op, retired: row.Retired}
		if uint64(row.ID) >= g.compute.nextNode {
			g.compute.nextNode = uint64(row.ID) + 1
		}
		if row.Retired {
			g.compute.removed[uint64(row.ID)] = true
		}
	}
	for _, row := range dp.FlowEdges {
		g.compute.edges[row.ID] = row.Edge
		g.compute.edgesOut[uint64(row.Edge.Source)] = append(g.compute.edgesOut[uint64(row.Edge.Source)], row.ID)
		g.compute.edgesIn[uint64(row.Edge.Target)] = append(g.compute.edgesIn[uint64(row.Edge.Target)], row.ID)
		if row.ID >= g.compute.nextEdge {
			g.compute.nextEdge = row.ID + 1
		}
		if row.Retired {
			g.compute.edgeRm[row.ID] = true
		}
	}
	for _, row := range dp.SemanticNodes {
		n := row.Node
		g.semantic.nodes[uint64(n.Idx)] = n
		if uint64(n.Idx) >= g.semantic.nextNode {
			g.semantic.nextNode = uint64(n.Idx) + 1
		}
		if row.Retired {
			g.semantic.removed[uint64(n.Idx)] = true
		}
		if n.Kind == SemModule {
			for mid := range g.Modules {
				if pathEqual(g.ModulePath(mid), n.Ownership.ModulePath) {
					g.ModuleSemanticNodes[mid] = n.Idx
				}
			}
		}
		if n.Kind == SemFunction && n.Ownership.HasFn {
			g.FunctionSemanticNodes[n.Ownership.Function] = n.Idx
		}
	}
	for _, row := range dp.SemanticEdges {
		g.semantic.edges[row.ID] = row.Edge
		g.semantic.edgesOut[uint64(row.Edge.Source)] = append(g.semantic.edgesOut[uint64(row.Edge.Source)], row.ID)
		g.semantic.edgesIn[uint64(row.Edge.Target)] = append(g.semantic.edgesIn[uint64(row.Edge.Target)], row.ID)
		if row.ID >= g.semantic.nextEdge {
			g.semantic.nextEdge = row.ID + 1
		}
		if row.Retired {
			g.semantic.edgeRm[row.ID] = true
		}
	}

	g.nodeGen.setNext(dp.HighWatermarks.Node)
	g.fnGen.setNext(dp.HighWatermarks.Function)
	g.modGen.setNext(dp.HighWatermarks.Module)
	return g
}

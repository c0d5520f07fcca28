package domain

// ProgramGraph is the dual-layer in-memory program: an executable compute
// DAG and a semantic knowledge graph, kept cross-referenced by stable ids
// (spec.md §3/§9 — "two maps keyed by stable IDs, not pointers").
type ProgramGraph struct {
	ProgramID string

	compute  *stableGraph[ComputeNode, FlowEdge]
	semantic *stableGraph[SemanticNode, SemanticEdge]

	ModuleSemanticNodes   map[ModuleId]SemNodeIdx
	FunctionSemanticNodes map[FunctionId]SemNodeIdx

	Types     *TypeRegistry
	Functions map[FunctionId]*FunctionDef
	Modules   map[ModuleId]*ModuleDef

	nodeGen idGenerator
	fnGen   idGenerator
	modGen  idGenerator

	Queue *EventQueue
}

// NewProgramGraph creates an empty program graph with a root module.
func NewProgramGraph(programID string) *ProgramGraph {
	g := &ProgramGraph{
		ProgramID:             programID,
		compute:               newStableGraph[ComputeNode, FlowEdge](),
		semantic:              newStableGraph[SemanticNode, SemanticEdge](),
		ModuleSemanticNodes:   make(map[ModuleId]SemNodeIdx),
		FunctionSemanticNodes: make(map[FunctionId]SemNodeIdx),
		Types:                 NewTypeRegistry(),
		Functions:             make(map[FunctionId]*FunctionDef),
		Modules:               make(map[ModuleId]*ModuleDef),
		Queue:                 NewEventQueue(),
	}
	root := ModuleId(g.modGen.take())
	g.Modules[root] = &ModuleDef{ID: root, Name: "root"}
	semIdx := g.InsertSemanticNode(SemanticNode{Kind: SemModule, Ownership: Ownership{ModulePath: []string{"root"}}})
	g.ModuleSemanticNodes[root] = semIdx
	return g
}

// RootModule returns the id of the implicit root module created with the
// program.
func (g *ProgramGraph) RootModule() ModuleId {
	for id, m := range g.Modules {
		if !m.HasParent {
			return id
		}
	}
	return 0
}

// --- Compute-graph accessors ---

// PeekNextNodeID, PeekNextFunctionID and PeekNextModuleID return the id the
// next insert of that kind will receive, without consuming it or changing
// the graph.
func (g *ProgramGraph) PeekNextNodeID() NodeId { return NodeId(g.nodeGen.peek()) }
func (g *ProgramGraph) PeekNextFunctionID() FunctionId { return FunctionId(g.fnGen.peek()) }
func (g *ProgramGraph) PeekNextModuleID() ModuleId { return ModuleId(g.modGen.peek()) }

// InsertComputeNode commits a new node and returns its id.
func (g *ProgramGraph) InsertComputeNode(owner FunctionId, op ComputeNodeOp) NodeId {
	id := NodeId(g.nodeGen.take())
	g.compute.addNode(ComputeNode{ID: id, Owner: owner, Op: op})
	return id
}

// GetComputeNode returns a live compute node by id.
func (g *ProgramGraph) GetComputeNode(id NodeId) (ComputeNode, bool) {
	return g.compute.getNode(uint64(id))
}

// SetComputeNode overwrites an existing (live) node's payload — used by
// ModifyOp mutations.
func (g *ProgramGraph) SetComputeNode(id NodeId, n ComputeNode) {
	g.compute.setNode(uint64(id), n)
}

// RemoveComputeNode logically retires a node; the id is never reused.
func (g *ProgramGraph) RemoveComputeNode(id NodeId) {
	g.compute.removeNode(uint64(id))
}

// AllComputeNodeIDs returns every live compute-node id in deterministic
// ascending order.
func (g *ProgramGraph) AllComputeNodeIDs() []NodeId {
	raw := g.compute.nodeIDs()
	out := make([]NodeId, len(raw))
	for i, v := range raw {
		out[i] = NodeId(v)
	}
	return out
}

// NodesOwnedBy returns, in deterministic order, the live node ids owned by
// fn.
func (g *ProgramGraph) NodesOwnedBy(fn FunctionId) []NodeId {
	var out []NodeId
	for _, id := range g.AllComputeNodeIDs() {
		n, _ := g.GetComputeNode(id)
		if n.Owner == fn {
			out = append(out, id)
		}
	}
	return out
}

// AddFlowEdge commits a new flow edge and returns its id.
func (g *ProgramGraph) AddFlowEdge(e FlowEdge) uint64 {
	return g.compute.addEdge(uint64(e.Source), uint64(e.Target), e)
}

// RemoveFlowEdge logically retires an edge.
func (g *ProgramGraph) RemoveFlowEdge(id uint64) { g.compute.removeEdge(id) }

// GetFlowEdge returns a live flow edge by id.
func (g *ProgramGraph) GetFlowEdge(id uint64) (FlowEdge, bool) { return g.compute.getEdge(id) }

// OutgoingEdges returns live outgoing flow-edge ids from a compute node.
func (g *ProgramGraph) OutgoingEdges(n NodeId) []uint64 { return g.compute.outgoing(uint64(n)) }

// IncomingEdges returns live incoming flow-edge ids to a compute node.
func (g *ProgramGraph) IncomingEdges(n NodeId) []uint64 { return g.compute.incoming(uint64(n)) }

// IncomingDataEdges returns, in target-port order, the live Data edges
// terminating at node.
func (g *ProgramGraph) IncomingDataEdges(n NodeId) []FlowEdge {
	var out []FlowEdge
	for _, eid := range g.IncomingEdges(n) {
		e, _ := g.GetFlowEdge(eid)
		if e.Kind == FlowData {
			out = append(out, e)
		}
	}
	return out
}

// --- Semantic-graph accessors ---

// InsertSemanticNode commits a new semantic node and returns its index.
func (g *ProgramGraph) InsertSemanticNode(n SemanticNode) SemNodeIdx {
	idx := SemNodeIdx(g.semantic.addNode(n))
	n.Idx = idx
	g.semantic.setNode(uint64(idx), n)
	return idx
}

// GetSemanticNode returns a live semantic node by index.
func (g *ProgramGraph) GetSemanticNode(idx SemNodeIdx) (SemanticNode, bool) {
	return g.semantic.getNode(uint64(idx))
}

// SetSemanticNode overwrites an existing semantic node's payload.
func (g *ProgramGraph) SetSemanticNode(idx SemNodeIdx, n SemanticNode) {
	g.semantic.setNode(uint64(idx), n)
}

// RemoveSemanticNode logically retires a semantic node.
func (g *ProgramGraph) RemoveSemanticNode(idx SemNodeIdx) { g.semantic.removeNode(uint64(idx)) }

// AddSemanticEdge commits a new semantic edge unless an edge of the same
// kind already connects source->target (multi-edges are permitted only for
// distinct kinds, per spec.md §3).
func (g *ProgramGraph) AddSemanticEdge(e SemanticEdge) (uint64, bool) {
	for _, eid := range g.semantic.outgoing(uint64(e.Source)) {
		existing, _ := g.semantic.getEdge(eid)
		if existing.Target == e.Target && existing.Kind == e.Kind {
			return eid, false
		}
	}
	return g.semantic.addEdge(uint64(e.Source), uint64(e.Target), e), true
}

// RemoveSemanticEdge logically retires a semantic edge.
func (g *ProgramGraph) RemoveSemanticEdge(id uint64) { g.semantic.removeEdge(id) }

// SemanticOutgoing returns live outgoing semantic-edge ids from idx.
func (g *ProgramGraph) SemanticOutgoing(idx SemNodeIdx) []uint64 { return g.semantic.outgoing(uint64(idx)) }

// SemanticIncoming returns live incoming semantic-edge ids to idx.
func (g *ProgramGraph) SemanticIncoming(idx SemNodeIdx) []uint64 { return g.semantic.incoming(uint64(idx)) }

// GetSemanticEdge returns a live semantic edge by id.
func (g *ProgramGraph) GetSemanticEdge(id uint64) (SemanticEdge, bool) { return g.semantic.getEdge(id) }

// AllSemanticNodeIndices returns every live semantic node index, ascending.
func (g *ProgramGraph) AllSemanticNodeIndices() []SemNodeIdx {
	raw := g.semantic.nodeIDs()
	out := make([]SemNodeIdx, len(raw))
	for i, v := range raw {
		out[i] = SemNodeIdx(v)
	}
	return out
}

// --- Function / module registry ---

// InsertFunction commits a new function definition and its paired semantic
// node (the cross-reference map is kept functional in both directions per
// spec.md §3).
func (g *ProgramGraph) InsertFunction(fn FunctionDef, modPath []string) FunctionId {
	id := FunctionId(g.fnGen.take())
	fn.ID = id
	g.Functions[id] = &fn
	semIdx := g.InsertSemanticNode(SemanticNode{
		Kind:       SemFunction,
		Ownership:  Ownership{ModulePath: modPath, Function: id, HasFn: true},
		Provenance: Provenance{Origin: OriginSemantic},
		FnSummary:  &FunctionSummary{OpHistogram: map[OpTag]int{}},
	})
	g.FunctionSemanticNodes[id] = semIdx
	return id
}

// InsertModule commits a new module definition and its paired semantic
// node.
func (g *ProgramGraph) InsertModule(name string, parent ModuleId) ModuleId {
	id := ModuleId(g.modGen.take())
	g.Modules[id] = &ModuleDef{ID: id, Name: name, Parent: parent, HasParent: true}
	if p, ok := g.Modules[parent]; ok {
		p.Children = append(p.Children, id)
	}
	path := g.ModulePath(id)
	semIdx := g.InsertSemanticNode(SemanticNode{
		Kind:       SemModule,
		Ownership:  Ownership{ModulePath: path},
		Provenance: Provenance{Origin: OriginSemantic},
	})
	g.ModuleSemanticNodes[id] = semIdx
	return id
}

// ModulePath returns the dotted path from root to id.
func (g *ProgramGraph) ModulePath(id ModuleId) []string {
	m, ok := g.Modules[id]
	if !ok {
		return nil
	}
	return m.Path(func(mid ModuleId) (ModuleDef, bool) {
		mm, ok := g.Modules[mid]
		if !ok {
			return ModuleDef{}, false
		}
		return *mm, true
	})
}

// FunctionByName looks up a function by its dotted module path and name.
func (g *ProgramGraph) FunctionByName(modPath []string, name string) (FunctionId, bool) {
	for id, fn := range g.Functions {
		if fn.retired || fn.Name != name {
			continue
		}
		if pathEqual(g.ModulePath(fn.Module), modPath) {
			return id, true
		}
	}
	return 0, false
}

func pathEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

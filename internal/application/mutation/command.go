// Package mutation implements the Mutation Service (spec.md §4.4, C6): the
// single public entry point through which every change to a ProgramGraph
// flows, with dry-run/commit, single/batch atomicity, optimistic
// concurrency, an edit log with derived inverses, undo/redo, and named
// checkpoints.
package mutation

import "lmlang/internal/domain"

// Kind discriminates EditCommand variants (spec.md §4.4's eleven Mutation
// variants, plus RemoveFunction/RemoveModule added per DESIGN.md's decision
// to give undo a real inverse for AddFunction/AddModule instead of leaving
// it redo-equivalent).
type Kind string

const (
	AddNode           Kind = "add_node"
	RemoveNode        Kind = "remove_node"
	ModifyOp          Kind = "modify_op"
	AddDataEdge       Kind = "add_data_edge"
	RemoveDataEdge    Kind = "remove_data_edge"
	AddControlEdge    Kind = "add_control_edge"
	RemoveControlEdge Kind = "remove_control_edge"
	AddFunction       Kind = "add_function"
	RemoveFunction    Kind = "remove_function"
	AddModule         Kind = "add_module"
	RemoveModule      Kind = "remove_module"
	AddContract       Kind = "add_contract"
	AttachEmbedding   Kind = "attach_embedding"
)

// EditCommand is the tagged-union mutation payload — one struct covering
// every variant, in the same style as domain.ComputeNodeOp: fields are
// populated according to Kind, the rest left zero.
type EditCommand struct {
	Kind Kind

	// AddNode / RemoveNode / ModifyOp
	NodeID domain.NodeId
	Owner  domain.FunctionId
	Op     domain.ComputeNodeOp

	// Add/RemoveDataEdge, Add/RemoveControlEdge
	EdgeID uint64
	Edge   domain.FlowEdge

	// AddFunction / RemoveFunction
	Function   domain.FunctionDef
	ModulePath []string
	FunctionID domain.FunctionId

	// AddModule / RemoveModule
	ModuleName   string
	ParentModule domain.ModuleId
	ModuleID     domain.ModuleId

	// AddContract: inserts a Precondition/Postcondition/Invariant node owned
	// by ContractOwner, reading ConditionNode's boolean output, spliced on
	// the control edge immediately before InsertBefore.
	ContractKind  domain.ContractKind
	ContractOwner domain.FunctionId
	ConditionNode domain.NodeId
	InsertBefore  domain.NodeId

	// AttachEmbedding
	SemanticTarget domain.SemNodeIdx
	Embedding      domain.Embedding
}

// CreatedEntity names the ids a mutation allocated (or, for a dry run,
// would allocate — spec.md §4.4: "IDs are reserved only on commit").
type CreatedEntity struct {
	NodeID     *domain.NodeId
	EdgeID     *uint64
	FunctionID *domain.FunctionId
	ModuleID   *domain.ModuleId
}

// AffectedFunctions computes the pure function from a mutation batch to the
// set of function ids it touches, used to decide which write locks a batch
// needs (spec.md §4.4/§4.9).
func AffectedFunctions(cmds []EditCommand) []domain.FunctionId {
	seen := map[domain.FunctionId]bool{}
	var out []domain.FunctionId
	add := func(fid domain.FunctionId) {
		if !seen[fid] {
			seen[fid] = true
			out = append(out, fid)
		}
	}
	for _, c := range cmds {
		switch c.Kind {
		case AddNode:
			add(c.Owner)
		case RemoveNode, ModifyOp:
			add(c.Owner)
		case AddContract:
			add(c.ContractOwner)
		case RemoveFunction:
			add(c.FunctionID)
		}
	}
	return out
}

// IsStructural reports whether cmd requires the global structure lock
// rather than a per-function write lock (spec.md §4.4: "Structural
// mutations (AddFunction, AddModule) require the global structure lock").
func (c EditCommand) IsStructural() bool {
	switch c.Kind {
	case AddFunction, RemoveFunction, AddModule, RemoveModule:
		return true
	}
	return false
}

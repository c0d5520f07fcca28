// Package query implements the read-only Query Projections (spec.md §4.5,
// C4.5): get_node, get_function_context, get_neighborhood, search_nodes,
// program_overview, and semantic. Every projection is computed on demand
// straight off the live ProgramGraph — nothing here is cached or stored.
package query

import (
	"lmlang/internal/domain"
)

// DetailLevel controls how much of a projection gets populated. Higher
// levels are strict supersets of lower ones (spec.md §4.5).
type DetailLevel string

const (
	DetailSummary  DetailLevel = "summary"
	DetailStandard DetailLevel = "standard"
	DetailFull     DetailLevel = "full"
)

// atLeast reports whether d is at or above min in the summary < standard <
// full ordering.
func atLeast(d, min DetailLevel) bool {
	rank := map[DetailLevel]int{DetailSummary: 0, DetailStandard: 1, DetailFull: 2}
	return rank[d] >= rank[min]
}

// EdgeView is the projected form of a FlowEdge.
type EdgeView struct {
	ID        uint64
	Kind      domain.FlowEdgeKind
	Source    domain.NodeId
	Target    domain.NodeId
	ValueType domain.TypeId `json:",omitempty"`
}

// NodeView is the projected form of a ComputeNode. Summary carries only
// identity and op tag; Standard adds the node's live edges; Full adds the
// complete op payload.
type NodeView struct {
	ID        domain.NodeId
	Owner     domain.FunctionId
	OwnerName string
	Op        domain.OpTag
	Retired   bool

	Incoming []EdgeView `json:",omitempty"`
	Outgoing []EdgeView `json:",omitempty"`

	OpDetail *domain.ComputeNodeOp `json:",omitempty"`
}

// FunctionContextView is the projected form of a function: its signature
// plus (at Standard+) every node it owns.
type FunctionContextView struct {
	ID         domain.FunctionId
	Name       string
	ModulePath []string
	Visibility domain.Visibility
	Params     []domain.TypeId
	Return     domain.TypeId
	EntryNode  domain.NodeId
	HasEntry   bool

	Nodes   []NodeView              `json:",omitempty"`
	Summary *domain.FunctionSummary `json:",omitempty"`
}

// NeighborhoodView is the BFS result around a root node.
type NeighborhoodView struct {
	Root  domain.NodeId
	Hops  int
	Nodes []NodeView
	Edges []EdgeView
}

// FunctionSignature is a function's public shape, used inside an overview.
type FunctionSignature struct {
	ID         domain.FunctionId
	Name       string
	Visibility domain.Visibility
	Params     []domain.TypeId
	Return     domain.TypeId
}

// ModuleOverview is one node of the module tree, with the functions it
// directly owns and its child modules.
type ModuleOverview struct {
	ID        domain.ModuleId
	Name      string
	Path      []string
	Functions []FunctionSignature
	Children  []ModuleOverview
}

// OverviewView is the full program_overview() result.
type OverviewView struct {
	ProgramID string
	Root      ModuleOverview
}

// SemanticNodeView is the projected form of a SemanticNode. Embedding is
// populated only when the caller opts in (embeddings are large and most
// callers never need them, per spec.md §9).
type SemanticNodeView struct {
	Idx       domain.SemNodeIdx
	Kind      domain.SemanticNodeKind
	Ownership domain.Ownership
	Summary   string
	FnSummary *domain.FunctionSummary `json:",omitempty"`
	Embedding *domain.Embedding       `json:",omitempty"`
	Retired   bool
}

// SemanticEdgeView is the projected form of a SemanticEdge.
type SemanticEdgeView struct {
	ID     uint64
	Kind   domain.SemanticEdgeKind
	Source domain.SemNodeIdx
	Target domain.SemNodeIdx
}

// SemanticView is the full semantic(program_id) result.
type SemanticView struct {
	ProgramID string
	Nodes     []SemanticNodeView
	Edges     []SemanticEdgeView
}

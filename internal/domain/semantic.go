package domain

import "time"

// SemanticNodeKind discriminates SemanticNode variants.
type SemanticNodeKind string

const (
	SemModule   SemanticNodeKind = "module"
	SemFunction SemanticNodeKind = "function"
	SemTypeDef  SemanticNodeKind = "type_def"
	SemSpec     SemanticNodeKind = "spec"
	SemTest     SemanticNodeKind = "test"
	SemDoc      SemanticNodeKind = "doc"
)

// OriginLayer identifies which layer produced an event or a semantic fact.
type OriginLayer string

const (
	OriginSemantic OriginLayer = "semantic"
	OriginCompute  OriginLayer = "compute"
)

// Provenance records where a SemanticNode's content came from and the event
// lineage that produced its current state.
type Provenance struct {
	Origin  OriginLayer
	Lineage []uint64 // event ids, oldest first
}

// Ownership locates a SemanticNode in the module tree / function namespace.
type Ownership struct {
	ModulePath []string
	Function   FunctionId
	HasFn      bool
}

// FunctionSummary is the derived, deterministic text payload attached to a
// Function semantic node: op histogram, call graph neighbors, contract
// presence, and a complexity metric. Recomputed upward by the propagation
// engine on BodyEdited (spec.md §4.6).
type FunctionSummary struct {
	OpHistogram      map[OpTag]int
	Calls            []FunctionId
	HasPrecondition  bool
	HasPostcondition bool
	HasInvariant     bool
	Complexity       int
}

// Embedding is an opaque payload produced by an external model. Its absence
// is never an error (spec.md §9).
type Embedding struct {
	Vector []float32
	Model  string
	Dirty  bool
}

// SemanticNode is a relational-overlay entity: module, function, type def,
// spec, test, or doc.
type SemanticNode struct {
	Idx       SemNodeIdx
	Kind      SemanticNodeKind
	Ownership Ownership
	Provenance Provenance
	Summary   string
	FnSummary *FunctionSummary
	Embedding *Embedding
	UpdatedAt time.Time

	retired bool
}

// Retired reports whether this semantic node has been logically deleted.
func (n *SemanticNode) Retired() bool { return n.retired }

// SemanticEdgeKind discriminates SemanticEdge variants.
type SemanticEdgeKind string

const (
	SemContains   SemanticEdgeKind = "contains"
	SemCalls      SemanticEdgeKind = "calls"
	SemUsesType   SemanticEdgeKind = "uses_type"
	SemDocuments  SemanticEdgeKind = "documents"
	SemValidates  SemanticEdgeKind = "validates"
	SemImplements SemanticEdgeKind = "implements"
	SemDependsOn  SemanticEdgeKind = "depends_on"
	SemSummarizes SemanticEdgeKind = "summarizes"
	SemDerives    SemanticEdgeKind = "derives"
)

// SemanticEdge is a directed relationship between two semantic nodes.
// Multi-edges between the same pair are permitted only for distinct kinds.
type SemanticEdge struct {
	Kind   SemanticEdgeKind
	Source SemNodeIdx
	Target SemNodeIdx
}

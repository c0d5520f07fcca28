package domain

// FlowEdgeKind discriminates FlowEdge variants.
type FlowEdgeKind string

const (
	FlowData    FlowEdgeKind = "data"
	FlowControl FlowEdgeKind = "control"
)

// FlowEdge connects two ComputeNodes. A Data edge carries SSA values; a
// Control edge carries side-effect ordering, branch selection, or a loop
// back-edge.
type FlowEdge struct {
	Kind FlowEdgeKind

	Source NodeId
	Target NodeId

	// Data fields.
	SourcePort uint32
	TargetPort uint32
	ValueType  TypeId

	// Control fields. BranchTaken is nil for an unconditional control edge,
	// or the selected branch index for a conditional one (IfElse/Match arms).
	BranchTaken *uint32
}

// IsBackEdge reports whether this control edge's target dominates its
// source in program order — approximated here as target.ID <= source.ID,
// which holds whenever a loop header is created before its body nodes.
func (e FlowEdge) IsBackEdge() bool {
	return e.Kind == FlowControl && e.Target <= e.Source
}

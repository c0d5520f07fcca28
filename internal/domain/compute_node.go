package domain

// ComputeNode is a single op in the executable compute DAG. Ownership is
// flat: every node belongs to exactly one function (spec.md §3).
type ComputeNode struct {
	ID    NodeId
	Owner FunctionId
	Op    ComputeNodeOp

	// retired marks a logically deleted node. Retired ids are kept in the
	// stable graph for diagnostic back-references until a storage vacuum,
	// per spec.md's lifecycle rules.
	retired bool
}

// Retired reports whether this node has been logically deleted.
func (n *ComputeNode) Retired() bool { return n.retired }

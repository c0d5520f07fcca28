package domain

import "sort"

// stableGraph is a dense-index, tombstone-on-delete graph: node and edge
// slots are never reused once handed out, so external references (by index)
// stay valid for the life of the program, mirroring spec.md's "IDs never
// reused after deletion" invariant. Both the compute graph and the semantic
// graph are instances of this shape with different payload types.
//
// This is a small hand-rolled structure rather than a dependency: no library
// in the retrieved corpus ships a reusable stable/tombstoned graph data
// structure (see DESIGN.md).
type stableGraph[N any, E any] struct {
	nodes    map[uint64]N
	removed  map[uint64]bool
	edgesOut map[uint64][]uint64 // node index -> edge indices originating there
	edgesIn  map[uint64][]uint64 // node index -> edge indices terminating there
	edges    map[uint64]E
	edgeRm   map[uint64]bool
	nextNode uint64
	nextEdge uint64
}

func newStableGraph[N any, E any]() *stableGraph[N, E] {
	return &stableGraph[N, E]{
		nodes:    make(map[uint64]N),
		removed:  make(map[uint64]bool),
		edgesOut: make(map[uint64][]uint64),
		edgesIn:  make(map[uint64][]uint64),
		edges:    make(map[uint64]E),
		edgeRm:   make(map[uint64]bool),
	}
}

func (g *stableGraph[N, E]) addNode(n N) uint64 {
	id := g.nextNode
	g.nextNode++
	g.nodes[id] = n
	return id
}

func (g *stableGraph[N, E]) getNode(id uint64) (N, bool) {
	n, ok := g.nodes[id]
	if !ok || g.removed[id] {
		var zero N
		return zero, false
	}
	return n, true
}

func (g *stableGraph[N, E]) setNode(id uint64, n N) {
	g.nodes[id] = n
}

func (g *stableGraph[N, E]) removeNode(id uint64) {
	g.removed[id] = true
}

// nodeIDs returns live node ids in deterministic ascending order.
func (g *stableGraph[N, E]) nodeIDs() []uint64 {
	ids := make([]uint64, 0, len(g.nodes))
	for id := range g.nodes {
		if !g.removed[id] {
			ids = append(ids, id)
		}
	}
	sortUint64(ids)
	return ids
}

func (g *stableGraph[N, E]) addEdge(from, to uint64, e E) uint64 {
	id := g.nextEdge
	g.nextEdge++
	g.edges[id] = e
	g.edgesOut[from] = append(g.edgesOut[from], id)
	g.edgesIn[to] = append(g.edgesIn[to], id)
	return id
}

func (g *stableGraph[N, E]) removeEdge(id uint64) {
	g.edgeRm[id] = true
}

func (g *stableGraph[N, E]) getEdge(id uint64) (E, bool) {
	e, ok := g.edges[id]
	if !ok || g.edgeRm[id] {
		var zero E
		return zero, false
	}
	return e, true
}

// outgoing returns live outgoing edge ids from node, ascending.
func (g *stableGraph[N, E]) outgoing(node uint64) []uint64 {
	var out []uint64
	for _, id := range g.edgesOut[node] {
		if !g.edgeRm[id] {
			out = append(out, id)
		}
	}
	sortUint64(out)
	return out
}

// incoming returns live incoming edge ids to node, ascending.
func (g *stableGraph[N, E]) incoming(node uint64) []uint64 {
	var in []uint64
	for _, id := range g.edgesIn[node] {
		if !g.edgeRm[id] {
			in = append(in, id)
		}
	}
	sortUint64(in)
	return in
}

func sortUint64(s []uint64) {
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
}

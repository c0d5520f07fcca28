package query

import (
	"fmt"
	"sort"
	"strings"

	"lmlang/internal/domain"
	derr "lmlang/internal/domain/errors"
)

// maxNeighborhoodHops caps get_neighborhood's BFS radius (spec.md §4.5).
const maxNeighborhoodHops = 3

// Service answers the read-only query projections over a live ProgramGraph.
// It holds no graph state of its own beyond the filter cache: every
// projection reflects the graph at the moment it's called.
type Service struct {
	g       *domain.ProgramGraph
	filters *filterEvaluator
}

// NewService builds a query service over g.
func NewService(g *domain.ProgramGraph) *Service {
	return &Service{g: g, filters: newFilterEvaluator()}
}

func ownerName(g *domain.ProgramGraph, owner domain.FunctionId) string {
	if fn, ok := g.Functions[owner]; ok {
		return fn.Name
	}
	return ""
}

func buildEdgeView(g *domain.ProgramGraph, eid uint64) (EdgeView, bool) {
	e, ok := g.GetFlowEdge(eid)
	if !ok {
		return EdgeView{}, false
	}
	return EdgeView{ID: eid, Kind: e.Kind, Source: e.Source, Target: e.Target, ValueType: e.ValueType}, true
}

func buildNodeView(g *domain.ProgramGraph, n domain.ComputeNode, detail DetailLevel) NodeView {
	view := NodeView{
		ID:        n.ID,
		Owner:     n.Owner,
		OwnerName: ownerName(g, n.Owner),
		Op:        n.Op.Tag,
		Retired:   n.Retired(),
	}
	if !atLeast(detail, DetailStandard) {
		return view
	}
	for _, eid := range g.IncomingEdges(n.ID) {
		if ev, ok := buildEdgeView(g, eid); ok {
			view.Incoming = append(view.Incoming, ev)
		}
	}
	for _, eid := range g.OutgoingEdges(n.ID) {
		if ev, ok := buildEdgeView(g, eid); ok {
			view.Outgoing = append(view.Outgoing, ev)
		}
	}
	if atLeast(detail, DetailFull) {
		op := n.Op
		view.OpDetail = &op
	}
	return view
}

// GetNode returns the projection of a single compute node.
func (s *Service) GetNode(id domain.NodeId, detail DetailLevel) (NodeView, error) {
	n, ok := s.g.GetComputeNode(id)
	if !ok {
		return NodeView{}, &derr.NotFound{Kind: "node", ID: fmt.Sprint(id)}
	}
	return buildNodeView(s.g, n, detail), nil
}

// GetFunctionContext returns a function's signature plus, at Standard and
// above, every node it owns and its derived semantic summary.
func (s *Service) GetFunctionContext(fid domain.FunctionId, detail DetailLevel) (FunctionContextView, error) {
	fn, ok := s.g.Functions[fid]
	if !ok || fn.Retired() {
		return FunctionContextView{}, &derr.NotFound{Kind: "function", ID: fmt.Sprint(fid)}
	}

	view := FunctionContextView{
		ID:         fid,
		Name:       fn.Name,
		ModulePath: s.g.ModulePath(fn.Module),
		Visibility: fn.Visibility,
		Params:     fn.Params,
		Return:     fn.Return,
		EntryNode:  fn.EntryNode,
		HasEntry:   fn.HasEntry,
	}
	if !atLeast(detail, DetailStandard) {
		return view, nil
	}

	for _, nid := range s.g.NodesOwnedBy(fid) {
		n, _ := s.g.GetComputeNode(nid)
		view.Nodes = append(view.Nodes, buildNodeView(s.g, n, detail))
	}

	if semIdx, ok := s.g.FunctionSemanticNodes[fid]; ok {
		if sem, ok := s.g.GetSemanticNode(semIdx); ok {
			view.Summary = sem.FnSummary
		}
	}
	return view, nil
}

// GetNeighborhood performs a breadth-first walk from root over both data and
// control flow edges, in either direction, up to hops steps (spec.md §4.5).
// A hops value below 0 or above maxNeighborhoodHops is rejected with a
// BadRequest.
func (s *Service) GetNeighborhood(root domain.NodeId, hops int, detail DetailLevel) (NeighborhoodView, error) {
	if hops < 0 || hops > maxNeighborhoodHops {
		return NeighborhoodView{}, &derr.BadRequest{Message: fmt.Sprintf("get_neighborhood: hops must be between 0 and %d", maxNeighborhoodHops)}
	}
	if _, ok := s.g.GetComputeNode(root); !ok {
		return NeighborhoodView{}, &derr.NotFound{Kind: "node", ID: fmt.Sprint(root)}
	}

	visitedNodes := map[domain.NodeId]bool{root: true}
	visitedEdges := map[uint64]bool{}
	view := NeighborhoodView{Root: root, Hops: hops}

	if n, ok := s.g.GetComputeNode(root); ok {
		view.Nodes = append(view.Nodes, buildNodeView(s.g, n, detail))
	}

	frontier := []domain.NodeId{root}
	for depth := 0; depth < hops; depth++ {
		var next []domain.NodeId
		for _, nid := range frontier {
			edgeIDs := append(append([]uint64{}, s.g.OutgoingEdges(nid)...), s.g.IncomingEdges(nid)...)
			sort.Slice(edgeIDs, func(i, j int) bool { return edgeIDs[i] < edgeIDs[j] })
			for _, eid := range edgeIDs {
				if visitedEdges[eid] {
					continue
				}
				e, ok := s.g.GetFlowEdge(eid)
				if !ok {
					continue
				}
				visitedEdges[eid] = true
				view.Edges = append(view.Edges, EdgeView{ID: eid, Kind: e.Kind, Source: e.Source, Target: e.Target, ValueType: e.ValueType})

				neighbor := e.Target
				if neighbor == nid {
					neighbor = e.Source
				}
				if visitedNodes[neighbor] {
					continue
				}
				visitedNodes[neighbor] = true
				if nn, ok := s.g.GetComputeNode(neighbor); ok {
					view.Nodes = append(view.Nodes, buildNodeView(s.g, nn, detail))
				}
				next = append(next, neighbor)
			}
		}
		frontier = next
		if len(frontier) == 0 {
			break
		}
	}
	return view, nil
}

func nodeFilterEnv(g *domain.ProgramGraph, n domain.ComputeNode) map[string]any {
	fn := g.Functions[n.Owner]
	var modPath []string
	var fnName string
	if fn != nil {
		modPath = g.ModulePath(fn.Module)
		fnName = fn.Name
	}
	summary := ""
	if semIdx, ok := g.FunctionSemanticNodes[n.Owner]; ok {
		if sem, ok := g.GetSemanticNode(semIdx); ok {
			summary = sem.Summary
		}
	}
	return map[string]any{
		"op":            string(n.Op.Tag),
		"owner":         int64(n.Owner),
		"function_name": fnName,
		"module_path":   strings.Join(modPath, "."),
		"summary":       summary,
		"retired":       n.Retired(),
	}
}

// SearchNodes evaluates filterExpr — an expr-lang boolean expression over a
// node's projected fields (op, owner, function_name, module_path, summary,
// retired) — against every live compute node, compiling the expression once
// per distinct string and reusing the compiled program across every node and
// every future call with the same filter.
func (s *Service) SearchNodes(filterExpr string, detail DetailLevel) ([]NodeView, error) {
	if filterExpr == "" {
		return nil, &derr.BadRequest{Message: "search_nodes: filter required"}
	}
	var out []NodeView
	for _, nid := range s.g.AllComputeNodeIDs() {
		n, ok := s.g.GetComputeNode(nid)
		if !ok {
			continue
		}
		ok, err := s.filters.matches(filterExpr, nodeFilterEnv(s.g, n))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, buildNodeView(s.g, n, detail))
		}
	}
	return out, nil
}

func functionSignature(fn *domain.FunctionDef) FunctionSignature {
	return FunctionSignature{ID: fn.ID, Name: fn.Name, Visibility: fn.Visibility, Params: fn.Params, Return: fn.Return}
}

func (s *Service) buildModuleOverview(modID domain.ModuleId) ModuleOverview {
	m := s.g.Modules[modID]
	overview := ModuleOverview{ID: modID, Name: m.Name, Path: s.g.ModulePath(modID)}

	var sigs []FunctionSignature
	for _, fn := range s.g.Functions {
		if fn.Retired() || fn.Module != modID {
			continue
		}
		sigs = append(sigs, functionSignature(fn))
	}
	sort.Slice(sigs, func(i, j int) bool { return sigs[i].ID < sigs[j].ID })
	overview.Functions = sigs

	for _, cid := range m.Children {
		if c, ok := s.g.Modules[cid]; ok && !c.Retired() {
			overview.Children = append(overview.Children, s.buildModuleOverview(cid))
		}
	}
	return overview
}

// ProgramOverview returns the module tree, each module's function
// signatures, and nothing else — the cheapest whole-program projection
// (spec.md §4.5).
func (s *Service) ProgramOverview() OverviewView {
	return OverviewView{ProgramID: s.g.ProgramID, Root: s.buildModuleOverview(s.g.RootModule())}
}

// Semantic returns the full semantic layer. includeEmbeddings controls
// whether each node's (potentially large) embedding vector is attached —
// most callers want the relational overlay without it (spec.md §9).
func (s *Service) Semantic(includeEmbeddings bool) SemanticView {
	view := SemanticView{ProgramID: s.g.ProgramID}

	for _, idx := range s.g.AllSemanticNodeIndices() {
		sem, ok := s.g.GetSemanticNode(idx)
		if !ok {
			continue
		}
		nv := SemanticNodeView{
			Idx:       sem.Idx,
			Kind:      sem.Kind,
			Ownership: sem.Ownership,
			Summary:   sem.Summary,
			FnSummary: sem.FnSummary,
			Retired:   sem.Retired(),
		}
		if includeEmbeddings {
			nv.Embedding = sem.Embedding
		}
		view.Nodes = append(view.Nodes, nv)

		for _, eid := range s.g.SemanticOutgoing(idx) {
			e, ok := s.g.GetSemanticEdge(eid)
			if !ok {
				continue
			}
			view.Edges = append(view.Edges, SemanticEdgeView{ID: eid, Kind: e.Kind, Source: e.Source, Target: e.Target})
		}
	}
	return view
}

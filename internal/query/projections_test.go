package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lmlang/internal/domain"
)

// buildChain wires param -> add_one(const 1) -> return, inside a nested
// module "math", as a small fixture exercising every projection.
func buildChain(t *testing.T) (*domain.ProgramGraph, domain.FunctionId, domain.NodeId, domain.NodeId, domain.NodeId) {
	t.Helper()
	g := domain.NewProgramGraph("p1")

	mathMod := g.InsertModule("math", g.RootModule())
	fid := g.InsertFunction(domain.FunctionDef{
		Name:       "add_one",
		Module:     mathMod,
		Visibility: domain.VisPublic,
		Params:     []domain.TypeId{domain.TypeI64},
		Return:     domain.TypeI64,
	}, g.ModulePath(mathMod))

	param := g.InsertComputeNode(fid, domain.ComputeNodeOp{Tag: domain.OpParameter, ParamIndex: 0})
	one := g.InsertComputeNode(fid, domain.ComputeNodeOp{Tag: domain.OpConst, Const: domain.ConstValue{Type: domain.TypeI64, I: 1}})
	add := g.InsertComputeNode(fid, domain.ComputeNodeOp{Tag: domain.OpBinaryArith, Arith: domain.ArithAdd})
	ret := g.InsertComputeNode(fid, domain.ComputeNodeOp{Tag: domain.OpReturn})

	g.AddFlowEdge(domain.FlowEdge{Kind: domain.FlowData, Source: param, Target: add, TargetPort: 0, ValueType: domain.TypeI64})
	g.AddFlowEdge(domain.FlowEdge{Kind: domain.FlowData, Source: one, Target: add, TargetPort: 1, ValueType: domain.TypeI64})
	g.AddFlowEdge(domain.FlowEdge{Kind: domain.FlowData, Source: add, Target: ret, ValueType: domain.TypeI64})

	fn := g.Functions[fid]
	fn.EntryNode = param
	fn.HasEntry = true

	if semIdx, ok := g.FunctionSemanticNodes[fid]; ok {
		sem, _ := g.GetSemanticNode(semIdx)
		sem.Summary = "adds one to its argument"
		sem.FnSummary.Complexity = 2
		g.SetSemanticNode(semIdx, sem)
	}

	return g, fid, param, add, ret
}

func TestGetNode_StandardDetail_IncludesEdgesNotOpDetail(t *testing.T) {
	g, _, _, add, _ := buildChain(t)
	svc := NewService(g)

	view, err := svc.GetNode(add, DetailStandard)
	require.NoError(t, err)
	assert.Equal(t, domain.OpBinaryArith, view.Op)
	assert.Len(t, view.Incoming, 2)
	assert.Len(t, view.Outgoing, 1)
	assert.Nil(t, view.OpDetail)
}

func TestGetNode_FullDetail_IncludesOpDetail(t *testing.T) {
	g, _, _, add, _ := buildChain(t)
	svc := NewService(g)

	view, err := svc.GetNode(add, DetailFull)
	require.NoError(t, err)
	require.NotNil(t, view.OpDetail)
	assert.Equal(t, domain.ArithAdd, view.OpDetail.Arith)
}

func TestGetNode_UnknownNode_ReturnsNotFound(t *testing.T) {
	g, _, _, _, _ := buildChain(t)
	svc := NewService(g)

	_, err := svc.GetNode(domain.NodeId(9999), DetailSummary)
	require.Error(t, err)
}

func TestGetFunctionContext_IncludesNodesAndSummary(t *testing.T) {
	g, fid, _, _, _ := buildChain(t)
	svc := NewService(g)

	ctx, err := svc.GetFunctionContext(fid, DetailStandard)
	require.NoError(t, err)
	assert.Equal(t, "add_one", ctx.Name)
	assert.Equal(t, []string{"root", "math"}, ctx.ModulePath)
	assert.Len(t, ctx.Nodes, 4)
	require.NotNil(t, ctx.Summary)
	assert.Equal(t, 2, ctx.Summary.Complexity)
}

func TestGetFunctionContext_SummaryDetail_OmitsNodes(t *testing.T) {
	g, fid, _, _, _ := buildChain(t)
	svc := NewService(g)

	ctx, err := svc.GetFunctionContext(fid, DetailSummary)
	require.NoError(t, err)
	assert.Empty(t, ctx.Nodes)
}

func TestGetFunctionContext_UnknownFunction_ReturnsNotFound(t *testing.T) {
	g, _, _, _, _ := buildChain(t)
	svc := NewService(g)

	_, err := svc.GetFunctionContext(domain.FunctionId(9999), DetailSummary)
	require.Error(t, err)
}

func TestGetNeighborhood_RespectsHopLimit(t *testing.T) {
	g, _, param, add, ret := buildChain(t)
	svc := NewService(g)

	one, err := svc.GetNeighborhood(add, 1, DetailSummary)
	require.NoError(t, err)
	ids := map[domain.NodeId]bool{}
	for _, n := range one.Nodes {
		ids[n.ID] = true
	}
	assert.True(t, ids[add])
	assert.True(t, ids[param])
	assert.True(t, ids[ret])

	zero, err := svc.GetNeighborhood(add, 0, DetailSummary)
	require.NoError(t, err)
	assert.Len(t, zero.Nodes, 1)
	assert.Empty(t, zero.Edges)
}

func TestGetNeighborhood_RejectsHopsAboveMax(t *testing.T) {
	g, _, _, add, _ := buildChain(t)
	svc := NewService(g)

	_, err := svc.GetNeighborhood(add, maxNeighborhoodHops+1, DetailSummary)
	assert.Error(t, err)
}

func TestGetNeighborhood_UnknownRoot_ReturnsNotFound(t *testing.T) {
	g, _, _, _, _ := buildChain(t)
	svc := NewService(g)

	_, err := svc.GetNeighborhood(domain.NodeId(9999), 1, DetailSummary)
	assert.Error(t, err)
}

func TestSearchNodes_FiltersByOpAndFunctionName(t *testing.T) {
	g, _, _, _, _ := buildChain(t)
	svc := NewService(g)

	results, err := svc.SearchNodes(`op == "binary_arith" && function_name == "add_one"`, DetailSummary)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.OpBinaryArith, results[0].Op)
}

func TestSearchNodes_ReusesCompiledProgramAcrossCalls(t *testing.T) {
	g, _, _, _, _ := buildChain(t)
	svc := NewService(g)

	_, err := svc.SearchNodes(`op == "const"`, DetailSummary)
	require.NoError(t, err)
	first := svc.filters.compiled[`op == "const"`]
	require.NotNil(t, first)

	_, err = svc.SearchNodes(`op == "const"`, DetailSummary)
	require.NoError(t, err)
	second := svc.filters.compiled[`op == "const"`]
	assert.Same(t, first, second)
}

func TestSearchNodes_InvalidFilter_ReturnsBadRequest(t *testing.T) {
	g, _, _, _, _ := buildChain(t)
	svc := NewService(g)

	_, err := svc.SearchNodes(`op ===`, DetailSummary)
	assert.Error(t, err)
}

func TestSearchNodes_EmptyFilter_ReturnsBadRequest(t *testing.T) {
	g, _, _, _, _ := buildChain(t)
	svc := NewService(g)

	_, err := svc.SearchNodes("", DetailSummary)
	assert.Error(t, err)
}

func TestProgramOverview_ListsModulesAndFunctions(t *testing.T) {
	g, fid, _, _, _ := buildChain(t)
	svc := NewService(g)

	overview := svc.ProgramOverview()
	assert.Equal(t, "root", overview.Root.Name)
	require.Len(t, overview.Root.Children, 1)
	math := overview.Root.Children[0]
	assert.Equal(t, "math", math.Name)
	require.Len(t, math.Functions, 1)
	assert.Equal(t, fid, math.Functions[0].ID)
}

func TestSemantic_EmbeddingOptIn(t *testing.T) {
	g, fid, _, _, _ := buildChain(t)
	semIdx := g.FunctionSemanticNodes[fid]
	sem, _ := g.GetSemanticNode(semIdx)
	sem.Embedding = &domain.Embedding{Vector: []float32{0.1, 0.2}, Model: "test-embed"}
	g.SetSemanticNode(semIdx, sem)

	svc := NewService(g)

	without := svc.Semantic(false)
	with := svc.Semantic(true)

	var foundWithout, foundWith bool
	for _, n := range without.Nodes {
		if n.Idx == semIdx {
			foundWithout = true
			assert.Nil(t, n.Embedding)
		}
	}
	for _, n := range with.Nodes {
		if n.Idx == semIdx {
			foundWith = true
			require.NotNil(t, n.Embedding)
			assert.Equal(t, "test-embed", n.Embedding.Model)
		}
	}
	assert.True(t, foundWithout)
	assert.True(t, foundWith)
}

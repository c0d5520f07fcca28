package program

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lmlang/internal/application/mutation"
	"lmlang/internal/domain"
)

func newTestGraph() *domain.ProgramGraph {
	return domain.NewProgramGraph("test-program")
}

func TestBuilder_PredictsModuleID(t *testing.T) {
	g := newTestGraph()
	b := New(g)

	want := g.PeekNextModuleID()
	got := b.Module("math", g.RootModule())

	assert.Equal(t, want, got)
	assert.Len(t, b.Build(), 1)
	assert.Equal(t, mutation.AddModule, b.Build()[0].Kind)
}

func TestBuilder_FunctionPredictsIDsConsistentWithCommit(t *testing.T) {
	g := newTestGraph()
	b := New(g)

	wantFn := g.PeekNextFunctionID()
	wantEntry := g.PeekNextNodeID()

	fb := b.Function("answer", nil, domain.VisPublic, nil, domain.TypeId(0))
	assert.Equal(t, wantFn, fb.ID())
	entry := fb.Entry(domain.ComputeNodeOp{Tag: domain.OpConst, Const: domain.ConstValue{I: 42}})
	assert.Equal(t, wantEntry, entry)
	ret := fb.Node(domain.ComputeNodeOp{Tag: domain.OpReturn})
	fb.DataEdge(entry, ret, 0, 0, domain.TypeId(0))
	fb.ControlEdge(entry, ret, nil)
	b = fb.Done()

	svc := mutation.NewService(g)
	resp, err := b.Commit(context.Background(), svc)
	require.NoError(t, err)
	require.True(t, resp.Committed)
	require.Len(t, resp.Created, 5)

	require.NotNil(t, resp.Created[0].FunctionID)
	assert.Equal(t, wantFn, *resp.Created[0].FunctionID)
	require.NotNil(t, resp.Created[1].NodeID)
	assert.Equal(t, wantEntry, *resp.Created[1].NodeID)
}

func TestBuilder_MultiNodeFunctionWiresDataEdge(t *testing.T) {
	g := newTestGraph()
	b := New(g)

	fb := b.Function("double", nil, domain.VisPublic, []domain.TypeId{domain.TypeId(1)}, domain.TypeId(1))
	param := fb.Entry(domain.ComputeNodeOp{Tag: domain.OpParameter, ParamIndex: 0})
	two := fb.Node(domain.ComputeNodeOp{Tag: domain.OpConst, Const: domain.ConstValue{Type: domain.TypeId(1), I: 2}})
	mul := fb.Node(domain.ComputeNodeOp{Tag: domain.OpBinaryArith, Arith: domain.ArithMul})
	ret := fb.Node(domain.ComputeNodeOp{Tag: domain.OpReturn})
	fb.DataEdge(param, mul, 0, 0, domain.TypeId(1))
	fb.DataEdge(two, mul, 0, 1, domain.TypeId(1))
	fb.DataEdge(mul, ret, 0, 0, domain.TypeId(1))
	fb.ControlEdge(param, ret, nil)
	b = fb.Done()

	svc := mutation.NewService(g)
	resp, err := b.Commit(context.Background(), svc)
	require.NoError(t, err)
	require.True(t, resp.Committed)
	// one AddFunction + four AddNode + three AddDataEdge + one AddControlEdge
	assert.Len(t, resp.Created, 9)
}

func TestBuilder_DryRunDoesNotMutateGraph(t *testing.T) {
	g := newTestGraph()
	b := New(g).DryRun(true)
	fb := b.Function("noop", nil, domain.VisPrivate, nil, domain.TypeId(0))
	fb.Entry(domain.ComputeNodeOp{Tag: domain.OpConst})
	b = fb.Done()

	svc := mutation.NewService(g)
	before := len(g.Functions)
	resp, err := b.Commit(context.Background(), svc)
	require.NoError(t, err)
	assert.False(t, resp.Committed)
	assert.Len(t, g.Functions, before)
}

func TestBuilder_AsAgentSetsRequestFields(t *testing.T) {
	g := newTestGraph()
	b := New(g).AsAgent("agent-7")
	assert.Equal(t, "agent-7", b.agentID)
	assert.True(t, b.hasAgent)
}

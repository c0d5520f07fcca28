package contract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lmlang/internal/domain"
	"lmlang/internal/interpreter"
)

// buildPositiveOnly creates `fn positive_only(x: i64) -> i64 { pre x > 0; return x }`.
func buildPositiveOnly(g *domain.ProgramGraph) domain.FunctionId {
	fid := g.InsertFunction(domain.FunctionDef{
		Name:   "positive_only",
		Module: g.RootModule(),
		Params: []domain.TypeId{domain.TypeI64},
		Return: domain.TypeI64,
	}, nil)

	param := g.InsertComputeNode(fid, domain.ComputeNodeOp{Tag: domain.OpParameter, ParamIndex: 0})
	zero := g.InsertComputeNode(fid, domain.ComputeNodeOp{Tag: domain.OpConst, Const: domain.ConstValue{Type: domain.TypeI64, I: 0}})
	cmp := g.InsertComputeNode(fid, domain.ComputeNodeOp{Tag: domain.OpCmp, Cmp: domain.CmpGt})
	pre := g.InsertComputeNode(fid, domain.ComputeNodeOp{Tag: domain.OpPrecondition, Contract: domain.ContractPrecondition})
	ret := g.InsertComputeNode(fid, domain.ComputeNodeOp{Tag: domain.OpReturn})

	g.AddFlowEdge(domain.FlowEdge{Kind: domain.FlowData, Source: param, Target: cmp, TargetPort: 0, ValueType: domain.TypeI64})
	g.AddFlowEdge(domain.FlowEdge{Kind: domain.FlowData, Source: zero, Target: cmp, TargetPort: 1, ValueType: domain.TypeI64})
	g.AddFlowEdge(domain.FlowEdge{Kind: domain.FlowData, Source: cmp, Target: pre, TargetPort: 0, ValueType: domain.TypeBool})
	g.AddFlowEdge(domain.FlowEdge{Kind: domain.FlowControl, Source: pre, Target: ret})
	g.AddFlowEdge(domain.FlowEdge{Kind: domain.FlowData, Source: param, Target: ret, TargetPort: 0, ValueType: domain.TypeI64})

	fn := g.Functions[fid]
	fn.EntryNode = pre
	fn.HasEntry = true
	return fid
}

func intVal(i int64) interpreter.Value {
	return interpreter.Value{Kind: interpreter.KindInt, Type: domain.TypeI64, Int: i}
}

func TestRun_SeedViolation_IsReported(t *testing.T) {
	g := domain.NewProgramGraph("p1")
	fid := buildPositiveOnly(g)

	report, err := Run(g, Request{
		FunctionID: fid,
		Seeds:      [][]interpreter.Value{{intVal(-5)}, {intVal(5)}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, report.SeedRuns)
	require.Len(t, report.Failures, 1)

	f := report.Failures[0]
	assert.Equal(t, "seed", f.Source)
	assert.Equal(t, 0, f.Index)
	require.NotNil(t, f.Contract)
	assert.Equal(t, string(domain.ContractPrecondition), f.Contract.Kind)
}

func TestRun_RandomInputs_AreDeterministicPerSeed(t *testing.T) {
	g := domain.NewProgramGraph("p1")
	fid := buildPositiveOnly(g)

	req := Request{FunctionID: fid, RandomCount: 200, RandomSeed: 42}
	report1, err := Run(g, req)
	require.NoError(t, err)
	report2, err := Run(g, req)
	require.NoError(t, err)

	assert.Equal(t, report1.RandomRuns, report2.RandomRuns)
	require.Equal(t, len(report1.Failures), len(report2.Failures))
	for i := range report1.Failures {
		assert.Equal(t, report1.Failures[i].Input, report2.Failures[i].Input)
		assert.Equal(t, report1.Failures[i].Index, report2.Failures[i].Index)
	}
}

func TestRun_DifferentSeeds_BothFindViolations(t *testing.T) {
	g := domain.NewProgramGraph("p1")
	fid := buildPositiveOnly(g)

	reportA, err := Run(g, Request{FunctionID: fid, RandomCount: 500, RandomSeed: 1})
	require.NoError(t, err)
	reportB, err := Run(g, Request{FunctionID: fid, RandomCount: 500, RandomSeed: 2})
	require.NoError(t, err)

	// Both seeds exercise the boundary-weighted generator against the same
	// precondition, so both should turn up at least one violation (x<=0 is
	// one of the boundary values drawn 30% of the time), but the exact
	// counterexamples need not match across different seeds.
	assert.NotEmpty(t, reportA.Failures)
	assert.NotEmpty(t, reportB.Failures)
}

func TestRun_UnknownFunction_ReturnsNotFound(t *testing.T) {
	g := domain.NewProgramGraph("p1")
	_, err := Run(g, Request{FunctionID: domain.FunctionId(999)})
	assert.Error(t, err)
}

package interpreter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lmlang/internal/domain"
)

// buildAddOne creates `fn add_one(x: i64) -> i64 { return x + 1 }`.
func buildAddOne(g *domain.ProgramGraph) domain.FunctionId {
	fid := g.InsertFunction(domain.FunctionDef{
		Name:   "add_one",
		Module: g.RootModule(),
		Params: []domain.TypeId{domain.TypeI64},
		Return: domain.TypeI64,
	}, nil)

	param := g.InsertComputeNode(fid, domain.ComputeNodeOp{Tag: domain.OpParameter, ParamIndex: 0})
	one := g.InsertComputeNode(fid, domain.ComputeNodeOp{Tag: domain.OpConst, Const: domain.ConstValue{Type: domain.TypeI64, I: 1}})
	add := g.InsertComputeNode(fid, domain.ComputeNodeOp{Tag: domain.OpBinaryArith, Arith: domain.ArithAdd})
	ret := g.InsertComputeNode(fid, domain.ComputeNodeOp{Tag: domain.OpReturn})

	g.AddFlowEdge(domain.FlowEdge{Kind: domain.FlowData, Source: param, Target: add, TargetPort: 0, ValueType: domain.TypeI64})
	g.AddFlowEdge(domain.FlowEdge{Kind: domain.FlowData, Source: one, Target: add, TargetPort: 1, ValueType: domain.TypeI64})
	g.AddFlowEdge(domain.FlowEdge{Kind: domain.FlowData, Source: add, Target: ret, TargetPort: 0, ValueType: domain.TypeI64})
	g.AddFlowEdge(domain.FlowEdge{Kind: domain.FlowControl, Source: add, Target: ret})

	fn := g.Functions[fid]
	fn.EntryNode = add
	fn.HasEntry = true
	return fid
}

func TestInterpreter_Completes(t *testing.T) {
	g := domain.NewProgramGraph("p1")
	fid := buildAddOne(g)

	it, err := New(g, fid, []Value{intValue(domain.TypeI64, 41)}, Options{})
	require.NoError(t, err)

	res := it.Run()
	require.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, int64(42), res.Value.Int)
	assert.NotEmpty(t, res.Trace)
}

func TestInterpreter_PreconditionViolation(t *testing.T) {
	g := domain.NewProgramGraph("p1")
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

	it, err := New(g, fid, []Value{intValue(domain.TypeI64, -5)}, Options{})
	require.NoError(t, err)

	res := it.Run()
	require.Equal(t, StatusContractViolation, res.Status)
	assert.Equal(t, string(domain.ContractPrecondition), res.Violation.Kind)
	assert.Equal(t, uint64(pre), res.Violation.NodeID)
}

func TestInterpreter_StepBudgetExhausted(t *testing.T) {
	g := domain.NewProgramGraph("p1")
	fid := g.InsertFunction(domain.FunctionDef{Name: "spin", Module: g.RootModule(), Return: domain.TypeUnit}, nil)

	jump := g.InsertComputeNode(fid, domain.ComputeNodeOp{Tag: domain.OpJump})
	g.AddFlowEdge(domain.FlowEdge{Kind: domain.FlowControl, Source: jump, Target: jump})

	fn := g.Functions[fid]
	fn.EntryNode = jump
	fn.HasEntry = true

	it, err := New(g, fid, nil, Options{StepBudget: 10})
	require.NoError(t, err)

	res := it.Run()
	assert.Equal(t, StatusFailed, res.Status)
	assert.Error(t, res.Err)
}

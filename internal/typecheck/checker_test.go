package typecheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lmlang/internal/domain"
)

func newTestFunction(g *domain.ProgramGraph) domain.FunctionId {
	return g.InsertFunction(domain.FunctionDef{
		Name:   "add_one",
		Module: g.RootModule(),
		Params: []domain.TypeId{domain.TypeI64},
		Return: domain.TypeI64,
	}, nil)
}

func TestValidateDataEdge_TypeMismatch(t *testing.T) {
	g := domain.NewProgramGraph("p1")
	fid := newTestFunction(g)

	param := g.InsertComputeNode(fid, domain.ComputeNodeOp{Tag: domain.OpParameter, ParamIndex: 0})
	ret := g.InsertComputeNode(fid, domain.ComputeNodeOp{Tag: domain.OpReturn})

	e := domain.FlowEdge{Kind: domain.FlowData, Source: param, Target: ret, ValueType: domain.TypeBool}
	diags := ValidateDataEdge(g, e)
	require.NotEmpty(t, diags)
	found := false
	for _, d := range diags {
		if d.Code == "TYPE_MISMATCH" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateDataEdge_OK(t *testing.T) {
	g := domain.NewProgramGraph("p1")
	fid := newTestFunction(g)

	param := g.InsertComputeNode(fid, domain.ComputeNodeOp{Tag: domain.OpParameter, ParamIndex: 0})
	ret := g.InsertComputeNode(fid, domain.ComputeNodeOp{Tag: domain.OpReturn})

	e := domain.FlowEdge{Kind: domain.FlowData, Source: param, Target: ret, ValueType: domain.TypeI64}
	diags := ValidateDataEdge(g, e)
	assert.Empty(t, Errors(diags))
}

func TestValidateDataEdge_NonNumericArithmetic(t *testing.T) {
	g := domain.NewProgramGraph("p1")
	fid := newTestFunction(g)

	boolConst := g.InsertComputeNode(fid, domain.ComputeNodeOp{Tag: domain.OpConst, Const: domain.ConstValue{Type: domain.TypeBool, Bool: true}})
	add := g.InsertComputeNode(fid, domain.ComputeNodeOp{Tag: domain.OpBinaryArith, Arith: domain.ArithAdd})

	e := domain.FlowEdge{Kind: domain.FlowData, Source: boolConst, Target: add, TargetPort: 0, ValueType: domain.TypeBool}
	diags := Errors(ValidateDataEdge(g, e))
	require.NotEmpty(t, diags)
	found := false
	for _, d := range diags {
		if d.Code == "NON_NUMERIC_ARITHMETIC" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateGraph_MissingTerminator(t *testing.T) {
	g := domain.NewProgramGraph("p1")
	fid := newTestFunction(g)

	param := g.InsertComputeNode(fid, domain.ComputeNodeOp{Tag: domain.OpParameter, ParamIndex: 0})
	fn := g.Functions[fid]
	fn.EntryNode = param
	fn.HasEntry = true

	diags := Errors(ValidateGraph(g, fid))
	require.NotEmpty(t, diags)
	found := false
	for _, d := range diags {
		if d.Code == "MISSING_TERMINATOR" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateGraph_WellFormed(t *testing.T) {
	g := domain.NewProgramGraph("p1")
	fid := newTestFunction(g)

	param := g.InsertComputeNode(fid, domain.ComputeNodeOp{Tag: domain.OpParameter, ParamIndex: 0})
	ret := g.InsertComputeNode(fid, domain.ComputeNodeOp{Tag: domain.OpReturn})

	g.AddFlowEdge(domain.FlowEdge{Kind: domain.FlowData, Source: param, Target: ret, ValueType: domain.TypeI64})
	g.AddFlowEdge(domain.FlowEdge{Kind: domain.FlowControl, Source: param, Target: ret})

	fn := g.Functions[fid]
	fn.EntryNode = param
	fn.HasEntry = true

	diags := Errors(ValidateGraph(g, fid))
	assert.Empty(t, diags)
}

func TestValidateGraph_LoopMissingBackEdge(t *testing.T) {
	g := domain.NewProgramGraph("p1")
	fid := newTestFunction(g)

	loop := g.InsertComputeNode(fid, domain.ComputeNodeOp{Tag: domain.OpLoop})
	ret := g.InsertComputeNode(fid, domain.ComputeNodeOp{Tag: domain.OpReturn})
	g.AddFlowEdge(domain.FlowEdge{Kind: domain.FlowControl, Source: loop, Target: ret})

	fn := g.Functions[fid]
	fn.EntryNode = loop
	fn.HasEntry = true

	diags := Errors(ValidateGraph(g, fid))
	found := false
	for _, d := range diags {
		if d.Code == "LOOP_MISSING_BACK_EDGE" {
			found = true
		}
	}
	assert.True(t, found)
}

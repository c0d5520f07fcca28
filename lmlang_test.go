package lmlang

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lmlang/internal/domain"
	"lmlang/pkg/program"
)

func TestFacade_BuildCommitAndVerify(t *testing.T) {
	g := NewProgram("facade-demo")
	svc := NewMutationService(g)

	b := program.New(g)
	fb := b.Function("double", nil, domain.VisPublic, []TypeId{TypeId(1)}, TypeId(1))
	param := fb.Entry(domain.ComputeNodeOp{Tag: domain.OpParameter})
	two := fb.Node(domain.ComputeNodeOp{Tag: domain.OpConst, Const: domain.ConstValue{Type: TypeId(1), I: 2}})
	mul := fb.Node(domain.ComputeNodeOp{Tag: domain.OpBinaryArith, Arith: domain.ArithMul})
	ret := fb.Node(domain.ComputeNodeOp{Tag: domain.OpReturn})
	fb.DataEdge(param, mul, 0, 0, TypeId(1))
	fb.DataEdge(two, mul, 0, 1, TypeId(1))
	fb.DataEdge(mul, ret, 0, 0, TypeId(1))
	fb.ControlEdge(param, ret, nil)
	b = fb.Done()

	resp, err := b.Commit(context.Background(), svc)
	require.NoError(t, err)
	require.True(t, resp.Committed)
	require.NotNil(t, resp.Created[0].FunctionID)

	fid := *resp.Created[0].FunctionID
	diags := Verify(svc.Graph(), fid)
	assert.Empty(t, diags)

	qs := NewQueryService(svc.Graph())
	overview := qs.ProgramOverview()
	assert.NotNil(t, overview)
}

func TestFacade_MemoryStoreSatisfiesGraphStore(t *testing.T) {
	store := NewMemoryStore()
	var s GraphStore = store
	assert.NotNil(t, s)
}

func TestFacade_DetailLevelConstants(t *testing.T) {
	assert.Equal(t, DetailLevel("summary"), DetailSummary)
	assert.Equal(t, DetailLevel("standard"), DetailStandard)
	assert.Equal(t, DetailLevel("full"), DetailFull)
}

func TestFacade_RunStatusConstants(t *testing.T) {
	assert.NotEqual(t, StatusCompleted, StatusContractViolation)
	assert.NotEqual(t, StatusError, StatusStepLimitExceeded)
}

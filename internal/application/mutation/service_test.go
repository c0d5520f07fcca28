package mutation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lmlang/internal/domain"
	derr "lmlang/internal/domain/errors"
	"lmlang/internal/hashing"
)

// denyingLocks is a LockChecker that always reports a conflict, for
// exercising Propose's lock-gating path without pulling in the full
// concurrency registry.
type denyingLocks struct{}

func (denyingLocks) CheckFunctionWrite(fid domain.FunctionId, agentID string, hasAgent bool) *derr.ConflictWithDetails {
	return &derr.ConflictWithDetails{ConflictKind: "lock_held", FunctionID: "x", HolderAgentID: "other-agent"}
}

func (denyingLocks) CheckStructureWrite(agentID string, hasAgent bool) *derr.ConflictWithDetails {
	return &derr.ConflictWithDetails{ConflictKind: "structure_lock_held", HolderAgentID: "other-agent"}
}

// buildAddOne wires param -> return(param), an identity function over i64,
// as a minimal well-formed target for mutation tests.
func buildAddOne(t *testing.T) (*domain.ProgramGraph, domain.FunctionId, domain.NodeId, domain.NodeId) {
	t.Helper()
	g := domain.NewProgramGraph("p1")
	fid := g.InsertFunction(domain.FunctionDef{
		Name:   "identity",
		Module: g.RootModule(),
		Params: []domain.TypeId{domain.TypeI64},
		Return: domain.TypeI64,
	}, nil)

	param := g.InsertComputeNode(fid, domain.ComputeNodeOp{Tag: domain.OpParameter, ParamIndex: 0})
	ret := g.InsertComputeNode(fid, domain.ComputeNodeOp{Tag: domain.OpReturn})
	g.AddFlowEdge(domain.FlowEdge{Kind: domain.FlowData, Source: param, Target: ret, ValueType: domain.TypeI64})

	fn := g.Functions[fid]
	fn.EntryNode = param
	fn.HasEntry = true

	return g, fid, param, ret
}

func TestPropose_AddNode_Commits(t *testing.T) {
	g, fid, _, _ := buildAddOne(t)
	svc := NewService(g)

	constNode := domain.ComputeNodeOp{Tag: domain.OpConst, Const: domain.ConstValue{Type: domain.TypeI64, I: 1}}
	resp, err := svc.Propose(context.Background(), ProposeEditRequest{
		Mutations: []EditCommand{
			{Kind: AddNode, Owner: fid, Op: constNode},
		},
	})
	require.NoError(t, err)
	assert.True(t, resp.Committed)
	require.Len(t, resp.Created, 1)
	require.NotNil(t, resp.Created[0].NodeID)
	assert.Len(t, svc.History(), 1)
}

func TestPropose_DryRun_DoesNotCommit(t *testing.T) {
	g, fid, _, _ := buildAddOne(t)
	svc := NewService(g)

	resp, err := svc.Propose(context.Background(), ProposeEditRequest{
		DryRun: true,
		Mutations: []EditCommand{
			{Kind: AddNode, Owner: fid, Op: domain.ComputeNodeOp{Tag: domain.OpConst, Const: domain.ConstValue{Type: domain.TypeI64, I: 2}}},
		},
	})
	require.NoError(t, err)
	assert.False(t, resp.Committed)
	assert.Empty(t, svc.History())
}

func TestPropose_TypeMismatch_RejectsWholeBatch(t *testing.T) {
	g, fid, _, ret := buildAddOne(t)
	svc := NewService(g)

	boolNode := g.InsertComputeNode(fid, domain.ComputeNodeOp{Tag: domain.OpConst, Const: domain.ConstValue{Type: domain.TypeBool, Bool: true}})

	resp, err := svc.Propose(context.Background(), ProposeEditRequest{
		Mutations: []EditCommand{
			// declares i64 on an edge whose source actually produces bool
			{Kind: AddDataEdge, Edge: domain.FlowEdge{Kind: domain.FlowData, Source: boolNode, Target: ret, ValueType: domain.TypeI64}},
		},
	})
	require.NoError(t, err)
	assert.False(t, resp.Committed)
	assert.NotEmpty(t, resp.Diagnostics)
	assert.Empty(t, svc.History())
}

func TestUndoRedo_RoundTrips(t *testing.T) {
	g, fid, _, _ := buildAddOne(t)
	svc := NewService(g)

	resp, err := svc.Propose(context.Background(), ProposeEditRequest{
		Mutations: []EditCommand{
			{Kind: AddNode, Owner: fid, Op: domain.ComputeNodeOp{Tag: domain.OpConst, Const: domain.ConstValue{Type: domain.TypeI64, I: 7}}},
		},
	})
	require.NoError(t, err)
	require.True(t, resp.Committed)
	newID := *resp.Created[0].NodeID

	_, err = svc.Undo(context.Background())
	require.NoError(t, err)
	assert.Empty(t, svc.History())
	_, ok := svc.Graph().GetComputeNode(newID)
	assert.False(t, ok)

	_, err = svc.Redo(context.Background())
	require.NoError(t, err)
	assert.Len(t, svc.History(), 1)
	_, ok = svc.Graph().GetComputeNode(newID)
	assert.True(t, ok)
}

func TestCheckpoint_RestoresSnapshot(t *testing.T) {
	g, fid, _, _ := buildAddOne(t)
	svc := NewService(g)

	cp := svc.Checkpoint("before-edit")

	_, err := svc.Propose(context.Background(), ProposeEditRequest{
		Mutations: []EditCommand{
			{Kind: AddNode, Owner: fid, Op: domain.ComputeNodeOp{Tag: domain.OpConst, Const: domain.ConstValue{Type: domain.TypeI64, I: 9}}},
		},
	})
	require.NoError(t, err)
	assert.Len(t, svc.Graph().NodesOwnedBy(fid), 3)

	require.NoError(t, svc.RestoreCheckpoint(context.Background(), cp))
	assert.Len(t, svc.Graph().NodesOwnedBy(fid), 2)
}

func TestPropose_ExpectedHashMismatch_ReturnsConflict(t *testing.T) {
	g, fid, _, _ := buildAddOne(t)
	svc := NewService(g)

	resp, err := svc.Propose(context.Background(), ProposeEditRequest{
		Mutations: []EditCommand{{Kind: AddNode, Owner: fid, Op: domain.ComputeNodeOp{Tag: domain.OpConst, Const: domain.ConstValue{Type: domain.TypeI64, I: 1}}}},
		ExpectedHashes: map[domain.FunctionId]hashing.Hash{
			fid: hashing.Hash{0xFF}, // deliberately wrong
		},
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Conflict)
	assert.Equal(t, "hash_mismatch", resp.Conflict.ConflictKind)
}

func TestPropose_LockHeldByAnotherAgent_ReturnsConflict(t *testing.T) {
	g, fid, _, _ := buildAddOne(t)
	svc := NewService(g).WithLocks(denyingLocks{})

	resp, err := svc.Propose(context.Background(), ProposeEditRequest{
		Mutations: []EditCommand{
			{Kind: AddNode, Owner: fid, Op: domain.ComputeNodeOp{Tag: domain.OpConst, Const: domain.ConstValue{Type: domain.TypeI64, I: 1}}},
		},
		AgentID:  "agent-a",
		HasAgent: true,
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Conflict)
	assert.Equal(t, "lock_held", resp.Conflict.ConflictKind)
	assert.False(t, resp.Committed)
	assert.Empty(t, svc.History())
}

package propagation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lmlang/internal/application/mutation"
	"lmlang/internal/domain"
)

func TestFlush_EmptyQueue_IsNoOp(t *testing.T) {
	g := domain.NewProgramGraph("p1")
	eng := NewEngine()
	report := eng.Flush(context.Background(), g)
	assert.Equal(t, FlushReport{}, report)
}

func TestFlush_FunctionAdded_ExpandsScaffold(t *testing.T) {
	g := domain.NewProgramGraph("p1")
	svc := mutation.NewService(g)

	resp, err := svc.Propose(context.Background(), mutation.ProposeEditRequest{
		Mutations: []mutation.EditCommand{
			{Kind: mutation.AddFunction, Function: domain.FunctionDef{
				Name:   "f",
				Module: g.RootModule(),
				Params: []domain.TypeId{domain.TypeI64},
				Return: domain.TypeI64,
			}},
		},
	})
	require.NoError(t, err)
	require.True(t, resp.Committed)
	fid := *resp.Created[0].FunctionID

	assert.Empty(t, svc.Graph().NodesOwnedBy(fid))

	eng := NewEngine()
	report := eng.Flush(context.Background(), svc.Graph())
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Applied)

	owned := svc.Graph().NodesOwnedBy(fid)
	require.Len(t, owned, 2)
	fn := svc.Graph().Functions[fid]
	assert.True(t, fn.HasEntry)

	// re-flushing with no new events is a no-op
	assert.Equal(t, FlushReport{}, eng.Flush(context.Background(), svc.Graph()))
}

func TestFlush_BodyEdited_RefreshesSummary(t *testing.T) {
	g := domain.NewProgramGraph("p1")
	svc := mutation.NewService(g)

	resp, err := svc.Propose(context.Background(), mutation.ProposeEditRequest{
		Mutations: []mutation.EditCommand{
			{Kind: mutation.AddFunction, Function: domain.FunctionDef{Name: "f", Module: g.RootModule(), Return: domain.TypeUnit}},
		},
	})
	require.NoError(t, err)
	fid := *resp.Created[0].FunctionID

	eng := NewEngine()
	eng.Flush(context.Background(), svc.Graph()) // expand scaffold first

	resp2, err := svc.Propose(context.Background(), mutation.ProposeEditRequest{
		Mutations: []mutation.EditCommand{
			{Kind: mutation.AddNode, Owner: fid, Op: domain.ComputeNodeOp{Tag: domain.OpConst, Const: domain.ConstValue{Type: domain.TypeI64, I: 1}}},
		},
	})
	require.NoError(t, err)
	require.True(t, resp2.Committed)

	report := eng.Flush(context.Background(), svc.Graph())
	assert.Equal(t, 1, report.Applied)
	require.Len(t, report.RefreshedSemanticNodes, 1)

	semIdx := svc.Graph().FunctionSemanticNodes[fid]
	sem, ok := svc.Graph().GetSemanticNode(semIdx)
	require.True(t, ok)
	require.NotNil(t, sem.FnSummary)
	assert.Equal(t, 1, sem.FnSummary.OpHistogram[domain.OpConst])
}

type fakeRefresher struct {
	calls int
	text  string
}

func (f *fakeRefresher) Embed(ctx context.Context, text string) ([]float32, string, error) {
	f.calls++
	f.text = text
	return []float32{1, 2, 3}, "fake-model", nil
}

func TestFlush_BodyEdited_RefreshesDirtyEmbeddingOnNextPass(t *testing.T) {
	g := domain.NewProgramGraph("p1")
	svc := mutation.NewService(g)

	resp, err := svc.Propose(context.Background(), mutation.ProposeEditRequest{
		Mutations: []mutation.EditCommand{
			{Kind: mutation.AddFunction, Function: domain.FunctionDef{Name: "f", Module: g.RootModule(), Return: domain.TypeUnit}},
		},
	})
	require.NoError(t, err)
	fid := *resp.Created[0].FunctionID

	eng := NewEngine()
	eng.Flush(context.Background(), svc.Graph()) // expand scaffold

	semIdx := svc.Graph().FunctionSemanticNodes[fid]
	_, err = svc.Propose(context.Background(), mutation.ProposeEditRequest{
		Mutations: []mutation.EditCommand{
			{Kind: mutation.AttachEmbedding, SemanticTarget: semIdx, Embedding: domain.Embedding{Vector: []float32{0, 0}, Model: "stale-model"}},
		},
	})
	require.NoError(t, err)

	refresher := &fakeRefresher{}
	eng.WithEmbeddingRefresher(refresher)

	_, err = svc.Propose(context.Background(), mutation.ProposeEditRequest{
		Mutations: []mutation.EditCommand{
			{Kind: mutation.AddNode, Owner: fid, Op: domain.ComputeNodeOp{Tag: domain.OpConst, Const: domain.ConstValue{Type: domain.TypeI64, I: 5}}},
		},
	})
	require.NoError(t, err)

	eng.Flush(context.Background(), svc.Graph()) // recomputes summary, marks embedding dirty, enqueues invalidation
	assert.Equal(t, 0, refresher.calls)

	report := eng.Flush(context.Background(), svc.Graph()) // processes the invalidation follow-up
	assert.Equal(t, 1, refresher.calls)
	assert.Equal(t, 1, report.Applied)

	sem, ok := svc.Graph().GetSemanticNode(semIdx)
	require.True(t, ok)
	require.NotNil(t, sem.Embedding)
	assert.False(t, sem.Embedding.Dirty)
	assert.Equal(t, []float32{1, 2, 3}, sem.Embedding.Vector)
	assert.Equal(t, "fake-model", sem.Embedding.Model)
}

func TestFlush_EmbeddingInvalidated_NoRefresherLeavesEventApplied(t *testing.T) {
	g := domain.NewProgramGraph("p1")
	svc := mutation.NewService(g)

	resp, err := svc.Propose(context.Background(), mutation.ProposeEditRequest{
		Mutations: []mutation.EditCommand{
			{Kind: mutation.AddFunction, Function: domain.FunctionDef{Name: "f", Module: g.RootModule(), Return: domain.TypeUnit}},
		},
	})
	require.NoError(t, err)
	fid := *resp.Created[0].FunctionID

	eng := NewEngine()
	eng.Flush(context.Background(), svc.Graph())
	semIdx := svc.Graph().FunctionSemanticNodes[fid]
	_, err = svc.Propose(context.Background(), mutation.ProposeEditRequest{
		Mutations: []mutation.EditCommand{
			{Kind: mutation.AttachEmbedding, SemanticTarget: semIdx, Embedding: domain.Embedding{Vector: []float32{0, 0}}},
		},
	})
	require.NoError(t, err)

	// no refresher attached
	_, err = svc.Propose(context.Background(), mutation.ProposeEditRequest{
		Mutations: []mutation.EditCommand{
			{Kind: mutation.AddNode, Owner: fid, Op: domain.ComputeNodeOp{Tag: domain.OpConst, Const: domain.ConstValue{Type: domain.TypeI64, I: 1}}},
		},
	})
	require.NoError(t, err)
	eng.Flush(context.Background(), svc.Graph())

	report := eng.Flush(context.Background(), svc.Graph())
	assert.Equal(t, 1, report.Applied)

	sem, ok := svc.Graph().GetSemanticNode(semIdx)
	require.True(t, ok)
	require.NotNil(t, sem.Embedding)
	assert.True(t, sem.Embedding.Dirty) // left dirty, no provider configured
}

func TestFlush_ContractAdded_SplicesPreconditionNode(t *testing.T) {
	g := domain.NewProgramGraph("p1")
	svc := mutation.NewService(g)

	resp, err := svc.Propose(context.Background(), mutation.ProposeEditRequest{
		Mutations: []mutation.EditCommand{
			{Kind: mutation.AddFunction, Function: domain.FunctionDef{
				Name: "f", Module: g.RootModule(),
				Params: []domain.TypeId{domain.TypeBool}, Return: domain.TypeUnit,
			}},
		},
	})
	require.NoError(t, err)
	fid := *resp.Created[0].FunctionID

	eng := NewEngine()
	eng.Flush(context.Background(), svc.Graph())

	fn := svc.Graph().Functions[fid]
	param := fn.EntryNode // parameter node (bool), entry of the scaffold

	resp2, err := svc.Propose(context.Background(), mutation.ProposeEditRequest{
		Mutations: []mutation.EditCommand{
			{Kind: mutation.AddContract, ContractOwner: fid, ContractKind: domain.ContractPrecondition, ConditionNode: param, InsertBefore: param},
		},
	})
	require.NoError(t, err)
	assert.True(t, resp2.Committed)

	before := len(svc.Graph().NodesOwnedBy(fid))
	report := eng.Flush(context.Background(), svc.Graph())
	_ = report
	after := len(svc.Graph().NodesOwnedBy(fid))
	assert.Equal(t, before, after) // AddContract already spliced synchronously; flush's idempotency check finds it present
}

// Package program provides a fluent builder for assembling batches of
// mutation commands, letting a caller wire a multi-node function body
// within one atomic propose call.
package program

import (
	"context"

	"lmlang/internal/application/mutation"
	"lmlang/internal/domain"
)

// Builder accumulates EditCommands for a single propose call. IDs are
// reserved only on commit (spec.md §4.4), so Builder predicts them by
// mirroring the target graph's id generators locally, starting from its
// current PeekNext* values — valid as long as every Add command queued
// through this builder actually commits in the order it was queued.
type Builder struct {
	mutations []mutation.EditCommand
	dryRun    bool
	agentID   string
	hasAgent  bool

	nextNode     domain.NodeId
	nextFunction domain.FunctionId
	nextModule   domain.ModuleId
}

// New starts an empty batch against g's current id generators.
func New(g *domain.ProgramGraph) *Builder {
	return &Builder{
		nextNode:     g.PeekNextNodeID(),
		nextFunction: g.PeekNextFunctionID(),
		nextModule:   g.PeekNextModuleID(),
	}
}

// DryRun marks the eventual Commit as a dry run: validated but never
// applied to the target graph.
func (b *Builder) DryRun(dryRun bool) *Builder {
	b.dryRun = dryRun
	return b
}

// AsAgent attaches an agent identity to the eventual Commit, required
// whenever the target service is wired to a concurrency registry.
func (b *Builder) AsAgent(agentID string) *Builder {
	b.agentID = agentID
	b.hasAgent = true
	return b
}

// Module appends an AddModule command and returns the id it will receive
// on commit, predicted from the local counter.
func (b *Builder) Module(name string, parent domain.ModuleId) domain.ModuleId {
	id := b.nextModule
	b.nextModule++
	b.mutations = append(b.mutations, mutation.EditCommand{
		Kind:         mutation.AddModule,
		ModuleName:   name,
		ParentModule: parent,
	})
	return id
}

// Function starts a function definition, returning a nested builder whose
// Node/Entry calls predict body node ids the same way Module predicts
// module ids. Owner is resolved against the FunctionId Done will reserve.
func (b *Builder) Function(name string, modulePath []string, visibility domain.Visibility, params []domain.TypeId, ret domain.TypeId) *FunctionBuilder {
	return &FunctionBuilder{
		parent: b,
		id:     b.nextFunction,
		def: domain.FunctionDef{
			Name:       name,
			Visibility: visibility,
			Params:     params,
			Return:     ret,
		},
		modulePath: modulePath,
	}
}

// Node appends a standalone AddNode command owned by an existing function
// and returns the node id it will receive on commit.
func (b *Builder) Node(owner domain.FunctionId, op domain.ComputeNodeOp) domain.NodeId {
	id := b.nextNode
	b.nextNode++
	b.mutations = append(b.mutations, mutation.EditCommand{
		Kind:  mutation.AddNode,
		Owner: owner,
		Op:    op,
	})
	return id
}

// DataEdge appends an AddDataEdge command wiring source's output port to
// target's input port.
func (b *Builder) DataEdge(source, target domain.NodeId, sourcePort, targetPort uint32, valueType domain.TypeId) *Builder {
	b.mutations = append(b.mutations, mutation.EditCommand{
		Kind: mutation.AddDataEdge,
		Edge: domain.FlowEdge{
			Kind:       domain.FlowData,
			Source:     source,
			Target:     target,
			SourcePort: sourcePort,
			TargetPort: targetPort,
			ValueType:  valueType,
		},
	})
	return b
}

// ControlEdge appends an AddControlEdge command. branchTaken is nil for an
// unconditional edge, or the selected branch index out of an IfElse/Match.
func (b *Builder) ControlEdge(source, target domain.NodeId, branchTaken *uint32) *Builder {
	b.mutations = append(b.mutations, mutation.EditCommand{
		Kind: mutation.AddControlEdge,
		Edge: domain.FlowEdge{
			Kind:        domain.FlowControl,
			Source:      source,
			Target:      target,
			BranchTaken: branchTaken,
		},
	})
	return b
}

// Contract appends an AddContract command splicing a Precondition,
// Postcondition, or Invariant node into owner's control flow immediately
// before insertBefore, reading conditionNode's boolean output. The spliced
// node also consumes one predicted node id, mirroring SpliceContract's own
// InsertComputeNode call.
func (b *Builder) Contract(kind domain.ContractKind, owner domain.FunctionId, conditionNode, insertBefore domain.NodeId) domain.NodeId {
	id := b.nextNode
	b.nextNode++
	b.mutations = append(b.mutations, mutation.EditCommand{
		Kind:          mutation.AddContract,
		ContractKind:  kind,
		ContractOwner: owner,
		ConditionNode: conditionNode,
		InsertBefore:  insertBefore,
	})
	return id
}

// Embedding appends an AttachEmbedding command for a semantic node.
func (b *Builder) Embedding(target domain.SemNodeIdx, vector domain.Embedding) *Builder {
	b.mutations = append(b.mutations, mutation.EditCommand{
		Kind:           mutation.AttachEmbedding,
		SemanticTarget: target,
		Embedding:      vector,
	})
	return b
}

// append folds a finished FunctionBuilder's commands back into the batch.
func (b *Builder) append(cmds ...mutation.EditCommand) *Builder {
	b.mutations = append(b.mutations, cmds...)
	return b
}

// Build returns the accumulated batch without committing it.
func (b *Builder) Build() []mutation.EditCommand {
	return b.mutations
}

// Commit proposes the accumulated batch against svc in one call, the same
// all-or-nothing semantics as calling svc.Propose directly with Build's
// result. svc must share the graph this Builder was constructed from, or
// the predicted ids returned by Module/Function/Node/Contract will not
// match what actually commits.
func (b *Builder) Commit(ctx context.Context, svc *mutation.Service) (mutation.ProposeEditResponse, error) {
	return svc.Propose(ctx, mutation.ProposeEditRequest{
		Mutations: b.mutations,
		DryRun:    b.dryRun,
		AgentID:   b.agentID,
		HasAgent:  b.hasAgent,
	})
}

// FunctionBuilder accumulates a function definition and its body nodes
// before folding both into the parent Builder's batch as one AddFunction
// followed by the body's AddNode/edge commands.
type FunctionBuilder struct {
	parent     *Builder
	id         domain.FunctionId
	def        domain.FunctionDef
	modulePath []string
	body       []mutation.EditCommand
	entry      domain.NodeId
	hasEntry   bool
}

// ID returns the FunctionId this function will receive on commit, usable
// immediately to reference it (e.g. as a Contract owner) before Done runs.
func (fb *FunctionBuilder) ID() domain.FunctionId { return fb.id }

// Entry marks the node Node is about to append as the function's entry
// node and returns its predicted id.
func (fb *FunctionBuilder) Entry(op domain.ComputeNodeOp) domain.NodeId {
	id := fb.Node(op)
	fb.entry = id
	fb.hasEntry = true
	return id
}

// Node appends a body node owned by this function and returns its
// predicted id.
func (fb *FunctionBuilder) Node(op domain.ComputeNodeOp) domain.NodeId {
	id := fb.parent.nextNode
	fb.parent.nextNode++
	fb.body = append(fb.body, mutation.EditCommand{Kind: mutation.AddNode, Owner: fb.id, Op: op})
	return id
}

// DataEdge appends a data edge between two of this function's body nodes.
func (fb *FunctionBuilder) DataEdge(source, target domain.NodeId, sourcePort, targetPort uint32, valueType domain.TypeId) *FunctionBuilder {
	fb.body = append(fb.body, mutation.EditCommand{
		Kind: mutation.AddDataEdge,
		Edge: domain.FlowEdge{Kind: domain.FlowData, Source: source, Target: target, SourcePort: sourcePort, TargetPort: targetPort, ValueType: valueType},
	})
	return fb
}

// ControlEdge appends a control edge between two of this function's body
// nodes.
func (fb *FunctionBuilder) ControlEdge(source, target domain.NodeId, branchTaken *uint32) *FunctionBuilder {
	fb.body = append(fb.body, mutation.EditCommand{
		Kind: mutation.AddControlEdge,
		Edge: domain.FlowEdge{Kind: domain.FlowControl, Source: source, Target: target, BranchTaken: branchTaken},
	})
	return fb
}

// Done emits the AddFunction command followed by every accumulated body
// command and returns control to the parent Builder. fb's reserved
// FunctionId (fb.ID()) is the one InsertFunction will assign, since no Add
// command queued ahead of it through this same Builder consumes a
// function id.
func (fb *FunctionBuilder) Done() *Builder {
	fb.def.EntryNode = fb.entry
	fb.def.HasEntry = fb.hasEntry
	fb.parent.nextFunction++

	cmds := make([]mutation.EditCommand, 0, len(fb.body)+1)
	cmds = append(cmds, mutation.EditCommand{
		Kind:       mutation.AddFunction,
		Function:   fb.def,
		ModulePath: fb.modulePath,
	})
	cmds = append(cmds, fb.body...)
	return fb.parent.append(cmds...)
}

package mutation

import (
	"fmt"

	"lmlang/internal/domain"
	derr "lmlang/internal/domain/errors"
	"lmlang/internal/typecheck"
)

// applyOne performs cmd's structural edit against g and returns the entity
// it created (if any), the derived inverse command to undo it, and any
// diagnostics from type-checking the edit (spec.md §4.4: "the service
// clones the affected subgraph, applies the op, runs edge and local graph
// validation, and commits iff validation passes").
func applyOne(g *domain.ProgramGraph, cmd EditCommand) (CreatedEntity, EditCommand, []derr.Diagnostic, error) {
	switch cmd.Kind {
	case AddNode:
		return applyAddNode(g, cmd)
	case RemoveNode:
		return applyRemoveNode(g, cmd)
	case ModifyOp:
		return applyModifyOp(g, cmd)
	case AddDataEdge, AddControlEdge:
		return applyAddEdge(g, cmd)
	case RemoveDataEdge, RemoveControlEdge:
		return applyRemoveEdge(g, cmd)
	case AddFunction:
		return applyAddFunction(g, cmd)
	case RemoveFunction:
		return applyRemoveFunction(g, cmd)
	case AddModule:
		return applyAddModule(g, cmd)
	case RemoveModule:
		return applyRemoveModule(g, cmd)
	case AddContract:
		return applyAddContract(g, cmd)
	case AttachEmbedding:
		return applyAttachEmbedding(g, cmd)
	default:
		return CreatedEntity{}, EditCommand{}, nil, fmt.Errorf("mutation: unknown kind %q", cmd.Kind)
	}
}

func applyAddNode(g *domain.ProgramGraph, cmd EditCommand) (CreatedEntity, EditCommand, []derr.Diagnostic, error) {
	id := g.InsertComputeNode(cmd.Owner, cmd.Op)
	inverse := EditCommand{Kind: RemoveNode, NodeID: id, Owner: cmd.Owner}
	return CreatedEntity{NodeID: &id}, inverse, nil, nil
}

func applyRemoveNode(g *domain.ProgramGraph, cmd EditCommand) (CreatedEntity, EditCommand, []derr.Diagnostic, error) {
	n, ok := g.GetComputeNode(cmd.NodeID)
	if !ok {
		return CreatedEntity{}, EditCommand{}, nil, &derr.NotFound{Kind: "node", ID: fmt.Sprint(cmd.NodeID)}
	}
	for _, eid := range g.OutgoingEdges(cmd.NodeID) {
		g.RemoveFlowEdge(eid)
	}
	for _, eid := range g.IncomingEdges(cmd.NodeID) {
		g.RemoveFlowEdge(eid)
	}
	g.RemoveComputeNode(cmd.NodeID)
	inverse := EditCommand{Kind: AddNode, Owner: n.Owner, Op: n.Op}
	return CreatedEntity{}, inverse, nil, nil
}

func applyModifyOp(g *domain.ProgramGraph, cmd EditCommand) (CreatedEntity, EditCommand, []derr.Diagnostic, error) {
	n, ok := g.GetComputeNode(cmd.NodeID)
	if !ok {
		return CreatedEntity{}, EditCommand{}, nil, &derr.NotFound{Kind: "node", ID: fmt.Sprint(cmd.NodeID)}
	}
	prev := n.Op
	n.Op = cmd.Op
	g.SetComputeNode(cmd.NodeID, n)
	inverse := EditCommand{Kind: ModifyOp, NodeID: cmd.NodeID, Owner: n.Owner, Op: prev}
	return CreatedEntity{}, inverse, nil, nil
}

func applyAddEdge(g *domain.ProgramGraph, cmd EditCommand) (CreatedEntity, EditCommand, []derr.Diagnostic, error) {
	eid := g.AddFlowEdge(cmd.Edge)
	var diags []derr.Diagnostic
	if cmd.Edge.Kind == domain.FlowData {
		diags = typecheck.ValidateDataEdge(g, cmd.Edge)
		if len(typecheck.Errors(diags)) > 0 {
			g.RemoveFlowEdge(eid)
			return CreatedEntity{}, EditCommand{}, diags, &derr.ValidationError{Diagnostics: diags}
		}
	}
	inverseKind := RemoveDataEdge
	if cmd.Edge.Kind == domain.FlowControl {
		inverseKind = RemoveControlEdge
	}
	inverse := EditCommand{Kind: inverseKind, EdgeID: eid}
	return CreatedEntity{EdgeID: &eid}, inverse, diags, nil
}

func applyRemoveEdge(g *domain.ProgramGraph, cmd EditCommand) (CreatedEntity, EditCommand, []derr.Diagnostic, error) {
	e, ok := g.GetFlowEdge(cmd.EdgeID)
	if !ok {
		return CreatedEntity{}, EditCommand{}, nil, &derr.NotFound{Kind: "edge", ID: fmt.Sprint(cmd.EdgeID)}
	}
	g.RemoveFlowEdge(cmd.EdgeID)
	inverseKind := AddDataEdge
	if e.Kind == domain.FlowControl {
		inverseKind = AddControlEdge
	}
	inverse := EditCommand{Kind: inverseKind, Edge: e}
	return CreatedEntity{}, inverse, nil, nil
}

func applyAddFunction(g *domain.ProgramGraph, cmd EditCommand) (CreatedEntity, EditCommand, []derr.Diagnostic, error) {
	id := g.InsertFunction(cmd.Function, cmd.ModulePath)
	inverse := EditCommand{Kind: RemoveFunction, FunctionID: id}
	return CreatedEntity{FunctionID: &id}, inverse, nil, nil
}

func applyRemoveFunction(g *domain.ProgramGraph, cmd EditCommand) (CreatedEntity, EditCommand, []derr.Diagnostic, error) {
	fn, ok := g.Functions[cmd.FunctionID]
	if !ok {
		return CreatedEntity{}, EditCommand{}, nil, &derr.NotFound{Kind: "function", ID: fmt.Sprint(cmd.FunctionID)}
	}
	modPath := g.ModulePath(fn.Module)
	snapshot := *fn
	for _, nid := range g.NodesOwnedBy(cmd.FunctionID) {
		for _, eid := range g.OutgoingEdges(nid) {
			g.RemoveFlowEdge(eid)
		}
		for _, eid := range g.IncomingEdges(nid) {
			g.RemoveFlowEdge(eid)
		}
		g.RemoveComputeNode(nid)
	}
	delete(g.Functions, cmd.FunctionID)
	inverse := EditCommand{Kind: AddFunction, Function: snapshot, ModulePath: modPath}
	return CreatedEntity{}, inverse, nil, nil
}

func applyAddModule(g *domain.ProgramGraph, cmd EditCommand) (CreatedEntity, EditCommand, []derr.Diagnostic, error) {
	id := g.InsertModule(cmd.ModuleName, cmd.ParentModule)
	inverse := EditCommand{Kind: RemoveModule, ModuleID: id}
	return CreatedEntity{ModuleID: &id}, inverse, nil, nil
}

func applyRemoveModule(g *domain.ProgramGraph, cmd EditCommand) (CreatedEntity, EditCommand, []derr.Diagnostic, error) {
	m, ok := g.Modules[cmd.ModuleID]
	if !ok {
		return CreatedEntity{}, EditCommand{}, nil, &derr.NotFound{Kind: "module", ID: fmt.Sprint(cmd.ModuleID)}
	}
	if len(m.Children) > 0 {
		return CreatedEntity{}, EditCommand{}, nil, &derr.BadRequest{Message: "module has child modules; remove them first"}
	}
	name, parent := m.Name, m.Parent
	delete(g.Modules, cmd.ModuleID)
	inverse := EditCommand{Kind: AddModule, ModuleName: name, ParentModule: parent}
	return CreatedEntity{}, inverse, nil, nil
}

// applyAddContract inserts a Precondition/Postcondition/Invariant node
// owned by ContractOwner, wired to ConditionNode's boolean output and
// spliced into the control chain immediately before InsertBefore — the
// contract node replaces InsertBefore as the target of InsertBefore's
// current predecessors, then forwards control to InsertBefore itself
// (spec.md §4.2: "contract nodes enforce a boolean input and either pass
// control through or transition the run to ContractViolation").
func applyAddContract(g *domain.ProgramGraph, cmd EditCommand) (CreatedEntity, EditCommand, []derr.Diagnostic, error) {
	id, diags, err := SpliceContract(g, cmd.ContractOwner, cmd.ConditionNode, cmd.InsertBefore, cmd.ContractKind)
	if err != nil {
		return CreatedEntity{}, EditCommand{}, diags, err
	}
	// Undoing an inserted contract is a structural rewrite of its own
	// (restoring the bypassed predecessors), handled as RemoveNode of the
	// contract node by the caller re-deriving edges from the live graph
	// rather than trying to replay this splice in reverse.
	inverse := EditCommand{Kind: RemoveNode, NodeID: id, Owner: cmd.ContractOwner}
	return CreatedEntity{NodeID: &id}, inverse, diags, nil
}

// SpliceContract inserts a Precondition/Postcondition/Invariant node owned
// by owner, reading condition's boolean output, into the control chain
// immediately before insertBefore — exported so both the mutation service
// (AddContract) and the propagation engine's downward ContractAdded
// transform (spec.md §4.6) share one splice implementation.
func SpliceContract(g *domain.ProgramGraph, owner domain.FunctionId, condition, insertBefore domain.NodeId, kind domain.ContractKind) (domain.NodeId, []derr.Diagnostic, error) {
	if _, ok := g.GetComputeNode(insertBefore); !ok {
		return 0, nil, &derr.NotFound{Kind: "node", ID: fmt.Sprint(insertBefore)}
	}
	id := g.InsertComputeNode(owner, domain.ComputeNodeOp{Tag: contractTag(kind), Contract: kind})

	condEdge := domain.FlowEdge{Kind: domain.FlowData, Source: condition, Target: id, SourcePort: 0, TargetPort: 0, ValueType: domain.TypeBool}
	condEID := g.AddFlowEdge(condEdge)
	diags := typecheck.ValidateDataEdge(g, condEdge)
	if len(typecheck.Errors(diags)) > 0 {
		g.RemoveFlowEdge(condEID)
		g.RemoveComputeNode(id)
		return 0, diags, &derr.ValidationError{Diagnostics: diags}
	}

	for _, eid := range g.IncomingEdges(insertBefore) {
		e, _ := g.GetFlowEdge(eid)
		if e.Kind != domain.FlowControl {
			continue
		}
		g.RemoveFlowEdge(eid)
		g.AddFlowEdge(domain.FlowEdge{Kind: domain.FlowControl, Source: e.Source, Target: id})
	}
	g.AddFlowEdge(domain.FlowEdge{Kind: domain.FlowControl, Source: id, Target: insertBefore})

	if fn, ok := g.Functions[owner]; ok && fn.HasEntry && fn.EntryNode == insertBefore {
		fn.EntryNode = id
	}

	return id, diags, nil
}

func contractTag(k domain.ContractKind) domain.OpTag {
	switch k {
	case domain.ContractPrecondition:
		return domain.OpPrecondition
	case domain.ContractPostcondition:
		return domain.OpPostcondition
	default:
		return domain.OpInvariant
	}
}

func applyAttachEmbedding(g *domain.ProgramGraph, cmd EditCommand) (CreatedEntity, EditCommand, []derr.Diagnostic, error) {
	n, ok := g.GetSemanticNode(cmd.SemanticTarget)
	if !ok {
		return CreatedEntity{}, EditCommand{}, nil, &derr.NotFound{Kind: "node", ID: fmt.Sprint(cmd.SemanticTarget)}
	}
	prev := n.Embedding
	emb := cmd.Embedding
	n.Embedding = &emb
	g.SetSemanticNode(cmd.SemanticTarget, n)
	inverse := EditCommand{Kind: AttachEmbedding, SemanticTarget: cmd.SemanticTarget}
	if prev != nil {
		inverse.Embedding = *prev
	}
	return CreatedEntity{}, inverse, nil, nil
}

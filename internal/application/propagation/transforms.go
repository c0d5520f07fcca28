package propagation

import (
	"lmlang/internal/application/mutation"
	"lmlang/internal/domain"
	derr "lmlang/internal/domain/errors"
)

// expandFunctionScaffold builds the initial compute scaffold for a newly
// added function — a Parameter node per declared parameter, chained by
// control edges, terminating in a Return stub (spec.md §4.6 "new function
// expands into a compute scaffold"). Idempotent: a function that already
// owns nodes is left untouched, so a re-flushed or duplicated
// FunctionAdded event is a no-op.
func expandFunctionScaffold(g *domain.ProgramGraph, fid domain.FunctionId) bool {
	fn, ok := g.Functions[fid]
	if !ok {
		return false
	}
	if len(g.NodesOwnedBy(fid)) > 0 {
		return false
	}

	var first, prev domain.NodeId
	hasPrev := false
	for i := range fn.Params {
		pnode := g.InsertComputeNode(fid, domain.ComputeNodeOp{Tag: domain.OpParameter, ParamIndex: uint32(i)})
		if i == 0 {
			first = pnode
		}
		if hasPrev {
			g.AddFlowEdge(domain.FlowEdge{Kind: domain.FlowControl, Source: prev, Target: pnode})
		}
		prev, hasPrev = pnode, true
	}

	ret := g.InsertComputeNode(fid, domain.ComputeNodeOp{Tag: domain.OpReturn})
	if hasPrev {
		g.AddFlowEdge(domain.FlowEdge{Kind: domain.FlowControl, Source: prev, Target: ret})
		if len(fn.Params) > 0 && fn.Params[0] == fn.Return {
			g.AddFlowEdge(domain.FlowEdge{Kind: domain.FlowData, Source: first, Target: ret, ValueType: fn.Return})
		}
	} else {
		first = ret
	}

	fn.EntryNode = first
	fn.HasEntry = true
	return true
}

// rewriteSignature applies a declared parameter/return type change to fn
// (spec.md §4.6 "signature change rewrites Parameter/Return types").
// Payload keys: "params" ([]uint64, TypeId values) and "return" (uint64).
func rewriteSignature(g *domain.ProgramGraph, ev domain.Event) bool {
	fn, ok := g.Functions[ev.FunctionID]
	if !ok || ev.Payload == nil {
		return false
	}
	changed := false
	if raw, ok := ev.Payload["params"].([]uint64); ok {
		params := make([]domain.TypeId, len(raw))
		for i, v := range raw {
			params[i] = domain.TypeId(v)
		}
		fn.Params = params
		changed = true
	}
	if raw, ok := ev.Payload["return"].(uint64); ok {
		fn.Return = domain.TypeId(raw)
		changed = true
	}
	return changed
}

// downwardContractAdded splices the requested contract node into the
// function's control chain via mutation.SpliceContract, the same helper
// the mutation service's AddContract path uses for an immediate-validate
// single-op commit. Idempotent: if insert_before already has a
// contract-tagged predecessor of the same kind reading the same
// condition, the splice is assumed already applied and skipped.
func downwardContractAdded(g *domain.ProgramGraph, ev domain.Event) (bool, *derr.Diagnostic) {
	conditionRaw, ok1 := ev.Payload["condition_node"].(uint64)
	insertBeforeRaw, ok2 := ev.Payload["insert_before"].(uint64)
	kindRaw, ok3 := ev.Payload["contract_kind"].(string)
	if !ok1 || !ok2 || !ok3 {
		return false, nil
	}
	condition := domain.NodeId(conditionRaw)
	insertBefore := domain.NodeId(insertBeforeRaw)
	kind := domain.ContractKind(kindRaw)

	if contractAlreadyPresent(g, insertBefore, condition, kind) {
		return false, nil
	}

	_, diags, err := mutation.SpliceContract(g, ev.FunctionID, condition, insertBefore, kind)
	if err != nil {
		if len(diags) > 0 {
			d := diags[0]
			return false, &d
		}
		return false, &derr.Diagnostic{Severity: derr.SeverityError, Code: derr.CodeInternal, Message: err.Error()}
	}
	return true, nil
}

func contractAlreadyPresent(g *domain.ProgramGraph, insertBefore, condition domain.NodeId, kind domain.ContractKind) bool {
	for _, eid := range g.IncomingEdges(insertBefore) {
		e, ok := g.GetFlowEdge(eid)
		if !ok || e.Kind != domain.FlowControl {
			continue
		}
		n, ok := g.GetComputeNode(e.Source)
		if !ok || n.Op.Contract != kind {
			continue
		}
		for _, condEID := range g.IncomingEdges(e.Source) {
			ce, ok := g.GetFlowEdge(condEID)
			if ok && ce.Kind == domain.FlowData && ce.Source == condition {
				return true
			}
		}
	}
	return false
}

// recomputeFunctionSummary rebuilds fn's semantic summary from its live
// compute graph — op histogram, call graph, contract presence, a
// complexity metric — adds Calls semantic edges for any Call targets, and
// marks the function's embedding scoped-dirty (spec.md §4.6 "upward:
// recomputes semantic summary ... marks embedding scoped-dirty").
func recomputeFunctionSummary(g *domain.ProgramGraph, fid domain.FunctionId) (domain.SemNodeIdx, bool) {
	if _, ok := g.Functions[fid]; !ok {
		return 0, false
	}
	semIdx, ok := g.FunctionSemanticNodes[fid]
	if !ok {
		return 0, false
	}
	sem, ok := g.GetSemanticNode(semIdx)
	if !ok {
		return 0, false
	}

	hist := map[domain.OpTag]int{}
	var calls []domain.FunctionId
	hasPre, hasPost, hasInv := false, false, false
	branches := 0
	for _, nid := range g.NodesOwnedBy(fid) {
		n, ok := g.GetComputeNode(nid)
		if !ok {
			continue
		}
		hist[n.Op.Tag]++
		switch n.Op.Tag {
		case domain.OpCall:
			calls = append(calls, n.Op.Target)
		case domain.OpIfElse, domain.OpLoop, domain.OpMatch, domain.OpBranch:
			branches++
		case domain.OpPrecondition:
			hasPre = true
		case domain.OpPostcondition:
			hasPost = true
		case domain.OpInvariant:
			hasInv = true
		}
	}

	if sem.FnSummary == nil {
		sem.FnSummary = &domain.FunctionSummary{}
	}
	sem.FnSummary.OpHistogram = hist
	sem.FnSummary.Calls = calls
	sem.FnSummary.HasPrecondition = hasPre
	sem.FnSummary.HasPostcondition = hasPost
	sem.FnSummary.HasInvariant = hasInv
	sem.FnSummary.Complexity = branches + 1
	if sem.Embedding != nil {
		sem.Embedding.Dirty = true
	}
	g.SetSemanticNode(semIdx, sem)

	for _, callee := range calls {
		if calleeSem, ok := g.FunctionSemanticNodes[callee]; ok {
			g.AddSemanticEdge(domain.SemanticEdge{Kind: domain.SemCalls, Source: semIdx, Target: calleeSem})
		}
	}

	return semIdx, true
}

package typecheck

import (
	"lmlang/internal/domain"
	derr "lmlang/internal/domain/errors"
)

func ptr64(v uint64) *uint64 { return &v }
func ptrFn(v domain.FunctionId) *uint64 { x := uint64(v); return &x }
func ptrPort(v uint32) *uint32 { return &v }

// ValidateDataEdge checks a single candidate Data edge against the current
// graph state (spec.md §4.1 "Edge validation"). It does not mutate g.
func ValidateDataEdge(g *domain.ProgramGraph, e domain.FlowEdge) []derr.Diagnostic {
	var diags []derr.Diagnostic

	srcNode, ok := g.GetComputeNode(e.Source)
	if !ok {
		diags = append(diags, derr.Diagnostic{
			Severity: derr.SeverityError, Code: derr.CodeMissingInput,
			Message:    "source node does not exist",
			SourceNode: ptr64(uint64(e.Source)),
		})
		return diags
	}
	tgtNode, ok := g.GetComputeNode(e.Target)
	if !ok {
		diags = append(diags, derr.Diagnostic{
			Severity: derr.SeverityError, Code: derr.CodeMissingInput,
			Message:    "target node does not exist",
			TargetNode: ptr64(uint64(e.Target)),
		})
		return diags
	}

	if _, ok := g.Types.Lookup(e.ValueType); !ok {
		diags = append(diags, derr.Diagnostic{
			Severity: derr.SeverityError, Code: derr.CodeUnknownType,
			Message:      "edge value_type is not a registered type",
			SourceNode:   ptr64(uint64(e.Source)),
			TargetNode:   ptr64(uint64(e.Target)),
			ExpectedType: ptr64(uint64(e.ValueType)),
		})
		return diags
	}

	if produced, ok := OutputType(g, e.Source); ok && produced != e.ValueType {
		diags = append(diags, derr.Diagnostic{
			Severity:     derr.SeverityError,
			Code:         derr.CodeTypeMismatch,
			Message:      "edge value_type does not match the type the source node produces",
			SourceNode:   ptr64(uint64(e.Source)),
			TargetNode:   ptr64(uint64(e.Target)),
			ExpectedType: ptr64(uint64(e.ValueType)),
			ActualType:   ptr64(uint64(produced)),
			FunctionID:   ptrFn(srcNode.Owner),
			Port:         ptrPort(e.SourcePort),
		})
	}

	if diag, ok := checkTargetAccepts(g, tgtNode, e); !ok {
		diags = append(diags, diag)
	}

	return diags
}

// checkTargetAccepts validates that the target op can accept e at
// e.TargetPort: arity and numeric/boolean constraints specific to the op.
func checkTargetAccepts(g *domain.ProgramGraph, tgt domain.ComputeNode, e domain.FlowEdge) (derr.Diagnostic, bool) {
	switch tgt.Op.Tag {
	case domain.OpBinaryArith:
		if e.TargetPort > 1 {
			return wrongInputCount(tgt, e, 2), false
		}
		if !g.Types.IsNumeric(e.ValueType) {
			return derr.Diagnostic{
				Severity: derr.SeverityError, Code: derr.CodeNonNumericArithmetic,
				Message:    "BinaryArith requires numeric operands",
				TargetNode: ptr64(uint64(e.Target)),
				FunctionID: ptrFn(tgt.Owner),
				Port:       ptrPort(e.TargetPort),
			}, false
		}
	case domain.OpUnaryArith, domain.OpShift:
		if e.TargetPort > 0 {
			return wrongInputCount(tgt, e, 1), false
		}
		if !g.Types.IsNumeric(e.ValueType) {
			return derr.Diagnostic{
				Severity: derr.SeverityError, Code: derr.CodeNonNumericArithmetic,
				Message:    "arithmetic op requires a numeric operand",
				TargetNode: ptr64(uint64(e.Target)),
				FunctionID: ptrFn(tgt.Owner),
				Port:       ptrPort(e.TargetPort),
			}, false
		}
	case domain.OpCmp:
		if e.TargetPort > 1 {
			return wrongInputCount(tgt, e, 2), false
		}
	case domain.OpLogic:
		if !g.Types.IsBoolean(e.ValueType) {
			return derr.Diagnostic{
				Severity: derr.SeverityError, Code: derr.CodeNonBooleanCondition,
				Message:    "Logic op requires boolean operands",
				TargetNode: ptr64(uint64(e.Target)),
				FunctionID: ptrFn(tgt.Owner),
				Port:       ptrPort(e.TargetPort),
			}, false
		}
	case domain.OpIfElse, domain.OpPrecondition, domain.OpPostcondition, domain.OpInvariant:
		if e.TargetPort > 0 {
			return wrongInputCount(tgt, e, 1), false
		}
		if !g.Types.IsBoolean(e.ValueType) {
			return derr.Diagnostic{
				Severity: derr.SeverityError, Code: derr.CodeNonBooleanCondition,
				Message:    "condition input must be boolean",
				TargetNode: ptr64(uint64(e.Target)),
				FunctionID: ptrFn(tgt.Owner),
				Port:       ptrPort(e.TargetPort),
			}, false
		}
	case domain.OpReturn:
		if e.TargetPort > 0 {
			return wrongInputCount(tgt, e, 1), false
		}
	}
	return derr.Diagnostic{}, true
}

func wrongInputCount(tgt domain.ComputeNode, e domain.FlowEdge, max int) derr.Diagnostic {
	return derr.Diagnostic{
		Severity:   derr.SeverityError,
		Code:       derr.CodeWrongInputCount,
		Message:    "op does not accept an input at this port",
		TargetNode: ptr64(uint64(e.Target)),
		FunctionID: ptrFn(tgt.Owner),
		Port:       ptrPort(e.TargetPort),
	}
}

// ValidateGraph walks every live node of fn in deterministic order and
// checks port arities, type compatibility, and control-flow
// well-formedness (spec.md §4.1 "Graph validation"). Warnings are returned
// alongside errors; callers should filter by Severity.
func ValidateGraph(g *domain.ProgramGraph, fid domain.FunctionId) []derr.Diagnostic {
	var diags []derr.Diagnostic
	fn, ok := g.Functions[fid]
	if !ok {
		return []derr.Diagnostic{{Severity: derr.SeverityError, Code: derr.CodeInternal, Message: "unknown function"}}
	}

	owned := g.NodesOwnedBy(fid)

	for _, nid := range owned {
		n, _ := g.GetComputeNode(nid)
		for _, eid := range g.IncomingEdges(nid) {
			e, ok := g.GetFlowEdge(eid)
			if !ok || e.Kind != domain.FlowData {
				continue
			}
			diags = append(diags, ValidateDataEdge(g, e)...)
		}
		if domain.IsTerminator(n.Op.Tag) {
			for _, eid := range g.OutgoingEdges(nid) {
				e, ok := g.GetFlowEdge(eid)
				if ok && e.Kind == domain.FlowData {
					diags = append(diags, derr.Diagnostic{
						Severity:   derr.SeverityError,
						Code:       derr.CodeWrongInputCount,
						Message:    "terminator node has an outgoing data edge",
						SourceNode: ptr64(uint64(nid)),
						FunctionID: ptrFn(fid),
					})
				}
			}
		}
		if n.Op.Tag == domain.OpPhi {
			diags = append(diags, checkPhi(g, fid, nid)...)
		}
		if n.Op.Tag == domain.OpLoop {
			diags = append(diags, checkLoopBackEdge(g, fid, nid)...)
		}
	}

	diags = append(diags, checkTerminatorReachable(g, fn, owned)...)
	diags = append(diags, unusedParameterWarnings(g, fn, owned)...)
	diags = append(diags, unreachableNodeWarnings(g, fn, owned)...)

	return diags
}

// checkPhi verifies a Phi node's incoming control-edge count matches the
// number of predecessor branches feeding it (one data-less control
// predecessor per incoming Data operand).
func checkPhi(g *domain.ProgramGraph, fid domain.FunctionId, nid domain.NodeId) []derr.Diagnostic {
	dataIns := g.IncomingDataEdges(nid)
	var controlIns int
	for _, eid := range g.IncomingEdges(nid) {
		e, ok := g.GetFlowEdge(eid)
		if ok && e.Kind == domain.FlowControl {
			controlIns++
		}
	}
	if controlIns != len(dataIns) {
		return []derr.Diagnostic{{
			Severity:   derr.SeverityError,
			Code:       derr.CodePhiMismatch,
			Message:    "Phi predecessor count does not match incoming control edges",
			SourceNode: ptr64(uint64(nid)),
			FunctionID: ptrFn(fid),
		}}
	}
	return nil
}

func checkLoopBackEdge(g *domain.ProgramGraph, fid domain.FunctionId, nid domain.NodeId) []derr.Diagnostic {
	for _, eid := range g.IncomingEdges(nid) {
		e, ok := g.GetFlowEdge(eid)
		if ok && e.Kind == domain.FlowControl && e.IsBackEdge() {
			return nil
		}
	}
	return []derr.Diagnostic{{
		Severity:   derr.SeverityError,
		Code:       derr.CodeLoopMissingBackEdge,
		Message:    "Loop header has no back-edge",
		SourceNode: ptr64(uint64(nid)),
		FunctionID: ptrFn(fid),
	}}
}

// checkTerminatorReachable verifies a terminator is reachable from the
// function's entry node by walking control edges.
func checkTerminatorReachable(g *domain.ProgramGraph, fn *domain.FunctionDef, owned []domain.NodeId) []derr.Diagnostic {
	if !fn.HasEntry {
		return []derr.Diagnostic{{Severity: derr.SeverityError, Code: derr.CodeUnreachableTerminator, Message: "function has no entry node", FunctionID: ptrFn(fn.ID)}}
	}
	visited := map[domain.NodeId]bool{}
	queue := []domain.NodeId{fn.EntryNode}
	reachedTerminator := false
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		n, ok := g.GetComputeNode(cur)
		if !ok {
			continue
		}
		if domain.IsTerminator(n.Op.Tag) {
			reachedTerminator = true
		}
		for _, eid := range g.OutgoingEdges(cur) {
			e, ok := g.GetFlowEdge(eid)
			if ok && e.Kind == domain.FlowControl {
				queue = append(queue, e.Target)
			}
		}
	}
	if !reachedTerminator {
		return []derr.Diagnostic{{
			Severity:   derr.SeverityError,
			Code:       derr.CodeUnreachableTerminator,
			Message:    "no terminator is reachable from the function's entry node",
			FunctionID: ptrFn(fn.ID),
		}}
	}
	return nil
}

func unusedParameterWarnings(g *domain.ProgramGraph, fn *domain.FunctionDef, owned []domain.NodeId) []derr.Diagnostic {
	used := make(map[uint32]bool)
	for _, nid := range owned {
		n, _ := g.GetComputeNode(nid)
		if n.Op.Tag == domain.OpParameter {
			for _, eid := range g.OutgoingEdges(nid) {
				if e, ok := g.GetFlowEdge(eid); ok && e.Kind == domain.FlowData {
					used[n.Op.ParamIndex] = true
				}
			}
		}
	}
	var diags []derr.Diagnostic
	for i := range fn.Params {
		if !used[uint32(i)] {
			diags = append(diags, derr.Diagnostic{
				Severity:   derr.SeverityWarning,
				Code:       derr.CodeInternal,
				Message:    "parameter is never used",
				FunctionID: ptrFn(fn.ID),
				Port:       ptrPort(uint32(i)),
			})
		}
	}
	return diags
}

func unreachableNodeWarnings(g *domain.ProgramGraph, fn *domain.FunctionDef, owned []domain.NodeId) []derr.Diagnostic {
	if !fn.HasEntry {
		return nil
	}
	visited := map[domain.NodeId]bool{fn.EntryNode: true}
	queue := []domain.NodeId{fn.EntryNode}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, eid := range g.OutgoingEdges(cur) {
			if e, ok := g.GetFlowEdge(eid); ok {
				if !visited[e.Target] {
					visited[e.Target] = true
					queue = append(queue, e.Target)
				}
			}
		}
		for _, eid := range g.IncomingEdges(cur) {
			if e, ok := g.GetFlowEdge(eid); ok && e.Kind == domain.FlowData {
				if !visited[e.Source] {
					visited[e.Source] = true
					queue = append(queue, e.Source)
				}
			}
		}
	}
	var diags []derr.Diagnostic
	for _, nid := range owned {
		if !visited[nid] {
			diags = append(diags, derr.Diagnostic{
				Severity:   derr.SeverityWarning,
				Code:       derr.CodeInternal,
				Message:    "node is unreachable from the function entry",
				SourceNode: ptr64(uint64(nid)),
				FunctionID: ptrFn(fn.ID),
			})
		}
	}
	return diags
}

// Errors filters diags to blocking (error-severity) entries only.
func Errors(diags []derr.Diagnostic) []derr.Diagnostic {
	var out []derr.Diagnostic
	for _, d := range diags {
		if d.Severity != derr.SeverityWarning {
			out = append(out, d)
		}
	}
	return out
}

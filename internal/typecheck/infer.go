// Package typecheck implements the Type Checker (spec.md §4.1, C4): edge
// validation and whole-graph validation, producing structured diagnostics.
package typecheck

import "lmlang/internal/domain"

// OutputType infers the type a node produces at its (sole, for Tier-1
// arithmetic/logic ops) output port. Cast, StructCreate, and EnumCreate
// carry their output type explicitly; every other op's type is derived from
// its incoming data edges, per spec.md §3.
func OutputType(g *domain.ProgramGraph, id domain.NodeId) (domain.TypeId, bool) {
	n, ok := g.GetComputeNode(id)
	if !ok {
		return 0, false
	}
	op := n.Op

	if domain.NeedsExplicitType(op.Tag) {
		return op.TargetType, true
	}

	switch op.Tag {
	case domain.OpConst:
		return op.Const.Type, true

	case domain.OpParameter:
		fn, ok := g.Functions[n.Owner]
		if !ok || int(op.ParamIndex) >= len(fn.Params) {
			return 0, false
		}
		return fn.Params[op.ParamIndex], true

	case domain.OpBinaryArith, domain.OpUnaryArith, domain.OpShift:
		return firstInputType(g, id)

	case domain.OpCmp, domain.OpLogic:
		return domain.TypeBool, true

	case domain.OpCall:
		fn, ok := g.Functions[op.Target]
		if !ok {
			return 0, false
		}
		return fn.Return, true

	case domain.OpIndirectCall:
		return firstInputType(g, id)

	case domain.OpMakeClosure:
		// The pointer-to-function type is allocated by whichever mutation
		// created the closure; there is no incoming edge to derive it from,
		// so edge validation trusts the declared value_type directly.
		return 0, false

	case domain.OpCaptureAccess:
		return firstInputType(g, id)

	case domain.OpAlloc:
		return firstInputType(g, id)

	case domain.OpLoad:
		return firstInputType(g, id)

	case domain.OpStore:
		return domain.TypeUnit, true

	case domain.OpGetElementPtr:
		return firstInputType(g, id)

	case domain.OpStructGet:
		return structFieldType(g, id, op.FieldIndex)

	case domain.OpStructSet:
		return domain.TypeUnit, true

	case domain.OpArrayCreate:
		return firstInputType(g, id)

	case domain.OpArrayGet:
		return firstInputType(g, id)

	case domain.OpArraySet:
		return domain.TypeUnit, true

	case domain.OpEnumDiscriminant:
		return domain.TypeI32, true

	case domain.OpEnumPayload:
		return enumPayloadType(g, id, op.VariantIndex, op.FieldIndex)

	case domain.OpPrintLine, domain.OpFileWrite, domain.OpFileClose:
		return domain.TypeUnit, true

	case domain.OpReadLine, domain.OpFileOpen, domain.OpFileRead:
		return firstInputType(g, id)

	case domain.OpPrecondition, domain.OpPostcondition, domain.OpInvariant:
		return domain.TypeUnit, true

	case domain.OpReturn, domain.OpJump, domain.OpBranch:
		return domain.TypeNever, true

	case domain.OpPhi:
		return firstInputType(g, id)

	case domain.OpIfElse, domain.OpLoop, domain.OpMatch:
		return domain.TypeUnit, true
	}

	return 0, false
}

// firstInputType returns the value_type of node id's first live incoming
// data edge, ordered by target port.
func firstInputType(g *domain.ProgramGraph, id domain.NodeId) (domain.TypeId, bool) {
	edges := g.IncomingDataEdges(id)
	if len(edges) == 0 {
		return 0, false
	}
	best := edges[0]
	for _, e := range edges[1:] {
		if e.TargetPort < best.TargetPort {
			best = e
		}
	}
	return best.ValueType, true
}

func structFieldType(g *domain.ProgramGraph, id domain.NodeId, field uint32) (domain.TypeId, bool) {
	srcType, ok := firstInputType(g, id)
	if !ok {
		return 0, false
	}
	t, ok := g.Types.Lookup(srcType)
	if !ok || t.Kind != domain.KindStruct || int(field) >= len(t.Fields) {
		return 0, false
	}
	return t.Fields[field].Type, true
}

func enumPayloadType(g *domain.ProgramGraph, id domain.NodeId, variant, field uint32) (domain.TypeId, bool) {
	srcType, ok := firstInputType(g, id)
	if !ok {
		return 0, false
	}
	t, ok := g.Types.Lookup(srcType)
	if !ok || t.Kind != domain.KindEnum || int(variant) >= len(t.Variants) {
		return 0, false
	}
	v := t.Variants[variant]
	if int(field) >= len(v.Payload) {
		return 0, false
	}
	return v.Payload[field], true
}

package interpreter

import (
	"fmt"
	"math"
	"sort"

	"lmlang/internal/domain"
	derr "lmlang/internal/domain/errors"
)

// evalOp dispatches a single node's semantics. Branching ops record their
// chosen outgoing control edge in it.branch rather than returning it
// directly, so the shared control walk in Run stays uniform across op
// kinds.
func (it *Interpreter) evalOp(id domain.NodeId, op domain.ComputeNodeOp, arrivedVia *uint64) (Value, error) {
	switch op.Tag {
	case domain.OpConst:
		return valueFromConst(op.Const), nil

	case domain.OpParameter:
		if int(op.ParamIndex) >= len(it.args) {
			return Value{}, fmt.Errorf("parameter index %d out of range (%d args bound)", op.ParamIndex, len(it.args))
		}
		return it.args[op.ParamIndex], nil

	case domain.OpBinaryArith:
		a, err := it.operand(id, 0)
		if err != nil {
			return Value{}, err
		}
		b, err := it.operand(id, 1)
		if err != nil {
			return Value{}, err
		}
		return evalBinaryArith(op.Arith, a, b)

	case domain.OpUnaryArith:
		a, err := it.operand(id, 0)
		if err != nil {
			return Value{}, err
		}
		return evalUnaryArith(op.UnaryArith, a)

	case domain.OpCmp:
		a, err := it.operand(id, 0)
		if err != nil {
			return Value{}, err
		}
		b, err := it.operand(id, 1)
		if err != nil {
			return Value{}, err
		}
		return evalCmp(op.Cmp, a, b)

	case domain.OpLogic:
		a, err := it.operand(id, 0)
		if err != nil {
			return Value{}, err
		}
		if op.Logic == domain.LogicNot {
			return boolValue(!a.Bool), nil
		}
		b, err := it.operand(id, 1)
		if err != nil {
			return Value{}, err
		}
		switch op.Logic {
		case domain.LogicAnd:
			return boolValue(a.Bool && b.Bool), nil
		case domain.LogicOr:
			return boolValue(a.Bool || b.Bool), nil
		}
		return Value{}, fmt.Errorf("unknown logic op %q", op.Logic)

	case domain.OpShift:
		a, err := it.operand(id, 0)
		if err != nil {
			return Value{}, err
		}
		b, err := it.operand(id, 1)
		if err != nil {
			return Value{}, err
		}
		if op.Shift == domain.ShiftLeft {
			return intValue(a.Type, a.Int<<uint64(b.Int)), nil
		}
		return intValue(a.Type, a.Int>>uint64(b.Int)), nil

	case domain.OpCast:
		a, err := it.operand(id, 0)
		if err != nil {
			return Value{}, err
		}
		return castValue(a, op.TargetType), nil

	case domain.OpIfElse, domain.OpBranch:
		cond, err := it.operand(id, 0)
		if err != nil {
			return Value{}, err
		}
		if err := it.chooseBranch(id, branchIndexFor(cond.Bool)); err != nil {
			return Value{}, err
		}
		return Unit(), nil

	case domain.OpLoop:
		cond, err := it.operand(id, 0)
		if err != nil {
			return Value{}, err
		}
		if err := it.chooseBranch(id, branchIndexFor(cond.Bool)); err != nil {
			return Value{}, err
		}
		return Unit(), nil

	case domain.OpMatch:
		disc, err := it.operand(id, 0)
		if err != nil {
			return Value{}, err
		}
		if err := it.chooseBranch(id, uint32(disc.Int)); err != nil {
			return Value{}, err
		}
		return Unit(), nil

	case domain.OpJump:
		return Unit(), nil

	case domain.OpPhi:
		return it.evalPhi(id, arrivedVia)

	case domain.OpReturn:
		v, err := it.operand(id, 0)
		if err != nil {
			return Value{}, err
		}
		it.finished = true
		it.result = v
		return v, nil

	case domain.OpAlloc:
		zero := zeroValue(op.TargetType)
		ptr := int64(len(it.memory))
		it.memory = append(it.memory, zero)
		return intValue(domain.TypeI64, ptr), nil

	case domain.OpLoad:
		ptr, err := it.operand(id, 0)
		if err != nil {
			return Value{}, err
		}
		if int(ptr.Int) < 0 || int(ptr.Int) >= len(it.memory) {
			return Value{}, fmt.Errorf("load: invalid pointer %d", ptr.Int)
		}
		return it.memory[ptr.Int], nil

	case domain.OpStore:
		ptr, err := it.operand(id, 0)
		if err != nil {
			return Value{}, err
		}
		val, err := it.operand(id, 1)
		if err != nil {
			return Value{}, err
		}
		if int(ptr.Int) < 0 || int(ptr.Int) >= len(it.memory) {
			return Value{}, fmt.Errorf("store: invalid pointer %d", ptr.Int)
		}
		it.memory[ptr.Int] = val
		return Unit(), nil

	case domain.OpGetElementPtr:
		return it.operand(id, 0)

	case domain.OpStructCreate:
		fields, err := it.allOperands(id)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindStruct, Type: op.TargetType, Fields: fields}, nil

	case domain.OpStructGet:
		base, err := it.operand(id, 0)
		if err != nil {
			return Value{}, err
		}
		if int(op.FieldIndex) >= len(base.Fields) {
			return Value{}, fmt.Errorf("struct_get: field index %d out of range", op.FieldIndex)
		}
		return base.Fields[op.FieldIndex], nil

	case domain.OpStructSet:
		base, err := it.operand(id, 0)
		if err != nil {
			return Value{}, err
		}
		val, err := it.operand(id, 1)
		if err != nil {
			return Value{}, err
		}
		if int(op.FieldIndex) >= len(base.Fields) {
			return Value{}, fmt.Errorf("struct_set: field index %d out of range", op.FieldIndex)
		}
		out := make([]Value, len(base.Fields))
		copy(out, base.Fields)
		out[op.FieldIndex] = val
		return Value{Kind: KindStruct, Type: base.Type, Fields: out}, nil

	case domain.OpArrayCreate:
		elems, err := it.allOperands(id)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindArray, Type: op.TargetType, Elems: elems}, nil

	case domain.OpArrayGet:
		base, err := it.operand(id, 0)
		if err != nil {
			return Value{}, err
		}
		idx, err := it.operand(id, 1)
		if err != nil {
			return Value{}, err
		}
		if idx.Int < 0 || int(idx.Int) >= len(base.Elems) {
			return Value{}, fmt.Errorf("array_get: index %d out of range", idx.Int)
		}
		return base.Elems[idx.Int], nil

	case domain.OpArraySet:
		base, err := it.operand(id, 0)
		if err != nil {
			return Value{}, err
		}
		idx, err := it.operand(id, 1)
		if err != nil {
			return Value{}, err
		}
		val, err := it.operand(id, 2)
		if err != nil {
			return Value{}, err
		}
		if idx.Int < 0 || int(idx.Int) >= len(base.Elems) {
			return Value{}, fmt.Errorf("array_set: index %d out of range", idx.Int)
		}
		out := make([]Value, len(base.Elems))
		copy(out, base.Elems)
		out[idx.Int] = val
		return Value{Kind: KindArray, Type: base.Type, Elems: out}, nil

	case domain.OpEnumCreate:
		payload, err := it.allOperands(id)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindEnum, Type: op.TargetType, Enum: EnumValue{Variant: op.VariantIndex, Payload: payload}}, nil

	case domain.OpEnumDiscriminant:
		base, err := it.operand(id, 0)
		if err != nil {
			return Value{}, err
		}
		return intValue(domain.TypeI32, int64(base.Enum.Variant)), nil

	case domain.OpEnumPayload:
		base, err := it.operand(id, 0)
		if err != nil {
			return Value{}, err
		}
		if int(op.FieldIndex) >= len(base.Enum.Payload) {
			return Value{}, fmt.Errorf("enum_payload: field index %d out of range for variant %d", op.FieldIndex, base.Enum.Variant)
		}
		return base.Enum.Payload[op.FieldIndex], nil

	case domain.OpMakeClosure:
		caps, err := it.allOperands(id)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindClosure, Cl: &ClosureValue{Target: op.Target, Captures: caps}}, nil

	case domain.OpCaptureAccess:
		if int(op.CaptureIndex) >= len(it.caps) {
			return Value{}, fmt.Errorf("capture index %d out of range (%d captures bound)", op.CaptureIndex, len(it.caps))
		}
		return it.caps[op.CaptureIndex], nil

	case domain.OpCall:
		args, err := it.allOperands(id)
		if err != nil {
			return Value{}, err
		}
		return it.callFunction(op.Target, args, nil)

	case domain.OpIndirectCall:
		cl, err := it.operand(id, 0)
		if err != nil {
			return Value{}, err
		}
		if cl.Cl == nil {
			return Value{}, fmt.Errorf("indirect_call: operand is not a closure")
		}
		rest, err := it.allOperands(id)
		if err != nil {
			return Value{}, err
		}
		args := rest
		if len(args) > 0 {
			args = args[1:]
		}
		return it.callFunction(cl.Cl.Target, args, cl.Cl.Captures)

	case domain.OpPrintLine:
		v, err := it.operand(id, 0)
		if err != nil {
			return Value{}, err
		}
		fmt.Fprintln(it.stdout, formatValue(v))
		return Unit(), nil

	case domain.OpReadLine:
		return Value{Kind: KindArray, Type: op.TargetType}, nil

	case domain.OpFileOpen:
		ptr := int64(len(it.memory))
		it.memory = append(it.memory, Unit())
		return intValue(domain.TypeI64, ptr), nil

	case domain.OpFileRead:
		return Value{Kind: KindArray, Type: op.TargetType}, nil

	case domain.OpFileWrite, domain.OpFileClose:
		return Unit(), nil

	case domain.OpPrecondition, domain.OpPostcondition, domain.OpInvariant:
		return it.evalContract(id, op)

	default:
		return Value{}, fmt.Errorf("interpreter: unhandled op %q", op.Tag)
	}
}

// chooseBranch records the outgoing control edge tagged with branchIdx as
// id's chosen successor.
func (it *Interpreter) chooseBranch(id domain.NodeId, branchIdx uint32) error {
	for _, eid := range it.g.OutgoingEdges(id) {
		e, ok := it.g.GetFlowEdge(eid)
		if !ok || e.Kind != domain.FlowControl {
			continue
		}
		if e.BranchTaken != nil && *e.BranchTaken == branchIdx {
			it.branch[id] = eid
			return nil
		}
	}
	return fmt.Errorf("node %d has no outgoing control edge for branch %d", id, branchIdx)
}

func branchIndexFor(cond bool) uint32 {
	if cond {
		return 0
	}
	return 1
}

// evalPhi selects the data operand paired with the control edge that
// brought execution here, matching Data and Control incoming edges by
// ascending order (spec.md's "Phi predecessors match incoming control
// edges", enforced earlier by the type checker).
func (it *Interpreter) evalPhi(id domain.NodeId, arrivedVia *uint64) (Value, error) {
	if arrivedVia == nil {
		return Value{}, fmt.Errorf("phi node %d reached with no recorded predecessor", id)
	}
	var controlIns []uint64
	for _, eid := range it.g.IncomingEdges(id) {
		if e, ok := it.g.GetFlowEdge(eid); ok && e.Kind == domain.FlowControl {
			controlIns = append(controlIns, eid)
		}
	}
	sort.Slice(controlIns, func(i, j int) bool { return controlIns[i] < controlIns[j] })

	idx := -1
	for i, eid := range controlIns {
		if eid == *arrivedVia {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Value{}, fmt.Errorf("phi node %d: predecessor edge %d not among its control inputs", id, *arrivedVia)
	}

	dataIns := it.g.IncomingDataEdges(id)
	if idx >= len(dataIns) {
		return Value{}, fmt.Errorf("phi node %d: no data operand paired with control predecessor %d", id, idx)
	}
	return it.eval(dataIns[idx].Source, nil)
}

// evalContract reads a contract node's boolean input; on false it marks the
// run as a ContractViolation carrying the offending function's bound
// parameter frame (spec.md §4.2).
func (it *Interpreter) evalContract(id domain.NodeId, op domain.ComputeNodeOp) (Value, error) {
	cond, err := it.operand(id, 0)
	if err != nil {
		return Value{}, err
	}
	if cond.Bool {
		return Unit(), nil
	}
	it.finished = true
	it.violation = &derr.ContractInfo{
		Kind:   string(op.Contract),
		NodeID: uint64(id),
		Inputs: it.parameterFrame(),
	}
	return Unit(), nil
}

func (it *Interpreter) parameterFrame() map[string]any {
	out := make(map[string]any, len(it.args))
	for i, v := range it.args {
		out[fmt.Sprintf("arg%d", i)] = formatValue(v)
	}
	return out
}

// callFunction runs a nested Interpreter for a direct or indirect call and
// folds its outcome into this run's error/violation state.
func (it *Interpreter) callFunction(target domain.FunctionId, args []Value, caps []Value) (Value, error) {
	sub, err := New(it.g, target, args, Options{TraceCap: it.traceCap, StepBudget: it.stepBudget - it.steps, Stdout: it.stdout})
	if err != nil {
		return Value{}, err
	}
	sub.WithCaptures(caps)
	res := sub.Run()
	it.steps += res.Steps
	it.trace = append(it.trace, res.Trace...)

	switch res.Status {
	case StatusCompleted:
		return res.Value, nil
	case StatusContractViolation:
		it.finished = true
		it.violation = res.Violation
		return Value{}, nil
	default:
		return Value{}, res.Err
	}
}

func zeroValue(t domain.TypeId) Value {
	switch t {
	case domain.TypeBool:
		return boolValue(false)
	case domain.TypeF32, domain.TypeF64:
		return floatValue(t, 0)
	case domain.TypeUnit:
		return Unit()
	default:
		return intValue(t, 0)
	}
}

func formatValue(v Value) string {
	switch v.Kind {
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindFloat:
		return fmt.Sprintf("%g", v.Float)
	case KindUnit:
		return "()"
	default:
		return fmt.Sprintf("%v", v)
	}
}

func castValue(v Value, target domain.TypeId) Value {
	switch v.Kind {
	case KindInt:
		if target == domain.TypeF32 || target == domain.TypeF64 {
			return floatValue(target, float64(v.Int))
		}
		return intValue(target, v.Int)
	case KindFloat:
		if target == domain.TypeF32 || target == domain.TypeF64 {
			return floatValue(target, v.Float)
		}
		return intValue(target, int64(v.Float))
	default:
		return v
	}
}

func evalBinaryArith(op domain.ArithOp, a, b Value) (Value, error) {
	if a.Kind == KindFloat || b.Kind == KindFloat {
		x, y := toFloat(a), toFloat(b)
		t := a.Type
		if a.Kind != KindFloat {
			t = b.Type
		}
		switch op {
		case domain.ArithAdd:
			return floatValue(t, x+y), nil
		case domain.ArithSub:
			return floatValue(t, x-y), nil
		case domain.ArithMul:
			return floatValue(t, x*y), nil
		case domain.ArithDiv:
			return floatValue(t, x/y), nil
		case domain.ArithMod:
			return floatValue(t, math.Mod(x, y)), nil
		}
		return Value{}, fmt.Errorf("unknown arith op %q", op)
	}
	switch op {
	case domain.ArithAdd:
		return intValue(a.Type, a.Int+b.Int), nil
	case domain.ArithSub:
		return intValue(a.Type, a.Int-b.Int), nil
	case domain.ArithMul:
		return intValue(a.Type, a.Int*b.Int), nil
	case domain.ArithDiv:
		if b.Int == 0 {
			return Value{}, fmt.Errorf("integer division by zero")
		}
		return intValue(a.Type, a.Int/b.Int), nil
	case domain.ArithMod:
		if b.Int == 0 {
			return Value{}, fmt.Errorf("integer modulo by zero")
		}
		return intValue(a.Type, a.Int%b.Int), nil
	}
	return Value{}, fmt.Errorf("unknown arith op %q", op)
}

func evalUnaryArith(op domain.UnaryArithOp, a Value) (Value, error) {
	if a.Kind == KindFloat {
		switch op {
		case domain.UnaryNeg:
			return floatValue(a.Type, -a.Float), nil
		case domain.UnaryAbs:
			return floatValue(a.Type, math.Abs(a.Float)), nil
		}
	}
	switch op {
	case domain.UnaryNeg:
		return intValue(a.Type, -a.Int), nil
	case domain.UnaryAbs:
		if a.Int < 0 {
			return intValue(a.Type, -a.Int), nil
		}
		return intValue(a.Type, a.Int), nil
	}
	return Value{}, fmt.Errorf("unknown unary arith op %q", op)
}

func evalCmp(op domain.CmpOp, a, b Value) (Value, error) {
	var cmp int
	if a.Kind == KindFloat || b.Kind == KindFloat {
		x, y := toFloat(a), toFloat(b)
		switch {
		case x < y:
			cmp = -1
		case x > y:
			cmp = 1
		}
	} else {
		switch {
		case a.Int < b.Int:
			cmp = -1
		case a.Int > b.Int:
			cmp = 1
		}
	}
	switch op {
	case domain.CmpEq:
		return boolValue(cmp == 0), nil
	case domain.CmpNe:
		return boolValue(cmp != 0), nil
	case domain.CmpLt:
		return boolValue(cmp < 0), nil
	case domain.CmpLe:
		return boolValue(cmp <= 0), nil
	case domain.CmpGt:
		return boolValue(cmp > 0), nil
	case domain.CmpGe:
		return boolValue(cmp >= 0), nil
	}
	return Value{}, fmt.Errorf("unknown cmp op %q", op)
}

func toFloat(v Value) float64 {
	if v.Kind == KindFloat {
		return v.Float
	}
	return float64(v.Int)
}

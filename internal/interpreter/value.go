// Package interpreter implements the contract-enforcing, single-threaded
// graph evaluator (spec.md §4.2, C5): it walks a function's compute graph
// following control edges, evaluates data dependencies on demand, and
// enforces Precondition/Postcondition/Invariant nodes as it goes.
package interpreter

import "lmlang/internal/domain"

// Kind discriminates Value variants — the tagged sum over
// {Bool, I*, F*, Array, Struct, Enum, Closure, Unit} from spec.md §4.2.
type Kind string

const (
	KindBool    Kind = "bool"
	KindInt     Kind = "int"
	KindFloat   Kind = "float"
	KindArray   Kind = "array"
	KindStruct  Kind = "struct"
	KindEnum    Kind = "enum"
	KindClosure Kind = "closure"
	KindUnit    Kind = "unit"
)

// ClosureValue pairs a target function with its captured values, produced by
// MakeClosure and consumed by IndirectCall/CaptureAccess.
type ClosureValue struct {
	Target   domain.FunctionId
	Captures []Value
}

// EnumValue carries a variant discriminant plus its typed payload fields.
type EnumValue struct {
	Variant uint32
	Payload []Value
}

// Value is a tagged-union runtime value. Exactly the fields matching Kind
// are meaningful.
type Value struct {
	Kind Kind
	Type domain.TypeId

	Bool  bool
	Int   int64
	Float float64

	Elems  []Value
	Fields []Value
	Enum   EnumValue
	Cl     *ClosureValue
}

// Unit is the single value of the Unit type.
func Unit() Value { return Value{Kind: KindUnit, Type: domain.TypeUnit} }

func boolValue(b bool) Value { return Value{Kind: KindBool, Type: domain.TypeBool, Bool: b} }
func intValue(t domain.TypeId, i int64) Value { return Value{Kind: KindInt, Type: t, Int: i} }
func floatValue(t domain.TypeId, f float64) Value { return Value{Kind: KindFloat, Type: t, Float: f} }

func valueFromConst(c domain.ConstValue) Value {
	switch c.Type {
	case domain.TypeBool:
		return boolValue(c.Bool)
	case domain.TypeF32, domain.TypeF64:
		return floatValue(c.Type, c.F)
	default:
		return intValue(c.Type, c.I)
	}
}

// AsBool reports v's boolean payload; only meaningful for Kind == KindBool.
func (v Value) AsBool() bool { return v.Bool }

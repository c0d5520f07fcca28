package domain

// ArithOp enumerates binary arithmetic operators.
type ArithOp string

const (
	ArithAdd ArithOp = "add"
	ArithSub ArithOp = "sub"
	ArithMul ArithOp = "mul"
	ArithDiv ArithOp = "div"
	ArithMod ArithOp = "mod"
)

// UnaryArithOp enumerates unary arithmetic operators.
type UnaryArithOp string

const (
	UnaryNeg UnaryArithOp = "neg"
	UnaryAbs UnaryArithOp = "abs"
)

// CmpOp enumerates comparison operators.
type CmpOp string

const (
	CmpEq CmpOp = "eq"
	CmpNe CmpOp = "ne"
	CmpLt CmpOp = "lt"
	CmpLe CmpOp = "le"
	CmpGt CmpOp = "gt"
	CmpGe CmpOp = "ge"
)

// LogicOp enumerates boolean logic operators.
type LogicOp string

const (
	LogicAnd LogicOp = "and"
	LogicOr  LogicOp = "or"
	LogicNot LogicOp = "not"
)

// ShiftOp enumerates bit-shift operators.
type ShiftOp string

const (
	ShiftLeft  ShiftOp = "shl"
	ShiftRight ShiftOp = "shr"
)

// ContractKind distinguishes the three contract op flavors.
type ContractKind string

const (
	ContractPrecondition  ContractKind = "precondition"
	ContractPostcondition ContractKind = "postcondition"
	ContractInvariant     ContractKind = "invariant"
)

// OpTag discriminates ComputeNodeOp variants. Using a string tag (rather than
// an interface-only sum) keeps ops trivially comparable and serializable,
// which the content hasher and storage layer both depend on.
type OpTag string

// Tier-1 op tags (~24, per spec.md C1).
const (
	OpConst          OpTag = "const"
	OpParameter      OpTag = "parameter"
	OpBinaryArith    OpTag = "binary_arith"
	OpUnaryArith     OpTag = "unary_arith"
	OpCmp            OpTag = "cmp"
	OpLogic          OpTag = "logic"
	OpShift          OpTag = "shift"
	OpIfElse         OpTag = "if_else"
	OpLoop           OpTag = "loop"
	OpMatch          OpTag = "match"
	OpBranch         OpTag = "branch"
	OpJump           OpTag = "jump"
	OpPhi            OpTag = "phi"
	OpReturn         OpTag = "return"
	OpAlloc          OpTag = "alloc"
	OpLoad           OpTag = "load"
	OpStore          OpTag = "store"
	OpGetElementPtr  OpTag = "get_element_ptr"
	OpCall           OpTag = "call"
	OpIndirectCall   OpTag = "indirect_call"
	OpPrintLine      OpTag = "print_line"
	OpReadLine       OpTag = "read_line"
	OpFileOpen       OpTag = "file_open"
	OpFileRead       OpTag = "file_read"
	OpFileWrite      OpTag = "file_write"
	OpFileClose      OpTag = "file_close"
	OpMakeClosure    OpTag = "make_closure"
	OpCaptureAccess  OpTag = "capture_access"
	OpPrecondition   OpTag = "precondition"
	OpPostcondition  OpTag = "postcondition"
	OpInvariant      OpTag = "invariant"
)

// Tier-2 op tags (structured aggregate/enum/cast ops, 10 total).
const (
	OpStructCreate      OpTag = "struct_create"
	OpStructGet         OpTag = "struct_get"
	OpStructSet         OpTag = "struct_set"
	OpArrayCreate       OpTag = "array_create"
	OpArrayGet          OpTag = "array_get"
	OpArraySet          OpTag = "array_set"
	OpEnumCreate        OpTag = "enum_create"
	OpEnumDiscriminant  OpTag = "enum_discriminant"
	OpEnumPayload       OpTag = "enum_payload"
	OpCast              OpTag = "cast"
)

// terminatorOps are ops that end a function's control flow at their
// position; they must have no outgoing data edges from their control
// position (spec.md §3 invariants).
var terminatorOps = map[OpTag]bool{
	OpReturn: true,
	OpJump:   true,
	OpBranch: true,
}

// IsTerminator reports whether tag is a control-flow terminator op.
func IsTerminator(tag OpTag) bool { return terminatorOps[tag] }

// ConstValue is the literal payload carried by a Const op. Exactly one field
// is meaningful, selected by Type (a built-in scalar TypeId).
type ConstValue struct {
	Type TypeId
	Bool bool
	I    int64
	F    float64
}

// ComputeNodeOp is the tagged-union payload of a ComputeNode. Fields are
// populated according to Tag; irrelevant fields are left zero.
type ComputeNodeOp struct {
	Tag OpTag

	// OpConst
	Const ConstValue

	// OpParameter
	ParamIndex uint32

	// OpBinaryArith
	Arith ArithOp

	// OpUnaryArith
	UnaryArith UnaryArithOp

	// OpCmp
	Cmp CmpOp

	// OpLogic
	Logic LogicOp

	// OpShift
	Shift ShiftOp

	// OpCall / OpMakeClosure
	Target FunctionId

	// OpCaptureAccess
	CaptureIndex uint32

	// OpPrecondition / OpPostcondition / OpInvariant
	Contract ContractKind

	// OpCast / OpStructCreate / OpEnumCreate carry an explicit target type;
	// every other op's type is inferred from its incoming data edges.
	TargetType TypeId

	// OpStructGet / OpStructSet / OpEnumPayload: field selector.
	FieldIndex uint32

	// OpEnumCreate / OpEnumDiscriminant / OpEnumPayload: variant selector.
	VariantIndex uint32

	// OpLoop: true once the loop has at least one back-edge wired to its
	// header (checked by the type checker, not self-reported at construction
	// time; kept here only as a cache for diagnostics).
	HasBackEdge bool
}

// NeedsExplicitType reports whether tag carries its output type explicitly
// (Cast, StructCreate, EnumCreate) rather than inferring it from inputs.
func NeedsExplicitType(tag OpTag) bool {
	switch tag {
	case OpCast, OpStructCreate, OpEnumCreate:
		return true
	}
	return false
}

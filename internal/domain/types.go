package domain

// LmTypeKind discriminates the variants of LmType.
type LmTypeKind string

const (
	KindScalar   LmTypeKind = "scalar"
	KindArray    LmTypeKind = "array"
	KindStruct   LmTypeKind = "struct"
	KindEnum     LmTypeKind = "enum"
	KindPointer  LmTypeKind = "pointer"
	KindFunction LmTypeKind = "function"
	KindUnit     LmTypeKind = "unit"
	KindNever    LmTypeKind = "never"
)

// StructField is a named, typed field within a struct type.
type StructField struct {
	Name string
	Type TypeId
}

// EnumVariant is a named variant of an enum type, carrying an optional
// payload type list (empty for a unit-like variant).
type EnumVariant struct {
	Name    string
	Payload []TypeId
}

// LmType describes a registered type. Exactly one of the variant-specific
// fields is meaningful, selected by Kind.
type LmType struct {
	Kind LmTypeKind

	// KindScalar: Scalar is one of the built-in TypeBool..TypeF64 ids.
	Scalar TypeId

	// KindArray
	Elem TypeId
	Len  uint64

	// KindStruct
	Fields []StructField

	// KindEnum
	Variants []EnumVariant

	// KindPointer
	Target TypeId

	// KindFunction
	Params []TypeId
	Return TypeId
}

// TypeRegistry is an append-mostly table of LmType definitions keyed by
// TypeId. Built-in scalar types are pre-registered at fixed ids so that
// TypeBool..TypeNever always resolve without a lookup.
type TypeRegistry struct {
	gen   idGenerator
	types map[TypeId]LmType
}

// NewTypeRegistry creates a registry pre-populated with the nine built-in
// scalar/unit/never types at their fixed ids.
func NewTypeRegistry() *TypeRegistry {
	r := &TypeRegistry{types: make(map[TypeId]LmType)}
	builtins := []struct {
		id   TypeId
		kind LmTypeKind
	}{
		{TypeBool, KindScalar}, {TypeI8, KindScalar}, {TypeI16, KindScalar},
		{TypeI32, KindScalar}, {TypeI64, KindScalar}, {TypeF32, KindScalar},
		{TypeF64, KindScalar}, {TypeUnit, KindUnit}, {TypeNever, KindNever},
	}
	for _, b := range builtins {
		t := LmType{Kind: b.kind}
		if b.kind == KindScalar {
			t.Scalar = b.id
		}
		r.types[b.id] = t
		r.gen.take()
	}
	return r
}

// Define registers a new non-builtin type and returns its fresh TypeId.
func (r *TypeRegistry) Define(t LmType) TypeId {
	id := TypeId(r.gen.take())
	r.types[id] = t
	return id
}

// Lookup returns the LmType for id, or false if id was never registered.
func (r *TypeRegistry) Lookup(id TypeId) (LmType, bool) {
	t, ok := r.types[id]
	return t, ok
}

// IsNumeric reports whether id names an integer or floating-point scalar.
func (r *TypeRegistry) IsNumeric(id TypeId) bool {
	switch id {
	case TypeI8, TypeI16, TypeI32, TypeI64, TypeF32, TypeF64:
		return true
	}
	t, ok := r.types[id]
	return ok && t.Kind == KindScalar && isNumericScalar(t.Scalar)
}

func isNumericScalar(id TypeId) bool {
	switch id {
	case TypeI8, TypeI16, TypeI32, TypeI64, TypeF32, TypeF64:
		return true
	}
	return false
}

// IsBoolean reports whether id is the Bool scalar.
func (r *TypeRegistry) IsBoolean(id TypeId) bool {
	return id == TypeBool
}

// Snapshot returns a copy of the registry's id->type table, used by the
// content hasher and by checkpoint/storage serialization.
func (r *TypeRegistry) Snapshot() map[TypeId]LmType {
	out := make(map[TypeId]LmType, len(r.types))
	for k, v := range r.types {
		out[k] = v
	}
	return out
}

// restoreFrom replaces the registry's contents wholesale, used when
// recomposing a ProgramGraph from a GraphStore or checkpoint. nextID is the
// next id the generator should hand out (the decompose-time watermark).
func (r *TypeRegistry) restoreFrom(types map[TypeId]LmType, nextID uint64) {
	r.types = make(map[TypeId]LmType, len(types))
	for k, v := range types {
		r.types[k] = v
	}
	r.gen.setNext(nextID)
}

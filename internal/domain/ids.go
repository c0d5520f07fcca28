package domain

import "fmt"

// TypeId is a dense nominal identifier for a registered LmType.
type TypeId uint64

// NodeId identifies a ComputeNode within a program. NodeIds are monotonic,
// stable, and never reused after deletion.
type NodeId uint64

// FunctionId identifies a FunctionDef.
type FunctionId uint64

// ModuleId identifies a module in the module tree.
type ModuleId uint64

// SemNodeIdx identifies a node in the semantic StableGraph.
type SemNodeIdx uint64

// Built-in type IDs, fixed per spec.
const (
	TypeBool TypeId = iota
	TypeI8
	TypeI16
	TypeI32
	TypeI64
	TypeF32
	TypeF64
	TypeUnit
	TypeNever
)

func (id TypeId) String() string     { return fmt.Sprintf("type#%d", uint64(id)) }
func (id NodeId) String() string     { return fmt.Sprintf("node#%d", uint64(id)) }
func (id FunctionId) String() string { return fmt.Sprintf("fn#%d", uint64(id)) }
func (id ModuleId) String() string   { return fmt.Sprintf("mod#%d", uint64(id)) }

// idGenerator hands out dense, monotonically increasing identifiers. It is
// not safe for concurrent use on its own; callers serialize access under the
// service mutex (see internal/application/mutation).
type idGenerator struct {
	next uint64
}

func (g *idGenerator) take() uint64 {
	id := g.next
	g.next++
	return id
}

// peek returns the next id that take() would hand out, without consuming
// it. Used by the graph's PeekNext* accessors and to serialize the
// generator's cursor as a decompose/recompose watermark.
func (g *idGenerator) peek() uint64 { return g.next }

// setNext resets the generator's cursor directly, used when reconstructing
// a graph from storage or a checkpoint.
func (g *idGenerator) setNext(next uint64) { g.next = next }

package hashing

import (
	"bytes"
	"crypto/sha256"
	"sort"

	"github.com/tmthrgd/go-hex"
	"github.com/vmihailenco/msgpack/v5"

	"lmlang/internal/domain"
)

// Hash is a 256-bit content hash, rendered to hex for diagnostics and JSON.
type Hash [32]byte

func (h Hash) String() string  { return hex.EncodeToString(h[:]) }
func (h Hash) IsZero() bool    { return h == Hash{} }
func (h Hash) Bytes() []byte   { b := make([]byte, len(h)); copy(b, h[:]); return b }

// ParseHash decodes a hex string produced by Hash.String.
func ParseHash(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, err
	}
	var out Hash
	copy(out[:], b)
	return out, nil
}

// Hasher computes content hashes over a single ProgramGraph. It holds no
// mutable state of its own and is safe to discard and recreate after every
// commit.
type Hasher struct {
	g *domain.ProgramGraph
}

// New returns a Hasher bound to g.
func New(g *domain.ProgramGraph) *Hasher { return &Hasher{g: g} }

// HashNode computes hash(node) = H(canonical(op) || sorted_incoming_edge_hashes || owner).
func (h *Hasher) HashNode(id domain.NodeId) (Hash, bool) {
	n, ok := h.g.GetComputeNode(id)
	if !ok {
		return Hash{}, false
	}
	var buf bytes.Buffer
	buf.Write(encodeOp(n.Op))

	var edgeHashes [][]byte
	for _, eid := range h.g.IncomingEdges(id) {
		e, ok := h.g.GetFlowEdge(eid)
		if !ok {
			continue
		}
		eh := hashEdge(e)
		edgeHashes = append(edgeHashes, eh.Bytes())
	}
	sort.Slice(edgeHashes, func(i, j int) bool { return bytes.Compare(edgeHashes[i], edgeHashes[j]) < 0 })
	for _, eh := range edgeHashes {
		buf.Write(eh)
	}

	buf.Write(encodeOwner(n.Owner))
	return sum(buf.Bytes()), true
}

// HashFunction computes hash(function) = H(hash(entry) || sorted Merkle of
// all owned nodes).
func (h *Hasher) HashFunction(fid domain.FunctionId) (Hash, bool) {
	fn, ok := h.g.Functions[fid]
	if !ok || fn.Retired() {
		return Hash{}, false
	}

	var entryHash Hash
	if fn.HasEntry {
		if eh, ok := h.HashNode(fn.EntryNode); ok {
			entryHash = eh
		}
	}

	owned := h.g.NodesOwnedBy(fid)
	nodeHashes := make([][]byte, 0, len(owned))
	for _, nid := range owned {
		if nh, ok := h.HashNode(nid); ok {
			nodeHashes = append(nodeHashes, nh.Bytes())
		}
	}
	sort.Slice(nodeHashes, func(i, j int) bool { return bytes.Compare(nodeHashes[i], nodeHashes[j]) < 0 })

	var buf bytes.Buffer
	buf.Write(entryHash.Bytes())
	for _, nh := range nodeHashes {
		buf.Write(nh)
	}
	return sum(buf.Bytes()), true
}

// HashProgram computes hash(program) = H(sorted function hashes).
func (h *Hasher) HashProgram() Hash {
	var hashes [][]byte
	for id, fn := range h.g.Functions {
		if fn.Retired() {
			continue
		}
		if fh, ok := h.HashFunction(id); ok {
			hashes = append(hashes, fh.Bytes())
		}
	}
	sort.Slice(hashes, func(i, j int) bool { return bytes.Compare(hashes[i], hashes[j]) < 0 })

	var buf bytes.Buffer
	for _, fh := range hashes {
		buf.Write(fh)
	}
	return sum(buf.Bytes())
}

func sum(parts ...[]byte) Hash {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// canonicalOp is the hash-stable encoding of a ComputeNodeOp: every float is
// carried as a fixed-width bit pattern so NaN and signed zero hash exactly
// the way the content hasher's invariants require.
type canonicalOp struct {
	Tag            domain.OpTag
	ConstType      domain.TypeId
	ConstBool      bool
	ConstInt       int64
	ConstFloatBits uint64
	ParamIndex     uint32
	Arith          domain.ArithOp
	UnaryArith     domain.UnaryArithOp
	Cmp            domain.CmpOp
	Logic          domain.LogicOp
	Shift          domain.ShiftOp
	Target         domain.FunctionId
	CaptureIndex   uint32
	Contract       domain.ContractKind
	TargetType     domain.TypeId
	FieldIndex     uint32
	VariantIndex   uint32
}

func encodeOp(op domain.ComputeNodeOp) []byte {
	c := canonicalOp{
		Tag:            op.Tag,
		ConstType:      op.Const.Type,
		ConstBool:      op.Const.Bool,
		ConstInt:       op.Const.I,
		ConstFloatBits: canonicalFloatBits(op.Const.F),
		ParamIndex:     op.ParamIndex,
		Arith:          op.Arith,
		UnaryArith:     op.UnaryArith,
		Cmp:            op.Cmp,
		Logic:          op.Logic,
		Shift:          op.Shift,
		Target:         op.Target,
		CaptureIndex:   op.CaptureIndex,
		Contract:       op.Contract,
		TargetType:     op.TargetType,
		FieldIndex:     op.FieldIndex,
		VariantIndex:   op.VariantIndex,
	}
	buf, err := marshalCanonical(c)
	if err != nil {
		panic("hashing: encoding a concrete struct cannot fail: " + err.Error())
	}
	return buf
}

func encodeOwner(owner domain.FunctionId) []byte {
	buf, err := marshalCanonical(owner)
	if err != nil {
		panic("hashing: encoding a concrete struct cannot fail: " + err.Error())
	}
	return buf
}

type canonicalEdge struct {
	Kind        domain.FlowEdgeKind
	Source      domain.NodeId
	Target      domain.NodeId
	SourcePort  uint32
	TargetPort  uint32
	ValueType   domain.TypeId
	HasBranch   bool
	BranchTaken uint32
}

func hashEdge(e domain.FlowEdge) Hash {
	c := canonicalEdge{
		Kind:       e.Kind,
		Source:     e.Source,
		Target:     e.Target,
		SourcePort: e.SourcePort,
		TargetPort: e.TargetPort,
		ValueType:  e.ValueType,
	}
	if e.BranchTaken != nil {
		c.HasBranch = true
		c.BranchTaken = *e.BranchTaken
	}
	buf, err := marshalCanonical(c)
	if err != nil {
		panic("hashing: encoding a concrete struct cannot fail: " + err.Error())
	}
	return sum(buf)
}

// marshalCanonical encodes v via msgpack with sorted map keys, giving a
// stable byte representation even for the rare payload carrying a map —
// spec.md's "stable serialization (sorted keys, fixed float encoding)".
func marshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

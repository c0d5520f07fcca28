// Package hashing implements the Content Hasher (spec.md §4.3, C3):
// deterministic node/function/program Merkle hashes used to gate optimistic
// concurrency in the mutation service and to detect change during
// propagation and property testing.
package hashing

import "math"

// canonicalNaNBits is the fixed pattern every NaN float hashes to,
// regardless of its original payload bits, so that hash(node) is a pure
// function of op content (spec.md §9 "Float canonicalization").
const canonicalNaNBits = uint64(0x7FF8000000000001)

// canonicalFloatBits returns a float's bit pattern for hashing purposes,
// with F32 already promoted to F64 by the caller (spec.md: "F32 carried as
// F64 internally for derivable total order") and all NaNs collapsed to one
// canonical pattern.
func canonicalFloatBits(f float64) uint64 {
	if math.IsNaN(f) {
		return canonicalNaNBits
	}
	return math.Float64bits(f)
}

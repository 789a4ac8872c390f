package kdtree

import "github.com/spatialgo/knnidx/internal/matrix"

// DistanceMode selects the metric the searcher's leaf-node distance
// computation and pruning bookkeeping use. L2Squared is the default and
// the only mode the (1+eps) approximation guarantee is proven for; L1
// is offered for callers who need it, with its own axial bookkeeping
// rather than reusing L2's offset-squared accumulation.
type DistanceMode int

const (
	// L2Squared is squared Euclidean distance.
	L2Squared DistanceMode = iota
	// L1 is Manhattan distance.
	L1
)

// offsets is the per-query scratch array O: O[d] is the signed excess
// of the query beyond the current cell's extent on axis d (zero
// while the query is inside the cell on that axis). Sum of squares (L2)
// or sum of absolute values (L1) equals the distance from the query to
// the current cell. It is mutated on descent into a far child and
// restored on backtrack so the invariant holds at every stack frame.
type offsets[T matrix.Scalar] []T

func newOffsets[T matrix.Scalar](dim int) offsets[T] {
	return make(offsets[T], dim)
}

// initialRD seeds rd, the running squared/L1 distance from the query to
// the root cell, and O itself: for every axis where q lies outside
// [min,max], O[d] is set to the signed excess and contributes to rd; for
// axes where q is inside the cell, O[d] stays zero.
func initialRD[T matrix.Scalar](mode DistanceMode, q []T, min, max []T, o offsets[T]) T {
	var rd T
	for d := range q {
		switch {
		case q[d] < min[d]:
			o[d] = q[d] - min[d]
		case q[d] > max[d]:
			o[d] = q[d] - max[d]
		default:
			o[d] = 0
		}
		rd += axialTerm(mode, o[d])
	}
	return rd
}

// axialTerm converts a signed per-axis offset into its contribution to
// rd under the active distance mode: squared for L2, absolute for L1.
func axialTerm[T matrix.Scalar](mode DistanceMode, off T) T {
	if mode == L1 {
		if off < 0 {
			return -off
		}
		return off
	}
	return off * off
}

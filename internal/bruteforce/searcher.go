// Package bruteforce implements the reference nearest-neighbour searcher:
// a plain O(N) scan of the cloud, specified only at its interface
// boundary (the same per-query contract the kd-tree satisfies), not
// grown into its own optimized algorithm. It exists to give SearchType
// BRUTE_FORCE a real implementation and to serve as the oracle for the
// exactness property: with epsilon=0 and no radius bound, the kd-tree's
// results must equal brute force's, sorted.
package bruteforce

import (
	"github.com/spatialgo/knnidx/internal/matrix"
)

const invalidIndex uint32 = ^uint32(0)

// DistanceMode mirrors kdtree.DistanceMode without importing it, keeping
// bruteforce independent of the tree package (both are leaves the batch
// driver depends on, not on each other).
type DistanceMode int

const (
	L2Squared DistanceMode = iota
	L1
)

// Options are this searcher's per-query parameters, the same shape as
// kdtree.Options minus the tree-specific epsilon (brute force visits
// every point, so it is always exact; epsilon has no effect and is not
// accepted here).
type Options[T matrix.Scalar] struct {
	K                 int
	MaxRadius2        T
	AllowSelfMatch    bool
	SortResults       bool
	CollectStatistics bool
}

// Searcher answers kNN queries against a borrowed cloud by scanning
// every column, maintaining a capacity-k max-tracked candidate set. It
// never builds an index: construction is O(1), each query is O(N).
type Searcher[T matrix.Scalar] struct {
	cloud matrix.Matrix[T]
	mode  DistanceMode
}

// New wraps cloud for brute-force search under the given distance mode.
func New[T matrix.Scalar](cloud matrix.Matrix[T], mode DistanceMode) *Searcher[T] {
	return &Searcher[T]{cloud: cloud, mode: mode}
}

type candidate[T matrix.Scalar] struct {
	dist T
	idx  uint32
}

// Search answers one query, returning (indices, distances, points
// inspected). Ties at the k-th boundary are broken by ascending column
// index, the order the scan visits them in.
func (s *Searcher[T]) Search(q []T, opts Options[T]) ([]uint32, []T, uint64) {
	best := make([]candidate[T], 0, opts.K)
	var inspected uint64

	for j := 0; j < s.cloud.Cols(); j++ {
		col := s.cloud.Col(j)
		if !opts.AllowSelfMatch && coordinatesEqual(q, col) {
			continue
		}
		inspected++
		d2 := s.distance(q, col)
		if d2 > opts.MaxRadius2 {
			continue
		}
		best = insertSorted(best, candidate[T]{dist: d2, idx: uint32(j)}, opts.K)
	}

	idx := make([]uint32, opts.K)
	dists := make([]T, opts.K)
	for i := 0; i < opts.K; i++ {
		if i < len(best) {
			idx[i] = best[i].idx
			dists[i] = best[i].dist
		} else {
			idx[i] = invalidIndex
			dists[i] = positiveInfinity[T]()
		}
	}

	if !opts.SortResults {
		// brute force always produces results in ascending order; "heap
		// order" and "sorted order" coincide for this searcher.
	}

	if opts.CollectStatistics {
		return idx, dists, inspected
	}
	return idx, dists, 0
}

// insertSorted keeps best sorted ascending by distance and truncated to
// at most k entries, the simplest correct way to maintain a top-k list
// without pretending brute force needs a heap.
func insertSorted[T matrix.Scalar](best []candidate[T], c candidate[T], k int) []candidate[T] {
	pos := len(best)
	for pos > 0 && best[pos-1].dist > c.dist {
		pos--
	}
	best = append(best, candidate[T]{})
	copy(best[pos+1:], best[pos:])
	best[pos] = c
	if len(best) > k {
		best = best[:k]
	}
	return best
}

func coordinatesEqual[T matrix.Scalar](a, b []T) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (s *Searcher[T]) distance(q, pt []T) T {
	if s.mode == L1 {
		var sum T
		for i, qi := range q {
			d := qi - pt[i]
			if d < 0 {
				d = -d
			}
			sum += d
		}
		return sum
	}
	var sum T
	for i, qi := range q {
		d := qi - pt[i]
		sum += d * d
	}
	return sum
}

func positiveInfinity[T matrix.Scalar]() T {
	var zero T
	one := zero + 1
	return one / zero
}

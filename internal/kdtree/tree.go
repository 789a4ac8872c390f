package kdtree

import "github.com/spatialgo/knnidx/internal/matrix"

// Tree is the immutable, built k-d tree index. Once Build returns,
// nodes, buckets and bounds never change, so a *Tree is safe to share
// across any number of concurrent Search callers: each call opens its
// own searcher with its own heap/offset/stack scratch.
type Tree[T matrix.Scalar] struct {
	cloud    matrix.Matrix[T]
	nodes    []node[T]
	buckets  []bucketEntry[T]
	layout   layout
	minBound []T
	maxBound []T
	mode     DistanceMode
	heapKind HeapKind
}

// Build constructs a Tree over cloud using the mid-point-split-with-slide
// algorithm. cloud is borrowed for the tree's entire lifetime; Build
// never copies point coordinates, only indices and pointers into
// cloud's backing buffer.
func Build[T matrix.Scalar](cloud matrix.Matrix[T], opts BuildOptions) *Tree[T] {
	var min, max []T
	if cloud.Rows() > 0 && cloud.Cols() > 0 {
		min, max = cloud.BoundingBox()
	}
	nodes, buckets, l := build(cloud, opts)
	return &Tree[T]{
		cloud:    cloud,
		nodes:    nodes,
		buckets:  buckets,
		layout:   l,
		minBound: min,
		maxBound: max,
		mode:     opts.Mode,
		heapKind: opts.HeapKind,
	}
}

// NumNodes reports the number of nodes written during construction, for
// diagnostics and metrics.
func (t *Tree[T]) NumNodes() int { return len(t.nodes) }

// NumBuckets reports the number of bucket entries (one per point).
func (t *Tree[T]) NumBuckets() int { return len(t.buckets) }

// Dim returns the cloud's dimensionality.
func (t *Tree[T]) Dim() int { return t.layout.dim }

// Search answers one query, returning result indices (length opts.K,
// invalidIndex for unfilled slots), their
// squared/L1 distances (+Inf for unfilled slots) and — when
// opts.CollectStatistics is set — the count of leaf points inspected.
func (t *Tree[T]) Search(q []T, opts Options[T]) ([]uint32, []T, uint64) {
	s := newSearcher(t, opts.K)
	return s.search(q, opts)
}

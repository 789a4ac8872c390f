// Package knn implements the core of a k-nearest-neighbour search
// library for low- to medium-dimensional point clouds: an unbalanced
// mid-point-split k-d tree with points stored in leaf buckets, traversed
// by an iterative best-first descent, plus the brute-force collaborator
// named at its interface boundary and the batch driver that applies
// either to a query matrix.
//
// Construction is single-threaded; the returned Index is deeply
// immutable afterwards and safe to share across any number of
// concurrent callers of Knn.
package knn

import (
	"github.com/spatialgo/knnidx/internal/bruteforce"
	"github.com/spatialgo/knnidx/internal/kdtree"
	"github.com/spatialgo/knnidx/internal/matrix"
	"github.com/spatialgo/knnidx/metrics"
)

// Scalar is the field type the index is generic over.
type Scalar = matrix.Scalar

// Matrix is a borrowed, column-major, read-only D-row by N-column view,
// used for both the reference cloud and query matrices.
type Matrix[T Scalar] = matrix.Matrix[T]

// NewMatrix wraps an existing column-major buffer as a Matrix. The
// caller retains ownership.
func NewMatrix[T Scalar](data []T, rows, cols int) Matrix[T] {
	return matrix.New(data, rows, cols)
}

// SearchType selects the algorithm (and, for the kd-tree, the best-k
// heap implementation) an Index uses. This is a closed enumeration:
// Create rejects any other value.
type SearchType int

const (
	// BruteForce scans the whole cloud per query (an external
	// collaborator, not the kd-tree); always exact, O(N) per query, no
	// construction cost.
	BruteForce SearchType = iota
	// KDTreeLinearHeap builds a k-d tree and answers queries with the
	// O(k)-rescan linear heap, preferred for small k.
	KDTreeLinearHeap
	// KDTreeTreeHeap builds a k-d tree and answers queries with the
	// O(log k) binary heap, preferred for larger k.
	KDTreeTreeHeap
)

// DistanceMode selects the metric used for leaf-node distances and
// pruning. L2Squared is the default and the only mode the (1+epsilon)
// approximation guarantee is proven for.
type DistanceMode int

const (
	L2Squared DistanceMode = iota
	L1
)

// CreationFlags are recognised options to Create.
type CreationFlags uint32

const (
	// TouchStatistics reserves space for per-query statistics collection.
	// The reference implementation has no separate allocation to reserve
	// (statistics are plain counters), so this flag is accepted and
	// recorded but otherwise a no-op; it exists so callers written
	// against the original API compile unchanged.
	TouchStatistics CreationFlags = 1 << iota

	knownCreationFlags = TouchStatistics
)

// SearchFlags are the per-call search options.
type SearchFlags uint32

const (
	AllowSelfMatch SearchFlags = 1 << iota
	SortResults
	CollectStatistics
	// touchStatisticsReserved carries no behaviour of its own; it is
	// recognised (not rejected) to match the original flag bitmask
	// exactly.
	touchStatisticsReserved

	knownSearchFlags = AllowSelfMatch | SortResults | CollectStatistics | touchStatisticsReserved
)

// Parameters is the string-keyed construction parameter map. Unknown
// keys are ignored; recognised keys with malformed values fail
// construction with InvalidArgument.
type Parameters map[string]any

func (p Parameters) bucketSize() (int, error) {
	v, ok := p["bucketSize"]
	if !ok {
		return kdtree.DefaultBucketSize, nil
	}
	n, ok := v.(int)
	if !ok || n < 0 {
		return 0, invalidArgf("bucketSize must be a non-negative int, got %v", v)
	}
	if n == 0 {
		return kdtree.DefaultBucketSize, nil
	}
	return n, nil
}

// Index is the opaque, immutable handle returned by Create. Index is
// safe for concurrent use: Knn never mutates shared state, only
// per-call scratch.
type Index[T Scalar] struct {
	dim           int
	cloud         Matrix[T]
	backend       backend[T]
	creationFlags CreationFlags
	recorder      metrics.Recorder
}

// backend is the internal seam between the batch driver and whichever
// algorithm actually answers a query — the kd-tree or the brute-force
// collaborator — so batch.go never branches on SearchType itself.
type backend[T Scalar] interface {
	search(q []T, o queryOptions[T]) ([]uint32, []T, uint64)
}

type queryOptions[T Scalar] struct {
	k                 int
	maxError          T
	maxRadius2        T
	allowSelfMatch    bool
	sortResults       bool
	collectStatistics bool
}

type kdBackend[T Scalar] struct{ tree *kdtree.Tree[T] }

func (b kdBackend[T]) search(q []T, o queryOptions[T]) ([]uint32, []T, uint64) {
	return b.tree.Search(q, kdtree.Options[T]{
		K:                 o.k,
		MaxError:          o.maxError,
		MaxRadius2:        o.maxRadius2,
		AllowSelfMatch:    o.allowSelfMatch,
		SortResults:       o.sortResults,
		CollectStatistics: o.collectStatistics,
	})
}

type bruteForceBackend[T Scalar] struct{ s *bruteforce.Searcher[T] }

func (b bruteForceBackend[T]) search(q []T, o queryOptions[T]) ([]uint32, []T, uint64) {
	return b.s.Search(q, bruteforce.Options[T]{
		K:                 o.k,
		MaxRadius2:        o.maxRadius2,
		AllowSelfMatch:    o.allowSelfMatch,
		SortResults:       o.sortResults,
		CollectStatistics: o.collectStatistics,
	})
}

func toInternalMode(m DistanceMode) kdtree.DistanceMode {
	if m == L1 {
		return kdtree.L1
	}
	return kdtree.L2Squared
}

func toBruteForceMode(m DistanceMode) bruteforce.DistanceMode {
	if m == L1 {
		return bruteforce.L1
	}
	return bruteforce.L2Squared
}

// Create builds an Index over cloud using searchType, validating shapes
// and parameters at the boundary. dim must equal cloud.Rows().
func Create[T Scalar](cloud Matrix[T], dim int, searchType SearchType, creationFlags CreationFlags, parameters Parameters, mode DistanceMode) (*Index[T], error) {
	if creationFlags&^knownCreationFlags != 0 {
		return nil, invalidArgf("unknown creation flag bits: %#x", uint32(creationFlags&^knownCreationFlags))
	}
	if dim != cloud.Rows() {
		return nil, invalidArgf("dim %d does not match cloud row count %d", dim, cloud.Rows())
	}

	bucketSize, err := parameters.bucketSize()
	if err != nil {
		return nil, err
	}

	idx := &Index[T]{dim: dim, cloud: cloud, creationFlags: creationFlags}

	switch searchType {
	case BruteForce:
		idx.backend = bruteForceBackend[T]{s: bruteforce.New(cloud, toBruteForceMode(mode))}
	case KDTreeLinearHeap, KDTreeTreeHeap:
		heapKind := kdtree.LinearHeapKind
		if searchType == KDTreeTreeHeap {
			heapKind = kdtree.TreeHeapKind
		}
		tree := kdtree.Build(cloud, kdtree.BuildOptions{
			BucketSize: bucketSize,
			Mode:       toInternalMode(mode),
			HeapKind:   heapKind,
		})
		idx.backend = kdBackend[T]{tree: tree}
	default:
		return nil, unsupportedf("unknown search type %d", searchType)
	}

	return idx, nil
}

// WithRecorder attaches a metrics.Recorder the batch driver reports
// per-batch statistics and the index's sizing to. Passing nil
// (the default) disables metrics entirely at zero cost.
func (idx *Index[T]) WithRecorder(r metrics.Recorder) *Index[T] {
	idx.recorder = r
	if r != nil {
		nodes, buckets := idx.introspect()
		r.ObserveIndexSize(nodes, buckets)
	}
	return idx
}

func (idx *Index[T]) introspect() (nodes, buckets int) {
	if kd, ok := idx.backend.(kdBackend[T]); ok {
		return kd.tree.NumNodes(), kd.tree.NumBuckets()
	}
	return 0, idx.cloud.Cols()
}

// Dim returns the cloud's dimensionality.
func (idx *Index[T]) Dim() int { return idx.dim }

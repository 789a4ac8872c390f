package knn

import (
	"context"
	"runtime"

	concurrently "github.com/tejzpr/ordered-concurrently/v3"
)

// Knn answers k nearest neighbours for every column of query against
// idx, applying the same maxRadius to every query column (the
// uniform-radius overload).
func (idx *Index[T]) Knn(query Matrix[T], indices [][]uint32, dists2 [][]T, k int, epsilon T, flags SearchFlags, maxRadius T) (uint64, error) {
	radii := make([]T, query.Cols())
	for i := range radii {
		radii[i] = maxRadius
	}
	return idx.knnPerQueryRadii(query, indices, dists2, radii, k, epsilon, flags)
}

// KnnRadii answers k nearest neighbours for every column of query
// against idx, with one maxRadius per query column. len(maxRadii) must
// equal query.Cols().
func (idx *Index[T]) KnnRadii(query Matrix[T], indices [][]uint32, dists2 [][]T, maxRadii []T, k int, epsilon T, flags SearchFlags) (uint64, error) {
	return idx.knnPerQueryRadii(query, indices, dists2, maxRadii, k, epsilon, flags)
}

// queryWork is the concurrently.WorkFunction dispatched once per query
// column. maxRadius arrives unsquared, exactly as the caller passed it
// to Knn/KnnRadii; it is squared here, once, right before it reaches a
// backend, whose Options.MaxRadius2 is always compared directly against
// an already-squared distance.
type queryWork[T Scalar] struct {
	backend   backend[T]
	q         []T
	opts      queryOptions[T]
	maxRadius T
}

type queryResult[T Scalar] struct {
	indices   []uint32
	dists2    []T
	inspected uint64
}

func (w queryWork[T]) Run(_ context.Context) interface{} {
	o := w.opts
	o.maxRadius2 = w.maxRadius * w.maxRadius
	res, d2, inspected := w.backend.search(w.q, o)
	return queryResult[T]{indices: res, dists2: d2, inspected: inspected}
}

func (idx *Index[T]) knnPerQueryRadii(query Matrix[T], indices [][]uint32, dists2 [][]T, maxRadii []T, k int, epsilon T, flags SearchFlags) (uint64, error) {
	if err := validateBatch(idx.dim, query, indices, dists2, maxRadii, k, epsilon, flags); err != nil {
		return 0, err
	}

	opts := queryOptions[T]{
		k:                 k,
		maxError:          1 + epsilon,
		allowSelfMatch:    flags&AllowSelfMatch != 0,
		sortResults:       flags&SortResults != 0,
		collectStatistics: flags&CollectStatistics != 0,
	}

	q := query.Cols()
	workers := runtime.GOMAXPROCS(0)
	if workers > q {
		workers = q
	}
	if workers < 1 {
		workers = 1
	}

	inputChan := make(chan concurrently.WorkFunction, workers)
	outputChan := concurrently.Process(context.Background(), inputChan, &concurrently.Options{
		PoolSize:         workers,
		OutChannelBuffer: workers,
	})

	go func() {
		for i := 0; i < q; i++ {
			inputChan <- queryWork[T]{backend: idx.backend, q: query.Col(i), opts: opts, maxRadius: maxRadii[i]}
		}
		close(inputChan)
	}()

	var sum uint64
	i := 0
	for out := range outputChan {
		res := out.Value.(queryResult[T])
		copy(indices[i], res.indices)
		copy(dists2[i], res.dists2)
		sum += res.inspected
		i++
	}

	if idx.recorder != nil {
		idx.recorder.ObserveBatch(q, sum)
	}
	if flags&CollectStatistics == 0 {
		return 0, nil
	}
	return sum, nil
}

func validateBatch[T Scalar](dim int, query Matrix[T], indices [][]uint32, dists2 [][]T, maxRadii []T, k int, epsilon T, flags SearchFlags) error {
	if flags&^knownSearchFlags != 0 {
		return invalidArgf("unknown search flag bits: %#x", uint32(flags&^knownSearchFlags))
	}
	if k <= 0 {
		return invalidArgf("k must be > 0, got %d", k)
	}
	if epsilon < 0 {
		return invalidArgf("epsilon must be >= 0, got %v", epsilon)
	}
	if query.Rows() != dim {
		return invalidArgf("query has %d rows, index dimension is %d", query.Rows(), dim)
	}
	q := query.Cols()
	if len(indices) != q || len(dists2) != q {
		return invalidArgf("indices/dists2 must have %d columns, got %d/%d", q, len(indices), len(dists2))
	}
	for i := 0; i < q; i++ {
		if len(indices[i]) != k || len(dists2[i]) != k {
			return invalidArgf("column %d: indices/dists2 must have length k=%d, got %d/%d", i, k, len(indices[i]), len(dists2[i]))
		}
	}
	if len(maxRadii) != q {
		return invalidArgf("maxRadii must have %d entries, got %d", q, len(maxRadii))
	}
	for i, r := range maxRadii {
		if r < 0 {
			return invalidArgf("maxRadii[%d] must be >= 0, got %v", i, r)
		}
	}
	return nil
}

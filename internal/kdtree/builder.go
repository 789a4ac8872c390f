package kdtree

import "github.com/spatialgo/knnidx/internal/matrix"

// DefaultBucketSize is the leaf capacity used when the factory's
// Parameters map omits "bucketSize".
const DefaultBucketSize = 8

// BuildOptions are the builder's construction-time parameters, kept as
// an explicit struct with explicit defaults rather than a config file.
type BuildOptions struct {
	BucketSize int
	Mode       DistanceMode
	HeapKind   HeapKind
}

// builder holds the mutable state of one construction pass: the point
// index permutation being partitioned in place, and the append-only
// node/bucket sequences being written. It is never reused across builds.
type builder[T matrix.Scalar] struct {
	cloud   matrix.Matrix[T]
	layout  layout
	bucket  int
	points  []uint32
	nodes   []node[T]
	buckets []bucketEntry[T]
}

// build runs the mid-point-split-with-slide construction over the full
// point range and returns the completed node/bucket sequences. A
// zero-row or zero-column cloud returns an empty tree: every query
// against it reports "no neighbour".
func build[T matrix.Scalar](cloud matrix.Matrix[T], opts BuildOptions) ([]node[T], []bucketEntry[T], layout) {
	l := newLayout(cloud.Rows())
	if cloud.Rows() == 0 || cloud.Cols() == 0 {
		return nil, nil, l
	}

	bucketSize := opts.BucketSize
	if bucketSize <= 0 {
		bucketSize = DefaultBucketSize
	}

	b := &builder[T]{
		cloud:   cloud,
		layout:  l,
		bucket:  bucketSize,
		points:  identityPermutation(cloud.Cols()),
		nodes:   make([]node[T], 0, 2*cloud.Cols()/bucketSize+2),
		buckets: make([]bucketEntry[T], 0, cloud.Cols()),
	}

	min, max := cloud.BoundingBox()
	b.buildRange(0, len(b.points), min, max)
	return b.nodes, b.buckets, l
}

func identityPermutation(n int) []uint32 {
	p := make([]uint32, n)
	for i := range p {
		p[i] = uint32(i)
	}
	return p
}

// buildRange constructs the subtree covering points[first:last] inside
// the cell [minValues, maxValues] and returns the index of the node it
// wrote. Left children are always written at self+1 because the left
// subtree is recursed into immediately after reserving the parent's
// slot; the right child's index is recorded only once the entire left
// subtree has been appended.
func (b *builder[T]) buildRange(first, last int, minValues, maxValues []T) uint32 {
	if last-first <= b.bucket {
		return b.emitLeaf(first, last)
	}

	dim := b.widestDim(minValues, maxValues)
	cut := b.slideCut(first, last, dim, (minValues[dim]+maxValues[dim])/2)
	mid := b.partition(first, last, dim, cut)

	pos := uint32(len(b.nodes))
	b.nodes = append(b.nodes, node[T]{}) // reserve split node slot

	leftMax := cloneAndSet(maxValues, dim, cut)
	b.buildRange(first, mid, minValues, leftMax)

	rightChildIndex := uint32(len(b.nodes))
	rightMin := cloneAndSet(minValues, dim, cut)
	b.buildRange(mid, last, rightMin, maxValues)

	b.nodes[pos] = makeSplitNode(b.layout, dim, cut, rightChildIndex)
	return pos
}

func (b *builder[T]) emitLeaf(first, last int) uint32 {
	bucketIndex := uint32(len(b.buckets))
	for _, idx := range b.points[first:last] {
		b.buckets = append(b.buckets, bucketEntry[T]{pt: b.cloud.Col(int(idx)), index: idx})
	}
	pos := uint32(len(b.nodes))
	b.nodes = append(b.nodes, makeLeafNode[T](b.layout, uint32(last-first), bucketIndex))
	return pos
}

// widestDim picks the axis of maximum spread, ties broken to the
// smallest dimension index.
func (b *builder[T]) widestDim(minValues, maxValues []T) int {
	best := 0
	bestSpread := maxValues[0] - minValues[0]
	for d := 1; d < len(minValues); d++ {
		spread := maxValues[d] - minValues[d]
		if spread > bestSpread {
			best, bestSpread = d, spread
		}
	}
	return best
}

// slideCut implements the "slide to median" correction: the tentative
// midpoint is clamped into the actual projected extent of
// the points in [first,last) on dim, guaranteeing both children receive
// at least one point even when the cell's geometric midpoint lies
// outside the data (e.g. after earlier slides, or with skewed clouds).
func (b *builder[T]) slideCut(first, last, dim int, tentative T) T {
	projMin := b.cloud.At(dim, int(b.points[first]))
	projMax := projMin
	for _, idx := range b.points[first+1 : last] {
		v := b.cloud.At(dim, int(idx))
		if v < projMin {
			projMin = v
		}
		if v > projMax {
			projMax = v
		}
	}
	switch {
	case tentative < projMin:
		return projMin
	case tentative > projMax:
		return projMax
	default:
		return tentative
	}
}

// partition reorders points[first:last) so that every point with a
// value < cut on dim precedes every point with a value >= cut, and
// returns the split index. If the slide left one side empty (all
// points equal to cut on this axis land on the same side), it moves
// exactly one point across to preserve recursion progress; when the left
// side is the empty one, the point moved is one with the smallest value
// on dim (equal to cut), so it still lies inside the left cell.
func (b *builder[T]) partition(first, last, dim int, cut T) int {
	lo, hi := first, last
	for lo < hi {
		if b.cloud.At(dim, int(b.points[lo])) < cut {
			lo++
			continue
		}
		hi--
		b.points[lo], b.points[hi] = b.points[hi], b.points[lo]
	}
	switch {
	case lo == first:
		minPos := first
		for i := first + 1; i < last; i++ {
			if b.cloud.At(dim, int(b.points[i])) < b.cloud.At(dim, int(b.points[minPos])) {
				minPos = i
			}
		}
		b.points[first], b.points[minPos] = b.points[minPos], b.points[first]
		return first + 1
	case lo == last:
		return last - 1
	default:
		return lo
	}
}

func cloneAndSet[T matrix.Scalar](v []T, i int, val T) []T {
	out := make([]T, len(v))
	copy(out, v)
	out[i] = val
	return out
}

// Package kdtree implements the unbalanced, mid-point-split k-d tree core:
// packed node storage, mid-point-split-with-slide construction and the
// iterative best-first (ANN/Arya-Mount style) search traversal. Nodes and
// buckets are append-only and never mutated once Build returns, so a
// *Tree is safe to share across readers with no synchronization — see
// Tree's doc comment.
package kdtree

import "github.com/spatialgo/knnidx/internal/matrix"

// node packs the split dimension (or the leaf sentinel) and either the
// right child's node index or a leaf's bucket size into one 32-bit
// field, the way nabo_private.h's Node::dimChildBucketSize does:
// createDimChildBucketSize(dim, childIndex) / getDim / getChildBucketSize.
//
// The low dimBits bits hold a value in [0, dim]: 0..dim-1 identify the
// split axis of a split node, and the sentinel value dim itself marks a
// leaf. dimBits = ceil(log2(dim+1)) is sized so that sentinel always
// fits — one extra representable value beyond the largest real axis
// index. The high (32-dimBits) bits hold the right child's node index
// for a split node, or the bucket's entry count for a leaf.
//
// cutVal and bucketIndex are never both meaningful for the same node;
// which one is live is decided by the same discriminant (layout.isLeaf)
// used to read dimChildBucketSize. This is the "two separate fields
// with an explicit discriminant" option noted for replacing the
// original's C union.
type node[T matrix.Scalar] struct {
	dimChildBucketSize uint32
	cutVal             T
	bucketIndex        uint32
}

// layout carries the per-tree bit-width parameters derived once from D
// at construction time, mirroring the original's dimBitCount/dimMask
// constants (there const per tree instance, computed from dim).
type layout struct {
	dim     int
	dimBits uint32
	dimMask uint32
}

func newLayout(dim int) layout {
	bits := uint32(1)
	for (uint32(1) << bits) < uint32(dim+1) {
		bits++
	}
	return layout{
		dim:     dim,
		dimBits: bits,
		dimMask: (uint32(1) << bits) - 1,
	}
}

// leafSentinel is the low-bits value that marks a node as a leaf: one
// past the largest valid split dimension.
func (l layout) leafSentinel() uint32 { return uint32(l.dim) }

func (l layout) packSplit(dim int, rightChildIndex uint32) uint32 {
	return uint32(dim) | (rightChildIndex << l.dimBits)
}

func (l layout) packLeaf(bucketSize uint32) uint32 {
	return l.leafSentinel() | (bucketSize << l.dimBits)
}

func (l layout) splitDim(packed uint32) int {
	return int(packed & l.dimMask)
}

func (l layout) rightChildOrBucketSize(packed uint32) uint32 {
	return packed >> l.dimBits
}

func (l layout) isLeaf(packed uint32) bool {
	return packed&l.dimMask == l.leafSentinel()
}

func makeSplitNode[T matrix.Scalar](l layout, dim int, cutVal T, rightChildIndex uint32) node[T] {
	return node[T]{dimChildBucketSize: l.packSplit(dim, rightChildIndex), cutVal: cutVal}
}

func makeLeafNode[T matrix.Scalar](l layout, bucketSize uint32, bucketIndex uint32) node[T] {
	return node[T]{dimChildBucketSize: l.packLeaf(bucketSize), bucketIndex: bucketIndex}
}

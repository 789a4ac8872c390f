package kdtree

// bucketEntry is a borrowed pointer to one point's column in the cloud
// plus that point's index, mirroring nabo_private.h's BucketEntry(pt,
// index). Buckets never copy coordinate data: pt is a slice header over
// the cloud's backing array, valid for the Tree's entire lifetime.
type bucketEntry[T any] struct {
	pt    []T
	index uint32
}

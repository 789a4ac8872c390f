package kdtree

import "github.com/spatialgo/knnidx/internal/matrix"

// Options are the per-query parameters: k, the (1+eps) error factor,
// the squared radius bound (+Inf disables it) and the search flags.
type Options[T matrix.Scalar] struct {
	K                 int
	MaxError          T // 1 + epsilon
	MaxRadius2        T
	AllowSelfMatch    bool
	SortResults       bool
	CollectStatistics bool
}

type frameKind uint8

const (
	kVisit frameKind = iota
	kEvalFar
	kRestore
)

// frame is one entry of the explicit descent stack: a kVisit frame
// carries (node index, rd at entry); a kEvalFar frame is the deferred
// "on return from near, decide whether to descend far" step, carrying
// the one mutated axis and its old/new values plus the far cell's rd';
// kRestore undoes that axis
// mutation once the far subtree (if visited) is done. Nesting these on
// one LIFO stack reproduces the recursive pre-order traversal exactly,
// including restoring O[d] on backtrack at every frame.
type frame[T matrix.Scalar] struct {
	kind   frameKind
	node   uint32
	rd     T
	dim    int
	oldOff T
	newOff T
}

// searcher owns one query's scratch: heap, offset array and descent
// stack. It is created per call and never shared, so concurrent callers
// never contend over it.
type searcher[T matrix.Scalar] struct {
	tree  *Tree[T]
	heap  bestK[T]
	off   offsets[T]
	stack []frame[T]
}

func newSearcher[T matrix.Scalar](t *Tree[T], k int) *searcher[T] {
	return &searcher[T]{
		tree: t,
		heap: newBestK[T](t.heapKind, k),
		off:  newOffsets[T](t.layout.dim),
	}
}

// search runs one query and returns (indices, squared distances,
// leaf points inspected). Both result slices have length opts.K; unused
// slots keep the +Inf/invalidIndex sentinel.
func (s *searcher[T]) search(q []T, opts Options[T]) ([]uint32, []T, uint64) {
	var inspected uint64

	if len(s.tree.nodes) == 0 {
		entries := s.heap.entries()
		return collectResults(entries), collectDists(entries), 0
	}

	rd := initialRD(s.tree.mode, q, s.tree.minBound, s.tree.maxBound, s.off)
	s.stack = append(s.stack[:0], frame[T]{kind: kVisit, node: 0, rd: rd})
	maxErrorSq := opts.MaxError * opts.MaxError

	for len(s.stack) > 0 {
		f := s.stack[len(s.stack)-1]
		s.stack = s.stack[:len(s.stack)-1]

		switch f.kind {
		case kRestore:
			s.off[f.dim] = f.oldOff

		case kEvalFar:
			worst := s.heap.top().dist
			pruned := f.rd*maxErrorSq > worst && f.rd > opts.MaxRadius2
			if !pruned {
				s.off[f.dim] = f.newOff
				s.stack = append(s.stack, frame[T]{kind: kRestore, dim: f.dim, oldOff: f.oldOff})
				s.stack = append(s.stack, frame[T]{kind: kVisit, node: f.node, rd: f.rd})
			}

		case kVisit:
			n := s.tree.nodes[f.node]
			packed := n.dimChildBucketSize
			if s.tree.layout.isLeaf(packed) {
				inspected += s.visitLeaf(q, n, opts)
				continue
			}
			dim := s.tree.layout.splitDim(packed)
			rightChild := s.tree.layout.rightChildOrBucketSize(packed)
			leftChild := f.node + 1

			diff := q[dim] - n.cutVal
			old := s.off[dim]

			var near, far uint32
			if diff <= 0 {
				near, far = leftChild, rightChild
			} else {
				near, far = rightChild, leftChild
			}

			rdPrime := f.rd - axialTerm(s.tree.mode, old) + axialTerm(s.tree.mode, diff)
			s.stack = append(s.stack, frame[T]{kind: kEvalFar, node: far, rd: rdPrime, dim: dim, oldOff: old, newOff: diff})
			s.stack = append(s.stack, frame[T]{kind: kVisit, node: near, rd: f.rd})
		}
	}

	entries := s.heap.entries()
	if opts.SortResults {
		entries = s.heap.drainSorted()
	}
	if !opts.CollectStatistics {
		inspected = 0
	}
	return collectResults(entries), collectDists(entries), inspected
}

func (s *searcher[T]) visitLeaf(q []T, n node[T], opts Options[T]) uint64 {
	bucketIndex := n.bucketIndex
	count := s.tree.layout.rightChildOrBucketSize(n.dimChildBucketSize)
	entries := s.tree.buckets[bucketIndex : bucketIndex+count]
	for _, e := range entries {
		if !opts.AllowSelfMatch && coordinatesEqual(q, e.pt) {
			continue
		}
		d2 := pointDistance(s.tree.mode, q, e.pt)
		if d2 > opts.MaxRadius2 {
			continue
		}
		if d2 < s.heap.top().dist {
			s.heap.pushIfBetter(candidate[T]{dist: d2, idx: e.index})
		}
	}
	return uint64(len(entries))
}

func coordinatesEqual[T matrix.Scalar](a, b []T) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func pointDistance[T matrix.Scalar](mode DistanceMode, q, pt []T) T {
	var sum T
	if mode == L1 {
		for i, qi := range q {
			d := qi - pt[i]
			if d < 0 {
				d = -d
			}
			sum += d
		}
		return sum
	}
	for i, qi := range q {
		d := qi - pt[i]
		sum += d * d
	}
	return sum
}

func collectResults[T matrix.Scalar](entries []candidate[T]) []uint32 {
	out := make([]uint32, len(entries))
	for i, c := range entries {
		out[i] = c.idx
	}
	return out
}

func collectDists[T matrix.Scalar](entries []candidate[T]) []T {
	out := make([]T, len(entries))
	for i, c := range entries {
		out[i] = c.dist
	}
	return out
}

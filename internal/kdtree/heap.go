package kdtree

import (
	"math"
	"sort"

	"github.com/spatialgo/knnidx/internal/matrix"
)

// candidate is one entry of the best-k heap: a squared distance and the
// cloud column index it came from.
type candidate[T matrix.Scalar] struct {
	dist T
	idx  uint32
}

// invalidIndex is the sentinel index for "no neighbour found", the
// largest representable value of the index type.
const invalidIndex uint32 = math.MaxUint32

// bestK is the capability set a searcher needs from its best-k heap:
// peek the current worst kept candidate, replace it when something
// better arrives, and drain in ascending order when requested. This
// replaces the original's template specialisation on heap type with one
// interface and two implementations.
type bestK[T matrix.Scalar] interface {
	// top returns the current worst (largest-distance) kept candidate.
	top() candidate[T]
	// pushIfBetter replaces the worst candidate with c if c is closer,
	// restoring the heap's top-is-worst invariant.
	pushIfBetter(c candidate[T])
	// entries returns the heap's current contents in heap order (not
	// necessarily sorted).
	entries() []candidate[T]
	// drainSorted returns the heap's contents sorted by ascending
	// distance. It does not mutate the heap.
	drainSorted() []candidate[T]
}

func sentinelSlice[T matrix.Scalar](k int) []candidate[T] {
	s := make([]candidate[T], k)
	for i := range s {
		s[i] = candidate[T]{dist: T(math.Inf(1)), idx: invalidIndex}
	}
	return s
}

func sortAscending[T matrix.Scalar](entries []candidate[T]) []candidate[T] {
	out := make([]candidate[T], len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool { return out[i].dist < out[j].dist })
	return out
}

// linearHeap is a flat array of k candidates with the current worst
// tracked by index. Replacing the worst costs an O(k) rescan, but that
// scan is a tight, branch-predictable loop over contiguous memory — the
// better choice for small k.
type linearHeap[T matrix.Scalar] struct {
	data  []candidate[T]
	worst int
}

func newLinearHeap[T matrix.Scalar](k int) *linearHeap[T] {
	h := &linearHeap[T]{data: sentinelSlice[T](k)}
	h.worst = h.findWorst()
	return h
}

func (h *linearHeap[T]) findWorst() int {
	worst := 0
	for i := 1; i < len(h.data); i++ {
		if h.data[i].dist > h.data[worst].dist {
			worst = i
		}
	}
	return worst
}

func (h *linearHeap[T]) top() candidate[T] { return h.data[h.worst] }

func (h *linearHeap[T]) pushIfBetter(c candidate[T]) {
	if !(c.dist < h.data[h.worst].dist) {
		return
	}
	h.data[h.worst] = c
	h.worst = h.findWorst()
}

func (h *linearHeap[T]) entries() []candidate[T] { return h.data }

func (h *linearHeap[T]) drainSorted() []candidate[T] { return sortAscending(h.data) }

// treeHeap is a classic array-backed binary max-heap: the largest
// distance is always at index 0. Replacing the root costs O(log k)
// sift-down, the better trade-off once k grows past the point where
// linearHeap's O(k) rescan dominates.
type treeHeap[T matrix.Scalar] struct {
	data []candidate[T]
}

func newTreeHeap[T matrix.Scalar](k int) *treeHeap[T] {
	return &treeHeap[T]{data: sentinelSlice[T](k)}
}

func (h *treeHeap[T]) top() candidate[T] { return h.data[0] }

func (h *treeHeap[T]) pushIfBetter(c candidate[T]) {
	if !(c.dist < h.data[0].dist) {
		return
	}
	h.data[0] = c
	h.siftDown(0)
}

func (h *treeHeap[T]) siftDown(i int) {
	n := len(h.data)
	for {
		left, right := 2*i+1, 2*i+2
		largest := i
		if left < n && h.data[left].dist > h.data[largest].dist {
			largest = left
		}
		if right < n && h.data[right].dist > h.data[largest].dist {
			largest = right
		}
		if largest == i {
			return
		}
		h.data[i], h.data[largest] = h.data[largest], h.data[i]
		i = largest
	}
}

func (h *treeHeap[T]) entries() []candidate[T] { return h.data }

func (h *treeHeap[T]) drainSorted() []candidate[T] { return sortAscending(h.data) }

// HeapKind selects which bestK implementation a Tree's searchers use.
// Exported so the factory layer (knn.go) can translate SearchType into a
// construction-time choice; the tree always honours the selection, even
// where it and the caller might disagree about the ideal crossover.
type HeapKind int

const (
	// LinearHeapKind selects the O(k)-rescan linear array heap.
	LinearHeapKind HeapKind = iota
	// TreeHeapKind selects the O(log k) binary max-heap.
	TreeHeapKind
)

func newBestK[T matrix.Scalar](kind HeapKind, k int) bestK[T] {
	switch kind {
	case TreeHeapKind:
		return newTreeHeap[T](k)
	default:
		return newLinearHeap[T](k)
	}
}

package kdtree

import (
	"reflect"
	"testing"

	"github.com/spatialgo/knnidx/internal/matrix"
)

func gridCloud() matrix.Matrix[float64] {
	cols := make([][]float64, 0, 9)
	for x := 0.0; x < 3; x++ {
		for y := 0.0; y < 3; y++ {
			cols = append(cols, []float64{x, y})
		}
	}
	return matrix.NewFromColumns(cols)
}

func TestBuildBucketCountEqualsN(t *testing.T) {
	cloud := gridCloud()
	tr := Build(cloud, BuildOptions{BucketSize: 2})
	if tr.NumBuckets() != cloud.Cols() {
		t.Fatalf("NumBuckets = %d, want %d", tr.NumBuckets(), cloud.Cols())
	}
}

func TestBuildLeftChildIsSelfPlusOne(t *testing.T) {
	cloud := gridCloud()
	tr := Build(cloud, BuildOptions{BucketSize: 2})
	for i, n := range tr.nodes {
		if tr.layout.isLeaf(n.dimChildBucketSize) {
			continue
		}
		left := uint32(i) + 1
		right := tr.layout.rightChildOrBucketSize(n.dimChildBucketSize)
		if left >= uint32(len(tr.nodes)) || right > uint32(len(tr.nodes)) {
			t.Fatalf("node %d: child index out of range (left=%d right=%d len=%d)", i, left, right, len(tr.nodes))
		}
		if right <= left {
			t.Fatalf("node %d: right child %d must be greater than left child %d", i, right, left)
		}
	}
}

func TestBuildDeterministic(t *testing.T) {
	cloud := gridCloud()
	a := Build(cloud, BuildOptions{BucketSize: 2})
	b := Build(cloud, BuildOptions{BucketSize: 2})
	if !reflect.DeepEqual(a.nodes, b.nodes) {
		t.Fatalf("two builds over identical input produced different node sequences")
	}
	if !reflect.DeepEqual(a.buckets, b.buckets) {
		t.Fatalf("two builds over identical input produced different bucket sequences")
	}
}

func TestBuildDuplicatePointsTerminates(t *testing.T) {
	cols := make([][]float64, 0, 101)
	for i := 0; i < 100; i++ {
		cols = append(cols, []float64{0, 0})
	}
	cols = append(cols, []float64{1, 0})
	cloud := matrix.NewFromColumns(cols)

	tr := Build(cloud, BuildOptions{BucketSize: 8})
	if tr.NumBuckets() != 101 {
		t.Fatalf("NumBuckets = %d, want 101", tr.NumBuckets())
	}
}

func TestBuildEmptyCloud(t *testing.T) {
	cloud := matrix.New[float64](nil, 0, 0)
	tr := Build(cloud, BuildOptions{BucketSize: 8})
	if tr.NumNodes() != 0 || tr.NumBuckets() != 0 {
		t.Fatalf("expected empty tree for empty cloud, got %d nodes / %d buckets", tr.NumNodes(), tr.NumBuckets())
	}
}

func TestBuildSingleDimensionSinglePoint(t *testing.T) {
	cloud := matrix.NewFromColumns([][]float64{{5}})
	tr := Build(cloud, BuildOptions{BucketSize: 8})
	if tr.NumBuckets() != 1 {
		t.Fatalf("NumBuckets = %d, want 1", tr.NumBuckets())
	}
}

package kdtree

import (
	"math"
	"testing"

	"github.com/spatialgo/knnidx/internal/matrix"
)

func optsFor(k int, flags ...func(*Options[float64])) Options[float64] {
	o := Options[float64]{K: k, MaxError: 1, MaxRadius2: math.Inf(1), SortResults: true}
	for _, f := range flags {
		f(&o)
	}
	return o
}

func withSelfMatch(o *Options[float64]) { o.AllowSelfMatch = true }

func TestSearchTrivial1D(t *testing.T) {
	cloud := matrix.NewFromColumns([][]float64{{0}, {1}, {2}, {3}, {4}})
	tr := Build(cloud, BuildOptions{BucketSize: 8})
	idx, dists, _ := tr.Search([]float64{1.5}, optsFor(2, withSelfMatch))

	wantIdx := map[uint32]bool{1: true, 2: true}
	for i, d := range idx {
		if !wantIdx[d] {
			t.Fatalf("unexpected index %d at position %d", d, i)
		}
		if math.Abs(dists[i]-0.25) > 1e-9 {
			t.Fatalf("dists[%d] = %v, want 0.25", i, dists[i])
		}
	}
}

func TestSearch2DGrid(t *testing.T) {
	cloud := gridCloudColMajor()
	tr := Build(cloud, BuildOptions{BucketSize: 2})
	idx, dists, _ := tr.Search([]float64{1.1, 1.1}, optsFor(1, withSelfMatch))

	if idx[0] != 4 {
		t.Fatalf("index = %d, want 4", idx[0])
	}
	if math.Abs(dists[0]-0.02) > 1e-9 {
		t.Fatalf("dist = %v, want 0.02", dists[0])
	}
}

// gridCloudColMajor builds the 3x3 lattice in the exact column order S2
// expects: (0,0),(0,1),(0,2),(1,0),(1,1),(1,2),(2,0),(2,1),(2,2).
func gridCloudColMajor() matrix.Matrix[float64] {
	cols := [][]float64{
		{0, 0}, {0, 1}, {0, 2},
		{1, 0}, {1, 1}, {1, 2},
		{2, 0}, {2, 1}, {2, 2},
	}
	return matrix.NewFromColumns(cols)
}

func TestSearchSelfMatchToggle(t *testing.T) {
	cloud := gridCloudColMajor()
	tr := Build(cloud, BuildOptions{BucketSize: 2})
	q := cloud.Col(4) // (1,1)

	withMatch, _, _ := tr.Search(q, optsFor(1, withSelfMatch))
	if withMatch[0] != 4 {
		t.Fatalf("with ALLOW_SELF_MATCH: index = %d, want 4", withMatch[0])
	}

	without, dists, _ := tr.Search(q, optsFor(1))
	allowed := map[uint32]bool{1: true, 3: true, 5: true, 7: true}
	if !allowed[without[0]] {
		t.Fatalf("without ALLOW_SELF_MATCH: index = %d, want one of {1,3,5,7}", without[0])
	}
	if math.Abs(dists[0]-1) > 1e-9 {
		t.Fatalf("dist = %v, want 1", dists[0])
	}
}

func TestSearchRadiusCutoff(t *testing.T) {
	cloud := gridCloudColMajor()
	tr := Build(cloud, BuildOptions{BucketSize: 2})
	o := optsFor(3, withSelfMatch)
	o.MaxRadius2 = 1
	idx, dists, _ := tr.Search([]float64{10, 10}, o)
	for i := range idx {
		if idx[i] != invalidIndex {
			t.Fatalf("entry %d: index = %d, want sentinel", i, idx[i])
		}
		if !math.IsInf(dists[i], 1) {
			t.Fatalf("entry %d: dist = %v, want +Inf", i, dists[i])
		}
	}
}

func TestSearchApproximationBound(t *testing.T) {
	cloud := randomCloud(3, 1000, 42)
	tr := Build(cloud, BuildOptions{BucketSize: 8})
	q := []float64{0.5, 0.5, 0.5}

	oExact := optsFor(10, withSelfMatch)
	_, exact, _ := tr.Search(q, oExact)

	oApprox := optsFor(10, withSelfMatch)
	oApprox.MaxError = 1.2
	_, approx, _ := tr.Search(q, oApprox)

	for i := range exact {
		if math.IsInf(exact[i], 1) {
			continue
		}
		if approx[i] > 1.2*exact[i]+1e-9 {
			t.Fatalf("rank %d: approx dist %v exceeds 1.2x exact dist %v", i, approx[i], exact[i])
		}
	}
}

func TestSearchDuplicatesAllDistinctIndices(t *testing.T) {
	cols := make([][]float64, 0, 101)
	for i := 0; i < 100; i++ {
		cols = append(cols, []float64{0, 0, 0})
	}
	cols = append(cols, []float64{1, 0, 0})
	cloud := matrix.NewFromColumns(cols)
	tr := Build(cloud, BuildOptions{BucketSize: 8})

	idx, dists, _ := tr.Search([]float64{0, 0, 0}, optsFor(5, withSelfMatch))
	seen := map[uint32]bool{}
	for i, d := range idx {
		if d == invalidIndex {
			t.Fatalf("entry %d: unexpected sentinel with 101 candidates available", i)
		}
		if seen[d] {
			t.Fatalf("index %d returned more than once", d)
		}
		seen[d] = true
		if dists[i] != 0 {
			t.Fatalf("entry %d: dist = %v, want 0", i, dists[i])
		}
	}
}

func TestSearchNaNQueryNeverCrashes(t *testing.T) {
	cloud := gridCloudColMajor()
	tr := Build(cloud, BuildOptions{BucketSize: 2})
	nan := math.NaN()
	idx, _, _ := tr.Search([]float64{nan, nan}, optsFor(3))
	_ = idx // must not panic; content is unspecified with NaN input
}

// randomCloud deterministically generates a D x N cloud in [0,1)^D using
// a simple xorshift so tests never depend on math/rand's global seed.
func randomCloud(d, n int, seed uint64) matrix.Matrix[float64] {
	state := seed
	next := func() float64 {
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17
		return float64(state%1_000_000) / 1_000_000
	}
	cols := make([][]float64, n)
	for j := 0; j < n; j++ {
		col := make([]float64, d)
		for i := 0; i < d; i++ {
			col[i] = next()
		}
		cols[j] = col
	}
	return matrix.NewFromColumns(cols)
}

package vamana

import (
	"context"
	"math"
	"sort"
	"testing"
)

// ordinalSet normalizes a neighbor ordinal slice into a comparable
// sorted set, since AllOrdinals/Ordinals make no ordering promise.
func ordinalSet(ords []Ordinal) []Ordinal {
	out := make([]Ordinal, len(ords))
	copy(out, ords)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func assertOrdinalSet(t *testing.T, label string, got []Ordinal, want ...Ordinal) {
	t.Helper()
	gotSet := ordinalSet(got)
	wantSet := ordinalSet(want)
	if len(gotSet) != len(wantSet) {
		t.Fatalf("%s = %v, want %v", label, gotSet, wantSet)
	}
	for i := range gotSet {
		if gotSet[i] != wantSet[i] {
			t.Fatalf("%s = %v, want %v", label, gotSet, wantSet)
		}
	}
}

// TestBuilder_Scenario1_DiversityOnUnitCircle is spec.md §8 Scenario 1:
// alpha=1.0 RobustPrune over 7 unit-circle points under DOT_PRODUCT,
// M=4, inserted in ordinal order with node 0 as the (never explicitly
// inserted) entry point. BeamWidth is set to the full corpus size so
// each InsertNode's search visits every reachable node, matching the
// scenario's implicit full-graph beam.
func TestBuilder_Scenario1_DiversityOnUnitCircle(t *testing.T) {
	angles := []float64{0.5, 0.75, 0.2, 0.9, 0.8, 0.77, 0.6} // multiples of pi
	store := NewSliceStore(2)
	for _, a := range angles {
		theta := a * math.Pi
		store.Add([]float32{float32(math.Cos(theta)), float32(math.Sin(theta))})
	}

	graph := NewGraph(store, DotProduct, 4)
	builder := NewBuilder(graph, BuilderConfig{BeamWidth: 7, Alpha: 1.0, NeighborOverflow: 1.2})

	for i := 0; i < len(angles); i++ {
		graph.Reserve()
	}
	for ord := Ordinal(1); ord <= 5; ord++ {
		if err := builder.InsertNode(ord); err != nil {
			t.Fatalf("InsertNode(%d): %v", ord, err)
		}
	}

	assertOrdinalSet(t, "neighbors(0)", graph.Neighbors(0).AllOrdinals(), 1, 2)
	assertOrdinalSet(t, "neighbors(1)", graph.Neighbors(1).AllOrdinals(), 0, 3, 4, 5)
	assertOrdinalSet(t, "neighbors(2)", graph.Neighbors(2).AllOrdinals(), 0)
	assertOrdinalSet(t, "neighbors(3)", graph.Neighbors(3).AllOrdinals(), 1, 4)
	assertOrdinalSet(t, "neighbors(4)", graph.Neighbors(4).AllOrdinals(), 1, 3, 5)
	assertOrdinalSet(t, "neighbors(5)", graph.Neighbors(5).AllOrdinals(), 1, 4)
}

// TestBuilder_Scenario2_DiversityFallback3D is spec.md §8 Scenario 2:
// a 3-D corpus where RobustPrune's occlusion rule forces a particular
// fallback neighbor set once M=2 is reached.
func TestBuilder_Scenario2_DiversityFallback3D(t *testing.T) {
	store := NewSliceStore(3)
	points := [][]float32{
		{0, 0, 0},
		{0, 10, 0},
		{0, 0, 20},
		{10, 0, 0},
		{0, 4, 0},
	}
	for _, p := range points {
		store.Add(p)
	}

	graph := NewGraph(store, Euclidean, 2)
	builder := NewBuilder(graph, BuilderConfig{BeamWidth: 5, Alpha: 1.0, NeighborOverflow: 1.2})

	for range points {
		graph.Reserve()
	}
	for ord := Ordinal(1); ord <= 3; ord++ {
		if err := builder.InsertNode(ord); err != nil {
			t.Fatalf("InsertNode(%d): %v", ord, err)
		}
	}

	assertOrdinalSet(t, "neighbors(0)", graph.Neighbors(0).AllOrdinals(), 1, 3)
}

func buildTestGraph(t *testing.T, n, dim int, seed int64, degreeCap int) (*Graph, [][]float32) {
	t.Helper()
	store := NewSliceStore(dim)
	vectors := generateRandomVectors(n, dim, seed)
	for _, v := range vectors {
		if _, err := store.Add(v); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	graph := NewGraph(store, Cosine, degreeCap)
	builder := NewBuilder(graph, BuilderConfig{BeamWidth: 40, Alpha: 1.2})
	if err := builder.BuildAll(context.Background()); err != nil {
		t.Fatalf("BuildAll: %v", err)
	}
	return graph, vectors
}

func TestBuilder_BuildAll_EveryNodeHasNeighbors(t *testing.T) {
	graph, vectors := buildTestGraph(t, 200, 16, 10, 16)

	for ord := Ordinal(0); int(ord) < len(vectors); ord++ {
		neighbors := graph.Neighbors(ord).Ordinals()
		if len(neighbors) == 0 {
			t.Errorf("node %d has no neighbors after build", ord)
		}
		if len(neighbors) > graph.m {
			t.Errorf("node %d has %d neighbors, exceeds degree cap %d", ord, len(neighbors), graph.m)
		}
		for _, n := range neighbors {
			if n == ord {
				t.Errorf("node %d lists itself as a neighbor", ord)
			}
		}
	}
}

func TestBuilder_BuildAll_EmptyGraph(t *testing.T) {
	store := NewSliceStore(8)
	graph := NewGraph(store, Cosine, 16)
	builder := NewBuilder(graph, DefaultBuilderConfig())
	if err := builder.BuildAll(context.Background()); err == nil {
		t.Error("expected an error building over an empty store")
	}
}

func TestBuilder_InsertNode_ReinsertKeepsNeighbors(t *testing.T) {
	graph, vectors := buildTestGraph(t, 100, 8, 11, 12)
	builder := NewBuilder(graph, BuilderConfig{BeamWidth: 40, Alpha: 1.2})

	target := Ordinal(5)
	before := graph.Neighbors(target).Snapshot()

	if err := builder.InsertNode(target); err != nil {
		t.Fatalf("re-InsertNode: %v", err)
	}

	after := graph.Neighbors(target).Snapshot()
	if len(after) == 0 {
		t.Fatal("expected neighbors to remain non-empty after re-insertion")
	}
	_ = before
	_ = vectors
}

func TestBuilder_RecomputeEntryPointCadence(t *testing.T) {
	store := NewSliceStore(8)
	vectors := generateRandomVectors(40, 8, 12)
	for _, v := range vectors {
		store.Add(v)
	}
	graph := NewGraph(store, Cosine, 8)
	builder := NewBuilder(graph, BuilderConfig{BeamWidth: 10, Alpha: 1.2, EntryRecomputeEvery: 4})

	for i := 0; i < 40; i++ {
		graph.Reserve()
	}
	for ord := Ordinal(1); int(ord) < 40; ord++ {
		if err := builder.InsertNode(ord); err != nil {
			t.Fatalf("InsertNode(%d): %v", ord, err)
		}
	}

	if builder.recomputeThreshold <= 4 {
		t.Errorf("expected recompute threshold to have doubled past its initial value, got %d", builder.recomputeThreshold)
	}
}

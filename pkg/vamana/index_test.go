package vamana

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

func generateRandomVectors(n, dim int, seed int64) [][]float32 {
	r := rand.New(rand.NewSource(seed))
	vectors := make([][]float32, n)
	for i := 0; i < n; i++ {
		vectors[i] = make([]float32, dim)
		for j := 0; j < dim; j++ {
			vectors[i][j] = r.Float32()
		}
	}
	return vectors
}

func bruteForceTopK(query []float32, vectors [][]float32, k int, sim Similarity) []Ordinal {
	type scored struct {
		ord   Ordinal
		score float32
	}
	results := make([]scored, len(vectors))
	for i, v := range vectors {
		results[i] = scored{ord: Ordinal(i), score: sim.Compare(query, v)}
	}
	for i := 0; i < len(results); i++ {
		for j := i + 1; j < len(results); j++ {
			if results[j].score > results[i].score {
				results[i], results[j] = results[j], results[i]
			}
		}
	}
	if k > len(results) {
		k = len(results)
	}
	out := make([]Ordinal, k)
	for i := 0; i < k; i++ {
		out[i] = results[i].ord
	}
	return out
}

func recallAt(results []SearchResult, groundTruth []Ordinal) float64 {
	if len(groundTruth) == 0 {
		return 0
	}
	got := make(map[Ordinal]bool, len(results))
	for _, r := range results {
		got[r.Ord] = true
	}
	matches := 0
	for _, ord := range groundTruth {
		if got[ord] {
			matches++
		}
	}
	return float64(matches) / float64(len(groundTruth))
}

func TestIndex_BuildAndSearch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DegreeCap = 32
	cfg.Builder.BeamWidth = 50
	cfg.Similarity = Cosine

	dim := 64
	idx, err := New(cfg, dim)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer idx.Close()

	vectors := generateRandomVectors(500, dim, 1)
	for _, v := range vectors {
		if _, err := idx.AddVector(v); err != nil {
			t.Fatalf("AddVector: %v", err)
		}
	}

	if err := idx.Build(context.Background()); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !idx.IsBuilt() {
		t.Fatal("expected index to report built")
	}
	if idx.Size() != len(vectors) {
		t.Fatalf("Size() = %d, want %d", idx.Size(), len(vectors))
	}

	results, err := idx.Search(vectors[0], 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected non-empty results")
	}
	if results[0].Ord != 0 {
		t.Errorf("expected the query's own vector (ordinal 0) to rank first, got ordinal %d score %f", results[0].Ord, results[0].Score)
	}
}

func TestIndex_Recall(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping recall benchmark in short mode")
	}
	cfg := DefaultConfig()
	cfg.DegreeCap = 48
	cfg.Builder.BeamWidth = 75
	cfg.Similarity = Euclidean

	dim := 48
	idx, err := New(cfg, dim)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer idx.Close()

	vectors := generateRandomVectors(800, dim, 2)
	for _, v := range vectors {
		idx.AddVector(v)
	}
	if err := idx.Build(context.Background()); err != nil {
		t.Fatalf("Build: %v", err)
	}

	queries := generateRandomVectors(20, dim, 3)
	k := 10
	var totalRecall float64
	for _, q := range queries {
		results, err := idx.Search(q, k, nil)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		gt := bruteForceTopK(q, vectors, k, cfg.Similarity)
		totalRecall += recallAt(results, gt)
	}
	avg := totalRecall / float64(len(queries))
	t.Logf("average recall@%d: %.2f%%", k, avg*100)
	if avg < 0.80 {
		t.Errorf("expected recall >= 80%%, got %.2f%%", avg*100)
	}
}

func TestIndex_PQRerank(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DegreeCap = 32
	cfg.Builder.BeamWidth = 50
	cfg.Similarity = Euclidean
	cfg.PQSubspaces = 8
	cfg.RerankFactor = 5

	dim := 32
	idx, err := New(cfg, dim)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer idx.Close()

	vectors := generateRandomVectors(300, dim, 4)
	for _, v := range vectors {
		idx.AddVector(v)
	}
	if err := idx.Build(context.Background()); err != nil {
		t.Fatalf("Build: %v", err)
	}

	results, err := idx.Search(vectors[5], 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected non-empty results")
	}
}

func TestIndex_DiskRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DegreeCap = 24
	cfg.Builder.BeamWidth = 40
	cfg.Similarity = Cosine
	cfg.DiskPath = filepath.Join(t.TempDir(), "graph.bin")
	cfg.CacheCapacity = 64

	dim := 32
	idx, err := New(cfg, dim)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer idx.Close()

	vectors := generateRandomVectors(200, dim, 5)
	for _, v := range vectors {
		idx.AddVector(v)
	}
	if err := idx.Build(context.Background()); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := os.Stat(cfg.DiskPath); err != nil {
		t.Fatalf("expected disk graph file to exist: %v", err)
	}

	results, err := idx.Search(vectors[0], 5, nil)
	if err != nil {
		t.Fatalf("Search over disk tier: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected non-empty results from the disk-backed tier")
	}
}

func TestIndex_EmptyIndex(t *testing.T) {
	cfg := DefaultConfig()
	idx, err := New(cfg, 16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer idx.Close()

	if err := idx.Build(context.Background()); err == nil {
		t.Error("expected an error building an empty index")
	}
	if _, err := idx.Search(make([]float32, 16), 10, nil); err == nil {
		t.Error("expected an error searching an unbuilt index")
	}
}

func TestIndex_DimensionMismatch(t *testing.T) {
	cfg := DefaultConfig()
	idx, err := New(cfg, 128)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer idx.Close()

	if _, err := idx.AddVector(make([]float32, 128)); err != nil {
		t.Fatalf("AddVector: %v", err)
	}
	if _, err := idx.AddVector(make([]float32, 256)); err == nil {
		t.Error("expected an error adding a vector with a mismatched dimension")
	}
}

func TestIndex_AcceptOrdsFilter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DegreeCap = 24
	cfg.Builder.BeamWidth = 40

	dim := 16
	idx, err := New(cfg, dim)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer idx.Close()

	vectors := generateRandomVectors(1000, dim, 6)
	for _, v := range vectors {
		idx.AddVector(v)
	}
	if err := idx.Build(context.Background()); err != nil {
		t.Fatalf("Build: %v", err)
	}

	accept := NewRoaringBitsFromRange(500, 1000)
	results, err := idx.Search(vectors[0], 10, accept)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, r := range results {
		if r.Ord < 500 {
			t.Errorf("result ordinal %d outside accepted range [500, 1000)", r.Ord)
		}
	}
}

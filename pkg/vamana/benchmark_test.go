package vamana

import (
	"context"
	"testing"
)

func BenchmarkBuild(b *testing.B) {
	dim := 128
	numVectors := 10000
	vectors := generateRandomVectors(numVectors, dim, 42)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		cfg := DefaultConfig()
		idx, err := New(cfg, dim)
		if err != nil {
			b.Fatal(err)
		}
		for _, v := range vectors {
			idx.AddVector(v)
		}
		b.StartTimer()

		if err := idx.Build(context.Background()); err != nil {
			b.Fatal(err)
		}
		b.StopTimer()
		idx.Close()
	}
}

func BenchmarkSearch(b *testing.B) {
	dim := 128
	numVectors := 10000
	k := 10
	vectors := generateRandomVectors(numVectors, dim, 43)
	queries := generateRandomVectors(100, dim, 44)

	cfg := DefaultConfig()
	idx, err := New(cfg, dim)
	if err != nil {
		b.Fatal(err)
	}
	defer idx.Close()
	for _, v := range vectors {
		idx.AddVector(v)
	}
	if err := idx.Build(context.Background()); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		query := queries[i%len(queries)]
		if _, err := idx.Search(query, k, nil); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSearchWithPQ(b *testing.B) {
	dim := 128
	numVectors := 10000
	k := 10
	vectors := generateRandomVectors(numVectors, dim, 45)
	queries := generateRandomVectors(100, dim, 46)

	cfg := DefaultConfig()
	cfg.PQSubspaces = 16
	idx, err := New(cfg, dim)
	if err != nil {
		b.Fatal(err)
	}
	defer idx.Close()
	for _, v := range vectors {
		idx.AddVector(v)
	}
	if err := idx.Build(context.Background()); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		query := queries[i%len(queries)]
		if _, err := idx.Search(query, k, nil); err != nil {
			b.Fatal(err)
		}
	}
}

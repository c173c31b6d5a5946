// Command vamanactl builds and queries a Vamana graph index from a
// flat vector file on disk, without standing up a server.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/therealutkarshpriyadarshi/vamana/internal/vecio"
	"github.com/therealutkarshpriyadarshi/vamana/pkg/observability"
	"github.com/therealutkarshpriyadarshi/vamana/pkg/vamana"
)

func main() {
	root := &cobra.Command{
		Use:   "vamanactl",
		Short: "Build and query Vamana graph indexes from flat vector files",
	}

	root.AddCommand(newBuildCmd())
	root.AddCommand(newSearchCmd())
	root.AddCommand(newStatsCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newBuildCmd() *cobra.Command {
	var (
		vectorsPath string
		graphPath   string
		degreeCap   int
		beamWidth   int
		alpha       float64
		similarity  string
		pqSubspaces int
		pqCenter    bool
		cacheCap    int
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a Vamana graph over a flat vector file and serialize it to disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			vectors, dim, err := vecio.ReadFile(vectorsPath)
			if err != nil {
				return err
			}
			sim, err := parseSimilarity(similarity)
			if err != nil {
				return err
			}

			cfg := vamana.DefaultConfig()
			cfg.DegreeCap = degreeCap
			cfg.Builder.BeamWidth = beamWidth
			cfg.Builder.Alpha = float32(alpha)
			cfg.Similarity = sim
			cfg.PQSubspaces = pqSubspaces
			cfg.PQCenter = pqCenter
			cfg.DiskPath = graphPath
			cfg.CacheCapacity = cacheCap

			idx, err := vamana.New(cfg, dim)
			if err != nil {
				return err
			}
			defer idx.Close()

			for _, v := range vectors {
				if _, err := idx.AddVector(v); err != nil {
					return err
				}
			}

			metrics := observability.NewMetrics()
			start := time.Now()
			if err := idx.Build(context.Background()); err != nil {
				return fmt.Errorf("build: %w", err)
			}
			metrics.RecordBuild(time.Since(start), idx.Size())

			fmt.Printf("built %d vectors (dim=%d, similarity=%s) in %v\n", idx.Size(), dim, sim, time.Since(start))
			fmt.Printf("graph written to %s\n", graphPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&vectorsPath, "vectors", "", "path to the flat vector file (required)")
	cmd.Flags().StringVar(&graphPath, "out", "", "path to write the on-disk graph file (required)")
	cmd.Flags().IntVar(&degreeCap, "degree-cap", 64, "max outbound edges per node")
	cmd.Flags().IntVar(&beamWidth, "beam-width", 75, "candidate list width during construction")
	cmd.Flags().Float64Var(&alpha, "alpha", 1.2, "RobustPrune diversity factor")
	cmd.Flags().StringVar(&similarity, "similarity", "cosine", "euclidean, dot_product, or cosine")
	cmd.Flags().IntVar(&pqSubspaces, "pq-subspaces", 0, "enable product quantization with this many subspaces (0 disables)")
	cmd.Flags().BoolVar(&pqCenter, "pq-center", false, "subtract the global centroid before PQ codebook training")
	cmd.Flags().IntVar(&cacheCap, "cache-capacity", 4096, "disk-tier warm node LRU capacity")
	cmd.MarkFlagRequired("vectors")
	cmd.MarkFlagRequired("out")

	return cmd
}

func newSearchCmd() *cobra.Command {
	var (
		graphPath   string
		queryPath   string
		queryIndex  int
		topK        int
		similarity  string
		cacheCap    int
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Run a top-K query against an on-disk graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			disk, err := vamana.OpenDiskGraph(graphPath, cacheCap)
			if err != nil {
				return err
			}
			defer disk.Close()

			queries, _, err := vecio.ReadFile(queryPath)
			if err != nil {
				return err
			}
			if queryIndex < 0 || queryIndex >= len(queries) {
				return fmt.Errorf("query index %d out of range [0, %d)", queryIndex, len(queries))
			}
			query := queries[queryIndex]

			sim, err := parseSimilarity(similarity)
			if err != nil {
				return err
			}

			metrics := observability.NewMetrics()
			disk.SetCacheObservers(metrics.RecordCacheHit, metrics.RecordCacheMiss)

			searcher := vamana.NewSearcher(disk)
			scoreFn := func(ord vamana.Ordinal) (float32, error) {
				v, err := disk.VectorValue(ord)
				if err != nil {
					return 0, err
				}
				return sim.Compare(query, v), nil
			}

			start := time.Now()
			results, err := searcher.Search(scoreFn, nil, 0, topK, vamana.AcceptAll, nil)
			if err != nil {
				return err
			}
			elapsed := time.Since(start)
			metrics.RecordSearch(elapsed, len(results), searcher.VisitedCount())

			fmt.Printf("%d results in %v (visited %d nodes)\n", len(results), elapsed, searcher.VisitedCount())
			for i, r := range results {
				fmt.Printf("%2d  ordinal=%d  score=%.6f\n", i+1, r.Ord, r.Score)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&graphPath, "graph", "", "path to the on-disk graph file (required)")
	cmd.Flags().StringVar(&queryPath, "queries", "", "path to a flat vector file holding query vectors (required)")
	cmd.Flags().IntVar(&queryIndex, "query-index", 0, "index of the query vector within --queries to run")
	cmd.Flags().IntVar(&topK, "k", 10, "number of results to return")
	cmd.Flags().StringVar(&similarity, "similarity", "cosine", "must match the similarity used at build time")
	cmd.Flags().IntVar(&cacheCap, "cache-capacity", 4096, "disk-tier warm node LRU capacity")
	cmd.MarkFlagRequired("graph")
	cmd.MarkFlagRequired("queries")

	return cmd
}

func newStatsCmd() *cobra.Command {
	var graphPath string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the header fields of an on-disk graph file",
		RunE: func(cmd *cobra.Command, args []string) error {
			disk, err := vamana.OpenDiskGraph(graphPath, 1)
			if err != nil {
				return err
			}
			defer disk.Close()

			entry, hasEntry := disk.EntryPoint()
			fmt.Printf("size:       %d\n", disk.Size())
			fmt.Printf("dimension:  %d\n", disk.Dimension())
			fmt.Printf("max degree: %d\n", disk.MaxDegree())
			if hasEntry {
				fmt.Printf("entry:      %d\n", entry)
			} else {
				fmt.Printf("entry:      (none)\n")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&graphPath, "graph", "", "path to the on-disk graph file (required)")
	cmd.MarkFlagRequired("graph")

	return cmd
}

func parseSimilarity(s string) (vamana.Similarity, error) {
	switch s {
	case "euclidean":
		return vamana.Euclidean, nil
	case "dot_product":
		return vamana.DotProduct, nil
	case "cosine":
		return vamana.Cosine, nil
	default:
		return 0, fmt.Errorf("unknown similarity %q (want euclidean, dot_product, or cosine)", s)
	}
}

package vamana

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/therealutkarshpriyadarshi/vamana/pkg/observability"
)

// BuilderConfig controls the concurrent Vamana construction of
// spec.md §4.3. DegreeCap (M) and the similarity function live on the
// Graph itself; everything here is search-time / scheduling tuning.
type BuilderConfig struct {
	// BeamWidth (L) is the candidate-list width used while searching
	// the in-construction graph for a new node's neighborhood.
	BeamWidth int
	// Alpha (>= 1.0) is the RobustPrune diversity threshold: a
	// candidate is admitted only if alpha*sim(candidate, owner) is
	// strictly greater than its similarity to every already-admitted
	// neighbor.
	Alpha float32
	// Concurrency bounds the number of nodes inserted in parallel.
	// Zero means runtime.GOMAXPROCS(0), per spec.md §5's "insertion
	// runs with O(cores) parallelism".
	Concurrency int
	// EntryRecomputeEvery seeds the lazy entry-point recompute
	// cadence (spec.md §9's Open Question); the threshold doubles
	// after each recompute so the O(N*D) cost is amortized as the
	// graph grows. Zero defaults to 64.
	EntryRecomputeEvery int
	// NeighborOverflow (>= 1.0) is the factor over the degree cap M a
	// node's combined (committed + overflow) edge count may reach
	// before InsertNotDiverse signals
	// the caller to trigger a RobustPrune cleanup on it, per spec.md
	// §4.3's "if j's set exceeds M * neighborOverflow, clean it up".
	// Values below 1.0 default to 1.2.
	NeighborOverflow float32
}

// DefaultBuilderConfig returns the construction parameters this
// package's grounding in pkg/diskann/build.go uses as defaults
// (L=75, alpha=1.2), plus the neighborOverflow factor spec.md §4.3
// requires (1.2, tolerating modest overflow before forcing a cleanup).
func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		BeamWidth:           75,
		Alpha:               1.2,
		Concurrency:         0,
		EntryRecomputeEvery: 64,
		NeighborOverflow:    1.2,
	}
}

// Builder runs the concurrent incremental construction algorithm of
// spec.md §4.3 over a Graph: search the graph-so-far for a beam of
// candidates, prune them to a diverse neighbor set with RobustPrune,
// then install back-edges at each chosen neighbor (cheaply, via the
// overflow path, with a bounded cleanup when a neighbor overflows).
//
// Grounded on pkg/diskann/build.go's buildGraph/greedySearch/
// selectNeighbors/addReverseEdge/pruneNeighbors, replacing the
// teacher's sequential single-pass loop over one shared *Index with
// golang.org/x/sync/errgroup-driven concurrent inserts against the
// lock-per-node Graph/NeighborSet pair, and replacing the teacher's ad
// hoc RNG occlusion test in selectNeighbors with the alpha-threshold
// RobustPrune rule from Semafind/semadb.
type Builder struct {
	graph *Graph
	cfg   BuilderConfig

	recomputeMu           sync.Mutex
	insertsSinceRecompute int
	recomputeThreshold    int

	logger *observability.Logger
}

// NewBuilder creates a Builder over an already-constructed (possibly
// empty) Graph.
func NewBuilder(graph *Graph, cfg BuilderConfig) *Builder {
	if cfg.BeamWidth <= 0 {
		cfg.BeamWidth = DefaultBuilderConfig().BeamWidth
	}
	if cfg.Alpha < 1.0 {
		cfg.Alpha = DefaultBuilderConfig().Alpha
	}
	if cfg.NeighborOverflow < 1.0 {
		cfg.NeighborOverflow = DefaultBuilderConfig().NeighborOverflow
	}
	threshold := cfg.EntryRecomputeEvery
	if threshold <= 0 {
		threshold = DefaultBuilderConfig().EntryRecomputeEvery
	}
	return &Builder{graph: graph, cfg: cfg, recomputeThreshold: threshold, logger: observability.NewDefaultLogger()}
}

// SetLogger overrides the builder's logger (a Builder from NewBuilder
// otherwise logs at INFO to stdout via observability.NewDefaultLogger).
func (b *Builder) SetLogger(logger *observability.Logger) {
	b.logger = logger
}

// BuildAll reserves an ordinal for every vector already present in the
// graph's backing store and inserts all but the first concurrently.
// The store must not change size underneath this call. The first
// reserved ordinal becomes the initial entry point (spec.md §3); it is
// never itself "inserted" since it has no predecessor graph to search.
func (b *Builder) BuildAll(ctx context.Context) error {
	n := b.graph.Store().Size()
	if n == 0 {
		return invalidArgf("cannot build a graph over an empty vector store")
	}

	return b.logger.WithField("nodes", n).LogOperation("vamana.BuildAll", func() error {
		for i := 0; i < n; i++ {
			b.graph.Reserve()
		}
		entry, _ := b.graph.EntryPoint()

		grp, gctx := errgroup.WithContext(ctx)
		limit := b.cfg.Concurrency
		if limit <= 0 {
			limit = runtime.GOMAXPROCS(0)
		}
		grp.SetLimit(limit)

		for ord := Ordinal(0); int(ord) < n; ord++ {
			if ord == entry {
				continue
			}
			ord := ord
			grp.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				return b.InsertNode(ord)
			})
		}
		if err := grp.Wait(); err != nil {
			return err
		}

		// Final flush: force every node's committed set through
		// RobustPrune regardless of its overflow level, so the fully
		// quiesced graph satisfies spec.md's invariant #1 (<= M
		// diversified edges per node) before WriteGraph serializes it.
		// Back-edges that landed in overflow late in construction and
		// never crossed the neighborOverflow trigger would otherwise
		// stay un-diversified (though still reachable via AllOrdinals)
		// in the final graph.
		for ord := Ordinal(0); int(ord) < n; ord++ {
			ns := b.graph.Neighbors(ord)
			ownerScore := func(o Ordinal) float32 { return b.graph.scoreBetween(ord, o) }
			ns.Cleanup(b.cfg.Alpha, ownerScore, b.graph.scoreBetween)
		}
		return nil
	})
}

// InsertNode runs the single-node insertion algorithm of spec.md §4.3
// against an already-reserved ordinal: search the graph-so-far from
// the current entry point, RobustPrune the visited candidates (merged
// with any neighbors the node already has) into its outbound edge set,
// then install a back-edge at each chosen neighbor. Safe to call
// concurrently for distinct ordinals; the graph's per-node locking
// (spec.md §5) makes each call's neighbor-set mutations independent.
func (b *Builder) InsertNode(ord Ordinal) error {
	v, err := b.graph.Store().VectorValue(ord)
	if err != nil {
		return err
	}

	entry, ok := b.graph.EntryPoint()
	if !ok || (entry == ord && b.graph.Size() <= 1) {
		return nil
	}

	searcher := NewSearcher(b.graph)
	scoreFn := func(candidate Ordinal) (float32, error) {
		if candidate == ord {
			return -1, nil // never let the node find itself
		}
		cv, err := b.graph.Store().VectorValue(candidate)
		if err != nil {
			return 0, err
		}
		return b.graph.Similarity().Compare(v, cv), nil
	}
	if _, err := searcher.Search(scoreFn, nil, 0, b.cfg.BeamWidth, AcceptAll, nil); err != nil {
		return err
	}

	// spec.md §4.3 steps 1-2: V is the FULL set of nodes visited during
	// the search (not the bounded top-BeamWidth result set), unioned
	// with the node's current neighbors (every edge it already knows
	// about, diversified or not) before RobustPrune runs.
	visited := searcher.VisitedCandidates()
	ns := b.graph.Neighbors(ord)
	existing := ns.AllEdges()

	candidates := make([]Candidate, 0, len(visited)+len(existing))
	seen := make(map[Ordinal]struct{}, len(visited)+len(existing))
	for _, r := range visited {
		if r.Ord == ord {
			continue
		}
		if _, dup := seen[r.Ord]; dup {
			continue
		}
		seen[r.Ord] = struct{}{}
		candidates = append(candidates, Candidate{Ord: r.Ord, Score: r.Score})
	}
	for _, e := range existing {
		if e.Ord == ord {
			continue
		}
		if _, dup := seen[e.Ord]; dup {
			continue
		}
		seen[e.Ord] = struct{}{}
		candidates = append(candidates, Candidate{Ord: e.Ord, Score: e.Score})
	}

	ns.InsertDiverse(candidates, b.cfg.Alpha, b.graph.scoreBetween)

	for _, e := range ns.Snapshot() {
		neighborSet := b.graph.Neighbors(e.Ord)
		// similarity is symmetric for all three kernels (spec.md §3),
		// so the score this node computed for e.Ord also scores ord
		// from e.Ord's perspective -- no rescoring needed.
		overLimit := neighborSet.InsertNotDiverse(ord, e.Score, b.cfg.NeighborOverflow)
		if overLimit {
			ownerScore := func(o Ordinal) float32 { return b.graph.scoreBetween(e.Ord, o) }
			neighborSet.Cleanup(b.cfg.Alpha, ownerScore, b.graph.scoreBetween)
		}
	}

	b.maybeRecomputeEntryPoint()
	return nil
}

// maybeRecomputeEntryPoint re-selects the entry point after every
// doubling of the insert count since the last recompute, amortizing
// the O(N*D) centroid pass as the graph grows (spec.md §9's answer to
// the entry-point recompute cadence Open Question).
func (b *Builder) maybeRecomputeEntryPoint() {
	b.recomputeMu.Lock()
	b.insertsSinceRecompute++
	trigger := b.insertsSinceRecompute >= b.recomputeThreshold
	if trigger {
		b.insertsSinceRecompute = 0
		b.recomputeThreshold *= 2
	}
	b.recomputeMu.Unlock()

	if trigger {
		b.logger.Debug("recomputing entry point", map[string]interface{}{"threshold": b.recomputeThreshold})
		_ = b.graph.RecomputeEntryPoint()
	}
}

package vamana

import (
	"context"
	"sync"

	"github.com/therealutkarshpriyadarshi/vamana/internal/pq"
)

// Config is the top-level configuration for an Index: the graph shape,
// the builder's scheduling knobs, and the optional compressed
// side-index / disk persistence tiers.
//
// Grounded on pkg/diskann/index.go's IndexConfig, trimmed of the
// teacher's required DataPath (disk persistence is optional here, not
// mandatory) and its fixed BitsPerCode (product quantization in this
// module is always 256 centroids per subspace, see internal/pq).
type Config struct {
	// DegreeCap (M) bounds each node's outbound edge count.
	DegreeCap int
	// Similarity selects the scoring kernel used at both build and
	// search time -- spec.md §3 requires these match; Index enforces
	// this by construction (there is only ever one configured here).
	Similarity Similarity
	Builder    BuilderConfig

	// PQSubspaces, when > 0, enables the product-quantization side
	// index: Build trains a 256-centroid-per-subspace codebook and
	// uses asymmetric distance as an approximate pre-filter, reranked
	// with the exact Similarity function. Zero disables PQ entirely.
	PQSubspaces int
	// PQCenter enables global-centroid subtraction before k-means
	// clustering each subspace (internal/pq.Quantizer.Train's `center`
	// option, per spec.md §4.5). Ignored when PQSubspaces == 0.
	PQCenter bool

	// DiskPath, when non-empty, serializes the built graph to this
	// file and reopens it mmap'd as the search-time graph view,
	// matching spec.md §4.6's disk-resident tier. Empty keeps the
	// in-heap Graph as the only tier.
	DiskPath      string
	CacheCapacity int

	// RerankFactor oversizes the approximate result width (topK *
	// RerankFactor) before trimming to the true top-K when PQ
	// reranking is active. Ignored when PQSubspaces == 0.
	RerankFactor int
}

// DefaultConfig returns reasonable defaults: M=64, cosine similarity,
// PQ disabled, no disk persistence.
func DefaultConfig() Config {
	return Config{
		DegreeCap:     64,
		Similarity:    Cosine,
		Builder:       DefaultBuilderConfig(),
		PQSubspaces:   0,
		CacheCapacity: 4096,
		RerankFactor:  4,
	}
}

// vectorSource is the minimal read surface Index needs for exact
// reranking, satisfied by both the in-memory sliceStore and DiskGraph.
type vectorSource interface {
	VectorValue(ord Ordinal) (Vector, error)
}

// Index ties together the in-heap Graph, its concurrent Builder, the
// optional product-quantization side index, and the optional
// mmap-backed disk tier behind one ergonomic API, mirroring the shape
// of the teacher's New/AddVector/Build/Search/Close -- but built from
// this package's own spec-faithful components rather than the
// teacher's single coarse-locked struct.
type Index struct {
	mu  sync.RWMutex
	cfg Config
	dim int

	store   *sliceStore
	graph   *Graph
	builder *Builder

	quant   *pq.Quantizer
	pqCodes [][]byte

	disk *DiskGraph

	isBuilt bool
}

// New creates an empty, unbuilt index for vectors of the given
// dimension.
func New(cfg Config, dimension int) (*Index, error) {
	if dimension <= 0 {
		return nil, invalidArgf("dimension must be positive, got %d", dimension)
	}
	if cfg.DegreeCap <= 0 {
		cfg.DegreeCap = DefaultConfig().DegreeCap
	}
	store := NewSliceStore(dimension)
	graph := NewGraph(store, cfg.Similarity, cfg.DegreeCap)
	return &Index{
		cfg:     cfg,
		dim:     dimension,
		store:   store,
		graph:   graph,
		builder: NewBuilder(graph, cfg.Builder),
	}, nil
}

// AddVector queues a vector for the next Build call. DiskANN-family
// indexes require batch construction -- once Build has run, AddVector
// returns ErrInvalidArgument, matching spec.md's "construction is
// offline/batch, not a per-insert online operation" scope.
func (idx *Index) AddVector(v Vector) (Ordinal, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.isBuilt {
		return 0, invalidArgf("cannot add vectors to a built index")
	}
	return idx.store.Add(v)
}

// Build trains the optional PQ codebook, runs the concurrent Vamana
// construction over every queued vector, and -- if DiskPath is set --
// serializes the result and reopens it as the mmap-backed search tier.
func (idx *Index) Build(ctx context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.isBuilt {
		return invalidArgf("index already built")
	}
	if idx.store.Size() == 0 {
		return invalidArgf("no vectors queued; call AddVector before Build")
	}

	if idx.cfg.PQSubspaces > 0 {
		quant, err := pq.New(idx.dim, idx.cfg.PQSubspaces, pq.DefaultConfig())
		if err != nil {
			return err
		}
		vectors := make([][]float32, idx.store.Size())
		for i := range vectors {
			v, err := idx.store.VectorValue(Ordinal(i))
			if err != nil {
				return err
			}
			vectors[i] = v
		}
		if err := quant.Train(vectors, idx.cfg.PQCenter); err != nil {
			return err
		}
		codes := make([][]byte, len(vectors))
		for i, v := range vectors {
			c, err := quant.Encode(v)
			if err != nil {
				return err
			}
			codes[i] = c
		}
		idx.quant = quant
		idx.pqCodes = codes
	}

	if err := idx.builder.BuildAll(ctx); err != nil {
		return err
	}

	if idx.cfg.DiskPath != "" {
		if err := WriteGraph(idx.cfg.DiskPath, idx.graph); err != nil {
			return err
		}
		disk, err := OpenDiskGraph(idx.cfg.DiskPath, idx.cfg.CacheCapacity)
		if err != nil {
			return err
		}
		idx.disk = disk
	}

	idx.isBuilt = true
	return nil
}

// Size returns the number of vectors in the index.
func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.store.Size()
}

// Dimension returns the configured vector dimension.
func (idx *Index) Dimension() int { return idx.dim }

// IsBuilt reports whether Build has completed successfully.
func (idx *Index) IsBuilt() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.isBuilt
}

// Search runs a top-K approximate nearest neighbor query against the
// built index, optionally restricted to accept's members. When PQ is
// enabled, the traversal scores against compressed codes and the final
// candidates are reranked with the exact similarity function over raw
// vectors, per spec.md §4.4's approximate+exact split.
func (idx *Index) Search(query Vector, topK int, accept Bits) ([]SearchResult, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if !idx.isBuilt {
		return nil, invalidArgf("index not built")
	}
	if len(query) != idx.dim {
		return nil, invalidArgf("query dimension mismatch: expected %d, got %d", idx.dim, len(query))
	}

	var graphView NeighborLister = idx.graph
	var vectors vectorSource = idx.store
	if idx.disk != nil {
		graphView = idx.disk
		vectors = idx.disk
	}

	searcher := NewSearcher(graphView)

	if idx.quant != nil {
		table, err := idx.quant.ComputeDistanceTable(query)
		if err != nil {
			return nil, err
		}
		scoreFn := func(ord Ordinal) (float32, error) {
			dist, err := table.AsymmetricDistance(idx.pqCodes[ord])
			if err != nil {
				return 0, err
			}
			return 1.0 / (1.0 + dist), nil
		}
		rerank := func(ord Ordinal, _ float32) (float32, error) {
			v, err := vectors.VectorValue(ord)
			if err != nil {
				return 0, err
			}
			return idx.cfg.Similarity.Compare(query, v), nil
		}
		return searcher.Search(scoreFn, rerank, idx.cfg.RerankFactor, topK, accept, nil)
	}

	scoreFn := func(ord Ordinal) (float32, error) {
		v, err := vectors.VectorValue(ord)
		if err != nil {
			return 0, err
		}
		return idx.cfg.Similarity.Compare(query, v), nil
	}
	return searcher.Search(scoreFn, nil, 0, topK, accept, nil)
}

// Close releases the disk-backed tier's mmap and file descriptor, if
// one was opened.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.disk != nil {
		return idx.disk.Close()
	}
	return nil
}

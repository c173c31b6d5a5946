package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the index's full configuration surface: graph
// construction knobs, the optional product-quantization side index,
// and the on-disk/cache tier.
type Config struct {
	Vamana VamanaConfig
	PQ     PQConfig
	Cache  CacheConfig
}

// VamanaConfig holds Vamana graph construction and search parameters.
type VamanaConfig struct {
	Dimensions int    // vector dimension (required, no default)
	DegreeCap  int    // M: max outbound edges per node (default: 64)
	BeamWidth  int    // L: candidate list width during construction and search (default: 75)
	Alpha      float64 // RobustPrune diversity factor (default: 1.2)
	Similarity string // "euclidean", "dot_product", or "cosine" (default: "cosine")
	Concurrency int   // worker count for concurrent build; 0 means GOMAXPROCS (default: 0)
}

// PQConfig holds product-quantization side-index parameters.
type PQConfig struct {
	Enabled   bool // enable the compressed approximate pre-filter
	Subspaces int  // number of codebook subspaces; dimension must divide evenly (default: 8)
	RerankFactor int // oversample factor before exact rerank (default: 4)
	Center    bool // subtract the global centroid before k-means training (default: false)
}

// CacheConfig holds the disk-backed graph's warm-node LRU.
type CacheConfig struct {
	Capacity int    // max decoded (vector, neighbors) pairs held in memory (default: 4096)
	DiskPath string // on-disk graph file; empty keeps the graph in-heap only
}

// Default returns the default configuration. Dimensions is left at 0
// and must be set explicitly -- there is no sane default vector width.
func Default() *Config {
	return &Config{
		Vamana: VamanaConfig{
			DegreeCap:   64,
			BeamWidth:   75,
			Alpha:       1.2,
			Similarity:  "cosine",
			Concurrency: 0,
		},
		PQ: PQConfig{
			Enabled:      false,
			Subspaces:    8,
			RerankFactor: 4,
			Center:       false,
		},
		Cache: CacheConfig{
			Capacity: 4096,
		},
	}
}

// LoadFromEnv loads configuration from environment variables, falling
// back to Default for anything unset or unparsable.
func LoadFromEnv() *Config {
	cfg := Default()

	if dims := os.Getenv("VAMANA_DIMENSIONS"); dims != "" {
		if d, err := strconv.Atoi(dims); err == nil {
			cfg.Vamana.Dimensions = d
		}
	}
	if degree := os.Getenv("VAMANA_DEGREE_CAP"); degree != "" {
		if d, err := strconv.Atoi(degree); err == nil {
			cfg.Vamana.DegreeCap = d
		}
	}
	if beam := os.Getenv("VAMANA_BEAM_WIDTH"); beam != "" {
		if b, err := strconv.Atoi(beam); err == nil {
			cfg.Vamana.BeamWidth = b
		}
	}
	if alpha := os.Getenv("VAMANA_ALPHA"); alpha != "" {
		if a, err := strconv.ParseFloat(alpha, 64); err == nil {
			cfg.Vamana.Alpha = a
		}
	}
	if sim := os.Getenv("VAMANA_SIMILARITY"); sim != "" {
		cfg.Vamana.Similarity = sim
	}
	if conc := os.Getenv("VAMANA_CONCURRENCY"); conc != "" {
		if c, err := strconv.Atoi(conc); err == nil {
			cfg.Vamana.Concurrency = c
		}
	}

	if pqEnabled := os.Getenv("VAMANA_PQ_ENABLED"); pqEnabled == "true" {
		cfg.PQ.Enabled = true
	}
	if subspaces := os.Getenv("VAMANA_PQ_SUBSPACES"); subspaces != "" {
		if s, err := strconv.Atoi(subspaces); err == nil {
			cfg.PQ.Subspaces = s
		}
	}
	if rerank := os.Getenv("VAMANA_PQ_RERANK_FACTOR"); rerank != "" {
		if r, err := strconv.Atoi(rerank); err == nil {
			cfg.PQ.RerankFactor = r
		}
	}
	if pqCenter := os.Getenv("VAMANA_PQ_CENTER"); pqCenter == "true" {
		cfg.PQ.Center = true
	}

	if capacity := os.Getenv("VAMANA_CACHE_CAPACITY"); capacity != "" {
		if c, err := strconv.Atoi(capacity); err == nil {
			cfg.Cache.Capacity = c
		}
	}
	if diskPath := os.Getenv("VAMANA_DISK_PATH"); diskPath != "" {
		cfg.Cache.DiskPath = diskPath
	}

	return cfg
}

// Validate checks that the configuration describes a buildable index.
func (c *Config) Validate() error {
	if c.Vamana.Dimensions < 1 {
		return fmt.Errorf("invalid dimensions: %d (must be > 0)", c.Vamana.Dimensions)
	}
	if c.Vamana.DegreeCap < 2 {
		return fmt.Errorf("invalid degree cap: %d (must be >= 2)", c.Vamana.DegreeCap)
	}
	if c.Vamana.BeamWidth < 1 {
		return fmt.Errorf("invalid beam width: %d (must be > 0)", c.Vamana.BeamWidth)
	}
	if c.Vamana.Alpha < 1.0 {
		return fmt.Errorf("invalid alpha: %f (must be >= 1.0)", c.Vamana.Alpha)
	}
	switch c.Vamana.Similarity {
	case "euclidean", "dot_product", "cosine":
	default:
		return fmt.Errorf("invalid similarity: %q (must be euclidean, dot_product, or cosine)", c.Vamana.Similarity)
	}

	if c.PQ.Enabled {
		if c.PQ.Subspaces < 1 {
			return fmt.Errorf("invalid PQ subspaces: %d (must be > 0)", c.PQ.Subspaces)
		}
		if c.Vamana.Dimensions > 0 && c.Vamana.Dimensions%c.PQ.Subspaces != 0 {
			return fmt.Errorf("dimensions %d not divisible by PQ subspaces %d", c.Vamana.Dimensions, c.PQ.Subspaces)
		}
		if c.PQ.RerankFactor < 1 {
			return fmt.Errorf("invalid PQ rerank factor: %d (must be > 0)", c.PQ.RerankFactor)
		}
	}

	if c.Cache.Capacity < 1 {
		return fmt.Errorf("invalid cache capacity: %d (must be > 0)", c.Cache.Capacity)
	}

	return nil
}

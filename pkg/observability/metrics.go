package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics the index exposes: build
// progress, search latency and recall, the disk tier's warm-node
// cache, and PQ training.
type Metrics struct {
	// Build metrics
	BuildDuration   prometheus.Histogram
	NodesInserted   prometheus.Counter
	EntryRecomputes prometheus.Counter

	// Graph metrics
	GraphSize       prometheus.Gauge
	GraphMeanDegree prometheus.Gauge

	// Search metrics
	SearchLatency    prometheus.Histogram
	SearchRecall     prometheus.Histogram
	SearchResultSize prometheus.Histogram
	NodesVisited     prometheus.Histogram

	// Disk-tier cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
	CacheSize   prometheus.Gauge

	// Product-quantization metrics
	PQTrainingDuration prometheus.Histogram
	PQCodebookSize     prometheus.Gauge
}

// NewMetrics creates and registers the package's Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		BuildDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vamana_build_duration_seconds",
				Help:    "Time to build the graph over one corpus",
				Buckets: []float64{.1, .5, 1, 5, 10, 30, 60, 300, 600},
			},
		),
		NodesInserted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "vamana_nodes_inserted_total",
				Help: "Total number of nodes inserted into the graph",
			},
		),
		EntryRecomputes: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "vamana_entry_recomputes_total",
				Help: "Total number of entry point recomputations during build",
			},
		),

		GraphSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "vamana_graph_size",
				Help: "Number of nodes currently in the graph",
			},
		),
		GraphMeanDegree: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "vamana_graph_mean_degree",
				Help: "Mean out-degree across all nodes in the graph",
			},
		),

		SearchLatency: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vamana_search_latency_seconds",
				Help:    "Search latency in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5},
			},
		),
		SearchRecall: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vamana_search_recall",
				Help:    "Search recall against brute-force ground truth (0-1)",
				Buckets: []float64{.8, .85, .9, .92, .94, .95, .96, .97, .98, .99, 1.0},
			},
		),
		SearchResultSize: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vamana_search_result_size",
				Help:    "Number of results returned by a search",
				Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500},
			},
		),
		NodesVisited: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vamana_search_nodes_visited",
				Help:    "Number of nodes visited by the beam search per query",
				Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500},
			},
		),

		CacheHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "vamana_cache_hits_total",
				Help: "Total number of disk-tier LRU cache hits",
			},
		),
		CacheMisses: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "vamana_cache_misses_total",
				Help: "Total number of disk-tier LRU cache misses",
			},
		),
		CacheSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "vamana_cache_size",
				Help: "Current number of entries in the disk-tier LRU cache",
			},
		),

		PQTrainingDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vamana_pq_training_duration_seconds",
				Help:    "Time to train the product-quantization codebooks",
				Buckets: []float64{.1, .5, 1, 5, 10, 30, 60},
			},
		),
		PQCodebookSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "vamana_pq_codebook_size",
				Help: "Number of subspaces in the trained PQ codebook",
			},
		),
	}
}

// RecordBuild records one completed Build call's duration and inserted
// node count.
func (m *Metrics) RecordBuild(duration time.Duration, nodes int) {
	m.BuildDuration.Observe(duration.Seconds())
	m.NodesInserted.Add(float64(nodes))
}

// RecordEntryRecompute records one entry point recomputation.
func (m *Metrics) RecordEntryRecompute() {
	m.EntryRecomputes.Inc()
}

// UpdateGraphSize updates the current graph size gauge.
func (m *Metrics) UpdateGraphSize(size int) {
	m.GraphSize.Set(float64(size))
}

// UpdateGraphMeanDegree updates the mean out-degree gauge.
func (m *Metrics) UpdateGraphMeanDegree(mean float64) {
	m.GraphMeanDegree.Set(mean)
}

// RecordSearch records one Search call's latency, result size, and
// the number of nodes the beam search visited.
func (m *Metrics) RecordSearch(duration time.Duration, resultSize, nodesVisited int) {
	m.SearchLatency.Observe(duration.Seconds())
	m.SearchResultSize.Observe(float64(resultSize))
	m.NodesVisited.Observe(float64(nodesVisited))
}

// RecordRecall records one query's recall against ground truth.
func (m *Metrics) RecordRecall(recall float64) {
	m.SearchRecall.Observe(recall)
}

// RecordCacheHit records a disk-tier LRU cache hit.
func (m *Metrics) RecordCacheHit() {
	m.CacheHits.Inc()
}

// RecordCacheMiss records a disk-tier LRU cache miss.
func (m *Metrics) RecordCacheMiss() {
	m.CacheMisses.Inc()
}

// UpdateCacheSize updates the disk-tier LRU cache size gauge.
func (m *Metrics) UpdateCacheSize(size int) {
	m.CacheSize.Set(float64(size))
}

// RecordPQTraining records one PQ codebook training run.
func (m *Metrics) RecordPQTraining(duration time.Duration, subspaces int) {
	m.PQTrainingDuration.Observe(duration.Seconds())
	m.PQCodebookSize.Set(float64(subspaces))
}

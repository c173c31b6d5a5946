package pq

import (
	"fmt"
	"math/rand"
)

// Centroids is the fixed codebook size per subspace: one byte encodes
// exactly 256 possible centroids. The on-disk PQ code format this
// module targets has no room for a configurable code width, unlike the
// teacher's bitsPerCode (6/7/8) -- see internal/quantization/product.go.
const Centroids = 256

// Config tunes the k-means training run. MaxIterations and
// ConvergenceEpsilon bound the per-subspace clustering cost; Seed
// makes training reproducible across runs of the same corpus.
type Config struct {
	MaxIterations      int
	ConvergenceEpsilon float32
	Seed               int64
}

// DefaultConfig returns the training defaults: 25 k-means iterations
// (or earlier convergence) and a reproducible seed.
func DefaultConfig() Config {
	return Config{MaxIterations: 25, ConvergenceEpsilon: 1e-6, Seed: 1}
}

// Quantizer is a trained product-quantization codec: dimension D is
// split into `subspaces` equal chunks, each independently clustered
// into Centroids=256 codes. Vectors are trained and assigned under
// squared Euclidean distance regardless of the similarity function
// configured at the graph level -- PQ here is always an approximate
// pre-filter, and the final top-K is reranked with the graph's exact
// similarity function (vamana.Reranker), so the codec's internal
// metric does not need to match it.
//
// Grounded on internal/quantization/product.go's ProductQuantizer,
// fixed to 256 centroids per subspace and with ComputeDistanceTable's
// interface{} return replaced by the concrete DistanceTable type.
type Quantizer struct {
	subspaces int
	subDim    int
	codebooks [][][]float32 // codebooks[subspace][code][dim]
	cfg       Config

	centered bool
	centroid []float32 // full-dimension global mean, only set when centered
}

// New creates an untrained quantizer for the given vector dimension,
// split into the requested number of equal subspaces. dim must be
// evenly divisible by subspaces.
func New(dim, subspaces int, cfg Config) (*Quantizer, error) {
	if subspaces <= 0 || dim <= 0 {
		return nil, fmt.Errorf("pq: dimension and subspace count must be positive")
	}
	if dim%subspaces != 0 {
		return nil, fmt.Errorf("pq: dimension %d not divisible by %d subspaces", dim, subspaces)
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultConfig().MaxIterations
	}
	if cfg.ConvergenceEpsilon <= 0 {
		cfg.ConvergenceEpsilon = DefaultConfig().ConvergenceEpsilon
	}
	return &Quantizer{subspaces: subspaces, subDim: dim / subspaces, cfg: cfg}, nil
}

// Subspaces, SubspaceDim report the codec's layout.
func (q *Quantizer) Subspaces() int   { return q.subspaces }
func (q *Quantizer) SubspaceDim() int { return q.subDim }

// Trained reports whether Train has produced codebooks yet.
func (q *Quantizer) Trained() bool { return q.codebooks != nil }

// Train fits one 256-centroid codebook per subspace over the given
// corpus. Requires at least 256 training vectors (k-means++ cannot
// seed more centroids than points).
//
// When center is true, the global centroid (mean) of the corpus is
// subtracted from every vector before clustering, per spec.md §4.5's
// optional `Train(vectors, S, center?)` parameter: this shrinks the
// variance each subspace's k-means has to cluster when the corpus sits
// far from the origin, at the cost of carrying the centroid alongside
// the codebooks. Encode/Decode/ComputeDistanceTable apply the same
// subtract/add-back transparently once trained this way.
func (q *Quantizer) Train(vectors [][]float32, center bool) error {
	if len(vectors) < Centroids {
		return fmt.Errorf("pq: need at least %d training vectors, got %d", Centroids, len(vectors))
	}
	dim := q.subspaces * q.subDim

	working := vectors
	q.centered = center
	q.centroid = nil
	if center {
		mean := make([]float32, dim)
		for _, v := range vectors {
			for d := 0; d < dim; d++ {
				mean[d] += v[d]
			}
		}
		inv := 1.0 / float32(len(vectors))
		for d := range mean {
			mean[d] *= inv
		}
		q.centroid = mean

		centered := make([][]float32, len(vectors))
		for i, v := range vectors {
			cv := make([]float32, dim)
			for d := 0; d < dim; d++ {
				cv[d] = v[d] - mean[d]
			}
			centered[i] = cv
		}
		working = centered
	}

	rng := rand.New(rand.NewSource(q.cfg.Seed))
	q.codebooks = make([][][]float32, q.subspaces)

	for sv := 0; sv < q.subspaces; sv++ {
		start := sv * q.subDim
		end := start + q.subDim
		subvectors := make([][]float32, len(working))
		for i, v := range working {
			subvectors[i] = v[start:end]
		}
		centroids, err := kMeansPlusPlus(subvectors, Centroids, q.cfg.MaxIterations, q.cfg.ConvergenceEpsilon, rng)
		if err != nil {
			return fmt.Errorf("pq: training subspace %d: %w", sv, err)
		}
		q.codebooks[sv] = centroids
	}
	return nil
}

// center subtracts the trained global centroid from v, if centering
// is enabled; otherwise it returns v unchanged.
func (q *Quantizer) center(v []float32) []float32 {
	if !q.centered {
		return v
	}
	out := make([]float32, len(v))
	for d := range v {
		out[d] = v[d] - q.centroid[d]
	}
	return out
}

// uncenter adds the trained global centroid back onto v in place, if
// centering is enabled.
func (q *Quantizer) uncenter(v []float32) {
	if !q.centered {
		return
	}
	for d := range v {
		v[d] += q.centroid[d]
	}
}

// Encode assigns v's nearest centroid in each subspace, producing one
// code byte per subspace.
func (q *Quantizer) Encode(v []float32) ([]byte, error) {
	if !q.Trained() {
		return nil, fmt.Errorf("pq: quantizer not trained")
	}
	v = q.center(v)
	codes := make([]byte, q.subspaces)
	for sv := 0; sv < q.subspaces; sv++ {
		start := sv * q.subDim
		sub := v[start : start+q.subDim]
		best := float32(-1)
		bestCode := 0
		for code, centroid := range q.codebooks[sv] {
			d := squaredEuclidean(sub, centroid)
			if best < 0 || d < best {
				best = d
				bestCode = code
			}
		}
		codes[sv] = byte(bestCode)
	}
	return codes, nil
}

// Decode reconstructs an approximate vector from its codes by
// concatenating each subspace's assigned centroid.
func (q *Quantizer) Decode(codes []byte) ([]float32, error) {
	if len(codes) != q.subspaces {
		return nil, fmt.Errorf("pq: expected %d codes, got %d", q.subspaces, len(codes))
	}
	out := make([]float32, q.subspaces*q.subDim)
	for sv, code := range codes {
		if int(code) >= len(q.codebooks[sv]) {
			return nil, fmt.Errorf("pq: code %d out of range for subspace %d", code, sv)
		}
		copy(out[sv*q.subDim:(sv+1)*q.subDim], q.codebooks[sv][code])
	}
	q.uncenter(out)
	return out, nil
}

// DistanceTable is a query's precomputed per-subspace, per-code
// squared-Euclidean distance: AsymmetricDistance to any encoded vector
// is then a table lookup and sum, O(subspaces) instead of O(dim).
//
// Replaces the teacher's ComputeDistanceTable interface{} return
// (asserted back to [][]float32 at every call site) with a named,
// statically typed table.
type DistanceTable struct {
	subspaces int
	table     [][]float32 // table[subspace][code]
}

// ComputeDistanceTable precomputes query's distance to every centroid
// in every subspace codebook.
func (q *Quantizer) ComputeDistanceTable(query []float32) (*DistanceTable, error) {
	if !q.Trained() {
		return nil, fmt.Errorf("pq: quantizer not trained")
	}
	if len(query) != q.subspaces*q.subDim {
		return nil, fmt.Errorf("pq: query dimension mismatch: expected %d, got %d", q.subspaces*q.subDim, len(query))
	}
	query = q.center(query)
	t := &DistanceTable{subspaces: q.subspaces, table: make([][]float32, q.subspaces)}
	for sv := 0; sv < q.subspaces; sv++ {
		start := sv * q.subDim
		sub := query[start : start+q.subDim]
		row := make([]float32, len(q.codebooks[sv]))
		for code, centroid := range q.codebooks[sv] {
			row[code] = squaredEuclidean(sub, centroid)
		}
		t.table[sv] = row
	}
	return t, nil
}

// AsymmetricDistance returns the squared-Euclidean distance between
// the table's query and one encoded vector: a sum of `subspaces` table
// lookups, no decoding required.
func (t *DistanceTable) AsymmetricDistance(codes []byte) (float32, error) {
	if len(codes) != t.subspaces {
		return 0, fmt.Errorf("pq: expected %d codes, got %d", t.subspaces, len(codes))
	}
	var sum float32
	for sv, code := range codes {
		if int(code) >= len(t.table[sv]) {
			return 0, fmt.Errorf("pq: code %d out of range for subspace %d", code, sv)
		}
		sum += t.table[sv][code]
	}
	return sum, nil
}

// BulkShuffleSimilarity scores one query's distance table against an
// entire packed array of PQ codes (row-major, `subspaces` bytes per
// row), writing ascending-distance-is-worse similarity scores
// (1/(1+dist), matching vamana.Similarity's Euclidean convention) into
// out. This is the bulk-codes-scoring kernel spec.md treats as a
// black box: a production build would replace this loop with a
// SIMD/AVX2 shuffle-table lookup over 16 codes at a time, but the
// contract -- one similarity score per row, in row order -- is fully
// satisfied by this reference implementation.
func BulkShuffleSimilarity(t *DistanceTable, packedCodes []byte, out []float32) ([]float32, error) {
	if t.subspaces == 0 {
		return nil, fmt.Errorf("pq: empty distance table")
	}
	n := len(packedCodes) / t.subspaces
	if cap(out) < n {
		out = make([]float32, n)
	}
	out = out[:n]
	for i := 0; i < n; i++ {
		row := packedCodes[i*t.subspaces : (i+1)*t.subspaces]
		var sum float32
		for sv, code := range row {
			if int(code) >= len(t.table[sv]) {
				return nil, fmt.Errorf("pq: code %d out of range for subspace %d", code, sv)
			}
			sum += t.table[sv][code]
		}
		out[i] = 1.0 / (1.0 + sum)
	}
	return out, nil
}

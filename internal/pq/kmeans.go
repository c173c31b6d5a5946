// Package pq implements the product-quantization compressed side-index:
// per-subspace k-means codebooks, asymmetric distance computation, and
// the bulk scoring kernel used to rank an entire PQ-encoded corpus
// against one query without decoding any vector.
//
// Grounded on internal/quantization/product.go and utils.go (the
// ProductQuantizer / KMeansPlusPlus pair), narrowed to the spec's fixed
// 256-centroid-per-subspace format (dropping the teacher's configurable
// bitsPerCode, since the on-disk PQ code format this module targets is
// always one byte per subspace) and reworked from the teacher's
// switch-on-DistanceMetric training loop to a single fixed training
// metric (squared Euclidean -- see Quantizer's doc comment).
package pq

import (
	"fmt"
	"math"
	"math/rand"
)

// squaredEuclidean is the training and assignment metric for k-means:
// centroids are always fit under L2, independent of the similarity
// function configured at the graph level (see Quantizer).
func squaredEuclidean(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// kMeansPlusPlus runs k-means with k-means++ seeding over vectors,
// producing exactly k centroids. Bounded to maxIter iterations or
// earlier convergence (every centroid moves less than epsilon).
//
// Grounded on internal/quantization/utils.go's KMeansPlusPlus,
// stripped of its DistanceMetric switch (always squared Euclidean
// here) and its Verbose logging (neither this function nor Train
// logs anything).
func kMeansPlusPlus(vectors [][]float32, k int, maxIter int, epsilon float32, rng *rand.Rand) ([][]float32, error) {
	if len(vectors) < k {
		return nil, fmt.Errorf("pq: not enough training vectors (%d) for %d centroids", len(vectors), k)
	}
	dim := len(vectors[0])
	centroids := make([][]float32, k)

	first := rng.Intn(len(vectors))
	centroids[0] = append([]float32(nil), vectors[first]...)

	for c := 1; c < k; c++ {
		distances := make([]float32, len(vectors))
		var total float32
		for i, v := range vectors {
			best := float32(math.MaxFloat32)
			for j := 0; j < c; j++ {
				if d := squaredEuclidean(v, centroids[j]); d < best {
					best = d
				}
			}
			distances[i] = best
			total += best
		}
		if total > 0 {
			target := rng.Float32() * total
			var cumulative float32
			for i, d := range distances {
				cumulative += d
				if cumulative >= target {
					centroids[c] = append([]float32(nil), vectors[i]...)
					break
				}
			}
			if centroids[c] == nil {
				centroids[c] = append([]float32(nil), vectors[len(vectors)-1]...)
			}
		} else {
			centroids[c] = append([]float32(nil), vectors[rng.Intn(len(vectors))]...)
		}
	}

	assignment := make([]int, len(vectors))
	for iter := 0; iter < maxIter; iter++ {
		clusters := make([][][]float32, k)
		for i, v := range vectors {
			best := float32(math.MaxFloat32)
			bestC := 0
			for c, centroid := range centroids {
				if d := squaredEuclidean(v, centroid); d < best {
					best = d
					bestC = c
				}
			}
			assignment[i] = bestC
			clusters[bestC] = append(clusters[bestC], v)
		}

		converged := true
		for c := range centroids {
			if len(clusters[c]) == 0 {
				continue // keep the stranded centroid; a later iteration may repopulate it
			}
			next := make([]float32, dim)
			for _, v := range clusters[c] {
				for d := 0; d < dim; d++ {
					next[d] += v[d]
				}
			}
			for d := 0; d < dim; d++ {
				next[d] /= float32(len(clusters[c]))
			}
			if squaredEuclidean(centroids[c], next) > epsilon {
				converged = false
			}
			centroids[c] = next
		}
		if converged {
			break
		}
	}

	return centroids, nil
}

package analysis

import (
	"math"
	"math/rand"
)

// Clustering must be reproducible: the same embeddings always yield the same
// assignments, so repeated detection over a frozen batch is bit-identical.
const (
	kmeansSeed          = 42
	kmeansMaxIterations = 100
)

// kmeansCluster assigns each point to one of k clusters using Lloyd's
// algorithm with k-means++ style seeding from a fixed random source.
// Ties in distance resolve to the lowest cluster index.
func kmeansCluster(points [][]float64, k int) []int {
	n := len(points)
	if n == 0 || k <= 0 {
		return nil
	}
	if k > n {
		k = n
	}

	rng := rand.New(rand.NewSource(kmeansSeed))
	centroids := seedCentroids(points, k, rng)

	assignments := make([]int, n)
	for iter := 0; iter < kmeansMaxIterations; iter++ {
		changed := false
		for i, p := range points {
			best := nearestCentroid(p, centroids)
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}

		if iter > 0 && !changed {
			break
		}

		recomputeCentroids(points, assignments, centroids)
	}

	return assignments
}

// seedCentroids picks k initial centroids, weighting later picks by squared
// distance to the nearest centroid chosen so far.
func seedCentroids(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(points)
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, copyVector(points[rng.Intn(n)]))

	distances := make([]float64, n)
	for len(centroids) < k {
		total := 0.0
		for i, p := range points {
			d := squaredDistance(p, centroids[len(centroids)-1])
			if len(centroids) == 1 || d < distances[i] {
				distances[i] = d
			}
			total += distances[i]
		}

		if total == 0 {
			// All remaining points coincide with a centroid; pick round-robin.
			centroids = append(centroids, copyVector(points[len(centroids)%n]))
			continue
		}

		target := rng.Float64() * total
		cumulative := 0.0
		chosen := n - 1
		for i := range points {
			cumulative += distances[i]
			if cumulative >= target {
				chosen = i
				break
			}
		}
		centroids = append(centroids, copyVector(points[chosen]))
	}

	return centroids
}

func nearestCentroid(p []float64, centroids [][]float64) int {
	best := 0
	bestDist := math.MaxFloat64
	for c, centroid := range centroids {
		d := squaredDistance(p, centroid)
		if d < bestDist {
			bestDist = d
			best = c
		}
	}
	return best
}

func recomputeCentroids(points [][]float64, assignments []int, centroids [][]float64) {
	dim := len(points[0])
	counts := make([]int, len(centroids))
	sums := make([][]float64, len(centroids))
	for c := range centroids {
		sums[c] = make([]float64, dim)
	}

	for i, p := range points {
		c := assignments[i]
		counts[c]++
		for d := 0; d < dim; d++ {
			sums[c][d] += p[d]
		}
	}

	for c := range centroids {
		if counts[c] == 0 {
			// Empty cluster: re-seat it on the point farthest from its
			// current centroid to keep k stable.
			far := farthestPoint(points, centroids[c])
			copy(centroids[c], points[far])
			continue
		}
		for d := 0; d < dim; d++ {
			centroids[c][d] = sums[c][d] / float64(counts[c])
		}
	}
}

func farthestPoint(points [][]float64, centroid []float64) int {
	best := 0
	bestDist := -1.0
	for i, p := range points {
		if d := squaredDistance(p, centroid); d > bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

func squaredDistance(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return sum
}

func copyVector(v []float64) []float64 {
	cp := make([]float64, len(v))
	copy(cp, v)
	return cp
}

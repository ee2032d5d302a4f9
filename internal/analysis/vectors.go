package analysis

import "math"

// cosineSimilarity computes the cosine of the angle between two vectors.
// A zero vector has no direction, so any pair involving one scores 0.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// meanPairwiseSimilarity averages cosine similarity over the upper triangle
// of the pairwise matrix, excluding self-pairs.
func meanPairwiseSimilarity(embeddings [][]float64) float64 {
	n := len(embeddings)

	total := 0.0
	count := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			total += cosineSimilarity(embeddings[i], embeddings[j])
			count++
		}
	}

	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// clusterSimilarities returns the mean pairwise similarity within clusters
// and between clusters, given per-item cluster assignments.
func clusterSimilarities(embeddings [][]float64, assignments []int) (within, between float64) {
	var withinSum, betweenSum float64
	withinCount, betweenCount := 0, 0

	n := len(embeddings)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sim := cosineSimilarity(embeddings[i], embeddings[j])
			if assignments[i] == assignments[j] {
				withinSum += sim
				withinCount++
			} else {
				betweenSum += sim
				betweenCount++
			}
		}
	}

	if withinCount > 0 {
		within = withinSum / float64(withinCount)
	}
	if betweenCount > 0 {
		between = betweenSum / float64(betweenCount)
	}
	return within, between
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

package analysis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perspectra/bubblescope/internal/errors"
)

func TestNewEchoChamberDetectorRequiresEmbedder(t *testing.T) {
	_, err := NewEchoChamberDetector(nil)
	require.Error(t, err)
	assert.True(t, errors.IsCapabilityUnavailable(err))
}

func TestDetectInsufficientContent(t *testing.T) {
	detector, err := NewEchoChamberDetector(hashEmbedder())
	require.NoError(t, err)

	result, err := detector.Detect(context.Background(), []string{"one", "two", "three", "four"}, nil, nil)
	require.NoError(t, err)

	assert.False(t, result.IsEchoChamber)
	assert.Equal(t, 0.0, result.Confidence)
	assert.Equal(t, 0.0, result.EchoChamberScore)
	assert.Equal(t, 0, result.NumClusters)
	assert.Equal(t, SeverityLow, result.Severity)
	assert.Equal(t, descriptionInsufficient, result.Description)
}

func TestDetectStanceValidation(t *testing.T) {
	detector, err := NewEchoChamberDetector(hashEmbedder())
	require.NoError(t, err)

	texts := []string{"a", "b", "c", "d", "e"}

	_, err = detector.Detect(context.Background(), texts, []string{"favor", "favor"}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidInput(err))

	_, err = detector.Detect(context.Background(), texts, []string{"favor", "favor", "favor", "favor", "supportive"}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidInput(err))
}

func TestDetectDeterministic(t *testing.T) {
	detector, err := NewEchoChamberDetector(hashEmbedder())
	require.NoError(t, err)

	texts := []string{
		"immigration policy is ruining the economy",
		"the new immigration rules are long overdue",
		"another take on why immigration must stop",
		"a calm look at border statistics this year",
		"why the latest immigration order goes too far",
		"sports roundup from the weekend games",
		"immigration numbers hit a decade high",
		"editorial: close the border now",
		"interview with a migration researcher",
		"ten reasons the immigration debate is stuck",
	}
	stances := []string{
		"against", "favor", "against", "neutral", "against",
		"neutral", "neutral", "against", "neutral", "neutral",
	}

	first, err := detector.Detect(context.Background(), texts, stances, nil)
	require.NoError(t, err)

	second, err := detector.Detect(context.Background(), texts, stances, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	assert.Equal(t, 2, first.NumClusters) // 10 texts -> min(5, max(2, 1))
	assert.GreaterOrEqual(t, first.EchoChamberScore, 0.0)
	assert.LessOrEqual(t, first.EchoChamberScore, 1.0)
	assert.GreaterOrEqual(t, first.DominantClusterSize, 0.5)
	assert.LessOrEqual(t, first.DominantClusterSize, 1.0)
}

func TestDetectIdenticalContentIsHomogeneous(t *testing.T) {
	detector, err := NewEchoChamberDetector(identicalEmbedder())
	require.NoError(t, err)

	texts := make([]string, 12)
	for i := range texts {
		texts[i] = "the same talking point repeated again"
	}

	result, err := detector.Detect(context.Background(), texts, nil, nil)
	require.NoError(t, err)

	// Identical embeddings: full pairwise similarity, everything lands in a
	// single cluster, and the unlabeled estimate falls back to 0.5 because
	// between-cluster similarity is 0.
	assert.InDelta(t, 1.0, result.ContentSimilarity, 1e-9)
	assert.Equal(t, 1.0, result.DominantClusterSize)
	assert.Equal(t, unknownClusteringEstimate, result.IdeologicalClustering)
	assert.Equal(t, unknownClusteringEstimate, result.ViewpointSuppression)

	// 0.3*1 + 0.3*0.5 + 0.2*0.5 + 0.2*1 = 0.75
	assert.InDelta(t, 0.75, result.EchoChamberScore, 1e-9)
	assert.True(t, result.IsEchoChamber)
	assert.InDelta(t, 0.95, result.Confidence, 1e-9)
	assert.Equal(t, SeverityHigh, result.Severity)
	assert.Equal(t, descriptionHigh, result.Description)
}

func TestCompositeScoreCalibration(t *testing.T) {
	// Fixed component inputs from the calibration record.
	score := 0.9*weightSimilarity + 0.9*weightIdeologicalCluster +
		0.5*weightViewpointSuppressed + 0.5*weightDominantCluster
	assert.InDelta(t, 0.74, score, 1e-9)
	assert.Equal(t, SeverityHigh, severityFor(score))
}

func TestLabeledClusterHomogeneity(t *testing.T) {
	tests := []struct {
		name        string
		assignments []int
		stances     []string
		expected    float64
	}{
		{
			name:        "perfectly segregated clusters",
			assignments: []int{0, 0, 0, 1, 1, 1},
			stances:     []string{"favor", "favor", "favor", "against", "against", "against"},
			expected:    1.0,
		},
		{
			name:        "evenly mixed clusters",
			assignments: []int{0, 0, 1, 1},
			stances:     []string{"favor", "against", "favor", "against"},
			expected:    0.5,
		},
		{
			name:        "partially mixed",
			assignments: []int{0, 0, 0, 1, 1, 1},
			stances:     []string{"favor", "favor", "against", "neutral", "neutral", "neutral"},
			expected:    (2.0/3.0 + 1.0) / 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, labeledClusterHomogeneity(tt.assignments, tt.stances), 1e-9)
		})
	}
}

func TestViewpointSuppression(t *testing.T) {
	tests := []struct {
		name     string
		stances  []string
		expected float64
	}{
		{
			name:     "no stances reports midpoint",
			stances:  nil,
			expected: 0.5,
		},
		{
			name:     "all favor deviates strongly",
			stances:  []string{"favor", "favor", "favor", "favor"},
			expected: (0.67 + 0.33 + 0.34) / 2,
		},
		{
			name:     "near balanced barely deviates",
			stances:  []string{"favor", "against", "neutral"},
			expected: (1.0/3 - 0.33 + (1.0/3 - 0.33) + (0.34 - 1.0/3)) / 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, viewpointSuppression(tt.stances, nil), 1e-9)
		})
	}
}

func TestViewpointSuppressionCustomExpected(t *testing.T) {
	expected := map[string]float64{
		StanceFavor:   0.5,
		StanceAgainst: 0.5,
	}
	// Observed all favor: |1-0.5| + |0-0.5| = 1.0, normalized to 0.5.
	got := viewpointSuppression([]string{"favor", "favor"}, expected)
	assert.InDelta(t, 0.5, got, 1e-9)
}

func TestEchoComparePersonasRanking(t *testing.T) {
	detector, err := NewEchoChamberDetector(hashEmbedder())
	require.NoError(t, err)

	results := map[string]EchoChamberResult{
		"conspiracist": {EchoChamberScore: 0.82, Severity: SeveritySevere, IsEchoChamber: true},
		"moderate":     {EchoChamberScore: 0.35, Severity: SeverityLow},
		"partisan":     {EchoChamberScore: 0.65, Severity: SeverityHigh, IsEchoChamber: true},
	}

	comparisons := detector.ComparePersonas(results)
	require.Len(t, comparisons, 3)

	assert.Equal(t, 1, comparisons["conspiracist"].Rank)
	assert.Equal(t, 2, comparisons["partisan"].Rank)
	assert.Equal(t, 3, comparisons["moderate"].Rank)

	average := (0.82 + 0.35 + 0.65) / 3
	assert.InDelta(t, 0.82-average, comparisons["conspiracist"].DeltaFromAverage, 1e-9)
	assert.InDelta(t, 0.35-average, comparisons["moderate"].DeltaFromAverage, 1e-9)

	sum := 0.0
	for _, c := range comparisons {
		sum += c.DeltaFromAverage
	}
	assert.InDelta(t, 0.0, sum, 1e-9)
}

func TestEchoComparePersonasEmpty(t *testing.T) {
	detector, err := NewEchoChamberDetector(hashEmbedder())
	require.NoError(t, err)

	assert.Empty(t, detector.ComparePersonas(nil))
}

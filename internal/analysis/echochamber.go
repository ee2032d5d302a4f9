package analysis

import (
	"context"
	"math"
	"sort"

	"github.com/perspectra/bubblescope/internal/capability"
	"github.com/perspectra/bubblescope/internal/errors"
)

// Calibration constants for echo chamber detection.
const (
	// minTextsForClustering guards the clustering path; smaller batches get
	// a fixed insufficient-content result.
	minTextsForClustering = 5

	// Cluster count is min(maxClusters, max(minClusters, n/10)).
	maxClusters = 5
	minClusters = 2

	// Echo chamber composite weights.
	weightSimilarity          = 0.3
	weightIdeologicalCluster  = 0.3
	weightViewpointSuppressed = 0.2
	weightDominantCluster     = 0.2

	// echoChamberThreshold is the composite score above which a batch is
	// judged an echo chamber.
	echoChamberThreshold = 0.6

	// confidenceBonus lifts confidence for positive judgments.
	confidenceBonus = 0.2

	// suppressionMaxDeviation is the maximum possible L1 distance between
	// two distributions.
	suppressionMaxDeviation = 2.0

	// unknownClusteringEstimate is used when the within/between similarity
	// ratio is undefined (between-cluster similarity of zero).
	unknownClusteringEstimate = 0.5
)

// Fixed descriptions per severity tier. Downstream report generation quotes
// these verbatim.
const (
	descriptionSevere = "Strong echo chamber detected. Content is highly homogeneous with minimal alternative viewpoints."
	descriptionHigh   = "Significant echo chamber effects. Most content reinforces similar perspectives."
	descriptionMedium = "Moderate echo chamber tendencies. Some diversity exists but dominant viewpoints prevail."
	descriptionLow    = "Low echo chamber effects. Content shows reasonable diversity."

	descriptionInsufficient = "Insufficient content for analysis"
)

// defaultExpectedDistribution is the balanced stance baseline suppression is
// measured against.
var defaultExpectedDistribution = map[string]float64{
	StanceFavor:   0.33,
	StanceAgainst: 0.33,
	StanceNeutral: 0.34,
}

// EchoChamberResult is the detector's composite judgment for one batch.
type EchoChamberResult struct {
	IsEchoChamber    bool    `json:"is_echo_chamber"`
	Confidence       float64 `json:"confidence"`
	EchoChamberScore float64 `json:"echo_chamber_score"`

	ContentSimilarity     float64 `json:"content_similarity"`
	IdeologicalClustering float64 `json:"ideological_clustering"`
	ViewpointSuppression  float64 `json:"viewpoint_suppression"`

	NumClusters         int     `json:"num_clusters"`
	DominantClusterSize float64 `json:"dominant_cluster_size"`

	Severity    string `json:"severity"`
	Description string `json:"description"`
}

// PersonaEchoComparison ranks one persona's echo chamber result against the
// population.
type PersonaEchoComparison struct {
	Rank             int     `json:"rank"`
	EchoChamberScore float64 `json:"echo_chamber_score"`
	Severity         string  `json:"severity"`
	DeltaFromAverage float64 `json:"delta_from_average"`
	IsEchoChamber    bool    `json:"is_echo_chamber"`
	Description      string  `json:"description"`
}

// EchoChamberDetector embeds and clusters content texts to judge whether a
// persona's feed forms an ideologically homogeneous bubble.
type EchoChamberDetector struct {
	embedder capability.Embedder
}

// NewEchoChamberDetector builds a detector around an injected embedding
// capability.
func NewEchoChamberDetector(embedder capability.Embedder) (*EchoChamberDetector, error) {
	if embedder == nil {
		return nil, errors.NewCapabilityUnavailableError("embedding", nil)
	}
	return &EchoChamberDetector{embedder: embedder}, nil
}

// Detect analyzes a batch of content texts. Optional stance labels must
// cover every text; expectedDistribution defaults to equal thirds.
// Fewer than minTextsForClustering texts yields the fixed low-confidence
// result without touching the embedding capability.
func (d *EchoChamberDetector) Detect(
	ctx context.Context,
	texts []string,
	stances []string,
	expectedDistribution map[string]float64,
) (EchoChamberResult, error) {
	if len(stances) > 0 && len(stances) != len(texts) {
		return EchoChamberResult{}, errors.NewInvalidInputError(
			"stance label count does not match text count",
			map[string]int{"texts": len(texts), "stances": len(stances)},
		)
	}
	if err := validateStances(stances); err != nil {
		return EchoChamberResult{}, err
	}

	if len(texts) < minTextsForClustering {
		return EchoChamberResult{
			IsEchoChamber: false,
			Confidence:    0,
			Severity:      SeverityLow,
			Description:   descriptionInsufficient,
		}, nil
	}

	embeddings, err := d.embedder.Embed(ctx, texts)
	if err != nil {
		return EchoChamberResult{}, errors.WrapError(err, "content embedding failed")
	}

	contentSimilarity := meanPairwiseSimilarity(embeddings)

	k := len(embeddings) / 10
	if k < minClusters {
		k = minClusters
	}
	if k > maxClusters {
		k = maxClusters
	}
	assignments := kmeansCluster(embeddings, k)

	var ideological float64
	if len(stances) > 0 {
		ideological = labeledClusterHomogeneity(assignments, stances)
	} else {
		ideological = estimatedClusterHomogeneity(embeddings, assignments)
	}

	suppression := viewpointSuppression(stances, expectedDistribution)

	dominant := dominantClusterProportion(assignments, k)

	score := contentSimilarity*weightSimilarity +
		ideological*weightIdeologicalCluster +
		suppression*weightViewpointSuppressed +
		dominant*weightDominantCluster

	isEchoChamber := score >= echoChamberThreshold
	confidence := 1 - score
	if isEchoChamber {
		confidence = math.Min(1, score+confidenceBonus)
	}

	severity := severityFor(score)

	return EchoChamberResult{
		IsEchoChamber:         isEchoChamber,
		Confidence:            confidence,
		EchoChamberScore:      score,
		ContentSimilarity:     contentSimilarity,
		IdeologicalClustering: ideological,
		ViewpointSuppression:  suppression,
		NumClusters:           k,
		DominantClusterSize:   dominant,
		Severity:              severity,
		Description:           descriptionForSeverity(severity),
	}, nil
}

// ComparePersonas ranks personas by echo chamber score, strongest first,
// and reports each persona's delta from the population mean.
func (d *EchoChamberDetector) ComparePersonas(personaResults map[string]EchoChamberResult) map[string]PersonaEchoComparison {
	if len(personaResults) == 0 {
		return map[string]PersonaEchoComparison{}
	}

	average := 0.0
	for _, r := range personaResults {
		average += r.EchoChamberScore
	}
	average /= float64(len(personaResults))

	ids := make([]string, 0, len(personaResults))
	for id := range personaResults {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := personaResults[ids[i]], personaResults[ids[j]]
		if a.EchoChamberScore != b.EchoChamberScore {
			return a.EchoChamberScore > b.EchoChamberScore
		}
		return ids[i] < ids[j]
	})

	comparisons := make(map[string]PersonaEchoComparison, len(ids))
	for rank, id := range ids {
		r := personaResults[id]
		comparisons[id] = PersonaEchoComparison{
			Rank:             rank + 1,
			EchoChamberScore: r.EchoChamberScore,
			Severity:         r.Severity,
			DeltaFromAverage: r.EchoChamberScore - average,
			IsEchoChamber:    r.IsEchoChamber,
			Description:      r.Description,
		}
	}

	return comparisons
}

// labeledClusterHomogeneity averages, over clusters, the proportion of the
// dominant stance within each cluster.
func labeledClusterHomogeneity(assignments []int, stances []string) float64 {
	clusterStances := make(map[int]map[string]int)
	for i, cluster := range assignments {
		if clusterStances[cluster] == nil {
			clusterStances[cluster] = make(map[string]int)
		}
		clusterStances[cluster][stances[i]]++
	}

	if len(clusterStances) == 0 {
		return 0
	}

	totalHomogeneity := 0.0
	for _, counts := range clusterStances {
		dominant := 0
		size := 0
		for _, count := range counts {
			size += count
			if count > dominant {
				dominant = count
			}
		}
		totalHomogeneity += float64(dominant) / float64(size)
	}

	return totalHomogeneity / float64(len(clusterStances))
}

// estimatedClusterHomogeneity approximates ideological clustering without
// stance labels from the within/between cluster similarity ratio, clamped to
// [0,1]. A zero between-cluster similarity leaves the ratio undefined and
// reports the midpoint.
func estimatedClusterHomogeneity(embeddings [][]float64, assignments []int) float64 {
	within, between := clusterSimilarities(embeddings, assignments)

	if between > 0 {
		ratio := within / between
		return clamp((ratio-1)/2, 0, 1)
	}
	return unknownClusteringEstimate
}

// viewpointSuppression is the normalized L1 distance between the observed
// stance distribution and the expected balanced one. Without stance labels
// there is nothing to compare, so the midpoint is reported.
func viewpointSuppression(stances []string, expected map[string]float64) float64 {
	if len(stances) == 0 {
		return unknownClusteringEstimate
	}

	if expected == nil {
		expected = defaultExpectedDistribution
	}

	counts := make(map[string]float64)
	for _, s := range stances {
		counts[s]++
	}

	total := float64(len(stances))
	deviation := 0.0
	for stance, expectedProportion := range expected {
		actual := counts[stance] / total
		deviation += math.Abs(actual - expectedProportion)
	}

	return math.Min(1, deviation/suppressionMaxDeviation)
}

func dominantClusterProportion(assignments []int, k int) float64 {
	if len(assignments) == 0 {
		return 0
	}

	sizes := make([]int, k)
	for _, cluster := range assignments {
		sizes[cluster]++
	}

	largest := 0
	for _, size := range sizes {
		if size > largest {
			largest = size
		}
	}

	return float64(largest) / float64(len(assignments))
}

func descriptionForSeverity(severity string) string {
	switch severity {
	case SeveritySevere:
		return descriptionSevere
	case SeverityHigh:
		return descriptionHigh
	case SeverityMedium:
		return descriptionMedium
	default:
		return descriptionLow
	}
}

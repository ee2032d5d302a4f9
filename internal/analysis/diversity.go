package analysis

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/perspectra/bubblescope/internal/capability"
	"github.com/perspectra/bubblescope/internal/errors"
	"github.com/perspectra/bubblescope/internal/types"
)

// Valid stance labels; anything else in a stance slice is an input error.
const (
	StanceFavor   = "favor"
	StanceAgainst = "against"
	StanceNeutral = "neutral"
)

// Calibration constants for the diversity metrics.
const (
	// semanticTextCap bounds how many texts are embedded per batch.
	semanticTextCap = 100

	// sourceEntropyCap caps the entropy denominator for source diversity.
	sourceEntropyCap = 20

	// temporalWindow is the reference span a batch is normalized against.
	temporalWindow = 7 * 24 * time.Hour

	// defaultAxisValue stands in for an axis whose inputs were not supplied.
	defaultAxisValue = 0.5
)

// DiversityMetrics quantifies how diverse a recommendation batch is across
// five axes, plus the derived echo chamber score and severity bucket.
// The echo chamber score excludes the temporal axis.
type DiversityMetrics struct {
	TopicDiversity    float64 `json:"topic_diversity"`
	StanceDiversity   float64 `json:"stance_diversity"`
	SourceDiversity   float64 `json:"source_diversity"`
	SemanticDiversity float64 `json:"semantic_diversity"`
	TemporalDiversity float64 `json:"temporal_diversity"`

	EchoChamberScore     float64 `json:"echo_chamber_score"`
	FilterBubbleSeverity string  `json:"filter_bubble_severity"`

	UniqueTopics  int `json:"unique_topics"`
	UniqueSources int `json:"unique_sources"`
	TotalItems    int `json:"total_items"`
}

// ComparativeDiversity positions one persona's metrics against the
// population baseline. Derived fresh on every comparison call.
type ComparativeDiversity struct {
	PersonaID            string             `json:"persona_id"`
	Metrics              DiversityMetrics   `json:"metrics"`
	ComparisonToBaseline map[string]float64 `json:"comparison_to_baseline"`
	PercentileRank       map[string]float64 `json:"percentile_rank"`
}

// DiversityAnalyzer computes population-level diversity judgments for a
// persona's content batch. Stateless between calls; safe for concurrent use.
type DiversityAnalyzer struct {
	embedder capability.Embedder
}

// NewDiversityAnalyzer builds an analyzer around an injected embedding
// capability.
func NewDiversityAnalyzer(embedder capability.Embedder) (*DiversityAnalyzer, error) {
	if embedder == nil {
		return nil, errors.NewCapabilityUnavailableError("embedding", nil)
	}
	return &DiversityAnalyzer{embedder: embedder}, nil
}

// CalculateMetrics computes all diversity axes for a content batch. Topic and
// stance labels are optional; when supplied they must cover every item.
// An empty batch is not an error: it yields the defined degenerate result
// with maximal echo chamber score.
func (a *DiversityAnalyzer) CalculateMetrics(
	ctx context.Context,
	items []types.ContentItem,
	topicLabels []string,
	stanceLabels []string,
) (DiversityMetrics, error) {
	if len(topicLabels) > 0 && len(topicLabels) != len(items) {
		return DiversityMetrics{}, errors.NewInvalidInputError(
			"topic label count does not match item count",
			map[string]int{"items": len(items), "topic_labels": len(topicLabels)},
		)
	}
	if len(stanceLabels) > 0 && len(stanceLabels) != len(items) {
		return DiversityMetrics{}, errors.NewInvalidInputError(
			"stance label count does not match item count",
			map[string]int{"items": len(items), "stance_labels": len(stanceLabels)},
		)
	}
	if err := validateStances(stanceLabels); err != nil {
		return DiversityMetrics{}, err
	}

	if len(items) == 0 {
		return DiversityMetrics{
			EchoChamberScore:     1.0,
			FilterBubbleSeverity: SeveritySevere,
		}, nil
	}

	topicDiv := defaultAxisValue
	if len(topicLabels) > 0 {
		topicDiv = topicDiversity(topicLabels)
	}

	stanceDiv := defaultAxisValue
	if len(stanceLabels) > 0 {
		stanceDiv = stanceDiversity(stanceLabels)
	}

	sources := make([]string, 0, len(items))
	for _, item := range items {
		source := item.Source
		if source == "" {
			source = "unknown"
		}
		sources = append(sources, source)
	}
	sourceDiv := sourceDiversity(sources)

	texts := make([]string, 0, len(items))
	for _, item := range items {
		if item.Text != "" {
			texts = append(texts, item.Text)
		}
	}
	semanticDiv := defaultAxisValue
	if len(texts) > 0 {
		var err error
		semanticDiv, err = a.semanticDiversity(ctx, texts)
		if err != nil {
			return DiversityMetrics{}, errors.WrapError(err, "semantic diversity embedding failed")
		}
	}

	timestamps := make([]time.Time, 0, len(items))
	for _, item := range items {
		if !item.Timestamp.IsZero() {
			timestamps = append(timestamps, item.Timestamp)
		}
	}
	temporalDiv := defaultAxisValue
	if len(timestamps) > 0 {
		temporalDiv = temporalDiversity(timestamps)
	}

	// Temporal spread says nothing about viewpoint homogeneity, so the echo
	// chamber score averages only the four content axes.
	avgDiversity := (topicDiv + stanceDiv + sourceDiv + semanticDiv) / 4
	echoScore := 1 - avgDiversity

	return DiversityMetrics{
		TopicDiversity:       topicDiv,
		StanceDiversity:      stanceDiv,
		SourceDiversity:      sourceDiv,
		SemanticDiversity:    semanticDiv,
		TemporalDiversity:    temporalDiv,
		EchoChamberScore:     echoScore,
		FilterBubbleSeverity: severityFor(echoScore),
		UniqueTopics:         distinctCount(topicLabels),
		UniqueSources:        distinctCount(sources),
		TotalItems:           len(items),
	}, nil
}

// ComparePersonas ranks each persona against the population baseline, which
// is the arithmetic mean of every axis across the supplied personas.
func (a *DiversityAnalyzer) ComparePersonas(personaMetrics map[string]DiversityMetrics) map[string]ComparativeDiversity {
	if len(personaMetrics) == 0 {
		return map[string]ComparativeDiversity{}
	}

	n := float64(len(personaMetrics))
	baseline := map[string]float64{}
	for _, m := range personaMetrics {
		baseline["topic_diversity"] += m.TopicDiversity / n
		baseline["stance_diversity"] += m.StanceDiversity / n
		baseline["source_diversity"] += m.SourceDiversity / n
		baseline["semantic_diversity"] += m.SemanticDiversity / n
		baseline["echo_chamber_score"] += m.EchoChamberScore / n
	}

	ids := make([]string, 0, len(personaMetrics))
	for id := range personaMetrics {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := personaMetrics[ids[i]], personaMetrics[ids[j]]
		if a.EchoChamberScore != b.EchoChamberScore {
			return a.EchoChamberScore < b.EchoChamberScore
		}
		return ids[i] < ids[j]
	})

	comparisons := make(map[string]ComparativeDiversity, len(ids))
	for i, id := range ids {
		m := personaMetrics[id]
		comparisons[id] = ComparativeDiversity{
			PersonaID: id,
			Metrics:   m,
			ComparisonToBaseline: map[string]float64{
				"topic_diversity":    m.TopicDiversity - baseline["topic_diversity"],
				"stance_diversity":   m.StanceDiversity - baseline["stance_diversity"],
				"source_diversity":   m.SourceDiversity - baseline["source_diversity"],
				"semantic_diversity": m.SemanticDiversity - baseline["semantic_diversity"],
				"echo_chamber_score": m.EchoChamberScore - baseline["echo_chamber_score"],
			},
			PercentileRank: map[string]float64{
				"echo_chamber": float64(i) / float64(len(ids)) * 100,
			},
		}
	}

	return comparisons
}

// topicDiversity is the Shannon entropy of the topic distribution normalized
// by the maximum entropy for the observed number of distinct topics.
func topicDiversity(topics []string) float64 {
	if len(topics) == 0 {
		return 0
	}

	counts := make(map[string]int)
	for _, t := range topics {
		counts[t]++
	}

	entropy := shannonEntropy(counts, len(topics))

	maxEntropy := 1.0
	if len(counts) > 1 {
		maxEntropy = math.Log2(float64(len(counts)))
	}
	if maxEntropy == 0 {
		return 0
	}
	return entropy / maxEntropy
}

// stanceDiversity measures deviation from the ideal equal thirds across
// favor/against/neutral. 1 is perfectly balanced, 0 fully one-sided.
func stanceDiversity(stances []string) float64 {
	if len(stances) == 0 {
		return 0
	}

	counts := make(map[string]int)
	for _, s := range stances {
		counts[s]++
	}

	favor := float64(counts[StanceFavor])
	against := float64(counts[StanceAgainst])
	neutral := float64(counts[StanceNeutral])
	total := favor + against + neutral

	if total == 0 {
		return 0
	}

	ideal := total / 3
	deviation := (math.Abs(favor-ideal) + math.Abs(against-ideal) + math.Abs(neutral-ideal)) / (2 * total)

	return 1 - deviation
}

// sourceDiversity is entropy-based like topicDiversity, but normalizes
// against at most sourceEntropyCap distinct sources.
func sourceDiversity(sources []string) float64 {
	if len(sources) == 0 {
		return 0
	}

	counts := make(map[string]int)
	for _, s := range sources {
		counts[s]++
	}

	entropy := shannonEntropy(counts, len(sources))

	capped := len(sources)
	if capped > sourceEntropyCap {
		capped = sourceEntropyCap
	}
	maxEntropy := math.Log2(float64(capped))
	if maxEntropy <= 0 {
		return 0
	}
	return math.Min(1, entropy/maxEntropy)
}

// semanticDiversity is one minus the mean pairwise cosine similarity over
// embeddings of at most semanticTextCap texts.
func (a *DiversityAnalyzer) semanticDiversity(ctx context.Context, texts []string) (float64, error) {
	if len(texts) < 2 {
		return 0, nil
	}

	if len(texts) > semanticTextCap {
		texts = texts[:semanticTextCap]
	}

	embeddings, err := a.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, err
	}
	if len(embeddings) < 2 {
		return 0, nil
	}

	return 1 - meanPairwiseSimilarity(embeddings), nil
}

// temporalDiversity normalizes the batch's time span against the reference
// window, clamped to [0,1].
func temporalDiversity(timestamps []time.Time) float64 {
	if len(timestamps) < 2 {
		return 0
	}

	earliest, latest := timestamps[0], timestamps[0]
	for _, ts := range timestamps[1:] {
		if ts.Before(earliest) {
			earliest = ts
		}
		if ts.After(latest) {
			latest = ts
		}
	}

	span := latest.Sub(earliest).Seconds()
	return math.Min(1, span/temporalWindow.Seconds())
}

func shannonEntropy(counts map[string]int, total int) float64 {
	entropy := 0.0
	for _, count := range counts {
		if count > 0 {
			p := float64(count) / float64(total)
			entropy -= p * math.Log2(p)
		}
	}
	return entropy
}

func distinctCount(labels []string) int {
	if len(labels) == 0 {
		return 0
	}
	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		seen[l] = struct{}{}
	}
	return len(seen)
}

func validateStances(stances []string) error {
	for i, s := range stances {
		switch s {
		case StanceFavor, StanceAgainst, StanceNeutral:
		default:
			return errors.NewInvalidInputError(
				"unknown stance label",
				map[string]interface{}{"index": i, "value": s},
			)
		}
	}
	return nil
}

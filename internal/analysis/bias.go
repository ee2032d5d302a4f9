package analysis

import (
	"context"
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/perspectra/bubblescope/internal/capability"
	"github.com/perspectra/bubblescope/internal/errors"
)

// PoliticalBias is the five-way political leaning classification.
type PoliticalBias string

const (
	PoliticalLeft        PoliticalBias = "left"
	PoliticalCenterLeft  PoliticalBias = "center_left"
	PoliticalCenter      PoliticalBias = "center"
	PoliticalCenterRight PoliticalBias = "center_right"
	PoliticalRight       PoliticalBias = "right"
)

// The six emotional tone buckets raw classifier labels collapse into.
const (
	EmotionFear    = "fear"
	EmotionAnger   = "anger"
	EmotionHope    = "hope"
	EmotionSadness = "sadness"
	EmotionJoy     = "joy"
	EmotionNeutral = "neutral"
)

// emotionBuckets fixes the bucket iteration order so primary-emotion ties
// resolve deterministically.
var emotionBuckets = []string{
	EmotionFear, EmotionAnger, EmotionHope, EmotionSadness, EmotionJoy, EmotionNeutral,
}

// Calibration constants for the bias pipeline. These are load-bearing:
// every stored composite score was produced with exactly these values.
const (
	// classifierTextBudget bounds the characters sent per classifier call.
	classifierTextBudget = 512

	// displayTextBudget bounds the echoed text in a result.
	displayTextBudget = 200

	// politicalExtremeCutoff maps a confident left/right classification to
	// the extreme category instead of the adjacent center-* one.
	politicalExtremeCutoff = 0.7

	// politicalConfidenceDamping halves the political signal inside the
	// composite score. It damps strong and weak leanings identically;
	// preserved as calibrated rather than corrected.
	politicalConfidenceDamping = 0.5

	// Composite bias score weights.
	weightPolitical    = 0.20
	weightEmotional    = 0.25
	weightOpinion      = 0.20
	weightSensational  = 0.20
	weightClickbait    = 0.15

	// Sensationalism blend weights and scaling.
	sensationalWordWeight   = 0.5
	sensationalWordScale    = 10
	exclamationWeight       = 0.25
	exclamationDenominator  = 5
	uppercaseWeight         = 0.25
	uppercaseScale          = 5

	// clickbaitNormalizer converts a raw pattern match count into [0,1].
	clickbaitNormalizer = 3

	// minSentenceChars filters out fragments when counting sentences.
	minSentenceChars = 10

	// neutralFactOpinionRatio is returned when no qualifying sentences exist.
	neutralFactOpinionRatio = 0.5
)

var politicalCandidateLabels = []string{
	"liberal progressive left-wing",
	"moderate centrist",
	"conservative right-wing",
}

// Raw labels requested from the emotion classifier before bucket collapse.
var emotionCandidateLabels = []string{
	"anger", "disgust", "fear", "joy", "love", "neutral", "sadness", "surprise",
}

var clickbaitPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)you won't believe`),
	regexp.MustCompile(`(?i)what happens next`),
	regexp.MustCompile(`(?i)shocking`),
	regexp.MustCompile(`(?i)mind-blowing`),
	regexp.MustCompile(`(?i)this is why`),
	regexp.MustCompile(`(?i)here's why`),
	regexp.MustCompile(`(?i)the truth about`),
	regexp.MustCompile(`(?i)they don't want you to know`),
	regexp.MustCompile(`(?i)\d+ reasons`),
	regexp.MustCompile(`(?i)\d+ things`),
	regexp.MustCompile(`(?i)number \d+ will`),
	regexp.MustCompile(`!!+`),
	regexp.MustCompile(`\?\?+`),
	regexp.MustCompile(`(?i)BREAKING`),
	regexp.MustCompile(`(?i)URGENT`),
	regexp.MustCompile(`(?i)SECRET`),
}

var sensationalWords = []string{
	"shocking", "explosive", "bombshell", "devastating",
	"incredible", "unbelievable", "terrifying", "horrifying",
	"outrageous", "scandalous", "catastrophic", "unprecedented",
	"massive", "huge", "enormous", "epic", "insane", "crazy",
}

var opinionIndicators = []string{
	"i think", "i believe", "in my opinion", "seems to me",
	"arguably", "perhaps", "maybe", "could be", "might be",
	"should", "must", "ought to", "need to",
}

// BiasAnalysisResult holds every per-item bias signal plus the composite.
// All bounded fields stay in [0,1] for any input.
type BiasAnalysisResult struct {
	Text                string             `json:"text"`
	PoliticalBias       PoliticalBias      `json:"political_bias"`
	PoliticalConfidence float64            `json:"political_confidence"`
	EmotionalTones      map[string]float64 `json:"emotional_tones"`
	PrimaryEmotion      string             `json:"primary_emotion"`
	FactOpinionRatio    float64            `json:"fact_opinion_ratio"`
	SensationalismScore float64            `json:"sensationalism_score"`
	ClickbaitScore      float64            `json:"clickbait_score"`
	CompositeBiasScore  float64            `json:"composite_bias_score"`
}

// CorpusSummary aggregates bias results across a content batch.
type CorpusSummary struct {
	TotalAnalyzed         int                    `json:"total_analyzed"`
	PoliticalDistribution map[PoliticalBias]float64 `json:"political_distribution"`
	AverageSensationalism float64                `json:"average_sensationalism"`
	AverageClickbait      float64                `json:"average_clickbait"`
	AverageCompositeBias  float64                `json:"average_composite_bias"`
	AverageFactRatio      float64                `json:"average_fact_ratio"`
}

// BiasDetector scores individual texts across five bias axes. It is a pure
// function of its input plus the injected classifier; safe for concurrent use.
type BiasDetector struct {
	classifier capability.TextClassifier
}

// NewBiasDetector builds a detector around an injected text classification
// capability. A missing capability is a construction error, never a silent
// fallback at analysis time.
func NewBiasDetector(classifier capability.TextClassifier) (*BiasDetector, error) {
	if classifier == nil {
		return nil, errors.NewCapabilityUnavailableError("text classification", nil)
	}
	return &BiasDetector{classifier: classifier}, nil
}

// Analyze performs the full bias analysis for one text. Empty text has
// nothing for the classifier to score and yields the documented defaults
// without a capability round trip.
func (d *BiasDetector) Analyze(ctx context.Context, text string) (BiasAnalysisResult, error) {
	if strings.TrimSpace(text) == "" {
		emotions := make(map[string]float64, len(emotionBuckets))
		for _, bucket := range emotionBuckets {
			emotions[bucket] = 0
		}

		return BiasAnalysisResult{
			Text:                text,
			PoliticalBias:       PoliticalCenter,
			PoliticalConfidence: 0,
			EmotionalTones:      emotions,
			PrimaryEmotion:      primaryEmotion(emotions),
			FactOpinionRatio:    neutralFactOpinionRatio,
			SensationalismScore: 0,
			ClickbaitScore:      0,
			CompositeBiasScore:  compositeBiasScore(0, 1-emotions[EmotionNeutral], 1-neutralFactOpinionRatio, 0, 0),
		}, nil
	}

	politicalBias, politicalConfidence, err := d.detectPoliticalBias(ctx, text)
	if err != nil {
		return BiasAnalysisResult{}, errors.WrapError(err, "political bias classification failed")
	}

	emotionalTones, err := d.analyzeEmotionalTone(ctx, text)
	if err != nil {
		return BiasAnalysisResult{}, errors.WrapError(err, "emotional tone classification failed")
	}

	factOpinionRatio := analyzeFactOpinion(text)
	sensationalism := detectSensationalism(text)
	clickbait := detectClickbait(text)

	composite := compositeBiasScore(
		politicalConfidence,
		1-emotionalTones[EmotionNeutral],
		1-factOpinionRatio,
		sensationalism,
		clickbait,
	)

	display := truncate(text, displayTextBudget)
	if display != text {
		display += "..."
	}

	return BiasAnalysisResult{
		Text:                display,
		PoliticalBias:       politicalBias,
		PoliticalConfidence: politicalConfidence,
		EmotionalTones:      emotionalTones,
		PrimaryEmotion:      primaryEmotion(emotionalTones),
		FactOpinionRatio:    factOpinionRatio,
		SensationalismScore: sensationalism,
		ClickbaitScore:      clickbait,
		CompositeBiasScore:  composite,
	}, nil
}

// AnalyzeBatch scores each text independently. The first failure aborts the
// whole batch; retry-or-skip decisions belong to the calling job layer.
func (d *BiasDetector) AnalyzeBatch(ctx context.Context, texts []string) ([]BiasAnalysisResult, error) {
	results := make([]BiasAnalysisResult, 0, len(texts))
	for _, text := range texts {
		result, err := d.Analyze(ctx, text)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

// Summarize computes corpus-level aggregates over already-scored results.
func (d *BiasDetector) Summarize(results []BiasAnalysisResult) CorpusSummary {
	if len(results) == 0 {
		return CorpusSummary{PoliticalDistribution: map[PoliticalBias]float64{}}
	}

	total := float64(len(results))
	counts := make(map[PoliticalBias]float64)
	var sensationalism, clickbait, composite, factRatio float64

	for _, r := range results {
		counts[r.PoliticalBias]++
		sensationalism += r.SensationalismScore
		clickbait += r.ClickbaitScore
		composite += r.CompositeBiasScore
		factRatio += r.FactOpinionRatio
	}

	distribution := make(map[PoliticalBias]float64, len(counts))
	for bias, count := range counts {
		distribution[bias] = count / total
	}

	return CorpusSummary{
		TotalAnalyzed:         len(results),
		PoliticalDistribution: distribution,
		AverageSensationalism: sensationalism / total,
		AverageClickbait:      clickbait / total,
		AverageCompositeBias:  composite / total,
		AverageFactRatio:      factRatio / total,
	}
}

func (d *BiasDetector) detectPoliticalBias(ctx context.Context, text string) (PoliticalBias, float64, error) {
	scores, err := d.classifier.Classify(ctx, truncate(text, classifierTextBudget), politicalCandidateLabels, false)
	if err != nil {
		return "", 0, err
	}
	if len(scores) == 0 {
		return PoliticalCenter, 0, nil
	}

	top := scores[0]
	label := strings.ToLower(top.Label)

	switch {
	case strings.Contains(label, "liberal") || strings.Contains(label, "left"):
		if top.Score > politicalExtremeCutoff {
			return PoliticalLeft, top.Score, nil
		}
		return PoliticalCenterLeft, top.Score, nil
	case strings.Contains(label, "conservative") || strings.Contains(label, "right"):
		if top.Score > politicalExtremeCutoff {
			return PoliticalRight, top.Score, nil
		}
		return PoliticalCenterRight, top.Score, nil
	default:
		return PoliticalCenter, top.Score, nil
	}
}

// analyzeEmotionalTone collapses raw classifier labels into the six fixed
// buckets and renormalizes. Surprise carries no directional signal and is
// dropped before renormalization.
func (d *BiasDetector) analyzeEmotionalTone(ctx context.Context, text string) (map[string]float64, error) {
	scores, err := d.classifier.Classify(ctx, truncate(text, classifierTextBudget), emotionCandidateLabels, true)
	if err != nil {
		return nil, err
	}

	emotions := make(map[string]float64, len(emotionBuckets))
	for _, s := range scores {
		switch strings.ToLower(s.Label) {
		case "fear":
			emotions[EmotionFear] += s.Score
		case "anger":
			emotions[EmotionAnger] += s.Score
		case "joy", "love":
			emotions[EmotionHope] += s.Score
		case "sadness":
			emotions[EmotionSadness] += s.Score
		case "surprise":
			// dropped
		default:
			emotions[EmotionNeutral] += s.Score
		}
	}

	total := 0.0
	for _, v := range emotions {
		total += v
	}
	if total > 0 {
		for k, v := range emotions {
			emotions[k] = v / total
		}
	}

	for _, bucket := range emotionBuckets {
		if _, ok := emotions[bucket]; !ok {
			emotions[bucket] = 0
		}
	}

	return emotions, nil
}

func primaryEmotion(emotions map[string]float64) string {
	primary := emotionBuckets[0]
	best := emotions[primary]
	for _, bucket := range emotionBuckets[1:] {
		if emotions[bucket] > best {
			best = emotions[bucket]
			primary = bucket
		}
	}
	return primary
}

// analyzeFactOpinion estimates how factual the text is from an opinion-phrase
// lexicon. 1 means all fact, 0 all opinion; texts with no qualifying
// sentences default to the neutral midpoint.
func analyzeFactOpinion(text string) float64 {
	lower := strings.ToLower(text)

	opinionCount := 0
	for _, indicator := range opinionIndicators {
		if strings.Contains(lower, indicator) {
			opinionCount++
		}
	}

	sentenceCount := 0
	for _, s := range strings.Split(text, ".") {
		if len(strings.TrimSpace(s)) > minSentenceChars {
			sentenceCount++
		}
	}

	if sentenceCount == 0 {
		return neutralFactOpinionRatio
	}

	opinionRatio := math.Min(1, float64(opinionCount)/float64(sentenceCount))
	return 1 - opinionRatio
}

func detectSensationalism(text string) float64 {
	lower := strings.ToLower(text)
	words := strings.Fields(lower)
	if len(words) == 0 {
		return 0
	}

	sensationalCount := 0
	for _, word := range words {
		for _, sw := range sensationalWords {
			if strings.Contains(word, sw) {
				sensationalCount++
				break
			}
		}
	}

	upperCount := 0
	runeCount := 0
	for _, r := range text {
		runeCount++
		if unicode.IsUpper(r) {
			upperCount++
		}
	}
	if runeCount == 0 {
		runeCount = 1
	}

	wordScore := math.Min(1, float64(sensationalCount)/float64(len(words))*sensationalWordScale)
	punctScore := math.Min(1, float64(strings.Count(text, "!"))/exclamationDenominator)
	capsScore := math.Min(1, float64(upperCount)/float64(runeCount)*uppercaseScale)

	return wordScore*sensationalWordWeight + punctScore*exclamationWeight + capsScore*uppercaseWeight
}

func detectClickbait(text string) float64 {
	matches := 0
	for _, pattern := range clickbaitPatterns {
		if pattern.MatchString(text) {
			matches++
		}
	}
	return math.Min(1, float64(matches)/clickbaitNormalizer)
}

func compositeBiasScore(politicalConfidence, emotionalIntensity, opinionRatio, sensationalism, clickbait float64) float64 {
	composite := politicalConfidence*politicalConfidenceDamping*weightPolitical +
		emotionalIntensity*weightEmotional +
		opinionRatio*weightOpinion +
		sensationalism*weightSensational +
		clickbait*weightClickbait

	return math.Min(1, composite)
}

// truncate bounds a text to limit characters without splitting a rune.
func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

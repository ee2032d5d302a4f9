package analysis

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perspectra/bubblescope/internal/capability"
	"github.com/perspectra/bubblescope/internal/errors"
)

// fakeClassifier routes classification calls to a configurable function.
type fakeClassifier struct {
	fn func(text string, labels []string, multiLabel bool) ([]capability.LabelScore, error)
}

func (f *fakeClassifier) Classify(ctx context.Context, text string, labels []string, multiLabel bool) ([]capability.LabelScore, error) {
	return f.fn(text, labels, multiLabel)
}

// neutralClassifier answers every political call with a centrist label and
// every emotion call with pure neutral.
func neutralClassifier() *fakeClassifier {
	return &fakeClassifier{
		fn: func(text string, labels []string, multiLabel bool) ([]capability.LabelScore, error) {
			if isPoliticalCall(labels) {
				return []capability.LabelScore{
					{Label: "moderate centrist", Score: 0.5},
					{Label: "liberal progressive left-wing", Score: 0.3},
					{Label: "conservative right-wing", Score: 0.2},
				}, nil
			}
			return []capability.LabelScore{{Label: "neutral", Score: 1.0}}, nil
		},
	}
}

func isPoliticalCall(labels []string) bool {
	for _, l := range labels {
		if strings.Contains(l, "centrist") {
			return true
		}
	}
	return false
}

func TestNewBiasDetectorRequiresClassifier(t *testing.T) {
	_, err := NewBiasDetector(nil)
	require.Error(t, err)
	assert.True(t, errors.IsCapabilityUnavailable(err))
}

func TestDetectPoliticalBiasMapping(t *testing.T) {
	tests := []struct {
		name         string
		topLabel     string
		topScore     float64
		expectedBias PoliticalBias
	}{
		{
			name:         "confident left maps to extreme",
			topLabel:     "liberal progressive left-wing",
			topScore:     0.85,
			expectedBias: PoliticalLeft,
		},
		{
			name:         "uncertain left maps to center left",
			topLabel:     "liberal progressive left-wing",
			topScore:     0.55,
			expectedBias: PoliticalCenterLeft,
		},
		{
			name:         "confident right maps to extreme",
			topLabel:     "conservative right-wing",
			topScore:     0.9,
			expectedBias: PoliticalRight,
		},
		{
			name:         "uncertain right maps to center right",
			topLabel:     "conservative right-wing",
			topScore:     0.6,
			expectedBias: PoliticalCenterRight,
		},
		{
			name:         "centrist always maps to center",
			topLabel:     "moderate centrist",
			topScore:     0.95,
			expectedBias: PoliticalCenter,
		},
		{
			name:         "exactly at the cutoff stays adjacent",
			topLabel:     "liberal progressive left-wing",
			topScore:     0.7,
			expectedBias: PoliticalCenterLeft,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classifier := neutralClassifier()
			classifier.fn = func(text string, labels []string, multiLabel bool) ([]capability.LabelScore, error) {
				if isPoliticalCall(labels) {
					return []capability.LabelScore{{Label: tt.topLabel, Score: tt.topScore}}, nil
				}
				return []capability.LabelScore{{Label: "neutral", Score: 1.0}}, nil
			}

			detector, err := NewBiasDetector(classifier)
			require.NoError(t, err)

			result, err := detector.Analyze(context.Background(), "some political text")
			require.NoError(t, err)
			assert.Equal(t, tt.expectedBias, result.PoliticalBias)
			assert.Equal(t, tt.topScore, result.PoliticalConfidence)
		})
	}
}

func TestEmotionalToneMergesAndRenormalizes(t *testing.T) {
	classifier := neutralClassifier()
	classifier.fn = func(text string, labels []string, multiLabel bool) ([]capability.LabelScore, error) {
		if isPoliticalCall(labels) {
			return []capability.LabelScore{{Label: "moderate centrist", Score: 0.4}}, nil
		}
		return []capability.LabelScore{
			{Label: "joy", Score: 0.3},
			{Label: "love", Score: 0.1},
			{Label: "fear", Score: 0.2},
			{Label: "surprise", Score: 0.2}, // dropped before renormalization
			{Label: "disgust", Score: 0.2},  // folds into neutral
		}, nil
	}

	detector, err := NewBiasDetector(classifier)
	require.NoError(t, err)

	result, err := detector.Analyze(context.Background(), "an emotional story about things.")
	require.NoError(t, err)

	tones := result.EmotionalTones
	// joy+love merge to hope; total after dropping surprise is 0.8.
	assert.InDelta(t, 0.5, tones[EmotionHope], 1e-9)
	assert.InDelta(t, 0.25, tones[EmotionFear], 1e-9)
	assert.InDelta(t, 0.25, tones[EmotionNeutral], 1e-9)
	assert.Equal(t, 0.0, tones[EmotionAnger])
	assert.Equal(t, 0.0, tones[EmotionSadness])
	assert.Equal(t, 0.0, tones[EmotionJoy])

	sum := 0.0
	for _, v := range tones {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Equal(t, EmotionHope, result.PrimaryEmotion)
}

func TestAnalyzeFactOpinion(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected float64
	}{
		{
			name:     "no qualifying sentences defaults to midpoint",
			text:     "Short. Tiny. Ok.",
			expected: 0.5,
		},
		{
			name:     "pure factual statements",
			text:     "The committee met on Tuesday afternoon. The vote passed with sixty in favor.",
			expected: 1.0,
		},
		{
			name:     "opinion phrases lower the ratio",
			text:     "I think this policy is wrong for the country. Perhaps there was another way.",
			expected: 0.0, // two indicator hits over two sentences
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, analyzeFactOpinion(tt.text), 1e-9)
		})
	}
}

func TestDetectSensationalism(t *testing.T) {
	// Plain lowercase factual text carries no sensational signal.
	assert.Equal(t, 0.0, detectSensationalism(""))

	calm := detectSensationalism("the meeting was held on tuesday as planned")
	assert.Equal(t, 0.0, calm)

	loud := detectSensationalism("SHOCKING bombshell!!! UNBELIEVABLE catastrophic scandal!!")
	assert.Greater(t, loud, 0.5)
	assert.LessOrEqual(t, loud, 1.0)
}

func TestDetectClickbait(t *testing.T) {
	assert.Equal(t, 0.0, detectClickbait("A measured report on municipal budgets"))

	// Three distinct patterns saturate the score.
	saturated := detectClickbait("You won't believe what happens next! The truth about 10 things")
	assert.Equal(t, 1.0, saturated)

	single := detectClickbait("here's why the bridge closed")
	assert.InDelta(t, 1.0/3.0, single, 1e-9)
}

func TestAnalyzeEmptyTextUsesDocumentedDefaults(t *testing.T) {
	// Production providers reject empty inputs, so defaults must be produced
	// without any classifier call.
	classifier := &fakeClassifier{
		fn: func(text string, labels []string, multiLabel bool) ([]capability.LabelScore, error) {
			return nil, errors.NewInvalidInputError("text must not be empty")
		},
	}
	detector, err := NewBiasDetector(classifier)
	require.NoError(t, err)

	for _, text := range []string{"", "   \n\t "} {
		result, err := detector.Analyze(context.Background(), text)
		require.NoError(t, err)

		assert.Equal(t, PoliticalCenter, result.PoliticalBias)
		assert.Equal(t, 0.0, result.PoliticalConfidence)
		for _, bucket := range emotionBuckets {
			assert.Equal(t, 0.0, result.EmotionalTones[bucket])
		}
		assert.Equal(t, 0.5, result.FactOpinionRatio)
		assert.Equal(t, 0.0, result.SensationalismScore)
		assert.Equal(t, 0.0, result.ClickbaitScore)
		assert.GreaterOrEqual(t, result.CompositeBiasScore, 0.0)
		assert.LessOrEqual(t, result.CompositeBiasScore, 1.0)
	}
}

func TestTruncateKeepsRuneBoundaries(t *testing.T) {
	text := strings.Repeat("é", 600)

	cut := truncate(text, 512)
	assert.True(t, utf8.ValidString(cut))
	assert.Equal(t, 512, utf8.RuneCountInString(cut))

	assert.Equal(t, "short", truncate("short", 512))
}

func TestAnalyzeDisplayTextTruncatesOnRunes(t *testing.T) {
	detector, err := NewBiasDetector(neutralClassifier())
	require.NoError(t, err)

	result, err := detector.Analyze(context.Background(), strings.Repeat("ü", 250))
	require.NoError(t, err)

	assert.True(t, utf8.ValidString(result.Text))
	assert.Equal(t, strings.Repeat("ü", 200)+"...", result.Text)
}

func TestCompositeBiasScoreWeights(t *testing.T) {
	// Full-strength components: 1*0.5*0.2 + 1*0.25 + 1*0.2 + 1*0.2 + 1*0.15.
	score := compositeBiasScore(1, 1, 1, 1, 1)
	assert.InDelta(t, 0.9, score, 1e-9)

	assert.Equal(t, 0.0, compositeBiasScore(0, 0, 0, 0, 0))

	// Political confidence is damped by half before weighting.
	political := compositeBiasScore(1, 0, 0, 0, 0)
	assert.InDelta(t, 0.1, political, 1e-9)
}

func TestAnalyzeBatchFailsWhole(t *testing.T) {
	calls := 0
	classifier := &fakeClassifier{
		fn: func(text string, labels []string, multiLabel bool) ([]capability.LabelScore, error) {
			calls++
			if calls > 2 {
				return nil, errors.NewNetworkError("classifier unreachable", nil)
			}
			return []capability.LabelScore{{Label: "moderate centrist", Score: 0.5}}, nil
		},
	}

	detector, err := NewBiasDetector(classifier)
	require.NoError(t, err)

	results, err := detector.AnalyzeBatch(context.Background(), []string{"first text", "second text"})
	require.Error(t, err)
	assert.Nil(t, results)
}

func TestSummarize(t *testing.T) {
	detector, err := NewBiasDetector(neutralClassifier())
	require.NoError(t, err)

	results := []BiasAnalysisResult{
		{PoliticalBias: PoliticalLeft, SensationalismScore: 0.4, ClickbaitScore: 0.2, CompositeBiasScore: 0.6, FactOpinionRatio: 0.8},
		{PoliticalBias: PoliticalLeft, SensationalismScore: 0.2, ClickbaitScore: 0.0, CompositeBiasScore: 0.4, FactOpinionRatio: 0.6},
		{PoliticalBias: PoliticalCenter, SensationalismScore: 0.0, ClickbaitScore: 0.1, CompositeBiasScore: 0.2, FactOpinionRatio: 1.0},
		{PoliticalBias: PoliticalRight, SensationalismScore: 0.6, ClickbaitScore: 0.3, CompositeBiasScore: 0.8, FactOpinionRatio: 0.4},
	}

	summary := detector.Summarize(results)

	assert.Equal(t, 4, summary.TotalAnalyzed)
	assert.InDelta(t, 0.5, summary.PoliticalDistribution[PoliticalLeft], 1e-9)
	assert.InDelta(t, 0.25, summary.PoliticalDistribution[PoliticalCenter], 1e-9)
	assert.InDelta(t, 0.25, summary.PoliticalDistribution[PoliticalRight], 1e-9)
	assert.InDelta(t, 0.3, summary.AverageSensationalism, 1e-9)
	assert.InDelta(t, 0.15, summary.AverageClickbait, 1e-9)
	assert.InDelta(t, 0.5, summary.AverageCompositeBias, 1e-9)
	assert.InDelta(t, 0.7, summary.AverageFactRatio, 1e-9)
}

func TestSummarizeEmpty(t *testing.T) {
	detector, err := NewBiasDetector(neutralClassifier())
	require.NoError(t, err)

	summary := detector.Summarize(nil)
	assert.Equal(t, 0, summary.TotalAnalyzed)
	assert.Empty(t, summary.PoliticalDistribution)
}

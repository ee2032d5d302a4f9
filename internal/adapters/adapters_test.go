package adapters

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perspectra/bubblescope/internal/capability"
	"github.com/perspectra/bubblescope/internal/errors"
)

func TestNewHuggingFaceAdapterDefaults(t *testing.T) {
	tests := []struct {
		name              string
		zeroShotModel     string
		emotionModel      string
		embeddingModel    string
		expectedZeroShot  string
		expectedEmotion   string
		expectedEmbedding string
	}{
		{
			name:              "empty models fall back to defaults",
			expectedZeroShot:  DefaultZeroShotModel,
			expectedEmotion:   DefaultEmotionModel,
			expectedEmbedding: DefaultEmbeddingModel,
		},
		{
			name:              "configured models are kept",
			zeroShotModel:     "MoritzLaurer/deberta-v3-large-zeroshot-v2.0",
			emotionModel:      "SamLowe/roberta-base-go_emotions",
			embeddingModel:    "sentence-transformers/all-mpnet-base-v2",
			expectedZeroShot:  "MoritzLaurer/deberta-v3-large-zeroshot-v2.0",
			expectedEmotion:   "SamLowe/roberta-base-go_emotions",
			expectedEmbedding: "sentence-transformers/all-mpnet-base-v2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := NewHuggingFaceAdapter("hf_test_token", tt.zeroShotModel, tt.emotionModel, tt.embeddingModel)
			assert.NotNil(t, adapter)
			assert.Equal(t, "hf_test_token", adapter.token)
			assert.Equal(t, tt.expectedZeroShot, adapter.zeroShotModel)
			assert.Equal(t, tt.expectedEmotion, adapter.emotionModel)
			assert.Equal(t, tt.expectedEmbedding, adapter.embeddingModel)
		})
	}
}

func TestParseTextClassification(t *testing.T) {
	candidates := []string{"anger", "disgust", "fear", "joy", "love", "neutral", "sadness", "surprise"}

	t.Run("projects model labels onto candidates ranked by score", func(t *testing.T) {
		body := []byte(`[[{"label":"joy","score":0.71},{"label":"neutral","score":0.2},{"label":"anger","score":0.09}]]`)
		scores, err := parseTextClassification(body, candidates)
		require.NoError(t, err)
		require.Len(t, scores, len(candidates))

		assert.Equal(t, capability.LabelScore{Label: "joy", Score: 0.71}, scores[0])
		assert.Equal(t, capability.LabelScore{Label: "neutral", Score: 0.2}, scores[1])
		assert.Equal(t, capability.LabelScore{Label: "anger", Score: 0.09}, scores[2])
		// Labels the model never emits score zero.
		for _, s := range scores[3:] {
			assert.Equal(t, 0.0, s.Score)
		}
	})

	t.Run("label matching is case insensitive", func(t *testing.T) {
		body := []byte(`[[{"label":"JOY","score":0.9}]]`)
		scores, err := parseTextClassification(body, []string{"joy", "fear"})
		require.NoError(t, err)
		assert.Equal(t, capability.LabelScore{Label: "joy", Score: 0.9}, scores[0])
	})

	t.Run("empty response is a capability error", func(t *testing.T) {
		_, err := parseTextClassification([]byte(`[]`), candidates)
		require.Error(t, err)
		assert.True(t, errors.IsCapabilityUnavailable(err))
	})

	t.Run("malformed response is a capability error", func(t *testing.T) {
		_, err := parseTextClassification([]byte(`{"error":"model loading"}`), candidates)
		require.Error(t, err)
		assert.True(t, errors.IsCapabilityUnavailable(err))
	})
}

func TestHuggingFaceClassifyValidation(t *testing.T) {
	adapter := NewHuggingFaceAdapter("", "", "", "")

	_, err := adapter.Classify(context.Background(), "", []string{"a"}, false)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidInput(err))

	_, err = adapter.Classify(context.Background(), "some text", nil, false)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidInput(err))
}

func TestHuggingFaceEmbedValidation(t *testing.T) {
	adapter := NewHuggingFaceAdapter("", "", "", "")

	_, err := adapter.Embed(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidInput(err))
}

func TestNewVoyageAdapterDefaults(t *testing.T) {
	adapter := NewVoyageAdapter("test_key", "")
	assert.NotNil(t, adapter)
	assert.Equal(t, DefaultVoyageModel, adapter.model)

	adapter = NewVoyageAdapter("test_key", "voyage-3-large")
	assert.Equal(t, "voyage-3-large", adapter.model)
}

func TestNewOpenAIAdapterDefaults(t *testing.T) {
	adapter := NewOpenAIAdapter("sk-test", "")
	assert.NotNil(t, adapter)
	assert.Equal(t, DefaultOpenAIModel, adapter.model)
}

func TestParseLabelScores(t *testing.T) {
	labels := []string{"liberal progressive left-wing", "moderate centrist", "conservative right-wing"}

	t.Run("single label normalizes to sum 1", func(t *testing.T) {
		content := `{"liberal progressive left-wing": 0.6, "moderate centrist": 0.3, "conservative right-wing": 0.1}`
		scores, err := parseLabelScores(content, labels, false)
		require.NoError(t, err)
		require.Len(t, scores, 3)

		total := 0.0
		for _, s := range scores {
			total += s.Score
		}
		assert.InDelta(t, 1.0, total, 1e-9)
		assert.Equal(t, "liberal progressive left-wing", scores[0].Label)
	})

	t.Run("multi label keeps raw scores", func(t *testing.T) {
		content := `{"liberal progressive left-wing": 0.9, "moderate centrist": 0.8, "conservative right-wing": 0.7}`
		scores, err := parseLabelScores(content, labels, true)
		require.NoError(t, err)
		assert.Equal(t, capability.LabelScore{Label: "liberal progressive left-wing", Score: 0.9}, scores[0])
		assert.Equal(t, capability.LabelScore{Label: "conservative right-wing", Score: 0.7}, scores[2])
	})

	t.Run("omitted labels score zero", func(t *testing.T) {
		content := `{"moderate centrist": 0.5}`
		scores, err := parseLabelScores(content, labels, true)
		require.NoError(t, err)
		assert.Equal(t, "moderate centrist", scores[0].Label)
		assert.Equal(t, 0.0, scores[1].Score)
		assert.Equal(t, 0.0, scores[2].Score)
	})

	t.Run("out of range scores are clamped", func(t *testing.T) {
		content := `{"moderate centrist": 1.7, "conservative right-wing": -0.3}`
		scores, err := parseLabelScores(content, labels, true)
		require.NoError(t, err)
		assert.Equal(t, 1.0, scores[0].Score)
		for _, s := range scores[1:] {
			assert.Equal(t, 0.0, s.Score)
		}
	})

	t.Run("fenced response still parses", func(t *testing.T) {
		content := "```json\n{\"moderate centrist\": 0.5}\n```"
		scores, err := parseLabelScores(content, labels, true)
		require.NoError(t, err)
		assert.Equal(t, 0.5, scores[0].Score)
	})

	t.Run("non JSON response is a capability error", func(t *testing.T) {
		_, err := parseLabelScores("I cannot classify this.", labels, false)
		require.Error(t, err)
		assert.True(t, errors.IsCapabilityUnavailable(err))
	})
}

func TestExtractJSONObject(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, extractJSONObject(`Here you go: {"a": 1} done`))
	assert.Equal(t, `{"a": 1}`, extractJSONObject(`{"a": 1}`))
	assert.Equal(t, "no braces here", extractJSONObject("no braces here"))
}

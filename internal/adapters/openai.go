package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/perspectra/bubblescope/internal/capability"
	"github.com/perspectra/bubblescope/internal/errors"
)

// DefaultOpenAIModel is the chat model used for classification when none is
// configured.
const DefaultOpenAIModel = "gpt-4o-mini"

const classificationSystemPrompt = `You are a text classification engine. ` +
	`Given a text and a list of candidate labels, score how well each label ` +
	`applies to the text on a scale from 0.0 to 1.0. Respond with only a JSON ` +
	`object mapping each candidate label to its score. No explanation.`

// OpenAIAdapter serves the text classification capability through a chat
// completion prompt. Scores come back as a JSON object keyed by label.
type OpenAIAdapter struct {
	client openai.Client
	model  string
}

// NewOpenAIAdapter creates an adapter for the OpenAI chat API. An empty model
// name falls back to the default.
func NewOpenAIAdapter(apiKey, model string) *OpenAIAdapter {
	if model == "" {
		model = DefaultOpenAIModel
	}

	return &OpenAIAdapter{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Classify scores candidate labels against the text. When multiLabel is
// false the scores are normalized to sum to 1, matching the softmax contract
// of a single-label classifier.
func (o *OpenAIAdapter) Classify(ctx context.Context, text string, candidateLabels []string, multiLabel bool) ([]capability.LabelScore, error) {
	if text == "" {
		return nil, errors.NewInvalidInputError("text must not be empty", nil)
	}
	if len(candidateLabels) == 0 {
		return nil, errors.NewInvalidInputError("candidate labels must not be empty", nil)
	}

	userPrompt := fmt.Sprintf("Text:\n%s\n\nCandidate labels: %s", text, strings.Join(candidateLabels, ", "))

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(classificationSystemPrompt),
			openai.UserMessage(userPrompt),
		},
	})
	if err != nil {
		return nil, errors.NewCapabilityUnavailableError("classifier", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.NewCapabilityUnavailableError("classifier", fmt.Errorf("chat completion returned no choices"))
	}

	return parseLabelScores(resp.Choices[0].Message.Content, candidateLabels, multiLabel)
}

// parseLabelScores decodes the model's JSON object into ordered label scores.
// Labels the model omitted score 0; labels it invented are ignored.
func parseLabelScores(content string, candidateLabels []string, multiLabel bool) ([]capability.LabelScore, error) {
	raw := extractJSONObject(content)

	var scored map[string]float64
	if err := json.Unmarshal([]byte(raw), &scored); err != nil {
		return nil, errors.NewCapabilityUnavailableError("classifier", fmt.Errorf("failed to decode classification response: %w", err))
	}

	scores := make([]capability.LabelScore, len(candidateLabels))
	total := 0.0
	for i, label := range candidateLabels {
		s := scored[label]
		if s < 0 {
			s = 0
		}
		if s > 1 {
			s = 1
		}
		scores[i] = capability.LabelScore{Label: label, Score: s}
		total += s
	}

	if !multiLabel && total > 0 {
		for i := range scores {
			scores[i].Score /= total
		}
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})

	return scores, nil
}

// extractJSONObject strips wrapping prose or code fences around a JSON object
func extractJSONObject(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		return content[start : end+1]
	}
	return content
}

package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/perspectra/bubblescope/internal/capability"
	"github.com/perspectra/bubblescope/internal/errors"
	"github.com/perspectra/bubblescope/internal/resilience"
)

const (
	hfInferenceBaseURL = "https://api-inference.huggingface.co/models"

	// DefaultZeroShotModel is the zero-shot classification model used when
	// none is configured.
	DefaultZeroShotModel = "facebook/bart-large-mnli"

	// DefaultEmotionModel is the dedicated emotion classification model used
	// for multi-label emotion scoring when none is configured.
	DefaultEmotionModel = "j-hartmann/emotion-english-distilroberta-base"

	// DefaultEmbeddingModel is the sentence embedding model used when none
	// is configured.
	DefaultEmbeddingModel = "sentence-transformers/all-MiniLM-L6-v2"
)

// zeroShotRequest is the Inference API payload for zero-shot classification
type zeroShotRequest struct {
	Inputs     string             `json:"inputs"`
	Parameters zeroShotParameters `json:"parameters"`
	Options    inferenceOptions   `json:"options"`
}

type zeroShotParameters struct {
	CandidateLabels []string `json:"candidate_labels"`
	MultiLabel      bool     `json:"multi_label"`
}

type inferenceOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

// zeroShotResponse is the Inference API result for zero-shot classification.
// Labels and Scores are parallel, sorted by descending score.
type zeroShotResponse struct {
	Sequence string    `json:"sequence"`
	Labels   []string  `json:"labels"`
	Scores   []float64 `json:"scores"`
}

// textClassificationRequest is the Inference API payload for a dedicated
// classification model, which scores against its own trained label set.
type textClassificationRequest struct {
	Inputs  string           `json:"inputs"`
	Options inferenceOptions `json:"options"`
}

// textClassificationScore is one (label, score) pair from a dedicated
// classification model. The API nests them one ranked list per input.
type textClassificationScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// embeddingRequest is the Inference API payload for feature extraction
type embeddingRequest struct {
	Inputs  []string         `json:"inputs"`
	Options inferenceOptions `json:"options"`
}

// HuggingFaceAdapter calls the HuggingFace Inference API. It serves both the
// text classification and the embedding capability, each against its own
// model. Single-label requests go through zero-shot classification;
// multi-label requests go to the dedicated emotion classification model.
type HuggingFaceAdapter struct {
	token          string
	zeroShotModel  string
	emotionModel   string
	embeddingModel string
	pool           *resilience.ConnectionPool
	retryConfig    resilience.RetryConfig
}

// NewHuggingFaceAdapter creates an adapter with connection pooling and a
// circuit breaker. Empty model names fall back to the defaults.
func NewHuggingFaceAdapter(token, zeroShotModel, emotionModel, embeddingModel string) *HuggingFaceAdapter {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		SuccessThreshold: 3,
	})

	pool := resilience.NewConnectionPool(10, 20, 30*time.Second, cb)

	if zeroShotModel == "" {
		zeroShotModel = DefaultZeroShotModel
	}
	if emotionModel == "" {
		emotionModel = DefaultEmotionModel
	}
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}

	return &HuggingFaceAdapter{
		token:          token,
		zeroShotModel:  zeroShotModel,
		emotionModel:   emotionModel,
		embeddingModel: embeddingModel,
		pool:           pool,
		retryConfig:    resilience.InferenceRetryConfig(),
	}
}

// Classify scores a text against the candidate labels. Single-label requests
// use the zero-shot model with the candidates as hypotheses; multi-label
// requests run the dedicated emotion model and project its output onto the
// candidates.
func (h *HuggingFaceAdapter) Classify(ctx context.Context, text string, candidateLabels []string, multiLabel bool) ([]capability.LabelScore, error) {
	if text == "" {
		return nil, errors.NewInvalidInputError("text must not be empty", nil)
	}
	if len(candidateLabels) == 0 {
		return nil, errors.NewInvalidInputError("candidate labels must not be empty", nil)
	}

	if multiLabel {
		return h.classifyEmotion(ctx, text, candidateLabels)
	}

	payload, err := json.Marshal(zeroShotRequest{
		Inputs: text,
		Parameters: zeroShotParameters{
			CandidateLabels: candidateLabels,
			MultiLabel:      multiLabel,
		},
		Options: inferenceOptions{WaitForModel: true},
	})
	if err != nil {
		return nil, errors.NewInternalError("failed to encode classification request", err)
	}

	body, err := h.callModel(ctx, h.zeroShotModel, string(payload))
	if err != nil {
		return nil, err
	}

	var result zeroShotResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, errors.NewCapabilityUnavailableError("classifier", fmt.Errorf("failed to decode classification response: %w", err))
	}
	if len(result.Labels) != len(result.Scores) {
		return nil, errors.NewCapabilityUnavailableError("classifier", fmt.Errorf("classification response has %d labels but %d scores", len(result.Labels), len(result.Scores)))
	}

	scores := make([]capability.LabelScore, len(result.Labels))
	for i, label := range result.Labels {
		scores[i] = capability.LabelScore{Label: label, Score: result.Scores[i]}
	}

	return scores, nil
}

// classifyEmotion runs the dedicated emotion classification model.
func (h *HuggingFaceAdapter) classifyEmotion(ctx context.Context, text string, candidateLabels []string) ([]capability.LabelScore, error) {
	payload, err := json.Marshal(textClassificationRequest{
		Inputs:  text,
		Options: inferenceOptions{WaitForModel: true},
	})
	if err != nil {
		return nil, errors.NewInternalError("failed to encode emotion classification request", err)
	}

	body, err := h.callModel(ctx, h.emotionModel, string(payload))
	if err != nil {
		return nil, err
	}

	return parseTextClassification(body, candidateLabels)
}

// parseTextClassification decodes a dedicated-model response and projects it
// onto the requested candidate labels. Candidates the model never emits score
// zero; model labels outside the candidate set are dropped. The result is
// ranked by descending score.
func parseTextClassification(body []byte, candidateLabels []string) ([]capability.LabelScore, error) {
	var ranked [][]textClassificationScore
	if err := json.Unmarshal(body, &ranked); err != nil {
		return nil, errors.NewCapabilityUnavailableError("classifier", fmt.Errorf("failed to decode classification response: %w", err))
	}
	if len(ranked) == 0 {
		return nil, errors.NewCapabilityUnavailableError("classifier", fmt.Errorf("classification response is empty"))
	}

	modelScores := make(map[string]float64, len(ranked[0]))
	for _, s := range ranked[0] {
		modelScores[strings.ToLower(s.Label)] = s.Score
	}

	scores := make([]capability.LabelScore, len(candidateLabels))
	for i, label := range candidateLabels {
		scores[i] = capability.LabelScore{Label: label, Score: modelScores[strings.ToLower(label)]}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })

	return scores, nil
}

// Embed computes one embedding vector per input text
func (h *HuggingFaceAdapter) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, errors.NewInvalidInputError("texts must not be empty", nil)
	}

	payload, err := json.Marshal(embeddingRequest{
		Inputs:  texts,
		Options: inferenceOptions{WaitForModel: true},
	})
	if err != nil {
		return nil, errors.NewInternalError("failed to encode embedding request", err)
	}

	body, err := h.callModel(ctx, h.embeddingModel, string(payload))
	if err != nil {
		return nil, err
	}

	var embeddings [][]float64
	if err := json.Unmarshal(body, &embeddings); err != nil {
		return nil, errors.NewCapabilityUnavailableError("embedder", fmt.Errorf("failed to decode embedding response: %w", err))
	}
	if len(embeddings) != len(texts) {
		return nil, errors.NewCapabilityUnavailableError("embedder", fmt.Errorf("embedding response has %d vectors for %d texts", len(embeddings), len(texts)))
	}

	return embeddings, nil
}

// callModel posts a payload to the Inference API and returns the response body
func (h *HuggingFaceAdapter) callModel(ctx context.Context, model, payload string) ([]byte, error) {
	url := fmt.Sprintf("%s/%s", hfInferenceBaseURL, model)

	headers := map[string]string{
		"Content-Type": "application/json",
	}
	if h.token != "" {
		headers["Authorization"] = "Bearer " + h.token
	}

	resp, err := resilience.RetryHTTP(ctx, h.retryConfig, func() (*http.Response, error) {
		return h.pool.DoRequest(ctx, "POST", url, headers, payload)
	})
	if resp == nil {
		return nil, errors.NewNetworkError("huggingface inference request failed", err)
	}
	// Exhausted retries still carry the final response; map it by status below.
	defer errors.SafeClose(resp.Body, "huggingface response body")

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewNetworkError("failed to read huggingface response", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, errors.NewCapabilityUnavailableError("huggingface", fmt.Errorf("authentication rejected: status %d, body: %s", resp.StatusCode, string(body)))
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errors.NewRateLimitError(resp.Header.Get("Retry-After"))
	case resp.StatusCode == http.StatusServiceUnavailable:
		return nil, errors.NewCapabilityUnavailableError("huggingface", fmt.Errorf("model unavailable: status %d, body: %s", resp.StatusCode, string(body)))
	default:
		return nil, errors.NewNetworkError(fmt.Sprintf("huggingface API error: status %d, body: %s", resp.StatusCode, string(body)), nil)
	}
}

// GetPoolStats returns connection pool statistics
func (h *HuggingFaceAdapter) GetPoolStats() map[string]interface{} {
	return h.pool.GetStats()
}

// Close closes the connection pool
func (h *HuggingFaceAdapter) Close() error {
	return h.pool.Close()
}

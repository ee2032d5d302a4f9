package adapters

import (
	"context"
	"fmt"

	"github.com/austinfhunter/voyageai"

	"github.com/perspectra/bubblescope/internal/errors"
)

const (
	// DefaultVoyageModel is the Voyage embedding model used when none is
	// configured.
	DefaultVoyageModel = "voyage-3.5-lite"

	voyageEmbeddingDimensions = 1024
	voyageInputTypeDocument   = "document"
)

// VoyageAdapter serves the embedding capability from the Voyage AI API
type VoyageAdapter struct {
	client *voyageai.VoyageClient
	model  string
}

// NewVoyageAdapter creates an adapter for Voyage AI. An empty model name
// falls back to the default.
func NewVoyageAdapter(apiKey, model string) *VoyageAdapter {
	if model == "" {
		model = DefaultVoyageModel
	}

	return &VoyageAdapter{
		client: voyageai.NewClient(&voyageai.VoyageClientOpts{
			Key: apiKey,
		}),
		model: model,
	}
}

// Embed computes one embedding vector per input text
func (v *VoyageAdapter) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, errors.NewInvalidInputError("texts must not be empty", nil)
	}

	inputType := voyageInputTypeDocument
	dimensions := voyageEmbeddingDimensions
	result, err := v.client.Embed(texts, v.model, &voyageai.EmbeddingRequestOpts{
		InputType:       &inputType,
		OutputDimension: &dimensions,
	})
	if err != nil {
		return nil, errors.NewCapabilityUnavailableError("embedder", err)
	}
	if len(result.Data) != len(texts) {
		return nil, errors.NewCapabilityUnavailableError("embedder", fmt.Errorf("embedding response has %d vectors for %d texts", len(result.Data), len(texts)))
	}

	embeddings := make([][]float64, len(result.Data))
	for i, item := range result.Data {
		vec := make([]float64, len(item.Embedding))
		for j, value := range item.Embedding {
			vec[j] = float64(value)
		}
		embeddings[i] = vec
	}

	return embeddings, nil
}

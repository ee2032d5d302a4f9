// Package capability defines the external ML capabilities the analyzers
// depend on. Concrete providers live in internal/adapters; analyzers receive
// a handle at construction time and never check for availability at runtime.
package capability

import "context"

// LabelScore is one ranked classification outcome.
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Embedder turns a batch of texts into dense vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// TextClassifier classifies a text against candidate labels and returns
// (label, score) pairs ranked by score. With multiLabel set, scores are
// independent per label; otherwise they form a distribution.
type TextClassifier interface {
	Classify(ctx context.Context, text string, candidateLabels []string, multiLabel bool) ([]LabelScore, error)
}

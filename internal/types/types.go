package types

import "time"

// ContentItem represents a single piece of recommended content collected for
// a persona. Items are produced by the collector and are read-only here.
type ContentItem struct {
	ID            string                 `json:"id"`
	Text          string                 `json:"text"`
	Source        string                 `json:"source"`
	Timestamp     time.Time              `json:"timestamp"`
	Upvotes       float64                `json:"upvotes"`
	CommentsCount float64                `json:"comments_count"`
	ViewsCount    float64                `json:"views_count"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// AnalysisType identifies which analyzer produced a stored result.
type AnalysisType string

const (
	AnalysisBias        AnalysisType = "bias"
	AnalysisDiversity   AnalysisType = "diversity"
	AnalysisEchoChamber AnalysisType = "echo_chamber"
)

// BiasRequest is the request body for the bias analysis endpoint.
type BiasRequest struct {
	Texts []string `json:"texts" binding:"required"`
}

// DiversityRequest is the request body for the diversity analysis endpoint.
type DiversityRequest struct {
	Items        []ContentItem `json:"items" binding:"required"`
	TopicLabels  []string      `json:"topic_labels,omitempty"`
	StanceLabels []string      `json:"stance_labels,omitempty"`
}

// EchoChamberRequest is the request body for the echo chamber endpoint.
type EchoChamberRequest struct {
	Texts                []string           `json:"texts" binding:"required"`
	Stances              []string           `json:"stances,omitempty"`
	ExpectedDistribution map[string]float64 `json:"expected_distribution,omitempty"`
}

// JobRequest enqueues a background analysis for a persona.
type JobRequest struct {
	PersonaID            string             `json:"persona_id" binding:"required"`
	AnalysisType         AnalysisType       `json:"analysis_type" binding:"required"`
	Items                []ContentItem      `json:"items" binding:"required"`
	TopicLabels          []string           `json:"topic_labels,omitempty"`
	StanceLabels         []string           `json:"stance_labels,omitempty"`
	Stances              []string           `json:"stances,omitempty"`
	ExpectedDistribution map[string]float64 `json:"expected_distribution,omitempty"`
}

package database

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Job statuses.
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Job represents a submitted batch analysis job
type Job struct {
	ID           string    `json:"id" db:"id"`
	AnalysisType string    `json:"analysis_type" db:"analysis_type"`
	Status       string    `json:"status" db:"status"`
	Error        string    `json:"error,omitempty" db:"error"`
	PersonaCount int       `json:"persona_count" db:"persona_count"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// AnalysisResult stores one analyzer output for one persona within a job.
// Result holds the analyzer's JSON payload verbatim.
type AnalysisResult struct {
	ID           string          `json:"id" db:"id"`
	JobID        string          `json:"job_id" db:"job_id"`
	PersonaID    string          `json:"persona_id" db:"persona_id"`
	AnalysisType string          `json:"analysis_type" db:"analysis_type"`
	Result       json.RawMessage `json:"result" db:"result"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// NewJob creates a new pending job with generated ID
func NewJob(analysisType string, personaCount int) *Job {
	now := time.Now()
	return &Job{
		ID:           uuid.New().String(),
		AnalysisType: analysisType,
		Status:       JobStatusPending,
		PersonaCount: personaCount,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NewAnalysisResult creates a new result record with generated ID
func NewAnalysisResult(jobID, personaID, analysisType string, result json.RawMessage) *AnalysisResult {
	return &AnalysisResult{
		ID:           uuid.New().String(),
		JobID:        jobID,
		PersonaID:    personaID,
		AnalysisType: analysisType,
		Result:       result,
		CreatedAt:    time.Now(),
	}
}

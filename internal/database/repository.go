package database

import (
	"database/sql"
	"fmt"
	"time"
)

// Repository handles database operations for jobs and analysis results
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// CreateJob persists a new job record
func (r *Repository) CreateJob(job *Job) error {
	stmt, err := r.db.GetPreparedStatement("insert_job")
	if err != nil {
		return err
	}

	_, err = stmt.Exec(job.ID, job.AnalysisType, job.Status, job.Error, job.PersonaCount, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// UpdateJobStatus transitions a job to a new status. The error message is
// cleared unless the job failed.
func (r *Repository) UpdateJobStatus(jobID, status, errMsg string) error {
	stmt, err := r.db.GetPreparedStatement("update_job_status")
	if err != nil {
		return err
	}

	if status != JobStatusFailed {
		errMsg = ""
	}

	_, err = stmt.Exec(status, errMsg, time.Now(), jobID)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	return nil
}

// GetJob returns a job by ID, or nil when not found
func (r *Repository) GetJob(jobID string) (*Job, error) {
	stmt, err := r.db.GetPreparedStatement("get_job")
	if err != nil {
		return nil, err
	}

	var job Job
	err = stmt.QueryRow(jobID).Scan(
		&job.ID, &job.AnalysisType, &job.Status, &job.Error,
		&job.PersonaCount, &job.CreatedAt, &job.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// SaveResult upserts one analyzer output for a persona within a job
func (r *Repository) SaveResult(result *AnalysisResult) error {
	stmt, err := r.db.GetPreparedStatement("insert_result")
	if err != nil {
		return err
	}

	_, err = stmt.Exec(result.ID, result.JobID, result.PersonaID, result.AnalysisType, string(result.Result), result.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save analysis result: %w", err)
	}

	return nil
}

// GetResult returns one analyzer output, or nil when not found
func (r *Repository) GetResult(jobID, personaID, analysisType string) (*AnalysisResult, error) {
	stmt, err := r.db.GetPreparedStatement("get_result")
	if err != nil {
		return nil, err
	}

	var result AnalysisResult
	var payload string
	err = stmt.QueryRow(jobID, personaID, analysisType).Scan(
		&result.ID, &result.JobID, &result.PersonaID, &result.AnalysisType,
		&payload, &result.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis result: %w", err)
	}

	result.Result = []byte(payload)
	return &result, nil
}

// GetJobResults returns all results for a job ordered by persona
func (r *Repository) GetJobResults(jobID string) ([]*AnalysisResult, error) {
	stmt, err := r.db.GetPreparedStatement("get_job_results")
	if err != nil {
		return nil, err
	}

	rows, err := stmt.Query(jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get job results: %w", err)
	}
	defer rows.Close()

	var results []*AnalysisResult
	for rows.Next() {
		var result AnalysisResult
		var payload string
		if err := rows.Scan(
			&result.ID, &result.JobID, &result.PersonaID, &result.AnalysisType,
			&payload, &result.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan job result: %w", err)
		}
		result.Result = []byte(payload)
		results = append(results, &result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate job results: %w", err)
	}

	return results, nil
}

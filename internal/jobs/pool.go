package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/perspectra/bubblescope/internal/analysis"
	"github.com/perspectra/bubblescope/internal/database"
	"github.com/perspectra/bubblescope/internal/errors"
	"github.com/perspectra/bubblescope/internal/monitoring"
	"github.com/perspectra/bubblescope/internal/types"
)

const (
	defaultQueueSize  = 256
	defaultJobTimeout = 5 * time.Minute
)

// BiasJobResult bundles per-item scores with the corpus summary so a single
// stored row carries the complete bias picture for a persona.
type BiasJobResult struct {
	Results []analysis.BiasAnalysisResult `json:"results"`
	Summary analysis.CorpusSummary        `json:"summary"`
}

type job struct {
	id  string
	req types.JobRequest
}

// Pool runs persona analyses on a bounded set of workers. Each submitted job
// covers exactly one (persona, analysis type) pair and either completes as a
// whole or fails as a whole; partial results are never stored. Analyzer
// handles are shared read-only across workers.
type Pool struct {
	repo      *database.Repository
	bias      *analysis.BiasDetector
	diversity *analysis.DiversityAnalyzer
	echo      *analysis.EchoChamberDetector
	metrics   *monitoring.Metrics
	logger    *monitoring.Logger

	workers    int
	jobTimeout time.Duration
	queue      chan job

	mu      sync.Mutex
	started bool
	stopped bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool builds a pool with the given worker count. A non-positive count
// falls back to the number of CPUs.
func NewPool(
	workers int,
	repo *database.Repository,
	bias *analysis.BiasDetector,
	diversity *analysis.DiversityAnalyzer,
	echo *analysis.EchoChamberDetector,
	metrics *monitoring.Metrics,
	logger *monitoring.Logger,
) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return &Pool{
		repo:       repo,
		bias:       bias,
		diversity:  diversity,
		echo:       echo,
		metrics:    metrics,
		logger:     logger,
		workers:    workers,
		jobTimeout: defaultJobTimeout,
		queue:      make(chan job, defaultQueueSize),
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}

	p.logger.SystemLogger("worker_pool_started", fmt.Sprintf("workers=%d", p.workers))
}

// Stop drains the queue and waits for in-flight jobs to finish. Jobs
// submitted after Stop are rejected.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	p.cancel()
	p.logger.SystemLogger("worker_pool_stopped", "all workers drained")
}

// Submit validates the request, persists a pending job record, and enqueues
// it. The returned job carries the generated ID callers poll with.
func (p *Pool) Submit(req types.JobRequest) (*database.Job, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	// Persist and enqueue under the same lock Stop takes, so a stopped pool
	// never leaves a pending record behind.
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil, errors.NewInternalError("worker pool is shutting down", nil)
	}

	record := database.NewJob(string(req.AnalysisType), 1)
	if err := p.repo.CreateJob(record); err != nil {
		p.mu.Unlock()
		return nil, errors.NewInternalError("failed to create job record", err)
	}

	select {
	case p.queue <- job{id: record.ID, req: req}:
		p.mu.Unlock()
	default:
		p.mu.Unlock()
		if err := p.repo.UpdateJobStatus(record.ID, database.JobStatusFailed, "job queue is full"); err != nil {
			p.logger.SystemLogger("job_status_update_failed", err.Error())
		}
		return nil, errors.NewInternalError("job queue is full", nil)
	}

	p.metrics.IncrementJobsEnqueued()
	p.logger.JobLogger("enqueued", record.ID, string(req.AnalysisType), 1)
	return record, nil
}

func validateRequest(req types.JobRequest) error {
	if req.PersonaID == "" {
		return errors.NewInvalidInputError("persona_id is required")
	}
	if len(req.Items) == 0 {
		return errors.NewInvalidInputError("items must not be empty")
	}
	switch req.AnalysisType {
	case types.AnalysisBias, types.AnalysisDiversity, types.AnalysisEchoChamber:
		return nil
	default:
		return errors.NewInvalidInputError(
			"unknown analysis type",
			fmt.Sprintf("analysis_type=%s", req.AnalysisType),
		)
	}
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for j := range p.queue {
		p.run(ctx, j)
	}
}

func (p *Pool) run(ctx context.Context, j job) {
	defer func() {
		if r := recover(); r != nil {
			p.fail(j, fmt.Sprintf("panic: %v", r))
		}
	}()

	if err := p.repo.UpdateJobStatus(j.id, database.JobStatusRunning, ""); err != nil {
		p.logger.SystemLogger("job_status_update_failed", err.Error())
	}
	p.logger.JobLogger("started", j.id, string(j.req.AnalysisType), 1)

	jobCtx, cancelJob := context.WithTimeout(ctx, p.jobTimeout)
	defer cancelJob()

	payload, err := p.execute(jobCtx, j.req)
	if err != nil {
		p.fail(j, err.Error())
		return
	}

	result := database.NewAnalysisResult(j.id, j.req.PersonaID, string(j.req.AnalysisType), payload)
	if err := p.repo.SaveResult(result); err != nil {
		p.fail(j, err.Error())
		return
	}

	if err := p.repo.UpdateJobStatus(j.id, database.JobStatusCompleted, ""); err != nil {
		p.logger.SystemLogger("job_status_update_failed", err.Error())
	}
	p.metrics.IncrementJobsCompleted()
	p.logger.JobLogger("completed", j.id, string(j.req.AnalysisType), 1)
}

func (p *Pool) fail(j job, message string) {
	if err := p.repo.UpdateJobStatus(j.id, database.JobStatusFailed, message); err != nil {
		p.logger.SystemLogger("job_status_update_failed", err.Error())
	}
	p.metrics.IncrementJobsFailed()
	p.logger.JobLogger("failed", j.id, string(j.req.AnalysisType), 1)
}

func (p *Pool) execute(ctx context.Context, req types.JobRequest) (json.RawMessage, error) {
	switch req.AnalysisType {
	case types.AnalysisBias:
		results, err := p.bias.AnalyzeBatch(ctx, itemTexts(req.Items))
		if err != nil {
			return nil, err
		}
		return marshalResult(BiasJobResult{
			Results: results,
			Summary: p.bias.Summarize(results),
		})

	case types.AnalysisDiversity:
		metrics, err := p.diversity.CalculateMetrics(ctx, req.Items, req.TopicLabels, req.StanceLabels)
		if err != nil {
			return nil, err
		}
		return marshalResult(metrics)

	case types.AnalysisEchoChamber:
		result, err := p.echo.Detect(ctx, itemTexts(req.Items), req.Stances, req.ExpectedDistribution)
		if err != nil {
			return nil, err
		}
		return marshalResult(result)

	default:
		return nil, errors.NewInvalidInputError(
			"unknown analysis type",
			fmt.Sprintf("analysis_type=%s", req.AnalysisType),
		)
	}
}

func marshalResult(v interface{}) (json.RawMessage, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, errors.NewInternalError("failed to encode analysis result", err)
	}
	return payload, nil
}

func itemTexts(items []types.ContentItem) []string {
	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = item.Text
	}
	return texts
}

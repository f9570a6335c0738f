package engine

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/datallboy/execlogs/internal/app"
	"github.com/datallboy/execlogs/internal/domain"
)

// ReasonInterrupted is the failure reason of targets never dispatched
// because the run was interrupted.
const ReasonInterrupted = "skipped: run interrupted"

// Coordinator runs executor jobs on a bounded worker pool.
type Coordinator struct {
	ctx    *app.Context
	runner JobRunner
}

func NewCoordinator(ctx *app.Context, runner JobRunner) *Coordinator {
	return &Coordinator{ctx: ctx, runner: runner}
}

// Run executes one job per target on exactly Concurrency workers and returns
// once every target has an outcome. Cancelling ctx stops dispatching; jobs
// already running finish undisturbed and the rest are reported as skipped.
func (c *Coordinator) Run(ctx context.Context, b Batch) *domain.Report {
	workerCount := b.Concurrency
	if workerCount < 1 {
		workerCount = 1
	}
	if b.RunID == "" {
		b.RunID = ksuid.New().String()
	}

	report := &domain.Report{
		RunID:       b.RunID,
		AppID:       b.AppID,
		TargetDir:   b.TargetDir,
		Concurrency: workerCount,
		StartedAt:   time.Now(),
	}

	c.ctx.Logger.Info("Run %s: %d executors of %s with %d workers", b.RunID, len(b.Targets), b.AppID, workerCount)

	jobs := make(chan ExecutorJob)
	results := make(chan domain.JobOutcome, len(b.Targets))

	// Started jobs must not be cancelled mid-write
	jobCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for w := 1; w <= workerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.worker(jobCtx, jobs, results)
		}()
	}

	go c.dispatchJobs(ctx, b, jobs, results)

	// Collect exactly one outcome per target
	outcomes := make([]domain.JobOutcome, 0, len(b.Targets))
	for len(outcomes) < len(b.Targets) {
		outcomes = append(outcomes, <-results)
	}
	wg.Wait()

	report.Outcomes = outcomes
	report.SortOutcomes()
	report.FinishedAt = time.Now()

	c.ctx.Logger.Info("Run %s: %d of %d executors succeeded", b.RunID, len(report.Succeeded()), report.Total())

	return report
}

// worker pulls jobs from the channel and executes them until the channel is closed
func (c *Coordinator) worker(ctx context.Context, jobs <-chan ExecutorJob, results chan<- domain.JobOutcome) {
	for job := range jobs {
		results <- c.runner.RunJob(ctx, job)
	}
}

// dispatchJobs hands targets to the workers in order. Once ctx is done the
// remaining targets are answered directly with a skipped outcome.
func (c *Coordinator) dispatchJobs(ctx context.Context, b Batch, jobs chan<- ExecutorJob, results chan<- domain.JobOutcome) {
	defer close(jobs)

	for i, t := range b.Targets {
		job := ExecutorJob{AppID: b.AppID, TargetDir: b.TargetDir, Target: t}

		if ctx.Err() != nil {
			c.skip(b.Targets[i:], results)
			return
		}

		select {
		case <-ctx.Done():
			c.skip(b.Targets[i:], results)
			return
		case jobs <- job:
		}
	}
}

func (c *Coordinator) skip(targets []domain.ExecutorTarget, results chan<- domain.JobOutcome) {
	c.ctx.Logger.Warn("Run interrupted: skipping %d executors", len(targets))
	now := time.Now()
	for _, t := range targets {
		results <- domain.JobOutcome{
			ExecutorID: t.ExecutorID,
			Worker:     t.Worker,
			Reason:     ReasonInterrupted,
			Err:        context.Canceled,
			StartedAt:  now,
			FinishedAt: now,
		}
	}
}

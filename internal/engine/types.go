package engine

import (
	"context"

	"github.com/datallboy/execlogs/internal/domain"
)

// ExecutorJob is the unit of work a coordinator worker executes: both
// streams of one executor into TargetDir/<executorId>.
type ExecutorJob struct {
	AppID     string
	TargetDir string
	Target    domain.ExecutorTarget
}

// JobRunner executes one executor job to a terminal outcome. It never
// returns without an outcome.
type JobRunner interface {
	RunJob(ctx context.Context, job ExecutorJob) domain.JobOutcome
}

// Batch is one coordinator run.
type Batch struct {
	RunID       string
	AppID       string
	TargetDir   string
	Targets     []domain.ExecutorTarget
	Concurrency int
}

// streamState tracks the progress of one stream download. total is read
// once from the first page and never re-queried; 0 <= offset <= total.
type streamState struct {
	total  int64
	offset int64
	sink   *Sink
}

func (s *streamState) complete() bool { return s.offset == s.total }

package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/datallboy/execlogs/internal/app"
	"github.com/datallboy/execlogs/internal/domain"
)

// Downloader is the concrete JobRunner: it downloads every stream of one
// executor.
type Downloader struct {
	ctx     *app.Context
	streams *StreamDownloader
}

func NewDownloader(ctx *app.Context, writer *FileWriter) *Downloader {
	var pageSize int64
	if ctx.Config != nil {
		pageSize = ctx.Config.Download.PageSize
	}
	return &Downloader{
		ctx:     ctx,
		streams: NewStreamDownloader(ctx.Fetcher, writer, pageSize, ctx.Logger, ctx.Metrics),
	}
}

// RunJob creates TargetDir/<executorId> and downloads stdout and stderr into
// it concurrently. Both streams are always attempted; the job succeeds only
// if both do.
func (s *Downloader) RunJob(ctx context.Context, job ExecutorJob) domain.JobOutcome {
	t := job.Target
	log := s.ctx.Logger.With(fmt.Sprintf("[executor %d]", t.ExecutorID))

	outcome := domain.JobOutcome{
		ExecutorID: t.ExecutorID,
		Worker:     t.Worker,
		StartedAt:  time.Now(),
	}

	s.ctx.Metrics.RecordJobStart()
	defer func() { s.ctx.Metrics.RecordJobComplete(outcome.Success) }()

	dir := filepath.Join(job.TargetDir, strconv.Itoa(t.ExecutorID))
	if err := os.MkdirAll(dir, 0755); err != nil {
		derr := &domain.DirectoryError{Path: dir, ExecutorID: t.ExecutorID, Err: err}
		log.Error("%v", derr)
		outcome.Err = derr
		outcome.Reason = derr.Error()
		outcome.FinishedAt = time.Now()
		return outcome
	}

	log.Debug("downloading from %s", t.Worker)

	p := pool.NewWithResults[domain.StreamResult]()
	for _, kind := range domain.StreamKinds {
		ep := t.Endpoint(job.AppID, kind)
		path := filepath.Join(dir, string(kind))
		p.Go(func() domain.StreamResult {
			return s.streams.Download(ctx, ep, path)
		})
	}
	results := p.Wait()
	sortStreams(results)

	outcome.Streams = results
	outcome.FinishedAt = time.Now()

	var errs []error
	var reasons []string
	for _, r := range results {
		if r.Succeeded() {
			log.Debug("%s: %d bytes in %d pages", r.Stream, r.BytesWritten, r.Pages)
			continue
		}
		errs = append(errs, r.Err)
		reasons = append(reasons, fmt.Sprintf("%s: %s", r.Stream, r.Error))
	}

	if len(errs) > 0 {
		outcome.Err = errors.Join(errs...)
		outcome.Reason = strings.Join(reasons, "; ")
		log.Error("failed: %s", outcome.Reason)
		return outcome
	}

	outcome.Success = true
	log.Info("downloaded stdout and stderr from %s", t.Worker)
	return outcome
}

// sortStreams restores report order; the pool returns results as they finish.
func sortStreams(results []domain.StreamResult) {
	rank := make(map[domain.StreamKind]int, len(domain.StreamKinds))
	for i, k := range domain.StreamKinds {
		rank[k] = i
	}
	sort.Slice(results, func(i, j int) bool {
		return rank[results[i].Stream] < rank[results[j].Stream]
	})
}

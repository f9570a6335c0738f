package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/datallboy/execlogs/internal/app"
	"github.com/datallboy/execlogs/internal/domain"
)

// Service runs a download end to end: resolve targets, download every
// executor, then package and upload the result.
type Service struct {
	ctx         *app.Context
	coordinator *Coordinator
}

func NewService(ctx *app.Context) *Service {
	return &Service{
		ctx:         ctx,
		coordinator: NewCoordinator(ctx, NewDownloader(ctx, NewFileWriter())),
	}
}

// NewRun creates a pending run for req.
func NewRun(req domain.RunRequest) *domain.Run {
	return &domain.Run{
		ID:        ksuid.New().String(),
		Request:   req,
		Status:    domain.StatusPending,
		CreatedAt: time.Now(),
	}
}

// Download executes req synchronously and records the run. A nil error
// does not mean every executor succeeded; inspect the run status.
func (s *Service) Download(ctx context.Context, req domain.RunRequest) (*domain.Run, error) {
	run := NewRun(req)
	run.Status = domain.StatusRunning
	if err := s.Save(ctx, run); err != nil {
		s.ctx.Logger.Warn("Could not record run %s: %v", run.ID, err)
	}

	report, err := s.Execute(ctx, run.ID, run.Request)
	s.Finish(run, report, err)

	// the run is recorded even when the download was interrupted
	if saveErr := s.Save(context.WithoutCancel(ctx), run); saveErr != nil {
		s.ctx.Logger.Warn("Could not record run %s: %v", run.ID, saveErr)
	}

	return run, err
}

// Execute performs one run. The error is non-nil when targets could not be
// resolved (the report is then nil) or when packaging the finished download
// failed (the report is still returned).
func (s *Service) Execute(ctx context.Context, runID string, req domain.RunRequest) (*domain.Report, error) {
	if req.AppID == "" {
		return nil, errors.New("application id is required")
	}

	targets, err := s.resolveTargets(ctx, req)
	if err != nil {
		return nil, err
	}

	targetDir, err := s.ctx.Config.TargetDir(req.AppID)
	if err != nil {
		return nil, fmt.Errorf("resolve target directory: %w", err)
	}
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create target directory: %w", err)
	}

	report := s.coordinator.Run(ctx, Batch{
		RunID:       runID,
		AppID:       req.AppID,
		TargetDir:   targetDir,
		Targets:     targets,
		Concurrency: s.ctx.Config.Download.Concurrency,
	})

	if err := s.packageReport(ctx, req, report); err != nil {
		return report, err
	}

	s.ctx.Logger.Info("Logs downloaded to %s", targetDir)
	return report, nil
}

// Finish moves run to its terminal status.
func (s *Service) Finish(run *domain.Run, report *domain.Report, err error) {
	run.Report = report
	run.Status = domain.StatusFor(report)

	if err != nil {
		run.Error = err.Error()
		if report == nil {
			run.Status = domain.StatusFailed
		} else if run.Status == domain.StatusCompleted {
			run.Status = domain.StatusPartial
		}
	}

	s.ctx.Metrics.RecordRun(string(run.Status))
}

// Save persists run when a store is configured.
func (s *Service) Save(ctx context.Context, run *domain.Run) error {
	if s.ctx.Store == nil {
		return nil
	}
	return s.ctx.Store.SaveRun(ctx, run)
}

func (s *Service) resolveTargets(ctx context.Context, req domain.RunRequest) ([]domain.ExecutorTarget, error) {
	if len(req.Targets) > 0 {
		return req.Targets, nil
	}

	cfg := s.ctx.Config
	master := req.Master
	if master == "" {
		if len(cfg.Spark.Targets) > 0 {
			return cfg.Spark.Targets, nil
		}
		master = cfg.Spark.Master
	}

	if master == "" {
		return nil, &domain.DiscoveryError{AppID: req.AppID, Err: errors.New("no master address configured")}
	}
	if s.ctx.Discoverer == nil {
		return nil, &domain.DiscoveryError{Master: master, AppID: req.AppID, Err: errors.New("discovery is not available")}
	}

	s.ctx.Logger.Info("Getting information for app %s from %s", req.AppID, master)
	targets, err := s.ctx.Discoverer.Discover(ctx, master, req.AppID)
	if err != nil {
		return nil, err
	}
	s.ctx.Logger.Info("Total executors to get logs from: %d", len(targets))

	return targets, nil
}

func (s *Service) packageReport(ctx context.Context, req domain.RunRequest, report *domain.Report) error {
	name := req.Archive
	if name == "" {
		name = s.ctx.Config.Archive.Name
	}
	if name == "" {
		return nil
	}

	if ctx.Err() != nil {
		s.ctx.Logger.Warn("Run interrupted: not generating archive %s", name)
		return nil
	}
	if s.ctx.Packer == nil {
		return errors.New("archive requested but no packer is configured")
	}

	dest, err := filepath.Abs(name)
	if err != nil {
		return fmt.Errorf("archive %s: %w", name, err)
	}

	s.ctx.Logger.Info("Generating %s archive %s", s.ctx.Packer.Name(), dest)
	if err := s.ctx.Packer.Pack(ctx, report.TargetDir, dest); err != nil {
		return fmt.Errorf("archive %s: %w", dest, err)
	}
	report.ArchivePath = dest

	if s.ctx.Uploader == nil {
		return nil
	}

	location, err := s.ctx.Uploader.Upload(ctx, dest)
	if err != nil {
		return fmt.Errorf("upload %s: %w", dest, err)
	}
	report.UploadURL = location
	s.ctx.Logger.Info("Uploaded archive to %s", location)

	return nil
}

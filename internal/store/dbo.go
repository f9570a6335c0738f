package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/datallboy/execlogs/internal/domain"
)

// runDBO maps to the runs table
type runDBO struct {
	ID          string         `db:"id"`
	AppID       string         `db:"app_id"`
	Master      string         `db:"master"`
	Request     []byte         `db:"request"`
	Status      string         `db:"status"`
	Error       sql.NullString `db:"error"`
	HasReport   bool           `db:"has_report"`
	TargetDir   string         `db:"target_dir"`
	Concurrency int            `db:"concurrency"`
	ArchivePath sql.NullString `db:"archive_path"`
	UploadURL   sql.NullString `db:"upload_url"`
	CreatedAt   int64          `db:"created_at"`
	StartedAt   int64          `db:"started_at"`
	FinishedAt  int64          `db:"finished_at"`
}

// Mapper: DBO to Domain Run. Outcomes are attached separately.
func (r *runDBO) ToDomain() (*domain.Run, error) {
	run := &domain.Run{
		ID:        r.ID,
		Status:    domain.RunStatus(r.Status),
		Error:     r.Error.String,
		CreatedAt: fromMillis(r.CreatedAt),
	}

	if len(r.Request) > 0 {
		if err := json.Unmarshal(r.Request, &run.Request); err != nil {
			return nil, fmt.Errorf("failed to decode request of run %s: %w", r.ID, err)
		}
	}

	if r.HasReport {
		run.Report = &domain.Report{
			RunID:       r.ID,
			AppID:       r.AppID,
			TargetDir:   r.TargetDir,
			Concurrency: r.Concurrency,
			StartedAt:   fromMillis(r.StartedAt),
			FinishedAt:  fromMillis(r.FinishedAt),
			ArchivePath: r.ArchivePath.String,
			UploadURL:   r.UploadURL.String,
		}
	}

	return run, nil
}

// Mapper: Domain Run to DBO
func (r *runDBO) FromDomain(run *domain.Run) error {
	req, err := json.Marshal(run.Request)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	r.ID = run.ID
	r.AppID = run.Request.AppID
	r.Master = run.Request.Master
	r.Request = req
	r.Status = string(run.Status)
	r.Error = nullString(run.Error)
	r.CreatedAt = toMillis(run.CreatedAt)

	r.HasReport = run.Report != nil
	if rep := run.Report; rep != nil {
		r.TargetDir = rep.TargetDir
		r.Concurrency = rep.Concurrency
		r.ArchivePath = nullString(rep.ArchivePath)
		r.UploadURL = nullString(rep.UploadURL)
		r.StartedAt = toMillis(rep.StartedAt)
		r.FinishedAt = toMillis(rep.FinishedAt)
	}

	return nil
}

// outcomeDBO maps to the run_outcomes table
type outcomeDBO struct {
	RunID        string         `db:"run_id"`
	ExecutorID   int            `db:"executor_id"`
	Worker       string         `db:"worker"`
	Success      bool           `db:"success"`
	Reason       sql.NullString `db:"reason"`
	BytesWritten int64          `db:"bytes_written"`
	Streams      []byte         `db:"streams"`
	StartedAt    int64          `db:"started_at"`
	FinishedAt   int64          `db:"finished_at"`
}

func (o *outcomeDBO) ToDomain() (domain.JobOutcome, error) {
	out := domain.JobOutcome{
		ExecutorID: o.ExecutorID,
		Worker:     o.Worker,
		Success:    o.Success,
		Reason:     o.Reason.String,
		StartedAt:  fromMillis(o.StartedAt),
		FinishedAt: fromMillis(o.FinishedAt),
	}
	if len(o.Streams) > 0 {
		if err := json.Unmarshal(o.Streams, &out.Streams); err != nil {
			return out, fmt.Errorf("failed to decode streams of executor %d: %w", o.ExecutorID, err)
		}
	}
	return out, nil
}

func (o *outcomeDBO) FromDomain(runID string, out domain.JobOutcome) error {
	streams := out.Streams
	if streams == nil {
		streams = []domain.StreamResult{}
	}
	data, err := json.Marshal(streams)
	if err != nil {
		return fmt.Errorf("failed to encode streams: %w", err)
	}

	o.RunID = runID
	o.ExecutorID = out.ExecutorID
	o.Worker = out.Worker
	o.Success = out.Success
	o.Reason = nullString(out.Reason)
	o.BytesWritten = out.BytesWritten()
	o.Streams = data
	o.StartedAt = toMillis(out.StartedAt)
	o.FinishedAt = toMillis(out.FinishedAt)
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

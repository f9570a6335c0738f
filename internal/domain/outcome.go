package domain

import (
	"sort"
	"time"
)

// StreamResult describes how far one stream download got.
type StreamResult struct {
	Stream       StreamKind `json:"stream"`
	Path         string     `json:"path"`
	Length       int64      `json:"length"`
	BytesWritten int64      `json:"bytes_written"`
	Pages        int        `json:"pages"`
	Error        string     `json:"error,omitempty"`

	Err error `json:"-"`
}

func (r StreamResult) Succeeded() bool { return r.Err == nil && r.Error == "" }

// JobOutcome is the terminal record of one executor job.
type JobOutcome struct {
	ExecutorID int            `json:"executor_id"`
	Worker     string         `json:"worker"`
	Success    bool           `json:"success"`
	Reason     string         `json:"reason,omitempty"`
	Streams    []StreamResult `json:"streams,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`

	Err error `json:"-"`
}

// BytesWritten sums the bytes written for every stream of the executor.
func (o JobOutcome) BytesWritten() int64 {
	var n int64
	for _, s := range o.Streams {
		n += s.BytesWritten
	}
	return n
}

// Report aggregates the outcomes of one coordinator run.
type Report struct {
	RunID       string       `json:"run_id"`
	AppID       string       `json:"app_id"`
	TargetDir   string       `json:"target_dir"`
	Concurrency int          `json:"concurrency"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at"`
	Outcomes    []JobOutcome `json:"outcomes"`
	ArchivePath string       `json:"archive_path,omitempty"`
	UploadURL   string       `json:"upload_url,omitempty"`
}

func (r *Report) Total() int { return len(r.Outcomes) }

func (r *Report) Succeeded() []JobOutcome {
	var out []JobOutcome
	for _, o := range r.Outcomes {
		if o.Success {
			out = append(out, o)
		}
	}
	return out
}

func (r *Report) Failed() []JobOutcome {
	var out []JobOutcome
	for _, o := range r.Outcomes {
		if !o.Success {
			out = append(out, o)
		}
	}
	return out
}

// Complete reports whether every executor downloaded both streams.
func (r *Report) Complete() bool {
	return len(r.Failed()) == 0
}

func (r *Report) BytesWritten() int64 {
	var n int64
	for _, o := range r.Outcomes {
		n += o.BytesWritten()
	}
	return n
}

// SortOutcomes orders outcomes by executor id, then worker.
func (r *Report) SortOutcomes() {
	sort.Slice(r.Outcomes, func(i, j int) bool {
		a, b := r.Outcomes[i], r.Outcomes[j]
		if a.ExecutorID != b.ExecutorID {
			return a.ExecutorID < b.ExecutorID
		}
		return a.Worker < b.Worker
	})
}

package domain

import (
	"time"
)

type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed" // every executor succeeded
	StatusPartial   RunStatus = "partial"   // finished, some executors failed
	StatusFailed    RunStatus = "failed"    // discovery or setup failed, nothing downloaded
)

// Finished reports whether the status is terminal.
func (s RunStatus) Finished() bool {
	return s == StatusCompleted || s == StatusPartial || s == StatusFailed
}

// RunRequest describes one download of an application's executor logs.
// Targets, when set, bypass discovery on the master.
type RunRequest struct {
	AppID   string           `json:"app_id"`
	Master  string           `json:"master,omitempty"`
	Targets []ExecutorTarget `json:"targets,omitempty"`
	Archive string           `json:"archive,omitempty"`
}

// Run is a RunRequest together with its lifecycle and result.
type Run struct {
	ID        string     `json:"id"`
	Request   RunRequest `json:"request"`
	Status    RunStatus  `json:"status"`
	Error     string     `json:"error,omitempty"`
	Report    *Report    `json:"report,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// StatusFor derives the terminal status of a finished report.
func StatusFor(r *Report) RunStatus {
	if r == nil {
		return StatusFailed
	}
	if r.Complete() {
		return StatusCompleted
	}
	return StatusPartial
}

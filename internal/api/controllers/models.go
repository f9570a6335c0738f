package controllers

import (
	"github.com/dustin/go-humanize"

	"github.com/datallboy/execlogs/internal/domain"
)

// -- REQUESTS --
type CreateRunRequest struct {
	AppID   string                  `json:"app_id"`
	Master  string                  `json:"master,omitempty"`
	Archive string                  `json:"archive,omitempty"`
	Targets []domain.ExecutorTarget `json:"targets,omitempty"`
}

func summarize(r *domain.Run) RunSummary {
	s := RunSummary{
		ID:        r.ID,
		AppID:     r.Request.AppID,
		Status:    r.Status,
		Error:     r.Error,
		CreatedAt: r.CreatedAt,
	}
	if r.Report != nil {
		s.Total = r.Report.Total()
		s.Succeeded = len(r.Report.Succeeded())
		s.Failed = len(r.Report.Failed())
		s.BytesWritten = r.Report.BytesWritten()
	}
	s.Size = humanize.IBytes(uint64(s.BytesWritten))
	return s
}

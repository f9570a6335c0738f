package controllers

import (
	"time"

	"github.com/datallboy/execlogs/internal/domain"
)

// -- RESPONSES --
type RunSummary struct {
	ID           string           `json:"id"`
	AppID        string           `json:"app_id"`
	Status       domain.RunStatus `json:"status"`
	Error        string           `json:"error,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	Total        int              `json:"total"`
	Succeeded    int              `json:"succeeded"`
	Failed       int              `json:"failed"`
	BytesWritten int64            `json:"bytes_written"`
	Size         string           `json:"size"`
}

type RunDetail struct {
	RunSummary
	Request domain.RunRequest `json:"request"`
	Report  *domain.Report    `json:"report,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v5"

	"github.com/datallboy/execlogs/internal/app"
	"github.com/datallboy/execlogs/internal/domain"
	"github.com/datallboy/execlogs/internal/engine"
)

const defaultListLimit = 50

// RunQueue is the part of the engine queue the API drives.
type RunQueue interface {
	Add(ctx context.Context, req domain.RunRequest) (*domain.Run, error)
	Get(ctx context.Context, id string) (*domain.Run, bool)
	List(ctx context.Context, limit int) ([]*domain.Run, error)
}

type RunsController struct {
	App   *app.Context
	Queue RunQueue
}

// Create queues a download run
func (ctrl *RunsController) Create(c *echo.Context) error {
	var body CreateRunRequest
	dec := json.NewDecoder(c.Request().Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body: " + err.Error()})
	}

	run, err := ctrl.Queue.Add(c.Request().Context(), domain.RunRequest{
		AppID:   body.AppID,
		Master:  body.Master,
		Archive: body.Archive,
		Targets: body.Targets,
	})
	if err != nil {
		if errors.Is(err, engine.ErrInvalidRequest) {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		}
		ctrl.App.Logger.Error("Failed to queue run for %s: %v", body.AppID, err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to queue run"})
	}

	return c.JSON(http.StatusAccepted, summarize(run))
}

// List returns the most recent runs, live ones included
func (ctrl *RunsController) List(c *echo.Context) error {
	limit := defaultListLimit
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
		}
		limit = n
	}

	runs, err := ctrl.Queue.List(c.Request().Context(), limit)
	if err != nil {
		ctrl.App.Logger.Error("Failed to list runs: %v", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to list runs"})
	}

	out := make([]RunSummary, 0, len(runs))
	for _, r := range runs {
		out = append(out, summarize(r))
	}
	return c.JSON(http.StatusOK, out)
}

// Get returns one run with its executor outcomes
func (ctrl *RunsController) Get(c *echo.Context) error {
	run, ok := ctrl.Queue.Get(c.Request().Context(), c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "run not found"})
	}

	return c.JSON(http.StatusOK, RunDetail{
		RunSummary: summarize(run),
		Request:    run.Request,
		Report:     run.Report,
	})
}

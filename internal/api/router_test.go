package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datallboy/execlogs/internal/api/controllers"
	"github.com/datallboy/execlogs/internal/app"
	"github.com/datallboy/execlogs/internal/domain"
	"github.com/datallboy/execlogs/internal/engine"
	"github.com/datallboy/execlogs/internal/infra/config"
	"github.com/datallboy/execlogs/internal/infra/logger"
	"github.com/datallboy/execlogs/internal/infra/metrics"
)

type fakeQueue struct {
	runs    map[string]*domain.Run
	added   []domain.RunRequest
	listErr error
	limit   int
}

func (q *fakeQueue) Add(_ context.Context, req domain.RunRequest) (*domain.Run, error) {
	if req.AppID == "" {
		return nil, errors.Join(engine.ErrInvalidRequest, errors.New("app_id is required"))
	}
	q.added = append(q.added, req)
	run := &domain.Run{ID: "run-new", Request: req, Status: domain.StatusPending, CreatedAt: time.Now()}
	q.runs[run.ID] = run
	return run, nil
}

func (q *fakeQueue) Get(_ context.Context, id string) (*domain.Run, bool) {
	r, ok := q.runs[id]
	return r, ok
}

func (q *fakeQueue) List(_ context.Context, limit int) ([]*domain.Run, error) {
	q.limit = limit
	if q.listErr != nil {
		return nil, q.listErr
	}
	var out []*domain.Run
	for _, r := range q.runs {
		out = append(out, r)
	}
	return out, nil
}

func newTestServer(t *testing.T) (*echo.Echo, *fakeQueue) {
	t.Helper()

	appCtx := app.NewContext(&config.Config{}, logger.Nop())
	appCtx.Metrics = metrics.New("execlogs")
	appCtx.Metrics.RecordRun("completed")

	q := &fakeQueue{runs: map[string]*domain.Run{
		"run-1": {
			ID:      "run-1",
			Request: domain.RunRequest{AppID: "app-1"},
			Status:  domain.StatusPartial,
			Report: &domain.Report{
				AppID: "app-1",
				Outcomes: []domain.JobOutcome{
					{ExecutorID: 0, Success: true, Streams: []domain.StreamResult{{Stream: domain.Stdout, BytesWritten: 2048}}},
					{ExecutorID: 1, Reason: "stdout: boom"},
				},
			},
		},
	}}

	e := echo.New()
	RegisterRoutes(e, appCtx, q)
	return e, q
}

func serve(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCreateRun(t *testing.T) {
	e, q := newTestServer(t)

	rec := serve(e, http.MethodPost, "/api/runs",
		`{"app_id":"app-2","targets":[{"worker":"http://w1:8081","executor_id":3}]}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var got controllers.RunSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "run-new", got.ID)
	assert.Equal(t, "app-2", got.AppID)
	assert.Equal(t, domain.StatusPending, got.Status)

	require.Len(t, q.added, 1)
	assert.Equal(t, []domain.ExecutorTarget{{Worker: "http://w1:8081", ExecutorID: 3}}, q.added[0].Targets)
}

func TestCreateRunRejectsBadInput(t *testing.T) {
	e, q := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"app_id":`},
		{"unknown field", `{"app_id":"a","bogus":1}`},
		{"missing app id", `{"master":"http://m:8080"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(e, http.MethodPost, "/api/runs", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var got controllers.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.NotEmpty(t, got.Error)
		})
	}
	assert.Empty(t, q.added)
}

func TestListRuns(t *testing.T) {
	e, q := newTestServer(t)

	rec := serve(e, http.MethodGet, "/api/runs?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, q.limit)

	var got []controllers.RunSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Total)
	assert.Equal(t, 1, got[0].Succeeded)
	assert.Equal(t, 1, got[0].Failed)
	assert.EqualValues(t, 2048, got[0].BytesWritten)
	assert.Equal(t, "2.0 KiB", got[0].Size)
}

func TestListRunsErrors(t *testing.T) {
	e, q := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, serve(e, http.MethodGet, "/api/runs?limit=zero", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(e, http.MethodGet, "/api/runs?limit=0", "").Code)

	q.listErr = errors.New("database is locked")
	assert.Equal(t, http.StatusInternalServerError, serve(e, http.MethodGet, "/api/runs", "").Code)
}

func TestGetRun(t *testing.T) {
	e, _ := newTestServer(t)

	rec := serve(e, http.MethodGet, "/api/runs/run-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got controllers.RunDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "run-1", got.ID)
	assert.Equal(t, domain.StatusPartial, got.Status)
	require.NotNil(t, got.Report)
	assert.Len(t, got.Report.Outcomes, 2)
	assert.Equal(t, "stdout: boom", got.Report.Outcomes[1].Reason)

	rec = serve(e, http.MethodGet, "/api/runs/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	e, _ := newTestServer(t)

	rec := serve(e, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `execlogs_runs_total{status="completed"} 1`)
}

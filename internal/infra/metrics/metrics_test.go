package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	m := New("execlogs")

	m.RecordPage("stdout", 20*time.Millisecond)
	m.RecordPage("stdout", 30*time.Millisecond)
	m.RecordFetchError("stderr")
	m.RecordWrite("stdout", 1024)
	m.RecordJobStart()
	m.RecordJobStart()
	m.RecordJobComplete(true)
	m.RecordRun("partial")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PagesFetched.WithLabelValues("stdout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchErrors.WithLabelValues("stderr")))
	assert.Equal(t, 1024.0, testutil.ToFloat64(m.BytesWritten.WithLabelValues("stdout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsRunning))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("partial")))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.RecordPage("stdout", time.Second)
	m.RecordFetchError("stdout")
	m.RecordWrite("stdout", 1)
	m.RecordJobStart()
	m.RecordJobComplete(false)
	m.RecordRun("failed")
}

func TestHandler(t *testing.T) {
	m := New("execlogs")
	m.RecordRun("completed")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `execlogs_runs_total{status="completed"} 1`)
}

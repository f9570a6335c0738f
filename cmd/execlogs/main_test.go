package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datallboy/execlogs/internal/domain"
	"github.com/datallboy/execlogs/internal/sparkui/sparkuitest"
)

const testApp = "app-20160106184227-0006"

type testEnv struct {
	master *sparkuitest.Master
	worker *sparkuitest.Worker
	config string
	dir    string
}

func newTestEnv(t *testing.T, storeDriver string) *testEnv {
	t.Helper()

	env := &testEnv{
		master: sparkuitest.NewMaster(),
		worker: sparkuitest.NewWorker(),
		dir:    t.TempDir(),
	}
	t.Cleanup(env.master.Close)
	t.Cleanup(env.worker.Close)

	for id := 0; id < 3; id++ {
		env.worker.SetLog(testApp, id, domain.Stdout, strings.Repeat("o", 10*(id+1)))
		env.worker.SetLog(testApp, id, domain.Stderr, strings.Repeat("e", 7))
	}
	env.master.SetExecutors(testApp,
		domain.ExecutorTarget{Worker: env.worker.URL, ExecutorID: 0},
		domain.ExecutorTarget{Worker: env.worker.URL, ExecutorID: 1},
		domain.ExecutorTarget{Worker: env.worker.URL, ExecutorID: 2},
	)

	cfg := "log:\n  include_stdout: false\nstore:\n  driver: " + storeDriver + "\n"
	if storeDriver == "sqlite" {
		cfg += "  dsn: " + filepath.Join(t.TempDir(), "execlogs.db") + "\n"
	}
	env.config = filepath.Join(t.TempDir(), "execlogs.yaml")
	require.NoError(t, os.WriteFile(env.config, []byte(cfg), 0644))

	return env
}

func (env *testEnv) run(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), append([]string{"--config", env.config}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func (env *testEnv) download(extra ...string) (int, string, string) {
	args := []string{"download", "-m", env.master.URL, "-a", testApp, "-d", env.dir, "-t", "2", "--page-size", "4"}
	return env.run(append(args, extra...)...)
}

func TestDownloadCommandSucceeds(t *testing.T) {
	env := newTestEnv(t, "none")

	code, out, errOut := env.download()
	require.Equal(t, exitOK, code, errOut)
	assert.Contains(t, out, "Executors: 3 total, 3 succeeded, 0 failed")
	assert.Contains(t, out, "Bytes written: 81 B")

	data, err := os.ReadFile(filepath.Join(env.dir, testApp, "2", "stdout"))
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("o", 30), string(data))

	// 30 bytes in pages of 4
	assert.Len(t, env.worker.Requests(2, domain.Stdout), 8)
}

func TestDownloadCommandKeepsNoHistoryByDefault(t *testing.T) {
	env := newTestEnv(t, "none")
	// a config without a store section
	require.NoError(t, os.WriteFile(env.config, []byte("log:\n  include_stdout: false\n"), 0644))
	t.Chdir(t.TempDir())

	code, _, errOut := env.download()
	require.Equal(t, exitOK, code, errOut)

	_, err := os.Stat("execlogs.db")
	assert.True(t, os.IsNotExist(err))

	// history still defaults to the sqlite database
	code, _, errOut = env.run("history")
	assert.Equal(t, exitOK, code, errOut)
}

func TestDownloadCommandWritesArchiveAndReport(t *testing.T) {
	env := newTestEnv(t, "none")
	archivePath := filepath.Join(t.TempDir(), "logs.zip")
	reportPath := filepath.Join(t.TempDir(), "report.json")

	code, out, errOut := env.download("-z", archivePath, "--report", reportPath)
	require.Equal(t, exitOK, code, errOut)
	assert.Contains(t, out, "Archive: "+archivePath)

	_, err := os.Stat(archivePath)
	require.NoError(t, err)

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	var run domain.Run
	require.NoError(t, json.Unmarshal(data, &run))
	assert.Equal(t, domain.StatusCompleted, run.Status)
	require.NotNil(t, run.Report)
	assert.Len(t, run.Report.Outcomes, 3)
}

func TestDownloadCommandPartialFailure(t *testing.T) {
	env := newTestEnv(t, "none")
	env.worker.Fail(testApp, 1, domain.Stderr, http.StatusBadGateway)

	code, out, _ := env.download()
	assert.Equal(t, exitPartial, code)
	assert.Contains(t, out, "Executors: 3 total, 2 succeeded, 1 failed")
	assert.Contains(t, out, "executor 1 (")
	assert.Contains(t, out, "stderr: ")
}

func TestDownloadCommandFailures(t *testing.T) {
	env := newTestEnv(t, "none")

	// no application id
	code, _, errOut := env.run("download", "-m", env.master.URL)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, errOut, "application id is required")

	// unknown application
	code, _, errOut = env.run("download", "-m", env.master.URL, "-a", "app-missing", "-d", env.dir)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, errOut, "Error:")

	// bad flag value
	code, _, _ = env.run("download", "-m", env.master.URL, "-a", testApp, "-t", "-3")
	assert.Equal(t, exitFailure, code)
}

func TestHistoryCommand(t *testing.T) {
	env := newTestEnv(t, "sqlite")

	code, _, errOut := env.download()
	require.Equal(t, exitOK, code, errOut)

	// KSUIDs order by second
	time.Sleep(1100 * time.Millisecond)
	env.worker.Fail(testApp, 0, domain.Stdout, http.StatusInternalServerError)
	code, _, _ = env.download()
	require.Equal(t, exitPartial, code)

	code, out, errOut := env.run("history", "-o", "json")
	require.Equal(t, exitOK, code, errOut)

	var runs []domain.Run
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 2)
	assert.Equal(t, domain.StatusPartial, runs[0].Status)
	assert.Equal(t, domain.StatusCompleted, runs[1].Status)

	code, out, _ = env.run("history", "--limit", "1")
	require.Equal(t, exitOK, code)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "partial")

	code, out, _ = env.run("history", "-o", "yaml")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "app_id: "+testApp)
	assert.Contains(t, out, "status: completed")

	code, _, errOut = env.run("history", "-o", "xml")
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, errOut, "unknown output format")
}

func TestHistoryWithoutStore(t *testing.T) {
	env := newTestEnv(t, "none")

	code, _, errOut := env.run("history")
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, errOut, "no run history")
}

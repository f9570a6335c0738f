// Package sparkuitest provides in-process fakes of the Spark master and
// worker web UIs for tests.
package sparkuitest

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/datallboy/execlogs/internal/domain"
)

// DefaultByteLength is what a worker serves when byteLength is omitted.
const DefaultByteLength = 100 * 1024

type streamKey struct {
	AppID      string
	ExecutorID int
	Stream     string
}

// Request records one /logPage call.
type Request struct {
	AppID      string
	ExecutorID int
	Stream     string
	Offset     int64
	ByteLength int64
}

// Worker serves /logPage for the streams registered on it.
type Worker struct {
	*httptest.Server

	mu       sync.Mutex
	logs     map[streamKey]string
	failures map[streamKey]int
	requests []Request
}

func NewWorker() *Worker {
	w := &Worker{
		logs:     make(map[streamKey]string),
		failures: make(map[streamKey]int),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/logPage", w.serveLogPage)
	w.Server = httptest.NewServer(mux)
	return w
}

// SetLog registers the full content of a stream.
func (w *Worker) SetLog(appID string, executorID int, stream domain.StreamKind, content string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.logs[streamKey{appID, executorID, string(stream)}] = content
}

// Fail makes every request for the stream answer with status.
func (w *Worker) Fail(appID string, executorID int, stream domain.StreamKind, status int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failures[streamKey{appID, executorID, string(stream)}] = status
}

// Requests returns the calls made for one stream, in arrival order.
func (w *Worker) Requests(executorID int, stream domain.StreamKind) []Request {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []Request
	for _, r := range w.requests {
		if r.ExecutorID == executorID && r.Stream == string(stream) {
			out = append(out, r)
		}
	}
	return out
}

func (w *Worker) serveLogPage(rw http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	executorID, err := strconv.Atoi(q.Get("executorId"))
	if err != nil {
		http.Error(rw, "bad executorId", http.StatusBadRequest)
		return
	}
	offset := int64(0)
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.ParseInt(v, 10, 64); err != nil {
			http.Error(rw, "bad offset", http.StatusBadRequest)
			return
		}
	}
	byteLength := int64(DefaultByteLength)
	if v := q.Get("byteLength"); v != "" {
		if byteLength, err = strconv.ParseInt(v, 10, 64); err != nil {
			http.Error(rw, "bad byteLength", http.StatusBadRequest)
			return
		}
	}

	key := streamKey{q.Get("appId"), executorID, q.Get("logType")}

	w.mu.Lock()
	w.requests = append(w.requests, Request{
		AppID:      key.AppID,
		ExecutorID: executorID,
		Stream:     key.Stream,
		Offset:     offset,
		ByteLength: byteLength,
	})
	status, failing := w.failures[key]
	content, ok := w.logs[key]
	w.mu.Unlock()

	if failing {
		http.Error(rw, "injected failure", status)
		return
	}
	if !ok {
		http.Error(rw, "no such log", http.StatusNotFound)
		return
	}

	rw.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(rw, LogPageHTML(content, offset, byteLength))
}

// LogPageHTML renders the window [offset, offset+byteLength) of content the
// way a worker does.
func LogPageHTML(content string, offset, byteLength int64) string {
	total := int64(len(content))
	start := min(max(offset, 0), total)
	end := min(start+byteLength, total)

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html><html><head><title>Log page</title></head><body>")
	sb.WriteString(`<div class="row-fluid"><div class="span12">`)
	fmt.Fprintf(&sb, `<span style="float:left;">Bytes %d-%d of %d</span>`, start, end, total)
	sb.WriteString(`<div class="log-content" style="height:80%; overflow:auto; padding:5px;">`)
	sb.WriteString("<pre>")
	sb.WriteString(html.EscapeString(content[start:end]))
	sb.WriteString("</pre></div></div></div></body></html>")
	return sb.String()
}

// Master serves /app for a fixed set of executors.
type Master struct {
	*httptest.Server

	mu        sync.Mutex
	apps      map[string][]domain.ExecutorTarget
	requested []string
}

func NewMaster() *Master {
	m := &Master{apps: make(map[string][]domain.ExecutorTarget)}
	mux := http.NewServeMux()
	mux.HandleFunc("/app", m.serveApp)
	m.Server = httptest.NewServer(mux)
	return m
}

// SetExecutors registers the executor table of an application.
func (m *Master) SetExecutors(appID string, targets ...domain.ExecutorTarget) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apps[appID] = targets
}

// Requested lists the application ids asked for so far.
func (m *Master) Requested() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.requested...)
}

func (m *Master) serveApp(rw http.ResponseWriter, r *http.Request) {
	appID := r.URL.Query().Get("appId")

	m.mu.Lock()
	m.requested = append(m.requested, appID)
	targets, ok := m.apps[appID]
	m.mu.Unlock()

	if !ok {
		http.Error(rw, "Application not found", http.StatusNotFound)
		return
	}

	rw.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(rw, AppPageHTML(targets))
}

// AppPageHTML renders an application page listing targets in the executor summary table.
func AppPageHTML(targets []domain.ExecutorTarget) string {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html><html><body><h4>Executor Summary</h4>")
	sb.WriteString("<table><thead><tr><th>ExecutorID</th><th>Worker</th><th>Cores</th><th>Logs</th></tr></thead><tbody>")
	for _, t := range targets {
		fmt.Fprintf(&sb,
			`<tr><td>%d</td><td><a href="%s">worker</a></td><td>1</td><td><a href="%s/logPage?executorId=%d&amp;logType=stdout">stdout</a></td></tr>`,
			t.ExecutorID, html.EscapeString(t.Worker), html.EscapeString(t.Worker), t.ExecutorID)
	}
	sb.WriteString("</tbody></table><h4>Removed Executors</h4><table><thead><tr><th>ExecutorID</th></tr></thead><tbody></tbody></table>")
	sb.WriteString("</body></html>")
	return sb.String()
}

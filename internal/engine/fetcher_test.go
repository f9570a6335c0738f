package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/datallboy/execlogs/internal/app"
	"github.com/datallboy/execlogs/internal/domain"
	"github.com/datallboy/execlogs/internal/infra/config"
	"github.com/datallboy/execlogs/internal/infra/logger"
)

const testApp = "app-20160106184227-0006"

var errConnReset = errors.New("connection reset by peer")

type fakeStream struct {
	content   string
	total     int64 // reported length, len(content) when negative
	omitTotal bool
	failAt    int64 // offset that fails, none when negative
	shortAt   map[int64]int
}

type fetchCall struct {
	Endpoint domain.Endpoint
	Offset   int64
	MaxBytes int64
}

// fakeFetcher serves in-memory streams and records every call.
type fakeFetcher struct {
	mu      sync.Mutex
	streams map[domain.Endpoint]*fakeStream
	calls   []fetchCall
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{streams: make(map[domain.Endpoint]*fakeStream)}
}

func (f *fakeFetcher) set(ep domain.Endpoint, s *fakeStream) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streams[ep] = s
}

// setLog registers a well-behaved stream.
func (f *fakeFetcher) setLog(ep domain.Endpoint, content string) {
	f.set(ep, &fakeStream{content: content, total: -1, failAt: -1})
}

func (f *fakeFetcher) Fetch(ctx context.Context, ep domain.Endpoint, offset, maxBytes int64) (domain.Page, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fetchCall{Endpoint: ep, Offset: offset, MaxBytes: maxBytes})
	s, ok := f.streams[ep]
	f.mu.Unlock()

	fail := func(err error) (domain.Page, error) {
		return domain.Page{}, &domain.TransferError{
			Worker: ep.Worker, ExecutorID: ep.ExecutorID, Stream: ep.Stream, Offset: offset, Err: err,
		}
	}

	if !ok {
		return fail(errors.New("worker returned status: 404"))
	}
	if s.failAt >= 0 && offset == s.failAt {
		return fail(errConnReset)
	}

	size := int64(len(s.content))
	start := min(offset, size)
	end := min(start+maxBytes, size)
	text := s.content[start:end]
	if n, short := s.shortAt[offset]; short && n < len(text) {
		text = text[:n]
	}

	page := domain.Page{Text: text}
	if offset == 0 && !s.omitTotal {
		page.HasTotal = true
		page.Total = s.total
		if s.total < 0 {
			page.Total = size
		}
	}
	return page, nil
}

// offsets returns the requested offsets of one endpoint in call order.
func (f *fakeFetcher) offsets(ep domain.Endpoint) []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []int64
	for _, c := range f.calls {
		if c.Endpoint == ep {
			out = append(out, c.Offset)
		}
	}
	return out
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func testEndpoint(worker string, id int, kind domain.StreamKind) domain.Endpoint {
	return domain.Endpoint{Worker: worker, AppID: testApp, ExecutorID: id, Stream: kind}
}

// logContent builds n bytes of recognisable, non-repeating-per-page text.
func logContent(n int) string {
	var sb strings.Builder
	sb.Grow(n + 64)
	for i := 0; sb.Len() < n; i++ {
		sb.WriteString("INFO line ")
		sb.WriteString(strings.Repeat("x", i%17))
		sb.WriteString("\n")
	}
	return sb.String()[:n]
}

func testContext(t *testing.T, fetcher app.PageFetcher, pageSize int64) *app.Context {
	t.Helper()
	cfg := &config.Config{}
	cfg.Download.Dir = t.TempDir()
	cfg.Download.PageSize = pageSize
	cfg.Download.Concurrency = 2

	ctx := app.NewContext(cfg, logger.Nop())
	ctx.Fetcher = fetcher
	return ctx
}

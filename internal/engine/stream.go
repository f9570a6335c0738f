package engine

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/datallboy/execlogs/internal/app"
	"github.com/datallboy/execlogs/internal/domain"
	"github.com/datallboy/execlogs/internal/infra/config"
	"github.com/datallboy/execlogs/internal/infra/logger"
	"github.com/datallboy/execlogs/internal/infra/metrics"
)

// StreamDownloader copies one remote stream into one local file, page by page.
type StreamDownloader struct {
	fetcher  app.PageFetcher
	writer   *FileWriter
	pageSize int64
	log      *logger.Logger
	metrics  *metrics.Metrics
}

func NewStreamDownloader(fetcher app.PageFetcher, writer *FileWriter, pageSize int64, log *logger.Logger, m *metrics.Metrics) *StreamDownloader {
	if pageSize <= 0 {
		pageSize = config.DefaultPageSize
	}
	if log == nil {
		log = logger.Nop()
	}
	return &StreamDownloader{
		fetcher:  fetcher,
		writer:   writer,
		pageSize: pageSize,
		log:      log,
		metrics:  m,
	}
}

// Download fetches ep into path. The page at offset 0 provides the stream
// length L and the first window of content, so the transfer costs
// ceil(L/pageSize) fetches, or exactly one when L is 0. Bytes appended
// remotely after that first page are not fetched.
func (d *StreamDownloader) Download(ctx context.Context, ep domain.Endpoint, path string) domain.StreamResult {
	res := domain.StreamResult{Stream: ep.Stream, Path: path}
	fail := func(err error) domain.StreamResult {
		res.Err = err
		res.Error = err.Error()
		return res
	}

	page, err := d.fetch(ctx, ep, 0)
	if err != nil {
		return fail(err)
	}
	res.Pages = 1

	if !page.HasTotal {
		return fail(&domain.TransferError{
			Worker:     ep.Worker,
			ExecutorID: ep.ExecutorID,
			Stream:     ep.Stream,
			Offset:     0,
			Err:        domain.ErrMissingLength,
		})
	}

	st := &streamState{total: page.Total}
	res.Length = st.total
	d.log.Debug("%s: %d bytes to download", ep, st.total)

	if st.total == 0 {
		if err := d.writer.CreateEmpty(path); err != nil {
			return fail(d.sinkError(ep, path, "create", err))
		}
		return res
	}

	st.sink, err = d.writer.Open(path)
	if err != nil {
		return fail(d.sinkError(ep, path, "open", err))
	}

	for {
		text := page.Text
		// the stream may have grown since the first page; keep the snapshot
		// and never end it inside a multi-byte character
		if rem := st.total - st.offset; int64(len(text)) > rem {
			cut := int(rem)
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			text = text[:cut]
		}

		n, err := st.sink.WriteString(text)
		res.BytesWritten += int64(n)
		d.metrics.RecordWrite(string(ep.Stream), n)
		if err != nil {
			_ = st.sink.Close()
			return fail(d.sinkError(ep, path, "write", err))
		}

		next := min(st.offset+d.pageSize, st.total)
		if next < st.total && int64(len(text)) < d.pageSize {
			d.log.Warn("%s: short page at offset %d (%d of %d bytes), continuing at %d",
				ep, st.offset, len(text), d.pageSize, next)
		}
		st.offset = next

		if st.complete() {
			break
		}

		page, err = d.fetch(ctx, ep, st.offset)
		if err != nil {
			_ = st.sink.Close()
			return fail(err)
		}
		res.Pages++
	}

	if err := st.sink.Close(); err != nil {
		return fail(d.sinkError(ep, path, "close", err))
	}

	if res.BytesWritten != st.total {
		d.log.Warn("%s: wrote %d bytes, worker reported %d", ep, res.BytesWritten, st.total)
	}

	return res
}

func (d *StreamDownloader) fetch(ctx context.Context, ep domain.Endpoint, offset int64) (domain.Page, error) {
	start := time.Now()
	page, err := d.fetcher.Fetch(ctx, ep, offset, d.pageSize)
	if err != nil {
		d.metrics.RecordFetchError(string(ep.Stream))
		return domain.Page{}, err
	}
	d.metrics.RecordPage(string(ep.Stream), time.Since(start))
	return page, nil
}

func (d *StreamDownloader) sinkError(ep domain.Endpoint, path, op string, err error) error {
	return &domain.SinkError{
		Path:       path,
		Op:         op,
		ExecutorID: ep.ExecutorID,
		Stream:     ep.Stream,
		Err:        err,
	}
}

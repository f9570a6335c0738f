// Package sparkui talks to the web UI of a Spark standalone cluster: the
// master's application page for discovery and each worker's log pages for
// content. All HTML handling lives here.
package sparkui

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/datallboy/execlogs/internal/domain"
)

type Options struct {
	// HTTPClient defaults to a client without a global timeout
	HTTPClient *http.Client

	// Timeout bounds one page fetch. Zero disables it.
	Timeout time.Duration

	// RequestsPerSecond caps requests across every caller of the client.
	// Zero means unlimited.
	RequestsPerSecond float64
	Burst             int
}

// Client fetches log pages from workers. It is safe for concurrent use and
// keeps no state apart from the shared rate limiter.
type Client struct {
	http    *http.Client
	timeout time.Duration
	limiter *rate.Limiter
}

func NewClient(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}

	c := &Client{http: hc, timeout: opts.Timeout}

	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return c
}

// Fetch returns at most maxBytes of the stream starting at offset. The page
// at offset 0 always reports the stream length. Failures are never retried.
func (c *Client) Fetch(ctx context.Context, ep domain.Endpoint, offset, maxBytes int64) (domain.Page, error) {
	fail := func(err error) (domain.Page, error) {
		return domain.Page{}, &domain.TransferError{
			Worker:     ep.Worker,
			ExecutorID: ep.ExecutorID,
			Stream:     ep.Stream,
			Offset:     offset,
			Err:        err,
		}
	}

	if offset < 0 {
		return fail(fmt.Errorf("negative offset %d", offset))
	}
	if maxBytes <= 0 {
		return fail(fmt.Errorf("page size must be positive, got %d", maxBytes))
	}

	pageURL, err := logPageURL(ep, offset, maxBytes)
	if err != nil {
		return fail(err)
	}

	if err := c.wait(ctx); err != nil {
		return fail(err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return fail(err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fail(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(fmt.Errorf("worker returned status: %d", resp.StatusCode))
	}

	lp, err := parseLogPage(resp.Body)
	if err != nil {
		return fail(err)
	}

	return domain.Page{Text: lp.Text, Total: lp.Total, HasTotal: lp.HasTotal}, nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return ctx.Err()
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	return nil
}

// logPageURL builds
// {worker}/logPage?appId=..&executorId=..&logType=..&offset=..&byteLength=..
func logPageURL(ep domain.Endpoint, offset, maxBytes int64) (string, error) {
	base := strings.TrimRight(ep.Worker, "/")
	if base == "" {
		return "", errors.New("empty worker address")
	}
	u, err := url.Parse(base + "/logPage")
	if err != nil {
		return "", fmt.Errorf("invalid worker address %q: %w", ep.Worker, err)
	}

	q := url.Values{}
	q.Set("appId", ep.AppID)
	q.Set("executorId", strconv.Itoa(ep.ExecutorID))
	q.Set("logType", string(ep.Stream))
	q.Set("offset", strconv.FormatInt(offset, 10))
	q.Set("byteLength", strconv.FormatInt(maxBytes, 10))
	u.RawQuery = q.Encode()

	return u.String(), nil
}

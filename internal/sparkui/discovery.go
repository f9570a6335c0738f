package sparkui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/datallboy/execlogs/internal/domain"
)

// Discoverer lists the executors of an application from the master UI.
type Discoverer struct {
	http *http.Client
}

func NewDiscoverer(hc *http.Client) *Discoverer {
	if hc == nil {
		hc = &http.Client{}
	}
	return &Discoverer{http: hc}
}

// Discover reads {master}app?appId=.. and returns one target per executor row
// of every table on the page (active and removed executors alike). Any
// failure, including an application without executors, is a DiscoveryError.
func (d *Discoverer) Discover(ctx context.Context, master, appID string) ([]domain.ExecutorTarget, error) {
	fail := func(err error) ([]domain.ExecutorTarget, error) {
		return nil, &domain.DiscoveryError{Master: master, AppID: appID, Err: err}
	}

	if master == "" {
		return fail(errors.New("empty master address"))
	}
	if !strings.HasSuffix(master, "/") {
		master += "/"
	}

	base, err := url.Parse(master)
	if err != nil {
		return fail(fmt.Errorf("invalid master address: %w", err))
	}
	appURL := base.ResolveReference(&url.URL{Path: "app", RawQuery: url.Values{"appId": {appID}}.Encode()})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, appURL.String(), nil)
	if err != nil {
		return fail(err)
	}

	resp, err := d.http.Do(req)
	if err != nil {
		return fail(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(fmt.Errorf("master returned status: %d", resp.StatusCode))
	}

	targets, err := parseAppPage(resp.Body, appURL)
	if err != nil {
		return fail(err)
	}
	if len(targets) == 0 {
		return fail(domain.ErrNoExecutors)
	}

	return targets, nil
}

// parseAppPage walks table > tbody > tr. The first cell of a row holds the
// executor id and the first link points at the worker UI.
func parseAppPage(r io.Reader, base *url.URL) ([]domain.ExecutorTarget, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse application page: %w", err)
	}

	var targets []domain.ExecutorTarget
	seen := make(map[domain.ExecutorTarget]bool)

	for _, table := range findAll(doc, isElement(atom.Table)) {
		for _, tbody := range children(table, atom.Tbody) {
			for _, row := range children(tbody, atom.Tr) {
				t, err := parseExecutorRow(row, base)
				if err != nil {
					return nil, err
				}
				if seen[t] {
					continue
				}
				seen[t] = true
				targets = append(targets, t)
			}
		}
	}

	return targets, nil
}

func parseExecutorRow(row *html.Node, base *url.URL) (domain.ExecutorTarget, error) {
	cells := children(row, atom.Td)
	if len(cells) == 0 {
		return domain.ExecutorTarget{}, errors.New("executor row without cells")
	}

	idText := strings.TrimSpace(textContent(cells[0]))
	id, err := strconv.Atoi(idText)
	if err != nil || id < 0 {
		return domain.ExecutorTarget{}, fmt.Errorf("invalid executor id %q", idText)
	}

	link := findFirst(row, isElement(atom.A))
	if link == nil {
		return domain.ExecutorTarget{}, fmt.Errorf("executor %d has no worker link", id)
	}
	href, _ := attr(link, "href")
	href = strings.TrimSpace(href)
	if href == "" {
		return domain.ExecutorTarget{}, fmt.Errorf("executor %d has an empty worker link", id)
	}

	ref, err := url.Parse(href)
	if err != nil {
		return domain.ExecutorTarget{}, fmt.Errorf("executor %d: invalid worker link %q: %w", id, href, err)
	}

	worker := base.ResolveReference(ref)
	worker.RawQuery = ""
	worker.Fragment = ""

	return domain.ExecutorTarget{
		Worker:     strings.TrimRight(worker.String(), "/"),
		ExecutorID: id,
	}, nil
}

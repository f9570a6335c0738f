package sparkui

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/datallboy/execlogs/internal/domain"
)

// logPage is the parsed form of a worker's /logPage response.
type logPage struct {
	Text     string
	Total    int64
	HasTotal bool
}

// parseLogPage extracts the log window and the "Bytes a-b of N" length marker.
// The window is the raw text of the first <pre> with entities decoded and
// every other byte untouched, carriage returns included. It is tokenized
// rather than tree-parsed because tree construction drops a newline directly
// after <pre>. A page without a <pre> is an error, not an empty window.
func parseLogPage(r io.Reader) (logPage, error) {
	var (
		page      logPage
		content   strings.Builder
		span      strings.Builder
		preDepth  int
		preSeen   bool
		preDone   bool
		spanDepth int
	)

	z := html.NewTokenizer(r)
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return logPage{}, fmt.Errorf("parse log page: %w", err)
			}
			if !preSeen {
				return logPage{}, domain.ErrMalformedPage
			}
			page.Text = content.String()
			return page, nil

		case html.StartTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Pre:
				if !preDone {
					preSeen = true
					preDepth++
				}
			case atom.Span:
				if spanDepth == 0 {
					span.Reset()
				}
				spanDepth++
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Pre:
				if preDepth > 0 {
					preDepth--
					if preDepth == 0 {
						preDone = true
					}
				}
			case atom.Span:
				if spanDepth == 0 {
					continue
				}
				spanDepth--
				if spanDepth == 0 && !page.HasTotal && strings.Contains(span.String(), "Bytes") {
					total, err := parseByteMarker(span.String())
					if err != nil {
						return logPage{}, err
					}
					page.Total = total
					page.HasTotal = true
				}
			}

		case html.TextToken:
			if preDepth > 0 {
				// Text() folds \r\n into \n
				content.WriteString(html.UnescapeString(string(z.Raw())))
			}
			if spanDepth > 0 {
				span.Write(z.Text())
			}
		}
	}
}

// parseByteMarker reads N out of "Bytes 0-1048576 of 2500000".
func parseByteMarker(s string) (int64, error) {
	idx := strings.LastIndex(s, " of ")
	if idx < 0 {
		return 0, fmt.Errorf("malformed length marker %q", strings.TrimSpace(s))
	}

	field := strings.Fields(s[idx+len(" of "):])
	if len(field) == 0 {
		return 0, fmt.Errorf("malformed length marker %q", strings.TrimSpace(s))
	}

	total, err := strconv.ParseInt(field[0], 10, 64)
	if err != nil || total < 0 {
		return 0, fmt.Errorf("malformed length marker %q", strings.TrimSpace(s))
	}
	return total, nil
}

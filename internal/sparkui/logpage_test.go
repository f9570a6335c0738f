package sparkui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datallboy/execlogs/internal/domain"
	"github.com/datallboy/execlogs/internal/sparkui/sparkuitest"
)

func TestParseLogPage(t *testing.T) {
	body := sparkuitest.LogPageHTML("line one\n  <indented> & done\n", 0, 1024)

	page, err := parseLogPage(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, "line one\n  <indented> & done\n", page.Text)
	assert.True(t, page.HasTotal)
	assert.EqualValues(t, 29, page.Total)
}

func TestParseLogPageKeepsLeadingNewline(t *testing.T) {
	page, err := parseLogPage(strings.NewReader("<span>Bytes 0-6 of 6</span><pre>\nabcde</pre>"))
	require.NoError(t, err)
	assert.Equal(t, "\nabcde", page.Text)
}

func TestParseLogPageKeepsCarriageReturns(t *testing.T) {
	content := "line1\r\nline2 &amp; more\r\n\r"
	page, err := parseLogPage(strings.NewReader(sparkuitest.LogPageHTML(content, 0, 1024)))
	require.NoError(t, err)
	assert.Equal(t, content, page.Text)
	assert.EqualValues(t, len(content), page.Total)
}

func TestParseLogPageWithoutContentBlock(t *testing.T) {
	for _, body := range []string{
		"<html><body>Service Unavailable</body></html>",
		"<span>Bytes 0-10 of 30</span><div>no log here</div>",
		"",
	} {
		_, err := parseLogPage(strings.NewReader(body))
		assert.ErrorIs(t, err, domain.ErrMalformedPage, body)
	}
}

func TestParseLogPageWindow(t *testing.T) {
	content := strings.Repeat("0123456789", 10)
	body := sparkuitest.LogPageHTML(content, 40, 25)

	page, err := parseLogPage(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, content[40:65], page.Text)
	assert.EqualValues(t, 100, page.Total)
}

func TestParseLogPageWithoutMarker(t *testing.T) {
	page, err := parseLogPage(strings.NewReader("<html><body><pre>abc</pre></body></html>"))
	require.NoError(t, err)
	assert.Equal(t, "abc", page.Text)
	assert.False(t, page.HasTotal)
}

func TestParseLogPageEmpty(t *testing.T) {
	page, err := parseLogPage(strings.NewReader(sparkuitest.LogPageHTML("", 0, 1024)))
	require.NoError(t, err)
	assert.Empty(t, page.Text)
	assert.True(t, page.HasTotal)
	assert.Zero(t, page.Total)
}

func TestParseLogPageIgnoresLaterPre(t *testing.T) {
	page, err := parseLogPage(strings.NewReader("<pre>first</pre><pre>second</pre>"))
	require.NoError(t, err)
	assert.Equal(t, "first", page.Text)
}

func TestParseByteMarker(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"Bytes 0-1048576 of 2500000", 2500000, false},
		{"  Bytes 0-0 of 0 ", 0, false},
		{"Bytes 10-20 of 30 bytes total", 30, false},
		{"Bytes of something of 42", 42, false},
		{"Bytes 0-10", 0, true},
		{"Bytes 0-10 of many", 0, true},
		{"Bytes 0-10 of -4", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseByteMarker(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLogPageMalformedMarker(t *testing.T) {
	_, err := parseLogPage(strings.NewReader("<span>Bytes 0-10 of ??</span><pre>x</pre>"))
	assert.ErrorContains(t, err, "malformed length marker")
}

package page

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const careersHTML = `<!doctype html>
<html>
<head><title>Careers</title><style>.x{color:red}</style><script>var tracking = 1;</script></head>
<body>
  <h1>Open roles</h1>
  <ul><li>ML Engineer</li><li>Java Developer</li></ul>
  <p>Python<br>Spark</p>
  <noscript>Enable JavaScript</noscript>
</body>
</html>`

func TestFetch(t *testing.T) {
	var gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.UserAgent()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(careersHTML))
	}))
	defer srv.Close()

	text, err := Fetch(context.Background(), srv.URL+"/careers", Options{UserAgent: "coldmail-test"})
	require.NoError(t, err)

	assert.Equal(t, "coldmail-test", gotAgent)
	assert.Contains(t, text, "Open roles")
	assert.Contains(t, text, "ML Engineer\n")
	assert.Contains(t, text, "Java Developer")
	assert.NotContains(t, text, "ML EngineerJava")
	assert.NotContains(t, text, "PythonSpark")
	assert.NotContains(t, text, "tracking")
	assert.NotContains(t, text, "color:red")
	assert.NotContains(t, text, "Enable JavaScript")
}

func TestFetchDefaultsUserAgent(t *testing.T) {
	var gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.UserAgent()
		_, _ = w.Write([]byte("<p>hi</p>"))
	}))
	defer srv.Close()

	_, err := Fetch(context.Background(), srv.URL, Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultUserAgent, gotAgent)
}

func TestFetchStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := Fetch(context.Background(), srv.URL, Options{})

	var pageErr *Error
	require.ErrorAs(t, err, &pageErr)
	assert.Contains(t, pageErr.Message, "404")
}

func TestFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := Fetch(context.Background(), srv.URL, Options{Timeout: 20 * time.Millisecond})

	var pageErr *Error
	require.ErrorAs(t, err, &pageErr)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestValidateURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		wantErr bool
	}{
		{input: "https://jobs.example.com/careers", wantErr: false},
		{input: "  http://example.com  ", wantErr: false},
		{input: "", wantErr: true},
		{input: "   ", wantErr: true},
		{input: "ftp://example.com", wantErr: true},
		{input: "example.com/careers", wantErr: true},
		{input: "https://", wantErr: true},
		{input: "http://[::1", wantErr: true},
	}

	for _, tt := range tests {
		_, err := ValidateURL(tt.input)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.input)
		} else {
			assert.NoError(t, err, "input %q", tt.input)
		}
	}
}

func TestExtractTextWithoutBody(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader("plain careers text"))
	require.NoError(t, err)
	assert.Equal(t, "plain careers text", ExtractText(doc))
}

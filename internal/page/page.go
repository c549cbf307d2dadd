// Package page downloads a careers page and returns its visible text.
package page

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/spigell/coldmail/internal/logger"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (compatible; coldmail/1.0)"

	maxBodyBytes = 5 << 20
)

// Error is a failed page fetch.
type Error struct {
	URL     string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

type Options struct {
	Timeout   time.Duration
	UserAgent string
	Logger    *zap.Logger
	// Client overrides the default HTTP client.
	Client *http.Client
}

// ValidateURL checks that raw is an absolute http(s) URL.
func ValidateURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, &Error{Message: "url is empty"}
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, &Error{URL: raw, Message: "invalid url", Cause: err}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, &Error{URL: raw, Message: "url must use http or https"}
	}
	if parsed.Host == "" {
		return nil, &Error{URL: raw, Message: "url has no host"}
	}

	return parsed, nil
}

// Fetch downloads rawURL and returns the text of its body with scripts and
// styles removed. Block elements end on a new line so that adjacent items do
// not run together.
func Fetch(ctx context.Context, rawURL string, opts Options) (string, error) {
	target, err := ValidateURL(rawURL)
	if err != nil {
		return "", err
	}
	pageURL := target.String()

	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	log := logger.OrNop(opts.Logger).With(zap.String("url", pageURL))

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", &Error{URL: pageURL, Message: "build request", Cause: err}
	}
	req.Header.Set("User-Agent", opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	started := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", &Error{URL: pageURL, Message: fmt.Sprintf("timed out after %s", opts.Timeout), Cause: err}
		}
		return "", &Error{URL: pageURL, Message: "request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &Error{URL: pageURL, Message: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", &Error{URL: pageURL, Message: "parse html", Cause: err}
	}

	text := ExtractText(doc)
	log.Debug("page fetched",
		zap.Int("status", resp.StatusCode),
		zap.Int("text_length", len(text)),
		zap.Duration("took", time.Since(started)),
	)

	return text, nil
}

// ExtractText returns the visible text of doc's body.
func ExtractText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, template, svg, iframe").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, li, div, section, article, tr, h1, h2, h3, h4, h5, h6").AppendHtml("\n")

	body := doc.Find("body")
	if body.Length() == 0 {
		return strings.TrimSpace(doc.Text())
	}
	return strings.TrimSpace(body.Text())
}

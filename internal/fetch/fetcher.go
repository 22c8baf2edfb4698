// Package fetch implements C1: retrieve HTML for a URL with bounded time
// and size. No pack dependency owns "fetch one bounded URL" better than the
// standard library's http.Client — gocolly/colly is a crawling framework
// with its own scheduling loop, a mismatch for a single bounded fetch per
// insight, so this component is deliberately stdlib.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	connectTimeout = 5 * time.Second
	totalTimeout   = 15 * time.Second
	maxRedirects   = 5
	userAgent      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

var (
	ErrUnreachable = errors.New("fetch: unreachable")
	ErrTimeout     = errors.New("fetch: timeout")
	ErrTooLarge    = errors.New("fetch: too large")
	ErrNotHTML     = errors.New("fetch: not html")
)

type BadStatusError struct {
	Code int
}

func (e *BadStatusError) Error() string {
	return fmt.Sprintf("fetch: bad status %d", e.Code)
}

// Result is the fetcher's successful output.
type Result struct {
	HTML        string
	FinalURL    string
	ContentType string
}

type Fetcher struct {
	client      *http.Client
	maxBodySize int64
}

func New(maxBodySize int64) *Fetcher {
	if maxBodySize <= 0 {
		maxBodySize = 10 << 20 // 10 MB
	}
	return &Fetcher{
		maxBodySize: maxBodySize,
		client: &http.Client{
			Timeout: totalTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("fetch: too many redirects")
				}
				return nil
			},
		},
	}
}

// Fetch retrieves the page at url. Every returned error is non-fatal to the
// caller — the ingestion orchestrator decides whether the insight can still
// be created with only user-provided fields.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, totalTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, ErrUnreachable
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrTimeout
		}
		return nil, ErrUnreachable
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return nil, &BadStatusError{Code: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !isTextual(contentType) {
		return nil, ErrNotHTML
	}

	limited := io.LimitReader(resp.Body, f.maxBodySize+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, ErrUnreachable
	}
	if int64(len(body)) > f.maxBodySize {
		return nil, ErrTooLarge
	}

	finalURL := url
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Result{
		HTML:        string(body),
		FinalURL:    finalURL,
		ContentType: contentType,
	}, nil
}

func isTextual(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") ||
		strings.Contains(ct, "application/xhtml") ||
		strings.Contains(ct, "text/plain")
}

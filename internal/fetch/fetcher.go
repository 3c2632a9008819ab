// File: internal/fetch/fetcher.go
// The static document fetch path used by crawl mode. Plain HTTP with retry
// and backoff; no browser involved.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/xkilldash9x/harvest-cli/internal/config"
)

// ErrNotHTML means the server answered with something other than an HTML
// document.
var ErrNotHTML = errors.New("response is not an HTML document")

// Fetcher downloads pages with retries and exponential backoff.
type Fetcher struct {
	client *resty.Client
	logger *zap.Logger
}

// New builds a Fetcher from the fetch configuration.
func New(cfg config.FetchConfig, logger *zap.Logger) *Fetcher {
	fetchLogger := logger.Named("fetch")

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.MaxRetries - 1).
		SetRetryWaitTime(cfg.RetryDelay).
		SetRetryMaxWaitTime(cfg.RetryDelay * 8).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || (r != nil && r.StatusCode() >= 500)
		}).
		AddRetryHook(func(r *resty.Response, _ error) {
			if r != nil && r.Request != nil {
				fetchLogger.Debug("Retrying request.",
					zap.String("url", r.Request.URL),
					zap.Int("attempt", r.Request.Attempt))
			}
		})

	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}

	return &Fetcher{client: client, logger: fetchLogger}
}

// Page downloads one HTML document. Non-2xx statuses and non-HTML payloads
// are errors; the caller decides whether they fail the crawl.
func (f *Fetcher) Page(ctx context.Context, url string) (string, error) {
	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", url, err)
	}
	if resp.StatusCode() >= 400 {
		return "", fmt.Errorf("fetching %s: unexpected status %d", url, resp.StatusCode())
	}

	contentType := resp.Header().Get("Content-Type")
	if contentType != "" && !isHTMLContentType(contentType) {
		return "", fmt.Errorf("fetching %s: %w (%s)", url, ErrNotHTML, contentType)
	}
	return string(resp.Body()), nil
}

func isHTMLContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

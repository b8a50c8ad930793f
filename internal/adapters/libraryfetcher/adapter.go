// Package libraryfetcher scrapes the public Ollama model library. All
// knowledge of the site's URLs and markup lives here.
package libraryfetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/extensions"

	"ollama-catalog/internal/core/domain"
)

// LibraryFetcherAdapter implements port.LibraryFetcherPort on top of a
// configured colly.Collector.
type LibraryFetcherAdapter struct {
	// Parent collector; every fetch runs on a clone so limits and the
	// HTTP backend are shared.
	collector *colly.Collector
	baseURL   *url.URL
	now       func() time.Time
}

type Option func(*LibraryFetcherAdapter)

// WithClock sets the reference time used to resolve "3 days ago".
func WithClock(now func() time.Time) Option {
	return func(a *LibraryFetcherAdapter) { a.now = now }
}

func NewLibraryFetcherAdapter(baseURL string, randomDelay, requestTimeout time.Duration, opts ...Option) (*LibraryFetcherAdapter, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("library fetcher: invalid base URL %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Hostname() == "" {
		return nil, fmt.Errorf("library fetcher: base URL %q must be absolute", baseURL)
	}

	c := colly.NewCollector(
		colly.AllowedDomains(u.Hostname()),
		// The same pages are walked on every sweep.
		colly.AllowURLRevisit(),
	)
	// Pages are requested strictly one after another.
	err = c.Limit(&colly.LimitRule{
		DomainGlob:  u.Hostname(),
		Parallelism: 1,
		RandomDelay: randomDelay,
	})
	if err != nil {
		return nil, fmt.Errorf("library fetcher: failed to set limit rule: %w", err)
	}
	if requestTimeout > 0 {
		c.SetRequestTimeout(requestTimeout)
	}

	a := &LibraryFetcherAdapter{
		collector: c,
		baseURL:   u,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// newCollector clones the parent. Callbacks are not inherited by clones,
// so masking and logging are attached here.
func (a *LibraryFetcherAdapter) newCollector() *colly.Collector {
	c := a.collector.Clone()
	extensions.RandomUserAgent(c)
	extensions.Referer(c)

	c.OnRequest(func(r *colly.Request) {
		slog.Debug("LibraryFetcher: making request", "url", r.URL.String())
	})
	c.OnError(func(r *colly.Response, err error) {
		slog.Warn("LibraryFetcher: request failed", "url", r.Request.URL.String(), "status", r.StatusCode, "error", err)
	})
	return c
}

// fetch returns the body of target. ctx is checked before the request is
// made; an in-flight request is bounded by the collector's timeout.
func (a *LibraryFetcherAdapter) fetch(ctx context.Context, target string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	collector := a.newCollector()

	var body []byte
	var status int
	collector.OnResponse(func(r *colly.Response) {
		body = r.Body
	})
	collector.OnError(func(r *colly.Response, _ error) {
		status = r.StatusCode
	})

	if err := collector.Visit(target); err != nil {
		return "", &domain.TransportError{URL: target, StatusCode: status, Err: err}
	}
	collector.Wait()

	return string(body), nil
}

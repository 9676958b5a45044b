// Package collyfetcher implements advisory.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/voyantlabs/advisory-pipeline/internal/advisory"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher performs single-page HTTP GETs with a Colly collector. Each Fetch
// clones the base collector, so one Fetcher is safe to share across workers.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET. The HTTP status code is reported in the
// returned RawContent even when the request fails, so the retry layer can
// classify the failure.
func (f *Fetcher) Fetch(ctx context.Context, request advisory.FetchRequest) (advisory.RawContent, error) {
	var (
		result   advisory.RawContent
		fetchErr error
	)
	start := time.Now()

	collector := f.baseCollector.Clone()
	collector.UserAgent = f.cfg.UserAgent
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(f.cfg.Timeout)
	if request.ProxyURL != "" {
		if err := collector.SetProxy(request.ProxyURL); err != nil {
			return advisory.RawContent{}, fmt.Errorf("set proxy: %w", err)
		}
	}

	collector.OnRequest(func(r *colly.Request) {
		// Set, not Add: colly pre-populates defaults like "Accept: */*" and
		// a configured header must replace them, not trail behind them.
		for key, values := range request.Headers {
			for i, v := range values {
				if i == 0 {
					r.Headers.Set(key, v)
					continue
				}
				r.Headers.Add(key, v)
			}
		}
	})

	collector.OnResponse(func(r *colly.Response) {
		result = advisory.RawContent{
			URL:         r.Request.URL.String(),
			StatusCode:  r.StatusCode,
			Headers:     r.Headers.Clone(),
			Body:        append([]byte(nil), r.Body...),
			Duration:    time.Since(start),
			FetchedVia:  "http",
			RetrievedAt: time.Now().UTC(),
		}
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			result.URL = request.URL
			result.StatusCode = r.StatusCode
		}
		fetchErr = err
	})

	if err := f.runCollector(ctx, collector, request.URL); err != nil {
		return result, err
	}
	if fetchErr != nil {
		return result, fmt.Errorf("visit %s: %w", request.URL, fetchErr)
	}
	return result, nil
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("visit %s: %w", url, err)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}

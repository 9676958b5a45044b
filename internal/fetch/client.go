// Package fetch provides the resilient retrieval client used by the
// pipeline: retry with exponential backoff and jitter, transient/permanent
// classification, proxy rotation and per-host politeness limits.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/voyantlabs/advisory-pipeline/internal/advisory"
	"github.com/voyantlabs/advisory-pipeline/internal/metrics"
	"github.com/voyantlabs/advisory-pipeline/internal/proxy"
)

// Config controls retry and politeness behavior.
type Config struct {
	MaxRetries     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	// PerHostRPS bounds the request rate against any single host. Zero
	// means unlimited.
	PerHostRPS float64
}

// Client wraps the raw fetchers with the retry/proxy policy. The rendered
// fetcher is optional; sources with Render set fail permanently without one.
type Client struct {
	plain    advisory.Fetcher
	rendered advisory.Fetcher
	proxies  *proxy.Pool
	cfg      Config
	logger   *zap.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	// sleep is swappable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient builds a Client. pool may be empty (direct connections).
func NewClient(plain, rendered advisory.Fetcher, pool *proxy.Pool, cfg Config, logger *zap.Logger) *Client {
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = 250 * time.Millisecond
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Client{
		plain:    plain,
		rendered: rendered,
		proxies:  pool,
		cfg:      cfg,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
		sleep:    sleepCtx,
	}
}

// Fetch retrieves one request, retrying transient failures up to the
// configured limit. The returned error is always an *advisory.FetchError on
// failure (wrapping context errors when canceled).
func (c *Client) Fetch(ctx context.Context, req advisory.FetchRequest) (advisory.RawContent, error) {
	fetcher := c.plain
	if req.Render {
		if c.rendered == nil {
			return advisory.RawContent{}, &advisory.FetchError{
				Kind: advisory.FetchPermanent,
				URL:  req.URL,
				Err:  errors.New("rendered fetch requested but no headless fetcher configured"),
			}
		}
		fetcher = c.rendered
	}

	var lastErr *advisory.FetchError
	attempts := c.cfg.MaxRetries + 1
	for attempt := range attempts {
		if err := c.waitHost(ctx, req.URL); err != nil {
			return advisory.RawContent{}, &advisory.FetchError{Kind: advisory.FetchTransient, URL: req.URL, Err: err}
		}

		proxyURL := ""
		if c.proxies != nil {
			proxyURL = c.proxies.Pick()
		}
		req.ProxyURL = proxyURL

		content, err := fetcher.Fetch(ctx, req)
		if err == nil && content.StatusCode < 400 {
			c.markProxy(proxyURL, true)
			return content, nil
		}
		c.markProxy(proxyURL, false)

		lastErr = classify(req.URL, content.StatusCode, err)
		if lastErr.Kind == advisory.FetchPermanent {
			return advisory.RawContent{}, lastErr
		}
		if ctx.Err() != nil {
			return advisory.RawContent{}, &advisory.FetchError{Kind: advisory.FetchTransient, URL: req.URL, Err: ctx.Err()}
		}
		if attempt < attempts-1 {
			metrics.ObserveFetchRetry(req.URL)
			delay := c.backoff(attempt)
			c.logger.Debug("transient fetch failure, backing off",
				zap.String("url", req.URL),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			if err := c.sleep(ctx, delay); err != nil {
				return advisory.RawContent{}, &advisory.FetchError{Kind: advisory.FetchTransient, URL: req.URL, Err: err}
			}
		}
	}
	return advisory.RawContent{}, lastErr
}

// backoff computes the exponential delay for the given attempt with full
// jitter, capped at BackoffMax.
func (c *Client) backoff(attempt int) time.Duration {
	d := c.cfg.BackoffInitial << attempt
	if d > c.cfg.BackoffMax || d <= 0 {
		d = c.cfg.BackoffMax
	}
	return time.Duration(rand.Int63n(int64(d)) + int64(d)/2)
}

func (c *Client) waitHost(ctx context.Context, rawURL string) error {
	if c.cfg.PerHostRPS <= 0 {
		return nil
	}
	host := "unknown"
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	c.mu.Lock()
	limiter, ok := c.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(c.cfg.PerHostRPS), 1)
		c.limiters[host] = limiter
	}
	c.mu.Unlock()

	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

func (c *Client) markProxy(proxyURL string, ok bool) {
	if c.proxies == nil || proxyURL == "" {
		return
	}
	if ok {
		c.proxies.MarkSuccess(proxyURL)
	} else {
		c.proxies.MarkFailure(proxyURL)
		metrics.ObserveProxyFailure(proxyURL)
	}
}

// classify decides whether a failed attempt is worth retrying. Timeouts,
// connection resets, 429 and 5xx are transient; the remaining 4xx are
// permanent, as are malformed-response errors.
func classify(url string, status int, err error) *advisory.FetchError {
	fe := &advisory.FetchError{URL: url, StatusCode: status, Err: err}
	if fe.Err == nil {
		fe.Err = fmt.Errorf("http status %d", status)
	}

	switch {
	case status == http.StatusTooManyRequests:
		fe.Kind = advisory.FetchTransient
	case status >= 500:
		fe.Kind = advisory.FetchTransient
	case status >= 400:
		fe.Kind = advisory.FetchPermanent
	case isNetworkTransient(err):
		fe.Kind = advisory.FetchTransient
	case err != nil:
		// Response-level failures with no usable status (malformed reply,
		// bad redirect target) don't heal on retry.
		fe.Kind = advisory.FetchPermanent
	default:
		fe.Kind = advisory.FetchTransient
	}
	return fe
}

func isNetworkTransient(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, os.ErrDeadlineExceeded) ||
		errors.Is(err, net.ErrClosed) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

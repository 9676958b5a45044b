// Package proxy manages a rotating pool of outbound proxies with health state.
package proxy

import (
	"fmt"
	"math/rand"
	"net/url"
	"sync"
	"time"
)

// Strategy selects how the pool rotates across healthy proxies.
type Strategy string

// Rotation strategies.
const (
	StrategyRoundRobin Strategy = "round_robin"
	StrategyRandom     Strategy = "random"
)

// Config controls pool behavior.
type Config struct {
	Entries []string
	// Strategy defaults to round_robin.
	Strategy Strategy
	// FailureThreshold is the consecutive-failure count after which a proxy
	// is benched. Defaults to 3.
	FailureThreshold int
	// Cooldown is how long a benched proxy stays excluded. Defaults to 5m.
	Cooldown time.Duration
}

type proxyState struct {
	url          *url.URL
	raw          string
	failures     int
	successes    int
	consecutive  int
	benchedUntil time.Time
}

// Pool rotates proxies and benches ones that fail repeatedly. All methods are
// safe for concurrent use; workers share one Pool per run.
type Pool struct {
	mu        sync.Mutex
	proxies   []*proxyState
	strategy  Strategy
	threshold int
	cooldown  time.Duration
	next      int
	now       func() time.Time
}

// New builds a Pool from the configured entries. A pool with no entries is
// valid and hands out the empty proxy (direct connection).
func New(cfg Config) (*Pool, error) {
	p := &Pool{
		strategy:  cfg.Strategy,
		threshold: cfg.FailureThreshold,
		cooldown:  cfg.Cooldown,
		now:       time.Now,
	}
	if p.strategy == "" {
		p.strategy = StrategyRoundRobin
	}
	if p.strategy != StrategyRoundRobin && p.strategy != StrategyRandom {
		return nil, fmt.Errorf("unknown proxy strategy %q", cfg.Strategy)
	}
	if p.threshold <= 0 {
		p.threshold = 3
	}
	if p.cooldown <= 0 {
		p.cooldown = 5 * time.Minute
	}
	for _, entry := range cfg.Entries {
		u, err := url.Parse(entry)
		if err != nil {
			return nil, fmt.Errorf("parse proxy %q: %w", entry, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("proxy %q must include scheme and host", entry)
		}
		p.proxies = append(p.proxies, &proxyState{url: u, raw: entry})
	}
	return p, nil
}

// Pick returns the next proxy URL according to the rotation strategy,
// excluding benched proxies. It returns "" when the pool is empty. If every
// proxy is benched the bench is cleared rather than stalling the run.
func (p *Pool) Pick() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.proxies) == 0 {
		return ""
	}

	available := p.available()
	if len(available) == 0 {
		for _, ps := range p.proxies {
			ps.benchedUntil = time.Time{}
			ps.consecutive = 0
		}
		available = p.proxies
	}

	var chosen *proxyState
	switch p.strategy {
	case StrategyRandom:
		chosen = available[rand.Intn(len(available))]
	default:
		chosen = available[p.next%len(available)]
		p.next++
	}
	return chosen.raw
}

// MarkSuccess records a successful request through the proxy and clears its
// consecutive failure count.
func (p *Pool) MarkSuccess(raw string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ps := p.find(raw); ps != nil {
		ps.successes++
		ps.consecutive = 0
		ps.benchedUntil = time.Time{}
	}
}

// MarkFailure records a failed request. Once consecutive failures reach the
// threshold the proxy is benched for the cooldown window.
func (p *Pool) MarkFailure(raw string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ps := p.find(raw)
	if ps == nil {
		return
	}
	ps.failures++
	ps.consecutive++
	if ps.consecutive >= p.threshold {
		ps.benchedUntil = p.now().Add(p.cooldown)
	}
}

// Stats summarizes pool health for logging.
type Stats struct {
	Total   int
	Active  int
	Benched int
}

// Stats returns a snapshot of pool health.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Stats{Total: len(p.proxies)}
	s.Active = len(p.available())
	s.Benched = s.Total - s.Active
	return s
}

// Size reports the number of configured proxies.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.proxies)
}

func (p *Pool) available() []*proxyState {
	now := p.now()
	out := make([]*proxyState, 0, len(p.proxies))
	for _, ps := range p.proxies {
		if ps.benchedUntil.IsZero() || now.After(ps.benchedUntil) {
			out = append(out, ps)
		}
	}
	return out
}

func (p *Pool) find(raw string) *proxyState {
	for _, ps := range p.proxies {
		if ps.raw == raw {
			return ps
		}
	}
	return nil
}

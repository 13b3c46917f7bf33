package worker

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer implements per-backend rate limiting plus a fixed inter-item delay.
// Batch sweeps call Wait between items so third-party API quotas are
// respected; this is cooperative pacing, not a correctness concern.
type Pacer struct {
	limiters     map[string]*rate.Limiter
	mu           sync.RWMutex
	defaultRate  rate.Limit
	defaultBurst int
	delay        time.Duration
}

// NewPacer creates a pacer. delay is the fixed pause added after each rate
// clearance (0 disables it).
func NewPacer(requestsPerSecond float64, burst int, delay time.Duration) *Pacer {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 2
	}
	if burst <= 0 {
		burst = 1
	}

	return &Pacer{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  rate.Limit(requestsPerSecond),
		defaultBurst: burst,
		delay:        delay,
	}
}

// Wait blocks until the backend's rate limit clears plus the fixed delay.
// Returns early with ctx.Err() on cancellation.
func (p *Pacer) Wait(ctx context.Context, backend string) error {
	if err := p.getLimiter(backend).Wait(ctx); err != nil {
		return err
	}

	if p.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.delay):
		}
	}

	return nil
}

// Allow checks if a request is allowed without waiting
func (p *Pacer) Allow(backend string) bool {
	return p.getLimiter(backend).Allow()
}

// SetBackendRate sets a custom rate limit for a specific backend
func (p *Pacer) SetBackendRate(backend string, requestsPerSecond float64, burst int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if burst <= 0 {
		burst = p.defaultBurst
	}
	p.limiters[backend] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

func (p *Pacer) getLimiter(backend string) *rate.Limiter {
	p.mu.RLock()
	limiter, exists := p.limiters[backend]
	p.mu.RUnlock()

	if exists {
		return limiter
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := p.limiters[backend]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(p.defaultRate, p.defaultBurst)
	p.limiters[backend] = limiter
	return limiter
}

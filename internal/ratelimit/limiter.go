// Package ratelimit throttles outbound requests per domain using a sliding
// one-minute window, with bounded per-domain concurrency and retry with
// exponential backoff.
package ratelimit

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"sync"
	"time"

	"github.com/naijahub/newscrawler/internal/scraper"
	"go.uber.org/zap"
)

const window = time.Minute

// Config captures the limiter parameters.
type Config struct {
	RequestsPerMinute int
	MaxRetries        int
	RetryDelay        time.Duration
	Jitter            float64
	DomainLimits      map[string]int
}

// realSleeper blocks with time.After, honoring context cancellation.
type realSleeper struct{}

func (realSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Limiter tracks request timestamps per domain and enforces the window.
type Limiter struct {
	cfg     Config
	clock   scraper.Clock
	sleeper scraper.Sleeper
	logger  *zap.Logger
	onDelay func(domain string, d time.Duration)
	rnd     *rand.Rand

	mu         sync.Mutex
	history    map[string][]time.Time
	semaphores map[string]chan struct{}
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithSleeper replaces the blocking sleep, for tests.
func WithSleeper(s scraper.Sleeper) Option {
	return func(l *Limiter) { l.sleeper = s }
}

// WithRandSource fixes the jitter source, for tests.
func WithRandSource(src rand.Source) Option {
	return func(l *Limiter) { l.rnd = rand.New(src) }
}

// WithDelayObserver registers a callback invoked with every rate-limit wait.
func WithDelayObserver(fn func(domain string, d time.Duration)) Option {
	return func(l *Limiter) { l.onDelay = fn }
}

// New creates a Limiter. Zero or negative config fields fall back to the
// defaults of 10 requests per minute, 3 retries, 2s base delay, 0.5 jitter.
func New(cfg Config, clock scraper.Clock, logger *zap.Logger, opts ...Option) *Limiter {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 10
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.Jitter <= 0 {
		cfg.Jitter = 0.5
	}
	l := &Limiter{
		cfg:        cfg,
		clock:      clock,
		sleeper:    realSleeper{},
		logger:     logger,
		history:    make(map[string][]time.Time),
		semaphores: make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Limiter) domainLimit(domain string) int {
	if limit, ok := l.cfg.DomainLimits[domain]; ok {
		return limit
	}
	return l.cfg.RequestsPerMinute
}

func (l *Limiter) semaphore(domain string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	sem, ok := l.semaphores[domain]
	if !ok {
		size := l.domainLimit(domain) / 2
		if size < 1 {
			size = 1
		}
		sem = make(chan struct{}, size)
		l.semaphores[domain] = sem
	}
	return sem
}

func (l *Limiter) jitterFor(base time.Duration) time.Duration {
	var f float64
	if l.rnd != nil {
		f = l.rnd.Float64()
	} else {
		f = rand.Float64()
	}
	return time.Duration(f * l.cfg.Jitter * float64(base))
}

// requiredWait prunes history older than the window and returns how long the
// caller must wait before issuing another request to the domain.
func (l *Limiter) requiredWait(domain string, now time.Time) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.history[domain][:0]
	for _, ts := range l.history[domain] {
		if now.Sub(ts) < window {
			kept = append(kept, ts)
		}
	}
	l.history[domain] = kept

	if len(kept) >= l.domainLimit(domain) {
		oldest := kept[0]
		if wait := window - now.Sub(oldest); wait > 0 {
			return wait
		}
	}
	return 0
}

func (l *Limiter) record(domain string, now time.Time) {
	l.mu.Lock()
	l.history[domain] = append(l.history[domain], now)
	l.mu.Unlock()
}

// Wait blocks until a request to the domain is allowed under the sliding
// window, then records the request.
func (l *Limiter) Wait(ctx context.Context, domain string) error {
	if wait := l.requiredWait(domain, l.clock.Now()); wait > 0 {
		total := wait + l.jitterFor(wait)
		l.logger.Info("rate limit reached",
			zap.String("domain", domain),
			zap.Duration("wait", total),
		)
		if l.onDelay != nil {
			l.onDelay(domain, total)
		}
		if err := l.sleeper.Sleep(ctx, total); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}
	l.record(domain, l.clock.Now())
	return nil
}

// Acquire reserves a concurrency slot for the domain. The returned release
// function must be called once.
func (l *Limiter) Acquire(ctx context.Context, domain string) (func(), error) {
	sem := l.semaphore(domain)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	}
}

// Execute runs fn against a URL under the domain's concurrency cap and
// sliding window, retrying failures with exponential backoff plus jitter.
// After exhausting retries it returns the zero value and the last error.
func Execute[T any](ctx context.Context, l *Limiter, pageURL string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	u, err := url.Parse(pageURL)
	if err != nil {
		return zero, fmt.Errorf("parse url: %w", err)
	}
	domain := u.Host

	release, err := l.Acquire(ctx, domain)
	if err != nil {
		return zero, fmt.Errorf("acquire domain slot: %w", err)
	}
	defer release()

	if err := l.Wait(ctx, domain); err != nil {
		return zero, err
	}

	attempts := l.cfg.MaxRetries + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == attempts-1 {
			break
		}

		delay := l.cfg.RetryDelay * (1 << attempt)
		total := delay + l.jitterFor(delay)
		l.logger.Warn("request failed, retrying",
			zap.String("url", pageURL),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", attempts),
			zap.Duration("delay", total),
			zap.Error(err),
		)
		if sleepErr := l.sleeper.Sleep(ctx, total); sleepErr != nil {
			return zero, fmt.Errorf("retry wait: %w", sleepErr)
		}
	}

	l.logger.Error("request failed after all attempts",
		zap.String("url", pageURL),
		zap.Int("attempts", attempts),
		zap.Error(lastErr),
	)
	return zero, fmt.Errorf("request failed after %d attempts: %w", attempts, lastErr)
}

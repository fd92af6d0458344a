package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Bucket configures a token bucket.
type Bucket struct {
	Capacity        int     `yaml:"capacity"`
	RefillPerSecond float64 `yaml:"refill_per_second"`
}

// Config holds per-component buckets and the fallback for unlisted components.
type Config struct {
	Default    Bucket            `yaml:"default"`
	Components map[string]Bucket `yaml:"components"`
}

// DefaultConfig allows one poll per second per tenant and component with a burst of 60.
func DefaultConfig() Config {
	return Config{
		Default: Bucket{Capacity: 60, RefillPerSecond: 1},
	}
}

type bucketKey struct {
	tenant    string
	component string
}

// Limiter admits polls per (tenant, component) pair.
type Limiter struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	buckets map[bucketKey]*rate.Limiter
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a limiter.
func New(cfg Config, opts ...Option) *Limiter {
	l := &Limiter{
		cfg:     cfg,
		now:     time.Now,
		buckets: make(map[bucketKey]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Admit consumes one token for the pair and reports whether one was available.
func (l *Limiter) Admit(tenant, component string) bool {
	return l.bucket(tenant, component).AllowN(l.now(), 1)
}

func (l *Limiter) bucket(tenant, component string) *rate.Limiter {
	key := bucketKey{tenant: tenant, component: component}

	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets[key]; ok {
		return b
	}
	cfg, ok := l.cfg.Components[component]
	if !ok {
		cfg = l.cfg.Default
	}
	b := rate.NewLimiter(rate.Limit(cfg.RefillPerSecond), cfg.Capacity)
	l.buckets[key] = b
	return b
}

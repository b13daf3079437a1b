package ratelimit

import (
	"math"
	"sync"
	"time"
)

// Option configures a MemoryLimiter.
type Option func(*MemoryLimiter)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *MemoryLimiter) { l.now = now }
}

// MemoryLimiter keeps one token bucket per key in process memory.
type MemoryLimiter struct {
	cfg      Config
	fillRate float64 // tokens per second
	now      func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	stopOnce sync.Once
	stopCh   chan struct{}
}

type bucket struct {
	tokens float64
	seen   time.Time
}

var _ Limiter = (*MemoryLimiter)(nil)

// NewMemoryLimiter creates a limiter and starts its sweeper, which drops
// buckets idle for two windows. Call Stop to end the sweeper.
func NewMemoryLimiter(cfg Config, opts ...Option) *MemoryLimiter {
	l := &MemoryLimiter{
		cfg:     cfg,
		now:     time.Now,
		buckets: make(map[string]*bucket),
		stopCh:  make(chan struct{}),
	}
	if cfg.Window > 0 {
		l.fillRate = float64(cfg.Requests) / cfg.Window.Seconds()
	}
	for _, opt := range opts {
		opt(l)
	}
	if cfg.Enabled && cfg.Window > 0 {
		go l.sweep(2 * cfg.Window)
	}
	return l
}

func (l *MemoryLimiter) Allow(key string) (bool, time.Duration) {
	if !l.cfg.Enabled {
		return true, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	capacity := float64(l.cfg.Requests)

	b, ok := l.buckets[key]
	if !ok {
		l.buckets[key] = &bucket{tokens: capacity - 1, seen: now}
		return true, 0
	}

	b.tokens = math.Min(capacity, b.tokens+now.Sub(b.seen).Seconds()*l.fillRate)
	b.seen = now
	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}

	wait := time.Duration((1 - b.tokens) / l.fillRate * float64(time.Second))
	return false, wait
}

func (l *MemoryLimiter) Reset(key string) {
	l.mu.Lock()
	delete(l.buckets, key)
	l.mu.Unlock()
}

// Len reports the number of tracked keys.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Stop ends the sweeper. Safe to call more than once.
func (l *MemoryLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

func (l *MemoryLimiter) sweep(idle time.Duration) {
	t := time.NewTicker(idle)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			l.evictIdle(idle)
		case <-l.stopCh:
			return
		}
	}
}

func (l *MemoryLimiter) evictIdle(idle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for key, b := range l.buckets {
		if now.Sub(b.seen) > idle {
			delete(l.buckets, key)
		}
	}
}

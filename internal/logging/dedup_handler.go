package logging

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// DedupHandler buffers records for a window and forwards each distinct
// record once, with a repeated_count attribute when it was seen more than
// once. Two records are the same when their level, message, attributes and
// logger scope match; the timestamp is ignored.
type DedupHandler struct {
	next  slog.Handler
	scope string
	state *dedupState
}

// DedupConfig holds configuration for DedupHandler
type DedupConfig struct {
	// Window is how long records are collected before they are forwarded.
	Window time.Duration
	// MaxPending forces an early flush once this many distinct records wait.
	MaxPending int
}

// DefaultDedupConfig returns default configuration
func DefaultDedupConfig() DedupConfig {
	return DedupConfig{
		Window:     time.Second,
		MaxPending: 100,
	}
}

type dedupEntry struct {
	next   slog.Handler
	record slog.Record
	count  int
}

// dedupState is shared by a handler and everything derived from it.
type dedupState struct {
	mu         sync.Mutex
	entries    map[uint64]*dedupEntry
	order      []uint64
	maxPending int

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewDedupHandler wraps next and starts the flush loop. Close stops it.
func NewDedupHandler(next slog.Handler, cfg DedupConfig) *DedupHandler {
	defaults := DefaultDedupConfig()
	if cfg.Window <= 0 {
		cfg.Window = defaults.Window
	}
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = defaults.MaxPending
	}

	state := &dedupState{
		entries:    make(map[uint64]*dedupEntry),
		maxPending: cfg.MaxPending,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go state.loop(cfg.Window)

	return &DedupHandler{next: next, state: state}
}

// Enabled reports whether the wrapped handler handles records at the given level.
func (h *DedupHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle records r, or bumps the count of an identical pending record.
func (h *DedupHandler) Handle(_ context.Context, r slog.Record) error {
	key := h.key(r)
	s := h.state

	s.mu.Lock()
	if e, ok := s.entries[key]; ok {
		e.count++
		s.mu.Unlock()
		return nil
	}
	s.entries[key] = &dedupEntry{next: h.next, record: r.Clone(), count: 1}
	s.order = append(s.order, key)

	var batch []*dedupEntry
	if len(s.order) >= s.maxPending {
		batch = s.takeLocked()
	}
	s.mu.Unlock()

	forward(batch)
	return nil
}

func (h *DedupHandler) key(r slog.Record) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(h.scope)
	_, _ = d.WriteString(r.Level.String())
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(r.Message)
	r.Attrs(func(a slog.Attr) bool {
		_, _ = d.WriteString("\x00")
		_, _ = d.WriteString(a.String())
		return true
	})
	return d.Sum64()
}

// WithAttrs returns a handler sharing the same pending records.
func (h *DedupHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	var b strings.Builder
	b.WriteString(h.scope)
	for _, a := range attrs {
		b.WriteString(a.String())
		b.WriteByte(';')
	}
	return &DedupHandler{next: h.next.WithAttrs(attrs), scope: b.String(), state: h.state}
}

// WithGroup returns a handler sharing the same pending records.
func (h *DedupHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &DedupHandler{next: h.next.WithGroup(name), scope: h.scope + name + ".", state: h.state}
}

// Flush forwards all pending records now.
func (h *DedupHandler) Flush() {
	h.state.mu.Lock()
	batch := h.state.takeLocked()
	h.state.mu.Unlock()
	forward(batch)
}

// Close flushes pending records and stops the flush loop. It is safe to
// call more than once.
func (h *DedupHandler) Close() error {
	s := h.state
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
	return nil
}

func (s *dedupState) loop(window time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-s.stop:
			s.mu.Lock()
			batch := s.takeLocked()
			s.mu.Unlock()
			forward(batch)
			return
		}
		s.mu.Lock()
		batch := s.takeLocked()
		s.mu.Unlock()
		forward(batch)
	}
}

// takeLocked empties the pending set. s.mu must be held.
func (s *dedupState) takeLocked() []*dedupEntry {
	if len(s.order) == 0 {
		return nil
	}
	batch := make([]*dedupEntry, 0, len(s.order))
	for _, key := range s.order {
		batch = append(batch, s.entries[key])
	}
	clear(s.entries)
	s.order = s.order[:0]
	return batch
}

// forward runs outside the lock so a handler that logs cannot deadlock.
func forward(batch []*dedupEntry) {
	for _, e := range batch {
		r := e.record
		if e.count > 1 {
			r.AddAttrs(slog.Int("repeated_count", e.count))
		}
		_ = e.next.Handle(context.Background(), r)
	}
}

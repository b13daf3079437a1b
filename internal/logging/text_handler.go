package logging

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// TextHandler writes one line per record:
//
//	2024-05-15T10:30:00Z: [INFO] server started port=8080
//
// Attributes bound with WithAttrs are rendered once and reused.
type TextHandler struct {
	w      io.Writer
	mu     *sync.Mutex
	level  slog.Leveler
	prefix string // group path, e.g. "http.request."
	bound  []byte
}

// NewTextHandler creates a text handler. A nil opts or level means Info.
func NewTextHandler(w io.Writer, opts *slog.HandlerOptions) *TextHandler {
	var level slog.Leveler = slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level
	}
	return &TextHandler{w: w, mu: &sync.Mutex{}, level: level}
}

func (h *TextHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *TextHandler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 256)
	buf = r.Time.AppendFormat(buf, time.RFC3339)
	buf = append(buf, ": ["...)
	buf = append(buf, r.Level.String()...)
	buf = append(buf, "] "...)
	buf = append(buf, r.Message...)
	buf = append(buf, h.bound...)
	r.Attrs(func(a slog.Attr) bool {
		buf = appendAttr(buf, h.prefix, a)
		return true
	})
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf)
	return err
}

func (h *TextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	bound := append([]byte(nil), h.bound...)
	for _, a := range attrs {
		bound = appendAttr(bound, h.prefix, a)
	}
	clone := *h
	clone.bound = bound
	return &clone
}

func (h *TextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

func appendAttr(buf []byte, prefix string, a slog.Attr) []byte {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return buf
	}
	buf = append(buf, ' ')
	buf = append(buf, prefix...)
	buf = append(buf, a.Key...)
	buf = append(buf, '=')
	return appendValue(buf, a.Value)
}

func appendValue(buf []byte, v slog.Value) []byte {
	switch v.Kind() {
	case slog.KindString:
		return appendString(buf, v.String())
	case slog.KindInt64:
		return strconv.AppendInt(buf, v.Int64(), 10)
	case slog.KindUint64:
		return strconv.AppendUint(buf, v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.AppendFloat(buf, v.Float64(), 'g', -1, 64)
	case slog.KindBool:
		return strconv.AppendBool(buf, v.Bool())
	case slog.KindDuration:
		return append(buf, v.Duration().String()...)
	case slog.KindTime:
		return v.Time().AppendFormat(buf, time.RFC3339)
	case slog.KindGroup:
		attrs := v.Group()
		buf = append(buf, '{')
		for i, a := range attrs {
			if i > 0 {
				buf = append(buf, ' ')
			}
			buf = append(buf, a.Key...)
			buf = append(buf, '=')
			buf = appendValue(buf, a.Value.Resolve())
		}
		return append(buf, '}')
	default:
		if err, ok := v.Any().(error); ok {
			return appendString(buf, err.Error())
		}
		return appendString(buf, v.String())
	}
}

// appendString quotes s when it is empty or contains spaces, quotes or
// control characters.
func appendString(buf []byte, s string) []byte {
	if s != "" && !strings.ContainsFunc(s, needsQuote) {
		return append(buf, s...)
	}
	return strconv.AppendQuote(buf, s)
}

func needsQuote(r rune) bool {
	return r <= ' ' || r == '"' || r == '\\' || r == '='
}

// Package filter evaluates column/operator/value conditions against in-memory
// items. Every evaluator is pure and fails closed: malformed input yields
// "no match" and a diagnostic, never an error or a panic.
package filter

import (
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/worktrack/worktrack/pkg/model"
)

// Evaluator holds what condition evaluation reads from its surroundings:
// the clock for date placeholders, the location date-only values live in and
// the sink for diagnostics. The zero Evaluator is not usable; use NewEvaluator.
type Evaluator struct {
	logger *slog.Logger
	now    func() time.Time
	loc    *time.Location
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the diagnostic sink. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

// WithClock replaces time.Now for placeholder resolution.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLocation sets the location of date-only midnights. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(e *Evaluator) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// NewEvaluator creates an evaluator with the given options.
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{
		now: time.Now,
		loc: time.Local,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEvaluator = NewEvaluator()

// Default returns the evaluator used by the package-level functions.
func Default() *Evaluator {
	return defaultEvaluator
}

// EvaluateCondition evaluates c against field with the default evaluator.
func EvaluateCondition(field model.Value, c model.Condition) bool {
	return defaultEvaluator.EvaluateCondition(field, c)
}

// EvaluateCondition reports whether field satisfies c.
func (e *Evaluator) EvaluateCondition(field model.Value, c model.Condition) bool {
	if c.Value.Kind() == model.KindUndefined {
		e.log().Warn("Filter condition has no value",
			"column", c.Column,
			"operator", c.Operator,
		)
		return false
	}

	fieldNull := field.IsNullish()
	condNull := c.Value.Kind() == model.KindNull
	if fieldNull && condNull {
		return c.Operator == model.OpEquals
	}
	if fieldNull || condNull {
		return c.Operator == model.OpNotEquals
	}

	switch c.Operator {
	case model.OpEquals, model.OpNotEquals, model.OpContains, model.OpStartsWith:
		a, b, ok := e.lowerPair(field, c)
		if !ok {
			return false
		}
		switch c.Operator {
		case model.OpEquals:
			return a == b
		case model.OpNotEquals:
			return a != b
		case model.OpContains:
			return strings.Contains(a, b)
		default:
			return strings.HasPrefix(a, b)
		}

	case model.OpEndsWith:
		a, b, ok := e.lowerPair(field, c)
		if !ok {
			return false
		}
		return strings.HasSuffix(a, b)

	case model.OpBefore, model.OpAfter:
		a, okA := e.parseDate(field)
		b, okB := e.parseDate(c.Value)
		if !okA || !okB {
			return false
		}
		if c.Operator == model.OpBefore {
			return a.Before(b)
		}
		return a.After(b)

	case model.OpGreaterThan, model.OpLessThan:
		a, okA := parseFloat(field)
		b, okB := parseFloat(c.Value)
		if !okA || !okB {
			return false
		}
		if c.Operator == model.OpGreaterThan {
			return a > b
		}
		return a < b
	}

	// Operators added after this evaluator pass everything through.
	return true
}

// lowerPair renders both operands as lower-case text.
func (e *Evaluator) lowerPair(field model.Value, c model.Condition) (string, string, bool) {
	a, okA := field.ComparableString()
	b, okB := c.Value.ComparableString()
	if !okA || !okB {
		e.log().Warn("Filter operands are not comparable as text",
			"column", c.Column,
			"operator", c.Operator,
			"field_kind", field.Kind().String(),
			"value_kind", c.Value.Kind().String(),
		)
		return "", "", false
	}
	return strings.ToLower(a), strings.ToLower(b), true
}

func (e *Evaluator) log() *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return slog.Default()
}

// Layouts accepted for date strings. Date-only and year-month forms are
// read as UTC; date-times without an offset are read in the evaluator location.
var (
	utcDateLayouts   = []string{"2006-01-02", "2006-01"}
	localDateLayouts = []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
	}
)

// parseDate interprets v as an instant. Numbers are epoch milliseconds.
func (e *Evaluator) parseDate(v model.Value) (time.Time, bool) {
	switch v.Kind() {
	case model.KindDate:
		t, _ := v.Time()
		return t, !t.IsZero()
	case model.KindNumber:
		n, _ := v.Num()
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(n)), true
	case model.KindString:
		s, _ := v.Str()
		return e.parseDateString(strings.TrimSpace(s))
	}
	return time.Time{}, false
}

func (e *Evaluator) parseDateString(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	for _, layout := range utcDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	for _, layout := range localDateLayouts {
		if t, err := time.ParseInLocation(layout, s, e.loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var floatPrefix = regexp.MustCompile(`^[+-]?(Infinity|\d+(\.\d*)?([eE][+-]?\d+)?|\.\d+([eE][+-]?\d+)?)`)

// parseFloat reads the longest numeric prefix of a text value, the way
// browsers' parseFloat does ("12px" is 12, "abc" is not a number).
func parseFloat(v model.Value) (float64, bool) {
	switch v.Kind() {
	case model.KindNumber:
		n, _ := v.Num()
		return n, !math.IsNaN(n)
	case model.KindString:
		s, _ := v.Str()
		m := floatPrefix.FindString(strings.TrimLeft(s, " \t\n\r\v\f"))
		if m == "" {
			return 0, false
		}
		switch m {
		case "Infinity", "+Infinity":
			return math.Inf(1), true
		case "-Infinity":
			return math.Inf(-1), true
		}
		n, err := strconv.ParseFloat(m, 64)
		if err != nil && !isRangeError(err) {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func isRangeError(err error) bool {
	numErr, ok := err.(*strconv.NumError)
	return ok && numErr.Err == strconv.ErrRange
}

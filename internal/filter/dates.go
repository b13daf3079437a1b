package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/worktrack/worktrack/pkg/model"
)

// Date placeholders usable as a condition value on date columns.
// They are resolved against the evaluator clock on every call.
const (
	PlaceholderToday      = "__TODAY__"
	PlaceholderWeekStart  = "__WEEK_START__"
	PlaceholderWeekEnd    = "__WEEK_END__"
	PlaceholderMonthStart = "__MONTH_START__"
	PlaceholderMonthEnd   = "__MONTH_END__"
	PlaceholderYearStart  = "__YEAR_START__"
	PlaceholderYearEnd    = "__YEAR_END__"
	PlaceholderThisWeek   = "__THIS_WEEK__"
	PlaceholderThisMonth  = "__THIS_MONTH__"
	PlaceholderThisYear   = "__THIS_YEAR__"
)

// rangePlaceholders maps range tokens to their start and end point tokens.
var rangePlaceholders = map[string][2]string{
	PlaceholderThisWeek:  {PlaceholderWeekStart, PlaceholderWeekEnd},
	PlaceholderThisMonth: {PlaceholderMonthStart, PlaceholderMonthEnd},
	PlaceholderThisYear:  {PlaceholderYearStart, PlaceholderYearEnd},
}

// Placeholders returns every supported token.
func Placeholders() []string {
	return []string{
		PlaceholderToday,
		PlaceholderWeekStart, PlaceholderWeekEnd,
		PlaceholderMonthStart, PlaceholderMonthEnd,
		PlaceholderYearStart, PlaceholderYearEnd,
		PlaceholderThisWeek, PlaceholderThisMonth, PlaceholderThisYear,
	}
}

// IsPlaceholder reports whether s has the shape of a placeholder token,
// known or not.
func IsPlaceholder(s string) bool {
	return len(s) > 4 && strings.HasPrefix(s, "__") && strings.HasSuffix(s, "__")
}

// EvaluateDateCondition evaluates a date column condition with the default evaluator.
func EvaluateDateCondition(dateValue model.Value, c model.Condition) bool {
	return defaultEvaluator.EvaluateDateCondition(dateValue, c)
}

// EvaluateDateCondition compares dateValue with c at day granularity,
// resolving placeholders against the evaluator clock.
func (e *Evaluator) EvaluateDateCondition(dateValue model.Value, c model.Condition) (matched bool) {
	defer func() {
		if r := recover(); r != nil {
			e.log().Error("Date condition evaluation failed",
				"column", c.Column,
				"operator", c.Operator,
				"value", c.Value.String(),
				"error", r,
			)
			matched = false
		}
	}()

	if dateValue.IsNullish() {
		return false
	}
	t, ok := e.parseDate(dateValue)
	if !ok {
		return false
	}
	day := e.dateOnly(t)

	if token, isStr := c.Value.Str(); isStr && IsPlaceholder(token) {
		if bounds, isRange := rangePlaceholders[token]; isRange {
			now := e.now()
			start, err := e.resolvePlaceholder(bounds[0], now)
			if err != nil {
				return e.placeholderFailed(c, err)
			}
			end, err := e.resolvePlaceholder(bounds[1], now)
			if err != nil {
				return e.placeholderFailed(c, err)
			}
			switch c.Operator {
			case model.OpEquals:
				return !day.Before(start) && !day.After(end)
			case model.OpBefore:
				return day.Before(end)
			case model.OpAfter:
				return day.After(start)
			}
			return false
		}

		target, err := e.resolvePlaceholder(token, e.now())
		if err != nil {
			return e.placeholderFailed(c, err)
		}
		return compareDays(day, target, c.Operator)
	}

	target, ok := e.parseDate(c.Value)
	if !ok {
		return false
	}
	return compareDays(day, e.dateOnly(target), c.Operator)
}

// ResolvePlaceholder returns the instant a point placeholder stands for at now.
// Range placeholders resolve to their start.
func (e *Evaluator) ResolvePlaceholder(token string, now time.Time) (time.Time, error) {
	if bounds, ok := rangePlaceholders[token]; ok {
		token = bounds[0]
	}
	return e.resolvePlaceholder(token, now)
}

func (e *Evaluator) resolvePlaceholder(token string, now time.Time) (time.Time, error) {
	local := now.In(e.loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, e.loc)
	// Weeks start on Monday.
	weekStart := today.AddDate(0, 0, -((int(today.Weekday()) + 6) % 7))
	monthStart := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, e.loc)
	yearStart := time.Date(local.Year(), time.January, 1, 0, 0, 0, 0, e.loc)

	switch token {
	case PlaceholderToday:
		return today, nil
	case PlaceholderWeekStart:
		return weekStart, nil
	case PlaceholderWeekEnd:
		return weekStart.AddDate(0, 0, 7).Add(-time.Millisecond), nil
	case PlaceholderMonthStart:
		return monthStart, nil
	case PlaceholderMonthEnd:
		return monthStart.AddDate(0, 1, 0).Add(-time.Millisecond), nil
	case PlaceholderYearStart:
		return yearStart, nil
	case PlaceholderYearEnd:
		return yearStart.AddDate(1, 0, 0).Add(-time.Millisecond), nil
	}
	return time.Time{}, fmt.Errorf("unknown date placeholder %q", token)
}

// dateOnly drops the time of day: the UTC calendar date of t at midnight in
// the evaluator location. Comparing full timestamps would let time zones
// shift a due date by one day.
func (e *Evaluator) dateOnly(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, e.loc)
}

func (e *Evaluator) placeholderFailed(c model.Condition, err error) bool {
	e.log().Error("Date placeholder resolution failed",
		"column", c.Column,
		"operator", c.Operator,
		"error", err,
	)
	return false
}

func compareDays(day, target time.Time, op model.Operator) bool {
	switch op {
	case model.OpEquals:
		return day.Equal(target)
	case model.OpBefore:
		return day.Before(target)
	case model.OpAfter:
		return day.After(target)
	}
	return true
}

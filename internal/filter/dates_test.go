package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worktrack/worktrack/pkg/model"
)

// Wednesday, 15 May 2024. The week runs from Monday 13 to Sunday 19.
var fixedNow = time.Date(2024, time.May, 15, 10, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func day(y int, m time.Month, d int) model.Value {
	return model.Date(time.Date(y, m, d, 12, 0, 0, 0, time.UTC))
}

func dateCond(op model.Operator, v string) model.Condition {
	return model.Condition{Column: "due", Operator: op, Value: model.String(v)}
}

func TestEvaluateDateCondition_TodayIgnoresTimeOfDay(t *testing.T) {
	e := NewEvaluator(WithClock(fixedClock), WithLocation(time.UTC))

	lateToday := model.Date(time.Date(2024, time.May, 15, 23, 59, 59, 0, time.UTC))
	assert.True(t, e.EvaluateDateCondition(lateToday, dateCond(model.OpEquals, PlaceholderToday)))

	earlyToday := model.String("2024-05-15T00:00:01Z")
	assert.True(t, e.EvaluateDateCondition(earlyToday, dateCond(model.OpEquals, PlaceholderToday)))

	// Same result whatever the time of "now" on that day.
	lateClock := NewEvaluator(WithLocation(time.UTC), WithClock(func() time.Time {
		return time.Date(2024, time.May, 15, 23, 59, 59, 999, time.UTC)
	}))
	assert.True(t, lateClock.EvaluateDateCondition(lateToday, dateCond(model.OpEquals, PlaceholderToday)))

	assert.False(t, e.EvaluateDateCondition(day(2024, time.May, 14), dateCond(model.OpEquals, PlaceholderToday)))
	assert.True(t, e.EvaluateDateCondition(day(2024, time.May, 14), dateCond(model.OpBefore, PlaceholderToday)))
	assert.True(t, e.EvaluateDateCondition(day(2024, time.May, 16), dateCond(model.OpAfter, PlaceholderToday)))
}

func TestEvaluateDateCondition_RangePlaceholders(t *testing.T) {
	e := NewEvaluator(WithClock(fixedClock), WithLocation(time.UTC))

	tests := []struct {
		name string
		date model.Value
		c    model.Condition
		want bool
	}{
		{"wednesday in this week", day(2024, time.May, 15), dateCond(model.OpEquals, PlaceholderThisWeek), true},
		{"monday in this week", day(2024, time.May, 13), dateCond(model.OpEquals, PlaceholderThisWeek), true},
		{"sunday in this week", day(2024, time.May, 19), dateCond(model.OpEquals, PlaceholderThisWeek), true},
		{"next wednesday not in this week", day(2024, time.May, 22), dateCond(model.OpEquals, PlaceholderThisWeek), false},
		{"before this week end", day(2024, time.May, 19), dateCond(model.OpBefore, PlaceholderThisWeek), true},
		{"next monday not before this week end", day(2024, time.May, 20), dateCond(model.OpBefore, PlaceholderThisWeek), false},
		{"monday not after this week start", day(2024, time.May, 13), dateCond(model.OpAfter, PlaceholderThisWeek), false},
		{"tuesday after this week start", day(2024, time.May, 14), dateCond(model.OpAfter, PlaceholderThisWeek), true},
		{"contains on range", day(2024, time.May, 15), dateCond(model.OpContains, PlaceholderThisWeek), false},
		{"in this month", day(2024, time.May, 31), dateCond(model.OpEquals, PlaceholderThisMonth), true},
		{"not in this month", day(2024, time.June, 1), dateCond(model.OpEquals, PlaceholderThisMonth), false},
		{"in this year", day(2024, time.December, 31), dateCond(model.OpEquals, PlaceholderThisYear), true},
		{"last year not in this year", day(2023, time.December, 31), dateCond(model.OpEquals, PlaceholderThisYear), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.EvaluateDateCondition(tt.date, tt.c))
		})
	}
}

func TestEvaluateDateCondition_PointPlaceholders(t *testing.T) {
	e := NewEvaluator(WithClock(fixedClock), WithLocation(time.UTC))

	tests := []struct {
		name string
		date model.Value
		c    model.Condition
		want bool
	}{
		{"week start is monday", day(2024, time.May, 13), dateCond(model.OpEquals, PlaceholderWeekStart), true},
		{"week end is not a midnight", day(2024, time.May, 19), dateCond(model.OpEquals, PlaceholderWeekEnd), false},
		{"sunday before week end", day(2024, time.May, 19), dateCond(model.OpBefore, PlaceholderWeekEnd), true},
		{"month start", day(2024, time.May, 1), dateCond(model.OpEquals, PlaceholderMonthStart), true},
		{"last of month before month end", day(2024, time.May, 31), dateCond(model.OpBefore, PlaceholderMonthEnd), true},
		{"first of june after month end", day(2024, time.June, 1), dateCond(model.OpAfter, PlaceholderMonthEnd), true},
		{"year start", day(2024, time.January, 1), dateCond(model.OpEquals, PlaceholderYearStart), true},
		{"next year after year end", day(2025, time.January, 1), dateCond(model.OpAfter, PlaceholderYearEnd), true},
		{"other operator passes", day(2020, time.January, 1), dateCond(model.OpGreaterThan, PlaceholderToday), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.EvaluateDateCondition(tt.date, tt.c))
		})
	}
}

func TestEvaluateDateCondition_Literals(t *testing.T) {
	e := NewEvaluator(WithClock(fixedClock), WithLocation(time.UTC))

	late := model.String("2024-05-10T23:00:00Z")
	assert.True(t, e.EvaluateDateCondition(late, dateCond(model.OpEquals, "2024-05-10")))
	assert.True(t, e.EvaluateDateCondition(late, dateCond(model.OpBefore, "2024-05-11")))
	assert.False(t, e.EvaluateDateCondition(late, dateCond(model.OpAfter, "2024-05-10T01:00:00Z")))
	assert.True(t, e.EvaluateDateCondition(late, dateCond(model.OpAfter, "2024-05-09")))
	assert.True(t, e.EvaluateDateCondition(late, dateCond(model.OpNotEquals, "2024-05-10")))

	assert.False(t, e.EvaluateDateCondition(late, dateCond(model.OpEquals, "soon")))
	assert.False(t, e.EvaluateDateCondition(late, model.Condition{Column: "due", Operator: model.OpEquals, Value: model.Null}))
	assert.False(t, e.EvaluateDateCondition(model.String("not a date"), dateCond(model.OpEquals, "2024-05-10")))
}

func TestEvaluateDateCondition_NullDate(t *testing.T) {
	e := NewEvaluator(WithClock(fixedClock), WithLocation(time.UTC))
	for _, op := range []model.Operator{model.OpEquals, model.OpBefore, model.OpAfter, model.OpNotEquals} {
		assert.False(t, e.EvaluateDateCondition(model.Null, dateCond(op, PlaceholderToday)), op)
		assert.False(t, e.EvaluateDateCondition(model.Undefined, dateCond(op, "2024-05-10")), op)
	}
}

func TestEvaluateDateCondition_FailuresAreLogged(t *testing.T) {
	t.Run("unknown placeholder", func(t *testing.T) {
		e, buf := newBufferedEvaluator(WithClock(fixedClock), WithLocation(time.UTC))
		assert.False(t, e.EvaluateDateCondition(day(2024, time.May, 15), dateCond(model.OpEquals, "__NEXT_WEEK__")))
		assert.Contains(t, buf.String(), "Date placeholder resolution failed")
	})

	t.Run("panicking clock", func(t *testing.T) {
		e, buf := newBufferedEvaluator(WithLocation(time.UTC), WithClock(func() time.Time { panic("clock broken") }))
		assert.NotPanics(t, func() {
			assert.False(t, e.EvaluateDateCondition(day(2024, time.May, 15), dateCond(model.OpEquals, PlaceholderToday)))
		})
		assert.Contains(t, buf.String(), "Date condition evaluation failed")
	})
}

func TestResolvePlaceholder(t *testing.T) {
	e := NewEvaluator(WithLocation(time.UTC))

	sunday := time.Date(2024, time.May, 19, 8, 0, 0, 0, time.UTC)
	start, err := e.ResolvePlaceholder(PlaceholderWeekStart, sunday)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.May, 13, 0, 0, 0, 0, time.UTC), start)

	end, err := e.ResolvePlaceholder(PlaceholderWeekEnd, sunday)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.May, 19, 23, 59, 59, int(999*time.Millisecond), time.UTC), end)

	leap := time.Date(2024, time.February, 10, 0, 0, 0, 0, time.UTC)
	monthEnd, err := e.ResolvePlaceholder(PlaceholderMonthEnd, leap)
	require.NoError(t, err)
	assert.Equal(t, 29, monthEnd.Day())

	rangeStart, err := e.ResolvePlaceholder(PlaceholderThisYear, leap)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), rangeStart)

	_, err = e.ResolvePlaceholder("__LATER__", leap)
	assert.Error(t, err)

	assert.Len(t, Placeholders(), 10)
	assert.True(t, IsPlaceholder("__TODAY__"))
	assert.False(t, IsPlaceholder("____"))
	assert.False(t, IsPlaceholder("2024-05-01"))
}

func TestEvaluateDateCondition_LocationsAwayFromUTC(t *testing.T) {
	zones := []*time.Location{
		time.FixedZone("UTC-7", -7*60*60),
		time.FixedZone("UTC+9", 9*60*60),
	}

	for _, loc := range zones {
		t.Run(loc.String(), func(t *testing.T) {
			// Local 15 May at the start, middle and end of the day. The UTC
			// date differs from the local one at one end in each zone.
			for _, hm := range [][2]int{{0, 15}, {12, 0}, {23, 45}} {
				now := time.Date(2024, time.May, 15, hm[0], hm[1], 0, 0, loc)
				e := NewEvaluator(WithLocation(loc), WithClock(func() time.Time { return now }))

				tests := []struct {
					name string
					date model.Value
					c    model.Condition
					want bool
				}{
					{"date-only is today", model.String("2024-05-15"), dateCond(model.OpEquals, PlaceholderToday), true},
					{"yesterday is not today", model.String("2024-05-14"), dateCond(model.OpEquals, PlaceholderToday), false},
					{"tomorrow is after today", model.String("2024-05-16"), dateCond(model.OpAfter, PlaceholderToday), true},
					{"yesterday is before today", model.String("2024-05-14"), dateCond(model.OpBefore, PlaceholderToday), true},
					{"date-only in this week", model.String("2024-05-19"), dateCond(model.OpEquals, PlaceholderThisWeek), true},
					{"next monday not in this week", model.String("2024-05-20"), dateCond(model.OpEquals, PlaceholderThisWeek), false},
					{"last sunday not in this week", model.String("2024-05-12"), dateCond(model.OpEquals, PlaceholderThisWeek), false},
					{"date-only literal equals", model.String("2024-05-15"), dateCond(model.OpEquals, "2024-05-15"), true},
					{"date-only literal before", model.String("2024-05-14"), dateCond(model.OpBefore, "2024-05-15"), true},
					{"date-only literal not after itself", model.String("2024-05-15"), dateCond(model.OpAfter, "2024-05-15"), false},
					// Timestamps count by their UTC calendar date.
					{"late UTC timestamp keeps its UTC date", model.String("2024-05-15T23:30:00Z"), dateCond(model.OpEquals, "2024-05-15"), true},
					{"early UTC timestamp keeps its UTC date", model.String("2024-05-15T00:30:00Z"), dateCond(model.OpEquals, "2024-05-15"), true},
				}

				for _, tt := range tests {
					assert.Equal(t, tt.want, e.EvaluateDateCondition(tt.date, tt.c), "%s at %s", tt.name, now.Format(time.RFC3339))
				}
			}
		})
	}
}

func TestEvaluateDateCondition_WeekBoundaryNearMidnight(t *testing.T) {
	tests := []struct {
		name string
		loc  *time.Location
		now  time.Time
		date string
		want bool
	}{
		// Sunday 23:30 in UTC-7 is already Monday in UTC.
		{"west sunday night keeps sunday", time.FixedZone("UTC-7", -7*60*60), time.Date(2024, time.May, 19, 23, 30, 0, 0, time.FixedZone("UTC-7", -7*60*60)), "2024-05-19", true},
		{"west sunday night excludes monday", time.FixedZone("UTC-7", -7*60*60), time.Date(2024, time.May, 19, 23, 30, 0, 0, time.FixedZone("UTC-7", -7*60*60)), "2024-05-20", false},
		// Monday 00:15 in UTC+9 is still Sunday in UTC.
		{"east monday morning starts the week", time.FixedZone("UTC+9", 9*60*60), time.Date(2024, time.May, 13, 0, 15, 0, 0, time.FixedZone("UTC+9", 9*60*60)), "2024-05-13", true},
		{"east monday morning excludes sunday", time.FixedZone("UTC+9", 9*60*60), time.Date(2024, time.May, 13, 0, 15, 0, 0, time.FixedZone("UTC+9", 9*60*60)), "2024-05-12", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEvaluator(WithLocation(tt.loc), WithClock(func() time.Time { return tt.now }))
			assert.Equal(t, tt.want, e.EvaluateDateCondition(model.String(tt.date), dateCond(model.OpEquals, PlaceholderThisWeek)))
		})
	}
}

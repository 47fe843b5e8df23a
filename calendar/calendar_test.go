package calendar_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goquartz/quartz/calendar"
)

func TestWeeklyCalendar(t *testing.T) {
	cal := calendar.NewWeeklyCalendar(nil)

	saturday := time.Date(2011, time.January, 1, 12, 0, 0, 0, time.UTC)
	monday := time.Date(2011, time.January, 3, 12, 0, 0, 0, time.UTC)
	assert.False(t, cal.IsTimeIncluded(saturday))
	assert.True(t, cal.IsTimeIncluded(monday))

	next := cal.GetNextIncludedTime(saturday)
	assert.Equal(t, time.Date(2011, time.January, 3, 0, 0, 0, 0, time.UTC), next)

	cal.SetDayExcluded(time.Saturday, false)
	assert.True(t, cal.IsTimeIncluded(saturday))
}

func TestAnnualCalendar(t *testing.T) {
	cal := calendar.NewAnnualCalendar(nil)
	cal.SetDayExcluded(time.July, 4, true)

	assert.False(t, cal.IsTimeIncluded(
		time.Date(2011, time.July, 4, 9, 0, 0, 0, time.UTC)))
	assert.False(t, cal.IsTimeIncluded(
		time.Date(2024, time.July, 4, 9, 0, 0, 0, time.UTC)))
	assert.True(t, cal.IsTimeIncluded(
		time.Date(2011, time.July, 5, 9, 0, 0, 0, time.UTC)))
	assert.True(t, cal.IsDayExcluded(time.July, 4))

	cal.SetDayExcluded(time.July, 4, false)
	assert.True(t, cal.IsTimeIncluded(
		time.Date(2011, time.July, 4, 9, 0, 0, 0, time.UTC)))
}

func TestMonthlyCalendar(t *testing.T) {
	cal := calendar.NewMonthlyCalendar(nil)
	cal.SetDayExcluded(1, true)

	assert.False(t, cal.IsTimeIncluded(
		time.Date(2011, time.March, 1, 9, 0, 0, 0, time.UTC)))
	assert.True(t, cal.IsTimeIncluded(
		time.Date(2011, time.March, 2, 9, 0, 0, 0, time.UTC)))

	next := cal.GetNextIncludedTime(
		time.Date(2011, time.March, 1, 9, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2011, time.March, 2, 0, 0, 0, 0, time.UTC), next)
}

func TestDailyCalendar(t *testing.T) {
	cal, err := calendar.NewDailyCalendar(nil, 8, 0, 17, 0)
	require.NoError(t, err)

	inWindow := time.Date(2011, time.June, 15, 12, 0, 0, 0, time.UTC)
	outOfWindow := time.Date(2011, time.June, 15, 18, 0, 0, 0, time.UTC)
	assert.False(t, cal.IsTimeIncluded(inWindow))
	assert.True(t, cal.IsTimeIncluded(outOfWindow))

	next := cal.GetNextIncludedTime(inWindow)
	assert.Equal(t, time.Date(2011, time.June, 15, 17, 0, 0, 0, time.UTC), next)

	// inverted: only the window is included
	cal.Invert = true
	assert.True(t, cal.IsTimeIncluded(inWindow))
	assert.False(t, cal.IsTimeIncluded(outOfWindow))
	next = cal.GetNextIncludedTime(outOfWindow)
	assert.Equal(t, time.Date(2011, time.June, 16, 8, 0, 0, 0, time.UTC), next)
}

func TestDailyCalendar_Validation(t *testing.T) {
	_, err := calendar.NewDailyCalendar(nil, 17, 0, 8, 0)
	assert.Error(t, err)
	_, err = calendar.NewDailyCalendar(nil, -1, 0, 8, 0)
	assert.Error(t, err)
	_, err = calendar.NewDailyCalendar(nil, 8, 0, 24, 0)
	assert.Error(t, err)
}

func TestCronCalendar(t *testing.T) {
	// exclude every second of the 9-12 hours
	cal, err := calendar.NewCronCalendar(nil, "* * 9-12 * * ?")
	require.NoError(t, err)

	assert.False(t, cal.IsTimeIncluded(
		time.Date(2011, time.January, 1, 10, 30, 0, 0, time.UTC)))
	assert.True(t, cal.IsTimeIncluded(
		time.Date(2011, time.January, 1, 13, 0, 0, 0, time.UTC)))

	next := cal.GetNextIncludedTime(
		time.Date(2011, time.January, 1, 9, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2011, time.January, 1, 13, 0, 0, 0, time.UTC), next)
}

func TestHolidayCalendar(t *testing.T) {
	cal := calendar.NewHolidayCalendar(nil)
	holiday := time.Date(2011, time.December, 26, 0, 0, 0, 0, time.UTC)
	cal.AddExcludedDate(holiday)
	cal.AddExcludedDate(holiday) // idempotent

	assert.False(t, cal.IsTimeIncluded(holiday.Add(10*time.Hour)))
	assert.True(t, cal.IsTimeIncluded(holiday.AddDate(0, 0, 1)))
	assert.Len(t, cal.ExcludedDates, 1)

	cal.RemoveExcludedDate(holiday)
	assert.True(t, cal.IsTimeIncluded(holiday.Add(10*time.Hour)))
}

func TestCalendarChain(t *testing.T) {
	weekly := calendar.NewWeeklyCalendar(nil) // excludes the week-end
	monthly := calendar.NewMonthlyCalendar(weekly)
	monthly.SetDayExcluded(3, true)

	// Monday 2011-01-03 passes the weekly filter but not the monthly one
	monday := time.Date(2011, time.January, 3, 12, 0, 0, 0, time.UTC)
	assert.False(t, monthly.IsTimeIncluded(monday))
	// Saturday is excluded by the base even though the day of month passes
	saturday := time.Date(2011, time.January, 1, 12, 0, 0, 0, time.UTC)
	assert.False(t, monthly.IsTimeIncluded(saturday))

	// the next included time satisfies the whole chain
	next := monthly.GetNextIncludedTime(saturday)
	assert.True(t, monthly.IsTimeIncluded(next))
	assert.True(t, weekly.IsTimeIncluded(next))
	assert.Equal(t, time.Date(2011, time.January, 4, 0, 0, 0, 0, time.UTC), next)
	assert.Equal(t, weekly, monthly.Base())
}

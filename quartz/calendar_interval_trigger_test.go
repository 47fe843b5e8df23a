package quartz_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goquartz/quartz/quartz"
)

func newCalendarIntervalTrigger(interval int, unit quartz.IntervalUnit,
	start time.Time) *quartz.Trigger {
	schedule := quartz.NewCalendarIntervalSchedule(interval, unit)
	schedule.Location = time.UTC
	return quartz.NewTrigger(quartz.NewTriggerKey("calint"),
		quartz.NewJobKey("job"), schedule).WithStartTime(start)
}

func TestCalendarIntervalSchedule_Days(t *testing.T) {
	start := time.Date(2011, time.January, 1, 10, 0, 0, 0, time.UTC)
	trigger := newCalendarIntervalTrigger(2, quartz.IntervalDay, start)
	require.NoError(t, trigger.Validate())

	fireTimes := trigger.ComputeFireTimes(3, nil)
	require.Len(t, fireTimes, 3)
	assert.Equal(t, start, fireTimes[0])
	assert.Equal(t, start.AddDate(0, 0, 2), fireTimes[1])
	assert.Equal(t, start.AddDate(0, 0, 4), fireTimes[2])
}

func TestCalendarIntervalSchedule_MonthsPreserveDayOfMonth(t *testing.T) {
	start := time.Date(2011, time.January, 31, 8, 0, 0, 0, time.UTC)
	trigger := newCalendarIntervalTrigger(1, quartz.IntervalMonth, start)

	fireTimes := trigger.ComputeFireTimes(4, nil)
	require.Len(t, fireTimes, 4)
	assert.Equal(t, start, fireTimes[0])
	// February has no 31st; the fire clamps to the last day and a start
	// on the last day of the month stays on the last day
	assert.Equal(t, time.Date(2011, time.February, 28, 8, 0, 0, 0, time.UTC), fireTimes[1])
	assert.Equal(t, time.Date(2011, time.March, 31, 8, 0, 0, 0, time.UTC), fireTimes[2])
	assert.Equal(t, time.Date(2011, time.April, 30, 8, 0, 0, 0, time.UTC), fireTimes[3])
}

func TestCalendarIntervalSchedule_MidMonthKeepsDay(t *testing.T) {
	start := time.Date(2011, time.January, 15, 8, 0, 0, 0, time.UTC)
	trigger := newCalendarIntervalTrigger(1, quartz.IntervalMonth, start)

	fireTimes := trigger.ComputeFireTimes(13, nil)
	require.Len(t, fireTimes, 13)
	for _, fireTime := range fireTimes {
		assert.Equal(t, 15, fireTime.Day())
	}
	assert.Equal(t, time.Date(2012, time.January, 15, 8, 0, 0, 0, time.UTC),
		fireTimes[12])
}

func TestCalendarIntervalSchedule_Years(t *testing.T) {
	start := time.Date(2012, time.February, 29, 8, 0, 0, 0, time.UTC)
	trigger := newCalendarIntervalTrigger(1, quartz.IntervalYear, start)

	fireTimes := trigger.ComputeFireTimes(2, nil)
	require.Len(t, fireTimes, 2)
	// 2013 has no leap day
	assert.Equal(t, time.Date(2013, time.February, 28, 8, 0, 0, 0, time.UTC),
		fireTimes[1])
}

func TestCalendarIntervalSchedule_Monotonic(t *testing.T) {
	start := time.Date(2011, time.January, 31, 8, 0, 0, 0, time.UTC)
	trigger := newCalendarIntervalTrigger(1, quartz.IntervalMonth, start)

	previous := time.Time{}
	for offset := time.Duration(0); offset < 90*24*time.Hour; offset += 17 * time.Hour {
		next, ok := trigger.FireTimeAfter(start.Add(offset), nil)
		require.True(t, ok)
		assert.True(t, next.After(start.Add(offset)))
		assert.False(t, next.Before(previous), "fireTimeAfter is not monotonic")
		previous = next
	}
}

func TestCalendarIntervalSchedule_Validate(t *testing.T) {
	start := time.Now()
	err := newCalendarIntervalTrigger(0, quartz.IntervalDay, start).Validate()
	assert.ErrorIs(t, err, quartz.ErrIllegalArgument)

	err = newCalendarIntervalTrigger(1, quartz.IntervalDay, start).
		WithMisfireInstruction(quartz.MisfireRescheduleNextWithRemainingCount).
		Validate()
	assert.ErrorIs(t, err, quartz.ErrIllegalArgument)
}

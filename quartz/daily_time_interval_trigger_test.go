package quartz_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goquartz/quartz/quartz"
)

func dateOf(hour, minute, second, day int, month time.Month, year int) time.Time {
	return time.Date(year, month, day, hour, minute, second, 0, time.UTC)
}

func newDailyTrigger(schedule *quartz.DailyTimeIntervalSchedule,
	start time.Time) *quartz.Trigger {
	schedule.Location = time.UTC
	return quartz.NewTrigger(quartz.NewTriggerKey("daily"),
		quartz.NewJobKey("job"), schedule).WithStartTime(start)
}

func TestDailyTimeIntervalSchedule_NormalExample(t *testing.T) {
	start := dateOf(0, 0, 0, 1, time.January, 2011)
	schedule := quartz.NewDailyTimeIntervalSchedule(
		quartz.NewTimeOfDay(8, 0, 0), quartz.NewTimeOfDay(11, 0, 0),
		nil, 72, quartz.IntervalMinute)
	trigger := newDailyTrigger(schedule, start)
	require.NoError(t, trigger.Validate())

	// 72 minutes gives three firings per day: 8:00, 9:12 and 10:24
	fireTimes := trigger.ComputeFireTimes(48, nil)
	require.Len(t, fireTimes, 48)
	assert.Equal(t, dateOf(8, 0, 0, 1, time.January, 2011), fireTimes[0])
	assert.Equal(t, dateOf(9, 12, 0, 1, time.January, 2011), fireTimes[1])
	assert.Equal(t, dateOf(10, 24, 0, 1, time.January, 2011), fireTimes[2])
	assert.Equal(t, dateOf(10, 24, 0, 16, time.January, 2011), fireTimes[47])
}

func TestDailyTimeIntervalSchedule_MonThroughFri(t *testing.T) {
	start := dateOf(0, 0, 0, 1, time.January, 2011) // a Saturday
	schedule := quartz.NewDailyTimeIntervalSchedule(
		quartz.NewTimeOfDay(8, 0, 0), quartz.NewTimeOfDay(17, 0, 0),
		quartz.MondayThroughFriday(), 60, quartz.IntervalMinute)
	trigger := newDailyTrigger(schedule, start)

	fireTimes := trigger.ComputeFireTimes(48, nil)
	require.Len(t, fireTimes, 48)

	first := fireTimes[0]
	assert.Equal(t, dateOf(8, 0, 0, 3, time.January, 2011), first)
	assert.Equal(t, time.Monday, first.Weekday())

	// ten fires per day: the inclusive 17:00 end of day is the tenth
	assert.Equal(t, dateOf(17, 0, 0, 3, time.January, 2011), fireTimes[9])
	assert.Equal(t, dateOf(8, 0, 0, 4, time.January, 2011), fireTimes[10])
	assert.Equal(t, time.Tuesday, fireTimes[10].Weekday())

	last := fireTimes[47]
	assert.Equal(t, dateOf(15, 0, 0, 7, time.January, 2011), last)
	assert.Equal(t, time.Friday, last.Weekday())
}

func TestDailyTimeIntervalSchedule_SatAndSun(t *testing.T) {
	start := dateOf(0, 0, 0, 1, time.January, 2011)
	schedule := quartz.NewDailyTimeIntervalSchedule(
		quartz.NewTimeOfDay(8, 0, 0), quartz.NewTimeOfDay(17, 0, 0),
		quartz.SaturdayAndSunday(), 60, quartz.IntervalMinute)
	trigger := newDailyTrigger(schedule, start)

	fireTimes := trigger.ComputeFireTimes(25, nil)
	require.Len(t, fireTimes, 25)
	assert.Equal(t, dateOf(8, 0, 0, 1, time.January, 2011), fireTimes[0])
	for _, fireTime := range fireTimes {
		day := fireTime.Weekday()
		assert.True(t, day == time.Saturday || day == time.Sunday)
	}
}

func TestDailyTimeIntervalSchedule_RepeatCount(t *testing.T) {
	start := dateOf(0, 0, 0, 1, time.January, 2011)
	schedule := quartz.NewDailyTimeIntervalSchedule(
		quartz.NewTimeOfDay(8, 0, 0), quartz.NewTimeOfDay(17, 0, 0),
		nil, 60, quartz.IntervalMinute)
	trigger := newDailyTrigger(schedule, start)
	trigger.ComputeFirstFireTime(nil)

	schedule.RepeatCount = 2
	trigger.Triggered(nil)
	trigger.Triggered(nil)
	assert.False(t, trigger.NextFireTime().IsZero())
	trigger.Triggered(nil)
	assert.True(t, trigger.NextFireTime().IsZero())
}

func TestDailyTimeIntervalSchedule_EndingDailyAfterCount(t *testing.T) {
	schedule := quartz.NewDailyTimeIntervalSchedule(
		quartz.NewTimeOfDay(8, 0, 0), quartz.TimeOfDay{},
		nil, 60, quartz.IntervalMinute).EndingDailyAfterCount(10)
	assert.Equal(t, quartz.NewTimeOfDay(17, 0, 0), schedule.EndTimeOfDay)

	start := dateOf(0, 0, 0, 1, time.January, 2011)
	trigger := newDailyTrigger(schedule, start)
	fireTimes := trigger.ComputeFireTimes(11, nil)
	require.Len(t, fireTimes, 11)
	assert.Equal(t, dateOf(17, 0, 0, 1, time.January, 2011), fireTimes[9])
	assert.Equal(t, dateOf(8, 0, 0, 2, time.January, 2011), fireTimes[10])
}

func TestDailyTimeIntervalSchedule_Validate(t *testing.T) {
	start := time.Now()

	// end of day precedes start of day
	schedule := quartz.NewDailyTimeIntervalSchedule(
		quartz.NewTimeOfDay(12, 0, 0), quartz.NewTimeOfDay(8, 0, 0),
		nil, 60, quartz.IntervalMinute)
	err := newDailyTrigger(schedule, start).Validate()
	assert.ErrorIs(t, err, quartz.ErrIllegalArgument)

	// interval times unit above 24 hours
	schedule = quartz.NewDailyTimeIntervalSchedule(
		quartz.NewTimeOfDay(8, 0, 0), quartz.NewTimeOfDay(17, 0, 0),
		nil, 25, quartz.IntervalHour)
	err = newDailyTrigger(schedule, start).Validate()
	assert.ErrorIs(t, err, quartz.ErrIllegalArgument)

	// day-based units are not allowed
	schedule = quartz.NewDailyTimeIntervalSchedule(
		quartz.NewTimeOfDay(8, 0, 0), quartz.NewTimeOfDay(17, 0, 0),
		nil, 1, quartz.IntervalDay)
	err = newDailyTrigger(schedule, start).Validate()
	assert.ErrorIs(t, err, quartz.ErrIllegalArgument)

	// out-of-range time of day
	assert.Error(t, quartz.NewTimeOfDay(24, 0, 0).Validate())
	assert.Error(t, quartz.NewTimeOfDay(8, 60, 0).Validate())
	assert.Error(t, quartz.NewTimeOfDay(8, 0, -1).Validate())
}

package quartz_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goquartz/quartz/quartz"
)

func newSimpleTrigger(interval time.Duration, repeatCount int,
	start time.Time) *quartz.Trigger {
	return quartz.NewTrigger(
		quartz.NewTriggerKey("simple"),
		quartz.NewJobKey("job"),
		quartz.NewSimpleSchedule(interval, repeatCount),
	).WithStartTime(start)
}

func TestSimpleSchedule_FireTimes(t *testing.T) {
	start := time.Date(2011, time.January, 1, 0, 0, 0, 0, time.UTC)
	trigger := newSimpleTrigger(3*time.Second, 9, start)
	require.NoError(t, trigger.Validate())

	fireTimes := trigger.ComputeFireTimes(48, nil)
	require.Len(t, fireTimes, 10)
	for i, fireTime := range fireTimes {
		assert.Equal(t, start.Add(time.Duration(i)*3*time.Second), fireTime)
	}
	assert.Equal(t, start.Add(27*time.Second), fireTimes[9])
}

func TestSimpleSchedule_RunOnce(t *testing.T) {
	start := time.Date(2011, time.January, 1, 0, 0, 0, 0, time.UTC)
	trigger := quartz.NewTrigger(quartz.NewTriggerKey("once"),
		quartz.NewJobKey("job"), quartz.NewRunOnceSchedule()).
		WithStartTime(start)

	fireTimes := trigger.ComputeFireTimes(10, nil)
	require.Len(t, fireTimes, 1)
	assert.Equal(t, start, fireTimes[0])
}

func TestSimpleSchedule_EndTimeBound(t *testing.T) {
	start := time.Date(2011, time.January, 1, 0, 0, 0, 0, time.UTC)
	trigger := newSimpleTrigger(time.Minute, quartz.RepeatIndefinitely, start).
		WithEndTime(start.Add(5 * time.Minute))

	fireTimes := trigger.ComputeFireTimes(100, nil)
	assert.Len(t, fireTimes, 6) // start plus five more within the end time
}

func TestSimpleSchedule_Monotonic(t *testing.T) {
	start := time.Date(2011, time.January, 1, 0, 0, 0, 0, time.UTC)
	trigger := newSimpleTrigger(7*time.Second, quartz.RepeatIndefinitely, start)

	previous := time.Time{}
	for offset := time.Duration(0); offset < time.Minute; offset += time.Second {
		next, ok := trigger.FireTimeAfter(start.Add(offset), nil)
		require.True(t, ok)
		assert.True(t, next.After(start.Add(offset)))
		assert.False(t, next.Before(previous), "fireTimeAfter is not monotonic")
		previous = next
	}
}

func TestSimpleSchedule_Triggered(t *testing.T) {
	start := time.Date(2011, time.January, 1, 0, 0, 0, 0, time.UTC)
	trigger := newSimpleTrigger(time.Second, 2, start)
	trigger.ComputeFirstFireTime(nil)
	assert.Equal(t, start, trigger.NextFireTime())

	trigger.Triggered(nil)
	assert.Equal(t, start, trigger.PreviousFireTime())
	assert.Equal(t, start.Add(time.Second), trigger.NextFireTime())

	trigger.Triggered(nil)
	trigger.Triggered(nil)
	assert.True(t, trigger.NextFireTime().IsZero())
	assert.False(t, trigger.MayFireAgain())
}

func TestSimpleSchedule_MisfireRescheduleNow(t *testing.T) {
	now := time.Now()
	start := now.Add(-time.Hour)
	trigger := newSimpleTrigger(time.Minute, 100, start).
		WithMisfireInstruction(quartz.MisfireRescheduleNowWithExistingCount)
	trigger.ComputeFirstFireTime(nil)

	trigger.UpdateAfterMisfire(nil, now)
	assert.Equal(t, now, trigger.NextFireTime())
	assert.Equal(t, now, trigger.StartTime())
}

func TestSimpleSchedule_MisfireRescheduleNextWithRemaining(t *testing.T) {
	now := time.Now()
	start := now.Add(-10 * time.Minute)
	schedule := quartz.NewSimpleSchedule(time.Minute, 100)
	trigger := quartz.NewTrigger(quartz.NewTriggerKey("simple"),
		quartz.NewJobKey("job"), schedule).
		WithStartTime(start).
		WithMisfireInstruction(quartz.MisfireRescheduleNextWithRemainingCount)
	trigger.ComputeFirstFireTime(nil)

	trigger.UpdateAfterMisfire(nil, now)
	assert.True(t, trigger.NextFireTime().After(now))
	// the missed occurrences count as consumed repeats
	assert.Equal(t, 10, schedule.TimesTriggered)
}

func TestSimpleSchedule_MisfireIgnorePolicy(t *testing.T) {
	now := time.Now()
	start := now.Add(-time.Hour)
	trigger := newSimpleTrigger(time.Minute, quartz.RepeatIndefinitely, start).
		WithMisfireInstruction(quartz.MisfireIgnorePolicy)
	first := trigger.ComputeFirstFireTime(nil)

	trigger.UpdateAfterMisfire(nil, now)
	// ignore-policy triggers keep their past next fire time
	assert.Equal(t, first, trigger.NextFireTime())
}

func TestSimpleSchedule_Validate(t *testing.T) {
	start := time.Now()

	err := newSimpleTrigger(0, 5, start).Validate()
	assert.ErrorIs(t, err, quartz.ErrIllegalArgument)

	err = newSimpleTrigger(time.Second, -2, start).Validate()
	assert.ErrorIs(t, err, quartz.ErrIllegalArgument)

	err = newSimpleTrigger(time.Second, 5, start).
		WithEndTime(start.Add(-time.Hour)).Validate()
	assert.ErrorIs(t, err, quartz.ErrIllegalArgument)

	err = newSimpleTrigger(time.Second, 5, start).
		WithMisfireInstruction(quartz.MisfireInstruction(42)).Validate()
	assert.ErrorIs(t, err, quartz.ErrIllegalArgument)
}

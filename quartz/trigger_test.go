package quartz_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goquartz/quartz/calendar"
	"github.com/goquartz/quartz/quartz"
)

func TestTrigger_CalendarExclusion(t *testing.T) {
	weekly := calendar.NewWeeklyCalendar(nil) // excludes the week-end

	start := time.Date(2011, time.January, 1, 8, 0, 0, 0, time.UTC) // a Saturday
	trigger := quartz.NewTrigger(quartz.NewTriggerKey("t"),
		quartz.NewJobKey("j"),
		quartz.NewSimpleSchedule(12*time.Hour, quartz.RepeatIndefinitely)).
		WithStartTime(start).
		WithCalendar("weekendsOff")

	fireTimes := trigger.ComputeFireTimes(20, weekly)
	require.NotEmpty(t, fireTimes)
	for _, fireTime := range fireTimes {
		assert.True(t, weekly.IsTimeIncluded(fireTime),
			"fire time %v violates the calendar", fireTime)
		day := fireTime.Weekday()
		assert.NotEqual(t, time.Saturday, day)
		assert.NotEqual(t, time.Sunday, day)
	}
	// the first eligible schedule instant is Monday morning
	assert.Equal(t, time.Date(2011, time.January, 3, 8, 0, 0, 0, time.UTC),
		fireTimes[0])
}

func TestTrigger_Defaults(t *testing.T) {
	trigger := quartz.NewTrigger(quartz.NewTriggerKey("t"),
		quartz.NewJobKey("j"), quartz.NewRunOnceSchedule())
	assert.Equal(t, quartz.DefaultPriority, trigger.Priority())
	assert.Equal(t, quartz.MisfireSmartPolicy, trigger.MisfireInstruction())
	assert.False(t, trigger.StartTime().IsZero())
	assert.True(t, trigger.EndTime().IsZero())
}

func TestTrigger_ExecutionComplete(t *testing.T) {
	start := time.Now()
	trigger := quartz.NewTrigger(quartz.NewTriggerKey("t"),
		quartz.NewJobKey("j"),
		quartz.NewSimpleSchedule(time.Second, quartz.RepeatIndefinitely)).
		WithStartTime(start)
	trigger.ComputeFirstFireTime(nil)

	assert.Equal(t, quartz.InstructionNoop, trigger.ExecutionComplete(nil))
	assert.Equal(t, quartz.InstructionNoop,
		trigger.ExecutionComplete(errors.New("plain failure")))

	assert.Equal(t, quartz.InstructionReExecuteJob,
		trigger.ExecutionComplete(&quartz.JobExecutionError{
			Cause:             errors.New("transient"),
			RefireImmediately: true,
		}))
	assert.Equal(t, quartz.InstructionSetTriggerComplete,
		trigger.ExecutionComplete(&quartz.JobExecutionError{
			Cause:                   errors.New("fatal for this trigger"),
			UnscheduleFiringTrigger: true,
		}))

	// an exhausted trigger is deleted on completion
	trigger.SetNextFireTime(time.Time{})
	assert.Equal(t, quartz.InstructionDeleteTrigger, trigger.ExecutionComplete(nil))
}

func TestTrigger_Clone(t *testing.T) {
	schedule := quartz.NewSimpleSchedule(time.Second, 5)
	trigger := quartz.NewTrigger(quartz.NewTriggerKey("t"),
		quartz.NewJobKey("j"), schedule).
		WithJobDataMap(quartz.JobDataMap{"a": "1"})
	trigger.ComputeFirstFireTime(nil)

	clone := trigger.Clone()
	clone.Triggered(nil)
	clone.JobDataMap()["a"] = "2"

	// the original is unaffected by mutations of the clone
	assert.Equal(t, 0, schedule.TimesTriggered)
	value, _ := trigger.JobDataMap().GetString("a")
	assert.Equal(t, "1", value)
}

func TestTrigger_Validate(t *testing.T) {
	err := quartz.NewTrigger(quartz.NewTriggerKey(""),
		quartz.NewJobKey("j"), quartz.NewRunOnceSchedule()).Validate()
	assert.ErrorIs(t, err, quartz.ErrIllegalArgument)

	err = quartz.NewTrigger(quartz.NewTriggerKey("t"),
		quartz.NewJobKey("j"), nil).Validate()
	assert.ErrorIs(t, err, quartz.ErrIllegalArgument)
}

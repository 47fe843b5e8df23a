package quartz

import (
	"errors"
	"fmt"
	"time"

	"github.com/goquartz/quartz/calendar"
)

// TriggerState represents the persisted state of a trigger.
type TriggerState string

// Trigger states.
const (
	StateNone          TriggerState = "NONE"
	StateWaiting       TriggerState = "WAITING"
	StateAcquired      TriggerState = "ACQUIRED"
	StateExecuting     TriggerState = "EXECUTING"
	StateComplete      TriggerState = "COMPLETE"
	StatePaused        TriggerState = "PAUSED"
	StatePausedBlocked TriggerState = "PAUSED_BLOCKED"
	StateBlocked       TriggerState = "BLOCKED"
	StateError         TriggerState = "ERROR"
)

// MisfireInstruction is the policy applied to a trigger whose fire time
// was missed by more than the misfire threshold.
type MisfireInstruction int

// Misfire instructions common to all trigger variants.
const (
	// MisfireIgnorePolicy instructs the scheduler to fire all missed
	// instants as soon as possible and realign afterwards.
	MisfireIgnorePolicy MisfireInstruction = -1

	// MisfireSmartPolicy resolves to a variant-specific default.
	MisfireSmartPolicy MisfireInstruction = 0

	// MisfireFireOnceNow fires once immediately and continues on schedule.
	MisfireFireOnceNow MisfireInstruction = 1

	// MisfireDoNothing advances to the next scheduled time after now.
	// Applies to cron, calendar-interval and daily-time-interval triggers.
	MisfireDoNothing MisfireInstruction = 2
)

// Misfire instructions specific to simple triggers.
const (
	MisfireRescheduleNowWithExistingCount   MisfireInstruction = 2
	MisfireRescheduleNowWithRemainingCount  MisfireInstruction = 3
	MisfireRescheduleNextWithRemainingCount MisfireInstruction = 4
	MisfireRescheduleNextWithExistingCount  MisfireInstruction = 5
)

// CompletedExecutionInstruction tells the job store what to do with a
// trigger once its job execution has completed.
type CompletedExecutionInstruction int

// Completed execution instructions.
const (
	InstructionNoop CompletedExecutionInstruction = iota
	InstructionReExecuteJob
	InstructionSetTriggerComplete
	InstructionDeleteTrigger
	InstructionSetAllJobTriggersComplete
	InstructionSetTriggerError
	InstructionSetAllJobTriggersError
)

const (
	// DefaultPriority is the priority assigned to triggers created without
	// an explicit priority.
	DefaultPriority = 5

	// MaxYear bounds schedule evaluation.
	MaxYear = 9999
)

// Schedule describes the time rule of a trigger variant. The concrete
// implementations are SimpleSchedule, CronSchedule,
// CalendarIntervalSchedule and DailyTimeIntervalSchedule.
type Schedule interface {
	// nextFireTime returns the earliest nominal fire time strictly after
	// the given instant, ignoring exclusion calendars and the trigger end
	// time. The second return value is false when the schedule is
	// exhausted.
	nextFireTime(trigger *Trigger, after time.Time) (time.Time, bool)

	// applyMisfire rewrites the trigger timing state according to the
	// effective misfire instruction.
	applyMisfire(trigger *Trigger, cal calendar.Calendar, now time.Time)

	// fired advances variant counters when the trigger fires.
	fired()

	// validate checks the schedule and the misfire instruction set on the
	// owning trigger.
	validate(trigger *Trigger) error
}

// Trigger is the rule that produces scheduled fire times for a job.
// The schedule variant determines the timing semantics; the common fields
// are shared by all variants.
type Trigger struct {
	key                *TriggerKey
	jobKey             *JobKey
	description        string
	startTime          time.Time
	endTime            time.Time
	priority           int
	misfireInstruction MisfireInstruction
	calendarName       string
	jobDataMap         JobDataMap
	nextFireTime       time.Time
	previousFireTime   time.Time
	fireInstanceID     string
	schedule           Schedule
}

// NewTrigger returns a new Trigger with the given key, job key and
// schedule variant, starting now with the default priority.
func NewTrigger(key *TriggerKey, jobKey *JobKey, schedule Schedule) *Trigger {
	return &Trigger{
		key:                key,
		jobKey:             jobKey,
		startTime:          time.Now(),
		priority:           DefaultPriority,
		misfireInstruction: MisfireSmartPolicy,
		jobDataMap:         NewJobDataMap(),
		schedule:           schedule,
	}
}

// Key returns the key of the trigger.
func (t *Trigger) Key() *TriggerKey { return t.key }

// JobKey returns the key of the job the trigger is associated with.
func (t *Trigger) JobKey() *JobKey { return t.jobKey }

// Description returns the description of the trigger.
func (t *Trigger) Description() string { return t.description }

// StartTime returns the time at which the schedule comes into effect.
func (t *Trigger) StartTime() time.Time { return t.startTime }

// EndTime returns the time after which the trigger will not fire.
// The zero time means no end time is set.
func (t *Trigger) EndTime() time.Time { return t.endTime }

// Priority returns the priority of the trigger. When two triggers are due
// at the same instant, the one with the higher priority fires first.
func (t *Trigger) Priority() int { return t.priority }

// MisfireInstruction returns the configured misfire instruction.
func (t *Trigger) MisfireInstruction() MisfireInstruction {
	return t.misfireInstruction
}

// CalendarName returns the name of the associated exclusion calendar, if
// any.
func (t *Trigger) CalendarName() string { return t.calendarName }

// JobDataMap returns the trigger's job data map.
func (t *Trigger) JobDataMap() JobDataMap { return t.jobDataMap }

// NextFireTime returns the next time at which the trigger is scheduled to
// fire. The zero time means the trigger will not fire again.
func (t *Trigger) NextFireTime() time.Time { return t.nextFireTime }

// PreviousFireTime returns the previous time at which the trigger fired.
func (t *Trigger) PreviousFireTime() time.Time { return t.previousFireTime }

// FireInstanceID identifies an individual claimed fire of the trigger.
// It is assigned by the job store at acquisition.
func (t *Trigger) FireInstanceID() string { return t.fireInstanceID }

// Schedule returns the schedule variant of the trigger.
func (t *Trigger) Schedule() Schedule { return t.schedule }

// WithDescription sets the description and returns the trigger.
func (t *Trigger) WithDescription(description string) *Trigger {
	t.description = description
	return t
}

// WithStartTime sets the start time and returns the trigger.
func (t *Trigger) WithStartTime(startTime time.Time) *Trigger {
	t.startTime = startTime
	return t
}

// WithEndTime sets the end time and returns the trigger.
func (t *Trigger) WithEndTime(endTime time.Time) *Trigger {
	t.endTime = endTime
	return t
}

// WithPriority sets the priority and returns the trigger.
func (t *Trigger) WithPriority(priority int) *Trigger {
	t.priority = priority
	return t
}

// WithMisfireInstruction sets the misfire instruction and returns the
// trigger.
func (t *Trigger) WithMisfireInstruction(instruction MisfireInstruction) *Trigger {
	t.misfireInstruction = instruction
	return t
}

// WithCalendar associates the trigger with a named exclusion calendar and
// returns the trigger.
func (t *Trigger) WithCalendar(calendarName string) *Trigger {
	t.calendarName = calendarName
	return t
}

// WithJobDataMap sets the job data map and returns the trigger.
func (t *Trigger) WithJobDataMap(jobDataMap JobDataMap) *Trigger {
	t.jobDataMap = jobDataMap
	return t
}

// SetNextFireTime sets the next fire time. It is intended to be called by
// job store implementations only.
func (t *Trigger) SetNextFireTime(next time.Time) { t.nextFireTime = next }

// SetPreviousFireTime sets the previous fire time. It is intended to be
// called by job store implementations only.
func (t *Trigger) SetPreviousFireTime(previous time.Time) {
	t.previousFireTime = previous
}

// SetFireInstanceID sets the fire instance identifier. It is intended to
// be called by job store implementations only.
func (t *Trigger) SetFireInstanceID(id string) { t.fireInstanceID = id }

// ComputeFirstFireTime computes and stores the first time at which the
// trigger will fire, honoring the given exclusion calendar. It returns the
// zero time if the trigger will never fire.
func (t *Trigger) ComputeFirstFireTime(cal calendar.Calendar) time.Time {
	first, ok := t.FireTimeAfter(t.startTime.Add(-time.Millisecond), cal)
	if !ok {
		t.nextFireTime = time.Time{}
		return time.Time{}
	}
	t.nextFireTime = first
	return first
}

// FireTimeAfter returns the next fire time strictly after the given time,
// honoring the exclusion calendar and the trigger end time. The second
// return value is false when no such time exists.
//
// Monotonicity holds: for t1 before t2, the time returned for t1 is never
// after the time returned for t2.
func (t *Trigger) FireTimeAfter(after time.Time, cal calendar.Calendar) (time.Time, bool) {
	next, ok := t.schedule.nextFireTime(t, after)
	for ok {
		if t.endTimeExceeded(next) {
			return time.Time{}, false
		}
		if next.Year() > MaxYear {
			return time.Time{}, false
		}
		if cal == nil || cal.IsTimeIncluded(next) {
			return next, true
		}
		// the candidate is excluded: jump to the next included instant and
		// re-evaluate against the schedule until a fixed point is reached
		included := cal.GetNextIncludedTime(next)
		if !included.After(next) {
			return time.Time{}, false
		}
		next, ok = t.schedule.nextFireTime(t, included.Add(-time.Millisecond))
	}
	return time.Time{}, false
}

// Triggered advances the trigger state for a fire: the previous fire time
// becomes the current next fire time, and a new next fire time is
// computed.
func (t *Trigger) Triggered(cal calendar.Calendar) {
	t.schedule.fired()
	t.previousFireTime = t.nextFireTime
	if next, ok := t.FireTimeAfter(t.nextFireTime, cal); ok {
		t.nextFireTime = next
	} else {
		t.nextFireTime = time.Time{}
	}
}

// UpdateAfterMisfire applies the trigger's misfire instruction after its
// next fire time was missed by more than the misfire threshold.
func (t *Trigger) UpdateAfterMisfire(cal calendar.Calendar, now time.Time) {
	if t.misfireInstruction == MisfireIgnorePolicy {
		return
	}
	t.schedule.applyMisfire(t, cal, now)
}

// UpdateWithNewCalendar recomputes the next fire time against a replaced
// exclusion calendar. If the current next fire time is excluded by the
// new calendar, it is advanced; times missed by no more than
// misfireThreshold stay as they are.
func (t *Trigger) UpdateWithNewCalendar(cal calendar.Calendar, misfireThreshold time.Duration) {
	if t.nextFireTime.IsZero() {
		return
	}
	if cal != nil && !cal.IsTimeIncluded(t.nextFireTime) {
		next, ok := t.FireTimeAfter(t.nextFireTime, cal)
		if !ok {
			t.nextFireTime = time.Time{}
			return
		}
		now := time.Now()
		if next.Before(now) && now.Sub(next) > misfireThreshold {
			next, ok = t.FireTimeAfter(now, cal)
			if !ok {
				t.nextFireTime = time.Time{}
				return
			}
		}
		t.nextFireTime = next
	}
}

// MayFireAgain reports whether the trigger has remaining fire times.
func (t *Trigger) MayFireAgain() bool {
	return !t.nextFireTime.IsZero()
}

// ExecutionComplete derives the completion instruction for the trigger
// after its job has been executed.
func (t *Trigger) ExecutionComplete(jobErr error) CompletedExecutionInstruction {
	var execErr *JobExecutionError
	if errors.As(jobErr, &execErr) {
		switch {
		case execErr.RefireImmediately:
			return InstructionReExecuteJob
		case execErr.UnscheduleFiringTrigger:
			return InstructionSetTriggerComplete
		case execErr.UnscheduleAllTriggers:
			return InstructionSetAllJobTriggersComplete
		}
	}
	if !t.MayFireAgain() {
		return InstructionDeleteTrigger
	}
	return InstructionNoop
}

// ComputeFireTimes returns up to limit fire times of the trigger within
// its schedule, starting from the trigger start time. The trigger timing
// state is not modified.
func (t *Trigger) ComputeFireTimes(limit int, cal calendar.Calendar) []time.Time {
	fireTimes := make([]time.Time, 0, limit)
	after := t.startTime.Add(-time.Millisecond)
	for len(fireTimes) < limit {
		next, ok := t.FireTimeAfter(after, cal)
		if !ok {
			break
		}
		fireTimes = append(fireTimes, next)
		after = next
	}
	return fireTimes
}

// Validate checks the trigger for validity.
func (t *Trigger) Validate() error {
	if err := t.key.Validate(); err != nil {
		return err
	}
	if err := t.jobKey.Validate(); err != nil {
		return err
	}
	if t.schedule == nil {
		return illegalArgumentError("trigger schedule is nil")
	}
	if t.startTime.IsZero() {
		return illegalArgumentError("trigger start time is not set")
	}
	if !t.endTime.IsZero() && t.endTime.Before(t.startTime) {
		return illegalArgumentError("trigger end time precedes the start time")
	}
	return t.schedule.validate(t)
}

// String returns the string representation of the trigger.
func (t *Trigger) String() string {
	return fmt.Sprintf("Trigger %s for job %s, next fire time %v",
		t.key, t.jobKey, t.nextFireTime)
}

// Clone returns a deep copy of the trigger, including the mutable state
// of its schedule variant.
func (t *Trigger) Clone() *Trigger {
	clone := *t
	clone.jobDataMap = t.jobDataMap.Clone()
	clone.schedule = cloneSchedule(t.schedule)
	return &clone
}

func (t *Trigger) endTimeExceeded(at time.Time) bool {
	return !t.endTime.IsZero() && at.After(t.endTime)
}

func cloneSchedule(schedule Schedule) Schedule {
	switch s := schedule.(type) {
	case *SimpleSchedule:
		clone := *s
		return &clone
	case *CronSchedule:
		clone := *s
		return &clone
	case *CalendarIntervalSchedule:
		clone := *s
		return &clone
	case *DailyTimeIntervalSchedule:
		clone := *s
		daysCopy := make([]time.Weekday, len(s.DaysOfWeek))
		copy(daysCopy, s.DaysOfWeek)
		clone.DaysOfWeek = daysCopy
		return &clone
	default:
		return schedule
	}
}

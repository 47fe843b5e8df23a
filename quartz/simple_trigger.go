package quartz

import (
	"fmt"
	"time"

	"github.com/goquartz/quartz/calendar"
)

// RepeatIndefinitely is the repeat count of a simple schedule that never
// exhausts.
const RepeatIndefinitely = -1

// SimpleSchedule fires at the trigger start time and then every Interval,
// RepeatCount more times. The fire times are start + k*interval for
// k = 0..RepeatCount.
type SimpleSchedule struct {
	// Interval is the fixed time between fires.
	Interval time.Duration

	// RepeatCount is the number of fires after the first one, or
	// RepeatIndefinitely.
	RepeatCount int

	// TimesTriggered counts completed fires. Managed by the job store.
	TimesTriggered int
}

var _ Schedule = (*SimpleSchedule)(nil)

// NewSimpleSchedule returns a schedule repeating every interval the given
// number of times after the first fire.
func NewSimpleSchedule(interval time.Duration, repeatCount int) *SimpleSchedule {
	return &SimpleSchedule{
		Interval:    interval,
		RepeatCount: repeatCount,
	}
}

// NewRunOnceSchedule returns a schedule that fires exactly once, at the
// trigger start time.
func NewRunOnceSchedule() *SimpleSchedule {
	return &SimpleSchedule{}
}

func (s *SimpleSchedule) nextFireTime(trigger *Trigger, after time.Time) (time.Time, bool) {
	if s.RepeatCount != RepeatIndefinitely && s.TimesTriggered > s.RepeatCount {
		return time.Time{}, false
	}
	start := trigger.StartTime()
	if after.Before(start) {
		return start, true
	}
	if s.RepeatCount == 0 {
		return time.Time{}, false
	}
	elapsed := after.Sub(start)
	k := elapsed/s.Interval + 1
	if s.RepeatCount != RepeatIndefinitely && k > time.Duration(s.RepeatCount) {
		return time.Time{}, false
	}
	return start.Add(k * s.Interval), true
}

func (s *SimpleSchedule) fired() {
	s.TimesTriggered++
}

func (s *SimpleSchedule) applyMisfire(trigger *Trigger, cal calendar.Calendar, now time.Time) {
	instruction := trigger.MisfireInstruction()
	if instruction == MisfireSmartPolicy {
		switch {
		case s.RepeatCount == 0:
			instruction = MisfireFireOnceNow
		case s.RepeatCount == RepeatIndefinitely:
			instruction = MisfireRescheduleNextWithRemainingCount
		default:
			instruction = MisfireRescheduleNowWithExistingCount
		}
	} else if instruction == MisfireFireOnceNow && s.RepeatCount != 0 {
		// a repeating trigger fired "once now" must not forget its counts
		instruction = MisfireRescheduleNowWithExistingCount
	}

	switch instruction {
	case MisfireFireOnceNow:
		trigger.SetNextFireTime(now)

	case MisfireRescheduleNowWithExistingCount:
		trigger.startTime = now
		trigger.SetNextFireTime(now)

	case MisfireRescheduleNowWithRemainingCount:
		if s.RepeatCount != RepeatIndefinitely {
			remaining := s.RepeatCount - s.TimesTriggered
			if remaining < 0 {
				remaining = 0
			}
			s.RepeatCount = remaining
		}
		s.TimesTriggered = 0
		trigger.startTime = now
		trigger.SetNextFireTime(now)

	case MisfireRescheduleNextWithRemainingCount:
		missed := s.timesFiredBetween(trigger, trigger.NextFireTime(), now)
		next, ok := trigger.FireTimeAfter(now, cal)
		if !ok {
			trigger.SetNextFireTime(time.Time{})
			return
		}
		s.TimesTriggered += missed
		trigger.SetNextFireTime(next)

	case MisfireRescheduleNextWithExistingCount:
		next, ok := trigger.FireTimeAfter(now, cal)
		if !ok {
			trigger.SetNextFireTime(time.Time{})
			return
		}
		trigger.SetNextFireTime(next)
	}
}

// timesFiredBetween counts schedule instants in the half-open interval
// [from, to).
func (s *SimpleSchedule) timesFiredBetween(trigger *Trigger, from, to time.Time) int {
	if s.Interval <= 0 || !to.After(from) {
		return 0
	}
	return int(to.Sub(from) / s.Interval)
}

func (s *SimpleSchedule) validate(trigger *Trigger) error {
	if s.Interval <= 0 && s.RepeatCount != 0 {
		return illegalArgumentError("simple schedule repeat interval must be positive")
	}
	if s.RepeatCount < RepeatIndefinitely {
		return illegalArgumentError("simple schedule repeat count must be >= -1")
	}
	switch trigger.MisfireInstruction() {
	case MisfireIgnorePolicy, MisfireSmartPolicy, MisfireFireOnceNow,
		MisfireRescheduleNowWithExistingCount, MisfireRescheduleNowWithRemainingCount,
		MisfireRescheduleNextWithRemainingCount, MisfireRescheduleNextWithExistingCount:
		return nil
	default:
		return illegalArgumentError(fmt.Sprintf(
			"misfire instruction %d is invalid for a simple trigger",
			trigger.MisfireInstruction()))
	}
}

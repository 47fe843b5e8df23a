package quartz

import (
	"fmt"
	"time"

	"github.com/goquartz/quartz/calendar"
)

// CalendarIntervalSchedule fires at the trigger start time and then every
// N units of calendar arithmetic. Unlike SimpleSchedule, an interval of
// one month lands on the same day of the month regardless of month
// length, and an interval of one day is unaffected by daylight-saving
// shifts of the wall clock.
//
// When the start day of the month does not exist in a target month the
// fire lands on the last day of that month, and a schedule started on the
// last day of a month stays on the last day (last-day sticky).
type CalendarIntervalSchedule struct {
	// Interval is the number of units between fires.
	Interval int

	// Unit is the calendar unit of the interval.
	Unit IntervalUnit

	// Location is the time zone the calendar arithmetic is evaluated in.
	// Defaults to time.Local.
	Location *time.Location

	// TimesTriggered counts completed fires. Managed by the job store.
	TimesTriggered int
}

var _ Schedule = (*CalendarIntervalSchedule)(nil)

// NewCalendarIntervalSchedule returns a schedule stepping by the given
// number of calendar units, evaluated in the local time zone.
func NewCalendarIntervalSchedule(interval int, unit IntervalUnit) *CalendarIntervalSchedule {
	return &CalendarIntervalSchedule{
		Interval: interval,
		Unit:     unit,
		Location: time.Local,
	}
}

func (s *CalendarIntervalSchedule) nextFireTime(trigger *Trigger, after time.Time) (time.Time, bool) {
	start := trigger.StartTime().In(s.location())
	if after.Before(start) {
		return start, true
	}
	// estimate the step count and walk to the first time strictly after
	k := int(after.Sub(start) / (time.Duration(s.Interval) * s.Unit.duration()))
	if k < 1 {
		k = 1
	}
	candidate := s.addInterval(start, k)
	for !candidate.After(after) {
		k++
		candidate = s.addInterval(start, k)
		if candidate.Year() > MaxYear {
			return time.Time{}, false
		}
	}
	// walk back in case the estimate overshot
	for k > 1 {
		previous := s.addInterval(start, k-1)
		if !previous.After(after) {
			break
		}
		k--
		candidate = previous
	}
	return candidate, true
}

// addInterval returns start advanced by k steps of the schedule unit.
// Month and year steps preserve the start day of the month, clamping to
// the last day of shorter months; a start on the last day of a month is
// treated as last-day sticky.
func (s *CalendarIntervalSchedule) addInterval(start time.Time, k int) time.Time {
	amount := k * s.Interval
	switch s.Unit {
	case IntervalSecond:
		return start.Add(time.Duration(amount) * time.Second)
	case IntervalMinute:
		return start.Add(time.Duration(amount) * time.Minute)
	case IntervalHour:
		return start.Add(time.Duration(amount) * time.Hour)
	case IntervalDay:
		return start.AddDate(0, 0, amount)
	case IntervalWeek:
		return start.AddDate(0, 0, 7*amount)
	case IntervalMonth:
		return addMonthsPreservingDay(start, amount)
	case IntervalYear:
		return addMonthsPreservingDay(start, 12*amount)
	default:
		return start.Add(time.Duration(amount) * time.Second)
	}
}

// addMonthsPreservingDay advances by whole months keeping the day of the
// month when possible. Overflow clamps to the last day of the target
// month, and a source on the last day of its month sticks to the last
// day of the target month.
func addMonthsPreservingDay(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	hour, minute, second := t.Clock()
	targetFirst := time.Date(year, month, 1, hour, minute, second, t.Nanosecond(),
		t.Location()).AddDate(0, months, 0)
	last := lastDayOfMonth(targetFirst.Year(), targetFirst.Month())
	targetDay := day
	if day >= lastDayOfMonth(year, month) || day > last {
		targetDay = last
	}
	return time.Date(targetFirst.Year(), targetFirst.Month(), targetDay,
		hour, minute, second, t.Nanosecond(), t.Location())
}

func lastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).
		AddDate(0, 1, -1).Day()
}

func (s *CalendarIntervalSchedule) fired() {
	s.TimesTriggered++
}

func (s *CalendarIntervalSchedule) applyMisfire(trigger *Trigger, cal calendar.Calendar, now time.Time) {
	instruction := trigger.MisfireInstruction()
	if instruction == MisfireSmartPolicy {
		instruction = MisfireFireOnceNow
	}
	switch instruction {
	case MisfireFireOnceNow:
		trigger.SetNextFireTime(now)
	case MisfireDoNothing:
		next, ok := trigger.FireTimeAfter(now, cal)
		if !ok {
			trigger.SetNextFireTime(time.Time{})
			return
		}
		trigger.SetNextFireTime(next)
	}
}

func (s *CalendarIntervalSchedule) validate(trigger *Trigger) error {
	if s.Interval < 1 {
		return illegalArgumentError("calendar interval must be >= 1")
	}
	if s.Unit < IntervalSecond || s.Unit > IntervalYear {
		return illegalArgumentError("calendar interval unit is invalid")
	}
	switch trigger.MisfireInstruction() {
	case MisfireIgnorePolicy, MisfireSmartPolicy, MisfireFireOnceNow, MisfireDoNothing:
		return nil
	default:
		return illegalArgumentError(fmt.Sprintf(
			"misfire instruction %d is invalid for a calendar interval trigger",
			trigger.MisfireInstruction()))
	}
}

// location returns the evaluation time zone, defaulting to time.Local.
func (s *CalendarIntervalSchedule) location() *time.Location {
	if s.Location == nil {
		return time.Local
	}
	return s.Location
}

package quartz

import (
	"fmt"
	"time"

	"github.com/goquartz/quartz/calendar"
)

// AllDaysOfWeek returns the set of all weekdays.
func AllDaysOfWeek() []time.Weekday {
	return []time.Weekday{time.Sunday, time.Monday, time.Tuesday,
		time.Wednesday, time.Thursday, time.Friday, time.Saturday}
}

// MondayThroughFriday returns the working-day set.
func MondayThroughFriday() []time.Weekday {
	return []time.Weekday{time.Monday, time.Tuesday, time.Wednesday,
		time.Thursday, time.Friday}
}

// SaturdayAndSunday returns the week-end set.
func SaturdayAndSunday() []time.Weekday {
	return []time.Weekday{time.Saturday, time.Sunday}
}

// DailyTimeIntervalSchedule fires within the window
// [StartTimeOfDay, EndTimeOfDay] on the configured weekdays, stepping by
// Interval units. Both window boundaries are inclusive: with an 8:00 start,
// a 17:00 end and a one-hour interval the schedule produces ten fires per
// day. The total interval length must not exceed 24 hours.
type DailyTimeIntervalSchedule struct {
	// StartTimeOfDay is the earliest fire time within a day.
	StartTimeOfDay TimeOfDay

	// EndTimeOfDay is the latest fire time within a day. The zero value
	// means the end of the day (23:59:59).
	EndTimeOfDay TimeOfDay

	// DaysOfWeek is the set of weekdays the schedule fires on. Empty
	// means all days.
	DaysOfWeek []time.Weekday

	// Interval is the number of units between fires within a day.
	Interval int

	// Unit is the step unit; seconds, minutes and hours only.
	Unit IntervalUnit

	// RepeatCount is the total number of fires after the first one, or
	// RepeatIndefinitely.
	RepeatCount int

	// Location is the time zone the times of day are evaluated in.
	// Defaults to time.Local.
	Location *time.Location

	// TimesTriggered counts completed fires. Managed by the job store.
	TimesTriggered int
}

var _ Schedule = (*DailyTimeIntervalSchedule)(nil)

// NewDailyTimeIntervalSchedule returns a schedule firing between the
// given times of day on the given weekdays, stepping by interval units,
// in the local time zone.
func NewDailyTimeIntervalSchedule(startTimeOfDay, endTimeOfDay TimeOfDay,
	daysOfWeek []time.Weekday, interval int, unit IntervalUnit) *DailyTimeIntervalSchedule {
	return &DailyTimeIntervalSchedule{
		StartTimeOfDay: startTimeOfDay,
		EndTimeOfDay:   endTimeOfDay,
		DaysOfWeek:     daysOfWeek,
		Interval:       interval,
		Unit:           unit,
		RepeatCount:    RepeatIndefinitely,
		Location:       time.Local,
	}
}

// EndingDailyAfterCount derives the end time of day so that each day
// produces exactly count fires, and returns the schedule.
func (s *DailyTimeIntervalSchedule) EndingDailyAfterCount(count int) *DailyTimeIntervalSchedule {
	if count < 1 {
		return s
	}
	seconds := s.StartTimeOfDay.SecondsOfDay() +
		(count-1)*s.Interval*int(s.Unit.duration()/time.Second)
	if seconds > 24*3600-1 {
		seconds = 24*3600 - 1
	}
	s.EndTimeOfDay = TimeOfDay{
		Hour:   seconds / 3600,
		Minute: (seconds % 3600) / 60,
		Second: seconds % 60,
	}
	return s
}

func (s *DailyTimeIntervalSchedule) nextFireTime(trigger *Trigger, after time.Time) (time.Time, bool) {
	if s.RepeatCount != RepeatIndefinitely && s.TimesTriggered > s.RepeatCount {
		return time.Time{}, false
	}
	interval := time.Duration(s.Interval) * s.Unit.duration()
	if interval <= 0 {
		return time.Time{}, false
	}
	start := trigger.StartTime()
	if after.Before(start) {
		after = start.Add(-time.Millisecond)
	}
	candidate := after.In(s.location())
	for day := 0; ; day++ {
		if candidate.Year() > MaxYear {
			return time.Time{}, false
		}
		windowStart := s.StartTimeOfDay.OnDate(candidate)
		windowEnd := s.endOfWindow(candidate)
		if s.dayEnabled(candidate.Weekday()) && !candidate.After(windowEnd) {
			if candidate.Before(windowStart) {
				return windowStart, true
			}
			// candidate is inside the window: step to the next multiple of
			// the interval strictly after it
			k := candidate.Sub(windowStart)/interval + 1
			next := windowStart.Add(k * interval)
			if !next.After(windowEnd) {
				return next, true
			}
		}
		candidate = s.StartTimeOfDay.OnDate(candidate.AddDate(0, 0, 1)).
			Add(-time.Millisecond)
	}
}

// endOfWindow returns the inclusive end of the fire window on the date of
// t, defaulting to the last second of the day.
func (s *DailyTimeIntervalSchedule) endOfWindow(t time.Time) time.Time {
	end := s.EndTimeOfDay
	if end == (TimeOfDay{}) {
		end = TimeOfDay{Hour: 23, Minute: 59, Second: 59}
	}
	return end.OnDate(t)
}

func (s *DailyTimeIntervalSchedule) dayEnabled(day time.Weekday) bool {
	if len(s.DaysOfWeek) == 0 {
		return true
	}
	for _, d := range s.DaysOfWeek {
		if d == day {
			return true
		}
	}
	return false
}

func (s *DailyTimeIntervalSchedule) fired() {
	s.TimesTriggered++
}

func (s *DailyTimeIntervalSchedule) applyMisfire(trigger *Trigger, cal calendar.Calendar, now time.Time) {
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

func (s *DailyTimeIntervalSchedule) validate(trigger *Trigger) error {
	if s.Interval < 1 {
		return illegalArgumentError("daily time interval must be >= 1")
	}
	if s.Unit != IntervalSecond && s.Unit != IntervalMinute && s.Unit != IntervalHour {
		return illegalArgumentError(
			"daily time interval unit must be second, minute or hour")
	}
	if err := s.StartTimeOfDay.Validate(); err != nil {
		return err
	}
	if err := s.EndTimeOfDay.Validate(); err != nil {
		return err
	}
	if s.EndTimeOfDay != (TimeOfDay{}) && s.EndTimeOfDay.Before(s.StartTimeOfDay) {
		return illegalArgumentError("daily time interval end of day precedes start of day")
	}
	if time.Duration(s.Interval)*s.Unit.duration() > 24*time.Hour {
		return illegalArgumentError("daily time interval product exceeds 24 hours")
	}
	if s.RepeatCount < RepeatIndefinitely {
		return illegalArgumentError("daily time interval repeat count must be >= -1")
	}
	for _, day := range s.DaysOfWeek {
		if day < time.Sunday || day > time.Saturday {
			return illegalArgumentError(fmt.Sprintf("invalid day of week %d", day))
		}
	}
	switch trigger.MisfireInstruction() {
	case MisfireIgnorePolicy, MisfireSmartPolicy, MisfireFireOnceNow, MisfireDoNothing:
		return nil
	default:
		return illegalArgumentError(fmt.Sprintf(
			"misfire instruction %d is invalid for a daily time interval trigger",
			trigger.MisfireInstruction()))
	}
}

// location returns the evaluation time zone, defaulting to time.Local.
func (s *DailyTimeIntervalSchedule) location() *time.Location {
	if s.Location == nil {
		return time.Local
	}
	return s.Location
}

// Package calendar provides exclusion calendars that remove instants from
// the eligible fire-time set of a trigger. Calendars chain via an optional
// base calendar; a time is included only if every calendar in the chain
// includes it.
package calendar

import (
	"encoding/gob"
	"time"
)

// Calendar is an immutable predicate over instants, used by triggers to
// exclude fire times.
type Calendar interface {
	// IsTimeIncluded reports whether the given time is included by this
	// calendar and its whole base chain.
	IsTimeIncluded(t time.Time) bool

	// GetNextIncludedTime returns the first time after the given one that
	// is included by this calendar and its whole base chain.
	GetNextIncludedTime(t time.Time) time.Time

	// Description returns the description of the calendar.
	Description() string

	// Base returns the base calendar of the chain, or nil.
	Base() Calendar
}

// maxScanYear bounds GetNextIncludedTime iteration for calendars that
// exclude everything.
const maxScanYear = 9999

func init() {
	gob.Register(&AnnualCalendar{})
	gob.Register(&WeeklyCalendar{})
	gob.Register(&MonthlyCalendar{})
	gob.Register(&DailyCalendar{})
	gob.Register(&CronCalendar{})
	gob.Register(&HolidayCalendar{})
}

// BaseCalendar carries the chain link and description shared by all
// calendar variants. The zero value is a calendar that includes all times.
type BaseCalendar struct {
	BaseCal      Calendar
	Desc         string
	LocationName string

	location *time.Location
}

// Base returns the base calendar of the chain, or nil.
func (bc *BaseCalendar) Base() Calendar { return bc.BaseCal }

// Description returns the description of the calendar.
func (bc *BaseCalendar) Description() string { return bc.Desc }

// baseIncludes reports whether the base chain includes the time.
func (bc *BaseCalendar) baseIncludes(t time.Time) bool {
	return bc.BaseCal == nil || bc.BaseCal.IsTimeIncluded(t)
}

// loc resolves the calendar time zone, defaulting to UTC. The resolved
// location is cached; the cache is rebuilt after deserialization.
func (bc *BaseCalendar) loc() *time.Location {
	if bc.location != nil {
		return bc.location
	}
	if bc.LocationName == "" {
		bc.location = time.UTC
		return bc.location
	}
	location, err := time.LoadLocation(bc.LocationName)
	if err != nil {
		location = time.UTC
	}
	bc.location = location
	return bc.location
}

// nextIncluded advances day by day until the predicate and the base chain
// both include the candidate. The search gives up past maxScanYear and
// returns the last candidate.
func nextIncluded(cal Calendar, t time.Time, advance func(time.Time) time.Time) time.Time {
	candidate := t
	for {
		candidate = advance(candidate)
		if cal.IsTimeIncluded(candidate) || candidate.Year() > maxScanYear {
			return candidate
		}
	}
}

// startOfNextDay returns midnight of the day after t in t's location.
func startOfNextDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
}

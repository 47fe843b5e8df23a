package calendar

import (
	"sort"
	"time"
)

// HolidayCalendar excludes a set of full calendar days, each identified by
// its date. Unlike AnnualCalendar the excluded days are year-specific.
type HolidayCalendar struct {
	BaseCalendar
	// ExcludedDates holds the excluded days as midnight instants in the
	// calendar location.
	ExcludedDates []time.Time
}

var _ Calendar = (*HolidayCalendar)(nil)

// NewHolidayCalendar returns a new HolidayCalendar with the given base.
func NewHolidayCalendar(base Calendar) *HolidayCalendar {
	return &HolidayCalendar{BaseCalendar: BaseCalendar{BaseCal: base}}
}

// AddExcludedDate adds the date's day to the exclusion set.
func (c *HolidayCalendar) AddExcludedDate(date time.Time) {
	day := startOfDay(date.In(c.loc()))
	for _, d := range c.ExcludedDates {
		if d.Equal(day) {
			return
		}
	}
	c.ExcludedDates = append(c.ExcludedDates, day)
	sort.Slice(c.ExcludedDates, func(i, j int) bool {
		return c.ExcludedDates[i].Before(c.ExcludedDates[j])
	})
}

// RemoveExcludedDate removes the date's day from the exclusion set.
func (c *HolidayCalendar) RemoveExcludedDate(date time.Time) {
	day := startOfDay(date.In(c.loc()))
	for i, d := range c.ExcludedDates {
		if d.Equal(day) {
			c.ExcludedDates = append(c.ExcludedDates[:i], c.ExcludedDates[i+1:]...)
			return
		}
	}
}

// IsTimeIncluded reports whether the given time is included.
func (c *HolidayCalendar) IsTimeIncluded(t time.Time) bool {
	if !c.baseIncludes(t) {
		return false
	}
	day := startOfDay(t.In(c.loc()))
	for _, d := range c.ExcludedDates {
		if d.Equal(day) {
			return false
		}
	}
	return true
}

// GetNextIncludedTime returns the first included time after the given one.
func (c *HolidayCalendar) GetNextIncludedTime(t time.Time) time.Time {
	if c.IsTimeIncluded(t.Add(time.Millisecond)) {
		return t.Add(time.Millisecond)
	}
	return nextIncluded(c, t.In(c.loc()), startOfNextDay)
}

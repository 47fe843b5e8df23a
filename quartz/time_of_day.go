package quartz

import (
	"fmt"
	"time"
)

// TimeOfDay represents a wall-clock time of day, to second precision.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// NewTimeOfDay returns a new TimeOfDay for the given hour, minute and
// second.
func NewTimeOfDay(hour, minute, second int) TimeOfDay {
	return TimeOfDay{Hour: hour, Minute: minute, Second: second}
}

// HourAndMinuteOfDay returns a new TimeOfDay for the given hour and
// minute, with zero seconds.
func HourAndMinuteOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay{Hour: hour, Minute: minute}
}

// Validate checks the TimeOfDay fields against their documented ranges.
func (tod TimeOfDay) Validate() error {
	if tod.Hour < 0 || tod.Hour > 23 {
		return illegalArgumentError(fmt.Sprintf("hour %d out of range [0, 23]", tod.Hour))
	}
	if tod.Minute < 0 || tod.Minute > 59 {
		return illegalArgumentError(fmt.Sprintf("minute %d out of range [0, 59]", tod.Minute))
	}
	if tod.Second < 0 || tod.Second > 59 {
		return illegalArgumentError(fmt.Sprintf("second %d out of range [0, 59]", tod.Second))
	}
	return nil
}

// SecondsOfDay returns the number of seconds from midnight.
func (tod TimeOfDay) SecondsOfDay() int {
	return tod.Hour*3600 + tod.Minute*60 + tod.Second
}

// Before reports whether tod is earlier in the day than other.
func (tod TimeOfDay) Before(other TimeOfDay) bool {
	return tod.SecondsOfDay() < other.SecondsOfDay()
}

// Equals reports whether tod and other denote the same time of day.
func (tod TimeOfDay) Equals(other TimeOfDay) bool {
	return tod.SecondsOfDay() == other.SecondsOfDay()
}

// OnDate returns the instant at this time of day on the date of t, in
// t's location.
func (tod TimeOfDay) OnDate(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, tod.Hour, tod.Minute, tod.Second, 0,
		t.Location())
}

// String returns the string representation of the TimeOfDay.
func (tod TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", tod.Hour, tod.Minute, tod.Second)
}

// TimeOfDayFromString parses a TimeOfDay in HH:MM:SS format.
func TimeOfDayFromString(s string) (TimeOfDay, error) {
	var tod TimeOfDay
	if _, err := fmt.Sscanf(s, "%d:%d:%d", &tod.Hour, &tod.Minute, &tod.Second); err != nil {
		return TimeOfDay{}, illegalArgumentError("malformed time of day " + s)
	}
	if err := tod.Validate(); err != nil {
		return TimeOfDay{}, err
	}
	return tod, nil
}

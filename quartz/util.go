package quartz

import (
	"hash/fnv"
	"time"
)

// EvenHourDate returns the given time rounded up to the next even hour.
func EvenHourDate(t time.Time) time.Time {
	return t.Truncate(time.Hour).Add(time.Hour)
}

// EvenHourDateBefore returns the given time rounded down to the previous
// even hour.
func EvenHourDateBefore(t time.Time) time.Time {
	return t.Truncate(time.Hour)
}

// EvenMinuteDate returns the given time rounded up to the next even
// minute.
func EvenMinuteDate(t time.Time) time.Time {
	return t.Truncate(time.Minute).Add(time.Minute)
}

// EvenMinuteDateBefore returns the given time rounded down to the
// previous even minute.
func EvenMinuteDateBefore(t time.Time) time.Time {
	return t.Truncate(time.Minute)
}

// EvenSecondDate returns the given time rounded up to the next even
// second.
func EvenSecondDate(t time.Time) time.Time {
	return t.Truncate(time.Second).Add(time.Second)
}

// EvenSecondDateBefore returns the given time rounded down to the
// previous even second.
func EvenSecondDateBefore(t time.Time) time.Time {
	return t.Truncate(time.Second)
}

// NextGivenMinuteDate returns the given time rounded up to the next
// multiple of the given minute base. With a base of zero the time is
// advanced to the next even hour. For example, 08:13:54 with base 5
// yields 08:15:00, and 08:53:31 with base 45 yields 09:00:00 because the
// even hour is the next base for 45-minute intervals.
func NextGivenMinuteDate(t time.Time, minuteBase int) (time.Time, error) {
	if minuteBase < 0 || minuteBase > 59 {
		return time.Time{}, illegalArgumentError("minute base must be in [0, 59]")
	}
	if minuteBase == 0 {
		return t.Truncate(time.Hour).Add(time.Hour), nil
	}
	truncated := t.Truncate(time.Minute)
	minute := truncated.Minute()
	nextMinute := minute + minuteBase - minute%minuteBase
	if nextMinute >= 60 {
		return truncated.Truncate(time.Hour).Add(time.Hour), nil
	}
	return truncated.Add(time.Duration(nextMinute-minute) * time.Minute), nil
}

// NextGivenSecondDate returns the given time rounded up to the next
// multiple of the given second base. The rules are the same as those of
// NextGivenMinuteDate.
func NextGivenSecondDate(t time.Time, secondBase int) (time.Time, error) {
	if secondBase < 0 || secondBase > 59 {
		return time.Time{}, illegalArgumentError("second base must be in [0, 59]")
	}
	if secondBase == 0 {
		return t.Truncate(time.Minute).Add(time.Minute), nil
	}
	truncated := t.Truncate(time.Second)
	second := truncated.Second()
	nextSecond := second + secondBase - second%secondBase
	if nextSecond >= 60 {
		return truncated.Truncate(time.Minute).Add(time.Minute), nil
	}
	return truncated.Add(time.Duration(nextSecond-second) * time.Second), nil
}

// TranslateTime shifts the wall-clock reading of the given time by the
// zone-offset difference between the source and destination zones at that
// instant.
func TranslateTime(t time.Time, src, dst *time.Location) time.Time {
	_, srcOffset := t.In(src).Zone()
	_, dstOffset := t.In(dst).Zone()
	return t.Add(-time.Duration(dstOffset-srcOffset) * time.Second)
}

// NowMilli returns the current time truncated to millisecond precision,
// the granularity persisted by the job stores.
func NowMilli() time.Time {
	return time.Now().Truncate(time.Millisecond)
}

// HashCode calculates and returns a hash code for the given string.
func HashCode(s string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32())
}

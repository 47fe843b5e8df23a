package quartz_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goquartz/quartz/quartz"
)

func at(hour, minute, second int) time.Time {
	return time.Date(2011, time.June, 15, hour, minute, second, 0, time.UTC)
}

func TestNextGivenMinuteDate(t *testing.T) {
	tests := []struct {
		input    time.Time
		base     int
		expected time.Time
	}{
		{at(11, 16, 41), 20, at(11, 20, 0)},
		{at(11, 36, 41), 20, at(11, 40, 0)},
		{at(11, 46, 41), 20, at(12, 0, 0)},
		{at(11, 26, 41), 30, at(11, 30, 0)},
		{at(11, 36, 41), 30, at(12, 0, 0)},
		{at(11, 16, 41), 17, at(11, 17, 0)},
		{at(11, 17, 41), 17, at(11, 34, 0)},
		{at(11, 52, 41), 17, at(12, 0, 0)},
		{at(11, 52, 41), 5, at(11, 55, 0)},
		{at(11, 57, 41), 5, at(12, 0, 0)},
		{at(11, 17, 41), 0, at(12, 0, 0)},
		{at(11, 17, 41), 1, at(11, 18, 0)},
	}
	for _, tt := range tests {
		result, err := quartz.NextGivenMinuteDate(tt.input, tt.base)
		require.NoError(t, err)
		assert.Equal(t, tt.expected, result,
			"input %v, base %d", tt.input, tt.base)
	}
}

func TestNextGivenMinuteDate_InvalidBase(t *testing.T) {
	_, err := quartz.NextGivenMinuteDate(at(11, 0, 0), 60)
	assert.ErrorIs(t, err, quartz.ErrIllegalArgument)
	_, err = quartz.NextGivenMinuteDate(at(11, 0, 0), -1)
	assert.ErrorIs(t, err, quartz.ErrIllegalArgument)
}

func TestNextGivenSecondDate(t *testing.T) {
	result, err := quartz.NextGivenSecondDate(at(11, 17, 41), 15)
	require.NoError(t, err)
	assert.Equal(t, at(11, 17, 45), result)

	result, err = quartz.NextGivenSecondDate(at(11, 17, 56), 15)
	require.NoError(t, err)
	assert.Equal(t, at(11, 18, 0), result)

	result, err = quartz.NextGivenSecondDate(at(11, 17, 41), 0)
	require.NoError(t, err)
	assert.Equal(t, at(11, 18, 0), result)
}

func TestEvenRounding(t *testing.T) {
	input := time.Date(2011, time.June, 15, 11, 17, 41, 500e6, time.UTC)

	assert.Equal(t, at(12, 0, 0), quartz.EvenHourDate(input))
	assert.Equal(t, at(11, 0, 0), quartz.EvenHourDateBefore(input))
	assert.Equal(t, at(11, 18, 0), quartz.EvenMinuteDate(input))
	assert.Equal(t, at(11, 17, 0), quartz.EvenMinuteDateBefore(input))
	assert.Equal(t, at(11, 17, 42), quartz.EvenSecondDate(input))
	assert.Equal(t, at(11, 17, 41), quartz.EvenSecondDateBefore(input))
}

func TestEvenRounding_Idempotent(t *testing.T) {
	input := time.Date(2011, time.June, 15, 11, 17, 41, 123456789, time.UTC)

	once := quartz.EvenSecondDateBefore(input)
	assert.Equal(t, once, quartz.EvenSecondDateBefore(once))

	once = quartz.EvenMinuteDateBefore(input)
	assert.Equal(t, once, quartz.EvenMinuteDateBefore(once))

	once = quartz.EvenHourDateBefore(input)
	assert.Equal(t, once, quartz.EvenHourDateBefore(once))
}

func TestTranslateTime(t *testing.T) {
	vienna, err := time.LoadLocation("Europe/Vienna")
	require.NoError(t, err)

	// Vienna is UTC+1 in winter: 12:00 UTC wall clock shifts by -1h
	input := time.Date(2024, time.January, 10, 12, 0, 0, 0, time.UTC)
	translated := quartz.TranslateTime(input, time.UTC, vienna)
	assert.Equal(t, input.Add(-time.Hour), translated)

	// and by -2h in summer
	input = time.Date(2024, time.July, 10, 12, 0, 0, 0, time.UTC)
	translated = quartz.TranslateTime(input, time.UTC, vienna)
	assert.Equal(t, input.Add(-2*time.Hour), translated)
}

func TestHashCode(t *testing.T) {
	assert.Equal(t, quartz.HashCode("job"), quartz.HashCode("job"))
	assert.NotEqual(t, quartz.HashCode("job"), quartz.HashCode("job2"))
}

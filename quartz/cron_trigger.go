package quartz

import (
	"fmt"
	"strings"
	"time"

	"github.com/gorhill/cronexpr"

	"github.com/goquartz/quartz/calendar"
)

// CronSchedule fires at the times matched by a cron expression with the
// fields
//
//	<second> <minute> <hour> <day-of-month> <month> <day-of-week> <year>
//
// supporting the special characters ? * , - / L W #. The <year> field is
// optional. The expression is evaluated in the configured time zone; on a
// daylight-saving spring-forward the fire lands at the first existing
// local instant, and a fall-back does not duplicate fires.
type CronSchedule struct {
	// Expression is the cron expression source text.
	Expression string

	// Location is the time zone the expression is evaluated in.
	// Defaults to time.Local.
	Location *time.Location

	expr *cronexpr.Expression
}

var _ Schedule = (*CronSchedule)(nil)

// NewCronSchedule returns a schedule for the given cron expression,
// evaluated in the local time zone.
func NewCronSchedule(expression string) (*CronSchedule, error) {
	return NewCronScheduleInLocation(expression, time.Local)
}

// NewCronScheduleInLocation returns a schedule for the given cron
// expression, evaluated in the given time zone.
func NewCronScheduleInLocation(expression string, location *time.Location) (*CronSchedule, error) {
	expr, err := cronexpr.Parse(withYearField(expression))
	if err != nil {
		return nil, cronParseError(err.Error())
	}
	if location == nil {
		location = time.Local
	}
	return &CronSchedule{
		Expression: expression,
		Location:   location,
		expr:       expr,
	}, nil
}

func (s *CronSchedule) nextFireTime(trigger *Trigger, after time.Time) (time.Time, bool) {
	expr, err := s.expression()
	if err != nil {
		return time.Time{}, false
	}
	if after.Before(trigger.StartTime()) {
		after = trigger.StartTime().Add(-time.Millisecond)
	}
	next := expr.Next(after.In(s.location()))
	if next.IsZero() {
		return time.Time{}, false
	}
	return next, true
}

func (s *CronSchedule) fired() {}

func (s *CronSchedule) applyMisfire(trigger *Trigger, cal calendar.Calendar, now time.Time) {
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

func (s *CronSchedule) validate(trigger *Trigger) error {
	if _, err := s.expression(); err != nil {
		return cronParseError(err.Error())
	}
	switch trigger.MisfireInstruction() {
	case MisfireIgnorePolicy, MisfireSmartPolicy, MisfireFireOnceNow, MisfireDoNothing:
		return nil
	default:
		return illegalArgumentError(fmt.Sprintf(
			"misfire instruction %d is invalid for a cron trigger",
			trigger.MisfireInstruction()))
	}
}

// expression returns the parsed cron expression, re-parsing after the
// schedule was loaded from a store.
func (s *CronSchedule) expression() (*cronexpr.Expression, error) {
	if s.expr != nil {
		return s.expr, nil
	}
	expr, err := cronexpr.Parse(withYearField(s.Expression))
	if err != nil {
		return nil, err
	}
	s.expr = expr
	return expr, nil
}

// withYearField appends a wildcard year to a six-field expression so that
// the parser reads its first field as the seconds field.
func withYearField(expression string) string {
	if len(strings.Fields(expression)) == 6 {
		return expression + " *"
	}
	return expression
}

// location returns the evaluation time zone, defaulting to time.Local.
func (s *CronSchedule) location() *time.Location {
	if s.Location == nil {
		return time.Local
	}
	return s.Location
}

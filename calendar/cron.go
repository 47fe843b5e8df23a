package calendar

import (
	"strings"
	"time"

	"github.com/gorhill/cronexpr"
)

// CronCalendar excludes the set of times matched by a cron expression,
// e.g. "* * 0-7,18-23 ? * *" to exclude anything outside business hours.
type CronCalendar struct {
	BaseCalendar
	// Expression is the cron expression describing the excluded times.
	Expression string

	expr *cronexpr.Expression
}

var _ Calendar = (*CronCalendar)(nil)

// NewCronCalendar returns a new CronCalendar for the given cron
// expression.
func NewCronCalendar(base Calendar, expression string) (*CronCalendar, error) {
	expr, err := cronexpr.Parse(withYearField(expression))
	if err != nil {
		return nil, err
	}
	return &CronCalendar{
		BaseCalendar: BaseCalendar{BaseCal: base},
		Expression:   expression,
		expr:         expr,
	}, nil
}

// IsTimeIncluded reports whether the given time is included, i.e. not
// matched by the cron expression.
func (c *CronCalendar) IsTimeIncluded(t time.Time) bool {
	if !c.baseIncludes(t) {
		return false
	}
	expr, err := c.expression()
	if err != nil {
		return true
	}
	local := t.In(c.loc()).Truncate(time.Second)
	// the expression matches when the second boundary at or before t is
	// the next occurrence strictly after the previous second
	return !expr.Next(local.Add(-time.Second)).Equal(local)
}

// GetNextIncludedTime returns the first included time after the given one.
func (c *CronCalendar) GetNextIncludedTime(t time.Time) time.Time {
	candidate := t.Add(time.Second).Truncate(time.Second)
	for !c.IsTimeIncluded(candidate) && candidate.Year() <= maxScanYear {
		candidate = candidate.Add(time.Second)
	}
	return candidate
}

// expression returns the parsed cron expression, re-parsing after
// deserialization.
func (c *CronCalendar) expression() (*cronexpr.Expression, error) {
	if c.expr != nil {
		return c.expr, nil
	}
	expr, err := cronexpr.Parse(withYearField(c.Expression))
	if err != nil {
		return nil, err
	}
	c.expr = expr
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

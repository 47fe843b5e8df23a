package sqlstore

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/goquartz/quartz/quartz"
)

// simpleProperties is the generic per-trigger property set persisted in
// the SIMPROP_TRIGGERS table: up to 3 strings, 2 ints, 2 longs, 2
// decimals and 2 booleans, available to any trigger type without a
// custom schema.
type simpleProperties struct {
	String1 sql.NullString
	String2 sql.NullString
	String3 sql.NullString
	Int1    sql.NullInt64
	Int2    sql.NullInt64
	Long1   sql.NullInt64
	Long2   sql.NullInt64
	Dec1    sql.NullFloat64
	Dec2    sql.NullFloat64
	Bool1   sql.NullBool
	Bool2   sql.NullBool
}

const (
	sqlInsertSimpropTrigger = `INSERT INTO {0}SIMPROP_TRIGGERS
 (SCHED_NAME, TRIGGER_NAME, TRIGGER_GROUP, STR_PROP_1, STR_PROP_2, STR_PROP_3,
 INT_PROP_1, INT_PROP_2, LONG_PROP_1, LONG_PROP_2, DEC_PROP_1, DEC_PROP_2,
 BOOL_PROP_1, BOOL_PROP_2)
 VALUES ('{1}', ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	sqlUpdateSimpropTrigger = `UPDATE {0}SIMPROP_TRIGGERS
 SET STR_PROP_1 = ?, STR_PROP_2 = ?, STR_PROP_3 = ?, INT_PROP_1 = ?, INT_PROP_2 = ?,
 LONG_PROP_1 = ?, LONG_PROP_2 = ?, DEC_PROP_1 = ?, DEC_PROP_2 = ?, BOOL_PROP_1 = ?,
 BOOL_PROP_2 = ?
 WHERE SCHED_NAME = '{1}' AND TRIGGER_NAME = ? AND TRIGGER_GROUP = ?`

	sqlSelectSimpropTrigger = `SELECT STR_PROP_1, STR_PROP_2, STR_PROP_3,
 INT_PROP_1, INT_PROP_2, LONG_PROP_1, LONG_PROP_2, DEC_PROP_1, DEC_PROP_2,
 BOOL_PROP_1, BOOL_PROP_2 FROM {0}SIMPROP_TRIGGERS
 WHERE SCHED_NAME = '{1}' AND TRIGGER_NAME = ? AND TRIGGER_GROUP = ?`

	sqlDeleteSimpropTrigger = `DELETE FROM {0}SIMPROP_TRIGGERS
 WHERE SCHED_NAME = '{1}' AND TRIGGER_NAME = ? AND TRIGGER_GROUP = ?`
)

// simplePropertiesDelegate is the shared persistence machinery of
// delegates backed by the SIMPROP_TRIGGERS table.
type simplePropertiesDelegate struct {
	insertSQL string
	updateSQL string
	selectSQL string
	deleteSQL string
}

// Initialize binds the delegate to the store table prefix and schedule
// name.
func (d *simplePropertiesDelegate) Initialize(tablePrefix, schedName string,
	rebind func(string) string) {
	d.insertSQL = rebind(rtp(sqlInsertSimpropTrigger, tablePrefix, schedName))
	d.updateSQL = rebind(rtp(sqlUpdateSimpropTrigger, tablePrefix, schedName))
	d.selectSQL = rebind(rtp(sqlSelectSimpropTrigger, tablePrefix, schedName))
	d.deleteSQL = rebind(rtp(sqlDeleteSimpropTrigger, tablePrefix, schedName))
}

func (d *simplePropertiesDelegate) insert(ctx context.Context, q querier,
	key *quartz.TriggerKey, props *simpleProperties) error {
	_, err := q.ExecContext(ctx, d.insertSQL,
		key.Name(), key.Group(),
		props.String1, props.String2, props.String3, props.Int1, props.Int2,
		props.Long1, props.Long2, props.Dec1, props.Dec2, props.Bool1, props.Bool2)
	return err
}

func (d *simplePropertiesDelegate) update(ctx context.Context, q querier,
	key *quartz.TriggerKey, props *simpleProperties) error {
	_, err := q.ExecContext(ctx, d.updateSQL,
		props.String1, props.String2, props.String3, props.Int1, props.Int2,
		props.Long1, props.Long2, props.Dec1, props.Dec2, props.Bool1, props.Bool2,
		key.Name(), key.Group())
	return err
}

func (d *simplePropertiesDelegate) load(ctx context.Context, q querier,
	key *quartz.TriggerKey) (*simpleProperties, error) {
	props := &simpleProperties{}
	err := q.QueryRowContext(ctx, d.selectSQL, key.Name(), key.Group()).Scan(
		&props.String1, &props.String2, &props.String3, &props.Int1, &props.Int2,
		&props.Long1, &props.Long2, &props.Dec1, &props.Dec2, &props.Bool1,
		&props.Bool2)
	if err != nil {
		return nil, err
	}
	return props, nil
}

// DeleteExtendedProperties removes the schedule properties of the trigger.
func (d *simplePropertiesDelegate) DeleteExtendedProperties(ctx context.Context,
	q querier, key *quartz.TriggerKey) error {
	_, err := q.ExecContext(ctx, d.deleteSQL, key.Name(), key.Group())
	return err
}

// CalendarIntervalTriggerDelegate persists CalendarIntervalSchedule
// properties via the generic simple-properties table:
// STR_PROP_1 = interval unit, STR_PROP_3 = time zone,
// INT_PROP_1 = interval, INT_PROP_2 = times triggered.
type CalendarIntervalTriggerDelegate struct {
	simplePropertiesDelegate
}

var _ TriggerPersistenceDelegate = (*CalendarIntervalTriggerDelegate)(nil)

// CanHandle reports whether the delegate persists the given schedule.
func (d *CalendarIntervalTriggerDelegate) CanHandle(schedule quartz.Schedule) bool {
	_, ok := schedule.(*quartz.CalendarIntervalSchedule)
	return ok
}

// Discriminator returns the TRIGGER_TYPE value the delegate handles.
func (d *CalendarIntervalTriggerDelegate) Discriminator() string {
	return TriggerTypeCalendarInterval
}

func (d *CalendarIntervalTriggerDelegate) properties(trigger *quartz.Trigger) *simpleProperties {
	schedule := trigger.Schedule().(*quartz.CalendarIntervalSchedule)
	return &simpleProperties{
		String1: sql.NullString{String: schedule.Unit.String(), Valid: true},
		String3: sql.NullString{String: locationName(schedule.Location), Valid: true},
		Int1:    sql.NullInt64{Int64: int64(schedule.Interval), Valid: true},
		Int2:    sql.NullInt64{Int64: int64(schedule.TimesTriggered), Valid: true},
	}
}

// InsertExtendedProperties stores the schedule properties of the trigger.
func (d *CalendarIntervalTriggerDelegate) InsertExtendedProperties(ctx context.Context,
	q querier, trigger *quartz.Trigger) error {
	return d.insert(ctx, q, trigger.Key(), d.properties(trigger))
}

// UpdateExtendedProperties updates the schedule properties of the trigger.
func (d *CalendarIntervalTriggerDelegate) UpdateExtendedProperties(ctx context.Context,
	q querier, trigger *quartz.Trigger) error {
	return d.update(ctx, q, trigger.Key(), d.properties(trigger))
}

// LoadExtendedProperties reconstructs the schedule variant of the trigger.
func (d *CalendarIntervalTriggerDelegate) LoadExtendedProperties(ctx context.Context,
	q querier, key *quartz.TriggerKey) (quartz.Schedule, error) {
	props, err := d.load(ctx, q, key)
	if err != nil {
		return nil, err
	}
	unit, err := quartz.IntervalUnitFromString(props.String1.String)
	if err != nil {
		return nil, err
	}
	location, err := loadLocation(props.String3.String)
	if err != nil {
		return nil, err
	}
	schedule := quartz.NewCalendarIntervalSchedule(int(props.Int1.Int64), unit)
	schedule.Location = location
	schedule.TimesTriggered = int(props.Int2.Int64)
	return schedule, nil
}

// DailyTimeIntervalTriggerDelegate persists DailyTimeIntervalSchedule
// properties via the generic simple-properties table:
// STR_PROP_1 = weekday set, STR_PROP_2 = start/end of day and unit,
// STR_PROP_3 = time zone, INT_PROP_1 = interval,
// INT_PROP_2 = times triggered, LONG_PROP_1 = repeat count.
type DailyTimeIntervalTriggerDelegate struct {
	simplePropertiesDelegate
}

var _ TriggerPersistenceDelegate = (*DailyTimeIntervalTriggerDelegate)(nil)

// CanHandle reports whether the delegate persists the given schedule.
func (d *DailyTimeIntervalTriggerDelegate) CanHandle(schedule quartz.Schedule) bool {
	_, ok := schedule.(*quartz.DailyTimeIntervalSchedule)
	return ok
}

// Discriminator returns the TRIGGER_TYPE value the delegate handles.
func (d *DailyTimeIntervalTriggerDelegate) Discriminator() string {
	return TriggerTypeDailyTimeInterval
}

func (d *DailyTimeIntervalTriggerDelegate) properties(trigger *quartz.Trigger) *simpleProperties {
	schedule := trigger.Schedule().(*quartz.DailyTimeIntervalSchedule)
	return &simpleProperties{
		String1: sql.NullString{String: encodeWeekdays(schedule.DaysOfWeek), Valid: true},
		String2: sql.NullString{
			String: schedule.StartTimeOfDay.String() + "/" +
				schedule.EndTimeOfDay.String() + "/" + schedule.Unit.String(),
			Valid: true,
		},
		String3: sql.NullString{String: locationName(schedule.Location), Valid: true},
		Int1:    sql.NullInt64{Int64: int64(schedule.Interval), Valid: true},
		Int2:    sql.NullInt64{Int64: int64(schedule.TimesTriggered), Valid: true},
		Long1:   sql.NullInt64{Int64: int64(schedule.RepeatCount), Valid: true},
	}
}

// InsertExtendedProperties stores the schedule properties of the trigger.
func (d *DailyTimeIntervalTriggerDelegate) InsertExtendedProperties(ctx context.Context,
	q querier, trigger *quartz.Trigger) error {
	return d.insert(ctx, q, trigger.Key(), d.properties(trigger))
}

// UpdateExtendedProperties updates the schedule properties of the trigger.
func (d *DailyTimeIntervalTriggerDelegate) UpdateExtendedProperties(ctx context.Context,
	q querier, trigger *quartz.Trigger) error {
	return d.update(ctx, q, trigger.Key(), d.properties(trigger))
}

// LoadExtendedProperties reconstructs the schedule variant of the trigger.
func (d *DailyTimeIntervalTriggerDelegate) LoadExtendedProperties(ctx context.Context,
	q querier, key *quartz.TriggerKey) (quartz.Schedule, error) {
	props, err := d.load(ctx, q, key)
	if err != nil {
		return nil, err
	}
	parts := strings.Split(props.String2.String, "/")
	if len(parts) != 3 {
		return nil, quartz.ErrStoreFatal
	}
	startTimeOfDay, err := quartz.TimeOfDayFromString(parts[0])
	if err != nil {
		return nil, err
	}
	endTimeOfDay, err := quartz.TimeOfDayFromString(parts[1])
	if err != nil {
		return nil, err
	}
	unit, err := quartz.IntervalUnitFromString(parts[2])
	if err != nil {
		return nil, err
	}
	location, err := loadLocation(props.String3.String)
	if err != nil {
		return nil, err
	}
	schedule := quartz.NewDailyTimeIntervalSchedule(startTimeOfDay, endTimeOfDay,
		decodeWeekdays(props.String1.String), int(props.Int1.Int64), unit)
	schedule.Location = location
	schedule.TimesTriggered = int(props.Int2.Int64)
	schedule.RepeatCount = int(props.Long1.Int64)
	return schedule, nil
}

func encodeWeekdays(days []time.Weekday) string {
	if len(days) == 0 {
		return ""
	}
	parts := make([]string, len(days))
	for i, day := range days {
		parts[i] = day.String()[:3]
	}
	return strings.Join(parts, ",")
}

func decodeWeekdays(encoded string) []time.Weekday {
	if encoded == "" {
		return nil
	}
	names := map[string]time.Weekday{
		"Sun": time.Sunday, "Mon": time.Monday, "Tue": time.Tuesday,
		"Wed": time.Wednesday, "Thu": time.Thursday, "Fri": time.Friday,
		"Sat": time.Saturday,
	}
	parts := strings.Split(encoded, ",")
	days := make([]time.Weekday, 0, len(parts))
	for _, part := range parts {
		if day, ok := names[part]; ok {
			days = append(days, day)
		}
	}
	return days
}

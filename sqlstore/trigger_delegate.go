package sqlstore

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/gob"
	"fmt"
	"time"

	"github.com/goquartz/quartz/quartz"
)

// Trigger type discriminators persisted in TRIGGERS.TRIGGER_TYPE.
const (
	TriggerTypeSimple           = "S"
	TriggerTypeCron             = "C"
	TriggerTypeCalendarInterval = "I"
	TriggerTypeDailyTimeInterval = "D"
	TriggerTypeSimpleProperties = "P"
	TriggerTypeBlob             = "B"
)

// querier is the subset of database/sql operations the delegates run
// inside the store transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TriggerPersistenceDelegate is the extension point for storing
// per-trigger-type schedule properties in an auxiliary table.
type TriggerPersistenceDelegate interface {
	// Initialize binds the delegate to the store table prefix and
	// schedule name.
	Initialize(tablePrefix, schedName string, rebind func(string) string)

	// CanHandle reports whether the delegate persists the given schedule
	// variant.
	CanHandle(schedule quartz.Schedule) bool

	// Discriminator returns the TRIGGER_TYPE value the delegate handles.
	Discriminator() string

	// InsertExtendedProperties stores the schedule properties of the
	// trigger.
	InsertExtendedProperties(ctx context.Context, q querier, trigger *quartz.Trigger) error

	// UpdateExtendedProperties updates the schedule properties of the
	// trigger.
	UpdateExtendedProperties(ctx context.Context, q querier, trigger *quartz.Trigger) error

	// DeleteExtendedProperties removes the schedule properties of the
	// trigger.
	DeleteExtendedProperties(ctx context.Context, q querier, key *quartz.TriggerKey) error

	// LoadExtendedProperties reconstructs the schedule variant of the
	// trigger.
	LoadExtendedProperties(ctx context.Context, q querier,
		key *quartz.TriggerKey) (quartz.Schedule, error)
}

const (
	sqlInsertSimpleTrigger = `INSERT INTO {0}SIMPLE_TRIGGERS
 (SCHED_NAME, TRIGGER_NAME, TRIGGER_GROUP, REPEAT_COUNT, REPEAT_INTERVAL, TIMES_TRIGGERED)
 VALUES ('{1}', ?, ?, ?, ?, ?)`

	sqlUpdateSimpleTrigger = `UPDATE {0}SIMPLE_TRIGGERS
 SET REPEAT_COUNT = ?, REPEAT_INTERVAL = ?, TIMES_TRIGGERED = ?
 WHERE SCHED_NAME = '{1}' AND TRIGGER_NAME = ? AND TRIGGER_GROUP = ?`

	sqlSelectSimpleTrigger = `SELECT REPEAT_COUNT, REPEAT_INTERVAL, TIMES_TRIGGERED
 FROM {0}SIMPLE_TRIGGERS WHERE SCHED_NAME = '{1}' AND TRIGGER_NAME = ? AND TRIGGER_GROUP = ?`

	sqlDeleteSimpleTrigger = `DELETE FROM {0}SIMPLE_TRIGGERS
 WHERE SCHED_NAME = '{1}' AND TRIGGER_NAME = ? AND TRIGGER_GROUP = ?`
)

// SimpleTriggerDelegate persists SimpleSchedule properties in the
// SIMPLE_TRIGGERS table.
type SimpleTriggerDelegate struct {
	insertSQL string
	updateSQL string
	selectSQL string
	deleteSQL string
}

var _ TriggerPersistenceDelegate = (*SimpleTriggerDelegate)(nil)

// Initialize binds the delegate to the store table prefix and schedule
// name.
func (d *SimpleTriggerDelegate) Initialize(tablePrefix, schedName string,
	rebind func(string) string) {
	d.insertSQL = rebind(rtp(sqlInsertSimpleTrigger, tablePrefix, schedName))
	d.updateSQL = rebind(rtp(sqlUpdateSimpleTrigger, tablePrefix, schedName))
	d.selectSQL = rebind(rtp(sqlSelectSimpleTrigger, tablePrefix, schedName))
	d.deleteSQL = rebind(rtp(sqlDeleteSimpleTrigger, tablePrefix, schedName))
}

// CanHandle reports whether the delegate persists the given schedule.
func (d *SimpleTriggerDelegate) CanHandle(schedule quartz.Schedule) bool {
	_, ok := schedule.(*quartz.SimpleSchedule)
	return ok
}

// Discriminator returns the TRIGGER_TYPE value the delegate handles.
func (d *SimpleTriggerDelegate) Discriminator() string { return TriggerTypeSimple }

// InsertExtendedProperties stores the schedule properties of the trigger.
func (d *SimpleTriggerDelegate) InsertExtendedProperties(ctx context.Context,
	q querier, trigger *quartz.Trigger) error {
	schedule := trigger.Schedule().(*quartz.SimpleSchedule)
	_, err := q.ExecContext(ctx, d.insertSQL,
		trigger.Key().Name(), trigger.Key().Group(),
		schedule.RepeatCount, schedule.Interval.Milliseconds(), schedule.TimesTriggered)
	return err
}

// UpdateExtendedProperties updates the schedule properties of the trigger.
func (d *SimpleTriggerDelegate) UpdateExtendedProperties(ctx context.Context,
	q querier, trigger *quartz.Trigger) error {
	schedule := trigger.Schedule().(*quartz.SimpleSchedule)
	_, err := q.ExecContext(ctx, d.updateSQL,
		schedule.RepeatCount, schedule.Interval.Milliseconds(), schedule.TimesTriggered,
		trigger.Key().Name(), trigger.Key().Group())
	return err
}

// DeleteExtendedProperties removes the schedule properties of the trigger.
func (d *SimpleTriggerDelegate) DeleteExtendedProperties(ctx context.Context,
	q querier, key *quartz.TriggerKey) error {
	_, err := q.ExecContext(ctx, d.deleteSQL, key.Name(), key.Group())
	return err
}

// LoadExtendedProperties reconstructs the schedule variant of the trigger.
func (d *SimpleTriggerDelegate) LoadExtendedProperties(ctx context.Context,
	q querier, key *quartz.TriggerKey) (quartz.Schedule, error) {
	var repeatCount, timesTriggered int
	var intervalMillis int64
	err := q.QueryRowContext(ctx, d.selectSQL, key.Name(), key.Group()).
		Scan(&repeatCount, &intervalMillis, &timesTriggered)
	if err != nil {
		return nil, err
	}
	schedule := quartz.NewSimpleSchedule(
		time.Duration(intervalMillis)*time.Millisecond, repeatCount)
	schedule.TimesTriggered = timesTriggered
	return schedule, nil
}

const (
	sqlInsertCronTrigger = `INSERT INTO {0}CRON_TRIGGERS
 (SCHED_NAME, TRIGGER_NAME, TRIGGER_GROUP, CRON_EXPRESSION, TIME_ZONE_ID)
 VALUES ('{1}', ?, ?, ?, ?)`

	sqlUpdateCronTrigger = `UPDATE {0}CRON_TRIGGERS
 SET CRON_EXPRESSION = ?, TIME_ZONE_ID = ?
 WHERE SCHED_NAME = '{1}' AND TRIGGER_NAME = ? AND TRIGGER_GROUP = ?`

	sqlSelectCronTrigger = `SELECT CRON_EXPRESSION, TIME_ZONE_ID FROM {0}CRON_TRIGGERS
 WHERE SCHED_NAME = '{1}' AND TRIGGER_NAME = ? AND TRIGGER_GROUP = ?`

	sqlDeleteCronTrigger = `DELETE FROM {0}CRON_TRIGGERS
 WHERE SCHED_NAME = '{1}' AND TRIGGER_NAME = ? AND TRIGGER_GROUP = ?`
)

// CronTriggerDelegate persists CronSchedule properties in the
// CRON_TRIGGERS table.
type CronTriggerDelegate struct {
	insertSQL string
	updateSQL string
	selectSQL string
	deleteSQL string
}

var _ TriggerPersistenceDelegate = (*CronTriggerDelegate)(nil)

// Initialize binds the delegate to the store table prefix and schedule
// name.
func (d *CronTriggerDelegate) Initialize(tablePrefix, schedName string,
	rebind func(string) string) {
	d.insertSQL = rebind(rtp(sqlInsertCronTrigger, tablePrefix, schedName))
	d.updateSQL = rebind(rtp(sqlUpdateCronTrigger, tablePrefix, schedName))
	d.selectSQL = rebind(rtp(sqlSelectCronTrigger, tablePrefix, schedName))
	d.deleteSQL = rebind(rtp(sqlDeleteCronTrigger, tablePrefix, schedName))
}

// CanHandle reports whether the delegate persists the given schedule.
func (d *CronTriggerDelegate) CanHandle(schedule quartz.Schedule) bool {
	_, ok := schedule.(*quartz.CronSchedule)
	return ok
}

// Discriminator returns the TRIGGER_TYPE value the delegate handles.
func (d *CronTriggerDelegate) Discriminator() string { return TriggerTypeCron }

// InsertExtendedProperties stores the schedule properties of the trigger.
func (d *CronTriggerDelegate) InsertExtendedProperties(ctx context.Context,
	q querier, trigger *quartz.Trigger) error {
	schedule := trigger.Schedule().(*quartz.CronSchedule)
	_, err := q.ExecContext(ctx, d.insertSQL,
		trigger.Key().Name(), trigger.Key().Group(),
		schedule.Expression, locationName(schedule.Location))
	return err
}

// UpdateExtendedProperties updates the schedule properties of the trigger.
func (d *CronTriggerDelegate) UpdateExtendedProperties(ctx context.Context,
	q querier, trigger *quartz.Trigger) error {
	schedule := trigger.Schedule().(*quartz.CronSchedule)
	_, err := q.ExecContext(ctx, d.updateSQL,
		schedule.Expression, locationName(schedule.Location),
		trigger.Key().Name(), trigger.Key().Group())
	return err
}

// DeleteExtendedProperties removes the schedule properties of the trigger.
func (d *CronTriggerDelegate) DeleteExtendedProperties(ctx context.Context,
	q querier, key *quartz.TriggerKey) error {
	_, err := q.ExecContext(ctx, d.deleteSQL, key.Name(), key.Group())
	return err
}

// LoadExtendedProperties reconstructs the schedule variant of the trigger.
func (d *CronTriggerDelegate) LoadExtendedProperties(ctx context.Context,
	q querier, key *quartz.TriggerKey) (quartz.Schedule, error) {
	var expression, timeZoneID string
	err := q.QueryRowContext(ctx, d.selectSQL, key.Name(), key.Group()).
		Scan(&expression, &timeZoneID)
	if err != nil {
		return nil, err
	}
	location, err := loadLocation(timeZoneID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", quartz.ErrStoreFatal, err)
	}
	return quartz.NewCronScheduleInLocation(expression, location)
}

// BlobTriggerDelegate is the fallback that persists any schedule variant
// as an opaque gob blob in the BLOB_TRIGGERS table. Custom schedule
// types must be gob-registered by the embedding application.
type BlobTriggerDelegate struct {
	insertSQL string
	updateSQL string
	selectSQL string
	deleteSQL string
}

const (
	sqlInsertBlobTrigger = `INSERT INTO {0}BLOB_TRIGGERS
 (SCHED_NAME, TRIGGER_NAME, TRIGGER_GROUP, BLOB_DATA) VALUES ('{1}', ?, ?, ?)`

	sqlUpdateBlobTrigger = `UPDATE {0}BLOB_TRIGGERS SET BLOB_DATA = ?
 WHERE SCHED_NAME = '{1}' AND TRIGGER_NAME = ? AND TRIGGER_GROUP = ?`

	sqlSelectBlobTrigger = `SELECT BLOB_DATA FROM {0}BLOB_TRIGGERS
 WHERE SCHED_NAME = '{1}' AND TRIGGER_NAME = ? AND TRIGGER_GROUP = ?`

	sqlDeleteBlobTrigger = `DELETE FROM {0}BLOB_TRIGGERS
 WHERE SCHED_NAME = '{1}' AND TRIGGER_NAME = ? AND TRIGGER_GROUP = ?`
)

var _ TriggerPersistenceDelegate = (*BlobTriggerDelegate)(nil)

// Initialize binds the delegate to the store table prefix and schedule
// name.
func (d *BlobTriggerDelegate) Initialize(tablePrefix, schedName string,
	rebind func(string) string) {
	d.insertSQL = rebind(rtp(sqlInsertBlobTrigger, tablePrefix, schedName))
	d.updateSQL = rebind(rtp(sqlUpdateBlobTrigger, tablePrefix, schedName))
	d.selectSQL = rebind(rtp(sqlSelectBlobTrigger, tablePrefix, schedName))
	d.deleteSQL = rebind(rtp(sqlDeleteBlobTrigger, tablePrefix, schedName))
}

// CanHandle reports whether the delegate persists the given schedule.
// The blob delegate accepts everything and must be registered last.
func (d *BlobTriggerDelegate) CanHandle(_ quartz.Schedule) bool { return true }

// Discriminator returns the TRIGGER_TYPE value the delegate handles.
func (d *BlobTriggerDelegate) Discriminator() string { return TriggerTypeBlob }

// InsertExtendedProperties stores the schedule properties of the trigger.
func (d *BlobTriggerDelegate) InsertExtendedProperties(ctx context.Context,
	q querier, trigger *quartz.Trigger) error {
	blob, err := encodeScheduleBlob(trigger.Schedule())
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, d.insertSQL,
		trigger.Key().Name(), trigger.Key().Group(), blob)
	return err
}

// UpdateExtendedProperties updates the schedule properties of the trigger.
func (d *BlobTriggerDelegate) UpdateExtendedProperties(ctx context.Context,
	q querier, trigger *quartz.Trigger) error {
	blob, err := encodeScheduleBlob(trigger.Schedule())
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, d.updateSQL,
		blob, trigger.Key().Name(), trigger.Key().Group())
	return err
}

// DeleteExtendedProperties removes the schedule properties of the trigger.
func (d *BlobTriggerDelegate) DeleteExtendedProperties(ctx context.Context,
	q querier, key *quartz.TriggerKey) error {
	_, err := q.ExecContext(ctx, d.deleteSQL, key.Name(), key.Group())
	return err
}

// LoadExtendedProperties reconstructs the schedule variant of the trigger.
func (d *BlobTriggerDelegate) LoadExtendedProperties(ctx context.Context,
	q querier, key *quartz.TriggerKey) (quartz.Schedule, error) {
	var blob []byte
	err := q.QueryRowContext(ctx, d.selectSQL, key.Name(), key.Group()).Scan(&blob)
	if err != nil {
		return nil, err
	}
	var schedule quartz.Schedule
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&schedule); err != nil {
		return nil, fmt.Errorf("%w: decode schedule blob: %s", quartz.ErrStoreFatal, err)
	}
	return schedule, nil
}

func encodeScheduleBlob(schedule quartz.Schedule) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&schedule); err != nil {
		return nil, fmt.Errorf("encode schedule blob: %w", err)
	}
	return buf.Bytes(), nil
}

func locationName(location *time.Location) string {
	if location == nil {
		return "Local"
	}
	return location.String()
}

func loadLocation(name string) (*time.Location, error) {
	switch name {
	case "", "Local":
		return time.Local, nil
	case "UTC":
		return time.UTC, nil
	default:
		return time.LoadLocation(name)
	}
}

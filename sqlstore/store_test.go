package sqlstore_test

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goquartz/quartz/matcher"
	"github.com/goquartz/quartz/quartz"
	"github.com/goquartz/quartz/sqlstore"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quartz.db")
	db, err := sql.Open("sqlite",
		fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)", path))
	require.NoError(t, err)
	// a single connection serializes the test stores sharing the file
	db.SetMaxOpenConns(1)
	require.NoError(t, sqlstore.CreateSQLiteSchema(context.Background(), db, "QRTZ_"))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newSQLiteStore(t *testing.T, db *sql.DB, instanceID string,
	configure func(*sqlstore.Options)) *sqlstore.Store {
	t.Helper()
	opts := sqlstore.Options{
		DB:            db,
		SchedulerName: "TEST",
		InstanceID:    instanceID,
		Delegate:      sqlstore.NewSQLiteDelegate(),
	}
	if configure != nil {
		configure(&opts)
	}
	store, err := sqlstore.NewStore(opts)
	require.NoError(t, err)
	require.NoError(t, store.Initialize(quartz.NewJobRegistry(), nil))
	t.Cleanup(store.Shutdown)
	return store
}

func sqlJob(name string, configure func(*quartz.JobDetailOptions)) *quartz.JobDetail {
	opts := quartz.NewDefaultJobDetailOptions()
	if configure != nil {
		configure(opts)
	}
	return quartz.NewJobDetailWithOptions(quartz.NewJobKey(name), "noop", opts)
}

func sqlTrigger(name, group, jobName string, schedule quartz.Schedule,
	start time.Time) *quartz.Trigger {
	trigger := quartz.NewTrigger(
		quartz.NewTriggerKeyWithGroup(name, group),
		quartz.NewJobKey(jobName), schedule).
		WithStartTime(start)
	trigger.ComputeFirstFireTime(nil)
	return trigger
}

func TestSQLStore_JobRoundTripProperties(t *testing.T) {
	db := openTestDB(t)
	store := newSQLiteStore(t, db, "inst1", func(o *sqlstore.Options) {
		o.UseProperties = true
	})

	job := sqlJob("job", func(o *quartz.JobDetailOptions) { o.Durable = true })
	job.WithDescription("a test job")
	job.JobDataMap()["a"] = "1"
	job.JobDataMap()["b"] = "2"
	require.NoError(t, store.StoreJob(job, false))

	loaded, err := store.RetrieveJob(job.JobKey())
	require.NoError(t, err)
	assert.Equal(t, quartz.JobDataMap{"a": "1", "b": "2"}, loaded.JobDataMap())
	assert.Equal(t, "a test job", loaded.Description())
	assert.True(t, loaded.Options().Durable)

	// properties mode rejects non-string values
	job.JobDataMap()["n"] = 42
	err = store.StoreJob(job, true)
	assert.ErrorIs(t, err, quartz.ErrIllegalArgument)
}

func TestSQLStore_JobRoundTripBlob(t *testing.T) {
	db := openTestDB(t)
	store := newSQLiteStore(t, db, "inst1", nil)

	job := sqlJob("job", func(o *quartz.JobDetailOptions) { o.Durable = true })
	job.JobDataMap()["a"] = "1"
	job.JobDataMap()["b"] = "2"
	require.NoError(t, store.StoreJob(job, false))

	loaded, err := store.RetrieveJob(job.JobKey())
	require.NoError(t, err)
	a, _ := loaded.JobDataMap().GetString("a")
	b, _ := loaded.JobDataMap().GetString("b")
	assert.Equal(t, "1", a)
	assert.Equal(t, "2", b)
}

func TestSQLStore_TriggerRoundTrips(t *testing.T) {
	db := openTestDB(t)
	store := newSQLiteStore(t, db, "inst1", nil)
	job := sqlJob("job", func(o *quartz.JobDetailOptions) { o.Durable = true })
	require.NoError(t, store.StoreJob(job, false))

	start := time.Now().Add(time.Hour).Truncate(time.Millisecond)

	t.Run("simple", func(t *testing.T) {
		schedule := quartz.NewSimpleSchedule(90*time.Second, 10)
		schedule.TimesTriggered = 3
		trigger := sqlTrigger("simple", "G", "job", schedule, start).
			WithPriority(7).WithDescription("simple trigger")
		require.NoError(t, store.StoreTrigger(trigger, false))

		loaded, err := store.RetrieveTrigger(trigger.Key())
		require.NoError(t, err)
		loadedSchedule := loaded.Schedule().(*quartz.SimpleSchedule)
		assert.Equal(t, 90*time.Second, loadedSchedule.Interval)
		assert.Equal(t, 10, loadedSchedule.RepeatCount)
		assert.Equal(t, 3, loadedSchedule.TimesTriggered)
		assert.Equal(t, 7, loaded.Priority())
		assert.True(t, loaded.NextFireTime().Equal(trigger.NextFireTime()))
	})

	t.Run("cron", func(t *testing.T) {
		schedule, err := quartz.NewCronScheduleInLocation("0 0 12 * * ?", time.UTC)
		require.NoError(t, err)
		trigger := sqlTrigger("cron", "G", "job", schedule, start)
		require.NoError(t, store.StoreTrigger(trigger, false))

		loaded, err := store.RetrieveTrigger(trigger.Key())
		require.NoError(t, err)
		loadedSchedule := loaded.Schedule().(*quartz.CronSchedule)
		assert.Equal(t, "0 0 12 * * ?", loadedSchedule.Expression)
		assert.Equal(t, time.UTC, loadedSchedule.Location)
	})

	t.Run("calendar interval via simprop", func(t *testing.T) {
		schedule := quartz.NewCalendarIntervalSchedule(2, quartz.IntervalMonth)
		schedule.Location = time.UTC
		trigger := sqlTrigger("calint", "G", "job", schedule, start)
		require.NoError(t, store.StoreTrigger(trigger, false))

		loaded, err := store.RetrieveTrigger(trigger.Key())
		require.NoError(t, err)
		loadedSchedule := loaded.Schedule().(*quartz.CalendarIntervalSchedule)
		assert.Equal(t, 2, loadedSchedule.Interval)
		assert.Equal(t, quartz.IntervalMonth, loadedSchedule.Unit)
	})

	t.Run("daily time interval via simprop", func(t *testing.T) {
		schedule := quartz.NewDailyTimeIntervalSchedule(
			quartz.NewTimeOfDay(8, 0, 0), quartz.NewTimeOfDay(17, 0, 0),
			quartz.MondayThroughFriday(), 72, quartz.IntervalMinute)
		schedule.Location = time.UTC
		trigger := sqlTrigger("daily", "G", "job", schedule, start)
		require.NoError(t, store.StoreTrigger(trigger, false))

		loaded, err := store.RetrieveTrigger(trigger.Key())
		require.NoError(t, err)
		loadedSchedule := loaded.Schedule().(*quartz.DailyTimeIntervalSchedule)
		assert.Equal(t, quartz.NewTimeOfDay(8, 0, 0), loadedSchedule.StartTimeOfDay)
		assert.Equal(t, quartz.NewTimeOfDay(17, 0, 0), loadedSchedule.EndTimeOfDay)
		assert.Equal(t, quartz.MondayThroughFriday(), loadedSchedule.DaysOfWeek)
		assert.Equal(t, 72, loadedSchedule.Interval)
		assert.Equal(t, quartz.IntervalMinute, loadedSchedule.Unit)
	})
}

func TestSQLStore_NonDurableJobRemovedWithLastTrigger(t *testing.T) {
	db := openTestDB(t)
	store := newSQLiteStore(t, db, "inst1", nil)

	job := sqlJob("transient", nil)
	trigger := sqlTrigger("t", "G", "transient",
		quartz.NewSimpleSchedule(time.Hour, quartz.RepeatIndefinitely),
		time.Now().Add(time.Hour))
	require.NoError(t, store.StoreJobAndTrigger(job, trigger))

	removed, err := store.RemoveTrigger(trigger.Key())
	require.NoError(t, err)
	assert.True(t, removed)

	exists, err := store.CheckJobExists(job.JobKey())
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSQLStore_PauseResumeStickyGroup(t *testing.T) {
	db := openTestDB(t)
	store := newSQLiteStore(t, db, "inst1", nil)

	job := sqlJob("job", func(o *quartz.JobDetailOptions) { o.Durable = true })
	require.NoError(t, store.StoreJob(job, false))
	trigger := sqlTrigger("t1", "GroupA", "job",
		quartz.NewSimpleSchedule(time.Hour, quartz.RepeatIndefinitely),
		time.Now().Add(time.Hour))
	require.NoError(t, store.StoreTrigger(trigger, false))

	_, err := store.PauseTriggers(matcher.GroupEquals[*quartz.TriggerKey]("GroupA"))
	require.NoError(t, err)
	state, err := store.GetTriggerState(trigger.Key())
	require.NoError(t, err)
	assert.Equal(t, quartz.StatePaused, state)

	// the paused group is sticky for triggers stored afterwards
	added := sqlTrigger("t2", "GroupA", "job",
		quartz.NewSimpleSchedule(time.Hour, quartz.RepeatIndefinitely),
		time.Now().Add(time.Hour))
	require.NoError(t, store.StoreTrigger(added, false))
	state, err = store.GetTriggerState(added.Key())
	require.NoError(t, err)
	assert.Equal(t, quartz.StatePaused, state)

	groups, err := store.GetPausedTriggerGroups()
	require.NoError(t, err)
	assert.Contains(t, groups, "GroupA")

	_, err = store.ResumeTriggers(matcher.GroupEquals[*quartz.TriggerKey]("GroupA"))
	require.NoError(t, err)
	for _, key := range []*quartz.TriggerKey{trigger.Key(), added.Key()} {
		state, err = store.GetTriggerState(key)
		require.NoError(t, err)
		assert.Equal(t, quartz.StateWaiting, state)
	}
	groups, err = store.GetPausedTriggerGroups()
	require.NoError(t, err)
	assert.NotContains(t, groups, "GroupA")
}

func TestSQLStore_AcquireFireComplete(t *testing.T) {
	db := openTestDB(t)
	store := newSQLiteStore(t, db, "inst1", nil)

	job := sqlJob("job", nil)
	// millisecond precision matches what the store persists
	start := time.Now().Truncate(time.Millisecond)
	trigger := sqlTrigger("t1", "G", "job",
		quartz.NewSimpleSchedule(time.Hour, quartz.RepeatIndefinitely), start)
	require.NoError(t, store.StoreJobAndTrigger(job, trigger))

	acquired, err := store.AcquireNextTriggers(time.Now().Add(time.Second), 1, 0)
	require.NoError(t, err)
	require.Len(t, acquired, 1)
	assert.NotEmpty(t, acquired[0].FireInstanceID())
	state, err := store.GetTriggerState(trigger.Key())
	require.NoError(t, err)
	assert.Equal(t, quartz.StateAcquired, state)

	results, err := store.TriggersFired(acquired)
	require.NoError(t, err)
	require.Len(t, results, 1)
	bundle := results[0].Bundle
	require.NotNil(t, bundle)
	assert.True(t, bundle.ScheduledFireTime.Equal(trigger.NextFireTime()))
	assert.True(t, bundle.NextFireTime.After(bundle.ScheduledFireTime))

	// the trigger has advanced and waits while the claim is executing
	state, err = store.GetTriggerState(trigger.Key())
	require.NoError(t, err)
	assert.Equal(t, quartz.StateWaiting, state)

	store.TriggeredJobComplete(bundle.Trigger, bundle.JobDetail, quartz.InstructionNoop)

	loaded, err := store.RetrieveTrigger(trigger.Key())
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Schedule().(*quartz.SimpleSchedule).TimesTriggered)
	assert.True(t, loaded.PreviousFireTime().Equal(bundle.ScheduledFireTime))
}

func TestSQLStore_AcquireExclusivityAcrossInstances(t *testing.T) {
	db := openTestDB(t)
	store1 := newSQLiteStore(t, db, "inst1", nil)
	store2 := newSQLiteStore(t, db, "inst2", nil)

	job := sqlJob("job", nil)
	trigger := sqlTrigger("t1", "G", "job",
		quartz.NewSimpleSchedule(time.Hour, quartz.RepeatIndefinitely), time.Now())
	require.NoError(t, store1.StoreJobAndTrigger(job, trigger))

	var mtx sync.Mutex
	var total []*quartz.Trigger
	var wg sync.WaitGroup
	for _, store := range []*sqlstore.Store{store1, store2} {
		wg.Add(1)
		go func(s *sqlstore.Store) {
			defer wg.Done()
			acquired, err := s.AcquireNextTriggers(time.Now().Add(time.Second), 1, 0)
			assert.NoError(t, err)
			mtx.Lock()
			total = append(total, acquired...)
			mtx.Unlock()
		}(store)
	}
	wg.Wait()

	// exactly one peer obtains the trigger; the other skips it silently
	require.Len(t, total, 1)
	state, err := store1.GetTriggerState(trigger.Key())
	require.NoError(t, err)
	assert.Equal(t, quartz.StateAcquired, state)
}

func TestSQLStore_MisfireAppliedOnAcquire(t *testing.T) {
	db := openTestDB(t)
	store := newSQLiteStore(t, db, "inst1", func(o *sqlstore.Options) {
		o.MisfireThreshold = 100 * time.Millisecond
	})

	job := sqlJob("job", nil)
	// the next fire time is far in the past: a misfire
	start := time.Now().Add(-time.Hour)
	trigger := sqlTrigger("t1", "G", "job",
		quartz.NewSimpleSchedule(time.Minute, quartz.RepeatIndefinitely), start).
		WithMisfireInstruction(quartz.MisfireRescheduleNextWithExistingCount)
	require.NoError(t, store.StoreJobAndTrigger(job, trigger))

	acquired, err := store.AcquireNextTriggers(time.Now().Add(2*time.Minute), 1, 0)
	require.NoError(t, err)
	require.Len(t, acquired, 1)
	// the misfire policy advanced the fire time past now
	assert.True(t, acquired[0].NextFireTime().After(time.Now().Add(-time.Second)))
}

func TestSQLStore_ClusterRecovery(t *testing.T) {
	db := openTestDB(t)
	store1 := newSQLiteStore(t, db, "inst1", nil)

	job := sqlJob("job", func(o *quartz.JobDetailOptions) {
		o.RequestsRecovery = true
	})
	trigger := sqlTrigger("t1", "G", "job",
		quartz.NewSimpleSchedule(time.Hour, quartz.RepeatIndefinitely), time.Now())
	require.NoError(t, store1.StoreJobAndTrigger(job, trigger))

	// instance 1 fires the trigger and dies mid-execution
	acquired, err := store1.AcquireNextTriggers(time.Now().Add(time.Second), 1, 0)
	require.NoError(t, err)
	require.Len(t, acquired, 1)
	results, err := store1.TriggersFired(acquired)
	require.NoError(t, err)
	require.NotNil(t, results[0].Bundle)
	store1.Shutdown()

	// plant a stale heartbeat so the peer detects the dead instance
	_, err = db.Exec(`INSERT INTO QRTZ_SCHEDULER_STATE
 (SCHED_NAME, INSTANCE_NAME, LAST_CHECKIN_TIME, CHECKIN_INTERVAL)
 VALUES ('TEST', 'inst1', ?, 100)`, time.Now().Add(-time.Hour).UnixMilli())
	require.NoError(t, err)

	store2 := newSQLiteStore(t, db, "inst2", func(o *sqlstore.Options) {
		o.Clustered = true
		o.ClusterCheckinInterval = 50 * time.Millisecond
	})
	require.NoError(t, store2.SchedulerStarted())

	assert.Eventually(t, func() bool {
		var count int
		err := db.QueryRow(`SELECT COUNT(*) FROM QRTZ_FIRED_TRIGGERS
 WHERE SCHED_NAME = 'TEST' AND INSTANCE_NAME = 'inst1'`).Scan(&count)
		return err == nil && count == 0
	}, 5*time.Second, 50*time.Millisecond, "fired records of the dead peer remain")

	// a one-shot recovery trigger was synthesized for the job
	keys, err := store2.GetTriggerKeys(
		matcher.GroupEquals[*quartz.TriggerKey](sqlstore.RecoveryTriggerGroup))
	require.NoError(t, err)
	require.Len(t, keys, 1)
	recovery, err := store2.RetrieveTrigger(keys[0])
	require.NoError(t, err)
	assert.True(t, recovery.JobKey().Equals(job.JobKey()))
	flag, ok := recovery.JobDataMap().GetString(sqlstore.DataKeyRecovering)
	assert.True(t, ok)
	assert.Equal(t, "true", flag)
	_, ok = recovery.JobDataMap().GetString(sqlstore.DataKeyScheduledFireTime)
	assert.True(t, ok)

	// the dead peer's heartbeat row is gone
	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM QRTZ_SCHEDULER_STATE
 WHERE SCHED_NAME = 'TEST' AND INSTANCE_NAME = 'inst1'`).Scan(&count))
	assert.Equal(t, 0, count)
}

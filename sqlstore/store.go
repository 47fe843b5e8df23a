// Package sqlstore provides a clustered quartz.JobStore over a shared
// SQL database. Multiple scheduler instances coordinate through
// row-level locks, fired-trigger records and instance heartbeats; the
// database is the single source of truth and the only cross-process
// coordination channel.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goquartz/quartz/calendar"
	"github.com/goquartz/quartz/logger"
	"github.com/goquartz/quartz/quartz"
)

// Options represents the Store configuration.
type Options struct {
	// DB is the database handle shared by all cluster peers.
	DB *sql.DB

	// SchedulerName is the logical cluster name; peers with the same
	// name share scheduling data.
	// Default: "QuartzScheduler".
	SchedulerName string

	// InstanceID identifies this scheduler instance within the cluster.
	// Default: "NON_CLUSTERED".
	InstanceID string

	// TablePrefix is prepended to all table names.
	// Default: "QRTZ_".
	TablePrefix string

	// Delegate isolates driver-specific SQL behavior.
	// Default: StdDelegate.
	Delegate Delegate

	// LockHandler is the named row-lock semaphore.
	// Default: StdRowLockSemaphore using the delegate locking select.
	LockHandler Semaphore

	// UseProperties stores job data maps as key=value text instead of
	// opaque blobs. The value must be consistent across cluster peers.
	// Default: false.
	UseProperties bool

	// Clustered enables the cluster manager: instance heartbeats and
	// failed-peer recovery.
	// Default: false.
	Clustered bool

	// ClusterCheckinInterval is the heartbeat period.
	// Default: 7500 milliseconds.
	ClusterCheckinInterval time.Duration

	// MisfireThreshold is the tolerance by which a late fire is still
	// considered on time.
	// Default: 60 seconds.
	MisfireThreshold time.Duration

	// MaxMisfiresToHandleAtATime bounds one misfire recovery sweep.
	// Default: 20.
	MaxMisfiresToHandleAtATime int

	// AcquireTriggersWithinLock makes trigger acquisition run under the
	// TRIGGER_ACCESS row lock. Disabling it relies on the optimistic
	// state transition alone.
	// Default: true.
	AcquireTriggersWithinLock *bool

	// RetryInterval is the back-off applied by the cluster manager after
	// a database failure.
	// Default: 15 seconds.
	RetryInterval time.Duration

	// ExtraTriggerDelegates are custom trigger persistence delegates,
	// consulted before the built-in ones.
	ExtraTriggerDelegates []TriggerPersistenceDelegate

	// Logger is the store logger.
	// Default: logger.Default().
	Logger logger.Logger
}

// Store is a quartz.JobStore backed by a shared SQL database.
type Store struct {
	db          *sql.DB
	delegate    Delegate
	lockHandler Semaphore
	serializer  *Serializer

	schedName   string
	instanceID  string
	tablePrefix string

	clustered         bool
	checkinInterval   time.Duration
	misfireThreshold  time.Duration
	maxMisfires       int
	acquireWithinLock bool
	retryInterval     time.Duration

	registry *quartz.JobRegistry
	signaler quartz.SchedulerSignaler

	triggerDelegates []TriggerPersistenceDelegate
	clusterMgr       *clusterManager

	ctx    context.Context
	cancel context.CancelFunc
	logger logger.Logger
}

var _ quartz.JobStore = (*Store)(nil)

// NewStore returns a new Store configured as specified.
func NewStore(opts Options) (*Store, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("%w: store database handle is nil",
			quartz.ErrIllegalArgument)
	}
	if opts.SchedulerName == "" {
		opts.SchedulerName = "QuartzScheduler"
	}
	if opts.InstanceID == "" {
		opts.InstanceID = "NON_CLUSTERED"
	}
	if opts.TablePrefix == "" {
		opts.TablePrefix = "QRTZ_"
	}
	if opts.Delegate == nil {
		opts.Delegate = NewStdDelegate()
	}
	if opts.ClusterCheckinInterval <= 0 {
		opts.ClusterCheckinInterval = 7500 * time.Millisecond
	}
	if opts.MisfireThreshold <= 0 {
		opts.MisfireThreshold = time.Minute
	}
	if opts.MaxMisfiresToHandleAtATime <= 0 {
		opts.MaxMisfiresToHandleAtATime = 20
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 15 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	if opts.LockHandler == nil {
		opts.LockHandler = NewStdRowLockSemaphoreWithOptions(
			opts.TablePrefix, opts.SchedulerName, StdRowLockSemaphoreOptions{
				SelectSQL: opts.Delegate.Rebind(opts.Delegate.SelectForLockSQL()),
				Logger:    opts.Logger,
			})
	}
	acquireWithinLock := true
	if opts.AcquireTriggersWithinLock != nil {
		acquireWithinLock = *opts.AcquireTriggersWithinLock
	}

	store := &Store{
		db:                opts.DB,
		delegate:          opts.Delegate,
		lockHandler:       opts.LockHandler,
		serializer:        &Serializer{UseProperties: opts.UseProperties},
		schedName:         opts.SchedulerName,
		instanceID:        opts.InstanceID,
		tablePrefix:       opts.TablePrefix,
		clustered:         opts.Clustered,
		checkinInterval:   opts.ClusterCheckinInterval,
		misfireThreshold:  opts.MisfireThreshold,
		maxMisfires:       opts.MaxMisfiresToHandleAtATime,
		acquireWithinLock: acquireWithinLock,
		retryInterval:     opts.RetryInterval,
		logger:            opts.Logger,
	}

	delegates := make([]TriggerPersistenceDelegate, 0, len(opts.ExtraTriggerDelegates)+5)
	delegates = append(delegates, opts.ExtraTriggerDelegates...)
	delegates = append(delegates,
		&SimpleTriggerDelegate{},
		&CronTriggerDelegate{},
		&CalendarIntervalTriggerDelegate{},
		&DailyTimeIntervalTriggerDelegate{},
		&BlobTriggerDelegate{}, // accepts everything, must stay last
	)
	for _, d := range delegates {
		d.Initialize(store.tablePrefix, store.schedName, store.delegate.Rebind)
	}
	store.triggerDelegates = delegates
	return store, nil
}

// sql expands and rebinds a SQL template.
func (s *Store) sql(template string) string {
	return s.delegate.Rebind(rtp(template, s.tablePrefix, s.schedName))
}

// Initialize is called by the scheduler before the store is used.
func (s *Store) Initialize(registry *quartz.JobRegistry,
	signaler quartz.SchedulerSignaler) error {
	s.registry = registry
	s.signaler = signaler
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return nil
}

// SchedulerStarted is called when the scheduler has started. In
// clustered mode it launches the cluster manager; otherwise the
// instance recovers its own in-flight fires from a previous run.
func (s *Store) SchedulerStarted() error {
	if s.clustered {
		s.clusterMgr = newClusterManager(s)
		s.clusterMgr.start(s.ctx)
		return nil
	}
	return s.executeInLock(s.ctx, LockTriggerAccess,
		func(ctx context.Context, tx *sql.Tx) error {
			return s.recoverFiredTriggers(ctx, tx, s.instanceID)
		})
}

// SchedulerPaused is called when the scheduler is put in standby.
func (s *Store) SchedulerPaused() {}

// SchedulerResumed is called when the scheduler leaves standby.
func (s *Store) SchedulerResumed() {}

// Shutdown releases all resources held by the store. The database
// handle is owned by the caller and is not closed.
func (s *Store) Shutdown() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.clusterMgr != nil {
		s.clusterMgr.stop()
	}
}

// executeInLock runs fn inside a transaction holding the named row
// lock. Reentrant calls on the same call chain reuse the transaction;
// the lock is released when the outermost transaction ends. An empty
// lock name runs fn transactionally without cross-instance locking.
func (s *Store) executeInLock(ctx context.Context, lockName string,
	fn func(ctx context.Context, tx *sql.Tx) error) error {
	if lc := lockContextFrom(ctx); lc != nil {
		if lc.tx == nil {
			return errNoTransaction
		}
		if lockName != "" && !lc.holds(lockName) {
			if err := s.lockHandler.ObtainLock(ctx, lc.tx, lockName); err != nil {
				return err
			}
			lc.names[lockName] = struct{}{}
		}
		return fn(ctx, lc.tx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	lc := &lockContext{tx: tx, names: make(map[string]struct{})}
	ctx = withLockContext(ctx, lc)
	if lockName != "" {
		if err := s.lockHandler.ObtainLock(ctx, tx, lockName); err != nil {
			_ = tx.Rollback()
			return err
		}
		lc.names[lockName] = struct{}{}
	}
	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// StoreJob persists the given job.
func (s *Store) StoreJob(job *quartz.JobDetail, replace bool) error {
	if err := job.Validate(); err != nil {
		return err
	}
	return s.executeInLock(s.ctx, LockTriggerAccess,
		func(ctx context.Context, tx *sql.Tx) error {
			return s.storeJob(ctx, tx, job, replace)
		})
}

func (s *Store) storeJob(ctx context.Context, tx *sql.Tx, job *quartz.JobDetail,
	replace bool) error {
	job.ResolveCapabilities(s.registry)
	exists, err := s.jobExists(ctx, tx, job.JobKey())
	if err != nil {
		return err
	}
	if exists && !replace {
		return fmt.Errorf("%w: %s", quartz.ErrObjectAlreadyExists, job.JobKey())
	}
	jobData, err := s.serializer.EncodeJobDataMap(job.JobDataMap())
	if err != nil {
		return err
	}
	opts := job.Options()
	if exists {
		_, err = tx.ExecContext(ctx, s.sql(sqlUpdateJobDetail),
			nullString(job.Description()), job.JobType(), opts.Durable,
			opts.DisallowConcurrentExecution, opts.PersistJobDataAfterExecution,
			opts.RequestsRecovery, jobData,
			job.JobKey().Name(), job.JobKey().Group())
	} else {
		_, err = tx.ExecContext(ctx, s.sql(sqlInsertJobDetail),
			job.JobKey().Name(), job.JobKey().Group(), nullString(job.Description()),
			job.JobType(), opts.Durable, opts.DisallowConcurrentExecution,
			opts.PersistJobDataAfterExecution, opts.RequestsRecovery, jobData)
	}
	return err
}

// StoreJobAndTrigger persists the job and its trigger atomically.
func (s *Store) StoreJobAndTrigger(job *quartz.JobDetail, trigger *quartz.Trigger) error {
	if err := job.Validate(); err != nil {
		return err
	}
	if err := trigger.Validate(); err != nil {
		return err
	}
	return s.executeInLock(s.ctx, LockTriggerAccess,
		func(ctx context.Context, tx *sql.Tx) error {
			if err := s.storeJob(ctx, tx, job, false); err != nil {
				return err
			}
			return s.storeTrigger(ctx, tx, trigger, false)
		})
}

// RemoveJob deletes the job and all of its triggers.
func (s *Store) RemoveJob(key *quartz.JobKey) (bool, error) {
	var removed bool
	err := s.executeInLock(s.ctx, LockTriggerAccess,
		func(ctx context.Context, tx *sql.Tx) error {
			triggerKeys, err := s.selectTriggerKeysForJob(ctx, tx, key)
			if err != nil {
				return err
			}
			for _, triggerKey := range triggerKeys {
				if err := s.deleteTrigger(ctx, tx, triggerKey); err != nil {
					return err
				}
			}
			result, err := tx.ExecContext(ctx, s.sql(sqlDeleteJobDetail),
				key.Name(), key.Group())
			if err != nil {
				return err
			}
			rows, _ := result.RowsAffected()
			removed = rows > 0
			return nil
		})
	return removed, err
}

// RetrieveJob loads the job with the given key.
func (s *Store) RetrieveJob(key *quartz.JobKey) (*quartz.JobDetail, error) {
	var job *quartz.JobDetail
	err := s.executeInLock(s.ctx, "",
		func(ctx context.Context, tx *sql.Tx) error {
			var err error
			job, err = s.selectJobDetail(ctx, tx, key)
			return err
		})
	return job, err
}

func (s *Store) selectJobDetail(ctx context.Context, tx *sql.Tx,
	key *quartz.JobKey) (*quartz.JobDetail, error) {
	row := tx.QueryRowContext(ctx, s.sql(sqlSelectJobDetail), key.Name(), key.Group())
	var (
		name, group, jobType                           string
		description                                    sql.NullString
		durable, nonconcurrent, updateData, recovering bool
		jobData                                        []byte
	)
	err := row.Scan(&name, &group, &description, &jobType, &durable,
		&nonconcurrent, &updateData, &recovering, &jobData)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", quartz.ErrJobNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	dataMap, err := s.serializer.DecodeJobDataMap(jobData)
	if err != nil {
		return nil, err
	}
	job := quartz.NewJobDetailWithOptions(
		quartz.NewJobKeyWithGroup(name, group), jobType,
		&quartz.JobDetailOptions{
			Durable:                      durable,
			RequestsRecovery:             recovering,
			DisallowConcurrentExecution:  nonconcurrent,
			PersistJobDataAfterExecution: updateData,
		}).WithDescription(description.String).WithJobDataMap(dataMap)
	return job, nil
}

func (s *Store) jobExists(ctx context.Context, tx *sql.Tx, key *quartz.JobKey) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, s.sql(sqlSelectJobExists),
		key.Name(), key.Group()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// StoreTrigger persists the given trigger.
func (s *Store) StoreTrigger(trigger *quartz.Trigger, replace bool) error {
	if err := trigger.Validate(); err != nil {
		return err
	}
	return s.executeInLock(s.ctx, LockTriggerAccess,
		func(ctx context.Context, tx *sql.Tx) error {
			return s.storeTrigger(ctx, tx, trigger, replace)
		})
}

func (s *Store) storeTrigger(ctx context.Context, tx *sql.Tx,
	trigger *quartz.Trigger, replace bool) error {
	exists, err := s.triggerExists(ctx, tx, trigger.Key())
	if err != nil {
		return err
	}
	if exists && !replace {
		return fmt.Errorf("%w: %s", quartz.ErrObjectAlreadyExists, trigger.Key())
	}
	jobExists, err := s.jobExists(ctx, tx, trigger.JobKey())
	if err != nil {
		return err
	}
	if !jobExists {
		return fmt.Errorf("%w: job %s referenced by trigger %s",
			quartz.ErrJobNotFound, trigger.JobKey(), trigger.Key())
	}

	state := quartz.StateWaiting
	groupPaused, err := s.isTriggerGroupPaused(ctx, tx, trigger.Key().Group())
	if err != nil {
		return err
	}
	jobBlocked, err := s.jobIsBlocked(ctx, tx, trigger.JobKey())
	if err != nil {
		return err
	}
	switch {
	case groupPaused && jobBlocked:
		state = quartz.StatePausedBlocked
	case groupPaused:
		state = quartz.StatePaused
	case jobBlocked:
		state = quartz.StateBlocked
	}

	if exists {
		if err := s.updateTrigger(ctx, tx, trigger, state); err != nil {
			return err
		}
		return nil
	}
	return s.insertTrigger(ctx, tx, trigger, state)
}

func (s *Store) persistenceDelegate(schedule quartz.Schedule) (TriggerPersistenceDelegate, error) {
	for _, d := range s.triggerDelegates {
		if d.CanHandle(schedule) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: no persistence delegate for schedule type %T",
		quartz.ErrStoreFatal, schedule)
}

func (s *Store) delegateForDiscriminator(discriminator string) (TriggerPersistenceDelegate, error) {
	for _, d := range s.triggerDelegates {
		if d.Discriminator() == discriminator {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: no persistence delegate for trigger type %q",
		quartz.ErrStoreFatal, discriminator)
}

func (s *Store) insertTrigger(ctx context.Context, tx *sql.Tx,
	trigger *quartz.Trigger, state quartz.TriggerState) error {
	pd, err := s.persistenceDelegate(trigger.Schedule())
	if err != nil {
		return err
	}
	jobData, err := s.serializer.EncodeJobDataMap(trigger.JobDataMap())
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, s.sql(sqlInsertTrigger),
		trigger.Key().Name(), trigger.Key().Group(),
		trigger.JobKey().Name(), trigger.JobKey().Group(),
		nullString(trigger.Description()),
		nullMillis(trigger.NextFireTime()), nullMillis(trigger.PreviousFireTime()),
		trigger.Priority(), string(state), pd.Discriminator(),
		trigger.StartTime().UnixMilli(), nullMillis(trigger.EndTime()),
		nullString(trigger.CalendarName()), int(trigger.MisfireInstruction()), jobData)
	if err != nil {
		return err
	}
	return pd.InsertExtendedProperties(ctx, tx, trigger)
}

func (s *Store) updateTrigger(ctx context.Context, tx *sql.Tx,
	trigger *quartz.Trigger, state quartz.TriggerState) error {
	// the schedule variant may have changed; re-seat the auxiliary row
	previousType, err := s.selectTriggerType(ctx, tx, trigger.Key())
	if err != nil {
		return err
	}
	pd, err := s.persistenceDelegate(trigger.Schedule())
	if err != nil {
		return err
	}
	jobData, err := s.serializer.EncodeJobDataMap(trigger.JobDataMap())
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, s.sql(sqlUpdateTrigger),
		trigger.JobKey().Name(), trigger.JobKey().Group(),
		nullString(trigger.Description()),
		nullMillis(trigger.NextFireTime()), nullMillis(trigger.PreviousFireTime()),
		trigger.Priority(), string(state), pd.Discriminator(),
		trigger.StartTime().UnixMilli(), nullMillis(trigger.EndTime()),
		nullString(trigger.CalendarName()), int(trigger.MisfireInstruction()), jobData,
		trigger.Key().Name(), trigger.Key().Group())
	if err != nil {
		return err
	}
	if previousType != pd.Discriminator() {
		previous, err := s.delegateForDiscriminator(previousType)
		if err != nil {
			return err
		}
		if err := previous.DeleteExtendedProperties(ctx, tx, trigger.Key()); err != nil {
			return err
		}
		return pd.InsertExtendedProperties(ctx, tx, trigger)
	}
	return pd.UpdateExtendedProperties(ctx, tx, trigger)
}

// updateTriggerNoState rewrites the trigger row preserving its current
// persisted state.
func (s *Store) updateTriggerNoState(ctx context.Context, tx *sql.Tx,
	trigger *quartz.Trigger) error {
	state, err := s.selectTriggerState(ctx, tx, trigger.Key())
	if err != nil {
		return err
	}
	return s.updateTrigger(ctx, tx, trigger, state)
}

// RemoveTrigger deletes the trigger. If its job is non-durable and not
// referenced by any other trigger, the job is deleted as well.
func (s *Store) RemoveTrigger(key *quartz.TriggerKey) (bool, error) {
	var removed bool
	err := s.executeInLock(s.ctx, LockTriggerAccess,
		func(ctx context.Context, tx *sql.Tx) error {
			var err error
			removed, err = s.removeTrigger(ctx, tx, key, true)
			return err
		})
	return removed, err
}

func (s *Store) removeTrigger(ctx context.Context, tx *sql.Tx,
	key *quartz.TriggerKey, removeOrphanedJob bool) (bool, error) {
	trigger, err := s.selectTrigger(ctx, tx, key)
	if errors.Is(err, quartz.ErrTriggerNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := s.deleteTrigger(ctx, tx, key); err != nil {
		return false, err
	}
	if removeOrphanedJob {
		job, err := s.selectJobDetail(ctx, tx, trigger.JobKey())
		if errors.Is(err, quartz.ErrJobNotFound) {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		if !job.Options().Durable {
			var count int
			err = tx.QueryRowContext(ctx, s.sql(sqlSelectNumTriggersForJob),
				trigger.JobKey().Name(), trigger.JobKey().Group()).Scan(&count)
			if err != nil {
				return false, err
			}
			if count == 0 {
				_, err = tx.ExecContext(ctx, s.sql(sqlDeleteJobDetail),
					trigger.JobKey().Name(), trigger.JobKey().Group())
				if err != nil {
					return false, err
				}
			}
		}
	}
	return true, nil
}

// deleteTrigger removes the trigger row and its auxiliary properties.
func (s *Store) deleteTrigger(ctx context.Context, tx *sql.Tx,
	key *quartz.TriggerKey) error {
	triggerType, err := s.selectTriggerType(ctx, tx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	pd, err := s.delegateForDiscriminator(triggerType)
	if err != nil {
		return err
	}
	if err := pd.DeleteExtendedProperties(ctx, tx, key); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, s.sql(sqlDeleteTrigger), key.Name(), key.Group())
	return err
}

// ReplaceTrigger atomically replaces the trigger with a new one for the
// same job.
func (s *Store) ReplaceTrigger(key *quartz.TriggerKey, newTrigger *quartz.Trigger) (bool, error) {
	if err := newTrigger.Validate(); err != nil {
		return false, err
	}
	var replaced bool
	err := s.executeInLock(s.ctx, LockTriggerAccess,
		func(ctx context.Context, tx *sql.Tx) error {
			existing, err := s.selectTrigger(ctx, tx, key)
			if errors.Is(err, quartz.ErrTriggerNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			if !existing.JobKey().Equals(newTrigger.JobKey()) {
				return fmt.Errorf("%w: the new trigger must be associated with the same job",
					quartz.ErrIllegalArgument)
			}
			if err := s.deleteTrigger(ctx, tx, key); err != nil {
				return err
			}
			if err := s.storeTrigger(ctx, tx, newTrigger, false); err != nil {
				return err
			}
			replaced = true
			return nil
		})
	return replaced, err
}

// RetrieveTrigger loads the trigger with the given key.
func (s *Store) RetrieveTrigger(key *quartz.TriggerKey) (*quartz.Trigger, error) {
	var trigger *quartz.Trigger
	err := s.executeInLock(s.ctx, "",
		func(ctx context.Context, tx *sql.Tx) error {
			var err error
			trigger, err = s.selectTrigger(ctx, tx, key)
			return err
		})
	return trigger, err
}

func (s *Store) selectTrigger(ctx context.Context, tx *sql.Tx,
	key *quartz.TriggerKey) (*quartz.Trigger, error) {
	row := tx.QueryRowContext(ctx, s.sql(sqlSelectTrigger), key.Name(), key.Group())
	var (
		name, group, jobName, jobGroup, state, triggerType string
		description, calendarName                          sql.NullString
		nextFire, prevFire, endTime                        sql.NullInt64
		startTime                                          int64
		priority, misfireInstr                             int
		jobData                                            []byte
	)
	err := row.Scan(&name, &group, &jobName, &jobGroup, &description, &nextFire,
		&prevFire, &priority, &state, &triggerType, &startTime, &endTime,
		&calendarName, &misfireInstr, &jobData)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", quartz.ErrTriggerNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	pd, err := s.delegateForDiscriminator(triggerType)
	if err != nil {
		return nil, err
	}
	schedule, err := pd.LoadExtendedProperties(ctx, tx, key)
	if err != nil {
		return nil, err
	}
	dataMap, err := s.serializer.DecodeJobDataMap(jobData)
	if err != nil {
		return nil, err
	}
	trigger := quartz.NewTrigger(
		quartz.NewTriggerKeyWithGroup(name, group),
		quartz.NewJobKeyWithGroup(jobName, jobGroup),
		schedule).
		WithDescription(description.String).
		WithStartTime(time.UnixMilli(startTime)).
		WithPriority(priority).
		WithMisfireInstruction(quartz.MisfireInstruction(misfireInstr)).
		WithCalendar(calendarName.String).
		WithJobDataMap(dataMap)
	if endTime.Valid {
		trigger.WithEndTime(time.UnixMilli(endTime.Int64))
	}
	trigger.SetNextFireTime(timeFromMillis(nextFire))
	trigger.SetPreviousFireTime(timeFromMillis(prevFire))
	return trigger, nil
}

func (s *Store) selectTriggerType(ctx context.Context, tx *sql.Tx,
	key *quartz.TriggerKey) (string, error) {
	var triggerType string
	err := tx.QueryRowContext(ctx,
		s.sql(`SELECT TRIGGER_TYPE FROM {0}TRIGGERS
 WHERE SCHED_NAME = '{1}' AND TRIGGER_NAME = ? AND TRIGGER_GROUP = ?`),
		key.Name(), key.Group()).Scan(&triggerType)
	return triggerType, err
}

func (s *Store) triggerExists(ctx context.Context, tx *sql.Tx,
	key *quartz.TriggerKey) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, s.sql(sqlSelectTriggerExists),
		key.Name(), key.Group()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// CheckJobExists reports whether a job with the given key exists.
func (s *Store) CheckJobExists(key *quartz.JobKey) (bool, error) {
	var exists bool
	err := s.executeInLock(s.ctx, "",
		func(ctx context.Context, tx *sql.Tx) error {
			var err error
			exists, err = s.jobExists(ctx, tx, key)
			return err
		})
	return exists, err
}

// CheckTriggerExists reports whether a trigger with the given key
// exists.
func (s *Store) CheckTriggerExists(key *quartz.TriggerKey) (bool, error) {
	var exists bool
	err := s.executeInLock(s.ctx, "",
		func(ctx context.Context, tx *sql.Tx) error {
			var err error
			exists, err = s.triggerExists(ctx, tx, key)
			return err
		})
	return exists, err
}

// ClearAllSchedulingData removes all jobs, triggers and calendars of the
// schedule.
func (s *Store) ClearAllSchedulingData() error {
	return s.executeInLock(s.ctx, LockTriggerAccess,
		func(ctx context.Context, tx *sql.Tx) error {
			for _, template := range []string{
				sqlDeleteSimpleTriggersOfSchedule,
				sqlDeleteCronTriggersOfSchedule,
				sqlDeleteSimpropTriggersOfSchedule,
				sqlDeleteBlobTriggersOfSchedule,
				sqlDeleteTriggersOfSchedule,
				sqlDeleteJobDetailsOfSchedule,
				sqlDeleteCalendarsOfSchedule,
				sqlDeletePausedGroupsOfSchedule,
			} {
				if _, err := tx.ExecContext(ctx, s.sql(template)); err != nil {
					return err
				}
			}
			return nil
		})
}

// StoreCalendar persists the named calendar.
func (s *Store) StoreCalendar(name string, cal calendar.Calendar,
	replace, updateTriggers bool) error {
	if name == "" {
		return fmt.Errorf("%w: calendar name is empty", quartz.ErrIllegalArgument)
	}
	blob, err := s.serializer.EncodeCalendar(cal)
	if err != nil {
		return err
	}
	return s.executeInLock(s.ctx, LockTriggerAccess,
		func(ctx context.Context, tx *sql.Tx) error {
			var one int
			err := tx.QueryRowContext(ctx, s.sql(sqlSelectCalendarExists), name).Scan(&one)
			exists := err == nil
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return err
			}
			if exists && !replace {
				return fmt.Errorf("%w: calendar %s", quartz.ErrObjectAlreadyExists, name)
			}
			if exists {
				if _, err := tx.ExecContext(ctx, s.sql(sqlUpdateCalendar), blob, name); err != nil {
					return err
				}
			} else {
				if _, err := tx.ExecContext(ctx, s.sql(sqlInsertCalendar), name, blob); err != nil {
					return err
				}
			}
			if !updateTriggers {
				return nil
			}
			keys, err := s.selectTriggerKeysForCalendar(ctx, tx, name)
			if err != nil {
				return err
			}
			for _, key := range keys {
				trigger, err := s.selectTrigger(ctx, tx, key)
				if err != nil {
					return err
				}
				trigger.UpdateWithNewCalendar(cal, s.misfireThreshold)
				if err := s.updateTriggerNoState(ctx, tx, trigger); err != nil {
					return err
				}
			}
			return nil
		})
}

// RemoveCalendar deletes the named calendar. Removing a calendar
// referenced by a trigger fails.
func (s *Store) RemoveCalendar(name string) (bool, error) {
	var removed bool
	err := s.executeInLock(s.ctx, LockTriggerAccess,
		func(ctx context.Context, tx *sql.Tx) error {
			var one int
			err := tx.QueryRowContext(ctx, s.sql(sqlSelectReferencedCalendar), name).Scan(&one)
			if err == nil {
				return fmt.Errorf("%w: calendar %s is referenced by a trigger",
					quartz.ErrIllegalState, name)
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return err
			}
			result, err := tx.ExecContext(ctx, s.sql(sqlDeleteCalendar), name)
			if err != nil {
				return err
			}
			rows, _ := result.RowsAffected()
			removed = rows > 0
			return nil
		})
	return removed, err
}

// RetrieveCalendar loads the named calendar.
func (s *Store) RetrieveCalendar(name string) (calendar.Calendar, error) {
	var cal calendar.Calendar
	err := s.executeInLock(s.ctx, "",
		func(ctx context.Context, tx *sql.Tx) error {
			var err error
			cal, err = s.selectCalendar(ctx, tx, name)
			return err
		})
	return cal, err
}

func (s *Store) selectCalendar(ctx context.Context, tx *sql.Tx,
	name string) (calendar.Calendar, error) {
	var blob []byte
	err := tx.QueryRowContext(ctx, s.sql(sqlSelectCalendar), name).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", quartz.ErrCalendarNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return s.serializer.DecodeCalendar(blob)
}

// GetJobKeys returns the keys of jobs accepted by the matcher.
func (s *Store) GetJobKeys(m quartz.Matcher[*quartz.JobKey]) ([]*quartz.JobKey, error) {
	var keys []*quartz.JobKey
	err := s.executeInLock(s.ctx, "",
		func(ctx context.Context, tx *sql.Tx) error {
			rows, err := tx.QueryContext(ctx, s.sql(sqlSelectAllJobKeys))
			if err != nil {
				return err
			}
			defer rows.Close()
			for rows.Next() {
				var name, group string
				if err := rows.Scan(&name, &group); err != nil {
					return err
				}
				key := quartz.NewJobKeyWithGroup(name, group)
				if m == nil || m.IsMatch(key) {
					keys = append(keys, key)
				}
			}
			return rows.Err()
		})
	return keys, err
}

// GetTriggerKeys returns the keys of triggers accepted by the matcher.
func (s *Store) GetTriggerKeys(m quartz.Matcher[*quartz.TriggerKey]) ([]*quartz.TriggerKey, error) {
	var keys []*quartz.TriggerKey
	err := s.executeInLock(s.ctx, "",
		func(ctx context.Context, tx *sql.Tx) error {
			var err error
			keys, err = s.selectTriggerKeys(ctx, tx, m)
			return err
		})
	return keys, err
}

func (s *Store) selectTriggerKeys(ctx context.Context, tx *sql.Tx,
	m quartz.Matcher[*quartz.TriggerKey]) ([]*quartz.TriggerKey, error) {
	rows, err := tx.QueryContext(ctx, s.sql(sqlSelectAllTriggerKeys))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []*quartz.TriggerKey
	for rows.Next() {
		var name, group string
		if err := rows.Scan(&name, &group); err != nil {
			return nil, err
		}
		key := quartz.NewTriggerKeyWithGroup(name, group)
		if m == nil || m.IsMatch(key) {
			keys = append(keys, key)
		}
	}
	return keys, rows.Err()
}

func (s *Store) selectTriggerKeysForJob(ctx context.Context, tx *sql.Tx,
	key *quartz.JobKey) ([]*quartz.TriggerKey, error) {
	rows, err := tx.QueryContext(ctx, s.sql(sqlSelectTriggersForJob),
		key.Name(), key.Group())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []*quartz.TriggerKey
	for rows.Next() {
		var name, group string
		if err := rows.Scan(&name, &group); err != nil {
			return nil, err
		}
		keys = append(keys, quartz.NewTriggerKeyWithGroup(name, group))
	}
	return keys, rows.Err()
}

func (s *Store) selectTriggerKeysForCalendar(ctx context.Context, tx *sql.Tx,
	name string) ([]*quartz.TriggerKey, error) {
	rows, err := tx.QueryContext(ctx, s.sql(sqlSelectTriggersForCalendar), name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []*quartz.TriggerKey
	for rows.Next() {
		var triggerName, group string
		if err := rows.Scan(&triggerName, &group); err != nil {
			return nil, err
		}
		keys = append(keys, quartz.NewTriggerKeyWithGroup(triggerName, group))
	}
	return keys, rows.Err()
}

// GetTriggersForJob returns all triggers of the given job.
func (s *Store) GetTriggersForJob(key *quartz.JobKey) ([]*quartz.Trigger, error) {
	var triggers []*quartz.Trigger
	err := s.executeInLock(s.ctx, "",
		func(ctx context.Context, tx *sql.Tx) error {
			keys, err := s.selectTriggerKeysForJob(ctx, tx, key)
			if err != nil {
				return err
			}
			for _, triggerKey := range keys {
				trigger, err := s.selectTrigger(ctx, tx, triggerKey)
				if err != nil {
					return err
				}
				triggers = append(triggers, trigger)
			}
			return nil
		})
	return triggers, err
}

// GetTriggerState returns the current state of the trigger.
func (s *Store) GetTriggerState(key *quartz.TriggerKey) (quartz.TriggerState, error) {
	state := quartz.StateNone
	err := s.executeInLock(s.ctx, "",
		func(ctx context.Context, tx *sql.Tx) error {
			var err error
			state, err = s.selectTriggerState(ctx, tx, key)
			return err
		})
	return state, err
}

func (s *Store) selectTriggerState(ctx context.Context, tx *sql.Tx,
	key *quartz.TriggerKey) (quartz.TriggerState, error) {
	var state string
	err := tx.QueryRowContext(ctx, s.sql(sqlSelectTriggerState),
		key.Name(), key.Group()).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return quartz.StateNone, fmt.Errorf("%w: %s", quartz.ErrTriggerNotFound, key)
	}
	if err != nil {
		return quartz.StateNone, err
	}
	return quartz.TriggerState(state), nil
}

func (s *Store) updateTriggerState(ctx context.Context, tx *sql.Tx,
	key *quartz.TriggerKey, state quartz.TriggerState) error {
	_, err := tx.ExecContext(ctx, s.sql(sqlUpdateTriggerState),
		string(state), key.Name(), key.Group())
	return err
}

// updateTriggerStateFromOtherState transitions the trigger state
// optimistically; it reports whether the transition was applied.
func (s *Store) updateTriggerStateFromOtherState(ctx context.Context, tx *sql.Tx,
	key *quartz.TriggerKey, newState, oldState quartz.TriggerState) (bool, error) {
	result, err := tx.ExecContext(ctx, s.sql(sqlUpdateTriggerStateFromOtherState),
		string(newState), key.Name(), key.Group(), string(oldState))
	if err != nil {
		return false, err
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

func (s *Store) isTriggerGroupPaused(ctx context.Context, tx *sql.Tx,
	group string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, s.sql(sqlSelectPausedTriggerGroup), group).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// jobIsBlocked reports whether a concurrent-disallowed execution of the
// job is in flight, tracked through the fired-trigger records.
func (s *Store) jobIsBlocked(ctx context.Context, tx *sql.Tx,
	key *quartz.JobKey) (bool, error) {
	var count int
	err := tx.QueryRowContext(ctx, s.sql(
		`SELECT COUNT(*) FROM {0}FIRED_TRIGGERS
 WHERE SCHED_NAME = '{1}' AND JOB_NAME = ? AND JOB_GROUP = ?
 AND IS_NONCONCURRENT = ? AND STATE = ?`),
		key.Name(), key.Group(), true, string(quartz.StateExecuting)).Scan(&count)
	return count > 0, err
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

func nullMillis(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func timeFromMillis(value sql.NullInt64) time.Time {
	if !value.Valid {
		return time.Time{}
	}
	return time.UnixMilli(value.Int64)
}

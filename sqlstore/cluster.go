package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goquartz/quartz/quartz"
)

// Data map keys of synthesized recovery triggers.
const (
	// DataKeyRecovering marks an execution as a recovery of a fire
	// claimed by a failed scheduler instance.
	DataKeyRecovering = "quartz-recovering"

	// DataKeyScheduledFireTime carries the original scheduled fire time
	// of the recovered fire, in epoch milliseconds.
	DataKeyScheduledFireTime = "quartz-scheduled-fire-time"
)

// RecoveryTriggerGroup is the group of one-shot triggers synthesized for
// jobs recovered from a failed scheduler instance.
const RecoveryTriggerGroup = "RECOVERING_JOBS"

// checkinSafetyMargin widens the dead-peer detection window to tolerate
// transient checkin delays.
const checkinSafetyMargin = 7

// schedulerInstance is one row of the SCHEDULER_STATE table.
type schedulerInstance struct {
	instanceID      string
	lastCheckin     time.Time
	checkinInterval time.Duration
}

// firedTriggerRecord is one row of the FIRED_TRIGGERS table: persisted
// evidence of a claimed fire, existing only between acquire and
// complete.
type firedTriggerRecord struct {
	entryID          string
	triggerKey       *quartz.TriggerKey
	jobKey           *quartz.JobKey
	instanceID       string
	firedTime        time.Time
	scheduledTime    time.Time
	priority         int
	state            quartz.TriggerState
	nonconcurrent    bool
	requestsRecovery bool
}

// clusterManager runs two cooperating activities at the checkin
// interval: it writes this instance's heartbeat and scans for peers
// whose heartbeat has gone stale, recovering their in-flight fires.
// All instant comparisons use the database clock.
type clusterManager struct {
	store *Store
	done  chan struct{}
	wg    sync.WaitGroup
}

func newClusterManager(store *Store) *clusterManager {
	return &clusterManager{
		store: store,
		done:  make(chan struct{}),
	}
}

func (cm *clusterManager) start(ctx context.Context) {
	cm.wg.Add(1)
	go cm.run(ctx)
}

func (cm *clusterManager) stop() {
	close(cm.done)
	cm.wg.Wait()
	// a best-effort retirement: remove this instance's state row so
	// peers do not wait out the failover window
	s := cm.store
	err := s.executeInLock(context.Background(), LockStateAccess,
		func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, s.sql(sqlDeleteSchedulerState), s.instanceID)
			return err
		})
	if err != nil {
		s.logger.Warnf("Failed to retire scheduler state row: %s", err)
	}
}

func (cm *clusterManager) run(ctx context.Context) {
	defer cm.wg.Done()
	s := cm.store
	interval := s.checkinInterval
	for {
		if err := cm.manage(ctx); err != nil {
			s.logger.Errorf("Cluster manager cycle failed: %s", err)
			if s.signaler != nil {
				s.signaler.NotifySchedulerListenersError("cluster manager cycle failed", err)
			}
			interval = s.retryInterval
		} else {
			interval = s.checkinInterval
		}
		timer := time.NewTimer(interval)
		select {
		case <-timer.C:
		case <-cm.done:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// manage performs one checkin plus failover cycle.
func (cm *clusterManager) manage(ctx context.Context) error {
	s := cm.store
	var failed []schedulerInstance
	err := s.executeInLock(ctx, LockStateAccess,
		func(ctx context.Context, tx *sql.Tx) error {
			dbNow, err := s.delegate.CurrentTime(ctx, tx)
			if err != nil {
				return err
			}
			if err := cm.checkin(ctx, tx, dbNow); err != nil {
				return err
			}
			failed, err = cm.findFailedInstances(ctx, tx, dbNow)
			return err
		})
	if err != nil {
		return err
	}
	if len(failed) == 0 {
		return nil
	}
	return s.executeInLock(ctx, LockTriggerAccess,
		func(ctx context.Context, tx *sql.Tx) error {
			return s.executeInLock(ctx, LockStateAccess,
				func(ctx context.Context, tx *sql.Tx) error {
					for _, instance := range failed {
						s.logger.Warnf("Recovering jobs of failed scheduler instance %s.",
							instance.instanceID)
						if err := s.recoverFiredTriggers(ctx, tx, instance.instanceID); err != nil {
							return err
						}
						if _, err := tx.ExecContext(ctx, s.sql(sqlDeleteSchedulerState),
							instance.instanceID); err != nil {
							return err
						}
					}
					return nil
				})
		})
}

// checkin upserts this instance's heartbeat using the database clock.
func (cm *clusterManager) checkin(ctx context.Context, tx *sql.Tx, dbNow time.Time) error {
	s := cm.store
	result, err := tx.ExecContext(ctx, s.sql(sqlUpdateSchedulerState),
		dbNow.UnixMilli(), s.instanceID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		_, err = tx.ExecContext(ctx, s.sql(sqlInsertSchedulerState),
			s.instanceID, dbNow.UnixMilli(), s.checkinInterval.Milliseconds())
	}
	return err
}

// findFailedInstances returns the peers whose last checkin is older than
// their interval times the safety margin, measured on the database
// clock.
func (cm *clusterManager) findFailedInstances(ctx context.Context, tx *sql.Tx,
	dbNow time.Time) ([]schedulerInstance, error) {
	s := cm.store
	rows, err := tx.QueryContext(ctx, s.sql(sqlSelectSchedulerStates))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var failed []schedulerInstance
	for rows.Next() {
		var instance schedulerInstance
		var lastCheckin, interval int64
		if err := rows.Scan(&instance.instanceID, &lastCheckin, &interval); err != nil {
			return nil, err
		}
		instance.lastCheckin = time.UnixMilli(lastCheckin)
		instance.checkinInterval = time.Duration(interval) * time.Millisecond
		if instance.instanceID == s.instanceID {
			continue
		}
		deadline := instance.lastCheckin.Add(instance.checkinInterval * checkinSafetyMargin)
		if deadline.Before(dbNow) {
			failed = append(failed, instance)
		}
	}
	return failed, rows.Err()
}

// recoverFiredTriggers transfers the in-flight fires of the given
// instance: jobs requesting recovery are re-scheduled as one-shot
// triggers preserving the original scheduled fire time, blocked states
// are released and the claims are deleted.
func (s *Store) recoverFiredTriggers(ctx context.Context, tx *sql.Tx,
	instanceID string) error {
	records, err := s.selectFiredTriggerRecords(ctx, tx, instanceID)
	if err != nil {
		return err
	}
	recovered := 0
	for _, record := range records {
		// release the claim on the trigger itself
		if _, err := s.updateTriggerStateFromOtherState(ctx, tx, record.triggerKey,
			quartz.StateWaiting, quartz.StateAcquired); err != nil {
			return err
		}
		if _, err := s.updateTriggerStateFromOtherState(ctx, tx, record.triggerKey,
			quartz.StateWaiting, quartz.StateBlocked); err != nil {
			return err
		}
		if record.nonconcurrent {
			// unblock the job's other triggers
			_, err = tx.ExecContext(ctx, s.sql(sqlUpdateJobTriggerStatesFromOtherStates),
				string(quartz.StateWaiting), record.jobKey.Name(), record.jobKey.Group(),
				string(quartz.StateBlocked), string(quartz.StateBlocked))
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, s.sql(sqlUpdateJobTriggerStatesFromOtherStates),
				string(quartz.StatePaused), record.jobKey.Name(), record.jobKey.Group(),
				string(quartz.StatePausedBlocked), string(quartz.StatePausedBlocked))
			if err != nil {
				return err
			}
		}
		if record.state == quartz.StateExecuting && record.requestsRecovery {
			if err := s.insertRecoveryTrigger(ctx, tx, record); err != nil {
				return err
			}
			recovered++
		}
	}
	if _, err := tx.ExecContext(ctx, s.sql(sqlDeleteFiredTriggersOfInstance),
		instanceID); err != nil {
		return err
	}
	if len(records) > 0 {
		s.logger.Infof("Released %d claimed fires of instance %s, recovering %d jobs.",
			len(records), instanceID, recovered)
	}
	return nil
}

// insertRecoveryTrigger synthesizes a one-shot trigger re-executing the
// job of an in-flight fire lost by a failed instance.
func (s *Store) insertRecoveryTrigger(ctx context.Context, tx *sql.Tx,
	record *firedTriggerRecord) error {
	jobExists, err := s.jobExists(ctx, tx, record.jobKey)
	if err != nil {
		return err
	}
	if !jobExists {
		s.logger.Warnf("Cannot recover job %s: it no longer exists.", record.jobKey)
		return nil
	}
	original, err := s.selectTrigger(ctx, tx, record.triggerKey)
	dataMap := quartz.NewJobDataMap()
	if err == nil {
		dataMap = original.JobDataMap().Clone()
	} else if !isNotFound(err) {
		return err
	}
	dataMap[DataKeyRecovering] = "true"
	dataMap[DataKeyScheduledFireTime] = strconv.FormatInt(
		record.scheduledTime.UnixMilli(), 10)

	recovery := quartz.NewTrigger(
		quartz.NewTriggerKeyWithGroup(
			fmt.Sprintf("recover_%s_%s", record.instanceID, uuid.NewString()),
			RecoveryTriggerGroup),
		record.jobKey,
		quartz.NewRunOnceSchedule()).
		WithDescription(fmt.Sprintf("recovery of fire %s", record.entryID)).
		WithStartTime(time.Now()).
		WithPriority(record.priority).
		WithMisfireInstruction(quartz.MisfireIgnorePolicy).
		WithJobDataMap(dataMap)
	recovery.SetNextFireTime(time.Now())
	return s.storeTrigger(ctx, tx, recovery, false)
}

func (s *Store) selectFiredTriggerRecords(ctx context.Context, tx *sql.Tx,
	instanceID string) ([]*firedTriggerRecord, error) {
	rows, err := tx.QueryContext(ctx, s.sql(sqlSelectFiredTriggersOfInstance),
		instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []*firedTriggerRecord
	for rows.Next() {
		var (
			record                              firedTriggerRecord
			triggerName, triggerGroup, state    string
			jobName, jobGroup                   sql.NullString
			firedTime, scheduledTime            int64
			nonconcurrent, requestsRecovery     sql.NullBool
		)
		err := rows.Scan(&record.entryID, &triggerName, &triggerGroup,
			&record.instanceID, &firedTime, &scheduledTime, &record.priority,
			&state, &jobName, &jobGroup, &nonconcurrent, &requestsRecovery)
		if err != nil {
			return nil, err
		}
		record.triggerKey = quartz.NewTriggerKeyWithGroup(triggerName, triggerGroup)
		record.jobKey = quartz.NewJobKeyWithGroup(jobName.String, jobGroup.String)
		record.firedTime = time.UnixMilli(firedTime)
		record.scheduledTime = time.UnixMilli(scheduledTime)
		record.state = quartz.TriggerState(state)
		record.nonconcurrent = nonconcurrent.Bool
		record.requestsRecovery = requestsRecovery.Bool
		records = append(records, &record)
	}
	return records, rows.Err()
}

func isNotFound(err error) bool {
	return errors.Is(err, quartz.ErrTriggerNotFound) ||
		errors.Is(err, quartz.ErrJobNotFound)
}

package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/goquartz/quartz/calendar"
	"github.com/goquartz/quartz/quartz"
)

// PauseTrigger pauses the trigger with the given key.
func (s *Store) PauseTrigger(key *quartz.TriggerKey) error {
	return s.executeInLock(s.ctx, LockTriggerAccess,
		func(ctx context.Context, tx *sql.Tx) error {
			return s.pauseTrigger(ctx, tx, key)
		})
}

func (s *Store) pauseTrigger(ctx context.Context, tx *sql.Tx,
	key *quartz.TriggerKey) error {
	state, err := s.selectTriggerState(ctx, tx, key)
	if err != nil {
		return err
	}
	switch state {
	case quartz.StateWaiting, quartz.StateAcquired:
		return s.updateTriggerState(ctx, tx, key, quartz.StatePaused)
	case quartz.StateBlocked:
		return s.updateTriggerState(ctx, tx, key, quartz.StatePausedBlocked)
	}
	return nil
}

// PauseTriggers pauses all triggers accepted by the matcher and returns
// the names of the affected groups. The groups become sticky paused.
func (s *Store) PauseTriggers(m quartz.Matcher[*quartz.TriggerKey]) ([]string, error) {
	var groups []string
	err := s.executeInLock(s.ctx, LockTriggerAccess,
		func(ctx context.Context, tx *sql.Tx) error {
			groupSet := make(map[string]struct{})
			if equals, ok := m.(interface{ EqualsGroup() (string, bool) }); ok {
				if group, isEquals := equals.EqualsGroup(); isEquals {
					groupSet[group] = struct{}{}
				}
			}
			keys, err := s.selectTriggerKeys(ctx, tx, m)
			if err != nil {
				return err
			}
			for _, key := range keys {
				groupSet[key.Group()] = struct{}{}
				if err := s.pauseTrigger(ctx, tx, key); err != nil {
					return err
				}
			}
			for group := range groupSet {
				if err := s.insertPausedTriggerGroup(ctx, tx, group); err != nil {
					return err
				}
				groups = append(groups, group)
			}
			return nil
		})
	return groups, err
}

func (s *Store) insertPausedTriggerGroup(ctx context.Context, tx *sql.Tx,
	group string) error {
	paused, err := s.isTriggerGroupPaused(ctx, tx, group)
	if err != nil || paused {
		return err
	}
	_, err = tx.ExecContext(ctx, s.sql(sqlInsertPausedTriggerGroup), group)
	return err
}

// PauseJob pauses all triggers of the job with the given key.
func (s *Store) PauseJob(key *quartz.JobKey) error {
	return s.executeInLock(s.ctx, LockTriggerAccess,
		func(ctx context.Context, tx *sql.Tx) error {
			keys, err := s.selectTriggerKeysForJob(ctx, tx, key)
			if err != nil {
				return err
			}
			for _, triggerKey := range keys {
				if err := s.pauseTrigger(ctx, tx, triggerKey); err != nil {
					return err
				}
			}
			return nil
		})
}

// PauseJobs pauses all triggers of all jobs accepted by the matcher and
// returns the names of the affected groups.
func (s *Store) PauseJobs(m quartz.Matcher[*quartz.JobKey]) ([]string, error) {
	var groups []string
	err := s.executeInLock(s.ctx, LockTriggerAccess,
		func(ctx context.Context, tx *sql.Tx) error {
			jobKeys, err := s.selectAllJobKeys(ctx, tx)
			if err != nil {
				return err
			}
			groupSet := make(map[string]struct{})
			for _, jobKey := range jobKeys {
				if m != nil && !m.IsMatch(jobKey) {
					continue
				}
				groupSet[jobKey.Group()] = struct{}{}
				triggerKeys, err := s.selectTriggerKeysForJob(ctx, tx, jobKey)
				if err != nil {
					return err
				}
				for _, triggerKey := range triggerKeys {
					if err := s.pauseTrigger(ctx, tx, triggerKey); err != nil {
						return err
					}
				}
			}
			for group := range groupSet {
				groups = append(groups, group)
			}
			return nil
		})
	return groups, err
}

func (s *Store) selectAllJobKeys(ctx context.Context, tx *sql.Tx) ([]*quartz.JobKey, error) {
	rows, err := tx.QueryContext(ctx, s.sql(sqlSelectAllJobKeys))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []*quartz.JobKey
	for rows.Next() {
		var name, group string
		if err := rows.Scan(&name, &group); err != nil {
			return nil, err
		}
		keys = append(keys, quartz.NewJobKeyWithGroup(name, group))
	}
	return keys, rows.Err()
}

// ResumeTrigger resumes the trigger with the given key, applying the
// misfire policy if fire times were missed while paused.
func (s *Store) ResumeTrigger(key *quartz.TriggerKey) error {
	return s.executeInLock(s.ctx, LockTriggerAccess,
		func(ctx context.Context, tx *sql.Tx) error {
			return s.resumeTrigger(ctx, tx, key)
		})
}

func (s *Store) resumeTrigger(ctx context.Context, tx *sql.Tx,
	key *quartz.TriggerKey) error {
	state, err := s.selectTriggerState(ctx, tx, key)
	if err != nil {
		return err
	}
	if state != quartz.StatePaused && state != quartz.StatePausedBlocked {
		return nil
	}
	trigger, err := s.selectTrigger(ctx, tx, key)
	if err != nil {
		return err
	}
	blocked, err := s.jobIsBlocked(ctx, tx, trigger.JobKey())
	if err != nil {
		return err
	}
	newState := quartz.StateWaiting
	if blocked {
		newState = quartz.StateBlocked
	}
	misfired, err := s.applyMisfire(ctx, tx, trigger)
	if err != nil {
		return err
	}
	if misfired {
		if trigger.NextFireTime().IsZero() {
			newState = quartz.StateComplete
		}
		if err := s.updateTrigger(ctx, tx, trigger, newState); err != nil {
			return err
		}
	} else if err := s.updateTriggerState(ctx, tx, key, newState); err != nil {
		return err
	}
	if s.signaler != nil && newState == quartz.StateWaiting {
		s.signaler.SignalSchedulingChange(trigger.NextFireTime())
	}
	return nil
}

// ResumeTriggers resumes all triggers accepted by the matcher and
// returns the names of the affected groups.
func (s *Store) ResumeTriggers(m quartz.Matcher[*quartz.TriggerKey]) ([]string, error) {
	var groups []string
	err := s.executeInLock(s.ctx, LockTriggerAccess,
		func(ctx context.Context, tx *sql.Tx) error {
			groupSet := make(map[string]struct{})
			if equals, ok := m.(interface{ EqualsGroup() (string, bool) }); ok {
				if group, isEquals := equals.EqualsGroup(); isEquals {
					groupSet[group] = struct{}{}
				}
			}
			keys, err := s.selectTriggerKeys(ctx, tx, m)
			if err != nil {
				return err
			}
			for _, key := range keys {
				groupSet[key.Group()] = struct{}{}
				if err := s.resumeTrigger(ctx, tx, key); err != nil {
					return err
				}
			}
			for group := range groupSet {
				if _, err := tx.ExecContext(ctx,
					s.sql(sqlDeletePausedTriggerGroup), group); err != nil {
					return err
				}
				groups = append(groups, group)
			}
			return nil
		})
	return groups, err
}

// ResumeJob resumes all triggers of the job with the given key.
func (s *Store) ResumeJob(key *quartz.JobKey) error {
	return s.executeInLock(s.ctx, LockTriggerAccess,
		func(ctx context.Context, tx *sql.Tx) error {
			keys, err := s.selectTriggerKeysForJob(ctx, tx, key)
			if err != nil {
				return err
			}
			for _, triggerKey := range keys {
				if err := s.resumeTrigger(ctx, tx, triggerKey); err != nil {
					return err
				}
			}
			return nil
		})
}

// ResumeJobs resumes all triggers of all jobs accepted by the matcher
// and returns the names of the affected groups.
func (s *Store) ResumeJobs(m quartz.Matcher[*quartz.JobKey]) ([]string, error) {
	var groups []string
	err := s.executeInLock(s.ctx, LockTriggerAccess,
		func(ctx context.Context, tx *sql.Tx) error {
			jobKeys, err := s.selectAllJobKeys(ctx, tx)
			if err != nil {
				return err
			}
			groupSet := make(map[string]struct{})
			for _, jobKey := range jobKeys {
				if m != nil && !m.IsMatch(jobKey) {
					continue
				}
				groupSet[jobKey.Group()] = struct{}{}
				triggerKeys, err := s.selectTriggerKeysForJob(ctx, tx, jobKey)
				if err != nil {
					return err
				}
				for _, triggerKey := range triggerKeys {
					if err := s.resumeTrigger(ctx, tx, triggerKey); err != nil {
						return err
					}
				}
			}
			for group := range groupSet {
				groups = append(groups, group)
			}
			return nil
		})
	return groups, err
}

// PauseAll pauses all triggers and marks every group paused.
func (s *Store) PauseAll() error {
	_, err := s.PauseTriggers(anyTriggerMatcher{})
	return err
}

// ResumeAll resumes all triggers and clears all sticky paused groups.
func (s *Store) ResumeAll() error {
	return s.executeInLock(s.ctx, LockTriggerAccess,
		func(ctx context.Context, tx *sql.Tx) error {
			keys, err := s.selectTriggerKeys(ctx, tx, nil)
			if err != nil {
				return err
			}
			for _, key := range keys {
				if err := s.resumeTrigger(ctx, tx, key); err != nil {
					return err
				}
			}
			_, err = tx.ExecContext(ctx, s.sql(sqlDeleteAllPausedTriggerGroups))
			return err
		})
}

// GetPausedTriggerGroups returns the names of the sticky paused trigger
// groups.
func (s *Store) GetPausedTriggerGroups() ([]string, error) {
	var groups []string
	err := s.executeInLock(s.ctx, "",
		func(ctx context.Context, tx *sql.Tx) error {
			rows, err := tx.QueryContext(ctx, s.sql(sqlSelectPausedTriggerGroups))
			if err != nil {
				return err
			}
			defer rows.Close()
			for rows.Next() {
				var group string
				if err := rows.Scan(&group); err != nil {
					return err
				}
				groups = append(groups, group)
			}
			return rows.Err()
		})
	return groups, err
}

// anyTriggerMatcher accepts every trigger key.
type anyTriggerMatcher struct{}

func (anyTriggerMatcher) IsMatch(_ *quartz.TriggerKey) bool { return true }

// AcquireNextTriggers claims up to maxCount triggers due no later than
// noLaterThan plus timeWindow. Misfired waiting triggers encountered
// during the sweep have their misfire policy applied first.
func (s *Store) AcquireNextTriggers(noLaterThan time.Time, maxCount int,
	timeWindow time.Duration) ([]*quartz.Trigger, error) {
	lockName := LockTriggerAccess
	if !s.acquireWithinLock {
		// rely on the optimistic WAITING -> ACQUIRED transition alone
		lockName = ""
	}
	var acquired []*quartz.Trigger
	err := s.executeInLock(s.ctx, lockName,
		func(ctx context.Context, tx *sql.Tx) error {
			if err := s.recoverMisfiredJobs(ctx, tx); err != nil {
				return err
			}
			batchEnd := noLaterThan.Add(timeWindow)
			misfireTime := time.Now().Add(-s.misfireThreshold)
			query := s.delegate.LimitQuery(
				rtp(sqlSelectTriggerToAcquire, s.tablePrefix, s.schedName), maxCount)
			rows, err := tx.QueryContext(ctx, s.delegate.Rebind(query),
				string(quartz.StateWaiting), batchEnd.UnixMilli(), misfireTime.UnixMilli())
			if err != nil {
				return err
			}
			var candidates []*quartz.TriggerKey
			for rows.Next() {
				var name, group string
				var nextFire sql.NullInt64
				var priority int
				if err := rows.Scan(&name, &group, &nextFire, &priority); err != nil {
					_ = rows.Close()
					return err
				}
				candidates = append(candidates, quartz.NewTriggerKeyWithGroup(name, group))
			}
			if err := rows.Close(); err != nil {
				return err
			}
			if err := rows.Err(); err != nil {
				return err
			}

			batchJobs := make(map[string]struct{})
			for _, key := range candidates {
				if len(acquired) >= maxCount {
					break
				}
				applied, err := s.updateTriggerStateFromOtherState(ctx, tx, key,
					quartz.StateAcquired, quartz.StateWaiting)
				if err != nil {
					return err
				}
				if !applied {
					// a peer won the race or the trigger was paused
					continue
				}
				trigger, err := s.selectTrigger(ctx, tx, key)
				if err != nil {
					if errors.Is(err, quartz.ErrTriggerNotFound) {
						continue
					}
					return err
				}
				job, err := s.selectJobDetail(ctx, tx, trigger.JobKey())
				if err != nil {
					return err
				}
				if job.Options().DisallowConcurrentExecution {
					if _, inBatch := batchJobs[job.JobKey().String()]; inBatch {
						if err := s.updateTriggerState(ctx, tx, key,
							quartz.StateWaiting); err != nil {
							return err
						}
						continue
					}
					batchJobs[job.JobKey().String()] = struct{}{}
				}
				trigger.SetFireInstanceID(uuid.NewString())
				if err := s.insertFiredTrigger(ctx, tx, trigger, job,
					quartz.StateAcquired); err != nil {
					return err
				}
				acquired = append(acquired, trigger)
			}
			return nil
		})
	return acquired, err
}

func (s *Store) insertFiredTrigger(ctx context.Context, tx *sql.Tx,
	trigger *quartz.Trigger, job *quartz.JobDetail, state quartz.TriggerState) error {
	_, err := tx.ExecContext(ctx, s.sql(sqlInsertFiredTrigger),
		trigger.FireInstanceID(), trigger.Key().Name(), trigger.Key().Group(),
		s.instanceID, time.Now().UnixMilli(), trigger.NextFireTime().UnixMilli(),
		trigger.Priority(), string(state),
		job.JobKey().Name(), job.JobKey().Group(),
		job.Options().DisallowConcurrentExecution, job.Options().RequestsRecovery)
	return err
}

// ReleaseAcquiredTrigger returns a previously acquired trigger to the
// waiting state without firing it.
func (s *Store) ReleaseAcquiredTrigger(trigger *quartz.Trigger) {
	err := s.executeInLock(s.ctx, LockTriggerAccess,
		func(ctx context.Context, tx *sql.Tx) error {
			if _, err := s.updateTriggerStateFromOtherState(ctx, tx, trigger.Key(),
				quartz.StateWaiting, quartz.StateAcquired); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, s.sql(sqlDeleteFiredTrigger),
				trigger.FireInstanceID())
			return err
		})
	if err != nil {
		s.logger.Errorf("Failed to release acquired trigger %s: %s",
			trigger.Key(), err)
		if s.signaler != nil {
			s.signaler.NotifySchedulerListenersError(
				fmt.Sprintf("failed to release acquired trigger %s", trigger.Key()), err)
		}
	}
}

// TriggersFired marks the fired-trigger records of the acquired triggers
// as executing, advances each trigger past its fire (back to waiting, or
// to blocked or complete) and returns the fire bundles.
func (s *Store) TriggersFired(triggers []*quartz.Trigger) ([]*quartz.TriggerFiredResult, error) {
	results := make([]*quartz.TriggerFiredResult, 0, len(triggers))
	err := s.executeInLock(s.ctx, LockTriggerAccess,
		func(ctx context.Context, tx *sql.Tx) error {
			for _, trigger := range triggers {
				bundle, err := s.triggerFired(ctx, tx, trigger)
				if err != nil {
					results = append(results, &quartz.TriggerFiredResult{Err: err})
					continue
				}
				results = append(results, &quartz.TriggerFiredResult{Bundle: bundle})
			}
			return nil
		})
	return results, err
}

func (s *Store) triggerFired(ctx context.Context, tx *sql.Tx,
	acquired *quartz.Trigger) (*quartz.TriggerFiredBundle, error) {
	state, err := s.selectTriggerState(ctx, tx, acquired.Key())
	if err != nil {
		if errors.Is(err, quartz.ErrTriggerNotFound) {
			return nil, nil // deleted between acquire and fire
		}
		return nil, err
	}
	if state != quartz.StateAcquired {
		return nil, nil // released or paused between acquire and fire
	}
	trigger, err := s.selectTrigger(ctx, tx, acquired.Key())
	if err != nil {
		return nil, err
	}
	job, err := s.selectJobDetail(ctx, tx, trigger.JobKey())
	if err != nil {
		return nil, err
	}
	var cal calendar.Calendar
	if trigger.CalendarName() != "" {
		cal, err = s.selectCalendar(ctx, tx, trigger.CalendarName())
		if err != nil {
			return nil, err
		}
	}
	trigger.SetFireInstanceID(acquired.FireInstanceID())

	fireTime := time.Now()
	scheduledFireTime := trigger.NextFireTime()
	prevFireTime := trigger.PreviousFireTime()
	trigger.Triggered(cal)

	// mark the claim as executing
	_, err = tx.ExecContext(ctx, s.sql(sqlUpdateFiredTrigger),
		s.instanceID, fireTime.UnixMilli(), scheduledFireTime.UnixMilli(),
		string(quartz.StateExecuting), job.JobKey().Name(), job.JobKey().Group(),
		job.Options().DisallowConcurrentExecution, job.Options().RequestsRecovery,
		trigger.FireInstanceID())
	if err != nil {
		return nil, err
	}

	blocked := job.Options().DisallowConcurrentExecution
	if blocked {
		// a per-job critical section: park every other trigger of the job
		_, err = tx.ExecContext(ctx, s.sql(sqlUpdateJobTriggerStatesFromOtherStates),
			string(quartz.StateBlocked), job.JobKey().Name(), job.JobKey().Group(),
			string(quartz.StateWaiting), string(quartz.StateAcquired))
		if err != nil {
			return nil, err
		}
		_, err = tx.ExecContext(ctx, s.sql(sqlUpdateJobTriggerStatesFromOtherStates),
			string(quartz.StatePausedBlocked), job.JobKey().Name(), job.JobKey().Group(),
			string(quartz.StatePaused), string(quartz.StatePaused))
		if err != nil {
			return nil, err
		}
	}

	newState := quartz.StateWaiting
	switch {
	case trigger.NextFireTime().IsZero():
		newState = quartz.StateComplete
		if s.signaler != nil {
			s.signaler.NotifySchedulerListenersFinalized(trigger)
		}
	case blocked:
		newState = quartz.StateBlocked
	}
	if err := s.updateTrigger(ctx, tx, trigger, newState); err != nil {
		return nil, err
	}

	return &quartz.TriggerFiredBundle{
		Trigger:           trigger,
		JobDetail:         job,
		Calendar:          cal,
		FireTime:          fireTime,
		ScheduledFireTime: scheduledFireTime,
		PrevFireTime:      prevFireTime,
		NextFireTime:      trigger.NextFireTime(),
		JobIsBlocked:      blocked,
	}, nil
}

// TriggeredJobComplete finalizes the trigger after its job executed.
func (s *Store) TriggeredJobComplete(trigger *quartz.Trigger, job *quartz.JobDetail,
	instruction quartz.CompletedExecutionInstruction) {
	err := s.executeInLock(s.ctx, LockTriggerAccess,
		func(ctx context.Context, tx *sql.Tx) error {
			return s.triggeredJobComplete(ctx, tx, trigger, job, instruction)
		})
	if err != nil {
		s.logger.Errorf("Failed to complete triggered job %s: %s", trigger.Key(), err)
		if s.signaler != nil {
			s.signaler.NotifySchedulerListenersError(
				fmt.Sprintf("failed to complete triggered job %s", trigger.Key()), err)
		}
	}
}

func (s *Store) triggeredJobComplete(ctx context.Context, tx *sql.Tx,
	trigger *quartz.Trigger, job *quartz.JobDetail,
	instruction quartz.CompletedExecutionInstruction) error {
	// the claim is consumed regardless of the instruction
	if _, err := tx.ExecContext(ctx, s.sql(sqlDeleteFiredTrigger),
		trigger.FireInstanceID()); err != nil {
		return err
	}

	switch instruction {
	case quartz.InstructionDeleteTrigger:
		stored, err := s.selectTrigger(ctx, tx, trigger.Key())
		if err == nil && stored.NextFireTime().IsZero() {
			// only delete when the trigger was not rescheduled meanwhile
			if _, err := s.removeTrigger(ctx, tx, trigger.Key(), true); err != nil {
				return err
			}
		} else if err != nil && !errors.Is(err, quartz.ErrTriggerNotFound) {
			return err
		}
	case quartz.InstructionSetTriggerComplete:
		if err := s.updateTriggerState(ctx, tx, trigger.Key(),
			quartz.StateComplete); err != nil {
			return err
		}
	case quartz.InstructionSetTriggerError:
		s.logger.Warnf("Trigger %s set to ERROR state.", trigger.Key())
		if err := s.updateTriggerState(ctx, tx, trigger.Key(),
			quartz.StateError); err != nil {
			return err
		}
	case quartz.InstructionSetAllJobTriggersComplete:
		if err := s.updateStatesOfJobTriggers(ctx, tx, trigger.JobKey(),
			quartz.StateComplete); err != nil {
			return err
		}
	case quartz.InstructionSetAllJobTriggersError:
		s.logger.Warnf("All triggers of job %s set to ERROR state.", trigger.JobKey())
		if err := s.updateStatesOfJobTriggers(ctx, tx, trigger.JobKey(),
			quartz.StateError); err != nil {
			return err
		}
	}

	if job.Options().PersistJobDataAfterExecution {
		jobData, err := s.serializer.EncodeJobDataMap(job.JobDataMap())
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.sql(sqlUpdateJobData), jobData,
			job.JobKey().Name(), job.JobKey().Group()); err != nil {
			return err
		}
	}
	if job.Options().DisallowConcurrentExecution {
		stillRunning, err := s.jobIsBlocked(ctx, tx, job.JobKey())
		if err != nil {
			return err
		}
		if !stillRunning {
			_, err = tx.ExecContext(ctx, s.sql(sqlUpdateJobTriggerStatesFromOtherStates),
				string(quartz.StateWaiting), job.JobKey().Name(), job.JobKey().Group(),
				string(quartz.StateBlocked), string(quartz.StateBlocked))
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, s.sql(sqlUpdateJobTriggerStatesFromOtherStates),
				string(quartz.StatePaused), job.JobKey().Name(), job.JobKey().Group(),
				string(quartz.StatePausedBlocked), string(quartz.StatePausedBlocked))
			if err != nil {
				return err
			}
			if s.signaler != nil {
				s.signaler.SignalSchedulingChange(time.Time{})
			}
		}
	}
	return nil
}

func (s *Store) updateStatesOfJobTriggers(ctx context.Context, tx *sql.Tx,
	key *quartz.JobKey, state quartz.TriggerState) error {
	keys, err := s.selectTriggerKeysForJob(ctx, tx, key)
	if err != nil {
		return err
	}
	for _, triggerKey := range keys {
		if err := s.updateTriggerState(ctx, tx, triggerKey, state); err != nil {
			return err
		}
	}
	return nil
}

// recoverMisfiredJobs applies the misfire policy to waiting triggers
// whose next fire time was missed by more than the misfire threshold.
// At most maxMisfires triggers are handled per sweep; the remainder
// rolls over to the next one.
func (s *Store) recoverMisfiredJobs(ctx context.Context, tx *sql.Tx) error {
	misfireTime := time.Now().Add(-s.misfireThreshold)
	query := s.delegate.LimitQuery(
		rtp(sqlSelectMisfiredTriggersInState, s.tablePrefix, s.schedName), s.maxMisfires)
	rows, err := tx.QueryContext(ctx, s.delegate.Rebind(query),
		misfireTime.UnixMilli(), string(quartz.StateWaiting))
	if err != nil {
		return err
	}
	var keys []*quartz.TriggerKey
	for rows.Next() {
		var name, group string
		if err := rows.Scan(&name, &group); err != nil {
			_ = rows.Close()
			return err
		}
		keys = append(keys, quartz.NewTriggerKeyWithGroup(name, group))
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(keys) == s.maxMisfires {
		s.logger.Infof("Handling %d misfired triggers; more may remain.", len(keys))
	}
	for _, key := range keys {
		trigger, err := s.selectTrigger(ctx, tx, key)
		if err != nil {
			if errors.Is(err, quartz.ErrTriggerNotFound) {
				continue
			}
			return err
		}
		if _, err := s.applyMisfire(ctx, tx, trigger); err != nil {
			return err
		}
		newState := quartz.StateWaiting
		if trigger.NextFireTime().IsZero() {
			newState = quartz.StateComplete
		}
		if err := s.updateTrigger(ctx, tx, trigger, newState); err != nil {
			return err
		}
	}
	return nil
}

// applyMisfire applies the misfire policy to the trigger when its next
// fire time was missed. It reports whether the trigger was misfired.
func (s *Store) applyMisfire(ctx context.Context, tx *sql.Tx,
	trigger *quartz.Trigger) (bool, error) {
	misfireTime := time.Now().Add(-s.misfireThreshold)
	next := trigger.NextFireTime()
	if next.IsZero() || next.After(misfireTime) ||
		trigger.MisfireInstruction() == quartz.MisfireIgnorePolicy {
		return false, nil
	}
	var cal calendar.Calendar
	if trigger.CalendarName() != "" {
		var err error
		cal, err = s.selectCalendar(ctx, tx, trigger.CalendarName())
		if err != nil {
			return false, err
		}
	}
	if s.signaler != nil {
		s.signaler.NotifyTriggerListenersMisfired(trigger)
	}
	trigger.UpdateAfterMisfire(cal, time.Now())
	if trigger.NextFireTime().IsZero() && s.signaler != nil {
		s.signaler.NotifySchedulerListenersFinalized(trigger)
	}
	return true, nil
}

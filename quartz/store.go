package quartz

import (
	"time"

	"github.com/goquartz/quartz/calendar"
)

// SchedulerSignaler is the callback interface job stores use to notify
// the owning scheduler of relevant state changes.
type SchedulerSignaler interface {
	// SignalSchedulingChange tells the scheduling loop that a trigger due
	// earlier than the current sleep horizon may now exist.
	SignalSchedulingChange(candidateNewTime time.Time)

	// NotifyTriggerListenersMisfired reports a misfired trigger.
	NotifyTriggerListenersMisfired(trigger *Trigger)

	// NotifySchedulerListenersError reports a store error.
	NotifySchedulerListenersError(msg string, err error)

	// NotifySchedulerListenersFinalized reports a trigger that will never
	// fire again.
	NotifySchedulerListenersFinalized(trigger *Trigger)
}

// TriggerFiredResult is the outcome of firing one acquired trigger.
// At most one of Bundle and Err is set; both are nil when the trigger
// vanished or was paused between acquire and fire.
type TriggerFiredResult struct {
	Bundle *TriggerFiredBundle
	Err    error
}

// TriggerFiredBundle carries everything a worker needs to execute the
// job of a fired trigger.
type TriggerFiredBundle struct {
	Trigger           *Trigger
	JobDetail         *JobDetail
	Calendar          calendar.Calendar
	Recovering        bool
	FireTime          time.Time
	ScheduledFireTime time.Time
	PrevFireTime      time.Time
	NextFireTime      time.Time
	JobIsBlocked      bool
}

// JobStore is the contract of trigger and job persistence backends.
// Implementations must transition trigger states atomically with respect
// to concurrent scheduler instances sharing the store.
type JobStore interface {
	// Initialize is called by the scheduler before the store is used.
	Initialize(registry *JobRegistry, signaler SchedulerSignaler) error

	// SchedulerStarted is called when the scheduler has started, giving
	// clustered stores the chance to recover in-flight state.
	SchedulerStarted() error

	// SchedulerPaused is called when the scheduler is put in standby.
	SchedulerPaused()

	// SchedulerResumed is called when the scheduler leaves standby.
	SchedulerResumed()

	// Shutdown releases all resources held by the store.
	Shutdown()

	// StoreJob persists the given job. With replace unset, storing a job
	// under an existing key fails with ErrObjectAlreadyExists.
	StoreJob(job *JobDetail, replace bool) error

	// StoreJobAndTrigger persists the job and its trigger atomically.
	StoreJobAndTrigger(job *JobDetail, trigger *Trigger) error

	// RemoveJob deletes the job and all of its triggers. It reports
	// whether a job was found.
	RemoveJob(key *JobKey) (bool, error)

	// RetrieveJob loads the job with the given key.
	RetrieveJob(key *JobKey) (*JobDetail, error)

	// StoreTrigger persists the given trigger. Storing a trigger whose
	// job does not exist fails. A trigger stored into a paused group is
	// created in the paused state.
	StoreTrigger(trigger *Trigger, replace bool) error

	// RemoveTrigger deletes the trigger. If its job is non-durable and
	// not referenced by any other trigger, the job is deleted as well.
	RemoveTrigger(key *TriggerKey) (bool, error)

	// ReplaceTrigger atomically replaces the trigger with a new one for
	// the same job.
	ReplaceTrigger(key *TriggerKey, newTrigger *Trigger) (bool, error)

	// RetrieveTrigger loads the trigger with the given key.
	RetrieveTrigger(key *TriggerKey) (*Trigger, error)

	// CheckJobExists reports whether a job with the given key exists.
	CheckJobExists(key *JobKey) (bool, error)

	// CheckTriggerExists reports whether a trigger with the given key
	// exists.
	CheckTriggerExists(key *TriggerKey) (bool, error)

	// ClearAllSchedulingData removes all jobs, triggers and calendars.
	ClearAllSchedulingData() error

	// StoreCalendar persists the named calendar. With updateTriggers set,
	// the next fire time of every trigger referencing it is recomputed.
	StoreCalendar(name string, cal calendar.Calendar, replace, updateTriggers bool) error

	// RemoveCalendar deletes the named calendar. Removing a calendar
	// referenced by a trigger fails.
	RemoveCalendar(name string) (bool, error)

	// RetrieveCalendar loads the named calendar.
	RetrieveCalendar(name string) (calendar.Calendar, error)

	// GetJobKeys returns the keys of jobs accepted by the matcher.
	GetJobKeys(m Matcher[*JobKey]) ([]*JobKey, error)

	// GetTriggerKeys returns the keys of triggers accepted by the matcher.
	GetTriggerKeys(m Matcher[*TriggerKey]) ([]*TriggerKey, error)

	// GetTriggersForJob returns all triggers of the given job.
	GetTriggersForJob(key *JobKey) ([]*Trigger, error)

	// GetTriggerState returns the current state of the trigger.
	GetTriggerState(key *TriggerKey) (TriggerState, error)

	// PauseTrigger pauses the trigger with the given key.
	PauseTrigger(key *TriggerKey) error

	// PauseTriggers pauses all triggers accepted by the matcher and
	// returns the names of the affected groups. Pausing a group is
	// sticky: triggers later stored into it are created paused.
	PauseTriggers(m Matcher[*TriggerKey]) ([]string, error)

	// PauseJob pauses all triggers of the job with the given key.
	PauseJob(key *JobKey) error

	// PauseJobs pauses all triggers of all jobs accepted by the matcher
	// and returns the names of the affected groups.
	PauseJobs(m Matcher[*JobKey]) ([]string, error)

	// ResumeTrigger resumes the trigger with the given key, applying the
	// misfire policy if fire times were missed while paused.
	ResumeTrigger(key *TriggerKey) error

	// ResumeTriggers resumes all triggers accepted by the matcher and
	// returns the names of the affected groups.
	ResumeTriggers(m Matcher[*TriggerKey]) ([]string, error)

	// ResumeJob resumes all triggers of the job with the given key.
	ResumeJob(key *JobKey) error

	// ResumeJobs resumes all triggers of all jobs accepted by the matcher
	// and returns the names of the affected groups.
	ResumeJobs(m Matcher[*JobKey]) ([]string, error)

	// PauseAll pauses all triggers and marks every group paused.
	PauseAll() error

	// ResumeAll resumes all triggers and clears all sticky paused groups.
	ResumeAll() error

	// GetPausedTriggerGroups returns the names of the sticky paused
	// trigger groups.
	GetPausedTriggerGroups() ([]string, error)

	// AcquireNextTriggers claims up to maxCount triggers due no later
	// than noLaterThan plus timeWindow, ordered by
	// (nextFireTime asc, priority desc, key asc). Claimed triggers
	// transition from waiting to acquired; triggers claimed by a peer
	// are skipped.
	AcquireNextTriggers(noLaterThan time.Time, maxCount int,
		timeWindow time.Duration) ([]*Trigger, error)

	// ReleaseAcquiredTrigger returns a previously acquired trigger to the
	// waiting state without firing it.
	ReleaseAcquiredTrigger(trigger *Trigger)

	// TriggersFired advances the acquired triggers past their fire (back
	// to waiting, or to blocked or complete) and returns the fire
	// bundles. Triggers that vanished or were paused
	// between acquire and fire yield a result with a nil bundle.
	TriggersFired(triggers []*Trigger) ([]*TriggerFiredResult, error)

	// TriggeredJobComplete finalizes the trigger after its job executed,
	// applying the completion instruction.
	TriggeredJobComplete(trigger *Trigger, job *JobDetail,
		instruction CompletedExecutionInstruction)
}

// equalsGroupMatcher is implemented by group matchers that select exactly
// one group by name, allowing stores to record sticky paused groups that
// have no triggers yet.
type equalsGroupMatcher interface {
	EqualsGroup() (string, bool)
}

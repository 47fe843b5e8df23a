package quartz

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/goquartz/quartz/calendar"
	"github.com/goquartz/quartz/logger"
)

// LifecycleState is the state of the scheduler lifecycle state machine
//
//	CREATED -> STARTED <-> STANDBY
//	(any state) -> SHUTTING_DOWN -> SHUTDOWN
//
// A new scheduler is CREATED and enters STARTED on its first Start; it
// does not pass through STANDBY, and Standby fails until it has started.
type LifecycleState int32

// Scheduler lifecycle states.
const (
	LifecycleCreated LifecycleState = iota
	LifecycleStandby
	LifecycleStarted
	LifecycleShuttingDown
	LifecycleShutdown
)

// Scheduler represents a Job orchestrator.
// Schedulers are responsible for executing Jobs when their associated
// Triggers fire (when their scheduled time arrives).
type Scheduler interface {
	// Start starts the scheduling loop, or resumes it from standby. The
	// scheduler runs until Shutdown is called or the context is canceled.
	Start(context.Context) error

	// Standby temporarily halts the scheduling loop. Running jobs are
	// not affected.
	Standby() error

	// IsStarted determines whether the scheduler has been started.
	IsStarted() bool

	// ScheduleJob stores the job and schedules its trigger.
	ScheduleJob(job *JobDetail, trigger *Trigger) error

	// ScheduleTrigger schedules a trigger for an already stored job.
	ScheduleTrigger(trigger *Trigger) error

	// AddJob stores a job without a trigger. The job must be durable.
	AddJob(job *JobDetail) error

	// TriggerJob fires the given job immediately with a one-shot trigger
	// carrying the given data map.
	TriggerJob(key *JobKey, data JobDataMap) error

	// UnscheduleJob removes the trigger with the given key.
	UnscheduleJob(key *TriggerKey) (bool, error)

	// RescheduleJob replaces the trigger with the given key with a new
	// trigger for the same job.
	RescheduleJob(key *TriggerKey, newTrigger *Trigger) (bool, error)

	// DeleteJob removes the job and all of its triggers.
	DeleteJob(key *JobKey) (bool, error)

	// GetJobDetail loads the job with the given key.
	GetJobDetail(key *JobKey) (*JobDetail, error)

	// GetTrigger loads the trigger with the given key.
	GetTrigger(key *TriggerKey) (*Trigger, error)

	// GetTriggerState returns the current state of the trigger.
	GetTriggerState(key *TriggerKey) (TriggerState, error)

	// GetJobKeys returns the keys of all jobs accepted by the matcher.
	GetJobKeys(m Matcher[*JobKey]) ([]*JobKey, error)

	// GetTriggerKeys returns the keys of all triggers accepted by the
	// matcher.
	GetTriggerKeys(m Matcher[*TriggerKey]) ([]*TriggerKey, error)

	// GetTriggersOfJob returns all triggers of the given job.
	GetTriggersOfJob(key *JobKey) ([]*Trigger, error)

	// PauseTrigger pauses the trigger with the given key.
	PauseTrigger(key *TriggerKey) error

	// PauseTriggers pauses all triggers accepted by the matcher. Pausing
	// a group is sticky.
	PauseTriggers(m Matcher[*TriggerKey]) error

	// ResumeTrigger resumes the trigger with the given key.
	ResumeTrigger(key *TriggerKey) error

	// ResumeTriggers resumes all triggers accepted by the matcher.
	ResumeTriggers(m Matcher[*TriggerKey]) error

	// PauseJob pauses all triggers of the job with the given key.
	PauseJob(key *JobKey) error

	// PauseJobs pauses all triggers of all jobs accepted by the matcher.
	PauseJobs(m Matcher[*JobKey]) error

	// ResumeJob resumes all triggers of the job with the given key.
	ResumeJob(key *JobKey) error

	// ResumeJobs resumes all triggers of all jobs accepted by the
	// matcher.
	ResumeJobs(m Matcher[*JobKey]) error

	// PauseAll pauses every trigger.
	PauseAll() error

	// ResumeAll resumes every trigger and clears all sticky paused
	// groups.
	ResumeAll() error

	// AddCalendar stores the named exclusion calendar.
	AddCalendar(name string, cal calendar.Calendar, replace, updateTriggers bool) error

	// GetCalendar loads the named exclusion calendar.
	GetCalendar(name string) (calendar.Calendar, error)

	// DeleteCalendar removes the named exclusion calendar.
	DeleteCalendar(name string) (bool, error)

	// Clear removes all jobs, triggers and calendars.
	Clear() error

	// Interrupt requests the interruption of all running executions of
	// the given job. It is best-effort: only jobs implementing
	// InterruptableJob are signaled.
	Interrupt(key *JobKey) error

	// ListenerManager returns the listener registries of the scheduler.
	ListenerManager() *ListenerManager

	// JobRegistry returns the job type registry of the scheduler.
	JobRegistry() *JobRegistry

	// Shutdown stops the scheduler. With wait set it blocks until all
	// in-flight jobs have completed.
	Shutdown(waitForJobsToComplete bool)
}

// StdSchedulerOptions represents the StdScheduler configuration.
type StdSchedulerOptions struct {
	// Name is the logical scheduler name, shared by all cluster peers.
	// Default: "QuartzScheduler".
	Name string

	// InstanceID identifies this scheduler instance within the cluster.
	// Default: "NON_CLUSTERED".
	InstanceID string

	// WorkerCount is the size of the worker pool.
	// Default: 10.
	WorkerCount int

	// IdleWaitTime is how far ahead the loop looks for due triggers and
	// the longest it sleeps when none are due.
	// Default: 30 seconds.
	IdleWaitTime time.Duration

	// BatchMaxSize is the maximum number of triggers acquired in one
	// round.
	// Default: 1.
	BatchMaxSize int

	// BatchTimeWindow widens the acquire window to allow batching
	// triggers due close to each other.
	// Default: 0.
	BatchTimeWindow time.Duration

	// DBRetryInterval is the back-off applied after a store failure.
	// Default: 15 seconds.
	DBRetryInterval time.Duration

	// Logger is the scheduler logger.
	// Default: logger.Default().
	Logger logger.Logger
}

// StdScheduler implements the quartz.Scheduler interface.
type StdScheduler struct {
	mtx       sync.Mutex
	wg        sync.WaitGroup
	store     JobStore
	registry  *JobRegistry
	listeners *ListenerManager
	pool      *workerPool
	signal    chan time.Time
	cancel    context.CancelFunc
	state     atomic.Int32
	logger    logger.Logger
	opts      StdSchedulerOptions

	runningMtx  sync.Mutex
	runningJobs map[string][]Job
}

// Verify StdScheduler satisfies the Scheduler interface.
var _ Scheduler = (*StdScheduler)(nil)

// NewStdScheduler returns a new StdScheduler with the default
// configuration, using an in-memory job store.
func NewStdScheduler() (*StdScheduler, error) {
	return NewStdSchedulerWithOptions(StdSchedulerOptions{}, nil, nil)
}

// NewStdSchedulerWithOptions returns a new StdScheduler configured as
// specified.
// A custom JobStore implementation may be provided to manage scheduled
// jobs, e.g. the clustered SQL store; pass nil to use the internal
// in-memory implementation. A shared JobRegistry may be provided when
// job types are registered externally; pass nil to create an empty one.
func NewStdSchedulerWithOptions(
	opts StdSchedulerOptions,
	store JobStore,
	registry *JobRegistry,
) (*StdScheduler, error) {
	if opts.Name == "" {
		opts.Name = "QuartzScheduler"
	}
	if opts.InstanceID == "" {
		opts.InstanceID = "NON_CLUSTERED"
	}
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = 10
	}
	if opts.IdleWaitTime <= 0 {
		opts.IdleWaitTime = 30 * time.Second
	}
	if opts.BatchMaxSize <= 0 {
		opts.BatchMaxSize = 1
	}
	if opts.DBRetryInterval <= 0 {
		opts.DBRetryInterval = 15 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	if store == nil {
		store = NewMemoryStore()
	}
	if registry == nil {
		registry = NewJobRegistry()
	}
	sched := &StdScheduler{
		store:       store,
		registry:    registry,
		listeners:   NewListenerManager(),
		pool:        newWorkerPool(opts.WorkerCount),
		signal:      make(chan time.Time, 1),
		logger:      opts.Logger,
		opts:        opts,
		runningJobs: make(map[string][]Job),
	}
	if err := store.Initialize(registry, &stdSchedulerSignaler{sched}); err != nil {
		return nil, err
	}
	return sched, nil
}

// Name returns the logical scheduler name.
func (sched *StdScheduler) Name() string { return sched.opts.Name }

// InstanceID returns the cluster instance identifier.
func (sched *StdScheduler) InstanceID() string { return sched.opts.InstanceID }

// ListenerManager returns the listener registries of the scheduler.
func (sched *StdScheduler) ListenerManager() *ListenerManager {
	return sched.listeners
}

// JobRegistry returns the job type registry of the scheduler.
func (sched *StdScheduler) JobRegistry() *JobRegistry { return sched.registry }

// Start starts or resumes the scheduler execution loop.
func (sched *StdScheduler) Start(ctx context.Context) error {
	sched.mtx.Lock()
	defer sched.mtx.Unlock()

	switch LifecycleState(sched.state.Load()) {
	case LifecycleStarted:
		sched.logger.Info("Scheduler is already running.")
		return nil
	case LifecycleShuttingDown, LifecycleShutdown:
		return illegalStateError("the scheduler has been shut down")
	case LifecycleStandby:
		sched.state.Store(int32(LifecycleStarted))
		sched.store.SchedulerResumed()
		sched.reset()
		sched.listeners.notifySchedulerListeners(SchedulerListener.SchedulerStarted)
		return nil
	}

	ctx, sched.cancel = context.WithCancel(ctx)
	go func() { <-ctx.Done(); sched.Shutdown(false) }()

	sched.state.Store(int32(LifecycleStarted))
	if err := sched.store.SchedulerStarted(); err != nil {
		sched.state.Store(int32(LifecycleCreated))
		return err
	}
	sched.pool.start()
	sched.wg.Add(1)
	go sched.startExecutionLoop(ctx)

	sched.listeners.notifySchedulerListeners(SchedulerListener.SchedulerStarted)
	return nil
}

// Standby temporarily halts the scheduling loop.
func (sched *StdScheduler) Standby() error {
	sched.mtx.Lock()
	defer sched.mtx.Unlock()
	if LifecycleState(sched.state.Load()) != LifecycleStarted {
		return illegalStateError("the scheduler is not running")
	}
	sched.state.Store(int32(LifecycleStandby))
	sched.store.SchedulerPaused()
	sched.reset()
	sched.listeners.notifySchedulerListeners(SchedulerListener.SchedulerInStandbyMode)
	return nil
}

// IsStarted determines whether the scheduler has been started.
func (sched *StdScheduler) IsStarted() bool {
	return LifecycleState(sched.state.Load()) == LifecycleStarted
}

// ScheduleJob stores the job and schedules its trigger.
func (sched *StdScheduler) ScheduleJob(job *JobDetail, trigger *Trigger) error {
	if err := sched.computeFirstFireTime(trigger); err != nil {
		return err
	}
	if err := sched.store.StoreJobAndTrigger(job, trigger); err != nil {
		return err
	}
	sched.signalSchedulingChange(trigger.NextFireTime())
	sched.listeners.notifySchedulerListeners(func(l SchedulerListener) {
		l.JobAdded(job)
		l.JobScheduled(trigger)
	})
	return nil
}

// ScheduleTrigger schedules a trigger for an already stored job.
func (sched *StdScheduler) ScheduleTrigger(trigger *Trigger) error {
	if err := sched.computeFirstFireTime(trigger); err != nil {
		return err
	}
	if err := sched.store.StoreTrigger(trigger, false); err != nil {
		return err
	}
	sched.signalSchedulingChange(trigger.NextFireTime())
	sched.listeners.notifySchedulerListeners(func(l SchedulerListener) {
		l.JobScheduled(trigger)
	})
	return nil
}

func (sched *StdScheduler) computeFirstFireTime(trigger *Trigger) error {
	if err := trigger.Validate(); err != nil {
		return err
	}
	var cal calendar.Calendar
	if trigger.CalendarName() != "" {
		var err error
		cal, err = sched.store.RetrieveCalendar(trigger.CalendarName())
		if err != nil {
			return err
		}
	}
	if first := trigger.ComputeFirstFireTime(cal); first.IsZero() {
		return illegalArgumentError(fmt.Sprintf(
			"trigger %s will never fire", trigger.Key()))
	}
	return nil
}

// AddJob stores a job without a trigger. The job must be durable.
func (sched *StdScheduler) AddJob(job *JobDetail) error {
	if job == nil {
		return illegalArgumentError("job is nil")
	}
	if !job.Options().Durable {
		return illegalArgumentError(
			"a job stored without a trigger must be durable")
	}
	if err := sched.store.StoreJob(job, job.Options().Replace); err != nil {
		return err
	}
	sched.listeners.notifySchedulerListeners(func(l SchedulerListener) {
		l.JobAdded(job)
	})
	return nil
}

// ManualTriggerGroup is the group of one-shot triggers created by
// TriggerJob.
const ManualTriggerGroup = "MANUAL"

// TriggerJob fires the given job immediately.
func (sched *StdScheduler) TriggerJob(key *JobKey, data JobDataMap) error {
	if _, err := sched.store.RetrieveJob(key); err != nil {
		return err
	}
	trigger := NewTrigger(
		NewTriggerKeyWithGroup(uuid.NewString(), ManualTriggerGroup),
		key,
		NewRunOnceSchedule(),
	)
	if data != nil {
		trigger.WithJobDataMap(data)
	}
	return sched.ScheduleTrigger(trigger)
}

// UnscheduleJob removes the trigger with the given key.
func (sched *StdScheduler) UnscheduleJob(key *TriggerKey) (bool, error) {
	removed, err := sched.store.RemoveTrigger(key)
	if removed {
		sched.listeners.notifySchedulerListeners(func(l SchedulerListener) {
			l.JobUnscheduled(key)
		})
	}
	return removed, err
}

// RescheduleJob replaces the trigger with the given key.
func (sched *StdScheduler) RescheduleJob(key *TriggerKey, newTrigger *Trigger) (bool, error) {
	if err := sched.computeFirstFireTime(newTrigger); err != nil {
		return false, err
	}
	replaced, err := sched.store.ReplaceTrigger(key, newTrigger)
	if err != nil || !replaced {
		return replaced, err
	}
	sched.signalSchedulingChange(newTrigger.NextFireTime())
	sched.listeners.notifySchedulerListeners(func(l SchedulerListener) {
		l.JobUnscheduled(key)
		l.JobScheduled(newTrigger)
	})
	return true, nil
}

// DeleteJob removes the job and all of its triggers.
func (sched *StdScheduler) DeleteJob(key *JobKey) (bool, error) {
	removed, err := sched.store.RemoveJob(key)
	if removed {
		sched.listeners.notifySchedulerListeners(func(l SchedulerListener) {
			l.JobDeleted(key)
		})
	}
	return removed, err
}

// GetJobDetail loads the job with the given key.
func (sched *StdScheduler) GetJobDetail(key *JobKey) (*JobDetail, error) {
	return sched.store.RetrieveJob(key)
}

// GetTrigger loads the trigger with the given key.
func (sched *StdScheduler) GetTrigger(key *TriggerKey) (*Trigger, error) {
	return sched.store.RetrieveTrigger(key)
}

// GetTriggerState returns the current state of the trigger.
func (sched *StdScheduler) GetTriggerState(key *TriggerKey) (TriggerState, error) {
	return sched.store.GetTriggerState(key)
}

// GetJobKeys returns the keys of all jobs accepted by the matcher.
func (sched *StdScheduler) GetJobKeys(m Matcher[*JobKey]) ([]*JobKey, error) {
	return sched.store.GetJobKeys(m)
}

// GetTriggerKeys returns the keys of all triggers accepted by the
// matcher.
func (sched *StdScheduler) GetTriggerKeys(m Matcher[*TriggerKey]) ([]*TriggerKey, error) {
	return sched.store.GetTriggerKeys(m)
}

// GetTriggersOfJob returns all triggers of the given job.
func (sched *StdScheduler) GetTriggersOfJob(key *JobKey) ([]*Trigger, error) {
	return sched.store.GetTriggersForJob(key)
}

// PauseTrigger pauses the trigger with the given key.
func (sched *StdScheduler) PauseTrigger(key *TriggerKey) error {
	if err := sched.store.PauseTrigger(key); err != nil {
		return err
	}
	sched.listeners.notifySchedulerListeners(func(l SchedulerListener) {
		l.TriggerPaused(key, key.Group())
	})
	return nil
}

// PauseTriggers pauses all triggers accepted by the matcher.
func (sched *StdScheduler) PauseTriggers(m Matcher[*TriggerKey]) error {
	groups, err := sched.store.PauseTriggers(m)
	if err != nil {
		return err
	}
	sched.listeners.notifySchedulerListeners(func(l SchedulerListener) {
		for _, group := range groups {
			l.TriggerPaused(nil, group)
		}
	})
	return nil
}

// ResumeTrigger resumes the trigger with the given key.
func (sched *StdScheduler) ResumeTrigger(key *TriggerKey) error {
	if err := sched.store.ResumeTrigger(key); err != nil {
		return err
	}
	sched.listeners.notifySchedulerListeners(func(l SchedulerListener) {
		l.TriggerResumed(key, key.Group())
	})
	return nil
}

// ResumeTriggers resumes all triggers accepted by the matcher.
func (sched *StdScheduler) ResumeTriggers(m Matcher[*TriggerKey]) error {
	groups, err := sched.store.ResumeTriggers(m)
	if err != nil {
		return err
	}
	sched.listeners.notifySchedulerListeners(func(l SchedulerListener) {
		for _, group := range groups {
			l.TriggerResumed(nil, group)
		}
	})
	return nil
}

// PauseJob pauses all triggers of the job with the given key.
func (sched *StdScheduler) PauseJob(key *JobKey) error {
	return sched.store.PauseJob(key)
}

// PauseJobs pauses all triggers of all jobs accepted by the matcher.
func (sched *StdScheduler) PauseJobs(m Matcher[*JobKey]) error {
	_, err := sched.store.PauseJobs(m)
	return err
}

// ResumeJob resumes all triggers of the job with the given key.
func (sched *StdScheduler) ResumeJob(key *JobKey) error {
	return sched.store.ResumeJob(key)
}

// ResumeJobs resumes all triggers of all jobs accepted by the matcher.
func (sched *StdScheduler) ResumeJobs(m Matcher[*JobKey]) error {
	_, err := sched.store.ResumeJobs(m)
	return err
}

// PauseAll pauses every trigger.
func (sched *StdScheduler) PauseAll() error {
	return sched.store.PauseAll()
}

// ResumeAll resumes every trigger.
func (sched *StdScheduler) ResumeAll() error {
	err := sched.store.ResumeAll()
	sched.signalSchedulingChange(time.Time{})
	return err
}

// AddCalendar stores the named exclusion calendar.
func (sched *StdScheduler) AddCalendar(name string, cal calendar.Calendar,
	replace, updateTriggers bool) error {
	return sched.store.StoreCalendar(name, cal, replace, updateTriggers)
}

// GetCalendar loads the named exclusion calendar.
func (sched *StdScheduler) GetCalendar(name string) (calendar.Calendar, error) {
	return sched.store.RetrieveCalendar(name)
}

// DeleteCalendar removes the named exclusion calendar.
func (sched *StdScheduler) DeleteCalendar(name string) (bool, error) {
	return sched.store.RemoveCalendar(name)
}

// Clear removes all jobs, triggers and calendars.
func (sched *StdScheduler) Clear() error {
	err := sched.store.ClearAllSchedulingData()
	if err == nil {
		sched.listeners.notifySchedulerListeners(SchedulerListener.SchedulingDataCleared)
	}
	return err
}

// Interrupt requests the interruption of all running executions of the
// given job. Only jobs implementing InterruptableJob are signaled.
func (sched *StdScheduler) Interrupt(key *JobKey) error {
	sched.runningMtx.Lock()
	running := make([]Job, len(sched.runningJobs[key.String()]))
	copy(running, sched.runningJobs[key.String()])
	sched.runningMtx.Unlock()

	interrupted := false
	for _, job := range running {
		if interruptable, ok := job.(InterruptableJob); ok {
			interruptable.Interrupt(key)
			interrupted = true
		}
	}
	if !interrupted && len(running) > 0 {
		return illegalStateError(fmt.Sprintf(
			"job %s does not support interruption", key))
	}
	return nil
}

// Shutdown stops the scheduler. With wait set it blocks until all
// in-flight jobs have completed.
func (sched *StdScheduler) Shutdown(waitForJobsToComplete bool) {
	sched.mtx.Lock()
	state := LifecycleState(sched.state.Load())
	if state == LifecycleShuttingDown || state == LifecycleShutdown {
		sched.mtx.Unlock()
		return
	}
	sched.logger.Infof("Shutting down scheduler %s.", sched.opts.Name)
	sched.state.Store(int32(LifecycleShuttingDown))
	if sched.cancel != nil {
		sched.cancel()
	}
	sched.reset()
	sched.mtx.Unlock()

	sched.wg.Wait() // the scheduling loop has exited
	sched.pool.shutdown(waitForJobsToComplete)
	sched.store.Shutdown()
	sched.state.Store(int32(LifecycleShutdown))
	sched.listeners.notifySchedulerListeners(SchedulerListener.SchedulerShutdown)
}

func (sched *StdScheduler) startExecutionLoop(ctx context.Context) {
	defer sched.wg.Done()
	for {
		state := LifecycleState(sched.state.Load())
		switch state {
		case LifecycleShuttingDown, LifecycleShutdown:
			sched.logger.Info("Exit the execution loop.")
			return
		case LifecycleStandby:
			select {
			case <-sched.signal:
			case <-ctx.Done():
				return
			}
			continue
		}

		if !sched.pool.blockForAvailableWorker(ctx) {
			return
		}

		now := time.Now()
		noLaterThan := now.Add(sched.opts.IdleWaitTime)
		triggers, err := sched.store.AcquireNextTriggers(noLaterThan,
			sched.opts.BatchMaxSize, sched.opts.BatchTimeWindow)
		if err != nil {
			sched.listeners.notifySchedulerError(
				"failed to acquire next triggers", err)
			if !sched.sleep(ctx, sched.opts.DBRetryInterval) {
				return
			}
			continue
		}
		if len(triggers) == 0 {
			// nothing due within the look-ahead window; sleep until a
			// scheduling change is signaled or the idle wait elapses
			sched.sleep(ctx, sched.opts.IdleWaitTime)
			continue
		}
		if !sched.waitForFireTime(ctx, triggers) {
			continue
		}
		sched.fireTriggers(ctx, triggers)
	}
}

// waitForFireTime sleeps until the first of the acquired triggers is
// due. It returns false when the acquisition was abandoned: an earlier
// trigger appeared, or the scheduler is stopping.
func (sched *StdScheduler) waitForFireTime(ctx context.Context, triggers []*Trigger) bool {
	fireTime := triggers[0].NextFireTime()
	for {
		wait := time.Until(fireTime)
		if wait <= 0 {
			return true
		}
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
			return true
		case candidate := <-sched.signal:
			timer.Stop()
			if LifecycleState(sched.state.Load()) != LifecycleStarted {
				sched.releaseTriggers(triggers)
				return false
			}
			// release the batch if a newly scheduled trigger is due
			// earlier than what was acquired
			if !candidate.IsZero() && candidate.Before(fireTime) {
				sched.releaseTriggers(triggers)
				return false
			}
		case <-ctx.Done():
			timer.Stop()
			sched.releaseTriggers(triggers)
			return false
		}
	}
}

func (sched *StdScheduler) releaseTriggers(triggers []*Trigger) {
	for _, trigger := range triggers {
		sched.store.ReleaseAcquiredTrigger(trigger)
	}
}

func (sched *StdScheduler) fireTriggers(ctx context.Context, triggers []*Trigger) {
	results, err := sched.store.TriggersFired(triggers)
	if err != nil {
		sched.listeners.notifySchedulerError("failed to fire triggers", err)
		sched.releaseTriggers(triggers)
		return
	}
	for _, result := range results {
		if result.Bundle == nil {
			// the trigger vanished or was paused between acquire and fire
			if result.Err != nil {
				sched.listeners.notifySchedulerError("trigger fire failed", result.Err)
			}
			continue
		}
		bundle := result.Bundle
		if !sched.pool.dispatch(ctx, func() { sched.runJob(ctx, bundle) }) {
			return
		}
	}
}

// runJob drives a single fire bundle through the listener and execution
// pipeline.
func (sched *StdScheduler) runJob(ctx context.Context, bundle *TriggerFiredBundle) {
	jobDetail := bundle.JobDetail
	trigger := bundle.Trigger
	job, err := sched.registry.NewJob(jobDetail.JobType())
	if err != nil {
		sched.listeners.notifySchedulerError(
			fmt.Sprintf("failed to instantiate job %s", jobDetail.JobKey()), err)
		sched.store.TriggeredJobComplete(trigger, jobDetail, InstructionSetAllJobTriggersError)
		return
	}
	jec := &ExecutionContext{
		scheduler:         sched,
		trigger:           trigger,
		jobDetail:         jobDetail,
		jobInstance:       job,
		mergedJobDataMap:  jobDetail.JobDataMap().Merged(trigger.JobDataMap()),
		recovering:        bundle.Recovering,
		fireTime:          bundle.FireTime,
		scheduledFireTime: bundle.ScheduledFireTime,
		prevFireTime:      bundle.PrevFireTime,
		nextFireTime:      bundle.NextFireTime,
		jobRunTime:        -1,
	}

	for {
		if vetoed := sched.listeners.notifyVetoJobExecution(trigger, jec); vetoed {
			sched.listeners.notifyJobExecutionVetoed(jec)
			// a vetoed trigger that will never fire again must still be
			// finalized
			if trigger.NextFireTime().IsZero() {
				sched.listeners.notifySchedulerListeners(func(l SchedulerListener) {
					l.TriggerFinalized(trigger)
				})
			}
			sched.store.TriggeredJobComplete(trigger, jobDetail, InstructionNoop)
			return
		}
		sched.listeners.notifyTriggerFired(trigger, jec)
		sched.listeners.notifyJobToBeExecuted(jec)

		sched.registerRunningJob(jobDetail.JobKey(), job)
		started := time.Now()
		jobErr := executeJob(ctx, job, jec)
		jec.jobRunTime = time.Since(started)
		sched.unregisterRunningJob(jobDetail.JobKey(), job)

		if jobErr != nil {
			sched.logger.Warnf("Job %s failed: %s", jobDetail.JobKey(), jobErr)
		}
		sched.listeners.notifyJobWasExecuted(jec, jobErr)

		instruction := trigger.ExecutionComplete(jobErr)
		sched.listeners.notifyTriggerComplete(trigger, jec, instruction)

		if instruction == InstructionReExecuteJob {
			jec.refireCount++
			continue
		}
		if instruction == InstructionDeleteTrigger ||
			instruction == InstructionSetTriggerComplete {
			sched.listeners.notifySchedulerListeners(func(l SchedulerListener) {
				l.TriggerFinalized(trigger)
			})
		}
		sched.store.TriggeredJobComplete(trigger, jobDetail, instruction)
		return
	}
}

// executeJob invokes the job, converting a panic into an error.
func executeJob(ctx context.Context, job Job, jec *ExecutionContext) (jobErr error) {
	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(error)
			if !ok {
				err = fmt.Errorf("%v", r)
			}
			jobErr = fmt.Errorf("%w: panic: %w", ErrJobExecution, err)
		}
	}()
	return job.Execute(ctx, jec)
}

func (sched *StdScheduler) registerRunningJob(key *JobKey, job Job) {
	sched.runningMtx.Lock()
	defer sched.runningMtx.Unlock()
	sched.runningJobs[key.String()] = append(sched.runningJobs[key.String()], job)
}

func (sched *StdScheduler) unregisterRunningJob(key *JobKey, job Job) {
	sched.runningMtx.Lock()
	defer sched.runningMtx.Unlock()
	running := sched.runningJobs[key.String()]
	for i, j := range running {
		if j == job {
			sched.runningJobs[key.String()] = append(running[:i], running[i+1:]...)
			break
		}
	}
	if len(sched.runningJobs[key.String()]) == 0 {
		delete(sched.runningJobs, key.String())
	}
}

// sleep blocks for the given duration or until a scheduling change is
// signaled. It returns false when the context was canceled.
func (sched *StdScheduler) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-sched.signal:
	case <-ctx.Done():
		return false
	}
	return true
}

// signalSchedulingChange wakes the scheduling loop because a trigger due
// earlier than the current sleep horizon may now exist.
func (sched *StdScheduler) signalSchedulingChange(candidateNewTime time.Time) {
	select {
	case sched.signal <- candidateNewTime:
	default:
	}
}

// reset wakes the scheduling loop unconditionally.
func (sched *StdScheduler) reset() {
	select {
	case sched.signal <- time.Time{}:
	default:
	}
}

// stdSchedulerSignaler adapts the StdScheduler to the SchedulerSignaler
// callback interface consumed by job stores.
type stdSchedulerSignaler struct {
	sched *StdScheduler
}

var _ SchedulerSignaler = (*stdSchedulerSignaler)(nil)

func (s *stdSchedulerSignaler) SignalSchedulingChange(candidateNewTime time.Time) {
	s.sched.signalSchedulingChange(candidateNewTime)
}

func (s *stdSchedulerSignaler) NotifyTriggerListenersMisfired(trigger *Trigger) {
	s.sched.listeners.notifyTriggerMisfired(trigger)
}

func (s *stdSchedulerSignaler) NotifySchedulerListenersError(msg string, err error) {
	s.sched.listeners.notifySchedulerError(msg, err)
}

func (s *stdSchedulerSignaler) NotifySchedulerListenersFinalized(trigger *Trigger) {
	s.sched.listeners.notifySchedulerListeners(func(l SchedulerListener) {
		l.TriggerFinalized(trigger)
	})
}

package quartz

// TriggerListener is notified of trigger firings. Implementations are
// registered with the ListenerManager, optionally scoped by matchers.
type TriggerListener interface {
	// Name returns the name of the listener.
	Name() string

	// TriggerFired is called when the trigger has fired and its job is
	// about to be executed.
	TriggerFired(trigger *Trigger, jec *ExecutionContext)

	// VetoJobExecution is called just after TriggerFired; returning true
	// vetoes the job execution.
	VetoJobExecution(trigger *Trigger, jec *ExecutionContext) bool

	// TriggerMisfired is called when the trigger has misfired.
	TriggerMisfired(trigger *Trigger)

	// TriggerComplete is called when the trigger's job execution has
	// completed.
	TriggerComplete(trigger *Trigger, jec *ExecutionContext,
		instruction CompletedExecutionInstruction)
}

// JobListener is notified of job executions.
type JobListener interface {
	// Name returns the name of the listener.
	Name() string

	// JobToBeExecuted is called just before the job is executed.
	JobToBeExecuted(jec *ExecutionContext)

	// JobExecutionVetoed is called when the execution was vetoed by a
	// trigger listener.
	JobExecutionVetoed(jec *ExecutionContext)

	// JobWasExecuted is called after the job has been executed; jobErr is
	// the error returned by the job, if any.
	JobWasExecuted(jec *ExecutionContext, jobErr error)
}

// SchedulerListener is notified of scheduler lifecycle and data events.
type SchedulerListener interface {
	// JobScheduled is called when a job is scheduled.
	JobScheduled(trigger *Trigger)

	// JobUnscheduled is called when a job is unscheduled.
	JobUnscheduled(key *TriggerKey)

	// TriggerFinalized is called when a trigger has reached the condition
	// in which it will never fire again.
	TriggerFinalized(trigger *Trigger)

	// TriggerPaused is called when a trigger or trigger group is paused.
	// The key is nil when a whole group was paused, in which case group
	// carries its name.
	TriggerPaused(key *TriggerKey, group string)

	// TriggerResumed is called when a trigger or trigger group is resumed.
	TriggerResumed(key *TriggerKey, group string)

	// JobAdded is called when a job is added.
	JobAdded(job *JobDetail)

	// JobDeleted is called when a job is deleted.
	JobDeleted(key *JobKey)

	// SchedulerError is called when a serious error has occurred within
	// the scheduler, e.g. a job store failure or a listener panic.
	SchedulerError(msg string, err error)

	// SchedulerStarted is called when the scheduler has started.
	SchedulerStarted()

	// SchedulerInStandbyMode is called when the scheduler has moved to
	// standby.
	SchedulerInStandbyMode()

	// SchedulerShutdown is called when the scheduler has shut down.
	SchedulerShutdown()

	// SchedulingDataCleared is called when all scheduling data has been
	// cleared.
	SchedulingDataCleared()
}

// TriggerListenerSupport is a no-op TriggerListener base to embed in
// implementations interested in a subset of events.
type TriggerListenerSupport struct{}

func (TriggerListenerSupport) TriggerFired(_ *Trigger, _ *ExecutionContext) {}
func (TriggerListenerSupport) VetoJobExecution(_ *Trigger, _ *ExecutionContext) bool {
	return false
}
func (TriggerListenerSupport) TriggerMisfired(_ *Trigger) {}
func (TriggerListenerSupport) TriggerComplete(_ *Trigger, _ *ExecutionContext,
	_ CompletedExecutionInstruction) {
}

// JobListenerSupport is a no-op JobListener base to embed in
// implementations interested in a subset of events.
type JobListenerSupport struct{}

func (JobListenerSupport) JobToBeExecuted(_ *ExecutionContext)            {}
func (JobListenerSupport) JobExecutionVetoed(_ *ExecutionContext)         {}
func (JobListenerSupport) JobWasExecuted(_ *ExecutionContext, _ error)    {}

// SchedulerListenerSupport is a no-op SchedulerListener base to embed in
// implementations interested in a subset of events.
type SchedulerListenerSupport struct{}

func (SchedulerListenerSupport) JobScheduled(_ *Trigger)                  {}
func (SchedulerListenerSupport) JobUnscheduled(_ *TriggerKey)             {}
func (SchedulerListenerSupport) TriggerFinalized(_ *Trigger)              {}
func (SchedulerListenerSupport) TriggerPaused(_ *TriggerKey, _ string)    {}
func (SchedulerListenerSupport) TriggerResumed(_ *TriggerKey, _ string)   {}
func (SchedulerListenerSupport) JobAdded(_ *JobDetail)                    {}
func (SchedulerListenerSupport) JobDeleted(_ *JobKey)                     {}
func (SchedulerListenerSupport) SchedulerError(_ string, _ error)         {}
func (SchedulerListenerSupport) SchedulerStarted()                        {}
func (SchedulerListenerSupport) SchedulerInStandbyMode()                  {}
func (SchedulerListenerSupport) SchedulerShutdown()                       {}
func (SchedulerListenerSupport) SchedulingDataCleared()                   {}

package quartz

import (
	"fmt"
	"time"
)

// ExecutionContext carries the runtime environment of a single job
// execution: the firing trigger, the job detail and the merged data map.
// It is handed to the job and to trigger and job listeners.
type ExecutionContext struct {
	scheduler         Scheduler
	trigger           *Trigger
	jobDetail         *JobDetail
	jobInstance       Job
	mergedJobDataMap  JobDataMap
	recovering        bool
	refireCount       int
	fireTime          time.Time
	scheduledFireTime time.Time
	prevFireTime      time.Time
	nextFireTime      time.Time
	jobRunTime        time.Duration
	result            any
}

// Scheduler returns the scheduler that fired the job.
func (jec *ExecutionContext) Scheduler() Scheduler { return jec.scheduler }

// Trigger returns the trigger that fired.
func (jec *ExecutionContext) Trigger() *Trigger { return jec.trigger }

// JobDetail returns the detail of the executing job.
func (jec *ExecutionContext) JobDetail() *JobDetail { return jec.jobDetail }

// JobInstance returns the job instance being executed.
func (jec *ExecutionContext) JobInstance() Job { return jec.jobInstance }

// MergedJobDataMap returns the job data map merged from the job detail
// and the trigger; trigger entries override job entries.
func (jec *ExecutionContext) MergedJobDataMap() JobDataMap {
	return jec.mergedJobDataMap
}

// Recovering reports whether the execution is a recovery of a fire
// claimed by a failed scheduler instance.
func (jec *ExecutionContext) Recovering() bool { return jec.recovering }

// RefireCount returns the number of immediate re-fires of this bundle.
func (jec *ExecutionContext) RefireCount() int { return jec.refireCount }

// FireTime returns the actual fire time.
func (jec *ExecutionContext) FireTime() time.Time { return jec.fireTime }

// ScheduledFireTime returns the nominal scheduled fire time.
func (jec *ExecutionContext) ScheduledFireTime() time.Time {
	return jec.scheduledFireTime
}

// PreviousFireTime returns the trigger's previous fire time.
func (jec *ExecutionContext) PreviousFireTime() time.Time { return jec.prevFireTime }

// NextFireTime returns the trigger's next fire time.
func (jec *ExecutionContext) NextFireTime() time.Time { return jec.nextFireTime }

// JobRunTime returns the duration of the completed execution, or a
// negative value while the job is still running.
func (jec *ExecutionContext) JobRunTime() time.Duration { return jec.jobRunTime }

// Result returns the object set by the job via SetResult.
func (jec *ExecutionContext) Result() any { return jec.result }

// SetResult stores an arbitrary result object, visible to listeners.
func (jec *ExecutionContext) SetResult(result any) { jec.result = result }

// JobExecutionError is an error a job can return to instruct the
// scheduler what to do with the trigger that fired it.
type JobExecutionError struct {
	// Cause is the underlying error.
	Cause error

	// RefireImmediately requests an immediate re-execution of the job
	// with the same bundle.
	RefireImmediately bool

	// UnscheduleFiringTrigger completes the trigger that fired.
	UnscheduleFiringTrigger bool

	// UnscheduleAllTriggers completes every trigger of the job.
	UnscheduleAllTriggers bool
}

// Error returns the string representation of the error.
func (e *JobExecutionError) Error() string {
	return fmt.Sprintf("%v: %v", ErrJobExecution, e.Cause)
}

// Unwrap returns the underlying error.
func (e *JobExecutionError) Unwrap() error { return e.Cause }

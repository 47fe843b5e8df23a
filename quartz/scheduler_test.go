package quartz_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goquartz/quartz/quartz"
)

func TestScheduler_RepeatedExecution(t *testing.T) {
	job := &countingJob{runs: make(chan struct{}, 1)}
	sched := newRunningScheduler(t, job)
	scheduleEveryInterval(t, sched, 30*time.Millisecond, quartz.RepeatIndefinitely)

	assert.Eventually(t, func() bool { return job.executions() >= 3 },
		5*time.Second, 10*time.Millisecond)
	sched.Shutdown(true)
}

func TestScheduler_StartIdempotentAndStandby(t *testing.T) {
	job := &countingJob{runs: make(chan struct{}, 1)}
	sched := newRunningScheduler(t, job)
	assert.True(t, sched.IsStarted())
	require.NoError(t, sched.Start(context.Background()))

	require.NoError(t, sched.Standby())
	assert.False(t, sched.IsStarted())
	err := sched.Standby()
	assert.ErrorIs(t, err, quartz.ErrIllegalState)

	require.NoError(t, sched.Start(context.Background()))
	assert.True(t, sched.IsStarted())

	sched.Shutdown(true)
	err = sched.Start(context.Background())
	assert.ErrorIs(t, err, quartz.ErrIllegalState)
}

func TestScheduler_AddJobRequiresDurability(t *testing.T) {
	job := &countingJob{runs: make(chan struct{}, 1)}
	sched := newRunningScheduler(t, job)

	err := sched.AddJob(quartz.NewJobDetail(quartz.NewJobKey("j"), "countingJob"))
	assert.ErrorIs(t, err, quartz.ErrIllegalArgument)

	durable := quartz.NewJobDetailWithOptions(quartz.NewJobKey("j"), "countingJob",
		&quartz.JobDetailOptions{Durable: true})
	require.NoError(t, sched.AddJob(durable))

	loaded, err := sched.GetJobDetail(durable.JobKey())
	require.NoError(t, err)
	assert.True(t, loaded.Options().Durable)
}

func TestScheduler_TriggerJob(t *testing.T) {
	job := &countingJob{runs: make(chan struct{}, 1)}
	sched := newRunningScheduler(t, job)
	durable := quartz.NewJobDetailWithOptions(quartz.NewJobKey("manual"), "countingJob",
		&quartz.JobDetailOptions{Durable: true})
	require.NoError(t, sched.AddJob(durable))

	require.NoError(t, sched.TriggerJob(durable.JobKey(),
		quartz.JobDataMap{"source": "manual"}))
	select {
	case <-job.runs:
	case <-time.After(5 * time.Second):
		t.Fatal("manually triggered job did not run")
	}

	err := sched.TriggerJob(quartz.NewJobKey("absent"), nil)
	assert.ErrorIs(t, err, quartz.ErrJobNotFound)
	sched.Shutdown(true)
}

func TestScheduler_UnscheduleAndReschedule(t *testing.T) {
	job := &countingJob{runs: make(chan struct{}, 1)}
	sched := newRunningScheduler(t, job)
	trigger := scheduleEveryInterval(t, sched, time.Hour, quartz.RepeatIndefinitely)

	newTrigger := quartz.NewTrigger(quartz.NewTriggerKey("replacement"),
		trigger.JobKey(),
		quartz.NewSimpleSchedule(time.Hour, quartz.RepeatIndefinitely)).
		WithStartTime(time.Now().Add(time.Hour))
	replaced, err := sched.RescheduleJob(trigger.Key(), newTrigger)
	require.NoError(t, err)
	assert.True(t, replaced)

	removed, err := sched.UnscheduleJob(newTrigger.Key())
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = sched.UnscheduleJob(quartz.NewTriggerKey("absent"))
	require.NoError(t, err)
	assert.False(t, removed)
	sched.Shutdown(true)
}

func TestScheduler_NeverFiringTriggerRejected(t *testing.T) {
	job := &countingJob{runs: make(chan struct{}, 1)}
	sched := newRunningScheduler(t, job)

	detail := quartz.NewJobDetail(quartz.NewJobKey("past"), "countingJob")
	schedule, err := quartz.NewCronScheduleInLocation("0 0 0 1 1 ? 2001", time.UTC)
	require.NoError(t, err)
	trigger := quartz.NewTrigger(quartz.NewTriggerKey("past"), detail.JobKey(),
		schedule).WithStartTime(time.Now())
	err = sched.ScheduleJob(detail, trigger)
	assert.ErrorIs(t, err, quartz.ErrIllegalArgument)
	sched.Shutdown(true)
}

type interruptableJob struct {
	interrupted atomic.Bool
	started     chan struct{}
	release     chan struct{}
}

func (j *interruptableJob) Execute(_ context.Context, _ *quartz.ExecutionContext) error {
	close(j.started)
	<-j.release
	return nil
}

func (j *interruptableJob) Description() string { return "interruptableJob" }

func (j *interruptableJob) Interrupt(_ *quartz.JobKey) {
	j.interrupted.Store(true)
	close(j.release)
}

func TestScheduler_Interrupt(t *testing.T) {
	job := &interruptableJob{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	sched, err := quartz.NewStdSchedulerWithOptions(quartz.StdSchedulerOptions{
		IdleWaitTime: 50 * time.Millisecond,
	}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, sched.JobRegistry().Register("interruptable",
		func() quartz.Job { return job }))
	require.NoError(t, sched.Start(context.Background()))

	detail := quartz.NewJobDetail(quartz.NewJobKey("interruptable"), "interruptable")
	trigger := quartz.NewTrigger(quartz.NewTriggerKey("interruptable"),
		detail.JobKey(), quartz.NewRunOnceSchedule()).WithStartTime(time.Now())
	require.NoError(t, sched.ScheduleJob(detail, trigger))

	select {
	case <-job.started:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not start")
	}
	require.NoError(t, sched.Interrupt(detail.JobKey()))
	assert.True(t, job.interrupted.Load())
	sched.Shutdown(true)
}

func TestScheduler_ShutdownWaitsForJobs(t *testing.T) {
	done := make(chan struct{})
	var finished atomic.Bool
	slow := &slowJob{duration: 200 * time.Millisecond, finished: &finished}
	sched, err := quartz.NewStdSchedulerWithOptions(quartz.StdSchedulerOptions{
		IdleWaitTime: 50 * time.Millisecond,
	}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, sched.JobRegistry().Register("slow",
		func() quartz.Job { return slow }))
	require.NoError(t, sched.Start(context.Background()))

	detail := quartz.NewJobDetail(quartz.NewJobKey("slow"), "slow")
	trigger := quartz.NewTrigger(quartz.NewTriggerKey("slow"), detail.JobKey(),
		quartz.NewRunOnceSchedule()).WithStartTime(time.Now())
	require.NoError(t, sched.ScheduleJob(detail, trigger))

	go func() {
		time.Sleep(100 * time.Millisecond)
		sched.Shutdown(true)
		close(done)
	}()
	select {
	case <-done:
		assert.True(t, finished.Load(),
			"shutdown with wait returned before the job completed")
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not return")
	}
}

type slowJob struct {
	duration time.Duration
	finished *atomic.Bool
}

func (j *slowJob) Execute(_ context.Context, _ *quartz.ExecutionContext) error {
	time.Sleep(j.duration)
	j.finished.Store(true)
	return nil
}

func (j *slowJob) Description() string { return "slowJob" }

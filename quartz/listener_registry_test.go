package quartz_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goquartz/quartz/matcher"
	"github.com/goquartz/quartz/quartz"
)

type recordingTriggerListener struct {
	quartz.TriggerListenerSupport
	name  string
	log   *eventLog
	veto  bool
	panic bool
}

type eventLog struct {
	mtx    sync.Mutex
	events []string
}

func (l *eventLog) add(event string) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.events = append(l.events, event)
}

func (l *eventLog) all() []string {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	events := make([]string, len(l.events))
	copy(events, l.events)
	return events
}

func (r *recordingTriggerListener) Name() string { return r.name }

func (r *recordingTriggerListener) TriggerFired(_ *quartz.Trigger,
	_ *quartz.ExecutionContext) {
	if r.panic {
		panic("listener failure")
	}
	r.log.add(r.name)
}

func (r *recordingTriggerListener) VetoJobExecution(_ *quartz.Trigger,
	_ *quartz.ExecutionContext) bool {
	return r.veto
}

type recordingSchedulerListener struct {
	quartz.SchedulerListenerSupport
	log *eventLog
}

func (r *recordingSchedulerListener) SchedulerError(msg string, _ error) {
	r.log.add("error:" + msg)
}

type countingJob struct {
	count int32
	mtx   sync.Mutex
	runs  chan struct{}
}

func (j *countingJob) Execute(_ context.Context, _ *quartz.ExecutionContext) error {
	j.mtx.Lock()
	j.count++
	j.mtx.Unlock()
	select {
	case j.runs <- struct{}{}:
	default:
	}
	return nil
}

func (j *countingJob) Description() string { return "countingJob" }

func (j *countingJob) executions() int32 {
	j.mtx.Lock()
	defer j.mtx.Unlock()
	return j.count
}

func newRunningScheduler(t *testing.T, job quartz.Job) *quartz.StdScheduler {
	t.Helper()
	sched, err := quartz.NewStdSchedulerWithOptions(quartz.StdSchedulerOptions{
		IdleWaitTime: 50 * time.Millisecond,
		WorkerCount:  2,
	}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, sched.JobRegistry().Register("countingJob",
		func() quartz.Job { return job }))
	require.NoError(t, sched.Start(context.Background()))
	t.Cleanup(func() { sched.Shutdown(true) })
	return sched
}

func scheduleEveryInterval(t *testing.T, sched *quartz.StdScheduler,
	interval time.Duration, repeatCount int) *quartz.Trigger {
	t.Helper()
	job := quartz.NewJobDetail(quartz.NewJobKey("counting"), "countingJob")
	trigger := quartz.NewTrigger(quartz.NewTriggerKey("counting"),
		job.JobKey(), quartz.NewSimpleSchedule(interval, repeatCount)).
		WithStartTime(time.Now())
	require.NoError(t, sched.ScheduleJob(job, trigger))
	return trigger
}

func TestListeners_InvokedInRegistrationOrder(t *testing.T) {
	log := &eventLog{}
	job := &countingJob{runs: make(chan struct{}, 1)}
	sched := newRunningScheduler(t, job)
	for _, name := range []string{"first", "second", "third"} {
		sched.ListenerManager().AddTriggerListener(
			&recordingTriggerListener{name: name, log: log})
	}

	scheduleEveryInterval(t, sched, time.Second, 0)
	select {
	case <-job.runs:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run")
	}
	sched.Shutdown(true)

	assert.Equal(t, []string{"first", "second", "third"}, log.all())
}

func TestListeners_PanicIsolated(t *testing.T) {
	log := &eventLog{}
	job := &countingJob{runs: make(chan struct{}, 1)}
	sched := newRunningScheduler(t, job)
	sched.ListenerManager().AddSchedulerListener(
		&recordingSchedulerListener{log: log})
	sched.ListenerManager().AddTriggerListener(
		&recordingTriggerListener{name: "boom", log: log, panic: true})
	sched.ListenerManager().AddTriggerListener(
		&recordingTriggerListener{name: "after", log: log})

	scheduleEveryInterval(t, sched, time.Second, 0)
	select {
	case <-job.runs:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run despite the panicking listener")
	}
	sched.Shutdown(true)

	events := log.all()
	// the panic became a scheduler error and the remaining listener ran
	assert.Contains(t, events, "after")
	assert.Contains(t, events, "error:listener panic in TriggerFired")
}

func TestListeners_Veto(t *testing.T) {
	log := &eventLog{}
	job := &countingJob{runs: make(chan struct{}, 1)}
	sched := newRunningScheduler(t, job)
	sched.ListenerManager().AddTriggerListener(
		&recordingTriggerListener{name: "vetoer", log: log, veto: true})

	scheduleEveryInterval(t, sched, time.Second, 0)
	time.Sleep(500 * time.Millisecond)
	sched.Shutdown(true)

	assert.Equal(t, int32(0), job.executions())
}

func TestListeners_Matchers(t *testing.T) {
	log := &eventLog{}
	job := &countingJob{runs: make(chan struct{}, 1)}
	sched := newRunningScheduler(t, job)
	sched.ListenerManager().AddTriggerListener(
		&recordingTriggerListener{name: "matching", log: log},
		matcher.GroupEquals[*quartz.TriggerKey](quartz.DefaultGroup))
	sched.ListenerManager().AddTriggerListener(
		&recordingTriggerListener{name: "other-group", log: log},
		matcher.GroupEquals[*quartz.TriggerKey]("Other"))

	scheduleEveryInterval(t, sched, time.Second, 0)
	select {
	case <-job.runs:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run")
	}
	sched.Shutdown(true)

	assert.Equal(t, []string{"matching"}, log.all())
}

func TestListeners_RemoveByName(t *testing.T) {
	manager := quartz.NewListenerManager()
	log := &eventLog{}
	for _, name := range []string{"a", "b", "c"} {
		manager.AddTriggerListener(&recordingTriggerListener{name: name, log: log})
	}
	assert.True(t, manager.RemoveTriggerListener("b"))
	assert.False(t, manager.RemoveTriggerListener("b"))
	manager.AddTriggerListener(&recordingTriggerListener{name: "d", log: log})
	assert.True(t, manager.RemoveTriggerListener("a"))
	assert.True(t, manager.RemoveTriggerListener("c"))
	assert.True(t, manager.RemoveTriggerListener("d"))
}

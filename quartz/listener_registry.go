package quartz

import (
	"fmt"
	"sync"

	"github.com/goquartz/quartz/logger"
)

// ListenerManager keeps the registries of trigger, job and scheduler
// listeners. Registrations are dispatched in insertion order, which is
// preserved across additions and removals.
type ListenerManager struct {
	mtx                sync.RWMutex
	triggerListeners   []*triggerRegistration
	jobListeners       []*jobRegistration
	schedulerListeners []SchedulerListener
	logger             logger.Logger
}

type triggerRegistration struct {
	listener TriggerListener
	matchers []Matcher[*TriggerKey]
}

type jobRegistration struct {
	listener JobListener
	matchers []Matcher[*JobKey]
}

// NewListenerManager returns a new empty ListenerManager.
func NewListenerManager() *ListenerManager {
	return &ListenerManager{logger: logger.Default()}
}

// AddTriggerListener registers a trigger listener scoped by the given
// matchers. With no matchers the listener receives all trigger events.
// All matchers of a registration must match for the listener to be
// invoked.
func (m *ListenerManager) AddTriggerListener(listener TriggerListener,
	matchers ...Matcher[*TriggerKey]) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.triggerListeners = append(m.triggerListeners, &triggerRegistration{
		listener: listener,
		matchers: matchers,
	})
}

// RemoveTriggerListener removes the trigger listener with the given name.
func (m *ListenerManager) RemoveTriggerListener(name string) bool {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	for i, registration := range m.triggerListeners {
		if registration.listener.Name() == name {
			m.triggerListeners = append(m.triggerListeners[:i],
				m.triggerListeners[i+1:]...)
			return true
		}
	}
	return false
}

// AddJobListener registers a job listener scoped by the given matchers.
func (m *ListenerManager) AddJobListener(listener JobListener,
	matchers ...Matcher[*JobKey]) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.jobListeners = append(m.jobListeners, &jobRegistration{
		listener: listener,
		matchers: matchers,
	})
}

// RemoveJobListener removes the job listener with the given name.
func (m *ListenerManager) RemoveJobListener(name string) bool {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	for i, registration := range m.jobListeners {
		if registration.listener.Name() == name {
			m.jobListeners = append(m.jobListeners[:i], m.jobListeners[i+1:]...)
			return true
		}
	}
	return false
}

// AddSchedulerListener registers a scheduler listener.
func (m *ListenerManager) AddSchedulerListener(listener SchedulerListener) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.schedulerListeners = append(m.schedulerListeners, listener)
}

// RemoveSchedulerListener removes the given scheduler listener.
func (m *ListenerManager) RemoveSchedulerListener(listener SchedulerListener) bool {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	for i, registered := range m.schedulerListeners {
		if registered == listener {
			m.schedulerListeners = append(m.schedulerListeners[:i],
				m.schedulerListeners[i+1:]...)
			return true
		}
	}
	return false
}

// matchingTriggerListeners returns the listeners whose matchers all
// accept the key, in registration order.
func (m *ListenerManager) matchingTriggerListeners(key *TriggerKey) []TriggerListener {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	listeners := make([]TriggerListener, 0, len(m.triggerListeners))
	for _, registration := range m.triggerListeners {
		if matchesAll(registration.matchers, key) {
			listeners = append(listeners, registration.listener)
		}
	}
	return listeners
}

// matchingJobListeners returns the listeners whose matchers all accept
// the key, in registration order.
func (m *ListenerManager) matchingJobListeners(key *JobKey) []JobListener {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	listeners := make([]JobListener, 0, len(m.jobListeners))
	for _, registration := range m.jobListeners {
		if matchesAll(registration.matchers, key) {
			listeners = append(listeners, registration.listener)
		}
	}
	return listeners
}

func (m *ListenerManager) allSchedulerListeners() []SchedulerListener {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	listeners := make([]SchedulerListener, len(m.schedulerListeners))
	copy(listeners, m.schedulerListeners)
	return listeners
}

func matchesAll[T any](matchers []Matcher[T], arg T) bool {
	for _, matcher := range matchers {
		if !matcher.IsMatch(arg) {
			return false
		}
	}
	return true
}

// notify invokes fn and fault-isolates it: an error or panic raised by a
// listener is turned into a scheduler-error event and does not suppress
// subsequent listeners.
func (m *ListenerManager) notify(description string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(error)
			if !ok {
				err = fmt.Errorf("%v", r)
			}
			m.logger.Errorf("Listener panic in %s: %s", description, err)
			m.notifySchedulerError("listener panic in "+description, err)
		}
	}()
	fn()
}

func (m *ListenerManager) notifyTriggerFired(trigger *Trigger, jec *ExecutionContext) {
	for _, listener := range m.matchingTriggerListeners(trigger.Key()) {
		listener := listener
		m.notify("TriggerFired", func() { listener.TriggerFired(trigger, jec) })
	}
}

// notifyVetoJobExecution polls the trigger listeners for a veto. A vetoed
// execution is skipped; a panic of one listener does not suppress the
// poll of the remaining ones.
func (m *ListenerManager) notifyVetoJobExecution(trigger *Trigger, jec *ExecutionContext) bool {
	vetoed := false
	for _, listener := range m.matchingTriggerListeners(trigger.Key()) {
		listener := listener
		m.notify("VetoJobExecution", func() {
			if listener.VetoJobExecution(trigger, jec) {
				vetoed = true
			}
		})
	}
	return vetoed
}

func (m *ListenerManager) notifyTriggerMisfired(trigger *Trigger) {
	for _, listener := range m.matchingTriggerListeners(trigger.Key()) {
		listener := listener
		m.notify("TriggerMisfired", func() { listener.TriggerMisfired(trigger) })
	}
}

func (m *ListenerManager) notifyTriggerComplete(trigger *Trigger, jec *ExecutionContext,
	instruction CompletedExecutionInstruction) {
	for _, listener := range m.matchingTriggerListeners(trigger.Key()) {
		listener := listener
		m.notify("TriggerComplete", func() {
			listener.TriggerComplete(trigger, jec, instruction)
		})
	}
}

func (m *ListenerManager) notifyJobToBeExecuted(jec *ExecutionContext) {
	for _, listener := range m.matchingJobListeners(jec.JobDetail().JobKey()) {
		listener := listener
		m.notify("JobToBeExecuted", func() { listener.JobToBeExecuted(jec) })
	}
}

func (m *ListenerManager) notifyJobExecutionVetoed(jec *ExecutionContext) {
	for _, listener := range m.matchingJobListeners(jec.JobDetail().JobKey()) {
		listener := listener
		m.notify("JobExecutionVetoed", func() { listener.JobExecutionVetoed(jec) })
	}
}

func (m *ListenerManager) notifyJobWasExecuted(jec *ExecutionContext, jobErr error) {
	for _, listener := range m.matchingJobListeners(jec.JobDetail().JobKey()) {
		listener := listener
		m.notify("JobWasExecuted", func() { listener.JobWasExecuted(jec, jobErr) })
	}
}

func (m *ListenerManager) notifySchedulerError(msg string, err error) {
	for _, listener := range m.allSchedulerListeners() {
		listener := listener
		// scheduler-error fan-out must not recurse through notify
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Errorf("SchedulerListener panic in SchedulerError: %v", r)
				}
			}()
			listener.SchedulerError(msg, err)
		}()
	}
}

func (m *ListenerManager) notifySchedulerListeners(fn func(SchedulerListener)) {
	for _, listener := range m.allSchedulerListeners() {
		listener := listener
		m.notify("SchedulerListener", func() { fn(listener) })
	}
}

package quartz

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Job represents an interface to be implemented by structs which
// represent a unit of work to be performed.
type Job interface {
	// Execute is called by a worker when the Trigger associated with this
	// job fires. The returned error is reported to job listeners and is
	// consulted when deriving the completion instruction of the trigger.
	Execute(ctx context.Context, jec *ExecutionContext) error

	// Description returns the description of the Job.
	Description() string
}

// InterruptableJob is an optional capability of a Job. The scheduler
// Interrupt method calls it on a best-effort basis; jobs that do not
// implement the interface cannot be preempted.
type InterruptableJob interface {
	Job

	// Interrupt requests that the current execution of the job with the
	// given key halts as soon as practical.
	Interrupt(jobKey *JobKey)
}

// JobCapabilities describes execution properties of a registered job type.
// It replaces class-level markers: when the type is registered with
// capabilities, those values win over flags set on individual JobDetails.
type JobCapabilities struct {
	// DisallowConcurrentExecution restricts the job to a single execution
	// instance cluster-wide; concurrent fires put other triggers of the
	// job into the blocked state.
	DisallowConcurrentExecution bool

	// PersistJobDataAfterExecution makes the store re-persist the job data
	// map after each successful execution.
	PersistJobDataAfterExecution bool
}

// JobFactory produces a new instance of a registered job type.
type JobFactory func() Job

type registeredJob struct {
	factory      JobFactory
	capabilities JobCapabilities
	declared     bool
}

// JobRegistry maps persisted job type names to factories. Stores record
// the registered type name and resolve it through the registry on load.
type JobRegistry struct {
	mtx   sync.RWMutex
	types map[string]registeredJob
}

// NewJobRegistry returns a new empty JobRegistry.
func NewJobRegistry() *JobRegistry {
	return &JobRegistry{
		types: make(map[string]registeredJob),
	}
}

// Register adds a job type factory under the given name.
func (r *JobRegistry) Register(typeName string, factory JobFactory) error {
	return r.register(typeName, factory, JobCapabilities{}, false)
}

// RegisterWithCapabilities adds a job type factory under the given name
// with explicit execution capabilities.
func (r *JobRegistry) RegisterWithCapabilities(typeName string, factory JobFactory,
	capabilities JobCapabilities) error {
	return r.register(typeName, factory, capabilities, true)
}

func (r *JobRegistry) register(typeName string, factory JobFactory,
	capabilities JobCapabilities, declared bool) error {
	if typeName == "" {
		return illegalArgumentError("job type name is empty")
	}
	if factory == nil {
		return illegalArgumentError("job factory is nil")
	}
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.types[typeName] = registeredJob{
		factory:      factory,
		capabilities: capabilities,
		declared:     declared,
	}
	return nil
}

// NewJob instantiates the job type registered under the given name.
func (r *JobRegistry) NewJob(typeName string) (Job, error) {
	r.mtx.RLock()
	registered, ok := r.types[typeName]
	r.mtx.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: job type %q is not registered",
			ErrStoreFatal, typeName)
	}
	return registered.factory(), nil
}

// Capabilities returns the capabilities registered for the type name and
// whether they were explicitly declared.
func (r *JobRegistry) Capabilities(typeName string) (JobCapabilities, bool) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	registered, ok := r.types[typeName]
	if !ok || !registered.declared {
		return JobCapabilities{}, false
	}
	return registered.capabilities, true
}

// TypeNames returns the names of all registered job types in sorted order.
func (r *JobRegistry) TypeNames() []string {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

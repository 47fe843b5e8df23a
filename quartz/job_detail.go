package quartz

// JobDetailOptions represents additional JobDetail properties.
type JobDetailOptions struct {
	// Durable indicates whether the job should remain stored after it is
	// orphaned (no triggers point to it). A non-durable job is deleted
	// when its last trigger is removed.
	// Default: false.
	Durable bool

	// RequestsRecovery indicates whether the job should be re-executed if
	// a recovery situation is encountered after a scheduler instance
	// failed while the job was executing.
	// Default: false.
	RequestsRecovery bool

	// DisallowConcurrentExecution restricts the job to a single execution
	// instance at a time. A capability declared on the registered job type
	// takes precedence over this flag.
	// Default: false.
	DisallowConcurrentExecution bool

	// PersistJobDataAfterExecution makes the store re-persist the job data
	// map after execution. A capability declared on the registered job
	// type takes precedence over this flag.
	// Default: false.
	PersistJobDataAfterExecution bool

	// Replace indicates whether the job should replace an existing job
	// with the same key.
	// Default: false.
	Replace bool
}

// NewDefaultJobDetailOptions returns a new instance of JobDetailOptions
// with the default values.
func NewDefaultJobDetailOptions() *JobDetailOptions {
	return &JobDetailOptions{ // using explicit default values for visibility
		Durable:                      false,
		RequestsRecovery:             false,
		DisallowConcurrentExecution:  false,
		PersistJobDataAfterExecution: false,
		Replace:                      false,
	}
}

// JobDetail conveys the detail properties of a given Job instance.
type JobDetail struct {
	jobKey      *JobKey
	jobType     string
	description string
	jobDataMap  JobDataMap
	opts        *JobDetailOptions
}

// NewJobDetail creates and returns a new JobDetail for the job type
// registered under jobType.
func NewJobDetail(jobKey *JobKey, jobType string) *JobDetail {
	return NewJobDetailWithOptions(jobKey, jobType, NewDefaultJobDetailOptions())
}

// NewJobDetailWithOptions creates and returns a new JobDetail configured
// as specified.
func NewJobDetailWithOptions(jobKey *JobKey, jobType string,
	opts *JobDetailOptions) *JobDetail {
	return &JobDetail{
		jobKey:     jobKey,
		jobType:    jobType,
		jobDataMap: NewJobDataMap(),
		opts:       opts,
	}
}

// JobKey returns the key of the JobDetail.
func (jd *JobDetail) JobKey() *JobKey {
	return jd.jobKey
}

// JobType returns the registered job type name.
func (jd *JobDetail) JobType() string {
	return jd.jobType
}

// Description returns the description of the JobDetail.
func (jd *JobDetail) Description() string {
	return jd.description
}

// WithDescription sets the description and returns the JobDetail.
func (jd *JobDetail) WithDescription(description string) *JobDetail {
	jd.description = description
	return jd
}

// JobDataMap returns the job data map.
func (jd *JobDetail) JobDataMap() JobDataMap {
	return jd.jobDataMap
}

// WithJobDataMap sets the job data map and returns the JobDetail.
func (jd *JobDetail) WithJobDataMap(jobDataMap JobDataMap) *JobDetail {
	jd.jobDataMap = jobDataMap
	return jd
}

// Options returns the options of the JobDetail.
func (jd *JobDetail) Options() *JobDetailOptions {
	return jd.opts
}

// ResolveCapabilities overrides the concurrency and persistence flags with
// capabilities declared for the job type in the registry, when present.
// The registered value wins over the explicitly configured one.
func (jd *JobDetail) ResolveCapabilities(registry *JobRegistry) {
	if registry == nil {
		return
	}
	if capabilities, declared := registry.Capabilities(jd.jobType); declared {
		jd.opts.DisallowConcurrentExecution = capabilities.DisallowConcurrentExecution
		jd.opts.PersistJobDataAfterExecution = capabilities.PersistJobDataAfterExecution
	}
}

// Clone returns a deep copy of the JobDetail.
func (jd *JobDetail) Clone() *JobDetail {
	optsCopy := *jd.opts
	return &JobDetail{
		jobKey:      jd.jobKey,
		jobType:     jd.jobType,
		description: jd.description,
		jobDataMap:  jd.jobDataMap.Clone(),
		opts:        &optsCopy,
	}
}

// Validate checks the JobDetail for validity.
func (jd *JobDetail) Validate() error {
	if err := jd.jobKey.Validate(); err != nil {
		return err
	}
	if jd.jobType == "" {
		return illegalArgumentError("job type name is empty")
	}
	return nil
}

package quartz

import "fmt"

const (
	// DefaultGroup is the group name assigned to keys created without an
	// explicit group.
	DefaultGroup = "DEFAULT"

	// Sep is the separator used in the string representation of a key.
	Sep = "."
)

// Keyed is the common contract of JobKey and TriggerKey, used by matchers
// and store queries that operate on either kind of key.
type Keyed interface {
	Name() string
	Group() string
}

// JobKey represents the identifier of a JobDetail.
// Keys are composed of both a name and group, and the name must be unique
// within the group.
// If only a name is specified then the default group name will be used.
type JobKey struct {
	name  string
	group string
}

var _ Keyed = (*JobKey)(nil)

// NewJobKey returns a new JobKey using the given name and the default group.
func NewJobKey(name string) *JobKey {
	return NewJobKeyWithGroup(name, DefaultGroup)
}

// NewJobKeyWithGroup returns a new JobKey using the given name and group.
func NewJobKeyWithGroup(name, group string) *JobKey {
	if group == "" { // use default if empty
		group = DefaultGroup
	}
	return &JobKey{
		name:  name,
		group: group,
	}
}

// String returns the string representation of the JobKey.
func (jobKey *JobKey) String() string {
	return fmt.Sprintf("%s%s%s", jobKey.group, Sep, jobKey.name)
}

// Equals indicates whether some other JobKey is "equal to" this one.
func (jobKey *JobKey) Equals(that *JobKey) bool {
	return jobKey.name == that.name &&
		jobKey.group == that.group
}

// Name returns the name of the JobKey.
func (jobKey *JobKey) Name() string {
	return jobKey.name
}

// Group returns the group of the JobKey.
func (jobKey *JobKey) Group() string {
	return jobKey.group
}

// Validate checks the JobKey for validity.
func (jobKey *JobKey) Validate() error {
	if jobKey == nil {
		return illegalArgumentError("job key is nil")
	}
	if jobKey.name == "" {
		return illegalArgumentError("job key name is empty")
	}
	return nil
}

// TriggerKey represents the identifier of a Trigger.
// Keys are composed of both a name and group, and the name must be unique
// within the group.
// If only a name is specified then the default group name will be used.
type TriggerKey struct {
	name  string
	group string
}

var _ Keyed = (*TriggerKey)(nil)

// NewTriggerKey returns a new TriggerKey using the given name and the
// default group.
func NewTriggerKey(name string) *TriggerKey {
	return NewTriggerKeyWithGroup(name, DefaultGroup)
}

// NewTriggerKeyWithGroup returns a new TriggerKey using the given name
// and group.
func NewTriggerKeyWithGroup(name, group string) *TriggerKey {
	if group == "" { // use default if empty
		group = DefaultGroup
	}
	return &TriggerKey{
		name:  name,
		group: group,
	}
}

// String returns the string representation of the TriggerKey.
func (triggerKey *TriggerKey) String() string {
	return fmt.Sprintf("%s%s%s", triggerKey.group, Sep, triggerKey.name)
}

// Equals indicates whether some other TriggerKey is "equal to" this one.
func (triggerKey *TriggerKey) Equals(that *TriggerKey) bool {
	return triggerKey.name == that.name &&
		triggerKey.group == that.group
}

// Name returns the name of the TriggerKey.
func (triggerKey *TriggerKey) Name() string {
	return triggerKey.name
}

// Group returns the group of the TriggerKey.
func (triggerKey *TriggerKey) Group() string {
	return triggerKey.group
}

// Validate checks the TriggerKey for validity.
func (triggerKey *TriggerKey) Validate() error {
	if triggerKey == nil {
		return illegalArgumentError("trigger key is nil")
	}
	if triggerKey.name == "" {
		return illegalArgumentError("trigger key name is empty")
	}
	return nil
}

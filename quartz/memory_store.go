package quartz

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goquartz/quartz/calendar"
	"github.com/goquartz/quartz/logger"
)

// MemoryStoreOptions represents additional MemoryStore properties.
type MemoryStoreOptions struct {
	// MisfireThreshold is the tolerance by which a late fire is still
	// considered on time.
	// Default: 5 seconds.
	MisfireThreshold time.Duration

	// Logger is the store logger.
	// Default: logger.Default().
	Logger logger.Logger
}

// MemoryStore is an in-process JobStore implementation. All data is held
// behind a single mutex and is lost when the process exits.
type MemoryStore struct {
	mtx sync.Mutex

	jobs          map[string]*JobDetail
	triggers      map[string]*triggerRecord
	triggersByJob map[string][]*triggerRecord
	calendars     map[string]calendar.Calendar

	pausedTriggerGroups map[string]struct{}
	pausedJobGroups     map[string]struct{}
	blockedJobs         map[string]struct{}

	queue triggerQueue

	registry *JobRegistry
	signaler SchedulerSignaler

	misfireThreshold time.Duration
	logger           logger.Logger
}

var _ JobStore = (*MemoryStore)(nil)

// NewMemoryStore returns a new MemoryStore with the default
// configuration.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithOptions(MemoryStoreOptions{})
}

// NewMemoryStoreWithOptions returns a new MemoryStore configured as
// specified.
func NewMemoryStoreWithOptions(opts MemoryStoreOptions) *MemoryStore {
	if opts.MisfireThreshold <= 0 {
		opts.MisfireThreshold = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	return &MemoryStore{
		jobs:                make(map[string]*JobDetail),
		triggers:            make(map[string]*triggerRecord),
		triggersByJob:       make(map[string][]*triggerRecord),
		calendars:           make(map[string]calendar.Calendar),
		pausedTriggerGroups: make(map[string]struct{}),
		pausedJobGroups:     make(map[string]struct{}),
		blockedJobs:         make(map[string]struct{}),
		queue:               make(triggerQueue, 0),
		misfireThreshold:    opts.MisfireThreshold,
		logger:              opts.Logger,
	}
}

// Initialize is called by the scheduler before the store is used.
func (s *MemoryStore) Initialize(registry *JobRegistry, signaler SchedulerSignaler) error {
	s.registry = registry
	s.signaler = signaler
	return nil
}

// SchedulerStarted is called when the scheduler has started.
func (s *MemoryStore) SchedulerStarted() error { return nil }

// SchedulerPaused is called when the scheduler is put in standby.
func (s *MemoryStore) SchedulerPaused() {}

// SchedulerResumed is called when the scheduler leaves standby.
func (s *MemoryStore) SchedulerResumed() {}

// Shutdown releases all resources held by the store.
func (s *MemoryStore) Shutdown() {}

// StoreJob persists the given job.
func (s *MemoryStore) StoreJob(job *JobDetail, replace bool) error {
	if err := job.Validate(); err != nil {
		return err
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.storeJob(job, replace)
}

func (s *MemoryStore) storeJob(job *JobDetail, replace bool) error {
	if _, ok := s.jobs[job.JobKey().String()]; ok && !replace {
		return alreadyExistsError(job.JobKey())
	}
	job.ResolveCapabilities(s.registry)
	s.jobs[job.JobKey().String()] = job.Clone()
	return nil
}

// StoreJobAndTrigger persists the job and its trigger atomically.
func (s *MemoryStore) StoreJobAndTrigger(job *JobDetail, trigger *Trigger) error {
	if err := job.Validate(); err != nil {
		return err
	}
	if err := trigger.Validate(); err != nil {
		return err
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if err := s.storeJob(job, false); err != nil {
		return err
	}
	return s.storeTrigger(trigger, false)
}

// RemoveJob deletes the job and all of its triggers.
func (s *MemoryStore) RemoveJob(key *JobKey) (bool, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if _, ok := s.jobs[key.String()]; !ok {
		return false, nil
	}
	for _, record := range s.triggersByJob[key.String()] {
		s.queue.remove(record)
		delete(s.triggers, record.trigger.Key().String())
	}
	delete(s.triggersByJob, key.String())
	delete(s.jobs, key.String())
	delete(s.blockedJobs, key.String())
	return true, nil
}

// RetrieveJob loads the job with the given key.
func (s *MemoryStore) RetrieveJob(key *JobKey) (*JobDetail, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	job, ok := s.jobs[key.String()]
	if !ok {
		return nil, jobNotFoundError(key.String())
	}
	return job.Clone(), nil
}

// StoreTrigger persists the given trigger.
func (s *MemoryStore) StoreTrigger(trigger *Trigger, replace bool) error {
	if err := trigger.Validate(); err != nil {
		return err
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.storeTrigger(trigger, replace)
}

func (s *MemoryStore) storeTrigger(trigger *Trigger, replace bool) error {
	key := trigger.Key().String()
	if existing, ok := s.triggers[key]; ok {
		if !replace {
			return alreadyExistsError(trigger.Key())
		}
		s.queue.remove(existing)
		s.removeFromJobIndex(existing)
		delete(s.triggers, key)
	}
	if _, ok := s.jobs[trigger.JobKey().String()]; !ok {
		return jobNotFoundError(fmt.Sprintf("job %s referenced by trigger %s",
			trigger.JobKey(), trigger.Key()))
	}
	record := &triggerRecord{trigger: trigger.Clone(), state: StateWaiting, index: -1}

	_, triggerGroupPaused := s.pausedTriggerGroups[trigger.Key().Group()]
	_, jobGroupPaused := s.pausedJobGroups[trigger.JobKey().Group()]
	_, jobBlocked := s.blockedJobs[trigger.JobKey().String()]
	switch {
	case triggerGroupPaused || jobGroupPaused:
		record.state = StatePaused
		if jobBlocked {
			record.state = StatePausedBlocked
		}
	case jobBlocked:
		record.state = StateBlocked
	default:
		s.queue.push(record)
	}

	s.triggers[key] = record
	jobKey := trigger.JobKey().String()
	s.triggersByJob[jobKey] = append(s.triggersByJob[jobKey], record)
	return nil
}

// RemoveTrigger deletes the trigger. If its job is non-durable and not
// referenced by any other trigger, the job is deleted as well.
func (s *MemoryStore) RemoveTrigger(key *TriggerKey) (bool, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.removeTrigger(key, true)
}

func (s *MemoryStore) removeTrigger(key *TriggerKey, removeOrphanedJob bool) (bool, error) {
	record, ok := s.triggers[key.String()]
	if !ok {
		return false, nil
	}
	s.queue.remove(record)
	s.removeFromJobIndex(record)
	delete(s.triggers, key.String())

	if removeOrphanedJob {
		jobKey := record.trigger.JobKey()
		job, jobExists := s.jobs[jobKey.String()]
		if jobExists && !job.Options().Durable &&
			len(s.triggersByJob[jobKey.String()]) == 0 {
			delete(s.jobs, jobKey.String())
			delete(s.triggersByJob, jobKey.String())
		}
	}
	return true, nil
}

func (s *MemoryStore) removeFromJobIndex(record *triggerRecord) {
	jobKey := record.trigger.JobKey().String()
	records := s.triggersByJob[jobKey]
	for i, r := range records {
		if r == record {
			s.triggersByJob[jobKey] = append(records[:i], records[i+1:]...)
			break
		}
	}
	if len(s.triggersByJob[jobKey]) == 0 {
		delete(s.triggersByJob, jobKey)
	}
}

// ReplaceTrigger atomically replaces the trigger with a new one for the
// same job.
func (s *MemoryStore) ReplaceTrigger(key *TriggerKey, newTrigger *Trigger) (bool, error) {
	if err := newTrigger.Validate(); err != nil {
		return false, err
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()
	record, ok := s.triggers[key.String()]
	if !ok {
		return false, nil
	}
	if !record.trigger.JobKey().Equals(newTrigger.JobKey()) {
		return false, illegalArgumentError(
			"the new trigger must be associated with the same job")
	}
	if _, err := s.removeTrigger(key, false); err != nil {
		return false, err
	}
	return true, s.storeTrigger(newTrigger, false)
}

// RetrieveTrigger loads the trigger with the given key.
func (s *MemoryStore) RetrieveTrigger(key *TriggerKey) (*Trigger, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	record, ok := s.triggers[key.String()]
	if !ok {
		return nil, triggerNotFoundError(key.String())
	}
	return record.trigger.Clone(), nil
}

// CheckJobExists reports whether a job with the given key exists.
func (s *MemoryStore) CheckJobExists(key *JobKey) (bool, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	_, ok := s.jobs[key.String()]
	return ok, nil
}

// CheckTriggerExists reports whether a trigger with the given key exists.
func (s *MemoryStore) CheckTriggerExists(key *TriggerKey) (bool, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	_, ok := s.triggers[key.String()]
	return ok, nil
}

// ClearAllSchedulingData removes all jobs, triggers and calendars.
func (s *MemoryStore) ClearAllSchedulingData() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.jobs = make(map[string]*JobDetail)
	s.triggers = make(map[string]*triggerRecord)
	s.triggersByJob = make(map[string][]*triggerRecord)
	s.calendars = make(map[string]calendar.Calendar)
	s.pausedTriggerGroups = make(map[string]struct{})
	s.pausedJobGroups = make(map[string]struct{})
	s.blockedJobs = make(map[string]struct{})
	s.queue = make(triggerQueue, 0)
	return nil
}

// StoreCalendar persists the named calendar.
func (s *MemoryStore) StoreCalendar(name string, cal calendar.Calendar,
	replace, updateTriggers bool) error {
	if name == "" {
		return illegalArgumentError("calendar name is empty")
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if _, ok := s.calendars[name]; ok && !replace {
		return fmt.Errorf("%w: calendar %s", ErrObjectAlreadyExists, name)
	}
	s.calendars[name] = cal
	if updateTriggers {
		for _, record := range s.triggers {
			if record.trigger.CalendarName() != name {
				continue
			}
			s.queue.remove(record)
			record.trigger.UpdateWithNewCalendar(cal, s.misfireThreshold)
			if record.state == StateWaiting && !record.trigger.NextFireTime().IsZero() {
				s.queue.push(record)
			}
		}
	}
	return nil
}

// RemoveCalendar deletes the named calendar. Removing a calendar
// referenced by a trigger fails.
func (s *MemoryStore) RemoveCalendar(name string) (bool, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	for _, record := range s.triggers {
		if record.trigger.CalendarName() == name {
			return false, illegalStateError(fmt.Sprintf(
				"calendar %s is referenced by trigger %s", name, record.trigger.Key()))
		}
	}
	if _, ok := s.calendars[name]; !ok {
		return false, nil
	}
	delete(s.calendars, name)
	return true, nil
}

// RetrieveCalendar loads the named calendar.
func (s *MemoryStore) RetrieveCalendar(name string) (calendar.Calendar, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	cal, ok := s.calendars[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCalendarNotFound, name)
	}
	return cal, nil
}

// GetJobKeys returns the keys of jobs accepted by the matcher.
func (s *MemoryStore) GetJobKeys(m Matcher[*JobKey]) ([]*JobKey, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	keys := make([]*JobKey, 0, len(s.jobs))
	for _, job := range s.jobs {
		if m == nil || m.IsMatch(job.JobKey()) {
			keys = append(keys, job.JobKey())
		}
	}
	return keys, nil
}

// GetTriggerKeys returns the keys of triggers accepted by the matcher.
func (s *MemoryStore) GetTriggerKeys(m Matcher[*TriggerKey]) ([]*TriggerKey, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	keys := make([]*TriggerKey, 0, len(s.triggers))
	for _, record := range s.triggers {
		if m == nil || m.IsMatch(record.trigger.Key()) {
			keys = append(keys, record.trigger.Key())
		}
	}
	return keys, nil
}

// GetTriggersForJob returns all triggers of the given job.
func (s *MemoryStore) GetTriggersForJob(key *JobKey) ([]*Trigger, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	records := s.triggersByJob[key.String()]
	triggers := make([]*Trigger, 0, len(records))
	for _, record := range records {
		triggers = append(triggers, record.trigger.Clone())
	}
	return triggers, nil
}

// GetTriggerState returns the current state of the trigger.
func (s *MemoryStore) GetTriggerState(key *TriggerKey) (TriggerState, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	record, ok := s.triggers[key.String()]
	if !ok {
		return StateNone, triggerNotFoundError(key.String())
	}
	return record.state, nil
}

// PauseTrigger pauses the trigger with the given key.
func (s *MemoryStore) PauseTrigger(key *TriggerKey) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	record, ok := s.triggers[key.String()]
	if !ok {
		return triggerNotFoundError(key.String())
	}
	s.pauseTriggerRecord(record)
	return nil
}

func (s *MemoryStore) pauseTriggerRecord(record *triggerRecord) {
	switch record.state {
	case StateWaiting, StateAcquired:
		record.state = StatePaused
		s.queue.remove(record)
	case StateBlocked:
		record.state = StatePausedBlocked
	}
}

// PauseTriggers pauses all triggers accepted by the matcher.
func (s *MemoryStore) PauseTriggers(m Matcher[*TriggerKey]) ([]string, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	groups := make(map[string]struct{})
	if equals, ok := m.(equalsGroupMatcher); ok {
		if group, isEquals := equals.EqualsGroup(); isEquals {
			groups[group] = struct{}{}
		}
	}
	for _, record := range s.triggers {
		if m.IsMatch(record.trigger.Key()) {
			groups[record.trigger.Key().Group()] = struct{}{}
			s.pauseTriggerRecord(record)
		}
	}
	groupNames := make([]string, 0, len(groups))
	for group := range groups {
		s.pausedTriggerGroups[group] = struct{}{}
		groupNames = append(groupNames, group)
	}
	return groupNames, nil
}

// PauseJob pauses all triggers of the job with the given key.
func (s *MemoryStore) PauseJob(key *JobKey) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	for _, record := range s.triggersByJob[key.String()] {
		s.pauseTriggerRecord(record)
	}
	return nil
}

// PauseJobs pauses all triggers of all jobs accepted by the matcher.
func (s *MemoryStore) PauseJobs(m Matcher[*JobKey]) ([]string, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	groups := make(map[string]struct{})
	if equals, ok := m.(equalsGroupMatcher); ok {
		if group, isEquals := equals.EqualsGroup(); isEquals {
			groups[group] = struct{}{}
		}
	}
	for _, job := range s.jobs {
		if m.IsMatch(job.JobKey()) {
			groups[job.JobKey().Group()] = struct{}{}
			for _, record := range s.triggersByJob[job.JobKey().String()] {
				s.pauseTriggerRecord(record)
			}
		}
	}
	groupNames := make([]string, 0, len(groups))
	for group := range groups {
		s.pausedJobGroups[group] = struct{}{}
		groupNames = append(groupNames, group)
	}
	return groupNames, nil
}

// ResumeTrigger resumes the trigger with the given key.
func (s *MemoryStore) ResumeTrigger(key *TriggerKey) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	record, ok := s.triggers[key.String()]
	if !ok {
		return triggerNotFoundError(key.String())
	}
	s.resumeTriggerRecord(record)
	return nil
}

func (s *MemoryStore) resumeTriggerRecord(record *triggerRecord) {
	if record.state != StatePaused && record.state != StatePausedBlocked {
		return
	}
	if _, blocked := s.blockedJobs[record.trigger.JobKey().String()]; blocked {
		record.state = StateBlocked
		return
	}
	record.state = StateWaiting
	s.applyMisfire(record)
	if record.state == StateWaiting && !record.trigger.NextFireTime().IsZero() {
		s.queue.push(record)
		if s.signaler != nil {
			s.signaler.SignalSchedulingChange(record.trigger.NextFireTime())
		}
	}
}

// ResumeTriggers resumes all triggers accepted by the matcher.
func (s *MemoryStore) ResumeTriggers(m Matcher[*TriggerKey]) ([]string, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	groups := make(map[string]struct{})
	if equals, ok := m.(equalsGroupMatcher); ok {
		if group, isEquals := equals.EqualsGroup(); isEquals {
			groups[group] = struct{}{}
		}
	}
	for _, record := range s.triggers {
		if m.IsMatch(record.trigger.Key()) {
			groups[record.trigger.Key().Group()] = struct{}{}
			s.resumeTriggerRecord(record)
		}
	}
	groupNames := make([]string, 0, len(groups))
	for group := range groups {
		delete(s.pausedTriggerGroups, group)
		groupNames = append(groupNames, group)
	}
	return groupNames, nil
}

// ResumeJob resumes all triggers of the job with the given key.
func (s *MemoryStore) ResumeJob(key *JobKey) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	for _, record := range s.triggersByJob[key.String()] {
		s.resumeTriggerRecord(record)
	}
	return nil
}

// ResumeJobs resumes all triggers of all jobs accepted by the matcher.
func (s *MemoryStore) ResumeJobs(m Matcher[*JobKey]) ([]string, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	groups := make(map[string]struct{})
	if equals, ok := m.(equalsGroupMatcher); ok {
		if group, isEquals := equals.EqualsGroup(); isEquals {
			groups[group] = struct{}{}
		}
	}
	for _, job := range s.jobs {
		if m.IsMatch(job.JobKey()) {
			groups[job.JobKey().Group()] = struct{}{}
			for _, record := range s.triggersByJob[job.JobKey().String()] {
				s.resumeTriggerRecord(record)
			}
		}
	}
	groupNames := make([]string, 0, len(groups))
	for group := range groups {
		delete(s.pausedJobGroups, group)
		groupNames = append(groupNames, group)
	}
	return groupNames, nil
}

// PauseAll pauses all triggers and marks every group paused.
func (s *MemoryStore) PauseAll() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	for _, record := range s.triggers {
		s.pausedTriggerGroups[record.trigger.Key().Group()] = struct{}{}
		s.pauseTriggerRecord(record)
	}
	return nil
}

// ResumeAll resumes all triggers and clears all sticky paused groups.
func (s *MemoryStore) ResumeAll() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.pausedTriggerGroups = make(map[string]struct{})
	s.pausedJobGroups = make(map[string]struct{})
	for _, record := range s.triggers {
		s.resumeTriggerRecord(record)
	}
	return nil
}

// GetPausedTriggerGroups returns the names of the sticky paused trigger
// groups.
func (s *MemoryStore) GetPausedTriggerGroups() ([]string, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	groups := make([]string, 0, len(s.pausedTriggerGroups))
	for group := range s.pausedTriggerGroups {
		groups = append(groups, group)
	}
	return groups, nil
}

// AcquireNextTriggers claims up to maxCount triggers due no later than
// noLaterThan plus timeWindow.
func (s *MemoryStore) AcquireNextTriggers(noLaterThan time.Time, maxCount int,
	timeWindow time.Duration) ([]*Trigger, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	acquired := make([]*Trigger, 0, maxCount)
	excluded := make([]*triggerRecord, 0)
	batchJobs := make(map[string]struct{})
	batchEnd := noLaterThan.Add(timeWindow)

	for len(acquired) < maxCount {
		record := s.queue.pop()
		if record == nil {
			break
		}
		if record.trigger.NextFireTime().IsZero() {
			continue
		}
		if s.applyMisfire(record) {
			// the policy moved or completed the trigger
			if record.state == StateWaiting && !record.trigger.NextFireTime().IsZero() {
				s.queue.push(record)
			}
			continue
		}
		if record.trigger.NextFireTime().After(batchEnd) {
			s.queue.push(record)
			break
		}
		job, ok := s.jobs[record.trigger.JobKey().String()]
		if ok && job.Options().DisallowConcurrentExecution {
			if _, inBatch := batchJobs[job.JobKey().String()]; inBatch {
				excluded = append(excluded, record)
				continue
			}
			batchJobs[job.JobKey().String()] = struct{}{}
		}
		record.state = StateAcquired
		record.trigger.SetFireInstanceID(uuid.NewString())
		acquired = append(acquired, record.trigger.Clone())
	}
	for _, record := range excluded {
		s.queue.push(record)
	}
	return acquired, nil
}

// applyMisfire checks the trigger for a missed fire time and applies the
// misfire policy. It reports whether the trigger timing state changed.
func (s *MemoryStore) applyMisfire(record *triggerRecord) bool {
	misfireTime := time.Now().Add(-s.misfireThreshold)
	next := record.trigger.NextFireTime()
	if next.IsZero() || next.After(misfireTime) {
		return false
	}
	if record.trigger.MisfireInstruction() == MisfireIgnorePolicy {
		return false
	}
	var cal calendar.Calendar
	if record.trigger.CalendarName() != "" {
		cal = s.calendars[record.trigger.CalendarName()]
	}
	if s.signaler != nil {
		s.signaler.NotifyTriggerListenersMisfired(record.trigger.Clone())
	}
	record.trigger.UpdateAfterMisfire(cal, time.Now())
	if record.trigger.NextFireTime().IsZero() {
		record.state = StateComplete
		s.queue.remove(record)
		if s.signaler != nil {
			s.signaler.NotifySchedulerListenersFinalized(record.trigger.Clone())
		}
		return true
	}
	return !next.Equal(record.trigger.NextFireTime())
}

// ReleaseAcquiredTrigger returns a previously acquired trigger to the
// waiting state without firing it.
func (s *MemoryStore) ReleaseAcquiredTrigger(trigger *Trigger) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	record, ok := s.triggers[trigger.Key().String()]
	if !ok || record.state != StateAcquired {
		return
	}
	record.state = StateWaiting
	s.queue.push(record)
}

// TriggersFired advances the acquired triggers past their fire, moving
// each back to waiting, or to blocked or complete, and returns the fire
// bundles.
func (s *MemoryStore) TriggersFired(triggers []*Trigger) ([]*TriggerFiredResult, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	results := make([]*TriggerFiredResult, 0, len(triggers))
	for _, trigger := range triggers {
		record, ok := s.triggers[trigger.Key().String()]
		// the trigger may have been deleted or paused since acquisition
		if !ok || record.state != StateAcquired {
			results = append(results, &TriggerFiredResult{})
			continue
		}
		job, ok := s.jobs[record.trigger.JobKey().String()]
		if !ok {
			results = append(results, &TriggerFiredResult{})
			continue
		}
		var cal calendar.Calendar
		if record.trigger.CalendarName() != "" {
			cal, ok = s.calendars[record.trigger.CalendarName()]
			if !ok {
				results = append(results, &TriggerFiredResult{})
				continue
			}
		}
		scheduledFireTime := record.trigger.NextFireTime()
		prevFireTime := record.trigger.PreviousFireTime()
		record.trigger.Triggered(cal)

		blocked := false
		if job.Options().DisallowConcurrentExecution {
			blocked = true
			s.blockedJobs[job.JobKey().String()] = struct{}{}
			for _, other := range s.triggersByJob[job.JobKey().String()] {
				if other == record {
					continue
				}
				switch other.state {
				case StateWaiting, StateAcquired:
					other.state = StateBlocked
					s.queue.remove(other)
				case StatePaused:
					other.state = StatePausedBlocked
				}
			}
		}

		if record.trigger.NextFireTime().IsZero() {
			record.state = StateComplete
			if s.signaler != nil {
				s.signaler.NotifySchedulerListenersFinalized(record.trigger.Clone())
			}
		} else if blocked {
			record.state = StateBlocked
		} else {
			record.state = StateWaiting
			s.queue.push(record)
		}

		fired := record.trigger.Clone()
		fired.SetFireInstanceID(trigger.FireInstanceID())
		results = append(results, &TriggerFiredResult{
			Bundle: &TriggerFiredBundle{
				Trigger:           fired,
				JobDetail:         job.Clone(),
				Calendar:          cal,
				FireTime:          time.Now(),
				ScheduledFireTime: scheduledFireTime,
				PrevFireTime:      prevFireTime,
				NextFireTime:      record.trigger.NextFireTime(),
				JobIsBlocked:      blocked,
			},
		})
	}
	return results, nil
}

// TriggeredJobComplete finalizes the trigger after its job executed.
func (s *MemoryStore) TriggeredJobComplete(trigger *Trigger, job *JobDetail,
	instruction CompletedExecutionInstruction) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if stored, ok := s.jobs[job.JobKey().String()]; ok {
		if stored.Options().PersistJobDataAfterExecution {
			stored.jobDataMap = job.JobDataMap().Clone()
		}
		if stored.Options().DisallowConcurrentExecution {
			delete(s.blockedJobs, job.JobKey().String())
			for _, record := range s.triggersByJob[job.JobKey().String()] {
				switch record.state {
				case StateBlocked:
					record.state = StateWaiting
					if !record.trigger.NextFireTime().IsZero() {
						s.queue.push(record)
					}
				case StatePausedBlocked:
					record.state = StatePaused
				}
			}
			if s.signaler != nil {
				s.signaler.SignalSchedulingChange(time.Time{})
			}
		}
	}

	record, ok := s.triggers[trigger.Key().String()]
	if !ok {
		return
	}
	switch instruction {
	case InstructionDeleteTrigger:
		// the trigger may have been rescheduled between fire and complete;
		// only delete when it has no further fire times
		if record.trigger.NextFireTime().IsZero() {
			_, _ = s.removeTrigger(trigger.Key(), true)
		}
	case InstructionSetTriggerComplete:
		record.state = StateComplete
		s.queue.remove(record)
		if s.signaler != nil {
			s.signaler.SignalSchedulingChange(time.Time{})
		}
	case InstructionSetTriggerError:
		s.logger.Warnf("Trigger %s set to ERROR state.", trigger.Key())
		record.state = StateError
		s.queue.remove(record)
	case InstructionSetAllJobTriggersComplete:
		for _, r := range s.triggersByJob[trigger.JobKey().String()] {
			r.state = StateComplete
			s.queue.remove(r)
		}
		if s.signaler != nil {
			s.signaler.SignalSchedulingChange(time.Time{})
		}
	case InstructionSetAllJobTriggersError:
		s.logger.Warnf("All triggers of job %s set to ERROR state.", trigger.JobKey())
		for _, r := range s.triggersByJob[trigger.JobKey().String()] {
			r.state = StateError
			s.queue.remove(r)
		}
	}
}

package matcher_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/goquartz/quartz/matcher"
	"github.com/goquartz/quartz/quartz"
)

func TestGroupMatchers(t *testing.T) {
	key := quartz.NewTriggerKeyWithGroup("trigger", "GroupA")

	assert.True(t, matcher.GroupEquals[*quartz.TriggerKey]("GroupA").IsMatch(key))
	assert.False(t, matcher.GroupEquals[*quartz.TriggerKey]("GroupB").IsMatch(key))
	assert.True(t, matcher.GroupStartsWith[*quartz.TriggerKey]("Group").IsMatch(key))
	assert.False(t, matcher.GroupStartsWith[*quartz.TriggerKey]("A").IsMatch(key))
	assert.True(t, matcher.GroupEndsWith[*quartz.TriggerKey]("pA").IsMatch(key))
	assert.True(t, matcher.GroupContains[*quartz.TriggerKey]("roup").IsMatch(key))
	assert.False(t, matcher.GroupContains[*quartz.TriggerKey]("xyz").IsMatch(key))
	assert.True(t, matcher.AnyGroup[*quartz.TriggerKey]().IsMatch(key))
}

func TestGroupMatcher_EqualsGroup(t *testing.T) {
	group, isEquals := matcher.GroupEquals[*quartz.TriggerKey]("GroupA").EqualsGroup()
	assert.True(t, isEquals)
	assert.Equal(t, "GroupA", group)

	_, isEquals = matcher.GroupStartsWith[*quartz.TriggerKey]("Group").EqualsGroup()
	assert.False(t, isEquals)
}

func TestNameAndKeyMatchers(t *testing.T) {
	key := quartz.NewJobKeyWithGroup("job", "GroupA")

	assert.True(t, matcher.NameEquals[*quartz.JobKey]("job").IsMatch(key))
	assert.False(t, matcher.NameEquals[*quartz.JobKey]("other").IsMatch(key))

	assert.True(t, matcher.KeyEquals[*quartz.JobKey](key).IsMatch(key))
	assert.False(t, matcher.KeyEquals[*quartz.JobKey](key).IsMatch(
		quartz.NewJobKeyWithGroup("job", "GroupB")))

	and := matcher.NewAnd[*quartz.JobKey](
		matcher.GroupEquals[*quartz.JobKey]("GroupA"),
		matcher.NameEquals[*quartz.JobKey]("job"))
	assert.True(t, and.IsMatch(key))
	assert.False(t, and.IsMatch(quartz.NewJobKeyWithGroup("nope", "GroupA")))
}

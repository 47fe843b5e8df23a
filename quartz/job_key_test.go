package quartz_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/goquartz/quartz/quartz"
)

func TestJobKey(t *testing.T) {
	key := quartz.NewJobKey("job")
	assert.Equal(t, "job", key.Name())
	assert.Equal(t, quartz.DefaultGroup, key.Group())
	assert.Equal(t, "DEFAULT.job", key.String())
	assert.NoError(t, key.Validate())

	withGroup := quartz.NewJobKeyWithGroup("job", "group")
	assert.Equal(t, "group", withGroup.Group())
	assert.False(t, key.Equals(withGroup))
	assert.True(t, withGroup.Equals(quartz.NewJobKeyWithGroup("job", "group")))

	// an empty group is normalized to the default group
	normalized := quartz.NewJobKeyWithGroup("job", "")
	assert.Equal(t, quartz.DefaultGroup, normalized.Group())
	assert.True(t, key.Equals(normalized))
}

func TestJobKey_Validate(t *testing.T) {
	err := quartz.NewJobKey("").Validate()
	assert.ErrorIs(t, err, quartz.ErrIllegalArgument)
}

func TestTriggerKey(t *testing.T) {
	key := quartz.NewTriggerKey("trigger")
	assert.Equal(t, "trigger", key.Name())
	assert.Equal(t, quartz.DefaultGroup, key.Group())
	assert.NoError(t, key.Validate())

	withGroup := quartz.NewTriggerKeyWithGroup("trigger", "")
	assert.True(t, key.Equals(withGroup))

	err := quartz.NewTriggerKey("").Validate()
	assert.ErrorIs(t, err, quartz.ErrIllegalArgument)
}

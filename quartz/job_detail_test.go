package quartz_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goquartz/quartz/quartz"
)

type noopJob struct{}

func (noopJob) Execute(_ context.Context, _ *quartz.ExecutionContext) error {
	return nil
}

func (noopJob) Description() string { return "noopJob" }

func TestJobDetail_Defaults(t *testing.T) {
	job := quartz.NewJobDetail(quartz.NewJobKey("job"), "noop")
	opts := job.Options()
	assert.False(t, opts.Durable)
	assert.False(t, opts.RequestsRecovery)
	assert.False(t, opts.DisallowConcurrentExecution)
	assert.False(t, opts.PersistJobDataAfterExecution)
	assert.NoError(t, job.Validate())
}

func TestJobDetail_Validate(t *testing.T) {
	err := quartz.NewJobDetail(quartz.NewJobKey(""), "noop").Validate()
	assert.ErrorIs(t, err, quartz.ErrIllegalArgument)

	err = quartz.NewJobDetail(quartz.NewJobKey("job"), "").Validate()
	assert.ErrorIs(t, err, quartz.ErrIllegalArgument)
}

func TestJobDetail_CapabilitiesWin(t *testing.T) {
	registry := quartz.NewJobRegistry()
	require.NoError(t, registry.RegisterWithCapabilities("exclusive",
		func() quartz.Job { return noopJob{} },
		quartz.JobCapabilities{
			DisallowConcurrentExecution:  true,
			PersistJobDataAfterExecution: true,
		}))

	// the capability declared on the type wins over the explicit flag
	job := quartz.NewJobDetailWithOptions(quartz.NewJobKey("job"), "exclusive",
		&quartz.JobDetailOptions{DisallowConcurrentExecution: false})
	job.ResolveCapabilities(registry)
	assert.True(t, job.Options().DisallowConcurrentExecution)
	assert.True(t, job.Options().PersistJobDataAfterExecution)

	// flags of unregistered capabilities stay as configured
	plain := quartz.NewJobDetailWithOptions(quartz.NewJobKey("job2"), "plain",
		&quartz.JobDetailOptions{DisallowConcurrentExecution: true})
	plain.ResolveCapabilities(registry)
	assert.True(t, plain.Options().DisallowConcurrentExecution)
}

func TestJobRegistry(t *testing.T) {
	registry := quartz.NewJobRegistry()
	require.NoError(t, registry.Register("noop",
		func() quartz.Job { return noopJob{} }))

	job, err := registry.NewJob("noop")
	require.NoError(t, err)
	assert.Equal(t, "noopJob", job.Description())

	_, err = registry.NewJob("unknown")
	assert.ErrorIs(t, err, quartz.ErrStoreFatal)

	err = registry.Register("", func() quartz.Job { return noopJob{} })
	assert.ErrorIs(t, err, quartz.ErrIllegalArgument)
	err = registry.Register("nil", nil)
	assert.ErrorIs(t, err, quartz.ErrIllegalArgument)

	assert.Equal(t, []string{"noop"}, registry.TypeNames())
}

func TestJobDataMap(t *testing.T) {
	data := quartz.JobDataMap{"s": "text", "i": 42, "b": true, "n": int64(7)}

	s, ok := data.GetString("s")
	assert.True(t, ok)
	assert.Equal(t, "text", s)

	i, ok := data.GetInt("i")
	assert.True(t, ok)
	assert.Equal(t, 42, i)

	n, ok := data.GetInt64("n")
	assert.True(t, ok)
	assert.Equal(t, int64(7), n)

	b, ok := data.GetBool("b")
	assert.True(t, ok)
	assert.True(t, b)

	_, ok = data.GetString("absent")
	assert.False(t, ok)

	merged := data.Merged(quartz.JobDataMap{"s": "override", "extra": "x"})
	s, _ = merged.GetString("s")
	assert.Equal(t, "override", s)
	assert.Len(t, merged, 5)

	assert.Error(t, data.CheckStringOnly())
	assert.NoError(t, quartz.JobDataMap{"a": "1"}.CheckStringOnly())
}

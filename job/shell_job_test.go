package job_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goquartz/quartz/job"
	"github.com/goquartz/quartz/quartz"
)

func TestShellJob_Execute(t *testing.T) {
	type args struct {
		Cmd      string
		ExitCode int
		Stdout   string
		Stderr   string
	}

	tests := []struct {
		name string
		args args
	}{
		{
			name: "test stdout",
			args: args{
				Cmd:      "echo -n ok",
				ExitCode: 0,
				Stdout:   "ok",
				Stderr:   "",
			},
		},
		{
			name: "test stderr",
			args: args{
				Cmd:      "echo -n err >&2",
				ExitCode: 0,
				Stdout:   "",
				Stderr:   "err",
			},
		},
		{
			name: "test combine",
			args: args{
				Cmd:      "echo -n ok && sleep 0.01 && echo -n err >&2",
				ExitCode: 0,
				Stdout:   "ok",
				Stderr:   "err",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sh := job.NewShellJob(tt.args.Cmd)
			_ = sh.Execute(context.TODO(), nil)

			assert.Equal(t, tt.args.ExitCode, sh.ExitCode())
			assert.Equal(t, tt.args.Stderr, sh.Stderr())
			assert.Equal(t, tt.args.Stdout, sh.Stdout())
			assert.Equal(t, job.StatusOK, sh.JobStatus())
		})
	}

	// invalid command
	sh := job.NewShellJob("invalid_command")
	err := sh.Execute(context.Background(), nil)
	assert.Error(t, err)
	assert.Equal(t, 127, sh.ExitCode())
	assert.Equal(t, job.StatusFailure, sh.JobStatus())
}

func TestShellJob_WithCallback(t *testing.T) {
	resultChan := make(chan string, 1)
	shJob := job.NewShellJobWithCallback(
		"echo -n ok",
		func(_ context.Context, job *job.ShellJob) {
			resultChan <- job.Stdout()
		},
	)
	_ = shJob.Execute(context.Background(), nil)

	assert.Equal(t, "", shJob.Stderr())
	assert.Equal(t, "ok", shJob.Stdout())
	assert.Equal(t, "ok", <-resultChan)
}

// TestShellJob_CommandFromDataMap runs the job through a scheduler so
// that the execution context carries a per-fire command override.
func TestShellJob_CommandFromDataMap(t *testing.T) {
	sh := job.NewShellJob("echo -n default")

	sched, err := quartz.NewStdSchedulerWithOptions(quartz.StdSchedulerOptions{
		IdleWaitTime: 50 * time.Millisecond,
	}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, sched.JobRegistry().Register("shell",
		func() quartz.Job { return sh }))
	require.NoError(t, sched.Start(context.Background()))
	defer sched.Shutdown(true)

	detail := quartz.NewJobDetailWithOptions(quartz.NewJobKey("shell"), "shell",
		&quartz.JobDetailOptions{Durable: true})
	require.NoError(t, sched.AddJob(detail))
	require.NoError(t, sched.TriggerJob(detail.JobKey(),
		quartz.JobDataMap{"command": "echo -n override"}))

	assert.Eventually(t, func() bool { return sh.Stdout() == "override" },
		5*time.Second, 10*time.Millisecond)
}

// SPDX-License-Identifier: Apache-2.0

package executor_test

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/kusari-oss/mend/internal/core/executor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandExecutor(t *testing.T) {
	// Skip tests if running on Windows because the commands are different
	if runtime.GOOS == "windows" {
		t.Skip("Skipping test on Windows")
	}

	tempDir := t.TempDir()

	tests := []struct {
		name        string
		argv        []string
		workingDir  string
		stdin       []byte
		shouldError bool
		check       func(t *testing.T, result *executor.CommandResult)
	}{
		{
			name: "echo command",
			argv: []string{"echo", "Hello, World!"},
			check: func(t *testing.T, result *executor.CommandResult) {
				assert.Equal(t, "Hello, World!\n", string(result.Stdout))
				assert.Equal(t, 0, result.ExitStatus)
			},
		},
		{
			name:       "command with working directory",
			argv:       []string{"pwd"},
			workingDir: tempDir,
			check: func(t *testing.T, result *executor.CommandResult) {
				assert.Contains(t, string(result.Stdout), tempDir)
			},
		},
		{
			name:  "stdin is piped",
			argv:  []string{"cat"},
			stdin: []byte("piped content"),
			check: func(t *testing.T, result *executor.CommandResult) {
				assert.Equal(t, "piped content", string(result.Stdout))
			},
		},
		{
			name: "non-zero exit is reported, not returned",
			argv: []string{"sh", "-c", "echo out; echo err >&2; exit 3"},
			check: func(t *testing.T, result *executor.CommandResult) {
				assert.Equal(t, 3, result.ExitStatus)
				assert.Equal(t, "out\n", string(result.Stdout))
				assert.Equal(t, "err\n", string(result.Stderr))
				assert.Equal(t, "out\nerr\n", string(result.Combined()))
			},
		},
		{
			name:        "missing binary",
			argv:        []string{"mend-definitely-not-a-binary"},
			shouldError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec, err := executor.NewCommandExecutor(tt.argv)
			require.NoError(t, err)
			exec.WithWorkingDir(tt.workingDir).WithStdin(tt.stdin)

			result, err := exec.Execute(context.Background())
			if tt.shouldError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, result)
		})
	}
}

func TestCommandExecutor_EmptyCommand(t *testing.T) {
	_, err := executor.NewCommandExecutor(nil)
	assert.Error(t, err)
}

func TestCommandExecutor_ContextDeadline(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Skipping test on Windows")
	}

	exec, err := executor.NewCommandExecutor([]string{"sleep", "10"})
	require.NoError(t, err)
	exec.WithWaitDelay(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	result, err := exec.Execute(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, -1, result.ExitStatus)
	assert.Less(t, time.Since(start), 5*time.Second, "process is killed at the deadline")
}

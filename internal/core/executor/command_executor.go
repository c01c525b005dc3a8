// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultWaitDelay bounds how long a cancelled command may keep its output pipes open
const DefaultWaitDelay = 2 * time.Second

// CommandExecutor handles running external commands
type CommandExecutor struct {
	command     string
	args        []string
	workingDir  string
	environment []string
	stdin       []byte
	waitDelay   time.Duration
	logger      *zap.Logger
}

// CommandResult holds the result of command execution
type CommandResult struct {
	Stdout     []byte
	Stderr     []byte
	ExitStatus int
	Duration   time.Duration
}

// Combined returns stdout followed by stderr
func (r *CommandResult) Combined() []byte {
	if len(r.Stderr) == 0 {
		return r.Stdout
	}
	combined := make([]byte, 0, len(r.Stdout)+len(r.Stderr)+1)
	combined = append(combined, r.Stdout...)
	if len(r.Stdout) > 0 && !bytes.HasSuffix(r.Stdout, []byte("\n")) {
		combined = append(combined, '\n')
	}
	return append(combined, r.Stderr...)
}

// NewCommandExecutor creates a new command executor for argv (program followed by args)
func NewCommandExecutor(argv []string) (*CommandExecutor, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, fmt.Errorf("command cannot be empty")
	}
	return &CommandExecutor{
		command:   argv[0],
		args:      argv[1:],
		waitDelay: DefaultWaitDelay,
		logger:    zap.NewNop(),
	}, nil
}

// WithWorkingDir sets the working directory
func (e *CommandExecutor) WithWorkingDir(dir string) *CommandExecutor {
	e.workingDir = dir
	return e
}

// WithEnvironment sets environment variables
func (e *CommandExecutor) WithEnvironment(env []string) *CommandExecutor {
	e.environment = env
	return e
}

// WithStdin feeds data to the command's standard input
func (e *CommandExecutor) WithStdin(data []byte) *CommandExecutor {
	e.stdin = data
	return e
}

// WithWaitDelay overrides DefaultWaitDelay
func (e *CommandExecutor) WithWaitDelay(d time.Duration) *CommandExecutor {
	e.waitDelay = d
	return e
}

// WithLogger sets the logger used for debug output
func (e *CommandExecutor) WithLogger(logger *zap.Logger) *CommandExecutor {
	if logger != nil {
		e.logger = logger
	}
	return e
}

// String renders the command line for logs and errors
func (e *CommandExecutor) String() string {
	return strings.TrimSpace(e.command + " " + strings.Join(e.args, " "))
}

// Execute runs the command. A non-zero exit status is not an error: it is reported in
// CommandResult.ExitStatus. Errors are returned when the command cannot be started or
// when ctx ends before it finishes, in which case the process is killed and reaped.
func (e *CommandExecutor) Execute(ctx context.Context) (*CommandResult, error) {
	cmd := exec.CommandContext(ctx, e.command, e.args...)
	cmd.WaitDelay = e.waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if e.stdin != nil {
		cmd.Stdin = bytes.NewReader(e.stdin)
	}
	if e.workingDir != "" {
		cmd.Dir = e.workingDir
	}
	if len(e.environment) > 0 {
		cmd.Env = e.environment
	}

	e.logger.Debug("executing command", zap.String("command", e.String()), zap.String("dir", e.workingDir))

	start := time.Now()
	err := cmd.Run()
	result := &CommandResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		result.ExitStatus = -1
		return result, fmt.Errorf("command %q interrupted: %w", e.command, ctxErr)
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return result, nil
	case errors.As(err, &exitErr):
		result.ExitStatus = exitErr.ExitCode()
		return result, nil
	default:
		result.ExitStatus = -1
		return result, fmt.Errorf("error running %q: %w", e.command, err)
	}
}

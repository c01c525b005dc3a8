// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"fmt"
	"time"
)

// CheckTimeoutError is recorded when a check exceeds its timeout
type CheckTimeoutError struct {
	Check   string
	Timeout time.Duration
}

func (e *CheckTimeoutError) Error() string {
	return fmt.Sprintf("check %s timed out after %s", e.Check, e.Timeout)
}

// CheckExecutionError is recorded when a check could not run to completion
type CheckExecutionError struct {
	Check string
	Err   error
}

func (e *CheckExecutionError) Error() string {
	return fmt.Sprintf("check %s failed to execute: %v", e.Check, e.Err)
}

// Unwrap returns the underlying error
func (e *CheckExecutionError) Unwrap() error {
	return e.Err
}

// SPDX-License-Identifier: Apache-2.0

package modifier

import (
	"errors"
	"fmt"
)

// ErrNoChange is reported when the proposed content equals the current content
var ErrNoChange = errors.New("proposed content is identical to the current content")

// BackupWriteError means the pre-modification snapshot could not be written.
// The target file is left untouched.
type BackupWriteError struct {
	Path string
	Err  error
}

func (e *BackupWriteError) Error() string {
	return fmt.Sprintf("error writing backup for %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error
func (e *BackupWriteError) Unwrap() error {
	return e.Err
}

// ValidationFailureError reports a rejected modification that was rolled back.
// Err is nil when the validator simply returned false.
type ValidationFailureError struct {
	Path string
	Err  error
}

func (e *ValidationFailureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("modification of %s rolled back: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("modification of %s rolled back: content failed validation", e.Path)
}

// Unwrap returns the underlying error
func (e *ValidationFailureError) Unwrap() error {
	return e.Err
}

// RollbackError means the original content could not be restored
type RollbackError struct {
	Path   string
	Backup string
	Err    error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("error restoring %s from %s: %v", e.Path, e.Backup, e.Err)
}

// Unwrap returns the underlying error
func (e *RollbackError) Unwrap() error {
	return e.Err
}

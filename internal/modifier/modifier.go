// SPDX-License-Identifier: Apache-2.0

package modifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/kusari-oss/mend/internal/core/models"
	"github.com/kusari-oss/mend/internal/metrics"
	"go.uber.org/zap"
)

// DefaultRetain is the number of backups kept per path
const DefaultRetain = 5

// Validator is a cheap, deterministic check of proposed content
type Validator func(content []byte) bool

// ApplyResult describes the outcome of one modification
type ApplyResult struct {
	Path    string
	Outcome models.FixOutcome
	Record  *models.BackupRecord
	// Err explains a non-successful outcome
	Err error
}

// Modifier applies file edits transactionally. Every edit of a path happens under that
// path's lock: backup, write, validate, then commit or roll back.
type Modifier struct {
	backupDir string
	retain    int
	locks     *pathLocks
	logger    *zap.Logger
	metrics   *metrics.Recorder
	now       func() time.Time
}

// Option configures a Modifier
type Option func(*Modifier)

// WithRetain sets how many backups are kept per path
func WithRetain(n int) Option {
	return func(m *Modifier) {
		if n > 0 {
			m.retain = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(m *Modifier) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics records rollbacks and backups
func WithMetrics(recorder *metrics.Recorder) Option {
	return func(m *Modifier) {
		m.metrics = recorder
	}
}

// WithClock replaces the time source used for backup names and records
func WithClock(now func() time.Time) Option {
	return func(m *Modifier) {
		if now != nil {
			m.now = now
		}
	}
}

// New creates a modifier storing backups under backupDir
func New(backupDir string, opts ...Option) *Modifier {
	m := &Modifier{
		backupDir: backupDir,
		retain:    DefaultRetain,
		locks:     newPathLocks(),
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// BackupDir returns the directory holding backups
func (m *Modifier) BackupDir() string {
	return m.backupDir
}

// Apply replaces the content of path. A rejected or failed write restores the original
// bytes exactly and reports REJECTED_BY_VALIDATION. The returned error is non-nil only
// when the modification could not be attempted safely (lock, backup) or the rollback
// itself failed.
func (m *Modifier) Apply(ctx context.Context, path string, content []byte, validate Validator) (*ApplyResult, error) {
	absPath, err := absolute(path)
	if err != nil {
		return nil, err
	}

	release, err := m.locks.acquire(ctx, absPath)
	if err != nil {
		return nil, fmt.Errorf("error acquiring lock for %s: %w", absPath, err)
	}
	defer release()

	log := m.logger.With(zap.String("path", absPath))

	original, existed, mode, err := readCurrent(absPath)
	if err != nil {
		return nil, &BackupWriteError{Path: absPath, Err: err}
	}

	if existed && bytes.Equal(original, content) {
		return &ApplyResult{Path: absPath, Outcome: models.OutcomeFailed, Err: ErrNoChange}, nil
	}

	record, err := m.writeBackup(absPath, original, existed, mode)
	if err != nil {
		log.Error("backup failed, file left untouched", zap.Error(err))
		return nil, &BackupWriteError{Path: absPath, Err: err}
	}
	m.metrics.BackupWritten()
	result := &ApplyResult{Path: absPath, Record: record}

	var rejection error
	if err := writeContent(absPath, content, mode, existed); err != nil {
		rejection = &ValidationFailureError{Path: absPath, Err: err}
	} else if ok, err := runValidator(validate, content); err != nil {
		rejection = &ValidationFailureError{Path: absPath, Err: err}
	} else if !ok {
		rejection = &ValidationFailureError{Path: absPath}
	}

	if rejection != nil {
		log.Info("modification rejected, rolling back", zap.Error(rejection))
		m.metrics.Rollback()
		result.Outcome = models.OutcomeRejectedByValidation
		result.Err = rejection
		if err := m.rollback(record, original); err != nil {
			log.Error("rollback failed", zap.Error(err))
			return result, err
		}
		return result, nil
	}

	result.Outcome = models.OutcomeSucceeded
	if err := m.prune(absPath); err != nil {
		log.Warn("error pruning backups", zap.Error(err))
	}
	log.Debug("modification committed", zap.String("backup", record.BackupPath))
	return result, nil
}

// Restore puts a backup back in place. The current content is backed up first so the
// restore can itself be undone.
func (m *Modifier) Restore(ctx context.Context, record models.BackupRecord) (*models.BackupRecord, error) {
	release, err := m.locks.acquire(ctx, record.OriginalPath)
	if err != nil {
		return nil, fmt.Errorf("error acquiring lock for %s: %w", record.OriginalPath, err)
	}
	defer release()

	snapshot, err := readBackup(&record)
	if err != nil {
		return nil, err
	}

	current, existed, mode, err := readCurrent(record.OriginalPath)
	if err != nil {
		return nil, &BackupWriteError{Path: record.OriginalPath, Err: err}
	}
	safety, err := m.writeBackup(record.OriginalPath, current, existed, mode)
	if err != nil {
		return nil, &BackupWriteError{Path: record.OriginalPath, Err: err}
	}
	m.metrics.BackupWritten()

	if err := m.rollback(&record, snapshot); err != nil {
		return nil, err
	}
	m.logger.Info("backup restored", zap.String("path", record.OriginalPath), zap.String("backup", record.BackupPath))

	if err := m.prune(record.OriginalPath); err != nil {
		m.logger.Warn("error pruning backups", zap.String("path", record.OriginalPath), zap.Error(err))
	}
	return safety, nil
}

// rollback restores the state captured in record. The on-disk backup is preferred; the
// in-memory copy is used when the backup cannot be read or fails its hash check.
func (m *Modifier) rollback(record *models.BackupRecord, original []byte) error {
	if !record.Existed {
		if err := os.Remove(record.OriginalPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return &RollbackError{Path: record.OriginalPath, Backup: record.BackupPath, Err: err}
		}
		return nil
	}

	content, err := readBackup(record)
	if err != nil {
		m.logger.Warn("using in-memory copy for rollback", zap.String("path", record.OriginalPath), zap.Error(err))
		content = original
	}

	if err := os.WriteFile(record.OriginalPath, content, record.Mode.Perm()); err != nil {
		return &RollbackError{Path: record.OriginalPath, Backup: record.BackupPath, Err: err}
	}
	if err := os.Chmod(record.OriginalPath, record.Mode.Perm()); err != nil {
		return &RollbackError{Path: record.OriginalPath, Backup: record.BackupPath, Err: err}
	}
	return nil
}

// readCurrent reads a file. A missing file is not an error.
func readCurrent(path string) (content []byte, existed bool, mode os.FileMode, err error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, 0644, nil
		}
		return nil, false, 0, fmt.Errorf("error reading %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, false, 0, fmt.Errorf("%s is a directory", path)
	}

	content, err = os.ReadFile(path)
	if err != nil {
		return nil, false, 0, fmt.Errorf("error reading %s: %w", path, err)
	}
	return content, true, info.Mode().Perm(), nil
}

// writeContent writes in place so the file keeps its identity and mode
func writeContent(path string, content []byte, mode os.FileMode, existed bool) error {
	if !existed {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("error creating directories: %w", err)
		}
	}
	if err := os.WriteFile(path, content, mode); err != nil {
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	return nil
}

// runValidator contains validator panics
func runValidator(validate Validator, content []byte) (ok bool, err error) {
	if validate == nil {
		return true, nil
	}
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = fmt.Errorf("validator panicked: %v", r)
		}
	}()
	return validate(content), nil
}

func absolute(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("error resolving path %s: %w", path, err)
	}
	return filepath.Clean(absPath), nil
}

// SPDX-License-Identifier: Apache-2.0

package modifier

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kusari-oss/mend/internal/core/format"
	"github.com/kusari-oss/mend/internal/core/models"
)

const (
	backupExt = ".bak"
	recordExt = ".yaml"
	// backupPerm keeps snapshots readable by the owner only
	backupPerm = 0600
	dirPerm    = 0700
)

// hashContent returns the content hash stored in backup records
func hashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// pathDir returns the backup directory for one original path
func (m *Modifier) pathDir(absPath string) string {
	sum := sha256.Sum256([]byte(absPath))
	return filepath.Join(m.backupDir, hex.EncodeToString(sum[:8]))
}

// writeBackup snapshots content before a modification. Nothing is left behind on failure.
func (m *Modifier) writeBackup(absPath string, content []byte, existed bool, mode os.FileMode) (*models.BackupRecord, error) {
	dir := m.pathDir(absPath)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("error creating backup directory: %w", err)
	}

	created := m.now()
	var (
		file       *os.File
		backupPath string
		err        error
	)
	// Names are zero padded nanoseconds so they sort chronologically
	for stamp := created.UnixNano(); ; stamp++ {
		backupPath = filepath.Join(dir, fmt.Sprintf("%020d%s", stamp, backupExt))
		file, err = os.OpenFile(backupPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, backupPerm)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("error creating backup file: %w", err)
		}
	}

	if _, err := file.Write(content); err != nil {
		file.Close()
		os.Remove(backupPath)
		return nil, fmt.Errorf("error writing backup file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(backupPath)
		return nil, fmt.Errorf("error syncing backup file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(backupPath)
		return nil, fmt.Errorf("error closing backup file: %w", err)
	}

	record := &models.BackupRecord{
		OriginalPath: absPath,
		BackupPath:   backupPath,
		ContentHash:  hashContent(content),
		CreatedAt:    created,
		Existed:      existed,
		Mode:         mode,
	}

	data, err := format.Marshal(record, format.YAML)
	if err == nil {
		err = os.WriteFile(recordPath(backupPath), data, backupPerm)
	}
	if err != nil {
		os.Remove(backupPath)
		os.Remove(recordPath(backupPath))
		return nil, fmt.Errorf("error writing backup record: %w", err)
	}

	return record, nil
}

// readBackup returns the snapshot bytes after checking them against the record hash
func readBackup(record *models.BackupRecord) ([]byte, error) {
	content, err := os.ReadFile(record.BackupPath)
	if err != nil {
		return nil, fmt.Errorf("error reading backup: %w", err)
	}
	if hash := hashContent(content); hash != record.ContentHash {
		return nil, fmt.Errorf("backup %s is corrupt: hash %s does not match %s", record.BackupPath, hash, record.ContentHash)
	}
	return content, nil
}

// prune removes the oldest backups of one path beyond the retention count
func (m *Modifier) prune(absPath string) error {
	backups, err := listBackupFiles(m.pathDir(absPath))
	if err != nil {
		return err
	}
	if len(backups) <= m.retain {
		return nil
	}

	var errs []error
	for _, backupPath := range backups[:len(backups)-m.retain] {
		if err := os.Remove(backupPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
		if err := os.Remove(recordPath(backupPath)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// listBackupFiles returns the backup files in dir, oldest first
func listBackupFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("error reading backup directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), backupExt) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func recordPath(backupPath string) string {
	return strings.TrimSuffix(backupPath, backupExt) + recordExt
}

// ReadRecord loads the record stored next to a backup file
func ReadRecord(backupPath string) (*models.BackupRecord, error) {
	var record models.BackupRecord
	if err := format.ParseFile(recordPath(backupPath), &record); err != nil {
		return nil, fmt.Errorf("error reading backup record for %s: %w", backupPath, err)
	}
	return &record, nil
}

// Backups returns the retained backups of a path, newest first
func (m *Modifier) Backups(path string) ([]models.BackupRecord, error) {
	absPath, err := absolute(path)
	if err != nil {
		return nil, err
	}
	return readRecords(m.pathDir(absPath))
}

// ListAll returns every retained backup, newest first
func (m *Modifier) ListAll() ([]models.BackupRecord, error) {
	entries, err := os.ReadDir(m.backupDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("error reading backup directory: %w", err)
	}

	var all []models.BackupRecord
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		records, err := readRecords(filepath.Join(m.backupDir, entry.Name()))
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return all, nil
}

func readRecords(dir string) ([]models.BackupRecord, error) {
	files, err := listBackupFiles(dir)
	if err != nil {
		return nil, err
	}

	records := make([]models.BackupRecord, 0, len(files))
	for i := len(files) - 1; i >= 0; i-- {
		record, err := ReadRecord(files[i])
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, nil
}

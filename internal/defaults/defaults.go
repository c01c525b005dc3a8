// SPDX-License-Identifier: Apache-2.0

package defaults

import (
	"embed"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// ConfigFileName is the embedded default configuration
const ConfigFileName = "config.yaml"

//go:embed config.yaml templates/*
var embeddedFiles embed.FS

// Manager manages access to default files
type Manager struct {
	force bool
}

// NewManager creates a new defaults manager. With force existing files are overwritten.
func NewManager(force bool) *Manager {
	return &Manager{force: force}
}

// Config returns the embedded default configuration
func (m *Manager) Config() ([]byte, error) {
	return embeddedFiles.ReadFile(ConfigFileName)
}

// CopyDefaults writes the default configuration to configPath and the default templates
// into templatesDir. It returns the files it wrote; existing files are left alone unless
// the manager was created with force.
func (m *Manager) CopyDefaults(configPath, templatesDir string) ([]string, error) {
	var written []string

	ok, err := m.copyEmbeddedFile(ConfigFileName, configPath)
	if err != nil {
		return nil, fmt.Errorf("error copying default config: %w", err)
	}
	if ok {
		written = append(written, configPath)
	}

	files, err := m.copyEmbeddedDir("templates", templatesDir)
	if err != nil {
		return written, fmt.Errorf("error copying templates: %w", err)
	}
	return append(written, files...), nil
}

// copyEmbeddedDir recursively copies files from the embedded filesystem to the target directory
func (m *Manager) copyEmbeddedDir(srcDir, dstDir string) ([]string, error) {
	entries, err := embeddedFiles.ReadDir(srcDir)
	if err != nil {
		return nil, fmt.Errorf("error reading directory %s: %w", srcDir, err)
	}

	var written []string
	for _, entry := range entries {
		// embed paths always use forward slashes
		srcPath := srcDir + "/" + entry.Name()
		dstPath := filepath.Join(dstDir, entry.Name())

		if entry.IsDir() {
			files, err := m.copyEmbeddedDir(srcPath, dstPath)
			if err != nil {
				return written, err
			}
			written = append(written, files...)
			continue
		}

		ok, err := m.copyEmbeddedFile(srcPath, dstPath)
		if err != nil {
			return written, err
		}
		if ok {
			written = append(written, dstPath)
		}
	}
	return written, nil
}

// copyEmbeddedFile copies a single file from the embedded filesystem to the target path.
// It reports false when the target exists and was kept.
func (m *Manager) copyEmbeddedFile(srcPath, dstPath string) (bool, error) {
	if !m.force {
		if _, err := os.Stat(dstPath); err == nil {
			return false, nil
		}
	}

	src, err := embeddedFiles.Open(srcPath)
	if err != nil {
		return false, fmt.Errorf("error opening source file %s: %w", srcPath, err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return false, fmt.Errorf("error creating directory for %s: %w", dstPath, err)
	}

	dst, err := os.Create(dstPath)
	if err != nil {
		return false, fmt.Errorf("error creating destination file %s: %w", dstPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return false, fmt.Errorf("error copying file content: %w", err)
	}
	return true, nil
}

// ListEmbeddedFiles returns a list of all embedded default files
func (m *Manager) ListEmbeddedFiles() ([]string, error) {
	var files []string

	err := fs.WalkDir(embeddedFiles, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking embedded files: %w", err)
	}

	return files, nil
}

// SPDX-License-Identifier: Apache-2.0

package cmd_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kusari-oss/mend/cmd/mend/cmd"
	"github.com/kusari-oss/mend/internal/core/format"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lowercaseConfig = `
checks:
  - name: shout
    command: ["grep", "-l", "[a-z]", "{{.Files}}"]
    stage: fast
    file_patterns: ["*.txt"]
    output:
      format: lines
      kind: formatting
      pattern: file is not upper case
fixers:
  - name: upper
    type: command
    kinds: [formatting]
    confidence: 0.9
    file_patterns: ["*.txt"]
    command: ["tr", "a-z", "A-Z"]
    validator: nonempty
`

// execute runs the root command with args and returns its output
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := cmd.NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--log-level", "error"))
	err := root.Execute()
	return out.String(), err
}

// writeProject creates a project with notes.txt and the given .mend/config.yaml
func writeProject(t *testing.T, config string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".mend"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".mend", "config.yaml"), []byte(config), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello\n"), 0644))
	return dir
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var exitErr *cmd.ExitError
	require.True(t, errors.As(err, &exitErr), "expected ExitError, got %v", err)
	return exitErr.Code
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "mend dev")
}

func TestInitAndWaves(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, "init", "--project-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(dir, ".mend", "config.yaml"))
	assert.FileExists(t, filepath.Join(dir, ".mend", "templates", "SECURITY.md.tmpl"))

	out, err = execute(t, "init", "--project-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "already initialized")

	out, err = execute(t, "waves", "--project-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "fast:")
	assert.Contains(t, out, "wave 1: gofmt, security-policy")
	assert.Contains(t, out, "wave 2: vet")
	assert.Contains(t, out, "comprehensive:")
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name     string
		command  string
		wantExit int
	}{
		{name: "passing check", command: "true"},
		{name: "failing check", command: "false", wantExit: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeProject(t, `
checks:
  - name: smoke
    command: ["`+tt.command+`"]
    output:
      format: exitcode
`)
			out, err := execute(t, "check", "--project-dir", dir)
			assert.Contains(t, out, "smoke")
			if tt.wantExit == 0 {
				require.NoError(t, err)
				return
			}
			assert.Equal(t, tt.wantExit, exitCode(t, err))
		})
	}
}

func TestCheck_Format(t *testing.T) {
	dir := writeProject(t, lowercaseConfig)

	out, err := execute(t, "check", "--project-dir", dir, "--format", "json")
	assert.Equal(t, 1, exitCode(t, err))
	assert.Contains(t, out, `"baseline": 1`)
	assert.Contains(t, out, `"file_path": "notes.txt"`)

	_, err = execute(t, "check", "--project-dir", dir, "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestRun_Converges(t *testing.T) {
	dir := writeProject(t, lowercaseConfig)
	reportPath := filepath.Join(dir, "report.yaml")
	metricsPath := filepath.Join(dir, "mend.prom")

	out, err := execute(t, "run", "--project-dir", dir, "--report", reportPath, "--metrics-file", metricsPath)
	require.NoError(t, err)
	assert.Contains(t, out, "CONVERGED")

	content, err := os.ReadFile(filepath.Join(dir, "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "HELLO\n", string(content))

	var saved map[string]interface{}
	require.NoError(t, format.ParseFile(reportPath, &saved))
	assert.Equal(t, "CONVERGED", saved["status"])
	assert.FileExists(t, metricsPath)

	out, err = execute(t, "backups", "list", "--project-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(dir, "notes.txt"))
}

func TestRun_DryRunStalls(t *testing.T) {
	dir := writeProject(t, lowercaseConfig)

	_, err := execute(t, "run", "--project-dir", dir, "--dry-run")
	assert.Equal(t, 3, exitCode(t, err))

	content, err := os.ReadFile(filepath.Join(dir, "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(content))

	out, err := execute(t, "backups", "list", "--project-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "No backups found.")
}

func TestRun_Exhausted(t *testing.T) {
	dir := writeProject(t, lowercaseConfig)

	_, err := execute(t, "run", "--project-dir", dir, "--dry-run", "--max-iterations", "1")
	assert.Equal(t, 2, exitCode(t, err))
}

func TestBackupsRestore(t *testing.T) {
	dir := writeProject(t, lowercaseConfig)
	_, err := execute(t, "run", "--project-dir", dir)
	require.NoError(t, err)

	backups, err := filepath.Glob(filepath.Join(dir, ".mend", "backups", "*", "*.bak"))
	require.NoError(t, err)
	require.Len(t, backups, 1)
	backupFile := backups[0]

	out, err := execute(t, "backups", "restore", backupFile, "--project-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Restored")

	content, err := os.ReadFile(filepath.Join(dir, "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(content))
}

func TestUnknownConfigFile(t *testing.T) {
	_, err := execute(t, "check", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

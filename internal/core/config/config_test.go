// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kusari-oss/mend/internal/core/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeProjectConfig creates <dir>/.mend/config.yaml with the given content
func writeProjectConfig(t *testing.T, dir, content string) string {
	t.Helper()
	configDir := filepath.Join(dir, DefaultConfigDir)
	require.NoError(t, os.MkdirAll(configDir, 0755))
	path := filepath.Join(configDir, DefaultConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const fullConfig = `
execution:
  max_workers: 2
  default_timeout: 45s
fixing:
  retry_budget: 1
  stated_weight: 0.5
convergence:
  max_iterations: 3
backup:
  dir: .cache/backups
  retain: 7
policy:
  deny: ["vendor/"]
  review_kinds: [security]
  rules:
    - name: critical
      when: issue.severity == "critical"
checks:
  - name: gofmt
    command: ["gofmt", "-l", "{{.Root}}"]
    stage: fast
    blocking: true
    file_patterns: ["*.go"]
    output:
      format: lines
      kind: formatting
  - name: vet
    command: ["go", "vet", "./..."]
    stage: fast
    depends_on: [gofmt]
    critical: true
    timeout: 30s
    output:
      format: regex
      pattern: '^(?P<file>[^:]+):(?P<line>\d+):\d+: (?P<message>.*)$'
  - name: gosec
    command: ["gosec", "-fmt=sarif", "./..."]
    stage: comprehensive
    output:
      format: sarif
fixers:
  - name: gofmt-fixer
    type: command
    kinds: [formatting]
    confidence: 0.95
    command: ["gofmt"]
    file_patterns: ["*.go"]
`

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir, "")
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Execution.MaxWorkers)
	assert.Equal(t, 5*time.Minute, cfg.Execution.DefaultTimeout)
	assert.Equal(t, 0.7, cfg.Fixing.FastPathThreshold)
	assert.Equal(t, 2, cfg.Fixing.RetryBudget)
	assert.Equal(t, 5, cfg.Backup.Retain)
	assert.Empty(t, cfg.Checks)
	assert.Empty(t, cfg.File)
	assert.Equal(t, filepath.Join(cfg.ProjectDir, ".mend", "backups"), cfg.BackupDir())
}

func TestLoad_ProjectFile(t *testing.T) {
	dir := t.TempDir()
	path := writeProjectConfig(t, dir, fullConfig)

	cfg, err := Load(dir, "")
	require.NoError(t, err)
	assert.Equal(t, path, cfg.File)

	assert.Equal(t, 2, cfg.Execution.MaxWorkers)
	assert.Equal(t, 45*time.Second, cfg.Execution.DefaultTimeout)
	assert.Equal(t, 1, cfg.Fixing.RetryBudget)
	assert.Equal(t, 0.5, cfg.Fixing.StatedWeight)
	// Unset keys keep their defaults
	assert.Equal(t, 5, cfg.Fixing.MinSamples)
	assert.Equal(t, 3, cfg.Convergence.MaxIterations)
	assert.Equal(t, filepath.Join(cfg.ProjectDir, ".cache", "backups"), cfg.BackupDir())
	assert.Equal(t, []models.IssueKind{models.KindSecurity}, cfg.Policy.ReviewKinds)
	require.Len(t, cfg.Policy.Rules, 1)
	assert.Equal(t, `issue.severity == "critical"`, cfg.Policy.Rules[0].When)

	require.Len(t, cfg.Checks, 3)
	gofmt := cfg.Checks[0]
	assert.Equal(t, models.StageFast, gofmt.Stage)
	assert.True(t, gofmt.Blocking)
	assert.Equal(t, models.KindFormatting, gofmt.Output.Kind)
	assert.Equal(t, []string{"gofmt", "-l", "{{.Root}}"}, gofmt.Command)

	vet := cfg.Checks[1]
	assert.Equal(t, 30*time.Second, vet.Timeout)
	assert.True(t, vet.Critical)
	assert.Equal(t, []string{"gofmt"}, vet.DependsOn)

	assert.Equal(t, models.StageComprehensive, cfg.Checks[2].Stage)

	require.Len(t, cfg.Fixers, 1)
	assert.Equal(t, models.FixerCommand, cfg.Fixers[0].Type)
	assert.Equal(t, []models.IssueKind{models.KindFormatting}, cfg.Fixers[0].Kinds)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	writeProjectConfig(t, dir, fullConfig)

	t.Setenv("MEND_MAX_WORKERS", "8")
	t.Setenv("MEND_MAX_ITERATIONS", "9")
	t.Setenv("MEND_LOG_FORMAT", "json")

	cfg, err := Load(dir, "")
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Execution.MaxWorkers)
	assert.Equal(t, 9, cfg.Convergence.MaxIterations)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		errContains string
	}{
		{
			name: "check without command fails schema validation",
			content: `
checks:
  - name: gofmt
`,
			errContains: "schema validation failed",
		},
		{
			name: "unknown output format",
			content: `
checks:
  - name: gofmt
    command: [gofmt]
    output:
      format: xml
`,
			errContains: "schema validation failed",
		},
		{
			name: "cross stage dependency",
			content: `
checks:
  - name: build
    command: [go, build]
    stage: comprehensive
  - name: vet
    command: [go, vet]
    depends_on: [build]
`,
			errContains: "different stage",
		},
		{
			name: "unknown stage",
			content: `
checks:
  - name: vet
    command: [go, vet]
    stage: nightly
`,
			errContains: "unknown stage",
		},
		{
			name: "duplicate check",
			content: `
checks:
  - name: vet
    command: [go, vet]
  - name: vet
    command: [go, vet]
`,
			errContains: "duplicate check name",
		},
		{
			name: "template fixer without template",
			content: `
fixers:
  - name: security-md
    type: template
`,
			errContains: "requires a template",
		},
		{
			name: "zero workers",
			content: `
execution:
  max_workers: 0
`,
			errContains: "max_workers",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeProjectConfig(t, dir, tt.content)

			_, err := Load(dir, "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestLoad_ExplicitPathMustExist(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(dir, filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate_Ranges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "negative retry budget", mutate: func(c *Config) { c.Fixing.RetryBudget = -1 }},
		{name: "threshold above one", mutate: func(c *Config) { c.Fixing.FastPathThreshold = 1.5 }},
		{name: "stated weight negative", mutate: func(c *Config) { c.Fixing.StatedWeight = -0.1 }},
		{name: "zero iterations", mutate: func(c *Config) { c.Convergence.MaxIterations = 0 }},
		{name: "zero retain", mutate: func(c *Config) { c.Backup.Retain = 0 }},
		{name: "bad log format", mutate: func(c *Config) { c.Logging.Format = "xml" }},
		{name: "confidence out of range", mutate: func(c *Config) {
			c.Fixers = []models.FixerDefinition{{Name: "x", Type: models.FixerCommand, Command: []string{"x"}, Confidence: 2}}
		}},
	}

	require.NoError(t, NewDefaultConfig().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, filepath.Join(home, "mend"), ExpandPath("~/mend"))
	assert.Equal(t, "/abs/path", ExpandPath("/abs/path"))
	assert.Equal(t, "relative", ExpandPath("relative"))
}

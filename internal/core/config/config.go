// SPDX-License-Identifier: Apache-2.0

package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kusari-oss/mend/internal/core/models"
	"github.com/kusari-oss/mend/internal/core/schema"
	"github.com/spf13/viper"
)

// Constants for default paths
const (
	DefaultConfigDir      = ".mend"
	DefaultConfigFileName = "config.yaml"
	DefaultBackupDir      = ".mend/backups"
	DefaultTemplatesDir   = ".mend/templates"
)

//go:embed schema.json
var listSchema []byte

// envBindings maps configuration keys to the environment variables that override them
var envBindings = map[string]string{
	"execution.max_workers":      "MEND_MAX_WORKERS",
	"execution.default_timeout":  "MEND_DEFAULT_TIMEOUT",
	"fixing.fix_workers":         "MEND_FIX_WORKERS",
	"fixing.retry_budget":        "MEND_RETRY_BUDGET",
	"fixing.fast_path_threshold": "MEND_FAST_PATH_THRESHOLD",
	"convergence.max_iterations": "MEND_MAX_ITERATIONS",
	"backup.dir":                 "MEND_BACKUP_DIR",
	"backup.retain":              "MEND_RETAIN_BACKUPS",
	"logging.level":              "MEND_LOG_LEVEL",
	"logging.format":             "MEND_LOG_FORMAT",
}

// Config holds the project configuration loaded from .mend/config.yaml
type Config struct {
	Execution   ExecutionConfig          `mapstructure:"execution" yaml:"execution"`
	Fixing      FixingConfig             `mapstructure:"fixing" yaml:"fixing"`
	Convergence ConvergenceConfig        `mapstructure:"convergence" yaml:"convergence"`
	Backup      BackupConfig             `mapstructure:"backup" yaml:"backup"`
	Policy      PolicyConfig             `mapstructure:"policy" yaml:"policy"`
	Logging     LoggingConfig            `mapstructure:"logging" yaml:"logging"`
	Checks      []models.CheckDefinition `mapstructure:"checks" yaml:"checks"`
	Fixers      []models.FixerDefinition `mapstructure:"fixers" yaml:"fixers"`

	// ProjectDir is the absolute root every relative path is resolved against
	ProjectDir string `mapstructure:"-" yaml:"-"`
	// File is the config file that was read, empty when only defaults apply
	File string `mapstructure:"-" yaml:"-"`
}

// ExecutionConfig controls check scheduling
type ExecutionConfig struct {
	MaxWorkers     int           `mapstructure:"max_workers" yaml:"max_workers"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout" yaml:"default_timeout"`
}

// FixingConfig controls fixer routing
type FixingConfig struct {
	FixWorkers        int     `mapstructure:"fix_workers" yaml:"fix_workers"`
	RetryBudget       int     `mapstructure:"retry_budget" yaml:"retry_budget"`
	FastPathThreshold float64 `mapstructure:"fast_path_threshold" yaml:"fast_path_threshold"`
	MinSamples        int     `mapstructure:"min_samples" yaml:"min_samples"`
	StatedWeight      float64 `mapstructure:"stated_weight" yaml:"stated_weight"`
}

// ConvergenceConfig bounds the remediation loop
type ConvergenceConfig struct {
	MaxIterations int `mapstructure:"max_iterations" yaml:"max_iterations"`
}

// BackupConfig controls where pre-modification snapshots live and how many are kept
type BackupConfig struct {
	Dir    string `mapstructure:"dir" yaml:"dir"`
	Retain int    `mapstructure:"retain" yaml:"retain"`
}

// PolicyConfig decides which issues may be fixed automatically
type PolicyConfig struct {
	Allow       []string            `mapstructure:"allow" yaml:"allow,omitempty"`
	Deny        []string            `mapstructure:"deny" yaml:"deny,omitempty"`
	ReviewKinds []models.IssueKind  `mapstructure:"review_kinds" yaml:"review_kinds,omitempty"`
	Rules       []models.PolicyRule `mapstructure:"rules" yaml:"rules,omitempty"`
}

// LoggingConfig selects the log level and encoder
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// NewDefaultConfig creates a default configuration with no checks or fixers
func NewDefaultConfig() *Config {
	return &Config{
		Execution: ExecutionConfig{
			MaxWorkers:     4,
			DefaultTimeout: 5 * time.Minute,
		},
		Fixing: FixingConfig{
			FixWorkers:        4,
			RetryBudget:       2,
			FastPathThreshold: 0.7,
			MinSamples:        5,
			StatedWeight:      0.6,
		},
		Convergence: ConvergenceConfig{
			MaxIterations: 5,
		},
		Backup: BackupConfig{
			Dir:    DefaultBackupDir,
			Retain: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads the project configuration. An empty configPath means
// <projectDir>/.mend/config.yaml, which may be absent; an explicit path must exist.
// MEND_* environment variables override the scalar settings.
func Load(projectDir, configPath string) (*Config, error) {
	absProject, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("error resolving project directory %s: %w", projectDir, err)
	}

	// Create a new viper instance to avoid race conditions
	v := viper.New()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("error binding %s: %w", env, err)
		}
	}

	path := ExpandPath(configPath)
	if path == "" {
		path = filepath.Join(absProject, DefaultConfigDir, DefaultConfigFileName)
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := validateLists(v); err != nil {
			return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
		}
	}

	cfg := NewDefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.ProjectDir = absProject
	cfg.File = path

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validateLists checks the raw check and fixer lists against the embedded schema
func validateLists(v *viper.Viper) error {
	document := make(map[string]interface{})
	for _, key := range []string{"checks", "fixers"} {
		if v.IsSet(key) {
			document[key] = v.Get(key)
		}
	}
	return schema.Validate(listSchema, document)
}

// Validate checks value ranges and normalizes stages, kinds and output formats in place
func (c *Config) Validate() error {
	switch {
	case c.Execution.MaxWorkers < 1:
		return fmt.Errorf("execution.max_workers must be at least 1, got %d", c.Execution.MaxWorkers)
	case c.Execution.DefaultTimeout <= 0:
		return fmt.Errorf("execution.default_timeout must be positive, got %s", c.Execution.DefaultTimeout)
	case c.Fixing.FixWorkers < 1:
		return fmt.Errorf("fixing.fix_workers must be at least 1, got %d", c.Fixing.FixWorkers)
	case c.Fixing.RetryBudget < 0:
		return fmt.Errorf("fixing.retry_budget cannot be negative, got %d", c.Fixing.RetryBudget)
	case c.Fixing.FastPathThreshold <= 0 || c.Fixing.FastPathThreshold > 1:
		return fmt.Errorf("fixing.fast_path_threshold must be in (0, 1], got %v", c.Fixing.FastPathThreshold)
	case c.Fixing.MinSamples < 0:
		return fmt.Errorf("fixing.min_samples cannot be negative, got %d", c.Fixing.MinSamples)
	case c.Fixing.StatedWeight < 0 || c.Fixing.StatedWeight > 1:
		return fmt.Errorf("fixing.stated_weight must be in [0, 1], got %v", c.Fixing.StatedWeight)
	case c.Convergence.MaxIterations < 1:
		return fmt.Errorf("convergence.max_iterations must be at least 1, got %d", c.Convergence.MaxIterations)
	case c.Backup.Dir == "":
		return fmt.Errorf("backup.dir cannot be empty")
	case c.Backup.Retain < 1:
		return fmt.Errorf("backup.retain must be at least 1, got %d", c.Backup.Retain)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}

	for i, kind := range c.Policy.ReviewKinds {
		c.Policy.ReviewKinds[i] = models.NormalizeKind(kind)
	}

	if err := c.validateChecks(); err != nil {
		return err
	}
	return c.validateFixers()
}

func (c *Config) validateChecks() error {
	stages := make(map[string]models.Stage, len(c.Checks))
	for i := range c.Checks {
		check := &c.Checks[i]
		if check.Name == "" {
			return fmt.Errorf("check #%d has no name", i+1)
		}
		if _, exists := stages[check.Name]; exists {
			return fmt.Errorf("duplicate check name: %s", check.Name)
		}
		if len(check.Command) == 0 {
			return fmt.Errorf("check %s has no command", check.Name)
		}
		if check.Timeout < 0 {
			return fmt.Errorf("check %s has a negative timeout", check.Name)
		}

		stage, err := models.ParseStage(string(check.Stage))
		if err != nil {
			return fmt.Errorf("check %s: %w", check.Name, err)
		}
		check.Stage = stage
		stages[check.Name] = stage

		if check.Output.Format == "" {
			check.Output.Format = "exitcode"
		}
		if check.Output.Kind != "" {
			check.Output.Kind = models.NormalizeKind(check.Output.Kind)
		}
	}

	// Unknown names and cycles are reported by the graph resolver
	for _, check := range c.Checks {
		for _, dep := range check.DependsOn {
			depStage, exists := stages[dep]
			if exists && depStage != check.Stage {
				return fmt.Errorf("check %s (%s) depends on %s in a different stage (%s)",
					check.Name, check.Stage.StrategyName(), dep, depStage.StrategyName())
			}
		}
	}
	return nil
}

func (c *Config) validateFixers() error {
	seen := make(map[string]bool, len(c.Fixers))
	for i := range c.Fixers {
		fixer := &c.Fixers[i]
		if fixer.Name == "" {
			return fmt.Errorf("fixer #%d has no name", i+1)
		}
		if seen[fixer.Name] {
			return fmt.Errorf("duplicate fixer name: %s", fixer.Name)
		}
		seen[fixer.Name] = true

		if fixer.Confidence < 0 || fixer.Confidence > 1 {
			return fmt.Errorf("fixer %s: confidence must be in [0, 1], got %v", fixer.Name, fixer.Confidence)
		}

		switch fixer.Type {
		case models.FixerCommand, models.FixerPatch:
			if len(fixer.Command) == 0 {
				return fmt.Errorf("fixer %s: type %s requires a command", fixer.Name, fixer.Type)
			}
		case models.FixerTemplate:
			if fixer.Template == "" {
				return fmt.Errorf("fixer %s: type template requires a template", fixer.Name)
			}
		default:
			return fmt.Errorf("fixer %s: unknown type %q", fixer.Name, fixer.Type)
		}

		for k, kind := range fixer.Kinds {
			fixer.Kinds[k] = models.NormalizeKind(kind)
		}
	}
	return nil
}

// ResolvePath makes a configured path absolute relative to the project directory
func (c *Config) ResolvePath(path string) string {
	path = ExpandPath(path)
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.ProjectDir, path)
}

// BackupDir returns the absolute backup directory
func (c *Config) BackupDir() string {
	return c.ResolvePath(c.Backup.Dir)
}

// TemplatesDir returns the absolute directory template fixers look in first
func (c *Config) TemplatesDir() string {
	return filepath.Join(c.ProjectDir, DefaultTemplatesDir)
}

// ExpandPath expands a leading ~ to the user home directory
func ExpandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path // Return original if can't expand
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}

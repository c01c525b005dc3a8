// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kusari-oss/mend/internal/core/config"
	"github.com/kusari-oss/mend/internal/core/logging"
	"github.com/kusari-oss/mend/internal/mend"
	"github.com/kusari-oss/mend/internal/version"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ExitError carries a non-zero exit code for outcomes that are not failures of mend
// itself, e.g. a remediation loop that stalled
type ExitError struct {
	Code   int
	Reason string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d: %s", e.Code, e.Reason)
}

// globalOptions are the persistent flags shared by every command
type globalOptions struct {
	configFile string
	projectDir string
	logLevel   string
	logFormat  string
}

// NewRootCommand creates the mend command tree
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "mend",
		Short: "Dependency-aware quality check orchestrator",
		Long: `Mend runs formatters, linters, type checkers, security scanners and tests in
dependency-ordered parallel waves, routes the issues they report to fixers, applies
the fixes transactionally and re-runs the affected checks until the project converges.`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default is .mend/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&opts.projectDir, "project-dir", "", "project directory (default is current directory)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format (console or json)")

	rootCmd.AddCommand(newRunCommand(opts))
	rootCmd.AddCommand(newCheckCommand(opts))
	rootCmd.AddCommand(newWavesCommand(opts))
	rootCmd.AddCommand(newBackupsCommand(opts))
	rootCmd.AddCommand(newInitCommand(opts))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCommand().Execute()
}

// resolveProjectDir returns the absolute project directory
func (o *globalOptions) resolveProjectDir() (string, error) {
	if o.projectDir == "" {
		dir, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("error getting current directory: %w", err)
		}
		return dir, nil
	}
	dir, err := filepath.Abs(o.projectDir)
	if err != nil {
		return "", fmt.Errorf("error resolving project directory: %w", err)
	}
	return dir, nil
}

// loadConfig reads the project configuration and applies flag overrides
func (o *globalOptions) loadConfig() (*config.Config, error) {
	projectDir, err := o.resolveProjectDir()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(projectDir, o.configFile)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Logging.Format = o.logFormat
	}
	return cfg, nil
}

// buildEngine assembles the engine for cfg. The caller syncs the logger.
func buildEngine(cfg *config.Config, engineOpts mend.Options) (*mend.Engine, error) {
	logger, err := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		return nil, fmt.Errorf("error creating logger: %w", err)
	}
	if cfg.File == "" {
		logger.Warn("no project configuration found, using defaults", zap.String("project", cfg.ProjectDir))
	}
	return mend.Build(cfg, logger, engineOpts)
}

// loadEngine loads the configuration and assembles an engine without observers
func (o *globalOptions) loadEngine() (*mend.Engine, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return buildEngine(cfg, mend.Options{})
}

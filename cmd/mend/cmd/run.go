// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/kusari-oss/mend/internal/core/logging"
	"github.com/kusari-oss/mend/internal/core/models"
	"github.com/kusari-oss/mend/internal/mend"
	"github.com/kusari-oss/mend/internal/report"
	"github.com/spf13/cobra"
)

// outputOptions are the flags shared by commands that run checks
type outputOptions struct {
	noProgress  bool
	format      string
	metricsFile string
	reportFile  string
}

func (o *outputOptions) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.noProgress, "no-progress", false, "Disable the progress bar")
	cmd.Flags().StringVar(&o.format, "format", "text", "Output format (text, yaml or json)")
	cmd.Flags().StringVar(&o.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file")
	cmd.Flags().StringVarP(&o.reportFile, "report", "o", "", "Write the report to this file (.yaml or .json)")
}

// finish renders the summary and writes the optional report and metrics files
func (o *outputOptions) finish(cmd *cobra.Command, engine *mend.Engine, summary *report.Summary) error {
	if err := report.Print(cmd.OutOrStdout(), summary, o.format); err != nil {
		return fmt.Errorf("error rendering report: %w", err)
	}
	if o.reportFile != "" {
		if err := report.Write(o.reportFile, summary); err != nil {
			return fmt.Errorf("error writing report: %w", err)
		}
	}
	if o.metricsFile != "" {
		if err := engine.Metrics.WriteTextfile(o.metricsFile); err != nil {
			return err
		}
	}
	return nil
}

func newRunCommand(global *globalOptions) *cobra.Command {
	var (
		output        outputOptions
		dryRun        bool
		maxIterations int
	)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run checks and fix issues until the project converges",
		Long: `Run every check, route the issues found to the configured fixers, apply the
fixes with backups and re-run the affected checks. The loop stops when no issues
remain (exit 0), the iteration budget is spent (exit 2) or an iteration makes no
progress (exit 3).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.loadConfig()
			if err != nil {
				return err
			}
			progress := report.NewProgress(!output.noProgress, len(cfg.Checks))

			engine, err := buildEngine(cfg, mend.Options{
				DryRun:        dryRun,
				MaxIterations: maxIterations,
				Observer:      progress,
			})
			if err != nil {
				return err
			}
			defer logging.Sync(engine.Logger)

			result, runErr := engine.Run(cmd.Context())
			progress.Finish()
			if result != nil && result.Results != nil {
				if err := output.finish(cmd, engine, report.FromResult(result)); err != nil {
					return err
				}
			}
			if runErr != nil {
				return runErr
			}

			if result.Status != models.LoopConverged {
				return &ExitError{Code: report.ExitCode(result.Status), Reason: string(result.Status)}
			}
			return nil
		},
	}

	output.register(runCmd)
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Select fixers without changing any file")
	runCmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "Override convergence.max_iterations")

	return runCmd
}

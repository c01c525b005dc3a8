// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/kusari-oss/mend/internal/core/logging"
	"github.com/kusari-oss/mend/internal/mend"
	"github.com/kusari-oss/mend/internal/report"
	"github.com/kusari-oss/mend/internal/scheduler"
	"github.com/spf13/cobra"
)

func newCheckCommand(global *globalOptions) *cobra.Command {
	var output outputOptions

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Run every check once without fixing anything",
		Long:  `Run every check once and report the issues. Exits 1 when any check failed, errored or timed out.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.loadConfig()
			if err != nil {
				return err
			}
			progress := report.NewProgress(!output.noProgress, len(cfg.Checks))

			engine, err := buildEngine(cfg, mend.Options{Observer: progress})
			if err != nil {
				return err
			}
			defer logging.Sync(engine.Logger)

			results, found, err := engine.Check(cmd.Context())
			progress.Finish()
			if err != nil {
				return err
			}

			if err := output.finish(cmd, engine, report.FromChecks(results, found)); err != nil {
				return err
			}
			if scheduler.AnyFailed(results) {
				return &ExitError{Code: 1, Reason: "checks failed"}
			}
			return nil
		},
	}

	output.register(checkCmd)
	return checkCmd
}

// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newWavesCommand(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "waves",
		Short: "Show the execution waves of every strategy",
		Long:  `Resolve check dependencies and print the waves each strategy would run, without running anything.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := global.loadEngine()
			if err != nil {
				return err
			}

			plans, err := engine.Plan()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(plans) == 0 {
				fmt.Fprintln(out, "No checks configured.")
				return nil
			}
			for _, plan := range plans {
				fmt.Fprintf(out, "%s:\n", plan.Strategy.Name)
				for i, wave := range plan.Waves {
					fmt.Fprintf(out, "  wave %d: %s\n", i+1, strings.Join(wave.Names(), ", "))
				}
			}
			return nil
		},
	}
}

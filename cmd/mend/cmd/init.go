// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/kusari-oss/mend/internal/core/config"
	"github.com/kusari-oss/mend/internal/defaults"
	"github.com/spf13/cobra"
)

// newInitCommand creates the init command
func newInitCommand(global *globalOptions) *cobra.Command {
	var force bool

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration and templates",
		Long:  `Write .mend/config.yaml and the default fixer templates into the project. Existing files are kept unless --force is given.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			projectDir, err := global.resolveProjectDir()
			if err != nil {
				return err
			}

			configPath := global.configFile
			if configPath == "" {
				configPath = filepath.Join(projectDir, config.DefaultConfigDir, config.DefaultConfigFileName)
			}
			templatesDir := filepath.Join(projectDir, config.DefaultTemplatesDir)

			written, err := defaults.NewManager(force).CopyDefaults(configPath, templatesDir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(written) == 0 {
				fmt.Fprintln(out, "Project already initialized, nothing written. Use --force to overwrite.")
				return nil
			}
			for _, path := range written {
				fmt.Fprintf(out, "Wrote %s\n", path)
			}
			return nil
		},
	}

	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing files")
	return initCmd
}

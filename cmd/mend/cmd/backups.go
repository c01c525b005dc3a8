// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/kusari-oss/mend/internal/core/models"
	"github.com/kusari-oss/mend/internal/modifier"
	"github.com/spf13/cobra"
)

// newBackupsCommand creates the backups command
func newBackupsCommand(global *globalOptions) *cobra.Command {
	backupsCmd := &cobra.Command{
		Use:   "backups",
		Short: "List and restore file backups taken before fixes",
	}

	backupsCmd.AddCommand(&cobra.Command{
		Use:   "list [path]",
		Short: "List backups, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := global.loadEngine()
			if err != nil {
				return err
			}

			var records []models.BackupRecord
			if len(args) == 1 {
				records, err = engine.Modifier.Backups(engine.Config.ResolvePath(args[0]))
			} else {
				records, err = engine.Modifier.ListAll()
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No backups found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CREATED\tFILE\tEXISTED\tBACKUP")
			for _, record := range records {
				fmt.Fprintf(w, "%s\t%s\t%t\t%s\n",
					record.CreatedAt.Format("2006-01-02 15:04:05"),
					record.OriginalPath, record.Existed, record.BackupPath)
			}
			return w.Flush()
		},
	})

	backupsCmd.AddCommand(&cobra.Command{
		Use:   "restore <backup-file>",
		Short: "Restore a file from a backup",
		Long:  `Restore the original file from a backup. The current content is backed up first so the restore can itself be undone.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := global.loadEngine()
			if err != nil {
				return err
			}

			record, err := modifier.ReadRecord(engine.Config.ResolvePath(args[0]))
			if err != nil {
				return err
			}
			safety, err := engine.Modifier.Restore(cmd.Context(), *record)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Restored %s\n", record.OriginalPath)
			if safety != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Previous content saved to %s\n", safety.BackupPath)
			}
			return nil
		},
	})

	return backupsCmd
}

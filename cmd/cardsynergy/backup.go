package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ramonehamilton/cardsynergy/internal/storage"
)

func newBackupCmd(c *cli) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Snapshot, list and restore the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(a *app) error {
				info, err := a.db.Backup(cmd.Context(), backupDir(a.dbPath, firstNonEmpty(dir, c.config.Database.BackupDir)))
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes, blake2b %s)\n", info.Path, info.Size, info.Checksum)
				return nil
			})
		},
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "backup directory (overrides database.backup_dir)")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dbPath, err := c.config.DatabasePath()
			if err != nil {
				return err
			}
			backups, err := storage.ListBackups(backupDir(dbPath, firstNonEmpty(dir, c.config.Database.BackupDir)))
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "NAME\tSIZE\tCREATED\tCHECKSUM")
			for _, b := range backups {
				_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%.12s\n", b.Name, b.Size, b.ModTime.Format("2006-01-02 15:04:05"), b.Checksum)
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "restore <backup-file>",
		Short: "Replace the database with a backup (stop the server first)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, err := c.config.DatabasePath()
			if err != nil {
				return err
			}
			if err := storage.Restore(cmd.Context(), args[0], dbPath); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Restored %s from %s\n", dbPath, args[0])
			return nil
		},
	})

	return cmd
}

// backupDir returns dir, or the default directory next to the database.
func backupDir(dbPath, dir string) string {
	if dir != "" {
		return dir
	}
	return storage.BackupDir(dbPath)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

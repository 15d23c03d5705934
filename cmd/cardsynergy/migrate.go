package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ramonehamilton/cardsynergy/internal/storage"
)

func newMigrateCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long: `Manage the database schema.

Subcommands:
  up        Apply pending migrations
  down      Roll back migrations (all, or --steps N)
  version   Print the current schema version
  force     Record a version without running it (dirty database recovery)`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withMigrations(func(mm *storage.MigrationManager) error {
				if err := mm.Up(); err != nil {
					return err
				}
				return printVersion(cmd, mm)
			})
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withMigrations(func(mm *storage.MigrationManager) error {
				var err error
				if steps > 0 {
					err = mm.Steps(-steps)
				} else {
					err = mm.Down()
				}
				if err != nil {
					return err
				}
				return printVersion(cmd, mm)
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 0, "number of migrations to roll back (0 rolls back all)")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withMigrations(func(mm *storage.MigrationManager) error {
				return printVersion(cmd, mm)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Record a schema version without running migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q", args[0])
			}
			return c.withMigrations(func(mm *storage.MigrationManager) error {
				if err := mm.Force(version); err != nil {
					return err
				}
				return printVersion(cmd, mm)
			})
		},
	})

	return cmd
}

func (c *cli) withMigrations(fn func(*storage.MigrationManager) error) (err error) {
	path, err := c.config.DatabasePath()
	if err != nil {
		return err
	}
	mm, err := storage.NewMigrationManager(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := mm.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(mm)
}

func printVersion(cmd *cobra.Command, mm *storage.MigrationManager) error {
	version, dirty, err := mm.Version()
	if err != nil {
		return err
	}
	state := "clean"
	if dirty {
		state = "dirty"
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Schema version %d (%s)\n", version, state)
	return nil
}

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/banshee-data/seamprofile/internal/config"
	"github.com/banshee-data/seamprofile/internal/profiledb"
)

func (app *App) addMigrateCommands(rootCmd *cobra.Command) {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the SQLite schema",
		Long: `Apply, roll back or inspect the schema migrations of the SQLite profile
database. serve applies pending migrations on its own; these commands are
for upgrades and repairs.`,
	}

	// open skips the automatic migration NewDB would run.
	open := func() (*profiledb.DB, error) {
		if app.cfg.GetBackend() != config.BackendSQLite {
			return nil, fmt.Errorf("migrate needs the %q backend", config.BackendSQLite)
		}
		return profiledb.OpenDB(app.cfg.GetDBPath())
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := open()
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.MigrateUp(); err != nil {
				return err
			}
			return printVersion(cmd, db)
		},
	}

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the latest migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := open()
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.MigrateDown(); err != nil {
				return err
			}
			return printVersion(cmd, db)
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := open()
			if err != nil {
				return err
			}
			defer db.Close()
			return printVersion(cmd, db)
		},
	}

	forceCmd := &cobra.Command{
		Use:   "force <version>",
		Short: "Set the schema version without running migrations",
		Long: `Record <version> as the schema version and clear the dirty flag. Use this
only after repairing a failed migration by hand.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q", args[0])
			}
			db, err := open()
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.MigrateForce(v); err != nil {
				return err
			}
			return printVersion(cmd, db)
		},
	}

	migrateCmd.AddCommand(upCmd, downCmd, statusCmd, forceCmd)
	rootCmd.AddCommand(migrateCmd)
}

func printVersion(cmd *cobra.Command, db *profiledb.DB) error {
	v, dirty, err := db.MigrateVersion()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", v, dirty)
	return nil
}

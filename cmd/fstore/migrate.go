package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fstore/internal/config"
	"fstore/internal/store"
)

func newMigrateCmd(cfg *config.Config, opts *rootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run or inspect catalog schema migrations",
		Long:  "Run or inspect SQLite catalog schema migrations. The badger catalog has no schema.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Catalog.Backend == "badger" {
				return fmt.Errorf("catalog.backend is badger; nothing to migrate")
			}
			if cfg.DBPath == "" {
				return fmt.Errorf("db path is required")
			}

			if dryRun {
				plan, err := store.Plan(cfg.DBPath)
				if err != nil {
					return fmt.Errorf("inspect migrations: %w", err)
				}
				if opts.structured() {
					return writeStructured(plan)
				}
				return writeMigrationPlan(plan)
			}

			// Same path the server takes on start.
			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			if err := st.Close(); err != nil {
				return err
			}

			if opts.structured() {
				plan, err := store.Plan(cfg.DBPath)
				if err != nil {
					return err
				}
				return writeStructured(plan)
			}
			return writePlain("Migrations applied successfully.\n")
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show pending migrations without applying")
	return cmd
}

func writeMigrationPlan(plan *store.MigrationStatus) error {
	if err := writePlain("Current version: %d\nAvailable version: %d\n", plan.CurrentVersion, plan.AvailableVersion); err != nil {
		return err
	}
	if len(plan.Pending) == 0 {
		return writePlain("No pending migrations.\n")
	}
	if err := writePlain("Pending migrations: %d\n", len(plan.Pending)); err != nil {
		return err
	}
	for _, m := range plan.Pending {
		if err := writePlain("  %d: %s\n", m.Version, m.Description); err != nil {
			return err
		}
	}
	return nil
}

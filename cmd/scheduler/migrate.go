package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/vetclinic-scheduler/internal/persistence/sqlite/migration"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return withStore(ctx, cfg, logger, func(st store) error {
				before, err := st.MigrationStatus(ctx)
				if err != nil {
					return fmt.Errorf("failed to read migration status: %w", err)
				}
				if err := st.Migrate(ctx); err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", len(before.Pending))
				return nil
			})
		},
	}
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return withStore(ctx, cfg, logger, func(st store) error {
				status, err := st.MigrationStatus(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				printMigrationStatus(cmd.OutOrStdout(), status)
				return nil
			})
		},
	}
	cmd.AddCommand(statusCmd)

	return cmd
}

func printMigrationStatus(w io.Writer, status migration.Status) {
	current := status.CurrentVersion
	if current == "" {
		current = "none"
	}
	fmt.Fprintf(w, "Current schema version: %s\n", current)
	fmt.Fprintf(w, "%-10s %-10s %-25s %s\n", "VERSION", "STATUS", "APPLIED AT", "DETAIL")
	for _, m := range status.Applied {
		fmt.Fprintf(w, "%-10s %-10s %-25s %s\n", m.Version, "applied", m.AppliedAt.UTC().Format(time.RFC3339), m.ExecutionTime)
	}
	for _, m := range status.Pending {
		fmt.Fprintf(w, "%-10s %-10s %-25s %s\n", m.Version, "pending", "-", m.Description)
	}
}

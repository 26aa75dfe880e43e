package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nerrad567/remo-relay/internal/infrastructure/config"
	"github.com/nerrad567/remo-relay/internal/infrastructure/database"
)

func newMigrateCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Inspect or change the database schema",
		Long: `serve and import apply pending migrations on start. migrate reports the
schema state and can roll migrations back before a downgrade.`,
	}

	run := func(fn func(ctx context.Context, db *database.DB, out io.Writer) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			return withDatabase(cmd.Context(), cfg, func(db *database.DB) error {
				return fn(cmd.Context(), db, cmd.OutOrStdout())
			})
		}
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migrations",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, db *database.DB, out io.Writer) error {
			return migrateDown(ctx, db, steps, out)
		}),
	}
	down.Flags().IntVarP(&steps, "steps", "n", 1, "number of migrations to roll back")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "List applied and pending migrations",
			Args:  cobra.NoArgs,
			RunE:  run(migrateStatus),
		},
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			Args:  cobra.NoArgs,
			RunE:  run(migrateUp),
		},
		down,
	)
	return cmd
}

func withDatabase(ctx context.Context, cfg *config.Config, fn func(db *database.DB) error) error {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}

func migrateStatus(ctx context.Context, db *database.DB, out io.Writer) error {
	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		return err
	}
	for _, m := range applied {
		fmt.Fprintf(out, "applied %s  %s\n", m.Version, m.AppliedAt.Format("2006-01-02 15:04:05"))
	}
	for _, m := range pending {
		fmt.Fprintf(out, "pending %s  %s\n", m.Version, m.Name)
	}
	if len(applied) == 0 && len(pending) == 0 {
		fmt.Fprintln(out, "no migrations")
	}
	return nil
}

func migrateUp(ctx context.Context, db *database.DB, out io.Writer) error {
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	version, err := db.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "schema at %s\n", version)
	return nil
}

// migrateDown rolls back up to steps migrations, newest first, and stops
// early once nothing is left applied.
func migrateDown(ctx context.Context, db *database.DB, steps int, out io.Writer) error {
	if steps < 1 {
		return fmt.Errorf("--steps must be at least 1, got %d", steps)
	}
	for range steps {
		version, err := db.SchemaVersion(ctx)
		if err != nil {
			return err
		}
		if version == "" {
			fmt.Fprintln(out, "nothing to roll back")
			return nil
		}
		if err := db.MigrateDown(ctx); err != nil {
			return fmt.Errorf("rolling back %s: %w", version, err)
		}
		fmt.Fprintf(out, "rolled back %s\n", version)
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MarceloPazPezo/Plantilla-PERN/internal/bootstrap"
	"github.com/MarceloPazPezo/Plantilla-PERN/internal/migrate"
)

const resetGrace = 3 * time.Second

func newUpCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			applied, err := migrate.NewManager(a.store.DB()).Up(cmd.Context())
			for _, name := range applied {
				a.logger.Info("migration applied", zap.String("name", name))
			}
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			}
			return nil
		},
	}
}

func newDownCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, err := migrate.NewManager(a.store.DB()).Down(cmd.Context())
			if errors.Is(err, migrate.ErrNothingApplied) {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "nothing to roll back")
				return nil
			}
			if err != nil {
				return err
			}
			a.logger.Info("migration rolled back", zap.String("name", name))
			return nil
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they have been applied",
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, err := migrate.NewManager(a.store.DB()).Status(cmd.Context())
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), status)
			return nil
		},
	}
}

func newSeedCmd(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create permissions, roles and sample users",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fixture, err := loadFixture(file)
			if err != nil {
				return err
			}
			return a.seed(cmd.Context(), fixture)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "YAML fixture to load instead of the built-in one")
	return cmd
}

func newResetCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop the public schema, reapply every migration and seed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := confirmReset(cmd.Context(), cmd.ErrOrStderr(), yes, resetGrace); err != nil {
				return err
			}
			applied, err := migrate.NewManager(a.store.DB()).Reset(cmd.Context())
			if err != nil {
				return err
			}
			a.logger.Info("schema reset", zap.Strings("applied", applied))
			fixture, err := bootstrap.DefaultFixture()
			if err != nil {
				return err
			}
			return a.seed(cmd.Context(), fixture)
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Skip the safety delay")
	return cmd
}

func (a *app) seed(ctx context.Context, f bootstrap.Fixture) error {
	res, err := bootstrap.NewSeeder(a.store, bootstrap.WithLogger(a.logger)).Seed(ctx, f)
	if err != nil {
		return err
	}
	a.logger.Info("seed complete",
		zap.Int("permissions", res.Permissions),
		zap.Int("roles", res.Roles),
		zap.Int("users", res.Users))
	return nil
}

func loadFixture(path string) (bootstrap.Fixture, error) {
	if path == "" {
		return bootstrap.DefaultFixture()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return bootstrap.Fixture{}, err
	}
	return bootstrap.Decode(raw)
}

// confirmReset warns and waits for grace so an accidental run can be
// interrupted. yes skips the wait.
func confirmReset(ctx context.Context, w io.Writer, yes bool, grace time.Duration) error {
	if yes {
		return nil
	}
	_, _ = fmt.Fprintf(w, "WARNING: every table in the public schema will be dropped. Press Ctrl+C within %s to abort.\n", grace)
	t := time.NewTimer(grace)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("reset aborted: %w", ctx.Err())
	case <-t.C:
		return nil
	}
}

func printStatus(w io.Writer, status []migrate.MigrationStatus) {
	for _, s := range status {
		mark := "pending"
		if s.Applied {
			mark = "applied"
		}
		_, _ = fmt.Fprintf(w, "%-8s %s\n", mark, s.Name)
	}
}

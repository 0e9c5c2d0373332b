package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MarceloPazPezo/Plantilla-PERN/internal/config"
	"github.com/MarceloPazPezo/Plantilla-PERN/internal/obs"
	"github.com/MarceloPazPezo/Plantilla-PERN/internal/store/pg"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

type app struct {
	dsn    string
	store  *pg.Store
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the database schema and seed data",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			db, err := config.LoadDatabase()
			if err != nil {
				return err
			}
			if a.dsn == "" {
				a.dsn = db.PGDSN
			}
			a.logger = obs.InitLogger(obs.LogConfig{Env: db.AppEnv, Level: db.LogLevel, Service: "plantilla-migrate"})
			a.store, err = pg.Open(a.dsn)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			return a.store.Ping(cmd.Context())
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.store == nil {
				return nil
			}
			_ = a.logger.Sync()
			return a.store.Close()
		},
	}
	root.PersistentFlags().StringVar(&a.dsn, "dsn", "", "PostgreSQL DSN (defaults to PG_DSN)")

	root.AddCommand(
		newUpCmd(a),
		newDownCmd(a),
		newStatusCmd(a),
		newSeedCmd(a),
		newResetCmd(a),
	)
	return root
}

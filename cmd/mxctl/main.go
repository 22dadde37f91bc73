package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lokmanguedri/motivex/internal/config"
	"github.com/lokmanguedri/motivex/internal/logx"
	"github.com/lokmanguedri/motivex/internal/postgres"
)

type app struct {
	cfg config.Config
	log zerolog.Logger
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:          "mxctl",
		Short:        "Operator tasks for the storefront database",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = logx.New(cfg.LogLevel, cfg.LogPretty)
			return nil
		},
	}
	root.AddCommand(newMigrateCmd(a), newCreateAdminCmd(a), newSeedCategoriesCmd(a))
	return root
}

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or revert the embedded schema migrations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := postgres.Migrate(a.cfg.PostgresDSN, true); err != nil {
				return err
			}
			a.log.Info().Msg("migrations applied")
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Revert every migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := postgres.Migrate(a.cfg.PostgresDSN, false); err != nil {
				return err
			}
			a.log.Info().Msg("migrations reverted")
			return nil
		},
	})
	return cmd
}

func (a *app) connect(ctx context.Context) (*pgxpool.Pool, error) {
	return postgres.Connect(ctx, a.cfg.PostgresDSN)
}

package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/rom8726/resflow"
	"github.com/rom8726/resflow/internal/config"
)

func newMigrateCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations to the configured store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if err := migrate(cmd.Context(), cfg); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (%s)\n", cfg.Store.Driver)

			return nil
		},
	}
}

func migrate(ctx context.Context, cfg *config.Config) error {
	switch cfg.Store.Driver {
	case config.StorePostgres:
		pool, err := pgxpool.New(ctx, cfg.DSN())
		if err != nil {
			return fmt.Errorf("failed to create connection pool: %w", err)
		}
		defer pool.Close()

		return resflow.RunMigrations(ctx, pool)
	case config.StoreSQLite:
		// opening the store applies the schema
		store, err := resflow.NewSQLiteStore(cfg.Store.SQLitePath)
		if err != nil {
			return err
		}

		return store.Close()
	default:
		return fmt.Errorf("store driver %q has no schema to migrate", cfg.Store.Driver)
	}
}

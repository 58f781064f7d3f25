package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/rom8726/resflow"
	"github.com/rom8726/resflow/internal/config"
	"github.com/rom8726/resflow/plugins/engine/audit"
	"github.com/rom8726/resflow/plugins/engine/metrics"
	"github.com/rom8726/resflow/plugins/engine/notifications"
	rate_limiter "github.com/rom8726/resflow/plugins/engine/rate-limiter"
	"github.com/rom8726/resflow/plugins/engine/telemetry"
	"github.com/rom8726/resflow/plugins/engine/validate"
)

type app struct {
	engine      *resflow.Engine
	permissions resflow.StaticPermissions
	closers     []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func openStore(ctx context.Context, cfg *config.Config) (resflow.Store, resflow.TxManager, func(), error) {
	switch cfg.Store.Driver {
	case config.StorePostgres:
		pool, err := pgxpool.New(ctx, cfg.DSN())
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create connection pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()

			return nil, nil, nil, fmt.Errorf("failed to ping database: %w", err)
		}

		return resflow.NewStore(pool), resflow.NewTxManager(pool), pool.Close, nil
	case config.StoreSQLite:
		store, err := resflow.NewSQLiteStore(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}

		return store, resflow.NewSQLiteTxManager(store), func() { _ = store.Close() }, nil
	default:
		store := resflow.NewMemoryStore()

		return store, resflow.NewMemoryTxManager(store), func() {}, nil
	}
}

func buildPermissions(cfg *config.Config) resflow.StaticPermissions {
	perms := resflow.StaticPermissions{}
	for identity, roles := range cfg.Access.Roles {
		perms.Grant(identity, roles...)
	}
	for _, identity := range cfg.Access.LockOverriders {
		perms[identity] = append(perms[identity], resflow.PermissionOverrideUserLocks)
	}

	return perms
}

// newApp wires the engine with its store, catalog and plugins. A nil registry
// leaves the metrics plugin out.
func newApp(ctx context.Context, cfg *config.Config, registry prometheus.Registerer) (*app, error) {
	catalog, err := resflow.LoadCatalogFile(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}

	store, txManager, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	pluginManager := resflow.NewPluginManager()

	if registry != nil {
		pluginManager.Register(metrics.New(metrics.NewPrometheusCollector(registry)))
	}

	pluginManager.Register(audit.New(audit.NewLogWriter(log.Logger)))
	pluginManager.Register(telemetry.New(nil))

	validation := validate.New()
	rules := validation.AddCatalogRules(catalog)
	pluginManager.Register(validation)

	if cfg.RateLimit.PerSecond > 0 {
		pluginManager.Register(rate_limiter.New(rate.Limit(cfg.RateLimit.PerSecond), cfg.RateLimit.Burst))
	}

	if cfg.Notifications.WebhookURL != "" {
		timeout := cfg.Notifications.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		pluginManager.Register(notifications.New(notifications.NewWebhookChannel(cfg.Notifications.WebhookURL, timeout)))
	}

	perms := buildPermissions(cfg)

	engine := resflow.NewEngine(
		resflow.WithEngineStore(store),
		resflow.WithEngineTxManager(txManager),
		resflow.WithEngineCatalog(catalog),
		resflow.WithEnginePluginManager(pluginManager),
		resflow.WithEnginePermissionChecker(perms),
	)

	log.Info().
		Str("store", cfg.Store.Driver).
		Strs("workflow_types", catalog.Types()).
		Int("validation_rules", rules).
		Msg("engine ready")

	return &app{
		engine:      engine,
		permissions: perms,
		closers:     []func(){closeStore},
	}, nil
}

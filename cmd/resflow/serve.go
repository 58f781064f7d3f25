package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/rom8726/resflow"
	"github.com/rom8726/resflow/api"
	"github.com/rom8726/resflow/internal/config"
	"github.com/rom8726/resflow/internal/logging"
	"github.com/rom8726/resflow/internal/tracing"
	"github.com/rom8726/resflow/plugins/api/cleanup"
	"github.com/rom8726/resflow/plugins/api/review"
	"github.com/rom8726/resflow/plugins/api/stats"
)

const version = "0.1.0"

func newServeCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the workflow HTTP API and metrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg)
		},
	}
}

func newHandler(a *app) http.Handler {
	server := api.NewServer(a.engine, api.HeaderActor,
		stats.New(resflow.NewMonitor(a.engine)),
		review.New(a.engine, a.permissions, api.HeaderActor),
		cleanup.New(a.engine),
	)

	return otelhttp.NewHandler(server.Mux(), "resflow")
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logging.Init(cfg.App.Name, cfg.App.LogLevel)

	if cfg.Tracing.Enabled {
		shutdownTracing, err := tracing.Init(ctx, tracing.Options{
			ServiceName:    cfg.App.Name,
			ServiceVersion: version,
			Endpoint:       cfg.Tracing.Endpoint,
			Insecure:       cfg.Tracing.Insecure,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				log.Error().Err(err).Msg("failed to shutdown tracer")
			}
		}()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a, err := newApp(ctx, cfg, registry)
	if err != nil {
		return err
	}
	defer a.Close()

	servers := []*http.Server{{
		Addr:         cfg.HTTP.Addr,
		Handler:      newHandler(a),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}}

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		servers = append(servers, &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           mux,
			ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		})
	}

	group, groupCtx := errgroup.WithContext(ctx)

	for _, srv := range servers {
		group.Go(func() error {
			log.Info().Str("addr", srv.Addr).Msg("listening")

			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve %s: %w", srv.Addr, err)
			}

			return nil
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()

		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown %s: %w", srv.Addr, err))
			}
		}
		log.Info().Msg("servers stopped")

		return errors.Join(errs...)
	})

	return group.Wait()
}

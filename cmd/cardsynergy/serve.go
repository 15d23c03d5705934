package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ramonehamilton/cardsynergy/internal/api"
	"github.com/ramonehamilton/cardsynergy/internal/config"
	"github.com/ramonehamilton/cardsynergy/internal/logging"
	"github.com/ramonehamilton/cardsynergy/internal/storage"
	"github.com/ramonehamilton/cardsynergy/internal/version"
)

func newServeCmd(c *cli) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		Long: `Start the REST API server.

The config file is watched while the server runs. Log level, scoring
tunables and theme cutoffs apply without a restart; listener, storage,
cache and LLM provider changes need one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				c.config.Server.Addr = addr
			}
			return c.serve(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func (c *cli) serve(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := c.config
	log.Info().
		Str("service", version.Service).
		Str("version", version.Version).
		Interface("config", cfg.Redacted()).
		Msg("Starting")

	return c.withApp(ctx, func(a *app) error {
		server := api.NewServer(&api.Config{
			Addr:               cfg.Server.Addr,
			RequestTimeout:     cfg.RequestTimeout(),
			RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
			AllowedOrigins:     cfg.Server.AllowedOrigins,
		}, a.engine)

		maintenance := storage.NewScheduler(
			storage.Job{
				Name:             "cache-purge",
				Interval:         cfg.PurgeInterval(),
				StartImmediately: true,
				Run:              a.purgeCache,
			},
			storage.Job{
				Name:     "backup",
				Interval: cfg.BackupInterval(),
				Run: func(ctx context.Context) error {
					_, err := a.db.Backup(ctx, backupDir(a.dbPath, cfg.Database.BackupDir))
					return err
				},
			},
		)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(server.Start)
		g.Go(func() error {
			maintenance.Run(gctx)
			return nil
		})
		g.Go(func() error {
			err := config.Watch(gctx, c.configPath, func(next *config.Config) {
				logging.SetLevel(next.Log.Level)
				a.engine.SetConfig(engineConfig(next))
				a.themes.SetConfig(themesConfig(next))
			})
			if err != nil {
				// Serving continues without reloads.
				log.Warn().Err(err).Msg("Config watcher stopped")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})

		err := g.Wait()
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		log.Info().Msg("Server stopped")
		return nil
	})
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/Cloudsky01/rivet-deploy/internal/bus"
	"github.com/Cloudsky01/rivet-deploy/internal/config"
	"github.com/Cloudsky01/rivet-deploy/internal/github"
	"github.com/Cloudsky01/rivet-deploy/internal/server"
	"github.com/Cloudsky01/rivet-deploy/internal/webhook"
)

var (
	serveAddr string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Receive GitHub webhooks and serve the deployment API",
		Long: `Run the HTTP server:

  POST /api/github/webhook           GitHub webhook receiver (signature checked)
  POST /api/github/trigger-workflow  dispatch a workflow
  GET  /api/github/workflow-run      run status tree (?owner&repo&runId)
  GET  /api/github/workflows         workflows of a repository (?owner&repo)
  GET  /api/github/validate-token    token check
  GET  /api/github/events            server-sent events of the real-time bus

Relevant webhook events are republished on the bus. With bus.driver=redis
other processes, such as 'rivet-deploy watch', receive them as well.

The configuration file is watched; marker and secret changes apply without
a restart.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	b, err := openBus(ctx, e.cfg.Bus, e.logger)
	if err != nil {
		return err
	}
	defer b.Close()

	opts := server.Options{
		WebhookSecret: e.cfg.Webhook.Secret,
		Subscriber:    b,
		Logger:        e.logger,
	}
	client, err := e.githubClient()
	switch {
	case errors.Is(err, github.ErrTokenNotConfigured):
		e.logger.Warn("no GitHub token configured; dispatch and status endpoints will answer 500")
	case err != nil:
		return err
	default:
		opts.GitHub = client
	}
	if e.cfg.Webhook.Secret == "" {
		e.logger.Warn("no webhook secret configured; webhook deliveries will be rejected")
	}

	router := webhook.NewRouter(webhook.RouterOptions{
		Filter:    filterFrom(e.cfg.Webhook),
		Publisher: b,
		Logger:    e.logger,
	})
	opts.Router = router

	if e.cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := server.New(opts)

	if e.viper.ConfigFileUsed() != "" {
		config.WatchConfig(e.viper, e.logger, func(cfg *config.Config) {
			router.SetFilter(filterFrom(cfg.Webhook))
			srv.SetWebhookSecret(cfg.Webhook.Secret)
		})
	}

	addr := e.cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	return srv.Run(ctx, addr)
}

func filterFrom(cfg config.WebhookConfig) webhook.Filter {
	return webhook.Filter{
		NameMarkers: cfg.NameMarkers,
		PathMarkers: cfg.PathMarkers,
	}
}

func openBus(ctx context.Context, cfg config.BusConfig, logger *slog.Logger) (bus.Bus, error) {
	switch cfg.Driver {
	case config.BusDriverRedis:
		r := bus.NewRedis(bus.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Logger:   logger,
		})
		if err := r.Ping(ctx); err != nil {
			r.Close()
			return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Redis.Addr, err)
		}
		logger.Debug("real-time bus connected", "driver", cfg.Driver, "addr", cfg.Redis.Addr)
		return r, nil
	default:
		return bus.NewMemory(0), nil
	}
}

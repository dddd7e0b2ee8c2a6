package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/openmedicaid/claimlens/internal/analysis"
	"github.com/openmedicaid/claimlens/internal/api"
	"github.com/openmedicaid/claimlens/internal/logger"
	"github.com/openmedicaid/claimlens/internal/metrics"
	"github.com/openmedicaid/claimlens/internal/storage"
	"github.com/openmedicaid/claimlens/internal/telegram"
)

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Refresh reports on a schedule and serve them over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return c.serve(ctx)
		},
	}
}

func (c *cli) serve(ctx context.Context) error {
	cfg := c.cfg

	opts, err := engineOptions(cfg)
	if err != nil {
		return err
	}
	opts.Metrics = metrics.New()

	store, releaseStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer releaseStore()
	opts.Store = store

	responses, releaseCache, err := openCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer releaseCache()
	if responses != nil {
		opts.Cache = responses
	}

	var history *storage.Storage
	if cfg.Storage.Enabled {
		history, err = storage.New(cfg.Storage.MaxReports, cfg.Storage.DBPath)
		if err != nil {
			return err
		}
		defer func() {
			if err := history.Close(); err != nil {
				logger.Error("Failed to close storage: %v", err)
			}
		}()
		opts.Reports = history
	}

	if cfg.Telegram.Enabled {
		client, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelay)
		if err != nil {
			return err
		}
		opts.Notifier = client
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	engine, err := analysis.New(opts)
	if err != nil {
		return err
	}
	if err := engine.Restore(ctx); err != nil {
		logger.Warn("%v", err)
	}
	// A failed first refresh is not fatal: the scheduler retries and the
	// restored report, if any, keeps serving.
	_, _ = engine.Refresh(ctx)

	scheduler, err := analysis.NewScheduler(engine, cfg.Analysis.RefreshSchedule, cfg.Analysis.RefreshTimeout)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()
	logger.Info("Refreshing reports on schedule %q", cfg.Analysis.RefreshSchedule)

	apiOpts := api.Options{
		Reports:  engine,
		Cache:    responses,
		Metrics:  opts.Metrics,
		PageSize: cfg.Server.PageSize,
	}
	if history != nil {
		apiOpts.History = history
	}
	server := api.New(apiOpts)
	return server.ListenAndServe(ctx, cfg.Server.Addr, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout)
}

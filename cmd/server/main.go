// Command server runs the application portal over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/dharsanguruparan/RestorePortal/internal/bootstrap"
	"github.com/dharsanguruparan/RestorePortal/internal/config"
	"github.com/dharsanguruparan/RestorePortal/internal/credential"
	"github.com/dharsanguruparan/RestorePortal/internal/gateway"
	"github.com/dharsanguruparan/RestorePortal/internal/intake"
	"github.com/dharsanguruparan/RestorePortal/internal/lifecycle"
	"github.com/dharsanguruparan/RestorePortal/internal/logging"
	"github.com/dharsanguruparan/RestorePortal/internal/metrics"
	"github.com/dharsanguruparan/RestorePortal/internal/processing"
	"github.com/dharsanguruparan/RestorePortal/internal/queue"
	"github.com/dharsanguruparan/RestorePortal/internal/server"
	"github.com/dharsanguruparan/RestorePortal/internal/storage"
	"github.com/dharsanguruparan/RestorePortal/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, log)
	stop()
	if err != nil {
		log.WithError(err).Error("server stopped")
		os.Exit(1)
	}
}

// run serves until ctx is cancelled. Every resource it opens is released
// before it returns.
func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	store, closeStore, err := bootstrap.Store(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open record store: %w", err)
	}
	defer closeStore()
	if cfg.SeedDemo {
		if err := storage.Seed(ctx, store, storage.DemoApplications()); err != nil {
			return fmt.Errorf("seed demo applications: %w", err)
		}
	}

	blobs, err := bootstrap.Blobs(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open upload storage: %w", err)
	}

	var reviews queue.Dispatcher
	if cfg.RedisAddr != "" {
		client := asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()
		reviews = queue.NewAsynqDispatcher(client)
		log.WithField("redis", cfg.RedisAddr).Info("document reviews go to the asynq queue")
	} else {
		reviewer := worker.NewReviewer(blobs, log)
		pool := processing.New(reviewer.Review, cfg.ProcessingPool, log)
		poolCtx, stopPool := context.WithCancel(ctx)
		pool.Start(poolCtx)
		defer pool.Wait()
		defer stopPool()
		reviews = pool
	}

	validator := intake.New(blobs, cfg.AllowedExtensions, cfg.MaxFileSize, intake.WithLogger(log))
	issuer := credential.NewIssuer(credential.Mode(cfg.TokenMode))
	ctrl := lifecycle.New(store, validator, issuer,
		lifecycle.WithReviewDispatcher(reviews),
		lifecycle.WithLogger(log),
	)

	srv := server.New(server.Deps{
		Config:    cfg,
		Lifecycle: ctrl,
		Gateway:   gateway.New(store, log),
		Blobs:     blobs,
		Metrics:   metrics.New(),
		Log:       log,
	})
	return srv.Serve(ctx)
}

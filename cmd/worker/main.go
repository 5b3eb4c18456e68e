// Command worker consumes document review tasks from the asynq queue.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/dharsanguruparan/RestorePortal/internal/bootstrap"
	"github.com/dharsanguruparan/RestorePortal/internal/config"
	"github.com/dharsanguruparan/RestorePortal/internal/logging"
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
		log.WithError(err).Error("worker stopped")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	if cfg.RedisAddr == "" {
		return errors.New("PORTAL_REDIS_ADDR is required for the review worker")
	}
	blobs, err := bootstrap.Blobs(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open upload storage: %w", err)
	}

	srv := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, asynq.Config{
		Concurrency: cfg.ProcessingPool,
		Logger:      log,
	})
	reviewer := worker.NewReviewer(blobs, log)

	go func() {
		<-ctx.Done()
		srv.Shutdown()
	}()
	return srv.Run(reviewer.Handler())
}

// Package bootstrap builds the storage backends selected by configuration.
// Both binaries share it so the portal and the review worker always agree on
// where artifacts live.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/dharsanguruparan/RestorePortal/internal/blob"
	"github.com/dharsanguruparan/RestorePortal/internal/config"
	"github.com/dharsanguruparan/RestorePortal/internal/database"
	"github.com/dharsanguruparan/RestorePortal/internal/repository"
	"github.com/dharsanguruparan/RestorePortal/internal/s3storage"
	"github.com/dharsanguruparan/RestorePortal/internal/storage"
)

// Store opens the record store. The returned close function releases any
// connection pool and is never nil.
func Store(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (storage.Store, func(), error) {
	switch cfg.Store {
	case config.StorePostgres:
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		if err := database.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		log.Info("using postgres record store")
		return repository.NewApplicationRepository(pool), pool.Close, nil
	default:
		log.Info("using in-memory record store")
		return storage.NewMemoryStore(), func() {}, nil
	}
}

// Blobs opens the artifact store.
func Blobs(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (blob.Store, error) {
	switch cfg.Blob {
	case config.BlobS3:
		s, err := s3storage.New(cfg)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		log.WithField("bucket", cfg.S3Bucket).Info("using s3 upload storage")
		return s, nil
	default:
		d, err := blob.NewDir(cfg.UploadDir)
		if err != nil {
			return nil, err
		}
		log.WithField("dir", d.Root()).Info("using filesystem upload storage")
		return d, nil
	}
}

package client

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dmitrijs2005/chatline/internal/blobstore"
	"github.com/dmitrijs2005/chatline/internal/cache"
	"github.com/dmitrijs2005/chatline/internal/client/config"
	"github.com/dmitrijs2005/chatline/internal/docstore"
	"github.com/dmitrijs2005/chatline/internal/filex"
	"github.com/dmitrijs2005/chatline/internal/logging"
)

const blobPrefix = "attachments"

// OpenStore opens the document store selected by cfg.Backend. A Postgres
// store is migrated before use.
func OpenStore(ctx context.Context, cfg *config.Config, logger logging.Logger) (docstore.Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return docstore.NewMemory(logger), nil

	case config.BackendPebble:
		dir, err := filex.EnsureDir(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		return docstore.OpenPebble(filepath.Join(dir, "docs"), logger)

	case config.BackendPostgres:
		pg, err := docstore.OpenPostgres(ctx, cfg.DatabaseDSN, logger)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, fmt.Errorf("migrate error: %w", err)
		}
		return pg, nil

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// OpenBlobs builds the attachment uploader selected by cfg.BlobBackend.
func OpenBlobs(ctx context.Context, cfg *config.Config) (blobstore.Uploader, error) {
	switch cfg.BlobBackend {
	case config.BlobMemory:
		return blobstore.NewMemory(blobPrefix), nil

	case config.BlobLocal:
		dir, err := filex.EnsureDir(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		return blobstore.NewLocal(filepath.Join(dir, "blobs"), blobPrefix)

	case config.BlobS3:
		return blobstore.NewS3(ctx, blobstore.S3Config{
			Region:       cfg.S3Region,
			RootUser:     cfg.S3RootUser,
			RootPassword: cfg.S3RootPassword,
			BaseEndpoint: cfg.S3BaseEndpoint,
			Bucket:       cfg.S3Bucket,
			Prefix:       blobPrefix,
			PublicURL:    cfg.S3PublicURL,
		})

	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
	}
}

// OpenCache connects to Redis when cfg.RedisURL is set and returns nil
// otherwise; profiles are then read straight from the store.
func OpenCache(ctx context.Context, cfg *config.Config) (cache.Cache, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	c, err := cache.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	return c, nil
}

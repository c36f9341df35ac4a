package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicboard/clinicboard/internal/config"
	"github.com/clinicboard/clinicboard/internal/platform/blobstore"
	"github.com/clinicboard/clinicboard/internal/platform/db"
	"github.com/clinicboard/clinicboard/internal/platform/keystore"
	"github.com/clinicboard/clinicboard/internal/platform/middleware"
)

// backend is the storage selected by STORE_BACKEND: a key-value store for
// the patient collection and accounts, and a blob store for documents.
type backend struct {
	name  string
	kv    keystore.Store
	blobs blobstore.BlobStore
	stats func() any
	close func()
}

func openBackend(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*backend, error) {
	maxUpload := middleware.ParseLimit(cfg.MaxUploadSize)

	switch cfg.StoreBackend {
	case config.BackendMemory:
		logger.Warn().Msg("memory backend: records are lost on shutdown")
		return &backend{
			name:  cfg.StoreBackend,
			kv:    keystore.NewMemory(),
			blobs: blobstore.NewMemory(maxUpload),
			close: func() {},
		}, nil

	case config.BackendFile:
		kv, err := keystore.NewFile(filepath.Join(cfg.DataDir, "records"))
		if err != nil {
			return nil, err
		}
		blobs, err := blobstore.NewDir(filepath.Join(cfg.DataDir, "documents"), maxUpload)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("dir", cfg.DataDir).Msg("using file store")
		return &backend{name: cfg.StoreBackend, kv: kv, blobs: blobs, close: func() {}}, nil

	case config.BackendPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		applied, err := db.NewMigrator(pool, db.Migrations()).Up(ctx)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info().Int("applied", applied).Msg("connected to database")
		return &backend{
			name:  cfg.StoreBackend,
			kv:    keystore.NewPostgres(pool),
			blobs: blobstore.NewPostgres(pool, maxUpload),
			stats: func() any { return db.GetPoolStats(pool) },
			close: pool.Close,
		}, nil

	case config.BackendMongo:
		// open the document dir before dialing mongo
		blobs, err := blobstore.NewDir(filepath.Join(cfg.DataDir, "documents"), maxUpload)
		if err != nil {
			return nil, err
		}
		store, err := keystore.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("connect to mongo: %w", err)
		}
		logger.Info().Str("database", cfg.MongoDatabase).Msg("connected to mongo")
		return &backend{
			name:  cfg.StoreBackend,
			kv:    store,
			blobs: blobs,
			close: func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := store.Close(ctx); err != nil {
					logger.Error().Err(err).Msg("mongo disconnect failed")
				}
			},
		}, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

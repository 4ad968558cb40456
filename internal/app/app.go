// Package app wires configuration into the stores, storage backend and
// services shared by the HTTP server and the CLI.
package app

import (
	"context"
	"fmt"

	"github.com/timmy/thumbcraft/internal/config"
	"github.com/timmy/thumbcraft/internal/logger"
	"github.com/timmy/thumbcraft/internal/repository"
	"github.com/timmy/thumbcraft/internal/service"
	"github.com/timmy/thumbcraft/internal/storage"
)

// App holds the initialized components.
type App struct {
	Config     *config.Config
	Stores     *repository.Stores
	Storage    storage.ObjectStorage
	Thumbnails *service.ThumbnailService
	Avatars    *service.AvatarService
	References *service.ReferenceService
}

// New opens the stores and the storage backend and builds every service.
// Parameters:
//   - ctx: bounds bucket preparation.
//   - cfg: validated configuration.
//
// Returns:
//   - *App: ready to use components; call Close when done.
//   - error: if a backend cannot be initialized.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	stores, err := repository.Open(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	objectStorage, err := storage.NewStorage(&cfg.Storage)
	if err != nil {
		_ = stores.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := objectStorage.EnsureBucket(ctx); err != nil {
		_ = stores.Close()
		return nil, fmt.Errorf("failed to ensure storage bucket: %w", err)
	}

	fetcher := service.NewImageFetcher(cfg.Generation.FetchTimeout, cfg.Generation.ImageCacheTTL, cfg.Upload.MaxBytes).
		WithStorage(objectStorage)
	uploader := service.NewStorageUploader(objectStorage, fetcher, service.RetryPolicy{
		MaxAttempts: cfg.Upload.MaxAttempts,
		BaseDelay:   cfg.Upload.BaseDelay,
	}, cfg.Upload.MaxBytes)
	generator := service.NewGenerationClient(&cfg.Provider, fetcher)

	a := &App{
		Config:  cfg,
		Stores:  stores,
		Storage: objectStorage,
		Thumbnails: service.NewThumbnailService(service.ThumbnailServiceConfig{
			Resolver:   service.NewAssetResolver(stores.Avatars, stores.References),
			Generator:  generator,
			Uploader:   uploader,
			History:    service.NewHistoryRecorder(stores.Thumbnails),
			Thumbnails: stores.Thumbnails,
			Timeout:    cfg.Generation.Timeout,
		}),
		Avatars:    service.NewAvatarService(stores.Avatars, uploader, cfg.Library.MinAvatarPhotos, cfg.Library.MaxAvatarPhotos),
		References: service.NewReferenceService(stores.References, uploader),
	}

	logger.With(logger.Fields{
		"database": cfg.Database.Driver,
		"storage":  cfg.Storage.Type,
		"model":    generator.GetModel(),
	}).Info(ctx, "Components initialized")
	return a, nil
}

// Close releases the database connection.
func (a *App) Close() error {
	return a.Stores.Close()
}

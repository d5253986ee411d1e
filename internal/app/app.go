// Package app builds the long-lived services shared by the server and the
// import CLI from a loaded Config.
package app

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kylemichaelreaves/pokemon-tcg-manager/internal/config"
	"github.com/kylemichaelreaves/pokemon-tcg-manager/internal/database"
	"github.com/kylemichaelreaves/pokemon-tcg-manager/internal/logging"
	"github.com/kylemichaelreaves/pokemon-tcg-manager/internal/services"
)

// App holds the configured logger, database and services.
type App struct {
	Config     config.Config
	Logger     *zap.Logger
	DB         *gorm.DB
	Catalog    *services.CatalogService
	Collection *services.CollectionService
	Importer   *services.ImportService
}

// New opens the database and wires every service. Completed imports purge
// the catalog read cache.
func New(cfg config.Config) (*App, error) {
	logger, err := logging.New(logging.Options{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
		File:        cfg.Logging.File,
	})
	if err != nil {
		return nil, err
	}

	db, err := database.Open(database.Config{
		Driver:   cfg.Database.Driver,
		DSN:      cfg.Database.DSN,
		LogLevel: cfg.Database.LogLevel,
	}, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return NewWithDB(cfg, db, logger), nil
}

// NewWithDB wires services around an already opened database
func NewWithDB(cfg config.Config, db *gorm.DB, logger *zap.Logger) *App {
	client := services.NewTCGdexClient(services.TCGdexConfig{
		BaseURL:           cfg.TCGdex.BaseURL,
		Timeout:           cfg.TCGdex.Timeout,
		MaxAttempts:       cfg.TCGdex.MaxAttempts,
		DefaultRetryAfter: cfg.TCGdex.DefaultRetryAfter,
		MaxRateLimitWaits: cfg.TCGdex.MaxRateLimitWaits,
	}, services.NewThrottle(cfg.TCGdex.MinInterval), logger)

	catalog := services.NewCatalogService(db, cfg.Catalog.ImageBaseURL, cfg.Catalog.CacheSize, logger)
	importer := services.NewImportService(database.NewCatalogStore(db), client, services.ImportConfig{
		BatchSize: cfg.Import.BatchSize,
		Language:  cfg.Import.Language,
	}, logger)
	importer.OnComplete(func(*services.ImportResult) {
		catalog.Purge()
	})

	return &App{
		Config:     cfg,
		Logger:     logger,
		DB:         db,
		Catalog:    catalog,
		Collection: services.NewCollectionService(db, cfg.Catalog.ImageBaseURL, logger),
		Importer:   importer,
	}
}

// Close releases the database and flushes the logger
func (a *App) Close() error {
	var closeErr error
	if sqlDB, err := a.DB.DB(); err == nil {
		closeErr = sqlDB.Close()
	}
	_ = a.Logger.Sync()
	return closeErr
}

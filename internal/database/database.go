package database

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kylemichaelreaves/pokemon-tcg-manager/internal/models"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects the driver and DSN for Open
type Config struct {
	Driver   string
	DSN      string
	LogLevel string
}

// Open connects to the configured database, migrates the schema and seeds
// the taxonomy and language dictionaries.
func Open(cfg Config, log *zap.Logger) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}

	log.Info("Database connected successfully", zap.String("driver", cfg.Driver))

	if err := Migrate(db, log); err != nil {
		return nil, err
	}

	log.Info("Database migration completed")
	return db, nil
}

// Migrate brings the schema up to date. Legacy data fixups run before
// AutoMigrate so new unique indexes never see rows that would violate them.
func Migrate(db *gorm.DB, log *zap.Logger) error {
	if err := normalizeLegacyAPIIDs(db, log); err != nil {
		return fmt.Errorf("failed to normalize legacy api ids: %w", err)
	}

	err := db.AutoMigrate(
		&models.Language{},
		&models.Rarity{},
		&models.CardType{},
		&models.EnergyType{},
		&models.Set{},
		&models.Card{},
		&models.CollectionItem{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	if err := RunMigrations(db, log); err != nil {
		return err
	}
	return Seed(db)
}

func dialectorFor(cfg Config) (gorm.Dialector, error) {
	switch cfg.Driver {
	case DriverSQLite, "":
		return sqlite.Open(sqliteDSN(cfg.DSN)), nil
	case DriverPostgres:
		return postgres.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// sqliteDSN turns on foreign key enforcement, which SQLite leaves off per
// connection unless asked.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys") || strings.Contains(dsn, "_fk") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on&_busy_timeout=5000"
}

func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/welldanyogia/coachhub-backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Options configures Connect. Zero pool sizes fall back to the defaults.
type Options struct {
	URL             string
	AppEnv          string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

const (
	DefaultMaxOpenConns    = 25
	DefaultMaxIdleConns    = 10
	DefaultConnMaxLifetime = time.Hour
	defaultConnMaxIdleTime = 10 * time.Minute
)

// Connect opens the PostgreSQL pool. In production the URL must not disable SSL.
func Connect(opts Options) (*gorm.DB, error) {
	production := opts.AppEnv == "production"
	if production {
		if err := validateSSLMode(opts.URL); err != nil {
			return nil, err
		}
	}

	logLevel := logger.Info
	if production {
		logLevel = logger.Warn
	}

	db, err := gorm.Open(postgres.Open(opts.URL), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	applyPool(sqlDB, opts)

	slog.Info("connected to database",
		slog.Int("max_open_conns", sqlDB.Stats().MaxOpenConnections))
	return db, nil
}

func validateSSLMode(databaseURL string) error {
	if strings.Contains(databaseURL, "sslmode=disable") {
		return fmt.Errorf("SSL mode cannot be disabled in production")
	}
	return nil
}

func applyPool(sqlDB *sql.DB, opts Options) {
	maxOpen := orDefault(opts.MaxOpenConns, DefaultMaxOpenConns)
	maxIdle := orDefault(opts.MaxIdleConns, DefaultMaxIdleConns)
	if maxIdle > maxOpen {
		maxIdle = maxOpen
	}
	lifetime := opts.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = DefaultConnMaxLifetime
	}

	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(lifetime)
	sqlDB.SetConnMaxIdleTime(defaultConnMaxIdleTime)
}

func orDefault(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// AllModels lists every persisted entity in migration order
func AllModels() []interface{} {
	return []interface{}{
		&models.Coach{},
		&models.Client{},
		&models.Admin{},
		&models.CoachClientRelationship{},
		&models.Conversation{},
		&models.ConversationParticipant{},
		&models.DirectMessage{},
		&models.EmailAccount{},
		&models.EmailThread{},
		&models.EmailMessage{},
	}
}

// Migrate runs auto-migration for all models
func Migrate(db *gorm.DB) error {
	slog.Info("Running database migrations...")

	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Info("Database migrations completed successfully")
	return nil
}

// Close closes the database connection
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

package database

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Supported database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Now is the clock for stored timestamps. Everything is kept in UTC so that
// SQLite, which compares timestamps as text, orders them by instant.
func Now() time.Time {
	return time.Now().UTC()
}

// DB is the global database instance
var DB *gorm.DB

// Open opens a database handle for the given driver and DSN.
// SQLite in-memory databases are pinned to a single connection so that every
// query sees the same database.
func Open(driver, dsn string, logLevel logger.LogLevel) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres, "":
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
		NowFunc:        Now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == DriverSQLite && strings.Contains(dsn, ":memory:") {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access sql.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return db, nil
}

// Connect establishes the global database connection
func Connect(driver, dsn string, logLevel logger.LogLevel) error {
	db, err := Open(driver, dsn, logLevel)
	if err != nil {
		return err
	}
	DB = db
	zap.S().Infow("Database connection established", "driver", driver)
	return nil
}

// AutoMigrate runs database migrations for every model
func AutoMigrate(db *gorm.DB) error {
	zap.S().Info("Running database migrations...")

	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	zap.S().Info("Database migrations completed successfully")
	return nil
}

// ParseLogLevel maps a textual level to a GORM log level. Unknown values map to Warn.
func ParseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

// Close closes the database connection
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

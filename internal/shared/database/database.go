package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB wraps both GORM and the underlying sql.DB
type DB struct {
	*sql.DB
	GORM *gorm.DB
}

// Options tunes the connection pool
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Debug           bool
}

func DefaultOptions() Options {
	return Options{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	}
}

// NewDB creates a new database connection using GORM
func NewDB(connStr string, opts Options) (*DB, error) {
	if connStr == "" {
		return nil, errors.New("DATABASE_URL is empty")
	}

	logMode := logger.Warn
	if opts.Debug {
		logMode = logger.Info
	}

	gormDB, err := gorm.Open(postgres.Open(connStr), &gorm.Config{
		Logger: logger.Default.LogMode(logMode),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("database connected")
	return &DB{
		DB:   sqlDB,
		GORM: gormDB,
	}, nil
}

func (db *DB) Close() error {
	log.Info().Msg("closing database connection")
	return db.DB.Close()
}

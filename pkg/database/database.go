// Package database opens the SQL connection pool and applies the embedded
// schema migrations.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Supported database/sql driver names
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// MemoryPath opens a private in-memory SQLite database
const MemoryPath = ":memory:"

// Config holds database configuration
type Config struct {
	Driver          string
	Path            string // SQLite file path
	DSN             string // PostgreSQL connection string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open creates a connection pool for cfg.Driver and verifies it
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*sql.DB, error) {
	var (
		dsn      string
		maxConns = cfg.MaxOpenConns
		lifetime = cfg.ConnMaxLifetime
	)

	switch cfg.Driver {
	case DriverSQLite:
		if cfg.Path == MemoryPath {
			// Every connection to :memory: is a separate database.
			dsn = "file::memory:?_foreign_keys=on"
			maxConns, lifetime = 1, 0
		} else {
			// WAL for concurrent readers. Write transactions take the lock at BEGIN
			// so a read-then-update never fails with SQLITE_BUSY on a stale snapshot.
			dsn = fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate", cfg.Path)
		}
	case DriverPostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("database dsn is required for driver %s", cfg.Driver)
		}
		dsn = cfg.DSN
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	sqlDB, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if maxConns > 0 {
		sqlDB.SetMaxOpenConns(maxConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if lifetime > 0 {
		sqlDB.SetConnMaxLifetime(lifetime)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database connection established",
		zap.String("driver", cfg.Driver),
		zap.String("path", cfg.Path),
	)
	return sqlDB, nil
}

// internal/database/db.go
package database

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoDatabase is returned by every query when no pool is connected.
var ErrNoDatabase = errors.New("database: not configured")

// DB is the shared pool. It stays nil when Postgres is not configured.
var DB *pgxpool.Pool

//go:embed schema.sql
var schemaSQL string

// ConnectDB opens the pool for dsn and verifies it with a ping.
func ConnectDB(ctx context.Context, dsn string) error {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("unable to parse pgx config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("unable to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return fmt.Errorf("db ping error: %w", err)
	}

	DB = pool
	return nil
}

// Enabled reports whether a pool is connected.
func Enabled() bool {
	return DB != nil
}

// Close releases the pool.
func Close() {
	if DB != nil {
		DB.Close()
		DB = nil
	}
}

// EnsureSchema creates missing tables.
func EnsureSchema(ctx context.Context) error {
	if DB == nil {
		return ErrNoDatabase
	}
	if _, err := DB.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"warden/config"
)

// DB represents a database connection pool
type DB struct {
	*pgxpool.Pool
}

// NewConnection creates a new database connection pool sized from config
func NewConnection(ctx context.Context, cfg *config.Config) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Set timezone to UTC for all connections
	poolConfig.ConnConfig.RuntimeParams["timezone"] = "UTC"

	poolConfig.MaxConns = int32(cfg.PoolSize + cfg.PoolOverflow)
	poolConfig.MinConns = int32(cfg.PoolSize / 2)
	poolConfig.MaxConnLifetime = cfg.PoolRecycle
	poolConfig.ConnConfig.ConnectTimeout = cfg.PoolTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the database connection pool
func (db *DB) Close() {
	db.Pool.Close()
}

package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// The registry is a single table; members and timer documents live in JSONB
// so a room mutation is always one row write under one row lock.
const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id             UUID PRIMARY KEY,
	name           TEXT NOT NULL UNIQUE,
	host_id        TEXT NOT NULL,
	host_name      TEXT NOT NULL,
	timer_settings JSONB NOT NULL,
	timer_state    JSONB NOT NULL,
	members        JSONB NOT NULL DEFAULT '[]',
	version        BIGINT NOT NULL DEFAULT 1,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
)`

func setupDatabase(ctx context.Context, cfg DatabaseConfig) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("connected to database")
	return pool, nil
}

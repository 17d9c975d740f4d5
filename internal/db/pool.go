package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS scenes (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	owner_id    TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS scene_snapshots (
	id          TEXT PRIMARY KEY,
	scene_id    TEXT NOT NULL REFERENCES scenes(id) ON DELETE CASCADE,
	version     INTEGER NOT NULL,
	document    JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (scene_id, version)
);

CREATE INDEX IF NOT EXISTS scenes_owner_idx ON scenes (owner_id);
`

// Migrate creates the tables if they are missing.
func Migrate(ctx context.Context, conn DBTX) error {
	if _, err := conn.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

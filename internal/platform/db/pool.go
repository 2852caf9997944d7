// Package db holds the Postgres plumbing behind the postgres table source:
// pool construction, the health endpoint and the file importer.
package db

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolConfig configures NewPool.
type PoolConfig struct {
	URL      string
	MaxConns int32
	MinConns int32
	// ReadOnly makes every transaction read-only. The dashboard connects
	// this way; only the importer needs to write.
	ReadOnly bool
	// StatementTimeout bounds each query server side. Zero leaves the
	// server default.
	StatementTimeout time.Duration
}

// NewPool opens a pool and checks that the server answers.
func NewPool(ctx context.Context, pc PoolConfig) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(pc.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if pc.MaxConns > 0 {
		cfg.MaxConns = pc.MaxConns
	}
	cfg.MinConns = pc.MinConns

	params := cfg.ConnConfig.RuntimeParams
	params["application_name"] = "mskdash"
	if pc.ReadOnly {
		params["default_transaction_read_only"] = "on"
	}
	if pc.StatementTimeout > 0 {
		params["statement_timeout"] = strconv.FormatInt(pc.StatementTimeout.Milliseconds(), 10)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

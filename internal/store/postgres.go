// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

// Package store manages the PostgreSQL connection and schema migrations
// shared by the credential stores.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// ConnectOptions controls how long Connect waits for the database.
type ConnectOptions struct {
	// MaxRetries is the number of additional ping attempts after the first.
	MaxRetries uint64
	// InitialBackoff is the first wait between attempts; it doubles each time.
	InitialBackoff time.Duration
	// MaxBackoff caps a single wait.
	MaxBackoff time.Duration
	Logger     *slog.Logger
}

// DefaultConnectOptions waits roughly half a minute for the database.
func DefaultConnectOptions() ConnectOptions {
	return ConnectOptions{
		MaxRetries:     8,
		InitialBackoff: 250 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Logger:         slog.Default(),
	}
}

// Connect opens a pgx pool for dsn and pings it until it answers or the
// retry budget runs out. It is meant for process startup only.
func Connect(ctx context.Context, dsn string, opts ConnectOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse dsn").Wrap(err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	backoff := retry.NewExponential(opts.InitialBackoff)
	backoff = retry.WithCappedDuration(opts.MaxBackoff, backoff)
	backoff = retry.WithMaxRetries(opts.MaxRetries, backoff)

	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if pingErr := pool.Ping(ctx); pingErr != nil {
			logger.WarnContext(ctx, "database not ready",
				"attempt", attempt,
				"host", cfg.ConnConfig.Host,
				"error", pingErr)
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping").
			With("attempts", attempt).
			With("host", cfg.ConnConfig.Host).
			Wrap(err)
	}

	logger.InfoContext(ctx, "connected to database",
		"host", cfg.ConnConfig.Host,
		"database", cfg.ConnConfig.Database)
	return pool, nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"

	"github.com/passgate/passgate/internal/config"
	"github.com/passgate/passgate/internal/credential"
	"github.com/passgate/passgate/internal/credential/memory"
	"github.com/passgate/passgate/internal/credential/postgres"
	credredis "github.com/passgate/passgate/internal/credential/redis"
	"github.com/passgate/passgate/internal/credential/sqlite"
	"github.com/passgate/passgate/internal/store"
)

// backends holds the opened stores and the probes and closers that go with
// them.
type backends struct {
	users    credential.UserStore
	sessions credential.SessionBinder
	probes   []func(context.Context) error
	closers  []func() error
}

// ready reports the first failing probe.
func (b *backends) ready(ctx context.Context) error {
	for _, probe := range b.probes {
		if err := probe(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close releases everything in reverse order of opening.
func (b *backends) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	b.closers = nil
	return errors.Join(errs...)
}

// openBackends connects the configured user store and session binder.
// Postgres migrations run once the database answers, when auto_migrate is set.
func openBackends(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *backends, err error) {
	b := &backends{}
	defer func() {
		if err != nil {
			_ = b.Close() //nolint:errcheck // open error takes precedence
		}
	}()

	var pool *pgxpool.Pool
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		dsn := cfg.Database.DSN()
		opts := store.DefaultConnectOptions()
		opts.Logger = logger
		pool, err = store.Connect(ctx, dsn, opts)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() error { pool.Close(); return nil })
		if cfg.Database.AutoMigrate {
			if err := migrateUp(dsn, logger); err != nil {
				return nil, err
			}
		}
		b.probes = append(b.probes, pool.Ping)
		b.users = postgres.NewUserStore(pool)

	case config.DriverSQLite:
		path, err := cfg.Database.ResolveSQLitePath()
		if err != nil {
			return nil, err
		}
		db, err := sqlite.Open(ctx, path, logger)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, db.Close)
		b.probes = append(b.probes, db.PingContext)
		b.users = sqlite.NewUserStore(db)
		logger.InfoContext(ctx, "using sqlite credential store", "path", path)

	case config.DriverMemory:
		b.users = memory.NewUserStore()
		logger.WarnContext(ctx, "using in-memory credential store; users are lost on exit")

	default:
		return nil, oops.Code("CONFIG_INVALID").With("driver", cfg.Database.Driver).Errorf("unknown database driver")
	}

	switch cfg.Session.Backend {
	case config.BackendPostgres:
		if pool == nil {
			return nil, oops.Code("CONFIG_INVALID").Errorf("postgres session backend requires the postgres driver")
		}
		b.sessions = postgres.NewSessionStore(pool)

	case config.BackendRedis:
		client, err := credredis.NewClient(ctx, cfg.Session.RedisURL)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, client.Close)
		b.probes = append(b.probes, func(ctx context.Context) error { return client.Ping(ctx).Err() })
		b.sessions = credredis.NewSessionStore(client)

	case config.BackendMemory:
		b.sessions = memory.NewSessionStore()

	default:
		return nil, oops.Code("CONFIG_INVALID").With("backend", cfg.Session.Backend).Errorf("unknown session backend")
	}

	return b, nil
}

func migrateUp(dsn string, logger *slog.Logger) error {
	migrator, err := store.NewMigrator(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = migrator.Close() }() //nolint:errcheck // best-effort cleanup

	if err := migrator.Up(); err != nil {
		return err
	}
	version, dirty, err := migrator.Version()
	if err != nil {
		return err
	}
	logger.Info("database schema up to date", "version", version, "dirty", dirty)
	return nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

// Package sqlite implements the credential user store on an embedded
// SQLite database for single-binary deployments.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
	"github.com/samber/oops"
	// Register the pure-Go "sqlite" database/sql driver.
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Open opens the database at path, applies pending schema migrations and
// returns the handle. Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string, logger *slog.Logger) (*sql.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, oops.Code("SQLITE_OPEN_FAILED").With("path", path).Wrap(err)
	}
	// SQLite serializes writers; one connection also keeps :memory:
	// databases shared across calls.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, oops.Code("SQLITE_OPEN_FAILED").With("path", path).With("pragma", pragma).Wrap(err)
		}
	}

	if err := migrate(ctx, db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func migrate(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return oops.Code("SQLITE_MIGRATE_FAILED").Wrap(err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return oops.Code("SQLITE_MIGRATE_FAILED").With("operation", "create provider").Wrap(err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return oops.Code("SQLITE_MIGRATE_FAILED").With("operation", "up").Wrap(err)
	}
	for _, r := range results {
		logger.InfoContext(ctx, "applied sqlite migration",
			"version", r.Source.Version,
			"duration", r.Duration)
	}
	return nil
}

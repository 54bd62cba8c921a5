// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/passgate/passgate/internal/config"
	"github.com/passgate/passgate/internal/credential/sqlite"
	"github.com/passgate/passgate/internal/store"
)

// NewMigrateCmd creates the migrate subcommand and its children.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
		Long: `Apply, roll back or inspect the credential schema. PostgreSQL uses the
embedded golang-migrate files; SQLite databases are migrated on open.`,
	}
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE:  runMigrateUp,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations (drops every credential table)",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, m *store.Migrator, _ []string) error {
			if err := m.Down(); err != nil {
				return err
			}
			cmd.Println("All migrations rolled back")
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the current schema version",
		Args:  cobra.NoArgs,
		RunE:  withMigrator(runMigrateVersion),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List pending migrations",
		Args:  cobra.NoArgs,
		RunE:  withMigrator(runMigrateStatus),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Set the schema version without running migrations (clears dirty state)",
		Args:  cobra.ExactArgs(1),
		RunE: withMigrator(func(cmd *cobra.Command, m *store.Migrator, args []string) error {
			v, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			if err := m.Force(v); err != nil {
				return err
			}
			cmd.Printf("Forced schema version to %d\n", v)
			return nil
		}),
	})

	return cmd
}

func databaseConfig(cmd *cobra.Command) (config.DatabaseConfig, error) {
	cfg, err := config.Load(cmd.Flags(), configFile)
	if err != nil {
		return config.DatabaseConfig{}, err
	}
	if err := cfg.Database.Validate(); err != nil {
		return config.DatabaseConfig{}, err
	}
	return cfg.Database, nil
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	db, err := databaseConfig(cmd)
	if err != nil {
		return err
	}

	switch db.Driver {
	case config.DriverSQLite:
		path, err := db.ResolveSQLitePath()
		if err != nil {
			return err
		}
		conn, err := sqlite.Open(cmd.Context(), path, nil)
		if err != nil {
			return err
		}
		cmd.Printf("SQLite schema at %s is up to date\n", path)
		return conn.Close()
	case config.DriverMemory:
		return oops.Code("CONFIG_INVALID").Errorf("the memory driver has no schema to migrate")
	}

	return withMigrator(func(cmd *cobra.Command, m *store.Migrator, _ []string) error {
		cmd.Println("Running migrations...")
		if err := m.Up(); err != nil {
			return err
		}
		return runMigrateVersion(cmd, m, nil)
	})(cmd, nil)
}

// withMigrator opens a PostgreSQL migrator for the configured database and
// closes it after fn returns.
func withMigrator(fn func(*cobra.Command, *store.Migrator, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		db, err := databaseConfig(cmd)
		if err != nil {
			return err
		}
		if db.Driver != config.DriverPostgres {
			return oops.Code("CONFIG_INVALID").
				With("driver", db.Driver).
				Errorf("this migrate command requires the postgres driver")
		}

		m, err := store.NewMigrator(db.DSN())
		if err != nil {
			return err
		}
		defer func() { _ = m.Close() }() //nolint:errcheck // best-effort cleanup

		return fn(cmd, m, args)
	}
}

func runMigrateVersion(cmd *cobra.Command, m *store.Migrator, _ []string) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	if version == 0 {
		cmd.Println("Schema version: none (no migrations applied)")
		return nil
	}
	name, err := store.MigrationName(version)
	if err != nil {
		name = "unknown"
	}
	state := ""
	if dirty {
		state = " (dirty)"
	}
	cmd.Printf("Schema version: %d %s%s\n", version, name, state)
	return nil
}

func runMigrateStatus(cmd *cobra.Command, m *store.Migrator, _ []string) error {
	pending, err := m.PendingMigrations()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		cmd.Println("No pending migrations")
		return nil
	}
	cmd.Printf("%d pending migration(s):\n", len(pending))
	for _, v := range pending {
		name, err := store.MigrationName(v)
		if err != nil {
			name = "unknown"
		}
		cmd.Printf("  %06d %s\n", v, name)
	}
	return nil
}

// parseForceVersion reads the leading integer from s.
func parseForceVersion(s string) (int, error) {
	var v int
	if strings.TrimSpace(s) == "" {
		return 0, oops.Code("INVALID_VERSION").Errorf("version is required")
	}
	if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Wrapf(err, "version must be an integer")
	}
	return v, nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/passgate/passgate/internal/config"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the passgate CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "passgate",
		Short: "passgate - a minimal credential service",
		Long: `passgate registers users, authenticates logins and rotates passwords
against a relational store, binding server-side sessions to a signed cookie.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/passgate/config.yaml)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewCheckPasswordCmd())
	cmd.AddCommand(NewStatusCmd())

	return cmd
}

// loadConfig reads configuration for a command whose flags were registered
// with config.RegisterFlags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.Flags(), configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

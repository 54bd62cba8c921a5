// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/passgate/passgate/internal/config"
	"github.com/passgate/passgate/internal/credential"
	"github.com/passgate/passgate/internal/logging"
	"github.com/passgate/passgate/internal/observability"
	"github.com/passgate/passgate/internal/web"
	"github.com/passgate/passgate/pkg/errutil"
)

const (
	serviceName     = "passgate"
	shutdownTimeout = 10 * time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the credential web service",
		Long: `Start the HTTP service for registration, login and password change,
plus the metrics and health listener.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd)
		},
	}

	config.RegisterFlags(cmd.Flags())
	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return oops.With("operation", "load configuration").Wrap(err)
	}

	level := logging.ParseLevel(cfg.LogLevel)
	logger := logging.SetDefault(serviceName, version, cfg.LogFormat, level)
	if level > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := cfg.EnsureSessionSecret(logger); err != nil {
		return err
	}

	logger.InfoContext(ctx, "starting passgate",
		"http_addr", cfg.HTTPAddr,
		"metrics_addr", cfg.MetricsAddr,
		"driver", cfg.Database.Driver,
		"session_backend", cfg.Session.Backend,
		"hasher", cfg.Hasher.Algorithm,
	)

	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		errutil.LogErrorContext(ctx, logger, "failed to open backends", err)
		return err
	}
	defer func() {
		if closeErr := b.Close(); closeErr != nil {
			errutil.LogError(logger, "failed to close backends", closeErr)
		}
	}()

	hasher, err := credential.NewHasher(cfg.Hasher.Algorithm, cfg.Hasher.BcryptCost)
	if err != nil {
		return err
	}

	obsServer := observability.NewServer(cfg.MetricsAddr, b.ready, logger)
	metrics := obsServer.Metrics()

	svc, err := credential.NewService(b.users, b.sessions, hasher,
		credential.WithLogger(logger),
		credential.WithSessionTTL(cfg.Session.TTL),
		credential.WithHashConcurrency(cfg.Hasher.MaxConcurrent),
		credential.WithObserver(metrics),
	)
	if err != nil {
		return err
	}

	signer, err := web.NewCookieSigner([]byte(cfg.Session.Secret), web.CookieOptions{
		Name:   cfg.Session.CookieName,
		Secure: cfg.Session.Secure,
	})
	if err != nil {
		return err
	}
	if !cfg.Session.Secure {
		logger.WarnContext(ctx, "session cookie is not marked Secure; use only behind plain HTTP for local development")
	}

	router := web.NewRouter(svc, signer, web.WithLogger(logger), web.WithRequestObserver(metrics))
	webServer := web.NewServer(cfg.HTTPAddr, router, logger)

	var obsErrCh <-chan error
	if cfg.MetricsAddr != "" {
		obsErrCh, err = obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
		defer stopServer(logger, "observability", obsServer.Stop)
	}

	webErrCh, err := webServer.Start()
	if err != nil {
		return err
	}
	defer stopServer(logger, "web", webServer.Stop)

	sweepCtx, cancelSweep := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancelSweep()
		wg.Wait()
	}()
	if sweeper, ok := b.sessions.(credential.ExpiredSessionSweeper); ok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			//nolint:errcheck // arguments are valid; RunSweeper only fails on bad input
			_ = credential.RunSweeper(sweepCtx, sweeper, credential.DefaultSweepInterval, logger, func(n int64) {
				metrics.SessionsSwept.Add(float64(n))
			})
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return nil
	case err := <-webErrCh:
		return oops.Code("WEB_SERVER_FAILED").Wrap(err)
	case err := <-obsErrCh:
		return oops.Code("OBSERVABILITY_SERVER_FAILED").Wrap(err)
	}
}

func stopServer(logger *slog.Logger, name string, stop func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := stop(ctx); err != nil {
		errutil.LogError(logger, "failed to stop "+name+" server", err)
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package credential

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/passgate/passgate/pkg/errutil"
)

// DefaultSweepInterval is how often RunSweeper deletes expired sessions.
const DefaultSweepInterval = 10 * time.Minute

// RunSweeper deletes expired sessions every interval until ctx is done.
// onSwept, if non-nil, receives the count removed by each pass. A failed
// pass is logged and retried on the next tick.
func RunSweeper(ctx context.Context, sweeper ExpiredSessionSweeper, interval time.Duration, logger *slog.Logger, onSwept func(int64)) error {
	if sweeper == nil {
		return oops.Errorf("sweeper is required")
	}
	if interval <= 0 {
		return oops.With("interval", interval).Errorf("sweep interval must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := sweeper.DeleteExpired(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				errutil.LogErrorContext(ctx, logger, "expired session sweep failed", err)
				continue
			}
			if n > 0 {
				logger.DebugContext(ctx, "expired sessions swept", "count", n)
			}
			if onSwept != nil {
				onSwept(n)
			}
		}
	}
}

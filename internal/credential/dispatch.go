// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package credential

import (
	"context"
	"runtime"
	"time"

	"github.com/samber/oops"
	"golang.org/x/sync/semaphore"
)

// Hash operation labels reported to the Observer.
const (
	HashOpHash   = "hash"
	HashOpVerify = "verify"
)

// HashDispatcher runs hasher calls off the caller's goroutine, bounded by a
// weighted semaphore so a burst of logins cannot saturate every CPU.
// Each request holds at most one slot.
type HashDispatcher struct {
	hasher   PasswordHasher
	sem      *semaphore.Weighted
	observer Observer
}

// DefaultHashConcurrency returns the default dispatcher capacity.
func DefaultHashConcurrency() int64 {
	return int64(4 * runtime.GOMAXPROCS(0))
}

// NewHashDispatcher wraps hasher. A non-positive limit selects
// DefaultHashConcurrency; a nil observer discards timings.
func NewHashDispatcher(hasher PasswordHasher, limit int64, observer Observer) *HashDispatcher {
	if limit <= 0 {
		limit = DefaultHashConcurrency()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &HashDispatcher{
		hasher:   hasher,
		sem:      semaphore.NewWeighted(limit),
		observer: observer,
	}
}

type hashResult struct {
	hash string
	ok   bool
	err  error
}

// Hash hashes password. It returns early with ctx.Err() if ctx ends while
// waiting for a slot or for the hasher.
func (d *HashDispatcher) Hash(ctx context.Context, password string) (string, error) {
	res, err := d.run(ctx, HashOpHash, func() hashResult {
		h, err := d.hasher.Hash(password)
		return hashResult{hash: h, err: err}
	})
	if err != nil {
		return "", err
	}
	return res.hash, res.err
}

// Verify compares password against hash.
func (d *HashDispatcher) Verify(ctx context.Context, password, hash string) (bool, error) {
	res, err := d.run(ctx, HashOpVerify, func() hashResult {
		ok, err := d.hasher.Verify(password, hash)
		return hashResult{ok: ok, err: err}
	})
	if err != nil {
		return false, err
	}
	return res.ok, res.err
}

func (d *HashDispatcher) run(ctx context.Context, op string, fn func() hashResult) (hashResult, error) {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return hashResult{}, oops.Code(CodeHashFailed).With("operation", op).Wrap(err)
	}

	done := make(chan hashResult, 1)
	go func() {
		defer d.sem.Release(1)
		start := time.Now()
		res := fn()
		d.observer.ObserveHash(op, time.Since(start))
		done <- res
	}()

	select {
	case res := <-done:
		return res, nil
	case <-ctx.Done():
		return hashResult{}, oops.Code(CodeHashFailed).With("operation", op).Wrap(ctx.Err())
	}
}

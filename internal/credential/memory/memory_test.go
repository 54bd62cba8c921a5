// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/passgate/passgate/internal/credential"
)

func TestUserStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewUserStore()

	id, err := s.InsertUser(ctx, "alice", "hash1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	_, err = s.InsertUser(ctx, "alice", "hash2")
	assert.ErrorIs(t, err, credential.ErrDuplicateUsername)
	assert.ErrorIs(t, err, credential.ErrConflict)

	u, err := s.FindUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "hash1", u.PasswordHash)

	require.NoError(t, s.UpdatePasswordHash(ctx, id, "hash3"))
	u2, err := s.FindUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "hash3", u2.PasswordHash)
	assert.Equal(t, "hash1", u.PasswordHash, "returned users are copies")

	_, err = s.FindUserByUsername(ctx, "bob")
	assert.ErrorIs(t, err, credential.ErrNotFound)

	assert.ErrorIs(t, s.UpdatePasswordHash(ctx, 99, "x"), credential.ErrNotFound)
}

func TestUserStore_ConcurrentInsertSameName(t *testing.T) {
	ctx := context.Background()
	s := NewUserStore()

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.InsertUser(ctx, "race", "h"); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, successes)
}

func TestSessionStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	s := NewSessionStore()
	s.now = func() time.Time { return now }

	live, err := credential.NewSession(1, "live", credential.ClientMeta{}, now, now.Add(time.Hour))
	require.NoError(t, err)
	stale, err := credential.NewSession(1, "stale", credential.ClientMeta{}, now.Add(-2*time.Hour), now.Add(-time.Hour))
	require.NoError(t, err)

	require.NoError(t, s.Bind(ctx, live))
	require.NoError(t, s.Bind(ctx, stale))
	assert.Equal(t, 2, s.Len())

	got, err := s.Lookup(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, live.ID, got.ID)

	n, err := s.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.Lookup(ctx, "stale")
	assert.ErrorIs(t, err, credential.ErrNotFound)

	require.NoError(t, s.Revoke(ctx, "live"))
	assert.ErrorIs(t, s.Revoke(ctx, "live"), credential.ErrNotFound)
	assert.Zero(t, s.Len())
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package sqlite_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/passgate/passgate/internal/credential"
	"github.com/passgate/passgate/internal/credential/memory"
	"github.com/passgate/passgate/internal/credential/sqlite"
	"github.com/passgate/passgate/pkg/errutil"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStore(t *testing.T) *sqlite.UserStore {
	t.Helper()
	db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "passgate.db"), discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlite.NewUserStore(db)
}

func TestOpen_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "passgate.db")

	db, err := sqlite.Open(ctx, path, discard())
	require.NoError(t, err)
	_, err = sqlite.NewUserStore(db).InsertUser(ctx, "kept", "hash")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = sqlite.Open(ctx, path, discard())
	require.NoError(t, err)
	defer db.Close()

	u, err := sqlite.NewUserStore(db).FindUserByUsername(ctx, "kept")
	require.NoError(t, err)
	assert.Equal(t, "hash", u.PasswordHash)
}

func TestOpen_InMemory(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(ctx, ":memory:", discard())
	require.NoError(t, err)
	defer db.Close()

	store := sqlite.NewUserStore(db)
	id, err := store.InsertUser(ctx, "mem", "hash")
	require.NoError(t, err)
	u, err := store.FindUserByUsername(ctx, "mem")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
}

func TestUserStore_InsertUser(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	id1, err := store.InsertUser(ctx, "alice", "h1")
	require.NoError(t, err)
	id2, err := store.InsertUser(ctx, "bob", "h2")
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	_, err = store.InsertUser(ctx, "alice", "h3")
	errutil.AssertErrorIs(t, err, credential.ErrDuplicateUsername, credential.CodeDuplicateUsername)

	_, err = store.InsertUser(ctx, "", "h4")
	errutil.AssertErrorIs(t, err, credential.ErrStoreUnavailable, credential.CodeStoreUnavailable)
}

func TestUserStore_FindAndUpdate(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	id, err := store.InsertUser(ctx, "alice", "old")
	require.NoError(t, err)

	require.NoError(t, store.UpdatePasswordHash(ctx, id, "new"))
	u, err := store.FindUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, &credential.User{ID: id, Username: "alice", PasswordHash: "new"}, u)

	_, err = store.FindUserByUsername(ctx, "ghost")
	errutil.AssertErrorIs(t, err, credential.ErrNotFound, credential.CodeUserNotFound)

	err = store.UpdatePasswordHash(ctx, id+100, "x")
	errutil.AssertErrorIs(t, err, credential.ErrNotFound, credential.CodeUserNotFound)
}

func TestUserStore_ParameterizedQueries(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	name := `x'); DROP TABLE users; --`
	_, err := store.InsertUser(ctx, name, "hash")
	require.NoError(t, err)

	u, err := store.FindUserByUsername(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, name, u.Username)
}

func TestService_OnSQLite(t *testing.T) {
	ctx := context.Background()
	hasher, err := credential.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)

	svc, err := credential.NewService(newStore(t), memory.NewSessionStore(), hasher,
		credential.WithLogger(discard()))
	require.NoError(t, err)

	_, err = svc.Register(ctx, "hana", "password1", credential.ClientMeta{})
	require.NoError(t, err)

	_, err = svc.Register(ctx, "hana", "password1", credential.ClientMeta{})
	assert.ErrorIs(t, err, credential.ErrConflict)

	_, err = svc.Login(ctx, "hana", "wrongpass1", credential.ClientMeta{})
	assert.ErrorIs(t, err, credential.ErrPasswordMismatch)

	require.NoError(t, svc.ChangePassword(ctx, "hana", "rotated77"))
	_, err = svc.Login(ctx, "hana", "rotated77", credential.ClientMeta{})
	require.NoError(t, err)
	_, err = svc.Login(ctx, "hana", "password1", credential.ClientMeta{})
	assert.ErrorIs(t, err, credential.ErrAuthentication)

	_, err = svc.Login(ctx, "nobody", "password1", credential.ClientMeta{})
	assert.ErrorIs(t, err, credential.ErrNotFound)
}

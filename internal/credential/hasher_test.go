// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package credential_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/passgate/passgate/internal/credential"
)

func hashers(t *testing.T) map[string]credential.PasswordHasher {
	t.Helper()
	bc, err := credential.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)
	return map[string]credential.PasswordHasher{
		"argon2id": credential.NewArgon2idHasher(),
		"bcrypt":   bc,
	}
}

func TestHasher_RoundTrip(t *testing.T) {
	for name, h := range hashers(t) {
		t.Run(name, func(t *testing.T) {
			hash, err := h.Hash("correctpassword")
			require.NoError(t, err)
			assert.NotEqual(t, "correctpassword", hash)
			assert.NotContains(t, hash, "correctpassword")

			ok, err := h.Verify("correctpassword", hash)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = h.Verify("wrongpassword", hash)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestHasher_SaltedOutput(t *testing.T) {
	for name, h := range hashers(t) {
		t.Run(name, func(t *testing.T) {
			h1, err := h.Hash("samepassword")
			require.NoError(t, err)
			h2, err := h.Hash("samepassword")
			require.NoError(t, err)
			assert.NotEqual(t, h1, h2)
		})
	}
}

func TestHasher_RejectsEmptyPassword(t *testing.T) {
	for name, h := range hashers(t) {
		t.Run(name, func(t *testing.T) {
			_, err := h.Hash("")
			assert.ErrorIs(t, err, credential.ErrEmptyPassword)
		})
	}
}

func TestArgon2idHasher_Format(t *testing.T) {
	hash, err := credential.NewArgon2idHasher().Hash("password123")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=1,p=4$"))
}

func TestArgon2idHasher_InvalidHash(t *testing.T) {
	h := credential.NewArgon2idHasher()

	tests := map[string]string{
		"too few parts":     "$argon2id$v=19$salt",
		"wrong algorithm":   "$argon2i$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		"bad version":       "$argon2id$v=x$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		"unknown version":   "$argon2id$v=16$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		"bad params":        "$argon2id$v=19$m=x$c2FsdA$aGFzaA",
		"threads overflow":  "$argon2id$v=19$m=65536,t=1,p=256$c2FsdA$aGFzaA",
		"bad salt encoding": "$argon2id$v=19$m=65536,t=1,p=4$!!!$aGFzaA",
		"bad key encoding":  "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$!!!",
		"bcrypt hash":       "$2a$10$abcdefghijklmnopqrstuu",
	}
	for name, hash := range tests {
		t.Run(name, func(t *testing.T) {
			ok, err := h.Verify("password", hash)
			assert.Error(t, err)
			assert.False(t, ok)
		})
	}
}

func TestBcryptHasher_Cost(t *testing.T) {
	h, err := credential.NewBcryptHasher(0)
	require.NoError(t, err)
	hash, err := h.Hash("password1")
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, credential.DefaultBcryptCost, cost)

	_, err = credential.NewBcryptHasher(bcrypt.MaxCost + 1)
	assert.Error(t, err)
}

func TestBcryptHasher_InvalidHash(t *testing.T) {
	h, err := credential.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)
	ok, err := h.Verify("password", "not-a-bcrypt-hash")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestNewHasher(t *testing.T) {
	h, err := credential.NewHasher("", 0)
	require.NoError(t, err)
	assert.IsType(t, &credential.Argon2idHasher{}, h)

	h, err = credential.NewHasher(credential.AlgorithmBcrypt, bcrypt.MinCost)
	require.NoError(t, err)
	assert.IsType(t, &credential.BcryptHasher{}, h)

	_, err = credential.NewHasher("md5", 0)
	assert.Error(t, err)
}

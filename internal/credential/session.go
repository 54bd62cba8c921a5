// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package credential

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session token configuration.
const (
	SessionTokenBytes = 32             // 32 bytes = 64 hex chars
	DefaultSessionTTL = 24 * time.Hour // 24 hour expiry
)

// Session is a server-side record binding a client token to a user.
// Only the SHA256 hash of the token is stored.
type Session struct {
	ID        ulid.ULID
	UserID    int64
	TokenHash string
	UserAgent string
	IPAddress string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// ClientMeta describes the client a session is issued to.
type ClientMeta struct {
	UserAgent string
	IPAddress string
}

// NewSession creates a validated Session.
func NewSession(userID int64, tokenHash string, meta ClientMeta, createdAt, expiresAt time.Time) (*Session, error) {
	if userID <= 0 {
		return nil, oops.Code("SESSION_INVALID_USER").With("user_id", userID).Errorf("user ID must be positive")
	}
	if tokenHash == "" {
		return nil, oops.Code("SESSION_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if expiresAt.IsZero() || !expiresAt.After(createdAt) {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").Errorf("expiry must be after creation")
	}

	return &Session{
		ID:        ulid.Make(),
		UserID:    userID,
		TokenHash: tokenHash,
		UserAgent: meta.UserAgent,
		IPAddress: meta.IPAddress,
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
	}, nil
}

// IsExpiredAt returns true if the session would be expired at t.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// GenerateSessionToken creates a secure random token and its hash.
// The plaintext token goes to the client; the hash is what gets stored.
func GenerateSessionToken() (token, hash string, err error) {
	tokenBytes := make([]byte, SessionTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SessionTokenBytes).
			Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	return token, HashSessionToken(token), nil
}

// HashSessionToken computes the hex SHA256 hash of a session token.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// SessionBinder persists sessions keyed by token hash.
type SessionBinder interface {
	// Bind stores a new session.
	Bind(ctx context.Context, session *Session) error

	// Lookup returns the session for tokenHash, or an error matching
	// ErrNotFound when none exists.
	Lookup(ctx context.Context, tokenHash string) (*Session, error)

	// Revoke deletes the session for tokenHash, or returns an error
	// matching ErrNotFound when none exists.
	Revoke(ctx context.Context, tokenHash string) error
}

// ExpiredSessionSweeper is implemented by binders whose backend does not
// expire records on its own.
type ExpiredSessionSweeper interface {
	// DeleteExpired removes all expired sessions and returns the count.
	DeleteExpired(ctx context.Context) (int64, error)
}

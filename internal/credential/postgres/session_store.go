// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/passgate/passgate/internal/credential"
)

// SessionStore implements credential.SessionBinder against web_sessions.
type SessionStore struct {
	pool Pool
	now  func() time.Time
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(pool Pool) *SessionStore {
	return &SessionStore{pool: pool, now: time.Now}
}

// Bind stores a new session.
func (s *SessionStore) Bind(ctx context.Context, session *credential.Session) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO web_sessions (id, user_id, token_hash, user_agent, ip_address, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		session.ID.String(),
		session.UserID,
		session.TokenHash,
		session.UserAgent,
		session.IPAddress,
		session.ExpiresAt,
		session.CreatedAt,
	)
	if err != nil {
		return oops.Code(credential.CodeSessionBindFailed).
			With("operation", "insert web_session").
			With("user_id", session.UserID).
			Wrap(err)
	}
	return nil
}

// Lookup retrieves a session by its token hash.
func (s *SessionStore) Lookup(ctx context.Context, tokenHash string) (*credential.Session, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, token_hash, user_agent, ip_address, expires_at, created_at
		FROM web_sessions
		WHERE token_hash = $1
	`, tokenHash)

	var (
		sess  credential.Session
		idStr string
	)
	err := row.Scan(&idStr, &sess.UserID, &sess.TokenHash, &sess.UserAgent, &sess.IPAddress, &sess.ExpiresAt, &sess.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, credential.SessionNotFoundError()
	}
	if err != nil {
		return nil, credential.StoreError("get session by token hash", err)
	}

	sess.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("SESSION_PARSE_FAILED").
			With("id", idStr).
			Wrap(err)
	}
	return &sess, nil
}

// Revoke deletes the session with tokenHash.
func (s *SessionStore) Revoke(ctx context.Context, tokenHash string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM web_sessions WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return credential.StoreError("delete session", err)
	}
	if tag.RowsAffected() == 0 {
		return credential.SessionNotFoundError()
	}
	return nil
}

// DeleteExpired removes all expired sessions and returns the count.
func (s *SessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM web_sessions WHERE expires_at <= $1`, s.now())
	if err != nil {
		return 0, credential.StoreError("delete expired sessions", err)
	}
	return tag.RowsAffected(), nil
}

var (
	_ credential.SessionBinder         = (*SessionStore)(nil)
	_ credential.ExpiredSessionSweeper = (*SessionStore)(nil)
)

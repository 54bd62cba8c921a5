// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

// Package redis implements the credential session binder on Redis. Redis
// key expiry enforces the session lifetime, so no sweeper is needed.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/passgate/passgate/internal/credential"
)

const sessionKeyPrefix = "session:"

// record is the JSON value stored under each session key.
type record struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	UserAgent string    `json:"user_agent,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionStore implements credential.SessionBinder on Redis.
type SessionStore struct {
	rdb goredis.Cmdable
	now func() time.Time
}

// NewSessionStore creates a SessionStore.
func NewSessionStore(rdb goredis.Cmdable) *SessionStore {
	return &SessionStore{rdb: rdb, now: time.Now}
}

// NewClient parses a redis:// or rediss:// URL and pings the server.
func NewClient(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, oops.Code("REDIS_CONFIG_INVALID").Wrap(err)
	}
	rdb := goredis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, oops.Code("REDIS_CONNECT_FAILED").With("addr", opts.Addr).Wrap(err)
	}
	return rdb, nil
}

func key(tokenHash string) string {
	return sessionKeyPrefix + tokenHash
}

// Bind stores session with a TTL matching its expiry.
func (s *SessionStore) Bind(ctx context.Context, session *credential.Session) error {
	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return oops.Code(credential.CodeSessionBindFailed).
			With("expires_at", session.ExpiresAt).
			Errorf("session already expired")
	}

	payload, err := json.Marshal(record{
		ID:        session.ID.String(),
		UserID:    session.UserID,
		UserAgent: session.UserAgent,
		IPAddress: session.IPAddress,
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
	})
	if err != nil {
		return oops.Code(credential.CodeSessionBindFailed).Wrap(err)
	}

	if err := s.rdb.Set(ctx, key(session.TokenHash), payload, ttl).Err(); err != nil {
		return oops.Code(credential.CodeSessionBindFailed).
			With("operation", "redis set").
			With("user_id", session.UserID).
			Wrap(err)
	}
	return nil
}

// Lookup returns the session for tokenHash.
func (s *SessionStore) Lookup(ctx context.Context, tokenHash string) (*credential.Session, error) {
	raw, err := s.rdb.Get(ctx, key(tokenHash)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, credential.SessionNotFoundError()
	}
	if err != nil {
		return nil, credential.StoreError("redis get session", err)
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, oops.Code("SESSION_PARSE_FAILED").Wrap(err)
	}
	id, err := ulid.Parse(rec.ID)
	if err != nil {
		return nil, oops.Code("SESSION_PARSE_FAILED").With("id", rec.ID).Wrap(err)
	}

	return &credential.Session{
		ID:        id,
		UserID:    rec.UserID,
		TokenHash: tokenHash,
		UserAgent: rec.UserAgent,
		IPAddress: rec.IPAddress,
		ExpiresAt: rec.ExpiresAt,
		CreatedAt: rec.CreatedAt,
	}, nil
}

// Revoke deletes the session for tokenHash.
func (s *SessionStore) Revoke(ctx context.Context, tokenHash string) error {
	n, err := s.rdb.Del(ctx, key(tokenHash)).Result()
	if err != nil {
		return credential.StoreError("redis delete session", err)
	}
	if n == 0 {
		return credential.SessionNotFoundError()
	}
	return nil
}

var _ credential.SessionBinder = (*SessionStore)(nil)

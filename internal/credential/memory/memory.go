// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

// Package memory provides process-local credential stores for development
// and tests. Contents are lost on restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/passgate/passgate/internal/credential"
)

// UserStore keeps users in a map keyed by username.
type UserStore struct {
	mu     sync.RWMutex
	nextID int64
	byName map[string]*credential.User
	byID   map[int64]*credential.User
}

// NewUserStore creates an empty UserStore.
func NewUserStore() *UserStore {
	return &UserStore{
		byName: make(map[string]*credential.User),
		byID:   make(map[int64]*credential.User),
	}
}

// InsertUser stores a new user.
func (s *UserStore) InsertUser(_ context.Context, username, passwordHash string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[username]; ok {
		return 0, credential.DuplicateUsernameError(username, credential.ErrConflict)
	}

	s.nextID++
	u := &credential.User{ID: s.nextID, Username: username, PasswordHash: passwordHash}
	s.byName[username] = u
	s.byID[u.ID] = u
	return u.ID, nil
}

// FindUserByUsername returns a copy of the stored user.
func (s *UserStore) FindUserByUsername(_ context.Context, username string) (*credential.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byName[username]
	if !ok {
		return nil, credential.NotFoundError("username", username)
	}
	out := *u
	return &out, nil
}

// UpdatePasswordHash replaces the hash for userID.
func (s *UserStore) UpdatePasswordHash(_ context.Context, userID int64, newHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[userID]
	if !ok {
		return credential.NotFoundError("user_id", userID)
	}
	u.PasswordHash = newHash
	return nil
}

// SessionStore keeps sessions in a map keyed by token hash.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]credential.Session
	now      func() time.Time
}

// NewSessionStore creates an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]credential.Session),
		now:      time.Now,
	}
}

// Bind stores session.
func (s *SessionStore) Bind(_ context.Context, session *credential.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.TokenHash] = *session
	return nil
}

// Lookup returns a copy of the session for tokenHash.
func (s *SessionStore) Lookup(_ context.Context, tokenHash string) (*credential.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[tokenHash]
	if !ok {
		return nil, credential.SessionNotFoundError()
	}
	return &sess, nil
}

// Revoke deletes the session for tokenHash.
func (s *SessionStore) Revoke(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[tokenHash]; !ok {
		return credential.SessionNotFoundError()
	}
	delete(s.sessions, tokenHash)
	return nil
}

// DeleteExpired removes expired sessions.
func (s *SessionStore) DeleteExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var n int64
	for hash, sess := range s.sessions {
		if sess.IsExpiredAt(now) {
			delete(s.sessions, hash)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

var (
	_ credential.UserStore             = (*UserStore)(nil)
	_ credential.SessionBinder         = (*SessionStore)(nil)
	_ credential.ExpiredSessionSweeper = (*SessionStore)(nil)
)

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/passgate/passgate/internal/credential"
)

// UserStore implements credential.UserStore on SQLite.
type UserStore struct {
	db *sql.DB
}

// NewUserStore creates a UserStore on a database returned by Open.
func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

// InsertUser creates a user and returns its generated id.
func (s *UserStore) InsertUser(ctx context.Context, username, passwordHash string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password) VALUES (?, ?)`,
		username, passwordHash,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, credential.DuplicateUsernameError(username, err)
		}
		return 0, credential.StoreError("insert user", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, credential.StoreError("read inserted id", err)
	}
	return id, nil
}

// FindUserByUsername looks up a user by username.
func (s *UserStore) FindUserByUsername(ctx context.Context, username string) (*credential.User, error) {
	var u credential.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password FROM users WHERE username = ?`,
		username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, credential.NotFoundError("username", username)
	}
	if err != nil {
		return nil, credential.StoreError("find user by username", err)
	}
	return &u, nil
}

// UpdatePasswordHash replaces the stored hash for userID.
func (s *UserStore) UpdatePasswordHash(ctx context.Context, userID int64, newHash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password = ? WHERE id = ?`,
		newHash, userID,
	)
	if err != nil {
		return credential.StoreError("update password hash", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return credential.StoreError("read rows affected", err)
	}
	if n == 0 {
		return credential.NotFoundError("user_id", userID)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var liteErr *sqlitedrv.Error
	if !errors.As(err, &liteErr) {
		return false
	}
	switch liteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(liteErr.Error(), "UNIQUE")
	default:
		return false
	}
}

var _ credential.UserStore = (*UserStore)(nil)

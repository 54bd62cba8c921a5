// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/passgate/passgate/internal/credential"
)

// UserStore implements credential.UserStore against the users table.
type UserStore struct {
	pool Pool
}

// NewUserStore creates a new UserStore.
func NewUserStore(pool Pool) *UserStore {
	return &UserStore{pool: pool}
}

// InsertUser creates a user and returns its generated id.
func (s *UserStore) InsertUser(ctx context.Context, username, passwordHash string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (username, password) VALUES ($1, $2) RETURNING id`,
		username, passwordHash,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, credential.DuplicateUsernameError(username, err)
		}
		return 0, credential.StoreError("insert user", err)
	}
	return id, nil
}

// FindUserByUsername looks up a user by username.
func (s *UserStore) FindUserByUsername(ctx context.Context, username string) (*credential.User, error) {
	var u credential.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, password FROM users WHERE username = $1`,
		username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, credential.NotFoundError("username", username)
	}
	if err != nil {
		return nil, credential.StoreError("find user by username", err)
	}
	return &u, nil
}

// UpdatePasswordHash replaces the stored hash for userID.
func (s *UserStore) UpdatePasswordHash(ctx context.Context, userID int64, newHash string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET password = $1 WHERE id = $2`,
		newHash, userID,
	)
	if err != nil {
		return credential.StoreError("update password hash", err)
	}
	if tag.RowsAffected() == 0 {
		return credential.NotFoundError("user_id", userID)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

var _ credential.UserStore = (*UserStore)(nil)

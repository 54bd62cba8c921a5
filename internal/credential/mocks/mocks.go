// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

// Package mocks provides testify mocks for the credential interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/passgate/passgate/internal/credential"
)

type cleanupT interface {
	mock.TestingT
	Cleanup(func())
}

// MockUserStore is a mock credential.UserStore.
type MockUserStore struct {
	mock.Mock
}

// NewMockUserStore creates a MockUserStore whose expectations are asserted
// when the test ends.
func NewMockUserStore(t cleanupT) *MockUserStore {
	m := &MockUserStore{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// InsertUser implements credential.UserStore.
func (m *MockUserStore) InsertUser(ctx context.Context, username, passwordHash string) (int64, error) {
	args := m.Called(ctx, username, passwordHash)
	return args.Get(0).(int64), args.Error(1)
}

// FindUserByUsername implements credential.UserStore.
func (m *MockUserStore) FindUserByUsername(ctx context.Context, username string) (*credential.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*credential.User), args.Error(1)
}

// UpdatePasswordHash implements credential.UserStore.
func (m *MockUserStore) UpdatePasswordHash(ctx context.Context, userID int64, newHash string) error {
	args := m.Called(ctx, userID, newHash)
	return args.Error(0)
}

// MockSessionBinder is a mock credential.SessionBinder.
type MockSessionBinder struct {
	mock.Mock
}

// NewMockSessionBinder creates a MockSessionBinder whose expectations are
// asserted when the test ends.
func NewMockSessionBinder(t cleanupT) *MockSessionBinder {
	m := &MockSessionBinder{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Bind implements credential.SessionBinder.
func (m *MockSessionBinder) Bind(ctx context.Context, session *credential.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

// Lookup implements credential.SessionBinder.
func (m *MockSessionBinder) Lookup(ctx context.Context, tokenHash string) (*credential.Session, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*credential.Session), args.Error(1)
}

// Revoke implements credential.SessionBinder.
func (m *MockSessionBinder) Revoke(ctx context.Context, tokenHash string) error {
	args := m.Called(ctx, tokenHash)
	return args.Error(0)
}

// MockPasswordHasher is a mock credential.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a MockPasswordHasher whose expectations are
// asserted when the test ends.
func NewMockPasswordHasher(t cleanupT) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Hash implements credential.PasswordHasher.
func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

// Verify implements credential.PasswordHasher.
func (m *MockPasswordHasher) Verify(password, hash string) (bool, error) {
	args := m.Called(password, hash)
	return args.Bool(0), args.Error(1)
}

var (
	_ credential.UserStore      = (*MockUserStore)(nil)
	_ credential.SessionBinder  = (*MockSessionBinder)(nil)
	_ credential.PasswordHasher = (*MockPasswordHasher)(nil)
)

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package credential

import (
	"errors"
	"fmt"

	"github.com/samber/oops"
)

// Error codes attached to every error produced by this package and its
// store backends.
const (
	CodeInvalidRegistration = "CREDENTIAL_INVALID_REGISTRATION"
	CodePolicyViolation     = "PASSWORD_POLICY_VIOLATION"
	CodeUserNotFound        = "CREDENTIAL_USER_NOT_FOUND"
	CodePasswordMismatch    = "CREDENTIAL_PASSWORD_MISMATCH"
	CodeDuplicateUsername   = "CREDENTIAL_DUPLICATE_USERNAME"
	CodeStoreUnavailable    = "CREDENTIAL_STORE_UNAVAILABLE"
	CodeHashFailed          = "CREDENTIAL_HASH_FAILED"
	CodeSessionInvalid      = "SESSION_INVALID"
	CodeSessionExpired      = "SESSION_EXPIRED"
	CodeSessionBindFailed   = "SESSION_BIND_FAILED"
	CodeSessionNotFound     = "SESSION_NOT_FOUND"
)

// Sentinels identifying the error kinds. Match with errors.Is.
var (
	ErrValidation       = errors.New("invalid registration data")
	ErrNotFound         = errors.New("not found")
	ErrAuthentication   = errors.New("authentication failed")
	ErrConflict         = errors.New("conflict")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Specific failures, each wrapping one of the kind sentinels.
var (
	ErrDuplicateUsername = fmt.Errorf("duplicate username: %w", ErrConflict)
	ErrPasswordMismatch  = fmt.Errorf("incorrect password: %w", ErrAuthentication)
	ErrSessionInvalid    = fmt.Errorf("invalid session: %w", ErrAuthentication)
	ErrSessionExpired    = fmt.Errorf("session expired: %w", ErrAuthentication)
)

// ErrorKind classifies an error for callers that map failures to a
// transport status or a metric label.
type ErrorKind int

// Error kinds.
const (
	KindNone ErrorKind = iota
	KindValidation
	KindNotFound
	KindAuthentication
	KindConflict
	KindStore
	KindUnknown
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "success"
	case KindValidation:
		return "invalid"
	case KindNotFound:
		return "not_found"
	case KindAuthentication:
		return "unauthenticated"
	case KindConflict:
		return "conflict"
	case KindStore:
		return "store_error"
	default:
		return "error"
	}
}

// KindOf reports the kind of err. A nil error is KindNone.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrAuthentication):
		return KindAuthentication
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrStoreUnavailable):
		return KindStore
	default:
		return KindUnknown
	}
}

// NotFoundError builds the error a UserStore returns when no row matches.
func NotFoundError(field string, value any) error {
	return oops.Code(CodeUserNotFound).With(field, value).Wrap(ErrNotFound)
}

// DuplicateUsernameError builds the error a UserStore returns when the
// username is already taken.
func DuplicateUsernameError(username string, cause error) error {
	return oops.Code(CodeDuplicateUsername).
		With("username", username).
		With("cause", cause.Error()).
		Wrap(ErrDuplicateUsername)
}

// StoreError wraps an infrastructure failure from a store backend so it
// matches ErrStoreUnavailable while keeping the original cause reachable.
func StoreError(operation string, cause error) error {
	return oops.Code(CodeStoreUnavailable).
		With("operation", operation).
		Wrap(fmt.Errorf("%w: %w", ErrStoreUnavailable, cause))
}

// SessionNotFoundError builds the error a SessionBinder returns when no
// record matches the token hash.
func SessionNotFoundError() error {
	return oops.Code(CodeSessionNotFound).Wrap(ErrNotFound)
}

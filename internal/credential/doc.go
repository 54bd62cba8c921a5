// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

// Package credential implements the credential lifecycle: registration,
// login and password rotation, plus the password acceptance policy and
// session binding that back them.
//
// Storage, session persistence and password hashing are reached through
// the UserStore, SessionBinder and PasswordHasher interfaces. Concrete
// backends live in the postgres, sqlite, redis and memory subpackages.
package credential

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package credential

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/passgate/passgate/pkg/errutil"
)

// User is a stored credential.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
}

// UserStore persists users. Implementations must use parameterized queries.
type UserStore interface {
	// InsertUser creates a user and returns the generated id. A taken
	// username yields an error matching ErrDuplicateUsername.
	InsertUser(ctx context.Context, username, passwordHash string) (int64, error)

	// FindUserByUsername returns the user or an error matching ErrNotFound.
	FindUserByUsername(ctx context.Context, username string) (*User, error)

	// UpdatePasswordHash replaces the stored hash for userID.
	UpdatePasswordHash(ctx context.Context, userID int64, newHash string) error
}

// Result is returned by operations that bind a session. Token is the
// plaintext session token for the client and is never stored.
type Result struct {
	UserID  int64
	Session *Session
	Token   string
}

type serviceOptions struct {
	logger          *slog.Logger
	sessionTTL      time.Duration
	hashConcurrency int64
	observer        Observer
	now             func() time.Time
}

// Option configures a Service.
type Option func(*serviceOptions)

// WithLogger sets the operator-facing logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *serviceOptions) { o.logger = logger }
}

// WithSessionTTL sets how long bound sessions remain valid.
func WithSessionTTL(ttl time.Duration) Option {
	return func(o *serviceOptions) { o.sessionTTL = ttl }
}

// WithHashConcurrency bounds the number of hash operations in flight.
func WithHashConcurrency(n int64) Option {
	return func(o *serviceOptions) { o.hashConcurrency = n }
}

// WithObserver reports operation outcomes and hash timings.
func WithObserver(obs Observer) Option {
	return func(o *serviceOptions) { o.observer = obs }
}

// WithClock overrides the time source used for session expiry.
func WithClock(now func() time.Time) Option {
	return func(o *serviceOptions) { o.now = now }
}

// Service orchestrates register, login and change-password against a
// UserStore, binding sessions through a SessionBinder.
type Service struct {
	users    UserStore
	sessions SessionBinder
	hashes   *HashDispatcher
	logger   *slog.Logger
	observer Observer
	ttl      time.Duration
	now      func() time.Time
}

// NewService creates a Service.
func NewService(users UserStore, sessions SessionBinder, hasher PasswordHasher, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, oops.Errorf("user store is required")
	}
	if sessions == nil {
		return nil, oops.Errorf("session binder is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}

	o := serviceOptions{
		logger:     slog.Default(),
		sessionTTL: DefaultSessionTTL,
		observer:   nopObserver{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	if o.sessionTTL <= 0 {
		return nil, oops.With("ttl", o.sessionTTL).Errorf("session TTL must be positive")
	}
	if o.observer == nil {
		o.observer = nopObserver{}
	}

	return &Service{
		users:    users,
		sessions: sessions,
		hashes:   NewHashDispatcher(hasher, o.hashConcurrency, o.observer),
		logger:   o.logger,
		observer: o.observer,
		ttl:      o.sessionTTL,
		now:      o.now,
	}, nil
}

// Register creates a user and binds a session to it. The password must
// satisfy ValidatePassword; duplicate usernames fail with ErrConflict.
func (s *Service) Register(ctx context.Context, username, password string, meta ClientMeta) (res *Result, err error) {
	defer s.observe(OpRegister, &err)

	if username == "" {
		return nil, s.invalidRegistration(ctx, "empty_username")
	}
	if rule := violatedRule(password); rule != "" {
		return nil, s.invalidRegistration(ctx, rule)
	}

	hash, err := s.hashes.Hash(ctx, password)
	if err != nil {
		return nil, s.hashFailure(ctx, OpRegister, err)
	}

	id, err := s.users.InsertUser(ctx, username, hash)
	if err != nil {
		return nil, s.storeFailure(ctx, OpRegister, username, err)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", id)
	return s.bind(ctx, OpRegister, id, meta)
}

// Login verifies the password for username and binds a session. An unknown
// username fails with ErrNotFound, a wrong password with ErrPasswordMismatch.
func (s *Service) Login(ctx context.Context, username, password string, meta ClientMeta) (res *Result, err error) {
	defer s.observe(OpLogin, &err)

	user, err := s.findUser(ctx, OpLogin, username)
	if err != nil {
		return nil, err
	}

	ok, err := s.hashes.Verify(ctx, password, user.PasswordHash)
	if err != nil {
		return nil, s.hashFailure(ctx, OpLogin, err)
	}
	if !ok {
		s.logger.InfoContext(ctx, "login rejected", "user_id", user.ID, "reason", "password_mismatch")
		return nil, oops.Code(CodePasswordMismatch).With("user_id", user.ID).Wrap(ErrPasswordMismatch)
	}

	return s.bind(ctx, OpLogin, user.ID, meta)
}

// ChangePassword replaces the stored hash for username.
//
// The caller is trusted on the username alone: no session is required and
// the new password is not checked against the policy. Each change for a
// known user is logged at WARN so operators can see this path being used.
func (s *Service) ChangePassword(ctx context.Context, username, newPassword string) (err error) {
	defer s.observe(OpChangePassword, &err)

	user, err := s.findUser(ctx, OpChangePassword, username)
	if err != nil {
		return err
	}

	s.logger.WarnContext(ctx, "password change accepted without session or policy check",
		"user_id", user.ID,
		"username", username)

	hash, err := s.hashes.Hash(ctx, newPassword)
	if err != nil {
		return s.hashFailure(ctx, OpChangePassword, err)
	}

	if err := s.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return s.storeFailure(ctx, OpChangePassword, username, err)
	}

	s.logger.InfoContext(ctx, "password changed", "user_id", user.ID)
	return nil
}

// ResolveSession returns the live session for a plaintext token. Unknown
// and expired tokens fail with ErrAuthentication.
func (s *Service) ResolveSession(ctx context.Context, token string) (sess *Session, err error) {
	defer s.observe(OpResolveSession, &err)

	if token == "" {
		return nil, oops.Code(CodeSessionInvalid).Wrap(ErrSessionInvalid)
	}

	hash := HashSessionToken(token)
	sess, err = s.sessions.Lookup(ctx, hash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeSessionInvalid).Wrap(ErrSessionInvalid)
		}
		return nil, s.storeFailure(ctx, OpResolveSession, "", err)
	}

	if sess.IsExpiredAt(s.now()) {
		if revokeErr := s.sessions.Revoke(ctx, hash); revokeErr != nil && !errors.Is(revokeErr, ErrNotFound) {
			errutil.LogErrorContext(ctx, s.logger, "failed to revoke expired session", revokeErr)
		}
		return nil, oops.Code(CodeSessionExpired).
			With("session_id", sess.ID.String()).
			Wrap(ErrSessionExpired)
	}

	return sess, nil
}

// Logout revokes the session for token. Revoking an unknown token succeeds.
func (s *Service) Logout(ctx context.Context, token string) (err error) {
	defer s.observe(OpLogout, &err)

	if token == "" {
		return nil
	}
	if err := s.sessions.Revoke(ctx, HashSessionToken(token)); err != nil && !errors.Is(err, ErrNotFound) {
		return s.storeFailure(ctx, OpLogout, "", err)
	}
	return nil
}

func (s *Service) bind(ctx context.Context, op string, userID int64, meta ClientMeta) (*Result, error) {
	token, hash, err := GenerateSessionToken()
	if err != nil {
		return nil, s.bindFailure(ctx, op, userID, err)
	}

	now := s.now()
	sess, err := NewSession(userID, hash, meta, now, now.Add(s.ttl))
	if err != nil {
		return nil, s.bindFailure(ctx, op, userID, err)
	}

	if err := s.sessions.Bind(ctx, sess); err != nil {
		return nil, s.bindFailure(ctx, op, userID, err)
	}

	s.logger.DebugContext(ctx, "session bound",
		"operation", op,
		"user_id", userID,
		"session_id", sess.ID.String())
	return &Result{UserID: userID, Session: sess, Token: token}, nil
}

func (s *Service) findUser(ctx context.Context, op, username string) (*User, error) {
	user, err := s.users.FindUserByUsername(ctx, username)
	if err == nil {
		return user, nil
	}
	if errors.Is(err, ErrNotFound) {
		s.logger.InfoContext(ctx, "user not found", "operation", op, "username", username)
		return nil, oops.Code(CodeUserNotFound).
			With("operation", op).
			With("username", username).
			Wrap(ErrNotFound)
	}
	return nil, s.storeFailure(ctx, op, username, err)
}

func (s *Service) invalidRegistration(ctx context.Context, rule string) error {
	s.logger.DebugContext(ctx, "registration rejected", "rule", rule)
	return oops.Code(CodeInvalidRegistration).With("rule", rule).Wrap(ErrValidation)
}

// storeFailure classifies an error from a store backend. Known kinds pass
// through with operation context; anything else becomes ErrStoreUnavailable.
func (s *Service) storeFailure(ctx context.Context, op, username string, err error) error {
	b := oops.With("operation", op)
	if username != "" {
		b = b.With("username", username)
	}

	switch {
	case errors.Is(err, ErrConflict):
		s.logger.WarnContext(ctx, "registration conflict", "operation", op, "username", username)
		return b.Wrap(err)
	case errors.Is(err, ErrNotFound):
		return b.Wrap(err)
	case errors.Is(err, ErrStoreUnavailable):
		wrapped := b.Wrap(err)
		errutil.LogErrorContext(ctx, s.logger, "credential store failure", wrapped)
		return wrapped
	default:
		wrapped := b.Wrap(StoreError(op, err))
		errutil.LogErrorContext(ctx, s.logger, "credential store failure", wrapped)
		return wrapped
	}
}

func (s *Service) hashFailure(ctx context.Context, op string, err error) error {
	wrapped := oops.Code(CodeHashFailed).
		With("operation", op).
		Wrap(errors.Join(ErrStoreUnavailable, err))
	errutil.LogErrorContext(ctx, s.logger, "password hashing failed", wrapped)
	return wrapped
}

func (s *Service) bindFailure(ctx context.Context, op string, userID int64, err error) error {
	wrapped := oops.Code(CodeSessionBindFailed).
		With("operation", op).
		With("user_id", userID).
		Wrap(errors.Join(ErrStoreUnavailable, err))
	errutil.LogErrorContext(ctx, s.logger, "session bind failed", wrapped)
	return wrapped
}

func (s *Service) observe(op string, err *error) {
	s.observer.ObserveOperation(op, KindOf(*err).String())
}

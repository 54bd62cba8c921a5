// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package web

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// MinSecretBytes is the shortest accepted signing secret.
const MinSecretBytes = 32

// Cookie error codes.
const (
	CodeCookieInvalid = "SESSION_COOKIE_INVALID"
	CodeCookieSign    = "SESSION_COOKIE_SIGN_FAILED"
)

// sessionClaims carries the plaintext session token. Only its hash is stored
// server side.
type sessionClaims struct {
	Token string `json:"tok"`
	jwt.RegisteredClaims
}

// CookieOptions configures a CookieSigner.
type CookieOptions struct {
	Name   string
	Secure bool
	Now    func() time.Time
}

// CookieSigner writes and reads the HMAC-signed session cookie.
type CookieSigner struct {
	secret []byte
	name   string
	secure bool
	now    func() time.Time
}

// NewCookieSigner creates a CookieSigner. The secret must be at least
// MinSecretBytes long.
func NewCookieSigner(secret []byte, opts CookieOptions) (*CookieSigner, error) {
	if len(secret) < MinSecretBytes {
		return nil, oops.Code("SESSION_SECRET_INVALID").
			With("min_bytes", MinSecretBytes).
			Errorf("session secret is too short")
	}
	if opts.Name == "" {
		return nil, oops.Code("SESSION_COOKIE_NAME_REQUIRED").Errorf("cookie name is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &CookieSigner{
		secret: append([]byte(nil), secret...),
		name:   opts.Name,
		secure: opts.Secure,
		now:    opts.Now,
	}, nil
}

// Name returns the cookie name.
func (s *CookieSigner) Name() string {
	return s.name
}

// Sign encodes token into a signed value that expires at expiresAt.
func (s *CookieSigner) Sign(token string, expiresAt time.Time) (string, error) {
	claims := sessionClaims{
		Token: token,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(s.now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", oops.Code(CodeCookieSign).Wrap(err)
	}
	return signed, nil
}

// Parse verifies value and returns the session token inside it.
func (s *CookieSigner) Parse(value string) (string, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(value, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", oops.Code(CodeCookieInvalid).Wrap(err)
	}
	if !token.Valid || claims.Token == "" {
		return "", oops.Code(CodeCookieInvalid).Errorf("session cookie carries no token")
	}
	return claims.Token, nil
}

// Set writes the signed session cookie on the response.
func (s *CookieSigner) Set(c *gin.Context, token string, expiresAt time.Time) error {
	value, err := s.Sign(token, expiresAt)
	if err != nil {
		return err
	}
	maxAge := int(expiresAt.Sub(s.now()).Seconds())
	if maxAge <= 0 {
		return oops.Code(CodeCookieSign).With("expires_at", expiresAt).Errorf("session already expired")
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.name, value, maxAge, "/", "", s.secure, true)
	return nil
}

// Clear expires the session cookie on the client.
func (s *CookieSigner) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.name, "", -1, "/", "", s.secure, true)
}

// Token returns the session token from the request cookie. A missing cookie
// yields ("", nil); a tampered or expired one yields an error.
func (s *CookieSigner) Token(c *gin.Context) (string, error) {
	value, err := c.Cookie(s.name)
	if err != nil || value == "" {
		return "", nil
	}
	return s.Parse(value)
}

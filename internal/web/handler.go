// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package web

import (
	"context"
	"embed"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/passgate/passgate/internal/credential"
	"github.com/passgate/passgate/pkg/errutil"
)

//go:embed pages/*.html
var pageFS embed.FS

// User-facing response bodies. They never carry store or driver detail.
const (
	msgRegistered          = "User registered successfully."
	msgInvalidRegistration = "Invalid registration data."
	msgRegisterFailed      = "Registration failed. Please try again."
	msgUserNotFound        = "User not found."
	msgIncorrectPassword   = "Incorrect password."
	msgLoginFailed         = "Login failed. Please try again."
	msgChangeFailed        = "Password change failed. Please try again."
	msgBadRequest          = "Invalid request."
	msgNoSession           = "no valid session"
)

// CredentialService is the credential lifecycle the handlers drive.
type CredentialService interface {
	Register(ctx context.Context, username, password string, meta credential.ClientMeta) (*credential.Result, error)
	Login(ctx context.Context, username, password string, meta credential.ClientMeta) (*credential.Result, error)
	ChangePassword(ctx context.Context, username, newPassword string) error
	ResolveSession(ctx context.Context, token string) (*credential.Session, error)
	Logout(ctx context.Context, token string) error
}

type credentialsForm struct {
	Username string `form:"username"`
	Password string `form:"password"`
}

type changePasswordForm struct {
	Username    string `form:"username"`
	NewPassword string `form:"newPassword"`
}

// Handler serves the credential pages and form endpoints.
type Handler struct {
	svc     CredentialService
	cookies *CookieSigner
	logger  *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(svc CredentialService, cookies *CookieSigner, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, cookies: cookies, logger: logger}
}

// Register binds the routes onto r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/", h.page("index.html"))
	r.GET("/register", h.page("register.html"))
	r.GET("/login", h.page("login.html"))
	r.GET("/change-password", h.page("change-password.html"))

	r.POST("/register", h.register)
	r.POST("/login", h.login)
	r.POST("/change-password", h.changePassword)
	r.GET("/session", h.session)
	r.POST("/logout", h.logout)
}

func (h *Handler) page(name string) gin.HandlerFunc {
	body, err := pageFS.ReadFile("pages/" + name)
	if err != nil {
		// pages are embedded at build time; a miss is a programming error
		panic(err)
	}
	return func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", body)
	}
}

func clientMeta(c *gin.Context) credential.ClientMeta {
	return credential.ClientMeta{
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	}
}

func (h *Handler) register(c *gin.Context) {
	var form credentialsForm
	if err := c.ShouldBind(&form); err != nil {
		c.String(http.StatusBadRequest, msgInvalidRegistration)
		return
	}

	res, err := h.svc.Register(c.Request.Context(), form.Username, form.Password, clientMeta(c))
	if err != nil {
		// duplicates share the generic failure so usernames cannot be probed
		if credential.KindOf(err) == credential.KindValidation {
			c.String(http.StatusBadRequest, msgInvalidRegistration)
			return
		}
		c.String(http.StatusInternalServerError, msgRegisterFailed)
		return
	}

	if !h.setSession(c, res) {
		c.String(http.StatusInternalServerError, msgRegisterFailed)
		return
	}
	c.String(http.StatusOK, msgRegistered)
}

func (h *Handler) login(c *gin.Context) {
	var form credentialsForm
	if err := c.ShouldBind(&form); err != nil {
		c.String(http.StatusBadRequest, msgBadRequest)
		return
	}

	res, err := h.svc.Login(c.Request.Context(), form.Username, form.Password, clientMeta(c))
	if err != nil {
		switch credential.KindOf(err) {
		case credential.KindNotFound:
			c.String(http.StatusUnauthorized, msgUserNotFound)
		case credential.KindAuthentication:
			c.String(http.StatusUnauthorized, msgIncorrectPassword)
		default:
			c.String(http.StatusInternalServerError, msgLoginFailed)
		}
		return
	}

	if !h.setSession(c, res) {
		c.String(http.StatusInternalServerError, msgLoginFailed)
		return
	}
	c.Redirect(http.StatusFound, "/register")
}

func (h *Handler) changePassword(c *gin.Context) {
	var form changePasswordForm
	if err := c.ShouldBind(&form); err != nil {
		c.String(http.StatusBadRequest, msgBadRequest)
		return
	}

	if err := h.svc.ChangePassword(c.Request.Context(), form.Username, form.NewPassword); err != nil {
		switch credential.KindOf(err) {
		case credential.KindNotFound:
			c.String(http.StatusUnauthorized, msgUserNotFound)
		default:
			c.String(http.StatusInternalServerError, msgChangeFailed)
		}
		return
	}
	c.Redirect(http.StatusFound, "/")
}

func (h *Handler) session(c *gin.Context) {
	ctx := c.Request.Context()

	token, err := h.cookies.Token(c)
	if err != nil {
		h.logger.DebugContext(ctx, "rejected session cookie", "error", err)
		h.cookies.Clear(c)
		c.JSON(http.StatusUnauthorized, gin.H{"error": msgNoSession})
		return
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": msgNoSession})
		return
	}

	sess, err := h.svc.ResolveSession(ctx, token)
	if err != nil {
		if credential.KindOf(err) == credential.KindAuthentication {
			h.cookies.Clear(c)
			c.JSON(http.StatusUnauthorized, gin.H{"error": msgNoSession})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session lookup failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":    sess.UserID,
		"expires_at": sess.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) logout(c *gin.Context) {
	ctx := c.Request.Context()

	token, err := h.cookies.Token(c)
	if err == nil && token != "" {
		if err := h.svc.Logout(ctx, token); err != nil {
			errutil.LogErrorContext(ctx, h.logger, "logout failed", err)
		}
	}
	h.cookies.Clear(c)
	c.Redirect(http.StatusFound, "/")
}

// setSession writes the cookie for a freshly bound session.
func (h *Handler) setSession(c *gin.Context, res *credential.Result) bool {
	if err := h.cookies.Set(c, res.Token, res.Session.ExpiresAt); err != nil {
		ctx := c.Request.Context()
		errutil.LogErrorContext(ctx, h.logger, "failed to set session cookie", err)
		// the bound session is unreachable without the cookie
		if logoutErr := h.svc.Logout(ctx, res.Token); logoutErr != nil {
			errutil.LogErrorContext(ctx, h.logger, "failed to revoke orphaned session", logoutErr)
		}
		return false
	}
	return true
}

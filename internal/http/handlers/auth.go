package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/geocoder89/authhub/internal/auth"
	"github.com/geocoder89/authhub/internal/config"
	"github.com/geocoder89/authhub/internal/domain/user"
	"github.com/geocoder89/authhub/internal/http/middlewares"
	"github.com/geocoder89/authhub/internal/jobs"
	"github.com/geocoder89/authhub/internal/observability"
	"github.com/gin-gonic/gin"
)

// AuthService is the core boundary: plain strings in, plain values or error
// kinds out. Kept as an interface so handler tests can fake the core.
type AuthService interface {
	RegisterUser(ctx context.Context, email, password string) (user.User, error)
	ValidLogin(ctx context.Context, email, password string) (bool, error)
	CreateSession(ctx context.Context, email string) (string, error)
	UserFromSessionToken(ctx context.Context, token string) (user.User, bool, error)
	DestroySession(ctx context.Context, userID string) error
	ResetPasswordToken(ctx context.Context, email string) (string, error)
	UpdatePassword(ctx context.Context, resetToken, newPassword string) error
}

// Enqueuer hands email jobs to the queue. nil-able from the handler's point
// of view: delivery is best effort and never blocks the auth result.
type Enqueuer interface {
	Enqueue(ctx context.Context, j jobs.Job) error
}

const sessionCookieName = "session_token"

type AuthHandler struct {
	svc   AuthService
	queue Enqueuer
	prom  *observability.Prom
	cfg   config.Config
}

func NewAuthHandler(svc AuthService, queue Enqueuer, prom *observability.Prom, cfg config.Config) *AuthHandler {
	return &AuthHandler{
		svc:   svc,
		queue: queue,
		prom:  prom,
		cfg:   cfg,
	}
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=512"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type UpdatePasswordRequest struct {
	ResetToken  string `json:"resetToken" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=8,max=512"`
}

// Register creates the user and kicks off the welcome email.
func (h *AuthHandler) Register(ctx *gin.Context) {
	var req RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)

	defer cancel()

	u, err := h.svc.RegisterUser(cctx, req.Email, req.Password)

	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			h.prom.ObserveAuth("register", "conflict")
			RespondConflict(ctx, "email_taken", "Email is already in use.")
			return
		}

		h.prom.ObserveAuth("register", "error")
		RespondInternal(ctx, "Could not create user")
		return
	}

	h.prom.ObserveAuth("register", "ok")
	h.enqueue(cctx, jobs.JobSendWelcome, jobs.WelcomePayload{
		UserID:    u.ID,
		Email:     u.Email,
		RequestID: requestIDFrom(ctx),
	})

	ctx.JSON(http.StatusCreated, gin.H{
		"id":    u.ID,
		"email": u.Email,
	})
}

// Login verifies credentials and opens a session. A failed check and an
// unknown email answer identically, so the endpoint cannot confirm whether
// an account exists.
func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	ok, err := h.svc.ValidLogin(cctx, req.Email, req.Password)

	if err != nil {
		h.prom.ObserveAuth("login", "error")
		RespondInternal(ctx, "Could not log in")
		return
	}

	if !ok {
		h.prom.ObserveAuth("login", "rejected")
		RespondUnAuthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
		return
	}

	token, err := h.svc.CreateSession(cctx, req.Email)

	if err != nil {
		h.prom.ObserveAuth("login", "error")
		RespondInternal(ctx, "Could not create session")
		return
	}

	if token == "" {
		// user vanished between the check and the session write
		h.prom.ObserveAuth("login", "rejected")
		RespondUnAuthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
		return
	}

	h.prom.ObserveAuth("login", "ok")
	h.setSessionCookie(ctx, token)

	ctx.JSON(http.StatusOK, gin.H{
		"email":   req.Email,
		"message": "logged in",
	})
}

// Logout destroys the session behind the cookie. Always 204: logging out
// twice, or with no session at all, is not an error.
func (h *AuthHandler) Logout(ctx *gin.Context) {
	raw, err := ctx.Cookie(sessionCookieName)

	if err != nil || raw == "" {
		h.clearSessionCookie(ctx)
		ctx.Status(http.StatusNoContent)
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	u, found, err := h.svc.UserFromSessionToken(cctx, raw)

	if err == nil && found {
		// idempotent: a lost race with another logout is still a 204
		_ = h.svc.DestroySession(cctx, u.ID)
	}

	h.prom.ObserveAuth("logout", "ok")
	h.clearSessionCookie(ctx)
	ctx.Status(http.StatusNoContent)
}

// Profile returns the identity resolved by the session middleware.
func (h *AuthHandler) Profile(ctx *gin.Context) {
	id := ctx.GetString(string(middlewares.CtxUserID))
	email := ctx.GetString(string(middlewares.CtxEmail))

	if id == "" {
		// route is mounted behind RequireSession; reaching here without
		// an identity is a wiring bug
		RespondForbidden(ctx, "no_session", "No active session")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"id":    id,
		"email": email,
	})
}

// RequestPasswordReset issues a reset token and queues the reset email.
func (h *AuthHandler) RequestPasswordReset(ctx *gin.Context) {
	var req ResetRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	token, err := h.svc.ResetPasswordToken(cctx, req.Email)

	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			h.prom.ObserveAuth("reset_request", "rejected")
			RespondForbidden(ctx, "unknown_email", "Email is not registered.")
			return
		}

		h.prom.ObserveAuth("reset_request", "error")
		RespondInternal(ctx, "Could not create reset token")
		return
	}

	h.prom.ObserveAuth("reset_request", "ok")
	h.enqueue(cctx, jobs.JobSendPasswordReset, jobs.PasswordResetPayload{
		Email:      req.Email,
		ResetToken: token,
		RequestID:  requestIDFrom(ctx),
	})

	ctx.JSON(http.StatusOK, gin.H{
		"email":      req.Email,
		"resetToken": token,
	})
}

// UpdatePassword burns the reset token against a new password.
func (h *AuthHandler) UpdatePassword(ctx *gin.Context) {
	var req UpdatePasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	err := h.svc.UpdatePassword(cctx, req.ResetToken, req.NewPassword)

	if err != nil {
		if errors.Is(err, auth.ErrInvalidResetToken) {
			h.prom.ObserveAuth("reset_update", "rejected")
			RespondForbidden(ctx, "invalid_reset_token", "Reset token is invalid or already used.")
			return
		}

		h.prom.ObserveAuth("reset_update", "error")
		RespondInternal(ctx, "Could not update password")
		return
	}

	h.prom.ObserveAuth("reset_update", "ok")
	ctx.JSON(http.StatusOK, gin.H{
		"message": "password updated",
	})
}

// Helper functions

func (h *AuthHandler) enqueue(ctx context.Context, t jobs.JobType, payload any) {
	if h.queue == nil {
		return
	}

	b, err := jobs.EncodePayload(t, payload)

	if err != nil {
		return
	}

	j, err := jobs.NewJob(t, b, time.Time{})

	if err != nil {
		return
	}

	// best effort; the auth operation already succeeded
	_ = h.queue.Enqueue(ctx, j)
}

func (h *AuthHandler) setSessionCookie(ctx *gin.Context, token string) {
	secure := h.cfg.Env == "prod"

	ctx.SetSameSite(http.SameSiteStrictMode)

	// no Max-Age: the cookie lives with the browser session, the token
	// itself has no TTL and dies by overwrite or logout
	ctx.SetCookie(
		sessionCookieName,
		token,
		0,
		"/",
		"",
		secure,
		true, // HttpOnly.
	)
}

func (h *AuthHandler) clearSessionCookie(ctx *gin.Context) {
	secure := h.cfg.Env == "prod"
	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(
		sessionCookieName,
		"",
		-1,
		"/",
		"",
		secure,
		true,
	)
}

package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/geocoder89/authhub/internal/auth"
	"github.com/geocoder89/authhub/internal/config"
	"github.com/geocoder89/authhub/internal/domain/user"
	"github.com/geocoder89/authhub/internal/http/handlers"
	"github.com/geocoder89/authhub/internal/http/middlewares"
	"github.com/geocoder89/authhub/internal/jobs"
	"github.com/gin-gonic/gin"
)

// Make sure Gin does not spam the console during the test

func init() {
	gin.SetMode(gin.TestMode)
}

// Fake implementation of the handlers.AuthService interface

type fakeAuthService struct {
	registerFn   func(ctx context.Context, email, password string) (user.User, error)
	validLoginFn func(ctx context.Context, email, password string) (bool, error)
	createFn     func(ctx context.Context, email string) (string, error)
	fromTokenFn  func(ctx context.Context, token string) (user.User, bool, error)
	destroyFn    func(ctx context.Context, userID string) error
	resetFn      func(ctx context.Context, email string) (string, error)
	updateFn     func(ctx context.Context, resetToken, newPassword string) error
}

func (f *fakeAuthService) RegisterUser(ctx context.Context, email, password string) (user.User, error) {
	if f.registerFn != nil {
		return f.registerFn(ctx, email, password)
	}
	return user.User{}, nil
}

func (f *fakeAuthService) ValidLogin(ctx context.Context, email, password string) (bool, error) {
	if f.validLoginFn != nil {
		return f.validLoginFn(ctx, email, password)
	}
	return false, nil
}

func (f *fakeAuthService) CreateSession(ctx context.Context, email string) (string, error) {
	if f.createFn != nil {
		return f.createFn(ctx, email)
	}
	return "", nil
}

func (f *fakeAuthService) UserFromSessionToken(ctx context.Context, token string) (user.User, bool, error) {
	if f.fromTokenFn != nil {
		return f.fromTokenFn(ctx, token)
	}
	return user.User{}, false, nil
}

func (f *fakeAuthService) DestroySession(ctx context.Context, userID string) error {
	if f.destroyFn != nil {
		return f.destroyFn(ctx, userID)
	}
	return nil
}

func (f *fakeAuthService) ResetPasswordToken(ctx context.Context, email string) (string, error) {
	if f.resetFn != nil {
		return f.resetFn(ctx, email)
	}
	return "", nil
}

func (f *fakeAuthService) UpdatePassword(ctx context.Context, resetToken, newPassword string) error {
	if f.updateFn != nil {
		return f.updateFn(ctx, resetToken, newPassword)
	}
	return nil
}

type fakeQueue struct {
	enqueued []jobs.Job
	err      error
}

func (f *fakeQueue) Enqueue(ctx context.Context, j jobs.Job) error {
	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, j)
	return nil
}

// small helper function which returns the gin engine to mount one handler per test

func setupRouter(method, path string, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	r.Handle(method, path, h)

	return r
}

func newHandler(svc handlers.AuthService, queue handlers.Enqueuer) *handlers.AuthHandler {
	return handlers.NewAuthHandler(svc, queue, nil, config.Config{Env: "dev"})
}

func TestRegisterHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setUp          func(*fakeAuthService)
		wantStatusCode int
		wantJobs       int
	}{
		{
			name: "success",
			body: `{"email": "a@x.com", "password": "long-enough-pw"}`,
			setUp: func(f *fakeAuthService) {
				f.registerFn = func(ctx context.Context, email, password string) (user.User, error) {
					return user.User{ID: "u1", Email: email}, nil
				}
			},
			wantStatusCode: http.StatusCreated,
			wantJobs:       1,
		},
		{
			name:           "invalid_email",
			body:           `{"email": "not-an-email", "password": "long-enough-pw"}`,
			setUp:          func(f *fakeAuthService) {},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "short_password",
			body:           `{"email": "a@x.com", "password": "short"}`,
			setUp:          func(f *fakeAuthService) {},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "email_taken",
			body: `{"email": "a@x.com", "password": "long-enough-pw"}`,
			setUp: func(f *fakeAuthService) {
				f.registerFn = func(ctx context.Context, email, password string) (user.User, error) {
					return user.User{}, auth.ErrUserExists
				}
			},
			wantStatusCode: http.StatusConflict,
		},
		{
			name: "storage_error",
			body: `{"email": "a@x.com", "password": "long-enough-pw"}`,
			setUp: func(f *fakeAuthService) {
				f.registerFn = func(ctx context.Context, email, password string) (user.User, error) {
					return user.User{}, errors.New("db down")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeAuthService{}
			tt.setUp(svc)
			queue := &fakeQueue{}

			h := newHandler(svc, queue)
			r := setupRouter(http.MethodPost, "/users", h.Register)

			req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("status = %d, want %d, body %s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if len(queue.enqueued) != tt.wantJobs {
				t.Fatalf("enqueued %d jobs, want %d", len(queue.enqueued), tt.wantJobs)
			}

			if tt.wantJobs == 1 && queue.enqueued[0].Type != jobs.JobSendWelcome {
				t.Fatalf("enqueued job type %s, want %s", queue.enqueued[0].Type, jobs.JobSendWelcome)
			}
		})
	}
}

func TestLoginHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setUp          func(*fakeAuthService)
		wantStatusCode int
		wantCookie     bool
	}{
		{
			name: "success",
			body: `{"email": "a@x.com", "password": "pw-eight-chars"}`,
			setUp: func(f *fakeAuthService) {
				f.validLoginFn = func(ctx context.Context, email, password string) (bool, error) {
					return true, nil
				}
				f.createFn = func(ctx context.Context, email string) (string, error) {
					return "session-token-1", nil
				}
			},
			wantStatusCode: http.StatusOK,
			wantCookie:     true,
		},
		{
			name: "wrong_credentials",
			body: `{"email": "a@x.com", "password": "pw-eight-chars"}`,
			setUp: func(f *fakeAuthService) {
				f.validLoginFn = func(ctx context.Context, email, password string) (bool, error) {
					return false, nil
				}
			},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			// unknown emails must look exactly like wrong passwords
			name: "unknown_email",
			body: `{"email": "ghost@x.com", "password": "pw-eight-chars"}`,
			setUp: func(f *fakeAuthService) {
				f.validLoginFn = func(ctx context.Context, email, password string) (bool, error) {
					return false, nil
				}
			},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name: "user_vanished_before_session",
			body: `{"email": "a@x.com", "password": "pw-eight-chars"}`,
			setUp: func(f *fakeAuthService) {
				f.validLoginFn = func(ctx context.Context, email, password string) (bool, error) {
					return true, nil
				}
				f.createFn = func(ctx context.Context, email string) (string, error) {
					return "", nil
				}
			},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "missing_body",
			body:           `{}`,
			setUp:          func(f *fakeAuthService) {},
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeAuthService{}
			tt.setUp(svc)

			h := newHandler(svc, &fakeQueue{})
			r := setupRouter(http.MethodPost, "/sessions", h.Login)

			req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("status = %d, want %d, body %s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			gotCookie := false

			for _, c := range w.Result().Cookies() {
				if c.Name == "session_token" && c.Value != "" {
					gotCookie = true

					if !c.HttpOnly {
						t.Fatalf("session cookie is not HttpOnly")
					}
				}
			}

			if gotCookie != tt.wantCookie {
				t.Fatalf("session cookie present = %v, want %v", gotCookie, tt.wantCookie)
			}
		})
	}
}

func TestLogoutHandler(t *testing.T) {
	destroyed := ""

	svc := &fakeAuthService{
		fromTokenFn: func(ctx context.Context, token string) (user.User, bool, error) {
			if token == "live-session" {
				return user.User{ID: "u1", Email: "a@x.com"}, true, nil
			}
			return user.User{}, false, nil
		},
		destroyFn: func(ctx context.Context, userID string) error {
			destroyed = userID
			return nil
		},
	}

	h := newHandler(svc, &fakeQueue{})
	r := setupRouter(http.MethodDelete, "/sessions", h.Logout)

	// with a live session
	req := httptest.NewRequest(http.MethodDelete, "/sessions", nil)
	req.AddCookie(&http.Cookie{Name: "session_token", Value: "live-session"})
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}

	if destroyed != "u1" {
		t.Fatalf("DestroySession called with %q, want u1", destroyed)
	}

	// without any cookie it is still a 204
	req = httptest.NewRequest(http.MethodDelete, "/sessions", nil)
	w = httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("cookie-less logout status = %d, want 204", w.Code)
	}
}

func TestProfileBehindSession(t *testing.T) {
	svc := &fakeAuthService{
		fromTokenFn: func(ctx context.Context, token string) (user.User, bool, error) {
			if token == "live-session" {
				return user.User{ID: "u1", Email: "a@x.com"}, true, nil
			}
			return user.User{}, false, nil
		},
	}

	h := newHandler(svc, &fakeQueue{})
	session := middlewares.NewSessionMiddleware(svc)

	r := gin.New()
	r.GET("/profile", session.RequireSession(), h.Profile)

	tests := []struct {
		name           string
		cookie         string
		wantStatusCode int
	}{
		{name: "valid_session", cookie: "live-session", wantStatusCode: http.StatusOK},
		{name: "unknown_session", cookie: "stale-session", wantStatusCode: http.StatusForbidden},
		{name: "no_cookie", cookie: "", wantStatusCode: http.StatusForbidden},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/profile", nil)

			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "session_token", Value: tt.cookie})
			}

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("status = %d, want %d, body %s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantStatusCode == http.StatusOK && !strings.Contains(w.Body.String(), "a@x.com") {
				t.Fatalf("profile body missing email: %s", w.Body.String())
			}
		})
	}
}

func TestRequestPasswordResetHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setUp          func(*fakeAuthService)
		wantStatusCode int
		wantJobs       int
	}{
		{
			name: "success",
			body: `{"email": "a@x.com"}`,
			setUp: func(f *fakeAuthService) {
				f.resetFn = func(ctx context.Context, email string) (string, error) {
					return "reset-token-1", nil
				}
			},
			wantStatusCode: http.StatusOK,
			wantJobs:       1,
		},
		{
			name: "unknown_email",
			body: `{"email": "ghost@x.com"}`,
			setUp: func(f *fakeAuthService) {
				f.resetFn = func(ctx context.Context, email string) (string, error) {
					return "", auth.ErrUserNotFound
				}
			},
			wantStatusCode: http.StatusForbidden,
		},
		{
			name:           "invalid_body",
			body:           `{"email": "not-an-email"}`,
			setUp:          func(f *fakeAuthService) {},
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeAuthService{}
			tt.setUp(svc)
			queue := &fakeQueue{}

			h := newHandler(svc, queue)
			r := setupRouter(http.MethodPost, "/reset_password", h.RequestPasswordReset)

			req := httptest.NewRequest(http.MethodPost, "/reset_password", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("status = %d, want %d, body %s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if len(queue.enqueued) != tt.wantJobs {
				t.Fatalf("enqueued %d jobs, want %d", len(queue.enqueued), tt.wantJobs)
			}

			if tt.wantJobs == 1 && queue.enqueued[0].Type != jobs.JobSendPasswordReset {
				t.Fatalf("enqueued job type %s, want %s", queue.enqueued[0].Type, jobs.JobSendPasswordReset)
			}
		})
	}
}

func TestUpdatePasswordHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setUp          func(*fakeAuthService)
		wantStatusCode int
	}{
		{
			name: "success",
			body: `{"resetToken": "reset-token-1", "newPassword": "fresh-password"}`,
			setUp: func(f *fakeAuthService) {
				f.updateFn = func(ctx context.Context, resetToken, newPassword string) error {
					return nil
				}
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name: "invalid_token",
			body: `{"resetToken": "stale-token", "newPassword": "fresh-password"}`,
			setUp: func(f *fakeAuthService) {
				f.updateFn = func(ctx context.Context, resetToken, newPassword string) error {
					return auth.ErrInvalidResetToken
				}
			},
			wantStatusCode: http.StatusForbidden,
		},
		{
			name:           "short_password",
			body:           `{"resetToken": "reset-token-1", "newPassword": "short"}`,
			setUp:          func(f *fakeAuthService) {},
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeAuthService{}
			tt.setUp(svc)

			h := newHandler(svc, &fakeQueue{})
			r := setupRouter(http.MethodPut, "/reset_password", h.UpdatePassword)

			req := httptest.NewRequest(http.MethodPut, "/reset_password", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("status = %d, want %d, body %s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

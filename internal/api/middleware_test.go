package api

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/npezzotti/go-callsignal/internal/auth"
	"github.com/npezzotti/go-callsignal/internal/database"
	"github.com/npezzotti/go-callsignal/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestErrorHandler_PanicRecovery(t *testing.T) {
	buf := &bytes.Buffer{}
	app := &App{
		log: zerolog.New(buf),
	}

	panicHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(errors.New("test panic"))
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	handler := app.errorHandler(panicHandler)
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "close", rr.Header().Get("Connection"))
	assert.Contains(t, buf.String(), "test panic")
	assert.JSONEq(t, `{"status_code":500,"message":"internal server error"}`, rr.Body.String())
}

func Test_errorHandler_NoPanic(t *testing.T) {
	app := &App{log: testutil.TestLogger(t)}

	called := false
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	app.errorHandler(okHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
	assert.True(t, called, "expected handler to be called")
}

func TestRequireAuth(t *testing.T) {
	app := newTestApp(t, &database.MockCallRepository{}, testutil.TestLogger(t))

	var got *auth.Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = IdentityFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := app.requireAuth(next)

	t.Run("valid bearer token", func(t *testing.T) {
		got = nil
		token := issueToken(t, app, auth.Identity{UserId: 1, Email: "a@example.com"})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, &auth.Identity{UserId: 1, Email: "a@example.com"}, got)
		assert.Equal(t, "no-store, no-cache, must-revalidate, private", rr.Header().Get("Cache-Control"))
	})

	t.Run("valid cookie", func(t *testing.T) {
		token := issueToken(t, app, auth.Identity{UserId: 2})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(createJwtCookie(token, defaultJwtExpiration))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("missing credential", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("invalid credential", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestOptionalAuth(t *testing.T) {
	app := newTestApp(t, &database.MockCallRepository{}, testutil.TestLogger(t))

	var (
		got   *auth.Identity
		authd bool
	)
	handler := app.optionalAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, authd = IdentityFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("guest", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.False(t, authd)
		assert.Nil(t, got)
	})

	t.Run("query token", func(t *testing.T) {
		token := issueToken(t, app, auth.Identity{UserId: 3})

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/?token="+token, nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.True(t, authd)
		assert.Equal(t, 3, got.UserId)
	})

	t.Run("invalid credential is rejected", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/?token=garbage", nil))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

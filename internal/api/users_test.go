package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/npezzotti/go-callsignal/internal/auth"
	"github.com/npezzotti/go-callsignal/internal/database"
	"github.com/npezzotti/go-callsignal/internal/testutil"
	"github.com/npezzotti/go-callsignal/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// findCookie returns the named cookie set on the response, or nil.
func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, cookie := range resp.Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func decodeApiError(t *testing.T, body []byte) ApiError {
	var e ApiError
	require.NoError(t, json.Unmarshal(body, &e), "expected an error envelope")
	return e
}

func TestCreateAccountHandler(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newUser := database.User{Id: 1, EmailAddress: "newuser@example.com", CreatedAt: created}

	tcases := []struct {
		name         string
		body         string
		mockUser     database.User
		mockErr      error
		callsDb      bool
		expectedCode int
		expectedMsg  string
	}{
		{
			name:         "successfully creates a new account",
			body:         `{"email":" NewUser@Example.com ","password":"password1"}`,
			mockUser:     newUser,
			callsDb:      true,
			expectedCode: http.StatusCreated,
		},
		{
			name:         "invalid json body",
			body:         `invalid json`,
			expectedCode: http.StatusBadRequest,
			expectedMsg:  "bad request",
		},
		{
			name:         "invalid email",
			body:         `{"email":"nope","password":"password1"}`,
			expectedCode: http.StatusBadRequest,
			expectedMsg:  "email must be a valid email address",
		},
		{
			name:         "weak password",
			body:         `{"email":"newuser@example.com","password":"password"}`,
			expectedCode: http.StatusBadRequest,
			expectedMsg:  "password must be at least 8 characters and contain a letter and a digit",
		},
		{
			name:         "email already registered",
			body:         `{"email":"newuser@example.com","password":"password1"}`,
			mockErr:      fmt.Errorf("%w: accounts_email_key", database.ErrConflict),
			callsDb:      true,
			expectedCode: http.StatusConflict,
			expectedMsg:  "conflict",
		},
		{
			name:         "database failure",
			body:         `{"email":"newuser@example.com","password":"password1"}`,
			mockErr:      errors.New("db down"),
			callsDb:      true,
			expectedCode: http.StatusInternalServerError,
			expectedMsg:  "internal server error",
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockCallRepository{}
			defer mockRepo.AssertExpectations(t)

			if tc.callsDb {
				mockRepo.On("CreateAccount", mock.MatchedBy(func(p database.CreateAccountParams) bool {
					return p.EmailAddress == "newuser@example.com" && verifyPassword(p.PasswordHash, "password1")
				})).Return(tc.mockUser, tc.mockErr).Once()
			}

			app := newTestApp(t, mockRepo, testutil.TestLogger(t))
			rr := serve(app, http.MethodPost, "/api/users", tc.body, "")

			assert.Equal(t, tc.expectedCode, rr.Code)
			if tc.expectedMsg != "" {
				e := decodeApiError(t, rr.Body.Bytes())
				assert.Equal(t, tc.expectedCode, e.StatusCode)
				assert.Equal(t, tc.expectedMsg, e.Message)
				return
			}

			var u types.User
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &u))
			assert.Equal(t, types.User{Id: 1, EmailAddress: "newuser@example.com", CreatedAt: created}, u)
		})
	}
}

func TestLoginHandler(t *testing.T) {
	pwdHash, err := hashPassword("password1")
	require.NoError(t, err)
	dbUser := database.User{Id: 7, EmailAddress: "user@example.com", PasswordHash: pwdHash}

	t.Run("successful login", func(t *testing.T) {
		mockRepo := &database.MockCallRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetAccountByEmail", "user@example.com").Return(dbUser, nil).Once()

		app := newTestApp(t, mockRepo, testutil.TestLogger(t))
		rr := serve(app, http.MethodPost, "/api/users/login", `{"email":"User@example.com","password":"password1"}`, "")
		require.Equal(t, http.StatusOK, rr.Code)

		var resp types.LoginResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, 7, resp.User.Id)
		assert.NotContains(t, rr.Body.String(), pwdHash, "password hash must not leak")

		id, err := app.auth.Authenticate(resp.Token)
		require.NoError(t, err, "issued token should verify")
		assert.Equal(t, &auth.Identity{UserId: 7, Email: "user@example.com"}, id)

		cookie := findCookie(rr.Result(), auth.TokenCookieKey)
		require.NotNil(t, cookie, "expected token cookie")
		assert.Equal(t, resp.Token, cookie.Value)
		assert.True(t, cookie.HttpOnly)
	})

	t.Run("padded email is trimmed before validation", func(t *testing.T) {
		mockRepo := &database.MockCallRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetAccountByEmail", "user@example.com").Return(dbUser, nil).Once()

		app := newTestApp(t, mockRepo, testutil.TestLogger(t))
		rr := serve(app, http.MethodPost, "/api/users/login", `{"email":"  USER@Example.com ","password":"password1"}`, "")

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.NotNil(t, findCookie(rr.Result(), auth.TokenCookieKey), "expected token cookie")
	})

	tcases := []struct {
		name         string
		body         string
		mockUser     database.User
		mockErr      error
		callsDb      bool
		expectedCode int
	}{
		{
			name:         "wrong password",
			body:         `{"email":"user@example.com","password":"password2"}`,
			mockUser:     dbUser,
			callsDb:      true,
			expectedCode: http.StatusUnauthorized,
		},
		{
			name:         "unknown email",
			body:         `{"email":"user@example.com","password":"password1"}`,
			mockErr:      database.ErrNotFound,
			callsDb:      true,
			expectedCode: http.StatusUnauthorized,
		},
		{
			name:         "database failure",
			body:         `{"email":"user@example.com","password":"password1"}`,
			mockErr:      errors.New("db down"),
			callsDb:      true,
			expectedCode: http.StatusInternalServerError,
		},
		{
			name:         "missing password",
			body:         `{"email":"user@example.com"}`,
			expectedCode: http.StatusBadRequest,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockCallRepository{}
			defer mockRepo.AssertExpectations(t)
			if tc.callsDb {
				mockRepo.On("GetAccountByEmail", "user@example.com").Return(tc.mockUser, tc.mockErr).Once()
			}

			app := newTestApp(t, mockRepo, testutil.TestLogger(t))
			rr := serve(app, http.MethodPost, "/api/users/login", tc.body, "")

			assert.Equal(t, tc.expectedCode, rr.Code)
			assert.Nil(t, findCookie(rr.Result(), auth.TokenCookieKey), "no cookie on failed login")
		})
	}
}

func TestLogoutHandler(t *testing.T) {
	app := newTestApp(t, &database.MockCallRepository{}, testutil.TestLogger(t))

	rr := serve(app, http.MethodPost, "/api/users/logout", "", "")

	assert.Equal(t, http.StatusNoContent, rr.Code)
	cookie := findCookie(rr.Result(), auth.TokenCookieKey)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.True(t, cookie.Expires.Before(time.Now()), "expected an expired cookie")
}

func TestSessionHandler(t *testing.T) {
	t.Run("returns current user", func(t *testing.T) {
		mockRepo := &database.MockCallRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetAccountById", 7).Return(database.User{Id: 7, EmailAddress: "user@example.com"}, nil).Once()

		app := newTestApp(t, mockRepo, testutil.TestLogger(t))
		token := issueToken(t, app, auth.Identity{UserId: 7, Email: "user@example.com"})
		rr := serve(app, http.MethodGet, "/api/users/session", "", token)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"id":7,"email":"user@example.com","createdAt":"0001-01-01T00:00:00Z"}`, rr.Body.String())
	})

	t.Run("account deleted", func(t *testing.T) {
		mockRepo := &database.MockCallRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetAccountById", 7).Return(database.User{}, database.ErrNotFound).Once()

		app := newTestApp(t, mockRepo, testutil.TestLogger(t))
		token := issueToken(t, app, auth.Identity{UserId: 7})
		rr := serve(app, http.MethodGet, "/api/users/session", "", token)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		app := newTestApp(t, &database.MockCallRepository{}, testutil.TestLogger(t))
		rr := serve(app, http.MethodGet, "/api/users/session", "", "")

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestRequestNormalize(t *testing.T) {
	reg := RegisterRequest{Email: " NewUser@Example.COM\t", Password: " keep me "}
	reg.normalize()
	assert.Equal(t, "newuser@example.com", reg.Email)
	assert.Equal(t, " keep me ", reg.Password, "passwords are not altered")

	login := LoginRequest{Email: "\nUser@Example.com  "}
	login.normalize()
	assert.Equal(t, "user@example.com", login.Email)
}

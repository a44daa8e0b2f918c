package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/npezzotti/go-callsignal/internal/auth"
	"github.com/npezzotti/go-callsignal/internal/database"
	"github.com/npezzotti/go-callsignal/internal/types"
	"github.com/npezzotti/go-callsignal/internal/validator"
	"golang.org/x/crypto/bcrypt"
)

const defaultJwtExpiration = 24 * time.Hour

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,password_strength"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func toUser(u database.User) types.User {
	return types.User{
		Id:           u.Id,
		EmailAddress: u.EmailAddress,
		CreatedAt:    u.CreatedAt,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// normalizer is implemented by request bodies that clean up their fields
// before validation.
type normalizer interface {
	normalize()
}

func (req *RegisterRequest) normalize() {
	req.Email = normalizeEmail(req.Email)
}

func (req *LoginRequest) normalize() {
	req.Email = normalizeEmail(req.Email)
}

// decodeAndValidate reports a response-ready error for malformed or invalid bodies.
func (a *App) decodeAndValidate(r *http.Request, v any) *ApiError {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return NewBadRequestError()
	}

	if n, ok := v.(normalizer); ok {
		n.normalize()
	}

	if err := a.validate.Validate(v); err != nil {
		return NewValidationError(validator.Describe(err))
	}

	return nil
}

func (a *App) createAccount(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if errResp := a.decodeAndValidate(r, &req); errResp != nil {
		a.writeError(w, errResp)
		return
	}

	pwdHash, err := hashPassword(req.Password)
	if err != nil {
		a.writeError(w, NewInternalServerError(err))
		return
	}

	newUser, err := a.db.CreateAccount(database.CreateAccountParams{
		EmailAddress: req.Email,
		PasswordHash: pwdHash,
	})
	if err != nil {
		if errors.Is(err, database.ErrConflict) {
			a.writeError(w, NewConflictError())
			return
		}
		a.writeError(w, NewInternalServerError(err))
		return
	}

	a.log.Info().Int("user_id", newUser.Id).Msg("created account")
	a.writeJson(w, http.StatusCreated, toUser(newUser))
}

func (a *App) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if errResp := a.decodeAndValidate(r, &req); errResp != nil {
		a.writeError(w, errResp)
		return
	}

	dbUser, err := a.db.GetAccountByEmail(req.Email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			a.writeError(w, NewUnauthorizedError())
			return
		}
		a.writeError(w, NewInternalServerError(err))
		return
	}

	if !verifyPassword(dbUser.PasswordHash, req.Password) {
		a.writeError(w, NewUnauthorizedError())
		return
	}

	token, err := a.auth.IssueToken(auth.Identity{UserId: dbUser.Id, Email: dbUser.EmailAddress}, defaultJwtExpiration)
	if err != nil {
		a.writeError(w, NewInternalServerError(err))
		return
	}

	http.SetCookie(w, createJwtCookie(token, defaultJwtExpiration))
	a.writeJson(w, http.StatusOK, types.LoginResponse{Token: token, User: toUser(dbUser)})
}

func (a *App) logout(w http.ResponseWriter, _ *http.Request) {
	// overwrite the cookie with an expired one so the browser drops it
	http.SetCookie(w, createJwtCookie("", -time.Hour))
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) session(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		a.writeError(w, NewUnauthorizedError())
		return
	}

	user, err := a.db.GetAccountById(id.UserId)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			a.writeError(w, NewNotFoundError())
			return
		}
		a.writeError(w, NewInternalServerError(err))
		return
	}

	a.writeJson(w, http.StatusOK, toUser(user))
}

func createJwtCookie(tokenString string, exp time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     auth.TokenCookieKey,
		Value:    tokenString,
		Path:     "/",
		Expires:  time.Now().Add(exp),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

func hashPassword(passwd string) (string, error) {
	passwdHash, err := bcrypt.GenerateFromPassword([]byte(passwd), bcrypt.DefaultCost)
	return string(passwdHash), err
}

func verifyPassword(passwdHash, passwd string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(passwdHash), []byte(passwd))
	return err == nil
}

package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
)

const (
	userIdClaim = "user-id"
	emailClaim  = "email"
	expClaim    = "exp"

	TokenCookieKey = "token"
	tokenQueryKey  = "token"
)

var ErrInvalidToken = errors.New("invalid token")

// Identity is the verified owner of a connection. A nil *Identity denotes a guest.
type Identity struct {
	UserId int
	Email  string
}

type Authenticator struct {
	signingKey []byte
}

func NewAuthenticator(signingKey []byte) *Authenticator {
	return &Authenticator{signingKey: signingKey}
}

// Authenticate verifies an optional bearer credential. An empty credential
// yields a guest (nil identity, nil error); only a present but invalid
// credential is rejected.
func (a *Authenticator) Authenticate(rawCredential string) (*Identity, error) {
	if rawCredential == "" {
		return nil, nil
	}

	token, err := jwt.Parse(rawCredential, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Header["alg"])
		}
		return a.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: invalid token claims", ErrInvalidToken)
	}

	userId, ok := claims[userIdClaim].(float64)
	if !ok || userId <= 0 {
		return nil, fmt.Errorf("%w: invalid user id claim", ErrInvalidToken)
	}

	email, _ := claims[emailClaim].(string)

	return &Identity{UserId: int(userId), Email: email}, nil
}

// IssueToken signs an HS256 token for id that expires after exp.
func (a *Authenticator) IssueToken(id Identity, exp time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		userIdClaim: id.UserId,
		emailClaim:  id.Email,
		expClaim:    time.Now().Add(exp).Unix(),
	})

	return token.SignedString(a.signingKey)
}

// CredentialFromRequest returns the bearer credential carried by r, checking
// the Authorization header, then the token query parameter (browsers cannot
// set headers on a websocket upgrade), then the token cookie.
func CredentialFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(token)
		}
	}

	if token := r.URL.Query().Get(tokenQueryKey); token != "" {
		return token
	}

	if cookie, err := r.Cookie(TokenCookieKey); err == nil {
		return cookie.Value
	}

	return ""
}

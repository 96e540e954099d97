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
	expClaim    = "exp"

	TokenCookieKey = "token"
	DefaultExp     = 24 * time.Hour
)

// ErrAuthentication is returned for any token that cannot be trusted.
var ErrAuthentication = errors.New("authentication error")

type TokenManager struct {
	signingKey []byte
	exp        time.Duration
}

func NewTokenManager(signingKey []byte, exp time.Duration) *TokenManager {
	if exp <= 0 {
		exp = DefaultExp
	}

	return &TokenManager{
		signingKey: signingKey,
		exp:        exp,
	}
}

func (tm *TokenManager) Expiry() time.Duration {
	return tm.exp
}

func (tm *TokenManager) Issue(userId int) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		userIdClaim: userId,
		expClaim:    time.Now().Add(tm.exp).Unix(),
	})

	return token.SignedString(tm.signingKey)
}

// VerifyConnectionToken returns the user id carried by a valid token.
// Every failure wraps ErrAuthentication.
func (tm *TokenManager) VerifyConnectionToken(tokenString string) (int, error) {
	if tokenString == "" {
		return 0, fmt.Errorf("%w: missing token", ErrAuthentication)
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return tm.signingKey, nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: parse token: %v", ErrAuthentication, err)
	}

	if !token.Valid {
		return 0, fmt.Errorf("%w: invalid token", ErrAuthentication)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, fmt.Errorf("%w: invalid token claims", ErrAuthentication)
	}

	userId, ok := claims[userIdClaim].(float64)
	if !ok || userId <= 0 {
		return 0, fmt.Errorf("%w: invalid user id claim", ErrAuthentication)
	}

	return int(userId), nil
}

// TokenFromRequest looks for a token in the query string, then the
// Authorization header, then the session cookie.
func TokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}

	if cookie, err := r.Cookie(TokenCookieKey); err == nil {
		return cookie.Value
	}

	return ""
}

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("test-signing-key")

func TestTokenManager_IssueAndVerify(t *testing.T) {
	tm := NewTokenManager(testKey, time.Hour)

	token, err := tm.Issue(42)
	require.NoError(t, err)

	userId, err := tm.VerifyConnectionToken(token)
	assert.NoError(t, err)
	assert.Equal(t, 42, userId)
}

func TestTokenManager_VerifyConnectionToken_Errors(t *testing.T) {
	tm := NewTokenManager(testKey, time.Hour)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		userIdClaim: 1,
		expClaim:    time.Now().Add(-time.Minute).Unix(),
	}).SignedString(testKey)
	require.NoError(t, err)

	wrongKey, err := NewTokenManager([]byte("other-key"), time.Hour).Issue(1)
	require.NoError(t, err)

	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		expClaim: time.Now().Add(time.Minute).Unix(),
	}).SignedString(testKey)
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		userIdClaim: 1,
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tcases := []struct {
		name  string
		token string
	}{
		{name: "empty token", token: ""},
		{name: "garbage", token: "not-a-jwt"},
		{name: "expired", token: expired},
		{name: "wrong signing key", token: wrongKey},
		{name: "missing user claim", token: noUser},
		{name: "none algorithm", token: unsigned},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			userId, err := tm.VerifyConnectionToken(tc.token)
			assert.ErrorIs(t, err, ErrAuthentication)
			assert.Zero(t, userId)
		})
	}
}

func TestNewTokenManager_DefaultExpiry(t *testing.T) {
	tm := NewTokenManager(testKey, 0)
	assert.Equal(t, DefaultExp, tm.Expiry())
}

func TestTokenFromRequest(t *testing.T) {
	tcases := []struct {
		name     string
		setup    func(r *http.Request)
		target   string
		expected string
	}{
		{
			name:     "query parameter",
			target:   "/ws?token=abc",
			setup:    func(r *http.Request) {},
			expected: "abc",
		},
		{
			name:   "bearer header",
			target: "/ws",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer def")
			},
			expected: "def",
		},
		{
			name:   "cookie",
			target: "/ws",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: TokenCookieKey, Value: "ghi"})
			},
			expected: "ghi",
		},
		{
			name:   "query wins over cookie",
			target: "/ws?token=abc",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: TokenCookieKey, Value: "ghi"})
			},
			expected: "abc",
		},
		{
			name:     "no token",
			target:   "/ws",
			setup:    func(r *http.Request) {},
			expected: "",
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tc.target, nil)
			tc.setup(r)
			assert.Equal(t, tc.expected, TokenFromRequest(r))
		})
	}
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var secret = []byte("test-secret")

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(zap.NewNop()))
	admin := r.Group("/admin", AuthMiddleware(secret, zap.NewNop()))
	admin.GET("/who", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("subject"))
	})
	return r
}

func get(r http.Handler, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin/who", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware_AcceptsAdminToken(t *testing.T) {
	tok, err := IssueAdminToken(secret, "ops", time.Hour)
	require.NoError(t, err)

	w := get(newRouter(), "Bearer "+tok)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ops", w.Body.String())
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	r := newRouter()

	expired, err := IssueAdminToken(secret, "ops", -time.Minute)
	require.NoError(t, err)
	wrongKey, err := IssueAdminToken([]byte("other"), "ops", time.Hour)
	require.NoError(t, err)
	notAdmin, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{Role: "viewer"}).SignedString(secret)
	require.NoError(t, err)

	cases := []struct {
		name string
		auth string
		code int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"bad format", "Token abc", http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong key", "Bearer " + wrongKey, http.StatusUnauthorized},
		{"not admin", "Bearer " + notAdmin, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.code, get(r, tc.auth).Code)
		})
	}
}

func TestRequestID_ReusesIncomingHeader(t *testing.T) {
	r := newRouter()
	req := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestIssueAdminToken_RequiresSecret(t *testing.T) {
	_, err := IssueAdminToken(nil, "ops", time.Hour)
	assert.Error(t, err)
}

func TestPassword_HashAndVerify(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.Contains(t, hash, "$argon2id$v=19$m=65536,t=1,p=4$")

	ok, err := VerifyPassword(hash, "hunter2")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword(hash, "hunter3")
	require.NoError(t, err)
	assert.False(t, ok)

	other, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, hash, other)
}

func TestPassword_RejectsMalformedHash(t *testing.T) {
	_, err := HashPassword("")
	assert.Error(t, err)

	for _, bad := range []string{"", "plain", "$bcrypt$v=19$m=1,t=1,p=1$aa$bb", "$argon2id$v=1$m=1,t=1,p=1$aa$bb"} {
		_, err := VerifyPassword(bad, "x")
		assert.ErrorIs(t, err, ErrInvalidHash, bad)
	}
}

package auth

import (
	"net/http"
	"net/http/httptest"
	"peer-chat/domain/chat"
	"peer-chat/errors"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestTokens_RoundTrip(t *testing.T) {
	req := require.New(t)
	tokens := NewTokens("a-long-enough-test-secret", time.Hour)

	token, err := tokens.GenerateToken("alice", "member")
	req.NoError(err)

	claims, err := tokens.ValidateToken(token)
	req.NoError(err)
	req.Equal("alice", claims.UserID)
	req.Equal([]string{"member"}, claims.Roles)
}

func TestTokens_Rejections(t *testing.T) {
	tokens := NewTokens("a-long-enough-test-secret", time.Hour)
	expired, err := NewTokens("a-long-enough-test-secret", -time.Minute).GenerateToken("alice")
	require.NoError(t, err)
	forged, err := NewTokens("another-secret", time.Hour).GenerateToken("alice")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"expired token", expired},
		{"signed with another secret", forged},
		{"garbage", "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tokens.ValidateToken(tt.token)
			require.ErrorIs(t, err, errors.ErrUnauthenticated)
		})
	}
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := NewTokens("a-long-enough-test-secret", time.Hour)
	router := gin.New()
	router.GET("/me", Middleware(tokens), func(c *gin.Context) {
		c.String(http.StatusOK, string(CallerID(c)))
	})
	token, err := tokens.GenerateToken("alice")
	require.NoError(t, err)

	t.Run("should resolve the caller from the bearer header", func(t *testing.T) {
		req := require.New(t)
		r := httptest.NewRequest(http.MethodGet, "/me", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)
		req.Equal(http.StatusOK, w.Code)
		req.Equal("alice", w.Body.String())
	})

	t.Run("should resolve the caller from the query string", func(t *testing.T) {
		req := require.New(t)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me?token="+token, nil))
		req.Equal(http.StatusOK, w.Code)
		req.Equal(chat.UserID("alice"), chat.UserID(w.Body.String()))
	})

	t.Run("should reject a missing token", func(t *testing.T) {
		req := require.New(t)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
		req.Equal(http.StatusUnauthorized, w.Code)
		req.Contains(w.Body.String(), "Unauthenticated")
	})
}

func TestRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := NewTokens("a-long-enough-test-secret", time.Hour)
	router := gin.New()
	router.GET("/debug", Middleware(tokens), RequireRole(OperatorRole), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	tests := []struct {
		name  string
		roles []string
		want  int
	}{
		{name: "should refuse a caller without roles", want: http.StatusForbidden},
		{name: "should refuse another role", roles: []string{"member"}, want: http.StatusForbidden},
		{name: "should let an operator in", roles: []string{"member", OperatorRole}, want: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := tokens.GenerateToken("alice", tt.roles...)
			require.NoError(t, err)
			r := httptest.NewRequest(http.MethodGet, "/debug", nil)
			r.Header.Set("Authorization", "Bearer "+token)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, r)
			require.Equal(t, tt.want, w.Code)
		})
	}
}

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-signing-secret"

func TestIssueAndParseToken(t *testing.T) {
	theAuth := New([]byte(testSecret), 24*time.Hour)

	tokenString, err := theAuth.IssueToken("user-1", "a@x.com")
	require.NoError(t, err)
	require.NotEmpty(t, tokenString)

	claims, err := theAuth.ParseToken(tokenString)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "a@x.com", claims.Email)
}

func TestParseTokenFailures(t *testing.T) {
	theAuth := New([]byte(testSecret), 24*time.Hour)

	t.Run("malformed", func(t *testing.T) {
		_, err := theAuth.ParseToken("definitely not a JWT")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		otherAuth := New([]byte("some other secret"), 24*time.Hour)
		tokenString, err := otherAuth.IssueToken("user-1", "a@x.com")
		require.NoError(t, err)

		_, err = theAuth.ParseToken(tokenString)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		expiredAuth := New([]byte(testSecret), -time.Minute)
		tokenString, err := expiredAuth.IssueToken("user-1", "a@x.com")
		require.NoError(t, err)

		_, err = theAuth.ParseToken(tokenString)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestAuthenticateMiddleware(t *testing.T) {
	theAuth := New([]byte(testSecret), 24*time.Hour)

	var seenUserID string
	handler := theAuth.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserIDFromContext(r.Context())
		require.True(t, ok)
		seenUserID = userID
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("no header", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
		assert.Contains(t, recorder.Body.String(), "no token provided")
	})

	t.Run("not a bearer scheme", func(t *testing.T) {
		request := httptest.NewRequest(http.MethodGet, "/", nil)
		request.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		request := httptest.NewRequest(http.MethodGet, "/", nil)
		request.Header.Set("Authorization", "Bearer garbage")
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
		assert.Contains(t, recorder.Body.String(), "invalid or expired token")
	})

	t.Run("valid token", func(t *testing.T) {
		tokenString, err := theAuth.IssueToken("user-42", "a@x.com")
		require.NoError(t, err)

		request := httptest.NewRequest(http.MethodGet, "/", nil)
		request.Header.Set("Authorization", "Bearer "+tokenString)
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)
		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Equal(t, "user-42", seenUserID)
	})
}

// Package auth provides JWT issuance, verification, and the HTTP
// middleware that guards authenticated routes. Tokens are presented as
// bearer credentials in the Authorization header.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/mbelenkov/shrink/internal/models"
)

// ErrInvalidToken is returned when a token fails signature, format, or
// expiry checks.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the JWT claim set used by the service. It embeds the
// standard registered claims and adds the user identity.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

// ContextKey is a custom type for storing values in context to avoid collisions.
type ContextKey string

// UserIDKey is the context key used to store and retrieve the authenticated user's ID.
const UserIDKey ContextKey = "userID"

// Auth issues and verifies tokens and authenticates incoming requests.
type Auth struct {
	signingSecretKey []byte
	tokenTTL         time.Duration
}

// New creates an Auth handler with the given HMAC signing secret and
// token lifetime.
func New(signingSecretKey []byte, tokenTTL time.Duration) *Auth {
	return &Auth{
		signingSecretKey: signingSecretKey,
		tokenTTL:         tokenTTL,
	}
}

// IssueToken signs a time-limited token carrying the user ID and email.
func (a *Auth) IssueToken(userID, email string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenTTL)),
		},
		UserID: userID,
		Email:  email,
	})

	tokenString, err := token.SignedString(a.signingSecretKey)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}

	return tokenString, nil
}

// ParseToken verifies the signature and expiry of a token string and
// returns its claims.
func (a *Auth) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return a.signingSecretKey, nil
		},
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// Authenticate is an HTTP middleware that extracts a bearer token from
// the Authorization header, verifies it, and stores the user ID in the
// request context. Requests without a valid token are rejected with 401.
func (a *Auth) Authenticate(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		authHeader := request.Header.Get("Authorization")
		tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found || tokenString == "" {
			writeUnauthorized(response, "no token provided")

			return
		}

		claims, err := a.ParseToken(tokenString)
		if err != nil {
			writeUnauthorized(response, "invalid or expired token")

			return
		}

		ctx := context.WithValue(request.Context(), UserIDKey, claims.UserID)
		h.ServeHTTP(response, request.WithContext(ctx))
	}

	return http.HandlerFunc(middleware)
}

// UserIDFromContext extracts the authenticated user ID stored by the
// Authenticate middleware.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)

	return userID, ok && userID != ""
}

func writeUnauthorized(response http.ResponseWriter, message string) {
	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(response).Encode(models.ErrorResponse{Message: message})
}

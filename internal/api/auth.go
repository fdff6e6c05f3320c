package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey struct{ name string }

var userContextKey = contextKey{"user"}

// Authenticator issues and verifies the bearer tokens protecting the review
// surface. A single admin credential pair is supported.
type Authenticator struct {
	secret        []byte
	adminUser     string
	adminPassword string
	tokenTTL      time.Duration
	nowFunc       func() time.Time
}

// NewAuthenticator builds an authenticator with a 24h token lifetime.
func NewAuthenticator(secret, adminUser, adminPassword string) *Authenticator {
	return &Authenticator{
		secret:        []byte(secret),
		adminUser:     adminUser,
		adminPassword: adminPassword,
		tokenTTL:      24 * time.Hour,
		nowFunc:       time.Now,
	}
}

// Login verifies the credentials and returns a signed HS256 token.
func (a *Authenticator) Login(username, password string) (string, error) {
	if username != a.adminUser || password != a.adminPassword {
		return "", fmt.Errorf("invalid credentials")
	}

	now := a.nowFunc()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify parses the token and returns its subject.
func (a *Authenticator) Verify(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", t.Method.Alg())
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.nowFunc))
	if err != nil {
		return "", err
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", fmt.Errorf("missing subject")
	}
	return claims.Subject, nil
}

// middleware rejects requests without a valid bearer token and stores the
// authenticated user on the request context.
func (a *Authenticator) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			respondWithError(w, http.StatusUnauthorized, "Missing bearer token")
			return
		}

		user, err := a.Verify(token)
		if err != nil {
			respondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// userFromContext returns the authenticated user set by the middleware.
func userFromContext(ctx context.Context) string {
	user, _ := ctx.Value(userContextKey).(string)
	return user
}

package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNoToken      = errors.New("no admin token configured")
	ErrInvalidToken = errors.New("invalid API token")
)

// Claims identifies the caller of an authenticated request.
type Claims struct {
	Subject string
}

const claimsContextKey = "auth_claims"

// Authenticator checks API tokens against a bcrypt hash of the admin token.
type Authenticator struct {
	hash []byte

	mu       sync.Mutex
	verified [sha256.Size]byte
	cached   bool
}

// NewAuthenticator accepts an empty hash, in which case every token is
// rejected.
func NewAuthenticator(adminTokenHash string) (*Authenticator, error) {
	hash := []byte(strings.TrimSpace(adminTokenHash))
	if len(hash) > 0 {
		if _, err := bcrypt.Cost(hash); err != nil {
			return nil, fmt.Errorf("parse admin token hash: %w", err)
		}
	}
	return &Authenticator{hash: hash}, nil
}

func (a *Authenticator) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := extractToken(c.Request())
		if token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing API token")
		}

		claims, err := a.Authenticate(c.Request().Context(), token)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid API token")
		}
		c.Set(claimsContextKey, claims)

		return next(c)
	}
}

// Authenticate verifies token. The digest of the last accepted token is
// kept so repeated requests skip bcrypt.
func (a *Authenticator) Authenticate(_ context.Context, token string) (Claims, error) {
	if len(a.hash) == 0 {
		return Claims{}, ErrNoToken
	}
	digest := sha256.Sum256([]byte(token))

	a.mu.Lock()
	hit := a.cached && subtle.ConstantTimeCompare(a.verified[:], digest[:]) == 1
	a.mu.Unlock()
	if !hit {
		if err := bcrypt.CompareHashAndPassword(a.hash, []byte(token)); err != nil {
			return Claims{}, ErrInvalidToken
		}
		a.mu.Lock()
		a.verified, a.cached = digest, true
		a.mu.Unlock()
	}
	return Claims{Subject: "admin"}, nil
}

// GetClaims returns the claims Middleware stored on c.
func GetClaims(c echo.Context) (Claims, bool) {
	raw := c.Get(claimsContextKey)
	if raw == nil {
		return Claims{}, false
	}
	claims, ok := raw.(Claims)
	return claims, ok
}

func extractToken(r *http.Request) string {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	return strings.TrimSpace(r.Header.Get("X-API-Token"))
}

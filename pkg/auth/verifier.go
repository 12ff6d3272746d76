// Package auth verifies Supabase access tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"agribid-backend/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims are the GoTrue access-token claims the API relies on.
type Claims struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Identity converts the claims into the auth-service identity.
func (c *Claims) Identity() domain.Identity {
	identity := domain.Identity{ID: c.Subject, Email: c.Email, Phone: c.Phone}
	if c.IssuedAt != nil {
		identity.CreatedAt = c.IssuedAt.Time
	}
	return identity
}

// Verifier accepts HS256 tokens signed with the project JWT secret and RS256
// tokens signed by a key in the project's JWKS.
type Verifier struct {
	secret []byte
	jwks   *Provider
	leeway time.Duration
}

// NewVerifier returns a verifier. Either secret or jwks may be empty; tokens
// of the unconfigured algorithm are rejected.
func NewVerifier(secret string, jwks *Provider) *Verifier {
	return &Verifier{secret: []byte(secret), jwks: jwks, leeway: 30 * time.Second}
}

func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.keyFunc,
		jwt.WithValidMethods([]string{"HS256", "RS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (v *Verifier) keyFunc(token *jwt.Token) (any, error) {
	switch token.Method.(type) {
	case *jwt.SigningMethodHMAC:
		if len(v.secret) == 0 {
			return nil, errors.New("HS256 token received but SUPABASE_JWT_SECRET is not configured")
		}
		return v.secret, nil
	case *jwt.SigningMethodRSA:
		if v.jwks == nil {
			return nil, errors.New("RS256 token received but no JWKS is configured")
		}
		return v.jwks.KeyFunc(token)
	}
	return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
}

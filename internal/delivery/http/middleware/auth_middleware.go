package middleware

import (
	"context"
	"net/http"
	"strings"

	"agribid-backend/internal/delivery/http/response"
	"agribid-backend/internal/domain"
	"agribid-backend/pkg/auth"
	"agribid-backend/pkg/logger"
	"agribid-backend/pkg/security"

	"github.com/gin-gonic/gin"
)

// TokenVerifier validates an access token issued by the auth service.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// AuthMiddleware requires a valid bearer token and resolves the caller into a
// domain user. The token is also placed on the request context so profile
// reads made on the caller's behalf carry it.
func AuthMiddleware(verifier TokenVerifier, projector domain.UserProjector, secLogger *security.SecurityLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			response.Error(c, http.StatusUnauthorized, "Authorization header required", nil)
			c.Abort()
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			logger.Log.Debug("Token validation failed", "error", err)
			secLogger.Log(c.Request.Context(), security.SecurityEvent{
				Event:     security.EventUnauthorizedAccess,
				IP:        c.ClientIP(),
				UserAgent: c.GetHeader("User-Agent"),
				RequestID: requestID(c),
				Details:   map[string]any{"path": c.FullPath()},
			})
			response.Error(c, http.StatusUnauthorized, "Invalid token", nil)
			c.Abort()
			return
		}

		if !authenticate(c, token, claims, projector) {
			response.Error(c, http.StatusBadGateway, "Unable to load user profile", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

// OptionalAuth resolves the caller when a valid token is present and lets
// anonymous or invalid requests through unauthenticated.
func OptionalAuth(verifier TokenVerifier, projector domain.UserProjector) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			if claims, err := verifier.Verify(token); err == nil {
				authenticate(c, token, claims, projector)
			}
		}
		c.Next()
	}
}

func authenticate(c *gin.Context, token string, claims *auth.Claims, projector domain.UserProjector) bool {
	identity := claims.Identity()
	ctx := context.WithValue(c.Request.Context(), domain.KeyAccessToken, token)
	c.Request = c.Request.WithContext(ctx)

	user, err := projector.ResolveUser(ctx, identity)
	if err != nil {
		logger.Log.Error("Failed to resolve user", "user_id", identity.ID, "error", err, "request_id", requestID(c))
		return false
	}

	c.Set(string(domain.KeyUserID), identity.ID)
	c.Set(string(domain.KeyUserEmail), identity.Email)
	c.Set(string(domain.KeyUserType), user.UserType)
	c.Set(string(domain.KeyAccessToken), token)
	c.Set(string(domain.KeyIdentity), identity)
	c.Set(string(domain.KeyUser), user)
	return true
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// CurrentUser returns the user resolved by AuthMiddleware or OptionalAuth.
func CurrentUser(c *gin.Context) (*domain.User, bool) {
	v, ok := c.Get(string(domain.KeyUser))
	if !ok {
		return nil, false
	}
	user, ok := v.(*domain.User)
	return user, ok && user != nil
}

func CurrentIdentity(c *gin.Context) (domain.Identity, bool) {
	v, ok := c.Get(string(domain.KeyIdentity))
	if !ok {
		return domain.Identity{}, false
	}
	identity, ok := v.(domain.Identity)
	return identity, ok
}

package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Domenick1991/airport-booking/internal/policy"
)

const identityKey = "identity"

// Authenticator turns a bearer token into an identity.
type Authenticator interface {
	Parse(token string) (policy.Identity, error)
}

// IdentityResolver loads the current role of a token's subject.
type IdentityResolver interface {
	Identity(ctx context.Context, userID uuid.UUID) (policy.Identity, error)
}

// RequireAuth rejects requests without a valid bearer token and stores the identity on the context.
// With a resolver the role comes from the user store rather than the token.
func RequireAuth(tokens Authenticator, users IdentityResolver, logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, envelope{Success: false, Message: "Not authorized, no token"})
			return
		}
		identity, err := tokens.Parse(strings.TrimSpace(token))
		if err != nil {
			writeError(c, logger, err)
			return
		}
		if users != nil {
			identity, err = users.Identity(c.Request.Context(), identity.UserID)
			if err != nil {
				writeError(c, logger, err)
				return
			}
		}
		c.Set(identityKey, identity)
		c.Next()
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := identityFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, envelope{Success: false, Message: "Not authorized, no token"})
			return
		}
		if err := policy.RequireAdmin(identity); err != nil {
			writeError(c, logger, err)
			return
		}
		c.Next()
	}
}

func identityFrom(c *gin.Context) (policy.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return policy.Identity{}, false
	}
	identity, ok := v.(policy.Identity)
	return identity, ok
}

// RequestLogger writes one structured line per request.
func RequestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"latency":   time.Since(start).String(),
			"client_ip": c.ClientIP(),
		})
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("request")
		case status >= http.StatusBadRequest:
			entry.Warn("request")
		default:
			entry.Info("request")
		}
	}
}

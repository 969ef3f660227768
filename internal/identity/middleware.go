package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"design-desk/request-portal/request-portal-backend/internal/apierrors"
)

const actorKey = "identity.actor"

// RoleResolver looks up the roles of a user.
type RoleResolver interface {
	ResolveRoles(ctx context.Context, userID uuid.UUID) ([]Role, error)
}

// AuthConfig controls how callers are identified.
type AuthConfig struct {
	JWTSecret string
	// AllowUserHeader accepts a bare X-User-ID header. Development only.
	AllowUserHeader bool
}

// Authenticate resolves the caller into an Actor and stores it on the context.
// Requests without a usable identity are rejected with 401.
func Authenticate(cfg AuthConfig, roles RoleResolver, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := callerID(c, cfg)
		if err != nil {
			logger.Debug("Rejected unauthenticated request", zap.Error(err), zap.String("path", c.FullPath()))
			apierrors.Respond(c, logger, apierrors.Unauthorized(err.Error()))
			c.Abort()
			return
		}

		resolved, err := roles.ResolveRoles(c.Request.Context(), userID)
		if err != nil {
			logger.Error("Failed to resolve roles", zap.Error(err), zap.String("user_id", userID.String()))
			apierrors.Respond(c, logger, err)
			c.Abort()
			return
		}

		c.Set(actorKey, Actor{ID: userID, Roles: resolved})
		c.Next()
	}
}

// RequireRole rejects actors lacking role with 403. Must run after Authenticate.
func RequireRole(role Role, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			apierrors.Respond(c, logger, apierrors.Unauthorized("authentication required"))
			c.Abort()
			return
		}
		if !actor.HasRole(role) {
			apierrors.Respond(c, logger, apierrors.Forbidden(fmt.Sprintf("role %s required", role)))
			c.Abort()
			return
		}
		c.Next()
	}
}

// ActorFrom returns the actor stored by Authenticate.
func ActorFrom(c *gin.Context) (Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return Actor{}, false
	}
	actor, ok := v.(Actor)
	return actor, ok
}

func callerID(c *gin.Context, cfg AuthConfig) (uuid.UUID, error) {
	if header := c.GetHeader("Authorization"); header != "" {
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found {
			return uuid.Nil, fmt.Errorf("authorization header must use the Bearer scheme")
		}
		return ParseToken(token, cfg.JWTSecret)
	}
	if cfg.AllowUserHeader {
		if raw := c.GetHeader("X-User-ID"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				return uuid.Nil, fmt.Errorf("invalid X-User-ID header")
			}
			return id, nil
		}
	}
	// websocket clients cannot set headers from the browser
	if raw := c.Query("token"); raw != "" {
		return ParseToken(raw, cfg.JWTSecret)
	}
	return uuid.Nil, fmt.Errorf("missing credentials")
}

// ParseToken validates an HS256 token and returns its subject as a user id.
func ParseToken(tokenString, secret string) (uuid.UUID, error) {
	if secret == "" {
		return uuid.Nil, fmt.Errorf("token authentication is not configured")
	}
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return uuid.Nil, fmt.Errorf("invalid token claims")
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid subject in token")
	}
	return id, nil
}

// IssueToken signs a token for userID. Used by tooling and tests.
func IssueToken(userID uuid.UUID, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

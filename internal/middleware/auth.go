package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/weiwangfds/datashare/internal/database"
	apperrors "github.com/weiwangfds/datashare/internal/errors"
	"github.com/weiwangfds/datashare/internal/logger"
	"github.com/weiwangfds/datashare/internal/response"
)

// principalKey gin context key holding the authenticated *database.User
const principalKey = "principal"

// Claims token payload issued by the identity service
type Claims struct {
	ID   string `json:"id"`
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// UserLookup resolves token subjects to accounts
type UserLookup interface {
	Get(ctx context.Context, id string) (*database.User, error)
}

// Auth bearer token authentication
type Auth struct {
	secret []byte
	users  UserLookup
}

// NewAuth builds the middleware; secret is the shared HS256 key
func NewAuth(secret string, users UserLookup) *Auth {
	return &Auth{secret: []byte(secret), users: users}
}

// Protect rejects requests without a valid bearer token for an existing user
func (a *Auth) Protect() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			response.Abort(c, apperrors.ErrUnauthorized)
			return
		}

		claims, err := a.parse(token)
		if err != nil {
			logger.WithField("trace_id", c.GetString("trace_id")).Debugf("rejected token: %v", err)
			response.Abort(c, apperrors.ErrUnauthorized)
			return
		}

		user, err := a.users.Get(c.Request.Context(), claims.ID)
		if err != nil {
			if apperrors.HasCode(err, apperrors.ErrNotFound) {
				response.Abort(c, apperrors.ErrUnauthorized)
				return
			}
			response.Error(c, err)
			return
		}

		c.Set(principalKey, user)
		c.Next()
	}
}

// AdminOnly must run after Protect
func (a *Auth) AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CurrentUser(c).IsAdmin() {
			response.Abort(c, apperrors.ErrForbidden)
			return
		}
		c.Next()
	}
}

// IssueToken signs a token for user, used by tooling and tests
func (a *Auth) IssueToken(user *database.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		ID:   user.ID,
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *Auth) parse(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if claims.ID == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// CurrentUser returns the authenticated user, nil on unprotected routes
func CurrentUser(c *gin.Context) *database.User {
	if v, ok := c.Get(principalKey); ok {
		if u, ok := v.(*database.User); ok {
			return u
		}
	}
	return nil
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

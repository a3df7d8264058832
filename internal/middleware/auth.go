package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"hokenhub/internal/model"
	"hokenhub/internal/repository"
	"hokenhub/internal/service"
	"hokenhub/internal/token"
	"hokenhub/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	callerKey = "caller"

	// RefreshCookie carries the refresh token; it is never readable by scripts
	RefreshCookie = "refreshToken"
	refreshMaxAge = 7 * 24 * 60 * 60
)

// UserLookup is the slice of the credential store the guard needs
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// AuthGuard authenticates bearer access tokens and enforces role and facility predicates
type AuthGuard struct {
	tokens *token.Service
	users  UserLookup
	log    *logrus.Logger
}

func NewAuthGuard(tokens *token.Service, users UserLookup, log *logrus.Logger) *AuthGuard {
	return &AuthGuard{tokens: tokens, users: users, log: log}
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, response.Error(status, message))
}

// Authenticate verifies the access token and loads the live user record.
// Role and facility access come from the store; the active facility is
// trusted from the signed token.
func (g *AuthGuard) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abort(c, http.StatusUnauthorized, "Not authorized, no token")
			return
		}

		claims, err := g.tokens.Verify(raw, token.Access)
		if err != nil {
			if errors.Is(err, token.ErrTokenExpired) {
				abort(c, http.StatusUnauthorized, "Token expired")
				return
			}
			abort(c, http.StatusUnauthorized, "Not authorized, token failed")
			return
		}

		user, err := g.users.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				abort(c, http.StatusUnauthorized, "Not authorized, user not found")
				return
			}
			g.log.WithError(err).Error("auth guard: load user")
			abort(c, http.StatusInternalServerError, "Internal server error")
			return
		}

		c.Set(callerKey, service.Caller{
			ID:             user.ID.String(),
			Email:          user.Email,
			Role:           user.Role,
			FacilityAccess: append([]string{}, user.FacilityAccess...),
			ActiveFacility: claims.ActiveFacility,
		})
		c.Next()
	}
}

// RequireRole must run after Authenticate
func (g *AuthGuard) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := CallerFrom(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "Not authorized")
			return
		}
		for _, role := range roles {
			if caller.Role == role {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, "Access denied")
	}
}

// RequireActiveFacility rejects sessions whose active facility is missing or
// no longer granted
func (g *AuthGuard) RequireActiveFacility() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := CallerFrom(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "Not authorized")
			return
		}
		if !caller.HasActiveFacility() {
			abort(c, http.StatusForbidden, "Unauthorized or missing facility access.")
			return
		}
		c.Next()
	}
}

// CallerFrom returns the identity attached by Authenticate
func CallerFrom(c *gin.Context) (service.Caller, bool) {
	v, ok := c.Get(callerKey)
	if !ok {
		return service.Caller{}, false
	}
	caller, ok := v.(service.Caller)
	return caller, ok
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// CookieConfig holds the attributes shared by setting and clearing the refresh cookie
type CookieConfig struct {
	Secure bool
}

// SetRefreshCookie stores the refresh token as an HTTP-only strict cookie
func (cc CookieConfig) SetRefreshCookie(c *gin.Context, refreshToken string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(RefreshCookie, refreshToken, refreshMaxAge, "/", "", cc.Secure, true)
}

// ClearRefreshCookie expires the refresh cookie with the attributes it was set with
func (cc CookieConfig) ClearRefreshCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(RefreshCookie, "", -1, "/", "", cc.Secure, true)
}

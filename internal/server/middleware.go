package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/givebox/internal/audit/domain"
	"github.com/smallbiznis/givebox/internal/auth"
	"github.com/smallbiznis/givebox/internal/authorization"
	obscontext "github.com/smallbiznis/givebox/internal/observability/context"
	"github.com/smallbiznis/givebox/internal/observability/logger"
	userdomain "github.com/smallbiznis/givebox/internal/user/domain"
	"go.uber.org/zap"
)

const (
	contextUserIDKey    = "user_id"
	contextSessionIDKey = "session_id"
)

// TokenVerifier validates bearer session tokens.
type TokenVerifier interface {
	Verify(raw string) (auth.Principal, error)
}

// AuthRequired accepts only requests carrying a valid bearer session token.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := auth.BearerToken(c.GetHeader("Authorization"))
		if strings.TrimSpace(raw) == "" {
			logger.AuthEvent(logger.FromContext(c.Request.Context()), "missing bearer token",
				zap.String("path", c.Request.URL.Path),
			)
			AbortWithError(c, ErrUnauthorized)
			return
		}

		principal, err := s.verifier.Verify(raw)
		if err != nil {
			logger.AuthEvent(logger.FromContext(c.Request.Context()), "session token rejected",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(contextUserIDKey, principal.UserID)
		c.Set(contextSessionIDKey, principal.SessionID)
		ctx := obscontext.WithActor(c.Request.Context(), string(auditdomain.ActorTypeUser), principal.UserID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// currentUser loads the authenticated caller's user row.
func (s *Server) currentUser(c *gin.Context) (*userdomain.User, error) {
	userID := strings.TrimSpace(c.GetString(contextUserIDKey))
	if userID == "" {
		return nil, ErrUnauthorized
	}
	user, err := s.userSvc.GetByID(c.Request.Context(), userID)
	if err != nil {
		return nil, err
	}
	if user.HasOrganization() {
		ctx := obscontext.WithOrgID(c.Request.Context(), *user.OrganizationID)
		c.Request = c.Request.WithContext(ctx)
	}
	return user, nil
}

// organizationOf returns the caller's organization id.
func organizationOf(user *userdomain.User) (string, error) {
	if !user.HasOrganization() {
		return "", notFound("Organization not found")
	}
	return *user.OrganizationID, nil
}

// canAccessOrganization is the resource check shared by organization scoped
// routes: members of the organization and super admins pass.
func canAccessOrganization(user *userdomain.User, orgID string) bool {
	return user.Role == userdomain.RoleSuperAdmin || user.BelongsTo(orgID)
}

// authorize checks a role capability for the caller.
func (s *Server) authorize(c *gin.Context, user *userdomain.User, capability authorization.Capability) error {
	return s.authzSvc.Authorize(c.Request.Context(), user.Role, capability)
}

package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/givebox/internal/authorization"
	"github.com/smallbiznis/givebox/internal/observability/logger"
	orgdomain "github.com/smallbiznis/givebox/internal/organization/domain"
	"go.uber.org/zap"
)

type connectRequest struct {
	OrganizationID string `json:"organizationId" validate:"required,uuid"`
	Email          string `json:"email" validate:"omitempty,email"`
}

type connectStatusQuery struct {
	OrganizationID string `form:"organizationId" validate:"required,uuid"`
}

func (s *Server) ConnectStripeAccount(c *gin.Context) {
	var req connectRequest
	if err := BindBody(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	org, err := s.connectableOrganization(c, req.OrganizationID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	email := strings.TrimSpace(req.Email)
	res, err := s.connectSvc.ConnectOrganization(c.Request.Context(), org, email)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	logger.AuditEvent(logger.FromContext(c.Request.Context()), "connect", "stripe_account",
		zap.String("organization_id", org.ID),
		zap.String("stripe_account_id", res.AccountID),
	)
	Success(c, http.StatusOK, res, "Stripe account created successfully")
}

func (s *Server) StripeConnectStatus(c *gin.Context) {
	var query connectStatusQuery
	if err := BindQuery(c, &query); err != nil {
		AbortWithError(c, err)
		return
	}

	org, err := s.connectableOrganization(c, query.OrganizationID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status, err := s.connectSvc.SyncOnboarding(c.Request.Context(), org)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	Success(c, http.StatusOK, status, "")
}

func (s *Server) StripeDashboardLink(c *gin.Context) {
	var req connectRequest
	if err := BindBody(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	org, err := s.connectableOrganization(c, req.OrganizationID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	url, err := s.connectSvc.DashboardLink(c.Request.Context(), org)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	Success(c, http.StatusOK, gin.H{"url": url}, "")
}

// connectableOrganization loads orgID when the caller belongs to it (or is a
// super admin) and may manage payments.
func (s *Server) connectableOrganization(c *gin.Context, orgID string) (*orgdomain.Organization, error) {
	user, err := s.currentUser(c)
	if err != nil {
		return nil, err
	}
	if !canAccessOrganization(user, orgID) {
		return nil, forbidden("Access denied to this organization")
	}
	if err := s.authorize(c, user, authorization.PaymentsManage); err != nil {
		return nil, err
	}
	return s.orgSvc.GetByID(c.Request.Context(), orgID)
}

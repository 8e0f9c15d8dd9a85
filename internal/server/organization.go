package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/givebox/internal/authorization"
	obscontext "github.com/smallbiznis/givebox/internal/observability/context"
	"github.com/smallbiznis/givebox/internal/observability/logger"
	orgdomain "github.com/smallbiznis/givebox/internal/organization/domain"
	userdomain "github.com/smallbiznis/givebox/internal/user/domain"
	"go.uber.org/zap"
)

type orgAccess int

const (
	orgAccessRead orgAccess = iota
	orgAccessUpdate
	orgAccessOwner
)

type createOrganizationRequest struct {
	Name              string `json:"name" validate:"required,min=1,max=255"`
	LegalName         string `json:"legal_name" validate:"omitempty,max=255"`
	DisplayName       string `json:"display_name" validate:"omitempty,max=255"`
	Email             string `json:"email" validate:"omitempty,email"`
	Website           string `json:"website" validate:"omitempty,url"`
	Description       string `json:"description" validate:"omitempty,max=2000"`
	Phone             string `json:"phone" validate:"omitempty,max=50"`
	Address           string `json:"address" validate:"omitempty,max=500"`
	TermsOfServiceURL string `json:"terms_of_service_url" validate:"omitempty,url"`
	PrivacyPolicyURL  string `json:"privacy_policy_url" validate:"omitempty,url"`
}

type updateOrganizationRequest struct {
	Name              *string `json:"name" validate:"omitempty,min=1,max=255"`
	LegalName         *string `json:"legal_name" validate:"omitempty,max=255"`
	DisplayName       *string `json:"display_name" validate:"omitempty,max=255"`
	Email             *string `json:"email" validate:"omitempty,email"`
	Website           *string `json:"website" validate:"omitempty,url"`
	Description       *string `json:"description" validate:"omitempty,max=2000"`
	LogoURL           *string `json:"logo_url" validate:"omitempty,url"`
	Phone             *string `json:"phone" validate:"omitempty,max=50"`
	Address           *string `json:"address" validate:"omitempty,max=500"`
	TermsOfServiceURL *string `json:"terms_of_service_url" validate:"omitempty,url"`
	PrivacyPolicyURL  *string `json:"privacy_policy_url" validate:"omitempty,url"`
}

type onboardingRequest struct {
	DisplayName       string `json:"display_name" validate:"required,min=1,max=255"`
	LegalName         string `json:"legal_name" validate:"omitempty,max=255"`
	Email             string `json:"email" validate:"required,email"`
	TermsOfServiceURL string `json:"terms_of_service_url" validate:"omitempty,url"`
}

func (s *Server) ListOrganizations(c *gin.Context) {
	user, err := s.currentUser(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if user.Role != userdomain.RoleSuperAdmin {
		AbortWithError(c, forbidden("Super admin access required"))
		return
	}

	var query PageQuery
	if err := BindQuery(c, &query); err != nil {
		AbortWithError(c, err)
		return
	}

	res, err := s.orgSvc.List(c.Request.Context(), orgdomain.ListFilter{
		Pagination: query.Pagination,
		SortBy:     query.SortBy,
		SortOrder:  query.SortOrder,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	Success(c, http.StatusOK, res, "")
}

func (s *Server) CreateOrganization(c *gin.Context) {
	owner, _, err := s.sessionOwner(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req createOrganizationRequest
	if err := BindBody(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	org, err := s.orgSvc.Create(c.Request.Context(), owner, orgdomain.CreateRequest{
		Name:              req.Name,
		LegalName:         req.LegalName,
		DisplayName:       req.DisplayName,
		Email:             req.Email,
		Website:           req.Website,
		Description:       req.Description,
		Phone:             req.Phone,
		Address:           req.Address,
		TermsOfServiceURL: req.TermsOfServiceURL,
		PrivacyPolicyURL:  req.PrivacyPolicyURL,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	logger.AuditEvent(logger.FromContext(c.Request.Context()), "create", "organization",
		zap.String("organization_id", org.ID),
	)
	Success(c, http.StatusCreated, org, "Organization created successfully")
}

func (s *Server) GetOrganization(c *gin.Context) {
	org, err := s.loadOwnedOrganization(c, orgAccessRead)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	Success(c, http.StatusOK, org, "")
}

func (s *Server) UpdateOrganization(c *gin.Context) {
	org, err := s.loadOwnedOrganization(c, orgAccessUpdate)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req updateOrganizationRequest
	if err := BindBody(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	updated, err := s.orgSvc.Update(c.Request.Context(), org.ID, orgdomain.UpdateRequest{
		Name:              req.Name,
		LegalName:         req.LegalName,
		DisplayName:       req.DisplayName,
		Email:             req.Email,
		Website:           req.Website,
		Description:       req.Description,
		LogoURL:           req.LogoURL,
		Phone:             req.Phone,
		Address:           req.Address,
		TermsOfServiceURL: req.TermsOfServiceURL,
		PrivacyPolicyURL:  req.PrivacyPolicyURL,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	Success(c, http.StatusOK, updated, "Organization updated successfully")
}

func (s *Server) DeleteOrganization(c *gin.Context) {
	org, err := s.loadOwnedOrganization(c, orgAccessOwner)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.orgSvc.Delete(c.Request.Context(), org.ID); err != nil {
		AbortWithError(c, err)
		return
	}
	logger.AuditEvent(logger.FromContext(c.Request.Context()), "delete", "organization",
		zap.String("organization_id", org.ID),
	)
	Success(c, http.StatusOK, gin.H{"id": org.ID}, "Organization deleted successfully")
}

// Onboard creates the caller's organization on first sign in.
func (s *Server) Onboard(c *gin.Context) {
	owner, user, err := s.sessionOwner(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if user != nil && user.HasOrganization() {
		AbortWithError(c, orgdomain.ErrAlreadyOnboarded)
		return
	}

	var req onboardingRequest
	if err := BindBody(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	org, err := s.orgSvc.Onboard(c.Request.Context(), owner, orgdomain.OnboardingRequest{
		DisplayName:       req.DisplayName,
		LegalName:         req.LegalName,
		Email:             req.Email,
		TermsOfServiceURL: req.TermsOfServiceURL,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	Success(c, http.StatusCreated, org, "Organization created successfully")
}

func (s *Server) ListAuditLogs(c *gin.Context) {
	org, err := s.loadOwnedOrganization(c, orgAccessUpdate)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var query PageQuery
	if err := BindQuery(c, &query); err != nil {
		AbortWithError(c, err)
		return
	}

	res, err := s.auditSvc.List(c.Request.Context(), org.ID, query.Pagination)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	Success(c, http.StatusOK, res, "")
}

// sessionOwner resolves the caller as the owner of a new organization. A
// signed-in caller whose user row has not been synced yet is still accepted;
// the row is created together with the organization.
func (s *Server) sessionOwner(c *gin.Context) (orgdomain.Owner, *userdomain.User, error) {
	user, err := s.currentUser(c)
	switch {
	case err == nil:
		return orgdomain.Owner{UserID: user.ID, Email: user.Email}, user, nil
	case errors.Is(err, userdomain.ErrNotFound):
		return orgdomain.Owner{UserID: strings.TrimSpace(c.GetString(contextUserIDKey))}, nil, nil
	default:
		return orgdomain.Owner{}, nil, err
	}
}

// loadOwnedOrganization resolves :id and checks the caller's access to it.
// Members and super admins may read. Updates and deletion are reserved to
// the owner.
func (s *Server) loadOwnedOrganization(c *gin.Context, access orgAccess) (*orgdomain.Organization, error) {
	user, err := s.currentUser(c)
	if err != nil {
		return nil, err
	}

	var params IDParams
	if err := BindParams(c, &params); err != nil {
		return nil, err
	}

	org, err := s.orgSvc.GetByID(c.Request.Context(), params.ID)
	if err != nil {
		return nil, err
	}
	c.Request = c.Request.WithContext(obscontext.WithOrgID(c.Request.Context(), org.ID))

	if access == orgAccessRead {
		if user.Role == userdomain.RoleSuperAdmin || org.OwnerID == user.ID || user.BelongsTo(org.ID) {
			return org, nil
		}
		return nil, forbidden("Access denied to this organization")
	}
	if org.OwnerID != user.ID {
		return nil, forbidden("Only the organization owner can modify it")
	}
	if access == orgAccessUpdate {
		if err := s.authorize(c, user, authorization.OrganizationUpdate); err != nil {
			return nil, err
		}
	}
	return org, nil
}

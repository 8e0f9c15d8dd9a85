package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/givebox/internal/authorization"
	userdomain "github.com/smallbiznis/givebox/internal/user/domain"
)

type inviteRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,oneof=admin editor member viewer"`
}

func (s *Server) Me(c *gin.Context) {
	userID := c.GetString(contextUserIDKey)
	profile, err := s.userSvc.Me(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	Success(c, http.StatusOK, profile, "")
}

func (s *Server) ListTeam(c *gin.Context) {
	user, err := s.currentUser(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	orgID, err := organizationOf(user)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	members, err := s.userSvc.ListTeam(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	Success(c, http.StatusOK, members, "")
}

func (s *Server) InviteMember(c *gin.Context) {
	user, err := s.currentUser(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	orgID, err := organizationOf(user)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.authorize(c, user, authorization.TeamInvite); err != nil {
		AbortWithError(c, err)
		return
	}

	var req inviteRequest
	if err := BindBody(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	invited, err := s.userSvc.Invite(c.Request.Context(), orgID, userdomain.InviteRequest{
		InvitedBy: user.ID,
		Email:     req.Email,
		Role:      userdomain.Role(req.Role),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	Success(c, http.StatusCreated, invited, "Invitation sent successfully")
}

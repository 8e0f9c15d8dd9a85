package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/givebox/internal/authorization"
	userdomain "github.com/smallbiznis/givebox/internal/user/domain"
	widgetdomain "github.com/smallbiznis/givebox/internal/widget/domain"
)

type widgetRequest struct {
	Name        string         `json:"name" validate:"required,min=1,max=255"`
	Description string         `json:"description" validate:"omitempty,max=2000"`
	Config      map[string]any `json:"config"`
}

type widgetUpdateRequest struct {
	Name        *string        `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string        `json:"description" validate:"omitempty,max=2000"`
	Config      map[string]any `json:"config"`
	IsActive    *bool          `json:"is_active"`
}

type themeRequest struct {
	PrimaryColor    string `json:"primary_color" validate:"omitempty,hexcolor"`
	SecondaryColor  string `json:"secondary_color" validate:"omitempty,hexcolor"`
	BackgroundColor string `json:"background_color" validate:"omitempty,hexcolor"`
	TextColor       string `json:"text_color" validate:"omitempty,hexcolor"`
	FontFamily      string `json:"font_family" validate:"omitempty,max=100"`
	FontSize        *int   `json:"font_size" validate:"omitempty,gte=8,lte=72"`
	BorderRadius    *int   `json:"border_radius" validate:"omitempty,gte=0,lte=64"`
	BorderWidth     *int   `json:"border_width" validate:"omitempty,gte=0,lte=16"`
	BorderColor     string `json:"border_color" validate:"omitempty,hexcolor"`
	CustomCSS       string `json:"custom_css" validate:"omitempty,max=10000"`
}

type causeRequest struct {
	ID               string  `json:"id" validate:"omitempty,uuid"`
	Name             string  `json:"name" validate:"required,min=1,max=255"`
	Description      string  `json:"description" validate:"omitempty,max=2000"`
	ImageURL         string  `json:"image_url" validate:"omitempty,url"`
	GoalAmount       *int64  `json:"goal_amount" validate:"omitempty,gt=0"`
	SuggestedAmounts []int64 `json:"suggested_amounts" validate:"omitempty,max=10,dive,gt=0"`
}

type causeUpdateRequest struct {
	Name             *string `json:"name" validate:"omitempty,min=1,max=255"`
	Description      *string `json:"description" validate:"omitempty,max=2000"`
	ImageURL         *string `json:"image_url" validate:"omitempty,url"`
	GoalAmount       *int64  `json:"goal_amount" validate:"omitempty,gt=0"`
	SuggestedAmounts []int64 `json:"suggested_amounts" validate:"omitempty,max=10,dive,gt=0"`
	IsActive         *bool   `json:"is_active"`
}

type customizationRequest struct {
	Name        *string        `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string        `json:"description" validate:"omitempty,max=2000"`
	Config      map[string]any `json:"config"`
	Theme       themeRequest   `json:"theme"`
	Causes      []causeRequest `json:"causes" validate:"dive"`
}

func (r causeRequest) input() widgetdomain.CauseInput {
	return widgetdomain.CauseInput{
		ID:               r.ID,
		Name:             r.Name,
		Description:      r.Description,
		ImageURL:         r.ImageURL,
		GoalAmount:       r.GoalAmount,
		SuggestedAmounts: r.SuggestedAmounts,
	}
}

func (s *Server) ListWidgets(c *gin.Context) {
	user, err := s.currentUser(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	orgID := ""
	if user.Role != userdomain.RoleSuperAdmin {
		if orgID, err = organizationOf(user); err != nil {
			AbortWithError(c, err)
			return
		}
	}

	widgets, err := s.widgetSvc.List(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	Success(c, http.StatusOK, widgets, "")
}

func (s *Server) CreateWidget(c *gin.Context) {
	orgID, err := s.widgetManager(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req widgetRequest
	if err := BindBody(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	widget, err := s.widgetSvc.Create(c.Request.Context(), orgID, widgetdomain.CreateRequest{
		Name:        req.Name,
		Description: req.Description,
		Config:      req.Config,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	Success(c, http.StatusCreated, widget, "Widget created successfully")
}

// CurrentWidget returns the caller's organization widget, creating it with
// defaults on first access.
func (s *Server) CurrentWidget(c *gin.Context) {
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

	details, err := s.widgetSvc.GetOrCreateForOrganization(c.Request.Context(), orgID, "")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	Success(c, http.StatusOK, details, "")
}

func (s *Server) GetWidget(c *gin.Context) {
	details, err := s.loadWidget(c, false)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	Success(c, http.StatusOK, details, "")
}

func (s *Server) UpdateWidget(c *gin.Context) {
	details, err := s.loadWidget(c, true)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req widgetUpdateRequest
	if err := BindBody(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	widget, err := s.widgetSvc.Update(c.Request.Context(), details.Widget.ID, widgetdomain.UpdateRequest{
		Name:        req.Name,
		Description: req.Description,
		Config:      req.Config,
		IsActive:    req.IsActive,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	Success(c, http.StatusOK, widget, "Widget updated successfully")
}

func (s *Server) DeleteWidget(c *gin.Context) {
	details, err := s.loadWidget(c, true)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.widgetSvc.Delete(c.Request.Context(), details.Widget.ID); err != nil {
		AbortWithError(c, err)
		return
	}
	Success(c, http.StatusOK, gin.H{"id": details.Widget.ID}, "Widget deleted successfully")
}

func (s *Server) SaveCustomization(c *gin.Context) {
	details, err := s.loadWidget(c, true)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req customizationRequest
	if err := BindBody(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	causes := make([]widgetdomain.CauseInput, 0, len(req.Causes))
	for _, cause := range req.Causes {
		causes = append(causes, cause.input())
	}
	saved, err := s.widgetSvc.SaveCustomization(c.Request.Context(), details.Widget.ID, widgetdomain.CustomizationRequest{
		Name:        req.Name,
		Description: req.Description,
		Config:      req.Config,
		Theme: widgetdomain.ThemeInput{
			PrimaryColor:    req.Theme.PrimaryColor,
			SecondaryColor:  req.Theme.SecondaryColor,
			BackgroundColor: req.Theme.BackgroundColor,
			TextColor:       req.Theme.TextColor,
			FontFamily:      req.Theme.FontFamily,
			FontSize:        req.Theme.FontSize,
			BorderRadius:    req.Theme.BorderRadius,
			BorderWidth:     req.Theme.BorderWidth,
			BorderColor:     req.Theme.BorderColor,
			CustomCSS:       req.Theme.CustomCSS,
		},
		Causes: causes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	Success(c, http.StatusOK, saved, "Widget customization saved successfully")
}

func (s *Server) ListCauses(c *gin.Context) {
	details, err := s.loadWidget(c, false)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	causes, err := s.widgetSvc.ListCauses(c.Request.Context(), details.Widget.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	Success(c, http.StatusOK, causes, "")
}

func (s *Server) CreateCause(c *gin.Context) {
	details, err := s.loadWidget(c, true)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req causeRequest
	if err := BindBody(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}
	req.ID = ""

	cause, err := s.widgetSvc.CreateCause(c.Request.Context(), details.Widget.ID, req.input())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	Success(c, http.StatusCreated, cause, "Cause created successfully")
}

func (s *Server) UpdateCause(c *gin.Context) {
	cause, err := s.loadCause(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req causeUpdateRequest
	if err := BindBody(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	updated, err := s.widgetSvc.UpdateCause(c.Request.Context(), cause.ID, widgetdomain.CauseUpdate{
		Name:             req.Name,
		Description:      req.Description,
		ImageURL:         req.ImageURL,
		GoalAmount:       req.GoalAmount,
		SuggestedAmounts: req.SuggestedAmounts,
		IsActive:         req.IsActive,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	Success(c, http.StatusOK, updated, "Cause updated successfully")
}

func (s *Server) DeleteCause(c *gin.Context) {
	cause, err := s.loadCause(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.widgetSvc.DeleteCause(c.Request.Context(), cause.ID); err != nil {
		AbortWithError(c, err)
		return
	}
	Success(c, http.StatusOK, gin.H{"id": cause.ID}, "Cause deleted successfully")
}

// GetPublicWidget serves the embeddable widget with its active causes.
func (s *Server) GetPublicWidget(c *gin.Context) {
	details, err := s.widgetSvc.GetPublic(c.Request.Context(), c.Param("slug"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	Success(c, http.StatusOK, details, "")
}

// widgetManager resolves the caller's organization and checks the caller may
// manage its widgets.
func (s *Server) widgetManager(c *gin.Context) (string, error) {
	user, err := s.currentUser(c)
	if err != nil {
		return "", err
	}
	orgID, err := organizationOf(user)
	if err != nil {
		return "", err
	}
	if err := s.authorize(c, user, authorization.WidgetManage); err != nil {
		return "", err
	}
	return orgID, nil
}

// loadWidget resolves :widgetId for the caller. Widgets of other
// organizations read as missing.
func (s *Server) loadWidget(c *gin.Context, manage bool) (*widgetdomain.Details, error) {
	user, err := s.currentUser(c)
	if err != nil {
		return nil, err
	}
	details, err := s.widgetSvc.Get(c.Request.Context(), c.Param("widgetId"))
	if err != nil {
		return nil, err
	}
	if !canAccessOrganization(user, details.Widget.OrganizationID) {
		return nil, widgetdomain.ErrNotFound
	}
	if manage {
		if err := s.authorize(c, user, authorization.WidgetManage); err != nil {
			return nil, err
		}
	}
	return details, nil
}

func (s *Server) loadCause(c *gin.Context) (*widgetdomain.Cause, error) {
	user, err := s.currentUser(c)
	if err != nil {
		return nil, err
	}
	cause, widget, err := s.widgetSvc.GetCause(c.Request.Context(), c.Param("causeId"))
	if err != nil {
		return nil, err
	}
	if !canAccessOrganization(user, widget.OrganizationID) {
		return nil, widgetdomain.ErrCauseNotFound
	}
	if err := s.authorize(c, user, authorization.WidgetManage); err != nil {
		return nil, err
	}
	return cause, nil
}

package domain

import (
	"context"
	"errors"
)

type Service interface {
	// GetOrCreateForOrganization returns the organization's widget, creating
	// it with the default theme on first use.
	GetOrCreateForOrganization(ctx context.Context, orgID, name string) (*Details, error)
	Create(ctx context.Context, orgID string, req CreateRequest) (*Widget, error)
	List(ctx context.Context, orgID string) ([]Widget, error)
	Get(ctx context.Context, id string) (*Details, error)
	GetPublic(ctx context.Context, slug string) (*Details, error)
	Update(ctx context.Context, id string, req UpdateRequest) (*Widget, error)
	Delete(ctx context.Context, id string) error
	SaveCustomization(ctx context.Context, id string, req CustomizationRequest) (*Details, error)

	ListCauses(ctx context.Context, widgetID string) ([]Cause, error)
	GetCause(ctx context.Context, id string) (*Cause, *Widget, error)
	CreateCause(ctx context.Context, widgetID string, req CauseInput) (*Cause, error)
	UpdateCause(ctx context.Context, id string, req CauseUpdate) (*Cause, error)
	DeleteCause(ctx context.Context, id string) error
}

type CreateRequest struct {
	Name        string
	Description string
	Config      map[string]any
}

// UpdateRequest carries a partial update; nil fields are left untouched.
type UpdateRequest struct {
	Name        *string
	Description *string
	Config      map[string]any
	IsActive    *bool
}

type ThemeInput struct {
	PrimaryColor    string
	SecondaryColor  string
	BackgroundColor string
	TextColor       string
	FontFamily      string
	FontSize        *int
	BorderRadius    *int
	BorderWidth     *int
	BorderColor     string
	CustomCSS       string
}

// CauseInput describes a cause to create, or to update when ID is set.
type CauseInput struct {
	ID               string
	Name             string
	Description      string
	ImageURL         string
	GoalAmount       *int64
	SuggestedAmounts []int64
}

type CauseUpdate struct {
	Name             *string
	Description      *string
	ImageURL         *string
	GoalAmount       *int64
	SuggestedAmounts []int64
	IsActive         *bool
}

// CustomizationRequest replaces the theme and cause list of a widget.
type CustomizationRequest struct {
	Name        *string
	Description *string
	Config      map[string]any
	Theme       ThemeInput
	Causes      []CauseInput
}

var (
	ErrNotFound          = errors.New("widget_not_found")
	ErrCauseNotFound     = errors.New("cause_not_found")
	ErrInvalidName       = errors.New("invalid_name")
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrInvalidOrg        = errors.New("invalid_organization")
	ErrEmptyUpdate       = errors.New("empty_update")
	ErrForeignCause      = errors.New("cause_belongs_to_other_widget")
	ErrWidgetUnavailable = errors.New("widget_unavailable")
)

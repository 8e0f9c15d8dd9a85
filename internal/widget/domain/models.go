package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Widget is the embeddable donation form of one organization.
type Widget struct {
	ID             string            `gorm:"primaryKey;type:uuid" json:"id"`
	OrganizationID string            `gorm:"type:uuid;not null;uniqueIndex" json:"organization_id"`
	Name           string            `gorm:"type:text;not null" json:"name"`
	Slug           string            `gorm:"type:text;not null;uniqueIndex" json:"slug"`
	Description    string            `gorm:"type:text" json:"description,omitempty"`
	Config         datatypes.JSONMap `gorm:"type:jsonb;not null" json:"config"`
	IsActive       bool              `gorm:"not null" json:"is_active"`
	CreatedAt      time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"not null" json:"updated_at"`
}

func (Widget) TableName() string { return "widgets" }

// Theme holds the visual settings of a widget.
type Theme struct {
	WidgetID        string    `gorm:"primaryKey;type:uuid" json:"widget_id"`
	PrimaryColor    string    `gorm:"type:text;not null" json:"primary_color"`
	SecondaryColor  string    `gorm:"type:text;not null" json:"secondary_color"`
	BackgroundColor string    `gorm:"type:text;not null" json:"background_color"`
	TextColor       string    `gorm:"type:text;not null" json:"text_color"`
	FontFamily      string    `gorm:"type:text;not null" json:"font_family"`
	FontSize        int       `gorm:"not null" json:"font_size"`
	BorderRadius    int       `gorm:"not null" json:"border_radius"`
	BorderWidth     int       `gorm:"not null" json:"border_width"`
	BorderColor     string    `gorm:"type:text;not null" json:"border_color"`
	CustomCSS       string    `gorm:"type:text;column:custom_css" json:"custom_css,omitempty"`
	CreatedAt       time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time `gorm:"not null" json:"updated_at"`
}

func (Theme) TableName() string { return "widget_themes" }

// DefaultTheme is applied until the organization customizes its widget.
func DefaultTheme(widgetID string, now time.Time) Theme {
	return Theme{
		WidgetID:        widgetID,
		PrimaryColor:    "#3b82f6",
		SecondaryColor:  "#64748b",
		BackgroundColor: "#ffffff",
		TextColor:       "#0f172a",
		FontFamily:      "Inter",
		FontSize:        16,
		BorderRadius:    8,
		BorderWidth:     1,
		BorderColor:     "#e2e8f0",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Cause is a fundraising target shown in a widget. Amounts are in minor
// currency units.
type Cause struct {
	ID               string                     `gorm:"primaryKey;type:uuid" json:"id"`
	WidgetID         string                     `gorm:"type:uuid;not null;index" json:"widget_id"`
	Name             string                     `gorm:"type:text;not null" json:"name"`
	Description      string                     `gorm:"type:text" json:"description,omitempty"`
	ImageURL         string                     `gorm:"type:text;column:image_url" json:"image_url,omitempty"`
	GoalAmount       *int64                     `json:"goal_amount,omitempty"`
	RaisedAmount     int64                      `gorm:"not null" json:"raised_amount"`
	SuggestedAmounts datatypes.JSONSlice[int64] `gorm:"type:jsonb;not null" json:"suggested_amounts"`
	IsActive         bool                       `gorm:"not null" json:"is_active"`
	CreatedAt        time.Time                  `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time                  `gorm:"not null" json:"updated_at"`
}

func (Cause) TableName() string { return "causes" }

// Details bundles a widget with its theme and causes.
type Details struct {
	Widget Widget  `json:"widget"`
	Theme  Theme   `json:"theme"`
	Causes []Cause `json:"causes"`
}

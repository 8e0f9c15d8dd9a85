package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository

	// InsertIfAbsent inserts w unless its organization already has a widget.
	InsertIfAbsent(ctx context.Context, w *Widget) error
	Create(ctx context.Context, w *Widget) error
	GetByID(ctx context.Context, id string) (*Widget, error)
	GetByOrganization(ctx context.Context, orgID string) (*Widget, error)
	GetBySlug(ctx context.Context, slug string) (*Widget, error)
	// List returns the widgets of orgID, or every widget when orgID is empty.
	List(ctx context.Context, orgID string) ([]Widget, error)
	Update(ctx context.Context, id string, fields map[string]any) error
	Delete(ctx context.Context, id string) error

	GetTheme(ctx context.Context, widgetID string) (*Theme, error)
	UpsertTheme(ctx context.Context, theme *Theme) error

	ListCauses(ctx context.Context, widgetID string, activeOnly bool) ([]Cause, error)
	GetCause(ctx context.Context, id string) (*Cause, error)
	CreateCause(ctx context.Context, cause *Cause) error
	UpdateCause(ctx context.Context, id string, fields map[string]any) error
	DeleteCause(ctx context.Context, id string) error
	// DeactivateCausesExcept switches off every cause of widgetID not in keep.
	DeactivateCausesExcept(ctx context.Context, widgetID string, keep []string) error
	// IncrementRaised adds amount to the cause total in a single statement.
	IncrementRaised(ctx context.Context, causeID string, amount int64) error
}

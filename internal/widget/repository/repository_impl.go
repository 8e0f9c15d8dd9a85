package repository

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/givebox/internal/widget/domain"
	"github.com/smallbiznis/givebox/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) InsertIfAbsent(ctx context.Context, w *domain.Widget) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "organization_id"}},
			DoNothing: true,
		}).
		Create(w).Error
	return db.Classify(err)
}

func (r *repository) Create(ctx context.Context, w *domain.Widget) error {
	return db.Classify(r.db.WithContext(ctx).Create(w).Error)
}

func (r *repository) GetByID(ctx context.Context, id string) (*domain.Widget, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *repository) GetByOrganization(ctx context.Context, orgID string) (*domain.Widget, error) {
	return r.first(ctx, "organization_id = ?", orgID)
}

func (r *repository) GetBySlug(ctx context.Context, slug string) (*domain.Widget, error) {
	return r.first(ctx, "slug = ?", slug)
}

func (r *repository) first(ctx context.Context, query string, arg any) (*domain.Widget, error) {
	var w domain.Widget
	err := r.db.WithContext(ctx).Where(query, arg).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, db.Classify(err)
	}
	return &w, nil
}

func (r *repository) List(ctx context.Context, orgID string) ([]domain.Widget, error) {
	stmt := r.db.WithContext(ctx).Model(&domain.Widget{})
	if orgID != "" {
		stmt = stmt.Where("organization_id = ?", orgID)
	}
	var widgets []domain.Widget
	if err := stmt.Order("created_at DESC").Find(&widgets).Error; err != nil {
		return nil, db.Classify(err)
	}
	return widgets, nil
}

func (r *repository) Update(ctx context.Context, id string, fields map[string]any) error {
	result := r.db.WithContext(ctx).Model(&domain.Widget{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return db.Classify(result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Exec(`DELETE FROM widgets WHERE id = ?`, id)
	if result.Error != nil {
		return db.Classify(result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetTheme returns nil without error when the widget has no theme row.
func (r *repository) GetTheme(ctx context.Context, widgetID string) (*domain.Theme, error) {
	var theme domain.Theme
	err := r.db.WithContext(ctx).Where("widget_id = ?", widgetID).First(&theme).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, db.Classify(err)
	}
	return &theme, nil
}

func (r *repository) UpsertTheme(ctx context.Context, theme *domain.Theme) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "widget_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"primary_color",
				"secondary_color",
				"background_color",
				"text_color",
				"font_family",
				"font_size",
				"border_radius",
				"border_width",
				"border_color",
				"custom_css",
				"updated_at",
			}),
		}).
		Create(theme).Error
	return db.Classify(err)
}

func (r *repository) ListCauses(ctx context.Context, widgetID string, activeOnly bool) ([]domain.Cause, error) {
	stmt := r.db.WithContext(ctx).Where("widget_id = ?", widgetID)
	if activeOnly {
		stmt = stmt.Where("is_active = ?", true)
	}
	var causes []domain.Cause
	if err := stmt.Order("created_at ASC").Order("id ASC").Find(&causes).Error; err != nil {
		return nil, db.Classify(err)
	}
	return causes, nil
}

func (r *repository) GetCause(ctx context.Context, id string) (*domain.Cause, error) {
	var cause domain.Cause
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&cause).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrCauseNotFound
	}
	if err != nil {
		return nil, db.Classify(err)
	}
	return &cause, nil
}

func (r *repository) CreateCause(ctx context.Context, cause *domain.Cause) error {
	return db.Classify(r.db.WithContext(ctx).Create(cause).Error)
}

func (r *repository) UpdateCause(ctx context.Context, id string, fields map[string]any) error {
	result := r.db.WithContext(ctx).Model(&domain.Cause{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return db.Classify(result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrCauseNotFound
	}
	return nil
}

func (r *repository) DeleteCause(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Exec(`DELETE FROM causes WHERE id = ?`, id)
	if result.Error != nil {
		return db.Classify(result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrCauseNotFound
	}
	return nil
}

func (r *repository) DeactivateCausesExcept(ctx context.Context, widgetID string, keep []string) error {
	stmt := r.db.WithContext(ctx).Model(&domain.Cause{}).Where("widget_id = ? AND is_active = ?", widgetID, true)
	if len(keep) > 0 {
		stmt = stmt.Where("id NOT IN ?", keep)
	}
	err := stmt.Updates(map[string]any{
		"is_active":  false,
		"updated_at": time.Now().UTC(),
	}).Error
	return db.Classify(err)
}

func (r *repository) IncrementRaised(ctx context.Context, causeID string, amount int64) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Cause{}).
		Where("id = ?", causeID).
		UpdateColumn("raised_amount", gorm.Expr("raised_amount + ?", amount))
	if result.Error != nil {
		return db.Classify(result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrCauseNotFound
	}
	return nil
}

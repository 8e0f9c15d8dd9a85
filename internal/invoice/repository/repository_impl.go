package repository

import (
	"context"

	"github.com/smallbiznis/givebox/internal/invoice/domain"
	"github.com/smallbiznis/givebox/pkg/db"
	"github.com/smallbiznis/givebox/pkg/db/pagination"
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

func (r *repository) InsertIfAbsent(ctx context.Context, inv *domain.Invoice) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "stripe_invoice_id"}},
			DoNothing: true,
		}).
		Create(inv)
	if result.Error != nil {
		return false, db.Classify(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) ListByOrganization(ctx context.Context, orgID string, page pagination.Pagination) ([]domain.Invoice, int64, error) {
	stmt := r.db.WithContext(ctx).Model(&domain.Invoice{}).Where("organization_id = ?", orgID)

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return nil, 0, db.Classify(err)
	}

	page = page.Normalize()
	var invoices []domain.Invoice
	err := stmt.Order("created_at DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&invoices).Error
	if err != nil {
		return nil, 0, db.Classify(err)
	}
	return invoices, total, nil
}

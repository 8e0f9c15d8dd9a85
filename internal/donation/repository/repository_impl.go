package repository

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/givebox/internal/donation/domain"
	"github.com/smallbiznis/givebox/pkg/db"
	"github.com/smallbiznis/givebox/pkg/db/pagination"
	"gorm.io/gorm"
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

func (r *repository) Create(ctx context.Context, d *domain.Donation) error {
	return db.Classify(r.db.WithContext(ctx).Create(d).Error)
}

func (r *repository) GetByID(ctx context.Context, id string) (*domain.Donation, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *repository) GetByPaymentIntent(ctx context.Context, paymentIntentID string) (*domain.Donation, error) {
	return r.first(ctx, "stripe_payment_intent_id = ?", paymentIntentID)
}

func (r *repository) first(ctx context.Context, query string, arg any) (*domain.Donation, error) {
	var d domain.Donation
	err := r.db.WithContext(ctx).Where(query, arg).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, db.Classify(err)
	}
	return &d, nil
}

func (r *repository) ListByOrganization(ctx context.Context, orgID string, page pagination.Pagination) ([]domain.Donation, int64, error) {
	stmt := r.db.WithContext(ctx).Model(&domain.Donation{}).Where("organization_id = ?", orgID)

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return nil, 0, db.Classify(err)
	}

	page = page.Normalize()
	var donations []domain.Donation
	err := stmt.Order("created_at DESC").
		Order("id DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&donations).Error
	if err != nil {
		return nil, 0, db.Classify(err)
	}
	return donations, total, nil
}

func (r *repository) MarkSucceeded(ctx context.Context, paymentIntentID, chargeID string, at time.Time) (bool, error) {
	var charge *string
	if chargeID != "" {
		charge = &chargeID
	}
	result := r.db.WithContext(ctx).Exec(
		`UPDATE donations
		 SET status = ?, stripe_charge_id = COALESCE(?, stripe_charge_id), processed_at = ?, error_message = NULL, updated_at = ?
		 WHERE stripe_payment_intent_id = ? AND status IN (?, ?)`,
		domain.StatusSucceeded,
		charge,
		at,
		at,
		paymentIntentID,
		domain.StatusPending,
		domain.StatusFailed,
	)
	if result.Error != nil {
		return false, db.Classify(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) MarkFailed(ctx context.Context, paymentIntentID, message string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE donations
		 SET status = ?, error_message = ?, processed_at = ?, updated_at = ?
		 WHERE stripe_payment_intent_id = ? AND status = ?`,
		domain.StatusFailed,
		message,
		at,
		at,
		paymentIntentID,
		domain.StatusPending,
	)
	if result.Error != nil {
		return false, db.Classify(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) Totals(ctx context.Context, orgID string) (domain.Totals, error) {
	var totals domain.Totals
	err := r.db.WithContext(ctx).Raw(
		`SELECT
			CAST(COALESCE(SUM(amount), 0) AS BIGINT) AS raised,
			COUNT(*) AS count,
			COUNT(DISTINCT LOWER(donor_email)) AS unique_donors
		 FROM donations
		 WHERE organization_id = ? AND status = ?`,
		orgID,
		domain.StatusSucceeded,
	).Scan(&totals).Error
	if err != nil {
		return domain.Totals{}, db.Classify(err)
	}
	return totals, nil
}

func (r *repository) SettledSince(ctx context.Context, orgID string, since time.Time) ([]domain.Settlement, error) {
	var rows []domain.Settlement
	err := r.db.WithContext(ctx).Raw(
		`SELECT amount, processed_at
		 FROM donations
		 WHERE organization_id = ? AND status = ? AND processed_at >= ?
		 ORDER BY processed_at ASC`,
		orgID,
		domain.StatusSucceeded,
		since,
	).Scan(&rows).Error
	if err != nil {
		return nil, db.Classify(err)
	}
	return rows, nil
}

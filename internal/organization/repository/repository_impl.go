package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/smallbiznis/givebox/internal/organization/domain"
	"github.com/smallbiznis/givebox/pkg/db"
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

func (r *repository) Create(ctx context.Context, org *domain.Organization) error {
	return db.Classify(r.db.WithContext(ctx).Create(org).Error)
}

func (r *repository) GetByID(ctx context.Context, id string) (*domain.Organization, error) {
	var org domain.Organization
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&org).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, db.Classify(err)
	}
	return &org, nil
}

var sortColumns = map[string]string{
	"name":       "name",
	"created_at": "created_at",
	"createdAt":  "created_at",
}

func (r *repository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Organization, int64, error) {
	stmt := r.db.WithContext(ctx).Model(&domain.Organization{})

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return nil, 0, db.Classify(err)
	}

	column, ok := sortColumns[strings.TrimSpace(filter.SortBy)]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if strings.EqualFold(strings.TrimSpace(filter.SortOrder), "asc") {
		direction = "ASC"
	}

	page := filter.Pagination.Normalize()
	var orgs []domain.Organization
	err := stmt.Order(column + " " + direction).
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&orgs).Error
	if err != nil {
		return nil, 0, db.Classify(err)
	}
	return orgs, total, nil
}

func (r *repository) Update(ctx context.Context, id string, fields map[string]any) error {
	result := r.db.WithContext(ctx).Model(&domain.Organization{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return db.Classify(result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Exec(`DELETE FROM organizations WHERE id = ?`, id)
	if result.Error != nil {
		return db.Classify(result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// AttachStripeAccount only writes when no account is attached yet.
func (r *repository) AttachStripeAccount(ctx context.Context, id, accountID string) (bool, error) {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE organizations
		 SET stripe_account_id = ?, stripe_onboarding_complete = ?, updated_at = ?
		 WHERE id = ? AND stripe_account_id IS NULL`,
		accountID,
		false,
		time.Now().UTC(),
		id,
	)
	if result.Error != nil {
		return false, db.Classify(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) SetOnboardingComplete(ctx context.Context, id string, complete bool) error {
	return r.Update(ctx, id, map[string]any{
		"stripe_onboarding_complete": complete,
		"updated_at":                 time.Now().UTC(),
	})
}

func (r *repository) UpdateAccountStatusByStripeAccount(ctx context.Context, accountID string, status domain.AccountStatus) (int64, error) {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE organizations
		 SET stripe_account_enabled = ?, stripe_account_status = ?, stripe_onboarding_complete = ?, updated_at = ?
		 WHERE stripe_account_id = ?`,
		status.Enabled,
		status.Status,
		status.Enabled,
		time.Now().UTC(),
		accountID,
	)
	if result.Error != nil {
		return 0, db.Classify(result.Error)
	}
	return result.RowsAffected, nil
}

func (r *repository) UpdateSubscriptionStatusByCustomer(ctx context.Context, customerID, status string) (int64, error) {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE organizations SET subscription_status = ?, updated_at = ? WHERE stripe_customer_id = ?`,
		status,
		time.Now().UTC(),
		customerID,
	)
	if result.Error != nil {
		return 0, db.Classify(result.Error)
	}
	return result.RowsAffected, nil
}

package domain

import (
	"context"

	"github.com/smallbiznis/givebox/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	pagination.Pagination
	SortBy    string
	SortOrder string
}

// AccountStatus is the organization-side view of a connected account.
type AccountStatus struct {
	Enabled bool
	Status  string
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, org *Organization) error
	GetByID(ctx context.Context, id string) (*Organization, error)
	List(ctx context.Context, filter ListFilter) ([]Organization, int64, error)
	Update(ctx context.Context, id string, fields map[string]any) error
	Delete(ctx context.Context, id string) error
	AttachStripeAccount(ctx context.Context, id, accountID string) (bool, error)
	SetOnboardingComplete(ctx context.Context, id string, complete bool) error
	UpdateAccountStatusByStripeAccount(ctx context.Context, accountID string, status AccountStatus) (int64, error)
	UpdateSubscriptionStatusByCustomer(ctx context.Context, customerID, status string) (int64, error)
}

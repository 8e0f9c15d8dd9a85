package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/givebox/pkg/db/pagination"
	"gorm.io/gorm"
)

const (
	SubscriptionTrial = "trial"

	AccountStatusActive  = "active"
	AccountStatusPending = "pending"
)

type Service interface {
	WithTx(tx *gorm.DB) Service
	Create(ctx context.Context, owner Owner, req CreateRequest) (*Organization, error)
	Onboard(ctx context.Context, owner Owner, req OnboardingRequest) (*Organization, error)
	GetByID(ctx context.Context, id string) (*Organization, error)
	List(ctx context.Context, filter ListFilter) (ListResponse, error)
	Update(ctx context.Context, id string, req UpdateRequest) (*Organization, error)
	Delete(ctx context.Context, id string) error
	AttachStripeAccount(ctx context.Context, id, accountID string) error
	SetOnboardingComplete(ctx context.Context, id string, complete bool) error
	ApplyAccountStatus(ctx context.Context, accountID string, status AccountStatus) (int64, error)
	ApplySubscriptionStatus(ctx context.Context, customerID, status string) (int64, error)
}

// Owner identifies the user creating an organization.
type Owner struct {
	UserID string
	Email  string
}

type CreateRequest struct {
	Name               string
	LegalName          string
	DisplayName        string
	Email              string
	Website            string
	Description        string
	Phone              string
	Address            string
	TermsOfServiceURL  string
	PrivacyPolicyURL   string
	SubscriptionPlan   string
	SubscriptionStatus string
}

type OnboardingRequest struct {
	DisplayName       string
	LegalName         string
	Email             string
	TermsOfServiceURL string
}

// UpdateRequest carries a partial update; nil fields are left untouched.
type UpdateRequest struct {
	Name              *string
	LegalName         *string
	DisplayName       *string
	Email             *string
	Website           *string
	Description       *string
	LogoURL           *string
	Phone             *string
	Address           *string
	TermsOfServiceURL *string
	PrivacyPolicyURL  *string
}

type ListResponse struct {
	pagination.PageInfo
	Organizations []Organization `json:"organizations"`
}

var (
	ErrNotFound            = errors.New("organization_not_found")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidOwner        = errors.New("invalid_owner")
	ErrEmptyUpdate         = errors.New("empty_update")
	ErrStripeAccountExists = errors.New("stripe_account_exists")
	ErrAlreadyOnboarded    = errors.New("already_onboarded")
	ErrInvalidAccount      = errors.New("invalid_stripe_account")
)

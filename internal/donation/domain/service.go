package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/givebox/pkg/db/pagination"
	"gorm.io/gorm"
)

const (
	DefaultCurrency      = "usd"
	DefaultFailureReason = "Payment failed"
	StatsWindowDays      = 30
)

type Service interface {
	// WithTx binds the service to an open transaction.
	WithTx(tx *gorm.DB) Service

	CreatePending(ctx context.Context, req CreatePendingRequest) (*Donation, error)
	Get(ctx context.Context, id string) (*Donation, error)
	List(ctx context.Context, orgID string, page pagination.Pagination) (ListResponse, error)
	MarkSucceeded(ctx context.Context, paymentIntentID, chargeID string) (bool, error)
	MarkFailed(ctx context.Context, paymentIntentID, message string) (bool, error)
	Stats(ctx context.Context, orgID string) (Stats, error)
}

type CreatePendingRequest struct {
	WidgetID        string
	CauseID         string
	OrganizationID  string
	DonorEmail      string
	DonorName       string
	IsAnonymous     bool
	DonorMessage    string
	Amount          int64
	Currency        string
	PaymentIntentID string
}

type ListResponse struct {
	pagination.PageInfo
	Donations []Donation `json:"donations"`
}

var (
	ErrNotFound      = errors.New("donation_not_found")
	ErrInvalidAmount = errors.New("invalid_amount")
	ErrInvalidDonor  = errors.New("invalid_donor")
	ErrInvalidWidget = errors.New("invalid_widget")
	ErrInvalidIntent = errors.New("invalid_payment_intent")
)

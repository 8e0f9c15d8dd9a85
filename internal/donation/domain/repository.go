package domain

import (
	"context"
	"time"

	"github.com/smallbiznis/givebox/pkg/db/pagination"
	"gorm.io/gorm"
)

// Totals are aggregates over settled donations.
type Totals struct {
	Raised       int64
	Count        int64
	UniqueDonors int64
}

// Settlement is one settled donation as read back for daily bucketing.
type Settlement struct {
	Amount      int64
	ProcessedAt time.Time
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, d *Donation) error
	GetByID(ctx context.Context, id string) (*Donation, error)
	GetByPaymentIntent(ctx context.Context, paymentIntentID string) (*Donation, error)
	ListByOrganization(ctx context.Context, orgID string, page pagination.Pagination) ([]Donation, int64, error)
	// MarkSucceeded moves a donation to succeeded unless it already is, and
	// reports whether this call made the transition.
	MarkSucceeded(ctx context.Context, paymentIntentID, chargeID string, at time.Time) (bool, error)
	// MarkFailed only moves pending donations.
	MarkFailed(ctx context.Context, paymentIntentID, message string, at time.Time) (bool, error)
	Totals(ctx context.Context, orgID string) (Totals, error)
	SettledSince(ctx context.Context, orgID string, since time.Time) ([]Settlement, error)
}

package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/givebox/pkg/db/pagination"
	"gorm.io/gorm"
)

const StatusPaid = "paid"

// ProcessorInvoice is a paid invoice as reported by the payment processor.
type ProcessorInvoice struct {
	OrganizationID       string
	StripeInvoiceID      string
	StripeSubscriptionID string
	InvoiceNumber        string
	AmountPaid           int64
	Currency             string
	DueDate              *time.Time
	PaidAt               *time.Time
	PDFURL               string
}

type ListInvoiceResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}

type Service interface {
	WithTx(tx *gorm.DB) Service
	// RecordPaid stores the invoice once; repeated deliveries report false.
	RecordPaid(ctx context.Context, in ProcessorInvoice) (bool, error)
	List(ctx context.Context, orgID string, page pagination.Pagination) (ListInvoiceResponse, error)
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	InsertIfAbsent(ctx context.Context, inv *Invoice) (bool, error)
	ListByOrganization(ctx context.Context, orgID string, page pagination.Pagination) ([]Invoice, int64, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidInvoice      = errors.New("invalid_invoice")
)

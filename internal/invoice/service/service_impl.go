package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/smallbiznis/givebox/internal/clock"
	invoicedomain "github.com/smallbiznis/givebox/internal/invoice/domain"
	"github.com/smallbiznis/givebox/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	Log   *zap.Logger
	Clock clock.Clock
	Repo  invoicedomain.Repository
}

type Service struct {
	log   *zap.Logger
	clock clock.Clock
	repo  invoicedomain.Repository
}

func NewService(p ServiceParam) invoicedomain.Service {
	return &Service{
		log:   p.Log.Named("invoice.service"),
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) WithTx(tx *gorm.DB) invoicedomain.Service {
	return &Service{log: s.log, clock: s.clock, repo: s.repo.WithTx(tx)}
}

func (s *Service) RecordPaid(ctx context.Context, in invoicedomain.ProcessorInvoice) (bool, error) {
	orgID := strings.TrimSpace(in.OrganizationID)
	if _, err := uuid.Parse(orgID); err != nil {
		return false, invoicedomain.ErrInvalidOrganization
	}
	stripeID := strings.TrimSpace(in.StripeInvoiceID)
	if stripeID == "" {
		return false, invoicedomain.ErrInvalidInvoice
	}
	currency := strings.ToLower(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "usd"
	}

	now := s.clock.Now()
	paidAt := in.PaidAt
	if paidAt == nil {
		paidAt = &now
	}
	inv := &invoicedomain.Invoice{
		ID:                   uuid.NewString(),
		OrganizationID:       orgID,
		StripeInvoiceID:      stripeID,
		StripeSubscriptionID: strings.TrimSpace(in.StripeSubscriptionID),
		InvoiceNumber:        strings.TrimSpace(in.InvoiceNumber),
		Amount:               in.AmountPaid,
		Currency:             currency,
		Status:               invoicedomain.StatusPaid,
		DueDate:              in.DueDate,
		PaidAt:               paidAt,
		PDFURL:               strings.TrimSpace(in.PDFURL),
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	inserted, err := s.repo.InsertIfAbsent(ctx, inv)
	if err != nil {
		return false, err
	}
	if !inserted {
		s.log.Debug("invoice already recorded", zap.String("stripe_invoice_id", stripeID))
	}
	return inserted, nil
}

func (s *Service) List(ctx context.Context, orgID string, page pagination.Pagination) (invoicedomain.ListInvoiceResponse, error) {
	invoices, total, err := s.repo.ListByOrganization(ctx, orgID, page)
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}
	if invoices == nil {
		invoices = []invoicedomain.Invoice{}
	}
	return invoicedomain.ListInvoiceResponse{
		PageInfo: pagination.BuildPageInfo(page, total),
		Invoices: invoices,
	}, nil
}

package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/givebox/internal/clock"
	"github.com/smallbiznis/givebox/internal/donation/domain"
	obsmetrics "github.com/smallbiznis/givebox/internal/observability/metrics"
	widgetdomain "github.com/smallbiznis/givebox/internal/widget/domain"
	"github.com/smallbiznis/givebox/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Repo       domain.Repository
	WidgetRepo widgetdomain.Repository
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	repo       domain.Repository
	widgetRepo widgetdomain.Repository
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &service{
		db:         p.DB,
		log:        p.Log.Named("donation.service"),
		clock:      p.Clock,
		repo:       p.Repo,
		widgetRepo: p.WidgetRepo,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *service) WithTx(tx *gorm.DB) domain.Service {
	bound := *s
	bound.db = tx
	bound.repo = s.repo.WithTx(tx)
	bound.widgetRepo = s.widgetRepo.WithTx(tx)
	return &bound
}

func (s *service) CreatePending(ctx context.Context, req domain.CreatePendingRequest) (*domain.Donation, error) {
	if req.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	email := strings.TrimSpace(req.DonorEmail)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, domain.ErrInvalidDonor
	}
	if strings.TrimSpace(req.WidgetID) == "" || strings.TrimSpace(req.OrganizationID) == "" {
		return nil, domain.ErrInvalidWidget
	}
	intent := strings.TrimSpace(req.PaymentIntentID)
	if intent == "" {
		return nil, domain.ErrInvalidIntent
	}
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = domain.DefaultCurrency
	}

	now := s.clock.Now()
	donation := &domain.Donation{
		ID:                    uuid.NewString(),
		WidgetID:              req.WidgetID,
		OrganizationID:        req.OrganizationID,
		DonorEmail:            email,
		DonorName:             strings.TrimSpace(req.DonorName),
		IsAnonymous:           req.IsAnonymous,
		DonorMessage:          strings.TrimSpace(req.DonorMessage),
		Amount:                req.Amount,
		Currency:              currency,
		StripePaymentIntentID: &intent,
		Status:                domain.StatusPending,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if cause := strings.TrimSpace(req.CauseID); cause != "" {
		donation.CauseID = &cause
	}

	if err := s.repo.Create(ctx, donation); err != nil {
		return nil, err
	}
	s.obsMetrics.RecordDonation(ctx, donation.OrganizationID, string(donation.Status), donation.Amount)
	return donation, nil
}

func (s *service) Get(ctx context.Context, id string) (*domain.Donation, error) {
	if _, err := uuid.Parse(strings.TrimSpace(id)); err != nil {
		return nil, domain.ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}

func (s *service) List(ctx context.Context, orgID string, page pagination.Pagination) (domain.ListResponse, error) {
	donations, total, err := s.repo.ListByOrganization(ctx, orgID, page)
	if err != nil {
		return domain.ListResponse{}, err
	}
	if donations == nil {
		donations = []domain.Donation{}
	}
	return domain.ListResponse{
		PageInfo:  pagination.BuildPageInfo(page, total),
		Donations: donations,
	}, nil
}

// MarkSucceeded settles the donation behind paymentIntentID. The cause total
// only grows on the call that performs the transition, so redelivered events
// never count twice.
func (s *service) MarkSucceeded(ctx context.Context, paymentIntentID, chargeID string) (bool, error) {
	paymentIntentID = strings.TrimSpace(paymentIntentID)
	if paymentIntentID == "" {
		return false, domain.ErrInvalidIntent
	}

	var settled *domain.Donation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		transitioned, err := repo.MarkSucceeded(ctx, paymentIntentID, strings.TrimSpace(chargeID), s.clock.Now())
		if err != nil || !transitioned {
			return err
		}
		donation, err := repo.GetByPaymentIntent(ctx, paymentIntentID)
		if err != nil {
			return err
		}
		if donation.CauseID != nil {
			err := s.widgetRepo.WithTx(tx).IncrementRaised(ctx, *donation.CauseID, donation.Amount)
			if err != nil && !errors.Is(err, widgetdomain.ErrCauseNotFound) {
				return err
			}
		}
		settled = donation
		return nil
	})
	if err != nil {
		return false, err
	}
	if settled == nil {
		s.log.Debug("donation already settled or unknown", zap.String("payment_intent_id", paymentIntentID))
		return false, nil
	}

	s.obsMetrics.RecordDonation(ctx, settled.OrganizationID, string(domain.StatusSucceeded), settled.Amount)
	return true, nil
}

func (s *service) MarkFailed(ctx context.Context, paymentIntentID, message string) (bool, error) {
	paymentIntentID = strings.TrimSpace(paymentIntentID)
	if paymentIntentID == "" {
		return false, domain.ErrInvalidIntent
	}
	message = strings.TrimSpace(message)
	if message == "" {
		message = domain.DefaultFailureReason
	}
	changed, err := s.repo.MarkFailed(ctx, paymentIntentID, message, s.clock.Now())
	if err != nil {
		return false, err
	}
	if changed {
		donation, err := s.repo.GetByPaymentIntent(ctx, paymentIntentID)
		if err == nil {
			s.obsMetrics.RecordDonation(ctx, donation.OrganizationID, string(domain.StatusFailed), donation.Amount)
		}
	}
	return changed, nil
}

// Stats aggregates settled donations. Daily holds one entry per UTC day of
// the trailing window, oldest first, including days without donations.
func (s *service) Stats(ctx context.Context, orgID string) (domain.Stats, error) {
	totals, err := s.repo.Totals(ctx, orgID)
	if err != nil {
		return domain.Stats{}, err
	}

	today := truncateDay(s.clock.Now())
	start := today.AddDate(0, 0, -(domain.StatsWindowDays - 1))
	rows, err := s.repo.SettledSince(ctx, orgID, start)
	if err != nil {
		return domain.Stats{}, err
	}

	stats := domain.Stats{
		TotalRaised:    totals.Raised,
		TotalDonations: totals.Count,
		UniqueDonors:   totals.UniqueDonors,
		Daily:          dailySeries(start, rows),
	}
	if totals.Count > 0 {
		stats.AverageDonation = totals.Raised / totals.Count
	}
	return stats, nil
}

func dailySeries(start time.Time, rows []domain.Settlement) []domain.DailyTotal {
	series := make([]domain.DailyTotal, domain.StatsWindowDays)
	index := make(map[string]int, domain.StatsWindowDays)
	for i := range series {
		day := start.AddDate(0, 0, i).Format(time.DateOnly)
		series[i].Date = day
		index[day] = i
	}
	for _, row := range rows {
		i, ok := index[row.ProcessedAt.UTC().Format(time.DateOnly)]
		if !ok {
			continue
		}
		series[i].Amount += row.Amount
		series[i].Count++
	}
	return series
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

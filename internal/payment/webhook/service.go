// Package webhook ingests payment processor events.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/givebox/internal/audit/domain"
	"github.com/smallbiznis/givebox/internal/clock"
	"github.com/smallbiznis/givebox/internal/config"
	donationdomain "github.com/smallbiznis/givebox/internal/donation/domain"
	invoicedomain "github.com/smallbiznis/givebox/internal/invoice/domain"
	obsmetrics "github.com/smallbiznis/givebox/internal/observability/metrics"
	orgdomain "github.com/smallbiznis/givebox/internal/organization/domain"
	paymentdomain "github.com/smallbiznis/givebox/internal/payment/domain"
	"github.com/smallbiznis/givebox/pkg/db"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const signatureTolerance = 300 * time.Second

const (
	eventPaymentSucceeded    = "payment_intent.succeeded"
	eventPaymentFailed       = "payment_intent.payment_failed"
	eventAccountUpdated      = "account.updated"
	eventInvoicePaid         = "invoice.payment_succeeded"
	eventSubscriptionCreated = "customer.subscription.created"
	eventSubscriptionUpdated = "customer.subscription.updated"
	eventSubscriptionDeleted = "customer.subscription.deleted"
)

const (
	accountStatusPending = orgdomain.AccountStatusPending
	accountStatusActive  = orgdomain.AccountStatusActive

	organizationMetadataField = "organization_id"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Cfg         config.Config
	Clock       clock.Clock
	GenID       *snowflake.Node
	Repo        paymentdomain.Repository
	DonationSvc donationdomain.Service
	InvoiceSvc  invoicedomain.Service
	OrgSvc      orgdomain.Service
	Audit       auditdomain.Service `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	secret      string
	clock       clock.Clock
	genID       *snowflake.Node
	repo        paymentdomain.Repository
	donationSvc donationdomain.Service
	invoiceSvc  invoicedomain.Service
	orgSvc      orgdomain.Service
	audit       auditdomain.Service
	obsMetrics  *obsmetrics.Metrics
}

// Result describes what happened to one delivery.
type Result struct {
	EventID   string
	EventType string
	Duplicate bool
	Handled   bool
}

func NewService(p Params) *Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("payment.webhook"),
		secret:      strings.TrimSpace(p.Cfg.StripeWebhookSecret),
		clock:       p.Clock,
		genID:       p.GenID,
		repo:        p.Repo,
		donationSvc: p.DonationSvc,
		invoiceSvc:  p.InvoiceSvc,
		orgSvc:      p.OrgSvc,
		audit:       p.Audit,
		obsMetrics:  p.ObsMetrics,
	}
}

// Verify checks the signature header against the raw body and decodes the
// event. Nothing is stored for payloads that fail verification.
func (s *Service) Verify(payload []byte, signature string) (stripe.Event, error) {
	if s.secret == "" {
		return stripe.Event{}, paymentdomain.ErrWebhookNotConfigured
	}
	if strings.TrimSpace(signature) == "" {
		return stripe.Event{}, paymentdomain.ErrMissingSignature
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.secret, webhook.ConstructEventOptions{
		Tolerance:                signatureTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		s.log.Warn("stripe webhook verification failed", zap.Error(err))
		return stripe.Event{}, paymentdomain.ErrInvalidSignature
	}
	if strings.TrimSpace(event.ID) == "" || event.Data == nil {
		return stripe.Event{}, paymentdomain.ErrInvalidEvent
	}
	return event, nil
}

// Ingest verifies and applies one delivery. The event record and the state
// change it causes commit together; a replayed event id is acknowledged
// without being applied again.
func (s *Service) Ingest(ctx context.Context, payload []byte, signature string) (*Result, error) {
	event, err := s.Verify(payload, signature)
	if err != nil {
		return nil, err
	}

	result := &Result{EventID: event.ID, EventType: string(event.Type)}
	var entries []auditdomain.Entry

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()
		record := paymentdomain.EventRecord{
			ID:              s.genID.Generate(),
			Provider:        paymentdomain.ProviderStripe,
			ProviderEventID: event.ID,
			EventType:       string(event.Type),
			Payload:         datatypes.JSON(payload),
			ReceivedAt:      now,
		}
		inserted, err := s.repo.InsertEvent(ctx, tx, &record)
		if err != nil {
			return err
		}
		stored := &record
		if !inserted {
			stored, err = s.repo.FindEvent(ctx, tx, paymentdomain.ProviderStripe, event.ID)
			if err != nil {
				return err
			}
			if stored == nil {
				return paymentdomain.ErrInvalidEvent
			}
			if stored.ProcessedAt != nil {
				return paymentdomain.ErrEventAlreadyProcessed
			}
		}

		handled, produced, err := s.dispatch(ctx, tx, event)
		if err != nil {
			return err
		}
		result.Handled = handled
		entries = produced
		return s.repo.MarkProcessed(ctx, tx, stored.ID, now)
	})
	if errors.Is(err, paymentdomain.ErrEventAlreadyProcessed) {
		s.log.Info("stripe event already processed", zap.String("event_id", event.ID))
		result.Duplicate = true
		s.obsMetrics.RecordWebhookEvent(ctx, paymentdomain.ProviderStripe, result.EventType, "duplicate")
		return result, nil
	}
	if err != nil {
		s.obsMetrics.RecordWebhookEvent(ctx, paymentdomain.ProviderStripe, result.EventType, "error")
		return nil, err
	}

	outcome := "ignored"
	if result.Handled {
		outcome = "processed"
	}
	s.obsMetrics.RecordWebhookEvent(ctx, paymentdomain.ProviderStripe, result.EventType, outcome)
	for _, entry := range entries {
		s.record(ctx, entry)
	}
	return result, nil
}

func (s *Service) dispatch(ctx context.Context, tx *gorm.DB, event stripe.Event) (bool, []auditdomain.Entry, error) {
	switch string(event.Type) {
	case eventPaymentSucceeded:
		return s.paymentSucceeded(ctx, tx, event)
	case eventPaymentFailed:
		return s.paymentFailed(ctx, tx, event)
	case eventAccountUpdated:
		return s.accountUpdated(ctx, tx, event)
	case eventInvoicePaid:
		return s.invoicePaid(ctx, tx, event)
	case eventSubscriptionCreated, eventSubscriptionUpdated, eventSubscriptionDeleted:
		return s.subscriptionChanged(ctx, tx, event)
	default:
		s.log.Debug("ignoring stripe event", zap.String("event_type", string(event.Type)))
		return false, nil, nil
	}
}

func (s *Service) paymentSucceeded(ctx context.Context, tx *gorm.DB, event stripe.Event) (bool, []auditdomain.Entry, error) {
	var intent stripe.PaymentIntent
	if err := decode(event, &intent); err != nil {
		return false, nil, err
	}
	chargeID := ""
	if intent.LatestCharge != nil {
		chargeID = intent.LatestCharge.ID
	}
	settled, err := s.donationSvc.WithTx(tx).MarkSucceeded(ctx, intent.ID, chargeID)
	if err != nil {
		return false, nil, err
	}
	if !settled {
		return true, nil, nil
	}
	return true, []auditdomain.Entry{{
		OrganizationID: intent.Metadata[organizationMetadataField],
		Action:         "donation.succeeded",
		TargetType:     "donation",
		TargetID:       intent.ID,
		Metadata:       map[string]any{"amount": intent.Amount, "charge_id": chargeID},
	}}, nil
}

func (s *Service) paymentFailed(ctx context.Context, tx *gorm.DB, event stripe.Event) (bool, []auditdomain.Entry, error) {
	var intent stripe.PaymentIntent
	if err := decode(event, &intent); err != nil {
		return false, nil, err
	}
	message := donationdomain.DefaultFailureReason
	if intent.LastPaymentError != nil && strings.TrimSpace(intent.LastPaymentError.Msg) != "" {
		message = intent.LastPaymentError.Msg
	}
	failed, err := s.donationSvc.WithTx(tx).MarkFailed(ctx, intent.ID, message)
	if err != nil {
		return false, nil, err
	}
	if !failed {
		return true, nil, nil
	}
	return true, []auditdomain.Entry{{
		OrganizationID: intent.Metadata[organizationMetadataField],
		Action:         "donation.failed",
		TargetType:     "donation",
		TargetID:       intent.ID,
		Metadata:       map[string]any{"error_message": message},
	}}, nil
}

func (s *Service) accountUpdated(ctx context.Context, tx *gorm.DB, event stripe.Event) (bool, []auditdomain.Entry, error) {
	var account stripe.Account
	if err := decode(event, &account); err != nil {
		return false, nil, err
	}
	status := orgdomain.AccountStatus{
		Enabled: account.ChargesEnabled && account.PayoutsEnabled,
		Status:  accountStatusActive,
	}
	if account.Requirements != nil && len(account.Requirements.CurrentlyDue) > 0 {
		status.Status = accountStatusPending
	}
	rows, err := s.orgSvc.WithTx(tx).ApplyAccountStatus(ctx, account.ID, status)
	if err != nil {
		return false, nil, err
	}
	if rows == 0 {
		return true, nil, nil
	}
	return true, []auditdomain.Entry{{
		Action:     "organization.stripe_account.update",
		TargetType: "stripe_account",
		TargetID:   account.ID,
		Metadata:   map[string]any{"enabled": status.Enabled, "status": status.Status},
	}}, nil
}

func (s *Service) invoicePaid(ctx context.Context, tx *gorm.DB, event stripe.Event) (bool, []auditdomain.Entry, error) {
	var inv stripe.Invoice
	if err := decode(event, &inv); err != nil {
		return false, nil, err
	}
	in := invoicedomain.ProcessorInvoice{
		OrganizationID:  strings.TrimSpace(inv.Metadata[organizationMetadataField]),
		StripeInvoiceID: inv.ID,
		InvoiceNumber:   inv.Number,
		AmountPaid:      inv.AmountPaid,
		Currency:        string(inv.Currency),
		DueDate:         unixTime(inv.DueDate),
		PDFURL:          inv.InvoicePDF,
	}
	if inv.Subscription != nil {
		in.StripeSubscriptionID = inv.Subscription.ID
	}
	if inv.StatusTransitions != nil {
		in.PaidAt = unixTime(inv.StatusTransitions.PaidAt)
	}

	var recorded bool
	err := tx.Transaction(func(inner *gorm.DB) error {
		var err error
		recorded, err = s.invoiceSvc.WithTx(inner).RecordPaid(ctx, in)
		return err
	})
	if kind, _ := db.KindOf(err); errors.Is(err, invoicedomain.ErrInvalidOrganization) || kind == db.KindForeignKeyViolation {
		s.log.Warn("paid invoice for unknown organization",
			zap.String("stripe_invoice_id", inv.ID),
			zap.String("organization_id", in.OrganizationID),
		)
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	if !recorded {
		return true, nil, nil
	}
	return true, []auditdomain.Entry{{
		OrganizationID: in.OrganizationID,
		Action:         "invoice.paid",
		TargetType:     "invoice",
		TargetID:       inv.ID,
		Metadata:       map[string]any{"amount": inv.AmountPaid, "currency": in.Currency},
	}}, nil
}

func (s *Service) subscriptionChanged(ctx context.Context, tx *gorm.DB, event stripe.Event) (bool, []auditdomain.Entry, error) {
	var sub stripe.Subscription
	if err := decode(event, &sub); err != nil {
		return false, nil, err
	}
	if sub.Customer == nil || strings.TrimSpace(sub.Customer.ID) == "" {
		return false, nil, paymentdomain.ErrInvalidEvent
	}
	status := string(sub.Status)
	if _, err := s.orgSvc.WithTx(tx).ApplySubscriptionStatus(ctx, sub.Customer.ID, status); err != nil {
		return false, nil, err
	}
	return true, nil, nil
}

func (s *Service) record(ctx context.Context, entry auditdomain.Entry) {
	if s.audit == nil {
		return
	}
	entry.ActorType = auditdomain.ActorTypeWebhook
	entry.ActorID = paymentdomain.ProviderStripe
	if err := s.audit.Record(ctx, entry); err != nil {
		s.log.Warn("failed to record audit entry", zap.String("action", entry.Action), zap.Error(err))
	}
}

func decode(event stripe.Event, out any) error {
	if err := json.Unmarshal(event.Data.Raw, out); err != nil {
		return paymentdomain.ErrInvalidPayload
	}
	return nil
}

func unixTime(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

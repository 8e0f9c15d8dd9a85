// Package webhook applies identity provider user events to the local users
// table.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/givebox/internal/clock"
	"github.com/smallbiznis/givebox/internal/config"
	obsmetrics "github.com/smallbiznis/givebox/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/givebox/internal/payment/domain"
	"github.com/smallbiznis/givebox/internal/user/domain"
	svix "github.com/svix/svix-webhooks/go"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"
)

var signatureHeaders = []string{"svix-id", "svix-timestamp", "svix-signature"}

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Cfg        config.Config
	Clock      clock.Clock
	GenID      *snowflake.Node
	Events     paymentdomain.Repository
	UserSvc    domain.Service
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	verifier   *svix.Webhook
	clock      clock.Clock
	genID      *snowflake.Node
	events     paymentdomain.Repository
	userSvc    domain.Service
	obsMetrics *obsmetrics.Metrics
}

type Result struct {
	EventType string
	Duplicate bool
	Handled   bool
}

// event is the envelope the identity provider posts.
type event struct {
	Type string    `json:"type"`
	Data eventUser `json:"data"`
}

type eventUser struct {
	ID                    string         `json:"id"`
	FirstName             *string        `json:"first_name"`
	LastName              *string        `json:"last_name"`
	ImageURL              *string        `json:"image_url"`
	PrimaryEmailAddressID *string        `json:"primary_email_address_id"`
	EmailAddresses        []emailAddress `json:"email_addresses"`
}

type emailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

// NewService builds the handler. A missing or malformed secret leaves the
// endpoint closed: every delivery is rejected as not configured.
func NewService(p Params) *Service {
	log := p.Log.Named("user.webhook")
	s := &Service{
		db:         p.DB,
		log:        log,
		clock:      p.Clock,
		genID:      p.GenID,
		events:     p.Events,
		userSvc:    p.UserSvc,
		obsMetrics: p.ObsMetrics,
	}
	if secret := strings.TrimSpace(p.Cfg.ClerkWebhookSecret); secret != "" {
		verifier, err := svix.NewWebhook(secret)
		if err != nil {
			log.Error("invalid identity webhook secret", zap.Error(err))
		} else {
			s.verifier = verifier
		}
	}
	return s
}

// Ingest verifies the svix signature, then applies the event once per
// svix-id.
func (s *Service) Ingest(ctx context.Context, payload []byte, headers http.Header) (*Result, error) {
	if s.verifier == nil {
		return nil, paymentdomain.ErrWebhookNotConfigured
	}
	for _, name := range signatureHeaders {
		if strings.TrimSpace(headers.Get(name)) == "" {
			return nil, paymentdomain.ErrMissingHeaders
		}
	}
	if err := s.verifier.Verify(payload, headers); err != nil {
		s.log.Warn("identity webhook verification failed", zap.Error(err))
		return nil, paymentdomain.ErrInvalidSignature
	}

	var evt event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	evt.Type = strings.TrimSpace(evt.Type)
	if evt.Type == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	result := &Result{EventType: evt.Type}
	deliveryID := strings.TrimSpace(headers.Get("svix-id"))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()
		record := paymentdomain.EventRecord{
			ID:              s.genID.Generate(),
			Provider:        paymentdomain.ProviderClerk,
			ProviderEventID: deliveryID,
			EventType:       evt.Type,
			Payload:         datatypes.JSON(payload),
			ReceivedAt:      now,
		}
		inserted, err := s.events.InsertEvent(ctx, tx, &record)
		if err != nil {
			return err
		}
		stored := &record
		if !inserted {
			stored, err = s.events.FindEvent(ctx, tx, paymentdomain.ProviderClerk, deliveryID)
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

		handled, err := s.apply(ctx, s.userSvc.WithTx(tx), evt)
		if err != nil {
			return err
		}
		result.Handled = handled
		return s.events.MarkProcessed(ctx, tx, stored.ID, now)
	})
	if errors.Is(err, paymentdomain.ErrEventAlreadyProcessed) {
		s.log.Info("identity event already processed", zap.String("svix_id", deliveryID))
		result.Duplicate = true
		s.obsMetrics.RecordWebhookEvent(ctx, paymentdomain.ProviderClerk, evt.Type, "duplicate")
		return result, nil
	}
	if err != nil {
		s.obsMetrics.RecordWebhookEvent(ctx, paymentdomain.ProviderClerk, evt.Type, "error")
		return nil, err
	}

	outcome := "ignored"
	if result.Handled {
		outcome = "processed"
	}
	s.obsMetrics.RecordWebhookEvent(ctx, paymentdomain.ProviderClerk, evt.Type, outcome)
	return result, nil
}

func (s *Service) apply(ctx context.Context, users domain.Service, evt event) (bool, error) {
	identity := evt.Data.identity()
	switch evt.Type {
	case EventUserCreated:
		inserted, err := users.SyncCreated(ctx, identity)
		if err != nil {
			return false, err
		}
		if inserted {
			s.log.Info("user created from identity provider", zap.String("user_id", identity.ID))
		}
		return true, nil
	case EventUserUpdated:
		updated, err := users.SyncUpdated(ctx, identity)
		if err != nil {
			return false, err
		}
		if !updated {
			s.log.Debug("identity update for unknown user", zap.String("user_id", identity.ID))
		}
		return true, nil
	case EventUserDeleted:
		deleted, err := users.SyncDeleted(ctx, identity.ID)
		if err != nil {
			return false, err
		}
		if !deleted {
			s.log.Debug("identity delete for unknown user", zap.String("user_id", identity.ID))
		}
		return true, nil
	default:
		s.log.Debug("ignoring identity event", zap.String("event_type", evt.Type))
		return false, nil
	}
}

// identity picks the primary email address, falling back to the first one.
func (u eventUser) identity() domain.Identity {
	identity := domain.Identity{
		ID:        strings.TrimSpace(u.ID),
		FirstName: deref(u.FirstName),
		LastName:  deref(u.LastName),
		AvatarURL: deref(u.ImageURL),
	}
	primary := deref(u.PrimaryEmailAddressID)
	for _, addr := range u.EmailAddresses {
		if primary != "" && addr.ID == primary {
			identity.Email = addr.EmailAddress
			return identity
		}
	}
	if len(u.EmailAddresses) > 0 {
		identity.Email = u.EmailAddresses[0].EmailAddress
	}
	return identity
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}

package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	auditdomain "github.com/smallbiznis/givebox/internal/audit/domain"
	"github.com/smallbiznis/givebox/internal/clock"
	"github.com/smallbiznis/givebox/internal/organization/domain"
	userdomain "github.com/smallbiznis/givebox/internal/user/domain"
	"github.com/smallbiznis/givebox/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Repo     domain.Repository
	UserRepo userdomain.Repository
	Audit    auditdomain.Service `optional:"true"`
}

type service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	repo     domain.Repository
	userRepo userdomain.Repository
	audit    auditdomain.Service
}

func NewService(p Params) domain.Service {
	return &service{
		db:       p.DB,
		log:      p.Log.Named("organization.service"),
		clock:    p.Clock,
		repo:     p.Repo,
		userRepo: p.UserRepo,
		audit:    p.Audit,
	}
}

// WithTx returns a copy whose reads and writes run on tx. Audit entries
// recorded through the copy still use their own connection.
func (s *service) WithTx(tx *gorm.DB) domain.Service {
	cp := *s
	cp.db = tx
	cp.repo = s.repo.WithTx(tx)
	cp.userRepo = s.userRepo.WithTx(tx)
	return &cp
}

// Create inserts the organization and records owner as its owner in one
// transaction. An owner already attached to another organization keeps that
// membership; owner_id still grants ownership of the new organization.
func (s *service) Create(ctx context.Context, owner domain.Owner, req domain.CreateRequest) (*domain.Organization, error) {
	if strings.TrimSpace(owner.UserID) == "" {
		return nil, domain.ErrInvalidOwner
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	now := s.clock.Now()
	id := uuid.NewString()
	org := &domain.Organization{
		ID:                 id,
		OwnerID:            owner.UserID,
		Name:               name,
		Slug:               makeSlug(name, id),
		LegalName:          strings.TrimSpace(req.LegalName),
		DisplayName:        strings.TrimSpace(req.DisplayName),
		Email:              strings.TrimSpace(req.Email),
		Website:            strings.TrimSpace(req.Website),
		Description:        strings.TrimSpace(req.Description),
		Phone:              strings.TrimSpace(req.Phone),
		Address:            strings.TrimSpace(req.Address),
		TermsOfServiceURL:  strings.TrimSpace(req.TermsOfServiceURL),
		PrivacyPolicyURL:   strings.TrimSpace(req.PrivacyPolicyURL),
		SubscriptionPlan:   strings.TrimSpace(req.SubscriptionPlan),
		SubscriptionStatus: strings.TrimSpace(req.SubscriptionStatus),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	email := owner.Email
	if email == "" {
		email = org.Email
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, org); err != nil {
			return err
		}
		_, err := s.userRepo.WithTx(tx).AssignOwner(ctx, owner.UserID, email, org.ID, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, owner.UserID, "organization.create", org.ID, map[string]any{"name": org.Name})
	return org, nil
}

// Onboard creates the caller's first organization on a trial subscription.
func (s *service) Onboard(ctx context.Context, owner domain.Owner, req domain.OnboardingRequest) (*domain.Organization, error) {
	user, err := s.userRepo.GetByID(ctx, owner.UserID)
	if err != nil && !errors.Is(err, userdomain.ErrNotFound) {
		return nil, err
	}
	if user != nil && user.HasOrganization() {
		return nil, domain.ErrAlreadyOnboarded
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		return nil, domain.ErrInvalidName
	}
	return s.Create(ctx, owner, domain.CreateRequest{
		Name:               displayName,
		DisplayName:        displayName,
		LegalName:          req.LegalName,
		Email:              req.Email,
		TermsOfServiceURL:  req.TermsOfServiceURL,
		SubscriptionStatus: domain.SubscriptionTrial,
	})
}

func (s *service) GetByID(ctx context.Context, id string) (*domain.Organization, error) {
	id = strings.TrimSpace(id)
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}

func (s *service) List(ctx context.Context, filter domain.ListFilter) (domain.ListResponse, error) {
	orgs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return domain.ListResponse{}, err
	}
	if orgs == nil {
		orgs = []domain.Organization{}
	}
	return domain.ListResponse{
		PageInfo:      pagination.BuildPageInfo(filter.Pagination, total),
		Organizations: orgs,
	}, nil
}

func (s *service) Update(ctx context.Context, id string, req domain.UpdateRequest) (*domain.Organization, error) {
	fields := updateFields(req)
	if len(fields) == 0 {
		return nil, domain.ErrEmptyUpdate
	}
	if name, ok := fields["name"].(string); ok && name == "" {
		return nil, domain.ErrInvalidName
	}
	fields["updated_at"] = s.clock.Now()

	if err := s.repo.Update(ctx, id, fields); err != nil {
		return nil, err
	}
	org, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	changed := make([]string, 0, len(fields))
	for key := range fields {
		if key != "updated_at" {
			changed = append(changed, key)
		}
	}
	s.record(ctx, "", "organization.update", id, map[string]any{"fields": changed})
	return org, nil
}

func (s *service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, "", "organization.delete", id, nil)
	return nil
}

func (s *service) AttachStripeAccount(ctx context.Context, id, accountID string) error {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return domain.ErrInvalidAccount
	}
	attached, err := s.repo.AttachStripeAccount(ctx, id, accountID)
	if err != nil {
		return err
	}
	if !attached {
		if _, err := s.repo.GetByID(ctx, id); err != nil {
			return err
		}
		return domain.ErrStripeAccountExists
	}
	s.record(ctx, "", "organization.stripe_account.connect", id, map[string]any{"stripe_account_id": accountID})
	return nil
}

func (s *service) SetOnboardingComplete(ctx context.Context, id string, complete bool) error {
	return s.repo.SetOnboardingComplete(ctx, id, complete)
}

func (s *service) ApplyAccountStatus(ctx context.Context, accountID string, status domain.AccountStatus) (int64, error) {
	rows, err := s.repo.UpdateAccountStatusByStripeAccount(ctx, accountID, status)
	if err != nil {
		return 0, err
	}
	if rows == 0 {
		s.log.Warn("no organization for stripe account", zap.String("stripe_account_id", accountID))
	}
	return rows, nil
}

func (s *service) ApplySubscriptionStatus(ctx context.Context, customerID, status string) (int64, error) {
	rows, err := s.repo.UpdateSubscriptionStatusByCustomer(ctx, customerID, status)
	if err != nil {
		return 0, err
	}
	if rows == 0 {
		s.log.Warn("no organization for stripe customer", zap.String("stripe_customer_id", customerID))
	}
	return rows, nil
}

func (s *service) record(ctx context.Context, actorID, action, orgID string, metadata map[string]any) {
	if s.audit == nil {
		return
	}
	entry := auditdomain.Entry{
		OrganizationID: orgID,
		ActorID:        actorID,
		Action:         action,
		TargetType:     "organization",
		TargetID:       orgID,
		Metadata:       metadata,
	}
	if actorID != "" {
		entry.ActorType = auditdomain.ActorTypeUser
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.log.Warn("failed to record audit entry", zap.String("action", action), zap.Error(err))
	}
}

func updateFields(req domain.UpdateRequest) map[string]any {
	fields := map[string]any{}
	set := func(column string, value *string) {
		if value != nil {
			fields[column] = strings.TrimSpace(*value)
		}
	}
	set("name", req.Name)
	set("legal_name", req.LegalName)
	set("display_name", req.DisplayName)
	set("email", req.Email)
	set("website", req.Website)
	set("description", req.Description)
	set("logo_url", req.LogoURL)
	set("phone", req.Phone)
	set("address", req.Address)
	set("terms_of_service_url", req.TermsOfServiceURL)
	set("privacy_policy_url", req.PrivacyPolicyURL)
	return fields
}

func makeSlug(name, id string) string {
	base := slug.Make(name)
	if base == "" {
		base = "org"
	}
	return base + "-" + strings.ReplaceAll(id, "-", "")[:8]
}

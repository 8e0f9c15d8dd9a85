package connect

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/smallbiznis/givebox/internal/config"
	orgdomain "github.com/smallbiznis/givebox/internal/organization/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	settingsPath    = "/dashboard/settings"
	onboardingQuery = "?stripe_onboarding=success"
	createdVia      = "givebox"
	defaultCurrency = "usd"
)

var (
	ErrAccountExists     = errors.New("stripe_account_exists")
	ErrNoAccount         = errors.New("stripe_account_missing")
	ErrOnboardingPending = errors.New("stripe_onboarding_incomplete")
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrInvalidAccountID  = errors.New("invalid_account_id")
)

// ProcessorError wraps a failed processor call with a caller-safe message.
type ProcessorError struct {
	Op      string
	Message string
	Err     error
}

func (e *ProcessorError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
}

func (e *ProcessorError) Unwrap() error { return e.Err }

type CreateAccountRequest struct {
	Email            string
	OrganizationName string
	RefreshURL       string
	ReturnURL        string
}

type CreateAccountResult struct {
	AccountID     string `json:"accountId"`
	OnboardingURL string `json:"onboardingUrl"`
}

type OnboardingStatus struct {
	OnboardingComplete bool   `json:"onboardingComplete"`
	ChargesEnabled     bool   `json:"chargesEnabled"`
	PayoutsEnabled     bool   `json:"payoutsEnabled"`
	RequiresAction     bool   `json:"requiresAction"`
	OnboardingURL      string `json:"onboardingUrl,omitempty"`
}

type PaymentIntentRequest struct {
	Amount               int64
	Currency             string
	ConnectedAccountID   string
	ApplicationFeeAmount int64
	Metadata             map[string]string
}

type PaymentIntentResult struct {
	ID           string `json:"id"`
	ClientSecret string `json:"clientSecret"`
}

type Params struct {
	fx.In

	Cfg     config.Config
	Log     *zap.Logger
	Gateway Gateway
	OrgSvc  orgdomain.Service
}

type Service struct {
	appURL  string
	log     *zap.Logger
	gateway Gateway
	orgSvc  orgdomain.Service
}

func NewService(p Params) *Service {
	return &Service{
		appURL:  strings.TrimRight(p.Cfg.AppURL, "/"),
		log:     p.Log.Named("payment.connect"),
		gateway: p.Gateway,
		orgSvc:  p.OrgSvc,
	}
}

// CreateAccount opens a standard connected account and its onboarding link.
func (s *Service) CreateAccount(ctx context.Context, req CreateAccountRequest) (*CreateAccountResult, error) {
	acct, err := s.gateway.CreateAccount(ctx, AccountParams{
		Email:            req.Email,
		OrganizationName: req.OrganizationName,
		Metadata: map[string]string{
			"organization_name": req.OrganizationName,
			"created_via":       createdVia,
		},
	})
	if err != nil {
		return nil, s.fail("create_account", "Failed to create Stripe Connect account", err)
	}

	url, err := s.gateway.CreateOnboardingLink(ctx, LinkParams{
		AccountID:  acct.ID,
		RefreshURL: req.RefreshURL,
		ReturnURL:  req.ReturnURL,
	})
	if err != nil {
		return nil, s.fail("create_account", "Failed to create Stripe Connect account", err)
	}
	return &CreateAccountResult{AccountID: acct.ID, OnboardingURL: url}, nil
}

// CheckOnboardingStatus reads the account state. Incomplete accounts get a
// fresh onboarding link on every check.
func (s *Service) CheckOnboardingStatus(ctx context.Context, accountID string) (*OnboardingStatus, error) {
	const msg = "Failed to check account onboarding status"
	acct, err := s.gateway.GetAccount(ctx, accountID)
	if err != nil {
		return nil, s.fail("check_onboarding_status", msg, err)
	}

	complete := acct.ChargesEnabled && acct.PayoutsEnabled
	status := &OnboardingStatus{
		OnboardingComplete: complete,
		ChargesEnabled:     acct.ChargesEnabled,
		PayoutsEnabled:     acct.PayoutsEnabled,
		RequiresAction:     !complete && len(acct.CurrentlyDue) > 0,
	}
	if complete {
		return status, nil
	}

	url, err := s.gateway.CreateOnboardingLink(ctx, LinkParams{
		AccountID:  accountID,
		RefreshURL: s.refreshURL(),
		ReturnURL:  s.returnURL(),
	})
	if err != nil {
		return nil, s.fail("check_onboarding_status", msg, err)
	}
	status.OnboardingURL = url
	return status, nil
}

func (s *Service) CreateLoginLink(ctx context.Context, accountID string) (string, error) {
	url, err := s.gateway.CreateLoginLink(ctx, accountID)
	if err != nil {
		return "", s.fail("create_login_link", "Failed to create dashboard login link", err)
	}
	return url, nil
}

// CreatePaymentIntent charges directly on the connected account.
func (s *Service) CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (*PaymentIntentResult, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if strings.TrimSpace(req.ConnectedAccountID) == "" {
		return nil, ErrInvalidAccountID
	}
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = defaultCurrency
	}

	intent, err := s.gateway.CreatePaymentIntent(ctx, IntentParams{
		Amount:               req.Amount,
		Currency:             currency,
		ConnectedAccountID:   req.ConnectedAccountID,
		ApplicationFeeAmount: req.ApplicationFeeAmount,
		Metadata:             req.Metadata,
	})
	if err != nil {
		return nil, s.fail("create_payment_intent", "Failed to create payment intent", err)
	}
	return &PaymentIntentResult{ID: intent.ID, ClientSecret: intent.ClientSecret}, nil
}

func (s *Service) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	acct, err := s.gateway.GetAccount(ctx, accountID)
	if err != nil {
		return nil, s.fail("get_account", "Failed to retrieve Stripe account", err)
	}
	return acct, nil
}

// Ping reports whether the processor accepts the platform credentials.
func (s *Service) Ping(ctx context.Context) error {
	return s.gateway.Ping(ctx)
}

// ConnectOrganization creates the organization's connected account and
// attaches it. An organization holds at most one account.
func (s *Service) ConnectOrganization(ctx context.Context, org *orgdomain.Organization, email string) (*CreateAccountResult, error) {
	if org.HasStripeAccount() {
		return nil, ErrAccountExists
	}
	if strings.TrimSpace(email) == "" {
		email = org.Email
	}
	name := org.DisplayName
	if strings.TrimSpace(name) == "" {
		name = org.Name
	}

	result, err := s.CreateAccount(ctx, CreateAccountRequest{
		Email:            email,
		OrganizationName: name,
		RefreshURL:       s.refreshURL(),
		ReturnURL:        s.returnURL(),
	})
	if err != nil {
		return nil, err
	}

	if err := s.orgSvc.AttachStripeAccount(ctx, org.ID, result.AccountID); err != nil {
		if errors.Is(err, orgdomain.ErrStripeAccountExists) {
			s.log.Warn("organization connected concurrently, orphaned stripe account",
				zap.String("organization_id", org.ID),
				zap.String("stripe_account_id", result.AccountID),
			)
			return nil, ErrAccountExists
		}
		return nil, err
	}
	return result, nil
}

// SyncOnboarding checks the organization's account and persists the
// onboarding flag when it changed.
func (s *Service) SyncOnboarding(ctx context.Context, org *orgdomain.Organization) (*OnboardingStatus, error) {
	if !org.HasStripeAccount() {
		return nil, ErrNoAccount
	}
	status, err := s.CheckOnboardingStatus(ctx, *org.StripeAccountID)
	if err != nil {
		return nil, err
	}
	if status.OnboardingComplete != org.StripeOnboardingComplete {
		if err := s.orgSvc.SetOnboardingComplete(ctx, org.ID, status.OnboardingComplete); err != nil {
			return nil, err
		}
	}
	return status, nil
}

// DashboardLink returns a login link for an onboarded organization.
func (s *Service) DashboardLink(ctx context.Context, org *orgdomain.Organization) (string, error) {
	if !org.HasStripeAccount() {
		return "", ErrNoAccount
	}
	if !org.StripeOnboardingComplete {
		return "", ErrOnboardingPending
	}
	return s.CreateLoginLink(ctx, *org.StripeAccountID)
}

func (s *Service) refreshURL() string {
	return s.appURL + settingsPath
}

func (s *Service) returnURL() string {
	return s.appURL + settingsPath + onboardingQuery
}

func (s *Service) fail(op, message string, err error) error {
	s.log.Error("processor call failed", zap.String("op", op), zap.Error(err))
	return &ProcessorError{Op: op, Message: message, Err: err}
}

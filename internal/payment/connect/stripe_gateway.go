package connect

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/smallbiznis/givebox/internal/config"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

const stripeRequestTimeout = 30 * time.Second

type stripeGateway struct {
	api *client.API
}

// NewStripeGateway builds a processor client with internal retries disabled.
// STRIPE_API_BASE overrides the API host, for local mocks.
func NewStripeGateway(cfg config.Config) Gateway {
	httpClient := &http.Client{Timeout: stripeRequestTimeout}
	backendConfig := func() *stripe.BackendConfig {
		c := &stripe.BackendConfig{
			HTTPClient:        httpClient,
			MaxNetworkRetries: stripe.Int64(0),
			LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
		}
		if base := strings.TrimSpace(cfg.StripeAPIBase); base != "" {
			c.URL = stripe.String(base)
		}
		return c
	}
	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig()),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendConfig()),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendConfig()),
	}

	api := &client.API{}
	api.Init(cfg.StripeSecretKey, backends)
	return &stripeGateway{api: api}
}

func (g *stripeGateway) CreateAccount(ctx context.Context, p AccountParams) (*Account, error) {
	params := &stripe.AccountParams{
		Type:  stripe.String(string(stripe.AccountTypeStandard)),
		Email: stripe.String(p.Email),
		BusinessProfile: &stripe.AccountBusinessProfileParams{
			Name: stripe.String(p.OrganizationName),
		},
	}
	params.Context = ctx
	for key, value := range p.Metadata {
		params.AddMetadata(key, value)
	}
	acct, err := g.api.Accounts.New(params)
	if err != nil {
		return nil, err
	}
	return toAccount(acct), nil
}

func (g *stripeGateway) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	params := &stripe.AccountParams{}
	params.Context = ctx
	acct, err := g.api.Accounts.GetByID(accountID, params)
	if err != nil {
		return nil, err
	}
	return toAccount(acct), nil
}

func (g *stripeGateway) CreateOnboardingLink(ctx context.Context, p LinkParams) (string, error) {
	params := &stripe.AccountLinkParams{
		Account:    stripe.String(p.AccountID),
		RefreshURL: stripe.String(p.RefreshURL),
		ReturnURL:  stripe.String(p.ReturnURL),
		Type:       stripe.String("account_onboarding"),
	}
	params.Context = ctx
	link, err := g.api.AccountLinks.New(params)
	if err != nil {
		return "", err
	}
	return link.URL, nil
}

func (g *stripeGateway) CreateLoginLink(ctx context.Context, accountID string) (string, error) {
	params := &stripe.LoginLinkParams{Account: stripe.String(accountID)}
	params.Context = ctx
	link, err := g.api.LoginLinks.New(params)
	if err != nil {
		return "", err
	}
	return link.URL, nil
}

func (g *stripeGateway) CreatePaymentIntent(ctx context.Context, p IntentParams) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(p.Amount),
		Currency: stripe.String(p.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if p.ApplicationFeeAmount > 0 {
		params.ApplicationFeeAmount = stripe.Int64(p.ApplicationFeeAmount)
	}
	params.Context = ctx
	params.SetStripeAccount(p.ConnectedAccountID)
	for key, value := range p.Metadata {
		params.AddMetadata(key, value)
	}
	intent, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, err
	}
	return &Intent{ID: intent.ID, ClientSecret: intent.ClientSecret}, nil
}

func (g *stripeGateway) Ping(ctx context.Context) error {
	params := &stripe.BalanceParams{}
	params.Context = ctx
	_, err := g.api.Balance.Get(params)
	return err
}

func toAccount(acct *stripe.Account) *Account {
	out := &Account{
		ID:             acct.ID,
		Email:          acct.Email,
		ChargesEnabled: acct.ChargesEnabled,
		PayoutsEnabled: acct.PayoutsEnabled,
	}
	if acct.Requirements != nil {
		out.CurrentlyDue = acct.Requirements.CurrentlyDue
	}
	return out
}

// Package connect talks to the payment processor on behalf of organizations
// with connected accounts.
package connect

import "context"

// Account is the subset of a connected account the service reads.
type Account struct {
	ID             string
	Email          string
	ChargesEnabled bool
	PayoutsEnabled bool
	CurrentlyDue   []string
}

type AccountParams struct {
	Email            string
	OrganizationName string
	Metadata         map[string]string
}

type LinkParams struct {
	AccountID  string
	RefreshURL string
	ReturnURL  string
}

type IntentParams struct {
	Amount               int64
	Currency             string
	ConnectedAccountID   string
	ApplicationFeeAmount int64
	Metadata             map[string]string
}

type Intent struct {
	ID           string
	ClientSecret string
}

// Gateway is the processor API used by the service.
type Gateway interface {
	CreateAccount(ctx context.Context, params AccountParams) (*Account, error)
	GetAccount(ctx context.Context, accountID string) (*Account, error)
	CreateOnboardingLink(ctx context.Context, params LinkParams) (string, error)
	CreateLoginLink(ctx context.Context, accountID string) (string, error)
	CreatePaymentIntent(ctx context.Context, params IntentParams) (*Intent, error)
	// Ping checks that the platform credentials work.
	Ping(ctx context.Context) error
}

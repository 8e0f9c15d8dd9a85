package connect

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/givebox/internal/clock"
	"github.com/smallbiznis/givebox/internal/config"
	orgdomain "github.com/smallbiznis/givebox/internal/organization/domain"
	orgrepository "github.com/smallbiznis/givebox/internal/organization/repository"
	orgservice "github.com/smallbiznis/givebox/internal/organization/service"
	userrepository "github.com/smallbiznis/givebox/internal/user/repository"
	"github.com/smallbiznis/givebox/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeGateway struct {
	account    Account
	accountErr error
	linkErr    error
	intentErr  error
	created    []AccountParams
	links      []LinkParams
	intents    []IntentParams
	loginCalls int
}

func (f *fakeGateway) CreateAccount(_ context.Context, params AccountParams) (*Account, error) {
	f.created = append(f.created, params)
	if f.accountErr != nil {
		return nil, f.accountErr
	}
	acct := f.account
	return &acct, nil
}

func (f *fakeGateway) GetAccount(_ context.Context, accountID string) (*Account, error) {
	if f.accountErr != nil {
		return nil, f.accountErr
	}
	acct := f.account
	acct.ID = accountID
	return &acct, nil
}

func (f *fakeGateway) CreateOnboardingLink(_ context.Context, params LinkParams) (string, error) {
	f.links = append(f.links, params)
	if f.linkErr != nil {
		return "", f.linkErr
	}
	return "https://connect.example/onboarding/" + params.AccountID, nil
}

func (f *fakeGateway) CreateLoginLink(_ context.Context, accountID string) (string, error) {
	f.loginCalls++
	return "https://connect.example/login/" + accountID, nil
}

func (f *fakeGateway) CreatePaymentIntent(_ context.Context, params IntentParams) (*Intent, error) {
	f.intents = append(f.intents, params)
	if f.intentErr != nil {
		return nil, f.intentErr
	}
	return &Intent{ID: "pi_1", ClientSecret: "pi_1_secret"}, nil
}

func (f *fakeGateway) Ping(context.Context) error { return f.accountErr }

func newTestService(t *testing.T, gw *fakeGateway) (*Service, orgdomain.Service) {
	t.Helper()
	conn := dbtest.Open(t)
	orgSvc := orgservice.NewService(orgservice.Params{
		DB:       conn,
		Log:      zap.NewNop(),
		Clock:    clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		Repo:     orgrepository.NewRepository(conn),
		UserRepo: userrepository.NewRepository(conn),
	})
	svc := NewService(Params{
		Cfg:     config.Config{AppURL: "https://app.example.org/"},
		Log:     zap.NewNop(),
		Gateway: gw,
		OrgSvc:  orgSvc,
	})
	return svc, orgSvc
}

func createOrg(t *testing.T, orgSvc orgdomain.Service) *orgdomain.Organization {
	t.Helper()
	org, err := orgSvc.Create(context.Background(), orgdomain.Owner{UserID: "user_1", Email: "owner@acme.org"}, orgdomain.CreateRequest{
		Name:        "Acme",
		DisplayName: "Acme Relief",
		Email:       "hello@acme.org",
	})
	require.NoError(t, err)
	return org
}

func TestCreateAccountTagsMetadata(t *testing.T) {
	gw := &fakeGateway{account: Account{ID: "acct_1"}}
	svc, _ := newTestService(t, gw)

	result, err := svc.CreateAccount(context.Background(), CreateAccountRequest{
		Email:            "a@acme.org",
		OrganizationName: "Acme",
		RefreshURL:       "https://r",
		ReturnURL:        "https://s",
	})
	require.NoError(t, err)
	assert.Equal(t, "acct_1", result.AccountID)
	assert.Equal(t, "https://connect.example/onboarding/acct_1", result.OnboardingURL)

	require.Len(t, gw.created, 1)
	assert.Equal(t, "Acme", gw.created[0].Metadata["organization_name"])
	assert.Equal(t, "givebox", gw.created[0].Metadata["created_via"])
}

func TestCreateAccountWrapsProcessorError(t *testing.T) {
	gw := &fakeGateway{accountErr: errors.New("card_declined")}
	svc, _ := newTestService(t, gw)

	_, err := svc.CreateAccount(context.Background(), CreateAccountRequest{Email: "a@acme.org"})
	var perr *ProcessorError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "Failed to create Stripe Connect account", perr.Message)
}

func TestCheckOnboardingStatus(t *testing.T) {
	cases := []struct {
		name           string
		account        Account
		complete       bool
		requiresAction bool
		wantLink       bool
	}{
		{
			name:     "complete",
			account:  Account{ChargesEnabled: true, PayoutsEnabled: true},
			complete: true,
		},
		{
			name:           "missing requirements",
			account:        Account{ChargesEnabled: true, CurrentlyDue: []string{"external_account"}},
			requiresAction: true,
			wantLink:       true,
		},
		{
			name:     "pending review",
			account:  Account{PayoutsEnabled: true},
			wantLink: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw := &fakeGateway{account: tc.account}
			svc, _ := newTestService(t, gw)

			status, err := svc.CheckOnboardingStatus(context.Background(), "acct_9")
			require.NoError(t, err)
			assert.Equal(t, tc.complete, status.OnboardingComplete)
			assert.Equal(t, tc.requiresAction, status.RequiresAction)
			if !tc.wantLink {
				assert.Empty(t, status.OnboardingURL)
				assert.Empty(t, gw.links)
				return
			}
			assert.NotEmpty(t, status.OnboardingURL)
			require.Len(t, gw.links, 1)
			assert.Equal(t, "https://app.example.org/dashboard/settings", gw.links[0].RefreshURL)
			assert.Equal(t, "https://app.example.org/dashboard/settings?stripe_onboarding=success", gw.links[0].ReturnURL)
		})
	}
}

func TestCheckOnboardingStatusFreshLinkEachTime(t *testing.T) {
	gw := &fakeGateway{account: Account{}}
	svc, _ := newTestService(t, gw)

	for i := 0; i < 3; i++ {
		_, err := svc.CheckOnboardingStatus(context.Background(), "acct_9")
		require.NoError(t, err)
	}
	assert.Len(t, gw.links, 3)
}

func TestCreatePaymentIntent(t *testing.T) {
	gw := &fakeGateway{}
	svc, _ := newTestService(t, gw)
	ctx := context.Background()

	_, err := svc.CreatePaymentIntent(ctx, PaymentIntentRequest{Amount: 0, ConnectedAccountID: "acct_1"})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.CreatePaymentIntent(ctx, PaymentIntentRequest{Amount: 500})
	assert.ErrorIs(t, err, ErrInvalidAccountID)

	result, err := svc.CreatePaymentIntent(ctx, PaymentIntentRequest{Amount: 500, ConnectedAccountID: "acct_1"})
	require.NoError(t, err)
	assert.Equal(t, "pi_1_secret", result.ClientSecret)
	require.Len(t, gw.intents, 1)
	assert.Equal(t, "usd", gw.intents[0].Currency)

	gw.intentErr = errors.New("boom")
	_, err = svc.CreatePaymentIntent(ctx, PaymentIntentRequest{Amount: 500, ConnectedAccountID: "acct_1"})
	var perr *ProcessorError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "Failed to create payment intent", perr.Message)
}

func TestConnectOrganizationOnlyOnce(t *testing.T) {
	gw := &fakeGateway{account: Account{ID: "acct_1"}}
	svc, orgSvc := newTestService(t, gw)
	ctx := context.Background()
	org := createOrg(t, orgSvc)

	result, err := svc.ConnectOrganization(ctx, org, "")
	require.NoError(t, err)
	assert.Equal(t, "acct_1", result.AccountID)
	require.Len(t, gw.created, 1)
	assert.Equal(t, "hello@acme.org", gw.created[0].Email)
	assert.Equal(t, "Acme Relief", gw.created[0].OrganizationName)

	stored, err := orgSvc.GetByID(ctx, org.ID)
	require.NoError(t, err)
	require.True(t, stored.HasStripeAccount())

	_, err = svc.ConnectOrganization(ctx, stored, "")
	assert.ErrorIs(t, err, ErrAccountExists)
	assert.Len(t, gw.created, 1)
}

func TestSyncOnboardingPersistsChange(t *testing.T) {
	gw := &fakeGateway{account: Account{ID: "acct_1", ChargesEnabled: true, PayoutsEnabled: true}}
	svc, orgSvc := newTestService(t, gw)
	ctx := context.Background()
	org := createOrg(t, orgSvc)

	_, err := svc.SyncOnboarding(ctx, org)
	assert.ErrorIs(t, err, ErrNoAccount)

	require.NoError(t, orgSvc.AttachStripeAccount(ctx, org.ID, "acct_1"))
	org, err = orgSvc.GetByID(ctx, org.ID)
	require.NoError(t, err)

	_, err = svc.DashboardLink(ctx, org)
	assert.ErrorIs(t, err, ErrOnboardingPending)

	status, err := svc.SyncOnboarding(ctx, org)
	require.NoError(t, err)
	assert.True(t, status.OnboardingComplete)

	org, err = orgSvc.GetByID(ctx, org.ID)
	require.NoError(t, err)
	assert.True(t, org.StripeOnboardingComplete)

	url, err := svc.DashboardLink(ctx, org)
	require.NoError(t, err)
	assert.Equal(t, "https://connect.example/login/acct_1", url)
}

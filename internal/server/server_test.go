package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	auditrepository "github.com/smallbiznis/givebox/internal/audit/repository"
	auditservice "github.com/smallbiznis/givebox/internal/audit/service"
	"github.com/smallbiznis/givebox/internal/auth"
	"github.com/smallbiznis/givebox/internal/authorization"
	"github.com/smallbiznis/givebox/internal/clock"
	"github.com/smallbiznis/givebox/internal/config"
	donationrepository "github.com/smallbiznis/givebox/internal/donation/repository"
	donationservice "github.com/smallbiznis/givebox/internal/donation/service"
	"github.com/smallbiznis/givebox/internal/health"
	invoicerepository "github.com/smallbiznis/givebox/internal/invoice/repository"
	invoiceservice "github.com/smallbiznis/givebox/internal/invoice/service"
	orgdomain "github.com/smallbiznis/givebox/internal/organization/domain"
	orgrepository "github.com/smallbiznis/givebox/internal/organization/repository"
	orgservice "github.com/smallbiznis/givebox/internal/organization/service"
	"github.com/smallbiznis/givebox/internal/payment/connect"
	paymentrepository "github.com/smallbiznis/givebox/internal/payment/repository"
	stripehook "github.com/smallbiznis/givebox/internal/payment/webhook"
	userdomain "github.com/smallbiznis/givebox/internal/user/domain"
	userrepository "github.com/smallbiznis/givebox/internal/user/repository"
	userservice "github.com/smallbiznis/givebox/internal/user/service"
	clerkhook "github.com/smallbiznis/givebox/internal/user/webhook"
	widgetrepository "github.com/smallbiznis/givebox/internal/widget/repository"
	widgetservice "github.com/smallbiznis/givebox/internal/widget/service"
	"github.com/smallbiznis/givebox/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var serverStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeVerifier map[string]string

func (f fakeVerifier) Verify(raw string) (auth.Principal, error) {
	userID, ok := f[raw]
	if !ok {
		return auth.Principal{}, auth.ErrInvalidToken
	}
	return auth.Principal{UserID: userID, SessionID: "sess_" + userID}, nil
}

type stubGateway struct {
	account connect.Account
	intents []connect.IntentParams
}

func (g *stubGateway) CreateAccount(_ context.Context, params connect.AccountParams) (*connect.Account, error) {
	acct := g.account
	acct.Email = params.Email
	return &acct, nil
}

func (g *stubGateway) GetAccount(_ context.Context, accountID string) (*connect.Account, error) {
	acct := g.account
	acct.ID = accountID
	return &acct, nil
}

func (g *stubGateway) CreateOnboardingLink(_ context.Context, params connect.LinkParams) (string, error) {
	return "https://connect.example/onboarding/" + params.AccountID, nil
}

func (g *stubGateway) CreateLoginLink(_ context.Context, accountID string) (string, error) {
	return "https://connect.example/login/" + accountID, nil
}

func (g *stubGateway) CreatePaymentIntent(_ context.Context, params connect.IntentParams) (*connect.Intent, error) {
	g.intents = append(g.intents, params)
	return &connect.Intent{ID: "pi_test_1", ClientSecret: "pi_test_1_secret"}, nil
}

func (g *stubGateway) Ping(context.Context) error { return nil }

type testServer struct {
	engine  *gin.Engine
	db      *gorm.DB
	gateway *stubGateway
	tokens  fakeVerifier
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	conn := dbtest.Open(t)
	log := zap.NewNop()
	clk := clock.NewFakeClock(serverStart)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	// Audit rows are only written in production.
	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    conn,
		Log:   log,
		Cfg:   config.Config{Environment: "production"},
		Clock: clk,
		GenID: node,
		Repo:  auditrepository.Provide(),
	})
	enforcer, err := authorization.NewEnforcer()
	require.NoError(t, err)
	authzSvc := authorization.NewService(authorization.Params{Log: log, Enforcer: enforcer})

	orgSvc := orgservice.NewService(orgservice.Params{
		DB:       conn,
		Log:      log,
		Clock:    clk,
		Repo:     orgrepository.NewRepository(conn),
		UserRepo: userrepository.NewRepository(conn),
		Audit:    auditSvc,
	})
	userSvc := userservice.NewService(userservice.Params{
		DB:      conn,
		Log:     log,
		Clock:   clk,
		Repo:    userrepository.NewRepository(conn),
		OrgRepo: orgrepository.NewRepository(conn),
		Audit:   auditSvc,
	})
	widgetSvc := widgetservice.NewService(widgetservice.Params{
		DB:    conn,
		Log:   log,
		Clock: clk,
		Repo:  widgetrepository.NewRepository(conn),
		Audit: auditSvc,
	})
	donationSvc := donationservice.NewService(donationservice.Params{
		DB:         conn,
		Log:        log,
		Clock:      clk,
		Repo:       donationrepository.NewRepository(conn),
		WidgetRepo: widgetrepository.NewRepository(conn),
	})
	invoiceSvc := invoiceservice.NewService(invoiceservice.ServiceParam{
		Log:   log,
		Clock: clk,
		Repo:  invoicerepository.NewRepository(conn),
	})

	gateway := &stubGateway{account: connect.Account{ID: "acct_test_1"}}
	cfg := config.Config{Environment: "development", AppURL: "https://app.example.org"}
	connectSvc := connect.NewService(connect.Params{Cfg: cfg, Log: log, Gateway: gateway, OrgSvc: orgSvc})

	// No webhook secrets: both endpoints stay closed.
	stripeWebhook := stripehook.NewService(stripehook.Params{
		DB:          conn,
		Log:         log,
		Cfg:         cfg,
		Clock:       clk,
		GenID:       node,
		Repo:        paymentrepository.Provide(),
		DonationSvc: donationSvc,
		InvoiceSvc:  invoiceSvc,
		OrgSvc:      orgSvc,
	})
	clerkWebhook := clerkhook.NewService(clerkhook.Params{
		DB:      conn,
		Log:     log,
		Cfg:     cfg,
		Clock:   clk,
		GenID:   node,
		Events:  paymentrepository.Provide(),
		UserSvc: userSvc,
	})
	checker := health.NewChecker(health.Params{DB: conn, Log: log, Cfg: cfg, Clock: clk})

	tokens := fakeVerifier{}
	r := gin.New()
	r.Use(ErrorHandlingMiddleware(true))
	NewServer(ServerParams{
		Gin:           r,
		Cfg:           cfg,
		Log:           log,
		Verifier:      tokens,
		AuthzSvc:      authzSvc,
		AuditSvc:      auditSvc,
		OrgSvc:        orgSvc,
		UserSvc:       userSvc,
		WidgetSvc:     widgetSvc,
		DonationSvc:   donationSvc,
		InvoiceSvc:    invoiceSvc,
		ConnectSvc:    connectSvc,
		StripeWebhook: stripeWebhook,
		ClerkWebhook:  clerkWebhook,
		Health:        checker,
	})

	return &testServer{engine: r, db: conn, gateway: gateway, tokens: tokens}
}

// addUser inserts a user row and returns the bearer token that signs in as it.
func (ts *testServer) addUser(t *testing.T, id string, role userdomain.Role, orgID *string) string {
	t.Helper()
	require.NoError(t, ts.db.Create(&userdomain.User{
		ID:             id,
		OrganizationID: orgID,
		Email:          id + "@example.org",
		Role:           role,
		IsActive:       true,
		CreatedAt:      serverStart,
		UpdatedAt:      serverStart,
	}).Error)
	token := "token_" + id
	ts.tokens[token] = id
	return token
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

type successBody struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func decodeSuccess(t *testing.T, rec *httptest.ResponseRecorder, dst any) successBody {
	t.Helper()
	var body successBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	require.True(t, body.Success)
	if dst != nil {
		require.NoError(t, json.Unmarshal(body.Data, dst))
	}
	return body
}

// onboard signs up a fresh owner and returns its token and organization.
func (ts *testServer) onboard(t *testing.T, userID string) (string, orgdomain.Organization) {
	t.Helper()
	token := ts.addUser(t, userID, userdomain.RoleMember, nil)
	rec := ts.do(t, http.MethodPost, "/api/onboarding", token, gin.H{
		"display_name": "Acme Relief",
		"email":        "hello@acme.org",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var org orgdomain.Organization
	body := decodeSuccess(t, rec, &org)
	assert.Equal(t, "Organization created successfully", body.Message)
	return token, org
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, KindUnauthorized, decodeEnvelope(t, rec).Error)

	rec = ts.do(t, http.MethodGet, "/api/users/me", "forged", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/nowhere", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Route not found", decodeEnvelope(t, rec).Message)
}

func TestOnboardingCreatesOrganizationOnce(t *testing.T) {
	ts := newTestServer(t)
	token, org := ts.onboard(t, "user_owner")

	assert.Equal(t, "Acme Relief", org.DisplayName)
	assert.Equal(t, "user_owner", org.OwnerID)
	assert.Equal(t, orgdomain.SubscriptionTrial, org.SubscriptionStatus)

	rec := ts.do(t, http.MethodGet, "/api/users/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var profile userdomain.Profile
	decodeSuccess(t, rec, &profile)
	assert.Equal(t, userdomain.RoleOwner, profile.User.Role)
	require.NotNil(t, profile.Organization)

	rec = ts.do(t, http.MethodPost, "/api/onboarding", token, gin.H{
		"display_name": "Second",
		"email":        "second@acme.org",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "User already belongs to an organization", decodeEnvelope(t, rec).Message)
}

func TestOnboardingValidatesBody(t *testing.T) {
	ts := newTestServer(t)
	token := ts.addUser(t, "user_new", userdomain.RoleMember, nil)

	rec := ts.do(t, http.MethodPost, "/api/onboarding", token, gin.H{"email": "nope"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, KindValidation, envelope.Error)
	assert.Equal(t, msgBodyInvalid, envelope.Message)
	assert.Len(t, envelope.Details, 2)
}

func TestOrganizationAccess(t *testing.T) {
	ts := newTestServer(t)
	ownerToken, org := ts.onboard(t, "user_owner")
	viewerToken := ts.addUser(t, "user_viewer", userdomain.RoleViewer, &org.ID)
	outsiderToken := ts.addUser(t, "user_outsider", userdomain.RoleAdmin, nil)
	adminToken := ts.addUser(t, "user_root", userdomain.RoleSuperAdmin, nil)
	path := "/api/organizations/" + org.ID

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, path, viewerToken, nil).Code)
	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodGet, path, outsiderToken, nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/organizations/acme", ownerToken, nil).Code)

	rec := ts.do(t, http.MethodPut, path, viewerToken, gin.H{"website": "https://acme.org"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPut, path, ownerToken, gin.H{"website": "https://acme.org"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated orgdomain.Organization
	body := decodeSuccess(t, rec, &updated)
	assert.Equal(t, "Organization updated successfully", body.Message)
	assert.Equal(t, "https://acme.org", updated.Website)

	rec = ts.do(t, http.MethodGet, "/api/organizations", ownerToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Super admin access required", decodeEnvelope(t, rec).Message)

	rec = ts.do(t, http.MethodGet, "/api/organizations?limit=5", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list orgdomain.ListResponse
	decodeSuccess(t, rec, &list)
	assert.Equal(t, int64(1), list.Total)
	assert.Equal(t, 5, list.Limit)

	// Super admins read any organization but cannot modify one they do not own.
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, path, adminToken, nil).Code)
	rec = ts.do(t, http.MethodPut, path, adminToken, gin.H{"name": "Seized"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, KindForbidden, decodeEnvelope(t, rec).Error)
	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodDelete, path, adminToken, nil).Code)
	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodGet, path+"/audit-logs", adminToken, nil).Code)

	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodDelete, path, viewerToken, nil).Code)
	rec = ts.do(t, http.MethodDelete, path, ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, path, adminToken, nil).Code)
}

func TestOrganizationCreateReadUpdate(t *testing.T) {
	ts := newTestServer(t)
	token := ts.addUser(t, "user_founder", userdomain.RoleMember, nil)

	rec := ts.do(t, http.MethodPost, "/api/organizations", token, gin.H{"name": "Acme", "email": "a@acme.org"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var org orgdomain.Organization
	decodeSuccess(t, rec, &org)
	assert.NotEmpty(t, org.ID)
	assert.Equal(t, "Acme", org.Name)

	rec = ts.do(t, http.MethodGet, "/api/organizations/7f0b8c4e-3d1a-4b8e-9c2f-5a6d7e8f9a0b", token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, KindNotFound, decodeEnvelope(t, rec).Error)

	editorToken := ts.addUser(t, "user_editor", userdomain.RoleEditor, &org.ID)
	rec = ts.do(t, http.MethodPut, "/api/organizations/"+org.ID, editorToken, gin.H{"name": "Hijacked"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, KindForbidden, decodeEnvelope(t, rec).Error)

	rec = ts.do(t, http.MethodGet, "/api/organizations/"+org.ID, editorToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeSuccess(t, rec, &org)
	assert.Equal(t, "Acme", org.Name)
}

func TestOrganizationCreateBeforeUserSync(t *testing.T) {
	ts := newTestServer(t)
	ts.tokens["token_fresh"] = "user_fresh"

	rec := ts.do(t, http.MethodPost, "/api/organizations", "token_fresh", gin.H{"name": "Acme", "email": "a@acme.org"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var org orgdomain.Organization
	decodeSuccess(t, rec, &org)
	assert.Equal(t, "user_fresh", org.OwnerID)

	var user userdomain.User
	require.NoError(t, ts.db.Where("id = ?", "user_fresh").Take(&user).Error)
	require.NotNil(t, user.OrganizationID)
	assert.Equal(t, org.ID, *user.OrganizationID)
	assert.Equal(t, userdomain.RoleOwner, user.Role)
	assert.Equal(t, "a@acme.org", user.Email)

	rec = ts.do(t, http.MethodPost, "/api/onboarding", "token_fresh", gin.H{"display_name": "Again", "email": "a@acme.org"})
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	ts.tokens["token_late"] = "user_late"
	rec = ts.do(t, http.MethodPost, "/api/onboarding", "token_late", gin.H{
		"display_name": "Late Relief",
		"email":        "late@relief.org",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestAuditLogsListOrganizationEvents(t *testing.T) {
	ts := newTestServer(t)
	token, org := ts.onboard(t, "user_owner")

	rec := ts.do(t, http.MethodGet, "/api/organizations/"+org.ID+"/audit-logs", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var logs struct {
		Total     int64 `json:"total"`
		AuditLogs []struct {
			Action string `json:"action"`
		} `json:"audit_logs"`
	}
	decodeSuccess(t, rec, &logs)
	require.NotEmpty(t, logs.AuditLogs)
	assert.Equal(t, "organization.create", logs.AuditLogs[0].Action)
}

func TestTeamInvite(t *testing.T) {
	ts := newTestServer(t)
	ownerToken, org := ts.onboard(t, "user_owner")
	viewerToken := ts.addUser(t, "user_viewer", userdomain.RoleViewer, &org.ID)
	invite := gin.H{"email": "new@acme.org", "role": "editor"}

	rec := ts.do(t, http.MethodPost, "/api/team/invite", viewerToken, invite)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Insufficient permissions", decodeEnvelope(t, rec).Message)

	rec = ts.do(t, http.MethodPost, "/api/team/invite", ownerToken, invite)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var invited userdomain.User
	body := decodeSuccess(t, rec, &invited)
	assert.Equal(t, "Invitation sent successfully", body.Message)
	assert.Equal(t, userdomain.RoleEditor, invited.Role)

	rec = ts.do(t, http.MethodGet, "/api/team", ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var team []userdomain.User
	decodeSuccess(t, rec, &team)
	assert.Len(t, team, 3)
}

func TestWidgetLifecycle(t *testing.T) {
	ts := newTestServer(t)
	token, org := ts.onboard(t, "user_owner")
	otherToken, _ := ts.onboard(t, "user_other")

	rec := ts.do(t, http.MethodGet, "/api/widgets/current", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var current struct {
		Widget struct {
			ID             string `json:"id"`
			OrganizationID string `json:"organization_id"`
			Slug           string `json:"slug"`
		} `json:"widget"`
		Theme struct {
			PrimaryColor string `json:"primary_color"`
		} `json:"theme"`
	}
	decodeSuccess(t, rec, &current)
	assert.Equal(t, org.ID, current.Widget.OrganizationID)
	assert.NotEmpty(t, current.Theme.PrimaryColor)

	again := ts.do(t, http.MethodGet, "/api/widgets/current", token, nil)
	require.Equal(t, http.StatusOK, again.Code)
	var second struct {
		Widget struct {
			ID string `json:"id"`
		} `json:"widget"`
	}
	decodeSuccess(t, again, &second)
	assert.Equal(t, current.Widget.ID, second.Widget.ID)

	widgetPath := "/api/widgets/" + current.Widget.ID
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, widgetPath, otherToken, nil).Code)

	rec = ts.do(t, http.MethodPost, widgetPath+"/causes", token, gin.H{
		"name":              "Clean water",
		"suggested_amounts": []int64{1000, 2500},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var cause struct {
		ID string `json:"id"`
	}
	decodeSuccess(t, rec, &cause)

	rec = ts.do(t, http.MethodPost, widgetPath+"/causes", token, gin.H{
		"name":              "Bad",
		"suggested_amounts": []int64{-5},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPut, "/api/causes/"+cause.ID, otherToken, gin.H{"name": "Hijack"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/public/widgets/"+current.Widget.Slug, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var public struct {
		Causes []struct {
			Name string `json:"name"`
		} `json:"causes"`
	}
	decodeSuccess(t, rec, &public)
	require.Len(t, public.Causes, 1)
	assert.Equal(t, "Clean water", public.Causes[0].Name)

	rec = ts.do(t, http.MethodDelete, "/api/causes/"+cause.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/public/widgets/"+current.Widget.Slug, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeSuccess(t, rec, &public)
	assert.Empty(t, public.Causes)
}

func TestStripeConnectAndPublicDonation(t *testing.T) {
	ts := newTestServer(t)
	token, org := ts.onboard(t, "user_owner")
	outsiderToken, _ := ts.onboard(t, "user_outsider")

	rec := ts.do(t, http.MethodGet, "/api/widgets/current", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var current struct {
		Widget struct {
			ID   string `json:"id"`
			Slug string `json:"slug"`
		} `json:"widget"`
	}
	decodeSuccess(t, rec, &current)
	donatePath := "/api/public/widgets/" + current.Widget.Slug + "/donations"
	donation := gin.H{"amount": 2500, "donor_email": "donor@example.org"}

	rec = ts.do(t, http.MethodPost, donatePath, "", donation)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Organization is not ready to accept donations", decodeEnvelope(t, rec).Message)

	rec = ts.do(t, http.MethodPost, "/api/stripe/connect", outsiderToken, gin.H{"organizationId": org.ID})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/stripe/connect", token, gin.H{"organizationId": org.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var created connect.CreateAccountResult
	body := decodeSuccess(t, rec, &created)
	assert.Equal(t, "Stripe account created successfully", body.Message)
	assert.Equal(t, "acct_test_1", created.AccountID)

	rec = ts.do(t, http.MethodPost, "/api/stripe/connect", token, gin.H{"organizationId": org.ID})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Organization already has a Stripe account", decodeEnvelope(t, rec).Message)

	rec = ts.do(t, http.MethodPost, "/api/stripe/connect/dashboard", token, gin.H{"organizationId": org.ID})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Stripe onboarding not completed", decodeEnvelope(t, rec).Message)

	ts.gateway.account.ChargesEnabled = true
	ts.gateway.account.PayoutsEnabled = true
	rec = ts.do(t, http.MethodGet, "/api/stripe/connect/status?organizationId="+org.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var status connect.OnboardingStatus
	decodeSuccess(t, rec, &status)
	assert.True(t, status.OnboardingComplete)

	rec = ts.do(t, http.MethodPost, "/api/stripe/connect/dashboard", token, gin.H{"organizationId": org.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	var link struct {
		URL string `json:"url"`
	}
	decodeSuccess(t, rec, &link)
	assert.Equal(t, "https://connect.example/login/acct_test_1", link.URL)

	rec = ts.do(t, http.MethodPost, donatePath, "", donation)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var started startDonationResponse
	decodeSuccess(t, rec, &started)
	assert.Equal(t, "pi_test_1_secret", started.ClientSecret)
	assert.NotEmpty(t, started.DonationID)

	require.Len(t, ts.gateway.intents, 1)
	intent := ts.gateway.intents[0]
	assert.Equal(t, int64(2500), intent.Amount)
	assert.Equal(t, "acct_test_1", intent.ConnectedAccountID)
	assert.Equal(t, org.ID, intent.Metadata["organization_id"])
	assert.Equal(t, current.Widget.ID, intent.Metadata["widget_id"])

	rec = ts.do(t, http.MethodGet, "/api/donations", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var donations struct {
		Total     int64 `json:"total"`
		Donations []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"donations"`
	}
	decodeSuccess(t, rec, &donations)
	assert.Equal(t, int64(1), donations.Total)
	require.Len(t, donations.Donations, 1)
	assert.Equal(t, started.DonationID, donations.Donations[0].ID)
	assert.Equal(t, "pending", donations.Donations[0].Status)
}

func TestWebhooksClosedWithoutSecrets(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/webhooks/stripe", "", gin.H{"id": "evt_1"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Webhook not configured", decodeEnvelope(t, rec).Message)

	rec = ts.do(t, http.MethodPost, "/api/webhooks/clerk", "", gin.H{"type": "user.created"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Webhook not configured", decodeEnvelope(t, rec).Message)

	var count int64
	require.NoError(t, ts.db.Table("webhook_events").Count(&count).Error)
	assert.Zero(t, count)
}

func TestWebhooksRejectOversizedBody(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/api/webhooks/stripe", "/api/webhooks/clerk"} {
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(bytes.Repeat([]byte("a"), maxWebhookBody+1)))
		req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
		rec := httptest.NewRecorder()
		ts.engine.ServeHTTP(rec, req)

		require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, path)
		assert.Equal(t, "Webhook payload too large", decodeEnvelope(t, rec).Message)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report health.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, health.StatusHealthy, report.Status)
	assert.Equal(t, health.StatusHealthy, report.Checks[health.CheckDatabase].Status)
}

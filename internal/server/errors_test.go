package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/givebox/internal/authorization"
	orgdomain "github.com/smallbiznis/givebox/internal/organization/domain"
	"github.com/smallbiznis/givebox/internal/payment/connect"
	paymentdomain "github.com/smallbiznis/givebox/internal/payment/domain"
	widgetdomain "github.com/smallbiznis/givebox/internal/widget/domain"
	"github.com/smallbiznis/givebox/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestMapError(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		kind    string
		message string
	}{
		{"http error", notFound("Route not found"), http.StatusNotFound, KindNotFound, "Route not found"},
		{"unique violation", &db.StoreError{Kind: db.KindUniqueViolation, Constraint: "organizations_slug_key"}, http.StatusConflict, KindDuplicate, "Resource already exists"},
		{"foreign key violation", &db.StoreError{Kind: db.KindForeignKeyViolation}, http.StatusBadRequest, KindInvalidReference, "Referenced resource does not exist"},
		{"store not found", &db.StoreError{Kind: db.KindNotFound}, http.StatusNotFound, KindNotFound, "Resource not found"},
		{"store other", &db.StoreError{Kind: db.KindOther, Err: errors.New("conn reset")}, http.StatusInternalServerError, KindDatabase, "Database operation failed"},
		{"processor", &connect.ProcessorError{Op: "create_account", Message: "Failed to create Stripe Connect account", Err: errors.New("boom")}, http.StatusBadGateway, KindProcessor, "Failed to create Stripe Connect account"},
		{"forbidden", authorization.ErrForbidden, http.StatusForbidden, KindForbidden, "Insufficient permissions"},
		{"wrapped org not found", fmt.Errorf("load: %w", orgdomain.ErrNotFound), http.StatusNotFound, KindNotFound, "Organization not found"},
		{"already onboarded", orgdomain.ErrAlreadyOnboarded, http.StatusConflict, KindConflict, "User already belongs to an organization"},
		{"stripe account exists", connect.ErrAccountExists, http.StatusBadRequest, KindBadRequest, "Organization already has a Stripe account"},
		{"no stripe account", connect.ErrNoAccount, http.StatusNotFound, KindNotFound, "No Stripe account found for this organization"},
		{"webhook not configured", paymentdomain.ErrWebhookNotConfigured, http.StatusBadRequest, KindBadRequest, "Webhook not configured"},
		{"svix headers missing", paymentdomain.ErrMissingHeaders, http.StatusBadRequest, KindBadRequest, "Missing svix headers"},
		{"stripe signature missing", paymentdomain.ErrMissingSignature, http.StatusBadRequest, KindBadRequest, "Missing Stripe-Signature header"},
		{"webhook payload too large", paymentdomain.ErrPayloadTooLarge, http.StatusRequestEntityTooLarge, KindBadRequest, "Webhook payload too large"},
		{"domain validation", widgetdomain.ErrForeignCause, http.StatusBadRequest, KindValidation, "Cause does not belong to this widget"},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests, KindRateLimited, "Too many requests. Please try again later."},
		{"unknown", errors.New("kaboom"), http.StatusInternalServerError, KindInternal, "An unexpected error occurred"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			envelope := mapError(tc.err, false)
			assert.Equal(t, tc.status, envelope.StatusCode)
			assert.Equal(t, tc.kind, envelope.Error)
			assert.Equal(t, tc.message, envelope.Message)
			assert.Nil(t, envelope.Details)
		})
	}
}

func TestMapErrorDetailsOnlyWhenDetailed(t *testing.T) {
	err := errors.New("kaboom")

	assert.Nil(t, mapError(err, false).Details)
	assert.Equal(t, "kaboom", mapError(err, true).Details)

	procErr := &connect.ProcessorError{Message: "Failed", Err: errors.New("card_declined")}
	assert.Equal(t, "card_declined", mapError(procErr, true).Details)
}

func TestClassifyErrorForLog(t *testing.T) {
	kind, code := classifyErrorForLog(connect.ErrNoAccount)
	assert.Equal(t, KindNotFound, kind)
	assert.Equal(t, "404", code)
}

func newErrorTestEngine(detailed bool) *gin.Engine {
	r := gin.New()
	r.Use(ErrorHandlingMiddleware(detailed))
	r.GET("/missing", func(c *gin.Context) {
		AbortWithError(c, orgdomain.ErrNotFound)
	})
	r.GET("/broken", func(c *gin.Context) {
		AbortWithError(c, &db.StoreError{Kind: db.KindOther, Err: errors.New("disk full")})
	})
	r.GET("/duplicate", func(c *gin.Context) {
		AbortWithError(c, &db.StoreError{Kind: db.KindUniqueViolation, Constraint: "widgets_slug_key"})
	})
	r.GET("/dangling", func(c *gin.Context) {
		AbortWithError(c, &db.StoreError{Kind: db.KindForeignKeyViolation})
	})
	r.GET("/panic", func(c *gin.Context) {
		panic("nil map write")
	})
	r.GET("/written", func(c *gin.Context) {
		c.JSON(http.StatusAccepted, gin.H{"ok": true})
		_ = c.Error(errors.New("late failure"))
	})
	return r
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) ErrorEnvelope {
	t.Helper()
	var envelope ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func TestErrorHandlingMiddlewareWritesEnvelope(t *testing.T) {
	r := newErrorTestEngine(false)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, KindNotFound, envelope.Error)
	assert.Equal(t, "Organization not found", envelope.Message)
	assert.Equal(t, http.StatusNotFound, envelope.StatusCode)
	assert.Empty(t, envelope.Path)
	assert.False(t, envelope.Timestamp.IsZero())
}

func TestErrorHandlingMiddlewareServerErrorsCarryPath(t *testing.T) {
	r := newErrorTestEngine(true)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/broken", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, KindDatabase, envelope.Error)
	assert.Equal(t, "/broken", envelope.Path)
	assert.Equal(t, "disk full", envelope.Details)
}

func TestErrorHandlingMiddlewareStoreErrorsCarryPath(t *testing.T) {
	r := newErrorTestEngine(false)

	for path, want := range map[string]struct {
		status int
		kind   string
	}{
		"/duplicate": {http.StatusConflict, KindDuplicate},
		"/dangling":  {http.StatusBadRequest, KindInvalidReference},
	} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		require.Equal(t, want.status, rec.Code, path)
		envelope := decodeEnvelope(t, rec)
		assert.Equal(t, want.kind, envelope.Error)
		assert.Equal(t, path, envelope.Path)
	}
}

func TestErrorHandlingMiddlewareRecoversPanics(t *testing.T) {
	r := newErrorTestEngine(false)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, KindInternal, envelope.Error)
	assert.Equal(t, "An unexpected error occurred", envelope.Message)
	assert.Nil(t, envelope.Details)
}

func TestErrorHandlingMiddlewareLeavesWrittenResponses(t *testing.T) {
	r := newErrorTestEngine(false)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/written", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestSuccessEnvelope(t *testing.T) {
	r := gin.New()
	r.GET("/ok", func(c *gin.Context) {
		Success(c, http.StatusCreated, gin.H{"id": "w_1"}, "Widget created successfully")
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))

	require.Equal(t, http.StatusCreated, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Widget created successfully", body["message"])
	assert.Equal(t, map[string]any{"id": "w_1"}, body["data"])
	assert.NotEmpty(t, body["timestamp"])
}

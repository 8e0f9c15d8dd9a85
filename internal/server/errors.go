package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/givebox/internal/auth"
	"github.com/smallbiznis/givebox/internal/authorization"
	donationdomain "github.com/smallbiznis/givebox/internal/donation/domain"
	invoicedomain "github.com/smallbiznis/givebox/internal/invoice/domain"
	"github.com/smallbiznis/givebox/internal/observability/logger"
	orgdomain "github.com/smallbiznis/givebox/internal/organization/domain"
	"github.com/smallbiznis/givebox/internal/payment/connect"
	paymentdomain "github.com/smallbiznis/givebox/internal/payment/domain"
	userdomain "github.com/smallbiznis/givebox/internal/user/domain"
	widgetdomain "github.com/smallbiznis/givebox/internal/widget/domain"
	"github.com/smallbiznis/givebox/pkg/db"
	"go.uber.org/zap"
)

// Error kinds carried in the envelope's error field.
const (
	KindValidation       = "VALIDATION_ERROR"
	KindInvalidJSON      = "INVALID_JSON"
	KindUnauthorized     = "UNAUTHORIZED"
	KindForbidden        = "FORBIDDEN"
	KindNotFound         = "NOT_FOUND"
	KindConflict         = "CONFLICT"
	KindBadRequest       = "BAD_REQUEST"
	KindDuplicate        = "DUPLICATE_RESOURCE"
	KindInvalidReference = "INVALID_REFERENCE"
	KindDatabase         = "DATABASE_ERROR"
	KindRateLimited      = "RATE_LIMIT_EXCEEDED"
	KindProcessor        = "STRIPE_ERROR"
	KindInternal         = "INTERNAL_ERROR"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not_found")
	ErrRateLimited  = errors.New("rate_limited")
	ErrInvalidJSON  = errors.New("invalid_json")
)

// HTTPError is raised by handlers that need a specific status and message.
type HTTPError struct {
	Status  int
	Kind    string
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Kind, e.Message)
}

func newHTTPError(status int, kind, message string) *HTTPError {
	return &HTTPError{Status: status, Kind: kind, Message: message}
}

func notFound(message string) *HTTPError {
	return newHTTPError(http.StatusNotFound, KindNotFound, message)
}

func forbidden(message string) *HTTPError {
	return newHTTPError(http.StatusForbidden, KindForbidden, message)
}

func badRequest(message string) *HTTPError {
	return newHTTPError(http.StatusBadRequest, KindBadRequest, message)
}

// ErrorEnvelope is the body of every error response.
type ErrorEnvelope struct {
	Error      string    `json:"error"`
	Message    string    `json:"message"`
	StatusCode int       `json:"statusCode"`
	Timestamp  time.Time `json:"timestamp"`
	Path       string    `json:"path,omitempty"`
	Details    any       `json:"details,omitempty"`

	fields []zap.Field
}

// ErrorHandlingMiddleware turns the last error attached by a handler into the
// error envelope. Panics are recovered into the same 500 response.
func ErrorHandlingMiddleware(detailed bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.FromContext(c.Request.Context()).Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("path", c.Request.URL.Path),
				)
				envelope := ErrorEnvelope{
					Error:      KindInternal,
					Message:    "An unexpected error occurred",
					StatusCode: http.StatusInternalServerError,
					Timestamp:  time.Now().UTC(),
					Path:       c.Request.URL.Path,
				}
				if detailed {
					envelope.Details = fmt.Sprint(rec)
				}
				c.AbortWithStatusJSON(http.StatusInternalServerError, envelope)
			}
		}()

		c.Next()

		if c.Writer.Written() {
			return
		}
		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		envelope := mapError(lastErr.Err, detailed)
		log := logger.FromContext(c.Request.Context()).With(
			zap.String("error_kind", envelope.Error),
			zap.Int("status", envelope.StatusCode),
			zap.String("path", c.Request.URL.Path),
		)
		var storeErr *db.StoreError
		if envelope.StatusCode >= http.StatusInternalServerError || errors.As(lastErr.Err, &storeErr) {
			envelope.Path = c.Request.URL.Path
		}
		if envelope.StatusCode >= http.StatusInternalServerError {
			log.Error("request failed", append(envelope.fields, zap.Error(lastErr.Err))...)
		} else {
			log.Warn("request rejected", append(envelope.fields, zap.String("reason", lastErr.Err.Error()))...)
		}
		c.AbortWithStatusJSON(envelope.StatusCode, envelope)
	}
}

// AbortWithError attaches err for ErrorHandlingMiddleware and stops the chain.
func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error, detailed bool) ErrorEnvelope {
	envelope := ErrorEnvelope{Timestamp: time.Now().UTC()}
	set := func(status int, kind, message string) ErrorEnvelope {
		envelope.StatusCode = status
		envelope.Error = kind
		envelope.Message = message
		return envelope
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return set(httpErr.Status, httpErr.Kind, httpErr.Message)
	}

	var vErr *ValidationFailure
	if errors.As(err, &vErr) {
		envelope.Details = vErr.Details
		return set(http.StatusBadRequest, KindValidation, vErr.Message)
	}

	var procErr *connect.ProcessorError
	if errors.As(err, &procErr) {
		envelope.fields = []zap.Field{zap.String("processor_op", procErr.Op)}
		if detailed && procErr.Err != nil {
			envelope.Details = procErr.Err.Error()
		}
		return set(http.StatusBadGateway, KindProcessor, procErr.Message)
	}

	var storeErr *db.StoreError
	if errors.As(err, &storeErr) {
		envelope.fields = []zap.Field{zap.String("constraint", storeErr.Constraint)}
		switch storeErr.Kind {
		case db.KindUniqueViolation:
			return set(http.StatusConflict, KindDuplicate, "Resource already exists")
		case db.KindForeignKeyViolation:
			return set(http.StatusBadRequest, KindInvalidReference, "Referenced resource does not exist")
		case db.KindNotFound:
			return set(http.StatusNotFound, KindNotFound, "Resource not found")
		default:
			if detailed && storeErr.Err != nil {
				envelope.Details = storeErr.Err.Error()
			}
			return set(http.StatusInternalServerError, KindDatabase, "Database operation failed")
		}
	}

	if status, kind, message, ok := mapDomainError(err); ok {
		return set(status, kind, message)
	}

	if detailed {
		envelope.Details = err.Error()
	}
	return set(http.StatusInternalServerError, KindInternal, "An unexpected error occurred")
}

// mapDomainError covers the sentinel errors services return.
func mapDomainError(err error) (int, string, string, bool) {
	switch {
	case errors.Is(err, ErrInvalidJSON):
		return http.StatusBadRequest, KindInvalidJSON, "Invalid JSON in request body", true
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, KindUnauthorized, "Authentication required", true
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, authorization.ErrInvalidRole):
		return http.StatusForbidden, KindForbidden, "Insufficient permissions", true
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, KindRateLimited, "Too many requests. Please try again later.", true

	case errors.Is(err, orgdomain.ErrNotFound):
		return http.StatusNotFound, KindNotFound, "Organization not found", true
	case errors.Is(err, userdomain.ErrNotFound):
		return http.StatusNotFound, KindNotFound, "User not found", true
	case errors.Is(err, widgetdomain.ErrNotFound):
		return http.StatusNotFound, KindNotFound, "Widget not found", true
	case errors.Is(err, widgetdomain.ErrCauseNotFound):
		return http.StatusNotFound, KindNotFound, "Cause not found", true
	case errors.Is(err, donationdomain.ErrNotFound):
		return http.StatusNotFound, KindNotFound, "Donation not found", true
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, KindNotFound, "Resource not found", true

	case errors.Is(err, orgdomain.ErrAlreadyOnboarded),
		errors.Is(err, userdomain.ErrAlreadyMember):
		return http.StatusConflict, KindConflict, conflictMessage(err), true
	case errors.Is(err, orgdomain.ErrStripeAccountExists),
		errors.Is(err, connect.ErrAccountExists):
		return http.StatusBadRequest, KindBadRequest, "Organization already has a Stripe account", true
	case errors.Is(err, connect.ErrNoAccount):
		return http.StatusNotFound, KindNotFound, "No Stripe account found for this organization", true
	case errors.Is(err, connect.ErrOnboardingPending):
		return http.StatusBadRequest, KindBadRequest, "Stripe onboarding not completed", true

	case errors.Is(err, paymentdomain.ErrWebhookNotConfigured):
		return http.StatusBadRequest, KindBadRequest, "Webhook not configured", true
	case errors.Is(err, paymentdomain.ErrMissingHeaders):
		return http.StatusBadRequest, KindBadRequest, "Missing svix headers", true
	case errors.Is(err, paymentdomain.ErrMissingSignature):
		return http.StatusBadRequest, KindBadRequest, "Missing Stripe-Signature header", true
	case errors.Is(err, paymentdomain.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, KindBadRequest, "Webhook payload too large", true
	case errors.Is(err, paymentdomain.ErrInvalidSignature):
		return http.StatusBadRequest, KindBadRequest, "Invalid signature", true
	case errors.Is(err, paymentdomain.ErrInvalidPayload),
		errors.Is(err, paymentdomain.ErrInvalidEvent):
		return http.StatusBadRequest, KindBadRequest, "Invalid webhook payload", true
	}

	if message, ok := validationMessage(err); ok {
		return http.StatusBadRequest, KindValidation, message, true
	}
	return 0, "", "", false
}

func conflictMessage(err error) string {
	if errors.Is(err, userdomain.ErrAlreadyMember) {
		return "User is already a member of this organization"
	}
	return "User already belongs to an organization"
}

var validationMessages = []struct {
	err     error
	message string
}{
	{orgdomain.ErrInvalidName, "Organization name is required"},
	{orgdomain.ErrInvalidOwner, "Organization owner is required"},
	{orgdomain.ErrEmptyUpdate, "At least one field must be provided for update"},
	{orgdomain.ErrInvalidAccount, "Invalid Stripe account"},
	{widgetdomain.ErrInvalidName, "Name is required"},
	{widgetdomain.ErrInvalidAmount, "Amounts must be positive"},
	{widgetdomain.ErrInvalidOrg, "Valid organization ID is required"},
	{widgetdomain.ErrEmptyUpdate, "At least one field must be provided for update"},
	{widgetdomain.ErrForeignCause, "Cause does not belong to this widget"},
	{widgetdomain.ErrWidgetUnavailable, "Widget is not accepting donations"},
	{donationdomain.ErrInvalidAmount, "Amount must be positive"},
	{donationdomain.ErrInvalidDonor, "Valid email is required"},
	{donationdomain.ErrInvalidWidget, "Valid widget ID is required"},
	{donationdomain.ErrInvalidIntent, "Valid payment intent is required"},
	{userdomain.ErrInvalidEmail, "Valid email is required"},
	{userdomain.ErrInvalidRole, "Invalid role"},
	{userdomain.ErrInvalidUser, "Valid user ID is required"},
	{invoicedomain.ErrInvalidOrganization, "Valid organization ID is required"},
	{connect.ErrInvalidAmount, "Amount must be positive"},
	{connect.ErrInvalidAccountID, "Valid Stripe account is required"},
}

func validationMessage(err error) (string, bool) {
	for _, candidate := range validationMessages {
		if errors.Is(err, candidate.err) {
			return candidate.message, true
		}
	}
	return "", false
}

// classifyErrorForLog feeds the request logger's error_type and error_code.
func classifyErrorForLog(err error) (string, string) {
	envelope := mapError(err, false)
	return envelope.Error, fmt.Sprint(envelope.StatusCode)
}

package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/givebox/internal/observability/logger"
	paymentdomain "github.com/smallbiznis/givebox/internal/payment/domain"
	"go.uber.org/zap"
)

// maxWebhookBody caps webhook payloads read into memory.
const maxWebhookBody = 1 << 20

// HandleStripeWebhook verifies and applies one payment processor event.
// Signature failures leave no trace in the database.
func (s *Server) HandleStripeWebhook(c *gin.Context) {
	payload, err := readWebhookBody(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	res, err := s.stripeWebhook.Ingest(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	logger.FromContext(c.Request.Context()).Info("stripe webhook processed",
		zap.String("event_id", res.EventID),
		zap.String("event_type", res.EventType),
		zap.Bool("duplicate", res.Duplicate),
		zap.Bool("handled", res.Handled),
	)
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// HandleClerkWebhook verifies and applies one identity provider user event.
func (s *Server) HandleClerkWebhook(c *gin.Context) {
	payload, err := readWebhookBody(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	res, err := s.clerkWebhook.Ingest(c.Request.Context(), payload, c.Request.Header)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	logger.FromContext(c.Request.Context()).Info("clerk webhook processed",
		zap.String("event_type", res.EventType),
		zap.Bool("duplicate", res.Duplicate),
		zap.Bool("handled", res.Handled),
	)
	c.JSON(http.StatusOK, gin.H{"message": "Webhook processed successfully"})
}

// readWebhookBody reads the raw delivery. Bodies over maxWebhookBody are
// rejected rather than truncated so they never reach signature checks.
func readWebhookBody(c *gin.Context) ([]byte, error) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil {
		return nil, ErrInvalidJSON
	}
	if len(payload) > maxWebhookBody {
		return nil, paymentdomain.ErrPayloadTooLarge
	}
	return payload, nil
}

// Health reports dependency status. Anything short of healthy answers 503.
func (s *Server) Health(c *gin.Context) {
	report := s.health.Check(c.Request.Context())
	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

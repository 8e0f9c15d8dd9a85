package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/givebox/internal/authorization"
	donationdomain "github.com/smallbiznis/givebox/internal/donation/domain"
	obscontext "github.com/smallbiznis/givebox/internal/observability/context"
	"github.com/smallbiznis/givebox/internal/observability/logger"
	"github.com/smallbiznis/givebox/internal/payment/connect"
	widgetdomain "github.com/smallbiznis/givebox/internal/widget/domain"
	"go.uber.org/zap"
)

type startDonationRequest struct {
	CauseID      string `json:"cause_id" validate:"omitempty,uuid"`
	Amount       int64  `json:"amount" validate:"required,gte=100,lte=100000000"`
	Currency     string `json:"currency" validate:"omitempty,len=3,alpha"`
	DonorEmail   string `json:"donor_email" validate:"required,email"`
	DonorName    string `json:"donor_name" validate:"omitempty,max=255"`
	IsAnonymous  bool   `json:"is_anonymous"`
	DonorMessage string `json:"donor_message" validate:"omitempty,max=1000"`
}

type startDonationResponse struct {
	DonationID   string `json:"donationId"`
	ClientSecret string `json:"clientSecret"`
}

func (s *Server) ListDonations(c *gin.Context) {
	orgID, err := s.donationViewer(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var query PageQuery
	if err := BindQuery(c, &query); err != nil {
		AbortWithError(c, err)
		return
	}

	res, err := s.donationSvc.List(c.Request.Context(), orgID, query.Pagination)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	Success(c, http.StatusOK, res, "")
}

func (s *Server) DonationStats(c *gin.Context) {
	orgID, err := s.donationViewer(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	stats, err := s.donationSvc.Stats(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	Success(c, http.StatusOK, stats, "")
}

func (s *Server) ListInvoices(c *gin.Context) {
	orgID, err := s.donationViewer(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var query PageQuery
	if err := BindQuery(c, &query); err != nil {
		AbortWithError(c, err)
		return
	}

	res, err := s.invoiceSvc.List(c.Request.Context(), orgID, query.Pagination)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	Success(c, http.StatusOK, res, "")
}

// StartDonation opens a payment intent on the organization's connected
// account and records the pending donation the webhook later settles.
func (s *Server) StartDonation(c *gin.Context) {
	ctx := c.Request.Context()

	var req startDonationRequest
	if err := BindBody(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	details, err := s.widgetSvc.GetPublic(ctx, c.Param("slug"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	widget := details.Widget
	if req.CauseID != "" && !hasCause(details.Causes, req.CauseID) {
		AbortWithError(c, widgetdomain.ErrCauseNotFound)
		return
	}

	org, err := s.orgSvc.GetByID(ctx, widget.OrganizationID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	ctx = obscontext.WithOrgID(ctx, org.ID)
	if !org.HasStripeAccount() || !org.StripeOnboardingComplete {
		AbortWithError(c, badRequest("Organization is not ready to accept donations"))
		return
	}

	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = donationdomain.DefaultCurrency
	}
	metadata := map[string]string{
		"organization_id": org.ID,
		"widget_id":       widget.ID,
	}
	if req.CauseID != "" {
		metadata["cause_id"] = req.CauseID
	}

	intent, err := s.connectSvc.CreatePaymentIntent(ctx, connect.PaymentIntentRequest{
		Amount:             req.Amount,
		Currency:           currency,
		ConnectedAccountID: *org.StripeAccountID,
		Metadata:           metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	donation, err := s.donationSvc.CreatePending(ctx, donationdomain.CreatePendingRequest{
		WidgetID:        widget.ID,
		CauseID:         req.CauseID,
		OrganizationID:  org.ID,
		DonorEmail:      req.DonorEmail,
		DonorName:       req.DonorName,
		IsAnonymous:     req.IsAnonymous,
		DonorMessage:    req.DonorMessage,
		Amount:          req.Amount,
		Currency:        currency,
		PaymentIntentID: intent.ID,
	})
	if err != nil {
		logger.FromContext(ctx).Error("pending donation not recorded for payment intent",
			zap.String("payment_intent_id", intent.ID),
			zap.Error(err),
		)
		AbortWithError(c, err)
		return
	}

	Success(c, http.StatusCreated, startDonationResponse{
		DonationID:   donation.ID,
		ClientSecret: intent.ClientSecret,
	}, "")
}

// donationViewer resolves the caller's organization for read-only finance
// views.
func (s *Server) donationViewer(c *gin.Context) (string, error) {
	user, err := s.currentUser(c)
	if err != nil {
		return "", err
	}
	orgID, err := organizationOf(user)
	if err != nil {
		return "", err
	}
	if err := s.authorize(c, user, authorization.DonationView); err != nil {
		return "", err
	}
	return orgID, nil
}

func hasCause(causes []widgetdomain.Cause, id string) bool {
	for _, cause := range causes {
		if cause.ID == id {
			return true
		}
	}
	return false
}

package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/givebox/internal/audit"
	auditdomain "github.com/smallbiznis/givebox/internal/audit/domain"
	"github.com/smallbiznis/givebox/internal/auth"
	"github.com/smallbiznis/givebox/internal/authorization"
	"github.com/smallbiznis/givebox/internal/config"
	"github.com/smallbiznis/givebox/internal/donation"
	donationdomain "github.com/smallbiznis/givebox/internal/donation/domain"
	"github.com/smallbiznis/givebox/internal/health"
	"github.com/smallbiznis/givebox/internal/invoice"
	invoicedomain "github.com/smallbiznis/givebox/internal/invoice/domain"
	"github.com/smallbiznis/givebox/internal/observability"
	obsmiddleware "github.com/smallbiznis/givebox/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/givebox/internal/observability/metrics"
	obstracing "github.com/smallbiznis/givebox/internal/observability/tracing"
	"github.com/smallbiznis/givebox/internal/organization"
	orgdomain "github.com/smallbiznis/givebox/internal/organization/domain"
	"github.com/smallbiznis/givebox/internal/payment"
	"github.com/smallbiznis/givebox/internal/payment/connect"
	stripehook "github.com/smallbiznis/givebox/internal/payment/webhook"
	"github.com/smallbiznis/givebox/internal/ratelimit"
	"github.com/smallbiznis/givebox/internal/user"
	userdomain "github.com/smallbiznis/givebox/internal/user/domain"
	clerkhook "github.com/smallbiznis/givebox/internal/user/webhook"
	"github.com/smallbiznis/givebox/internal/widget"
	widgetdomain "github.com/smallbiznis/givebox/internal/widget/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var Module = fx.Module("http.server",
	authorization.Module,
	audit.Module,
	auth.Module,
	ratelimit.Module,
	organization.Module,
	user.Module,
	widget.Module,
	donation.Module,
	invoice.Module,
	payment.Module,
	health.Module,
	fx.Provide(provideTokenVerifier),
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func provideTokenVerifier(v *auth.Verifier) TokenVerifier {
	return v
}

func NewEngine(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware(cfg.Features().DetailedErrors))

	r.GET("/metrics", httpMetrics.Handler())

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	log           *zap.Logger
	verifier      TokenVerifier
	limiter       *ratelimit.Limiter
	authzSvc      authorization.Service
	auditSvc      auditdomain.Service
	orgSvc        orgdomain.Service
	userSvc       userdomain.Service
	widgetSvc     widgetdomain.Service
	donationSvc   donationdomain.Service
	invoiceSvc    invoicedomain.Service
	connectSvc    *connect.Service
	stripeWebhook *stripehook.Service
	clerkWebhook  *clerkhook.Service
	health        *health.Checker
	obsMetrics    *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Log           *zap.Logger
	Verifier      TokenVerifier
	Limiter       *ratelimit.Limiter `optional:"true"`
	AuthzSvc      authorization.Service
	AuditSvc      auditdomain.Service
	OrgSvc        orgdomain.Service
	UserSvc       userdomain.Service
	WidgetSvc     widgetdomain.Service
	DonationSvc   donationdomain.Service
	InvoiceSvc    invoicedomain.Service
	ConnectSvc    *connect.Service
	StripeWebhook *stripehook.Service
	ClerkWebhook  *clerkhook.Service
	Health        *health.Checker
	ObsMetrics    *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		log:           p.Log.Named("http"),
		verifier:      p.Verifier,
		limiter:       p.Limiter,
		authzSvc:      p.AuthzSvc,
		auditSvc:      p.AuditSvc,
		orgSvc:        p.OrgSvc,
		userSvc:       p.UserSvc,
		widgetSvc:     p.WidgetSvc,
		donationSvc:   p.DonationSvc,
		invoiceSvc:    p.InvoiceSvc,
		connectSvc:    p.ConnectSvc,
		stripeWebhook: p.StripeWebhook,
		clerkWebhook:  p.ClerkWebhook,
		health:        p.Health,
		obsMetrics:    p.ObsMetrics,
	}

	svc.registerPublicRoutes()
	svc.registerWebhookRoutes()
	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerPublicRoutes() {
	api := s.engine.Group("/api")

	api.GET("/health", s.Health)

	public := api.Group("/public")
	public.GET("/widgets/:slug", s.RateLimit(config.RateClassAPI), s.GetPublicWidget)
	public.POST("/widgets/:slug/donations", s.RateLimit(config.RateClassStripe), s.StartDonation)
}

func (s *Server) registerWebhookRoutes() {
	hooks := s.engine.Group("/api/webhooks", s.RateLimit(config.RateClassWebhook))

	hooks.POST("/stripe", s.HandleStripeWebhook)
	hooks.POST("/clerk", s.HandleClerkWebhook)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")
	api.Use(s.AuthRequired())
	api.Use(s.RateLimit(config.RateClassAPI))

	// -------- Organizations --------
	api.GET("/organizations", s.ListOrganizations)
	api.POST("/organizations", s.CreateOrganization)
	api.GET("/organizations/:id", s.GetOrganization)
	api.PUT("/organizations/:id", s.UpdateOrganization)
	api.DELETE("/organizations/:id", s.DeleteOrganization)
	api.GET("/organizations/:id/audit-logs", s.ListAuditLogs)
	api.POST("/onboarding", s.RateLimit(config.RateClassAuth), s.Onboard)

	// -------- Users / Team --------
	api.GET("/users/me", s.Me)
	api.GET("/team", s.ListTeam)
	api.POST("/team/invite", s.InviteMember)

	// -------- Widgets --------
	api.GET("/widgets", s.ListWidgets)
	api.POST("/widgets", s.CreateWidget)
	api.GET("/widgets/current", s.CurrentWidget)
	api.GET("/widgets/:widgetId", s.GetWidget)
	api.PUT("/widgets/:widgetId", s.UpdateWidget)
	api.DELETE("/widgets/:widgetId", s.DeleteWidget)
	api.PUT("/widgets/:widgetId/customization", s.SaveCustomization)
	api.GET("/widgets/:widgetId/causes", s.ListCauses)
	api.POST("/widgets/:widgetId/causes", s.CreateCause)
	api.PUT("/causes/:causeId", s.UpdateCause)
	api.DELETE("/causes/:causeId", s.DeleteCause)

	// -------- Donations / Invoices --------
	api.GET("/donations", s.ListDonations)
	api.GET("/donations/stats", s.DonationStats)
	api.GET("/invoices", s.ListInvoices)

	// -------- Stripe Connect --------
	stripe := api.Group("/stripe/connect", s.RateLimit(config.RateClassStripe))
	stripe.POST("", s.ConnectStripeAccount)
	stripe.GET("/status", s.StripeConnectStatus)
	stripe.POST("/dashboard", s.StripeDashboardLink)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, notFound("Route not found"))
	})
}

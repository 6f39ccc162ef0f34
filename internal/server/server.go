package server

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/eventra/internal/addon"
	addondomain "github.com/smallbiznis/eventra/internal/addon/domain"
	"github.com/smallbiznis/eventra/internal/alert"
	alertdomain "github.com/smallbiznis/eventra/internal/alert/domain"
	"github.com/smallbiznis/eventra/internal/apikey"
	apikeydomain "github.com/smallbiznis/eventra/internal/apikey/domain"
	"github.com/smallbiznis/eventra/internal/audit"
	auditdomain "github.com/smallbiznis/eventra/internal/audit/domain"
	"github.com/smallbiznis/eventra/internal/auth"
	authdomain "github.com/smallbiznis/eventra/internal/auth/domain"
	authlocal "github.com/smallbiznis/eventra/internal/auth/local"
	authoauth "github.com/smallbiznis/eventra/internal/auth/oauth"
	"github.com/smallbiznis/eventra/internal/auth/session"
	"github.com/smallbiznis/eventra/internal/authorization"
	"github.com/smallbiznis/eventra/internal/client"
	clientdomain "github.com/smallbiznis/eventra/internal/client/domain"
	"github.com/smallbiznis/eventra/internal/cloudmetrics"
	"github.com/smallbiznis/eventra/internal/config"
	"github.com/smallbiznis/eventra/internal/dashboard"
	dashboarddomain "github.com/smallbiznis/eventra/internal/dashboard/domain"
	"github.com/smallbiznis/eventra/internal/dashboard/rollup"
	"github.com/smallbiznis/eventra/internal/event"
	eventdomain "github.com/smallbiznis/eventra/internal/event/domain"
	"github.com/smallbiznis/eventra/internal/form"
	formdomain "github.com/smallbiznis/eventra/internal/form/domain"
	"github.com/smallbiznis/eventra/internal/observability"
	obsmiddleware "github.com/smallbiznis/eventra/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/eventra/internal/observability/metrics"
	obstracing "github.com/smallbiznis/eventra/internal/observability/tracing"
	"github.com/smallbiznis/eventra/internal/organization"
	organizationdomain "github.com/smallbiznis/eventra/internal/organization/domain"
	"github.com/smallbiznis/eventra/internal/pricing"
	pricingdomain "github.com/smallbiznis/eventra/internal/pricing/domain"
	"github.com/smallbiznis/eventra/internal/providers"
	"github.com/smallbiznis/eventra/internal/provisioning"
	"github.com/smallbiznis/eventra/internal/ratelimit"
	"github.com/smallbiznis/eventra/internal/receipt"
	receiptdomain "github.com/smallbiznis/eventra/internal/receipt/domain"
	"github.com/smallbiznis/eventra/internal/reference"
	referencedomain "github.com/smallbiznis/eventra/internal/reference/domain"
	"github.com/smallbiznis/eventra/internal/registration"
	registrationdomain "github.com/smallbiznis/eventra/internal/registration/domain"
	"github.com/smallbiznis/eventra/internal/registration/liveevents"
	"github.com/smallbiznis/eventra/internal/signup"
	signupdomain "github.com/smallbiznis/eventra/internal/signup/domain"
	"github.com/smallbiznis/eventra/internal/sponsorship"
	sponsorshipdomain "github.com/smallbiznis/eventra/internal/sponsorship/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	config.Module,
	cloudmetrics.Module,
	fx.Provide(registerGin),
	authorization.Module,
	audit.Module,
	auth.Module,
	authlocal.Module,
	session.Module,
	apikey.Module,
	organization.Module,
	provisioning.Module,
	signup.Module,
	client.Module,
	event.Module,
	form.Module,
	addon.Module,
	pricing.Module,
	sponsorship.Module,
	registration.Module,
	receipt.Module,
	dashboard.Module,
	alert.Module,
	providers.Module,
	reference.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine) {
	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine                 *gin.Engine
	cfg                    config.Config
	db                     *gorm.DB
	authsvc                authdomain.Service
	oauthsvc               authoauth.Service
	sessions               *session.Manager
	genID                  *snowflake.Node
	apiKeySvc              apikeydomain.Service
	apiKeyLimiter          *rateLimiter
	authzSvc               authorization.Service
	auditSvc               auditdomain.Service
	organizationSvc        organizationdomain.Service
	clientSvc              clientdomain.Service
	eventSvc               eventdomain.Service
	formSvc                formdomain.Service
	addonSvc               addondomain.Service
	pricingSvc             pricingdomain.Service
	sponsorshipSvc         sponsorshipdomain.Service
	registrationSvc        registrationdomain.Service
	receiptSvc             receiptdomain.Service
	dashboardSvc           dashboarddomain.Service
	alertSvc               alertdomain.Service
	rollupSvc              *rollup.Service
	refrepo                referencedomain.Repository
	signupsvc              signupdomain.Service
	liveRegistrationEvents *liveevents.Hub
	publicLimiter          *ratelimit.PublicLimiter
	obsMetrics             *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	DB              *gorm.DB
	Authsvc         authdomain.Service
	OAuthsvc        authoauth.Service
	Sessions        *session.Manager
	GenID           *snowflake.Node
	APIKeySvc       apikeydomain.Service
	AuthzSvc        authorization.Service
	AuditSvc        auditdomain.Service
	OrganizationSvc organizationdomain.Service
	ClientSvc       clientdomain.Service
	EventSvc        eventdomain.Service
	FormSvc         formdomain.Service
	AddonSvc        addondomain.Service
	PricingSvc      pricingdomain.Service
	SponsorshipSvc  sponsorshipdomain.Service
	RegistrationSvc registrationdomain.Service
	ReceiptSvc      receiptdomain.Service
	DashboardSvc    dashboarddomain.Service
	AlertSvc        alertdomain.Service
	RollupSvc       *rollup.Service
	Refrepo         referencedomain.Repository
	Signupsvc       signupdomain.Service

	LiveRegistrationEvents *liveevents.Hub          `optional:"true"`
	PublicLimiter          *ratelimit.PublicLimiter `optional:"true"`
	ObsMetrics             *obsmetrics.Metrics      `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:                 p.Gin,
		cfg:                    p.Cfg,
		db:                     p.DB,
		authsvc:                p.Authsvc,
		oauthsvc:               p.OAuthsvc,
		sessions:               p.Sessions,
		genID:                  p.GenID,
		apiKeySvc:              p.APIKeySvc,
		apiKeyLimiter:          newRateLimiter(5, 10*time.Minute),
		authzSvc:               p.AuthzSvc,
		auditSvc:               p.AuditSvc,
		organizationSvc:        p.OrganizationSvc,
		clientSvc:              p.ClientSvc,
		eventSvc:               p.EventSvc,
		formSvc:                p.FormSvc,
		addonSvc:               p.AddonSvc,
		pricingSvc:             p.PricingSvc,
		sponsorshipSvc:         p.SponsorshipSvc,
		registrationSvc:        p.RegistrationSvc,
		receiptSvc:             p.ReceiptSvc,
		dashboardSvc:           p.DashboardSvc,
		alertSvc:               p.AlertSvc,
		rollupSvc:              p.RollupSvc,
		refrepo:                p.Refrepo,
		signupsvc:              p.Signupsvc,
		liveRegistrationEvents: p.LiveRegistrationEvents,
		publicLimiter:          p.PublicLimiter,
		obsMetrics:             p.ObsMetrics,
	}

	svc.registerAuthRoutes()
	svc.registerAPIRoutes()
	svc.registerAdminRoutes()
	svc.registerPublicRoutes()
	svc.registerUIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.POST("/signup", s.Signup)
	auth.POST("/login", s.Login)
	auth.POST("/logout", s.Logout)
	auth.POST("/change-password", s.WebAuthRequired(), s.ChangePassword)
	auth.POST("/forgot", s.Forgot)
	auth.GET("/me", s.Me)
	auth.GET("/providers", s.AuthProviders)

	user := auth.Group("/user", s.WebAuthRequired())
	{
		user.GET("/orgs", s.ListUserOrgs)
		user.POST("/orgs", s.CreateOrganization)
		user.GET("/orgs/:orgId", s.GetOrganization)
		user.POST("/using/:orgId", s.UseOrg)
	}
}

// registerAPIRoutes is the key-authenticated integration surface. API keys
// carry their own org, so none of these routes accept an org header.
func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1")

	api.GET("/countries", s.ListCountries)
	api.GET("/timezones", s.ListTimezones)
	api.GET("/currencies", s.ListCurrencies)

	// -------- Events --------
	api.GET("/events", s.APIKeyRequired(), s.ListEvents)
	api.GET("/events/:id", s.APIKeyRequired(), s.GetEventByID)
	api.GET("/events/:id/pricing", s.APIKeyRequired(), s.GetEventPricing)
	api.POST("/events/:id/pricing/preview", s.APIKeyRequired(), s.PreviewEventPricing)
	api.GET("/events/:id/receipts", s.APIKeyRequired(), s.ListEventReceipts)

	// -------- Registrations --------
	// Shared handlers, different gates: API keys use scopes, admin uses RBAC.
	api.GET("/registrations", s.APIKeyRequired(), s.ListRegistrations)
	api.GET("/registrations/:id", s.APIKeyRequired(), s.GetRegistrationByID)
	api.GET("/registrations/:id/add-ons", s.APIKeyRequired(), s.ListRegistrationAddOns)
	api.GET("/registrations/:id/receipt", s.APIKeyRequired(), s.GetReceiptByRegistration)
	api.POST("/registrations/:id/approve", s.APIKeyRequired(), s.authorizeOrgAction(authorization.ObjectRegistration, authorization.ActionRegistrationReview), s.ApproveRegistration)
	api.POST("/registrations/:id/cancel", s.APIKeyRequired(), s.authorizeOrgAction(authorization.ObjectRegistration, authorization.ActionRegistrationCancel), s.CancelRegistration)

	// -------- Receipts --------
	api.GET("/receipts/:id", s.APIKeyRequired(), s.GetReceiptByID)

	// -------- Sponsorships --------
	api.GET("/sponsorships/records", s.APIKeyRequired(), s.ListSponsorshipRecords)
	api.GET("/sponsorships/records/:id", s.APIKeyRequired(), s.GetSponsorshipRecord)

	if s.cfg.Environment != "production" {
		api.POST("/test/cleanup", s.TestCleanup)
	}
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin/v1")

	// --- global middlewares ---
	admin.Use(s.WebAuthRequired())
	admin.Use(s.OrgContext())

	// -------- Dashboard --------
	admin.GET("/dashboard/overview", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleFinance), s.authorizeOrgAction(authorization.ObjectDashboard, authorization.ActionDashboardView), s.GetDashboardOverview)
	admin.GET("/dashboard/registrations", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleFinance), s.authorizeOrgAction(authorization.ObjectDashboard, authorization.ActionDashboardView), s.GetRegistrationSeries)
	admin.GET("/dashboard/top-add-ons", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleFinance), s.authorizeOrgAction(authorization.ObjectDashboard, authorization.ActionDashboardView), s.GetTopAddOns)
	admin.GET("/dashboard/sponsorships", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleFinance), s.authorizeOrgAction(authorization.ObjectDashboard, authorization.ActionDashboardView), s.GetSponsorshipUtilization)
	admin.POST("/dashboard/rebuild", s.RequireRole(organizationdomain.RoleOwner), s.authorizeOrgAction(authorization.ObjectDashboard, authorization.ActionDashboardRebuild), s.RebuildDashboardRollups)

	// -------- Clients --------
	admin.GET("/clients", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin), s.ListClients)
	admin.POST("/clients", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin), s.CreateClient)
	admin.GET("/clients/:id", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin), s.GetClientByID)
	admin.PATCH("/clients/:id", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin), s.UpdateClient)
	admin.POST("/clients/:id/archive", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin), s.ArchiveClient)

	// -------- Events --------
	admin.GET("/events", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleOrganizer), s.ListEvents)
	admin.POST("/events", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleOrganizer), s.CreateEvent)
	admin.GET("/events/:id", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleOrganizer), s.GetEventByID)
	admin.PATCH("/events/:id", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleOrganizer), s.UpdateEvent)
	admin.POST("/events/:id/publish", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleOrganizer), s.authorizeOrgAction(authorization.ObjectEvent, authorization.ActionEventPublish), s.PublishEvent)
	admin.POST("/events/:id/archive", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleOrganizer), s.authorizeOrgAction(authorization.ObjectEvent, authorization.ActionEventArchive), s.ArchiveEvent)

	// -------- Forms --------
	admin.GET("/forms", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleOrganizer), s.ListForms)
	admin.POST("/forms", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleOrganizer), s.CreateForm)
	admin.GET("/forms/:id", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleOrganizer), s.GetFormByID)
	admin.PATCH("/forms/:id", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleOrganizer), s.UpdateForm)
	admin.POST("/forms/:id/activate", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleOrganizer), s.authorizeOrgAction(authorization.ObjectForm, authorization.ActionFormActivate), s.ActivateForm)
	admin.POST("/forms/:id/archive", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleOrganizer), s.ArchiveForm)
	admin.POST("/forms/:id/fields", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleOrganizer), s.AddFormField)
	admin.PATCH("/forms/:id/fields/:fieldId", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleOrganizer), s.UpdateFormField)
	admin.DELETE("/forms/:id/fields/:fieldId", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleOrganizer), s.RemoveFormField)
	admin.PUT("/forms/:id/fields/order", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleOrganizer), s.ReorderFormFields)

	// -------- Add-ons --------
	admin.GET("/add-ons", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleOrganizer), s.ListAddOns)
	admin.POST("/add-ons", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleOrganizer), s.CreateAddOn)
	admin.GET("/add-ons/:id", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleOrganizer), s.GetAddOnByID)
	admin.PATCH("/add-ons/:id", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleOrganizer), s.UpdateAddOn)
	admin.POST("/add-ons/:id/archive", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleOrganizer), s.ArchiveAddOn)

	// -------- Pricing --------
	admin.GET("/events/:id/pricing", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleOrganizer), s.GetEventPricing)
	admin.PUT("/events/:id/pricing", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleOrganizer), s.authorizeOrgAction(authorization.ObjectPricing, authorization.ActionPricingUpdate), s.UpsertEventPricing)
	admin.POST("/events/:id/pricing/rules", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleOrganizer), s.authorizeOrgAction(authorization.ObjectPricing, authorization.ActionPricingUpdate), s.AddPricingRule)
	admin.PATCH("/events/:id/pricing/rules/:ruleId", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleOrganizer), s.authorizeOrgAction(authorization.ObjectPricing, authorization.ActionPricingUpdate), s.UpdatePricingRule)
	admin.DELETE("/events/:id/pricing/rules/:ruleId", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleOrganizer), s.authorizeOrgAction(authorization.ObjectPricing, authorization.ActionPricingUpdate), s.RemovePricingRule)
	admin.PUT("/events/:id/pricing/rules/order", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleOrganizer), s.authorizeOrgAction(authorization.ObjectPricing, authorization.ActionPricingUpdate), s.ReorderPricingRules)
	admin.POST("/events/:id/pricing/preview", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleOrganizer), s.PreviewEventPricing)

	// -------- Sponsorships --------
	admin.GET("/sponsorships/batches", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleFinance), s.ListSponsorshipBatches)
	admin.POST("/sponsorships/batches", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleFinance), s.authorizeOrgAction(authorization.ObjectSponsorship, authorization.ActionSponsorshipCreate), s.CreateSponsorshipBatch)
	admin.GET("/sponsorships/batches/:id", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleFinance), s.GetSponsorshipBatch)
	admin.POST("/sponsorships/batches/:id/activate", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleFinance), s.authorizeOrgAction(authorization.ObjectSponsorship, authorization.ActionSponsorshipUpdate), s.ActivateSponsorshipBatch)
	admin.POST("/sponsorships/batches/:id/cancel", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleFinance), s.authorizeOrgAction(authorization.ObjectSponsorship, authorization.ActionSponsorshipDisable), s.CancelSponsorshipBatch)
	admin.GET("/sponsorships/records", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleFinance), s.ListSponsorshipRecords)
	admin.GET("/sponsorships/records/:id", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleFinance), s.GetSponsorshipRecord)
	admin.POST("/sponsorships/records/:id/activate", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleFinance), s.authorizeOrgAction(authorization.ObjectSponsorship, authorization.ActionSponsorshipUpdate), s.ActivateSponsorshipRecord)
	admin.POST("/sponsorships/records/:id/cancel", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleFinance), s.authorizeOrgAction(authorization.ObjectSponsorship, authorization.ActionSponsorshipDisable), s.CancelSponsorshipRecord)

	// -------- Registrations --------
	admin.GET("/registrations", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleOrganizer), s.ListRegistrations)
	admin.GET("/registrations/:id", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleOrganizer), s.GetRegistrationByID)
	admin.GET("/registrations/:id/add-ons", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleOrganizer), s.ListRegistrationAddOns)
	admin.GET("/registrations/:id/receipt", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleOrganizer, organizationdomain.RoleFinance), s.GetReceiptByRegistration)
	admin.POST("/registrations/:id/approve", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleOrganizer), s.authorizeOrgAction(authorization.ObjectRegistration, authorization.ActionRegistrationReview), s.ApproveRegistration)
	admin.POST("/registrations/:id/cancel", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleOrganizer), s.authorizeOrgAction(authorization.ObjectRegistration, authorization.ActionRegistrationCancel), s.CancelRegistration)
	admin.POST("/registrations/:id/resend", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleOrganizer), s.ResendRegistrationConfirmation)
	admin.GET("/registrations/settings", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin), s.GetRegistrationSettings)
	admin.PATCH("/registrations/settings", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin), s.UpdateRegistrationSettings)

	admin.GET("/registrations/live-events",
		s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleOrganizer),
		s.StreamRegistrationLiveEvents,
	)

	// -------- Receipts --------
	admin.GET("/events/:id/receipts", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleFinance), s.ListEventReceipts)
	admin.GET("/receipts/:id", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleFinance), s.GetReceiptByID)
	admin.GET("/receipts/:id/html", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleFinance), s.RenderReceiptHTML)
	admin.GET("/receipts/:id/pdf", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleFinance), s.RenderReceiptPDF)

	// -------- Capacity Alerts --------
	admin.GET("/alerts", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleOrganizer), s.ListCapacityAlerts)

	// -------- Organization --------
	admin.GET("/members", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin), s.ListOrganizationMembers)
	admin.PATCH("/members/:memberId", s.RequireRole(organizationdomain.RoleOwner), s.authorizeOrgAction(authorization.ObjectOrganization, authorization.ActionOrganizationManageMembers), s.UpdateOrganizationMemberRole)
	admin.DELETE("/members/:memberId", s.RequireRole(organizationdomain.RoleOwner), s.authorizeOrgAction(authorization.ObjectOrganization, authorization.ActionOrganizationManageMembers), s.RemoveOrganizationMember)
	admin.GET("/invites", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin), s.ListOrganizationInvites)
	admin.POST("/invites", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin), s.authorizeOrgAction(authorization.ObjectOrganization, authorization.ActionOrganizationInvite), s.InviteOrganizationMembers)
	admin.POST("/invites/:inviteId/revoke", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin), s.authorizeOrgAction(authorization.ObjectOrganization, authorization.ActionOrganizationInvite), s.RevokeOrganizationInvite)

	admin.GET("/audit-logs", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin), s.authorizeOrgAction(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)
	admin.GET("/api-keys/scopes", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin), s.authorizeOrgAction(authorization.ObjectAPIKey, authorization.ActionAPIKeyView), s.ListAPIKeyScopes)
	admin.GET("/api-keys", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin), s.authorizeOrgAction(authorization.ObjectAPIKey, authorization.ActionAPIKeyView), s.ListAPIKeys)
	admin.POST("/api-keys", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin), s.authorizeOrgAction(authorization.ObjectAPIKey, authorization.ActionAPIKeyCreate), s.CreateAPIKey)
	admin.POST("/api-keys/:key_id/reveal", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin), s.authorizeOrgAction(authorization.ObjectAPIKey, authorization.ActionAPIKeyRotate), s.RevealAPIKey)
	admin.POST("/api-keys/:key_id/revoke", s.RequireRole(organizationdomain.RoleOwner), s.authorizeOrgAction(authorization.ObjectAPIKey, authorization.ActionAPIKeyRevoke), s.RevokeAPIKey)

	// Invite acceptance only needs a session: the invitee is not a member yet.
	s.engine.POST("/admin/v1/invites/:inviteId/accept", s.WebAuthRequired(), s.AcceptOrganizationInvite)
}

// registerPublicRoutes is the unauthenticated attendee surface. Org and
// event are addressed by slug so links survive ID rotation.
func (s *Server) registerPublicRoutes() {
	public := s.engine.Group("/public/v1")

	events := public.Group("/orgs/:orgSlug/events/:eventSlug")
	{
		events.GET("", s.GetPublicEvent)
		events.POST("/pricing/preview", s.PreviewPublicPricing)
		events.POST("/registrations", s.SubmitPublicRegistration)
	}
}

func (s *Server) registerUIRoutes() {
	r := s.engine.Group("/")

	// ---- SPA entry points ----
	r.GET("/", serveIndex)
	r.GET("/login", s.redirectIfLoggedIn(), serveIndex)
	r.GET("/login/:name", s.OAuthLogin)
	r.GET("/invite/:code", serveIndex)
	r.GET("/change-password", s.WebAuthRequired(), serveIndex)

	orgs := r.Group("/orgs", s.WebAuthRequired())
	{
		orgs.GET("", serveIndex)
		org := orgs.Group("/:id")
		{
			dashboard := org.Group("/dashboard")
			{
				dashboard.GET("", serveIndex)
			}

			events := org.Group("/events")
			{
				events.GET("", serveIndex)
				events.GET("/:eventId", serveIndex)
			}

			clients := org.Group("/clients")
			{
				clients.GET("", serveIndex)
			}

			sponsorships := org.Group("/sponsorships")
			{
				sponsorships.GET("", serveIndex)
			}

			registrations := org.Group("/registrations")
			{
				registrations.GET("", serveIndex)
			}

			receipts := org.Group("/receipts")
			{
				receipts.GET("", serveIndex)
			}

			apiKeys := org.Group("/api-keys")
			{
				apiKeys.GET("", serveIndex)
			}

			auditLogs := org.Group("/audit-logs")
			{
				auditLogs.GET("", serveIndex)
			}

			settings := org.Group("/settings", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin))
			{
				settings.GET("/", serveIndex)
			}
		}
	}
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		// static assets (vite)
		if fileExists("./public", c.Request.URL.Path) {
			c.File("./public" + c.Request.URL.Path)
			return
		}

		// SPA fallback
		c.File("./public/index.html")
	})
}

func fileExists(publicDir, reqPath string) bool {
	clean := filepath.Clean(reqPath)

	// prevent path traversal
	if clean == "." || clean == "/" || clean == ".." {
		return false
	}

	fullPath := filepath.Join(publicDir, clean)

	info, err := os.Stat(fullPath)
	if err != nil {
		return false
	}

	return !info.IsDir()
}

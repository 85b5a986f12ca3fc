package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/techvara/crm/internal/auth"
	"github.com/techvara/crm/internal/handlers"
	"github.com/techvara/crm/internal/middleware"
	"github.com/techvara/crm/internal/models"
	"github.com/techvara/crm/internal/services"
)

// Dependencies bundles everything the router needs.
type Dependencies struct {
	DB  *gorm.DB
	JWT *auth.JWTService

	Auth       *services.AuthService
	Users      *services.UserService
	Leads      *services.LeadService
	Proposals  *services.ProposalService
	Agreements *services.AgreementService
	Projects   *services.ProjectService

	MetricsEnabled  bool
	MetricsEndpoint string
}

// NewRouter assembles the HTTP surface: public decision links, the
// authenticated panel API and the operational endpoints.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.Metrics())

	health := handlers.NewHealthHandler(deps.DB)
	router.GET("/health", health.Health)

	if deps.MetricsEnabled {
		endpoint := deps.MetricsEndpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		router.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	// Public decision links carried in proposal emails. The token is the
	// only credential; no auth middleware applies here.
	public := handlers.NewProposalPublicHandler(deps.Proposals)
	router.GET("/proposal/view/:token", public.View)
	router.GET("/proposal/accept/:token", public.Accept)
	router.GET("/proposal/reject/:token", public.Reject)

	authHandler := handlers.NewAuthHandler(deps.Auth)
	router.POST("/api/auth/login", authHandler.Login)

	api := router.Group("/api")
	api.Use(middleware.Auth(deps.JWT))

	api.GET("/auth/me", authHandler.Me)

	leads := handlers.NewLeadHandler(deps.Leads)
	api.GET("/leads", leads.List)
	api.POST("/leads", leads.Create)
	api.GET("/leads/:id", leads.Get)
	api.PUT("/leads/:id", leads.Update)
	api.DELETE("/leads/:id", leads.Delete)
	api.GET("/leads/:id/followups", leads.ListFollowups)
	api.POST("/leads/:id/followups", leads.AddFollowup)

	admin := api.Group("")
	admin.Use(middleware.RequireRole(models.RoleAdmin))

	users := handlers.NewUserHandler(deps.Users)
	admin.GET("/users", users.List)
	admin.POST("/users", users.Create)
	admin.GET("/users/:id", users.Get)
	admin.PUT("/users/:id", users.Update)
	admin.DELETE("/users/:id", users.Delete)

	proposals := handlers.NewProposalHandler(deps.Proposals)
	admin.GET("/proposals", proposals.List)
	admin.POST("/proposals", proposals.Create)
	admin.GET("/proposals/:id", proposals.Get)
	admin.DELETE("/proposals/:id", proposals.Delete)
	admin.POST("/proposals/send/:leadId", proposals.Send)

	agreements := handlers.NewAgreementHandler(deps.Agreements)
	admin.GET("/agreements", agreements.List)
	admin.POST("/agreements", agreements.Create)
	admin.GET("/agreements/:id", agreements.Get)
	admin.PUT("/agreements/:id", agreements.Update)
	admin.DELETE("/agreements/:id", agreements.Delete)

	projects := handlers.NewProjectHandler(deps.Projects)
	admin.GET("/projects", projects.List)
	admin.POST("/projects", projects.Create)
	admin.GET("/projects/:id", projects.Get)
	admin.PUT("/projects/:id", projects.Update)
	admin.DELETE("/projects/:id", projects.Delete)
	admin.POST("/projects/:id/payments", projects.RecordPayment)

	return router
}

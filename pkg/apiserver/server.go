package apiserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/seatwise/seatwise/pkg/apiserver/handlers"
	"github.com/seatwise/seatwise/pkg/apiserver/middleware"
	"github.com/seatwise/seatwise/pkg/audit"
	"github.com/seatwise/seatwise/pkg/auth"
	"github.com/seatwise/seatwise/pkg/config"
	"github.com/seatwise/seatwise/pkg/directory"
	"github.com/seatwise/seatwise/pkg/eventbus"
	"github.com/seatwise/seatwise/pkg/report"
	"github.com/seatwise/seatwise/pkg/store/postgres"
)

// Deps carries the external collaborators the API server needs. Tests swap
// in stubs; main wires the real queue, storage and directory client.
type Deps struct {
	Syncs     handlers.SyncEnqueuer
	Directory directory.Client
	Generator *report.Generator
	Artifacts handlers.ArtifactSigner
	Bus       *eventbus.Bus
}

type Server struct {
	router *gin.Engine
	db     *postgres.Store
	deps   Deps
	cfg    *config.Config
	tokens *auth.TokenManager
	logger *zap.Logger
}

func NewServer(db *postgres.Store, deps Deps, cfg *config.Config, logger *zap.Logger) *Server {
	s := &Server{
		db:     db,
		deps:   deps,
		cfg:    cfg,
		tokens: auth.NewTokenManager([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer, cfg.Auth.TokenTTL),
		logger: logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.CORS())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	recorder := audit.NewRecorder(postgres.NewAuditRepository(s.db.DB()), s.logger)

	api := r.Group("/api/v1")
	{
		api.Use(middleware.Auth(s.tokens))

		tenantHandler := handlers.NewTenantHandler(s.db, s.deps.Syncs, recorder, s.logger)
		api.POST("/tenants", tenantHandler.Create)
		api.GET("/tenants", tenantHandler.List)
		api.GET("/tenants/:id", tenantHandler.Get)
		api.PUT("/tenants/:id", tenantHandler.Update)
		api.DELETE("/tenants/:id", tenantHandler.Delete)
		api.GET("/tenants/:id/summary", tenantHandler.Summary)
		api.GET("/tenants/:id/users", tenantHandler.ListUsers)
		api.POST("/tenants/:id/sync_users", tenantHandler.SyncUsers)
		api.POST("/tenants/:id/sync_licenses", tenantHandler.SyncLicenses)
		api.POST("/tenants/:id/sync_usage", tenantHandler.SyncUsage)

		analysisHandler := handlers.NewAnalysisHandler(s.db, s.deps.Bus, recorder, s.logger)
		api.POST("/analyses", analysisHandler.Create)
		api.GET("/analyses", analysisHandler.List)
		api.GET("/analyses/:id", analysisHandler.Get)
		api.DELETE("/analyses/:id", analysisHandler.Cancel)
		api.GET("/analyses/:id/events", analysisHandler.Events)
		api.GET("/analyses/:id/recommendations", analysisHandler.ListRecommendations)
		api.PUT("/recommendations/:id/status", analysisHandler.UpdateRecommendationStatus)

		reportHandler := handlers.NewReportHandler(s.db, s.deps.Generator, s.deps.Artifacts, s.logger)
		api.GET("/reports", reportHandler.List)
		api.POST("/reports", reportHandler.Create)
		api.GET("/reports/:id/download", reportHandler.Download)

		skuHandler := handlers.NewSkuHandler(s.db, s.deps.Directory, recorder, s.logger)
		api.GET("/sku-mapping/summary", skuHandler.Summary)
		api.GET("/skus/:sku", skuHandler.GetSKU)
		api.POST("/sku-mapping/sync_products", skuHandler.SyncProducts)
		api.POST("/sku-mapping/sync_compatibility", skuHandler.SyncCompatibility)
		api.GET("/prices", skuHandler.ListPrices)

		auditHandler := handlers.NewAuditHandler(s.db, s.logger)
		api.GET("/audit", auditHandler.List)
	}

	s.router = r
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) Tokens() *auth.TokenManager {
	return s.tokens
}

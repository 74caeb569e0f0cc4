package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dtrackhq/dtrack/internal/api/handlers"
	"github.com/dtrackhq/dtrack/internal/api/middleware"
	"github.com/dtrackhq/dtrack/internal/approval"
	"github.com/dtrackhq/dtrack/internal/certs"
	"github.com/dtrackhq/dtrack/internal/config"
	"github.com/dtrackhq/dtrack/internal/db/repository"
	"github.com/dtrackhq/dtrack/internal/expiry"
	"github.com/dtrackhq/dtrack/internal/qr"
)

// Server represents the HTTP server
type Server struct {
	router *gin.Engine
	config *config.Config
}

// NewServer creates a new API server
func NewServer(
	cfg *config.Config,
	logger *zap.Logger,
	certService *certs.Service,
	machine *approval.StateMachine,
	coordinator *qr.Coordinator,
	propagator *expiry.Propagator,
	accountRepo *repository.AccountRepository,
	certRepo *repository.CertificateRepository,
	productRepo *repository.ProductRepository,
	approvalRepo *repository.ApprovalRepository,
) *Server {
	// Set Gin mode
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	// Create handlers
	certHandler := handlers.NewCertHandler(cfg, certService, accountRepo)
	accountHandler := handlers.NewAccountHandler(accountRepo, approvalRepo, propagator)
	approvalHandler := handlers.NewApprovalHandler(machine, approvalRepo, accountRepo)
	qrHandler := handlers.NewQRHandler(coordinator, certRepo, productRepo, accountRepo)
	productHandler := handlers.NewProductHandler(productRepo, accountRepo, approvalRepo)

	// API v1 routes
	v1 := router.Group("/v1")
	{
		// Public verification endpoints, reached by scanning a QR code
		v1.GET("/verify/:token", qrHandler.Verify)
		v1.GET("/verify/:token/image", qrHandler.VerifyImage)

		// Supplier endpoints (credentials carried on the request)
		v1.POST("/certs", certHandler.UploadCertificate)
		v1.POST("/certs/:id/reupload", certHandler.ReuploadCertificate)
		v1.POST("/products", productHandler.RegisterProduct)

		// Staff endpoints (require admin token)
		admin := v1.Group("/admin")
		admin.Use(middleware.AdminAuth(cfg.Admin.Token))
		{
			admin.POST("/accounts", accountHandler.CreateAccount)
			admin.GET("/accounts", accountHandler.ListAccounts)
			admin.POST("/accounts/:id/recompute", accountHandler.RecomputeActivation)
			admin.GET("/accounts/:id/certs", certHandler.ListByAccount)
			admin.GET("/accounts/:id/products", productHandler.ListByAccount)

			admin.GET("/certs/:id", certHandler.GetCertificate)
			admin.GET("/certs/:id/versions", certHandler.ListVersions)
			admin.POST("/certs/:id/verify", certHandler.VerifyIntegrity)

			admin.POST("/approvals", approvalHandler.Transition)
			admin.GET("/approvals/requests", approvalHandler.ListRequests)
			admin.GET("/approvals/:kind/:id/log", approvalHandler.History)

			admin.POST("/qr/:kind/:id", qrHandler.Issue)
			admin.POST("/qr/:kind/:id/regenerate", qrHandler.Regenerate)
			admin.POST("/qr/:kind/:id/rotate", qrHandler.RotateToken)
		}
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	return &Server{
		router: router,
		config: cfg,
	}
}

// Run starts the HTTP server
func (s *Server) Run() error {
	return s.router.Run(s.config.Server.ListenAddr)
}

// Router returns the underlying Gin router
func (s *Server) Router() *gin.Engine {
	return s.router
}

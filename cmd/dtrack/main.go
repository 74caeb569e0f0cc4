package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dtrackhq/dtrack/internal/api"
	"github.com/dtrackhq/dtrack/internal/approval"
	"github.com/dtrackhq/dtrack/internal/blob"
	"github.com/dtrackhq/dtrack/internal/certs"
	"github.com/dtrackhq/dtrack/internal/config"
	"github.com/dtrackhq/dtrack/internal/db"
	"github.com/dtrackhq/dtrack/internal/db/repository"
	"github.com/dtrackhq/dtrack/internal/expiry"
	"github.com/dtrackhq/dtrack/internal/extract"
	"github.com/dtrackhq/dtrack/internal/policy"
	"github.com/dtrackhq/dtrack/internal/qr"
	"github.com/dtrackhq/dtrack/pkg/clock"
	"github.com/dtrackhq/dtrack/pkg/logger"
)

var (
	// Version information (set via ldflags)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "/etc/dtrack/config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("DTrack Certificate Server\n")
		fmt.Printf("Version:    %s\n", Version)
		fmt.Printf("Commit:     %s\n", Commit)
		fmt.Printf("Build Time: %s\n", BuildTime)
		os.Exit(0)
	}

	log.Printf("Starting DTrack Certificate Server %s (commit: %s)", Version, Commit)

	// Load configuration
	log.Printf("Loading configuration from %s", *configPath)
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Build logger
	zapLogger, err := logger.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zapLogger.Sync()

	// Initialize database
	log.Printf("Connecting to database: %s", cfg.Database.Path)
	database, err := db.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Run migrations
	log.Printf("Running database migrations...")
	if err := db.RunMigrations(database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Open blob store
	log.Printf("Opening blob store at %s", cfg.Storage.BlobDir)
	blobStore, err := blob.NewFileStore(cfg.Storage.BlobDir)
	if err != nil {
		log.Fatalf("Failed to open blob store: %v", err)
	}

	// Initialize repositories
	accountRepo := repository.NewAccountRepository(database.DB)
	certRepo := repository.NewCertificateRepository(database.DB)
	versionRepo := repository.NewVersionRepository(database.DB)
	approvalRepo := repository.NewApprovalRepository(database.DB)
	qrRepo := repository.NewQRRepository(database.DB)
	productRepo := repository.NewProductRepository(database.DB)

	// Wire the services
	clk := clock.System{}
	validator := policy.NewValidator(cfg)
	extractor := extract.New(zapLogger)
	renderer := qr.NewRenderer(cfg.Server.PublicBaseURL)
	coordinator := qr.NewCoordinator(qrRepo, renderer, zapLogger)
	machine := approval.NewStateMachine(database, accountRepo, certRepo, productRepo, approvalRepo, coordinator, clk, zapLogger)
	propagator := expiry.NewPropagator(accountRepo, certRepo, clk, zapLogger)
	certService := certs.NewService(database, certRepo, versionRepo, approvalRepo, blobStore, extractor, validator, clk, zapLogger)

	// Create HTTP server
	server := api.NewServer(
		cfg,
		zapLogger,
		certService,
		machine,
		coordinator,
		propagator,
		accountRepo,
		certRepo,
		productRepo,
		approvalRepo,
	)

	// Setup graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Start server in a goroutine
	go func() {
		log.Printf("Starting HTTP server on %s", cfg.Server.ListenAddr)
		if err := server.Run(); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("DTrack Certificate Server is running")
	log.Printf("Press Ctrl+C to shutdown")

	// Wait for interrupt signal
	<-quit
	log.Printf("Shutting down server...")

	// Cleanup
	database.Close()

	log.Printf("Server stopped")
}

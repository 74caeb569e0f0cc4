package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dtrackhq/dtrack/internal/approval"
	"github.com/dtrackhq/dtrack/internal/auth"
	"github.com/dtrackhq/dtrack/internal/blob"
	"github.com/dtrackhq/dtrack/internal/certs"
	"github.com/dtrackhq/dtrack/internal/config"
	"github.com/dtrackhq/dtrack/internal/db"
	"github.com/dtrackhq/dtrack/internal/db/repository"
	"github.com/dtrackhq/dtrack/internal/expiry"
	"github.com/dtrackhq/dtrack/internal/extract"
	"github.com/dtrackhq/dtrack/internal/models"
	"github.com/dtrackhq/dtrack/internal/policy"
	"github.com/dtrackhq/dtrack/internal/qr"
	"github.com/dtrackhq/dtrack/pkg/clock"
	"github.com/dtrackhq/dtrack/pkg/logger"
)

var (
	configPath string
	cfg        *config.Config
	database   *db.DB
	zapLogger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "admin",
	Short: "DTrack administration tool",
	Long:  "Administrative tool for managing DTrack accounts, approvals and maintenance sweeps",
}

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage accounts",
}

var accountCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new account",
	RunE:  createAccount,
}

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	RunE:  listAccounts,
}

var approvalCmd = &cobra.Command{
	Use:   "approval",
	Short: "Manage approvals",
}

var approvalTransitionCmd = &cobra.Command{
	Use:   "transition",
	Short: "Apply an approval transition",
	RunE:  transitionApproval,
}

var approvalLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the approval log for an entity",
	RunE:  showApprovalLog,
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run maintenance sweeps",
}

var sweepExpiryCmd = &cobra.Command{
	Use:   "expiry",
	Short: "Recompute supplier activation from certificate expiry",
	RunE:  sweepExpiry,
}

var sweepIntegrityCmd = &cobra.Command{
	Use:   "integrity",
	Short: "Verify the integrity of every stored certificate",
	RunE:  sweepIntegrity,
}

var (
	email         string
	password      string
	role          string
	firstName     string
	lastName      string
	entityKind    string
	entityID      int64
	newStatus     string
	reviewerEmail string
	comment       string
	listRole      string
)

func init() {
	// Root flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/dtrack/config.yaml", "Config file path")

	// Account create flags
	accountCreateCmd.Flags().StringVarP(&email, "email", "e", "", "Email address (required)")
	accountCreateCmd.Flags().StringVarP(&password, "password", "p", "", "Password (required)")
	accountCreateCmd.Flags().StringVarP(&role, "role", "r", models.RoleSupplier, "Role: admin, operator or supplier")
	accountCreateCmd.Flags().StringVar(&firstName, "first-name", "", "First name")
	accountCreateCmd.Flags().StringVar(&lastName, "last-name", "", "Last name")

	accountCreateCmd.MarkFlagRequired("email")
	accountCreateCmd.MarkFlagRequired("password")

	// Account list flags
	accountListCmd.Flags().StringVar(&listRole, "role", "", "Filter by role")

	// Approval transition flags
	approvalTransitionCmd.Flags().StringVar(&entityKind, "kind", "", "Entity kind: supplier, certificate or product (required)")
	approvalTransitionCmd.Flags().Int64Var(&entityID, "id", 0, "Entity id (required)")
	approvalTransitionCmd.Flags().StringVar(&newStatus, "status", "", "New status: pending, approved or rejected (required)")
	approvalTransitionCmd.Flags().StringVar(&reviewerEmail, "reviewer", "", "Reviewer email (required)")
	approvalTransitionCmd.Flags().StringVar(&comment, "comment", "", "Reviewer comment")

	approvalTransitionCmd.MarkFlagRequired("kind")
	approvalTransitionCmd.MarkFlagRequired("id")
	approvalTransitionCmd.MarkFlagRequired("status")
	approvalTransitionCmd.MarkFlagRequired("reviewer")

	// Approval log flags
	approvalLogCmd.Flags().StringVar(&entityKind, "kind", "", "Entity kind (required)")
	approvalLogCmd.Flags().Int64Var(&entityID, "id", 0, "Entity id (required)")

	approvalLogCmd.MarkFlagRequired("kind")
	approvalLogCmd.MarkFlagRequired("id")

	// Add commands
	accountCmd.AddCommand(accountCreateCmd)
	accountCmd.AddCommand(accountListCmd)
	approvalCmd.AddCommand(approvalTransitionCmd)
	approvalCmd.AddCommand(approvalLogCmd)
	sweepCmd.AddCommand(sweepExpiryCmd)
	sweepCmd.AddCommand(sweepIntegrityCmd)
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(approvalCmd)
	rootCmd.AddCommand(sweepCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initDB() error {
	// Load configuration
	var err error
	cfg, err = config.LoadWithEnv(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	zapLogger, err = logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	// Connect to database
	database, err = db.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	return nil
}

func createAccount(cmd *cobra.Command, args []string) error {
	if err := initDB(); err != nil {
		return err
	}
	defer database.Close()

	if role != models.RoleAdmin && role != models.RoleOperator && role != models.RoleSupplier {
		return fmt.Errorf("role must be admin, operator or supplier")
	}

	secret, err := auth.GenerateTOTPSecret(email)
	if err != nil {
		return fmt.Errorf("failed to generate TOTP secret: %w", err)
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	status := models.StatusApproved
	if role == models.RoleSupplier {
		status = models.StatusPending
	}

	accountRepo := repository.NewAccountRepository(database.DB)
	account := &models.Account{
		Email:          email,
		PasswordHash:   passwordHash,
		TOTPSecret:     secret,
		Role:           role,
		FirstName:      firstName,
		LastName:       lastName,
		Language:       "en",
		Active:         true,
		ApprovalStatus: status,
	}

	if err := accountRepo.Create(account); err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	if account.IsSupplier() {
		approvalRepo := repository.NewApprovalRepository(database.DB)
		req := &models.ApprovalRequest{
			RequesterID: account.ID,
			EntityKind:  models.KindSupplier,
			EntityID:    account.ID,
			Comments:    "supplier registration",
		}
		if err := approvalRepo.CreateRequest(req); err != nil {
			return fmt.Errorf("failed to create approval request: %w", err)
		}
	}

	qrURL := auth.GenerateQRCodeURL(secret, email, "")

	fmt.Printf("\nAccount created successfully!\n")
	fmt.Printf("Account ID: %d\n", account.ID)
	fmt.Printf("Email: %s\n", account.Email)
	fmt.Printf("Role: %s\n", account.Role)
	fmt.Printf("Approval status: %s\n", account.ApprovalStatus)
	fmt.Printf("\nTOTP Secret: %s\n", secret)
	fmt.Printf("TOTP QR URL: %s\n", qrURL)
	fmt.Printf("\nScan the QR URL with a TOTP app (Google Authenticator, Authy, etc.)\n")

	return nil
}

func listAccounts(cmd *cobra.Command, args []string) error {
	if err := initDB(); err != nil {
		return err
	}
	defer database.Close()

	accountRepo := repository.NewAccountRepository(database.DB)
	accounts, err := accountRepo.List(listRole)
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}

	if len(accounts) == 0 {
		fmt.Println("No accounts found")
		return nil
	}

	fmt.Printf("\nTotal accounts: %d\n\n", len(accounts))
	fmt.Printf("%-5s %-30s %-10s %-8s %-10s %s\n", "ID", "Email", "Role", "Active", "Status", "Created")
	fmt.Println("--------------------------------------------------------------------------------")

	for _, account := range accounts {
		activeStr := "No"
		if account.Active {
			activeStr = "Yes"
		}
		fmt.Printf("%-5d %-30s %-10s %-8s %-10s %s\n",
			account.ID,
			account.Email,
			account.Role,
			activeStr,
			account.ApprovalStatus,
			account.CreatedAt.Format("2006-01-02 15:04:05"),
		)
	}

	return nil
}

func transitionApproval(cmd *cobra.Command, args []string) error {
	if err := initDB(); err != nil {
		return err
	}
	defer database.Close()

	accountRepo := repository.NewAccountRepository(database.DB)
	reviewer, err := accountRepo.GetByEmail(reviewerEmail)
	if err != nil {
		return fmt.Errorf("reviewer %s not found", reviewerEmail)
	}

	machine := buildStateMachine()
	entry, err := machine.Transition(entityKind, entityID, newStatus, reviewer.Email, reviewer.ID, comment)
	if err != nil {
		return fmt.Errorf("transition failed: %w", err)
	}

	fmt.Printf("\nTransition applied\n")
	fmt.Printf("%s %d: %s -> %s (by %s)\n", entry.EntityKind, entry.EntityID, entry.PreviousStatus, entry.NewStatus, entry.Actor)

	return nil
}

func showApprovalLog(cmd *cobra.Command, args []string) error {
	if err := initDB(); err != nil {
		return err
	}
	defer database.Close()

	approvalRepo := repository.NewApprovalRepository(database.DB)
	logs, err := approvalRepo.ListLogs(entityKind, entityID, 100)
	if err != nil {
		return fmt.Errorf("failed to list approval log: %w", err)
	}

	if len(logs) == 0 {
		fmt.Println("No log entries found")
		return nil
	}

	fmt.Printf("%-5s %-10s %-10s %-25s %-20s %s\n", "ID", "From", "To", "Actor", "Time", "Comment")
	fmt.Println("--------------------------------------------------------------------------------")
	for _, entry := range logs {
		fmt.Printf("%-5d %-10s %-10s %-25s %-20s %s\n",
			entry.ID,
			entry.PreviousStatus,
			entry.NewStatus,
			entry.Actor,
			entry.ActionTime.Format("2006-01-02 15:04:05"),
			entry.Comment,
		)
	}

	return nil
}

func sweepExpiry(cmd *cobra.Command, args []string) error {
	if err := initDB(); err != nil {
		return err
	}
	defer database.Close()

	accountRepo := repository.NewAccountRepository(database.DB)
	certRepo := repository.NewCertificateRepository(database.DB)
	propagator := expiry.NewPropagator(accountRepo, certRepo, clock.System{}, zapLogger)

	changed, err := propagator.Sweep()
	if err != nil {
		return fmt.Errorf("expiry sweep failed: %w", err)
	}

	if len(changed) == 0 {
		fmt.Println("No activation changes")
		return nil
	}

	fmt.Printf("Activation changed for %d account(s): %v\n", len(changed), changed)
	return nil
}

func sweepIntegrity(cmd *cobra.Command, args []string) error {
	if err := initDB(); err != nil {
		return err
	}
	defer database.Close()

	service, err := buildCertService()
	if err != nil {
		return err
	}

	tampered, err := service.SweepIntegrity()
	if err != nil {
		return fmt.Errorf("integrity sweep failed: %w", err)
	}

	if len(tampered) == 0 {
		fmt.Println("All certificates verified")
		return nil
	}

	log.Printf("Suspected tampering on %d certificate(s): %v", len(tampered), tampered)
	return nil
}

func buildStateMachine() *approval.StateMachine {
	accountRepo := repository.NewAccountRepository(database.DB)
	certRepo := repository.NewCertificateRepository(database.DB)
	productRepo := repository.NewProductRepository(database.DB)
	approvalRepo := repository.NewApprovalRepository(database.DB)
	qrRepo := repository.NewQRRepository(database.DB)

	renderer := qr.NewRenderer(cfg.Server.PublicBaseURL)
	coordinator := qr.NewCoordinator(qrRepo, renderer, zapLogger)

	return approval.NewStateMachine(database, accountRepo, certRepo, productRepo, approvalRepo, coordinator, clock.System{}, zapLogger)
}

func buildCertService() (*certs.Service, error) {
	blobStore, err := blob.NewFileStore(cfg.Storage.BlobDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open blob store: %w", err)
	}

	certRepo := repository.NewCertificateRepository(database.DB)
	versionRepo := repository.NewVersionRepository(database.DB)
	approvalRepo := repository.NewApprovalRepository(database.DB)
	validator := policy.NewValidator(cfg)
	extractor := extract.New(zapLogger)

	return certs.NewService(database, certRepo, versionRepo, approvalRepo, blobStore, extractor, validator, clock.System{}, zapLogger), nil
}

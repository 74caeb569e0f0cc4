package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dtrackhq/dtrack/internal/auth"
	"github.com/dtrackhq/dtrack/internal/db/repository"
	"github.com/dtrackhq/dtrack/internal/expiry"
	"github.com/dtrackhq/dtrack/internal/models"
)

// AccountHandler handles account administration
type AccountHandler struct {
	accountRepo  *repository.AccountRepository
	approvalRepo *repository.ApprovalRepository
	propagator   *expiry.Propagator
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(accountRepo *repository.AccountRepository, approvalRepo *repository.ApprovalRepository, propagator *expiry.Propagator) *AccountHandler {
	return &AccountHandler{
		accountRepo:  accountRepo,
		approvalRepo: approvalRepo,
		propagator:   propagator,
	}
}

// CreateAccountRequest represents an account creation request
type CreateAccountRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	Role        string `json:"role" binding:"required"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number"`
	Language    string `json:"language"`
}

// CreateAccountResponse represents an account creation response
type CreateAccountResponse struct {
	Status    string `json:"status"`
	AccountID int64  `json:"account_id"`
	TOTPQRUrl string `json:"totp_qr_url"`
}

// CreateAccount creates a new account with TOTP enrolment. Supplier
// accounts start pending with an approval request on file; staff
// accounts are approved and active immediately.
// POST /v1/admin/accounts
func (h *AccountHandler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	if req.Role != models.RoleAdmin && req.Role != models.RoleOperator && req.Role != models.RoleSupplier {
		RespondError(c, http.StatusBadRequest, "invalid_role", "Role must be admin, operator or supplier")
		return
	}

	existing, _ := h.accountRepo.GetByEmail(req.Email)
	if existing != nil {
		RespondError(c, http.StatusConflict, "account_exists", "Account already exists")
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Printf("Error hashing password: %v", err)
		RespondError(c, http.StatusInternalServerError, "internal_error", "Failed to hash password")
		return
	}

	totpSecret, err := auth.GenerateTOTPSecret(req.Email)
	if err != nil {
		log.Printf("Error generating TOTP secret: %v", err)
		RespondError(c, http.StatusInternalServerError, "internal_error", "Failed to generate TOTP secret")
		return
	}

	language := req.Language
	if language == "" {
		language = "en"
	}

	status := models.StatusApproved
	if req.Role == models.RoleSupplier {
		status = models.StatusPending
	}

	account := &models.Account{
		Email:          req.Email,
		PasswordHash:   passwordHash,
		TOTPSecret:     totpSecret,
		Role:           req.Role,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		PhoneNumber:    req.PhoneNumber,
		Language:       language,
		Active:         true,
		ApprovalStatus: status,
	}

	if err := h.accountRepo.Create(account); err != nil {
		log.Printf("Error creating account: %v", err)
		RespondError(c, http.StatusInternalServerError, "database_error", "Failed to create account")
		return
	}

	if account.IsSupplier() {
		req := &models.ApprovalRequest{
			RequesterID: account.ID,
			EntityKind:  models.KindSupplier,
			EntityID:    account.ID,
			Comments:    "supplier registration",
		}
		if err := h.approvalRepo.CreateRequest(req); err != nil {
			log.Printf("Error creating approval request: %v", err)
			RespondError(c, http.StatusInternalServerError, "database_error", "Failed to create approval request")
			return
		}
	}

	qrURL := auth.GenerateQRCodeURL(totpSecret, req.Email, "")

	c.JSON(http.StatusOK, CreateAccountResponse{
		Status:    "ok",
		AccountID: account.ID,
		TOTPQRUrl: qrURL,
	})
}

// ListAccounts lists accounts, optionally filtered by role
// GET /v1/admin/accounts
func (h *AccountHandler) ListAccounts(c *gin.Context) {
	accounts, err := h.accountRepo.List(c.Query("role"))
	if err != nil {
		RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

// RecomputeActivation re-evaluates one account's activation against its
// certificate expiry dates
// POST /v1/admin/accounts/:id/recompute
func (h *AccountHandler) RecomputeActivation(c *gin.Context) {
	accountID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", "Invalid account id")
		return
	}

	changed, err := h.propagator.Recompute(accountID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}

	account, err := h.accountRepo.GetByID(accountID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"changed": changed,
		"active":  account.Active,
	})
}

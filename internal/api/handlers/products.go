package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dtrackhq/dtrack/internal/db/repository"
	"github.com/dtrackhq/dtrack/internal/models"
)

// ProductHandler handles supplier product registration
type ProductHandler struct {
	productRepo  *repository.ProductRepository
	accountRepo  *repository.AccountRepository
	approvalRepo *repository.ApprovalRepository
}

// NewProductHandler creates a new product handler
func NewProductHandler(productRepo *repository.ProductRepository, accountRepo *repository.AccountRepository, approvalRepo *repository.ApprovalRepository) *ProductHandler {
	return &ProductHandler{
		productRepo:  productRepo,
		accountRepo:  accountRepo,
		approvalRepo: approvalRepo,
	}
}

// RegisterProductRequest represents a product registration request
type RegisterProductRequest struct {
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	TOTP        string `json:"totp" binding:"required"`
	Name        string `json:"name" binding:"required"`
	SKU         string `json:"sku" binding:"required"`
	Description string `json:"description"`
}

// RegisterProduct registers a product pending approval
// POST /v1/products
func (h *ProductHandler) RegisterProduct(c *gin.Context) {
	var req RegisterProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	account := authenticateSupplier(c, h.accountRepo, req.Email, req.Password, req.TOTP)
	if account == nil {
		return
	}

	product := &models.Product{
		AccountID:   account.ID,
		Name:        req.Name,
		SKU:         req.SKU,
		Description: req.Description,
	}

	if err := h.productRepo.Create(product); err != nil {
		if repository.IsUniqueViolation(err) {
			RespondError(c, http.StatusConflict, "sku_exists", "A product with this SKU already exists")
			return
		}
		log.Printf("Error creating product: %v", err)
		RespondError(c, http.StatusInternalServerError, "database_error", "Failed to create product")
		return
	}

	approvalReq := &models.ApprovalRequest{
		RequesterID: account.ID,
		EntityKind:  models.KindProduct,
		EntityID:    product.ID,
		Comments:    "product registration",
	}
	if err := h.approvalRepo.CreateRequest(approvalReq); err != nil {
		log.Printf("Error creating approval request: %v", err)
		RespondError(c, http.StatusInternalServerError, "database_error", "Failed to create approval request")
		return
	}

	c.JSON(http.StatusCreated, product)
}

// ListByAccount returns an account's products
// GET /v1/admin/accounts/:id/products
func (h *ProductHandler) ListByAccount(c *gin.Context) {
	accountID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", "Invalid account id")
		return
	}

	products, err := h.productRepo.ListByAccount(accountID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"products": products})
}

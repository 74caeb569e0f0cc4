package handlers

import (
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dtrackhq/dtrack/internal/certs"
	"github.com/dtrackhq/dtrack/internal/config"
	"github.com/dtrackhq/dtrack/internal/db/repository"
)

// CertHandler handles certificate upload, reupload and integrity checks
type CertHandler struct {
	config      *config.Config
	service     *certs.Service
	accountRepo *repository.AccountRepository
}

// NewCertHandler creates a new certificate handler
func NewCertHandler(cfg *config.Config, service *certs.Service, accountRepo *repository.AccountRepository) *CertHandler {
	return &CertHandler{
		config:      cfg,
		service:     service,
		accountRepo: accountRepo,
	}
}

// UploadCertificate handles a first-time certificate upload
// POST /v1/certs
func (h *CertHandler) UploadCertificate(c *gin.Context) {
	account := authenticateSupplier(c,
		h.accountRepo,
		c.PostForm("email"),
		c.PostForm("password"),
		c.PostForm("totp"),
	)
	if account == nil {
		return
	}

	in, ok := h.readUpload(c)
	if !ok {
		return
	}
	in.AccountID = account.ID

	cert, err := h.service.Ingest(in)
	if err != nil {
		RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, cert)
}

// ReuploadCertificate replaces the document of an existing certificate
// POST /v1/certs/:id/reupload
func (h *CertHandler) ReuploadCertificate(c *gin.Context) {
	account := authenticateSupplier(c,
		h.accountRepo,
		c.PostForm("email"),
		c.PostForm("password"),
		c.PostForm("totp"),
	)
	if account == nil {
		return
	}

	certID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", "Invalid certificate id")
		return
	}

	existing, err := h.service.Get(certID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	if existing.AccountID != account.ID {
		RespondError(c, http.StatusForbidden, "forbidden", "Certificate belongs to another account")
		return
	}

	in, ok := h.readUpload(c)
	if !ok {
		return
	}
	in.AccountID = account.ID

	cert, err := h.service.Reupload(certID, in)
	if err != nil {
		RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, cert)
}

// GetCertificate returns one certificate
// GET /v1/admin/certs/:id
func (h *CertHandler) GetCertificate(c *gin.Context) {
	certID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", "Invalid certificate id")
		return
	}

	cert, err := h.service.Get(certID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, cert)
}

// ListVersions returns the archived version history of a certificate
// GET /v1/admin/certs/:id/versions
func (h *CertHandler) ListVersions(c *gin.Context) {
	certID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", "Invalid certificate id")
		return
	}

	versions, err := h.service.Versions(certID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"versions": versions})
}

// VerifyIntegrity recomputes and records the certificate's integrity
// POST /v1/admin/certs/:id/verify
func (h *CertHandler) VerifyIntegrity(c *gin.Context) {
	certID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", "Invalid certificate id")
		return
	}

	result, err := h.service.VerifyIntegrity(certID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListByAccount returns an account's certificates
// GET /v1/admin/accounts/:id/certs
func (h *CertHandler) ListByAccount(c *gin.Context) {
	accountID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", "Invalid account id")
		return
	}

	list, err := h.service.ListByAccount(accountID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"certificates": list})
}

// readUpload parses the multipart document and declared metadata. It
// writes the error response itself and reports ok=false on failure.
func (h *CertHandler) readUpload(c *gin.Context) (certs.UploadInput, bool) {
	var in certs.UploadInput

	issueDate, err := time.Parse("2006-01-02", c.PostForm("issue_date"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", "issue_date must be YYYY-MM-DD")
		return in, false
	}

	expiryDate, err := time.Parse("2006-01-02", c.PostForm("expiry_date"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", "expiry_date must be YYYY-MM-DD")
		return in, false
	}

	fileHeader, err := c.FormFile("document")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", "document file is required")
		return in, false
	}

	if max := h.config.Policy.MaxUploadBytes; max > 0 && fileHeader.Size > max {
		RespondError(c, http.StatusRequestEntityTooLarge, "file_too_large", "Document exceeds the maximum upload size")
		return in, false
	}

	f, err := fileHeader.Open()
	if err != nil {
		log.Printf("Error opening uploaded file: %v", err)
		RespondError(c, http.StatusInternalServerError, "internal_error", "Failed to read uploaded file")
		return in, false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		log.Printf("Error reading uploaded file: %v", err)
		RespondError(c, http.StatusInternalServerError, "internal_error", "Failed to read uploaded file")
		return in, false
	}

	name := c.PostForm("name")
	if name == "" {
		name = fileHeader.Filename
	}

	in = certs.UploadInput{
		Name:        name,
		Description: c.PostForm("description"),
		Filename:    fileHeader.Filename,
		Data:        data,
		IssueDate:   issueDate,
		ExpiryDate:  expiryDate,
	}
	return in, true
}

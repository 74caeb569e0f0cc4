package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dtrackhq/dtrack/internal/db/repository"
	"github.com/dtrackhq/dtrack/internal/models"
	"github.com/dtrackhq/dtrack/internal/qr"
)

// QRHandler handles QR issuance, regeneration and public verification
type QRHandler struct {
	coordinator *qr.Coordinator
	certRepo    *repository.CertificateRepository
	productRepo *repository.ProductRepository
	accountRepo *repository.AccountRepository
}

// NewQRHandler creates a new QR handler
func NewQRHandler(coordinator *qr.Coordinator, certRepo *repository.CertificateRepository, productRepo *repository.ProductRepository, accountRepo *repository.AccountRepository) *QRHandler {
	return &QRHandler{
		coordinator: coordinator,
		certRepo:    certRepo,
		productRepo: productRepo,
		accountRepo: accountRepo,
	}
}

// IssuanceResponse is the issuance record without the image payload
type IssuanceResponse struct {
	Status   string             `json:"status"`
	Issuance *models.QRIssuance `json:"issuance"`
}

// Issue returns the subject's issuance, creating one for an approved
// subject that has none
// POST /v1/admin/qr/:kind/:id
func (h *QRHandler) Issue(c *gin.Context) {
	kind, subjectID, ok := h.readSubject(c)
	if !ok {
		return
	}

	status, err := h.subjectStatus(kind, subjectID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}

	iss, err := h.coordinator.Issue(kind, subjectID, status)
	if err != nil {
		RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, IssuanceResponse{Status: "ok", Issuance: iss})
}

// Regenerate re-renders the QR image, keeping the token stable
// POST /v1/admin/qr/:kind/:id/regenerate
func (h *QRHandler) Regenerate(c *gin.Context) {
	kind, subjectID, ok := h.readSubject(c)
	if !ok {
		return
	}

	iss, err := h.coordinator.Regenerate(kind, subjectID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, IssuanceResponse{Status: "ok", Issuance: iss})
}

// RotateToken replaces a leaked token with a fresh one
// POST /v1/admin/qr/:kind/:id/rotate
func (h *QRHandler) RotateToken(c *gin.Context) {
	kind, subjectID, ok := h.readSubject(c)
	if !ok {
		return
	}

	iss, err := h.coordinator.RotateToken(kind, subjectID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, IssuanceResponse{Status: "ok", Issuance: iss})
}

// VerifyResponse is what a scanned QR code resolves to. It names the
// subject and its current standing without exposing internal ids beyond
// what the subject itself shows.
type VerifyResponse struct {
	SubjectKind    string `json:"subject_kind"`
	Name           string `json:"name"`
	ApprovalStatus string `json:"approval_status"`
	Verified       bool   `json:"verified"`
	ExpiryDate     string `json:"expiry_date,omitempty"`
}

// Verify resolves a public token to its subject's current standing
// GET /v1/verify/:token
func (h *QRHandler) Verify(c *gin.Context) {
	iss, err := h.coordinator.Resolve(c.Param("token"))
	if err != nil {
		RespondServiceError(c, err)
		return
	}

	resp := VerifyResponse{SubjectKind: iss.SubjectKind}

	switch iss.SubjectKind {
	case models.KindSupplier:
		account, err := h.accountRepo.GetByID(iss.SubjectID)
		if err != nil {
			RespondServiceError(c, err)
			return
		}
		resp.Name = supplierDisplayName(account)
		resp.ApprovalStatus = account.ApprovalStatus
		resp.Verified = account.ApprovalStatus == models.StatusApproved && account.Active
	case models.KindCertificate:
		cert, err := h.certRepo.GetByID(iss.SubjectID)
		if err != nil {
			RespondServiceError(c, err)
			return
		}
		resp.Name = cert.Name
		resp.ApprovalStatus = cert.ApprovalStatus
		resp.Verified = cert.ApprovalStatus == models.StatusApproved && !cert.SuspectedTampered
		resp.ExpiryDate = cert.ExpiryDate.Format("2006-01-02")
	case models.KindProduct:
		product, err := h.productRepo.GetByID(iss.SubjectID)
		if err != nil {
			RespondServiceError(c, err)
			return
		}
		resp.Name = product.Name
		resp.ApprovalStatus = product.ApprovalStatus
		resp.Verified = product.ApprovalStatus == models.StatusApproved
	default:
		RespondError(c, http.StatusNotFound, "not_found", "Record not found")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// VerifyImage serves the rendered QR image for a token
// GET /v1/verify/:token/image
func (h *QRHandler) VerifyImage(c *gin.Context) {
	iss, err := h.coordinator.Resolve(c.Param("token"))
	if err != nil {
		RespondServiceError(c, err)
		return
	}

	c.Data(http.StatusOK, "image/png", iss.Image)
}

func (h *QRHandler) readSubject(c *gin.Context) (string, int64, bool) {
	kind := c.Param("kind")
	if !models.ValidKind(kind) {
		RespondError(c, http.StatusBadRequest, "invalid_kind", "kind must be supplier, certificate or product")
		return "", 0, false
	}

	subjectID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", "Invalid subject id")
		return "", 0, false
	}

	return kind, subjectID, true
}

func (h *QRHandler) subjectStatus(kind string, subjectID int64) (string, error) {
	switch kind {
	case models.KindSupplier:
		account, err := h.accountRepo.GetByID(subjectID)
		if err != nil {
			return "", err
		}
		return account.ApprovalStatus, nil
	case models.KindCertificate:
		cert, err := h.certRepo.GetByID(subjectID)
		if err != nil {
			return "", err
		}
		return cert.ApprovalStatus, nil
	case models.KindProduct:
		product, err := h.productRepo.GetByID(subjectID)
		if err != nil {
			return "", err
		}
		return product.ApprovalStatus, nil
	}
	return "", models.ErrNotFound
}

func supplierDisplayName(account *models.Account) string {
	name := strings.TrimSpace(account.FirstName + " " + account.LastName)
	if name == "" {
		return account.Email
	}
	return name
}

package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dtrackhq/dtrack/internal/approval"
	"github.com/dtrackhq/dtrack/internal/db/repository"
	"github.com/dtrackhq/dtrack/internal/models"
)

const defaultLogLimit = 100

// ApprovalHandler handles reviewer transitions and the approval log
type ApprovalHandler struct {
	machine      *approval.StateMachine
	approvalRepo *repository.ApprovalRepository
	accountRepo  *repository.AccountRepository
}

// NewApprovalHandler creates a new approval handler
func NewApprovalHandler(machine *approval.StateMachine, approvalRepo *repository.ApprovalRepository, accountRepo *repository.AccountRepository) *ApprovalHandler {
	return &ApprovalHandler{
		machine:      machine,
		approvalRepo: approvalRepo,
		accountRepo:  accountRepo,
	}
}

// TransitionRequest represents a reviewer decision
type TransitionRequest struct {
	EntityKind    string `json:"entity_kind" binding:"required"`
	EntityID      int64  `json:"entity_id" binding:"required"`
	NewStatus     string `json:"new_status" binding:"required"`
	ReviewerEmail string `json:"reviewer_email" binding:"required"`
	Comment       string `json:"comment"`
}

// Transition applies one approval transition
// POST /v1/admin/approvals
func (h *ApprovalHandler) Transition(c *gin.Context) {
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	if !models.ValidKind(req.EntityKind) {
		RespondError(c, http.StatusBadRequest, "invalid_kind", "entity_kind must be supplier, certificate or product")
		return
	}
	if !models.ValidStatus(req.NewStatus) {
		RespondError(c, http.StatusBadRequest, "invalid_status", "new_status must be pending, approved or rejected")
		return
	}

	reviewer, err := h.accountRepo.GetByEmail(req.ReviewerEmail)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "unknown_reviewer", "Reviewer account not found")
		return
	}
	if reviewer.Role != models.RoleAdmin && reviewer.Role != models.RoleOperator {
		RespondError(c, http.StatusForbidden, "forbidden", "Reviewer must be staff")
		return
	}

	entry, err := h.machine.Transition(req.EntityKind, req.EntityID, req.NewStatus, reviewer.Email, reviewer.ID, req.Comment)
	if err != nil {
		RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, entry)
}

// ListRequests lists approval requests, optionally filtered by status
// GET /v1/admin/approvals/requests
func (h *ApprovalHandler) ListRequests(c *gin.Context) {
	status := c.Query("status")
	if status != "" && !models.ValidStatus(status) {
		RespondError(c, http.StatusBadRequest, "invalid_status", "status must be pending, approved or rejected")
		return
	}

	limit := defaultLogLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			RespondError(c, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = n
	}

	requests, err := h.approvalRepo.ListRequests(status, limit)
	if err != nil {
		RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

// History returns an entity's transition log in order
// GET /v1/admin/approvals/:kind/:id/log
func (h *ApprovalHandler) History(c *gin.Context) {
	kind := c.Param("kind")
	if !models.ValidKind(kind) {
		RespondError(c, http.StatusBadRequest, "invalid_kind", "kind must be supplier, certificate or product")
		return
	}

	entityID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", "Invalid entity id")
		return
	}

	logs, err := h.machine.History(kind, entityID, defaultLogLimit)
	if err != nil {
		RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"log": logs})
}

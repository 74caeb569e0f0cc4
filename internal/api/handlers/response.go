package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dtrackhq/dtrack/internal/models"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// RespondError sends an error response
func RespondError(c *gin.Context, statusCode int, errorCode string, message string) {
	c.JSON(statusCode, ErrorResponse{
		Error:   errorCode,
		Message: message,
	})
}

// RespondServiceError maps service layer errors onto HTTP statuses.
// Validation failures carry the failed check so uploaders can fix the
// document instead of guessing.
func RespondServiceError(c *gin.Context, err error) {
	if ve, ok := models.AsValidationError(err); ok {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation_failed",
			Message: ve.Reason,
			Details: gin.H{"check": ve.Check},
		})
		return
	}

	switch err {
	case models.ErrNotFound:
		RespondError(c, http.StatusNotFound, "not_found", "Record not found")
	case models.ErrNotApproved:
		RespondError(c, http.StatusConflict, "not_approved", "Subject is not approved")
	case models.ErrVersionConflict:
		RespondError(c, http.StatusConflict, "version_conflict", "Certificate was modified concurrently, retry the upload")
	default:
		log.Printf("Internal error: %v", err)
		RespondError(c, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

// GetClientIP gets the real client IP address
func GetClientIP(c *gin.Context) string {
	// Try X-Forwarded-For header first (for proxied requests)
	if ip := c.GetHeader("X-Forwarded-For"); ip != "" {
		return ip
	}

	// Try X-Real-IP header
	if ip := c.GetHeader("X-Real-IP"); ip != "" {
		return ip
	}

	// Fall back to RemoteAddr
	return c.ClientIP()
}

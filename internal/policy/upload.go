package policy

import (
	"fmt"
	"time"

	"github.com/dtrackhq/dtrack/internal/config"
	"github.com/dtrackhq/dtrack/internal/extract"
	"github.com/dtrackhq/dtrack/internal/models"
)

// Validator validates certificate uploads against policy
type Validator struct {
	config *config.Config
}

// NewValidator creates a new upload policy validator
func NewValidator(cfg *config.Config) *Validator {
	return &Validator{config: cfg}
}

// ValidateUpload checks format, size and declared dates before any
// extraction work is spent on the blob
func (v *Validator) ValidateUpload(name string, size int64, issueDate, expiryDate time.Time) error {
	if size == 0 {
		return models.NewValidationError(models.CheckEmptyFile, "uploaded file is empty")
	}

	if max := v.config.Policy.MaxUploadBytes; max > 0 && size > max {
		return models.NewValidationError(models.CheckFileTooLarge,
			fmt.Sprintf("file exceeds maximum upload size of %d bytes", max))
	}

	if !extract.Supported(name) {
		return models.NewValidationError(models.CheckUnsupportedFormat,
			"only PDF, JPG and PNG documents are accepted")
	}

	if expiryDate.Before(issueDate) {
		return models.NewValidationError(models.CheckDateMismatch,
			"expiry date is before issue date")
	}

	return nil
}

// CrossValidateDates checks the declared dates against the text extracted
// from the document and returns an actionable error naming the failed
// check. False negatives are preferred to false positives here.
func (v *Validator) CrossValidateDates(text string, issueDate, expiryDate time.Time) error {
	if text == "" || len(ExtractDates(text)) == 0 {
		return models.NewValidationError(models.CheckNoDates,
			"no dates could be read from the document; upload a clearer copy")
	}

	if !ValidateDates(text, issueDate, expiryDate) {
		return models.NewValidationError(models.CheckDateMismatch,
			"the declared issue and expiry dates were not found in the document")
	}

	return nil
}

package models

import "time"

// Certificate represents an uploaded compliance document with tamper
// detection and versioning. file_hash always reflects the current blob;
// the version counter increases by exactly 1 per content change.
type Certificate struct {
	ID                int64      `json:"id"`
	AccountID         int64      `json:"account_id"`
	Name              string     `json:"name"`
	Description       string     `json:"description,omitempty"`
	BlobRef           string     `json:"-"` // Blob store reference, never exposed
	FileHash          string     `json:"file_hash"`
	IssueDate         time.Time  `json:"issue_date"`
	ExpiryDate        time.Time  `json:"expiry_date"`
	UploadTime        time.Time  `json:"upload_time"`
	LastChecked       *time.Time `json:"last_checked,omitempty"`
	Verified          bool       `json:"verified"`
	SuspectedTampered bool       `json:"suspected_tampered"`
	Version           int        `json:"version"`
	ApprovalStatus    string     `json:"approval_status"`
	QRIssuanceID      *int64     `json:"qr_issuance_id,omitempty"`
}

// CertificateVersion is one archived content state of a certificate.
// Rows are append-only and never rewritten.
type CertificateVersion struct {
	ID            int64     `json:"id"`
	CertificateID int64     `json:"certificate_id"`
	Version       int       `json:"version"`
	FileHash      string    `json:"file_hash"`
	UploadedAt    time.Time `json:"uploaded_at"`
}

// IntegrityResult is the outcome of an integrity verification pass.
type IntegrityResult struct {
	Verified          bool      `json:"verified"`
	SuspectedTampered bool      `json:"suspected_tampered"`
	CheckedAt         time.Time `json:"checked_at"`
}

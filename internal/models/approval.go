package models

import "time"

// Approval statuses
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Approvable entity kinds
const (
	KindSupplier    = "supplier"
	KindCertificate = "certificate"
	KindProduct     = "product"
)

// ValidStatus reports whether s is a known approval status.
func ValidStatus(s string) bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// ValidKind reports whether k is an approvable entity kind.
func ValidKind(k string) bool {
	return k == KindSupplier || k == KindCertificate || k == KindProduct
}

// ApprovalRequest represents a pending review of a supplier, certificate
// or product
type ApprovalRequest struct {
	ID          int64      `json:"id"`
	RequesterID int64      `json:"requester_id"`
	EntityKind  string     `json:"entity_kind"`
	EntityID    int64      `json:"entity_id"`
	Status      string     `json:"status"`
	ReviewedBy  *int64     `json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	RequestTime time.Time  `json:"request_time"`
	Comments    string     `json:"comments,omitempty"`
}

// ApprovalLog is one immutable audit record of a status transition.
// Rows are never updated or deleted; they are the sole audit trail.
type ApprovalLog struct {
	ID             int64     `json:"id"`
	EntityKind     string    `json:"entity_kind"`
	EntityID       int64     `json:"entity_id"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	Actor          string    `json:"actor"`
	ActionTime     time.Time `json:"action_time"`
	Comment        string    `json:"comment,omitempty"`
}

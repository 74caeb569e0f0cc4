package models

import "time"

// Product represents a product registered by a supplier
type Product struct {
	ID             int64     `json:"id"`
	AccountID      int64     `json:"account_id"`
	Name           string    `json:"name"`
	SKU            string    `json:"sku"`
	Description    string    `json:"description,omitempty"`
	ApprovalStatus string    `json:"approval_status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

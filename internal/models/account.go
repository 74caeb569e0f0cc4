package models

import "time"

// Account roles
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleSupplier = "supplier"
)

// Account represents a supplier or staff account
type Account struct {
	ID             int64     `json:"id"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"` // Never expose password hash in JSON
	TOTPSecret     string    `json:"-"` // Never expose TOTP secret in JSON
	Role           string    `json:"role"`
	FirstName      string    `json:"first_name,omitempty"`
	LastName       string    `json:"last_name,omitempty"`
	PhoneNumber    string    `json:"phone_number,omitempty"`
	Language       string    `json:"language"`
	Active         bool      `json:"active"`
	ApprovalStatus string    `json:"approval_status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsSupplier reports whether the account can own certificates and products.
func (a *Account) IsSupplier() bool {
	return a.Role == RoleSupplier
}

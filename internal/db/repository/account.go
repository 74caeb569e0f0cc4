package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dtrackhq/dtrack/internal/models"
)

// AccountRepository handles account data access
type AccountRepository struct {
	db *sql.DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create creates a new account
func (r *AccountRepository) Create(account *models.Account) error {
	query := `
		INSERT INTO accounts (email, password_hash, totp_secret, role, first_name, last_name, phone_number, language, active, approval_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	active := 0
	if account.Active {
		active = 1
	}

	result, err := r.db.Exec(query,
		account.Email,
		account.PasswordHash,
		account.TOTPSecret,
		account.Role,
		account.FirstName,
		account.LastName,
		account.PhoneNumber,
		account.Language,
		active,
		account.ApprovalStatus,
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	account.ID = id
	account.CreatedAt = time.Now()
	account.UpdatedAt = time.Now()

	return nil
}

// GetByID retrieves an account by id
func (r *AccountRepository) GetByID(id int64) (*models.Account, error) {
	return r.getBy("id = ?", id)
}

// GetByEmail retrieves an account by email
func (r *AccountRepository) GetByEmail(email string) (*models.Account, error) {
	return r.getBy("email = ?", email)
}

func (r *AccountRepository) getBy(where string, arg interface{}) (*models.Account, error) {
	query := `
		SELECT id, email, password_hash, totp_secret, role, first_name, last_name, phone_number, language, active, approval_status, created_at, updated_at
		FROM accounts
		WHERE ` + where

	account := &models.Account{}
	var active int

	err := r.db.QueryRow(query, arg).Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.TOTPSecret,
		&account.Role,
		&account.FirstName,
		&account.LastName,
		&account.PhoneNumber,
		&account.Language,
		&active,
		&account.ApprovalStatus,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	account.Active = active == 1
	return account, nil
}

// List lists all accounts, optionally filtered by role
func (r *AccountRepository) List(role string) ([]*models.Account, error) {
	query := `
		SELECT id, email, password_hash, totp_secret, role, first_name, last_name, phone_number, language, active, approval_status, created_at, updated_at
		FROM accounts
	`
	args := []interface{}{}
	if role != "" {
		query += " WHERE role = ?"
		args = append(args, role)
	}
	query += " ORDER BY id"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account := &models.Account{}
		var active int
		err := rows.Scan(
			&account.ID,
			&account.Email,
			&account.PasswordHash,
			&account.TOTPSecret,
			&account.Role,
			&account.FirstName,
			&account.LastName,
			&account.PhoneNumber,
			&account.Language,
			&active,
			&account.ApprovalStatus,
			&account.CreatedAt,
			&account.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		account.Active = active == 1
		accounts = append(accounts, account)
	}

	return accounts, rows.Err()
}

// SetActive writes the active flag for an account
func (r *AccountRepository) SetActive(id int64, active bool) error {
	val := 0
	if active {
		val = 1
	}

	result, err := r.db.Exec(`UPDATE accounts SET active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, val, id)
	if err != nil {
		return fmt.Errorf("failed to set account active flag: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return models.ErrNotFound
	}
	return nil
}

// UpdateApprovalStatus writes the approval status for an account. It
// accepts a Queryer so the state machine can run it inside a transaction.
func (r *AccountRepository) UpdateApprovalStatus(q Queryer, id int64, status string) error {
	result, err := q.Exec(`UPDATE accounts SET approval_status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update account approval status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return models.ErrNotFound
	}
	return nil
}

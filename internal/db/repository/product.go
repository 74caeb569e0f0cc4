package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dtrackhq/dtrack/internal/models"
)

// ProductRepository handles product data access
type ProductRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create registers a new product for a supplier
func (r *ProductRepository) Create(product *models.Product) error {
	query := `
		INSERT INTO products (account_id, name, sku, description, approval_status)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := r.db.Exec(query,
		product.AccountID,
		product.Name,
		product.SKU,
		product.Description,
		models.StatusPending,
	)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	product.ID = id
	product.ApprovalStatus = models.StatusPending
	product.CreatedAt = time.Now()
	product.UpdatedAt = time.Now()

	return nil
}

// GetByID retrieves a product by id
func (r *ProductRepository) GetByID(id int64) (*models.Product, error) {
	query := `
		SELECT id, account_id, name, sku, description, approval_status, created_at, updated_at
		FROM products
		WHERE id = ?
	`

	product := &models.Product{}
	err := r.db.QueryRow(query, id).Scan(
		&product.ID,
		&product.AccountID,
		&product.Name,
		&product.SKU,
		&product.Description,
		&product.ApprovalStatus,
		&product.CreatedAt,
		&product.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return product, nil
}

// ListByAccount lists all products registered by an account
func (r *ProductRepository) ListByAccount(accountID int64) ([]*models.Product, error) {
	query := `
		SELECT id, account_id, name, sku, description, approval_status, created_at, updated_at
		FROM products
		WHERE account_id = ?
		ORDER BY id
	`

	rows, err := r.db.Query(query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		product := &models.Product{}
		err := rows.Scan(
			&product.ID,
			&product.AccountID,
			&product.Name,
			&product.SKU,
			&product.Description,
			&product.ApprovalStatus,
			&product.CreatedAt,
			&product.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	return products, rows.Err()
}

// UpdateApprovalStatus writes the approval status for a product
func (r *ProductRepository) UpdateApprovalStatus(q Queryer, id int64, status string) error {
	result, err := q.Exec(`UPDATE products SET approval_status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update product approval status: %w", err)
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

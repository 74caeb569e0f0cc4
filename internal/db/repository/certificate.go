package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dtrackhq/dtrack/internal/models"
)

// CertificateRepository handles certificate data access
type CertificateRepository struct {
	db *sql.DB
}

// NewCertificateRepository creates a new certificate repository
func NewCertificateRepository(db *sql.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

const certificateColumns = `id, account_id, name, description, blob_ref, file_hash, issue_date, expiry_date, upload_time, last_checked, verified, suspected_tampered, version, approval_status, qr_issuance_id`

// Create persists a new certificate at version 1
func (r *CertificateRepository) Create(cert *models.Certificate) error {
	query := `
		INSERT INTO certificates (account_id, name, description, blob_ref, file_hash, issue_date, expiry_date, upload_time, version, approval_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
	`

	now := time.Now()
	result, err := r.db.Exec(query,
		cert.AccountID,
		cert.Name,
		cert.Description,
		cert.BlobRef,
		cert.FileHash,
		cert.IssueDate.Format("2006-01-02"),
		cert.ExpiryDate.Format("2006-01-02"),
		now,
		models.StatusPending,
	)
	if err != nil {
		return fmt.Errorf("failed to create certificate: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	cert.ID = id
	cert.Version = 1
	cert.UploadTime = now
	cert.ApprovalStatus = models.StatusPending

	return nil
}

// GetByID retrieves a certificate by id
func (r *CertificateRepository) GetByID(id int64) (*models.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE id = ?`
	return scanCertificate(r.db.QueryRow(query, id))
}

// ListByAccount lists all certificates owned by an account
func (r *CertificateRepository) ListByAccount(accountID int64) ([]*models.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE account_id = ? ORDER BY id`

	rows, err := r.db.Query(query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list certificates: %w", err)
	}
	defer rows.Close()

	return collectCertificates(rows)
}

// ListAll lists every certificate; used by the integrity sweep
func (r *CertificateRepository) ListAll() ([]*models.Certificate, error) {
	rows, err := r.db.Query(`SELECT ` + certificateColumns + ` FROM certificates ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list certificates: %w", err)
	}
	defer rows.Close()

	return collectCertificates(rows)
}

// UpdateContent replaces the certificate's blob reference, hash, declared
// dates and upload time, incrementing the version by exactly 1. The
// expectedVersion guard makes the update optimistic: a concurrent writer
// on the same certificate produces ErrVersionConflict instead of an
// archive entry built from a stale previous hash.
func (r *CertificateRepository) UpdateContent(q Queryer, cert *models.Certificate, expectedVersion int) error {
	query := `
		UPDATE certificates
		SET name = ?, description = ?, blob_ref = ?, file_hash = ?, issue_date = ?, expiry_date = ?, upload_time = ?,
		    verified = 0, suspected_tampered = 0, version = version + 1
		WHERE id = ? AND version = ?
	`

	now := time.Now()
	result, err := q.Exec(query,
		cert.Name,
		cert.Description,
		cert.BlobRef,
		cert.FileHash,
		cert.IssueDate.Format("2006-01-02"),
		cert.ExpiryDate.Format("2006-01-02"),
		now,
		cert.ID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update certificate content: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return models.ErrVersionConflict
	}

	cert.Version = expectedVersion + 1
	cert.UploadTime = now
	cert.Verified = false
	cert.SuspectedTampered = false

	return nil
}

// UpdateMetadata updates declared dates without a content change
func (r *CertificateRepository) UpdateMetadata(id int64, name, description string, issueDate, expiryDate time.Time) error {
	query := `
		UPDATE certificates
		SET name = ?, description = ?, issue_date = ?, expiry_date = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query, name, description, issueDate.Format("2006-01-02"), expiryDate.Format("2006-01-02"), id)
	if err != nil {
		return fmt.Errorf("failed to update certificate metadata: %w", err)
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

// UpdateIntegrity records the outcome of an integrity verification pass
func (r *CertificateRepository) UpdateIntegrity(id int64, verified, suspectedTampered bool, checkedAt time.Time) error {
	v, t := 0, 0
	if verified {
		v = 1
	}
	if suspectedTampered {
		t = 1
	}

	result, err := r.db.Exec(
		`UPDATE certificates SET verified = ?, suspected_tampered = ?, last_checked = ? WHERE id = ?`,
		v, t, checkedAt, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update certificate integrity: %w", err)
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

// UpdateApprovalStatus writes the approval status for a certificate
func (r *CertificateRepository) UpdateApprovalStatus(q Queryer, id int64, status string) error {
	result, err := q.Exec(`UPDATE certificates SET approval_status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update certificate approval status: %w", err)
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

// SetQRIssuance links a certificate to its QR issuance record
func (r *CertificateRepository) SetQRIssuance(q Queryer, certID int64, qrID *int64) error {
	_, err := q.Exec(`UPDATE certificates SET qr_issuance_id = ? WHERE id = ?`, qrID, certID)
	if err != nil {
		return fmt.Errorf("failed to set certificate qr issuance: %w", err)
	}
	return nil
}

// HasExpiredApproved reports whether the account owns at least one
// approved certificate whose expiry date is strictly before today
func (r *CertificateRepository) HasExpiredApproved(accountID int64, today time.Time) (bool, error) {
	query := `
		SELECT COUNT(*)
		FROM certificates
		WHERE account_id = ? AND approval_status = ? AND expiry_date < ?
	`

	var count int
	err := r.db.QueryRow(query, accountID, models.StatusApproved, today.Format("2006-01-02")).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count expired certificates: %w", err)
	}

	return count > 0, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCertificate(row rowScanner) (*models.Certificate, error) {
	cert := &models.Certificate{}
	var verified, tampered int
	var issueDate, expiryDate string
	var lastChecked sql.NullTime
	var qrID sql.NullInt64

	err := row.Scan(
		&cert.ID,
		&cert.AccountID,
		&cert.Name,
		&cert.Description,
		&cert.BlobRef,
		&cert.FileHash,
		&issueDate,
		&expiryDate,
		&cert.UploadTime,
		&lastChecked,
		&verified,
		&tampered,
		&cert.Version,
		&cert.ApprovalStatus,
		&qrID,
	)

	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan certificate: %w", err)
	}

	cert.Verified = verified == 1
	cert.SuspectedTampered = tampered == 1
	if cert.IssueDate, err = parseDateColumn(issueDate); err != nil {
		return nil, err
	}
	if cert.ExpiryDate, err = parseDateColumn(expiryDate); err != nil {
		return nil, err
	}
	if lastChecked.Valid {
		cert.LastChecked = &lastChecked.Time
	}
	if qrID.Valid {
		cert.QRIssuanceID = &qrID.Int64
	}

	return cert, nil
}

func collectCertificates(rows *sql.Rows) ([]*models.Certificate, error) {
	var certs []*models.Certificate
	for rows.Next() {
		cert, err := scanCertificate(rows)
		if err != nil {
			return nil, err
		}
		certs = append(certs, cert)
	}
	return certs, rows.Err()
}

// parseDateColumn accepts both bare dates and SQLite datetime strings
func parseDateColumn(s string) (time.Time, error) {
	if len(s) > 10 {
		s = s[:10]
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse date column %q: %w", s, err)
	}
	return t, nil
}

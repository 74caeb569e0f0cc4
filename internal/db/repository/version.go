package repository

import (
	"database/sql"
	"fmt"

	"github.com/dtrackhq/dtrack/internal/models"
)

// VersionRepository handles the append-only certificate version archive.
// Rows are inserted exactly once per content change and never updated or
// deleted; UNIQUE(certificate_id, version) enforces that at the storage
// layer.
type VersionRepository struct {
	db *sql.DB
}

// NewVersionRepository creates a new version archive repository
func NewVersionRepository(db *sql.DB) *VersionRepository {
	return &VersionRepository{db: db}
}

// Append archives one prior content state of a certificate
func (r *VersionRepository) Append(q Queryer, v *models.CertificateVersion) error {
	query := `
		INSERT INTO certificate_versions (certificate_id, version, file_hash, uploaded_at)
		VALUES (?, ?, ?, ?)
	`

	result, err := q.Exec(query, v.CertificateID, v.Version, v.FileHash, v.UploadedAt)
	if err != nil {
		return fmt.Errorf("failed to append certificate version: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	v.ID = id
	return nil
}

// ListByCertificate lists the archived versions of a certificate in order
func (r *VersionRepository) ListByCertificate(certID int64) ([]*models.CertificateVersion, error) {
	query := `
		SELECT id, certificate_id, version, file_hash, uploaded_at
		FROM certificate_versions
		WHERE certificate_id = ?
		ORDER BY version
	`

	rows, err := r.db.Query(query, certID)
	if err != nil {
		return nil, fmt.Errorf("failed to list certificate versions: %w", err)
	}
	defer rows.Close()

	var versions []*models.CertificateVersion
	for rows.Next() {
		v := &models.CertificateVersion{}
		if err := rows.Scan(&v.ID, &v.CertificateID, &v.Version, &v.FileHash, &v.UploadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan certificate version: %w", err)
		}
		versions = append(versions, v)
	}

	return versions, rows.Err()
}

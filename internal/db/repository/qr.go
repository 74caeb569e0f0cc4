package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dtrackhq/dtrack/internal/models"
)

// QRRepository handles QR issuance data access. The
// UNIQUE(subject_kind, subject_id) constraint is the at-most-one-issuance
// guarantee; callers detect a lost race with IsUniqueViolation and fetch
// the winner's record instead.
type QRRepository struct {
	db *sql.DB
}

// NewQRRepository creates a new QR issuance repository
func NewQRRepository(db *sql.DB) *QRRepository {
	return &QRRepository{db: db}
}

// Create inserts a new issuance record
func (r *QRRepository) Create(q Queryer, iss *models.QRIssuance) error {
	query := `
		INSERT INTO qr_issuances (subject_kind, subject_id, token, image, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	now := time.Now()
	result, err := q.Exec(query, iss.SubjectKind, iss.SubjectID, iss.Token, iss.Image, now)
	if err != nil {
		// Pass unique violations through untouched so the coordinator
		// can distinguish them from real failures
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("failed to create qr issuance: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	iss.ID = id
	iss.CreatedAt = now
	return nil
}

// GetBySubject retrieves the issuance for a subject, if any
func (r *QRRepository) GetBySubject(q Queryer, subjectKind string, subjectID int64) (*models.QRIssuance, error) {
	query := `
		SELECT id, subject_kind, subject_id, token, image, created_at, regenerated_at
		FROM qr_issuances
		WHERE subject_kind = ? AND subject_id = ?
	`
	return scanIssuance(q.QueryRow(query, subjectKind, subjectID))
}

// GetByToken retrieves an issuance by its public token
func (r *QRRepository) GetByToken(token string) (*models.QRIssuance, error) {
	query := `
		SELECT id, subject_kind, subject_id, token, image, created_at, regenerated_at
		FROM qr_issuances
		WHERE token = ?
	`
	return scanIssuance(r.db.QueryRow(query, token))
}

// UpdateImage replaces only the rendered image; the token is preserved
func (r *QRRepository) UpdateImage(id int64, image []byte, regeneratedAt time.Time) error {
	result, err := r.db.Exec(
		`UPDATE qr_issuances SET image = ?, regenerated_at = ? WHERE id = ?`,
		image, regeneratedAt, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update qr image: %w", err)
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

// RotateToken replaces both the token and the rendered image. Reserved
// for tokens proven compromised; normal regeneration keeps the token.
func (r *QRRepository) RotateToken(id int64, token string, image []byte, regeneratedAt time.Time) error {
	result, err := r.db.Exec(
		`UPDATE qr_issuances SET token = ?, image = ?, regenerated_at = ? WHERE id = ?`,
		token, image, regeneratedAt, id,
	)
	if err != nil {
		return fmt.Errorf("failed to rotate qr token: %w", err)
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

// DB exposes the underlying connection for non-transactional callers
func (r *QRRepository) DB() *sql.DB {
	return r.db
}

func scanIssuance(row rowScanner) (*models.QRIssuance, error) {
	iss := &models.QRIssuance{}
	var regeneratedAt sql.NullTime

	err := row.Scan(
		&iss.ID,
		&iss.SubjectKind,
		&iss.SubjectID,
		&iss.Token,
		&iss.Image,
		&iss.CreatedAt,
		&regeneratedAt,
	)

	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan qr issuance: %w", err)
	}

	if regeneratedAt.Valid {
		iss.RegeneratedAt = &regeneratedAt.Time
	}

	return iss, nil
}

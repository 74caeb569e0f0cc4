package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dtrackhq/dtrack/internal/models"
)

// ApprovalRepository handles approval requests and the append-only
// approval log
type ApprovalRepository struct {
	db *sql.DB
}

// NewApprovalRepository creates a new approval repository
func NewApprovalRepository(db *sql.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

// CreateRequest files a new approval request
func (r *ApprovalRepository) CreateRequest(req *models.ApprovalRequest) error {
	query := `
		INSERT INTO approval_requests (requester_id, entity_kind, entity_id, status, comments)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := r.db.Exec(query,
		req.RequesterID,
		req.EntityKind,
		req.EntityID,
		models.StatusPending,
		req.Comments,
	)
	if err != nil {
		return fmt.Errorf("failed to create approval request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	req.ID = id
	req.Status = models.StatusPending
	req.RequestTime = time.Now()

	return nil
}

// GetRequestByID retrieves an approval request by id
func (r *ApprovalRepository) GetRequestByID(id int64) (*models.ApprovalRequest, error) {
	query := `
		SELECT id, requester_id, entity_kind, entity_id, status, reviewed_by, reviewed_at, request_time, comments
		FROM approval_requests
		WHERE id = ?
	`
	return scanRequest(r.db.QueryRow(query, id))
}

// FindOpenRequest finds the pending request for an entity, if any
func (r *ApprovalRepository) FindOpenRequest(entityKind string, entityID int64) (*models.ApprovalRequest, error) {
	query := `
		SELECT id, requester_id, entity_kind, entity_id, status, reviewed_by, reviewed_at, request_time, comments
		FROM approval_requests
		WHERE entity_kind = ? AND entity_id = ? AND status = ?
		ORDER BY request_time DESC
		LIMIT 1
	`
	return scanRequest(r.db.QueryRow(query, entityKind, entityID, models.StatusPending))
}

// ListRequests lists approval requests with an optional status filter
func (r *ApprovalRepository) ListRequests(status string, limit int) ([]*models.ApprovalRequest, error) {
	query := `
		SELECT id, requester_id, entity_kind, entity_id, status, reviewed_by, reviewed_at, request_time, comments
		FROM approval_requests
		WHERE 1=1
	`
	args := []interface{}{}

	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	query += " ORDER BY request_time DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list approval requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.ApprovalRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}

	return requests, rows.Err()
}

// ResolveRequest marks a request reviewed with the final status
func (r *ApprovalRepository) ResolveRequest(q Queryer, id int64, status string, reviewerID int64, reviewedAt time.Time) error {
	query := `
		UPDATE approval_requests
		SET status = ?, reviewed_by = ?, reviewed_at = ?
		WHERE id = ?
	`

	result, err := q.Exec(query, status, reviewerID, reviewedAt, id)
	if err != nil {
		return fmt.Errorf("failed to resolve approval request: %w", err)
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

// AppendLog writes one immutable approval log entry. There is no update
// or delete path for approval_logs anywhere in the codebase.
func (r *ApprovalRepository) AppendLog(q Queryer, entry *models.ApprovalLog) error {
	query := `
		INSERT INTO approval_logs (entity_kind, entity_id, previous_status, new_status, actor, action_time, comment)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := q.Exec(query,
		entry.EntityKind,
		entry.EntityID,
		entry.PreviousStatus,
		entry.NewStatus,
		entry.Actor,
		entry.ActionTime,
		entry.Comment,
	)
	if err != nil {
		return fmt.Errorf("failed to append approval log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	entry.ID = id
	return nil
}

// ListLogs lists approval log entries for an entity in transition order
func (r *ApprovalRepository) ListLogs(entityKind string, entityID int64, limit int) ([]*models.ApprovalLog, error) {
	query := `
		SELECT id, entity_kind, entity_id, previous_status, new_status, actor, action_time, comment
		FROM approval_logs
		WHERE entity_kind = ? AND entity_id = ?
		ORDER BY id
		LIMIT ?
	`

	rows, err := r.db.Query(query, entityKind, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list approval logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.ApprovalLog
	for rows.Next() {
		entry := &models.ApprovalLog{}
		err := rows.Scan(
			&entry.ID,
			&entry.EntityKind,
			&entry.EntityID,
			&entry.PreviousStatus,
			&entry.NewStatus,
			&entry.Actor,
			&entry.ActionTime,
			&entry.Comment,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval log: %w", err)
		}
		logs = append(logs, entry)
	}

	return logs, rows.Err()
}

func scanRequest(row rowScanner) (*models.ApprovalRequest, error) {
	req := &models.ApprovalRequest{}
	var reviewedBy sql.NullInt64
	var reviewedAt sql.NullTime

	err := row.Scan(
		&req.ID,
		&req.RequesterID,
		&req.EntityKind,
		&req.EntityID,
		&req.Status,
		&reviewedBy,
		&reviewedAt,
		&req.RequestTime,
		&req.Comments,
	)

	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan approval request: %w", err)
	}

	if reviewedBy.Valid {
		req.ReviewedBy = &reviewedBy.Int64
	}
	if reviewedAt.Valid {
		req.ReviewedAt = &reviewedAt.Time
	}

	return req, nil
}

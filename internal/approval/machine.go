package approval

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/dtrackhq/dtrack/internal/db"
	"github.com/dtrackhq/dtrack/internal/db/repository"
	"github.com/dtrackhq/dtrack/internal/models"
	"github.com/dtrackhq/dtrack/internal/qr"
	"github.com/dtrackhq/dtrack/pkg/clock"
)

// StateMachine applies approval transitions to suppliers, certificates
// and products. Every transition, including one that re-states the
// current status, appends exactly one log entry; the log is the complete
// history of reviewer decisions.
type StateMachine struct {
	db        *db.DB
	accounts  *repository.AccountRepository
	certs     *repository.CertificateRepository
	products  *repository.ProductRepository
	approvals *repository.ApprovalRepository
	issuer    *qr.Coordinator
	clock     clock.Clock
	logger    *zap.Logger
}

// NewStateMachine creates a new approval state machine
func NewStateMachine(
	database *db.DB,
	accounts *repository.AccountRepository,
	certs *repository.CertificateRepository,
	products *repository.ProductRepository,
	approvals *repository.ApprovalRepository,
	issuer *qr.Coordinator,
	clk clock.Clock,
	logger *zap.Logger,
) *StateMachine {
	return &StateMachine{
		db:        database,
		accounts:  accounts,
		certs:     certs,
		products:  products,
		approvals: approvals,
		issuer:    issuer,
		clock:     clk,
		logger:    logger,
	}
}

// Transition moves an entity to newStatus on behalf of actor. The status
// write, the log append, the request resolution and any QR issuance
// commit or roll back together; an approved status is never observable
// without its log entry.
func (m *StateMachine) Transition(entityKind string, entityID int64, newStatus, actor string, reviewerID int64, comment string) (*models.ApprovalLog, error) {
	if !models.ValidKind(entityKind) {
		return nil, fmt.Errorf("unknown entity kind %q", entityKind)
	}
	if !models.ValidStatus(newStatus) {
		return nil, fmt.Errorf("unknown approval status %q", newStatus)
	}

	previous, err := m.currentStatus(entityKind, entityID)
	if err != nil {
		return nil, err
	}

	openRequest, err := m.approvals.FindOpenRequest(entityKind, entityID)
	if err != nil && err != models.ErrNotFound {
		return nil, err
	}

	tx, err := m.db.BeginTx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := m.writeStatus(tx, entityKind, entityID, newStatus); err != nil {
		return nil, err
	}

	now := m.clock.Now()
	entry := &models.ApprovalLog{
		EntityKind:     entityKind,
		EntityID:       entityID,
		PreviousStatus: previous,
		NewStatus:      newStatus,
		Actor:          actor,
		ActionTime:     now,
		Comment:        comment,
	}
	if err := m.approvals.AppendLog(tx, entry); err != nil {
		return nil, err
	}

	if openRequest != nil && newStatus != models.StatusPending {
		if err := m.approvals.ResolveRequest(tx, openRequest.ID, newStatus, reviewerID, now); err != nil {
			return nil, err
		}
	}

	if newStatus == models.StatusApproved {
		if err := m.issueQR(tx, entityKind, entityID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transition: %w", err)
	}

	m.logger.Info("approval transition",
		zap.String("entity_kind", entityKind),
		zap.Int64("entity_id", entityID),
		zap.String("previous_status", previous),
		zap.String("new_status", newStatus),
		zap.String("actor", actor))

	return entry, nil
}

// History returns the transition log for an entity in the order the
// transitions happened
func (m *StateMachine) History(entityKind string, entityID int64, limit int) ([]*models.ApprovalLog, error) {
	if !models.ValidKind(entityKind) {
		return nil, fmt.Errorf("unknown entity kind %q", entityKind)
	}
	return m.approvals.ListLogs(entityKind, entityID, limit)
}

func (m *StateMachine) currentStatus(entityKind string, entityID int64) (string, error) {
	switch entityKind {
	case models.KindSupplier:
		account, err := m.accounts.GetByID(entityID)
		if err != nil {
			return "", err
		}
		return account.ApprovalStatus, nil
	case models.KindCertificate:
		cert, err := m.certs.GetByID(entityID)
		if err != nil {
			return "", err
		}
		return cert.ApprovalStatus, nil
	case models.KindProduct:
		product, err := m.products.GetByID(entityID)
		if err != nil {
			return "", err
		}
		return product.ApprovalStatus, nil
	}
	return "", fmt.Errorf("unknown entity kind %q", entityKind)
}

func (m *StateMachine) writeStatus(q repository.Queryer, entityKind string, entityID int64, status string) error {
	switch entityKind {
	case models.KindSupplier:
		return m.accounts.UpdateApprovalStatus(q, entityID, status)
	case models.KindCertificate:
		return m.certs.UpdateApprovalStatus(q, entityID, status)
	case models.KindProduct:
		return m.products.UpdateApprovalStatus(q, entityID, status)
	}
	return fmt.Errorf("unknown entity kind %q", entityKind)
}

// issueQR makes sure an approved subject has a verification QR record.
// Re-approval after a rejection finds the original record, so printed
// codes survive status churn.
func (m *StateMachine) issueQR(q repository.Queryer, entityKind string, entityID int64) error {
	iss, err := m.issuer.IssueOrGet(q, entityKind, entityID, models.StatusApproved)
	if err != nil {
		return err
	}

	if entityKind == models.KindCertificate {
		return m.certs.SetQRIssuance(q, entityID, &iss.ID)
	}
	return nil
}

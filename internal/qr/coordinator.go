package qr

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dtrackhq/dtrack/internal/db/repository"
	"github.com/dtrackhq/dtrack/internal/models"
)

// Coordinator issues verification QR records for approved subjects.
// Issuance is idempotent per subject: repeat calls return the existing
// record, and a lost insert race is resolved by fetching the winner's
// row instead of failing.
type Coordinator struct {
	repo     *repository.QRRepository
	renderer *Renderer
	logger   *zap.Logger
}

// NewCoordinator creates a new QR issuance coordinator
func NewCoordinator(repo *repository.QRRepository, renderer *Renderer, logger *zap.Logger) *Coordinator {
	return &Coordinator{repo: repo, renderer: renderer, logger: logger}
}

// IssueOrGet returns the subject's issuance, creating one if none
// exists. Only approved subjects are eligible; everything else gets
// ErrNotApproved. The Queryer lets approval transitions run issuance
// inside their own transaction.
func (c *Coordinator) IssueOrGet(q repository.Queryer, subjectKind string, subjectID int64, status string) (*models.QRIssuance, error) {
	if status != models.StatusApproved {
		return nil, models.ErrNotApproved
	}

	existing, err := c.repo.GetBySubject(q, subjectKind, subjectID)
	if err == nil {
		return existing, nil
	}
	if err != models.ErrNotFound {
		return nil, err
	}

	token := uuid.NewString()
	image, err := c.renderer.Render(token)
	if err != nil {
		return nil, err
	}

	iss := &models.QRIssuance{
		SubjectKind: subjectKind,
		SubjectID:   subjectID,
		Token:       token,
		Image:       image,
	}

	if err := c.repo.Create(q, iss); err != nil {
		if repository.IsUniqueViolation(err) {
			// A concurrent issuer won the insert; their record is the
			// subject's one and only issuance
			return c.repo.GetBySubject(q, subjectKind, subjectID)
		}
		return nil, err
	}

	c.logger.Info("issued qr code",
		zap.String("subject_kind", subjectKind),
		zap.Int64("subject_id", subjectID))

	return iss, nil
}

// Issue is IssueOrGet outside any enclosing transaction
func (c *Coordinator) Issue(subjectKind string, subjectID int64, status string) (*models.QRIssuance, error) {
	return c.IssueOrGet(c.repo.DB(), subjectKind, subjectID, status)
}

// Regenerate re-renders the QR image for a subject without changing the
// token, so previously printed codes keep resolving.
func (c *Coordinator) Regenerate(subjectKind string, subjectID int64) (*models.QRIssuance, error) {
	iss, err := c.repo.GetBySubject(c.repo.DB(), subjectKind, subjectID)
	if err != nil {
		return nil, err
	}

	image, err := c.renderer.Render(iss.Token)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := c.repo.UpdateImage(iss.ID, image, now); err != nil {
		return nil, err
	}

	iss.Image = image
	iss.RegeneratedAt = &now
	return iss, nil
}

// RotateToken replaces a subject's token and image. This invalidates
// every printed copy of the old code, so it is kept off the normal
// regeneration path and used only when a token leaks.
func (c *Coordinator) RotateToken(subjectKind string, subjectID int64) (*models.QRIssuance, error) {
	iss, err := c.repo.GetBySubject(c.repo.DB(), subjectKind, subjectID)
	if err != nil {
		return nil, err
	}

	token := uuid.NewString()
	image, err := c.renderer.Render(token)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := c.repo.RotateToken(iss.ID, token, image, now); err != nil {
		return nil, err
	}

	c.logger.Info("rotated qr token",
		zap.String("subject_kind", subjectKind),
		zap.Int64("subject_id", subjectID))

	iss.Token = token
	iss.Image = image
	iss.RegeneratedAt = &now
	return iss, nil
}

// Resolve looks up an issuance by its public token
func (c *Coordinator) Resolve(token string) (*models.QRIssuance, error) {
	if _, err := uuid.Parse(token); err != nil {
		return nil, models.ErrNotFound
	}
	return c.repo.GetByToken(token)
}

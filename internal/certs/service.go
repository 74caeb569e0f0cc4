package certs

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dtrackhq/dtrack/internal/blob"
	"github.com/dtrackhq/dtrack/internal/db"
	"github.com/dtrackhq/dtrack/internal/db/repository"
	"github.com/dtrackhq/dtrack/internal/extract"
	"github.com/dtrackhq/dtrack/internal/fingerprint"
	"github.com/dtrackhq/dtrack/internal/models"
	"github.com/dtrackhq/dtrack/internal/policy"
	"github.com/dtrackhq/dtrack/pkg/clock"
)

// Service orchestrates the certificate upload pipeline: policy checks,
// fingerprinting, text extraction, date cross-validation, blob storage
// and version archiving.
type Service struct {
	db        *db.DB
	certs     *repository.CertificateRepository
	versions  *repository.VersionRepository
	approvals *repository.ApprovalRepository
	blobs     blob.Store
	extractor extract.Extractor
	validator *policy.Validator
	clock     clock.Clock
	logger    *zap.Logger
}

// NewService creates a new certificate service
func NewService(
	database *db.DB,
	certs *repository.CertificateRepository,
	versions *repository.VersionRepository,
	approvals *repository.ApprovalRepository,
	blobs blob.Store,
	extractor extract.Extractor,
	validator *policy.Validator,
	clk clock.Clock,
	logger *zap.Logger,
) *Service {
	return &Service{
		db:        database,
		certs:     certs,
		versions:  versions,
		approvals: approvals,
		blobs:     blobs,
		extractor: extractor,
		validator: validator,
		clock:     clk,
		logger:    logger,
	}
}

// UploadInput carries one certificate document and its declared metadata
type UploadInput struct {
	AccountID   int64
	Name        string
	Description string
	Filename    string
	Data        []byte
	IssueDate   time.Time
	ExpiryDate  time.Time
}

// Ingest validates and persists a brand new certificate. A document that
// fails any check is rejected before anything touches storage; a stored
// certificate always starts at version 1 with a pending approval request
// on file.
func (s *Service) Ingest(in UploadInput) (*models.Certificate, error) {
	if err := s.validator.ValidateUpload(in.Filename, int64(len(in.Data)), in.IssueDate, in.ExpiryDate); err != nil {
		return nil, err
	}

	hash := fingerprint.FingerprintBytes(in.Data)

	text := s.extractor.Extract(in.Filename, in.Data)
	if err := s.validator.CrossValidateDates(text, in.IssueDate, in.ExpiryDate); err != nil {
		return nil, err
	}

	ref, err := s.blobs.Put(hash, in.Data)
	if err != nil {
		return nil, err
	}

	cert := &models.Certificate{
		AccountID:   in.AccountID,
		Name:        in.Name,
		Description: in.Description,
		BlobRef:     ref,
		FileHash:    hash,
		IssueDate:   in.IssueDate,
		ExpiryDate:  in.ExpiryDate,
	}
	if err := s.certs.Create(cert); err != nil {
		return nil, err
	}

	req := &models.ApprovalRequest{
		RequesterID: in.AccountID,
		EntityKind:  models.KindCertificate,
		EntityID:    cert.ID,
		Comments:    fmt.Sprintf("certificate %q uploaded", in.Name),
	}
	if err := s.approvals.CreateRequest(req); err != nil {
		return nil, err
	}

	s.logger.Info("certificate ingested",
		zap.Int64("certificate_id", cert.ID),
		zap.Int64("account_id", in.AccountID),
		zap.String("file_hash", hash))

	return cert, nil
}

// Reupload replaces a certificate's document. Identical content is a
// no-op for the version counter: only the declared metadata is
// refreshed. Changed content archives the outgoing (version, hash,
// upload time) tuple and bumps the version by exactly 1, all in one
// transaction.
func (s *Service) Reupload(certID int64, in UploadInput) (*models.Certificate, error) {
	cert, err := s.certs.GetByID(certID)
	if err != nil {
		return nil, err
	}

	if err := s.validator.ValidateUpload(in.Filename, int64(len(in.Data)), in.IssueDate, in.ExpiryDate); err != nil {
		return nil, err
	}

	hash := fingerprint.FingerprintBytes(in.Data)

	text := s.extractor.Extract(in.Filename, in.Data)
	if err := s.validator.CrossValidateDates(text, in.IssueDate, in.ExpiryDate); err != nil {
		return nil, err
	}

	if fingerprint.Matches(hash, cert.FileHash) {
		if err := s.certs.UpdateMetadata(cert.ID, in.Name, in.Description, in.IssueDate, in.ExpiryDate); err != nil {
			return nil, err
		}
		cert.Name = in.Name
		cert.Description = in.Description
		cert.IssueDate = in.IssueDate
		cert.ExpiryDate = in.ExpiryDate
		return cert, nil
	}

	ref, err := s.blobs.Put(hash, in.Data)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	archived := &models.CertificateVersion{
		CertificateID: cert.ID,
		Version:       cert.Version,
		FileHash:      cert.FileHash,
		UploadedAt:    cert.UploadTime,
	}
	if err := s.versions.Append(tx, archived); err != nil {
		return nil, err
	}

	expectedVersion := cert.Version
	cert.Name = in.Name
	cert.Description = in.Description
	cert.BlobRef = ref
	cert.FileHash = hash
	cert.IssueDate = in.IssueDate
	cert.ExpiryDate = in.ExpiryDate
	if err := s.certs.UpdateContent(tx, cert, expectedVersion); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reupload: %w", err)
	}

	s.logger.Info("certificate content replaced",
		zap.Int64("certificate_id", cert.ID),
		zap.Int("version", cert.Version),
		zap.String("file_hash", hash))

	return cert, nil
}

// VerifyIntegrity recomputes the stored blob's fingerprint and compares
// it against the recorded hash. A blob that cannot be read back counts
// as suspected tampering, not as a pass.
func (s *Service) VerifyIntegrity(certID int64) (*models.IntegrityResult, error) {
	cert, err := s.certs.GetByID(certID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	result := &models.IntegrityResult{CheckedAt: now}

	data, err := s.blobs.Get(cert.BlobRef)
	if err != nil {
		s.logger.Warn("certificate blob unreadable",
			zap.Int64("certificate_id", cert.ID),
			zap.Error(err))
		result.SuspectedTampered = true
	} else {
		hash := fingerprint.FingerprintBytes(data)
		result.Verified = fingerprint.Matches(hash, cert.FileHash)
		result.SuspectedTampered = !result.Verified
	}

	if err := s.certs.UpdateIntegrity(cert.ID, result.Verified, result.SuspectedTampered, now); err != nil {
		return nil, err
	}

	if result.SuspectedTampered {
		s.logger.Warn("certificate suspected tampered",
			zap.Int64("certificate_id", cert.ID),
			zap.String("expected_hash", cert.FileHash))
	}

	return result, nil
}

// SweepIntegrity verifies every certificate and returns the ids of those
// suspected tampered
func (s *Service) SweepIntegrity() ([]int64, error) {
	all, err := s.certs.ListAll()
	if err != nil {
		return nil, err
	}

	var tampered []int64
	for _, cert := range all {
		result, err := s.VerifyIntegrity(cert.ID)
		if err != nil {
			return tampered, err
		}
		if result.SuspectedTampered {
			tampered = append(tampered, cert.ID)
		}
	}
	return tampered, nil
}

// Get returns a certificate by id
func (s *Service) Get(certID int64) (*models.Certificate, error) {
	return s.certs.GetByID(certID)
}

// ListByAccount returns an account's certificates
func (s *Service) ListByAccount(accountID int64) ([]*models.Certificate, error) {
	return s.certs.ListByAccount(accountID)
}

// Versions returns the archived version history of a certificate
func (s *Service) Versions(certID int64) ([]*models.CertificateVersion, error) {
	if _, err := s.certs.GetByID(certID); err != nil {
		return nil, err
	}
	return s.versions.ListByCertificate(certID)
}

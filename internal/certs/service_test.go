package certs

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dtrackhq/dtrack/internal/blob"
	"github.com/dtrackhq/dtrack/internal/config"
	"github.com/dtrackhq/dtrack/internal/db"
	"github.com/dtrackhq/dtrack/internal/db/repository"
	"github.com/dtrackhq/dtrack/internal/fingerprint"
	"github.com/dtrackhq/dtrack/internal/models"
	"github.com/dtrackhq/dtrack/internal/policy"
	"github.com/dtrackhq/dtrack/pkg/clock"
)

// fakeExtractor returns canned text per document content, standing in
// for the PDF and OCR backends
type fakeExtractor struct {
	texts map[string]string
}

func (f *fakeExtractor) Extract(name string, data []byte) string {
	return f.texts[string(data)]
}

type serviceEnv struct {
	db        *db.DB
	service   *Service
	extractor *fakeExtractor
	accounts  *repository.AccountRepository
	certs     *repository.CertificateRepository
	versions  *repository.VersionRepository
	approvals *repository.ApprovalRepository
	blobDir   string
}

func newServiceEnv(t *testing.T) *serviceEnv {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.RunMigrations(database))

	blobDir := t.TempDir()
	blobStore, err := blob.NewFileStore(blobDir)
	require.NoError(t, err)

	accounts := repository.NewAccountRepository(database.DB)
	certs := repository.NewCertificateRepository(database.DB)
	versions := repository.NewVersionRepository(database.DB)
	approvals := repository.NewApprovalRepository(database.DB)

	extractor := &fakeExtractor{texts: map[string]string{}}
	validator := policy.NewValidator(&config.Config{
		Policy: config.PolicyConfig{MaxUploadBytes: 1 << 20},
	})
	clk := clock.Fixed{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	service := NewService(database, certs, versions, approvals, blobStore, extractor, validator, clk, zap.NewNop())

	return &serviceEnv{
		db:        database,
		service:   service,
		extractor: extractor,
		accounts:  accounts,
		certs:     certs,
		versions:  versions,
		approvals: approvals,
		blobDir:   blobDir,
	}
}

func (e *serviceEnv) createSupplier(t *testing.T) *models.Account {
	t.Helper()
	account := &models.Account{
		Email:          "supplier@example.com",
		PasswordHash:   "hash",
		Role:           models.RoleSupplier,
		Language:       "en",
		Active:         true,
		ApprovalStatus: models.StatusApproved,
	}
	require.NoError(t, e.accounts.Create(account))
	return account
}

// uploadInput registers canned extraction text for the document so date
// cross-validation sees the declared dates
func (e *serviceEnv) uploadInput(accountID int64, content string) UploadInput {
	e.extractor.texts[content] = fmt.Sprintf("Certificate\nIssue date: 2024-01-01\nExpiry date: 2025-12-31\nref %s", content)
	return UploadInput{
		AccountID:  accountID,
		Name:       "ISO 9001",
		Filename:   "iso9001.pdf",
		Data:       []byte(content),
		IssueDate:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ExpiryDate: time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
	}
}

func TestIngest(t *testing.T) {
	env := newServiceEnv(t)
	supplier := env.createSupplier(t)

	cert, err := env.service.Ingest(env.uploadInput(supplier.ID, "doc-v1"))
	require.NoError(t, err)

	assert.Equal(t, 1, cert.Version)
	assert.Equal(t, models.StatusPending, cert.ApprovalStatus)
	assert.Equal(t, fingerprint.FingerprintBytes([]byte("doc-v1")), cert.FileHash)

	// The blob is retrievable through the recorded reference
	result, err := env.service.VerifyIntegrity(cert.ID)
	require.NoError(t, err)
	assert.True(t, result.Verified)
	assert.False(t, result.SuspectedTampered)

	// An approval request was filed
	open, err := env.approvals.FindOpenRequest(models.KindCertificate, cert.ID)
	require.NoError(t, err)
	assert.Equal(t, supplier.ID, open.RequesterID)
}

func TestIngestRejectsUnreadableDates(t *testing.T) {
	env := newServiceEnv(t)
	supplier := env.createSupplier(t)

	in := env.uploadInput(supplier.ID, "doc-v1")
	env.extractor.texts["doc-v1"] = "handwritten scan with no machine readable dates"

	_, err := env.service.Ingest(in)
	ve, ok := models.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, models.CheckNoDates, ve.Check)

	// Nothing was persisted
	certs, listErr := env.service.ListByAccount(supplier.ID)
	require.NoError(t, listErr)
	assert.Empty(t, certs)
}

func TestIngestRejectsDateMismatch(t *testing.T) {
	env := newServiceEnv(t)
	supplier := env.createSupplier(t)

	in := env.uploadInput(supplier.ID, "doc-v1")
	in.ExpiryDate = time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)

	_, err := env.service.Ingest(in)
	ve, ok := models.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, models.CheckDateMismatch, ve.Check)
}

func TestReuploadIdenticalContentIsVersionNoOp(t *testing.T) {
	env := newServiceEnv(t)
	supplier := env.createSupplier(t)

	cert, err := env.service.Ingest(env.uploadInput(supplier.ID, "doc-v1"))
	require.NoError(t, err)

	again, err := env.service.Reupload(cert.ID, env.uploadInput(supplier.ID, "doc-v1"))
	require.NoError(t, err)
	assert.Equal(t, 1, again.Version)
	assert.Equal(t, cert.FileHash, again.FileHash)

	versions, err := env.service.Versions(cert.ID)
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestReuploadRefreshesMetadata(t *testing.T) {
	env := newServiceEnv(t)
	supplier := env.createSupplier(t)

	cert, err := env.service.Ingest(env.uploadInput(supplier.ID, "doc-v1"))
	require.NoError(t, err)

	// Identical content: the new name and description still land
	in := env.uploadInput(supplier.ID, "doc-v1")
	in.Name = "ISO 9001:2015"
	in.Description = "recertification"
	_, err = env.service.Reupload(cert.ID, in)
	require.NoError(t, err)

	got, err := env.certs.GetByID(cert.ID)
	require.NoError(t, err)
	assert.Equal(t, "ISO 9001:2015", got.Name)
	assert.Equal(t, "recertification", got.Description)
	assert.Equal(t, 1, got.Version)

	// Changed content: metadata follows the new upload as well
	in = env.uploadInput(supplier.ID, "doc-v2")
	in.Name = "ISO 9001:2025"
	_, err = env.service.Reupload(cert.ID, in)
	require.NoError(t, err)

	got, err = env.certs.GetByID(cert.ID)
	require.NoError(t, err)
	assert.Equal(t, "ISO 9001:2025", got.Name)
	assert.Equal(t, 2, got.Version)
}

func TestReuploadChangedContentArchivesAndBumps(t *testing.T) {
	env := newServiceEnv(t)
	supplier := env.createSupplier(t)

	cert, err := env.service.Ingest(env.uploadInput(supplier.ID, "doc-v1"))
	require.NoError(t, err)
	originalHash := cert.FileHash

	updated, err := env.service.Reupload(cert.ID, env.uploadInput(supplier.ID, "doc-v2"))
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
	assert.NotEqual(t, originalHash, updated.FileHash)

	versions, err := env.service.Versions(cert.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, 1, versions[0].Version)
	assert.Equal(t, originalHash, versions[0].FileHash)

	// A third upload grows the archive by exactly one
	final, err := env.service.Reupload(cert.ID, env.uploadInput(supplier.ID, "doc-v3"))
	require.NoError(t, err)
	assert.Equal(t, 3, final.Version)

	versions, err = env.service.Versions(cert.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 2, versions[1].Version)
}

func TestVerifyIntegrityDetectsMissingBlob(t *testing.T) {
	env := newServiceEnv(t)
	supplier := env.createSupplier(t)

	cert, err := env.service.Ingest(env.uploadInput(supplier.ID, "doc-v1"))
	require.NoError(t, err)

	// Simulate out-of-band damage to the stored document
	stored, err := env.certs.GetByID(cert.ID)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(env.blobDir, stored.BlobRef)))

	result, err := env.service.VerifyIntegrity(cert.ID)
	require.NoError(t, err)
	assert.False(t, result.Verified)
	assert.True(t, result.SuspectedTampered)

	got, err := env.certs.GetByID(cert.ID)
	require.NoError(t, err)
	assert.True(t, got.SuspectedTampered)
	assert.NotNil(t, got.LastChecked)
}

func TestVerifyIntegrityDetectsAlteredBlob(t *testing.T) {
	env := newServiceEnv(t)
	supplier := env.createSupplier(t)

	cert, err := env.service.Ingest(env.uploadInput(supplier.ID, "doc-v1"))
	require.NoError(t, err)

	stored, err := env.certs.GetByID(cert.ID)
	require.NoError(t, err)
	path := filepath.Join(env.blobDir, stored.BlobRef)
	require.NoError(t, os.WriteFile(path, []byte("altered content"), 0600))

	result, err := env.service.VerifyIntegrity(cert.ID)
	require.NoError(t, err)
	assert.False(t, result.Verified)
	assert.True(t, result.SuspectedTampered)
}

func TestSweepIntegrity(t *testing.T) {
	env := newServiceEnv(t)
	supplier := env.createSupplier(t)

	healthy, err := env.service.Ingest(env.uploadInput(supplier.ID, "doc-healthy"))
	require.NoError(t, err)

	damaged, err := env.service.Ingest(env.uploadInput(supplier.ID, "doc-damaged"))
	require.NoError(t, err)

	stored, err := env.certs.GetByID(damaged.ID)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(env.blobDir, stored.BlobRef)))

	tampered, err := env.service.SweepIntegrity()
	require.NoError(t, err)
	assert.Equal(t, []int64{damaged.ID}, tampered)

	got, err := env.certs.GetByID(healthy.ID)
	require.NoError(t, err)
	assert.True(t, got.Verified)
}

func TestReuploadMissingCertificate(t *testing.T) {
	env := newServiceEnv(t)
	supplier := env.createSupplier(t)

	_, err := env.service.Reupload(404, env.uploadInput(supplier.ID, "doc-v1"))
	assert.Equal(t, models.ErrNotFound, err)
}

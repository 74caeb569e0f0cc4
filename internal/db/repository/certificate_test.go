package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtrackhq/dtrack/internal/models"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func newTestCertificate(t *testing.T, repo *CertificateRepository, accountID int64) *models.Certificate {
	t.Helper()

	cert := &models.Certificate{
		AccountID:  accountID,
		Name:       "ISO 9001",
		BlobRef:    "ab/abc123",
		FileHash:   "abc123",
		IssueDate:  date("2024-01-01"),
		ExpiryDate: date("2025-01-01"),
	}
	require.NoError(t, repo.Create(cert))
	return cert
}

func TestCertificateCreateAndGet(t *testing.T) {
	database := newTestDB(t)
	account := createTestAccount(t, database, "supplier@example.com")
	repo := NewCertificateRepository(database.DB)

	cert := newTestCertificate(t, repo, account.ID)
	assert.Equal(t, 1, cert.Version)
	assert.Equal(t, models.StatusPending, cert.ApprovalStatus)

	got, err := repo.GetByID(cert.ID)
	require.NoError(t, err)
	assert.Equal(t, cert.Name, got.Name)
	assert.Equal(t, "abc123", got.FileHash)
	assert.Equal(t, date("2024-01-01"), got.IssueDate)
	assert.Equal(t, date("2025-01-01"), got.ExpiryDate)
	assert.Equal(t, 1, got.Version)
	assert.False(t, got.Verified)
	assert.Nil(t, got.QRIssuanceID)
}

func TestCertificateGetMissing(t *testing.T) {
	database := newTestDB(t)
	repo := NewCertificateRepository(database.DB)

	_, err := repo.GetByID(999)
	assert.Equal(t, models.ErrNotFound, err)
}

func TestCertificateUpdateContent(t *testing.T) {
	database := newTestDB(t)
	account := createTestAccount(t, database, "supplier@example.com")
	repo := NewCertificateRepository(database.DB)

	cert := newTestCertificate(t, repo, account.ID)
	require.NoError(t, repo.UpdateIntegrity(cert.ID, true, false, time.Now()))

	cert.BlobRef = "de/def456"
	cert.FileHash = "def456"
	cert.ExpiryDate = date("2026-01-01")
	require.NoError(t, repo.UpdateContent(database.DB, cert, 1))
	assert.Equal(t, 2, cert.Version)

	got, err := repo.GetByID(cert.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, "def456", got.FileHash)
	assert.Equal(t, date("2026-01-01"), got.ExpiryDate)
	// Content change resets integrity state until the next check
	assert.False(t, got.Verified)
	assert.False(t, got.SuspectedTampered)
}

func TestCertificateUpdateContentStaleVersion(t *testing.T) {
	database := newTestDB(t)
	account := createTestAccount(t, database, "supplier@example.com")
	repo := NewCertificateRepository(database.DB)

	cert := newTestCertificate(t, repo, account.ID)

	cert.FileHash = "def456"
	require.NoError(t, repo.UpdateContent(database.DB, cert, 1))

	// A writer holding the old version loses the race
	stale := &models.Certificate{
		ID:         cert.ID,
		BlobRef:    "gh/ghi789",
		FileHash:   "ghi789",
		IssueDate:  date("2024-01-01"),
		ExpiryDate: date("2025-01-01"),
	}
	err := repo.UpdateContent(database.DB, stale, 1)
	assert.Equal(t, models.ErrVersionConflict, err)

	got, err := repo.GetByID(cert.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, "def456", got.FileHash)
}

func TestCertificateUpdateIntegrity(t *testing.T) {
	database := newTestDB(t)
	account := createTestAccount(t, database, "supplier@example.com")
	repo := NewCertificateRepository(database.DB)

	cert := newTestCertificate(t, repo, account.ID)
	checkedAt := time.Now()

	require.NoError(t, repo.UpdateIntegrity(cert.ID, false, true, checkedAt))

	got, err := repo.GetByID(cert.ID)
	require.NoError(t, err)
	assert.False(t, got.Verified)
	assert.True(t, got.SuspectedTampered)
	require.NotNil(t, got.LastChecked)
}

func TestCertificateHasExpiredApproved(t *testing.T) {
	database := newTestDB(t)
	account := createTestAccount(t, database, "supplier@example.com")
	repo := NewCertificateRepository(database.DB)

	cert := newTestCertificate(t, repo, account.ID)

	// Pending certificates never count against the account
	expired, err := repo.HasExpiredApproved(account.ID, date("2026-06-01"))
	require.NoError(t, err)
	assert.False(t, expired)

	require.NoError(t, repo.UpdateApprovalStatus(database.DB, cert.ID, models.StatusApproved))

	expired, err = repo.HasExpiredApproved(account.ID, date("2026-06-01"))
	require.NoError(t, err)
	assert.True(t, expired)

	// Expiring today is not yet expired
	expired, err = repo.HasExpiredApproved(account.ID, date("2025-01-01"))
	require.NoError(t, err)
	assert.False(t, expired)

	expired, err = repo.HasExpiredApproved(account.ID, date("2024-06-01"))
	require.NoError(t, err)
	assert.False(t, expired)
}

func TestCertificateSetQRIssuance(t *testing.T) {
	database := newTestDB(t)
	account := createTestAccount(t, database, "supplier@example.com")
	repo := NewCertificateRepository(database.DB)
	qrRepo := NewQRRepository(database.DB)

	cert := newTestCertificate(t, repo, account.ID)

	iss := &models.QRIssuance{
		SubjectKind: models.KindCertificate,
		SubjectID:   cert.ID,
		Token:       "token-1",
		Image:       []byte{0x89, 0x50},
	}
	require.NoError(t, qrRepo.Create(database.DB, iss))
	require.NoError(t, repo.SetQRIssuance(database.DB, cert.ID, &iss.ID))

	got, err := repo.GetByID(cert.ID)
	require.NoError(t, err)
	require.NotNil(t, got.QRIssuanceID)
	assert.Equal(t, iss.ID, *got.QRIssuanceID)
}

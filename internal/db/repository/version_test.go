package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtrackhq/dtrack/internal/models"
)

func TestVersionAppendAndList(t *testing.T) {
	database := newTestDB(t)
	account := createTestAccount(t, database, "supplier@example.com")
	certRepo := NewCertificateRepository(database.DB)
	repo := NewVersionRepository(database.DB)

	cert := newTestCertificate(t, certRepo, account.ID)

	first := &models.CertificateVersion{
		CertificateID: cert.ID,
		Version:       1,
		FileHash:      "abc123",
		UploadedAt:    time.Now().Add(-time.Hour),
	}
	require.NoError(t, repo.Append(database.DB, first))

	second := &models.CertificateVersion{
		CertificateID: cert.ID,
		Version:       2,
		FileHash:      "def456",
		UploadedAt:    time.Now(),
	}
	require.NoError(t, repo.Append(database.DB, second))

	versions, err := repo.ListByCertificate(cert.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 1, versions[0].Version)
	assert.Equal(t, "abc123", versions[0].FileHash)
	assert.Equal(t, 2, versions[1].Version)
	assert.Equal(t, "def456", versions[1].FileHash)
}

func TestVersionDuplicateRejected(t *testing.T) {
	database := newTestDB(t)
	account := createTestAccount(t, database, "supplier@example.com")
	certRepo := NewCertificateRepository(database.DB)
	repo := NewVersionRepository(database.DB)

	cert := newTestCertificate(t, certRepo, account.ID)

	v := &models.CertificateVersion{
		CertificateID: cert.ID,
		Version:       1,
		FileHash:      "abc123",
		UploadedAt:    time.Now(),
	}
	require.NoError(t, repo.Append(database.DB, v))

	dup := &models.CertificateVersion{
		CertificateID: cert.ID,
		Version:       1,
		FileHash:      "other",
		UploadedAt:    time.Now(),
	}
	err := repo.Append(database.DB, dup)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
}

func TestVersionListEmpty(t *testing.T) {
	database := newTestDB(t)
	repo := NewVersionRepository(database.DB)

	versions, err := repo.ListByCertificate(42)
	require.NoError(t, err)
	assert.Empty(t, versions)
}

package repository

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dtrackhq/dtrack/internal/db"
	"github.com/dtrackhq/dtrack/internal/models"
)

// newTestDB opens a migrated throwaway database
func newTestDB(t *testing.T) *db.DB {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	require.NoError(t, db.RunMigrations(database))
	return database
}

// createTestAccount inserts a supplier account to own test records
func createTestAccount(t *testing.T, database *db.DB, email string) *models.Account {
	t.Helper()

	repo := NewAccountRepository(database.DB)
	account := &models.Account{
		Email:          email,
		PasswordHash:   "hash",
		TOTPSecret:     "secret",
		Role:           models.RoleSupplier,
		Language:       "en",
		Active:         true,
		ApprovalStatus: models.StatusPending,
	}
	require.NoError(t, repo.Create(account))
	return account
}

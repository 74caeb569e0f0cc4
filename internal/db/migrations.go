package db

import (
	"database/sql"
	"fmt"
)

// RunMigrations executes all database migrations
func RunMigrations(db *DB) error {
	// Check if schema_version table exists
	var tableExists bool
	err := db.QueryRow(`
		SELECT COUNT(*) > 0
		FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("failed to check schema_version table: %w", err)
	}

	if !tableExists {
		// First time initialization
		if err := initializeSchema(db); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
		return nil
	}

	// Get current version
	var currentVersion int
	err = db.QueryRow(`
		SELECT version FROM schema_version
		ORDER BY applied_at DESC LIMIT 1
	`).Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	// Apply migrations if needed
	// Currently only version 1 exists
	if currentVersion < 1 {
		return fmt.Errorf("invalid schema version: %d", currentVersion)
	}

	return nil
}

// initializeSchema creates all tables for a new database
func initializeSchema(db *DB) error {
	tx, err := db.BeginTx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Schema version table
	if err := execSQL(tx, schemaVersionTable); err != nil {
		return err
	}

	// Accounts table
	if err := execSQL(tx, accountsTable); err != nil {
		return err
	}
	if err := execSQL(tx, accountsIndexes); err != nil {
		return err
	}

	// QR issuances table (referenced by certificates)
	if err := execSQL(tx, qrIssuancesTable); err != nil {
		return err
	}
	if err := execSQL(tx, qrIssuancesIndexes); err != nil {
		return err
	}

	// Certificates table
	if err := execSQL(tx, certificatesTable); err != nil {
		return err
	}
	if err := execSQL(tx, certificatesIndexes); err != nil {
		return err
	}

	// Certificate versions table (append-only archive)
	if err := execSQL(tx, certificateVersionsTable); err != nil {
		return err
	}
	if err := execSQL(tx, certificateVersionsIndexes); err != nil {
		return err
	}

	// Products table
	if err := execSQL(tx, productsTable); err != nil {
		return err
	}
	if err := execSQL(tx, productsIndexes); err != nil {
		return err
	}

	// Approval requests table
	if err := execSQL(tx, approvalRequestsTable); err != nil {
		return err
	}
	if err := execSQL(tx, approvalRequestsIndexes); err != nil {
		return err
	}

	// Approval logs table (append-only audit trail)
	if err := execSQL(tx, approvalLogsTable); err != nil {
		return err
	}
	if err := execSQL(tx, approvalLogsIndexes); err != nil {
		return err
	}

	// Insert initial schema version
	if err := execSQL(tx, `INSERT INTO schema_version (version) VALUES (1)`); err != nil {
		return err
	}

	return tx.Commit()
}

// execSQL executes a SQL statement
func execSQL(tx *sql.Tx, query string) error {
	_, err := tx.Exec(query)
	return err
}

// Schema definitions
const (
	schemaVersionTable = `
CREATE TABLE schema_version (
    version INTEGER NOT NULL,
    applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

	accountsTable = `
CREATE TABLE accounts (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    email           TEXT NOT NULL UNIQUE,
    password_hash   TEXT NOT NULL,
    totp_secret     TEXT NOT NULL DEFAULT '',
    role            TEXT NOT NULL DEFAULT 'supplier',
    first_name      TEXT NOT NULL DEFAULT '',
    last_name       TEXT NOT NULL DEFAULT '',
    phone_number    TEXT NOT NULL DEFAULT '',
    language        TEXT NOT NULL DEFAULT 'en',
    active          INTEGER NOT NULL DEFAULT 0,
    approval_status TEXT NOT NULL DEFAULT 'pending',
    created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

	accountsIndexes = `
CREATE INDEX idx_accounts_role ON accounts(role);
CREATE INDEX idx_accounts_active ON accounts(active);
CREATE INDEX idx_accounts_approval_status ON accounts(approval_status)`

	certificatesTable = `
CREATE TABLE certificates (
    id                 INTEGER PRIMARY KEY AUTOINCREMENT,
    account_id         INTEGER NOT NULL REFERENCES accounts(id),
    name               TEXT NOT NULL,
    description        TEXT NOT NULL DEFAULT '',
    blob_ref           TEXT NOT NULL,
    file_hash          TEXT NOT NULL,
    issue_date         DATE NOT NULL,
    expiry_date        DATE NOT NULL,
    upload_time        DATETIME NOT NULL,
    last_checked       DATETIME,
    verified           INTEGER NOT NULL DEFAULT 0,
    suspected_tampered INTEGER NOT NULL DEFAULT 0,
    version            INTEGER NOT NULL DEFAULT 1,
    approval_status    TEXT NOT NULL DEFAULT 'pending',
    qr_issuance_id     INTEGER REFERENCES qr_issuances(id)
)`

	certificatesIndexes = `
CREATE INDEX idx_certificates_account ON certificates(account_id);
CREATE INDEX idx_certificates_file_hash ON certificates(file_hash);
CREATE INDEX idx_certificates_approval_status ON certificates(approval_status);
CREATE INDEX idx_certificates_expiry ON certificates(expiry_date)`

	certificateVersionsTable = `
CREATE TABLE certificate_versions (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    certificate_id INTEGER NOT NULL REFERENCES certificates(id),
    version        INTEGER NOT NULL,
    file_hash      TEXT NOT NULL,
    uploaded_at    DATETIME NOT NULL,
    UNIQUE(certificate_id, version)
)`

	certificateVersionsIndexes = `
CREATE INDEX idx_cert_versions_certificate ON certificate_versions(certificate_id)`

	productsTable = `
CREATE TABLE products (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    account_id      INTEGER NOT NULL REFERENCES accounts(id),
    name            TEXT NOT NULL,
    sku             TEXT NOT NULL UNIQUE,
    description     TEXT NOT NULL DEFAULT '',
    approval_status TEXT NOT NULL DEFAULT 'pending',
    created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

	productsIndexes = `
CREATE INDEX idx_products_account ON products(account_id);
CREATE INDEX idx_products_approval_status ON products(approval_status)`

	approvalRequestsTable = `
CREATE TABLE approval_requests (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    requester_id INTEGER NOT NULL REFERENCES accounts(id),
    entity_kind  TEXT NOT NULL,
    entity_id    INTEGER NOT NULL,
    status       TEXT NOT NULL DEFAULT 'pending',
    reviewed_by  INTEGER REFERENCES accounts(id),
    reviewed_at  DATETIME,
    request_time DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    comments     TEXT NOT NULL DEFAULT ''
)`

	approvalRequestsIndexes = `
CREATE INDEX idx_approval_requests_entity ON approval_requests(entity_kind, entity_id);
CREATE INDEX idx_approval_requests_status ON approval_requests(status)`

	approvalLogsTable = `
CREATE TABLE approval_logs (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    entity_kind     TEXT NOT NULL,
    entity_id       INTEGER NOT NULL,
    previous_status TEXT NOT NULL,
    new_status      TEXT NOT NULL,
    actor           TEXT NOT NULL,
    action_time     DATETIME NOT NULL,
    comment         TEXT NOT NULL DEFAULT ''
)`

	approvalLogsIndexes = `
CREATE INDEX idx_approval_logs_entity ON approval_logs(entity_kind, entity_id);
CREATE INDEX idx_approval_logs_action_time ON approval_logs(action_time)`

	qrIssuancesTable = `
CREATE TABLE qr_issuances (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    subject_kind   TEXT NOT NULL,
    subject_id     INTEGER NOT NULL,
    token          TEXT NOT NULL UNIQUE,
    image          BLOB NOT NULL,
    created_at     DATETIME NOT NULL,
    regenerated_at DATETIME,
    UNIQUE(subject_kind, subject_id)
)`

	qrIssuancesIndexes = `
CREATE INDEX idx_qr_issuances_subject ON qr_issuances(subject_kind, subject_id)`
)

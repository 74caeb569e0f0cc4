package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dtrackhq/dtrack/internal/approval"
	"github.com/dtrackhq/dtrack/internal/blob"
	"github.com/dtrackhq/dtrack/internal/certs"
	"github.com/dtrackhq/dtrack/internal/config"
	"github.com/dtrackhq/dtrack/internal/db"
	"github.com/dtrackhq/dtrack/internal/db/repository"
	"github.com/dtrackhq/dtrack/internal/expiry"
	"github.com/dtrackhq/dtrack/internal/extract"
	"github.com/dtrackhq/dtrack/internal/models"
	"github.com/dtrackhq/dtrack/internal/policy"
	"github.com/dtrackhq/dtrack/internal/qr"
	"github.com/dtrackhq/dtrack/pkg/clock"
)

type serverEnv struct {
	server   *Server
	db       *db.DB
	machine  *approval.StateMachine
	accounts *repository.AccountRepository
	certs    *repository.CertificateRepository
	qrRepo   *repository.QRRepository
}

func newServerEnv(t *testing.T) *serverEnv {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{
			ListenAddr:    "127.0.0.1:0",
			PublicBaseURL: "https://dtrack.example.com",
		},
		Policy:  config.PolicyConfig{MaxUploadBytes: 1 << 20},
		Admin:   config.AdminConfig{Token: "test-admin-token"},
		Logging: config.LoggingConfig{Level: "error", Format: "console"},
	}

	database, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.RunMigrations(database))

	blobStore, err := blob.NewFileStore(t.TempDir())
	require.NoError(t, err)

	logger := zap.NewNop()
	accountRepo := repository.NewAccountRepository(database.DB)
	certRepo := repository.NewCertificateRepository(database.DB)
	versionRepo := repository.NewVersionRepository(database.DB)
	approvalRepo := repository.NewApprovalRepository(database.DB)
	qrRepo := repository.NewQRRepository(database.DB)
	productRepo := repository.NewProductRepository(database.DB)

	clk := clock.System{}
	validator := policy.NewValidator(cfg)
	extractor := extract.New(logger)
	renderer := qr.NewRenderer(cfg.Server.PublicBaseURL)
	coordinator := qr.NewCoordinator(qrRepo, renderer, logger)
	machine := approval.NewStateMachine(database, accountRepo, certRepo, productRepo, approvalRepo, coordinator, clk, logger)
	propagator := expiry.NewPropagator(accountRepo, certRepo, clk, logger)
	certService := certs.NewService(database, certRepo, versionRepo, approvalRepo, blobStore, extractor, validator, clk, logger)

	server := NewServer(cfg, logger, certService, machine, coordinator, propagator, accountRepo, certRepo, productRepo, approvalRepo)

	return &serverEnv{
		server:   server,
		db:       database,
		machine:  machine,
		accounts: accountRepo,
		certs:    certRepo,
		qrRepo:   qrRepo,
	}
}

func (e *serverEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.server.Router().ServeHTTP(w, req)
	return w
}

func (e *serverEnv) seedApprovedCertificate(t *testing.T) (*models.Certificate, string) {
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

	cert := &models.Certificate{
		AccountID:  account.ID,
		Name:       "ISO 9001",
		BlobRef:    "ab/abc123",
		FileHash:   "abc123",
		IssueDate:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ExpiryDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, e.certs.Create(cert))

	_, err := e.machine.Transition(models.KindCertificate, cert.ID, models.StatusApproved, "reviewer@example.com", 0, "")
	require.NoError(t, err)

	iss, err := e.qrRepo.GetBySubject(e.db.DB, models.KindCertificate, cert.ID)
	require.NoError(t, err)

	return cert, iss.Token
}

func TestHealthEndpoint(t *testing.T) {
	env := newServerEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestVerifyEndpoint(t *testing.T) {
	env := newServerEnv(t)
	cert, token := env.seedApprovedCertificate(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/v1/verify/"+token, nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.KindCertificate, resp["subject_kind"])
	assert.Equal(t, cert.Name, resp["name"])
	assert.Equal(t, models.StatusApproved, resp["approval_status"])
	assert.Equal(t, true, resp["verified"])
}

func TestVerifyEndpointSupplier(t *testing.T) {
	env := newServerEnv(t)

	account := &models.Account{
		Email:          "supplier@example.com",
		PasswordHash:   "hash",
		Role:           models.RoleSupplier,
		FirstName:      "Acme",
		LastName:       "Foods",
		Language:       "en",
		Active:         true,
		ApprovalStatus: models.StatusPending,
	}
	require.NoError(t, env.accounts.Create(account))

	_, err := env.machine.Transition(models.KindSupplier, account.ID, models.StatusApproved, "reviewer@example.com", 0, "")
	require.NoError(t, err)

	iss, err := env.qrRepo.GetBySubject(env.db.DB, models.KindSupplier, account.ID)
	require.NoError(t, err)

	w := env.do(httptest.NewRequest(http.MethodGet, "/v1/verify/"+iss.Token, nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.KindSupplier, resp["subject_kind"])
	assert.Equal(t, "Acme Foods", resp["name"])
	assert.Equal(t, models.StatusApproved, resp["approval_status"])
	assert.Equal(t, true, resp["verified"])
}

func TestVerifyEndpointUnknownToken(t *testing.T) {
	env := newServerEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/v1/verify/2c7cf6a0-94e6-44c0-bb3e-6a39e0a7e81c", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVerifyImageEndpoint(t *testing.T) {
	env := newServerEnv(t)
	_, token := env.seedApprovedCertificate(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/v1/verify/"+token+"/image", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Body.Bytes())
}

func TestAdminEndpointsRequireToken(t *testing.T) {
	env := newServerEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/v1/admin/accounts", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/accounts", nil)
	req.Header.Set("X-Admin-Token", "wrong")
	w = env.do(req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/admin/accounts", nil)
	req.Header.Set("X-Admin-Token", "test-admin-token")
	w = env.do(req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTamperedCertificateFailsVerification(t *testing.T) {
	env := newServerEnv(t)
	cert, token := env.seedApprovedCertificate(t)

	require.NoError(t, env.certs.UpdateIntegrity(cert.ID, false, true, time.Now()))

	w := env.do(httptest.NewRequest(http.MethodGet, "/v1/verify/"+token, nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["verified"])
}

package expiry

import (
	"go.uber.org/zap"

	"github.com/dtrackhq/dtrack/internal/db/repository"
	"github.com/dtrackhq/dtrack/internal/models"
	"github.com/dtrackhq/dtrack/pkg/clock"
)

// Propagator keeps supplier account activation in step with certificate
// expiry. An account stays active exactly while it owns no approved
// certificate whose expiry date has passed.
type Propagator struct {
	accounts *repository.AccountRepository
	certs    *repository.CertificateRepository
	clock    clock.Clock
	logger   *zap.Logger
}

// NewPropagator creates a new expiry propagator
func NewPropagator(accounts *repository.AccountRepository, certs *repository.CertificateRepository, clk clock.Clock, logger *zap.Logger) *Propagator {
	return &Propagator{accounts: accounts, certs: certs, clock: clk, logger: logger}
}

// Recompute evaluates the account's activation and writes it only when
// the value changes. It reports whether a write happened. Deactivation
// reverses on its own once the expired certificate is replaced and a
// later recompute runs.
func (p *Propagator) Recompute(accountID int64) (bool, error) {
	account, err := p.accounts.GetByID(accountID)
	if err != nil {
		return false, err
	}

	expired, err := p.certs.HasExpiredApproved(accountID, p.clock.Now())
	if err != nil {
		return false, err
	}

	shouldBeActive := !expired
	if account.Active == shouldBeActive {
		return false, nil
	}

	if err := p.accounts.SetActive(accountID, shouldBeActive); err != nil {
		return false, err
	}

	p.logger.Info("account activation changed",
		zap.Int64("account_id", accountID),
		zap.Bool("active", shouldBeActive))

	return true, nil
}

// Sweep recomputes activation for every supplier account and returns the
// ids whose activation changed
func (p *Propagator) Sweep() ([]int64, error) {
	suppliers, err := p.accounts.List(models.RoleSupplier)
	if err != nil {
		return nil, err
	}

	var changed []int64
	for _, account := range suppliers {
		flipped, err := p.Recompute(account.ID)
		if err != nil {
			return changed, err
		}
		if flipped {
			changed = append(changed, account.ID)
		}
	}
	return changed, nil
}

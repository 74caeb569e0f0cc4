package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dtrackhq/dtrack/internal/auth"
	"github.com/dtrackhq/dtrack/internal/db/repository"
	"github.com/dtrackhq/dtrack/internal/models"
)

// authenticateSupplier verifies supplier credentials carried on the
// request. It writes the error response itself and returns nil when
// authentication fails. Deactivated accounts are rejected even with
// valid credentials; reactivation happens through the expiry sweep once
// the expired certificate is replaced.
func authenticateSupplier(c *gin.Context, accounts *repository.AccountRepository, email, password, totpCode string) *models.Account {
	clientIP := GetClientIP(c)

	account, err := accounts.GetByEmail(email)
	if err != nil {
		log.Printf("Auth failure for %s from %s: account not found", email, clientIP)
		RespondError(c, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
		return nil
	}

	validPassword, err := auth.VerifyPassword(password, account.PasswordHash)
	if err != nil || !validPassword {
		log.Printf("Auth failure for %s from %s: invalid password", email, clientIP)
		RespondError(c, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
		return nil
	}

	if !auth.ValidateTOTP(account.TOTPSecret, totpCode) {
		log.Printf("Auth failure for %s from %s: invalid TOTP", email, clientIP)
		RespondError(c, http.StatusUnauthorized, "invalid_totp", "Invalid TOTP code")
		return nil
	}

	if !account.IsSupplier() {
		RespondError(c, http.StatusForbidden, "forbidden", "Account is not a supplier")
		return nil
	}

	if !account.Active {
		RespondError(c, http.StatusForbidden, "account_inactive", "Account is deactivated; replace expired certificates to reactivate")
		return nil
	}

	return account
}

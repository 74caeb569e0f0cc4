package auth

import (
	"fmt"
	"net/url"

	"github.com/pquerna/otp/totp"
)

const (
	totpIssuer = "DTrack"
)

// GenerateTOTPSecret generates a new TOTP secret for a reviewer account
func GenerateTOTPSecret(email string) (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: email,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate TOTP secret: %w", err)
	}

	return key.Secret(), nil
}

// GenerateQRCodeURL generates an otpauth URL for TOTP enrolment
func GenerateQRCodeURL(secret, email, issuer string) string {
	if issuer == "" {
		issuer = totpIssuer
	}

	return fmt.Sprintf("otpauth://totp/%s:%s?secret=%s&issuer=%s",
		url.QueryEscape(issuer),
		url.QueryEscape(email),
		secret,
		url.QueryEscape(issuer))
}

// ValidateTOTP validates a TOTP code against a secret
func ValidateTOTP(secret, code string) bool {
	return totp.Validate(code, secret)
}

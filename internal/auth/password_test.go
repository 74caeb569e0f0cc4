package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hash)

	ok, err := VerifyPassword("correct horse battery staple", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("wrong password", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGenerateTOTPSecret(t *testing.T) {
	secret, err := GenerateTOTPSecret("reviewer@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, secret)

	url := GenerateQRCodeURL(secret, "reviewer@example.com", "")
	assert.True(t, strings.HasPrefix(url, "otpauth://totp/"))
	assert.Contains(t, url, secret)
}

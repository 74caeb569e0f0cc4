package qr

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerificationURL(t *testing.T) {
	r := NewRenderer("https://dtrack.example.com")
	assert.Equal(t, "https://dtrack.example.com/v1/verify/abc", r.VerificationURL("abc"))

	// Trailing slash on the base URL must not double up
	r = NewRenderer("https://dtrack.example.com/")
	assert.Equal(t, "https://dtrack.example.com/v1/verify/abc", r.VerificationURL("abc"))
}

func TestRenderProducesPNG(t *testing.T) {
	r := NewRenderer("https://dtrack.example.com")

	data, err := r.Render("0b9fb315-cf1a-4ac0-8d8a-6ef09fcb0b30")
	require.NoError(t, err)
	require.NotEmpty(t, data)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 256, img.Bounds().Dx())
	assert.Equal(t, 256, img.Bounds().Dy())
}

func TestRenderDeterministicPerToken(t *testing.T) {
	r := NewRenderer("https://dtrack.example.com")

	a, err := r.Render("token-a")
	require.NoError(t, err)
	b, err := r.Render("token-a")
	require.NoError(t, err)
	c, err := r.Render("token-b")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

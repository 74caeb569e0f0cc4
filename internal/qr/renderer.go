package qr

import (
	"bytes"
	"fmt"
	"image/png"
	"strings"

	"github.com/boombuler/barcode"
	qrcode "github.com/boombuler/barcode/qr"
)

const imageSize = 256

// Renderer renders verification QR images. The payload is always the
// public verification URL for a token; subject ids never appear in it.
type Renderer struct {
	baseURL string
}

// NewRenderer creates a renderer that points QR payloads at baseURL
func NewRenderer(baseURL string) *Renderer {
	return &Renderer{baseURL: strings.TrimRight(baseURL, "/")}
}

// VerificationURL returns the public verification URL for a token
func (r *Renderer) VerificationURL(token string) string {
	return fmt.Sprintf("%s/v1/verify/%s", r.baseURL, token)
}

// Render encodes the verification URL for token as a PNG QR image
func (r *Renderer) Render(token string) ([]byte, error) {
	code, err := qrcode.Encode(r.VerificationURL(token), qrcode.M, qrcode.Auto)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr code: %w", err)
	}

	code, err = barcode.Scale(code, imageSize, imageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to scale qr code: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, code); err != nil {
		return nil, fmt.Errorf("failed to render qr png: %w", err)
	}

	return buf.Bytes(), nil
}

package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// chunkSize matches the read granularity used at ingestion; correctness
// does not depend on it.
const chunkSize = 4096

// Fingerprint calculates the SHA-256 digest of a document blob, streamed
// in fixed-size chunks, and returns it as lowercase hex. Byte-identical
// input always yields the same digest.
func Fingerprint(r io.Reader) (string, error) {
	h := sha256.New()
	buf := make([]byte, chunkSize)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read blob: %w", err)
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// FingerprintBytes calculates the digest of an in-memory blob
func FingerprintBytes(data []byte) string {
	digest, _ := Fingerprint(bytes.NewReader(data))
	return digest
}

// Matches reports whether two digests refer to identical content
func Matches(a, b string) bool {
	return a != "" && a == b
}

// Package hasher computes content fingerprints used for upload deduplication.
package hasher

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/minio/sha256-simd"
)

// Sum reads r to EOF and returns the hex-encoded SHA-256 digest of everything read.
func Sum(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hash content: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

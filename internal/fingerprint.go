package internal

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns a short, stable, non-reversible reference to a secret
// token. It is safe to log and to embed in rate limit keys.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:12])
}

// HashSecret returns the full SHA-256 of an opaque token, hex encoded. Stores
// key refresh and reset records by this value so a leaked store cannot be
// replayed.
func HashSecret(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

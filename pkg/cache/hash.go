package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash computes a SHA-256 hash of the input data.
// Returns the full 64-character hex string.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// HashString computes a SHA-256 hash of a string.
func HashString(s string) string {
	return Hash([]byte(s))
}

// ShortHash returns the first 16 hex characters of the SHA-256 hash.
// Used for human-facing identifiers (bundle hash references, output names)
// where the full digest would be unwieldy.
func ShortHash(data []byte) string {
	return Hash(data)[:16]
}

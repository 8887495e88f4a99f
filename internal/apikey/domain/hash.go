package domain

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashAPIKey hashes a raw terminal key the same way at issue time and at lookup.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

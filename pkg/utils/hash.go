package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashString returns a short, stable hex digest of input. It keeps raw client
// identifiers (IPs, user ids) out of shared stores such as Redis keys.
func HashString(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:16])
}

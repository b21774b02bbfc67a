package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashString returns a short hex digest used for stable ids and cache keys.
func HashString(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:16])
}

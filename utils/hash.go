package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashIP returns a hex SHA-256 of the caller's IP so events carry no raw
// addresses. Empty in, empty out.
func HashIP(ip string) string {
	if ip == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:])
}

package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// FingerprintLength is the number of hex characters kept from the address digest.
const FingerprintLength = 24

// FingerprintAddress derives a one-way, truncated digest of a network address.
// An empty address yields an empty fingerprint.
func FingerprintAddress(address string) string {
	address = strings.TrimSpace(address)
	if address == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(address))
	return hex.EncodeToString(sum[:])[:FingerprintLength]
}

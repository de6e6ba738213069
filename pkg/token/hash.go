package token

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// fingerprintLength is the number of hex characters kept by Fingerprint.
const fingerprintLength = 12

// Hash computes the hex-encoded SHA-256 hash of a token.
func Hash(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// Fingerprint returns a short, log-safe identifier for a token.
// Returns empty string for an empty token.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	return Hash(token)[:fingerprintLength]
}

// Same reports whether two tokens are identical in constant time.
func Same(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(Hash(a)), []byte(Hash(b))) == 1
}

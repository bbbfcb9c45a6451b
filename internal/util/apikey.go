package util

import "strings"

// API keys look like "nbk_" followed by a 26-char ULID. The prefix lets the
// auth path reject garbage before it ever reaches the credential index.
const (
	APIKeyPrefix = "nbk_"
	apiKeyLen    = len(APIKeyPrefix) + 26
)

const ulidAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// NewAPIKey mints a fresh account credential.
func NewAPIKey() string {
	return APIKeyPrefix + NewULID()
}

// ValidAPIKeyFormat reports whether s is shaped like one of our keys.
// It does not check existence, only the format.
func ValidAPIKeyFormat(s string) bool {
	if len(s) != apiKeyLen || !strings.HasPrefix(s, APIKeyPrefix) {
		return false
	}
	for _, r := range s[len(APIKeyPrefix):] {
		if !strings.ContainsRune(ulidAlphabet, r) {
			return false
		}
	}
	return true
}

// KeyPrefix returns the loggable head of a credential. Full keys never appear
// in audit rows.
func KeyPrefix(key string) string {
	if len(key) <= 10 {
		return key
	}
	return key[:10]
}

// Package security handles API keys: sanitizing, masking for logs,
// fingerprinting for storage and constant-time comparison.
package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	validKeyPattern  = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	unsafeKeyPattern = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
	hexPattern       = regexp.MustCompile(`^[a-fA-F0-9]+$`)
)

// APIKeyValidator provides secure validation and handling of API keys
type APIKeyValidator struct {
	minLength int
	maxLength int
}

// NewAPIKeyValidator creates a new API key validator with reasonable defaults
func NewAPIKeyValidator() *APIKeyValidator {
	return &APIKeyValidator{
		minLength: 8,
		maxLength: 128,
	}
}

// ValidateAPIKey validates API key format and length
func (v *APIKeyValidator) ValidateAPIKey(apiKey string) bool {
	if len(apiKey) < v.minLength || len(apiKey) > v.maxLength {
		return false
	}
	return validKeyPattern.MatchString(apiKey)
}

// SanitizeAPIKey trims whitespace and drops characters that could be used
// for URL or header injection.
func (v *APIKeyValidator) SanitizeAPIKey(apiKey string) string {
	return unsafeKeyPattern.ReplaceAllString(strings.TrimSpace(apiKey), "")
}

// MaskAPIKey creates a masked version for logging (shows only first/last few chars)
func (v *APIKeyValidator) MaskAPIKey(apiKey string) string {
	if len(apiKey) == 0 {
		return "[empty]"
	}

	if len(apiKey) <= 8 {
		return "[***]"
	}

	return apiKey[:3] + "..." + apiKey[len(apiKey)-3:]
}

// Fingerprint returns a stable, non-reversible identifier for apiKey.
func (v *APIKeyValidator) Fingerprint(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:8])
}

// SecureCompare performs constant-time comparison of API keys to prevent timing attacks
func (v *APIKeyValidator) SecureCompare(key1, key2 string) bool {
	return subtle.ConstantTimeCompare([]byte(key1), []byte(key2)) == 1
}

// IsValidAllDebridKey validates AllDebrid API key format specifically
func (v *APIKeyValidator) IsValidAllDebridKey(apiKey string) bool {
	if !v.ValidateAPIKey(apiKey) {
		return false
	}
	return len(apiKey) >= 16 && len(apiKey) <= 40
}

// IsValidTMDBKey validates a TMDB v3 API key: 32 hexadecimal characters.
func (v *APIKeyValidator) IsValidTMDBKey(apiKey string) bool {
	return len(apiKey) == 32 && hexPattern.MatchString(apiKey)
}

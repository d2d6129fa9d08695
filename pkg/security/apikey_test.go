package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeAndValidate(t *testing.T) {
	v := NewAPIKeyValidator()

	assert.Equal(t, "abcDEF123_-x", v.SanitizeAPIKey("  abcDEF123_-x\n"))
	assert.Equal(t, "abcdef", v.SanitizeAPIKey("abc&def"))

	assert.True(t, v.ValidateAPIKey("abcdefgh"))
	assert.False(t, v.ValidateAPIKey("short"))
	assert.False(t, v.ValidateAPIKey("has space in it"))
}

func TestMaskAPIKey(t *testing.T) {
	v := NewAPIKeyValidator()

	assert.Equal(t, "[empty]", v.MaskAPIKey(""))
	assert.Equal(t, "[***]", v.MaskAPIKey("12345678"))
	assert.Equal(t, "abc...xyz", v.MaskAPIKey("abc1234567xyz"))
}

func TestFingerprintIsStableAndDistinct(t *testing.T) {
	v := NewAPIKeyValidator()

	a := v.Fingerprint("key-one-abcdefgh")
	assert.Equal(t, a, v.Fingerprint("key-one-abcdefgh"))
	assert.NotEqual(t, a, v.Fingerprint("key-two-abcdefgh"))
	assert.Len(t, a, 16)
	assert.NotContains(t, a, "key")
}

func TestProviderSpecificKeys(t *testing.T) {
	v := NewAPIKeyValidator()

	assert.True(t, v.IsValidAllDebridKey("abcdefghijklmnopqrst"))
	assert.False(t, v.IsValidAllDebridKey("abcdefgh"))

	assert.True(t, v.IsValidTMDBKey("0123456789abcdef0123456789abcdef"))
	assert.False(t, v.IsValidTMDBKey("0123456789abcdef0123456789abcdeg"))
	assert.False(t, v.IsValidTMDBKey("0123"))
}

func TestSecureCompare(t *testing.T) {
	v := NewAPIKeyValidator()
	assert.True(t, v.SecureCompare("secret", "secret"))
	assert.False(t, v.SecureCompare("secret", "Secret"))
}

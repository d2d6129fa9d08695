package config

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	apperrors "github.com/amaumene/miaou/internal/errors"
)

var userDataEncodings = []struct {
	enc *base64.Encoding
	raw bool
}{
	{base64.RawURLEncoding, true},
	{base64.URLEncoding, false},
	{base64.RawStdEncoding, true},
	{base64.StdEncoding, false},
}

// DecodeUserConfig decodes the base64 JSON path segment carried by every
// configured addon URL. Standard and URL alphabets are both accepted, with or
// without padding.
func DecodeUserConfig(segment string) (map[string]interface{}, error) {
	if unescaped, err := url.PathUnescape(segment); err == nil {
		segment = unescaped
	}
	segment = strings.TrimSpace(segment)
	if segment == "" {
		return nil, apperrors.NewConfigurationError("empty configuration", nil)
	}

	var raw []byte
	var decodeErr error
	for _, e := range userDataEncodings {
		candidate := segment
		if e.raw {
			candidate = strings.TrimRight(segment, "=")
		}
		raw, decodeErr = e.enc.DecodeString(candidate)
		if decodeErr == nil {
			break
		}
	}
	if decodeErr != nil {
		return nil, apperrors.NewConfigurationError("configuration is not base64", decodeErr)
	}

	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, apperrors.NewConfigurationError("configuration is not a JSON object", err)
	}
	if data == nil {
		return nil, apperrors.NewConfigurationError("configuration is not a JSON object", nil)
	}
	return data, nil
}

// EncodeUserConfig is the inverse of DecodeUserConfig.
func EncodeUserConfig(data map[string]interface{}) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to encode configuration: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

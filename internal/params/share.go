package params

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Encode renders p as a compact URL-safe token suitable for a query
// parameter.
func Encode(p Parameters) (string, error) {
	data, err := json.Marshal(p.Normalized())
	if err != nil {
		return "", fmt.Errorf("failed to encode parameters: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// Decode parses a token produced by Encode. The payload is untrusted and is
// always passed through Normalize.
func Decode(token string) (Parameters, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(token), "=")
	if trimmed == "" {
		return Parameters{}, fmt.Errorf("empty parameter token")
	}
	data, err := base64.RawURLEncoding.DecodeString(trimmed)
	if err != nil {
		return Parameters{}, fmt.Errorf("failed to decode parameter token: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Parameters{}, fmt.Errorf("failed to parse parameter token: %w", err)
	}
	return Normalize(raw), nil
}

// MarshalYAML renders p as a downloadable parameter file.
func MarshalYAML(p Parameters) ([]byte, error) {
	data, err := yaml.Marshal(p.Normalized())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal parameters: %w", err)
	}
	return data, nil
}

// LoadFile reads a YAML or JSON parameter file and normalizes it.
func LoadFile(path string) (Parameters, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Parameters{}, fmt.Errorf("error reading parameter file, %w", err)
	}
	return Normalize(v.AllSettings()), nil
}

package server

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/iwvelando/cash-tuner/internal/config"
	"github.com/iwvelando/cash-tuner/pkg/constants"
	"gopkg.in/yaml.v3"
)

// Config defines runtime parameters for the HTTP server.
type Config struct {
	Address       string               `yaml:"address"`
	MaxUploadSize string               `yaml:"maxUploadSize"`
	Logging       config.LoggingConfig `yaml:"logging"`
	// Actions tunes the action generator for every request.
	Actions   config.ActionsConfig `yaml:"actions"`
	bodyBytes int64
}

// LoadConfig loads the server configuration from YAML. If the file does not exist,
// defaults are returned without error.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Address:       constants.DefaultServerAddress,
		MaxUploadSize: strconv.FormatInt(constants.DefaultMaxUploadSizeBytes, 10),
		bodyBytes:     constants.DefaultMaxUploadSizeBytes,
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read server config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse server config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// BodyLimit returns the maximum request body size in bytes.
func (c *Config) BodyLimit() int64 {
	return c.bodyBytes
}

// SetBodyLimit overrides the maximum request body size. Non-positive sizes
// are ignored.
func (c *Config) SetBodyLimit(size int64) {
	if size > 0 {
		c.bodyBytes = size
		c.MaxUploadSize = strconv.FormatInt(size, 10)
	}
}

// Application returns the engine-facing configuration carried by the server
// config.
func (c *Config) Application() *config.Configuration {
	return &config.Configuration{Actions: c.Actions, Logging: c.Logging}
}

func (c *Config) normalize() error {
	if strings.TrimSpace(c.Address) == "" {
		c.Address = constants.DefaultServerAddress
	}
	size, err := ParseSize(c.MaxUploadSize)
	if err != nil {
		return err
	}
	if size <= 0 {
		size = constants.DefaultMaxUploadSizeBytes
	}
	c.bodyBytes = size
	return nil
}

// ParseSize converts a human-friendly byte string (e.g., "256K", "4MB") into
// bytes. An empty string yields the default limit.
func ParseSize(value string) (int64, error) {
	upper := strings.ToUpper(strings.TrimSpace(value))
	if upper == "" {
		return constants.DefaultMaxUploadSizeBytes, nil
	}

	split := strings.LastIndexFunc(upper, unicode.IsDigit) + 1
	if split == 0 {
		return 0, fmt.Errorf("invalid size: %s", value)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(upper[:split]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value %q: %w", value, err)
	}

	var shift uint
	switch strings.TrimSpace(upper[split:]) {
	case "", "B":
		shift = 0
	case "K", "KB":
		shift = 10
	case "M", "MB":
		shift = 20
	case "G", "GB":
		shift = 30
	default:
		return 0, fmt.Errorf("unsupported size unit in %q", value)
	}
	if n > math.MaxInt64>>shift {
		return 0, fmt.Errorf("size overflow for value %s", value)
	}
	return n << shift, nil
}

package forecast

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Input encodings
const (
	InputFormatJSON = "json"
	InputFormatYAML = "yaml"
)

// DecodeInput reads a forecast input in the given encoding.
func DecodeInput(r io.Reader, format string) (Input, error) {
	var input Input
	switch format {
	case InputFormatJSON:
		if err := json.NewDecoder(r).Decode(&input); err != nil {
			return Input{}, fmt.Errorf("failed to decode JSON forecast input: %w", err)
		}
	case InputFormatYAML:
		if err := yaml.NewDecoder(r).Decode(&input); err != nil && err != io.EOF {
			return Input{}, fmt.Errorf("failed to decode YAML forecast input: %w", err)
		}
	default:
		return Input{}, fmt.Errorf("unsupported forecast input format %q", format)
	}
	return input, nil
}

// LoadInput reads a forecast input file; the encoding follows the file
// extension, defaulting to JSON.
func LoadInput(path string) (Input, error) {
	file, err := os.Open(path)
	if err != nil {
		return Input{}, fmt.Errorf("failed to open forecast input %s: %w", path, err)
	}
	defer func() {
		_ = file.Close()
	}()

	format := InputFormatJSON
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = InputFormatYAML
	}
	return DecodeInput(file, format)
}

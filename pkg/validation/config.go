// Package validation provides configuration validation utilities.
package validation

import (
	"fmt"
	"math"
	"os"
)

// ConfigValidator collects the settings checked before a run.
type ConfigValidator struct {
	InputFile          string
	ParametersFile     string
	OutputFormat       string
	LogLevel           string
	LogFormat          string
	PerDomain          int
	EmergencyPerDomain int
	CoverageThreshold  float64
	// Weights are the AR priority weights; nil means the defaults are used.
	Weights []float64
}

// ValidateFile reports a warning when a configured file cannot be read.
func ValidateFile(label, path string) string {
	if path == "" {
		return ""
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Sprintf("%s '%s' is not accessible: %v", label, path, err)
	}
	if info.IsDir() {
		return fmt.Sprintf("%s '%s' is a directory", label, path)
	}
	return ""
}

// ValidateWeights checks that the priority weights are non-negative and
// flags sets that do not sum to one.
func ValidateWeights(weights []float64) []string {
	var warnings []string
	sum := 0.0
	for i, w := range weights {
		if w < 0 || math.IsNaN(w) {
			warnings = append(warnings, fmt.Sprintf("priority weight %d is negative or invalid (%v)", i, w))
		}
		sum += w
	}
	if len(weights) > 0 && math.Abs(sum-1) > 1e-9 {
		warnings = append(warnings, fmt.Sprintf("priority weights sum to %.4f rather than 1; scores are not on a 0-100 scale", sum))
	}
	return warnings
}

// ValidateAll validates the entire configuration and returns warnings
func (cv *ConfigValidator) ValidateAll() []string {
	var warnings []string

	if cv.InputFile == "" {
		warnings = append(warnings, "no forecast input file configured")
	} else if w := ValidateFile("Input file", cv.InputFile); w != "" {
		warnings = append(warnings, w)
	}
	if w := ValidateFile("Parameters file", cv.ParametersFile); w != "" {
		warnings = append(warnings, w)
	}

	if cv.OutputFormat != "" {
		if err := ValidateOutputFormat(cv.OutputFormat); err != nil {
			warnings = append(warnings, err.Error())
		}
	}
	if err := ValidateLogLevel(cv.LogLevel); err != nil {
		warnings = append(warnings, err.Error())
	}
	if err := ValidateLogFormat(cv.LogFormat); err != nil {
		warnings = append(warnings, err.Error())
	}

	if cv.PerDomain < 0 {
		warnings = append(warnings, fmt.Sprintf("actions per domain is negative (%d); the default is used", cv.PerDomain))
	}
	if cv.EmergencyPerDomain < 0 {
		warnings = append(warnings, fmt.Sprintf("emergency actions per domain is negative (%d); the default is used", cv.EmergencyPerDomain))
	}
	if cv.PerDomain > 0 && cv.EmergencyPerDomain > cv.PerDomain {
		warnings = append(warnings, fmt.Sprintf("emergency pack size %d exceeds actions per domain %d", cv.EmergencyPerDomain, cv.PerDomain))
	}
	if cv.CoverageThreshold < 0 || cv.CoverageThreshold > 1 {
		warnings = append(warnings, fmt.Sprintf("coverage threshold %v is outside [0, 1]; the default is used", cv.CoverageThreshold))
	}

	warnings = append(warnings, ValidateWeights(cv.Weights)...)
	return warnings
}

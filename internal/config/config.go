// Package config defines the data structures related to configuration and
// includes functions for loading it and resolving the tuning parameters.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/iwvelando/cash-tuner/internal/actions"
	"github.com/iwvelando/cash-tuner/internal/params"
	"github.com/iwvelando/cash-tuner/pkg/constants"
	"github.com/iwvelando/cash-tuner/pkg/validation"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Configuration holds all configuration for cash-tuner.
type Configuration struct {
	Input InputConfig `yaml:"input" mapstructure:"input"`
	// Parameters is an inline, possibly partial, tuning parameter set.
	Parameters map[string]any `yaml:"parameters,omitempty" mapstructure:"parameters"`
	Actions    ActionsConfig  `yaml:"actions,omitempty" mapstructure:"actions"`
	Logging    LoggingConfig  `yaml:"logging,omitempty" mapstructure:"logging"`
	Output     OutputConfig   `yaml:"output,omitempty" mapstructure:"output"`
}

// InputConfig locates the forecast input and the parameter sources.
type InputConfig struct {
	File            string `yaml:"file" mapstructure:"file"`
	ParametersFile  string `yaml:"parametersFile,omitempty" mapstructure:"parametersFile"`
	ParametersToken string `yaml:"parametersToken,omitempty" mapstructure:"parametersToken"`
}

// ActionsConfig overrides the action generator settings. Zero values keep
// the defaults.
type ActionsConfig struct {
	PerDomain          int              `yaml:"perDomain,omitempty" mapstructure:"perDomain"`
	EmergencyPerDomain int              `yaml:"emergencyPerDomain,omitempty" mapstructure:"emergencyPerDomain"`
	CoverageThreshold  float64          `yaml:"coverageThreshold,omitempty" mapstructure:"coverageThreshold"`
	Weights            *actions.Weights `yaml:"weights,omitempty" mapstructure:"weights"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty" mapstructure:"level"`           // debug, info, warn, error
	Format     string `yaml:"format,omitempty" mapstructure:"format"`         // json, console
	OutputFile string `yaml:"outputFile,omitempty" mapstructure:"outputFile"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `yaml:"format,omitempty" mapstructure:"format"` // pretty, csv, json
}

// LoadEnvFile loads KEY=VALUE pairs from a .env file into the process
// environment. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there. Environment variables prefixed with CASHTUNER_
// override file values (e.g. CASHTUNER_OUTPUT_FORMAT).
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yml")
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range []string{
		"input.file", "input.parametersFile", "input.parametersToken",
		"logging.level", "logging.format", "logging.outputFile",
		"output.format",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind environment for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file, %w", err)
	}

	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}

	return &configuration, nil
}

// RawParameters returns the untrusted parameter map for this run. A share
// token wins over a parameters file, which wins over inline parameters.
func (c *Configuration) RawParameters() (map[string]any, error) {
	switch {
	case c.Input.ParametersToken != "":
		p, err := params.Decode(c.Input.ParametersToken)
		if err != nil {
			return nil, fmt.Errorf("failed to decode parameters token: %w", err)
		}
		return p.Raw(), nil
	case c.Input.ParametersFile != "":
		p, err := params.LoadFile(c.Input.ParametersFile)
		if err != nil {
			return nil, err
		}
		return p.Raw(), nil
	default:
		return c.Parameters, nil
	}
}

// NewBuilder creates an action builder with the configured overrides.
func (c *Configuration) NewBuilder(logger *zap.Logger) *actions.Builder {
	builder := actions.NewBuilder(logger)
	if c.Actions.PerDomain > 0 {
		builder.TopN = c.Actions.PerDomain
	}
	if c.Actions.EmergencyPerDomain > 0 {
		builder.EmergencyTopN = c.Actions.EmergencyPerDomain
	}
	if c.Actions.CoverageThreshold > 0 && c.Actions.CoverageThreshold <= 1 {
		builder.CoverageThreshold = c.Actions.CoverageThreshold
	}
	if c.Actions.Weights != nil {
		builder.Weights = *c.Actions.Weights
	}
	return builder
}

// ValidateConfiguration performs general validation of the configuration and returns warnings
func (c *Configuration) ValidateConfiguration() []string {
	validator := validation.ConfigValidator{
		InputFile:          c.Input.File,
		ParametersFile:     c.Input.ParametersFile,
		OutputFormat:       c.Output.Format,
		LogLevel:           c.Logging.Level,
		LogFormat:          c.Logging.Format,
		PerDomain:          c.Actions.PerDomain,
		EmergencyPerDomain: c.Actions.EmergencyPerDomain,
		CoverageThreshold:  c.Actions.CoverageThreshold,
	}
	if w := c.Actions.Weights; w != nil {
		validator.Weights = []float64{w.Amount, w.Aging, w.Concentration, w.Sensitivity}
	}

	warnings := validator.ValidateAll()
	if c.Input.ParametersToken != "" && c.Input.ParametersFile != "" {
		warnings = append(warnings, "both parametersToken and parametersFile are set; the token is used")
	}
	if (c.Input.ParametersToken != "" || c.Input.ParametersFile != "") && len(c.Parameters) > 0 {
		warnings = append(warnings, "inline parameters are ignored because an external parameter source is set")
	}
	return warnings
}

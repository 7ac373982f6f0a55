package sqlscan

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
)

// DefaultMaxParameterLength is the longest string parameter accepted.
const DefaultMaxParameterLength = 1000

// Config holds analyzer configuration.
type Config struct {
	// DetectorMode selects the injection detector.
	// Default: regex
	DetectorMode Mode `json:"detector_mode" yaml:"detector_mode"`

	// BlockOnInjection rejects statements with injection matches. When false
	// matches are reported as warnings and the statement proceeds.
	// Default: true
	BlockOnInjection bool `json:"block_on_injection" yaml:"block_on_injection"`

	// MaxInputLength caps how many bytes of a statement the detector scans.
	// Default: 1MB (1048576)
	MaxInputLength int `json:"max_input_length" yaml:"max_input_length"`

	// MaxParameterLength is the longest string parameter accepted.
	// Default: 1000
	MaxParameterLength int `json:"max_parameter_length" yaml:"max_parameter_length"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		DetectorMode:       DefaultMode,
		BlockOnInjection:   true,
		MaxInputLength:     1048576,
		MaxParameterLength: DefaultMaxParameterLength,
	}
}

// Environment variable names for analyzer configuration.
const (
	// EnvDetectorMode sets the detector mode: "off" or "regex".
	EnvDetectorMode = "SQLGUARD_DETECTOR_MODE"

	// EnvInjectionMode sets whether injection matches block: "block" or "warn".
	EnvInjectionMode = "SQLGUARD_INJECTION_MODE"

	// EnvMaxParameterLength sets the longest accepted string parameter.
	EnvMaxParameterLength = "SQLGUARD_MAX_PARAM_LENGTH"
)

// ConfigFromEnv creates a configuration from environment variables.
// Invalid values are logged and fall back to defaults.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if modeStr := os.Getenv(EnvDetectorMode); modeStr != "" {
		mode, err := ParseMode(strings.ToLower(modeStr))
		if err != nil {
			log.Printf("[sqlscan] WARNING: Invalid %s=%q, using default %q", EnvDetectorMode, modeStr, DefaultMode)
		} else {
			cfg.DetectorMode = mode
		}
	}

	if blockStr := os.Getenv(EnvInjectionMode); blockStr != "" {
		switch strings.ToLower(blockStr) {
		case "block":
			cfg.BlockOnInjection = true
		case "warn":
			cfg.BlockOnInjection = false
			log.Printf("[sqlscan] Warn mode enabled - injection matches will be reported but not blocked")
		default:
			log.Printf("[sqlscan] WARNING: Invalid %s=%q, using default 'block'", EnvInjectionMode, blockStr)
		}
	}

	if lenStr := os.Getenv(EnvMaxParameterLength); lenStr != "" {
		n, err := strconv.Atoi(lenStr)
		if err != nil || n <= 0 {
			log.Printf("[sqlscan] WARNING: Invalid %s=%q, using default %d", EnvMaxParameterLength, lenStr, DefaultMaxParameterLength)
		} else {
			cfg.MaxParameterLength = n
		}
	}

	return cfg
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs []string

	if !c.DetectorMode.IsValid() {
		errs = append(errs, fmt.Sprintf("invalid detector_mode: %q", c.DetectorMode))
	}
	if c.MaxInputLength <= 0 {
		errs = append(errs, "max_input_length must be positive")
	}
	if c.MaxParameterLength <= 0 {
		errs = append(errs, "max_parameter_length must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// WithDetectorMode returns a copy of the config with the detector mode set.
func (c Config) WithDetectorMode(mode Mode) Config {
	c.DetectorMode = mode
	return c
}

// WithBlockOnInjection returns a copy of the config with block mode set.
func (c Config) WithBlockOnInjection(block bool) Config {
	c.BlockOnInjection = block
	return c
}

// WithMaxParameterLength returns a copy of the config with the parameter bound set.
func (c Config) WithMaxParameterLength(n int) Config {
	c.MaxParameterLength = n
	return c
}

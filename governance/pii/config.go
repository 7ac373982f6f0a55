// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pii

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// DefaultMaxPatternLength is the longest custom expression accepted.
const DefaultMaxPatternLength = 1000

// Environment variable names for redactor configuration.
const (
	// EnvSalt sets the salt mixed into Hash.
	EnvSalt = "SQLGUARD_PII_SALT"

	// EnvTypes restricts free-text detection to a comma separated type list.
	EnvTypes = "SQLGUARD_PII_TYPES"
)

// Config holds redactor configuration.
type Config struct {
	// Salt is appended to values before hashing.
	Salt string `json:"-" yaml:"salt"`

	// EnabledTypes limits the catalog used for free-text detection and
	// masking. Empty means all types.
	EnabledTypes []Type `json:"enabled_types,omitempty" yaml:"enabled_types"`

	// MaxPatternLength bounds custom expressions.
	// Default: 1000
	MaxPatternLength int `json:"max_pattern_length" yaml:"max_pattern_length"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{MaxPatternLength: DefaultMaxPatternLength}
}

// ConfigFromEnv creates a configuration from environment variables.
// Unknown type names are logged and skipped.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.Salt = os.Getenv(EnvSalt)

	if list := os.Getenv(EnvTypes); list != "" {
		for _, name := range strings.Split(list, ",") {
			if strings.TrimSpace(name) == "" {
				continue
			}
			t, err := ParseType(name)
			if err != nil {
				log.Printf("[pii] WARNING: Ignoring %s entry %q", EnvTypes, name)
				continue
			}
			cfg.EnabledTypes = append(cfg.EnabledTypes, t)
		}
	}
	return cfg
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs []string
	for _, t := range c.EnabledTypes {
		if !t.IsValid() {
			errs = append(errs, fmt.Sprintf("unknown enabled type: %q", t))
		}
	}
	if c.MaxPatternLength <= 0 {
		errs = append(errs, "max_pattern_length must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// WithSalt returns a copy of the config with the hash salt set.
func (c Config) WithSalt(salt string) Config {
	c.Salt = salt
	return c
}

// WithEnabledTypes returns a copy of the config limited to types.
func (c Config) WithEnabledTypes(types ...Type) Config {
	c.EnabledTypes = append([]Type(nil), types...)
	return c
}

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

package governance

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tduhfajd/sql-guard/governance/pii"
	"github.com/tduhfajd/sql-guard/governance/policy"
	"github.com/tduhfajd/sql-guard/governance/quota"
	"github.com/tduhfajd/sql-guard/governance/sqlscan"
	"github.com/tduhfajd/sql-guard/shared/config"
)

// Environment variable names for service configuration.
const (
	EnvDatabaseURL    = "DATABASE_URL"
	EnvDBDriver       = "SQLGUARD_DB_DRIVER"
	EnvTargetDSN      = "SQLGUARD_TARGET_DSN"
	EnvTargetDriver   = "SQLGUARD_TARGET_DRIVER"
	EnvTargetType     = "SQLGUARD_TARGET_TYPE"
	EnvJWTSecret      = "JWT_SECRET"
	EnvListenAddr     = "SQLGUARD_LISTEN_ADDR"
	EnvAllowedOrigins = "SQLGUARD_CORS_ORIGINS"
	EnvConfigFile     = "SQLGUARD_CONFIG"
)

// PolicyConfig selects where policies live.
type PolicyConfig struct {
	// File is a YAML policy file. It is used when no database is set.
	File string `yaml:"file"`
	// Driver is "postgres" or "mysql".
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	// RiskWeights overrides weights, e.g. "BLOCK_DDL=0.8,MAX_ROWS=0.2".
	RiskWeights string `yaml:"risk_weights"`
	// SeedDefaults creates the built-in policies on startup.
	SeedDefaults bool `yaml:"seed_defaults"`
}

// Weights parses RiskWeights on top of the defaults.
func (c PolicyConfig) Weights() (policy.RiskWeights, error) {
	return policy.ParseRiskWeights(c.RiskWeights)
}

// TargetConfig describes the governed database statements run against.
type TargetConfig struct {
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	DatabaseID   string `yaml:"database_id"`
	DatabaseType string `yaml:"database_type"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	ListenAddr     string        `yaml:"listen_addr"`
	JWTSecret      string        `yaml:"jwt_secret"`
	TokenTTL       time.Duration `yaml:"token_ttl"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
}

// Config is the complete service configuration.
type Config struct {
	Analyzer sqlscan.Config `yaml:"analyzer"`
	PII      pii.Config     `yaml:"pii"`
	Quota    quota.Config   `yaml:"quota"`
	Policy   PolicyConfig   `yaml:"policy"`
	Target   TargetConfig   `yaml:"target"`
	Server   ServerConfig   `yaml:"server"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Analyzer: sqlscan.DefaultConfig(),
		PII:      pii.DefaultConfig(),
		Quota:    quota.DefaultConfig(),
		Policy: PolicyConfig{
			Driver:       "postgres",
			SeedDefaults: true,
		},
		Target: TargetConfig{
			Driver:       "postgres",
			DatabaseType: "PRODUCTION",
		},
		Server: ServerConfig{
			ListenAddr:     ":8080",
			TokenTTL:       time.Hour,
			AllowedOrigins: []string{"*"},
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   60 * time.Second,
		},
	}
}

// ConfigFromEnv creates a configuration from environment variables.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.Analyzer = sqlscan.ConfigFromEnv()
	cfg.PII = pii.ConfigFromEnv()
	cfg.Quota = quota.ConfigFromEnv()

	cfg.Policy.File = os.Getenv(policy.EnvPolicyFile)
	cfg.Policy.DSN = os.Getenv(EnvDatabaseURL)
	cfg.Policy.Driver = config.Getenv(EnvDBDriver, cfg.Policy.Driver)
	cfg.Policy.RiskWeights = os.Getenv(policy.EnvRiskWeights)

	cfg.Target.DSN = os.Getenv(EnvTargetDSN)
	cfg.Target.Driver = config.Getenv(EnvTargetDriver, cfg.Target.Driver)
	cfg.Target.DatabaseType = config.Getenv(EnvTargetType, cfg.Target.DatabaseType)

	cfg.Server.JWTSecret = os.Getenv(EnvJWTSecret)
	cfg.Server.ListenAddr = config.Getenv(EnvListenAddr, cfg.Server.ListenAddr)
	if origins := os.Getenv(EnvAllowedOrigins); origins != "" {
		cfg.Server.AllowedOrigins = splitList(origins)
	}
	return cfg
}

// LoadConfig reads environment defaults and overlays the YAML file at path,
// if any. ${VAR} and ${VAR:-default} references in the file are expanded
// before parsing.
func LoadConfig(path string) (Config, error) {
	cfg := ConfigFromEnv()
	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal([]byte(config.ExpandEnvVars(string(data))), &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate validates every section and joins the problems.
func (c *Config) Validate() error {
	var errs []string
	if err := c.Analyzer.Validate(); err != nil {
		errs = append(errs, "analyzer: "+err.Error())
	}
	if err := c.PII.Validate(); err != nil {
		errs = append(errs, "pii: "+err.Error())
	}
	if err := c.Quota.Validate(); err != nil {
		errs = append(errs, "quota: "+err.Error())
	}
	if _, err := c.Policy.Weights(); err != nil {
		errs = append(errs, "policy: "+err.Error())
	}
	if c.Policy.DSN != "" {
		if _, err := policy.DialectFor(c.Policy.Driver); err != nil {
			errs = append(errs, "policy: "+err.Error())
		}
	}
	if c.Target.DSN != "" {
		if _, err := policy.DialectFor(c.Target.Driver); err != nil {
			errs = append(errs, "target: "+err.Error())
		}
	}
	if c.Server.TokenTTL <= 0 {
		errs = append(errs, "server: token_ttl must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

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

package quota

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"
)

// DefaultWindow is the sliding window used when none is configured.
const DefaultWindow = time.Minute

// Environment variable names for quota configuration.
const (
	// EnvRedisURL points the limiter at a Redis server. Unset means an
	// in-memory store.
	EnvRedisURL = "REDIS_URL"

	// EnvWindow sets the window as a Go duration, e.g. "1m" or "30s".
	EnvWindow = "SQLGUARD_QUOTA_WINDOW"

	// EnvEnabled disables quota checks when set to "false".
	EnvEnabled = "SQLGUARD_QUOTA_ENABLED"
)

// Config holds quota configuration.
type Config struct {
	Enabled   bool          `json:"enabled" yaml:"enabled"`
	RedisURL  string        `json:"-" yaml:"redis_url"`
	KeyPrefix string        `json:"key_prefix" yaml:"key_prefix"`
	Window    time.Duration `json:"window" yaml:"window"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		KeyPrefix: DefaultKeyPrefix,
		Window:    DefaultWindow,
	}
}

// ConfigFromEnv creates a configuration from environment variables.
// Invalid values are logged and fall back to defaults.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.RedisURL = os.Getenv(EnvRedisURL)

	if w := os.Getenv(EnvWindow); w != "" {
		d, err := time.ParseDuration(w)
		if err != nil || d <= 0 {
			log.Printf("[quota] WARNING: Invalid %s=%q, using default %s", EnvWindow, w, DefaultWindow)
		} else {
			cfg.Window = d
		}
	}
	if strings.EqualFold(os.Getenv(EnvEnabled), "false") {
		cfg.Enabled = false
	}
	return cfg
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	if c.Window <= 0 {
		return fmt.Errorf("configuration errors: window must be positive")
	}
	return nil
}

// Open builds the configured limiter. A nil limiter is returned when quotas
// are disabled. The returned close function releases the Redis client.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Limiter, func() error, error) {
	noop := func() error { return nil }
	if err := cfg.Validate(); err != nil {
		return nil, noop, err
	}
	if !cfg.Enabled {
		return nil, noop, nil
	}

	opts = append([]Option{WithWindow(cfg.Window)}, opts...)
	if cfg.RedisURL == "" {
		return NewLimiter(NewMemoryStore(), opts...), noop, nil
	}

	client, err := Dial(ctx, cfg.RedisURL)
	if err != nil {
		return nil, noop, err
	}
	return NewLimiter(NewRedisStore(client, cfg.KeyPrefix), opts...), client.Close, nil
}

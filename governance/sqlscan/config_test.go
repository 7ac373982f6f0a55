package sqlscan

import (
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.DetectorMode != ModeRegex {
		t.Errorf("DetectorMode = %v, want regex", cfg.DetectorMode)
	}
	if !cfg.BlockOnInjection {
		t.Error("BlockOnInjection should default to true")
	}
	if cfg.MaxParameterLength != DefaultMaxParameterLength {
		t.Errorf("MaxParameterLength = %d, want %d", cfg.MaxParameterLength, DefaultMaxParameterLength)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{DetectorMode: Mode("bogus"), MaxInputLength: 0, MaxParameterLength: -1}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"detector_mode", "max_input_length", "max_parameter_length"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %s", err.Error(), want)
		}
	}
}

func TestConfigFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		mode     Mode
		block    bool
		maxParam int
	}{
		{
			name:     "defaults",
			env:      map[string]string{},
			mode:     ModeRegex,
			block:    true,
			maxParam: DefaultMaxParameterLength,
		},
		{
			name:     "all set",
			env:      map[string]string{EnvDetectorMode: "OFF", EnvInjectionMode: "warn", EnvMaxParameterLength: "64"},
			mode:     ModeOff,
			block:    false,
			maxParam: 64,
		},
		{
			name:     "invalid values fall back",
			env:      map[string]string{EnvDetectorMode: "ml", EnvInjectionMode: "maybe", EnvMaxParameterLength: "-3"},
			mode:     ModeRegex,
			block:    true,
			maxParam: DefaultMaxParameterLength,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvDetectorMode, "")
			t.Setenv(EnvInjectionMode, "")
			t.Setenv(EnvMaxParameterLength, "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg := ConfigFromEnv()
			if cfg.DetectorMode != tt.mode {
				t.Errorf("DetectorMode = %v, want %v", cfg.DetectorMode, tt.mode)
			}
			if cfg.BlockOnInjection != tt.block {
				t.Errorf("BlockOnInjection = %v, want %v", cfg.BlockOnInjection, tt.block)
			}
			if cfg.MaxParameterLength != tt.maxParam {
				t.Errorf("MaxParameterLength = %d, want %d", cfg.MaxParameterLength, tt.maxParam)
			}
		})
	}
}

func TestConfig_WithSetters(t *testing.T) {
	base := DefaultConfig()
	changed := base.WithDetectorMode(ModeOff).WithBlockOnInjection(false).WithMaxParameterLength(10)

	if base.DetectorMode != ModeRegex || !base.BlockOnInjection || base.MaxParameterLength != DefaultMaxParameterLength {
		t.Error("setters must not modify the receiver")
	}
	if changed.DetectorMode != ModeOff || changed.BlockOnInjection || changed.MaxParameterLength != 10 {
		t.Errorf("unexpected config %+v", changed)
	}
}

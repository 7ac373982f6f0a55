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
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStats(t *testing.T) {
	r := NewRedactor()
	original := map[string]any{"email": "a@b.com", "id": 1, "note": "hello"}
	masked := r.MaskValue(original, nil).(map[string]any)

	stats := r.Stats(original, masked)
	assert.Equal(t, 3, stats.TotalFields)
	assert.Equal(t, 1, stats.MaskedFields)
	assert.Equal(t, 1, stats.PIIDetected)
	assert.Equal(t, map[Type]int{TypeEmail: 1}, stats.PatternsMatched)
}

func TestRowStats(t *testing.T) {
	r := NewRedactor()
	rows := []map[string]any{
		{"email": "a@b.com", "ssn": "123-45-6789"},
		{"email": "c@d.org", "ssn": nil},
	}
	masked := r.MaskRows(rows, nil, nil)

	stats := r.RowStats(rows, masked)
	assert.Equal(t, 4, stats.TotalFields)
	assert.Equal(t, 3, stats.MaskedFields)
	assert.Equal(t, 2, stats.PatternsMatched[TypeEmail])
	assert.Equal(t, 1, stats.PatternsMatched[TypeSSN])
}

func TestColumnTypes(t *testing.T) {
	got := ColumnTypes([]string{"email", "home_address", "last_name", "status", "Mobile_Phone"})
	assert.Equal(t, map[string][]Type{
		"email":        {TypeEmail},
		"home_address": {TypeAddress, TypeIPAddress},
		"last_name":    {TypeName},
		"Mobile_Phone": {TypePhone},
	}, got)
}

func TestIsLikelyPII(t *testing.T) {
	r := NewRedactor()
	assert.True(t, r.IsLikelyPII("user_email", ""))
	assert.False(t, r.IsLikelyPII("status", ""))
	assert.True(t, r.IsLikelyPII("status", "call 555-123-4567"))
	assert.False(t, r.IsLikelyPII("status", "active"))
}

func TestComplianceReport(t *testing.T) {
	r := NewRedactor()
	rows := []map[string]any{
		{"email": "a@b.com", "amount": "12.50", "status": "ok"},
		{"email": "c@d.com", "amount": "1.00", "status": "ok"},
	}

	report := r.ComplianceReport(rows)
	assert.Equal(t, 2, report.TotalRecords)
	require.Len(t, report.PIIFieldsFound, 1)
	assert.Equal(t, FieldFinding{Field: "email", Type: TypeEmail, SampleValue: "a@b.com"}, report.PIIFieldsFound[0])
	assert.InDelta(t, 0.6667, report.ComplianceScore, 1e-9)
	assert.Len(t, report.Recommendations, 2)
}

func TestComplianceReportSampleFromValue(t *testing.T) {
	r := NewRedactor()
	long := "reach me at a@b.com " + strings.Repeat("x", 60)
	report := r.ComplianceReport([]map[string]any{{"comment": long, "n": 1}})

	require.Len(t, report.PIIFieldsFound, 1)
	finding := report.PIIFieldsFound[0]
	assert.Equal(t, TypeEmail, finding.Type)
	assert.Equal(t, long[:50]+"...", finding.SampleValue)
	assert.InDelta(t, 0.5, report.ComplianceScore, 1e-9)
}

func TestComplianceReportEmpty(t *testing.T) {
	r := NewRedactor()
	report := r.ComplianceReport(nil)
	assert.Equal(t, 0, report.TotalRecords)
	assert.Empty(t, report.PIIFieldsFound)
	assert.Equal(t, 0.0, report.ComplianceScore)
	assert.Empty(t, report.Recommendations)

	clean := r.ComplianceReport([]map[string]any{{"status": "ok"}})
	assert.Equal(t, 1.0, clean.ComplianceScore)
	assert.Empty(t, clean.Recommendations)
}

func TestMaskAuditLog(t *testing.T) {
	r := NewRedactor()
	entry := map[string]any{
		"user_agent": "curl sent by a@b.com",
		"ip_address": "10.0.0.1",
		"details":    map[string]any{"email": "x@y.com", "count": 2},
		"action":     "x@y.com",
	}

	out := r.MaskAuditLog(entry)
	assert.Equal(t, "curl sent by ***@***.com", out["user_agent"])
	assert.Equal(t, "***.***.***.***", out["ip_address"])
	assert.Equal(t, map[string]any{"email": "***@***.com", "count": 2}, out["details"])
	assert.Equal(t, "x@y.com", out["action"])
	assert.Equal(t, "10.0.0.1", entry["ip_address"])

	assert.Nil(t, r.MaskAuditLog(nil))
	assert.Equal(t, map[string]any{"details": "SSN ***-**-****"}, r.MaskAuditLog(map[string]any{"details": "SSN 123-45-6789"}))
}

func TestValidatePattern(t *testing.T) {
	require.NoError(t, ValidatePattern(`\bacct-\d+\b`))
	assert.True(t, errors.Is(ValidatePattern("  "), ErrEmptyPattern))
	assert.True(t, errors.Is(ValidatePattern(strings.Repeat("a", 1001)), ErrPatternTooLong))
	assert.Error(t, ValidatePattern("(unclosed"))
}

func TestNewCustomPattern(t *testing.T) {
	_, err := NewCustomPattern(Type("SHOE_SIZE"), `\d+`, "*", "")
	require.Error(t, err)

	_, err = NewCustomPattern(TypeName, "[", "*", "")
	require.Error(t, err)

	r, err := NewRedactorFromConfig(DefaultConfig())
	require.NoError(t, err)
	r.maxExprLn = 5
	_, err = r.NewCustomPattern(TypeName, "abcdef", "*", "")
	assert.True(t, errors.Is(err, ErrPatternTooLong))
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv(EnvSalt, "s3cret")
	t.Setenv(EnvTypes, "email, bogus ,SSN")

	cfg := ConfigFromEnv()
	assert.Equal(t, "s3cret", cfg.Salt)
	assert.Equal(t, []Type{TypeEmail, TypeSSN}, cfg.EnabledTypes)
	assert.Equal(t, DefaultMaxPatternLength, cfg.MaxPatternLength)
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig().WithEnabledTypes(Type("NOPE"))
	cfg.MaxPatternLength = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown enabled type")
	assert.Contains(t, err.Error(), "max_pattern_length must be positive")

	_, err = NewRedactorFromConfig(cfg)
	assert.Error(t, err)
}

func TestRedactorFromConfigEnabledTypes(t *testing.T) {
	r, err := NewRedactorFromConfig(DefaultConfig().WithEnabledTypes(TypeEmail).WithSalt("x"))
	require.NoError(t, err)
	assert.Equal(t, "***@***.com 123-45-6789", r.MaskText("a@b.com 123-45-6789"))
	assert.Equal(t, Hash("v", "x"), r.Hash("v"))
	assert.Len(t, r.Patterns(), 1)
}

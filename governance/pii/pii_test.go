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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func typesOf(matches []Match) []Type {
	var out []Type
	for _, m := range matches {
		out = append(out, m.Type)
	}
	return out
}

func TestDetect(t *testing.T) {
	r := NewRedactor()

	tests := []struct {
		name       string
		text       string
		wantType   Type
		confidence float64
	}{
		{"email", "Contact john.doe@example.com today", TypeEmail, ConfidenceRegex},
		{"valid ssn", "SSN 123-45-6789", TypeSSN, ConfidenceValidated},
		{"invalid ssn area", "SSN 666-12-3456", TypeSSN, ConfidenceRejected},
		{"luhn valid card", "card 4111-1111-1111-1111", TypeCreditCard, ConfidenceValidated},
		{"luhn invalid card", "card 4111-1111-1111-1112", TypeCreditCard, ConfidenceRejected},
		{"phone", "Call 555-123-4567", TypePhone, ConfidenceRegex},
		{"ip", "from 192.168.1.10", TypeIPAddress, ConfidenceValidated},
		{"bad ip octet", "from 999.1.1.1", TypeIPAddress, ConfidenceRejected},
		{"date of birth", "born 01/15/1990", TypeDateOfBirth, ConfidenceRegex},
		{"passport", "passport AB1234567", TypePassport, ConfidenceRegex},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches := r.Detect(tt.text)
			require.NotEmpty(t, matches)
			assert.Equal(t, tt.wantType, matches[0].Type)
			assert.Equal(t, tt.confidence, matches[0].Confidence)
			assert.Equal(t, matches[0].Original, tt.text[matches[0].Start:matches[0].End])
		})
	}
}

func TestDetectPositionsAndMask(t *testing.T) {
	r := NewRedactor()
	matches := r.Detect("Contact john.doe@example.com")
	require.Len(t, matches, 1)
	assert.Equal(t, Match{
		Type:       TypeEmail,
		Original:   "john.doe@example.com",
		Masked:     "***@***.com",
		Confidence: 0.9,
		Start:      8,
		End:        28,
	}, matches[0])
}

func TestDetectOverlappingTypes(t *testing.T) {
	r := NewRedactor()
	types := typesOf(r.Detect("license D1234567"))
	assert.Contains(t, types, TypeDriverLicense)
	assert.Contains(t, types, TypePassport)
}

func TestDetectEmpty(t *testing.T) {
	r := NewRedactor()
	assert.Empty(t, r.Detect(""))
	assert.Empty(t, r.Detect("SELECT id FROM orders WHERE status = 'open'"))
}

func TestMaskText(t *testing.T) {
	r := NewRedactor()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"email and ssn", "Email john@example.com, SSN 123-45-6789", "Email ***@***.com, SSN ***-**-****"},
		{"phone", "Call 555-123-4567", "Call ***-***-****"},
		{"phone with area code parens", "Call (555) 123-4567 today", "Call ***-***-**** today"},
		{"phone with country code", "Call 1 (555) 123-4567", "Call ***-***-****"},
		{"card", "card 4111 1111 1111 1111 on file", "card ****-****-****-**** on file"},
		{"ip", "login from 10.0.0.1", "login from ***.***.***.***"},
		{"dob", "dob 12/31/1985", "dob **/**/****"},
		{"sql literal", "SELECT * FROM users WHERE email = 'a@b.io'", "SELECT * FROM users WHERE email = '***@***.com'"},
		{"no pii", "nothing to see", "nothing to see"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.MaskText(tt.in))
		})
	}
}

func TestMaskThenRescanIsClean(t *testing.T) {
	r := NewRedactor()
	samples := []string{
		"Contact john.doe@example.com or 555-123-4567",
		"SSN 123-45-6789 card 4111-1111-1111-1111",
		"ip 192.168.0.1 born 07/04/1976 passport X12345678",
		"driver license D1234567, alt email a.b+c@mail.co.uk",
		"UPDATE users SET phone = '+1 555 867 5309' WHERE id = 3",
		"office (555) 123-4567 ext 9",
	}
	for _, s := range samples {
		masked := r.MaskText(s)
		assert.Empty(t, r.Detect(masked), "rescan of %q", masked)
		assert.Equal(t, masked, r.MaskText(masked))
	}
}

func TestMaskTextWithCustomPatterns(t *testing.T) {
	p, err := NewCustomPattern(TypeName, `emp-\d{4}`, "EMP-****", "Employee id")
	require.NoError(t, err)
	assert.Equal(t, "id EMP-**** and a@b.com", MaskTextWith("id EMP-1234 and a@b.com", []Pattern{p}))
}

func TestGenericMask(t *testing.T) {
	tests := map[string]string{
		"":           "",
		"abc":        "***",
		"abcd":       "****",
		"abcdefg":    "ab***fg",
		"Jane Roe":   "Ja****oe",
		"John Smith": "Joh****ith",
		"Zoë Müller": "Zoë****ler",
	}
	for in, want := range tests {
		assert.Equal(t, want, GenericMask(in), in)
	}
}

func TestMaskByType(t *testing.T) {
	r := NewRedactor()
	assert.Equal(t, "***@***.com", r.MaskByType("a@b.io", TypeEmail))
	assert.Equal(t, "not an email", r.MaskByType("not an email", TypeEmail))
	assert.Equal(t, "Joh****ith", r.MaskByType("John Smith", TypeName))
	assert.Equal(t, GenericMask("12 Main Street"), r.MaskByType("12 Main Street", TypeAddress))
}

func TestMaskValue(t *testing.T) {
	r := NewRedactor()
	in := map[string]any{
		"name":  "Jane Roe",
		"email": "jane@example.com",
		"age":   41,
		"profile": map[string]any{
			"note":  "call 555-123-4567",
			"flags": []any{"a@b.com", 3, map[string]any{"ssn": "123-45-6789"}},
		},
		"history": []map[string]any{{"ip": "10.1.2.3"}},
	}
	hints := map[string]Type{"name": TypeName}

	out, ok := r.MaskValue(in, hints).(map[string]any)
	require.True(t, ok)

	assert.Equal(t, "Ja****oe", out["name"])
	assert.Equal(t, "***@***.com", out["email"])
	assert.Equal(t, 41, out["age"])

	profile := out["profile"].(map[string]any)
	assert.Equal(t, "call ***-***-****", profile["note"])
	flags := profile["flags"].([]any)
	assert.Equal(t, "***@***.com", flags[0])
	assert.Equal(t, 3, flags[1])
	assert.Equal(t, map[string]any{"ssn": "***-**-****"}, flags[2])

	history := out["history"].([]map[string]any)
	assert.Equal(t, "***.***.***.***", history[0]["ip"])

	assert.Equal(t, "jane@example.com", in["email"], "input must not be mutated")
	assert.Equal(t, "call 555-123-4567", in["profile"].(map[string]any)["note"])
}

func TestMaskValueScalars(t *testing.T) {
	r := NewRedactor()
	assert.Equal(t, "***@***.com", r.MaskValue("a@b.com", nil))
	assert.Equal(t, 3.5, r.MaskValue(3.5, nil))
	assert.Nil(t, r.MaskValue(nil, nil))
}

func TestMaskRowsWithColumnRules(t *testing.T) {
	r := NewRedactor()
	rule, err := NewColumnRule(".*email.*", "[redacted]")
	require.NoError(t, err)

	rows := []map[string]any{
		{"user_EMAIL": "x@y.com", "id": 7, "notes": "ssn 123-45-6789", "name": "Jane Roe"},
		{"user_EMAIL": nil, "id": 8, "notes": "none", "name": "Al"},
	}
	out := r.MaskRows(rows, map[string]Type{"name": TypeName}, []ColumnRule{rule})

	require.Len(t, out, 2)
	assert.Equal(t, "[redacted]", out[0]["user_EMAIL"])
	assert.Equal(t, 7, out[0]["id"])
	assert.Equal(t, "ssn ***-**-****", out[0]["notes"])
	assert.Equal(t, "Ja****oe", out[0]["name"])
	assert.Nil(t, out[1]["user_EMAIL"])
	assert.Equal(t, "**", out[1]["name"])

	assert.Equal(t, "x@y.com", rows[0]["user_EMAIL"])
	assert.Nil(t, r.MaskRows(nil, nil, nil))
}

func TestNewColumnRuleInvalid(t *testing.T) {
	_, err := NewColumnRule("([", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid column pattern")
}

func TestHash(t *testing.T) {
	assert.Equal(t, "ba7816bf", Hash("abc", ""))
	assert.Len(t, Hash("value", "salt"), 8)
	assert.Equal(t, Hash("value", "salt"), Hash("value", "salt"))
	assert.NotEqual(t, Hash("value", "salt"), Hash("value", "pepper"))

	r := NewRedactor(WithSalt("salt"))
	assert.Equal(t, Hash("value", "salt"), r.Hash("value"))
}

func TestWithDetector(t *testing.T) {
	fixed := NewRegexDetector([]Pattern{DefaultPatterns()[2]})
	r := NewRedactor(WithDetector(fixed))
	assert.Equal(t, []Type{TypeEmail}, typesOf(r.Detect("a@b.com 123-45-6789")))
	// masking still uses the full catalog
	assert.Equal(t, "***@***.com ***-**-****", r.MaskText("a@b.com 123-45-6789"))
}

func TestPatternsReturnsCopy(t *testing.T) {
	r := NewRedactor()
	p := r.Patterns()
	p[0].Mask = "changed"
	assert.Equal(t, "****-****-****-****", r.Patterns()[0].Mask)
}

func TestParseType(t *testing.T) {
	got, err := ParseType(" email ")
	require.NoError(t, err)
	assert.Equal(t, TypeEmail, got)

	_, err = ParseType("shoe_size")
	require.Error(t, err)
	assert.Len(t, Types(), 10)
	assert.True(t, strings.HasPrefix(TypeDriverLicense.String(), "DRIVER"))
}

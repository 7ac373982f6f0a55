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
	"regexp"
	"strings"
)

// Type is a category of personally identifiable information.
type Type string

const (
	TypeEmail         Type = "EMAIL"
	TypePhone         Type = "PHONE"
	TypeSSN           Type = "SSN"
	TypeCreditCard    Type = "CREDIT_CARD"
	TypeIPAddress     Type = "IP_ADDRESS"
	TypeName          Type = "NAME"
	TypeAddress       Type = "ADDRESS"
	TypeDateOfBirth   Type = "DATE_OF_BIRTH"
	TypePassport      Type = "PASSPORT"
	TypeDriverLicense Type = "DRIVER_LICENSE"
)

var allTypes = []Type{
	TypeEmail, TypePhone, TypeSSN, TypeCreditCard, TypeIPAddress,
	TypeName, TypeAddress, TypeDateOfBirth, TypePassport, TypeDriverLicense,
}

// Types returns every known PII type.
func Types() []Type {
	return append([]Type(nil), allTypes...)
}

// IsValid checks if t is a known type.
func (t Type) IsValid() bool {
	for _, known := range allTypes {
		if t == known {
			return true
		}
	}
	return false
}

func (t Type) String() string {
	return string(t)
}

// ParseType parses a case-insensitive type name.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("unknown PII type: %q", s)
	}
	return t, nil
}

// Pattern detects one PII type in free text and names the literal mask that
// replaces every match.
type Pattern struct {
	Type        Type
	Regex       *regexp.Regexp
	Mask        string
	Description string

	// Validator, when set, checks a match beyond the regex. It adjusts the
	// match confidence and never removes a match.
	Validator func(match string) bool
}

// Match is one PII value found in a text. Start and End are byte offsets.
type Match struct {
	Type       Type    `json:"pii_type"`
	Original   string  `json:"original_value"`
	Masked     string  `json:"masked_value"`
	Confidence float64 `json:"confidence"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
}

// Confidence levels assigned to regex matches.
const (
	ConfidenceRegex     = 0.9
	ConfidenceValidated = 0.95
	ConfidenceRejected  = 0.5
)

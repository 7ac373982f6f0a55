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

// columnHints lists, per type, the substrings that mark a column name as
// likely PII. Order matters: ColumnTypes reports types in this order.
var columnHints = []struct {
	Type  Type
	Parts []string
}{
	{TypeEmail, []string{"email", "mail", "e_mail"}},
	{TypePhone, []string{"phone", "tel", "mobile", "cell"}},
	{TypeSSN, []string{"ssn", "social", "tax_id"}},
	{TypeCreditCard, []string{"credit", "card", "payment"}},
	{TypeName, []string{"name", "first", "last", "given", "family"}},
	{TypeAddress, []string{"address", "street", "city", "zip", "postal"}},
	{TypeDateOfBirth, []string{"birth", "dob", "date_of_birth"}},
	{TypeIPAddress, []string{"ip", "address"}},
}

// ColumnTypesFor returns the likely PII types of a single column name.
func ColumnTypesFor(column string) []Type {
	lower := strings.ToLower(column)
	var types []Type
	for _, h := range columnHints {
		for _, part := range h.Parts {
			if strings.Contains(lower, part) {
				types = append(types, h.Type)
				break
			}
		}
	}
	return types
}

// ColumnTypes maps each column whose name looks like PII to its likely types.
// Columns with no hint are omitted.
func ColumnTypes(columns []string) map[string][]Type {
	out := make(map[string][]Type)
	for _, c := range columns {
		if types := ColumnTypesFor(c); len(types) > 0 {
			out[c] = types
		}
	}
	return out
}

// ColumnRule replaces the whole value of every column whose name matches
// Pattern. Matching is case-insensitive.
type ColumnRule struct {
	Pattern *regexp.Regexp
	Mask    string
}

// NewColumnRule compiles a column rule.
func NewColumnRule(expr, mask string) (ColumnRule, error) {
	re, err := regexp.Compile("(?i)" + expr)
	if err != nil {
		return ColumnRule{}, fmt.Errorf("invalid column pattern %q: %w", expr, err)
	}
	return ColumnRule{Pattern: re, Mask: mask}, nil
}

func matchRule(rules []ColumnRule, column string) (ColumnRule, bool) {
	for _, rule := range rules {
		if rule.Pattern != nil && rule.Pattern.MatchString(column) {
			return rule, true
		}
	}
	return ColumnRule{}, false
}

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

package policy

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PolicyType selects the evaluation logic and the shape of a policy value.
type PolicyType string

const (
	TypeStatementTimeout      PolicyType = "STATEMENT_TIMEOUT"
	TypeMaxRows               PolicyType = "MAX_ROWS"
	TypeAutoLimit             PolicyType = "AUTO_LIMIT"
	TypeBlockDDL              PolicyType = "BLOCK_DDL"
	TypeBlockDML              PolicyType = "BLOCK_DML"
	TypeBlockDCL              PolicyType = "BLOCK_DCL"
	TypeRequireWhereClause    PolicyType = "REQUIRE_WHERE_CLAUSE"
	TypeBlockSensitiveTables  PolicyType = "BLOCK_SENSITIVE_TABLES"
	TypeBlockSensitiveColumns PolicyType = "BLOCK_SENSITIVE_COLUMNS"
	TypePIIMasking            PolicyType = "PII_MASKING"
	TypeQueryComplexityLimit  PolicyType = "QUERY_COMPLEXITY_LIMIT"
	TypeConnectionLimit       PolicyType = "CONNECTION_LIMIT"
	TypeIPWhitelist           PolicyType = "IP_WHITELIST"
	TypeIPBlacklist           PolicyType = "IP_BLACKLIST"
	TypeTimeRestriction       PolicyType = "TIME_RESTRICTION"
	TypeSchemaAccess          PolicyType = "SCHEMA_ACCESS"
	TypeTableAccess           PolicyType = "TABLE_ACCESS"
)

// Types returns every policy type in declaration order.
func Types() []PolicyType {
	return []PolicyType{
		TypeStatementTimeout, TypeMaxRows, TypeAutoLimit,
		TypeBlockDDL, TypeBlockDML, TypeBlockDCL,
		TypeRequireWhereClause, TypeBlockSensitiveTables, TypeBlockSensitiveColumns,
		TypePIIMasking, TypeQueryComplexityLimit, TypeConnectionLimit,
		TypeIPWhitelist, TypeIPBlacklist, TypeTimeRestriction,
		TypeSchemaAccess, TypeTableAccess,
	}
}

// IsValid reports whether t is a known policy type.
func (t PolicyType) IsValid() bool {
	for _, known := range Types() {
		if t == known {
			return true
		}
	}
	return false
}

// ParsePolicyType parses a policy type name, ignoring case.
func ParsePolicyType(s string) (PolicyType, error) {
	t := PolicyType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("invalid policy type: %q", s)
	}
	return t, nil
}

// Target is what a policy applies to.
type Target string

const (
	TargetAllUsers Target = "ALL_USERS"
	TargetRole     Target = "ROLE"
	TargetUser     Target = "USER"
	TargetDatabase Target = "DATABASE"
	TargetSchema   Target = "SCHEMA"
	TargetTable    Target = "TABLE"
)

// Targets returns every target kind.
func Targets() []Target {
	return []Target{TargetAllUsers, TargetRole, TargetUser, TargetDatabase, TargetSchema, TargetTable}
}

// IsValid reports whether t is a known target kind.
func (t Target) IsValid() bool {
	switch t {
	case TargetAllUsers, TargetRole, TargetUser, TargetDatabase, TargetSchema, TargetTable:
		return true
	default:
		return false
	}
}

// RequiresTarget reports whether policies applying to t must name a target.
func (t Target) RequiresTarget() bool {
	switch t {
	case TargetRole, TargetUser, TargetDatabase, TargetSchema, TargetTable:
		return true
	default:
		return false
	}
}

// Priority orders policy evaluation. CRITICAL is evaluated first.
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// IsValid reports whether p is a known priority.
func (p Priority) IsValid() bool {
	return p.rank() > 0
}

// rank is higher for more urgent priorities, 0 for unknown ones.
func (p Priority) rank() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Policy is a security policy. Value always matches Type once the policy has
// passed Validate.
type Policy struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Type        PolicyType `json:"policy_type"`
	Value       Value      `json:"-"`
	AppliesTo   Target     `json:"applies_to"`
	Target      string     `json:"target,omitempty"`
	Priority    Priority   `json:"priority"`
	Active      bool       `json:"is_active"`
	Enforced    bool       `json:"is_enforced"`
	CreatedBy   string     `json:"created_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type policyAlias Policy

type policyJSON struct {
	*policyAlias
	Value json.RawMessage `json:"value"`
}

// MarshalJSON encodes the typed value under the "value" key.
func (p Policy) MarshalJSON() ([]byte, error) {
	raw, err := EncodeValue(p.Value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(policyJSON{policyAlias: (*policyAlias)(&p), Value: raw})
}

// UnmarshalJSON decodes "value" according to "policy_type". Missing
// is_active and is_enforced default to true.
func (p *Policy) UnmarshalJSON(data []byte) error {
	aux := policyJSON{policyAlias: (*policyAlias)(p)}
	p.Active, p.Enforced = true, true
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Value) == 0 || string(aux.Value) == "null" {
		p.Value = nil
		return nil
	}
	v, err := DecodeValue(p.Type, aux.Value)
	if err != nil {
		return err
	}
	p.Value = v
	return nil
}

// Clone returns a copy of p. Values are immutable so they are shared.
func (p *Policy) Clone() *Policy {
	c := *p
	return &c
}

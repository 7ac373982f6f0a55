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

var typeDescriptions = map[PolicyType]string{
	TypeStatementTimeout:      "Sets maximum execution time for SQL statements",
	TypeMaxRows:               "Limits maximum number of rows returned by queries",
	TypeAutoLimit:             "Automatically adds LIMIT clause to queries without one",
	TypeBlockDDL:              "Blocks Data Definition Language statements",
	TypeBlockDML:              "Blocks Data Manipulation Language statements",
	TypeBlockDCL:              "Blocks Data Control Language statements",
	TypeRequireWhereClause:    "Requires WHERE clause for UPDATE/DELETE statements",
	TypeBlockSensitiveTables:  "Blocks access to sensitive tables",
	TypeBlockSensitiveColumns: "Blocks access to sensitive columns",
	TypePIIMasking:            "Masks personally identifiable information",
	TypeQueryComplexityLimit:  "Limits query complexity",
	TypeConnectionLimit:       "Limits database connections",
	TypeIPWhitelist:           "Restricts access by IP address whitelist",
	TypeIPBlacklist:           "Blocks access by IP address blacklist",
	TypeTimeRestriction:       "Restricts access by time of day",
	TypeSchemaAccess:          "Controls schema-level access",
	TypeTableAccess:           "Controls table-level access",
}

// Describe returns a human-readable description of t.
func Describe(t PolicyType) string {
	if d, ok := typeDescriptions[t]; ok {
		return d
	}
	return string(t)
}

// IsBlocking reports whether policies of type t reject statements outright.
func IsBlocking(t PolicyType) bool {
	switch t {
	case TypeBlockDDL, TypeBlockDML, TypeBlockDCL,
		TypeBlockSensitiveTables, TypeBlockSensitiveColumns, TypeIPBlacklist:
		return true
	default:
		return false
	}
}

// IsModifying reports whether policies of type t rewrite statements or results.
func IsModifying(t PolicyType) bool {
	switch t {
	case TypeAutoLimit, TypePIIMasking, TypeRequireWhereClause:
		return true
	default:
		return false
	}
}

// TypeInfo describes a policy type for listings.
type TypeInfo struct {
	Name        PolicyType `json:"name"`
	Description string     `json:"description"`
	IsBlocking  bool       `json:"is_blocking"`
	IsModifying bool       `json:"is_modifying"`
}

// TypeInfos returns a TypeInfo for every policy type.
func TypeInfos() []TypeInfo {
	types := Types()
	out := make([]TypeInfo, 0, len(types))
	for _, t := range types {
		out = append(out, TypeInfo{
			Name:        t,
			Description: Describe(t),
			IsBlocking:  IsBlocking(t),
			IsModifying: IsModifying(t),
		})
	}
	return out
}

// DefaultPolicies returns the built-in policy set: VIEWER timeouts and
// limits, DDL and DML blocking for VIEWER, a WHERE requirement for UPDATE
// and DELETE, and default PII column masking. Each call returns fresh
// policies without IDs.
func DefaultPolicies() []*Policy {
	return []*Policy{
		MustNew(Spec{
			Name:        "viewer_timeout",
			Description: "Statement timeout for VIEWER role",
			Type:        TypeStatementTimeout,
			Value:       TimeoutValue{TimeoutSeconds: 30},
			AppliesTo:   TargetRole,
			Target:      "VIEWER",
			Priority:    PriorityHigh,
		}),
		MustNew(Spec{
			Name:        "viewer_max_rows",
			Description: "Maximum rows for VIEWER role",
			Type:        TypeMaxRows,
			Value:       MaxRowsValue{MaxRows: 1000},
			AppliesTo:   TargetRole,
			Target:      "VIEWER",
			Priority:    PriorityHigh,
		}),
		MustNew(Spec{
			Name:        "viewer_auto_limit",
			Description: "Auto LIMIT for VIEWER role",
			Type:        TypeAutoLimit,
			Value:       AutoLimitValue{Limit: 1000},
			AppliesTo:   TargetRole,
			Target:      "VIEWER",
			Priority:    PriorityMedium,
		}),
		MustNew(Spec{
			Name:        "block_ddl_viewer",
			Description: "Block DDL for VIEWER role",
			Type:        TypeBlockDDL,
			Value:       BlockStatementsValue{Class: TypeBlockDDL, BlockedStatements: []string{"CREATE", "DROP", "ALTER", "TRUNCATE"}},
			AppliesTo:   TargetRole,
			Target:      "VIEWER",
			Priority:    PriorityCritical,
		}),
		MustNew(Spec{
			Name:        "block_dml_viewer",
			Description: "Block DML for VIEWER role",
			Type:        TypeBlockDML,
			Value:       BlockStatementsValue{Class: TypeBlockDML, BlockedStatements: []string{"INSERT", "UPDATE", "DELETE"}},
			AppliesTo:   TargetRole,
			Target:      "VIEWER",
			Priority:    PriorityCritical,
		}),
		MustNew(Spec{
			Name:        "require_where_clause",
			Description: "Require WHERE clause for UPDATE/DELETE",
			Type:        TypeRequireWhereClause,
			Value:       RequireWhereValue{RequiredFor: []string{"UPDATE", "DELETE"}},
			AppliesTo:   TargetAllUsers,
			Priority:    PriorityCritical,
		}),
		MustNew(Spec{
			Name:        "pii_masking_default",
			Description: "Default PII masking patterns",
			Type:        TypePIIMasking,
			Value: PIIMaskingValue{Patterns: []ColumnMaskRule{
				{ColumnPattern: ".*email.*", Mask: "***@***.com"},
				{ColumnPattern: ".*ssn.*", Mask: "***-**-****"},
				{ColumnPattern: ".*phone.*", Mask: "***-***-****"},
				{ColumnPattern: ".*credit_card.*", Mask: "****-****-****-****"},
			}},
			AppliesTo: TargetAllUsers,
			Priority:  PriorityHigh,
		}),
	}
}

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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tduhfajd/sql-guard/governance/rbac"
	"github.com/tduhfajd/sql-guard/governance/sqlscan"
)

func classify(t *testing.T, sql string) *sqlscan.Classification {
	t.Helper()
	cls, err := sqlscan.NewAnalyzer().Analyze(sql)
	require.NoError(t, err)
	return cls
}

func subject(role rbac.Role) rbac.Subject {
	return rbac.Subject{ID: "u-" + string(role), Role: role, Active: true}
}

func ctxFor(role rbac.Role) EvalContext {
	return EvalContext{Subject: subject(role), DatabaseID: "orders"}
}

func TestEvaluate_BlockDDLForViewer(t *testing.T) {
	snap := NewSnapshot([]*Policy{MustNew(Spec{
		Name:      "block_ddl_viewer",
		Type:      TypeBlockDDL,
		Value:     BlockStatementsValue{Class: TypeBlockDDL, BlockedStatements: []string{"CREATE", "DROP"}},
		AppliesTo: TargetRole,
		Target:    "VIEWER",
		Priority:  PriorityCritical,
	})})

	result := NewEngine().Evaluate(snap, classify(t, "CREATE TABLE t (id INT)"), ctxFor(rbac.RoleViewer))

	assert.False(t, result.Allowed)
	assert.Equal(t, []string{"DDL statement 'CREATE' is blocked by policy"}, result.Violations)
	assert.InDelta(t, 0.8, result.RiskScore, 1e-9)
	assert.Equal(t, []string{"block_ddl_viewer"}, result.AppliedPolicies)
}

func TestEvaluate_OperatorSelectAllowed(t *testing.T) {
	snap := NewSnapshot(DefaultPolicies())

	result := NewEngine().Evaluate(snap, classify(t, "SELECT id, name FROM users WHERE id = 1"), ctxFor(rbac.RoleOperator))

	assert.True(t, result.Allowed)
	assert.Empty(t, result.Violations)
	assert.Zero(t, result.RiskScore)
	assert.ElementsMatch(t, []string{"require_where_clause", "pii_masking_default"}, result.AppliedPolicies)
	assert.Len(t, result.MaskRules(), 4)
}

func TestEvaluate_ViewerDefaults(t *testing.T) {
	snap := NewSnapshot(DefaultPolicies())

	result := NewEngine().Evaluate(snap, classify(t, "SELECT id FROM users"), ctxFor(rbac.RoleViewer))

	require.True(t, result.Allowed)
	assert.Equal(t, []string{
		"block_ddl_viewer", "block_dml_viewer", "require_where_clause",
		"viewer_timeout", "viewer_max_rows", "pii_masking_default",
		"viewer_auto_limit",
	}, result.AppliedPolicies, "CRITICAL first, snapshot order within a priority")
	assert.Equal(t, []string{
		"Query timeout should not exceed 30 seconds",
		"Query should not return more than 1000 rows",
	}, result.Warnings)
	assert.InDelta(t, 0.3, result.RiskScore, 1e-9)

	limit, ok := result.LimitModification()
	require.True(t, ok)
	assert.Equal(t, 1000, limit)
	assert.Equal(t, Limits{TimeoutSeconds: 30, MaxRows: 1000, AutoLimit: 1000, MaxConnections: 5}, result.Limits)
}

func TestEvaluate_ViewerDML(t *testing.T) {
	snap := NewSnapshot(DefaultPolicies())

	result := NewEngine().Evaluate(snap, classify(t, "DELETE FROM users"), ctxFor(rbac.RoleViewer))

	assert.False(t, result.Allowed)
	assert.Equal(t, []string{
		"DML statement 'DELETE' is blocked by policy",
		"DELETE statement requires WHERE clause",
	}, result.Violations)
	assert.Equal(t, 1.0, result.RiskScore, "risk is capped")
	_, ok := result.LimitModification()
	assert.False(t, ok, "auto limit applies to queries only")
}

func TestEvaluate_RequireWhere(t *testing.T) {
	snap := NewSnapshot([]*Policy{MustNew(Spec{
		Name:     "require_where_clause",
		Type:     TypeRequireWhereClause,
		Value:    RequireWhereValue{},
		Priority: PriorityCritical,
	})})
	engine := NewEngine()

	tests := []struct {
		sql       string
		violation string
	}{
		{"UPDATE users SET active = false", "UPDATE statement requires WHERE clause"},
		{"DELETE FROM sessions", "DELETE statement requires WHERE clause"},
		{"UPDATE users SET active = false WHERE id = 7", ""},
		{"DELETE FROM sessions WHERE expires_at < now()", ""},
		{"SELECT * FROM users", ""},
	}

	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			result := engine.Evaluate(snap, classify(t, tt.sql), ctxFor(rbac.RoleAdmin))
			if tt.violation == "" {
				assert.True(t, result.Allowed)
				return
			}
			assert.Equal(t, []string{tt.violation}, result.Violations)
			assert.InDelta(t, 0.9, result.RiskScore, 1e-9)
		})
	}
}

func TestEvaluate_Applicability(t *testing.T) {
	timeout := func(name string, to Target, target string) *Policy {
		return MustNew(Spec{
			Name:      name,
			Type:      TypeStatementTimeout,
			Value:     TimeoutValue{TimeoutSeconds: 10},
			AppliesTo: to,
			Target:    target,
		})
	}
	inactive := timeout("inactive", TargetAllUsers, "")
	inactive.Active = false
	unenforced := timeout("unenforced", TargetAllUsers, "")
	unenforced.Enforced = false

	snap := NewSnapshot([]*Policy{
		timeout("all", TargetAllUsers, ""),
		timeout("role", TargetRole, "operator"),
		timeout("other_role", TargetRole, "ADMIN"),
		timeout("user", TargetUser, "u-OPERATOR"),
		timeout("other_user", TargetUser, "u-42"),
		timeout("database", TargetDatabase, "orders"),
		timeout("other_database", TargetDatabase, "billing"),
		timeout("schema", TargetSchema, "PUBLIC"),
		timeout("table", TargetTable, "shop.users"),
		timeout("other_table", TargetTable, "payments"),
		inactive,
		unenforced,
	})

	ec := ctxFor(rbac.RoleOperator)
	ec.Schema = "public"
	got := Applicable(snap, classify(t, "SELECT id FROM users"), ec)

	names := make([]string, 0, len(got))
	for _, p := range got {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"all", "role", "user", "database", "schema", "table"}, names)
}

func TestEvaluate_ModificationsHighestPriorityWins(t *testing.T) {
	snap := NewSnapshot([]*Policy{
		MustNew(Spec{Name: "low_limit", Type: TypeAutoLimit, Value: AutoLimitValue{Limit: 500}, Priority: PriorityLow}),
		MustNew(Spec{Name: "critical_limit", Type: TypeAutoLimit, Value: AutoLimitValue{Limit: 50}, Priority: PriorityCritical}),
	})

	result := NewEngine().Evaluate(snap, classify(t, "SELECT * FROM users"), ctxFor(rbac.RoleAdmin))

	limit, ok := result.LimitModification()
	require.True(t, ok)
	assert.Equal(t, 50, limit)
	assert.Equal(t, 50, result.Limits.AutoLimit)
	assert.Zero(t, result.RiskScore)
}

func TestEvaluate_AutoLimitSkipsLimitedQuery(t *testing.T) {
	snap := NewSnapshot([]*Policy{
		MustNew(Spec{Name: "auto_limit", Type: TypeAutoLimit, Value: AutoLimitValue{Limit: 100}}),
	})

	result := NewEngine().Evaluate(snap, classify(t, "SELECT * FROM users LIMIT 5"), ctxFor(rbac.RoleAdmin))

	_, ok := result.LimitModification()
	assert.False(t, ok)
}

func TestEvaluate_RoleLimitFallback(t *testing.T) {
	result := NewEngine().Evaluate(NewSnapshot(nil), classify(t, "SELECT 1"), ctxFor(rbac.RoleApprover))

	assert.True(t, result.Allowed)
	assert.Equal(t, Limits{TimeoutSeconds: 120, MaxRows: 10000, AutoLimit: 10000, MaxConnections: 15}, result.Limits)
	assert.Empty(t, result.AppliedPolicies)
	assert.NotNil(t, result.Violations)
}

func TestEvaluate_SensitiveNames(t *testing.T) {
	snap := NewSnapshot([]*Policy{
		MustNew(Spec{Name: "tables", Type: TypeBlockSensitiveTables, Value: SensitiveTablesValue{Tables: []string{"hr.salaries"}}}),
		MustNew(Spec{Name: "columns", Type: TypeBlockSensitiveColumns, Value: SensitiveColumnsValue{Columns: []string{"customers.ssn"}}}),
	})
	engine := NewEngine()

	result := engine.Evaluate(snap, classify(t, "SELECT * FROM hr.salaries"), ctxFor(rbac.RoleAdmin))
	assert.Equal(t, []string{"Access to sensitive table 'hr.salaries' is blocked by policy"}, result.Violations)

	result = engine.Evaluate(snap, classify(t, "SELECT ssn, email FROM customers"), ctxFor(rbac.RoleAdmin))
	assert.Equal(t, []string{"Access to sensitive column 'customers.ssn' is blocked by policy"}, result.Violations)

	result = engine.Evaluate(snap, classify(t, "SELECT email FROM customers"), ctxFor(rbac.RoleAdmin))
	assert.True(t, result.Allowed)
}

func TestEvaluate_ComplexityLimit(t *testing.T) {
	snap := NewSnapshot([]*Policy{
		MustNew(Spec{Name: "complexity", Type: TypeQueryComplexityLimit, Value: ComplexityValue{MaxComplexity: 0.2}}),
	})

	cls := classify(t, "SELECT u.id, COUNT(o.id) FROM users u JOIN orders o ON o.user_id = u.id GROUP BY u.id ORDER BY u.id")
	result := NewEngine().Evaluate(snap, cls, ctxFor(rbac.RoleAdmin))

	assert.Equal(t, []string{"Query complexity 0.25 exceeds limit 0.20"}, result.Violations)
	assert.InDelta(t, 0.5, result.RiskScore, 1e-9)
}

func TestEvaluate_ConnectionLimit(t *testing.T) {
	snap := NewSnapshot([]*Policy{
		MustNew(Spec{Name: "connections", Type: TypeConnectionLimit, Value: ConnectionLimitValue{MaxConnections: 3}}),
	})

	result := NewEngine().Evaluate(snap, classify(t, "SELECT 1"), ctxFor(rbac.RoleAdmin))

	assert.True(t, result.Allowed)
	assert.Equal(t, []string{"Connections should not exceed 3"}, result.Warnings)
	assert.Equal(t, 3, result.Limits.MaxConnections)
}

func TestEvaluate_IPLists(t *testing.T) {
	snap := NewSnapshot([]*Policy{
		MustNew(Spec{Name: "office", Type: TypeIPWhitelist, Value: IPListValue{Kind: TypeIPWhitelist, Addresses: []string{"10.0.0.0/8", "192.168.1.10"}}}),
		MustNew(Spec{Name: "banned", Type: TypeIPBlacklist, Value: IPListValue{Kind: TypeIPBlacklist, Addresses: []string{"10.6.6.6"}}}),
	})
	engine := NewEngine()
	cls := classify(t, "SELECT 1")

	tests := []struct {
		ip         string
		violations []string
		warnings   int
	}{
		{"10.1.2.3", []string{}, 0},
		{"192.168.1.10", []string{}, 0},
		{"172.16.0.1", []string{"Client IP 172.16.0.1 is not in the allowed list"}, 0},
		{"10.6.6.6", []string{"Client IP 10.6.6.6 is blocked by policy"}, 0},
		{"", []string{}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			ec := ctxFor(rbac.RoleAdmin)
			ec.ClientIP = tt.ip
			result := engine.Evaluate(snap, cls, ec)
			assert.Equal(t, tt.violations, result.Violations)
			assert.Len(t, result.Warnings, tt.warnings)
			if tt.warnings > 0 {
				assert.Zero(t, result.RiskScore, "skipped checks add no risk")
			}
		})
	}
}

func TestEvaluate_TimeRestriction(t *testing.T) {
	businessHours := MustNew(Spec{
		Name:  "business_hours",
		Type:  TypeTimeRestriction,
		Value: TimeRestrictionValue{StartHour: 9, EndHour: 17, Days: []string{"MON", "TUE", "WED", "THU", "FRI"}, Timezone: "UTC"},
	})
	overnight := MustNew(Spec{
		Name:  "overnight",
		Type:  TypeTimeRestriction,
		Value: TimeRestrictionValue{StartHour: 22, EndHour: 6},
	})
	engine := NewEngine()
	cls := classify(t, "SELECT 1")

	monday := func(h, m int) time.Time { return time.Date(2025, time.January, 6, h, m, 0, 0, time.UTC) }

	tests := []struct {
		name      string
		policy    *Policy
		at        time.Time
		violation string
	}{
		{"inside window", businessHours, monday(10, 0), ""},
		{"window end is exclusive", businessHours, monday(17, 0), "Access is not permitted at 17:00"},
		{"evening", businessHours, monday(20, 30), "Access is not permitted at 20:30"},
		{"weekend", businessHours, time.Date(2025, time.January, 11, 10, 0, 0, 0, time.UTC), "Access is not permitted at 10:00"},
		{"wrapped late", overnight, monday(23, 15), ""},
		{"wrapped early", overnight, monday(5, 59), ""},
		{"wrapped midday", overnight, monday(12, 0), "Access is not permitted at 12:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ec := ctxFor(rbac.RoleAdmin)
			ec.At = tt.at
			result := engine.Evaluate(NewSnapshot([]*Policy{tt.policy}), cls, ec)
			if tt.violation == "" {
				assert.True(t, result.Allowed, result.Violations)
				return
			}
			assert.Equal(t, []string{tt.violation}, result.Violations)
		})
	}

	t.Run("unknown time is skipped", func(t *testing.T) {
		result := engine.Evaluate(NewSnapshot([]*Policy{businessHours}), cls, ctxFor(rbac.RoleAdmin))
		assert.True(t, result.Allowed)
		assert.Len(t, result.Warnings, 1)
	})
}

func TestEvaluate_SchemaAndTableAccess(t *testing.T) {
	snap := NewSnapshot([]*Policy{
		MustNew(Spec{Name: "schemas", Type: TypeSchemaAccess, Value: SchemaAccessValue{Schemas: []string{"public"}}}),
		MustNew(Spec{Name: "tables", Type: TypeTableAccess, Value: TableAccessValue{Tables: []string{"public.users", "orders"}}}),
	})
	engine := NewEngine()

	ec := ctxFor(rbac.RoleAdmin)
	ec.Schema = "finance"
	result := engine.Evaluate(snap, classify(t, "SELECT * FROM users JOIN audit_log a ON a.user_id = users.id"), ec)
	assert.Equal(t, []string{
		"Schema 'finance' is not permitted by policy",
		"Table 'audit_log' is not permitted by policy",
	}, result.Violations)

	ec.Schema = "PUBLIC"
	result = engine.Evaluate(snap, classify(t, "SELECT * FROM users JOIN orders o ON o.user_id = users.id"), ec)
	assert.True(t, result.Allowed)
}

func TestEvaluate_UnknownTypeWarns(t *testing.T) {
	custom := &Policy{Name: "custom", Type: "CUSTOM_RULE", AppliesTo: TargetAllUsers, Priority: PriorityLow, Active: true, Enforced: true}

	result := NewEngine().Evaluate(NewSnapshot([]*Policy{custom}), classify(t, "SELECT 1"), ctxFor(rbac.RoleAdmin))

	assert.True(t, result.Allowed)
	assert.Equal(t, []string{"Policy type CUSTOM_RULE is not evaluated"}, result.Warnings)
}

func TestEvaluate_Deterministic(t *testing.T) {
	snap := NewSnapshot(DefaultPolicies())
	engine := NewEngine()
	cls := classify(t, "UPDATE accounts SET balance = 0")

	first := engine.Evaluate(snap, cls, ctxFor(rbac.RoleViewer))
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, engine.Evaluate(snap, cls, ctxFor(rbac.RoleViewer)))
	}
}

func TestEvaluate_RiskMonotoneAndBounded(t *testing.T) {
	all := []*Policy{
		MustNew(Spec{Name: "timeout", Type: TypeStatementTimeout, Value: TimeoutValue{TimeoutSeconds: 5}}),
		MustNew(Spec{Name: "rows", Type: TypeMaxRows, Value: MaxRowsValue{MaxRows: 10}}),
		MustNew(Spec{Name: "dml", Type: TypeBlockDML, Value: BlockStatementsValue{Class: TypeBlockDML, BlockedStatements: []string{"DELETE"}}}),
		MustNew(Spec{Name: "where", Type: TypeRequireWhereClause, Value: RequireWhereValue{}}),
		MustNew(Spec{Name: "tables", Type: TypeBlockSensitiveTables, Value: SensitiveTablesValue{Tables: []string{"users"}}}),
	}
	engine := NewEngine()
	cls := classify(t, "DELETE FROM users")

	prev := 0.0
	for n := 0; n <= len(all); n++ {
		result := engine.Evaluate(NewSnapshot(all[:n]), cls, ctxFor(rbac.RoleAdmin))
		assert.GreaterOrEqual(t, result.RiskScore, prev, "adding a policy must not lower risk")
		assert.GreaterOrEqual(t, result.RiskScore, 0.0)
		assert.LessOrEqual(t, result.RiskScore, 1.0)
		prev = result.RiskScore
	}
	assert.Equal(t, 1.0, prev)
}

func TestEvaluate_DoesNotMutateSnapshot(t *testing.T) {
	snap := NewSnapshot(DefaultPolicies())

	result := NewEngine().Evaluate(snap, classify(t, "SELECT email FROM users"), ctxFor(rbac.RoleViewer))
	rules := result.MaskRules()
	require.NotEmpty(t, rules)
	rules[0].Mask = "changed"

	p, ok := snap.ByName("pii_masking_default")
	require.True(t, ok)
	assert.Equal(t, "***@***.com", p.Value.(PIIMaskingValue).Patterns[0].Mask)
	assert.Equal(t, 7, snap.Len())
}

func TestEvaluate_CustomWeights(t *testing.T) {
	weights := DefaultRiskWeights()
	weights[TypeBlockDDL] = 0.25
	snap := NewSnapshot([]*Policy{MustNew(Spec{
		Name:  "no_drop",
		Type:  TypeBlockDDL,
		Value: BlockStatementsValue{Class: TypeBlockDDL, BlockedStatements: []string{"DROP"}},
	})})

	result := NewEngine(WithRiskWeights(weights)).Evaluate(snap, classify(t, "DROP TABLE users"), ctxFor(rbac.RoleAdmin))

	assert.InDelta(t, 0.25, result.RiskScore, 1e-9)
	assert.Equal(t, []string{"DDL statement 'DROP' is blocked by policy"}, result.Violations)
}

func TestEvaluate_NilInputs(t *testing.T) {
	result := NewEngine().Evaluate(nil, nil, ctxFor(rbac.RoleViewer))
	assert.True(t, result.Allowed)
	assert.Empty(t, result.AppliedPolicies)
}

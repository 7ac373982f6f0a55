package sqlscan

import "strings"

// InjectionKind is a family of SQL injection technique.
type InjectionKind string

const (
	InjectionUnionBased   InjectionKind = "UNION_BASED"
	InjectionBooleanBased InjectionKind = "BOOLEAN_BASED"
	InjectionTimeBased    InjectionKind = "TIME_BASED"
	InjectionErrorBased   InjectionKind = "ERROR_BASED"
	InjectionCommentBased InjectionKind = "COMMENT_BASED"
	InjectionFunctionCall InjectionKind = "FUNCTION_CALL"
)

// InjectionKinds returns every family in detection order.
func InjectionKinds() []InjectionKind {
	return []InjectionKind{
		InjectionUnionBased,
		InjectionBooleanBased,
		InjectionTimeBased,
		InjectionErrorBased,
		InjectionCommentBased,
		InjectionFunctionCall,
	}
}

// Statement keyword classes.
var (
	ddlKeywords = map[string]bool{
		"CREATE": true, "DROP": true, "ALTER": true, "TRUNCATE": true, "RENAME": true,
		"COMMENT": true, "GRANT": true, "REVOKE": true, "SET": true, "RESET": true,
	}
	dmlKeywords = map[string]bool{
		"INSERT": true, "UPDATE": true, "DELETE": true, "MERGE": true, "UPSERT": true,
	}
	dclKeywords = map[string]bool{
		"GRANT": true, "REVOKE": true, "DENY": true,
	}
)

// IsDDLKeyword reports whether kw (any case) is a DDL keyword.
func IsDDLKeyword(kw string) bool { return ddlKeywords[strings.ToUpper(kw)] }

// IsDMLKeyword reports whether kw (any case) is a DML keyword.
func IsDMLKeyword(kw string) bool { return dmlKeywords[strings.ToUpper(kw)] }

// IsDCLKeyword reports whether kw (any case) is a DCL keyword.
func IsDCLKeyword(kw string) bool { return dclKeywords[strings.ToUpper(kw)] }

// Classification is the structural summary of one statement.
// It is derived fresh per statement and never shared between calls.
type Classification struct {
	// StatementKind is the leading keyword, e.g. SELECT or UPDATE.
	StatementKind string `json:"statement_kind"`

	HasDDL         bool `json:"has_ddl"`
	HasDML         bool `json:"has_dml"`
	HasDCL         bool `json:"has_dcl"`
	HasWhereClause bool `json:"has_where_clause"`
	HasLimit       bool `json:"has_limit"`

	// Keywords lists the DDL/DML/DCL keywords found, in order of first appearance.
	Keywords []string `json:"keywords,omitempty"`

	ParameterCount  int      `json:"parameter_count"`
	NamedParameters []string `json:"named_parameters,omitempty"`

	DangerousFunctionHit bool     `json:"dangerous_function_hit"`
	DangerousFunctions   []string `json:"dangerous_functions,omitempty"`

	InjectionAttempts []InjectionKind `json:"injection_attempts,omitempty"`
	Detections        []Detection     `json:"detections,omitempty"`

	// UpdateDeleteWithoutWhere is set when an UPDATE or DELETE target is not
	// followed by a WHERE token.
	UpdateDeleteWithoutWhere bool `json:"update_delete_without_where"`

	ComplexityScore float64 `json:"complexity_score"`
	CostEstimate    float64 `json:"cost_estimate"`

	JoinCount      int `json:"join_count"`
	SubqueryCount  int `json:"subquery_count"`
	AggregateCount int `json:"aggregate_count"`

	Tables  []string `json:"referenced_tables,omitempty"`
	Columns []string `json:"referenced_columns,omitempty"`
}

// HasKeyword reports whether kw was matched as a DDL/DML/DCL keyword.
func (c *Classification) HasKeyword(kw string) bool {
	kw = strings.ToUpper(kw)
	for _, k := range c.Keywords {
		if k == kw {
			return true
		}
	}
	return false
}

// HasTable reports whether name (any case) is a referenced table.
func (c *Classification) HasTable(name string) bool {
	return containsFold(c.Tables, name)
}

// HasColumn reports whether name (any case) is a referenced column.
func (c *Classification) HasColumn(name string) bool {
	return containsFold(c.Columns, name)
}

// IsQuery reports whether the statement is a read (SELECT, or a WITH ... SELECT).
func (c *Classification) IsQuery() bool {
	switch c.StatementKind {
	case "SELECT":
		return true
	case "WITH":
		return !c.HasDML && !c.HasDDL
	default:
		return false
	}
}

// Injected reports whether any injection family matched.
func (c *Classification) Injected() bool {
	return len(c.InjectionAttempts) > 0
}

// ContainsDDL and ContainsDML let the access model gate a statement without
// importing this package.
func (c *Classification) ContainsDDL() bool { return c.HasDDL }

func (c *Classification) ContainsDML() bool { return c.HasDML }

func containsFold(list []string, name string) bool {
	for _, v := range list {
		if strings.EqualFold(v, name) {
			return true
		}
	}
	return false
}

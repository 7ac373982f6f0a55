package sqlscan

import (
	"regexp"
)

// Pattern is one injection signature.
type Pattern struct {
	// Name is a short identifier reported with detections.
	Name string

	// Kind is the injection family the pattern belongs to.
	Kind InjectionKind

	// Regex is the compiled, case-insensitive expression.
	Regex *regexp.Regexp

	Description string

	// Severity indicates the risk level (1-10).
	Severity int
}

// PatternSet holds injection patterns grouped by family.
type PatternSet struct {
	patterns []*Pattern
}

// NewPatternSet creates a pattern set with the default signatures.
func NewPatternSet() *PatternSet {
	return &PatternSet{patterns: defaultPatterns()}
}

// NewCustomPatternSet creates a pattern set from caller-supplied patterns.
func NewCustomPatternSet(patterns ...*Pattern) *PatternSet {
	return &PatternSet{patterns: append([]*Pattern(nil), patterns...)}
}

// Patterns returns all patterns in the set.
func (ps *PatternSet) Patterns() []*Pattern {
	return ps.patterns
}

// PatternsByKind returns the patterns of one family, in declaration order.
func (ps *PatternSet) PatternsByKind(kind InjectionKind) []*Pattern {
	var result []*Pattern
	for _, p := range ps.patterns {
		if p.Kind == kind {
			result = append(result, p)
		}
	}
	return result
}

// Count returns the number of patterns in the set.
func (ps *PatternSet) Count() int {
	return len(ps.patterns)
}

func defaultPatterns() []*Pattern {
	return []*Pattern{
		// UNION based
		{
			Name:        "union_select",
			Kind:        InjectionUnionBased,
			Regex:       regexp.MustCompile(`(?i)\bUNION\s+SELECT\b`),
			Description: "UNION SELECT used to append rows from another table",
			Severity:    9,
		},
		{
			Name:        "union_all_select",
			Kind:        InjectionUnionBased,
			Regex:       regexp.MustCompile(`(?i)\bUNION\s+ALL\s+SELECT\b`),
			Description: "UNION ALL SELECT used to append rows from another table",
			Severity:    9,
		},
		{
			Name:        "union_distinct_select",
			Kind:        InjectionUnionBased,
			Regex:       regexp.MustCompile(`(?i)\bUNION\s+DISTINCT\s+SELECT\b`),
			Description: "UNION DISTINCT SELECT used to append rows from another table",
			Severity:    9,
		},

		// Boolean based
		{
			Name:        "or_one_equals_one",
			Kind:        InjectionBooleanBased,
			Regex:       regexp.MustCompile(`(?i)\bOR\s+1\s*=\s*1\b`),
			Description: "OR 1=1 tautology",
			Severity:    8,
		},
		{
			Name:        "or_true",
			Kind:        InjectionBooleanBased,
			Regex:       regexp.MustCompile(`(?i)\bOR\s+true\b`),
			Description: "OR true tautology",
			Severity:    8,
		},
		{
			Name:        "and_one_equals_one",
			Kind:        InjectionBooleanBased,
			Regex:       regexp.MustCompile(`(?i)\bAND\s+1\s*=\s*1\b`),
			Description: "AND 1=1 probe",
			Severity:    6,
		},
		{
			Name:        "or_numeric_comparison",
			Kind:        InjectionBooleanBased,
			Regex:       regexp.MustCompile(`(?i)\bOR\s+\d+\s*=\s*\d+\b`),
			Description: "OR with a constant numeric comparison",
			Severity:    8,
		},

		// Time based
		{
			Name:        "waitfor_delay",
			Kind:        InjectionTimeBased,
			Regex:       regexp.MustCompile(`(?i)\bWAITFOR\s+DELAY\b`),
			Description: "SQL Server WAITFOR DELAY",
			Severity:    8,
		},
		{
			Name:        "sleep",
			Kind:        InjectionTimeBased,
			Regex:       regexp.MustCompile(`(?i)\bSLEEP\s*\(\s*\d+\s*\)`),
			Description: "MySQL SLEEP()",
			Severity:    8,
		},
		{
			Name:        "pg_sleep",
			Kind:        InjectionTimeBased,
			Regex:       regexp.MustCompile(`(?i)\bPG_SLEEP\s*\(\s*\d+\s*\)`),
			Description: "PostgreSQL pg_sleep()",
			Severity:    8,
		},
		{
			Name:        "benchmark",
			Kind:        InjectionTimeBased,
			Regex:       regexp.MustCompile(`(?i)\bBENCHMARK\s*\(\s*\d+\s*,.*\)`),
			Description: "MySQL BENCHMARK() used as a delay",
			Severity:    8,
		},

		// Error based
		{
			Name:        "extractvalue",
			Kind:        InjectionErrorBased,
			Regex:       regexp.MustCompile(`(?i)\bEXTRACTVALUE\s*\(`),
			Description: "EXTRACTVALUE() used to leak data through errors",
			Severity:    7,
		},
		{
			Name:        "updatexml",
			Kind:        InjectionErrorBased,
			Regex:       regexp.MustCompile(`(?i)\bUPDATEXML\s*\(`),
			Description: "UPDATEXML() used to leak data through errors",
			Severity:    7,
		},
		{
			Name:        "convert_call",
			Kind:        InjectionErrorBased,
			Regex:       regexp.MustCompile(`(?i)\bCONVERT\s*\(.*,.*\)`),
			Description: "CONVERT() with a forced type mismatch",
			Severity:    5,
		},
		{
			Name:        "cast_call",
			Kind:        InjectionErrorBased,
			Regex:       regexp.MustCompile(`(?i)\bCAST\s*\(.*\sAS\s.*\)`),
			Description: "CAST() with a forced type mismatch",
			Severity:    5,
		},

		// Comment based
		{
			Name:        "trailing_line_comment",
			Kind:        InjectionCommentBased,
			Regex:       regexp.MustCompile(`--.*$`),
			Description: "Line comment truncating the rest of the statement",
			Severity:    6,
		},
		{
			Name:        "block_comment",
			Kind:        InjectionCommentBased,
			Regex:       regexp.MustCompile(`/\*.*\*/`),
			Description: "Inline block comment",
			Severity:    5,
		},
		{
			Name:        "stacked_line_comment",
			Kind:        InjectionCommentBased,
			Regex:       regexp.MustCompile(`;\s*--`),
			Description: "Statement terminator followed by a comment",
			Severity:    8,
		},
		{
			Name:        "stacked_block_comment",
			Kind:        InjectionCommentBased,
			Regex:       regexp.MustCompile(`;\s*/\*`),
			Description: "Statement terminator followed by a block comment",
			Severity:    8,
		},
		{
			Name:        "stacked_query",
			Kind:        InjectionCommentBased,
			Regex:       regexp.MustCompile(`(?i);\s*(SELECT|INSERT|UPDATE|DELETE|DROP|CREATE|ALTER|TRUNCATE|GRANT|REVOKE|EXEC|EXECUTE|DECLARE|SHUTDOWN)\b`),
			Description: "Second statement stacked after a terminator",
			Severity:    8,
		},

		// Function call based
		{
			Name:        "exec",
			Kind:        InjectionFunctionCall,
			Regex:       regexp.MustCompile(`(?i)\bEXEC\s+`),
			Description: "EXEC of dynamic SQL or a stored procedure",
			Severity:    9,
		},
		{
			Name:        "execute",
			Kind:        InjectionFunctionCall,
			Regex:       regexp.MustCompile(`(?i)\bEXECUTE\s+`),
			Description: "EXECUTE of dynamic SQL or a prepared statement",
			Severity:    9,
		},
		{
			Name:        "xp_cmdshell",
			Kind:        InjectionFunctionCall,
			Regex:       regexp.MustCompile(`(?i)\bXP_CMDSHELL\s*\(`),
			Description: "SQL Server shell command execution",
			Severity:    10,
		},
		{
			Name:        "sp_executesql",
			Kind:        InjectionFunctionCall,
			Regex:       regexp.MustCompile(`(?i)\bSP_EXECUTESQL\s*\(`),
			Description: "SQL Server dynamic SQL execution",
			Severity:    9,
		},
		{
			Name:        "eval",
			Kind:        InjectionFunctionCall,
			Regex:       regexp.MustCompile(`(?i)\bEVAL\s*\(`),
			Description: "EVAL() of generated code",
			Severity:    9,
		},
		{
			Name:        "load_file",
			Kind:        InjectionFunctionCall,
			Regex:       regexp.MustCompile(`(?i)\bLOAD_FILE\s*\(`),
			Description: "MySQL LOAD_FILE() reading server files",
			Severity:    10,
		},
	}
}

// dangerousFunctionRegex matches calls that read or write server files or
// run arbitrary code.
var dangerousFunctionRegex = regexp.MustCompile(
	`(?i)\b(LOAD_FILE|INTO\s+OUTFILE|INTO\s+DUMPFILE|XP_CMDSHELL|SP_EXECUTESQL|EXEC|EVAL|EXECUTE|CALL)\b`)

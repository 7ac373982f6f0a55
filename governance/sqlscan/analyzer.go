package sqlscan

import (
	"math"
	"strings"

	"github.com/tduhfajd/sql-guard/governance/gerror"
)

// Analyzer classifies SQL statements. It holds no per-call state and is safe
// for concurrent use.
type Analyzer struct {
	detector    PatternDetector
	maxParamLen int
}

// AnalyzerOption is a functional option for configuring Analyzer.
type AnalyzerOption func(*Analyzer)

// WithDetector replaces the injection detector.
func WithDetector(d PatternDetector) AnalyzerOption {
	return func(a *Analyzer) {
		a.detector = d
	}
}

// WithMaxParameterLength sets the longest string parameter accepted by
// ValidateParameters.
func WithMaxParameterLength(n int) AnalyzerOption {
	return func(a *Analyzer) {
		a.maxParamLen = n
	}
}

// NewAnalyzer creates an analyzer with the regex detector.
func NewAnalyzer(opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		detector:    NewRegexDetector(),
		maxParamLen: DefaultMaxParameterLength,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewAnalyzerFromConfig builds an analyzer from a validated Config.
func NewAnalyzerFromConfig(cfg Config) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var detector PatternDetector
	if cfg.DetectorMode == ModeRegex {
		detector = NewRegexDetector(WithMaxInputLength(cfg.MaxInputLength))
	} else {
		d, err := NewDetector(cfg.DetectorMode)
		if err != nil {
			return nil, err
		}
		detector = d
	}
	return NewAnalyzer(WithDetector(detector), WithMaxParameterLength(cfg.MaxParameterLength)), nil
}

// Detector returns the injection detector in use.
func (a *Analyzer) Detector() PatternDetector {
	return a.detector
}

// Analyze tokenizes and classifies sql. It fails with a gerror.KindParse
// error when the statement is empty or cannot be tokenized.
func (a *Analyzer) Analyze(sql string) (*Classification, error) {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return nil, gerror.New(gerror.KindParse, "empty SQL statement")
	}

	tokens, err := Tokenize(trimmed)
	if err != nil {
		return nil, gerror.Wrap(gerror.KindParse, err, "SQL parsing error")
	}
	if err := checkStructure(tokens); err != nil {
		return nil, err
	}

	c := &Classification{}
	classifyKeywords(tokens, c)
	c.ParameterCount, c.NamedParameters = countParameters(tokens)

	c.Detections = a.detector.Detect(trimmed)
	c.InjectionAttempts = injectionKindsOf(c.Detections)

	c.DangerousFunctions = findDangerousFunctions(trimmed)
	c.DangerousFunctionHit = len(c.DangerousFunctions) > 0

	c.UpdateDeleteWithoutWhere = updateOrDeleteWithoutWhere(tokens)

	scoreStatement(tokens, c)

	c.Tables = extractTables(tokens)
	c.Columns = extractColumns(tokens)

	return c, nil
}

// DetectInjection runs only the injection detector over text.
func (a *Analyzer) DetectInjection(text string) []InjectionKind {
	return injectionKindsOf(a.detector.Detect(text))
}

func checkStructure(tokens []Token) error {
	words := 0
	depth := 0
	for _, t := range tokens {
		if t.Type == TokenWord {
			words++
		}
		if t.IsPunct("(") {
			depth++
		}
		if t.IsPunct(")") {
			depth--
			if depth < 0 {
				return gerror.New(gerror.KindParse, "unbalanced parentheses")
			}
		}
	}
	if words == 0 {
		return gerror.New(gerror.KindParse, "statement contains no SQL keywords")
	}
	if depth != 0 {
		return gerror.New(gerror.KindParse, "unbalanced parentheses")
	}
	return nil
}

func classifyKeywords(tokens []Token, c *Classification) {
	seen := make(map[string]bool)
	for _, t := range tokens {
		if t.Type != TokenWord {
			continue
		}
		if c.StatementKind == "" {
			c.StatementKind = t.Upper
		}
		switch t.Upper {
		case "WHERE":
			c.HasWhereClause = true
		}

		ddl, dml, dcl := ddlKeywords[t.Upper], dmlKeywords[t.Upper], dclKeywords[t.Upper]
		c.HasDDL = c.HasDDL || ddl
		c.HasDML = c.HasDML || dml
		c.HasDCL = c.HasDCL || dcl
		if (ddl || dml || dcl) && !seen[t.Upper] {
			seen[t.Upper] = true
			c.Keywords = append(c.Keywords, t.Upper)
		}
	}
	c.HasLimit = hasTopLevelLimit(tokens)
}

// hasTopLevelLimit reports whether a LIMIT or FETCH clause appears outside
// every parenthesis. A LIMIT inside a subquery does not bound the outer
// result.
func hasTopLevelLimit(tokens []Token) bool {
	depth := 0
	for _, t := range tokens {
		switch {
		case t.IsPunct("("):
			depth++
		case t.IsPunct(")"):
			depth--
		case depth == 0 && (t.IsWord("LIMIT") || t.IsWord("FETCH")):
			return true
		}
	}
	return false
}

func countParameters(tokens []Token) (int, []string) {
	count := 0
	var named []string
	seen := make(map[string]bool)
	for _, t := range tokens {
		switch t.Type {
		case TokenNamedParam:
			count++
			if !seen[t.Value] {
				seen[t.Value] = true
				named = append(named, t.Value)
			}
		case TokenPositionalParam:
			count++
		}
	}
	return count, named
}

func findDangerousFunctions(sql string) []string {
	matches := dangerousFunctionRegex.FindAllString(sql, -1)
	if len(matches) == 0 {
		return nil
	}
	var out []string
	seen := make(map[string]bool)
	for _, m := range matches {
		name := strings.Join(strings.Fields(strings.ToUpper(m)), " ")
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// updateOrDeleteWithoutWhere looks for the first UPDATE <table> (or, failing
// that, DELETE FROM <table>) and reports whether no WHERE token follows it.
// The scan is flat: a WHERE inside a subquery counts.
func updateOrDeleteWithoutWhere(tokens []Token) bool {
	target := -1
	for i := 0; i+1 < len(tokens); i++ {
		if tokens[i].IsWord("UPDATE") && tokens[i+1].isIdent() {
			target = i + 2
			break
		}
	}
	if target < 0 {
		for i := 0; i+2 < len(tokens); i++ {
			if tokens[i].IsWord("DELETE") && tokens[i+1].IsWord("FROM") && tokens[i+2].isIdent() {
				target = i + 3
				break
			}
		}
	}
	if target < 0 {
		return false
	}
	for _, t := range tokens[target:] {
		if t.IsWord("WHERE") {
			return false
		}
	}
	return true
}

var (
	costAggregates       = []string{"COUNT", "SUM", "AVG", "MIN", "MAX"}
	complexityAggregates = []string{"COUNT", "SUM", "AVG", "MIN", "MAX", "GROUP_CONCAT"}
)

func scoreStatement(tokens []Token, c *Classification) {
	selects := 0
	var orderBy, groupBy, window, cte bool
	costAgg, complexityAgg := 0, 0

	for i, t := range tokens {
		if t.Type != TokenWord {
			continue
		}
		nextIs := func(s string) bool { return i+1 < len(tokens) && tokens[i+1].IsWord(s) }
		calls := i+1 < len(tokens) && tokens[i+1].IsPunct("(")

		switch t.Upper {
		case "JOIN":
			c.JoinCount++
		case "SELECT":
			selects++
		case "ORDER":
			orderBy = orderBy || nextIs("BY")
		case "GROUP":
			groupBy = groupBy || nextIs("BY")
		case "OVER":
			window = true
		case "WITH":
			cte = true
		}
		if calls {
			for _, agg := range costAggregates {
				if t.Upper == agg {
					costAgg++
				}
			}
			for _, agg := range complexityAggregates {
				if t.Upper == agg {
					complexityAgg++
				}
			}
		}
	}

	if selects > 1 {
		c.SubqueryCount = selects - 1
	}
	c.AggregateCount = complexityAgg

	cost := 1.0
	cost += float64(c.JoinCount) * 0.5
	cost += float64(c.SubqueryCount) * 0.3
	if orderBy {
		cost += 0.2
	}
	if groupBy {
		cost += 0.3
	}
	cost += float64(costAgg) * 0.1
	c.CostEstimate = round4(math.Min(cost, 10.0))

	complexity := 0.1
	complexity += math.Min(float64(c.JoinCount)*0.1, 0.3)
	complexity += math.Min(float64(c.SubqueryCount)*0.15, 0.3)
	complexity += float64(complexityAgg) * 0.05
	if window {
		complexity += 0.2
	}
	if cte {
		complexity += 0.1
	}
	c.ComplexityScore = round4(math.Min(complexity, 1.0))
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

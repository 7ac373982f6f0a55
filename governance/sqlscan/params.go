package sqlscan

import (
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/tduhfajd/sql-guard/governance/gerror"
)

// ParameterReport is the outcome of checking bound values against a statement.
type ParameterReport struct {
	// Missing lists named placeholders with no bound value, in statement order.
	Missing []string `json:"missing,omitempty"`
	// Unused lists bound values that no placeholder refers to. Advisory only.
	Unused []string `json:"unused,omitempty"`
	// Injected maps a parameter name to the injection families its value matched.
	Injected map[string][]InjectionKind `json:"injected,omitempty"`
	// TooLong lists string parameters longer than the configured bound.
	TooLong []string `json:"too_long,omitempty"`
}

// Valid reports whether the report has no fatal findings.
func (r *ParameterReport) Valid() bool {
	return len(r.Missing) == 0 && len(r.Injected) == 0 && len(r.TooLong) == 0
}

// Errors returns one message per fatal finding.
func (r *ParameterReport) Errors() []string {
	var msgs []string
	for _, name := range r.Missing {
		msgs = append(msgs, fmt.Sprintf("Missing required parameter: %s", name))
	}
	for _, name := range sortedKeys(r.Injected) {
		msgs = append(msgs, fmt.Sprintf("SQL injection detected in parameter %s", name))
	}
	for _, name := range r.TooLong {
		msgs = append(msgs, fmt.Sprintf("Parameter %s value too long", name))
	}
	return msgs
}

// Warnings returns one message per unused parameter.
func (r *ParameterReport) Warnings() []string {
	var msgs []string
	for _, name := range r.Unused {
		msgs = append(msgs, fmt.Sprintf("Unused parameter: %s", name))
	}
	return msgs
}

// Err converts the fatal findings into a governance error. Missing
// parameters take precedence over injected values, which take precedence
// over oversized values.
func (r *ParameterReport) Err() error {
	switch {
	case len(r.Missing) > 0:
		details := make([]string, 0, len(r.Missing))
		for _, name := range r.Missing {
			details = append(details, fmt.Sprintf("Missing required parameter: %s", name))
		}
		return gerror.New(gerror.KindMissingParameter, "statement parameters are not bound", details...)
	case len(r.Injected) > 0 || len(r.TooLong) > 0:
		return gerror.New(gerror.KindInjectionDetected, "parameter values rejected", r.Errors()...)
	default:
		return nil
	}
}

// ValidateParameters checks bound values against the named placeholders of
// sql. String values are scanned with the injection detector and checked
// against the length bound. The returned error is only non-nil when sql
// itself cannot be tokenized.
func (a *Analyzer) ValidateParameters(sql string, values map[string]any) (*ParameterReport, error) {
	tokens, err := Tokenize(sql)
	if err != nil {
		return nil, gerror.Wrap(gerror.KindParse, err, "SQL parsing error")
	}
	_, named := countParameters(tokens)

	report := &ParameterReport{}
	placeholders := make(map[string]bool, len(named))
	for _, name := range named {
		placeholders[name] = true
		if _, ok := values[name]; !ok {
			report.Missing = append(report.Missing, name)
		}
	}

	for _, name := range sortedKeys(values) {
		if !placeholders[name] {
			report.Unused = append(report.Unused, name)
			continue
		}
		s, ok := values[name].(string)
		if !ok {
			continue
		}
		if kinds := a.DetectInjection(s); len(kinds) > 0 {
			if report.Injected == nil {
				report.Injected = make(map[string][]InjectionKind)
			}
			report.Injected[name] = kinds
		}
		if a.maxParamLen > 0 && utf8.RuneCountInString(s) > a.maxParamLen {
			report.TooLong = append(report.TooLong, name)
		}
	}

	return report, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package sqlscan

import (
	"strings"

	"github.com/tduhfajd/sql-guard/governance/gerror"
)

// BindNamed rewrites every :name placeholder of sql with placeholder(n),
// numbering occurrences from 1, and returns the bound values in the same
// order. Placeholders inside literals and comments are left alone. A name
// with no value fails with gerror.KindMissingParameter.
func BindNamed(sql string, values map[string]any, placeholder func(n int) string) (string, []any, error) {
	tokens, err := Tokenize(sql)
	if err != nil {
		return "", nil, gerror.Wrap(gerror.KindParse, err, "SQL parsing error")
	}

	var (
		b    strings.Builder
		args []any
		last int
	)
	for _, t := range tokens {
		if t.Type != TokenNamedParam {
			continue
		}
		v, ok := values[t.Value]
		if !ok {
			return "", nil, gerror.New(gerror.KindMissingParameter, "statement parameters are not bound",
				"Missing required parameter: "+t.Value)
		}
		args = append(args, v)
		b.WriteString(sql[last:t.Pos])
		b.WriteString(placeholder(len(args)))
		last = t.Pos + 1 + len(t.Value)
	}
	if args == nil {
		return sql, nil, nil
	}
	b.WriteString(sql[last:])
	return b.String(), args, nil
}

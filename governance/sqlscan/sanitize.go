package sqlscan

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	lineCommentRegex  = regexp.MustCompile(`(?m)--.*$`)
	blockCommentRegex = regexp.MustCompile(`(?s)/\*.*?\*/`)
	semicolonRunRegex = regexp.MustCompile(`;+`)
)

// Sanitize strips comments, collapses repeated semicolons and trims the
// result. It is meant for re-validation only and is not an injection defense
// on its own.
func Sanitize(sql string) string {
	sql = lineCommentRegex.ReplaceAllString(sql, "")
	sql = blockCommentRegex.ReplaceAllString(sql, "")
	sql = semicolonRunRegex.ReplaceAllString(sql, ";")
	return strings.TrimSpace(sql)
}

// AppendLimit adds " LIMIT n" to sql after removing trailing semicolons.
// Statements that already carry a top-level LIMIT or FETCH are returned
// unchanged.
func AppendLimit(sql string, n int) string {
	trimmed := strings.TrimRight(strings.TrimSpace(sql), ";")
	trimmed = strings.TrimSpace(trimmed)
	tokens, err := Tokenize(trimmed)
	if err == nil && hasTopLevelLimit(tokens) {
		return sql
	}
	return trimmed + " LIMIT " + strconv.Itoa(n)
}

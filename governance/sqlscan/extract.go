package sqlscan

import "strings"

// reservedWords are never reported as table or column names.
var reservedWords = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "GROUP": true, "ORDER": true, "BY": true,
	"HAVING": true, "LIMIT": true, "OFFSET": true, "FETCH": true, "UNION": true, "INTERSECT": true,
	"EXCEPT": true, "INTO": true, "VALUES": true, "SET": true, "JOIN": true, "INNER": true,
	"LEFT": true, "RIGHT": true, "FULL": true, "OUTER": true, "CROSS": true, "NATURAL": true,
	"ON": true, "USING": true, "AS": true, "DISTINCT": true, "ALL": true, "CASE": true,
	"WHEN": true, "THEN": true, "ELSE": true, "END": true, "NULL": true, "TRUE": true,
	"FALSE": true, "AND": true, "OR": true, "NOT": true, "IS": true, "IN": true, "LIKE": true,
	"ILIKE": true, "BETWEEN": true, "EXISTS": true, "OVER": true, "PARTITION": true,
	"WINDOW": true, "WITH": true, "LATERAL": true, "ASC": true, "DESC": true, "RETURNING": true,
	"TABLE": true, "ONLY": true, "INTERVAL": true,
}

var selectListEnd = map[string]bool{
	"FROM": true, "WHERE": true, "GROUP": true, "ORDER": true, "HAVING": true, "LIMIT": true,
	"UNION": true, "INTO": true, "INTERSECT": true, "EXCEPT": true, "OFFSET": true,
	"FETCH": true, "WINDOW": true,
}

// nameToken reports whether t can be a table or column name.
func nameToken(t Token) bool {
	if t.Type == TokenQuotedIdent {
		return true
	}
	return t.Type == TokenWord && !reservedWords[t.Upper]
}

// readQualifiedName reads schema.table style names starting at i and
// returns the rightmost segment and the index after the name.
func readQualifiedName(tokens []Token, i int) (string, int, bool) {
	if i >= len(tokens) || !nameToken(tokens[i]) {
		return "", i, false
	}
	name := tokens[i].Value
	k := i + 1
	for k+1 < len(tokens) && tokens[k].IsPunct(".") && tokens[k+1].isIdent() {
		name = tokens[k+1].Value
		k += 2
	}
	return name, k, true
}

func skipAlias(tokens []Token, k int) int {
	if k < len(tokens) && tokens[k].IsWord("AS") {
		k++
	}
	if k < len(tokens) && nameToken(tokens[k]) {
		k++
	}
	return k
}

type nameSet struct {
	names []string
	seen  map[string]bool
}

func (s *nameSet) add(name string) {
	name = strings.ToLower(name)
	if name == "" {
		return
	}
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	if !s.seen[name] {
		s.seen[name] = true
		s.names = append(s.names, name)
	}
}

// extractTables returns the identifiers following FROM, JOIN, UPDATE and INTO.
// Comma separated FROM lists are followed; table functions and subqueries
// are skipped.
func extractTables(tokens []Token) []string {
	var set nameSet
	for i, t := range tokens {
		if t.Type != TokenWord {
			continue
		}
		switch t.Upper {
		case "FROM", "JOIN", "UPDATE", "INTO":
		default:
			continue
		}

		j := i + 1
		for {
			name, next, ok := readQualifiedName(tokens, j)
			if !ok {
				break
			}
			isCall := next < len(tokens) && tokens[next].IsPunct("(")
			if isCall && (t.Upper == "FROM" || t.Upper == "JOIN") {
				break
			}
			set.add(name)
			if t.Upper != "FROM" {
				break
			}
			next = skipAlias(tokens, next)
			if next < len(tokens) && tokens[next].IsPunct(",") {
				j = next + 1
				continue
			}
			break
		}
	}
	return set.names
}

// extractColumns returns identifiers from every SELECT list. Function names,
// qualifiers, aliases and nested subqueries are excluded.
func extractColumns(tokens []Token) []string {
	var set nameSet
	for i, t := range tokens {
		if t.IsWord("SELECT") {
			collectSelectList(tokens, i+1, &set)
		}
	}
	return set.names
}

func collectSelectList(tokens []Token, start int, set *nameSet) {
	depth := 0
	for k := start; k < len(tokens); k++ {
		tk := tokens[k]

		if tk.IsPunct("(") {
			if k+1 < len(tokens) && tokens[k+1].IsWord("SELECT") {
				k = skipGroup(tokens, k)
				continue
			}
			depth++
			continue
		}
		if tk.IsPunct(")") {
			if depth == 0 {
				return
			}
			depth--
			continue
		}
		if tk.IsPunct(";") {
			return
		}
		if depth == 0 && tk.Type == TokenWord && selectListEnd[tk.Upper] {
			return
		}
		if !nameToken(tk) {
			continue
		}

		if k+1 < len(tokens) && (tokens[k+1].IsPunct("(") || tokens[k+1].IsPunct(".")) {
			continue
		}
		if k > start {
			prev := tokens[k-1]
			if prev.IsWord("AS") {
				continue
			}
			if (prev.isIdent() && !reservedWords[prev.Upper]) || prev.IsPunct(")") {
				// implicit alias: "SELECT name n FROM ..."
				continue
			}
		}
		set.add(tk.Value)
	}
}

// skipGroup returns the index of the parenthesis closing the one at open.
func skipGroup(tokens []Token, open int) int {
	depth := 0
	for k := open; k < len(tokens); k++ {
		if tokens[k].IsPunct("(") {
			depth++
		} else if tokens[k].IsPunct(")") {
			depth--
			if depth == 0 {
				return k
			}
		}
	}
	return len(tokens) - 1
}

package sqlscan

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenType classifies a lexical token.
type TokenType int

const (
	TokenWord TokenType = iota
	TokenNumber
	TokenString
	TokenQuotedIdent
	TokenNamedParam
	TokenPositionalParam
	TokenPunct
	TokenOperator
)

// Token is one lexical unit of a statement. Comments and whitespace are dropped.
type Token struct {
	Type TokenType
	// Value is the token text. For strings and quoted identifiers it excludes
	// the quotes; for named parameters it excludes the leading colon.
	Value string
	// Upper is Value upper-cased, set for words only.
	Upper string
	Pos   int
}

// IsWord reports whether t is an unquoted word equal to kw (upper case).
func (t Token) IsWord(kw string) bool {
	return t.Type == TokenWord && t.Upper == kw
}

// IsPunct reports whether t is the punctuation p.
func (t Token) IsPunct(p string) bool {
	return t.Type == TokenPunct && t.Value == p
}

// isIdent reports whether t can name a table or column.
func (t Token) isIdent() bool {
	return t.Type == TokenWord || t.Type == TokenQuotedIdent
}

// Tokenize splits sql into tokens. It fails on unterminated string literals,
// quoted identifiers and block comments.
func Tokenize(sql string) ([]Token, error) {
	var tokens []Token
	i := 0
	n := len(sql)

	for i < n {
		r, size := utf8.DecodeRuneInString(sql[i:])

		switch {
		case unicode.IsSpace(r):
			i += size

		case r == '-' && i+1 < n && sql[i+1] == '-':
			end := strings.IndexByte(sql[i:], '\n')
			if end < 0 {
				i = n
			} else {
				i += end + 1
			}

		case r == '/' && i+1 < n && sql[i+1] == '*':
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				return nil, fmt.Errorf("unterminated block comment at offset %d", i)
			}
			i += 2 + end + 2

		case r == '\'':
			val, next, err := readQuoted(sql, i, '\'')
			if err != nil {
				return nil, fmt.Errorf("unterminated string literal at offset %d", i)
			}
			tokens = append(tokens, Token{Type: TokenString, Value: val, Pos: i})
			i = next

		case r == '"' || r == '`':
			val, next, err := readQuoted(sql, i, byte(r))
			if err != nil {
				return nil, fmt.Errorf("unterminated quoted identifier at offset %d", i)
			}
			tokens = append(tokens, Token{Type: TokenQuotedIdent, Value: val, Pos: i})
			i = next

		case r == '?':
			tokens = append(tokens, Token{Type: TokenPositionalParam, Value: "?", Pos: i})
			i++

		case r == '%' && i+1 < n && sql[i+1] == 's':
			tokens = append(tokens, Token{Type: TokenPositionalParam, Value: "%s", Pos: i})
			i += 2

		case r == '$' && i+1 < n && isDigit(sql[i+1]):
			j := i + 1
			for j < n && isDigit(sql[j]) {
				j++
			}
			tokens = append(tokens, Token{Type: TokenPositionalParam, Value: sql[i:j], Pos: i})
			i = j

		case r == ':' && i+1 < n && sql[i+1] == ':':
			tokens = append(tokens, Token{Type: TokenOperator, Value: "::", Pos: i})
			i += 2

		case r == ':' && i+1 < n && isIdentStart(rune(sql[i+1])):
			j := i + 1
			for j < n && isIdentPart(rune(sql[j])) {
				j++
			}
			tokens = append(tokens, Token{Type: TokenNamedParam, Value: sql[i+1 : j], Pos: i})
			i = j

		case isIdentStart(r):
			j := i
			for j < n {
				rr, sz := utf8.DecodeRuneInString(sql[j:])
				if !isIdentPart(rr) {
					break
				}
				j += sz
			}
			word := sql[i:j]
			tokens = append(tokens, Token{Type: TokenWord, Value: word, Upper: strings.ToUpper(word), Pos: i})
			i = j

		case isDigit(sql[i]):
			j := i
			for j < n && (isDigit(sql[j]) || sql[j] == '.' || sql[j] == 'e' || sql[j] == 'E') {
				j++
			}
			tokens = append(tokens, Token{Type: TokenNumber, Value: sql[i:j], Pos: i})
			i = j

		default:
			if op := matchOperator(sql[i:]); op != "" {
				tokens = append(tokens, Token{Type: TokenOperator, Value: op, Pos: i})
				i += len(op)
				continue
			}
			tokens = append(tokens, Token{Type: TokenPunct, Value: string(r), Pos: i})
			i += size
		}
	}

	return tokens, nil
}

// readQuoted reads a quoted run starting at sql[start] == quote. A doubled
// quote is an escaped quote.
func readQuoted(sql string, start int, quote byte) (string, int, error) {
	var b strings.Builder
	i := start + 1
	for i < len(sql) {
		c := sql[i]
		if c == quote {
			if i+1 < len(sql) && sql[i+1] == quote {
				b.WriteByte(quote)
				i += 2
				continue
			}
			return b.String(), i + 1, nil
		}
		if c == '\\' && quote == '\'' && i+1 < len(sql) {
			b.WriteByte(c)
			b.WriteByte(sql[i+1])
			i += 2
			continue
		}
		b.WriteByte(c)
		i++
	}
	return "", 0, fmt.Errorf("unterminated")
}

var multiCharOperators = []string{"<=", ">=", "<>", "!=", "||", "->>", "->"}

func matchOperator(s string) string {
	for _, op := range multiCharOperators {
		if strings.HasPrefix(s, op) {
			return op
		}
	}
	return ""
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }

func isIdentPart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

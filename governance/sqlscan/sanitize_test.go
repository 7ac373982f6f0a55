package sqlscan

import "testing"

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"line comment", "SELECT 1 -- trailing", "SELECT 1"},
		{"block comment", "SELECT /* hint */1", "SELECT 1"},
		{"repeated semicolons", "SELECT 1;;;", "SELECT 1;"},
		{"multi line block", "SELECT 1 /* a\nb */ FROM t", "SELECT 1  FROM t"},
		{"whitespace", "  SELECT 1  ", "SELECT 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestAppendLimit(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "SELECT * FROM t", "SELECT * FROM t LIMIT 100"},
		{"trailing semicolons", "SELECT * FROM t;; ", "SELECT * FROM t LIMIT 100"},
		{"existing limit", "SELECT * FROM t LIMIT 5", "SELECT * FROM t LIMIT 5"},
		{"existing fetch", "SELECT * FROM t FETCH FIRST 5 ROWS ONLY", "SELECT * FROM t FETCH FIRST 5 ROWS ONLY"},
		{"limit inside literal", "SELECT 'limit' FROM t", "SELECT 'limit' FROM t LIMIT 100"},
		{"limit inside subquery",
			"SELECT * FROM t WHERE id IN (SELECT id FROM x LIMIT 5)",
			"SELECT * FROM t WHERE id IN (SELECT id FROM x LIMIT 5) LIMIT 100"},
		{"outer limit after subquery",
			"SELECT * FROM (SELECT id FROM x) s LIMIT 5",
			"SELECT * FROM (SELECT id FROM x) s LIMIT 5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AppendLimit(tt.input, 100); got != tt.want {
				t.Errorf("AppendLimit(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestAppendLimit_Idempotent(t *testing.T) {
	inputs := []string{
		"SELECT * FROM users",
		"SELECT * FROM users;",
		"WITH x AS (SELECT 1) SELECT * FROM x",
	}
	for _, sql := range inputs {
		once := AppendLimit(sql, 1000)
		twice := AppendLimit(once, 1000)
		if once != twice {
			t.Errorf("AppendLimit not idempotent for %q: %q then %q", sql, once, twice)
		}

		c, err := NewAnalyzer().Analyze(once)
		if err != nil {
			t.Fatal(err)
		}
		if !c.HasLimit {
			t.Errorf("rewritten statement %q should have a LIMIT", once)
		}
	}
}

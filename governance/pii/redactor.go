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

package pii

import (
	"crypto/sha256"
	"encoding/hex"
	"unicode/utf8"
)

// Redactor detects and masks PII in text and in decoded result rows. It holds
// no per-call state and is safe for concurrent use.
type Redactor struct {
	patterns  []Pattern
	detector  PatternDetector
	salt      string
	maxExprLn int
}

// Option is a functional option for configuring Redactor.
type Option func(*Redactor)

// WithPatterns replaces the pattern catalog. The slice is copied.
func WithPatterns(patterns []Pattern) Option {
	return func(r *Redactor) {
		r.patterns = append([]Pattern(nil), patterns...)
	}
}

// WithDetector replaces the detector used by Detect. Masking keeps using the
// pattern catalog.
func WithDetector(d PatternDetector) Option {
	return func(r *Redactor) {
		r.detector = d
	}
}

// WithSalt sets the salt used by Redactor.Hash.
func WithSalt(salt string) Option {
	return func(r *Redactor) {
		r.salt = salt
	}
}

// NewRedactor creates a redactor over the default catalog.
func NewRedactor(opts ...Option) *Redactor {
	r := &Redactor{
		patterns:  DefaultPatterns(),
		maxExprLn: DefaultMaxPatternLength,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.detector == nil {
		r.detector = NewRegexDetector(r.patterns)
	}
	return r
}

// NewRedactorFromConfig builds a redactor from a validated Config.
func NewRedactorFromConfig(cfg Config) (*Redactor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	patterns := DefaultPatterns()
	if len(cfg.EnabledTypes) > 0 {
		enabled := make(map[Type]bool, len(cfg.EnabledTypes))
		for _, t := range cfg.EnabledTypes {
			enabled[t] = true
		}
		kept := patterns[:0]
		for _, p := range patterns {
			if enabled[p.Type] {
				kept = append(kept, p)
			}
		}
		patterns = kept
	}
	r := NewRedactor(WithPatterns(patterns), WithSalt(cfg.Salt))
	r.maxExprLn = cfg.MaxPatternLength
	return r, nil
}

// Patterns returns a copy of the catalog.
func (r *Redactor) Patterns() []Pattern {
	return append([]Pattern(nil), r.patterns...)
}

// Detect returns the PII matches in text.
func (r *Redactor) Detect(text string) []Match {
	return r.detector.Detect(text)
}

// MaskText replaces every catalog match in text with its pattern's mask.
func (r *Redactor) MaskText(text string) string {
	return MaskTextWith(text, r.patterns)
}

// MaskTextWith applies patterns in order, each to the output of the previous
// one.
func MaskTextWith(text string, patterns []Pattern) string {
	for _, p := range patterns {
		text = p.Regex.ReplaceAllLiteralString(text, p.Mask)
	}
	return text
}

// MaskByType masks value with the first catalog pattern of type t. Types
// without a pattern fall back to GenericMask, which masks the whole value.
func (r *Redactor) MaskByType(value string, t Type) string {
	for _, p := range r.patterns {
		if p.Type == t {
			return p.Regex.ReplaceAllLiteralString(value, p.Mask)
		}
	}
	return GenericMask(value)
}

// GenericMask hides value while keeping a short prefix and suffix: values of
// up to 4 characters are fully starred, up to 8 keep 2 on each side, longer
// values keep 3 on each side.
func GenericMask(value string) string {
	runes := []rune(value)
	n := len(runes)
	keep := 3
	switch {
	case n <= 4:
		return stars(n)
	case n <= 8:
		keep = 2
	}
	return string(runes[:keep]) + stars(n-2*keep) + string(runes[n-keep:])
}

func stars(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = '*'
	}
	return string(b)
}

// MaskValue returns a masked deep copy of v. Maps, []any and
// []map[string]any are walked recursively. A string stored under a key
// listed in hints is masked by that type; every other string is masked by
// free-text detection. Non-string leaves are returned unchanged.
func (r *Redactor) MaskValue(v any, hints map[string]Type) any {
	switch x := v.(type) {
	case string:
		return r.MaskText(x)
	case map[string]any:
		return r.maskMap(x, hints, nil)
	case []map[string]any:
		out := make([]map[string]any, len(x))
		for i, m := range x {
			out[i] = r.maskMap(m, hints, nil)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = r.MaskValue(item, hints)
		}
		return out
	default:
		return v
	}
}

// MaskRows masks decoded result rows. Column rules are applied first and
// replace the whole value of a matching column; the remaining columns follow
// MaskValue.
func (r *Redactor) MaskRows(rows []map[string]any, hints map[string]Type, rules []ColumnRule) []map[string]any {
	if rows == nil {
		return nil
	}
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		out[i] = r.maskMap(row, hints, rules)
	}
	return out
}

func (r *Redactor) maskMap(m map[string]any, hints map[string]Type, rules []ColumnRule) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for key, value := range m {
		if rule, ok := matchRule(rules, key); ok && value != nil {
			out[key] = rule.Mask
			continue
		}
		if s, ok := value.(string); ok {
			if t, hinted := hints[key]; hinted {
				out[key] = r.MaskByType(s, t)
			} else {
				out[key] = r.MaskText(s)
			}
			continue
		}
		out[key] = r.MaskValue(value, hints)
	}
	return out
}

// Hash returns the first 8 hex characters of sha256(value+salt). Equal
// inputs always produce equal hashes.
func Hash(value, salt string) string {
	sum := sha256.Sum256([]byte(value + salt))
	return hex.EncodeToString(sum[:])[:8]
}

// Hash hashes value with the configured salt.
func (r *Redactor) Hash(value string) string {
	return Hash(value, r.salt)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

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

// PatternDetector finds PII values in free text. The regex catalog can be
// replaced by a dictionary or model based detector behind this interface.
type PatternDetector interface {
	// Detect returns every match, grouped by pattern in catalog order and
	// ordered by position within a pattern. Matches of different patterns
	// may overlap.
	Detect(text string) []Match
}

// RegexDetector runs a fixed list of patterns.
type RegexDetector struct {
	patterns []Pattern
}

// NewRegexDetector creates a detector over a copy of patterns.
func NewRegexDetector(patterns []Pattern) *RegexDetector {
	return &RegexDetector{patterns: append([]Pattern(nil), patterns...)}
}

// Detect implements PatternDetector.
func (d *RegexDetector) Detect(text string) []Match {
	if text == "" {
		return nil
	}
	var matches []Match
	for _, p := range d.patterns {
		for _, loc := range p.Regex.FindAllStringIndex(text, -1) {
			value := text[loc[0]:loc[1]]
			matches = append(matches, Match{
				Type:       p.Type,
				Original:   value,
				Masked:     p.Mask,
				Confidence: confidenceFor(p, value),
				Start:      loc[0],
				End:        loc[1],
			})
		}
	}
	return matches
}

func confidenceFor(p Pattern, value string) float64 {
	if p.Validator == nil {
		return ConfidenceRegex
	}
	if p.Validator(value) {
		return ConfidenceValidated
	}
	return ConfidenceRejected
}

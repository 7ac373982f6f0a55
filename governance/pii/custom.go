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
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrEmptyPattern is returned for a blank expression.
	ErrEmptyPattern = errors.New("pattern is empty")

	// ErrPatternTooLong is returned for expressions over the length bound.
	ErrPatternTooLong = errors.New("pattern is too long")
)

// ValidatePattern checks that expr is non-empty, within the default length
// bound and compiles.
func ValidatePattern(expr string) error {
	return validatePattern(expr, DefaultMaxPatternLength)
}

func validatePattern(expr string, maxLen int) error {
	if strings.TrimSpace(expr) == "" {
		return ErrEmptyPattern
	}
	if len(expr) > maxLen {
		return fmt.Errorf("%w: %d characters, limit %d", ErrPatternTooLong, len(expr), maxLen)
	}
	if _, err := regexp.Compile(expr); err != nil {
		return fmt.Errorf("invalid pattern: %w", err)
	}
	return nil
}

// NewCustomPattern builds a case-insensitive pattern for t.
func NewCustomPattern(t Type, expr, mask, description string) (Pattern, error) {
	return newCustomPattern(t, expr, mask, description, DefaultMaxPatternLength)
}

// NewCustomPattern builds a pattern bounded by the redactor's configured
// expression length.
func (r *Redactor) NewCustomPattern(t Type, expr, mask, description string) (Pattern, error) {
	return newCustomPattern(t, expr, mask, description, r.maxExprLn)
}

func newCustomPattern(t Type, expr, mask, description string, maxLen int) (Pattern, error) {
	if !t.IsValid() {
		return Pattern{}, fmt.Errorf("unknown PII type: %q", t)
	}
	if err := validatePattern(expr, maxLen); err != nil {
		return Pattern{}, err
	}
	return Pattern{
		Type:        t,
		Regex:       regexp.MustCompile("(?i)" + expr),
		Mask:        mask,
		Description: description,
	}, nil
}

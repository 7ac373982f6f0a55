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

package policy

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/tduhfajd/sql-guard/governance/gerror"
)

const (
	// MaxNameLength is the longest accepted policy name.
	MaxNameLength = 255

	// MaxDescriptionLength is the longest accepted policy description.
	MaxDescriptionLength = 500
)

// NormalizeName lowercases and trims a policy name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ValidateName checks that name is 1-255 characters of letters, digits,
// underscores and hyphens.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("name exceeds %d characters", MaxNameLength)
	}
	for _, r := range name {
		if r != '_' && r != '-' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return fmt.Errorf("policy name must contain only alphanumeric characters, underscores, and hyphens")
		}
	}
	return nil
}

// Validate checks every field of p and reports all problems at once as a
// gerror.KindInvalidPolicy error.
func Validate(p *Policy) error {
	if p == nil {
		return gerror.New(gerror.KindInvalidPolicy, "policy is nil")
	}

	var problems []string
	add := func(err error) {
		if err != nil {
			for _, line := range strings.Split(err.Error(), "\n") {
				problems = append(problems, line)
			}
		}
	}

	add(ValidateName(p.Name))
	if len(p.Description) > MaxDescriptionLength {
		problems = append(problems, fmt.Sprintf("description exceeds %d characters", MaxDescriptionLength))
	}
	if !p.Type.IsValid() {
		problems = append(problems, fmt.Sprintf("invalid policy type: %q", p.Type))
	}
	if !p.AppliesTo.IsValid() {
		problems = append(problems, fmt.Sprintf("invalid applies_to: %q", p.AppliesTo))
	} else if p.AppliesTo.RequiresTarget() && strings.TrimSpace(p.Target) == "" {
		problems = append(problems, fmt.Sprintf("target is required when applies_to is %s", p.AppliesTo))
	}
	if !p.Priority.IsValid() {
		problems = append(problems, fmt.Sprintf("invalid priority: %q", p.Priority))
	}

	switch {
	case p.Value == nil:
		problems = append(problems, "value is required")
	case p.Type.IsValid() && p.Value.Type() != p.Type:
		problems = append(problems, fmt.Sprintf("value of type %s does not match policy type %s", p.Value.Type(), p.Type))
	default:
		add(p.Value.validate())
	}

	if len(problems) > 0 {
		return gerror.New(gerror.KindInvalidPolicy, "invalid policy definition", problems...)
	}
	return nil
}

// Spec describes a policy to be created.
type Spec struct {
	Name        string
	Description string
	Type        PolicyType
	Value       Value
	AppliesTo   Target
	Target      string
	Priority    Priority
}

// New builds and validates a policy from s. AppliesTo defaults to
// ALL_USERS and Priority to MEDIUM; the policy starts active and enforced.
func New(s Spec) (*Policy, error) {
	now := time.Now().UTC()
	p := &Policy{
		Name:        NormalizeName(s.Name),
		Description: s.Description,
		Type:        s.Type,
		Value:       s.Value,
		AppliesTo:   s.AppliesTo,
		Target:      strings.TrimSpace(s.Target),
		Priority:    s.Priority,
		Active:      true,
		Enforced:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if p.AppliesTo == "" {
		p.AppliesTo = TargetAllUsers
	}
	if p.Priority == "" {
		p.Priority = PriorityMedium
	}
	if err := Validate(p); err != nil {
		return nil, err
	}
	return p, nil
}

// MustNew is New for statically known policies. It panics on error.
func MustNew(s Spec) *Policy {
	p, err := New(s)
	if err != nil {
		panic(err)
	}
	return p
}

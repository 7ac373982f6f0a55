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
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/tduhfajd/sql-guard/shared/config"
)

// EnvPolicyFile names a YAML policy file to load at startup.
const EnvPolicyFile = "SQLGUARD_POLICY_FILE"

// fileNamespace derives stable ids for file policies from their names.
var fileNamespace = uuid.MustParse("6f1c6c44-3a8e-4f57-9d55-0b6f0f1d2e7a")

// File is the YAML policy file layout.
type File struct {
	Version  string      `yaml:"version"`
	Policies []FileEntry `yaml:"policies"`
}

// FileEntry is one policy in a policy file.
type FileEntry struct {
	ID          string         `yaml:"id,omitempty"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Type        string         `yaml:"policy_type"`
	Value       map[string]any `yaml:"value"`
	AppliesTo   string         `yaml:"applies_to,omitempty"`
	Target      string         `yaml:"target,omitempty"`
	Priority    string         `yaml:"priority,omitempty"`
	Active      *bool          `yaml:"is_active,omitempty"`
	Enforced    *bool          `yaml:"is_enforced,omitempty"`
}

// ParseFile decodes a YAML policy document after expanding ${VAR}
// references. Every entry is validated and all problems are reported
// together. Names must be unique within the file.
func ParseFile(data []byte) ([]*Policy, error) {
	expanded := config.ExpandEnvVars(string(data))

	var f File
	if err := yaml.Unmarshal([]byte(expanded), &f); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}

	var errs []string
	seen := make(map[string]bool, len(f.Policies))
	policies := make([]*Policy, 0, len(f.Policies))
	for i, e := range f.Policies {
		p, err := e.toPolicy()
		if err != nil {
			errs = append(errs, fmt.Sprintf("policies[%d] (%s): %v", i, e.Name, err))
			continue
		}
		if seen[p.Name] {
			errs = append(errs, fmt.Sprintf("policies[%d] (%s): %v", i, e.Name, ErrDuplicatePolicyName))
			continue
		}
		seen[p.Name] = true
		policies = append(policies, p)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid policy file: %s", strings.Join(errs, "; "))
	}
	return policies, nil
}

func (e FileEntry) toPolicy() (*Policy, error) {
	t, err := ParsePolicyType(e.Type)
	if err != nil {
		return nil, err
	}
	v, err := DecodeValueMap(t, e.Value)
	if err != nil {
		return nil, err
	}

	p, err := New(Spec{
		Name:        e.Name,
		Description: e.Description,
		Type:        t,
		Value:       v,
		AppliesTo:   Target(strings.ToUpper(e.AppliesTo)),
		Target:      e.Target,
		Priority:    Priority(strings.ToUpper(e.Priority)),
	})
	if err != nil {
		return nil, err
	}

	p.ID = e.ID
	if p.ID == "" {
		p.ID = uuid.NewSHA1(fileNamespace, []byte(p.Name)).String()
	}
	if e.Active != nil {
		p.Active = *e.Active
	}
	if e.Enforced != nil {
		p.Enforced = *e.Enforced
	}
	p.CreatedBy = "file"
	return p, nil
}

// LoadFile reads and parses a policy file.
func LoadFile(path string) ([]*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return ParseFile(data)
}

// EncodeFile renders policies as a YAML policy file.
func EncodeFile(policies []*Policy) ([]byte, error) {
	f := File{Version: "1", Policies: make([]FileEntry, 0, len(policies))}
	for _, p := range policies {
		raw, err := EncodeValue(p.Value)
		if err != nil {
			return nil, err
		}
		var value map[string]any
		if err := yaml.Unmarshal(raw, &value); err != nil {
			return nil, fmt.Errorf("failed to encode %s value: %w", p.Name, err)
		}
		active, enforced := p.Active, p.Enforced
		f.Policies = append(f.Policies, FileEntry{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Type:        string(p.Type),
			Value:       value,
			AppliesTo:   string(p.AppliesTo),
			Target:      p.Target,
			Priority:    string(p.Priority),
			Active:      &active,
			Enforced:    &enforced,
		})
	}
	return yaml.Marshal(f)
}

// FileSource reads the full policy set from a file on every call.
type FileSource struct {
	Path string
}

// ListAll implements Source.
func (s FileSource) ListAll(ctx context.Context) ([]*Policy, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadFile(s.Path)
}

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
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps policies in process. It backs the service when no
// database is configured and mirrors Repository semantics.
type MemoryRepository struct {
	mu       sync.RWMutex
	policies []*Policy
}

// NewMemoryRepository creates a repository seeded with copies of policies.
func NewMemoryRepository(policies ...*Policy) *MemoryRepository {
	m := &MemoryRepository{}
	for _, p := range policies {
		c := p.Clone()
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		m.policies = append(m.policies, c)
	}
	return m
}

func (m *MemoryRepository) indexOf(id string) int {
	for i, p := range m.policies {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (m *MemoryRepository) nameTaken(name, exceptID string) bool {
	for _, p := range m.policies {
		if p.Name == name && p.ID != exceptID {
			return true
		}
	}
	return false
}

// Create validates and stores p.
func (m *MemoryRepository) Create(_ context.Context, p *Policy, createdBy string) error {
	p.Name = NormalizeName(p.Name)
	if err := Validate(p); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nameTaken(p.Name, "") {
		return fmt.Errorf("%w: %s", ErrDuplicatePolicyName, p.Name)
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	p.CreatedBy = createdBy
	m.policies = append(m.policies, p.Clone())
	return nil
}

// Update applies u to the policy with the given id.
func (m *MemoryRepository) Update(_ context.Context, id string, u *Update) (*Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 {
		return nil, ErrPolicyNotFound
	}
	if u == nil || u.Empty() {
		return m.policies[i].Clone(), nil
	}
	updated := u.Apply(m.policies[i])
	if err := Validate(updated); err != nil {
		return nil, err
	}
	if m.nameTaken(updated.Name, id) {
		return nil, fmt.Errorf("%w: %s", ErrDuplicatePolicyName, updated.Name)
	}
	updated.UpdatedAt = time.Now().UTC()
	m.policies[i] = updated
	return updated.Clone(), nil
}

// Delete removes the policy with the given id.
func (m *MemoryRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 {
		return ErrPolicyNotFound
	}
	m.policies = append(m.policies[:i], m.policies[i+1:]...)
	return nil
}

// Get returns the policy with the given id.
func (m *MemoryRepository) Get(_ context.Context, id string) (*Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := m.indexOf(id)
	if i < 0 {
		return nil, ErrPolicyNotFound
	}
	return m.policies[i].Clone(), nil
}

// List filters and pages policies, highest priority first.
func (m *MemoryRepository) List(_ context.Context, params *ListParams) (*ListResult, error) {
	if params == nil {
		params = &ListParams{}
	}
	params.normalize()

	m.mu.RLock()
	matched := make([]*Policy, 0, len(m.policies))
	for _, p := range m.policies {
		if params.Type != nil && p.Type != *params.Type {
			continue
		}
		if params.AppliesTo != nil && p.AppliesTo != *params.AppliesTo {
			continue
		}
		if params.Active != nil && p.Active != *params.Active {
			continue
		}
		if params.Search != "" {
			q := strings.ToLower(params.Search)
			if !strings.Contains(p.Name, q) && !strings.Contains(strings.ToLower(p.Description), q) {
				continue
			}
		}
		matched = append(matched, p.Clone())
	}
	m.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Priority.rank() > matched[j].Priority.rank()
	})

	total := len(matched)
	start := (params.Page - 1) * params.PageSize
	if start > total {
		start = total
	}
	end := start + params.PageSize
	if end > total {
		end = total
	}

	return &ListResult{
		Policies: matched[start:end],
		Pagination: Pagination{
			Page:       params.Page,
			PageSize:   params.PageSize,
			TotalItems: total,
			TotalPages: (total + params.PageSize - 1) / params.PageSize,
		},
	}, nil
}

// ListAll returns every policy in creation order.
func (m *MemoryRepository) ListAll(_ context.Context) ([]*Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Policy, 0, len(m.policies))
	for _, p := range m.policies {
		out = append(out, p.Clone())
	}
	return out, nil
}

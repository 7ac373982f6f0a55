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
	"strings"
	"sync"
)

// Snapshot is an immutable, ordered view of the policy set. Evaluations hold
// a snapshot for their whole duration and never observe later writes.
type Snapshot struct {
	version  uint64
	policies []*Policy
	byID     map[string]*Policy
	byName   map[string]*Policy
}

// NewSnapshot copies policies into a new snapshot. Order is kept and acts as
// the tie-break between policies of equal priority.
func NewSnapshot(policies []*Policy) *Snapshot {
	return newSnapshot(0, policies)
}

func newSnapshot(version uint64, policies []*Policy) *Snapshot {
	s := &Snapshot{
		version:  version,
		policies: make([]*Policy, 0, len(policies)),
		byID:     make(map[string]*Policy, len(policies)),
		byName:   make(map[string]*Policy, len(policies)),
	}
	for _, p := range policies {
		if p == nil {
			continue
		}
		c := p.Clone()
		s.policies = append(s.policies, c)
		if c.ID != "" {
			s.byID[c.ID] = c
		}
		s.byName[c.Name] = c
	}
	return s
}

// Version increases by one on every Store write.
func (s *Snapshot) Version() uint64 {
	if s == nil {
		return 0
	}
	return s.version
}

// Len returns the number of policies in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.policies)
}

// Policies returns copies of the snapshot's policies in order.
func (s *Snapshot) Policies() []*Policy {
	if s == nil {
		return nil
	}
	out := make([]*Policy, 0, len(s.policies))
	for _, p := range s.policies {
		out = append(out, p.Clone())
	}
	return out
}

// Get returns a copy of the policy with the given id.
func (s *Snapshot) Get(id string) (*Policy, bool) {
	if s == nil {
		return nil, false
	}
	p, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// ByName returns a copy of the policy with the given name.
func (s *Snapshot) ByName(name string) (*Policy, bool) {
	if s == nil {
		return nil, false
	}
	p, ok := s.byName[NormalizeName(name)]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// Source supplies the full policy set, typically a Repository.
type Source interface {
	ListAll(ctx context.Context) ([]*Policy, error)
}

// Store publishes policy snapshots. Readers take the current snapshot once
// per request; writers build a new snapshot and swap it in.
type Store struct {
	mu      sync.RWMutex
	current *Snapshot
}

// NewStore creates a store holding policies as version 1.
func NewStore(policies []*Policy) *Store {
	return &Store{current: newSnapshot(1, policies)}
}

// Snapshot returns the current snapshot.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Replace validates policies and publishes them as a new snapshot. Names
// must be unique. On error the current snapshot is kept.
func (s *Store) Replace(policies []*Policy) (*Snapshot, error) {
	seen := make(map[string]bool, len(policies))
	var problems []string
	for _, p := range policies {
		if p == nil {
			continue
		}
		if err := Validate(p); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", p.Name, err))
			continue
		}
		if seen[p.Name] {
			problems = append(problems, fmt.Sprintf("%s: %v", p.Name, ErrDuplicatePolicyName))
		}
		seen[p.Name] = true
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("policy set rejected: %s", strings.Join(problems, "; "))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = newSnapshot(s.current.Version()+1, policies)
	return s.current, nil
}

// Refresh reloads the policy set from src and publishes it.
func (s *Store) Refresh(ctx context.Context, src Source) (*Snapshot, error) {
	policies, err := src.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load policies: %w", err)
	}
	return s.Replace(policies)
}

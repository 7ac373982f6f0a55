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
	"errors"
	"fmt"

	"github.com/tduhfajd/sql-guard/governance/gerror"
	"github.com/tduhfajd/sql-guard/governance/rbac"
	"github.com/tduhfajd/sql-guard/governance/sqlscan"
	"github.com/tduhfajd/sql-guard/shared/logger"
)

// Backend is the persistence used by Service. Repository and
// MemoryRepository implement it.
type Backend interface {
	Source
	Create(ctx context.Context, p *Policy, createdBy string) error
	Update(ctx context.Context, id string, u *Update) (*Policy, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*Policy, error)
	List(ctx context.Context, params *ListParams) (*ListResult, error)
}

// Service is the policy administration surface. Every write is followed by
// a store refresh so new evaluations see the change.
type Service struct {
	backend  Backend
	store    *Store
	engine   *Engine
	analyzer *sqlscan.Analyzer
	log      *logger.Logger
}

// ServiceOption is a functional option for configuring Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger for administration events.
func WithServiceLogger(l *logger.Logger) ServiceOption {
	return func(s *Service) {
		s.log = l
	}
}

// NewService creates a service over backend. store receives a refreshed
// snapshot after each write.
func NewService(backend Backend, store *Store, engine *Engine, analyzer *sqlscan.Analyzer, opts ...ServiceOption) *Service {
	s := &Service{
		backend:  backend,
		store:    store,
		engine:   engine,
		analyzer: analyzer,
		log:      logger.New("policy-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the snapshot store kept current by the service.
func (s *Service) Store() *Store {
	return s.store
}

func deny(subject rbac.Subject, action string) error {
	return gerror.Errorf(gerror.KindPermissionDenied, "role %s may not %s", subject.Role, action)
}

// Sync reloads the store from the backend.
func (s *Service) Sync(ctx context.Context) error {
	snap, err := s.store.Refresh(ctx, s.backend)
	if err != nil {
		return err
	}
	s.log.Info("", "", "Policy snapshot refreshed", map[string]interface{}{
		"version":  snap.Version(),
		"policies": snap.Len(),
	})
	return nil
}

func (s *Service) syncAfterWrite(ctx context.Context, subject rbac.Subject, action string, p *Policy) {
	if err := s.Sync(ctx); err != nil {
		s.log.Error(subject.ID, "", "Policy snapshot refresh failed", map[string]interface{}{
			"action": action,
			"error":  err.Error(),
		})
		return
	}
	s.log.Info(subject.ID, "", "Policy "+action, map[string]interface{}{
		"policy_id":   p.ID,
		"policy_name": p.Name,
		"policy_type": p.Type,
	})
}

// Create stores a new policy built from spec.
func (s *Service) Create(ctx context.Context, subject rbac.Subject, spec Spec) (*Policy, error) {
	if !rbac.CanConfigurePolicies(subject) {
		return nil, deny(subject, "configure security policies")
	}
	p, err := New(spec)
	if err != nil {
		return nil, err
	}
	if err := s.backend.Create(ctx, p, subject.ID); err != nil {
		return nil, err
	}
	s.syncAfterWrite(ctx, subject, "created", p)
	return p, nil
}

// Update changes an existing policy.
func (s *Service) Update(ctx context.Context, subject rbac.Subject, id string, u *Update) (*Policy, error) {
	if !rbac.CanConfigurePolicies(subject) {
		return nil, deny(subject, "configure security policies")
	}
	p, err := s.backend.Update(ctx, id, u)
	if err != nil {
		return nil, err
	}
	s.syncAfterWrite(ctx, subject, "updated", p)
	return p, nil
}

// Delete removes a policy.
func (s *Service) Delete(ctx context.Context, subject rbac.Subject, id string) error {
	if !rbac.CanConfigurePolicies(subject) {
		return deny(subject, "configure security policies")
	}
	p, err := s.backend.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.backend.Delete(ctx, id); err != nil {
		return err
	}
	s.syncAfterWrite(ctx, subject, "deleted", p)
	return nil
}

// Get returns one policy.
func (s *Service) Get(ctx context.Context, subject rbac.Subject, id string) (*Policy, error) {
	if !rbac.CanConfigurePolicies(subject) {
		return nil, deny(subject, "configure security policies")
	}
	return s.backend.Get(ctx, id)
}

// List returns one page of policies.
func (s *Service) List(ctx context.Context, subject rbac.Subject, params *ListParams) (*ListResult, error) {
	if !rbac.CanViewPolicies(subject) {
		return nil, deny(subject, "view security policies")
	}
	return s.backend.List(ctx, params)
}

// Evaluate analyzes sql and evaluates the current snapshot against it for
// the context's subject. It does not execute anything.
func (s *Service) Evaluate(ctx context.Context, subject rbac.Subject, sql string, ec EvalContext) (*EvaluationResult, error) {
	if !rbac.CanViewSystemStatistics(subject) {
		return nil, deny(subject, "evaluate policies")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cls, err := s.analyzer.Analyze(sql)
	if err != nil {
		return nil, err
	}
	return s.engine.Evaluate(s.store.Snapshot(), cls, ec), nil
}

// Stats summarizes the current snapshot.
func (s *Service) Stats(_ context.Context, subject rbac.Subject) (Stats, error) {
	if !rbac.CanViewSystemStatistics(subject) {
		return Stats{}, deny(subject, "view system statistics")
	}
	return ComputeStats(s.store.Snapshot()), nil
}

// Seed creates every policy in policies whose name is not yet taken and
// refreshes the store once.
func (s *Service) Seed(ctx context.Context, policies []*Policy) (int, error) {
	created := 0
	for _, p := range policies {
		err := s.backend.Create(ctx, p.Clone(), "system")
		if errors.Is(err, ErrDuplicatePolicyName) {
			continue
		}
		if err != nil {
			return created, fmt.Errorf("failed to seed policy %s: %w", p.Name, err)
		}
		created++
	}
	if err := s.Sync(ctx); err != nil {
		return created, err
	}
	return created, nil
}

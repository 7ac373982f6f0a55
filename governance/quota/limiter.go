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

package quota

import (
	"context"
	"time"

	"github.com/tduhfajd/sql-guard/governance/gerror"
	"github.com/tduhfajd/sql-guard/governance/rbac"
	"github.com/tduhfajd/sql-guard/shared/logger"
)

// Decision is the outcome of a quota check.
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Count     int64     `json:"count"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
	// FailedOpen is set when the store could not be reached and the
	// execution was let through unchecked.
	FailedOpen bool `json:"failed_open,omitempty"`
}

// LimitFunc returns the number of executions a role may have per window.
type LimitFunc func(rbac.Role) int

// Limiter enforces per-subject execution quotas.
type Limiter struct {
	store  Store
	window time.Duration
	limits LimitFunc
	now    func() time.Time
	log    *logger.Logger
}

// Option is a functional option for configuring Limiter.
type Option func(*Limiter)

// WithWindow sets the sliding window length.
func WithWindow(d time.Duration) Option {
	return func(l *Limiter) {
		l.window = d
	}
}

// WithLimits replaces the per-role limits.
func WithLimits(f LimitFunc) Option {
	return func(l *Limiter) {
		l.limits = f
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(l *Limiter) {
		l.log = log
	}
}

// NewLimiter creates a limiter using rbac.ExecutionQuota over a one minute
// window.
func NewLimiter(store Store, opts ...Option) *Limiter {
	l := &Limiter{
		store:  store,
		window: DefaultWindow,
		limits: rbac.ExecutionQuota,
		now:    time.Now,
		log:    logger.New("quota"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Window returns the sliding window length.
func (l *Limiter) Window() time.Duration {
	return l.window
}

// Allow records one execution for s and rejects it with a
// gerror.KindQuotaExceeded error once the window holds more than the role's
// limit. Rejected attempts are recorded too. Store failures are logged and
// the execution is allowed.
func (l *Limiter) Allow(ctx context.Context, s rbac.Subject) (*Decision, error) {
	limit := l.limits(s.Role)
	if limit <= 0 {
		return &Decision{Limit: limit}, gerror.Errorf(gerror.KindQuotaExceeded, "role %s has no execution quota", s.Role)
	}

	now := l.now()
	count, err := l.store.Hit(ctx, s.ID, now, l.window)
	if err != nil {
		l.log.Warn(s.ID, "", "Quota store unavailable, failing open", map[string]interface{}{
			"error": err.Error(),
		})
		return &Decision{Allowed: true, Limit: limit, Remaining: limit, FailedOpen: true}, nil
	}

	d := l.decision(count, limit, now)
	if !d.Allowed {
		l.log.Info(s.ID, "", "Execution quota exceeded", map[string]interface{}{
			"count": count,
			"limit": limit,
		})
		return d, gerror.Errorf(gerror.KindQuotaExceeded,
			"execution quota exceeded: %d executions in %s (limit: %d)", count, l.window, limit)
	}
	return d, nil
}

// Status reports the current window for s without recording an execution.
func (l *Limiter) Status(ctx context.Context, s rbac.Subject) (*Decision, error) {
	now := l.now()
	count, err := l.store.Count(ctx, s.ID, now, l.window)
	if err != nil {
		return nil, err
	}
	d := l.decision(count, l.limits(s.Role), now)
	// Allowed reports whether one more execution would fit.
	d.Allowed = count < int64(d.Limit)
	return d, nil
}

// Reset clears the window for subjectID.
func (l *Limiter) Reset(ctx context.Context, subjectID string) error {
	return l.store.Reset(ctx, subjectID)
}

func (l *Limiter) decision(count int64, limit int, now time.Time) *Decision {
	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return &Decision{
		Allowed:   count <= int64(limit),
		Count:     count,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   now.Add(l.window),
	}
}

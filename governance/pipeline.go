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

package governance

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tduhfajd/sql-guard/governance/gerror"
	"github.com/tduhfajd/sql-guard/governance/pii"
	"github.com/tduhfajd/sql-guard/governance/policy"
	"github.com/tduhfajd/sql-guard/governance/quota"
	"github.com/tduhfajd/sql-guard/governance/rbac"
	"github.com/tduhfajd/sql-guard/governance/sqlscan"
	"github.com/tduhfajd/sql-guard/shared/logger"
)

// Actions recorded in audit events and metrics.
const (
	ActionCheck   = "check"
	ActionExecute = "execute"
)

// Request is one statement submitted for governance.
type Request struct {
	SQL          string         `json:"sql"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	Subject      rbac.Subject   `json:"-"`
	DatabaseID   string         `json:"database_id,omitempty"`
	DatabaseType string         `json:"database_type,omitempty"`
	Schema       string         `json:"schema,omitempty"`
	ClientIP     string         `json:"client_ip,omitempty"`
	UserAgent    string         `json:"-"`
	RequestID    string         `json:"request_id,omitempty"`
	// ColumnHints forces the PII type used to mask a result column.
	ColumnHints map[string]pii.Type `json:"column_hints,omitempty"`
}

// Decision is the pipeline's verdict on a request.
type Decision struct {
	RequestID string `json:"request_id"`
	Allowed   bool   `json:"allowed"`
	// Statement is the rewritten statement to execute. It may contain
	// literal PII and is never logged.
	Statement string `json:"-"`
	// MaskedStatement is Statement with PII masked.
	MaskedStatement string                   `json:"statement"`
	Classification  *sqlscan.Classification  `json:"classification,omitempty"`
	Evaluation      *policy.EvaluationResult `json:"evaluation,omitempty"`
	Violations      []string                 `json:"violations"`
	Warnings        []string                 `json:"warnings"`
	Limits          policy.Limits            `json:"limits"`
	RiskScore       float64                  `json:"risk_score"`
	Quota           *quota.Decision          `json:"quota,omitempty"`
	PolicyVersion   uint64                   `json:"policy_version"`
}

// Result is the outcome of an executed request.
type Result struct {
	Decision  *Decision        `json:"decision"`
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	RowCount  int              `json:"row_count"`
	Affected  int64            `json:"rows_affected"`
	Truncated bool             `json:"truncated"`
	Masking   pii.Stats        `json:"masking"`
	Duration  time.Duration    `json:"duration"`
}

// Pipeline runs the governance steps for every statement: classification,
// injection and parameter checks, access control, quota, policy evaluation,
// rewrite, execution and result masking.
type Pipeline struct {
	analyzer *sqlscan.Analyzer
	engine   *policy.Engine
	store    *policy.Store
	redactor *pii.Redactor

	limiter  *quota.Limiter
	executor Executor
	audit    AuditSink
	metrics  *Metrics
	log      *logger.Logger
	now      func() time.Time

	blockOnInjection bool
}

// Option is a functional option for configuring Pipeline.
type Option func(*Pipeline)

// WithQuota enables execution quotas.
func WithQuota(l *quota.Limiter) Option {
	return func(p *Pipeline) { p.limiter = l }
}

// WithExecutor sets the executor used by Execute.
func WithExecutor(e Executor) Option {
	return func(p *Pipeline) { p.executor = e }
}

// WithAuditSink sets where decisions are recorded.
func WithAuditSink(s AuditSink) Option {
	return func(p *Pipeline) { p.audit = s }
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// WithClock replaces time.Now for time-restricted policies.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithBlockOnInjection selects whether injection matches reject the
// statement or only add a warning.
func WithBlockOnInjection(block bool) Option {
	return func(p *Pipeline) { p.blockOnInjection = block }
}

// NewPipeline creates a pipeline. Injection matches block by default.
func NewPipeline(analyzer *sqlscan.Analyzer, engine *policy.Engine, store *policy.Store, redactor *pii.Redactor, opts ...Option) *Pipeline {
	p := &Pipeline{
		analyzer:         analyzer,
		engine:           engine,
		store:            store,
		redactor:         redactor,
		log:              logger.New("governance"),
		now:              time.Now,
		blockOnInjection: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.audit == nil {
		p.audit = NewLogAuditSink(logger.New("audit"), redactor)
	}
	return p
}

// Redactor returns the PII redactor.
func (p *Pipeline) Redactor() *pii.Redactor {
	return p.redactor
}

// Analyzer returns the statement analyzer.
func (p *Pipeline) Analyzer() *sqlscan.Analyzer {
	return p.analyzer
}

// Check runs every governance step short of execution. No quota is
// consumed. The returned decision is non-nil even when err is set.
func (p *Pipeline) Check(ctx context.Context, req Request) (*Decision, error) {
	start := time.Now()
	d, err := p.decide(ctx, &req, false)
	p.finish(ctx, ActionCheck, &req, d, err, 0, time.Since(start))
	return d, err
}

// Execute governs req, runs the rewritten statement and masks the result.
// Rejections are gerror values; execution failures are wrapped as
// gerror.KindInternal.
func (p *Pipeline) Execute(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	d, err := p.decide(ctx, &req, true)
	if err != nil {
		p.finish(ctx, ActionExecute, &req, d, err, 0, time.Since(start))
		return &Result{Decision: d}, err
	}
	if p.executor == nil {
		err = gerror.New(gerror.KindInternal, "no executor is configured")
		p.finish(ctx, ActionExecute, &req, d, err, 0, time.Since(start))
		return &Result{Decision: d}, err
	}

	rs, err := p.executor.Execute(ctx, Statement{
		SQL:     d.Statement,
		Params:  req.Parameters,
		Query:   d.Classification.IsQuery(),
		Timeout: time.Duration(d.Limits.TimeoutSeconds) * time.Second,
		MaxRows: d.Limits.MaxRows,
	})
	if err != nil {
		if _, ok := gerror.As(err); !ok {
			err = gerror.Wrap(gerror.KindInternal, err, "statement execution failed")
		}
		p.observeExecution("error")
		p.finish(ctx, ActionExecute, &req, d, err, 0, time.Since(start))
		return &Result{Decision: d}, err
	}
	p.observeExecution("success")

	var rules []pii.ColumnRule
	for _, r := range d.Evaluation.MaskRules() {
		rule, err := pii.NewColumnRule(r.ColumnPattern, r.Mask)
		if err != nil {
			// validated at policy creation
			p.log.Warn(req.Subject.ID, d.RequestID, "Skipping invalid mask rule", map[string]interface{}{
				"column_pattern": r.ColumnPattern,
				"error":          err.Error(),
			})
			continue
		}
		rules = append(rules, rule)
	}

	masked := p.redactor.MaskRows(rs.Rows, req.ColumnHints, rules)
	stats := p.redactor.RowStats(rs.Rows, masked)
	if p.metrics != nil {
		for t, n := range stats.PatternsMatched {
			p.metrics.MaskedFields.WithLabelValues(string(t)).Add(float64(n))
		}
	}

	result := &Result{
		Decision:  d,
		Columns:   rs.Columns,
		Rows:      masked,
		RowCount:  len(masked),
		Affected:  rs.RowsAffected,
		Truncated: rs.Truncated,
		Masking:   stats,
		Duration:  time.Since(start),
	}
	p.finish(ctx, ActionExecute, &req, d, nil, result.RowCount, result.Duration)
	return result, nil
}

func (p *Pipeline) decide(ctx context.Context, req *Request, consumeQuota bool) (*Decision, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	d := &Decision{
		RequestID:       req.RequestID,
		MaskedStatement: p.redactor.MaskText(req.SQL),
		Violations:      []string{},
		Warnings:        []string{},
	}
	if err := ctx.Err(); err != nil {
		return d, gerror.Wrap(gerror.KindInternal, err, "request cancelled")
	}

	cls, err := p.analyzer.Analyze(req.SQL)
	if err != nil {
		return d, err
	}
	d.Classification = cls

	if cls.Injected() {
		kinds := make([]string, 0, len(cls.InjectionAttempts))
		for _, k := range cls.InjectionAttempts {
			kinds = append(kinds, string(k))
		}
		p.observeInjection(kinds)
		if p.blockOnInjection {
			return d, gerror.New(gerror.KindInjectionDetected, "SQL injection detected", kinds...)
		}
		d.Warnings = append(d.Warnings, fmt.Sprintf("Possible SQL injection: %s", strings.Join(kinds, ", ")))
	}

	var violations []string
	for _, fn := range cls.DangerousFunctions {
		violations = append(violations, fmt.Sprintf("Dangerous function '%s' is not allowed", fn))
	}

	report, err := p.analyzer.ValidateParameters(req.SQL, req.Parameters)
	if err != nil {
		return d, err
	}
	for _, name := range sortedNames(report.Injected) {
		kinds := make([]string, 0, len(report.Injected[name]))
		for _, k := range report.Injected[name] {
			kinds = append(kinds, string(k))
		}
		p.observeInjection(kinds)
		if !p.blockOnInjection {
			d.Warnings = append(d.Warnings, fmt.Sprintf("Possible SQL injection in parameter %s: %s", name, strings.Join(kinds, ", ")))
		}
	}
	if !p.blockOnInjection {
		report.Injected = nil
	}
	if err := report.Err(); err != nil {
		return d, err
	}
	d.Warnings = append(d.Warnings, report.Warnings()...)

	if err := p.checkAccess(req, cls); err != nil {
		return d, err
	}

	if consumeQuota && p.limiter != nil {
		qd, err := p.limiter.Allow(ctx, req.Subject)
		d.Quota = qd
		if err != nil {
			return d, err
		}
	}

	snap := p.store.Snapshot()
	d.PolicyVersion = snap.Version()
	eval := p.engine.Evaluate(snap, cls, policy.EvalContext{
		Subject:    req.Subject,
		DatabaseID: req.DatabaseID,
		Schema:     req.Schema,
		ClientIP:   req.ClientIP,
		At:         p.now(),
		RequestID:  req.RequestID,
	})
	d.Evaluation = eval
	d.Limits = eval.Limits
	d.RiskScore = eval.RiskScore
	d.Warnings = append(d.Warnings, eval.Warnings...)
	violations = append(violations, eval.Violations...)
	if len(violations) > 0 {
		d.Violations = violations
		return d, gerror.PolicyViolation(violations)
	}

	d.Statement = req.SQL
	if cls.IsQuery() {
		limit, ok := eval.LimitModification()
		if !ok {
			limit = eval.Limits.AutoLimit
		}
		if limit > 0 {
			d.Statement = sqlscan.AppendLimit(req.SQL, limit)
		}
	}
	d.MaskedStatement = p.redactor.MaskText(d.Statement)
	d.Allowed = true
	return d, nil
}

func (p *Pipeline) checkAccess(req *Request, cls *sqlscan.Classification) error {
	s := req.Subject
	if !s.Active {
		return gerror.Errorf(gerror.KindPermissionDenied, "subject %s is inactive", s.ID)
	}
	if !rbac.CanExecute(s, cls) {
		return gerror.Errorf(gerror.KindPermissionDenied, "role %s may not execute %s statements", s.Role, cls.StatementKind)
	}

	if req.DatabaseType != "" {
		ct, err := rbac.ParseConnectionType(req.DatabaseType)
		if err != nil {
			return gerror.Wrap(gerror.KindPermissionDenied, err, "unknown database type")
		}
		if !rbac.CanAccessDatabase(s, ct) {
			return gerror.Errorf(gerror.KindPermissionDenied, "role %s may not access %s databases", s.Role, ct)
		}
		if rbac.DatabaseAccessFor(s.Role).ReadOnly && (cls.HasDDL || cls.HasDML) && !cls.IsQuery() {
			return gerror.Errorf(gerror.KindPermissionDenied, "role %s has read-only access to %s databases", s.Role, ct)
		}
	}

	if req.Schema != "" && !rbac.CanAccessSchema(s, req.Schema) {
		return gerror.Errorf(gerror.KindPermissionDenied, "role %s may not access schema %s", s.Role, req.Schema)
	}
	return nil
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p *Pipeline) observeInjection(kinds []string) {
	if p.metrics == nil {
		return
	}
	blocked := "false"
	if p.blockOnInjection {
		blocked = "true"
	}
	for _, k := range kinds {
		p.metrics.InjectionDetected.WithLabelValues(k, blocked).Inc()
	}
}

func (p *Pipeline) observeExecution(status string) {
	if p.metrics != nil {
		p.metrics.ExecutedStatements.WithLabelValues(status).Inc()
	}
}

// finish records metrics, the audit event and a log line for one request.
func (p *Pipeline) finish(ctx context.Context, action string, req *Request, d *Decision, err error, rows int, elapsed time.Duration) {
	outcome := OutcomeAllowed
	if action == ActionExecute {
		outcome = OutcomeExecuted
	}
	kind := ""
	if err != nil {
		outcome = OutcomeRejected
		kind = string(gerror.KindOf(err))
		if !gerror.Expected(err) {
			outcome = OutcomeFailed
		}
	}

	if p.metrics != nil {
		p.metrics.Decisions.WithLabelValues(action, outcome, kind).Inc()
		p.metrics.Duration.WithLabelValues(action).Observe(float64(elapsed.Microseconds()) / 1000.0)
		if d.Evaluation != nil {
			p.metrics.RiskScore.Observe(d.RiskScore)
			p.metrics.PolicyVersion.Set(float64(d.PolicyVersion))
		}
	}

	event := NewAuditEvent(action, outcome)
	event.ErrorKind = kind
	if err != nil {
		event.Reason = err.Error()
	}
	event.SubjectID = req.Subject.ID
	event.Role = string(req.Subject.Role)
	event.RequestID = d.RequestID
	event.DatabaseID = req.DatabaseID
	event.Schema = req.Schema
	event.ClientIP = req.ClientIP
	event.UserAgent = req.UserAgent
	event.Statement = d.MaskedStatement
	event.Violations = d.Violations
	event.Warnings = d.Warnings
	event.RiskScore = d.RiskScore
	event.RowCount = rows
	event.Duration = elapsed
	if d.Classification != nil {
		event.StatementKind = d.Classification.StatementKind
	}
	if d.Evaluation != nil {
		event.AppliedPolicies = d.Evaluation.AppliedPolicies
	}
	p.audit.Record(ctx, event)

	fields := map[string]interface{}{
		"action":     action,
		"outcome":    outcome,
		"risk_score": d.RiskScore,
	}
	if kind != "" {
		fields["error_kind"] = kind
	}
	p.log.InfoWithDuration(req.Subject.ID, d.RequestID, "Statement governed", elapsed, fields)
}

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
	"math"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/tduhfajd/sql-guard/governance/rbac"
	"github.com/tduhfajd/sql-guard/governance/sqlscan"
	"github.com/tduhfajd/sql-guard/shared/logger"
)

// Modification keys set by the engine.
const (
	// ModLimit holds the int row limit to append to a query.
	ModLimit = "limit"

	// ModPIIPatterns holds the []ColumnMaskRule to apply to result rows.
	ModPIIPatterns = "pii_patterns"
)

// EvalContext is everything about a request, other than the statement, that
// policies match and evaluate against.
type EvalContext struct {
	Subject    rbac.Subject
	DatabaseID string
	Schema     string
	ClientIP   string
	// At is the request time used by TIME_RESTRICTION. The zero time skips
	// time checks.
	At time.Time
	// RequestID is only used for logging.
	RequestID string
}

// Limits are the effective execution limits after policies are applied.
// Unset values come from the subject's role restrictions.
type Limits struct {
	TimeoutSeconds int `json:"timeout_seconds"`
	MaxRows        int `json:"max_rows"`
	AutoLimit      int `json:"auto_limit"`
	MaxConnections int `json:"max_connections"`
}

// EvaluationResult is the outcome of evaluating a snapshot against one
// statement. It is built fresh per call.
type EvaluationResult struct {
	Allowed         bool           `json:"allowed"`
	AppliedPolicies []string       `json:"applied_policies"`
	Violations      []string       `json:"violations"`
	Warnings        []string       `json:"warnings"`
	Modifications   map[string]any `json:"modifications"`
	RiskScore       float64        `json:"risk_score"`
	Limits          Limits         `json:"limits"`
}

// LimitModification returns the row limit to append, if any.
func (r *EvaluationResult) LimitModification() (int, bool) {
	n, ok := r.Modifications[ModLimit].(int)
	return n, ok
}

// MaskRules returns the PII column rules to apply to result rows.
func (r *EvaluationResult) MaskRules() []ColumnMaskRule {
	rules, _ := r.Modifications[ModPIIPatterns].([]ColumnMaskRule)
	return rules
}

// Engine evaluates policy snapshots. It holds configuration only and is safe
// for concurrent use.
type Engine struct {
	weights RiskWeights
	log     *logger.Logger
}

// EngineOption is a functional option for configuring Engine.
type EngineOption func(*Engine)

// WithRiskWeights replaces the default risk weights.
func WithRiskWeights(w RiskWeights) EngineOption {
	return func(e *Engine) {
		e.weights = w
	}
}

// WithLogger sets the logger used for evaluation traces.
func WithLogger(l *logger.Logger) EngineOption {
	return func(e *Engine) {
		e.log = l
	}
}

// NewEngine creates an engine with the default risk weights.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		weights: DefaultRiskWeights(),
		log:     logger.New("policy-engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Applicable returns the active, enforced policies of snap that match the
// statement and context, CRITICAL first. Policies of equal priority keep
// snapshot order.
func Applicable(snap *Snapshot, cls *sqlscan.Classification, ec EvalContext) []*Policy {
	if snap == nil {
		return nil
	}
	var out []*Policy
	for _, p := range snap.policies {
		if p.Active && p.Enforced && matches(p, cls, ec) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority.rank() > out[j].Priority.rank()
	})
	return out
}

func matches(p *Policy, cls *sqlscan.Classification, ec EvalContext) bool {
	switch p.AppliesTo {
	case TargetAllUsers:
		return true
	case TargetRole:
		return strings.EqualFold(p.Target, string(ec.Subject.Role))
	case TargetUser:
		return p.Target == ec.Subject.ID
	case TargetDatabase:
		return p.Target == ec.DatabaseID
	case TargetSchema:
		return ec.Schema != "" && strings.EqualFold(p.Target, ec.Schema)
	case TargetTable:
		return cls != nil && cls.HasTable(lastSegment(p.Target))
	default:
		return false
	}
}

type outcome struct {
	violation string
	warning   string
	// scored marks findings that add the policy's risk weight.
	scored bool
	mods   map[string]any
}

// Evaluate runs every applicable policy of snap against cls. The snapshot is
// only read. A nil classification is treated as an empty statement.
func (e *Engine) Evaluate(snap *Snapshot, cls *sqlscan.Classification, ec EvalContext) *EvaluationResult {
	if cls == nil {
		cls = &sqlscan.Classification{}
	}

	restrictions := rbac.QueryRestrictionsFor(ec.Subject)
	result := &EvaluationResult{
		AppliedPolicies: []string{},
		Violations:      []string{},
		Warnings:        []string{},
		Modifications:   map[string]any{},
		Limits: Limits{
			TimeoutSeconds: restrictions.MaxExecutionTimeSeconds,
			MaxRows:        restrictions.MaxRows,
			MaxConnections: rbac.DatabaseAccessFor(ec.Subject.Role).MaxConnections,
		},
	}
	if restrictions.AutoLimit {
		result.Limits.AutoLimit = restrictions.MaxRows
	}

	var set struct{ timeout, rows, autoLimit, conns bool }
	risk := 0.0

	for _, p := range Applicable(snap, cls, ec) {
		result.AppliedPolicies = append(result.AppliedPolicies, p.Name)

		o := e.evaluateOne(p, cls, ec)
		if o.violation != "" {
			result.Violations = append(result.Violations, o.violation)
		}
		if o.warning != "" {
			result.Warnings = append(result.Warnings, o.warning)
		}
		if o.scored {
			risk += e.weights.Weight(p.Type)
		}
		for k, v := range o.mods {
			if _, taken := result.Modifications[k]; !taken {
				result.Modifications[k] = v
			}
		}

		switch v := p.Value.(type) {
		case TimeoutValue:
			if !set.timeout {
				result.Limits.TimeoutSeconds, set.timeout = v.TimeoutSeconds, true
			}
		case MaxRowsValue:
			if !set.rows {
				result.Limits.MaxRows, set.rows = v.MaxRows, true
			}
		case AutoLimitValue:
			if !set.autoLimit {
				result.Limits.AutoLimit, set.autoLimit = v.Limit, true
			}
		case ConnectionLimitValue:
			if !set.conns {
				result.Limits.MaxConnections, set.conns = v.MaxConnections, true
			}
		}
	}

	result.RiskScore = math.Round(math.Min(risk, 1.0)*10000) / 10000
	result.Allowed = len(result.Violations) == 0

	e.log.Debug(ec.Subject.ID, ec.RequestID, "Policies evaluated", map[string]interface{}{
		"applied":    len(result.AppliedPolicies),
		"violations": len(result.Violations),
		"risk_score": result.RiskScore,
		"allowed":    result.Allowed,
	})
	return result
}

func (e *Engine) evaluateOne(p *Policy, cls *sqlscan.Classification, ec EvalContext) outcome {
	switch v := p.Value.(type) {
	case TimeoutValue:
		return outcome{
			warning: fmt.Sprintf("Query timeout should not exceed %d seconds", v.TimeoutSeconds),
			scored:  true,
		}

	case MaxRowsValue:
		return outcome{
			warning: fmt.Sprintf("Query should not return more than %d rows", v.MaxRows),
			scored:  true,
		}

	case AutoLimitValue:
		if cls.IsQuery() && !cls.HasLimit {
			return outcome{mods: map[string]any{ModLimit: v.Limit}}
		}
		return outcome{}

	case BlockStatementsValue:
		class := strings.TrimPrefix(string(v.Class), "BLOCK_")
		for _, stmt := range v.BlockedStatements {
			if cls.HasKeyword(stmt) {
				return outcome{
					violation: fmt.Sprintf("%s statement '%s' is blocked by policy", class, strings.ToUpper(stmt)),
					scored:    true,
				}
			}
		}
		return outcome{}

	case RequireWhereValue:
		if cls.HasWhereClause {
			return outcome{}
		}
		for _, stmt := range v.statements() {
			if cls.HasKeyword(stmt) {
				return outcome{
					violation: fmt.Sprintf("%s statement requires WHERE clause", strings.ToUpper(stmt)),
					scored:    true,
				}
			}
		}
		return outcome{}

	case SensitiveTablesValue:
		for _, t := range v.Tables {
			if cls.HasTable(lastSegment(t)) {
				return outcome{
					violation: fmt.Sprintf("Access to sensitive table '%s' is blocked by policy", t),
					scored:    true,
				}
			}
		}
		return outcome{}

	case SensitiveColumnsValue:
		for _, c := range v.Columns {
			if cls.HasColumn(lastSegment(c)) {
				return outcome{
					violation: fmt.Sprintf("Access to sensitive column '%s' is blocked by policy", c),
					scored:    true,
				}
			}
		}
		return outcome{}

	case PIIMaskingValue:
		rules := append([]ColumnMaskRule(nil), v.Patterns...)
		return outcome{mods: map[string]any{ModPIIPatterns: rules}}

	case ComplexityValue:
		if cls.ComplexityScore > v.MaxComplexity {
			return outcome{
				violation: fmt.Sprintf("Query complexity %.2f exceeds limit %.2f", cls.ComplexityScore, v.MaxComplexity),
				scored:    true,
			}
		}
		return outcome{}

	case ConnectionLimitValue:
		return outcome{
			warning: fmt.Sprintf("Connections should not exceed %d", v.MaxConnections),
			scored:  true,
		}

	case IPListValue:
		return evaluateIPList(p, v, ec)

	case TimeRestrictionValue:
		return evaluateTime(p, v, ec)

	case SchemaAccessValue:
		if ec.Schema == "" || containsFold(v.Schemas, ec.Schema) {
			return outcome{}
		}
		return outcome{
			violation: fmt.Sprintf("Schema '%s' is not permitted by policy", ec.Schema),
			scored:    true,
		}

	case TableAccessValue:
		allowed := make([]string, 0, len(v.Tables))
		for _, t := range v.Tables {
			allowed = append(allowed, lastSegment(t))
		}
		for _, t := range cls.Tables {
			if !containsFold(allowed, t) {
				return outcome{
					violation: fmt.Sprintf("Table '%s' is not permitted by policy", t),
					scored:    true,
				}
			}
		}
		return outcome{}

	default:
		return outcome{warning: fmt.Sprintf("Policy type %s is not evaluated", p.Type)}
	}
}

func evaluateIPList(p *Policy, v IPListValue, ec EvalContext) outcome {
	ip := net.ParseIP(strings.TrimSpace(ec.ClientIP))
	if ip == nil {
		return outcome{warning: fmt.Sprintf("Client IP is unknown; policy '%s' was not applied", p.Name)}
	}

	listed := false
	for _, a := range v.Addresses {
		if n, err := parseIPNet(a); err == nil && n.Contains(ip) {
			listed = true
			break
		}
	}

	switch {
	case v.Kind == TypeIPWhitelist && !listed:
		return outcome{
			violation: fmt.Sprintf("Client IP %s is not in the allowed list", ec.ClientIP),
			scored:    true,
		}
	case v.Kind == TypeIPBlacklist && listed:
		return outcome{
			violation: fmt.Sprintf("Client IP %s is blocked by policy", ec.ClientIP),
			scored:    true,
		}
	default:
		return outcome{}
	}
}

func evaluateTime(p *Policy, v TimeRestrictionValue, ec EvalContext) outcome {
	if ec.At.IsZero() {
		return outcome{warning: fmt.Sprintf("Request time is unknown; policy '%s' was not applied", p.Name)}
	}

	at := ec.At
	if v.Timezone != "" {
		if loc, err := time.LoadLocation(v.Timezone); err == nil {
			at = at.In(loc)
		}
	}

	if !withinWindow(v, at) {
		return outcome{
			violation: fmt.Sprintf("Access is not permitted at %s", at.Format("15:04")),
			scored:    true,
		}
	}
	return outcome{}
}

func withinWindow(v TimeRestrictionValue, at time.Time) bool {
	if len(v.Days) > 0 {
		dayOK := false
		for _, d := range v.Days {
			if wd, ok := weekdays[strings.ToUpper(d)]; ok && wd == at.Weekday() {
				dayOK = true
				break
			}
		}
		if !dayOK {
			return false
		}
	}

	h := at.Hour()
	switch {
	case v.StartHour == v.EndHour:
		return true
	case v.StartHour < v.EndHour:
		return h >= v.StartHour && h < v.EndHour
	default:
		return h >= v.StartHour || h < v.EndHour
	}
}

func lastSegment(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

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
	"time"

	"github.com/google/uuid"

	"github.com/tduhfajd/sql-guard/governance/pii"
	"github.com/tduhfajd/sql-guard/shared/logger"
)

// Audit outcomes.
const (
	OutcomeAllowed  = "allowed"
	OutcomeRejected = "rejected"
	OutcomeExecuted = "executed"
	OutcomeFailed   = "failed"
)

// AuditEvent records one governance decision. Statement is always the
// masked statement text.
type AuditEvent struct {
	ID              string        `json:"id"`
	Timestamp       time.Time     `json:"timestamp"`
	Action          string        `json:"action"`
	Outcome         string        `json:"outcome"`
	ErrorKind       string        `json:"error_kind,omitempty"`
	Reason          string        `json:"reason,omitempty"`
	SubjectID       string        `json:"subject_id"`
	Role            string        `json:"role"`
	RequestID       string        `json:"request_id"`
	DatabaseID      string        `json:"database_id,omitempty"`
	Schema          string        `json:"schema,omitempty"`
	ClientIP        string        `json:"ip_address,omitempty"`
	UserAgent       string        `json:"user_agent,omitempty"`
	Statement       string        `json:"statement"`
	StatementKind   string        `json:"statement_kind,omitempty"`
	AppliedPolicies []string      `json:"applied_policies,omitempty"`
	Violations      []string      `json:"violations,omitempty"`
	Warnings        []string      `json:"warnings,omitempty"`
	RiskScore       float64       `json:"risk_score"`
	RowCount        int           `json:"row_count"`
	Duration        time.Duration `json:"duration"`
}

// NewAuditEvent creates an event with a fresh id.
func NewAuditEvent(action, outcome string) *AuditEvent {
	return &AuditEvent{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Action:    action,
		Outcome:   outcome,
	}
}

// ToAuditDetails converts the event to a map in the audit payload layout:
// user_agent, ip_address and details at the top level.
func (e *AuditEvent) ToAuditDetails() map[string]interface{} {
	return map[string]interface{}{
		"audit_id":   e.ID,
		"action":     e.Action,
		"outcome":    e.Outcome,
		"user_agent": e.UserAgent,
		"ip_address": e.ClientIP,
		"details": map[string]interface{}{
			"role":             e.Role,
			"database_id":      e.DatabaseID,
			"schema":           e.Schema,
			"statement":        e.Statement,
			"statement_kind":   e.StatementKind,
			"error_kind":       e.ErrorKind,
			"reason":           e.Reason,
			"applied_policies": e.AppliedPolicies,
			"violations":       e.Violations,
			"warnings":         e.Warnings,
			"risk_score":       e.RiskScore,
			"row_count":        e.RowCount,
			"duration":         e.Duration.String(),
		},
	}
}

// AuditSink receives every decision the pipeline makes.
type AuditSink interface {
	Record(ctx context.Context, event *AuditEvent)
}

// AuditFunc adapts a function to AuditSink.
type AuditFunc func(ctx context.Context, event *AuditEvent)

// Record implements AuditSink.
func (f AuditFunc) Record(ctx context.Context, event *AuditEvent) {
	f(ctx, event)
}

// LogAuditSink writes events through the structured logger after masking
// the audit payload.
type LogAuditSink struct {
	log      *logger.Logger
	redactor *pii.Redactor
}

// NewLogAuditSink creates a sink. A nil log writes to stdout under the
// "audit" component.
func NewLogAuditSink(log *logger.Logger, redactor *pii.Redactor) *LogAuditSink {
	if log == nil {
		log = logger.New("audit")
	}
	if redactor == nil {
		redactor = pii.NewRedactor()
	}
	return &LogAuditSink{log: log, redactor: redactor}
}

// Record implements AuditSink.
func (s *LogAuditSink) Record(_ context.Context, event *AuditEvent) {
	if event == nil {
		return
	}
	fields := s.redactor.MaskAuditLog(event.ToAuditDetails())
	if event.Outcome == OutcomeRejected || event.Outcome == OutcomeFailed {
		s.log.Warn(event.SubjectID, event.RequestID, "Governance decision", fields)
		return
	}
	s.log.Info(event.SubjectID, event.RequestID, "Governance decision", fields)
}

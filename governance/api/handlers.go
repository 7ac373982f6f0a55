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

package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/tduhfajd/sql-guard/governance"
	"github.com/tduhfajd/sql-guard/governance/gerror"
	"github.com/tduhfajd/sql-guard/governance/pii"
	"github.com/tduhfajd/sql-guard/governance/policy"
	"github.com/tduhfajd/sql-guard/governance/rbac"
)

// governanceRequest builds a pipeline request from the body and the
// authenticated caller. The client address always comes from the
// connection, never the body.
func (s *Server) governanceRequest(w http.ResponseWriter, r *http.Request) (governance.Request, error) {
	var req governance.Request
	if err := decodeJSON(w, r, &req); err != nil {
		return req, err
	}
	req.Subject, _ = SubjectFrom(r.Context())
	req.ClientIP = clientIP(r)
	req.UserAgent = r.UserAgent()
	if req.RequestID == "" {
		req.RequestID = r.Header.Get("X-Request-ID")
	}
	if req.DatabaseID == "" {
		req.DatabaseID = s.databaseID
	}
	if req.DatabaseType == "" {
		req.DatabaseType = s.databaseType
	}
	return req, nil
}

// handleCheck handles POST /api/v1/governance/check
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	req, err := s.governanceRequest(w, r)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	d, err := s.pipeline.Check(r.Context(), req)
	if err != nil {
		writeError(w, err, map[string]interface{}{"decision": d})
		return
	}
	writeJSONResponse(w, d, http.StatusOK)
}

// handleExecute handles POST /api/v1/governance/execute
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	req, err := s.governanceRequest(w, r)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	res, err := s.pipeline.Execute(r.Context(), req)
	if err != nil {
		writeError(w, err, map[string]interface{}{"decision": res.Decision})
		return
	}
	writeJSONResponse(w, res, http.StatusOK)
}

// handleListPolicies handles GET /api/v1/policies
// Query parameters:
//   - type: policy type filter
//   - applies_to: target filter
//   - active: true/false
//   - search: substring of name or description
//   - page, page_size: pagination
func (s *Server) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	subject, _ := SubjectFrom(r.Context())
	q := r.URL.Query()

	params := &policy.ListParams{Search: q.Get("search")}
	params.Page, _ = strconv.Atoi(q.Get("page"))
	params.PageSize, _ = strconv.Atoi(q.Get("page_size"))
	if v := q.Get("type"); v != "" {
		t, err := policy.ParsePolicyType(v)
		if err != nil {
			writeError(w, gerror.Wrap(gerror.KindParse, err, "invalid type filter"), nil)
			return
		}
		params.Type = &t
	}
	if v := q.Get("applies_to"); v != "" {
		target := policy.Target(v)
		if !target.IsValid() {
			writeError(w, gerror.Errorf(gerror.KindParse, "invalid applies_to filter: %q", v), nil)
			return
		}
		params.AppliesTo = &target
	}
	if v := q.Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, gerror.Wrap(gerror.KindParse, err, "invalid active filter"), nil)
			return
		}
		params.Active = &active
	}

	result, err := s.policies.List(r.Context(), subject, params)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSONResponse(w, result, http.StatusOK)
}

type createPolicyRequest struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Type        policy.PolicyType `json:"policy_type"`
	Value       json.RawMessage   `json:"value"`
	AppliesTo   policy.Target     `json:"applies_to"`
	Target      string            `json:"target"`
	Priority    policy.Priority   `json:"priority"`
}

func decodePolicyValue(t policy.PolicyType, raw json.RawMessage) (policy.Value, error) {
	v, err := policy.DecodeValue(t, raw)
	if err != nil {
		if _, ok := gerror.As(err); ok {
			return nil, err
		}
		return nil, gerror.Wrap(gerror.KindInvalidPolicy, err, "invalid policy value")
	}
	return v, nil
}

// handleCreatePolicy handles POST /api/v1/policies
func (s *Server) handleCreatePolicy(w http.ResponseWriter, r *http.Request) {
	subject, _ := SubjectFrom(r.Context())
	if !rbac.CanConfigurePolicies(subject) {
		writeError(w, gerror.Errorf(gerror.KindPermissionDenied, "role %s may not configure security policies", subject.Role), nil)
		return
	}

	var req createPolicyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err, nil)
		return
	}
	value, err := decodePolicyValue(req.Type, req.Value)
	if err != nil {
		writeError(w, err, nil)
		return
	}

	p, err := s.policies.Create(r.Context(), subject, policy.Spec{
		Name:        req.Name,
		Description: req.Description,
		Type:        req.Type,
		Value:       value,
		AppliesTo:   req.AppliesTo,
		Target:      req.Target,
		Priority:    req.Priority,
	})
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSONResponse(w, p, http.StatusCreated)
}

// handlePolicyTypes handles GET /api/v1/policies/types
func (s *Server) handlePolicyTypes(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, map[string]interface{}{"types": policy.TypeInfos()}, http.StatusOK)
}

// handlePolicyStats handles GET /api/v1/policies/stats
func (s *Server) handlePolicyStats(w http.ResponseWriter, r *http.Request) {
	subject, _ := SubjectFrom(r.Context())
	stats, err := s.policies.Stats(r.Context(), subject)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSONResponse(w, stats, http.StatusOK)
}

type evaluateRequest struct {
	SQL        string `json:"sql"`
	DatabaseID string `json:"database_id"`
	Schema     string `json:"schema"`
}

// handleEvaluatePolicies handles POST /api/v1/policies/evaluate
func (s *Server) handleEvaluatePolicies(w http.ResponseWriter, r *http.Request) {
	subject, _ := SubjectFrom(r.Context())
	var req evaluateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err, nil)
		return
	}

	result, err := s.policies.Evaluate(r.Context(), subject, req.SQL, policy.EvalContext{
		Subject:    subject,
		DatabaseID: req.DatabaseID,
		Schema:     req.Schema,
		ClientIP:   clientIP(r),
		At:         s.now(),
		RequestID:  r.Header.Get("X-Request-ID"),
	})
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSONResponse(w, result, http.StatusOK)
}

// handleGetPolicy handles GET /api/v1/policies/{id}
func (s *Server) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	subject, _ := SubjectFrom(r.Context())
	p, err := s.policies.Get(r.Context(), subject, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSONResponse(w, p, http.StatusOK)
}

type updatePolicyRequest struct {
	policy.Update
	Value json.RawMessage `json:"value,omitempty"`
}

// handleUpdatePolicy handles PUT /api/v1/policies/{id}
// A new value is decoded against the stored policy type.
func (s *Server) handleUpdatePolicy(w http.ResponseWriter, r *http.Request) {
	subject, _ := SubjectFrom(r.Context())
	id := mux.Vars(r)["id"]

	var req updatePolicyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err, nil)
		return
	}

	u := req.Update
	if len(req.Value) > 0 {
		existing, err := s.policies.Get(r.Context(), subject, id)
		if err != nil {
			writeError(w, err, nil)
			return
		}
		value, err := decodePolicyValue(existing.Type, req.Value)
		if err != nil {
			writeError(w, err, nil)
			return
		}
		u.Value = value
	}

	p, err := s.policies.Update(r.Context(), subject, id, &u)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSONResponse(w, p, http.StatusOK)
}

// handleDeletePolicy handles DELETE /api/v1/policies/{id}
func (s *Server) handleDeletePolicy(w http.ResponseWriter, r *http.Request) {
	subject, _ := SubjectFrom(r.Context())
	if err := s.policies.Delete(r.Context(), subject, mux.Vars(r)["id"]); err != nil {
		writeError(w, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAccessSummary handles GET /api/v1/access/summary
func (s *Server) handleAccessSummary(w http.ResponseWriter, r *http.Request) {
	subject, _ := SubjectFrom(r.Context())
	writeJSONResponse(w, rbac.SummaryFor(subject), http.StatusOK)
}

// handleQuotaStatus handles GET /api/v1/quota
func (s *Server) handleQuotaStatus(w http.ResponseWriter, r *http.Request) {
	if s.limiter == nil {
		writeJSONResponse(w, map[string]interface{}{"enabled": false}, http.StatusOK)
		return
	}
	subject, _ := SubjectFrom(r.Context())
	d, err := s.limiter.Status(r.Context(), subject)
	if err != nil {
		writeError(w, gerror.Wrap(gerror.KindInternal, err, "quota status unavailable"), nil)
		return
	}
	writeJSONResponse(w, map[string]interface{}{
		"enabled": true,
		"window":  s.limiter.Window().String(),
		"quota":   d,
	}, http.StatusOK)
}

// handleQuotaReset handles DELETE /api/v1/quota/{subject_id}
func (s *Server) handleQuotaReset(w http.ResponseWriter, r *http.Request) {
	subject, _ := SubjectFrom(r.Context())
	if !rbac.CanManageUsers(subject) {
		writeError(w, gerror.Errorf(gerror.KindPermissionDenied, "role %s may not reset quotas", subject.Role), nil)
		return
	}
	if s.limiter == nil {
		writeJSONError(w, "execution quotas are disabled", http.StatusNotFound)
		return
	}
	if err := s.limiter.Reset(r.Context(), mux.Vars(r)["subject_id"]); err != nil {
		writeError(w, gerror.Wrap(gerror.KindInternal, err, "quota reset failed"), nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type detectRequest struct {
	Text string `json:"text"`
}

// handlePIIDetect handles POST /api/v1/pii/detect
func (s *Server) handlePIIDetect(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err, nil)
		return
	}
	redactor := s.pipeline.Redactor()
	matches := redactor.Detect(req.Text)
	if matches == nil {
		matches = []pii.Match{}
	}
	writeJSONResponse(w, map[string]interface{}{
		"matches":     matches,
		"masked_text": redactor.MaskText(req.Text),
	}, http.StatusOK)
}

type maskRequest struct {
	Data        any                 `json:"data"`
	ColumnHints map[string]pii.Type `json:"column_hints"`
}

// handlePIIMask handles POST /api/v1/pii/mask
func (s *Server) handlePIIMask(w http.ResponseWriter, r *http.Request) {
	var req maskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err, nil)
		return
	}
	for col, t := range req.ColumnHints {
		if !t.IsValid() {
			writeError(w, gerror.Errorf(gerror.KindParse, "invalid PII type %q for column %s", t, col), nil)
			return
		}
	}
	writeJSONResponse(w, map[string]interface{}{
		"data": s.pipeline.Redactor().MaskValue(req.Data, req.ColumnHints),
	}, http.StatusOK)
}

type reportRequest struct {
	Rows []map[string]any `json:"rows"`
}

// handlePIIReport handles POST /api/v1/pii/report
// Sample values are returned masked.
func (s *Server) handlePIIReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err, nil)
		return
	}
	redactor := s.pipeline.Redactor()
	report := redactor.ComplianceReport(req.Rows)
	for i, f := range report.PIIFieldsFound {
		masked := redactor.MaskByType(f.SampleValue, f.Type)
		if masked == f.SampleValue {
			masked = pii.GenericMask(f.SampleValue)
		}
		report.PIIFieldsFound[i].SampleValue = masked
	}
	writeJSONResponse(w, report, http.StatusOK)
}

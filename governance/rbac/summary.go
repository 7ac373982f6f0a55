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

package rbac

// AccessContext is a request's access scope, checked by ValidateAccessContext.
type AccessContext struct {
	SubjectID  string
	Role       Role
	DatabaseID string
	Schema     string
	Table      string
	ResourceID string
	ClientIP   string
}

// ValidateAccessContext reports whether ctx names a subject and, when a
// database or schema is set, whether the role may use them.
func ValidateAccessContext(ctx AccessContext) bool {
	if ctx.SubjectID == "" {
		return false
	}
	s := Subject{ID: ctx.SubjectID, Role: ctx.Role, Active: true}
	if ctx.DatabaseID != "" && !s.Has(PermExecuteSelectQueries) {
		return false
	}
	if ctx.Schema != "" && !CanAccessSchema(s, ctx.Schema) {
		return false
	}
	return true
}

// Summary is a snapshot of everything a subject can do.
type Summary struct {
	SubjectID            string            `json:"user_id"`
	Role                 Role              `json:"role"`
	Active               bool              `json:"is_active"`
	Permissions          []Permission      `json:"permissions"`
	DatabaseAccess       DatabaseAccess    `json:"database_access"`
	SchemaAccess         []string          `json:"schema_access"`
	QueryRestrictions    QueryRestrictions `json:"query_restrictions"`
	CanExecuteQueries    bool              `json:"can_execute_queries"`
	CanManageUsers       bool              `json:"can_manage_users"`
	CanApproveTemplates  bool              `json:"can_approve_templates"`
	CanViewAllAuditLogs  bool              `json:"can_view_all_audit_logs"`
	CanConfigurePolicies bool              `json:"can_configure_policies"`
}

// SummaryFor builds the access summary of s.
func SummaryFor(s Subject) Summary {
	return Summary{
		SubjectID:            s.ID,
		Role:                 s.Role,
		Active:               s.Active,
		Permissions:          EffectivePermissions(s.Role),
		DatabaseAccess:       DatabaseAccessFor(s.Role),
		SchemaAccess:         SchemasFor(s.Role),
		QueryRestrictions:    QueryRestrictionsFor(s),
		CanExecuteQueries:    CanExecute(s, nil),
		CanManageUsers:       CanManageUsers(s),
		CanApproveTemplates:  CanApproveTemplate(s),
		CanViewAllAuditLogs:  CanViewAllAuditLogs(s),
		CanConfigurePolicies: CanConfigurePolicies(s),
	}
}

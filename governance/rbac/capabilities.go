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

// TemplateStatus is the approval state of a SQL template.
type TemplateStatus string

const (
	TemplateDraft           TemplateStatus = "DRAFT"
	TemplatePendingApproval TemplateStatus = "PENDING_APPROVAL"
	TemplateApproved        TemplateStatus = "APPROVED"
	TemplateRejected        TemplateStatus = "REJECTED"
)

// CanCreateTemplate reports whether s may author templates.
func CanCreateTemplate(s Subject) bool {
	return s.Has(PermCreateTemplates)
}

// CanUpdateTemplate allows the template's creator, or anyone holding update_templates.
func CanUpdateTemplate(s Subject, creatorID string) bool {
	if !s.Active {
		return false
	}
	if s.ID != "" && s.ID == creatorID {
		return true
	}
	return s.Has(PermUpdateTemplates)
}

// CanDeleteTemplate allows the template's creator, or anyone holding delete_templates.
func CanDeleteTemplate(s Subject, creatorID string) bool {
	if !s.Active {
		return false
	}
	if s.ID != "" && s.ID == creatorID {
		return true
	}
	return s.Has(PermDeleteTemplates)
}

// CanExecuteTemplate reports whether s may run a template. Only approved
// templates can run.
func CanExecuteTemplate(s Subject, status TemplateStatus) bool {
	if status != TemplateApproved {
		return false
	}
	return s.Has(PermExecuteApprovedTemplates)
}

func CanApproveTemplate(s Subject) bool { return s.Has(PermApproveTemplates) }

func CanViewApprovals(s Subject) bool { return s.Has(PermViewApprovalQueue) }

func CanManageUsers(s Subject) bool { return s.Has(PermManageUsers) }

func CanCreateUser(s Subject) bool { return s.Has(PermCreateUsers) }

func CanUpdateUser(s Subject) bool { return s.Has(PermUpdateUsers) }

func CanDeleteUser(s Subject) bool { return s.Has(PermDeleteUsers) }

// CanViewAuditLogs reports whether s may read the audit logs of targetID.
// Subjects reading their own logs need view_own_audit_logs; anything else
// needs view_all_audit_logs.
func CanViewAuditLogs(s Subject, targetID string) bool {
	if !s.Active {
		return false
	}
	if targetID != "" && targetID == s.ID {
		return s.Has(PermViewOwnAuditLogs)
	}
	return s.Has(PermViewAllAuditLogs)
}

func CanViewAllAuditLogs(s Subject) bool { return s.Has(PermViewAllAuditLogs) }

func CanExportAuditLogs(s Subject) bool { return s.Has(PermExportAuditLogs) }

// CanConfigurePolicies gates creating, changing and deleting security policies.
func CanConfigurePolicies(s Subject) bool { return s.Has(PermConfigureSecurityPolicies) }

// CanViewPolicies gates listing security policies.
func CanViewPolicies(s Subject) bool { return s.Has(PermViewSecurityPolicies) }

func CanManageDatabaseConnections(s Subject) bool { return s.Has(PermManageDatabaseConnections) }

func CanViewSystemStatistics(s Subject) bool { return s.Has(PermViewSystemStatistics) }

func CanPerformSystemAdministration(s Subject) bool { return s.Has(PermSystemAdministration) }

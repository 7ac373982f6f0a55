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

import "sort"

// Permission is an opaque capability tag.
type Permission string

// Query execution
const (
	PermExecuteSelectQueries     Permission = "execute_select_queries"
	PermExecuteApprovedTemplates Permission = "execute_approved_templates"
	PermExecuteDDLStatements     Permission = "execute_ddl_statements"
	PermExecuteDMLStatements     Permission = "execute_dml_statements"
)

// Templates and approvals
const (
	PermCreateTemplates       Permission = "create_templates"
	PermUpdateTemplates       Permission = "update_templates"
	PermDeleteTemplates       Permission = "delete_templates"
	PermViewAllTemplates      Permission = "view_all_templates"
	PermViewApprovedTemplates Permission = "view_approved_templates"
	PermApproveTemplates      Permission = "approve_templates"
	PermViewApprovalQueue     Permission = "view_approval_queue"
	PermSubmitForApproval     Permission = "submit_for_approval"
)

// Users
const (
	PermManageUsers  Permission = "manage_users"
	PermCreateUsers  Permission = "create_users"
	PermUpdateUsers  Permission = "update_users"
	PermDeleteUsers  Permission = "delete_users"
	PermViewAllUsers Permission = "view_all_users"
)

// Database connections
const (
	PermManageDatabaseConnections Permission = "manage_database_connections"
	PermCreateDatabaseConnections Permission = "create_database_connections"
	PermUpdateDatabaseConnections Permission = "update_database_connections"
	PermDeleteDatabaseConnections Permission = "delete_database_connections"
	PermTestDatabaseConnections   Permission = "test_database_connections"
)

// Security policies
const (
	PermConfigureSecurityPolicies Permission = "configure_security_policies"
	PermViewSecurityPolicies      Permission = "view_security_policies"
	PermManageSecurityPolicies    Permission = "manage_security_policies"
)

// Audit and monitoring
const (
	PermViewAllAuditLogs     Permission = "view_all_audit_logs"
	PermViewOwnAuditLogs     Permission = "view_own_audit_logs"
	PermExportAuditLogs      Permission = "export_audit_logs"
	PermViewSystemStatistics Permission = "view_system_statistics"
)

// System administration
const (
	PermSystemAdministration Permission = "system_administration"
	PermConfigureSystem      Permission = "configure_system"
	PermViewSystemHealth     Permission = "view_system_health"
)

// AllPermissions returns the full permission vocabulary.
func AllPermissions() []Permission {
	return []Permission{
		PermExecuteSelectQueries, PermExecuteApprovedTemplates, PermExecuteDDLStatements, PermExecuteDMLStatements,
		PermCreateTemplates, PermUpdateTemplates, PermDeleteTemplates, PermViewAllTemplates, PermViewApprovedTemplates,
		PermApproveTemplates, PermViewApprovalQueue, PermSubmitForApproval,
		PermManageUsers, PermCreateUsers, PermUpdateUsers, PermDeleteUsers, PermViewAllUsers,
		PermManageDatabaseConnections, PermCreateDatabaseConnections, PermUpdateDatabaseConnections,
		PermDeleteDatabaseConnections, PermTestDatabaseConnections,
		PermConfigureSecurityPolicies, PermViewSecurityPolicies, PermManageSecurityPolicies,
		PermViewAllAuditLogs, PermViewOwnAuditLogs, PermExportAuditLogs, PermViewSystemStatistics,
		PermSystemAdministration, PermConfigureSystem, PermViewSystemHealth,
	}
}

var declaredPermissions = map[Role][]Permission{
	RoleViewer: {
		PermExecuteSelectQueries,
		PermViewApprovedTemplates,
		PermViewOwnAuditLogs,
	},
	RoleOperator: {
		PermExecuteSelectQueries,
		PermExecuteApprovedTemplates,
		PermViewApprovedTemplates,
		PermViewOwnAuditLogs,
		PermSubmitForApproval,
	},
	RoleApprover: {
		PermExecuteSelectQueries,
		PermExecuteApprovedTemplates,
		PermViewAllTemplates,
		PermApproveTemplates,
		PermViewApprovalQueue,
		PermViewAllAuditLogs,
		PermViewSystemStatistics,
	},
	RoleAdmin: AllPermissions(),
}

// effective is computed once from the declared lists and the inheritance
// edges; it is never written after init.
var effective = buildEffective()

func buildEffective() map[Role]map[Permission]bool {
	out := make(map[Role]map[Permission]bool, len(declaredPermissions))
	for _, role := range Roles() {
		set := make(map[Permission]bool)
		for _, p := range declaredPermissions[role] {
			set[p] = true
		}
		for _, parent := range inheritance[role] {
			for _, p := range declaredPermissions[parent] {
				set[p] = true
			}
		}
		out[role] = set
	}
	return out
}

// DeclaredPermissions returns the permissions listed for role itself,
// without inheritance.
func DeclaredPermissions(role Role) []Permission {
	return append([]Permission(nil), declaredPermissions[role]...)
}

// EffectivePermissions returns the declared permissions of role unioned with
// those of every role it inherits from, sorted by name.
func EffectivePermissions(role Role) []Permission {
	set := effective[role]
	out := make([]Permission, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// HasPermission reports whether role holds p, directly or by inheritance.
func HasPermission(role Role, p Permission) bool {
	return effective[role][p]
}

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

import (
	"fmt"
	"strings"
)

// Subject is the identity a statement is evaluated for.
type Subject struct {
	ID     string `json:"id"`
	Role   Role   `json:"role"`
	Active bool   `json:"active"`
}

// Has reports whether s is active and holds p.
func (s Subject) Has(p Permission) bool {
	return s.Active && HasPermission(s.Role, p)
}

// Statement is the part of a statement classification the access model needs.
type Statement interface {
	ContainsDDL() bool
	ContainsDML() bool
}

// CanExecute reports whether s may run stmt. Any statement needs
// execute_select_queries; DDL and DML additionally need their own permission.
func CanExecute(s Subject, stmt Statement) bool {
	if !s.Has(PermExecuteSelectQueries) {
		return false
	}
	if stmt == nil {
		return true
	}
	if stmt.ContainsDDL() && !s.Has(PermExecuteDDLStatements) {
		return false
	}
	if stmt.ContainsDML() && !s.Has(PermExecuteDMLStatements) {
		return false
	}
	return true
}

// ConnectionType classifies a managed database.
type ConnectionType string

const (
	ConnectionProduction  ConnectionType = "PRODUCTION"
	ConnectionStaging     ConnectionType = "STAGING"
	ConnectionDevelopment ConnectionType = "DEVELOPMENT"
	ConnectionAudit       ConnectionType = "AUDIT"
)

// ParseConnectionType parses a connection type name, ignoring case.
func ParseConnectionType(s string) (ConnectionType, error) {
	ct := ConnectionType(strings.ToUpper(strings.TrimSpace(s)))
	switch ct {
	case ConnectionProduction, ConnectionStaging, ConnectionDevelopment, ConnectionAudit:
		return ct, nil
	default:
		return "", fmt.Errorf("invalid connection type: %q", s)
	}
}

// DatabaseAccess describes which databases a role may connect to.
type DatabaseAccess struct {
	AllowedTypes   []ConnectionType `json:"allowed_types"`
	ReadOnly       bool             `json:"read_only"`
	MaxConnections int              `json:"max_connections"`
}

var databaseAccess = map[Role]DatabaseAccess{
	RoleViewer: {
		AllowedTypes:   []ConnectionType{ConnectionProduction, ConnectionStaging},
		ReadOnly:       true,
		MaxConnections: 5,
	},
	RoleOperator: {
		AllowedTypes:   []ConnectionType{ConnectionProduction, ConnectionStaging},
		ReadOnly:       true,
		MaxConnections: 10,
	},
	RoleApprover: {
		AllowedTypes:   []ConnectionType{ConnectionProduction, ConnectionStaging, ConnectionDevelopment},
		MaxConnections: 15,
	},
	RoleAdmin: {
		AllowedTypes:   []ConnectionType{ConnectionProduction, ConnectionStaging, ConnectionDevelopment, ConnectionAudit},
		MaxConnections: 50,
	},
}

var schemaAccess = map[Role][]string{
	RoleViewer:   {"public"},
	RoleOperator: {"public"},
	RoleApprover: {"public", "staging"},
	RoleAdmin:    {"public", "staging", "admin", "audit"},
}

// DatabaseAccessFor returns the database restrictions of role. Unknown roles
// get the zero value, which allows nothing.
func DatabaseAccessFor(role Role) DatabaseAccess {
	da := databaseAccess[role]
	da.AllowedTypes = append([]ConnectionType(nil), da.AllowedTypes...)
	return da
}

// SchemasFor returns the schemas role may access.
func SchemasFor(role Role) []string {
	return append([]string(nil), schemaAccess[role]...)
}

// ExecutionQuota returns how many executions role may have in one quota window.
func ExecutionQuota(role Role) int {
	return databaseAccess[role].MaxConnections
}

// CanAccessDatabase reports whether s may use a database of type ct.
func CanAccessDatabase(s Subject, ct ConnectionType) bool {
	if !s.Active {
		return false
	}
	for _, allowed := range databaseAccess[s.Role].AllowedTypes {
		if allowed == ct {
			return true
		}
	}
	return false
}

// CanAccessSchema reports whether s may use schema. Matching ignores case.
func CanAccessSchema(s Subject, schema string) bool {
	if !s.Active {
		return false
	}
	schema = strings.ToLower(strings.TrimSpace(schema))
	for _, allowed := range schemaAccess[s.Role] {
		if allowed == schema {
			return true
		}
	}
	return false
}

// QueryRestrictions are the per-role execution defaults used when no policy
// overrides them.
type QueryRestrictions struct {
	MaxExecutionTimeSeconds int      `json:"max_execution_time"`
	MaxRows                 int      `json:"max_rows"`
	AutoLimit               bool     `json:"auto_limit"`
	AllowedOperations       []string `json:"allowed_operations"`
}

// QueryRestrictionsFor returns the restrictions for the role of s.
func QueryRestrictionsFor(s Subject) QueryRestrictions {
	r := QueryRestrictions{
		MaxExecutionTimeSeconds: 30,
		MaxRows:                 1000,
		AutoLimit:               true,
		AllowedOperations:       []string{"SELECT"},
	}

	switch s.Role {
	case RoleOperator:
		r.MaxExecutionTimeSeconds = 60
		r.MaxRows = 5000
	case RoleApprover:
		r.MaxExecutionTimeSeconds = 120
		r.MaxRows = 10000
		r.AllowedOperations = []string{"SELECT", "INSERT", "UPDATE", "DELETE"}
	case RoleAdmin:
		r.MaxExecutionTimeSeconds = 300
		r.MaxRows = 50000
		r.AllowedOperations = []string{"SELECT", "INSERT", "UPDATE", "DELETE", "CREATE", "DROP", "ALTER"}
	}
	return r
}

// ResourceType names a kind of resource for CheckResourceAccess.
type ResourceType string

const (
	ResourceTemplate ResourceType = "template"
	ResourceUser     ResourceType = "user"
	ResourceDatabase ResourceType = "database"
	ResourceAuditLog ResourceType = "audit_log"
)

// CheckResourceAccess reports whether s may access a resource. Subjects
// always reach their own user record; audit logs they own need
// view_own_audit_logs. Everything else needs the matching "view all"
// permission. Unknown resource types are denied.
func CheckResourceAccess(s Subject, rt ResourceType, resourceID string) bool {
	if !s.Active {
		return false
	}

	switch rt {
	case ResourceTemplate:
		return s.Has(PermViewAllTemplates)
	case ResourceUser:
		if resourceID == s.ID {
			return true
		}
		return s.Has(PermViewAllUsers)
	case ResourceDatabase:
		return s.Has(PermManageDatabaseConnections)
	case ResourceAuditLog:
		return CanViewAuditLogs(s, resourceID)
	default:
		return false
	}
}

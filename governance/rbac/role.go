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

// Role is a closed set of user roles, ordered by privilege.
type Role string

const (
	RoleViewer   Role = "VIEWER"
	RoleOperator Role = "OPERATOR"
	RoleApprover Role = "APPROVER"
	RoleAdmin    Role = "ADMIN"
)

// Roles returns every role from least to most privileged.
func Roles() []Role {
	return []Role{RoleViewer, RoleOperator, RoleApprover, RoleAdmin}
}

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	return r.Level() > 0
}

// Level returns the privilege rank of r, 1 for VIEWER through 4 for ADMIN,
// and 0 for an unknown role.
func (r Role) Level() int {
	switch r {
	case RoleViewer:
		return 1
	case RoleOperator:
		return 2
	case RoleApprover:
		return 3
	case RoleAdmin:
		return 4
	default:
		return 0
	}
}

func (r Role) String() string {
	return string(r)
}

// ParseRole parses a role name, ignoring case and surrounding whitespace.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", fmt.Errorf("invalid role: %q, valid roles are: VIEWER, OPERATOR, APPROVER, ADMIN", s)
	}
	return r, nil
}

// inheritance lists, for each role, the roles whose permissions it inherits.
var inheritance = map[Role][]Role{
	RoleViewer:   {},
	RoleOperator: {RoleViewer},
	RoleApprover: {RoleOperator, RoleViewer},
	RoleAdmin:    {RoleApprover, RoleOperator, RoleViewer},
}

// RoleHierarchy returns a copy of the inheritance edges.
func RoleHierarchy() map[Role][]Role {
	out := make(map[Role][]Role, len(inheritance))
	for role, parents := range inheritance {
		out[role] = append([]Role{}, parents...)
	}
	return out
}

// InheritsFrom reports whether role inherits the permissions of parent.
func InheritsFrom(role, parent Role) bool {
	for _, r := range inheritance[role] {
		if r == parent {
			return true
		}
	}
	return false
}

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

/*
Package rbac implements the role-based access model for sql-guard.

Roles form a closed, ordered set: VIEWER < OPERATOR < APPROVER < ADMIN. Each
role has a declared permission list fixed at compile time and a list of
roles it inherits from. Every check works on the effective permission set,
the declared list unioned with the declared lists of all inherited roles.

All checks are pure functions of a Subject and a target. Nothing is cached
between calls, so a role or activity change on the Subject takes effect on
the next check. An inactive Subject is denied every capability.

# Usage

	subject := rbac.Subject{ID: "u-17", Role: rbac.RoleOperator, Active: true}

	if !rbac.CanExecute(subject, classification) {
	    return gerror.New(gerror.KindPermissionDenied, "statement not permitted for role")
	}

	limits := rbac.QueryRestrictionsFor(subject)
*/
package rbac

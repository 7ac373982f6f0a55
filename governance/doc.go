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

// Package governance runs SQL statements through the query governance
// pipeline.
//
// A Pipeline combines the statement analyzer (sqlscan), role-based access
// control (rbac), execution quotas (quota), the policy engine (policy) and
// the PII redactor (pii). Check stops after the rewrite; Execute also runs
// the statement through an Executor and masks the returned rows.
//
// Every request produces one AuditEvent. Statements in audit events and log
// lines are always the PII-masked form.
//
// Configuration is read from the environment and an optional YAML file with
// LoadConfig.
package governance

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

// Package api serves the governance pipeline over HTTP.
//
// API Endpoints:
//   - GET    /health                       - Liveness and policy snapshot version
//   - GET    /metrics                      - Prometheus metrics
//   - POST   /api/v1/governance/check      - Govern a statement without running it
//   - POST   /api/v1/governance/execute    - Govern, run and mask a statement
//   - GET    /api/v1/policies              - List policies with filtering
//   - POST   /api/v1/policies              - Create a policy
//   - GET    /api/v1/policies/types        - Describe policy types
//   - GET    /api/v1/policies/stats        - Snapshot statistics
//   - POST   /api/v1/policies/evaluate     - Evaluate policies for a statement
//   - GET    /api/v1/policies/{id}         - Get a policy
//   - PUT    /api/v1/policies/{id}         - Update a policy
//   - DELETE /api/v1/policies/{id}         - Delete a policy
//   - GET    /api/v1/access/summary        - Caller's effective access
//   - GET    /api/v1/quota                 - Caller's execution quota
//   - DELETE /api/v1/quota/{subject_id}    - Reset a subject's quota
//   - POST   /api/v1/pii/detect            - Detect PII in text
//   - POST   /api/v1/pii/mask              - Mask a JSON document
//   - POST   /api/v1/pii/report            - PII compliance report for rows
//
// Every /api/v1 route requires an HS256 bearer token whose "sub" claim is the
// subject ID and whose "role" claim is one of the RBAC roles.
package api

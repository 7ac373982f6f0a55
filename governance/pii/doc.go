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

// Package pii detects and masks personally identifiable information in SQL
// text, decoded result rows and audit payloads.
//
// Free text is scanned with a catalog of regex patterns, one per Type, each
// carrying a fixed literal mask. Masking applies the patterns in catalog
// order, and no mask contains a digit, so masked text never matches again.
// Structured values are walked recursively; a column can be forced to a type
// through hints, or masked outright by a ColumnRule derived from a
// PII_MASKING policy.
//
// Column names are classified with substring heuristics (ColumnTypes,
// IsLikelyPII), which also drive ComplianceReport.
package pii

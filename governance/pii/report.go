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

package pii

import (
	"fmt"
	"math"
	"sort"
)

// Stats summarizes the difference between an original and a masked record.
type Stats struct {
	TotalFields     int          `json:"total_fields"`
	MaskedFields    int          `json:"masked_fields"`
	PIIDetected     int          `json:"pii_detected"`
	PatternsMatched map[Type]int `json:"patterns_matched"`
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.TotalFields += o.TotalFields
	s.MaskedFields += o.MaskedFields
	s.PIIDetected += o.PIIDetected
	for t, n := range o.PatternsMatched {
		if s.PatternsMatched == nil {
			s.PatternsMatched = make(map[Type]int)
		}
		s.PatternsMatched[t] += n
	}
}

// Stats compares original and masked field by field. A field counts as
// masked when its rendered value changed; its original value is then
// scanned to attribute matches to types.
func (r *Redactor) Stats(original, masked map[string]any) Stats {
	stats := Stats{PatternsMatched: make(map[Type]int)}
	for key, value := range original {
		stats.TotalFields++
		after, ok := masked[key]
		if !ok {
			continue
		}
		before := fmt.Sprint(value)
		if before == fmt.Sprint(after) {
			continue
		}
		stats.MaskedFields++
		matches := r.Detect(before)
		stats.PIIDetected += len(matches)
		for _, m := range matches {
			stats.PatternsMatched[m.Type]++
		}
	}
	return stats
}

// RowStats sums Stats over parallel slices of original and masked rows.
func (r *Redactor) RowStats(original, masked []map[string]any) Stats {
	total := Stats{PatternsMatched: make(map[Type]int)}
	for i := range original {
		if i >= len(masked) {
			break
		}
		total.Add(r.Stats(original[i], masked[i]))
	}
	return total
}

// auditFields are the audit payload fields that may carry PII.
var auditFields = []string{"user_agent", "ip_address", "details"}

// MaskAuditLog returns a copy of an audit payload with user_agent,
// ip_address and details masked. A structured details value is masked
// recursively.
func (r *Redactor) MaskAuditLog(entry map[string]any) map[string]any {
	if entry == nil {
		return nil
	}
	out := make(map[string]any, len(entry))
	for k, v := range entry {
		out[k] = v
	}
	for _, field := range auditFields {
		switch v := out[field].(type) {
		case string:
			out[field] = r.MaskText(v)
		case map[string]any:
			if field == "details" {
				out[field] = r.MaskValue(v, nil)
			}
		}
	}
	return out
}

// IsLikelyPII reports whether column names a PII column or sample contains a
// PII value.
func (r *Redactor) IsLikelyPII(column, sample string) bool {
	if len(ColumnTypesFor(column)) > 0 {
		return true
	}
	return sample != "" && len(r.Detect(sample)) > 0
}

// FieldFinding is a column flagged by ComplianceReport.
type FieldFinding struct {
	Field       string `json:"field"`
	Type        Type   `json:"pii_type"`
	SampleValue string `json:"sample_value"`
}

// ComplianceReport summarizes PII exposure in a result set.
type ComplianceReport struct {
	TotalRecords    int            `json:"total_records"`
	PIIFieldsFound  []FieldFinding `json:"pii_fields_found"`
	ComplianceScore float64        `json:"compliance_score"`
	Recommendations []string       `json:"recommendations"`
}

const sampleLength = 50

// ComplianceReport inspects the string fields of the first row. The score is
// one minus the share of flagged fields in that row; an empty result set
// scores 0.
func (r *Redactor) ComplianceReport(rows []map[string]any) ComplianceReport {
	report := ComplianceReport{
		TotalRecords:    len(rows),
		PIIFieldsFound:  []FieldFinding{},
		Recommendations: []string{},
	}
	if len(rows) == 0 {
		return report
	}

	sample := rows[0]
	fields := make([]string, 0, len(sample))
	for k := range sample {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	for _, field := range fields {
		value, ok := sample[field].(string)
		if !ok || !r.IsLikelyPII(field, value) {
			continue
		}
		report.PIIFieldsFound = append(report.PIIFieldsFound, FieldFinding{
			Field:       field,
			Type:        r.likelyType(field, value),
			SampleValue: truncate(value, sampleLength),
		})
	}

	if len(sample) > 0 {
		ratio := float64(len(report.PIIFieldsFound)) / float64(len(sample))
		report.ComplianceScore = round4(math.Max(0, 1-ratio))
	} else {
		report.ComplianceScore = 1
	}

	if len(report.PIIFieldsFound) > 0 {
		report.Recommendations = append(report.Recommendations,
			"Consider masking PII fields in query results",
			"Review data access permissions for sensitive fields",
		)
	}
	return report
}

func (r *Redactor) likelyType(field, value string) Type {
	if types := ColumnTypesFor(field); len(types) > 0 {
		return types[0]
	}
	if matches := r.Detect(value); len(matches) > 0 {
		return matches[0].Type
	}
	return ""
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

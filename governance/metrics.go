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

package governance

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	Decisions          *prometheus.CounterVec
	Duration           *prometheus.HistogramVec
	RiskScore          prometheus.Histogram
	InjectionDetected  *prometheus.CounterVec
	MaskedFields       *prometheus.CounterVec
	PolicyVersion      prometheus.Gauge
	ExecutedStatements *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// uses prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sqlguard_decisions_total",
				Help: "Total number of governance decisions",
			},
			[]string{"action", "outcome", "kind"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sqlguard_decision_duration_milliseconds",
				Help:    "Governance decision duration in milliseconds",
				Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200, 500},
			},
			[]string{"action"},
		),
		RiskScore: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sqlguard_risk_score",
				Help:    "Risk score of evaluated statements",
				Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
			},
		),
		InjectionDetected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sqlguard_injection_detections_total",
				Help: "Total number of injection families matched in statements",
			},
			[]string{"kind", "blocked"},
		),
		MaskedFields: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sqlguard_pii_masked_fields_total",
				Help: "Total number of PII matches masked in result rows",
			},
			[]string{"type"},
		),
		PolicyVersion: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sqlguard_policy_snapshot_version",
				Help: "Version of the policy snapshot used by the last decision",
			},
		),
		ExecutedStatements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sqlguard_executed_statements_total",
				Help: "Total number of statements sent to the database",
			},
			[]string{"status"},
		),
	}

	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.Decisions,
		m.Duration,
		m.RiskScore,
		m.InjectionDetected,
		m.MaskedFields,
		m.PolicyVersion,
		m.ExecutedStatements,
	)
	return m
}

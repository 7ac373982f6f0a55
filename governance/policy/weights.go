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

package policy

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
)

// EnvRiskWeights overrides risk weights, e.g. "BLOCK_DDL=0.8,MAX_ROWS=0.2".
const EnvRiskWeights = "SQLGUARD_RISK_WEIGHTS"

// RiskWeights is the risk each policy type adds when it produces a finding.
type RiskWeights map[PolicyType]float64

// DefaultRiskWeights returns the built-in weights.
func DefaultRiskWeights() RiskWeights {
	return RiskWeights{
		TypeStatementTimeout:      0.1,
		TypeMaxRows:               0.2,
		TypeAutoLimit:             0,
		TypeBlockDDL:              0.8,
		TypeBlockDML:              0.6,
		TypeBlockDCL:              0.8,
		TypeRequireWhereClause:    0.9,
		TypeBlockSensitiveTables:  0.7,
		TypeBlockSensitiveColumns: 0.7,
		TypePIIMasking:            0,
		TypeQueryComplexityLimit:  0.5,
		TypeConnectionLimit:       0.1,
		TypeIPWhitelist:           0.9,
		TypeIPBlacklist:           0.9,
		TypeTimeRestriction:       0.5,
		TypeSchemaAccess:          0.7,
		TypeTableAccess:           0.7,
	}
}

// Weight returns the weight of t, 0 when unset.
func (w RiskWeights) Weight(t PolicyType) float64 {
	return w[t]
}

// ParseRiskWeights applies "TYPE=weight" pairs separated by commas on top of
// the defaults. Weights must lie in [0, 1].
func ParseRiskWeights(s string) (RiskWeights, error) {
	w := DefaultRiskWeights()
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, val, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid risk weight %q, expected TYPE=weight", pair)
		}
		t, err := ParsePolicyType(name)
		if err != nil {
			return nil, err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil || f < 0 || f > 1 {
			return nil, fmt.Errorf("invalid risk weight for %s: %q must be a number in [0, 1]", t, val)
		}
		w[t] = f
	}
	return w, nil
}

// RiskWeightsFromEnv reads EnvRiskWeights. Invalid values are logged and the
// defaults are used.
func RiskWeightsFromEnv() RiskWeights {
	s := os.Getenv(EnvRiskWeights)
	if s == "" {
		return DefaultRiskWeights()
	}
	w, err := ParseRiskWeights(s)
	if err != nil {
		log.Printf("[policy] WARNING: Invalid %s=%q (%v), using defaults", EnvRiskWeights, s, err)
		return DefaultRiskWeights()
	}
	return w
}

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
Package policy holds security policies and the engine that evaluates them
against a classified statement.

A Policy pairs a PolicyType with a typed Value. Values are decoded and
validated once, at construction or when read from storage, so the engine
never re-parses configuration.

# Snapshots

The Store publishes immutable Snapshots. A request takes one snapshot and
evaluates against it; writers publish a replacement without disturbing
in-flight evaluations.

	store := policy.NewStore(policy.DefaultPolicies())
	engine := policy.NewEngine()

	result := engine.Evaluate(store.Snapshot(), classification, policy.EvalContext{
	    Subject:    subject,
	    DatabaseID: "orders",
	    At:         time.Now(),
	})
	if !result.Allowed {
	    return gerror.PolicyViolation(result.Violations)
	}

# Evaluation

Applicable policies are active, enforced and match the subject, database,
schema or referenced tables. They run CRITICAL first; within a priority the
snapshot order is kept. Violations block, warnings do not. Modifications
from higher priority policies win on key collisions. The risk score is the
sum of the weights of policies that produced a finding, capped at 1.

# Persistence

Repository stores policies in PostgreSQL or MySQL. MemoryRepository serves
the same role without a database. Policy files in YAML can be loaded with
LoadFile or refreshed through FileSource.
*/
package policy

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

// Stats summarizes a policy set.
type Stats struct {
	Total    int                `json:"total_policies"`
	Active   int                `json:"active_policies"`
	Enforced int                `json:"enforced_policies"`
	ByType   map[PolicyType]int `json:"policies_by_type"`
	ByTarget map[Target]int     `json:"policies_by_target"`
	Version  uint64             `json:"snapshot_version"`
}

// ComputeStats counts the policies of snap by state, type and target.
func ComputeStats(snap *Snapshot) Stats {
	st := Stats{
		ByType:   make(map[PolicyType]int),
		ByTarget: make(map[Target]int),
		Version:  snap.Version(),
	}
	if snap == nil {
		return st
	}
	for _, p := range snap.policies {
		st.Total++
		if p.Active {
			st.Active++
		}
		if p.Enforced {
			st.Enforced++
		}
		st.ByType[p.Type]++
		st.ByTarget[p.AppliesTo]++
	}
	return st
}

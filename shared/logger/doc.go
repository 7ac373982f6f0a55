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
Package logger provides structured JSON logging for sql-guard components.

Each entry is a single JSON line carrying the timestamp, level, component,
instance and container, plus the subject and request the entry belongs to.

# Usage

	log := logger.New("policy-engine")

	log.Info("user-42", "req-7", "Policy evaluated", map[string]interface{}{
	    "allowed":    false,
	    "risk_score": 0.8,
	})

	log.ErrorWithCode("user-42", "req-7", "Policy store refresh failed", 500, err, nil)

Statement text must be masked before it is passed in fields; the pipeline
does this with the PII redactor.

# Environment Variables

  - INSTANCE_ID: deployment instance identifier
  - LOG_LEVEL: DEBUG, INFO, WARN or ERROR (default INFO)

Logger instances are safe for concurrent use.
*/
package logger

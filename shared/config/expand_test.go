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

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("SQLGUARD_TEST_HOST", "db.internal")
	t.Setenv("SQLGUARD_TEST_EMPTY", "")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"braced", "host: ${SQLGUARD_TEST_HOST}", "host: db.internal"},
		{"bare", "host: $SQLGUARD_TEST_HOST", "host: db.internal"},
		{"default used", "port: ${SQLGUARD_TEST_PORT:-5432}", "port: 5432"},
		{"default ignored", "host: ${SQLGUARD_TEST_HOST:-localhost}", "host: db.internal"},
		{"empty uses default", "x: ${SQLGUARD_TEST_EMPTY:-fallback}", "x: fallback"},
		{"undefined", "x: ${SQLGUARD_TEST_UNDEFINED}", "x: "},
		{"no refs", "plain text", "plain text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandEnvVars(tt.input))
		})
	}
}

func TestGetenv(t *testing.T) {
	t.Setenv("SQLGUARD_TEST_SET", "value")
	assert.Equal(t, "value", Getenv("SQLGUARD_TEST_SET", "fallback"))
	assert.Equal(t, "fallback", Getenv("SQLGUARD_TEST_UNSET", "fallback"))
}

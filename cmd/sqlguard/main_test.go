package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tduhfajd/sql-guard/governance/api"
	"github.com/tduhfajd/sql-guard/governance/policy"
	"github.com/tduhfajd/sql-guard/governance/rbac"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATABASE_URL", "SQLGUARD_TARGET_DSN", "SQLGUARD_CONFIG", "SQLGUARD_POLICY_FILE",
		"SQLGUARD_RISK_WEIGHTS", "REDIS_URL", "JWT_SECRET", "SQLGUARD_PII_SALT",
		"SQLGUARD_PII_TYPES", "SQLGUARD_DETECTOR_MODE", "SQLGUARD_INJECTION_MODE",
	} {
		t.Setenv(key, "")
	}
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func decode(t *testing.T, out string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &m), out)
	return m
}

func TestAnalyze(t *testing.T) {
	isolateEnv(t)
	out, err := run(t, "", "analyze", "SELECT id FROM users WHERE id = :id", "--params", `{"id": 1, "extra": 2}`)
	require.NoError(t, err)

	m := decode(t, out)
	cls := m["classification"].(map[string]any)
	assert.Equal(t, "SELECT", cls["statement_kind"])
	assert.Equal(t, []any{"users"}, cls["referenced_tables"])
	params := m["parameters"].(map[string]any)
	assert.Equal(t, []any{"extra"}, params["unused"])
}

func TestAnalyzeReadsStdin(t *testing.T) {
	isolateEnv(t)
	out, err := run(t, "DROP TABLE users\n", "analyze")
	require.NoError(t, err)
	cls := decode(t, out)["classification"].(map[string]any)
	assert.Equal(t, true, cls["has_ddl"])
}

func TestAnalyzeParseError(t *testing.T) {
	isolateEnv(t)
	_, err := run(t, "", "analyze", "SELECT (1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unbalanced parentheses")
}

func TestCheck(t *testing.T) {
	isolateEnv(t)
	t.Run("allowed select is rewritten", func(t *testing.T) {
		out, err := run(t, "", "check", "SELECT * FROM orders;", "--role", "VIEWER")
		require.NoError(t, err)
		m := decode(t, out)
		assert.Equal(t, true, m["allowed"])
		assert.Equal(t, "SELECT * FROM orders LIMIT 1000", m["statement"])
	})

	t.Run("viewer DDL is rejected", func(t *testing.T) {
		out, err := run(t, "", "check", "DROP TABLE orders", "--role", "VIEWER")
		require.Error(t, err)
		assert.Equal(t, false, decode(t, out)["allowed"])
	})

	t.Run("unknown role", func(t *testing.T) {
		_, err := run(t, "", "check", "SELECT 1", "--role", "ROOT")
		require.Error(t, err)
	})
}

func TestExecuteRequiresTarget(t *testing.T) {
	isolateEnv(t)
	_, err := run(t, "", "execute", "SELECT 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target database is not configured")
}

func TestRedact(t *testing.T) {
	isolateEnv(t)
	out, err := run(t, "", "redact", "mail alice@example.com now")
	require.NoError(t, err)
	assert.NotContains(t, out, "alice@example.com")
	assert.Contains(t, out, "***@***.com")

	out, err = run(t, "call 555-123-4567", "redact", "--detect", "--salt", "pepper")
	require.NoError(t, err)
	m := decode(t, out)
	matches := m["matches"].([]any)
	require.Len(t, matches, 1)
	match := matches[0].(map[string]any)
	assert.Equal(t, "PHONE", match["pii_type"])
	assert.NotEmpty(t, match["hash"])
	assert.NotContains(t, out, "555-123-4567")
}

func TestAccess(t *testing.T) {
	isolateEnv(t)
	out, err := run(t, "", "access", "--role", "APPROVER")
	require.NoError(t, err)
	m := decode(t, out)
	summary := m["summary"].(map[string]any)
	assert.Equal(t, "APPROVER", summary["role"])
	assert.EqualValues(t, rbac.ExecutionQuota(rbac.RoleApprover), m["execution_quota"])
}

func TestPolicyCommands(t *testing.T) {
	isolateEnv(t)
	out, err := run(t, "", "policy", "types")
	require.NoError(t, err)
	var types []policy.TypeInfo
	require.NoError(t, json.Unmarshal([]byte(out), &types))
	assert.Len(t, types, len(policy.Types()))

	out, err = run(t, "", "policy", "defaults")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "policies.yaml")
	require.NoError(t, os.WriteFile(path, []byte(out), 0o600))

	out, err = run(t, "", "policy", "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "7 policies OK")

	t.Setenv("SQLGUARD_POLICY_FILE", path)
	out, err = run(t, "", "policy", "export", "--format", "json")
	require.NoError(t, err)
	var exported []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &exported))
	assert.Len(t, exported, 7)

	_, err = run(t, "", "policy", "export", "--format", "xml")
	require.Error(t, err)
}

func TestPolicyValidateRejectsBadFile(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
version: "1"
policies:
  - name: broken
    policy_type: NOT_A_TYPE
    value: {}
`), 0o600))

	_, err := run(t, "", "policy", "validate", path)
	require.Error(t, err)
}

func TestToken(t *testing.T) {
	isolateEnv(t)
	t.Setenv("JWT_SECRET", "test-secret")

	out, err := run(t, "", "token", "--subject", "alice", "--role", "OPERATOR", "--ttl", "5m")
	require.NoError(t, err)

	auth, err := api.NewAuthenticator("test-secret", time.Hour)
	require.NoError(t, err)
	subject, err := auth.Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "alice", subject.ID)
	assert.Equal(t, rbac.RoleOperator, subject.Role)
}

func TestTokenRequiresSecret(t *testing.T) {
	isolateEnv(t)
	_, err := run(t, "", "token")
	require.Error(t, err)
}

func TestServeRequiresSecret(t *testing.T) {
	isolateEnv(t)
	_, err := run(t, "", "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secret")
}

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
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tduhfajd/sql-guard/governance/gerror"
	"github.com/tduhfajd/sql-guard/governance/policy"
)

func newMockExecutor(t *testing.T, dialect policy.Dialect) (*SQLExecutor, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLExecutor(db, dialect), mock
}

func TestSQLExecutor_QueryBindsAndTruncates(t *testing.T) {
	exec, mock := newMockExecutor(t, policy.PostgresDialect)

	mock.ExpectQuery("SELECT id, email FROM users WHERE org = $1 AND id > $2 LIMIT 1000").
		WithArgs("acme", 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).
			AddRow(int64(11), []byte("a@example.com")).
			AddRow(int64(12), []byte("b@example.com")).
			AddRow(int64(13), nil))

	rs, err := exec.Execute(context.Background(), Statement{
		SQL:     "SELECT id, email FROM users WHERE org = :org AND id > :min LIMIT 1000",
		Params:  map[string]any{"org": "acme", "min": 10},
		Query:   true,
		MaxRows: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "email"}, rs.Columns)
	require.Len(t, rs.Rows, 2)
	assert.Equal(t, "a@example.com", rs.Rows[0]["email"], "bytes are returned as strings")
	assert.Equal(t, int64(12), rs.Rows[1]["id"])
	assert.True(t, rs.Truncated)
	assert.Equal(t, int64(2), rs.RowsAffected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLExecutor_MySQLPlaceholders(t *testing.T) {
	exec, mock := newMockExecutor(t, policy.MySQLDialect)

	mock.ExpectQuery("SELECT name FROM users WHERE id = ? OR manager_id = ?").
		WithArgs(7, 7).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("alice"))

	rs, err := exec.Execute(context.Background(), Statement{
		SQL:    "SELECT name FROM users WHERE id = :id OR manager_id = :id",
		Params: map[string]any{"id": 7},
		Query:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"name": "alice"}}, rs.Rows)
	assert.False(t, rs.Truncated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLExecutor_Exec(t *testing.T) {
	exec, mock := newMockExecutor(t, policy.PostgresDialect)

	mock.ExpectExec("UPDATE users SET active = false WHERE id = $1").
		WithArgs(3).
		WillReturnResult(sqlmock.NewResult(0, 4))

	rs, err := exec.Execute(context.Background(), Statement{
		SQL:    "UPDATE users SET active = false WHERE id = :id",
		Params: map[string]any{"id": 3},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), rs.RowsAffected)
	assert.Empty(t, rs.Rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLExecutor_MissingParameter(t *testing.T) {
	exec, mock := newMockExecutor(t, policy.PostgresDialect)

	_, err := exec.Execute(context.Background(), Statement{
		SQL:   "SELECT * FROM users WHERE id = :id",
		Query: true,
	})
	require.Error(t, err)
	assert.Equal(t, gerror.KindMissingParameter, gerror.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLExecutor_DriverError(t *testing.T) {
	exec, mock := newMockExecutor(t, policy.PostgresDialect)

	mock.ExpectQuery("SELECT 1").WillReturnError(errors.New("relation does not exist"))

	_, err := exec.Execute(context.Background(), Statement{SQL: "SELECT 1", Query: true})
	require.Error(t, err)
	assert.Equal(t, gerror.KindInternal, gerror.KindOf(err))
	assert.Contains(t, err.Error(), "statement execution failed")
	assert.Contains(t, err.Error(), "relation does not exist")
}

func TestSQLExecutor_Timeout(t *testing.T) {
	exec, mock := newMockExecutor(t, policy.PostgresDialect)

	mock.ExpectQuery("SELECT pg_sleep(1)").
		WillDelayFor(200 * time.Millisecond).
		WillReturnRows(sqlmock.NewRows([]string{"pg_sleep"}).AddRow(nil))

	_, err := exec.Execute(context.Background(), Statement{
		SQL:     "SELECT pg_sleep(1)",
		Query:   true,
		Timeout: 20 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Equal(t, gerror.KindInternal, gerror.KindOf(err))
	assert.Contains(t, err.Error(), "statement exceeded timeout of 20ms")
}

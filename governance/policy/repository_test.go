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
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tduhfajd/sql-guard/governance/gerror"
)

var policyColumnNames = []string{
	"id", "name", "description", "policy_type", "value", "applies_to", "target",
	"priority", "is_active", "is_enforced", "created_by", "created_at", "updated_at",
}

func ddlRow(rows *sqlmock.Rows, id string) *sqlmock.Rows {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return rows.AddRow(id, "block_ddl_viewer", "Block DDL for VIEWER role", "BLOCK_DDL",
		[]byte(`{"blocked_statements":["CREATE","DROP"]}`), "ROLE", "VIEWER",
		"CRITICAL", true, true, "admin", now, now)
}

func newMockRepo(t *testing.T, dialect Dialect) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db, dialect), mock
}

func TestDialectFor(t *testing.T) {
	d, err := DialectFor("postgres")
	require.NoError(t, err)
	assert.Equal(t, "$3", d.Placeholder(3))

	d, err = DialectFor("MySQL")
	require.NoError(t, err)
	assert.Equal(t, "?", d.Placeholder(3))

	_, err = DialectFor("sqlite")
	assert.Error(t, err)
}

func TestRepository_Create(t *testing.T) {
	tests := []struct {
		name      string
		dialect   Dialect
		policy    *Policy
		setupMock func(mock sqlmock.Sqlmock)
		wantErr   error
		wantKind  gerror.Kind
	}{
		{
			name:    "postgres insert",
			dialect: PostgresDialect,
			policy:  DefaultPolicies()[3],
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO security_policies .* VALUES \( \$1, \$2, \$3, \$4, \$5::jsonb`).
					WithArgs(sqlmock.AnyArg(), "block_ddl_viewer", sqlmock.AnyArg(), "BLOCK_DDL",
						`{"blocked_statements":["CREATE","DROP","ALTER","TRUNCATE"]}`, "ROLE", sqlmock.AnyArg(),
						"CRITICAL", true, true, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(1, 1))
			},
		},
		{
			name:    "mysql insert",
			dialect: MySQLDialect,
			policy:  DefaultPolicies()[0],
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO security_policies .* VALUES \( \?, \?, \?, \?, \?, \?`).
					WillReturnResult(sqlmock.NewResult(1, 1))
			},
		},
		{
			name:    "postgres duplicate name",
			dialect: PostgresDialect,
			policy:  DefaultPolicies()[0],
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO security_policies`).
					WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value"})
			},
			wantErr: ErrDuplicatePolicyName,
		},
		{
			name:    "mysql duplicate name",
			dialect: MySQLDialect,
			policy:  DefaultPolicies()[0],
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO security_policies`).
					WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
			},
			wantErr: ErrDuplicatePolicyName,
		},
		{
			name:    "invalid policy never reaches the database",
			dialect: PostgresDialect,
			policy:  &Policy{Name: "bad", Type: TypeMaxRows, AppliesTo: TargetAllUsers, Priority: PriorityLow},
			setupMock: func(mock sqlmock.Sqlmock) {
			},
			wantKind: gerror.KindInvalidPolicy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepo(t, tt.dialect)
			tt.setupMock(mock)

			err := repo.Create(context.Background(), tt.policy, "admin")

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantKind != "":
				assert.True(t, gerror.Is(err, tt.wantKind))
			default:
				require.NoError(t, err)
				assert.NotEmpty(t, tt.policy.ID)
				assert.Equal(t, "admin", tt.policy.CreatedBy)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRepository_Get(t *testing.T) {
	repo, mock := newMockRepo(t, PostgresDialect)

	mock.ExpectQuery(`SELECT .* FROM security_policies WHERE id = \$1`).
		WithArgs("p-1").
		WillReturnRows(ddlRow(sqlmock.NewRows(policyColumnNames), "p-1"))

	p, err := repo.Get(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, "block_ddl_viewer", p.Name)
	assert.Equal(t, TargetRole, p.AppliesTo)
	assert.Equal(t, BlockStatementsValue{Class: TypeBlockDDL, BlockedStatements: []string{"CREATE", "DROP"}}, p.Value)
	assert.Equal(t, "admin", p.CreatedBy)

	mock.ExpectQuery(`SELECT .* FROM security_policies WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(policyColumnNames))

	_, err = repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrPolicyNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetCorruptValue(t *testing.T) {
	repo, mock := newMockRepo(t, PostgresDialect)
	now := time.Now()

	mock.ExpectQuery(`SELECT .* FROM security_policies`).
		WillReturnRows(sqlmock.NewRows(policyColumnNames).AddRow(
			"p-2", "rows", nil, "MAX_ROWS", []byte(`{"max_rows":0}`), "ALL_USERS", nil,
			"LOW", true, true, nil, now, now))

	_, err := repo.Get(context.Background(), "p-2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max rows policy requires positive max_rows")
}

func TestRepository_Update(t *testing.T) {
	t.Run("postgres partial update", func(t *testing.T) {
		repo, mock := newMockRepo(t, PostgresDialect)

		mock.ExpectQuery(`SELECT .* FROM security_policies WHERE id = \$1`).
			WithArgs("p-1").
			WillReturnRows(ddlRow(sqlmock.NewRows(policyColumnNames), "p-1"))
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE security_policies SET priority = $1, is_active = $2, updated_at = $3 WHERE id = $4`)).
			WithArgs("LOW", false, sqlmock.AnyArg(), "p-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		low, inactive := PriorityLow, false
		p, err := repo.Update(context.Background(), "p-1", &Update{Priority: &low, Active: &inactive})
		require.NoError(t, err)
		assert.Equal(t, PriorityLow, p.Priority)
		assert.False(t, p.Active)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("mysql value update", func(t *testing.T) {
		repo, mock := newMockRepo(t, MySQLDialect)

		mock.ExpectQuery(regexp.QuoteMeta(`FROM security_policies WHERE id = ?`)).
			WithArgs("p-1").
			WillReturnRows(ddlRow(sqlmock.NewRows(policyColumnNames), "p-1"))
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE security_policies SET value = ?, updated_at = ? WHERE id = ?`)).
			WithArgs(`{"blocked_statements":["TRUNCATE"]}`, sqlmock.AnyArg(), "p-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		p, err := repo.Update(context.Background(), "p-1", &Update{
			Value: BlockStatementsValue{Class: TypeBlockDDL, BlockedStatements: []string{"TRUNCATE"}},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"TRUNCATE"}, p.Value.(BlockStatementsValue).BlockedStatements)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid merge", func(t *testing.T) {
		repo, mock := newMockRepo(t, PostgresDialect)

		mock.ExpectQuery(`SELECT .* FROM security_policies`).
			WillReturnRows(ddlRow(sqlmock.NewRows(policyColumnNames), "p-1"))

		empty := ""
		_, err := repo.Update(context.Background(), "p-1", &Update{Target: &empty})
		assert.True(t, gerror.Is(err, gerror.KindInvalidPolicy))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock := newMockRepo(t, PostgresDialect)

		mock.ExpectQuery(`SELECT .* FROM security_policies`).
			WillReturnRows(sqlmock.NewRows(policyColumnNames))

		low := PriorityLow
		_, err := repo.Update(context.Background(), "nope", &Update{Priority: &low})
		assert.ErrorIs(t, err, ErrPolicyNotFound)
	})
}

func TestRepository_Delete(t *testing.T) {
	repo, mock := newMockRepo(t, PostgresDialect)

	mock.ExpectExec(`DELETE FROM security_policies WHERE id = \$1`).
		WithArgs("p-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM security_policies WHERE id = \$1`).
		WithArgs("p-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM security_policies`).
		WithArgs("p-2").
		WillReturnError(errors.New("connection reset"))

	assert.NoError(t, repo.Delete(context.Background(), "p-1"))
	assert.ErrorIs(t, repo.Delete(context.Background(), "p-1"), ErrPolicyNotFound)

	err := repo.Delete(context.Background(), "p-2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to delete policy")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_List(t *testing.T) {
	repo, mock := newMockRepo(t, PostgresDialect)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM security_policies WHERE 1 = 1 AND policy_type = $1 AND is_active = $2`)).
		WithArgs("BLOCK_DDL", true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(21))
	mock.ExpectQuery(`SELECT .* FROM security_policies WHERE 1 = 1 AND policy_type = \$1 AND is_active = \$2 ORDER BY CASE priority .* LIMIT \$3 OFFSET \$4`).
		WithArgs("BLOCK_DDL", true, 20, 20).
		WillReturnRows(ddlRow(sqlmock.NewRows(policyColumnNames), "p-21"))

	typ, active := TypeBlockDDL, true
	result, err := repo.List(context.Background(), &ListParams{Type: &typ, Active: &active, Page: 2})
	require.NoError(t, err)

	require.Len(t, result.Policies, 1)
	assert.Equal(t, "p-21", result.Policies[0].ID)
	assert.Equal(t, Pagination{Page: 2, PageSize: 20, TotalItems: 21, TotalPages: 2}, result.Pagination)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ListPageSizeClamped(t *testing.T) {
	repo, mock := newMockRepo(t, MySQLDialect)

	mock.ExpectQuery(`SELECT COUNT`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`LIMIT \? OFFSET \?`).
		WithArgs(MaxPageSize, 0).
		WillReturnRows(sqlmock.NewRows(policyColumnNames))

	result, err := repo.List(context.Background(), &ListParams{PageSize: 5000})
	require.NoError(t, err)
	assert.Empty(t, result.Policies)
	assert.Equal(t, MaxPageSize, result.Pagination.PageSize)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ListAll(t *testing.T) {
	repo, mock := newMockRepo(t, PostgresDialect)

	rows := sqlmock.NewRows(policyColumnNames)
	ddlRow(rows, "p-1")
	ddlRow(rows, "p-2")
	mock.ExpectQuery(`SELECT .* FROM security_policies ORDER BY created_at ASC, id ASC`).
		WillReturnRows(rows)

	policies, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, policies, 2)
	assert.Equal(t, "p-2", policies[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_EnsureSchema(t *testing.T) {
	repo, mock := newMockRepo(t, PostgresDialect)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS security_policies`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

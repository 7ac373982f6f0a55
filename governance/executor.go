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
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tduhfajd/sql-guard/governance/gerror"
	"github.com/tduhfajd/sql-guard/governance/policy"
	"github.com/tduhfajd/sql-guard/governance/sqlscan"
)

// Statement is an approved, rewritten statement ready to run.
type Statement struct {
	SQL    string
	Params map[string]any
	// Query selects QueryContext over ExecContext.
	Query bool
	// Timeout bounds execution. Zero means no bound beyond ctx.
	Timeout time.Duration
	// MaxRows caps how many rows are read. Zero means no cap.
	MaxRows int
}

// ResultSet holds decoded rows keyed by column name.
type ResultSet struct {
	Columns      []string         `json:"columns"`
	Rows         []map[string]any `json:"rows"`
	RowsAffected int64            `json:"rows_affected"`
	// Truncated is set when rows beyond MaxRows were dropped.
	Truncated bool `json:"truncated"`
}

// Executor runs statements that passed governance.
type Executor interface {
	Execute(ctx context.Context, stmt Statement) (*ResultSet, error)
}

// SQLExecutor runs statements over database/sql. Named placeholders are
// rewritten with the dialect's placeholder before execution.
type SQLExecutor struct {
	db      *sql.DB
	dialect policy.Dialect
}

// NewSQLExecutor creates an executor over db.
func NewSQLExecutor(db *sql.DB, dialect policy.Dialect) *SQLExecutor {
	return &SQLExecutor{db: db, dialect: dialect}
}

// Execute implements Executor.
func (e *SQLExecutor) Execute(ctx context.Context, stmt Statement) (*ResultSet, error) {
	query, args, err := sqlscan.BindNamed(stmt.SQL, stmt.Params, e.dialect.Placeholder)
	if err != nil {
		return nil, err
	}

	if stmt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, stmt.Timeout)
		defer cancel()
	}

	if !stmt.Query {
		res, err := e.db.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, execError(ctx, err, stmt.Timeout)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to read affected rows: %w", err)
		}
		return &ResultSet{Columns: []string{}, Rows: []map[string]any{}, RowsAffected: affected}, nil
	}

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, execError(ctx, err, stmt.Timeout)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	result := &ResultSet{Columns: columns, Rows: []map[string]any{}}
	for rows.Next() {
		if stmt.MaxRows > 0 && len(result.Rows) >= stmt.MaxRows {
			result.Truncated = true
			break
		}
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, execError(ctx, err, stmt.Timeout)
	}
	result.RowsAffected = int64(len(result.Rows))
	return result, nil
}

func execError(ctx context.Context, err error, timeout time.Duration) error {
	// drivers report cancellation in their own words
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return gerror.Wrap(gerror.KindInternal, err, fmt.Sprintf("statement exceeded timeout of %s", timeout))
	}
	return gerror.Wrap(gerror.KindInternal, err, "statement execution failed")
}
